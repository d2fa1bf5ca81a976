package recordcache

import (
	"context"
	"fmt"

	"github.com/unkn0wn-root/recordcache/codec"
	"github.com/unkn0wn-root/recordcache/sequence"
)

const (
	DefaultNamespace           = "users"
	DefaultCollectionNamespace = "users_all"
	DefaultSequenceName        = "user_sequence"
	// DefaultSequenceSeed makes the first assigned id 101.
	DefaultSequenceSeed int64 = 100

	collectionKey = "all"
)

// Service is the record API. Reads go through the cache; writes go to the
// RecordStore first and then invalidate the affected cache entries.
//
// Methods that write return the stored User together with an *InvalidateError
// when the write succeeded but a cache entry could not be invalidated.
type Service interface {
	GetByID(ctx context.Context, id int64) (User, error)
	// GetAll returns every record ordered by id.
	GetAll(ctx context.Context) ([]User, error)
	// Create assigns the next id from the sequence; any id on draft is ignored.
	Create(ctx context.Context, draft User) (User, error)
	// Update overwrites every mutable field of record id with draft's.
	Update(ctx context.Context, id int64, draft User) (User, error)
	Delete(ctx context.Context, id int64) error
}

// RecordStore is the backing collection. Implementations wrap backend
// failures in *StoreError.
type RecordStore interface {
	FindByID(ctx context.Context, id int64) (User, bool, error)
	// FindAll returns every record ordered by id.
	FindAll(ctx context.Context) ([]User, error)
	// Save inserts or replaces the record with u.ID.
	Save(ctx context.Context, u User) error
	DeleteByID(ctx context.Context, id int64) error
	ExistsByID(ctx context.Context, id int64) (bool, error)
	Count(ctx context.Context) (int64, error)
}

// SequenceCounter issues record ids.
type SequenceCounter = sequence.Counter

// Options wire a Service. Only Store is required.
type Options struct {
	Store    RecordStore
	Cache    CacheStore      // nil => NewNoopCacheStore
	Sequence SequenceCounter // nil => in-process counter seeded with DefaultSequenceSeed
	Metrics  *Metrics        // nil => private Metrics
	Logger   Logger          // nil => NopLogger

	Codec     codec.Codec[User]   // nil => codec.JSON
	ListCodec codec.Codec[[]User] // nil => codec.JSON

	SequenceName        string // "" => DefaultSequenceName
	Namespace           string // "" => DefaultNamespace
	CollectionNamespace string // "" => DefaultCollectionNamespace
}

func New(opts Options) (Service, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("recordcache: record store is required")
	}
	s := &service{
		store:     opts.Store,
		cache:     opts.Cache,
		seq:       opts.Sequence,
		metrics:   opts.Metrics,
		log:       coalesce[Logger](opts.Logger, NopLogger{}),
		codec:     opts.Codec,
		listCodec: opts.ListCodec,
		seqName:   coalesce(opts.SequenceName, DefaultSequenceName),
		ns:        coalesce(opts.Namespace, DefaultNamespace),
		allNS:     coalesce(opts.CollectionNamespace, DefaultCollectionNamespace),
	}
	if s.ns == s.allNS {
		return nil, fmt.Errorf("recordcache: namespace and collection namespace must differ")
	}
	if s.cache == nil {
		s.cache = NewNoopCacheStore(s.ns, s.allNS)
	}
	if s.seq == nil {
		s.seq = sequence.NewMemory(DefaultSequenceSeed)
	}
	if s.metrics == nil {
		s.metrics = NewMetrics()
	}
	if s.codec == nil {
		s.codec = codec.JSON[User]{}
	}
	if s.listCodec == nil {
		s.listCodec = codec.JSON[[]User]{}
	}
	return s, nil
}
