package recordcache

import (
	"context"
	"time"
)

// InstrumentationOptions configure NewInstrumentation. Nil fields disable
// the corresponding output.
type InstrumentationOptions struct {
	Logger   Logger
	Observer Observer
}

// Instrumentation times, classifies and reports calls made through the
// decorators returned by InstrumentService and InstrumentCacheStore.
type Instrumentation struct {
	log Logger
	obs Observer
	now func() time.Time
}

func NewInstrumentation(opts InstrumentationOptions) *Instrumentation {
	return &Instrumentation{
		log: coalesce[Logger](opts.Logger, NopLogger{}),
		obs: coalesce[Observer](opts.Observer, NopObserver{}),
		now: time.Now,
	}
}

func (in *Instrumentation) begin() time.Time { return in.now() }

// end reports a finished call. err is only inspected, never replaced.
func (in *Instrumentation) end(op string, args Fields, start time.Time, err error) {
	d := in.now().Sub(start)
	outcome := Classify(err)
	f := args.with("operation", op, "duration", d, "outcome", string(outcome))
	switch outcome {
	case OutcomeSuccess:
		in.log.Debug(op, f)
	case OutcomeDomainError:
		in.log.Warn(op, f.with("err", err.Error()))
	default:
		in.log.Error(op, f.with("err", err.Error()))
	}
	in.obs.OperationObserved(Observation{
		Operation: op,
		Args:      args,
		Start:     start,
		Duration:  d,
		Outcome:   outcome,
		Err:       err,
	})
}

type instrumentedService struct {
	next Service
	in   *Instrumentation
}

// InstrumentService decorates s so every call is observed. Results and errors
// pass through unchanged.
func InstrumentService(s Service, in *Instrumentation) Service {
	if in == nil {
		in = NewInstrumentation(InstrumentationOptions{})
	}
	return &instrumentedService{next: s, in: in}
}

func (s *instrumentedService) GetByID(ctx context.Context, id int64) (User, error) {
	start := s.in.begin()
	u, err := s.next.GetByID(ctx, id)
	s.in.end("UserService.GetByID", Fields{"id": id}, start, err)
	return u, err
}

func (s *instrumentedService) GetAll(ctx context.Context) ([]User, error) {
	start := s.in.begin()
	users, err := s.next.GetAll(ctx)
	s.in.end("UserService.GetAll", Fields{"count": len(users)}, start, err)
	return users, err
}

func (s *instrumentedService) Create(ctx context.Context, draft User) (User, error) {
	start := s.in.begin()
	u, err := s.next.Create(ctx, draft)
	args := draft.Summary()
	if u.ID != 0 {
		args["id"] = u.ID
	}
	s.in.end("UserService.Create", args, start, err)
	return u, err
}

func (s *instrumentedService) Update(ctx context.Context, id int64, draft User) (User, error) {
	start := s.in.begin()
	u, err := s.next.Update(ctx, id, draft)
	args := draft.Summary()
	args["id"] = id
	s.in.end("UserService.Update", args, start, err)
	return u, err
}

func (s *instrumentedService) Delete(ctx context.Context, id int64) error {
	start := s.in.begin()
	err := s.next.Delete(ctx, id)
	s.in.end("UserService.Delete", Fields{"id": id}, start, err)
	return err
}

type instrumentedCache struct {
	next CacheStore
	in   *Instrumentation
}

// InstrumentCacheStore decorates c so every blocking call is observed.
// Entry values are never logged, only their size.
func InstrumentCacheStore(c CacheStore, in *Instrumentation) CacheStore {
	if in == nil {
		in = NewInstrumentation(InstrumentationOptions{})
	}
	return &instrumentedCache{next: c, in: in}
}

func (c *instrumentedCache) Get(ctx context.Context, ns, key string) ([]byte, bool, error) {
	start := c.in.begin()
	v, ok, err := c.next.Get(ctx, ns, key)
	c.in.end("CacheStore.Get", Fields{"namespace": ns, "key": key, "hit": ok}, start, err)
	return v, ok, err
}

func (c *instrumentedCache) Put(ctx context.Context, ns, key string, value []byte) error {
	start := c.in.begin()
	err := c.next.Put(ctx, ns, key, value)
	c.in.end("CacheStore.Put", Fields{"namespace": ns, "key": key, "bytes": len(value)}, start, err)
	return err
}

func (c *instrumentedCache) Version(ctx context.Context, ns, key string) (uint64, error) {
	start := c.in.begin()
	gen, err := c.next.Version(ctx, ns, key)
	c.in.end("CacheStore.Version", Fields{"namespace": ns, "key": key}, start, err)
	return gen, err
}

func (c *instrumentedCache) PutVersioned(ctx context.Context, ns, key string, value []byte, observed uint64) error {
	start := c.in.begin()
	err := c.next.PutVersioned(ctx, ns, key, value, observed)
	c.in.end("CacheStore.PutVersioned", Fields{"namespace": ns, "key": key, "bytes": len(value), "observed": observed}, start, err)
	return err
}

func (c *instrumentedCache) Evict(ctx context.Context, ns, key string) error {
	start := c.in.begin()
	err := c.next.Evict(ctx, ns, key)
	c.in.end("CacheStore.Evict", Fields{"namespace": ns, "key": key}, start, err)
	return err
}

func (c *instrumentedCache) EvictAll(ctx context.Context, ns string) error {
	start := c.in.begin()
	err := c.next.EvictAll(ctx, ns)
	c.in.end("CacheStore.EvictAll", Fields{"namespace": ns}, start, err)
	return err
}

func (c *instrumentedCache) Clear(ctx context.Context) error {
	start := c.in.begin()
	err := c.next.Clear(ctx)
	c.in.end("CacheStore.Clear", nil, start, err)
	return err
}

func (c *instrumentedCache) Close(ctx context.Context) error {
	start := c.in.begin()
	err := c.next.Close(ctx)
	c.in.end("CacheStore.Close", nil, start, err)
	return err
}

func (c *instrumentedCache) Namespaces() []string { return c.next.Namespaces() }
func (c *instrumentedCache) Name() string         { return c.next.Name() }
func (c *instrumentedCache) Enabled() bool        { return c.next.Enabled() }
