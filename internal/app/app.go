// Package app assembles recordcached from its configuration: backends, cache,
// instrumentation and the HTTP handler.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	rc "github.com/unkn0wn-root/recordcache"
	"github.com/unkn0wn-root/recordcache/codec"
	asynchook "github.com/unkn0wn-root/recordcache/hooks/async"
	promhook "github.com/unkn0wn-root/recordcache/hooks/prom"
	"github.com/unkn0wn-root/recordcache/internal/config"
	"github.com/unkn0wn-root/recordcache/internal/httpapi"
	"github.com/unkn0wn-root/recordcache/internal/seed"
	rclogrus "github.com/unkn0wn-root/recordcache/log/logrus"
	rcslog "github.com/unkn0wn-root/recordcache/log/slog"
	rczap "github.com/unkn0wn-root/recordcache/log/zap"
	pr "github.com/unkn0wn-root/recordcache/provider"
	"github.com/unkn0wn-root/recordcache/provider/bigcache"
	"github.com/unkn0wn-root/recordcache/provider/memory"
	rprov "github.com/unkn0wn-root/recordcache/provider/redis"
	"github.com/unkn0wn-root/recordcache/provider/ristretto"
	"github.com/unkn0wn-root/recordcache/provider/sturdyc"
	"github.com/unkn0wn-root/recordcache/sequence"
	"github.com/unkn0wn-root/recordcache/sloghooks"
	"github.com/unkn0wn-root/recordcache/store/dynamostore"
	"github.com/unkn0wn-root/recordcache/store/memstore"
	"github.com/unkn0wn-root/recordcache/store/redisstore"
	"github.com/unkn0wn-root/recordcache/store/sqlstore"
)

// App is a fully wired recordcached instance.
type App struct {
	Config   *config.Config
	Logger   *zap.Logger
	Store    rc.RecordStore
	Service  rc.Service
	Cache    rc.CacheStore
	Metrics  *rc.Metrics
	Registry *prometheus.Registry
	Handler  http.Handler

	log     rc.Logger
	rdb     goredis.UniversalClient
	dynamo  *awsdynamodb.Client
	closers []func(context.Context) error
}

// Build wires every component named by cfg. On error, whatever was opened is
// closed again.
func Build(ctx context.Context, cfg *config.Config, zl *zap.Logger) (_ *App, err error) {
	if zl == nil {
		zl = zap.NewNop()
	}
	a := &App{
		Config:   cfg,
		Logger:   zl,
		Metrics:  rc.NewMetrics(),
		Registry: prometheus.NewRegistry(),
	}
	defer func() {
		if err != nil {
			_ = a.Close(context.Background())
		}
	}()

	if a.log, err = newLogger(cfg.Log, zl); err != nil {
		return nil, err
	}
	a.Registry.MustRegister(
		a.Metrics,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	store, seq, err := a.backend(ctx)
	if err != nil {
		return nil, err
	}
	a.Store = store

	cache, err := a.cacheStore(ctx)
	if err != nil {
		return nil, err
	}

	userCodec, err := codec.ByName[rc.User](cfg.Cache.Codec)
	if err != nil {
		return nil, err
	}
	listCodec, err := codec.ByName[[]rc.User](cfg.Cache.Codec)
	if err != nil {
		return nil, err
	}
	if n := cfg.Cache.MaxEntryBytes; n > 0 {
		userCodec = codec.Limit[rc.User]{Inner: userCodec, MaxDecode: n}
		listCodec = codec.Limit[[]rc.User]{Inner: listCodec, MaxDecode: n}
	}

	obs, err := a.observer(cfg.Log)
	if err != nil {
		return nil, err
	}
	in := rc.NewInstrumentation(rc.InstrumentationOptions{Logger: a.log, Observer: obs})
	a.Cache = rc.InstrumentCacheStore(cache, in)

	svc, err := rc.New(rc.Options{
		Store:     store,
		Cache:     a.Cache,
		Sequence:  seq,
		Metrics:   a.Metrics,
		Logger:    a.log,
		Codec:     userCodec,
		ListCodec: listCodec,
	})
	if err != nil {
		return nil, err
	}
	a.Service = rc.InstrumentService(svc, in)

	a.Handler = httpapi.NewRouter(httpapi.Deps{
		Users:           a.Service,
		Cache:           a.Cache,
		Metrics:         a.Metrics,
		Logger:          zl,
		Gatherer:        a.Registry,
		AvailableCaches: config.Providers,
		AllowedOrigins:  cfg.Server.AllowedOrigins,
	})
	return a, nil
}

func newLogger(cfg config.LogConfig, zl *zap.Logger) (rc.Logger, error) {
	switch cfg.Backend {
	case "zap":
		return rczap.ZapLogger{L: zl}, nil
	case "logrus":
		e, err := rclogrus.New(cfg.Level)
		if err != nil {
			return nil, err
		}
		return rclogrus.LogrusLogger{E: e}, nil
	case "slog":
		l, err := rcslog.New(os.Stderr, cfg.Level)
		if err != nil {
			return nil, err
		}
		return rcslog.Logger{L: l}, nil
	default:
		return nil, fmt.Errorf("app: unknown log backend %q", cfg.Backend)
	}
}

// observer fans every operation out to prometheus and to the slog sampler,
// off the request path.
func (a *App) observer(cfg config.LogConfig) (rc.Observer, error) {
	sl, err := rcslog.New(os.Stderr, cfg.Level)
	if err != nil {
		return nil, err
	}
	async := asynchook.New(rc.Observers(
		promhook.New(a.Registry),
		sloghooks.New(sl, sloghooks.Options{
			SlowThreshold: 250 * time.Millisecond,
			SlowEvery:     10,
			NotFoundEvery: 10,
		}),
	), 2, 1024)
	a.onClose(func(context.Context) error {
		async.Close()
		if n := async.Dropped(); n > 0 {
			a.log.Warn("observations dropped", rc.Fields{"count": n})
		}
		return nil
	})
	return async, nil
}

func (a *App) redis(ctx context.Context) (goredis.UniversalClient, error) {
	if a.rdb != nil {
		return a.rdb, nil
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     a.Config.Redis.Addr,
		Password: a.Config.Redis.Password,
		DB:       a.Config.Redis.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("app: redis %s: %w", a.Config.Redis.Addr, err)
	}
	a.rdb = rdb
	a.onClose(func(context.Context) error { return rdb.Close() })
	return rdb, nil
}

func (a *App) dynamoClient(ctx context.Context) (*awsdynamodb.Client, error) {
	if a.dynamo != nil {
		return a.dynamo, nil
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(a.Config.Dynamo.Region))
	if err != nil {
		return nil, fmt.Errorf("app: aws config: %w", err)
	}
	endpoint := a.Config.Dynamo.Endpoint
	a.dynamo = awsdynamodb.NewFromConfig(awsCfg, func(o *awsdynamodb.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})
	return a.dynamo, nil
}

// backend opens the record store and the id sequence on the same system.
func (a *App) backend(ctx context.Context) (rc.RecordStore, rc.SequenceCounter, error) {
	cfg := a.Config
	seedID := cfg.Sequence.Seed

	switch cfg.Backend {
	case "memory":
		return memstore.New(), sequence.NewMemory(seedID), nil

	case "redis":
		rdb, err := a.redis(ctx)
		if err != nil {
			return nil, nil, err
		}
		store, err := redisstore.New(redisstore.Config{Client: rdb})
		if err != nil {
			return nil, nil, err
		}
		return store, sequence.NewRedis(sequence.RedisConfig{Client: rdb, Prefix: "seq:", Seed: seedID}), nil

	case "sql":
		db, err := sqlstore.Open(cfg.SQL.Driver, cfg.SQL.DSN)
		if err != nil {
			return nil, nil, err
		}
		a.onClose(func(context.Context) error { return db.Close() })
		store := sqlstore.New(db)
		if err := store.CreateTable(ctx); err != nil {
			return nil, nil, fmt.Errorf("app: create users table: %w", err)
		}
		seq := sequence.NewSQL(db, seedID)
		if err := seq.CreateTable(ctx); err != nil {
			return nil, nil, fmt.Errorf("app: create sequences table: %w", err)
		}
		return store, seq, nil

	case "dynamodb":
		client, err := a.dynamoClient(ctx)
		if err != nil {
			return nil, nil, err
		}
		store, err := dynamostore.New(client, cfg.Dynamo.UsersTable)
		if err != nil {
			return nil, nil, err
		}
		return store, sequence.NewDynamo(client, cfg.Dynamo.SequencesTable, seedID), nil

	default:
		return nil, nil, fmt.Errorf("app: unknown backend %q", cfg.Backend)
	}
}

func (a *App) cacheStore(ctx context.Context) (rc.CacheStore, error) {
	cfg := a.Config.Cache
	namespaces := []string{rc.DefaultNamespace, rc.DefaultCollectionNamespace}
	if !cfg.Enabled {
		a.log.Info("cache disabled", nil)
		return rc.NewNoopCacheStore(namespaces...), nil
	}

	var (
		p    pr.Provider
		gens sequence.Counter
		err  error
	)
	switch cfg.Provider {
	case "memory":
		p = memory.NewWithCapacity(cfg.MaxEntries)
	case "ristretto":
		p, err = ristretto.New(ristretto.DefaultConfig(int64(cfg.MaxEntries)))
	case "bigcache":
		p, err = bigcache.New(ctx, bigcache.Config{
			LifeWindow:         cfg.TTL,
			MaxEntriesInWindow: cfg.MaxEntries,
		})
	case "sturdyc":
		p, err = sturdyc.New(sturdyc.Config{Capacity: cfg.MaxEntries, TTL: cfg.TTL})
	case "redis":
		var rdb goredis.UniversalClient
		if rdb, err = a.redis(ctx); err != nil {
			return nil, err
		}
		p, err = rprov.New(rprov.Config{Client: rdb})
		// replicas sharing this cache must share generations too
		gens = sequence.NewRedis(sequence.RedisConfig{Client: rdb, Prefix: "rc:gen:"})
	default:
		err = fmt.Errorf("app: unknown cache provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}

	cache, err := rc.NewCacheStore(rc.CacheOptions{
		Provider:    p,
		Generations: gens,
		Logger:      a.log,
		TTL:         cfg.TTL,
		Namespaces:  namespaces,
	})
	if err != nil {
		_ = p.Close(ctx)
		return nil, err
	}
	a.onClose(cache.Close)
	a.log.Info("cache enabled", rc.Fields{"provider": cache.Name(), "ttl": cfg.TTL, "codec": a.Config.Cache.Codec})
	return cache, nil
}

// Seed fills an empty record store and clears the cache when anything was
// loaded, so no entry predates the seeded data.
func (a *App) Seed(ctx context.Context) error {
	n, err := seed.New(seed.Options{
		Store:   a.Store,
		File:    a.Config.Seed.File,
		APIURL:  a.Config.Seed.APIURL,
		Timeout: a.Config.Seed.Timeout,
		Logger:  a.log,
	}).Run(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		if err := a.Cache.Clear(ctx); err != nil {
			return fmt.Errorf("app: clear cache after seeding: %w", err)
		}
		a.Metrics.Reset()
	}
	return nil
}

func (a *App) onClose(fn func(context.Context) error) {
	a.closers = append(a.closers, fn)
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
