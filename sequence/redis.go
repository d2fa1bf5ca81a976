package sequence

import (
	"context"
	"errors"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// nextScript seeds and increments in one server-side step.
var nextScript = redis.NewScript(`
redis.call('SET', KEYS[1], ARGV[1], 'NX')
return redis.call('INCR', KEYS[1])
`)

// Redis shares counters across processes and survives restarts.
type Redis struct {
	rdb         redis.UniversalClient
	prefix      string
	seed        int64
	closeClient bool
}

var _ Counter = (*Redis)(nil)

// RedisConfig configures a Redis counter set.
type RedisConfig struct {
	Client      redis.UniversalClient
	Prefix      string // key prefix, e.g. "seq:" or "gen:users:"
	Seed        int64
	CloseClient bool // set true only if the counter exclusively owns the client
}

func NewRedis(cfg RedisConfig) *Redis {
	return &Redis{rdb: cfg.Client, prefix: cfg.Prefix, seed: cfg.Seed, closeClient: cfg.CloseClient}
}

func (s *Redis) key(name string) string { return s.prefix + name }

func (s *Redis) Next(ctx context.Context, name string) (int64, error) {
	v, err := nextScript.Run(ctx, s.rdb, []string{s.key(name)}, s.seed).Int64()
	if err != nil {
		return 0, fail(name, "next", err)
	}
	return v, nil
}

// Current returns 0 for a missing key.
func (s *Redis) Current(ctx context.Context, name string) (int64, error) {
	res, err := s.rdb.Get(ctx, s.key(name)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fail(name, "current", err)
	}
	v, err := strconv.ParseInt(res, 10, 64)
	if err != nil {
		return 0, fail(name, "current", err)
	}
	return v, nil
}

func (s *Redis) Close(context.Context) error {
	if s.closeClient {
		if err := s.rdb.Close(); err != nil && !errors.Is(err, redis.ErrClosed) {
			return err
		}
	}
	return nil
}
