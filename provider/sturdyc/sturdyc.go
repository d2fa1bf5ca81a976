// Package sturdyc adapts a viccon/sturdyc client to provider.Provider.
package sturdyc

import (
	"context"
	"errors"
	"time"

	sc "github.com/viccon/sturdyc"

	pr "github.com/unkn0wn-root/recordcache/provider"
)

type Provider struct {
	c *sc.Client[[]byte]
}

var (
	_ pr.Provider = (*Provider)(nil)
	_ pr.Named    = (*Provider)(nil)
)

// Config mirrors the sturdyc constructor arguments.
type Config struct {
	// Capacity is the maximum number of entries. Must be > 0.
	Capacity int
	// NumShards defaults to 256.
	NumShards int
	// TTL applies to every entry; sturdyc has no per-entry TTL.
	TTL time.Duration
	// EvictionPercentage (1-100) is evicted when capacity is reached. Defaults to 10.
	EvictionPercentage int
	// EvictionInterval of 0 keeps the sturdyc default.
	EvictionInterval time.Duration
}

func New(cfg Config) (*Provider, error) {
	if cfg.Capacity <= 0 || cfg.TTL <= 0 {
		return nil, errors.New("sturdyc: capacity and ttl must be > 0")
	}
	if cfg.NumShards <= 0 {
		cfg.NumShards = 256
	}
	if cfg.EvictionPercentage <= 0 || cfg.EvictionPercentage > 100 {
		cfg.EvictionPercentage = 10
	}
	var opts []sc.Option
	if cfg.EvictionInterval > 0 {
		opts = append(opts, sc.WithEvictionInterval(cfg.EvictionInterval))
	}
	return &Provider{
		c: sc.New[[]byte](cfg.Capacity, cfg.NumShards, cfg.TTL, cfg.EvictionPercentage, opts...),
	}, nil
}

func (p *Provider) Name() string { return "sturdyc" }

func (p *Provider) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := p.c.Get(key)
	if !ok || v == nil {
		return nil, false, nil
	}
	return v, true, nil
}

// Set ignores cost and ttl; the client-wide TTL applies.
func (p *Provider) Set(_ context.Context, key string, value []byte, _ int64, _ time.Duration) (bool, error) {
	p.c.Set(key, value)
	return true, nil
}

func (p *Provider) Del(_ context.Context, key string) error {
	p.c.Delete(key)
	return nil
}

// Len reports the number of entries currently held.
func (p *Provider) Len() int { return p.c.Size() }

func (p *Provider) Close(context.Context) error { return nil }
