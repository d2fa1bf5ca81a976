package sequence

import (
	"context"
	"sync"
)

// Memory keeps counters in-process. Values are unique only within the process.
type Memory struct {
	mu     sync.Mutex
	seed   int64
	values map[string]int64
}

var _ Counter = (*Memory)(nil)

// NewMemory returns an in-process counter set whose first Next yields seed+1.
func NewMemory(seed int64) *Memory {
	return &Memory{
		seed:   seed,
		values: make(map[string]int64),
	}
}

func (m *Memory) Next(ctx context.Context, name string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, fail(name, "next", err)
	}
	m.mu.Lock()
	v, ok := m.values[name]
	if !ok {
		v = m.seed
	}
	v++
	m.values[name] = v
	m.mu.Unlock()
	return v, nil
}

func (m *Memory) Current(ctx context.Context, name string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, fail(name, "current", err)
	}
	m.mu.Lock()
	v := m.values[name]
	m.mu.Unlock()
	return v, nil
}

// Reset drops the counter for name. It is an administrative action; nothing in
// the request path calls it.
func (m *Memory) Reset(name string) {
	m.mu.Lock()
	delete(m.values, name)
	m.mu.Unlock()
}

func (m *Memory) Close(context.Context) error { return nil }
