// Package asynchook moves observers off the request path.
//
// usage:
//
//	prom := promhook.New(prometheus.DefaultRegisterer)
//	obs := asynchook.New(prom, 1, 1000) // 1 worker; queue 1000 observations
//	defer obs.Close()
//
//	in := recordcache.NewInstrumentation(recordcache.InstrumentationOptions{
//	    Logger:   logger,
//	    Observer: obs,
//	})
package asynchook

import (
	"sync"
	"sync/atomic"

	rc "github.com/unkn0wn-root/recordcache"
)

// Observer forwards observations to inner from a fixed worker pool. When the
// queue is full the observation is dropped and counted.
type Observer struct {
	inner   rc.Observer
	q       chan rc.Observation
	wg      sync.WaitGroup
	once    sync.Once
	mu      sync.RWMutex
	closed  bool
	dropped atomic.Uint64
}

var _ rc.Observer = (*Observer)(nil)

func New(inner rc.Observer, workers, qlen int) *Observer {
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 1024
	}

	o := &Observer{inner: inner, q: make(chan rc.Observation, qlen)}
	o.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer o.wg.Done()
			for ob := range o.q {
				o.inner.OperationObserved(ob)
			}
		}()
	}
	return o
}

// Close drains queued observations and stops the workers.
func (o *Observer) Close() {
	o.once.Do(func() {
		o.mu.Lock()
		o.closed = true
		close(o.q)
		o.mu.Unlock()
		o.wg.Wait()
	})
}

func (o *Observer) OperationObserved(ob rc.Observation) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.closed {
		o.dropped.Add(1)
		return
	}
	select {
	case o.q <- ob:
	default: // drop
		o.dropped.Add(1)
	}
}

// Dropped reports how many observations were discarded.
func (o *Observer) Dropped() uint64 { return o.dropped.Load() }
