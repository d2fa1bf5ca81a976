package recordcache

import "time"

// Observation describes one instrumented call.
type Observation struct {
	// Operation is "<Component>.<Method>", e.g. "UserService.GetByID".
	Operation string
	// Args are log-safe summaries of the call arguments.
	Args     Fields
	Start    time.Time
	Duration time.Duration
	Outcome  Outcome
	// Err is the error returned to the caller, unchanged.
	Err error
}

// Observer receives observations from instrumented components.
// Implementations MUST be cheap and non-blocking; they run on the request path.
type Observer interface {
	OperationObserved(Observation)
}

// NopObserver is the default no-op.
type NopObserver struct{}

func (NopObserver) OperationObserved(Observation) {}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Observation)

func (f ObserverFunc) OperationObserved(o Observation) { f(o) }

type multiObserver []Observer

func (m multiObserver) OperationObserved(o Observation) {
	for _, ob := range m {
		ob.OperationObserved(o)
	}
}

// Observers fans every observation out to each non-nil observer in order.
func Observers(obs ...Observer) Observer {
	out := make(multiObserver, 0, len(obs))
	for _, o := range obs {
		if o != nil {
			out = append(out, o)
		}
	}
	return out
}
