package recordcache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type logEntry struct {
	level string
	msg   string
	f     Fields
}

type recordingLogger struct {
	mu      sync.Mutex
	entries []logEntry
}

func (l *recordingLogger) add(level, msg string, f Fields) {
	l.mu.Lock()
	l.entries = append(l.entries, logEntry{level, msg, f})
	l.mu.Unlock()
}
func (l *recordingLogger) Debug(msg string, f Fields) { l.add("debug", msg, f) }
func (l *recordingLogger) Info(msg string, f Fields)  { l.add("info", msg, f) }
func (l *recordingLogger) Warn(msg string, f Fields)  { l.add("warn", msg, f) }
func (l *recordingLogger) Error(msg string, f Fields) { l.add("error", msg, f) }

type stubService struct {
	err  error
	user User
}

func (s stubService) GetByID(context.Context, int64) (User, error) { return s.user, s.err }
func (s stubService) GetAll(context.Context) ([]User, error)       { return []User{s.user}, s.err }
func (s stubService) Create(_ context.Context, d User) (User, error) {
	d.ID = 101
	return d, s.err
}
func (s stubService) Update(_ context.Context, id int64, d User) (User, error) {
	d.ID = id
	return d, s.err
}
func (s stubService) Delete(context.Context, int64) error { return s.err }

func newTestInstrumentation() (*Instrumentation, *recordingLogger, *[]Observation) {
	log := &recordingLogger{}
	var obs []Observation
	in := NewInstrumentation(InstrumentationOptions{
		Logger:   log,
		Observer: ObserverFunc(func(o Observation) { obs = append(obs, o) }),
	})
	// every call takes exactly 5ms
	t0 := time.Unix(1_700_000_000, 0)
	calls := 0
	in.now = func() time.Time {
		calls++
		return t0.Add(time.Duration(calls) * 5 * time.Millisecond)
	}
	return in, log, &obs
}

func TestInstrumentServiceOutcomes(t *testing.T) {
	ctx := context.Background()
	nf := &NotFoundError{ID: 7}
	boom := NewStoreError("find", errors.New("boom"))

	cases := []struct {
		name    string
		err     error
		level   string
		outcome Outcome
	}{
		{"success", nil, "debug", OutcomeSuccess},
		{"not found", nf, "warn", OutcomeDomainError},
		{"store failure", boom, "error", OutcomeError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in, log, obs := newTestInstrumentation()
			svc := InstrumentService(stubService{err: tc.err, user: User{ID: 7}}, in)

			_, err := svc.GetByID(ctx, 7)
			if err != tc.err {
				t.Fatalf("error must pass through unchanged: got %v want %v", err, tc.err)
			}
			if len(log.entries) != 1 || log.entries[0].level != tc.level {
				t.Fatalf("log entries: %+v", log.entries)
			}
			e := log.entries[0]
			if e.msg != "UserService.GetByID" || e.f["outcome"] != string(tc.outcome) || e.f["id"] != int64(7) {
				t.Fatalf("log entry: %+v", e)
			}
			if len(*obs) != 1 {
				t.Fatalf("observations: %d", len(*obs))
			}
			o := (*obs)[0]
			if o.Operation != "UserService.GetByID" || o.Outcome != tc.outcome || o.Err != tc.err {
				t.Fatalf("observation: %+v", o)
			}
			if o.Duration != 5*time.Millisecond {
				t.Fatalf("duration: %v", o.Duration)
			}
		})
	}
}

func TestInstrumentServiceNeverLogsPasswords(t *testing.T) {
	in, log, obs := newTestInstrumentation()
	svc := InstrumentService(stubService{}, in)

	u, err := svc.Create(context.Background(), User{Username: "jdoe", Password: "hunter2"})
	if err != nil || u.ID != 101 || u.Password != "hunter2" {
		t.Fatalf("result must pass through: %+v %v", u, err)
	}
	for _, e := range log.entries {
		for k, v := range e.f {
			if v == "hunter2" {
				t.Fatalf("password leaked in log field %q", k)
			}
		}
	}
	if (*obs)[0].Args["id"] != int64(101) || (*obs)[0].Args["username"] != "jdoe" {
		t.Fatalf("args: %+v", (*obs)[0].Args)
	}
}

func TestInstrumentCacheStore(t *testing.T) {
	ctx := context.Background()
	in, log, obs := newTestInstrumentation()
	inner := NewNoopCacheStore("users")
	c := InstrumentCacheStore(inner, in)

	if _, ok, err := c.Get(ctx, "users", "1"); ok || err != nil {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	_ = c.Put(ctx, "users", "1", []byte("secret payload"))
	_ = c.Evict(ctx, "users", "1")

	want := []string{"CacheStore.Get", "CacheStore.Put", "CacheStore.Evict"}
	if len(*obs) != len(want) {
		t.Fatalf("observations: %+v", *obs)
	}
	for i, op := range want {
		if (*obs)[i].Operation != op {
			t.Fatalf("op %d: %s want %s", i, (*obs)[i].Operation, op)
		}
	}
	if (*obs)[1].Args["bytes"] != len("secret payload") {
		t.Fatalf("Put args: %+v", (*obs)[1].Args)
	}
	for _, e := range log.entries {
		if e.level != "debug" {
			t.Fatalf("unexpected level %s", e.level)
		}
	}
	if c.Name() != "noop" || c.Enabled() || len(c.Namespaces()) != 1 {
		t.Fatalf("pass-through accessors broken")
	}
}

func TestObserversFanOut(t *testing.T) {
	var a, b int
	o := Observers(
		ObserverFunc(func(Observation) { a++ }),
		nil,
		ObserverFunc(func(Observation) { b++ }),
	)
	o.OperationObserved(Observation{})
	if a != 1 || b != 1 {
		t.Fatalf("fan-out: a=%d b=%d", a, b)
	}
}
