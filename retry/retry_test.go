package retry

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/unkn0wn-root/snapcache"
	"github.com/unkn0wn-root/snapcache/fault"
)

type recLogger struct {
	mu     sync.Mutex
	errors []snapcache.Fields
}

func (l *recLogger) Debug(string, snapcache.Fields) {}
func (l *recLogger) Info(string, snapcache.Fields)  {}
func (l *recLogger) Warn(string, snapcache.Fields)  {}
func (l *recLogger) Error(_ string, f snapcache.Fields) {
	l.mu.Lock()
	l.errors = append(l.errors, f)
	l.mu.Unlock()
}

type sleeps struct{ got []time.Duration }

func (s *sleeps) sleep(_ context.Context, d time.Duration) error {
	s.got = append(s.got, d)
	return nil
}

// failing returns fn that fails with err on every call and counts calls.
func failing(err error, calls *int) func(context.Context) (int, error) {
	return func(context.Context) (int, error) {
		*calls++
		return 0, err
	}
}

func TestAttemptsPerKind(t *testing.T) {
	cases := []struct {
		name  string
		err   error
		calls int
		delay time.Duration
	}{
		{"network", errors.New("Network request failed"), 3, time.Second},
		{"timeout", errors.New("TIMEOUT"), 2, 2 * time.Second},
		{"unknown", errors.New("weird"), 2, time.Second},
		{"validation", errors.New("VALIDATION_ERROR: x"), 1, 0},
		{"api", errors.New("HTTP_ERROR_500"), 1, 0},
		{"rate limit", errors.New("HTTP_ERROR_429"), 1, 0},
		{"auth", errors.New("HTTP_ERROR_401"), 1, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			calls := 0
			sl := &sleeps{}
			log := &recLogger{}
			_, err := Do(context.Background(), "op", failing(tc.err, &calls), WithSleep(sl.sleep), WithLogger(log))
			if err == nil {
				t.Fatal("expected error")
			}
			if calls != tc.calls {
				t.Fatalf("calls = %d, want %d", calls, tc.calls)
			}
			for _, d := range sl.got {
				if d != tc.delay {
					t.Fatalf("delay = %v, want %v", d, tc.delay)
				}
			}
			if len(sl.got) != tc.calls-1 {
				t.Fatalf("sleeps = %d, want %d", len(sl.got), tc.calls-1)
			}
			if len(log.errors) != 1 {
				t.Fatalf("terminal failure must be logged once, got %d", len(log.errors))
			}
			if _, ok := fault.As(err); !ok {
				t.Fatalf("error must be *fault.Error, got %T", err)
			}
			if !errors.Is(err, tc.err) {
				t.Fatalf("raw error must stay reachable")
			}
		})
	}
}

func TestSucceedsAfterTransient(t *testing.T) {
	calls := 0
	got, err := Do(context.Background(), "vision", func(context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", fault.NewNetwork("connection reset", nil)
		}
		return "ok", nil
	}, WithSleep((&sleeps{}).sleep))
	if err != nil || got != "ok" || calls != 3 {
		t.Fatalf("got %q err=%v calls=%d", got, err, calls)
	}
}

func TestBudgetFollowsLatestKind(t *testing.T) {
	// a network failure followed by a validation failure stops immediately
	calls := 0
	_, err := Do(context.Background(), "op", func(context.Context) (int, error) {
		calls++
		if calls == 1 {
			return 0, fault.NewNetwork("down", nil)
		}
		return 0, fault.NewValidation("Data is not an object", nil)
	}, WithSleep((&sleeps{}).sleep))
	if calls != 2 || fault.Classify(err) != fault.Validation {
		t.Fatalf("calls=%d kind=%v", calls, fault.Classify(err))
	}
}

func TestCustomPoliciesAndOnRetry(t *testing.T) {
	var attempts []int
	calls := 0
	_, err := Do(context.Background(), "op", failing(fault.New(fault.API, "x", nil), &calls),
		WithPolicies(fault.Policies{fault.API: {MaxRetries: 2}}),
		WithSleep((&sleeps{}).sleep),
		OnRetry(func(n int, _ *fault.Error) { attempts = append(attempts, n) }),
	)
	if err == nil || calls != 3 {
		t.Fatalf("calls = %d err=%v", calls, err)
	}
	if len(attempts) != 2 || attempts[0] != 1 || attempts[1] != 2 {
		t.Fatalf("OnRetry attempts = %v", attempts)
	}
}

func TestCanceledContextStopsRetrying(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	_, err := Do(ctx, "op", func(context.Context) (int, error) {
		calls++
		cancel()
		return 0, errors.New("Network request failed")
	})
	if err == nil || calls != 1 {
		t.Fatalf("calls = %d err=%v", calls, err)
	}
}

func TestDefaultSleepHonorsContext(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	start := time.Now()
	calls := 0
	_, err := Do(ctx, "op", failing(errors.New("TIMEOUT"), &calls))
	if err == nil {
		t.Fatal("expected error")
	}
	if time.Since(start) > time.Second {
		t.Fatalf("sleep ignored context cancellation")
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}

func TestTerminalLogFields(t *testing.T) {
	log := &recLogger{}
	err := Run(context.Background(), "generate_listings", func(context.Context) error {
		return fault.HTTP(500, "boom", nil)
	}, WithLogger(log), WithFields(snapcache.Fields{"function": "GenerateListings"}))
	if err == nil {
		t.Fatal("expected error")
	}
	f := log.errors[0]
	if f["kind"] != "API" || f["op"] != "generate_listings" || f["function"] != "GenerateListings" || f["attempts"] != 1 {
		t.Fatalf("unexpected fields %v", f)
	}
	if _, ok := f["timestamp"]; !ok {
		t.Fatalf("timestamp missing")
	}
}
