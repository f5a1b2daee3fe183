// Package retry runs an operation under the per-kind retry budget from
// package fault: transient failures (network, timeout, unknown) are retried
// sequentially after a fixed delay, everything else surfaces at once.
package retry

import (
	"context"
	"time"

	"github.com/unkn0wn-root/snapcache"
	"github.com/unkn0wn-root/snapcache/fault"
)

type config struct {
	policies fault.Policies
	logger   snapcache.Logger
	sleep    func(context.Context, time.Duration) error
	onRetry  func(attempt int, err *fault.Error)
	fields   snapcache.Fields
}

type Option func(*config)

// WithPolicies replaces the retry table; kinds missing from p use the
// built-in policy.
func WithPolicies(p fault.Policies) Option { return func(c *config) { c.policies = p } }

func WithLogger(l snapcache.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithSleep swaps the wait between attempts (tests use a no-op).
func WithSleep(f func(context.Context, time.Duration) error) Option {
	return func(c *config) {
		if f != nil {
			c.sleep = f
		}
	}
}

// OnRetry is called before each wait with the 1-based retry number.
func OnRetry(f func(attempt int, err *fault.Error)) Option {
	return func(c *config) { c.onRetry = f }
}

// WithFields adds context to the terminal failure log entry.
func WithFields(f snapcache.Fields) Option { return func(c *config) { c.fields = f } }

// Do calls fn until it succeeds or the budget for the kind of its latest
// failure is spent. The returned error is always a *fault.Error wrapping
// the last failure, and it is logged exactly once.
func Do[T any](ctx context.Context, op string, fn func(context.Context) (T, error), opts ...Option) (T, error) {
	cfg := config{logger: snapcache.NopLogger{}, sleep: sleep}
	for _, o := range opts {
		o(&cfg)
	}

	retries := 0
	for {
		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		fe := fault.Wrap(err)
		pol := cfg.policies.For(fe.Kind)

		if retries >= pol.MaxRetries || ctx.Err() != nil {
			logFailure(cfg, op, retries+1, fe)
			var zero T
			return zero, fe
		}

		retries++
		cfg.logger.Debug("retrying", snapcache.Fields{
			"op":          op,
			"attempt":     retries,
			"max_retries": pol.MaxRetries,
			"kind":        fe.Kind.String(),
			"delay":       pol.Delay.String(),
		})
		if cfg.onRetry != nil {
			cfg.onRetry(retries, fe)
		}
		if cfg.sleep(ctx, pol.Delay) != nil {
			logFailure(cfg, op, retries, fe)
			var zero T
			return zero, fe
		}
	}
}

// Run is Do for operations without a result.
func Run(ctx context.Context, op string, fn func(context.Context) error, opts ...Option) error {
	_, err := Do(ctx, op, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	}, opts...)
	return err
}

func logFailure(cfg config, op string, attempts int, fe *fault.Error) {
	f := snapcache.Fields{
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		"op":        op,
		"attempts":  attempts,
	}
	for k, v := range fe.Fields() {
		f[k] = v
	}
	for k, v := range cfg.fields {
		f[k] = v
	}
	cfg.logger.Error("operation failed", f)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
