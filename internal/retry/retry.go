// Package retry wraps persistence calls made at a component boundary: a
// transient failure is retried once after a backoff, a second failure is
// reported as apperr.KindUnavailable.
package retry

import (
	"context"
	"time"

	"campus-hub/internal/apperr"
)

type Policy struct {
	Backoff time.Duration
}

func New(backoff time.Duration) Policy {
	return Policy{Backoff: backoff}
}

// Do runs fn at most twice. Domain errors are returned unchanged. A failure
// after ctx has ended is not retried and is reported as unavailable.
func (p Policy) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	err := fn(ctx)
	if err == nil || apperr.IsDomain(err) {
		return err
	}
	if ctx.Err() != nil {
		return apperr.Unavailable(op, err)
	}

	t := time.NewTimer(p.Backoff)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return apperr.Unavailable(op, ctx.Err())
	case <-t.C:
	}

	err = fn(ctx)
	if err == nil || apperr.IsDomain(err) {
		return err
	}
	return apperr.Unavailable(op, err)
}

// Value is Do for calls that produce a result.
func Value[T any](ctx context.Context, p Policy, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := p.Do(ctx, op, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}
