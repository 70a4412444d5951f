package command

import (
	"context"

	"github.com/prepwise/progression-engine/pkg/retry"
)

// runTx runs a store transaction once, or under r when the caller opted into
// contention retries. A nil r surfaces contention to the caller unchanged.
func runTx[T any](ctx context.Context, r *retry.Retrier, fn func(ctx context.Context) (T, error)) (T, error) {
	if r == nil {
		return fn(ctx)
	}
	return retry.DoWithData(ctx, r, fn)
}
