package async

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/followup/pkg/utils/logging"
)

// Dispatch executes a best-effort handler in a new goroutine. The handler
// gets a background context that keeps the caller's logger, so it outlives
// the request that triggered it. Errors and panics are logged, never returned.
func Dispatch(ctx context.Context, handler func(ctx context.Context) error) {
	bgCtx := logging.With(context.Background(), logging.From(ctx))

	go func() {
		defer func() {
			if r := recover(); r != nil {
				logging.From(bgCtx).Error("panic in async handler", "panic", r)
			}
		}()

		if err := handler(bgCtx); err != nil {
			logging.From(bgCtx).Warn("async handler failed", "error", goerr.Unwrap(err))
		}
	}()
}
