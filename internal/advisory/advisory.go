// Package advisory gives best-effort external calls a uniform contract:
// failures are logged and swallowed, never propagated. Authoritative
// calls stay un-wrapped so their errors abort the workflow normally.
package advisory

import (
	"context"

	"go.uber.org/zap"
)

// Run executes fn and logs any failure at warn level. The parent
// workflow continues regardless of the outcome.
func Run(ctx context.Context, log *zap.Logger, op string, fn func(context.Context) error) {
	if fn == nil {
		return
	}
	if err := fn(ctx); err != nil {
		log.Warn("advisory step failed",
			zap.String("op", op),
			zap.Error(err),
		)
	}
}
