package app

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

const revocationCleanupInterval = 1 * time.Hour

// startRevocationCleanup periodically forgets revocations of tokens that
// have expired anyway.
func (a *App) startRevocationCleanup(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(revocationCleanupInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				a.pruneRevocations("scheduled")
			}
		}
	}()
}

func (a *App) pruneRevocations(reason string) int {
	maxAge := time.Duration(a.cfg.Auth.TokenExpirySecs) * time.Second
	removed := a.tokens.CleanupExpiredRevocations(maxAge)
	if removed > 0 {
		log.Info().
			Str("reason", reason).
			Int("removed", removed).
			Msg("expired token revocations pruned")
	}
	return removed
}
