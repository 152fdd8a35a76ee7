package server

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// runSession steps a session once per interval until it completes, fails or
// ctx is cancelled by Pause, Reset or Shutdown.
func runSession(ctx context.Context, sm *SessionManager, id string, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Debug("Session worker stopped", "session_id", id)
			return
		case <-ticker.C:
			done, err := sm.tick(ctx, id)
			if err != nil {
				if !errors.Is(err, ErrSessionNotFound) && !errors.Is(err, errTickDropped) {
					slog.Error("Session step failed", "session_id", id, "error", err)
				}
				return
			}
			if done {
				return
			}
		}
	}
}
