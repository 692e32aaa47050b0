package adapter

import (
	stdcontext "context"
	"fmt"
	"time"
)

// PollUntil calls probe right away and then once per interval until it
// reports true. With maxAttempts > 0 it gives up after that many probes and
// returns ErrLibraryUnavailable; otherwise it runs until ctx is done.
func PollUntil(ctx stdcontext.Context, interval time.Duration, maxAttempts int, probe func(stdcontext.Context) bool) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for attempt := 1; ; attempt++ {
		if probe(ctx) {
			return nil
		}
		if maxAttempts > 0 && attempt >= maxAttempts {
			return fmt.Errorf("gave up after %d attempts: %w", attempt, ErrLibraryUnavailable)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
