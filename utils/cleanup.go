package utils

import (
	"context"
	"time"
)

// Sweeper deactivates expired grants and reports how many it touched.
type Sweeper interface {
	ExpireGrants(ctx context.Context) (int64, error)
}

// StartGrantSweeper periodically expires stale bonus grants until ctx is done. Reads
// already ignore expired grants, so the sweep only keeps the active set small.
func StartGrantSweeper(ctx context.Context, s Sweeper, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			n, err := s.ExpireGrants(ctx)
			if err != nil {
				Sugar.Warnf("grant sweeper failed: %v", err)
				continue
			}
			if n > 0 {
				Sugar.Infof("grant sweeper deactivated %d expired grants", n)
			}
		}
	}()
}
