package completion

import (
	"context"
	"time"
)

// Pollable is anything whose completion can be checked without blocking.
type Pollable interface {
	IsComplete() (bool, error)
}

// Poll returns the indexes of the pollables that are complete. Pollables
// that fail to report are skipped.
func Poll(pollables ...Pollable) []int {
	ready := make([]int, 0, len(pollables))
	for i, p := range pollables {
		if ok, err := p.IsComplete(); err == nil && ok {
			ready = append(ready, i)
		}
	}
	return ready
}

// WaitAll polls every pollable with the given interval until all are
// complete, one of them fails to report, or ctx is done.
func WaitAll(ctx context.Context, interval time.Duration, pollables ...Pollable) error {
	pending := append([]Pollable(nil), pollables...)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		remaining := pending[:0]
		for _, p := range pending {
			ok, err := p.IsComplete()
			if err != nil {
				return err
			}
			if !ok {
				remaining = append(remaining, p)
			}
		}
		pending = remaining
		if len(pending) == 0 {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
