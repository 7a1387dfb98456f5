package scenario

import (
	"context"
	"fmt"
	"strings"
	"time"

	skew "skew"
)

// DefaultWaitTimeout bounds every stage wait.
const DefaultWaitTimeout = 20 * time.Second

// DefaultPollInterval is how often a wait re-evaluates its condition.
const DefaultPollInterval = 250 * time.Millisecond

// Condition is a predicate polled by WaitUntil. A non-nil error aborts
// the wait immediately; false keeps polling.
type Condition func(ctx context.Context) (bool, error)

// WaitUntil polls cond every interval until it holds, the timeout
// elapses, or ctx is cancelled. Timeout yields ErrStageTimeout wrapped
// with the description.
func WaitUntil(ctx context.Context, timeout, interval time.Duration, description string, cond Condition) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		ok, err := cond(ctx)
		if err != nil {
			return fmt.Errorf("wait for %s: %w", description, err)
		}
		if ok {
			return nil
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %s after %v", skew.ErrStageTimeout, description, timeout)
		case <-ticker.C:
		}
	}
}

// waitForPageText waits until the page text contains substring. Toasts
// surface this way: they are transient DOM nodes, and matching the
// whole page text outlives their exact markup.
func waitForPageText(ctx context.Context, s Surface, timeout, interval time.Duration, substring string) error {
	return WaitUntil(ctx, timeout, interval, fmt.Sprintf("page text %q", substring), func(ctx context.Context) (bool, error) {
		text, err := s.PageText(ctx)
		if err != nil {
			// The page may be mid-navigation; keep polling.
			return false, nil
		}
		return strings.Contains(text, substring), nil
	})
}

// waitForRowCell waits until the given cell of the table row carrying
// rowText contains substring. The row may not exist yet when the wait
// starts, so lookup errors keep polling.
func waitForRowCell(ctx context.Context, s Surface, timeout, interval time.Duration, rowText string, cell int, substring string) error {
	description := fmt.Sprintf("row %q cell %d to contain %q", rowText, cell, substring)
	return WaitUntil(ctx, timeout, interval, description, func(ctx context.Context) (bool, error) {
		text, err := s.RowCellText(ctx, rowText, cell)
		if err != nil {
			return false, nil
		}
		return strings.Contains(text, substring), nil
	})
}
