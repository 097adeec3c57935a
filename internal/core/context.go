package core

import (
	"context"
	"fmt"
)

// ContextCheckInterval is how often (in rows) the file operations check for
// cancellation.
var ContextCheckInterval = 1000

// checkContext returns the context error, tagged with the operation and the
// input line, when ctx is done. It only looks every ContextCheckInterval rows.
func checkContext(ctx context.Context, op string, row, line int) error {
	if ContextCheckInterval > 1 && row%ContextCheckInterval != 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s cancelled at line %d: %w", op, line, err)
	}
	return nil
}
