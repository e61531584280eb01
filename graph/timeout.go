package graph

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// runNodeWithTimeout runs one turn, bounding it by timeout when timeout > 0.
//
// The node receives a derived context; if that context's deadline expires
// the turn fails with NODE_TIMEOUT regardless of what the node returned.
// Cancellation of the parent context is reported as the parent's error.
func runNodeWithTimeout[S any](ctx context.Context, node Node[S], rc *RunContext[S], timeout time.Duration) NodeResult {
	if timeout <= 0 {
		return node.Run(ctx, rc)
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	result := node.Run(timeoutCtx, rc)

	if ctx.Err() == nil && errors.Is(timeoutCtx.Err(), context.DeadlineExceeded) {
		result.Err = &EngineError{
			Message: fmt.Sprintf("agent %s exceeded timeout of %v", rc.NodeID, timeout),
			Code:    CodeNodeTimeout,
			Cause:   context.DeadlineExceeded,
		}
	}
	return result
}
