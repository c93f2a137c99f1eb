package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// EvalTimeout is the hard limit for a single evaluation.
const EvalTimeout = 5 * time.Second

// ErrSuperseded is returned when a newer evaluation started while this one
// was running.
var ErrSuperseded = errors.New("evaluation superseded by newer request")

// evalResult passes evaluation output through the result channel.
type evalResult struct {
	result *EvalResult
	err    error
}

// waitWithTimeout waits for a result from ch, but gives up after
// EvalTimeout or when ctx is done. A generation counter discards results
// from evaluations that a newer call has overtaken.
//
// On timeout the goroutine may still be running; the generation check
// discards its result when it eventually completes.
func waitWithTimeout(
	ctx context.Context,
	ch <-chan evalResult,
	gen uint64,
	mu *sync.Mutex,
	currentGen *uint64,
) (*EvalResult, error) {
	timer := time.NewTimer(EvalTimeout)
	defer timer.Stop()

	select {
	case res := <-ch:
		mu.Lock()
		current := *currentGen
		mu.Unlock()

		if gen != current {
			return nil, ErrSuperseded
		}
		return res.result, res.err

	case <-timer.C:
		return nil, fmt.Errorf("evaluation timed out after %s", EvalTimeout)

	case <-ctx.Done():
		return nil, fmt.Errorf("evaluation cancelled: %w", ctx.Err())
	}
}
