package av

import (
	"context"
	"sync"
)

// Operation is the completion signal for an asynchronous room transition.
// SelectSourceAsync, PowerOn and PowerOff return one as soon as the request
// has been accepted; Done closes when the hooks have finished.
type Operation struct {
	done chan struct{}

	mu     sync.Mutex
	status Status
	err    error
}

func newOperation() *Operation {
	return &Operation{
		done:   make(chan struct{}),
		status: StatusPending,
	}
}

// finishedOperation returns an operation that is already done.
func finishedOperation(status Status, err error) *Operation {
	op := newOperation()
	op.finish(status, err)
	return op
}

func (o *Operation) finish(status Status, err error) {
	o.mu.Lock()
	o.status = status
	o.err = err
	o.mu.Unlock()
	close(o.done)
}

// Done returns a channel that is closed when the operation finishes.
func (o *Operation) Done() <-chan struct{} {
	return o.done
}

// Status returns StatusPending until the operation finishes, then one of
// StatusComplete, StatusFailed or StatusNoChange.
func (o *Operation) Status() Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.status
}

// Err returns the hook failure, wrapped in ErrHookFailed, or nil.
func (o *Operation) Err() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.err
}

// Wait blocks until the operation finishes or ctx is done.
func (o *Operation) Wait(ctx context.Context) error {
	select {
	case <-o.done:
		return o.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}
