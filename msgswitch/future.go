package msgswitch

import "context"

// Future delivers at most one value: a plain buffered channel in
// place of a lazy, poll-based Future/oneshot-receiver pair, the idiomatic Go
// one-shot primitive (grounded on go-eventloop's simple promise.ToChannel(),
// not its full Promise/A+ ChainedPromise).
type Future[T any] struct {
	ch <-chan T
}

// newFuture wraps ch as a Future. ch must be buffered by at least 1 and
// written to at most once; it may be closed without a write when the pool
// abandons the request at teardown.
func newFuture[T any](ch <-chan T) Future[T] { return Future[T]{ch: ch} }

// ready returns an already-resolved Future, for the orphan/benign-complete
// case: an operation issued against a Switch that is already gone.
func ready[T any](v T) Future[T] {
	ch := make(chan T, 1)
	ch <- v
	return Future[T]{ch: ch}
}

// Chan exposes the underlying channel for use in a select statement.
func (f Future[T]) Chan() <-chan T { return f.ch }

// Wait blocks until the value is delivered or ctx is done. If the channel is
// closed without a value (the request was abandoned at teardown), Wait
// returns context.Canceled.
func (f Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case v, ok := <-f.ch:
		if !ok {
			var zero T
			return zero, context.Canceled
		}
		return v, nil
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
