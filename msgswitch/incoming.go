package msgswitch

import (
	"context"
	"time"

	"github.com/joeycumines/go-msgswitch/anchor"
	"github.com/joeycumines/go-msgswitch/codec"
	"github.com/joeycumines/go-msgswitch/pool"
	"github.com/joeycumines/go-msgswitch/ptp"
)

// Incoming is a stream of (status, per-message future) pairs: the recv
// adapter. Within a single Incoming, the order futures are produced in
// matches the order the native layer delivered probe matches; completions
// of those futures may resolve out of order. Callers needing in-order
// delivery should use Buffered.
//
// Multiple Incoming streams sharing one selector are permitted but not
// recommended: probes race and messages are distributed non-deterministically.
type Incoming[T anchor.Elem, M any] struct {
	link           Link
	decoder        codec.Decoder[T, M]
	source         ptp.Selector
	backoffInitial time.Duration
	backoffMax     time.Duration
}

// incomingOptions holds configuration for Incoming construction.
type incomingOptions struct {
	backoffInitial time.Duration
	backoffMax     time.Duration
}

func defaultIncomingOptions() incomingOptions {
	return incomingOptions{backoffInitial: backoffInitial, backoffMax: backoffMax}
}

// IncomingOption configures an Incoming instance.
type IncomingOption interface {
	applyIncoming(*incomingOptions)
}

type incomingOptionFunc func(*incomingOptions)

func (f incomingOptionFunc) applyIncoming(o *incomingOptions) { f(o) }

// WithBackoff overrides the initial and maximum delay Next sleeps between
// unmatched probes. Without this option an Incoming uses backoffInitial and
// backoffMax.
func WithBackoff(initial, maxDelay time.Duration) IncomingOption {
	return incomingOptionFunc(func(o *incomingOptions) {
		o.backoffInitial = initial
		o.backoffMax = maxDelay
	})
}

func resolveIncomingOptions(opts []IncomingOption) incomingOptions {
	o := defaultIncomingOptions()
	for _, opt := range opts {
		opt.applyIncoming(&o)
	}
	return o
}

// Result carries a decoded message's status alongside its value or the
// error that prevented it from arriving.
type Result[M any] struct {
	Status codec.Status
	Value  M
	Err    error
}

// backoffInitial and backoffMax bound how long Next sleeps between unmatched
// probes by default. The delay
// starts tight and caps quickly: native probes are cheap, so there is no
// need for the long backoffs a network retry loop would use.
const (
	backoffInitial = 50 * time.Microsecond
	backoffMax     = 2 * time.Millisecond
)

// Next blocks until either a message matching the stream's selector is
// probed and a receive posted (ok=true, with the status and a Future for
// the decoded message), or the underlying Switch is closed (ok=false), or
// ctx is cancelled (err set).
func (in *Incoming[T, M]) Next(ctx context.Context) (status codec.Status, future Future[M], ok bool, err error) {
	backoff := in.backoffInitial
	for {
		var (
			matched bool
			closed  bool
			st      codec.Status
			fut     Future[M]
		)

		in.link.withPool(func(p *pool.Pool) {
			if p == nil {
				closed = true
				return
			}
			msg, found := p.Probe(in.source)
			if !found {
				return
			}
			matched = true
			native := msg.Status()
			// native.Count is in bytes; codec.Status.Count is in elements of T.
			var zero T
			elemSize := len(anchor.Bytes([]T{zero}))
			st = codec.Status{Source: int32(native.Source), Tag: uint16(native.Tag), Count: native.Count / elemSize}
			port := &recvPort[T]{p: p, msg: msg, status: st}
			fut = newFuture(in.decoder.Decode(port))
		})

		if closed {
			return codec.Status{}, Future[M]{}, false, nil
		}
		if matched {
			return st, fut, true, nil
		}

		select {
		case <-ctx.Done():
			return codec.Status{}, Future[M]{}, false, ctx.Err()
		case <-time.After(backoff):
			if backoff < in.backoffMax {
				backoff *= 2
				if backoff > in.backoffMax {
					backoff = in.backoffMax
				}
			}
		}
	}
}

// Buffered consumes in, keeping at most n receives outstanding at once while
// preserving probe order in its output: the same backpressure role
// futures::StreamExt::buffered(n) plays. It pulls up to n
// items ahead, delivers them on out in the order they were probed (not the
// order they complete), and refills the window as each head item resolves.
// out is closed once the stream ends, ctx is cancelled, or an error occurs
// (the last Result sent carries Err).
func Buffered[T anchor.Elem, M any](ctx context.Context, in *Incoming[T, M], n int) <-chan Result[M] {
	if n < 1 {
		n = 1
	}
	out := make(chan Result[M])

	go func() {
		defer close(out)

		type pending struct {
			status codec.Status
			fut    Future[M]
		}
		window := make([]pending, 0, n)
		streamDone := false

		advance := func() bool {
			status, fut, ok, err := in.Next(ctx)
			if err != nil {
				out <- Result[M]{Err: err}
				streamDone = true
				return false
			}
			if !ok {
				streamDone = true
				return false
			}
			window = append(window, pending{status: status, fut: fut})
			return true
		}

		for !streamDone && len(window) < n {
			if !advance() {
				break
			}
		}

		for len(window) > 0 {
			head := window[0]
			window = window[1:]

			v, err := head.fut.Wait(ctx)
			if err != nil {
				out <- Result[M]{Status: head.status, Err: err}
				return
			}
			out <- Result[M]{Status: head.status, Value: v}

			if !streamDone {
				advance()
			}
		}
	}()

	return out
}
