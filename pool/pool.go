// Package pool implements the request scheduler's core bookkeeping: the
// RequestPool that holds outstanding native requests alongside their
// completion callbacks, drives completion sweeps, and tears everything down
// cleanly on close.
package pool

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/joeycumines/go-msgswitch/ptp"
)

// completion is the "invoke-once" capability a request fires exactly once:
// a closure with the captured anchor (or nothing, for sends) and one-shot
// sender baked in. The pool never needs to know the buffer type behind it.
// ok is true when the native layer reported the request complete, false
// when the pool is tearing down and the request is being abandoned instead
// (Close calls every entry still held, sends included, with false). A false call must
// not attempt to read any native buffer state; it exists only to release
// whatever is waiting on the one-shot, the same "dropping the sender
// notifies the receiver" behaviour a oneshot channel gives for free.
type completion func(ok bool)

// Pool holds outstanding native requests together with their cancellable
// flags and completion callbacks, as three parallel slices sharing a single
// index — a completed index names all three at once. It is not safe for
// concurrent use; callers serialize access externally (see
// github.com/joeycumines/go-msgswitch/msgswitch.Switch).
type Pool struct {
	comm ptp.Comm
	log  zerolog.Logger

	requests    []ptp.Request
	cancelable  []bool
	completions []completion

	// wake is signalled whenever a new request is posted or the pool is
	// closed, so a goroutine blocked in Wait on an empty pool does not spin.
	wake   chan struct{}
	closed bool
	mu     sync.Mutex
}

// New constructs a Pool driving comm. log receives structured diagnostics
// for abort-class failures; the zero value (zerolog.Nop()) is silent.
func New(comm ptp.Comm, log zerolog.Logger) *Pool {
	return &Pool{
		comm: comm,
		log:  log,
		wake: make(chan struct{}, 1),
	}
}

func (p *Pool) signalWake() {
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

// reserveOne panics at the cast site if adding one more request would
// overflow the signed 32-bit count the native test/wait-some calls use.
// Posting that many concurrent requests on one pool is undefined per the
// spec and must fail loudly rather than silently truncate.
func (p *Pool) reserveOne() {
	if len(p.requests) >= math.MaxInt32 {
		p.log.Error().Int("outstanding", len(p.requests)).Msg("request pool index overflow")
		panic("pool: request count exceeds signed 32-bit index width")
	}
}

// insert appends a new entry across all three parallel slices.
func (p *Pool) insert(req ptp.Request, cancelable bool, onComplete completion) {
	p.requests = append(p.requests, req)
	p.cancelable = append(p.cancelable, cancelable)
	p.completions = append(p.completions, onComplete)
	p.signalWake()
}

// PostRecv posts a matched receive of msg into buf and stores
// (request, cancelable=true, onComplete). onComplete runs exactly once: with
// ok=true on the completion sweep that observes the receive finished, or
// with ok=false if the pool tears down first.
func (p *Pool) PostRecv(msg ptp.Message, buf []byte, onComplete func(ok bool)) {
	p.reserveOne()
	req := msg.Recv(buf)
	p.insert(req, true, onComplete)
}

// PostSend posts a nonblocking tagged send of buf to dest and stores
// (request, cancelable=false, onComplete). Sends are not cancellable: cancel
// on send is deprecated in the target protocol family.
//
// tag must fit in 16 bits; anything else is a programming error and aborts
// the process before any native call is made.
func (p *Pool) PostSend(dest ptp.Rank, tag uint32, buf []byte, onComplete func(ok bool)) {
	if tag > ptp.MaxTag {
		p.log.Error().Uint32("tag", tag).Msg("tag exceeds 16-bit range, aborting")
		panic(ptp.ErrTagOutOfRange)
	}
	p.reserveOne()
	req := p.comm.Send(dest, ptp.Tag(tag), buf)
	p.insert(req, false, onComplete)
}

// Probe performs a nonblocking matched probe against sel, passing through
// to the underlying Comm. It does not touch the pool's bookkeeping.
func (p *Pool) Probe(sel ptp.Selector) (ptp.Message, bool) {
	return p.comm.Probe(sel)
}

// flush invokes callbacks for the completed indices in the order the native
// layer reported them, then compacts the three parallel slices by
// swap-remove in descending index order so earlier swap-removes never
// invalidate a later index still to be removed.
func (p *Pool) flush(completed []int) {
	for _, idx := range completed {
		cb := p.completions[idx]
		cb(true)
	}

	sorted := append([]int(nil), completed...)
	sort.Sort(sort.Reverse(sort.IntSlice(sorted)))

	last := len(p.requests) - 1
	for _, idx := range sorted {
		p.requests[idx] = p.requests[last]
		p.cancelable[idx] = p.cancelable[last]
		p.completions[idx] = p.completions[last]
		p.requests = p.requests[:last]
		p.cancelable = p.cancelable[:last]
		p.completions = p.completions[:last]
		last--
	}
}

// Test performs a nonblocking completion sweep: if no requests are
// outstanding the native call is skipped entirely (some implementations
// misbehave on a zero-count test/wait), otherwise it delegates to the
// native test-some primitive and flushes whatever completed.
func (p *Pool) Test() {
	if len(p.requests) == 0 {
		return
	}
	completed := p.comm.TestSome(p.requests)
	if len(completed) > 0 {
		p.flush(completed)
	}
}

// Wait blocks until at least one outstanding request completes, or ctx is
// done, or the pool is empty (in which case it blocks on the wake channel
// instead of calling into the native layer, since an empty wait-some call
// is invalid for the reasons Test avoids it). A new post or a Close call
// wakes a Wait blocked on an empty pool.
func (p *Pool) Wait(ctx context.Context) {
	if len(p.requests) == 0 {
		select {
		case <-ctx.Done():
		case <-p.wake:
		}
		return
	}
	completed := p.comm.WaitSome(ctx, p.requests)
	if len(completed) > 0 {
		p.flush(completed)
	}
}

// Close tears the pool down: cancels every still-live cancellable request,
// waits for all requests (the native wait tolerates already-nil handles),
// frees any persistent handles that remain, and discards all entries. It is
// idempotent; a second call observes an already-empty pool and is a no-op
// beyond waking anyone blocked in Wait.
func (p *Pool) Close() {
	p.mu.Lock()
	alreadyClosed := p.closed
	p.closed = true
	p.mu.Unlock()
	if alreadyClosed {
		p.signalWake()
		return
	}

	for i, req := range p.requests {
		if p.cancelable[i] {
			p.comm.Cancel(req)
		}
	}

	p.comm.WaitAll(p.requests)

	for _, req := range p.requests {
		p.comm.Free(req)
	}

	for _, cb := range p.completions {
		cb(false)
	}

	p.requests = nil
	p.cancelable = nil
	p.completions = nil
	p.signalWake()
}

// Len reports the number of outstanding requests, chiefly for tests.
func (p *Pool) Len() int { return len(p.requests) }
