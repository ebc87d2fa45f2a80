// Package msgswitch implements the request scheduler: Switch, the
// single-owner holder of a request pool that drives completion sweeps, and
// Link, a cheap-to-clone weak handle applications use to post sends and
// receives against it.
package msgswitch

import (
	"context"
	"sync"
	"sync/atomic"
	"weak"

	"github.com/rs/zerolog"

	"github.com/joeycumines/go-msgswitch/anchor"
	"github.com/joeycumines/go-msgswitch/codec"
	"github.com/joeycumines/go-msgswitch/pool"
	"github.com/joeycumines/go-msgswitch/ptp"
)

// Switch is the single-owner holder of a RequestPool. It is never cloned;
// applications obtain a Link to interact with it. A Switch that is never
// driven by Run never completes anything posted against it — the native
// layer offers no readiness notifications of its own, so something has to
// repeatedly ask it whether anything finished.
type Switch struct {
	pool *pool.Pool
	log  zerolog.Logger

	// poolMu serializes all access to pool across goroutines; ownerMu plus
	// inCall/ownerGID detect a same-goroutine re-entrant call so it panics
	// instead of deadlocking on poolMu.
	poolMu   sync.Mutex
	ownerMu  sync.Mutex
	inCall   bool
	ownerGID int64

	closed  atomic.Bool
	running atomic.Bool
}

// New constructs a Switch driving comm.
func New(comm ptp.Comm, opts ...Option) *Switch {
	o := resolveSwitchOptions(opts)
	return &Switch{
		pool: pool.New(comm, o.log),
		log:  o.log,
	}
}

// withPool runs f(pool) if the Switch is open, or f(nil) if it has been
// closed — the "orphan" semantics dependent operations rely on. It panics
// if called re-entrantly from the same goroutine (e.g. from inside a
// completion callback).
func (s *Switch) withPool(f func(*pool.Pool)) {
	gid := goroutineID()

	s.ownerMu.Lock()
	reentrant := s.inCall && s.ownerGID == gid
	s.ownerMu.Unlock()
	if reentrant {
		panic(reentrantBorrowMsg)
	}

	s.poolMu.Lock()
	s.ownerMu.Lock()
	s.inCall = true
	s.ownerGID = gid
	s.ownerMu.Unlock()

	defer func() {
		s.ownerMu.Lock()
		s.inCall = false
		s.ownerMu.Unlock()
		s.poolMu.Unlock()
	}()

	if s.closed.Load() {
		f(nil)
		return
	}
	f(s.pool)
}

// requestClose sets the shutdown flag and drains the pool: cancels every
// cancellable outstanding request, waits for the rest, frees remaining
// handles, and abandons their completions. It is idempotent. Draining runs
// through withPool so it is serialized against every other pool access
// (withPool's own calls, and Run's Wait loop) the same way they are
// serialized against each other — pool.Pool is not safe for unsynchronized
// concurrent access, and Close mutates the same slices flush does.
func (s *Switch) requestClose() {
	s.withPool(func(p *pool.Pool) {
		s.closed.Store(true)
		if p != nil {
			p.Close()
		}
	})
}

// Closed reports whether the Switch has been closed.
func (s *Switch) Closed() bool { return s.closed.Load() }

// Run drives the Switch's completion sweeps until ctx is done or the Switch
// is closed. Only one Run may be active at a time. Exactly one of (ctx done,
// Switch closed) terminates Run; in both cases it returns after performing
// (or observing) the drain requestClose performs.
func (s *Switch) Run(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer s.running.Store(false)

	gid := goroutineID()
	for {
		if s.closed.Load() {
			return nil
		}
		select {
		case <-ctx.Done():
			s.requestClose()
			return ctx.Err()
		default:
		}

		// Completion callbacks run inside pool.Wait; marking this goroutine
		// as the pool's holder lets withPool detect a callback re-entering it.
		s.poolMu.Lock()
		s.ownerMu.Lock()
		s.inCall = true
		s.ownerGID = gid
		s.ownerMu.Unlock()
		closed := s.closed.Load()
		if !closed {
			s.pool.Wait(ctx)
		}
		s.ownerMu.Lock()
		s.inCall = false
		s.ownerMu.Unlock()
		s.poolMu.Unlock()
	}
}

// Link returns a cheap-to-clone weak handle to the Switch.
func (s *Switch) Link() Link {
	return Link{ref: weak.Make(s)}
}

// Link is a cheap-to-clone, non-owning handle to a Switch. Operations
// issued through a Link whose Switch is already gone resolve benignly: a
// send future becomes immediately ready, an incoming stream emits
// end-of-stream.
type Link struct {
	ref weak.Pointer[Switch]
}

// Close sets the shutdown flag on the underlying Switch, if it is still
// alive. It is idempotent and a no-op if the Switch is already gone.
func (l Link) Close() {
	if s := l.ref.Value(); s != nil {
		s.requestClose()
	}
}

// withPool runs f(pool) if the Switch is alive and open, f(nil) otherwise.
func (l Link) withPool(f func(*pool.Pool)) {
	s := l.ref.Value()
	if s == nil {
		f(nil)
		return
	}
	s.withPool(f)
}

// PairWith binds a decoder and encoder to this Link, producing the entry
// point for sends and incoming streams.
func PairWith[T anchor.Elem, M any](l Link, dec codec.Decoder[T, M], enc codec.Encoder[T, M]) LinkedCodec[T, M] {
	return LinkedCodec[T, M]{link: l, decoder: dec, encoder: enc}
}

// PairWithBytes binds the trivial byte codec to l.
func PairWithBytes(l Link) LinkedCodec[byte, []byte] {
	bc := codec.ByteCodec{}
	return PairWith[byte, []byte](l, bc, bc)
}

// LinkedCodec is a Link bound to a Decoder and Encoder: the entry point for
// posting sends and opening incoming streams.
type LinkedCodec[T anchor.Elem, M any] struct {
	link    Link
	decoder codec.Decoder[T, M]
	encoder codec.Encoder[T, M]
}

// Close closes the underlying Link's Switch.
func (lc LinkedCodec[T, M]) Close() { lc.link.Close() }

// Send posts msg to dest, encoded via the bound Encoder. If the underlying
// Switch is already gone, the returned Future resolves immediately: the
// orphan semantics a dropped Switch guarantees.
func (lc LinkedCodec[T, M]) Send(dest ptp.Rank, msg M) Future[struct{}] {
	var out Future[struct{}]
	lc.link.withPool(func(p *pool.Pool) {
		if p == nil {
			out = ready(struct{}{})
			return
		}
		port := &sendPort[T]{p: p, dest: dest}
		out = newFuture(lc.encoder.Encode(msg, port))
	})
	return out
}

// Incoming opens a stream of messages matching source.
func (lc LinkedCodec[T, M]) Incoming(source ptp.Selector, opts ...IncomingOption) *Incoming[T, M] {
	o := resolveIncomingOptions(opts)
	return &Incoming[T, M]{
		link:           lc.link,
		decoder:        lc.decoder,
		source:         source,
		backoffInitial: o.backoffInitial,
		backoffMax:     o.backoffMax,
	}
}
