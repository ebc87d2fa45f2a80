package msgswitch

import (
	"runtime"

	"github.com/joeycumines/go-msgswitch/anchor"
	"github.com/joeycumines/go-msgswitch/codec"
	"github.com/joeycumines/go-msgswitch/pool"
	"github.com/joeycumines/go-msgswitch/ptp"
)

// recvPort implements codec.RecvPort[T] over a live pool and a
// already-probed message. It is the Go analogue of incoming.rs's
// RecvIntoImpl: a one-shot-producing adapter the pool never needs to know
// the buffer's element type to drive.
type recvPort[T anchor.Elem] struct {
	p      *pool.Pool
	msg    ptp.Message
	status codec.Status
}

func (r *recvPort[T]) Status() codec.Status { return r.status }

func (r *recvPort[T]) Recv(buf []T) <-chan []T {
	owner := anchor.Slice[T](buf)
	a, view := owner.IntoAnchor()
	raw := anchor.Bytes(view)

	ch := make(chan []T, 1)
	r.p.PostRecv(r.msg, raw, func(ok bool) {
		if ok {
			ch <- a.Reassemble()
		}
		close(ch)
	})
	return ch
}

// sendPort implements codec.SendPort[T] over a live pool and destination
// rank. The Go analogue of send.rs's SendFromImpl.
type sendPort[T anchor.Elem] struct {
	p    *pool.Pool
	dest ptp.Rank
}

func (s *sendPort[T]) Send(buf []T, tag uint32) <-chan struct{} {
	owner := anchor.Slice[T](buf)
	view := owner.ReadableView()
	raw := anchor.Bytes(view)

	ch := make(chan struct{}, 1)
	s.p.PostSend(s.dest, tag, raw, func(ok bool) {
		// pins the send buffer's backing array alive for exactly as long
		// as the native send is outstanding; raw aliases it but is not
		// otherwise retained once Send returns.
		runtime.KeepAlive(view)
		if ok {
			ch <- struct{}{}
		}
		close(ch)
	})
	return ch
}
