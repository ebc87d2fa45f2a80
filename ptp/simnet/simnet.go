// Package simnet implements an in-process fake of ptp.Comm, standing in for
// a real native messaging layer: per-rank mailboxes are mutex-guarded slices,
// and every send, probe and receive completes synchronously within the call.
// It exists purely for tests and demos — there is no real Go binding for the
// native protocol family this module adapts.
package simnet

import (
	"context"
	"sync"

	"github.com/joeycumines/go-msgswitch/ptp"
)

// envelope is one message in flight between two ranks.
type envelope struct {
	from ptp.Rank
	tag  ptp.Tag
	data []byte
}

// Network is a shared fake transport connecting a fixed set of ranks. Create
// one with New, then obtain each rank's Comm with Rank.
type Network struct {
	mu    sync.Mutex
	inbox [][]envelope // inbox[r] holds messages addressed to rank r, in send order
	size  int
}

// New creates a Network with n participating ranks.
func New(n int) *Network {
	return &Network{inbox: make([][]envelope, n), size: n}
}

// Rank returns the ptp.Comm for participant r.
func (n *Network) Rank(r ptp.Rank) ptp.Comm {
	return &comm{net: n, self: r}
}

func (n *Network) deliver(to ptp.Rank, e envelope) {
	n.mu.Lock()
	n.inbox[to] = append(n.inbox[to], e)
	n.mu.Unlock()
}

// request is simnet's concrete ptp.Request: sends complete immediately
// (delivery already happened synchronously into the destination's inbox),
// receives complete once a matching envelope has been copied into the
// caller's buffer.
type request struct {
	done bool
	// canceled records that Cancel was called on this request. Every simnet
	// request is already complete when it is created, so the flag has no
	// other effect.
	canceled bool
}

type comm struct {
	net  *Network
	self ptp.Rank
}

func (c *comm) Rank() ptp.Rank { return c.self }
func (c *comm) Size() int      { return c.net.size }

// message is the handle Probe hands back for a matched-but-unconsumed
// envelope.
type message struct {
	c   *comm
	idx int
	st  ptp.Status
}

func (m *message) Status() ptp.Status { return m.st }

func (m *message) Recv(buf []byte) ptp.Request {
	m.c.net.mu.Lock()
	inbox := m.c.net.inbox[m.c.self]
	e := inbox[m.idx]
	m.c.net.inbox[m.c.self] = append(inbox[:m.idx], inbox[m.idx+1:]...)
	m.c.net.mu.Unlock()

	n := copy(buf, e.data)
	_ = n
	return &request{done: true}
}

func (c *comm) Probe(sel ptp.Selector) (ptp.Message, bool) {
	c.net.mu.Lock()
	defer c.net.mu.Unlock()

	inbox := c.net.inbox[c.self]
	for i, e := range inbox {
		if sel.Source != ptp.AnyRank && sel.Source != e.from {
			continue
		}
		if sel.Tag != ptp.AnyTag && ptp.Tag(sel.Tag) != e.tag {
			continue
		}
		return &message{c: c, idx: i, st: ptp.Status{Source: e.from, Tag: e.tag, Count: len(e.data)}}, true
	}
	return nil, false
}

func (c *comm) Send(dest ptp.Rank, tag ptp.Tag, buf []byte) ptp.Request {
	cp := make([]byte, len(buf))
	copy(cp, buf)
	c.net.deliver(dest, envelope{from: c.self, tag: tag, data: cp})
	return &request{done: true}
}

// TestSome reports every request already marked done; simnet requests
// complete synchronously at post time (sends) or at Recv time (receives),
// so a completion sweep always finds everything outstanding finished.
func (c *comm) TestSome(reqs []ptp.Request) []int {
	var completed []int
	for i, r := range reqs {
		if r == nil {
			continue
		}
		if req, ok := r.(*request); ok && req.done {
			completed = append(completed, i)
		}
	}
	return completed
}

// WaitSome behaves identically to TestSome here: simnet never has a request
// that is outstanding-but-incomplete, since both Send and Recv resolve
// synchronously. It still honours ctx so a caller racing a shutdown signal
// against an otherwise-empty completion set does not block forever.
func (c *comm) WaitSome(ctx context.Context, reqs []ptp.Request) []int {
	if completed := c.TestSome(reqs); len(completed) > 0 {
		return completed
	}
	select {
	case <-ctx.Done():
		return nil
	default:
		return nil
	}
}

func (c *comm) WaitAll(reqs []ptp.Request) {
	// every simnet request is already complete by the time it is visible
	// to WaitAll; nothing to block on.
}

func (c *comm) Cancel(req ptp.Request) {
	if r, ok := req.(*request); ok {
		r.canceled = true
	}
}

func (c *comm) Free(req ptp.Request) {}
