package pool_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeycumines/go-msgswitch/pool"
	"github.com/joeycumines/go-msgswitch/ptp"
)

// fakeRequest is a controllable ptp.Request for exercising pool bookkeeping
// independent of any particular native transport.
type fakeRequest struct{ id int }

// fakeComm lets a test decide exactly which requests are "complete" at any
// moment and in what order TestSome reports them, which simnet (always
// synchronous) cannot exercise.
type fakeComm struct {
	mu        sync.Mutex
	created   []*fakeRequest
	completed map[*fakeRequest]bool
	order     []*fakeRequest
	canceled  map[*fakeRequest]bool
	freed     map[*fakeRequest]bool
}

func newFakeComm() *fakeComm {
	return &fakeComm{
		completed: map[*fakeRequest]bool{},
		canceled:  map[*fakeRequest]bool{},
		freed:     map[*fakeRequest]bool{},
	}
}

func (c *fakeComm) newRequest() *fakeRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	r := &fakeRequest{id: len(c.created)}
	c.created = append(c.created, r)
	return r
}

// completeInOrder marks the requests at the given creation indices complete,
// in the order given: TestSome will report them in that same order.
func (c *fakeComm) completeInOrder(indices ...int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, idx := range indices {
		c.completed[c.created[idx]] = true
		c.order = append(c.order, c.created[idx])
	}
}

func (c *fakeComm) Rank() ptp.Rank { return 0 }
func (c *fakeComm) Size() int      { return 1 }

func (c *fakeComm) Probe(ptp.Selector) (ptp.Message, bool) { return nil, false }

func (c *fakeComm) Send(dest ptp.Rank, tag ptp.Tag, buf []byte) ptp.Request {
	return c.newRequest()
}

// TestSome reports completed requests in the order they were marked
// complete (native-chosen order), not creation/post order — this is what
// lets a test distinguish "flush preserves native order" from "flush
// happens to preserve post order by coincidence".
func (c *fakeComm) TestSome(reqs []ptp.Request) []int {
	c.mu.Lock()
	defer c.mu.Unlock()

	byReq := make(map[*fakeRequest]int, len(reqs))
	for i, r := range reqs {
		if r != nil {
			byReq[r.(*fakeRequest)] = i
		}
	}

	var out []int
	for _, r := range c.order {
		if c.completed[r] {
			if idx, ok := byReq[r]; ok {
				out = append(out, idx)
			}
		}
	}
	return out
}

func (c *fakeComm) WaitSome(ctx context.Context, reqs []ptp.Request) []int {
	return c.TestSome(reqs)
}

func (c *fakeComm) WaitAll(reqs []ptp.Request) {}

func (c *fakeComm) Cancel(req ptp.Request) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.canceled[req.(*fakeRequest)] = true
}

func (c *fakeComm) Free(req ptp.Request) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.freed[req.(*fakeRequest)] = true
}

type fakeMessage struct {
	comm   *fakeComm
	status ptp.Status
}

func (m *fakeMessage) Status() ptp.Status           { return m.status }
func (m *fakeMessage) Recv(buf []byte) ptp.Request { return m.comm.newRequest() }

func TestPostSendFlushInNativeReportedOrder(t *testing.T) {
	comm := newFakeComm()
	p := pool.New(comm, zerolog.Nop())

	var order []int
	for i := 0; i < 3; i++ {
		i := i
		p.PostSend(1, 0, []byte("x"), func(ok bool) {
			require.True(t, ok)
			order = append(order, i)
		})
	}
	require.Equal(t, 3, p.Len())

	// Complete them in reverse creation order; flush must invoke callbacks
	// in exactly that (native-reported) order, not post order.
	comm.completeInOrder(2, 1, 0)

	p.Test()
	assert.Equal(t, []int{2, 1, 0}, order)
	assert.Equal(t, 0, p.Len())
}

func TestPostSendPartialCompletionCompacts(t *testing.T) {
	comm := newFakeComm()
	p := pool.New(comm, zerolog.Nop())

	var completed []int
	for i := 0; i < 3; i++ {
		i := i
		p.PostSend(1, 0, []byte("x"), func(ok bool) {
			require.True(t, ok)
			completed = append(completed, i)
		})
	}

	// Complete only the middle one; the other two must survive and still
	// fire correctly on a later sweep.
	comm.completeInOrder(1)
	p.Test()
	assert.Equal(t, []int{1}, completed)
	assert.Equal(t, 2, p.Len())

	comm.completeInOrder(0, 2)
	p.Test()
	assert.ElementsMatch(t, []int{1, 0, 2}, completed)
	assert.Equal(t, 0, p.Len())
}

func TestTagOverflowPanics(t *testing.T) {
	comm := newFakeComm()
	p := pool.New(comm, zerolog.Nop())

	assert.Panics(t, func() {
		p.PostSend(1, ptp.MaxTag+1, []byte("x"), func(bool) {})
	})
}

func TestCloseCancelsWaitsFreesAndAbandons(t *testing.T) {
	comm := newFakeComm()
	p := pool.New(comm, zerolog.Nop())

	var abandoned bool
	msg := &fakeMessage{comm: comm, status: ptp.Status{Count: 1}}
	p.PostRecv(msg, make([]byte, 1), func(ok bool) {
		assert.False(t, ok)
		abandoned = true
	})

	p.Close()

	assert.True(t, abandoned)
	assert.Equal(t, 0, p.Len())
	assert.Len(t, comm.canceled, 1)
	assert.Len(t, comm.freed, 1)

	// idempotent
	assert.NotPanics(t, func() { p.Close() })
}

func TestWaitUnblocksOnEmptyPoolClose(t *testing.T) {
	comm := newFakeComm()
	p := pool.New(comm, zerolog.Nop())

	done := make(chan struct{})
	go func() {
		p.Wait(context.Background())
		close(done)
	}()

	p.Close()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Wait did not unblock after Close")
	}
}
