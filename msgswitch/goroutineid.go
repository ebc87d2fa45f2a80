package msgswitch

import (
	"bytes"
	"runtime"
	"strconv"
)

// goroutineID extracts the calling goroutine's ID by parsing the header
// line of runtime.Stack's output. It exists for exactly one purpose: to
// tell a same-goroutine re-entrant call to withPool apart from ordinary
// cross-goroutine contention, so the former can panic deterministically
// instead of deadlocking on the pool mutex. This is the same technique
// go-eventloop's Loop.isLoopThread/getGoroutineID uses to detect the wrong
// calling goroutine; there is no cheaper portable way to ask "is this the
// same goroutine as last time" in Go.
func goroutineID() int64 {
	buf := make([]byte, 64)
	n := runtime.Stack(buf, false)
	buf = buf[:n]

	const prefix = "goroutine "
	if !bytes.HasPrefix(buf, []byte(prefix)) {
		return -1
	}
	buf = buf[len(prefix):]

	end := bytes.IndexByte(buf, ' ')
	if end < 0 {
		return -1
	}

	id, err := strconv.ParseInt(string(buf[:end]), 10, 64)
	if err != nil {
		return -1
	}
	return id
}
