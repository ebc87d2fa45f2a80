package msgswitch

import "errors"

// ErrAlreadyRunning is returned by Run if the Switch is already being
// driven by another call to Run.
var ErrAlreadyRunning = errors.New("msgswitch: switch is already running")

// reentrantBorrowMsg is the panic value for a same-goroutine re-entrant
// call to withPool — e.g. a completion callback that itself tries to post
// a new send or receive against the same switch. This is a programming
// error and must fail loudly rather than deadlock.
const reentrantBorrowMsg = "msgswitch: re-entrant request pool access"
