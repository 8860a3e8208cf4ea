package porter

import "errors"

var (
	// ErrClosing is returned by Send/SendAsync once a close is in progress.
	ErrClosing = errors.New("porter: closing")
	// ErrClosed is returned by CloseAsync once the porter has fully closed,
	// and rejects IQs still awaiting a reply when the porter closes. Sends
	// attempted after a close fail with ErrClosing.
	ErrClosed = errors.New("porter: closed")
	// ErrNotStarted is returned by CloseAsync when Start was never called
	// and the peer has not closed either.
	ErrNotStarted = errors.New("porter: not started")
	// ErrNotIQ is returned by SendIQ/SendIQAsync when given a stanza that
	// is not an IQ get or set.
	ErrNotIQ = errors.New("porter: stanza is not an iq get/set")
	// ErrCancelled is returned when a caller's context is done before a
	// queued send begins serialisation.
	ErrCancelled = errors.New("porter: cancelled")
	// ErrPending is returned by CloseAsync when a close is already running.
	ErrPending = errors.New("porter: close already pending")
)
