// Package conn defines the framed-connection collaborator the porter and
// sasl packages consume: a byte stream that has already been decoded into
// stream-open/stanza/stream-close events, and accepts the same in the
// outbound direction. The XML codec and TLS upgrade that produce such a
// connection are external collaborators outside this module's scope; this
// package only fixes the interface and ships an in-memory Pipe
// implementation for tests.
package conn

import (
	"context"
	"errors"

	"github.com/Thaodan/wocky/stanza"
)

// ErrClosed is returned by RecvStanza once the peer's stream close has been
// observed, and by any other operation attempted on a closed Conn.
var ErrClosed = errors.New("conn: closed")

// Open carries the negotiable parameters of a stream-open, in either
// direction.
type Open struct {
	To      string
	From    string
	Version string
	Lang    string
	ID      string
}

// Conn is the framed connection a Porter and an Authenticator are built
// over. Each method is an independent blocking operation; callers are
// responsible for not issuing two sends or two receives concurrently (the
// porter's own send/receive loops already serialise this).
type Conn interface {
	// SendOpen emits a stream-open frame.
	SendOpen(ctx context.Context, o Open) error
	// RecvOpen waits for the peer's stream-open frame.
	RecvOpen(ctx context.Context) (Open, error)
	// SendStanza serialises and writes s.
	SendStanza(ctx context.Context, s stanza.Stanza) error
	// RecvStanza waits for and decodes the next inbound stanza. It returns
	// ErrClosed once the peer has cleanly closed the stream, and any other
	// error on a malformed or aborted read.
	RecvStanza(ctx context.Context) (stanza.Stanza, error)
	// SendElement writes an arbitrary top-level stream child element. The
	// sasl package uses this directly (bypassing the message/presence/iq
	// Stanza shape) to exchange <auth>/<challenge>/<response>/<success>/
	// <failure> elements, which are not stanzas in spec's sense but are
	// framed over the same connection before any stanza traffic is valid.
	SendElement(ctx context.Context, e stanza.Element) error
	// RecvElement waits for the next top-level stream child element.
	RecvElement(ctx context.Context) (stanza.Element, error)
	// SendClose emits a stream-close frame.
	SendClose(ctx context.Context) error
	// NewID returns a fresh identifier unique over the connection's
	// lifetime, suitable for an IQ id.
	NewID() string
	// Reset discards any buffered decoder state so that subsequent framing
	// (e.g. after a SASL stream reset) starts fresh.
	Reset()
}
