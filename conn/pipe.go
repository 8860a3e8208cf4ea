package conn

import (
	"context"
	"fmt"
	"sync"

	"github.com/Thaodan/wocky/internal/idgen"
	"github.com/Thaodan/wocky/stanza"
)

// pipeEnd is one side of an in-memory Conn pair: a loopback stream with no
// socket and no codec, used by porter/sasl/roster tests and the wockyctl
// demo server in place of a real network connection.
type pipeEnd struct {
	name string

	outOpen   chan Open
	inOpen    chan Open
	outStanza chan stanza.Stanza
	inStanza  chan stanza.Stanza
	outElem   chan stanza.Element
	inElem    chan stanza.Element

	closeSent  chan struct{}
	closeOnce  sync.Once
	peerClosed chan struct{}
}

// NewPipe returns two Conn ends wired directly to each other: everything
// sent on one is received on the other. It stands in for a real framed
// byte-stream connection in tests, the same role the teacher's
// clienttest.go/servertest.go pair (and the original wocky-test-stream.c)
// play.
func NewPipe() (client, server Conn) {
	openCS := make(chan Open, 1)
	openSC := make(chan Open, 1)
	stanzaCS := make(chan stanza.Stanza, 64)
	stanzaSC := make(chan stanza.Stanza, 64)
	elemCS := make(chan stanza.Element, 64)
	elemSC := make(chan stanza.Element, 64)
	closeC := make(chan struct{})
	closeS := make(chan struct{})

	c := &pipeEnd{
		name:       "client",
		outOpen:    openCS,
		inOpen:     openSC,
		outStanza:  stanzaCS,
		inStanza:   stanzaSC,
		outElem:    elemCS,
		inElem:     elemSC,
		closeSent:  closeC,
		peerClosed: closeS,
	}
	s := &pipeEnd{
		name:       "server",
		outOpen:    openSC,
		inOpen:     openCS,
		outStanza:  stanzaSC,
		inStanza:   stanzaCS,
		outElem:    elemSC,
		inElem:     elemCS,
		closeSent:  closeS,
		peerClosed: closeC,
	}
	return c, s
}

func (p *pipeEnd) SendOpen(ctx context.Context, o Open) error {
	select {
	case p.outOpen <- o:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *pipeEnd) RecvOpen(ctx context.Context) (Open, error) {
	select {
	case o := <-p.inOpen:
		return o, nil
	case <-ctx.Done():
		return Open{}, ctx.Err()
	}
}

func (p *pipeEnd) SendStanza(ctx context.Context, s stanza.Stanza) error {
	select {
	case p.outStanza <- s:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *pipeEnd) RecvStanza(ctx context.Context) (stanza.Stanza, error) {
	select {
	case s := <-p.inStanza:
		return s, nil
	case <-p.peerClosed:
		// Stanzas the peer sent before closing are still delivered first.
		select {
		case s := <-p.inStanza:
			return s, nil
		default:
		}
		return stanza.Stanza{}, ErrClosed
	case <-ctx.Done():
		return stanza.Stanza{}, ctx.Err()
	}
}

func (p *pipeEnd) SendElement(ctx context.Context, e stanza.Element) error {
	select {
	case p.outElem <- e:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *pipeEnd) RecvElement(ctx context.Context) (stanza.Element, error) {
	select {
	case e := <-p.inElem:
		return e, nil
	case <-p.peerClosed:
		return stanza.Element{}, ErrClosed
	case <-ctx.Done():
		return stanza.Element{}, ctx.Err()
	}
}

func (p *pipeEnd) SendClose(ctx context.Context) error {
	p.closeOnce.Do(func() { close(p.closeSent) })
	return nil
}

func (p *pipeEnd) NewID() string {
	return fmt.Sprintf("%s-%s", p.name, idgen.New())
}

func (p *pipeEnd) Reset() {}
