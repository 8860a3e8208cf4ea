// Package porter implements the stanza porter: a full-duplex dispatcher
// layered over a conn.Conn that serialises outbound stanzas FIFO,
// de-multiplexes inbound stanzas to priority-ordered handlers, correlates
// IQ request/response pairs by generated id, and performs a two-sided
// graceful close. It is grounded on the original wocky-porter.c almost
// line for line: the send queue, the handler arena, the built-in
// max-priority IQ-reply interceptor, and the open/flushing/local_closed/
// closed state machine all carry the same shape, rebuilt around
// goroutines, channels, and context.Context in place of GMainLoop,
// GSimpleAsyncResult, and GCancellable.
package porter

import (
	"context"
	"errors"
	"io"
	"log"
	"math"
	"sync"

	"github.com/Thaodan/wocky/conn"
	"github.com/Thaodan/wocky/jid"
	"github.com/Thaodan/wocky/stanza"
)

type porterState int

const (
	stateOpen porterState = iota
	stateFlushing
	stateLocalClosed
	stateClosed
)

type sendItem struct {
	ctx context.Context
	s   stanza.Stanza
	fut *Future[struct{}]
}

type pendingEntry struct {
	fut *Future[stanza.Stanza]
	to  *jid.JID
}

var discardLogger = log.New(io.Discard, "", 0)

// Porter is a started-or-unstarted stanza dispatcher over a single
// conn.Conn. The zero value is not usable; construct with New.
type Porter struct {
	c        conn.Conn
	logger   *log.Logger
	localJID *jid.JID

	handlers *handlerTable

	startOnce sync.Once
	started   bool

	mu         sync.Mutex
	cond       *sync.Cond
	state      porterState
	queue      []*sendItem
	peerClosed bool
	closeFut   *Future[struct{}]

	pendingMu sync.Mutex
	pending   map[string]*pendingEntry

	cbMu            sync.Mutex
	remoteClosedFns []func()
	remoteErrorFns  []func(error)
}

// New constructs a Porter over c. It performs no I/O; call Start to begin
// the send and receive loops.
func New(c conn.Conn, opts ...Option) *Porter {
	p := &Porter{
		c:       c,
		logger:  discardLogger,
		handlers: newHandlerTable(),
		pending: make(map[string]*pendingEntry),
	}
	p.cond = sync.NewCond(&p.mu)
	for _, opt := range opts {
		opt(p)
	}

	result := stanza.Result
	errKind := stanza.Error
	p.handlers.register(Handler{Kind: stanza.IQ, SubKind: &result, Priority: math.MaxInt32, Callback: p.handleIQReply})
	p.handlers.register(Handler{Kind: stanza.IQ, SubKind: &errKind, Priority: math.MaxInt32, Callback: p.handleIQReply})

	return p
}

// Start begins the send loop and the receive loop. Idempotent: subsequent
// calls are no-ops.
func (p *Porter) Start() {
	p.startOnce.Do(func() {
		p.mu.Lock()
		p.started = true
		p.mu.Unlock()
		go p.sendLoop()
		go p.receiveLoop()
	})
}

// Send enqueues s and blocks until it has been handed to the connection or
// ctx is done.
func (p *Porter) Send(ctx context.Context, s stanza.Stanza) error {
	fut := p.enqueueSend(ctx, s)
	_, err := fut.Get(ctx)
	return err
}

// SendAsync enqueues s and returns immediately with a Future that resolves
// once the stanza's bytes have been handed to the connection, or rejects if
// ctx is done first.
func (p *Porter) SendAsync(ctx context.Context, s stanza.Stanza) *Future[struct{}] {
	return p.enqueueSend(ctx, s)
}

func (p *Porter) enqueueSend(ctx context.Context, s stanza.Stanza) *Future[struct{}] {
	fut := newFuture[struct{}]()

	p.mu.Lock()
	if p.state != stateOpen {
		p.mu.Unlock()
		fut.reject(ErrClosing)
		return fut
	}
	p.queue = append(p.queue, &sendItem{ctx: ctx, s: s, fut: fut})
	p.cond.Broadcast()
	p.mu.Unlock()

	return fut
}

// SendIQ requires s.Kind == IQ and s.SubKind ∈ {Get, Set}. It overwrites
// s.ID with a fresh unique id, sends it, and blocks for the matching
// result or error reply.
func (p *Porter) SendIQ(ctx context.Context, s stanza.Stanza) (stanza.Stanza, error) {
	fut, err := p.sendIQ(ctx, s)
	if err != nil {
		return stanza.Stanza{}, err
	}
	// sendIQ's watcher settles fut once ctx is done (ErrCancelled), so
	// waiting here without ctx still returns.
	return fut.Get(context.Background())
}

// SendIQAsync is the non-blocking form of SendIQ. Cancelling ctx before a
// reply arrives rejects the returned future with ErrCancelled and removes
// the pending-IQ table entry.
func (p *Porter) SendIQAsync(ctx context.Context, s stanza.Stanza) *Future[stanza.Stanza] {
	fut, err := p.sendIQ(ctx, s)
	if err != nil {
		out := newFuture[stanza.Stanza]()
		out.reject(err)
		return out
	}
	return fut
}

func (p *Porter) sendIQ(ctx context.Context, s stanza.Stanza) (*Future[stanza.Stanza], error) {
	if s.Kind != stanza.IQ || (s.SubKind != stanza.Get && s.SubKind != stanza.Set) {
		return nil, ErrNotIQ
	}

	fut := newFuture[stanza.Stanza]()

	var id string
	for {
		id = p.c.NewID()
		p.pendingMu.Lock()
		if _, exists := p.pending[id]; exists {
			p.pendingMu.Unlock()
			continue
		}
		p.pending[id] = &pendingEntry{fut: fut, to: s.To}
		p.pendingMu.Unlock()
		break
	}

	outbound := s.WithID(id)
	sendFut := p.enqueueSend(ctx, outbound)

	// claim removes the pending entry if it is still present, returning
	// whether this goroutine won the race against handleIQReply (which
	// also deletes under pendingMu before resolving fut).
	claim := func() bool {
		p.pendingMu.Lock()
		defer p.pendingMu.Unlock()
		if _, exists := p.pending[id]; !exists {
			return false
		}
		delete(p.pending, id)
		return true
	}

	go func() {
		select {
		case <-sendFut.Done():
			if _, err := sendFut.Get(context.Background()); err != nil {
				if claim() {
					fut.reject(err)
				}
				return
			}
		case <-ctx.Done():
			if claim() {
				fut.reject(ErrCancelled)
			}
			return
		case <-fut.Done():
			return
		}
		// The request is on the wire; keep honouring cancellation until
		// the reply arrives.
		select {
		case <-ctx.Done():
			if claim() {
				fut.reject(ErrCancelled)
			}
		case <-fut.Done():
		}
	}()

	return fut, nil
}

// handleIQReply is the built-in, max-priority handler that feeds IQ
// result/error replies into the pending-IQ correlation table before any
// user handler sees them.
func (p *Porter) handleIQReply(s stanza.Stanza) bool {
	p.pendingMu.Lock()
	entry, ok := p.pending[s.ID]
	p.pendingMu.Unlock()
	if !ok {
		return false
	}

	if !p.acceptsReply(entry, s) {
		return false
	}

	p.pendingMu.Lock()
	delete(p.pending, s.ID)
	p.pendingMu.Unlock()

	entry.fut.resolve(s)
	return true
}

// acceptsReply implements the spoof rule: if the originating IQ had a
// `to`, only a reply whose `from` exactly equals that `to` is accepted.
// Otherwise a reply with no `from`, or from the account's bare or full
// JID (if known via WithLocalJID), is accepted.
func (p *Porter) acceptsReply(entry *pendingEntry, s stanza.Stanza) bool {
	if entry.to != nil {
		return s.From != nil && s.From.Equal(*entry.to)
	}
	if s.From == nil {
		return true
	}
	if p.localJID == nil {
		return false
	}
	return s.From.Equal(*p.localJID) || s.From.Equal(p.localJID.Bare())
}

// LocalJID returns the JID configured via WithLocalJID, or nil if none was
// set. Collaborator packages that need to authorize inbound server-pushed
// stanzas against the account's own address (roster's push handler, for
// instance) read it back here rather than threading the JID through twice.
func (p *Porter) LocalJID() *jid.JID {
	return p.localJID
}

// RegisterHandler installs h and returns an opaque id for later removal.
func (p *Porter) RegisterHandler(h Handler) HandlerID {
	return p.handlers.register(h)
}

// UnregisterHandler removes the handler previously returned by
// RegisterHandler. Unregistering an id that is stale (already removed, or
// from a slot since reused) is a no-op.
func (p *Porter) UnregisterHandler(id HandlerID) {
	p.handlers.unregister(id)
}

// OnRemoteClosed registers fn to run when the peer closes the stream
// cleanly. Safe to call at any time; firings happen at most once.
func (p *Porter) OnRemoteClosed(fn func()) {
	p.cbMu.Lock()
	p.remoteClosedFns = append(p.remoteClosedFns, fn)
	p.cbMu.Unlock()
}

// OnRemoteError registers fn to run when an inbound read fails before a
// clean peer close is observed.
func (p *Porter) OnRemoteError(fn func(err error)) {
	p.cbMu.Lock()
	p.remoteErrorFns = append(p.remoteErrorFns, fn)
	p.cbMu.Unlock()
}

// Close flushes the outbound queue, emits the local close frame, and
// blocks until the peer's stream close is observed (or ctx is done).
func (p *Porter) Close(ctx context.Context) error {
	fut := p.CloseAsync()
	_, err := fut.Get(ctx)
	return err
}

// CloseAsync is the non-blocking form of Close.
func (p *Porter) CloseAsync() *Future[struct{}] {
	p.mu.Lock()

	if !p.started && !p.peerClosed {
		p.mu.Unlock()
		fut := newFuture[struct{}]()
		fut.reject(ErrNotStarted)
		return fut
	}

	switch p.state {
	case stateClosed:
		p.mu.Unlock()
		fut := newFuture[struct{}]()
		fut.reject(ErrClosed)
		return fut
	case stateFlushing, stateLocalClosed:
		p.mu.Unlock()
		fut := newFuture[struct{}]()
		fut.reject(ErrPending)
		return fut
	}

	fut := newFuture[struct{}]()
	p.closeFut = fut
	p.state = stateFlushing
	p.cond.Broadcast()
	p.mu.Unlock()

	return fut
}

// sendLoop is the porter's send FIFO: at most one stanza is ever being
// handed to the connection at a time. Once the queue drains with a close
// pending, it emits the close frame and exits; the receive loop finishes
// the close handshake.
func (p *Porter) sendLoop() {
	for {
		p.mu.Lock()
		for len(p.queue) == 0 && p.state == stateOpen {
			p.cond.Wait()
		}

		if len(p.queue) == 0 {
			flushing := p.state == stateFlushing
			p.mu.Unlock()
			if flushing {
				p.emitCloseFrame()
			}
			return
		}

		item := p.queue[0]
		p.queue = p.queue[1:]
		p.mu.Unlock()

		select {
		case <-item.ctx.Done():
			item.fut.reject(ErrCancelled)
			continue
		default:
		}

		if err := p.c.SendStanza(item.ctx, item.s); err != nil {
			item.fut.reject(err)
			p.failAllQueued(err)
			p.abortOnTransportError(err)
			return
		}
		item.fut.resolve(struct{}{})
	}
}

func (p *Porter) failAllQueued(err error) {
	p.mu.Lock()
	q := p.queue
	p.queue = nil
	p.mu.Unlock()
	for _, item := range q {
		item.fut.reject(err)
	}
}

func (p *Porter) abortOnTransportError(err error) {
	p.mu.Lock()
	p.state = stateClosed
	cf := p.closeFut
	p.mu.Unlock()
	if cf != nil {
		cf.reject(err)
	}
	p.failAllPendingIQ(err)
}

func (p *Porter) emitCloseFrame() {
	err := p.c.SendClose(context.Background())
	p.mu.Lock()
	if err != nil {
		p.state = stateClosed
		cf := p.closeFut
		p.mu.Unlock()
		if cf != nil {
			cf.reject(err)
		}
		p.failAllPendingIQ(err)
		return
	}
	p.state = stateLocalClosed
	peerAlready := p.peerClosed
	p.mu.Unlock()

	if peerAlready {
		p.finalizeClose(nil)
	}
}

func (p *Porter) finalizeClose(err error) {
	p.mu.Lock()
	if p.state == stateClosed {
		p.mu.Unlock()
		return
	}
	p.state = stateClosed
	cf := p.closeFut
	p.mu.Unlock()

	if cf != nil {
		if err != nil {
			cf.reject(err)
		} else {
			cf.resolve(struct{}{})
		}
	}
	p.failAllPendingIQ(ErrClosed)
}

func (p *Porter) failAllPendingIQ(err error) {
	p.pendingMu.Lock()
	pend := p.pending
	p.pending = make(map[string]*pendingEntry)
	p.pendingMu.Unlock()
	for _, e := range pend {
		e.fut.reject(err)
	}
}

// receiveLoop is the porter's single logical receive loop: await the next
// inbound event, dispatch it, repeat. A clean peer close or a read error
// both stop the loop.
func (p *Porter) receiveLoop() {
	ctx := context.Background()
	for {
		s, err := p.c.RecvStanza(ctx)
		if err != nil {
			p.mu.Lock()
			p.peerClosed = true
			state := p.state
			p.mu.Unlock()

			if errors.Is(err, conn.ErrClosed) {
				p.fireRemoteClosed()
				if state == stateLocalClosed {
					p.finalizeClose(nil)
				}
				return
			}

			p.fireRemoteError(err)
			if state == stateFlushing || state == stateLocalClosed {
				p.finalizeClose(err)
			}
			return
		}
		p.dispatch(s)
	}
}

func (p *Porter) dispatch(s stanza.Stanza) {
	for _, h := range p.handlers.orderedLive() {
		if !matches(h, s) {
			continue
		}
		if h.Callback(s) {
			return
		}
	}
	p.logger.Printf("porter: dropped unhandled stanza kind=%s subkind=%s id=%s", s.Kind, s.SubKind, s.ID)
}

func (p *Porter) fireRemoteClosed() {
	p.cbMu.Lock()
	fns := append([]func(){}, p.remoteClosedFns...)
	p.cbMu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

func (p *Porter) fireRemoteError(err error) {
	p.cbMu.Lock()
	fns := append([]func(error){}, p.remoteErrorFns...)
	p.cbMu.Unlock()
	for _, fn := range fns {
		fn(err)
	}
}
