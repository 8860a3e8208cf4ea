// Package roster maintains the client's cached view of the server's
// authoritative jabber:iq:roster list: an initial fetch, a push handler
// for server-originated updates, and add/remove/modify change signals.
// It sits atop a started porter.Porter and does no I/O of its own beyond
// the IQs the porter sends and the replies it dispatches back here.
package roster

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/Thaodan/wocky/jid"
	"github.com/Thaodan/wocky/ns"
	"github.com/Thaodan/wocky/porter"
	"github.com/Thaodan/wocky/stanza"
)

type lifecycle int

const (
	unfetched lifecycle = iota
	fetching
	ready
)

// Roster caches the server's roster and republishes pushed changes as
// added/removed/modified signals. The zero value is not usable; construct
// with New.
type Roster struct {
	p          *porter.Porter
	accountJID *jid.JID
	handlerID  porter.HandlerID

	mu       sync.Mutex
	state    lifecycle
	contacts map[string]Contact
	fetchFut *porter.Future[struct{}]

	cbMu        sync.Mutex
	addedFns    []func(Contact)
	removedFns  []func(Contact)
	modifiedFns []func(Contact, Diff)
}

// New installs the roster push handler on p and returns an unfetched
// Roster. Call Fetch or FetchAsync to populate it.
//
// porter.Handler.From can only express a single AND-matched pattern, not
// the "bare account JID, or no from at all" rule spec requires of every
// roster push, so that authorization is not delegated to the handler
// table's From field at all: the handler is registered with no pattern and
// handlePush itself enforces the rule, the same way acceptsReply does for
// IQ replies in package porter.
func New(p *porter.Porter, opts ...Option) *Roster {
	r := &Roster{p: p, contacts: make(map[string]Contact)}
	for _, opt := range opts {
		opt(r)
	}

	set := stanza.Set
	r.handlerID = p.RegisterHandler(porter.Handler{
		Kind:     stanza.IQ,
		SubKind:  &set,
		Priority: math.MaxInt32,
		Match:    stanza.NewElement("query", ns.Intern(ns.Roster)),
		Callback: r.handlePush,
	})
	return r
}

// authorizedPush reports whether s.From satisfies the push-handling
// contract: by default, a from-less push or one from the account's bare
// JID (learned from the underlying porter's WithLocalJID, if any) is
// accepted. WithAccountJID tightens this to a single pinned bare JID and
// removes the from-less exception.
func (r *Roster) authorizedPush(s stanza.Stanza) bool {
	if r.accountJID != nil {
		return s.From != nil && s.From.Equal(*r.accountJID)
	}
	if s.From == nil {
		return true
	}
	local := r.p.LocalJID()
	return local != nil && s.From.Equal(local.Bare())
}

// Fetch blocks until the initial (or a concurrently requested) fetch
// completes.
func (r *Roster) Fetch(ctx context.Context) error {
	_, err := r.FetchAsync().Get(ctx)
	return err
}

// FetchAsync sends an IQ get for the roster and replaces the cached
// contact map with the reply's items once it arrives. Concurrent callers
// while a fetch is already in flight are handed the same future rather
// than triggering a second request.
func (r *Roster) FetchAsync() *porter.Future[struct{}] {
	r.mu.Lock()
	if r.state == fetching && r.fetchFut != nil {
		fut := r.fetchFut
		r.mu.Unlock()
		return fut
	}
	fut := porter.NewFuture[struct{}]()
	r.fetchFut = fut
	r.state = fetching
	r.mu.Unlock()

	query := stanza.NewElement("query", ns.Intern(ns.Roster))
	req := stanza.Stanza{
		Kind:    stanza.IQ,
		SubKind: stanza.Get,
		Root:    stanza.Element{Children: []stanza.Element{query}},
	}

	go func() {
		reply, err := r.p.SendIQ(context.Background(), req)

		r.mu.Lock()
		defer r.mu.Unlock()
		r.fetchFut = nil

		if err != nil {
			r.state = unfetched
			fut.Reject(err)
			return
		}
		if reply.IsError() {
			r.state = unfetched
			fut.Reject(fmt.Errorf("roster: fetch failed: %s", errorCondition(reply)))
			return
		}

		replaced := make(map[string]Contact)
		if q, ok := reply.Root.Child("query"); ok {
			for _, item := range q.Children {
				if item.Name != "item" {
					continue
				}
				bare, contact, isRemove, parseErr := parseItem(item)
				if parseErr != nil || isRemove {
					continue
				}
				replaced[bare.String()] = contact
			}
		}
		r.contacts = replaced
		r.state = ready
		fut.Resolve(struct{}{})
	}()

	return fut
}

// GetContact returns the cached contact for bare's bare JID.
func (r *Roster) GetContact(bare jid.JID) (Contact, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.contacts[bare.Bare().String()]
	return c, ok
}

// AllContacts returns a snapshot of every cached contact, in no
// particular order.
func (r *Roster) AllContacts() []Contact {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Contact, 0, len(r.contacts))
	for _, c := range r.contacts {
		out = append(out, c)
	}
	return out
}

// OnAdded registers a callback fired once for each contact a server push
// introduces for the first time.
func (r *Roster) OnAdded(fn func(Contact)) {
	r.cbMu.Lock()
	r.addedFns = append(r.addedFns, fn)
	r.cbMu.Unlock()
}

// OnRemoved registers a callback fired once for each contact a
// subscription="remove" push deletes.
func (r *Roster) OnRemoved(fn func(Contact)) {
	r.cbMu.Lock()
	r.removedFns = append(r.removedFns, fn)
	r.cbMu.Unlock()
}

// OnModified registers a callback fired when a push updates an existing
// contact's name, subscription, or groups.
func (r *Roster) OnModified(fn func(Contact, Diff)) {
	r.cbMu.Lock()
	r.modifiedFns = append(r.modifiedFns, fn)
	r.cbMu.Unlock()
}

// handlePush implements the push side of the public contract: for each
// <item>, remove/insert/merge against the cached map, fire the
// corresponding signal, then ack with an IQ result carrying the
// originating id. Registered as the porter handler callback, so it runs
// on the porter's receive loop.
func (r *Roster) handlePush(s stanza.Stanza) bool {
	query, ok := s.Root.Child("query")
	if !ok || query.NS != ns.Intern(ns.Roster) {
		return false
	}
	if !r.authorizedPush(s) {
		return false
	}

	type modEvt struct {
		c Contact
		d Diff
	}
	var added []Contact
	var removed []Contact
	var modified []modEvt

	r.mu.Lock()
	for _, item := range query.Children {
		if item.Name != "item" {
			continue
		}
		bare, contact, isRemove, err := parseItem(item)
		if err != nil {
			continue
		}
		key := bare.String()

		if isRemove {
			if existing, ok := r.contacts[key]; ok {
				delete(r.contacts, key)
				removed = append(removed, existing)
			}
			continue
		}

		existing, existed := r.contacts[key]
		r.contacts[key] = contact
		if !existed {
			added = append(added, contact)
			continue
		}
		if diff, changed := diffContact(existing, contact); changed {
			modified = append(modified, modEvt{contact, diff})
		}
	}
	r.mu.Unlock()

	r.cbMu.Lock()
	addedFns := append([]func(Contact){}, r.addedFns...)
	removedFns := append([]func(Contact){}, r.removedFns...)
	modifiedFns := append([]func(Contact, Diff){}, r.modifiedFns...)
	r.cbMu.Unlock()

	for _, c := range added {
		for _, fn := range addedFns {
			fn(c)
		}
	}
	for _, c := range removed {
		for _, fn := range removedFns {
			fn(c)
		}
	}
	for _, m := range modified {
		for _, fn := range modifiedFns {
			fn(m.c, m.d)
		}
	}

	if s.ID != "" {
		result := stanza.Stanza{Kind: stanza.IQ, SubKind: stanza.Result, ID: s.ID}
		if s.From != nil {
			result = result.WithTo(*s.From)
		}
		_ = r.p.Send(context.Background(), result)
	}

	return true
}

// parseItem decodes one <item jid="…" name="…" subscription="…"> with its
// <group> children. isRemove is true for subscription="remove", in which
// case contact is the zero value and callers should treat bare as a
// deletion key only.
func parseItem(e stanza.Element) (bare jid.JID, contact Contact, isRemove bool, err error) {
	jidAttr, _ := e.GetAttr("jid")
	j, err := jid.Parse(jidAttr)
	if err != nil {
		return jid.JID{}, Contact{}, false, err
	}
	bare = j.Bare()

	subAttr, _ := e.GetAttr("subscription")
	sub := Subscription(subAttr)
	if sub == "" {
		sub = None
	}
	if sub == remove {
		return bare, Contact{}, true, nil
	}

	name, _ := e.GetAttr("name")
	var groups []string
	for _, c := range e.Children {
		if c.Name == "group" {
			groups = append(groups, c.Text)
		}
	}
	return bare, Contact{Bare: bare, Name: name, Subscription: sub, Groups: groupSet(groups)}, false, nil
}

func errorCondition(s stanza.Stanza) string {
	if errEl, ok := s.Root.Child("error"); ok && len(errEl.Children) > 0 {
		return errEl.Children[0].Name
	}
	return "unknown error"
}
