package roster_test

import (
	"context"
	"testing"
	"time"

	"github.com/Thaodan/wocky/conn"
	"github.com/Thaodan/wocky/jid"
	"github.com/Thaodan/wocky/ns"
	"github.com/Thaodan/wocky/porter"
	"github.com/Thaodan/wocky/roster"
	"github.com/Thaodan/wocky/stanza"
)

func newTestRoster() (*roster.Roster, conn.Conn) {
	client, server := conn.NewPipe()
	p := porter.New(client)
	p.Start()
	return roster.New(p), server
}

func itemElement(jidStr, name, subscription string, groups ...string) stanza.Element {
	e := stanza.NewElement("item", 0).
		WithAttr("jid", jidStr).
		WithAttr("subscription", subscription)
	if name != "" {
		e = e.WithAttr("name", name)
	}
	for _, g := range groups {
		e = e.WithChild(stanza.NewElement("group", 0).WithText(g))
	}
	return e
}

// fulfillFetch waits for the roster's outbound IQ get and replies with a
// result carrying query as its payload, echoing the request id.
func fulfillFetch(t *testing.T, ctx context.Context, server conn.Conn, query stanza.Element) {
	t.Helper()
	req, err := server.RecvStanza(ctx)
	if err != nil {
		t.Fatalf("server RecvStanza(get): %v", err)
	}
	if req.Kind != stanza.IQ || req.SubKind != stanza.Get {
		t.Fatalf("request = %v %v, want IQ get", req.Kind, req.SubKind)
	}
	if got, ok := req.Root.Child("query"); !ok || got.NS != ns.Intern(ns.Roster) {
		t.Fatalf("request payload = %+v, want jabber:iq:roster query", got)
	}
	reply := stanza.Stanza{
		Kind:    stanza.IQ,
		SubKind: stanza.Result,
		ID:      req.ID,
		Root:    stanza.Element{Children: []stanza.Element{query}},
	}
	if err := server.SendStanza(ctx, reply); err != nil {
		t.Fatalf("server SendStanza(result): %v", err)
	}
}

func TestFetchPopulates(t *testing.T) {
	r, server := newTestRoster()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	query := stanza.NewElement("query", ns.Intern(ns.Roster)).
		WithChild(itemElement("romeo@example.net", "Romeo", "both", "Friends")).
		WithChild(itemElement("juliet@example.net", "Juliet", "to", "Friends", "Girlz"))

	done := make(chan error, 1)
	go func() { done <- r.Fetch(ctx) }()

	fulfillFetch(t, ctx, server, query)

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Fetch: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Fetch never returned")
	}

	romeo, ok := r.GetContact(jid.MustParse("romeo@example.net"))
	if !ok {
		t.Fatal("romeo not present")
	}
	if romeo.Subscription != roster.Both {
		t.Errorf("romeo.Subscription = %v, want both", romeo.Subscription)
	}

	juliet, ok := r.GetContact(jid.MustParse("juliet@example.net"))
	if !ok {
		t.Fatal("juliet not present")
	}
	if len(juliet.Groups) != 2 {
		t.Fatalf("juliet.Groups = %v, want {Friends, Girlz}", juliet.Groups)
	}
	if _, ok := juliet.Groups["Friends"]; !ok {
		t.Error("juliet missing Friends group")
	}
	if _, ok := juliet.Groups["Girlz"]; !ok {
		t.Error("juliet missing Girlz group")
	}

	if got := len(r.AllContacts()); got != 2 {
		t.Errorf("AllContacts len = %d, want 2", got)
	}
}

func TestConcurrentFetchCoalesces(t *testing.T) {
	r, server := newTestRoster()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	f1 := r.FetchAsync()
	f2 := r.FetchAsync()
	if f1 != f2 {
		t.Error("concurrent FetchAsync calls did not share one future")
	}

	query := stanza.NewElement("query", ns.Intern(ns.Roster))
	fulfillFetch(t, ctx, server, query)

	if _, err := f1.Get(ctx); err != nil {
		t.Fatalf("Get: %v", err)
	}
}

func TestPushAdd(t *testing.T) {
	r, server := newTestRoster()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	initial := stanza.NewElement("query", ns.Intern(ns.Roster)).
		WithChild(itemElement("romeo@example.net", "Romeo", "both", "Friends")).
		WithChild(itemElement("juliet@example.net", "Juliet", "to", "Friends", "Girlz"))
	done := make(chan error, 1)
	go func() { done <- r.Fetch(ctx) }()
	fulfillFetch(t, ctx, server, initial)
	if err := <-done; err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	addedCount := 0
	var addedContact roster.Contact
	r.OnAdded(func(c roster.Contact) {
		addedCount++
		addedContact = c
	})

	pushQuery := stanza.NewElement("query", ns.Intern(ns.Roster)).
		WithChild(itemElement("nurse@example.net", "Nurse", "none"))
	push := stanza.Stanza{
		Kind:    stanza.IQ,
		SubKind: stanza.Set,
		ID:      "push1",
		Root:    stanza.Element{Children: []stanza.Element{pushQuery}},
	}
	if err := server.SendStanza(ctx, push); err != nil {
		t.Fatalf("server SendStanza(push): %v", err)
	}

	ack, err := server.RecvStanza(ctx)
	if err != nil {
		t.Fatalf("server RecvStanza(ack): %v", err)
	}
	if ack.Kind != stanza.IQ || ack.SubKind != stanza.Result || ack.ID != "push1" {
		t.Fatalf("ack = %+v, want IQ result id=push1", ack)
	}

	if addedCount != 1 {
		t.Fatalf("addedCount = %d, want 1", addedCount)
	}
	if addedContact.Name != "Nurse" {
		t.Errorf("addedContact.Name = %q, want Nurse", addedContact.Name)
	}
	if got := len(r.AllContacts()); got != 3 {
		t.Errorf("AllContacts len = %d, want 3", got)
	}
}

func TestPushFromUnauthorizedSenderDropped(t *testing.T) {
	r, server := newTestRoster()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	var addedCount int
	r.OnAdded(func(roster.Contact) { addedCount++ })

	spoofedFrom := jid.MustParse("mallory@evil.example")
	pushQuery := stanza.NewElement("query", ns.Intern(ns.Roster)).
		WithChild(itemElement("nurse@example.net", "Nurse", "none"))
	push := stanza.Stanza{
		Kind:    stanza.IQ,
		SubKind: stanza.Set,
		ID:      "push-spoof",
		From:    &spoofedFrom,
		Root:    stanza.Element{Children: []stanza.Element{pushQuery}},
	}
	if err := server.SendStanza(ctx, push); err != nil {
		t.Fatalf("server SendStanza(push): %v", err)
	}

	// No ack and no signal should come back: the roster has no
	// WithAccountJID and the underlying porter has no WithLocalJID, so a
	// push carrying any from at all is unauthorized by the baseline rule.
	recvCtx, recvCancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer recvCancel()
	if _, err := server.RecvStanza(recvCtx); err == nil {
		t.Fatal("server received an ack for an unauthorized push")
	}
	if addedCount != 0 {
		t.Errorf("addedCount = %d, want 0 for spoofed push", addedCount)
	}
}

func TestPushRemoveAndModify(t *testing.T) {
	r, server := newTestRoster()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	initial := stanza.NewElement("query", ns.Intern(ns.Roster)).
		WithChild(itemElement("romeo@example.net", "Romeo", "both", "Friends")).
		WithChild(itemElement("juliet@example.net", "Juliet", "to", "Friends"))
	done := make(chan error, 1)
	go func() { done <- r.Fetch(ctx) }()
	fulfillFetch(t, ctx, server, initial)
	if err := <-done; err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	var removedCount int
	var modifiedCount int
	var gotDiff roster.Diff
	r.OnRemoved(func(roster.Contact) { removedCount++ })
	r.OnModified(func(c roster.Contact, d roster.Diff) {
		modifiedCount++
		gotDiff = d
	})

	pushQuery := stanza.NewElement("query", ns.Intern(ns.Roster)).
		WithChild(itemElement("romeo@example.net", "", "remove")).
		WithChild(itemElement("juliet@example.net", "Juliet", "both", "Friends", "Girlz"))
	push := stanza.Stanza{
		Kind:    stanza.IQ,
		SubKind: stanza.Set,
		ID:      "push2",
		Root:    stanza.Element{Children: []stanza.Element{pushQuery}},
	}
	if err := server.SendStanza(ctx, push); err != nil {
		t.Fatalf("server SendStanza(push): %v", err)
	}
	if _, err := server.RecvStanza(ctx); err != nil {
		t.Fatalf("server RecvStanza(ack): %v", err)
	}

	if removedCount != 1 {
		t.Errorf("removedCount = %d, want 1", removedCount)
	}
	if _, ok := r.GetContact(jid.MustParse("romeo@example.net")); ok {
		t.Error("romeo still present after remove push")
	}

	if modifiedCount != 1 {
		t.Fatalf("modifiedCount = %d, want 1", modifiedCount)
	}
	if !gotDiff.SubscriptionChanged || gotDiff.NewSubscription != roster.Both {
		t.Errorf("diff = %+v, want subscription changed to both", gotDiff)
	}
	if !gotDiff.GroupsChanged {
		t.Error("expected groups changed on juliet")
	}

	if got := len(r.AllContacts()); got != 1 {
		t.Errorf("AllContacts len = %d, want 1", got)
	}
}
