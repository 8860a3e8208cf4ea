package main

import (
	"context"
	"log"

	"github.com/Thaodan/wocky/conn"
	"github.com/Thaodan/wocky/ns"
	"github.com/Thaodan/wocky/stanza"
)

// dialLoopback stands in for a real network dial. It returns the client
// end of an in-memory conn.Pipe and starts a fake server goroutine on the
// other end that speaks just enough of stream negotiation, SASL PLAIN,
// and jabber:iq:roster to drive the three subcommands below.
func dialLoopback() conn.Conn {
	client, server := conn.NewPipe()
	go runDemoServer(server)
	return client
}

func runDemoServer(server conn.Conn) {
	ctx := context.Background()

	if _, err := server.RecvOpen(ctx); err != nil {
		log.Printf("demo server: recv open: %v", err)
		return
	}
	if err := server.SendOpen(ctx, conn.Open{Version: "1.0", ID: "demo-1"}); err != nil {
		log.Printf("demo server: send open: %v", err)
		return
	}
	mechanisms := stanza.NewElement("mechanisms", ns.Intern(ns.SASL)).
		WithChild(stanza.NewElement("mechanism", 0).WithText("PLAIN"))
	if err := server.SendElement(ctx, stanza.NewElement("features", 0).WithChild(mechanisms)); err != nil {
		log.Printf("demo server: send features: %v", err)
		return
	}

	auth, err := server.RecvElement(ctx)
	if err != nil || auth.Name != "auth" {
		log.Printf("demo server: expected auth, got %v (err=%v)", auth, err)
		return
	}
	if err := server.SendElement(ctx, stanza.NewElement("success", ns.Intern(ns.SASL))); err != nil {
		log.Printf("demo server: send success: %v", err)
		return
	}

	if _, err := server.RecvOpen(ctx); err != nil {
		log.Printf("demo server: recv post-auth open: %v", err)
		return
	}
	if err := server.SendOpen(ctx, conn.Open{Version: "1.0", ID: "demo-2"}); err != nil {
		log.Printf("demo server: send post-auth open: %v", err)
		return
	}

	for {
		s, err := server.RecvStanza(ctx)
		if err != nil {
			return
		}
		switch {
		case s.Kind == stanza.IQ && s.SubKind == stanza.Get:
			if q, ok := s.Root.Child("query"); ok && q.NS == ns.Intern(ns.Roster) {
				if err := server.SendStanza(ctx, demoRosterReply(s.ID)); err != nil {
					log.Printf("demo server: send roster reply: %v", err)
					return
				}
			}
		case s.Kind == stanza.Presence:
			log.Printf("demo server: received presence (show=%s)", presenceShow(s))
		}
	}
}

func demoRosterReply(id string) stanza.Stanza {
	juliet := stanza.NewElement("item", 0).
		WithAttr("jid", "juliet@example.net").
		WithAttr("name", "Juliet").
		WithAttr("subscription", "both").
		WithChild(stanza.NewElement("group", 0).WithText("Friends"))
	nurse := stanza.NewElement("item", 0).
		WithAttr("jid", "nurse@example.net").
		WithAttr("name", "Nurse").
		WithAttr("subscription", "to")
	query := stanza.NewElement("query", ns.Intern(ns.Roster)).
		WithChild(juliet).
		WithChild(nurse)
	return stanza.Stanza{
		Kind:    stanza.IQ,
		SubKind: stanza.Result,
		ID:      id,
		Root:    stanza.Element{Children: []stanza.Element{query}},
	}
}

func presenceShow(s stanza.Stanza) string {
	if show, ok := s.Root.Child("show"); ok {
		return show.Text
	}
	return "(available)"
}
