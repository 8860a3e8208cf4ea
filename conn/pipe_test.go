package conn_test

import (
	"context"
	"testing"
	"time"

	"github.com/Thaodan/wocky/conn"
	"github.com/Thaodan/wocky/stanza"
)

func TestPipeStanzaRoundTrip(t *testing.T) {
	client, server := conn.NewPipe()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	want := stanza.Stanza{Kind: stanza.IQ, SubKind: stanza.Get, ID: "abc"}
	if err := client.SendStanza(ctx, want); err != nil {
		t.Fatalf("SendStanza: %v", err)
	}
	got, err := server.RecvStanza(ctx)
	if err != nil {
		t.Fatalf("RecvStanza: %v", err)
	}
	if got.ID != want.ID || got.Kind != want.Kind {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestPipeElementRoundTrip(t *testing.T) {
	client, server := conn.NewPipe()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	want := stanza.NewElement("auth", 0).WithAttr("mechanism", "PLAIN")
	if err := client.SendElement(ctx, want); err != nil {
		t.Fatalf("SendElement: %v", err)
	}
	got, err := server.RecvElement(ctx)
	if err != nil {
		t.Fatalf("RecvElement: %v", err)
	}
	if v, _ := got.GetAttr("mechanism"); v != "PLAIN" {
		t.Errorf("got mechanism=%q", v)
	}
}

func TestPipeOpenRoundTrip(t *testing.T) {
	client, server := conn.NewPipe()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := client.SendOpen(ctx, conn.Open{To: "example.net", Version: "1.0"}); err != nil {
		t.Fatalf("SendOpen: %v", err)
	}
	o, err := server.RecvOpen(ctx)
	if err != nil {
		t.Fatalf("RecvOpen: %v", err)
	}
	if o.To != "example.net" || o.Version != "1.0" {
		t.Errorf("got %+v", o)
	}
}

func TestPipeCloseUnblocksPeerRecv(t *testing.T) {
	client, server := conn.NewPipe()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := server.SendClose(ctx); err != nil {
		t.Fatalf("SendClose: %v", err)
	}
	if _, err := client.RecvStanza(ctx); err != conn.ErrClosed {
		t.Errorf("RecvStanza after peer close = %v, want ErrClosed", err)
	}
}

func TestPipeNewIDUnique(t *testing.T) {
	client, _ := conn.NewPipe()
	a := client.NewID()
	b := client.NewID()
	if a == b {
		t.Errorf("NewID returned duplicate values: %q", a)
	}
}
