package sasl_test

import (
	"context"
	"encoding/base64"
	"testing"
	"time"

	"github.com/Thaodan/wocky/conn"
	"github.com/Thaodan/wocky/ns"
	"github.com/Thaodan/wocky/sasl"
	"github.com/Thaodan/wocky/stanza"
)

func featuresWithMechanisms(names ...string) stanza.Element {
	mechanisms := stanza.NewElement("mechanisms", ns.Intern(ns.SASL))
	for _, n := range names {
		mechanisms = mechanisms.WithChild(stanza.NewElement("mechanism", 0).WithText(n))
	}
	return stanza.NewElement("features", 0).WithChild(mechanisms)
}

func TestOnlyPlainDisallowed(t *testing.T) {
	a := sasl.New()
	client, _ := conn.NewPipe()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	err := a.Authenticate(ctx, "example.net", client, featuresWithMechanisms("PLAIN"), false)
	if err != sasl.ErrNoSupportedMechanisms {
		t.Errorf("got %v, want ErrNoSupportedMechanisms", err)
	}
}

func TestNoMechanismsElement(t *testing.T) {
	a := sasl.New()
	client, _ := conn.NewPipe()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	bareFeatures := stanza.NewElement("features", 0)
	err := a.Authenticate(ctx, "example.net", client, bareFeatures, true)
	if err != sasl.ErrSaslNotSupported {
		t.Errorf("got %v, want ErrSaslNotSupported", err)
	}
}

func TestPlainHappyPath(t *testing.T) {
	a := sasl.New()
	a.OnUsernameRequested(func() string { return "romeo" })
	a.OnPasswordRequested(func() string { return "juliet" })

	client, server := conn.NewPipe()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	succeeded := make(chan struct{})
	a.OnSucceeded(func() { close(succeeded) })

	errCh := make(chan error, 1)
	go func() {
		errCh <- a.Authenticate(ctx, "example.net", client, featuresWithMechanisms("PLAIN"), true)
	}()

	authElem, err := server.RecvElement(ctx)
	if err != nil {
		t.Fatalf("server RecvElement(auth): %v", err)
	}
	if authElem.Name != "auth" {
		t.Fatalf("got element %q, want auth", authElem.Name)
	}
	if mech, _ := authElem.GetAttr("mechanism"); mech != "PLAIN" {
		t.Fatalf("mechanism = %q, want PLAIN", mech)
	}
	decoded, err := base64.StdEncoding.DecodeString(authElem.Text)
	if err != nil {
		t.Fatalf("decode plain payload: %v", err)
	}
	if got := string(decoded); got != "\x00romeo\x00juliet" {
		t.Fatalf("plain payload = %q", got)
	}

	if err := server.SendElement(ctx, stanza.NewElement("success", ns.Intern(ns.SASL))); err != nil {
		t.Fatalf("server SendElement(success): %v", err)
	}

	if _, err := server.RecvOpen(ctx); err != nil {
		t.Fatalf("server RecvOpen: %v", err)
	}
	if err := server.SendOpen(ctx, conn.Open{To: "example.net", Version: "1.0"}); err != nil {
		t.Fatalf("server SendOpen: %v", err)
	}

	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("Authenticate: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Authenticate never returned")
	}

	select {
	case <-succeeded:
	case <-time.After(time.Second):
		t.Fatal("OnSucceeded never fired")
	}
}

func TestServerFailure(t *testing.T) {
	a := sasl.New()
	a.OnUsernameRequested(func() string { return "romeo" })
	a.OnPasswordRequested(func() string { return "juliet" })

	client, server := conn.NewPipe()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	var failErr error
	failed := make(chan struct{})
	a.OnFailed(func(err error) {
		failErr = err
		close(failed)
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- a.Authenticate(ctx, "example.net", client, featuresWithMechanisms("PLAIN"), true)
	}()

	if _, err := server.RecvElement(ctx); err != nil {
		t.Fatalf("server RecvElement(auth): %v", err)
	}

	failure := stanza.NewElement("failure", ns.Intern(ns.SASL)).
		WithChild(stanza.NewElement("not-authorized", 0))
	if err := server.SendElement(ctx, failure); err != nil {
		t.Fatalf("server SendElement(failure): %v", err)
	}

	select {
	case err := <-errCh:
		sf, ok := err.(*sasl.ServerFailure)
		if !ok {
			t.Fatalf("Authenticate err = %v (%T), want *ServerFailure", err, err)
		}
		if sf.Reason != "not-authorized" {
			t.Errorf("Reason = %q, want not-authorized", sf.Reason)
		}
	case <-time.After(time.Second):
		t.Fatal("Authenticate never returned")
	}

	select {
	case <-failed:
		if failErr == nil {
			t.Error("OnFailed fired with nil error")
		}
	case <-time.After(time.Second):
		t.Fatal("OnFailed never fired")
	}
}
