// Package sasl implements the SASL authenticator: mechanism selection from
// server-advertised options, a challenge/response negotiation across PLAIN
// and DIGEST-MD5, and the post-success stream reset/reopen. It plugs into
// the porter only for the pre-authenticated stream, so it talks to
// conn.Conn's raw element primitives directly rather than through a
// running porter.
package sasl

import (
	"context"
	"encoding/base64"
	"sync"

	"mellium.im/sasl"

	"github.com/Thaodan/wocky/conn"
	"github.com/Thaodan/wocky/ns"
	"github.com/Thaodan/wocky/stanza"
)

// clientMechanismOrder is the preference order applied after intersecting
// the server-offered set with what this client implements.
var clientMechanismOrder = []string{digestMD5, "PLAIN"}

// Authenticator drives one SASL negotiation. The zero value is not usable;
// construct with New.
type Authenticator struct {
	identity string

	mu               sync.Mutex
	usernameFn       func() string
	passwordFn       func() string
	succeededFns     []func()
	failedFns        []func(error)
}

// New allocates a SASL authenticator.
func New(opts ...Option) *Authenticator {
	a := &Authenticator{}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// OnUsernameRequested registers the callback used to fetch the username,
// invoked lazily at most once per mechanism run.
func (a *Authenticator) OnUsernameRequested(fn func() string) {
	a.mu.Lock()
	a.usernameFn = fn
	a.mu.Unlock()
}

// OnPasswordRequested registers the callback used to fetch the password.
func (a *Authenticator) OnPasswordRequested(fn func() string) {
	a.mu.Lock()
	a.passwordFn = fn
	a.mu.Unlock()
}

// OnSucceeded registers a callback run after a successful authentication
// and stream reopen.
func (a *Authenticator) OnSucceeded(fn func()) {
	a.mu.Lock()
	a.succeededFns = append(a.succeededFns, fn)
	a.mu.Unlock()
}

// OnFailed registers a callback run with the terminal error on failure.
func (a *Authenticator) OnFailed(fn func(err error)) {
	a.mu.Lock()
	a.failedFns = append(a.failedFns, fn)
	a.mu.Unlock()
}

// Authenticate runs mechanism selection and the challenge/response
// exchange to completion, then resets and reopens the stream. No other
// stanza traffic should occur on c during this call.
func (a *Authenticator) Authenticate(ctx context.Context, serverName string, c conn.Conn, features stanza.Element, allowCleartext bool) error {
	err := a.negotiate(ctx, serverName, c, features, allowCleartext)
	if err != nil {
		a.fireFailed(err)
		return err
	}

	c.Reset()
	if err := c.SendOpen(ctx, conn.Open{To: serverName, Version: "1.0"}); err != nil {
		a.fireFailed(err)
		return err
	}
	if _, err := c.RecvOpen(ctx); err != nil {
		a.fireFailed(err)
		return err
	}

	a.fireSucceeded()
	return nil
}

func (a *Authenticator) negotiate(ctx context.Context, serverName string, c conn.Conn, features stanza.Element, allowCleartext bool) error {
	offered, ok := serverMechanisms(features)
	if !ok {
		return ErrSaslNotSupported
	}

	selected := selectMechanism(offered, allowCleartext)
	if selected == "" {
		return ErrNoSupportedMechanisms
	}

	var mech sasl.Mechanism
	if selected == digestMD5 {
		mech = newDigestMD5(serverName)
	} else {
		mech = sasl.Plain
	}

	username, password := a.credentials()
	client := sasl.NewClient(mech,
		sasl.Authz(a.identity),
		sasl.Credentials(username, password),
		sasl.RemoteMechanisms(offered...),
	)

	_, resp, err := client.Step(nil)
	if err != nil {
		return err
	}

	auth := stanza.NewElement("auth", ns.Intern(ns.SASL)).
		WithAttr("mechanism", selected).
		WithText(base64.StdEncoding.EncodeToString(resp))
	if err := c.SendElement(ctx, auth); err != nil {
		return ErrConnectionLost
	}

	// However many steps the client side thinks it needs, the server
	// always has the final word: keep reading until it sends <success> or
	// <failure>, feeding every <challenge> in between back into the
	// mechanism's Step function.
	for {
		reply, err := c.RecvElement(ctx)
		if err != nil {
			return ErrConnectionLost
		}
		switch reply.Name {
		case "failure":
			return &ServerFailure{Reason: failureReason(reply)}
		case "success":
			return nil
		case "challenge":
			challenge, decErr := base64.StdEncoding.DecodeString(reply.Text)
			if decErr != nil {
				return ErrInvalidReply
			}
			_, stepResp, err := client.Step(challenge)
			if err != nil {
				return err
			}
			out := stanza.NewElement("response", ns.Intern(ns.SASL)).
				WithText(base64.StdEncoding.EncodeToString(stepResp))
			if err := c.SendElement(ctx, out); err != nil {
				return ErrConnectionLost
			}
		default:
			return ErrInvalidReply
		}
	}
}

func (a *Authenticator) credentials() (string, string) {
	a.mu.Lock()
	usernameFn, passwordFn := a.usernameFn, a.passwordFn
	a.mu.Unlock()

	var username, password string
	if usernameFn != nil {
		username = usernameFn()
	}
	if passwordFn != nil {
		password = passwordFn()
	}
	return username, password
}

func (a *Authenticator) fireSucceeded() {
	a.mu.Lock()
	fns := append([]func(){}, a.succeededFns...)
	a.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

func (a *Authenticator) fireFailed(err error) {
	a.mu.Lock()
	fns := append([]func(error){}, a.failedFns...)
	a.mu.Unlock()
	for _, fn := range fns {
		fn(err)
	}
}

// serverMechanisms extracts the offered mechanism names from the
// <mechanisms xmlns="urn:ietf:params:xml:ns:xmpp-sasl"> child of the
// stream features element. ok is false if no such child is present at
// all, distinct from it being present but empty.
func serverMechanisms(features stanza.Element) (names []string, ok bool) {
	mechanisms, found := features.Child("mechanisms")
	if !found {
		return nil, false
	}
	for _, m := range mechanisms.Children {
		if m.Name == "mechanism" && m.Text != "" {
			names = append(names, m.Text)
		}
	}
	return names, true
}

// selectMechanism intersects offered with the client's implemented set
// (after removing PLAIN when allowCleartext is false), then picks the
// first match in clientMechanismOrder.
func selectMechanism(offered []string, allowCleartext bool) string {
	offeredSet := make(map[string]bool, len(offered))
	for _, m := range offered {
		offeredSet[m] = true
	}
	for _, candidate := range clientMechanismOrder {
		if candidate == "PLAIN" && !allowCleartext {
			continue
		}
		if offeredSet[candidate] {
			return candidate
		}
	}
	return ""
}

func failureReason(failure stanza.Element) string {
	if len(failure.Children) > 0 {
		return failure.Children[0].Name
	}
	return ""
}
