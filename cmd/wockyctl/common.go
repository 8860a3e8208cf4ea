package main

import (
	"context"
	"flag"

	"github.com/Thaodan/wocky/conn"
	"github.com/Thaodan/wocky/sasl"
)

// baseCmd holds the flags and the connect+authenticate sequence shared by
// every subcommand, the same SetCommonFlags/devFinderCmd split the
// dev_finder tool uses for its subcommands.
type baseCmd struct {
	address        string
	username       string
	password       string
	allowCleartext bool
}

func (c *baseCmd) setFlags(f *flag.FlagSet) {
	f.StringVar(&c.address, "address", "example.net", "server domain to connect to")
	f.StringVar(&c.username, "username", "romeo", "SASL username")
	f.StringVar(&c.password, "password", "", "SASL password")
	f.BoolVar(&c.allowCleartext, "allow-cleartext", true, "allow the PLAIN mechanism")
}

// connectAndAuth opens the demo connection, negotiates SASL to
// completion, and returns the authenticated conn.Conn ready for a porter.
func (c *baseCmd) connectAndAuth(ctx context.Context) (conn.Conn, error) {
	client := dialLoopback()

	if err := client.SendOpen(ctx, conn.Open{To: c.address, Version: "1.0"}); err != nil {
		return nil, err
	}
	if _, err := client.RecvOpen(ctx); err != nil {
		return nil, err
	}
	features, err := client.RecvElement(ctx)
	if err != nil {
		return nil, err
	}

	a := sasl.New()
	a.OnUsernameRequested(func() string { return c.username })
	a.OnPasswordRequested(func() string { return c.password })
	if err := a.Authenticate(ctx, c.address, client, features, c.allowCleartext); err != nil {
		return nil, err
	}
	return client, nil
}
