package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"github.com/google/subcommands"

	"github.com/Thaodan/wocky/jid"
	"github.com/Thaodan/wocky/porter"
	"github.com/Thaodan/wocky/roster"
)

type rosterCmd struct {
	baseCmd
}

func (*rosterCmd) Name() string     { return "roster" }
func (*rosterCmd) Synopsis() string { return "authenticate, fetch the roster, and print it" }
func (*rosterCmd) Usage() string    { return "roster [flags...]\n" }

func (c *rosterCmd) SetFlags(f *flag.FlagSet) {
	c.baseCmd.setFlags(f)
}

func (c *rosterCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	client, err := c.connectAndAuth(ctx)
	if err != nil {
		log.Printf("roster: %v", err)
		return subcommands.ExitFailure
	}

	local := jid.MustParse(c.username + "@" + c.address)
	p := porter.New(client, porter.WithLocalJID(local))
	p.Start()

	r := roster.New(p, roster.WithAccountJID(local))
	if err := r.Fetch(ctx); err != nil {
		log.Printf("roster: fetch: %v", err)
		return subcommands.ExitFailure
	}

	for _, contact := range r.AllContacts() {
		groups := make([]string, 0, len(contact.Groups))
		for g := range contact.Groups {
			groups = append(groups, g)
		}
		fmt.Printf("%s\t%s\tsubscription=%s\tgroups=%v\n", contact.Bare, contact.Name, contact.Subscription, groups)
	}
	return subcommands.ExitSuccess
}
