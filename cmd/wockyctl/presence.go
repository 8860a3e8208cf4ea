package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"github.com/google/subcommands"

	"github.com/Thaodan/wocky/porter"
	"github.com/Thaodan/wocky/stanza"
)

type presenceCmd struct {
	baseCmd
	show string
}

func (*presenceCmd) Name() string     { return "presence" }
func (*presenceCmd) Synopsis() string { return "authenticate and broadcast a presence" }
func (*presenceCmd) Usage() string    { return "presence [flags...]\n" }

func (c *presenceCmd) SetFlags(f *flag.FlagSet) {
	c.baseCmd.setFlags(f)
	f.StringVar(&c.show, "show", "", "optional <show> value (away, chat, dnd, xa)")
}

func (c *presenceCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	client, err := c.connectAndAuth(ctx)
	if err != nil {
		log.Printf("presence: %v", err)
		return subcommands.ExitFailure
	}

	p := porter.New(client)
	p.Start()

	root := stanza.Element{}
	if c.show != "" {
		root = root.WithChild(stanza.NewElement("show", 0).WithText(c.show))
	}
	if err := p.Send(ctx, stanza.Stanza{Kind: stanza.Presence, Root: root}); err != nil {
		log.Printf("presence: send: %v", err)
		return subcommands.ExitFailure
	}
	fmt.Println("presence sent")
	return subcommands.ExitSuccess
}
