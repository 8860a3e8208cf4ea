package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"github.com/google/subcommands"
)

type connectCmd struct {
	baseCmd
}

func (*connectCmd) Name() string     { return "connect" }
func (*connectCmd) Synopsis() string { return "authenticate against the demo server and exit" }
func (*connectCmd) Usage() string    { return "connect [flags...]\n" }

func (c *connectCmd) SetFlags(f *flag.FlagSet) {
	c.baseCmd.setFlags(f)
}

func (c *connectCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if _, err := c.connectAndAuth(ctx); err != nil {
		log.Printf("connect: %v", err)
		return subcommands.ExitFailure
	}
	fmt.Println("authenticated")
	return subcommands.ExitSuccess
}
