// Command wockyctl is a thin harness exercising the porter, sasl, and
// roster packages end to end: connect, authenticate, fetch the roster,
// send presence. Since the wire codec and TLS upgrade are external
// collaborators outside this module's scope, every subcommand talks to an
// in-process demo server over conn.NewPipe rather than a real socket.
package main

import (
	"context"
	"flag"
	"os"

	"github.com/google/subcommands"
)

func main() {
	subcommands.Register(subcommands.HelpCommand(), "")
	subcommands.Register(subcommands.FlagsCommand(), "")
	subcommands.Register(subcommands.CommandsCommand(), "")
	subcommands.Register(&connectCmd{}, "")
	subcommands.Register(&rosterCmd{}, "")
	subcommands.Register(&presenceCmd{}, "")

	flag.Parse()
	ctx := context.Background()
	os.Exit(int(subcommands.Execute(ctx)))
}
