// Command ledgerctl is the operator CLI: run reconciliation, review flagged
// accounts and inspect unfinished intents against the configured store.
package main

import (
	"context"
	"flag"
	"os"
	"path"

	"github.com/google/subcommands"

	"jadbank/internal/logger"
)

func main() {
	logger.Init(os.Getenv("ENV"))
	defer logger.Sync()

	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")

	env := &environment{open: openRepository, out: os.Stdout}
	for _, c := range commands(env) {
		commander.Register(c, "operator")
	}

	flag.Parse()
	os.Exit(int(commander.Execute(context.Background())))
}
