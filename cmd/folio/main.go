// Command folio runs portfolio jobs from the terminal against the same
// database as the API.
package main

import (
	"context"
	"flag"
	"os"
	"path"

	"github.com/google/subcommands"

	"folio/internal/logger"
	"folio/internal/validator"
)

func main() {
	logger.Init(os.Getenv("ENV"))
	defer logger.Sync()
	validator.Register()

	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	commander.Register(&snapshotCmd{}, "jobs")
	commander.Register(&refreshPricesCmd{}, "jobs")
	commander.Register(&holdingsCmd{}, "reports")

	flag.Parse()
	os.Exit(int(commander.Execute(context.Background())))
}
