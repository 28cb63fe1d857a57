package main

import (
	"os"

	"github.com/catalystcommunity/app-utils-go/logging"
	"github.com/pirate-baby/ATC/cmd"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "atc",
		Usage: "Claude subscription token pool service",
		Commands: []*cli.Command{
			cmd.ServeCommand,
			cmd.MigrateCommand,
			cmd.TokenCommand,
			cmd.ImportCommand,
			cmd.HealthCheckCommand,
		},
	}
	err := app.Run(os.Args)
	if err != nil {
		// log fatal so we exit with the proper exit code, this is important for containerized deployment health checks
		logging.Log.WithError(err).Fatal("runtime error")
	}
}
