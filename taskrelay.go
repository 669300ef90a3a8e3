package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/taskrelay/cmd"
)

const (
	version = "0.1.0"
)

func main() {
	app := &cli.App{
		Name:    "taskrelay",
		Usage:   "Conversational agent that delegates long-running work to background jobs",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Load configuration from `FILE`",
				Value:   "taskrelay.toml",
			},
		},
		Commands: []*cli.Command{
			cmd.ServeCommand(),
			cmd.WorkerCommand(),
			cmd.ChatCommand(),
			cmd.ConfigCommand(),
		},
	}

	err := app.Run(os.Args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
