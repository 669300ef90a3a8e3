package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/taskrelay/internal/api"
)

// ServeCommand returns the CLI command for starting the API server
func ServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the agent API server",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port for the API server (overrides config)",
			},
		},
		Action: runServe,
	}
}

func runServe(c *cli.Context) error {
	cfg, err := loadRuntimeConfig(c)
	if err != nil {
		return err
	}

	port := cfg.Server.Port
	if c.IsSet("port") {
		port = c.Int("port")
	}

	pool, err := openPool(c.Context, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	service, err := buildAgentService(c.Context, cfg, pool)
	if err != nil {
		return err
	}

	fmt.Printf("Starting taskrelay API server on port %d...\n", port)
	return api.NewServer(port, service).Start()
}
