package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/taskrelay/internal/agent"
)

// ChatCommand returns the CLI command for a local chat session
func ChatCommand() *cli.Command {
	return &cli.Command{
		Name:  "chat",
		Usage: "Talk to the agent from the terminal",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "message",
				Aliases: []string{"m"},
				Usage:   "Send a single message and exit",
			},
			&cli.StringFlag{
				Name:  "thread",
				Usage: "Resume an existing conversation thread",
			},
		},
		Action: runChat,
	}
}

func runChat(c *cli.Context) error {
	cfg, err := loadRuntimeConfig(c)
	if err != nil {
		return err
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

	threadID := c.String("thread")

	if msg := c.String("message"); msg != "" {
		_, err := runTurn(c, service, threadID, msg)
		return err
	}

	fmt.Println("taskrelay chat. Type 'exit' to quit.")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			break
		}

		next, err := runTurn(c, service, threadID, line)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
			continue
		}
		threadID = next
	}
	return scanner.Err()
}

// runTurn streams one turn to the terminal and returns the thread id for
// the next turn
func runTurn(c *cli.Context, service *agent.Service, threadID, message string) (string, error) {
	req := &agent.Request{
		Input: []agent.InputMessage{{Role: agent.RoleUser, Content: message}},
	}
	if threadID != "" {
		req.CustomInputs = map[string]any{"thread_id": threadID}
	}

	events, err := service.Stream(c.Context, req)
	if err != nil {
		return threadID, err
	}

	streaming := false
	for ev := range events {
		switch ev.Type {
		case agent.EventTypeTextDelta:
			fmt.Print(ev.Delta)
			streaming = true
		case agent.EventTypeItemDone:
			if ev.Item.Role == agent.RoleTool {
				fmt.Printf("[%s] %s\n", ev.Item.Name, ev.Item.Content)
			} else if !streaming && ev.Item.Content != "" {
				fmt.Println(ev.Item.Content)
			}
		case agent.EventTypeError:
			fmt.Println()
			return threadID, fmt.Errorf("%s", ev.Message)
		}
	}
	if streaming {
		fmt.Println()
	}

	id, _ := req.CustomInputs["thread_id"].(string)
	return id, nil
}
