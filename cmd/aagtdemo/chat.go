package main

import (
	"context"
	"fmt"
	"strings"

	agentcontext "github.com/aagt-run/aagtcore/internal/context"
	"github.com/aagt-run/aagtcore/internal/agentloop"
	"github.com/aagt-run/aagtcore/pkg/models"
	"github.com/spf13/cobra"
)

func buildChatCmd() *cobra.Command {
	var providerName string

	cmd := &cobra.Command{
		Use:   "chat [prompt...]",
		Short: "Run a single agent turn and print the events and final response",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd.Context(), providerName, strings.Join(args, " "))
		},
	}
	cmd.Flags().StringVar(&providerName, "provider", "offline", "Provider to use: anthropic, openai, or offline")
	return cmd
}

func runChat(ctx context.Context, providerName, prompt string) error {
	provider := buildProvider(providerName)

	packer, err := agentcontext.NewPacker(agentcontext.DefaultPackOptions())
	if err != nil {
		return fmt.Errorf("build packer: %w", err)
	}

	cfg := agentloop.DefaultConfig()
	cfg.System = "You are a helpful assistant with access to a small set of demo tools."

	loop := agentloop.New(provider, defaultRegistry(), packer, cfg)

	events, cancel := loop.Events().Subscribe()
	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev := range events {
			printEvent(ev)
		}
	}()

	incoming := models.NewTextMessage(models.RoleUser, prompt)
	text, runErr := loop.Run(ctx, nil, incoming, nil)

	cancel()
	<-done

	if runErr != nil {
		return fmt.Errorf("run: %w", runErr)
	}

	fmt.Println("---")
	fmt.Println(text)
	return nil
}

func printEvent(ev models.AgentEvent) {
	switch ev.Type {
	case models.EventThinking:
		fmt.Printf("[thinking] %s\n", ev.Prompt)
	case models.EventToolCall:
		fmt.Printf("[tool_call] %s(%s)\n", ev.Tool, ev.Input)
	case models.EventApprovalPending:
		fmt.Printf("[approval_pending] %s(%s)\n", ev.Tool, ev.Input)
	case models.EventToolResult:
		fmt.Printf("[tool_result] %s -> %s\n", ev.Tool, ev.Output)
	case models.EventResponse:
		fmt.Printf("[response] %s\n", ev.Content)
	case models.EventError:
		fmt.Printf("[error] %s\n", ev.Message)
	}
}
