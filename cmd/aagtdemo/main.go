// Command aagtdemo is a thin example binary exercising the aagtcore
// library end to end: a single agent turn through the reasoning loop,
// and a scheduled job fired through the coordinator.
//
// # Basic usage
//
//	aagtdemo chat "what time is it?"
//	aagtdemo chat --provider openai "say hello"
//	aagtdemo schedule demo
//
// # Environment variables
//
//   - ANTHROPIC_API_KEY: Anthropic API key, used by --provider anthropic
//   - OPENAI_API_KEY: OpenAI API key, used by --provider openai
//
// With no API key configured, aagtdemo falls back to a scripted provider
// so the loop, tool dispatch, and event stream can be exercised offline.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	root := buildRootCmd()
	if err := root.Execute(); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "aagtdemo",
		Short:        "aagtcore demo: run an agent turn or a scheduled job",
		SilenceUsage: true,
	}
	root.AddCommand(buildChatCmd(), buildScheduleCmd())
	return root
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
