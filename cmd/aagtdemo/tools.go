package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aagt-run/aagtcore/internal/tools"
)

// clockTool is a minimal demonstration tool: it takes no meaningful
// arguments and returns the current time, enough to exercise a full
// tool-call round trip through the agent loop without any external
// dependency.
type clockTool struct{}

func (clockTool) Name() string { return "current_time" }

func (clockTool) Definition() tools.Definition {
	return tools.Definition{
		Name:        "current_time",
		Description: "Returns the current UTC time.",
		Parameters: map[string]any{
			"type":       "object",
			"properties": map[string]any{},
		},
	}
}

func (clockTool) Call(ctx context.Context, args string) (string, error) {
	return time.Now().UTC().Format(time.RFC3339), nil
}

// echoTool echoes back its "text" argument, verbatim.
type echoTool struct{}

func (echoTool) Name() string { return "echo" }

func (echoTool) Definition() tools.Definition {
	return tools.Definition{
		Name:        "echo",
		Description: "Echoes back the provided text argument.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"text": map[string]any{"type": "string"},
			},
			"required": []string{"text"},
		},
	}
}

func (echoTool) Call(ctx context.Context, args string) (string, error) {
	var parsed struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal([]byte(args), &parsed); err != nil {
		return "", fmt.Errorf("echo: %w", err)
	}
	return parsed.Text, nil
}

func defaultRegistry() *tools.Registry {
	reg := tools.NewRegistry()
	for _, t := range []tools.Tool{clockTool{}, echoTool{}} {
		if err := reg.Add(t); err != nil {
			panic(fmt.Sprintf("aagtdemo: register %s: %v", t.Name(), err))
		}
	}
	return reg
}
