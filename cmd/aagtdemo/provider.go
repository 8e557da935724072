package main

import (
	"os"

	"github.com/aagt-run/aagtcore/internal/providers"
	"github.com/aagt-run/aagtcore/internal/stream"
)

// buildProvider resolves a providers.Provider from the requested name,
// falling back to an offline scripted provider when no API key is
// configured so the loop can still be exercised end to end.
func buildProvider(name string) providers.Provider {
	switch name {
	case "anthropic":
		if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
			cfg := providers.DefaultAnthropicConfig()
			cfg.APIKey = key
			return providers.NewAnthropicProvider(cfg)
		}
	case "openai":
		if key := os.Getenv("OPENAI_API_KEY"); key != "" {
			cfg := providers.DefaultOpenAIConfig()
			cfg.APIKey = key
			return providers.NewOpenAIProvider(cfg)
		}
	}
	return offlineProvider()
}

// offlineProvider runs one scripted turn: it calls the current_time
// tool, then replies with fixed text that does not include the tool's
// result. It requires no network
// access and no API key, so the demo works out of the box.
func offlineProvider() providers.Provider {
	return &providers.ScriptedProvider{
		NameStr: "offline",
		Scripts: [][]stream.Delta{
			{
				{Type: stream.DeltaThought, Text: "checking the clock tool"},
				{Type: stream.DeltaToolCall, ToolCall: stream.ToolCallDelta{
					ID:   "call-1",
					Name: "current_time",
					Args: []byte(`{}`),
				}},
				{Type: stream.DeltaDone},
			},
			{
				{Type: stream.DeltaText, Text: "Offline demo response (no API key configured). The current_time tool reported the time above."},
				{Type: stream.DeltaDone},
			},
		},
	}
}
