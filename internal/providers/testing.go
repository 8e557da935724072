package providers

import (
	"context"
	"errors"

	"github.com/aagt-run/aagtcore/internal/stream"
)

// ScriptedProvider is a deterministic in-memory Provider used by tests
// and examples: each call to StreamCompletion either returns the next
// scripted delta sequence or the configured error.
type ScriptedProvider struct {
	NameStr string
	Scripts [][]stream.Delta
	Err     error
	calls   int
}

func (p *ScriptedProvider) Name() string { return p.NameStr }

func (p *ScriptedProvider) StreamCompletion(ctx context.Context, req Request) (StreamHandle, error) {
	if p.Err != nil {
		return nil, p.Err
	}
	if p.calls >= len(p.Scripts) {
		return nil, errors.New("scripted provider exhausted")
	}
	deltas := p.Scripts[p.calls]
	p.calls++
	return newSliceStream(deltas), nil
}

// Calls reports how many times StreamCompletion has been invoked.
func (p *ScriptedProvider) Calls() int { return p.calls }
