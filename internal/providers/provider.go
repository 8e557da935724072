// Package providers implements the provider interface and resilient
// wrapper (C3): a unified streaming-completion contract over
// heterogeneous LLM back-ends, wrapped by a circuit-breaker/fallback
// supervisor.
package providers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aagt-run/aagtcore/internal/stream"
	"github.com/aagt-run/aagtcore/pkg/models"
)

// Sentinel errors for the provider error taxonomy (spec.md §6).
var (
	ErrProviderAuth = errors.New("provider authentication failed")
	ErrHTTP         = errors.New("provider transport error")
)

// RateLimitError carries the retry-after hint a provider returned.
type RateLimitError struct {
	RetryAfterSecs int
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("provider rate limited, retry after %ds", e.RetryAfterSecs)
}

// APIError is a non-auth, non-rate-limit provider-surfaced error.
type APIError struct {
	Message string
}

func (e *APIError) Error() string { return "provider api error: " + e.Message }

// Request carries everything a stream_completion call needs.
type Request struct {
	Model         string
	System        string
	Messages      []*models.Message
	Tools         []ToolDefinition
	Temperature   float64
	MaxTokens     int
	Extra         map[string]any
}

// ToolDefinition is the provider-facing shape of a tool (name, description,
// JSON-schema parameters) — C4 owns the canonical Tool type; this is the
// narrow projection a Request needs.
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// StreamHandle is a single-consume handle over a provider's raw byte
// stream, already demultiplexed into typed deltas by a stream.Decoder.
type StreamHandle interface {
	// Next blocks for the next delta, returning (delta, true, nil) on
	// success, (_, false, nil) once Done has been delivered, or an error.
	Next(ctx context.Context) (stream.Delta, bool, error)
}

// Provider is the capability set every back-end implements: a name and a
// single streaming completion operation. Resilience is a separate wrapper
// composing two providers plus state, never inheritance.
type Provider interface {
	Name() string
	StreamCompletion(ctx context.Context, req Request) (StreamHandle, error)
}

// sliceStream adapts a pre-decoded slice of deltas into a StreamHandle,
// used by in-memory test providers and as the terminal adapter once a
// wire decoder has fully drained a response body.
type sliceStream struct {
	deltas []stream.Delta
	pos    int
}

func newSliceStream(deltas []stream.Delta) *sliceStream { return &sliceStream{deltas: deltas} }

func (s *sliceStream) Next(ctx context.Context) (stream.Delta, bool, error) {
	select {
	case <-ctx.Done():
		return stream.Delta{}, false, ctx.Err()
	default:
	}
	if s.pos >= len(s.deltas) {
		return stream.Delta{}, false, nil
	}
	d := s.deltas[s.pos]
	s.pos++
	return d, true, nil
}

// collect drains a StreamHandle to completion, useful for tests and for
// the resilient wrapper's retry bookkeeping (it must fully observe one
// attempt before deciding success/failure).
func collect(ctx context.Context, h StreamHandle) ([]stream.Delta, error) {
	var out []stream.Delta
	for {
		d, ok, err := h.Next(ctx)
		if err != nil {
			return out, err
		}
		if !ok {
			return out, nil
		}
		out = append(out, d)
		if d.Type == stream.DeltaDone {
			return out, nil
		}
	}
}

// withTimeout wraps ctx with a per-call deadline, mirroring spec.md §4.3's
// "a per-call timeout wraps the primary attempt".
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
