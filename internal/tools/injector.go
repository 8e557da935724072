package tools

import (
	"context"
	"fmt"
	"sort"
	"strings"

	agentcontext "github.com/aagt-run/aagtcore/internal/context"
	"github.com/aagt-run/aagtcore/pkg/models"
)

// RegistryInjector adapts a Registry into the context manager's Injector
// contract: it produces a single system message describing every
// registered tool in a language-agnostic typed-interface style, so a
// model sees the same tool catalog regardless of which provider's
// native tool-calling format is in play.
type RegistryInjector struct {
	registry *Registry
}

var _ agentcontext.Injector = (*RegistryInjector)(nil)

// Injector adapts r into the context manager's Injector contract.
func (r *Registry) Injector() *RegistryInjector {
	return &RegistryInjector{registry: r}
}

// Inject ignores req (the tool catalog doesn't vary per collection or
// query) and returns 0 messages when no tools are registered.
func (ri *RegistryInjector) Inject(ctx context.Context, req agentcontext.InjectionRequest) ([]*models.Message, error) {
	defs := ri.registry.Definitions()
	if len(defs) == 0 {
		return nil, nil
	}

	sorted := make([]Definition, len(defs))
	copy(sorted, defs)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	var sb strings.Builder
	sb.WriteString("## Available Tools\n\n")
	for _, d := range sorted {
		fmt.Fprintf(&sb, "### %s\n%s\n", d.Name, d.Description)
		if d.Parameters != nil {
			fmt.Fprintf(&sb, "Parameters (JSON schema): %s\n", schemaWrapper(d.Parameters))
		}
		if d.Binary {
			sb.WriteString("Returns binary output.\n")
		}
		if d.Verified {
			sb.WriteString("Verified tool.\n")
		}
		sb.WriteString("\n")
	}

	return []*models.Message{models.NewTextMessage(models.RoleSystem, sb.String())}, nil
}
