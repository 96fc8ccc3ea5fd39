package tools

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/coursepilot/coursepilot/pkg/models"
)

// Registry is a name-keyed dispatch table over registered tools. It has
// no tool-specific logic and no memory of its own; source citations are
// polled from the tools themselves.
type Registry struct {
	log   zerolog.Logger
	tools map[string]Tool
	order []string
}

func NewRegistry(log zerolog.Logger) *Registry {
	return &Registry{
		log:   log,
		tools: make(map[string]Tool),
	}
}

// Register adds a tool under its schema name. Registering a second tool
// under the same name replaces the first; last registration wins.
func (r *Registry) Register(t Tool) error {
	name := t.Schema().Name
	if name == "" {
		return fmt.Errorf("tool must declare a name in its schema")
	}
	if _, exists := r.tools[name]; exists {
		r.log.Warn().Str("tool", name).Msg("replacing previously registered tool")
	} else {
		r.order = append(r.order, name)
	}
	r.tools[name] = t
	return nil
}

// Schemas returns all tool definitions in registration order.
func (r *Registry) Schemas() []models.ToolSchema {
	out := make([]models.ToolSchema, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name].Schema())
	}
	return out
}

// Execute dispatches a tool call by name. An unknown name is reported
// as text so the model conversation can continue.
func (r *Registry) Execute(ctx context.Context, name string, params map[string]any) (string, error) {
	t, ok := r.tools[name]
	if !ok {
		return fmt.Sprintf("Tool '%s' not found", name), nil
	}
	return t.Execute(ctx, params)
}

// LastSources returns the citations from whichever tool most recently
// populated them.
func (r *Registry) LastSources() []models.Source {
	for _, name := range r.order {
		if tracker, ok := r.tools[name].(SourceTracker); ok {
			if sources := tracker.LastSources(); len(sources) > 0 {
				return sources
			}
		}
	}
	return nil
}

// ResetSources clears citation state on every tool that tracks it.
// Called once per completed user query before the next one begins.
func (r *Registry) ResetSources() {
	for _, name := range r.order {
		if tracker, ok := r.tools[name].(SourceTracker); ok {
			tracker.ResetSources()
		}
	}
}
