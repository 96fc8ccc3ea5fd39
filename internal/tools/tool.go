package tools

import (
	"context"

	"github.com/coursepilot/coursepilot/pkg/models"
)

// Tool is a capability the model can invoke by name. Execute returns
// the tool's text output; retrieval problems are reported inside that
// text so the conversation can continue, while a returned error marks a
// genuine execution failure the dispatcher tags for the model.
type Tool interface {
	Schema() models.ToolSchema
	Execute(ctx context.Context, params map[string]any) (string, error)
}

// SourceTracker is implemented by tools that record citations as a side
// effect of formatting results.
type SourceTracker interface {
	LastSources() []models.Source
	ResetSources()
}

// intParam reads an integer parameter, tolerating the float64 that
// JSON decoding produces. Returns nil when the parameter is absent, so
// an explicit 0 stays distinguishable from "not given".
func intParam(params map[string]any, key string) *int {
	v, ok := params[key]
	if !ok || v == nil {
		return nil
	}
	switch n := v.(type) {
	case float64:
		i := int(n)
		return &i
	case int:
		i := n
		return &i
	}
	return nil
}

func stringParam(params map[string]any, key string) string {
	if v, ok := params[key].(string); ok {
		return v
	}
	return ""
}
