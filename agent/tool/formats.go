package tool

import contractx "github.com/tanpawarit/pulse-agent/agent/contract"

// StrategyFormat constrains the reply that follows a generate_strategy call.
func StrategyFormat() contractx.ResponseFormat {
	goal := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"title":       map[string]any{"type": "string"},
			"description": map[string]any{"type": "string"},
			"owner":       map[string]any{"type": "string"},
			"due":         map[string]any{"type": "string"},
			"metrics": map[string]any{
				"type":  "array",
				"items": map[string]any{"type": "string"},
			},
		},
		"required":             []string{"title", "description", "owner", "due", "metrics"},
		"additionalProperties": false,
	}
	return contractx.ResponseFormat{
		Name:   "strategy",
		Strict: true,
		Schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"summary": map[string]any{"type": "string"},
				"goals":   map[string]any{"type": "array", "items": goal},
			},
			"required":             []string{"summary", "goals"},
			"additionalProperties": false,
		},
	}
}

// InsightsFormat is the required shape of a batch insight generation turn.
func InsightsFormat() contractx.ResponseFormat {
	insight := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"title":      map[string]any{"type": "string"},
			"detail":     map[string]any{"type": "string"},
			"category":   map[string]any{"type": "string", "enum": []string{"risk", "opportunity", "progress", "blocker"}},
			"confidence": map[string]any{"type": "number"},
			"sources": map[string]any{
				"type":  "array",
				"items": map[string]any{"type": "string"},
			},
		},
		"required":             []string{"title", "detail", "category", "confidence", "sources"},
		"additionalProperties": false,
	}
	return contractx.ResponseFormat{
		Name:   "insights",
		Strict: true,
		Schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"insights": map[string]any{"type": "array", "items": insight},
			},
			"required":             []string{"insights"},
			"additionalProperties": false,
		},
	}
}

// NamedFormat resolves a format referenced by name in variant configuration.
func NamedFormat(name string) (contractx.ResponseFormat, bool) {
	switch name {
	case "strategy":
		return StrategyFormat(), true
	case "insights":
		return InsightsFormat(), true
	default:
		return contractx.ResponseFormat{}, false
	}
}
