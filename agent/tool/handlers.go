package tool

import (
	"context"
	"fmt"
	"strings"

	contractx "github.com/tanpawarit/pulse-agent/agent/contract"
)

// Host is what a routing handler needs from the agent dispatching it.
type Host interface {
	Services() contractx.Services
	Workspace() contractx.Workspace
	Actor() contractx.Actor
	// RunSpecialist runs a nested sub-turn with a specialist restricted to tools.
	RunSpecialist(ctx context.Context, area Area, tools []ToolName, scope contractx.Scope, query string) (string, error)
}

// Handler handles one routing tool call. allowed is the per-agent subset of
// nested tools the call may use; nil means the whole area.
type Handler func(ctx context.Context, host Host, args map[string]any, scope contractx.Scope, allowed []ToolName) (contractx.DispatchResult, error)

// Registry is the static handler table consulted before integrations.
type Registry map[ToolName]Handler

// DefaultRegistry returns the handlers for every routing tool.
func DefaultRegistry() Registry {
	r := Registry{
		GenerateStrategy: handleGenerateStrategy,
		Calculate:        handleCalculate,
	}
	for name := range routeAreas {
		if name == GenerateStrategy {
			continue
		}
		r[name] = routeHandler(name)
	}
	return r
}

// Lookup resolves a model-supplied name against the registry.
func (r Registry) Lookup(raw string) (ToolName, Handler, bool) {
	name, ok := ParseToolName(raw)
	if !ok {
		return "", nil, false
	}
	h, ok := r[name]
	if !ok {
		return "", nil, false
	}
	return name, h, true
}

const msgMissingQuery = "Please describe what you need so I can look into it."

func routeHandler(name ToolName) Handler {
	return func(ctx context.Context, host Host, args map[string]any, scope contractx.Scope, allowed []ToolName) (contractx.DispatchResult, error) {
		area, ok := AreaFor(name)
		if !ok {
			return contractx.TextResult(contractx.MsgNotImplemented), nil
		}
		query := stringArg(args, "query")
		if query == "" {
			return contractx.TextResult(msgMissingQuery), nil
		}
		tools := AreaTools(area, allowed)
		if len(tools) == 0 {
			return contractx.TextResult(contractx.MsgNotImplemented), nil
		}
		text, err := host.RunSpecialist(ctx, area, tools, scope, query)
		if err != nil {
			return contractx.DispatchResult{}, err
		}
		return contractx.TextResult(text), nil
	}
}

func handleGenerateStrategy(ctx context.Context, host Host, args map[string]any, scope contractx.Scope, allowed []ToolName) (contractx.DispatchResult, error) {
	objective := stringArg(args, "objective")
	if objective == "" {
		objective = stringArg(args, "query")
	}
	if objective == "" {
		return contractx.TextResult(msgMissingQuery), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Collect the workspace facts needed to plan for this objective: %s.", objective)
	if horizon := stringArg(args, "horizon"); horizon != "" {
		fmt.Fprintf(&b, " Planning horizon: %s.", horizon)
	}
	if ws := host.Workspace(); ws.Name != "" {
		fmt.Fprintf(&b, " Workspace: %s.", ws.Name)
	}
	b.WriteString(" Return a concise briefing with the relevant facts and figures.")

	tools := AreaTools(AreaData, allowed)
	if len(tools) == 0 {
		return contractx.TextResult(contractx.MsgNotImplemented), nil
	}
	briefing, err := host.RunSpecialist(ctx, AreaData, tools, scope, b.String())
	if err != nil {
		return contractx.DispatchResult{}, err
	}
	return contractx.DispatchResult{
		Text: briefing,
		Binding: &contractx.ResponseFormatBinding{
			ToolName: string(GenerateStrategy),
			Format:   StrategyFormat(),
		},
	}, nil
}

func handleCalculate(_ context.Context, _ Host, args map[string]any, _ contractx.Scope, _ []ToolName) (contractx.DispatchResult, error) {
	return contractx.TextResult(evaluateCalculation(args)), nil
}

func stringArg(args map[string]any, key string) string {
	v, ok := args[key]
	if !ok || v == nil {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		return strings.TrimSpace(fmt.Sprint(v))
	}
	return strings.TrimSpace(s)
}
