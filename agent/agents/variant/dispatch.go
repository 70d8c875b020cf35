package variant

import (
	"context"
	"errors"
	"strings"

	contractx "github.com/tanpawarit/pulse-agent/agent/contract"
	"github.com/tanpawarit/pulse-agent/agent/integration"
	toolx "github.com/tanpawarit/pulse-agent/agent/tool"
)

// Dispatch resolves a tool call in order: identifier normalization, this
// variant's static handlers, its integration bindings, then its base chain.
// Expected failures come back as user-safe text; only collaborator faults
// are returned as errors.
func (a *Agent) Dispatch(ctx context.Context, toolName string, args map[string]any, scope contractx.Scope) (contractx.DispatchResult, error) {
	log := a.logger().With().Str("tool", toolName).Str("thread_id", scope.ThreadID).Str("message_id", scope.MessageID).Logger()

	normalized, err := toolx.NormalizeIdentifiers(args, a.def.IdentifierFields...)
	if err != nil {
		log.Warn().Err(err).Msg("dispatch: identifier normalization failed")
		return contractx.TextResult(contractx.MsgInvalidIdentifier), nil
	}
	return a.dispatch(ctx, toolName, normalized, scope)
}

func (a *Agent) dispatch(ctx context.Context, toolName string, args map[string]any, scope contractx.Scope) (contractx.DispatchResult, error) {
	log := a.logger().With().Str("tool", toolName).Str("thread_id", scope.ThreadID).Logger()

	if name, handler, ok := a.deps.Handlers.Lookup(toolName); ok && a.declares(name) {
		res, err := handler(ctx, a, args, scope, a.AllowedSubset(name))
		if err != nil {
			if contractx.IsCollaboratorFault(err) {
				return contractx.DispatchResult{}, err
			}
			log.Error().Err(err).Msg("dispatch: handler failed")
			return contractx.TextResult(contractx.MsgUnavailable), nil
		}
		return res, nil
	}

	if binding, ok := a.bindings.Lookup(toolName); ok {
		return a.dispatchIntegration(ctx, binding, args, scope)
	}

	if a.base != nil {
		log.Debug().Str("base", string(a.base.Kind())).Msg("dispatch: delegating to base variant")
		return a.base.dispatch(ctx, toolName, args, scope)
	}

	log.Warn().Msg("dispatch: no handler for tool")
	return contractx.TextResult(contractx.MsgNotImplemented), nil
}

// declares reports whether name is handled at this level of the chain.
// Tools withheld from a private workspace are not declared.
func (a *Agent) declares(name toolx.ToolName) bool {
	_, ok := a.offered[name]
	return ok
}

func (a *Agent) dispatchIntegration(ctx context.Context, binding integration.Binding, args map[string]any, scope contractx.Scope) (contractx.DispatchResult, error) {
	log := a.logger().With().
		Str("tool", binding.ToolName).
		Str("integration_id", binding.Record.ID).
		Str("thread_id", scope.ThreadID).
		Logger()

	client, err := binding.NewClient(ctx, binding.Record)
	if err != nil || client == nil {
		log.Error().Err(err).Msg("dispatch: integration client construction failed")
		return contractx.TextResult(contractx.MsgUnavailable), nil
	}

	query := stringArg(args, "query")
	if query == "" {
		return contractx.TextResult("Please describe what you need from " + binding.Descriptor.Name + "."), nil
	}

	sub := newIntegrationAgent(client, binding, a)
	text, err := a.runNested(ctx, sub, scope, query)
	if err != nil {
		if contractx.IsCollaboratorFault(err) {
			return contractx.DispatchResult{}, err
		}
		log.Error().Err(err).Msg("dispatch: integration sub-turn failed")
		return contractx.TextResult(contractx.MsgUnavailable), nil
	}

	res := contractx.DispatchResult{Text: text}
	if f := client.ResultFormat(); f != nil {
		res.Binding = &contractx.ResponseFormatBinding{ToolName: binding.ToolName, Format: *f}
	}
	return res, nil
}

// RunSpecialist runs a nested sub-turn against a specialist limited to tools.
func (a *Agent) RunSpecialist(ctx context.Context, area toolx.Area, tools []toolx.ToolName, scope contractx.Scope, query string) (string, error) {
	sub := newSpecialist(area, tools, a)
	return a.runNested(ctx, sub, scope, query)
}

var errNoRunner = errors.New("variant: no turn runner configured")

func (a *Agent) runNested(ctx context.Context, sub contractx.Agent, scope contractx.Scope, query string) (string, error) {
	if a.deps.Runner == nil {
		return "", errNoRunner
	}
	return a.deps.Runner.ProcessTurn(ctx, sub, contractx.TurnRequest{
		History:   []contractx.Entry{contractx.UserEntry(query)},
		Workspace: a.workspace,
		Actor:     a.actor,
		ThreadID:  scope.ThreadID,
		MessageID: scope.MessageID,
		Nested:    true,
	})
}

func stringArg(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return strings.TrimSpace(s)
}
