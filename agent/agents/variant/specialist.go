package variant

import (
	"context"
	"fmt"
	"strings"

	contractx "github.com/tanpawarit/pulse-agent/agent/contract"
	"github.com/tanpawarit/pulse-agent/agent/integration"
	toolx "github.com/tanpawarit/pulse-agent/agent/tool"
)

// specialistAgent runs one area's nested domain tools for a routing handler.
// It only offers and only dispatches the tools it was built with.
type specialistAgent struct {
	area   toolx.Area
	permit map[toolx.ToolName]struct{}
	tools  []contractx.ToolDescriptor
	parent *Agent
}

func newSpecialist(area toolx.Area, tools []toolx.ToolName, parent *Agent) *specialistAgent {
	permit := make(map[toolx.ToolName]struct{}, len(tools))
	for _, t := range tools {
		permit[t] = struct{}{}
	}
	return &specialistAgent{
		area:   area,
		permit: permit,
		tools:  toolx.Descriptors(tools...),
		parent: parent,
	}
}

func (s *specialistAgent) Kind() contractx.AgentKind { return contractx.AgentKindSpecialist }

func (s *specialistAgent) ListTools() []contractx.ToolDescriptor { return s.tools }

func (s *specialistAgent) DescribeCapabilities() string {
	return describeTools(fmt.Sprintf("Specialist for %s.", strings.ReplaceAll(string(s.area), "_", " ")), s.tools)
}

func (s *specialistAgent) BuildContext(_ context.Context, actor contractx.Actor) ([]contractx.Entry, error) {
	vars := s.parent.promptVars(actor)
	vars.Area = strings.ReplaceAll(string(s.area), "_", " ")
	text, err := s.parent.deps.Prompts.Render("specialist", vars)
	if err != nil {
		return nil, err
	}
	return []contractx.Entry{
		contractx.SystemEntry(text),
		contractx.SystemEntry(s.DescribeCapabilities()),
	}, nil
}

func (s *specialistAgent) Dispatch(ctx context.Context, toolName string, args map[string]any, scope contractx.Scope) (contractx.DispatchResult, error) {
	log := s.parent.logger().With().
		Str("specialist", string(s.area)).
		Str("tool", toolName).
		Str("thread_id", scope.ThreadID).
		Logger()

	name, ok := toolx.ParseToolName(toolName)
	if _, permitted := s.permit[name]; !ok || !permitted {
		log.Warn().Msg("specialist: tool not permitted")
		return contractx.TextResult(contractx.MsgNotImplemented), nil
	}
	handler, ok := toolx.LookupDomainHandler(name)
	if !ok {
		return contractx.TextResult(contractx.MsgNotImplemented), nil
	}

	normalized, err := toolx.NormalizeIdentifiers(args, "attendee_ids")
	if err != nil {
		log.Warn().Err(err).Msg("specialist: identifier normalization failed")
		return contractx.TextResult(contractx.MsgInvalidIdentifier), nil
	}

	text, err := handler(ctx, s.parent.deps.Services, scope, s.parent.actor, normalized)
	if err != nil {
		if contractx.IsCollaboratorFault(err) {
			return contractx.DispatchResult{}, err
		}
		log.Error().Err(err).Msg("specialist: domain tool failed")
		return contractx.TextResult(contractx.MsgUnavailable), nil
	}
	return contractx.TextResult(text), nil
}

// integrationAgent is the nested sub-agent bound to one integration client.
type integrationAgent struct {
	client  integration.Client
	binding integration.Binding
	tools   []contractx.ToolDescriptor
	parent  *Agent
}

func newIntegrationAgent(client integration.Client, binding integration.Binding, parent *Agent) *integrationAgent {
	return &integrationAgent{
		client:  client,
		binding: binding,
		tools:   client.Tools(),
		parent:  parent,
	}
}

func (s *integrationAgent) Kind() contractx.AgentKind { return contractx.AgentKindIntegration }

func (s *integrationAgent) ListTools() []contractx.ToolDescriptor { return s.tools }

func (s *integrationAgent) DescribeCapabilities() string {
	return describeTools(s.binding.Descriptor.Description, s.tools)
}

func (s *integrationAgent) BuildContext(_ context.Context, actor contractx.Actor) ([]contractx.Entry, error) {
	vars := s.parent.promptVars(actor)
	vars.Integration = s.client.Kind()
	if label := strings.TrimSpace(s.binding.Record.Label); label != "" {
		vars.Integration += " (" + label + ")"
	}
	text, err := s.parent.deps.Prompts.Render("integration", vars)
	if err != nil {
		return nil, err
	}
	entries := []contractx.Entry{contractx.SystemEntry(text)}
	if instr := strings.TrimSpace(s.client.Instructions()); instr != "" {
		entries = append(entries, contractx.SystemEntry(instr))
	}
	return append(entries, contractx.SystemEntry(s.DescribeCapabilities())), nil
}

func (s *integrationAgent) Dispatch(ctx context.Context, toolName string, args map[string]any, scope contractx.Scope) (contractx.DispatchResult, error) {
	log := s.parent.logger().With().
		Str("integration", s.binding.ToolName).
		Str("tool", toolName).
		Str("thread_id", scope.ThreadID).
		Logger()

	if !hasTool(s.tools, toolName) {
		log.Warn().Msg("integration: tool not offered")
		return contractx.TextResult(contractx.MsgNotImplemented), nil
	}
	text, err := s.client.Call(ctx, toolName, args)
	if err != nil {
		log.Error().Err(err).Msg("integration: call failed")
		return contractx.TextResult(contractx.MsgUnavailable), nil
	}
	return contractx.TextResult(text), nil
}

func hasTool(tools []contractx.ToolDescriptor, name string) bool {
	for _, t := range tools {
		if t.Name == name {
			return true
		}
	}
	return false
}

func describeTools(title string, tools []contractx.ToolDescriptor) string {
	var b strings.Builder
	if title = strings.TrimSpace(title); title != "" {
		b.WriteString(title)
		b.WriteString("\n")
	}
	b.WriteString("Available tools:")
	for _, t := range tools {
		fmt.Fprintf(&b, "\n- %s: %s", t.Name, t.Description)
	}
	return b.String()
}
