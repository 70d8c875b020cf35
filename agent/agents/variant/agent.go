package variant

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/pulse-agent/agent/contract"
	"github.com/tanpawarit/pulse-agent/agent/integration"
	promptx "github.com/tanpawarit/pulse-agent/agent/prompt"
	toolx "github.com/tanpawarit/pulse-agent/agent/tool"
)

// Agent is one configured variant bound to a workspace and an actor.
// Everything it offers the model is fixed at construction.
type Agent struct {
	def       Definition
	mode      Mode
	profile   Profile
	workspace contractx.Workspace
	actor     contractx.Actor
	bindings  integration.Bindings

	tools   []contractx.ToolDescriptor
	offered map[toolx.ToolName]struct{}

	base *Agent
	deps Deps
	now  func() time.Time
}

var (
	_ contractx.Agent                  = (*Agent)(nil)
	_ contractx.ResponseFormatProvider = (*Agent)(nil)
	_ toolx.Host                       = (*Agent)(nil)
)

func (a *Agent) Kind() contractx.AgentKind { return a.def.Kind }

func (a *Agent) Mode() Mode { return a.mode }

func (a *Agent) Services() contractx.Services { return a.deps.Services }

func (a *Agent) Workspace() contractx.Workspace { return a.workspace }

func (a *Agent) Actor() contractx.Actor { return a.actor }

// ListTools returns the tool list cached at construction.
func (a *Agent) ListTools() []contractx.ToolDescriptor {
	return a.tools
}

// RequiredResponseFormat is set only in batch mode.
func (a *Agent) RequiredResponseFormat() *contractx.ResponseFormat {
	return a.profile.ResponseFormat
}

// AllowedSubset returns the nested tools a routing tool may use for this agent.
func (a *Agent) AllowedSubset(name toolx.ToolName) []toolx.ToolName {
	return a.profile.ToolMap[name]
}

func (a *Agent) DescribeCapabilities() string {
	return describeTools(a.def.Description, a.tools)
}

func (a *Agent) promptVars(actor contractx.Actor) promptx.Vars {
	loc := time.UTC
	if actor.Timezone != "" {
		if l, err := time.LoadLocation(actor.Timezone); err == nil {
			loc = l
		}
	}
	return promptx.Vars{
		Workspace: a.workspace.Name,
		Actor:     actor.Name,
		Role:      actor.Role,
		Timezone:  loc.String(),
		Today:     a.now().In(loc).Format("Monday, 2 January 2006"),
	}
}

// BuildContext renders the system entries for this variant's prompt strategy.
func (a *Agent) BuildContext(_ context.Context, actor contractx.Actor) ([]contractx.Entry, error) {
	vars := a.promptVars(actor)

	entries := make([]contractx.Entry, 0, len(a.profile.Prompts)+2)
	for _, name := range a.profile.Prompts {
		text, err := a.deps.Prompts.Render(name, vars)
		if err != nil {
			return nil, err
		}
		entries = append(entries, contractx.SystemEntry(text))
	}

	switch a.profile.Strategy {
	case StrategyStructured:
		return entries, nil
	case StrategyKnowledgeFirst:
		if _, ok := a.offered[toolx.RouteToData]; ok {
			entries = append(entries, contractx.SystemEntry(
				"If you are not sure which tool fits, call route_to_data with the user's question. Do not answer workspace questions without a tool result."))
		}
	}
	entries = append(entries, contractx.SystemEntry(a.DescribeCapabilities()))
	return entries, nil
}

func (a *Agent) logger() *zerolog.Logger {
	base := a.deps.Logger
	if base == nil {
		base = &log.Logger
	}
	l := base.With().
		Str("agent", string(a.def.Kind)).
		Str("pulse_id", a.workspace.PulseID).
		Logger()
	return &l
}
