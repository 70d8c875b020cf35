package variant

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	contractx "github.com/tanpawarit/pulse-agent/agent/contract"
	"github.com/tanpawarit/pulse-agent/agent/integration"
	promptx "github.com/tanpawarit/pulse-agent/agent/prompt"
	toolx "github.com/tanpawarit/pulse-agent/agent/tool"
)

// Deps are the long-lived collaborators shared by every agent a Factory builds.
type Deps struct {
	Runner   contractx.TurnRunner
	Services contractx.Services
	Prompts  promptx.Set
	Handlers toolx.Registry
	// Logger defaults to the global zerolog logger.
	Logger *zerolog.Logger
	Now    func() time.Time
}

// Params select what one agent is built for.
type Params struct {
	Workspace contractx.Workspace
	Actor     contractx.Actor
	Mode      Mode
	// Bindings come from BuildBindings; agents never scan integrations themselves.
	Bindings integration.Bindings
}

type Factory struct {
	defs         Definitions
	deps         Deps
	catalog      integration.Catalog
	integrations contractx.IntegrationSource
}

type FactoryOption func(*Factory)

func WithIntegrations(source contractx.IntegrationSource, catalog integration.Catalog) FactoryOption {
	return func(f *Factory) {
		f.integrations = source
		if catalog != nil {
			f.catalog = catalog
		}
	}
}

// NewFactory checks that every prompt fragment the definitions reference exists.
func NewFactory(defs Definitions, deps Deps, opts ...FactoryOption) (*Factory, error) {
	if len(defs) == 0 {
		return nil, fmt.Errorf("%w: no variant definitions", contractx.ErrValidation)
	}
	if deps.Handlers == nil {
		deps.Handlers = toolx.DefaultRegistry()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Prompts == nil {
		set, err := promptx.LoadSet()
		if err != nil {
			return nil, err
		}
		deps.Prompts = set
	}

	for _, def := range defs {
		profiles := []Profile{def.Interactive}
		if def.Batch != nil {
			profiles = append(profiles, *def.Batch)
		}
		for _, p := range profiles {
			for _, name := range p.Prompts {
				if !deps.Prompts.Has(name) {
					return nil, fmt.Errorf("%w: variant %s references prompt %q", contractx.ErrPromptMissing, def.Kind, name)
				}
			}
		}
	}
	for _, name := range []string{"specialist", "integration"} {
		if !deps.Prompts.Has(name) {
			return nil, fmt.Errorf("%w: %s", contractx.ErrPromptMissing, name)
		}
	}

	f := &Factory{defs: defs, deps: deps, catalog: integration.DefaultCatalog()}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

func (f *Factory) Definitions() Definitions { return f.defs }

// LoadBindings reads the workspace's integrations and builds a fresh routing table.
func (f *Factory) LoadBindings(ctx context.Context, ws contractx.Workspace) (integration.Bindings, error) {
	if f.integrations == nil {
		return integration.Bindings{}, nil
	}
	records, err := f.integrations.ListIntegrations(ctx, ws.OrgID, ws.PulseID)
	if err != nil {
		return integration.Bindings{}, fmt.Errorf("%w: list integrations: %v", contractx.ErrPersistence, err)
	}
	return integration.BuildBindings(records, f.catalog), nil
}

// New builds the agent for kind together with its base chain.
func (f *Factory) New(kind contractx.AgentKind, p Params) (*Agent, error) {
	if p.Mode == "" {
		p.Mode = ModeInteractive
	}
	return f.build(kind, p, map[contractx.AgentKind]bool{})
}

func (f *Factory) build(kind contractx.AgentKind, p Params, visiting map[contractx.AgentKind]bool) (*Agent, error) {
	def, ok := f.defs[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s", contractx.ErrUnknownVariant, kind)
	}
	if visiting[kind] {
		return nil, fmt.Errorf("%w: base chain of %s cycles", contractx.ErrValidation, kind)
	}
	visiting[kind] = true

	profile, err := def.Profile(p.Mode)
	if err != nil {
		return nil, err
	}

	a := &Agent{
		def:       def,
		mode:      p.Mode,
		profile:   profile,
		workspace: p.Workspace,
		actor:     p.Actor,
		deps:      f.deps,
		now:       f.deps.Now,
	}
	if def.Integrations && p.Mode == ModeInteractive {
		a.bindings = p.Bindings
	}
	a.offered, a.tools = f.composeTools(def, profile, p.Workspace, a.bindings)

	if def.Base != "" && def.Base != contractx.AgentKindRoot {
		base, err := f.build(def.Base, Params{
			Workspace: p.Workspace,
			Actor:     p.Actor,
			Mode:      ModeInteractive,
			Bindings:  p.Bindings,
		}, visiting)
		if err != nil {
			return nil, err
		}
		a.base = base
	}
	return a, nil
}

// composeTools applies the private-workspace exclusions and appends
// integration tools after the static ones.
func (f *Factory) composeTools(def Definition, profile Profile, ws contractx.Workspace, bindings integration.Bindings) (map[toolx.ToolName]struct{}, []contractx.ToolDescriptor) {
	excluded := map[toolx.ToolName]bool{}
	if ws.Private {
		for _, n := range def.PrivateExclude {
			excluded[n] = true
		}
	}

	offered := make(map[toolx.ToolName]struct{}, len(profile.Tools))
	names := make([]toolx.ToolName, 0, len(profile.Tools))
	for _, n := range profile.Tools {
		if excluded[n] {
			continue
		}
		offered[n] = struct{}{}
		names = append(names, n)
	}

	tools := toolx.Descriptors(names...)
	tools = append(tools, bindings.Descriptors()...)
	return offered, tools
}
