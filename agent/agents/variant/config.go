package variant

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	contractx "github.com/tanpawarit/pulse-agent/agent/contract"
	toolx "github.com/tanpawarit/pulse-agent/agent/tool"
)

//go:embed variants.yaml
var variantsYAML []byte

// PromptStrategy selects how BuildContext assembles system entries.
type PromptStrategy string

const (
	// StrategyStandard renders the fragments and appends a capability summary.
	StrategyStandard PromptStrategy = "standard"
	// StrategyKnowledgeFirst adds a rule sending ambiguous questions to route_to_data.
	StrategyKnowledgeFirst PromptStrategy = "knowledge_first"
	// StrategyStructured renders the fragments only; used for batch output.
	StrategyStructured PromptStrategy = "structured"
)

type Mode string

const (
	ModeInteractive Mode = "interactive"
	ModeBatch       Mode = "batch"
)

type rawBatch struct {
	Prompts []string            `yaml:"prompts"`
	Tools   []string            `yaml:"tools"`
	Schema  string              `yaml:"schema"`
	ToolMap map[string][]string `yaml:"tool_map"`
}

type rawVariant struct {
	Base             string              `yaml:"base"`
	Description      string              `yaml:"description"`
	Prompts          []string            `yaml:"prompts"`
	PromptStrategy   string              `yaml:"prompt_strategy"`
	Tools            []string            `yaml:"tools"`
	ToolMap          map[string][]string `yaml:"tool_map"`
	Integrations     bool                `yaml:"integrations"`
	PrivateExclude   []string            `yaml:"private_exclude"`
	IdentifierFields []string            `yaml:"identifier_fields"`
	Batch            *rawBatch           `yaml:"batch"`
}

// Profile is the validated tool and prompt configuration of one mode of a variant.
type Profile struct {
	Prompts        []string
	Strategy       PromptStrategy
	Tools          []toolx.ToolName
	ToolMap        map[toolx.ToolName][]toolx.ToolName
	ResponseFormat *contractx.ResponseFormat
}

// Definition is one validated variant.
type Definition struct {
	Kind             contractx.AgentKind
	Base             contractx.AgentKind
	Description      string
	Interactive      Profile
	Batch            *Profile
	Integrations     bool
	PrivateExclude   []toolx.ToolName
	IdentifierFields []string
}

// Profile returns the profile for mode.
func (d Definition) Profile(mode Mode) (Profile, error) {
	if mode == ModeBatch {
		if d.Batch == nil {
			return Profile{}, fmt.Errorf("%w: %s has no batch mode", contractx.ErrUnknownVariant, d.Kind)
		}
		return *d.Batch, nil
	}
	return d.Interactive, nil
}

type Definitions map[contractx.AgentKind]Definition

// Kinds lists the configured variants, sorted.
func (d Definitions) Kinds() []contractx.AgentKind {
	out := make([]contractx.AgentKind, 0, len(d))
	for k := range d {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// LoadDefinitions parses the embedded variant file.
func LoadDefinitions() (Definitions, error) {
	return ParseDefinitions(variantsYAML)
}

func MustLoadDefinitions() Definitions {
	defs, err := LoadDefinitions()
	if err != nil {
		panic(err)
	}
	return defs
}

// ParseDefinitions decodes and validates variant YAML.
func ParseDefinitions(data []byte) (Definitions, error) {
	var raw map[string]rawVariant
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: decode variants: %v", contractx.ErrValidation, err)
	}

	defs := make(Definitions, len(raw))
	for name, rv := range raw {
		kind := contractx.AgentKind(strings.TrimSpace(name))
		def, err := buildDefinition(kind, rv)
		if err != nil {
			return nil, err
		}
		defs[kind] = def
	}

	for kind, def := range defs {
		if err := checkBaseChain(defs, kind); err != nil {
			return nil, err
		}
		if def.Base != "" && def.Base != contractx.AgentKindRoot {
			if _, ok := defs[def.Base]; !ok {
				return nil, fmt.Errorf("%w: %s: unknown base %q", contractx.ErrValidation, kind, def.Base)
			}
		}
	}
	return defs, nil
}

func buildDefinition(kind contractx.AgentKind, rv rawVariant) (Definition, error) {
	fail := func(format string, args ...any) (Definition, error) {
		return Definition{}, fmt.Errorf("%w: variant %s: %s", contractx.ErrValidation, kind, fmt.Sprintf(format, args...))
	}
	if kind == "" || kind == contractx.AgentKindRoot {
		return fail("reserved or empty name")
	}

	strategy := PromptStrategy(rv.PromptStrategy)
	if strategy == "" {
		strategy = StrategyStandard
	}
	switch strategy {
	case StrategyStandard, StrategyKnowledgeFirst, StrategyStructured:
	default:
		return fail("unknown prompt strategy %q", rv.PromptStrategy)
	}

	interactive, err := buildProfile(rv.Prompts, strategy, rv.Tools, rv.ToolMap, "")
	if err != nil {
		return fail("%v", err)
	}
	if len(interactive.Prompts) == 0 {
		return fail("no prompts")
	}

	exclude, err := toolx.ParseToolNames(rv.PrivateExclude...)
	if err != nil {
		return fail("private_exclude: %v", err)
	}

	def := Definition{
		Kind:             kind,
		Base:             contractx.AgentKind(strings.TrimSpace(rv.Base)),
		Description:      strings.TrimSpace(rv.Description),
		Interactive:      interactive,
		Integrations:     rv.Integrations,
		PrivateExclude:   exclude,
		IdentifierFields: rv.IdentifierFields,
	}

	if rv.Batch != nil {
		batch, err := buildProfile(rv.Batch.Prompts, StrategyStructured, rv.Batch.Tools, rv.Batch.ToolMap, rv.Batch.Schema)
		if err != nil {
			return fail("batch: %v", err)
		}
		if batch.ResponseFormat == nil {
			return fail("batch mode requires a schema")
		}
		if len(batch.Prompts) == 0 {
			return fail("batch: no prompts")
		}
		def.Batch = &batch
	}
	return def, nil
}

func buildProfile(prompts []string, strategy PromptStrategy, tools []string, toolMap map[string][]string, schema string) (Profile, error) {
	names, err := toolx.ParseToolNames(tools...)
	if err != nil {
		return Profile{}, err
	}
	seen := make(map[toolx.ToolName]bool, len(names))
	for _, n := range names {
		if toolx.IsNested(n) {
			return Profile{}, fmt.Errorf("%s is a nested tool and cannot be offered at top level", n)
		}
		if seen[n] {
			return Profile{}, fmt.Errorf("duplicate tool %s", n)
		}
		seen[n] = true
	}

	mapped := make(map[toolx.ToolName][]toolx.ToolName, len(toolMap))
	for rawKey, rawSubset := range toolMap {
		key, ok := toolx.ParseToolName(rawKey)
		if !ok {
			return Profile{}, &toolx.UnknownToolError{Name: rawKey}
		}
		if !seen[key] {
			return Profile{}, fmt.Errorf("tool_map key %s is not in tools", key)
		}
		subset, err := toolx.ParseToolNames(rawSubset...)
		if err != nil {
			return Profile{}, err
		}
		area, ok := toolx.AreaFor(key)
		if !ok {
			return Profile{}, fmt.Errorf("tool_map key %s does not route to an area", key)
		}
		if got := toolx.AreaTools(area, subset); len(got) != len(subset) {
			return Profile{}, fmt.Errorf("tool_map %s lists tools outside its area", key)
		}
		mapped[key] = subset
	}

	p := Profile{
		Prompts:  prompts,
		Strategy: strategy,
		Tools:    names,
		ToolMap:  mapped,
	}
	if schema != "" {
		f, ok := toolx.NamedFormat(schema)
		if !ok {
			return Profile{}, fmt.Errorf("unknown schema %q", schema)
		}
		p.ResponseFormat = &f
	}
	return p, nil
}

func checkBaseChain(defs Definitions, start contractx.AgentKind) error {
	seen := map[contractx.AgentKind]bool{}
	for kind := start; kind != "" && kind != contractx.AgentKindRoot; {
		if seen[kind] {
			return fmt.Errorf("%w: variant %s: base chain cycles", contractx.ErrValidation, start)
		}
		seen[kind] = true
		def, ok := defs[kind]
		if !ok {
			return nil
		}
		kind = def.Base
	}
	return nil
}
