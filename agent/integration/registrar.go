package integration

import (
	"regexp"
	"strings"

	contractx "github.com/tanpawarit/pulse-agent/agent/contract"
)

// Binding routes one integration tool name to the record and factory behind it.
type Binding struct {
	ToolName   string
	Descriptor contractx.ToolDescriptor
	Record     contractx.IntegrationRecord
	NewClient  Factory
}

// Bindings is the per-agent routing table for integration tools.
type Bindings struct {
	order  []string
	byName map[string]Binding
}

// BuildBindings derives the routing table from the configured integrations.
// Disabled records and unknown kinds are skipped. When two records produce
// the same tool name the first one wins.
func BuildBindings(records []contractx.IntegrationRecord, catalog Catalog) Bindings {
	b := Bindings{byName: make(map[string]Binding, len(records))}
	for _, rec := range records {
		if !rec.Enabled {
			continue
		}
		kind, ok := catalog[strings.ToLower(strings.TrimSpace(rec.Kind))]
		if !ok {
			continue
		}
		desc := kind.Describe(rec)
		if desc.Name == "" {
			continue
		}
		if _, dup := b.byName[desc.Name]; dup {
			continue
		}
		b.byName[desc.Name] = Binding{
			ToolName:   desc.Name,
			Descriptor: desc,
			Record:     rec,
			NewClient:  kind.NewClient,
		}
		b.order = append(b.order, desc.Name)
	}
	return b
}

func (b Bindings) Len() int { return len(b.order) }

func (b Bindings) Lookup(toolName string) (Binding, bool) {
	binding, ok := b.byName[toolName]
	return binding, ok
}

// Descriptors returns the integration tools in record order.
func (b Bindings) Descriptors() []contractx.ToolDescriptor {
	out := make([]contractx.ToolDescriptor, 0, len(b.order))
	for _, name := range b.order {
		out = append(out, b.byName[name].Descriptor)
	}
	return out
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// ToolNameFor returns "use_<kind>" or "use_<kind>_<label-slug>".
func ToolNameFor(kind, label string) string {
	name := "use_" + kind
	slug := strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(label), "_"), "_")
	if slug == "" {
		return name
	}
	return name + "_" + slug
}
