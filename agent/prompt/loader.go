package prompt

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	contractx "github.com/tanpawarit/pulse-agent/agent/contract"
)

//go:embed template/*.txt
var templates embed.FS

// Set holds prompt fragments keyed by file name without extension.
type Set map[string]string

// Vars fills {{placeholders}} in a fragment. Empty values render as a
// neutral default.
type Vars struct {
	Workspace   string
	Actor       string
	Role        string
	Timezone    string
	Today       string
	Area        string
	Integration string
}

// LoadSet reads every embedded fragment, trimmed.
func LoadSet() (Set, error) {
	entries, err := fs.ReadDir(templates, "template")
	if err != nil {
		return nil, fmt.Errorf("%w: read templates: %v", contractx.ErrPromptMissing, err)
	}
	set := make(Set, len(entries))
	for _, e := range entries {
		if e.IsDir() || path.Ext(e.Name()) != ".txt" {
			continue
		}
		raw, err := templates.ReadFile(path.Join("template", e.Name()))
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", contractx.ErrPromptMissing, e.Name(), err)
		}
		set[strings.TrimSuffix(e.Name(), ".txt")] = strings.TrimSpace(string(raw))
	}
	return set, nil
}

func MustLoadSet() Set {
	set, err := LoadSet()
	if err != nil {
		panic(err)
	}
	return set
}

// Names lists the fragments in the set, sorted.
func (s Set) Names() []string {
	out := make([]string, 0, len(s))
	for name := range s {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func (s Set) Has(name string) bool {
	_, ok := s[name]
	return ok
}

// Render substitutes vars into the named fragment.
func (s Set) Render(name string, vars Vars) (string, error) {
	raw, ok := s[name]
	if !ok || raw == "" {
		return "", fmt.Errorf("%w: %s", contractx.ErrPromptMissing, name)
	}
	return vars.replacer().Replace(raw), nil
}

func (v Vars) replacer() *strings.Replacer {
	or := func(s, def string) string {
		if strings.TrimSpace(s) == "" {
			return def
		}
		return strings.TrimSpace(s)
	}
	return strings.NewReplacer(
		"{{workspace}}", or(v.Workspace, "current"),
		"{{actor}}", or(v.Actor, "a workspace member"),
		"{{role}}", or(v.Role, "member"),
		"{{timezone}}", or(v.Timezone, "UTC"),
		"{{today}}", or(v.Today, "today"),
		"{{area}}", or(v.Area, "workspace"),
		"{{integration}}", or(v.Integration, "connected"),
	)
}
