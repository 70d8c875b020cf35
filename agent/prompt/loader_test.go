package prompt

import (
	"errors"
	"strings"
	"testing"

	contractx "github.com/tanpawarit/pulse-agent/agent/contract"
)

func TestLoadSetContainsVariantFragments(t *testing.T) {
	t.Parallel()

	set, err := LoadSet()
	if err != nil {
		t.Fatalf("LoadSet: %v", err)
	}
	for _, name := range []string{"base", "admin", "member", "hr", "operations", "insights", "insights_batch", "chat", "specialist", "integration"} {
		if !set.Has(name) {
			t.Fatalf("missing fragment %q (have %v)", name, set.Names())
		}
		if set[name] != strings.TrimSpace(set[name]) {
			t.Fatalf("fragment %q not trimmed", name)
		}
	}
}

func TestRenderSubstitutesPlaceholders(t *testing.T) {
	t.Parallel()

	set := Set{"greeting": "Hi {{actor}} of {{workspace}} ({{timezone}})"}
	got, err := set.Render("greeting", Vars{Actor: "Dana", Workspace: "Launch"})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if got != "Hi Dana of Launch (UTC)" {
		t.Fatalf("unexpected render %q", got)
	}
}

func TestRenderMissingFragment(t *testing.T) {
	t.Parallel()

	_, err := Set{}.Render("admin", Vars{})
	if !errors.Is(err, contractx.ErrPromptMissing) {
		t.Fatalf("expected ErrPromptMissing, got %v", err)
	}
}

func TestRenderedTemplatesHaveNoPlaceholders(t *testing.T) {
	t.Parallel()

	set := MustLoadSet()
	for _, name := range set.Names() {
		out, err := set.Render(name, Vars{})
		if err != nil {
			t.Fatalf("Render(%s): %v", name, err)
		}
		if strings.Contains(out, "{{") {
			t.Fatalf("fragment %s left a placeholder: %s", name, out)
		}
	}
}
