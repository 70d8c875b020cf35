package pg

import (
	"strings"
	"testing"
)

func TestLikePatternEscapesWildcards(t *testing.T) {
	t.Parallel()

	if got := likePattern(" 50%_off "); got != `%50\%\_off%` {
		t.Fatalf("likePattern() = %q", got)
	}
}

func TestSnippet(t *testing.T) {
	t.Parallel()

	if got := snippet("short body", "body"); got != "short body" {
		t.Fatalf("snippet() = %q", got)
	}

	body := strings.Repeat("a", 300) + " Roadmap " + strings.Repeat("b", 300)
	got := snippet(body, "roadmap")
	if !strings.HasPrefix(got, "...") || !strings.HasSuffix(got, "...") || !strings.Contains(got, "Roadmap") {
		t.Fatalf("snippet() = %q", got)
	}
	if len(got) > 2*snippetRadius+len("roadmap")+6 {
		t.Fatalf("snippet too long: %d", len(got))
	}

	if got := snippet(strings.Repeat("x", 400), "missing"); !strings.HasSuffix(got, "...") || strings.HasPrefix(got, "...") {
		t.Fatalf("unmatched query must snippet the start: %q", got)
	}
}
