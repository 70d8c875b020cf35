package turnnode

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	contractx "github.com/tanpawarit/pulse-agent/agent/contract"
)

func TestValidateRequest(t *testing.T) {
	t.Parallel()

	now := func() time.Time { return fixedNow }
	cases := []struct {
		in   GraphInput
		want error
	}{
		{GraphInput{Request: contractx.TurnRequest{History: []contractx.Entry{contractx.UserEntry("x")}, Workspace: contractx.Workspace{PulseID: "p"}}}, ErrMissingAgent},
		{GraphInput{Agent: &fakeAgent{}, Request: contractx.TurnRequest{Workspace: contractx.Workspace{PulseID: "p"}}}, ErrEmptyHistory},
		{GraphInput{Agent: &fakeAgent{}, Request: contractx.TurnRequest{History: []contractx.Entry{contractx.UserEntry("x")}, Workspace: contractx.Workspace{PulseID: "  "}}}, ErrMissingWorkspace},
	}
	for _, tc := range cases {
		_, err := ValidateRequest(tc.in, now)
		if !errors.Is(err, tc.want) || !errors.Is(err, contractx.ErrValidation) {
			t.Fatalf("expected %v, got %v", tc.want, err)
		}
	}

	st, err := ValidateRequest(GraphInput{Agent: &fakeAgent{}, Request: contractx.TurnRequest{
		History:   []contractx.Entry{contractx.UserEntry("x")},
		Workspace: contractx.Workspace{OrgID: "o", PulseID: " p "},
		ThreadID:  " t ",
	}}, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if st.Scope != (contractx.Scope{OrgID: "o", PulseID: "p", ThreadID: "t"}) {
		t.Fatalf("unexpected scope %+v", st.Scope)
	}
}

func bootstrapState(req contractx.TurnRequest) *GraphState {
	if req.Workspace.PulseID == "" {
		req.Workspace.PulseID = "pulse"
	}
	req.History = []contractx.Entry{contractx.UserEntry("hello")}
	st, err := ValidateRequest(GraphInput{Agent: &fakeAgent{}, Request: req}, func() time.Time { return fixedNow })
	if err != nil {
		panic(err)
	}
	return st
}

func TestBootstrapContextOrder(t *testing.T) {
	t.Parallel()

	st := bootstrapState(contractx.TurnRequest{ThreadID: "t1", Actor: contractx.Actor{UserID: "u1", Name: "Dana"}})
	activity := &fakeActivity{last: fixedNow.Add(-3 * time.Hour), hasLast: true}
	personal := &fakePersonalization{text: "Prefers short answers."}

	st, err := BootstrapContext(context.Background(), st, activity, personal, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(st.History) != 4 {
		t.Fatalf("expected 4 entries, got %d: %+v", len(st.History), st.History)
	}
	if st.History[0].Content != "system for Dana" {
		t.Fatalf("agent context must come first: %+v", st.History[0])
	}
	if st.History[1].Content != "Prefers short answers." {
		t.Fatalf("personalization must follow: %+v", st.History[1])
	}
	if !strings.Contains(st.History[2].Content, "3h0m0s ago") {
		t.Fatalf("unexpected activity note %q", st.History[2].Content)
	}
	if st.History[3].Role != contractx.RoleUser {
		t.Fatalf("history must come last")
	}
	if st.LastActivity == nil || !st.LastActivity.Equal(fixedNow.Add(-3*time.Hour)) {
		t.Fatalf("unexpected last activity %v", st.LastActivity)
	}
}

func TestBootstrapContextFallsBackToPreviousThread(t *testing.T) {
	t.Parallel()

	st := bootstrapState(contractx.TurnRequest{ThreadID: "t1", Actor: contractx.Actor{UserID: "u1"}})
	prev := fixedNow.Add(-48 * time.Hour)
	st, err := BootstrapContext(context.Background(), st, &fakeActivity{previous: prev, hasPrevious: true}, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if st.LastActivity == nil || !st.LastActivity.Equal(prev) {
		t.Fatalf("expected previous thread time, got %v", st.LastActivity)
	}

	st = bootstrapState(contractx.TurnRequest{ThreadID: "t1", Actor: contractx.Actor{UserID: "u1"}})
	st, err = BootstrapContext(context.Background(), st, &fakeActivity{}, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if st.LastActivity != nil || len(st.History) != 2 {
		t.Fatalf("expected no activity note, got %+v", st.History)
	}
}

func TestBootstrapContextFaults(t *testing.T) {
	t.Parallel()

	st := bootstrapState(contractx.TurnRequest{ThreadID: "t1", Actor: contractx.Actor{UserID: "u1"}})
	_, err := BootstrapContext(context.Background(), st, &fakeActivity{err: errBoom}, nil, nil)
	if !errors.Is(err, contractx.ErrPersistence) {
		t.Fatalf("expected persistence error, got %v", err)
	}

	st = bootstrapState(contractx.TurnRequest{ThreadID: "t1", Actor: contractx.Actor{UserID: "u1"}})
	st, err = BootstrapContext(context.Background(), st, nil, &fakePersonalization{err: errBoom}, nil)
	if err != nil {
		t.Fatalf("personalization failures must not abort the turn: %v", err)
	}
	if len(st.History) != 2 {
		t.Fatalf("unexpected history %+v", st.History)
	}

	st = bootstrapState(contractx.TurnRequest{})
	st.Agent = &fakeAgent{contextErr: contractx.ErrPromptMissing}
	if _, err := BootstrapContext(context.Background(), st, nil, nil, nil); !errors.Is(err, contractx.ErrPromptMissing) {
		t.Fatalf("expected prompt error, got %v", err)
	}
}

func TestBootstrapContextNestedSkipsLookups(t *testing.T) {
	t.Parallel()

	st := bootstrapState(contractx.TurnRequest{ThreadID: "t1", Actor: contractx.Actor{UserID: "u1"}, Nested: true})
	st, err := BootstrapContext(context.Background(), st, &fakeActivity{err: errBoom}, &fakePersonalization{text: "x"}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(st.History) != 2 {
		t.Fatalf("nested turn must only carry agent context and history, got %+v", st.History)
	}
}

func TestListToolsAndFinalize(t *testing.T) {
	t.Parallel()

	agent := &fakeAgent{tools: []contractx.ToolDescriptor{{Name: "a"}}}
	st := newState(agent, contractx.TurnRequest{})
	agent.listCalls = 0
	st, _ = ListTools(st)
	if agent.listCalls != 1 || len(st.Tools) != 1 {
		t.Fatalf("unexpected tools %+v", st.Tools)
	}
	st.Reply, st.Iterations = "ok", 2
	out, _ := FinalizeReply(st)
	if out.Reply != "ok" || out.Iterations != 2 {
		t.Fatalf("unexpected output %+v", out)
	}
}
