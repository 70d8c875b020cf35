package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/tanpawarit/pulse-agent/agent/agents/variant"
	contractx "github.com/tanpawarit/pulse-agent/agent/contract"
	"github.com/tanpawarit/pulse-agent/agent/integration"
)

type fakeCompleter struct {
	mu        sync.Mutex
	responses []contractx.CompletionResponse
	err       error
	requests  []contractx.CompletionRequest
}

func (f *fakeCompleter) Complete(_ context.Context, req contractx.CompletionRequest) (contractx.CompletionResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.err != nil {
		return contractx.CompletionResponse{}, f.err
	}
	if len(f.requests) > len(f.responses) {
		return contractx.CompletionResponse{}, fmt.Errorf("unexpected completion call %d", len(f.requests))
	}
	return f.responses[len(f.requests)-1], nil
}

func text(content string) contractx.CompletionResponse {
	return contractx.CompletionResponse{Choices: []contractx.CompletionChoice{{Message: contractx.CompletionMessage{Content: content}}}}
}

func toolCalls(calls ...contractx.ToolCall) contractx.CompletionResponse {
	return contractx.CompletionResponse{Choices: []contractx.CompletionChoice{{Message: contractx.CompletionMessage{ToolCalls: calls}}}}
}

func call(id, name, args string) contractx.ToolCall {
	return contractx.ToolCall{ID: id, FunctionName: name, ArgumentsJSON: args}
}

type fakeSink struct {
	entries []contractx.PersistedEntry
	err     error
}

func (f *fakeSink) AppendEntry(_ context.Context, e contractx.PersistedEntry) error {
	if f.err != nil {
		return f.err
	}
	f.entries = append(f.entries, e)
	return nil
}

type fakeTasks struct {
	tasks   []contractx.Task
	created []contractx.TaskDraft
}

func (f *fakeTasks) ListTasks(context.Context, string, contractx.TaskFilter) ([]contractx.Task, error) {
	return f.tasks, nil
}

func (f *fakeTasks) CreateTask(_ context.Context, d contractx.TaskDraft) (contractx.Task, error) {
	f.created = append(f.created, d)
	return contractx.Task{ID: "6f1d2b0e-8a3c-4d55-9f0a-2b1c3d4e5f60", Title: d.Title, Status: contractx.TaskTodo}, nil
}

func (f *fakeTasks) UpdateTaskStatus(context.Context, string, string, contractx.TaskStatus) (contractx.Task, error) {
	return contractx.Task{}, nil
}

type fakeIntegrations struct {
	records []contractx.IntegrationRecord
}

func (f fakeIntegrations) ListIntegrations(context.Context, string, string) ([]contractx.IntegrationRecord, error) {
	return f.records, nil
}

var (
	testWorkspace = contractx.Workspace{OrgID: "org", PulseID: "pulse", Name: "Launch"}
	testActor     = contractx.Actor{UserID: "u1", Name: "Dana", Timezone: "UTC"}
	testNow       = time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
)

type harness struct {
	orch      *Orchestrator
	factory   *variant.Factory
	completer *fakeCompleter
	sink      *fakeSink
}

func newHarness(t *testing.T, completer *fakeCompleter, services contractx.Services, opts ...variant.FactoryOption) *harness {
	t.Helper()

	nop := zerolog.Nop()
	sink := &fakeSink{}
	orch, err := New(completer, sink, Config{MaxIterations: 10},
		WithLogger(&nop),
		WithClock(func() time.Time { return testNow }),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	factory, err := variant.NewFactory(variant.MustLoadDefinitions(), variant.Deps{
		Runner:   orch,
		Services: services,
		Logger:   &nop,
		Now:      func() time.Time { return testNow },
	}, opts...)
	if err != nil {
		t.Fatalf("NewFactory() error = %v", err)
	}
	return &harness{orch: orch, factory: factory, completer: completer, sink: sink}
}

func (h *harness) agent(t *testing.T, kind contractx.AgentKind, mode variant.Mode, bindings integration.Bindings) contractx.Agent {
	t.Helper()
	a, err := h.factory.New(kind, variant.Params{Workspace: testWorkspace, Actor: testActor, Mode: mode, Bindings: bindings})
	if err != nil {
		t.Fatalf("factory.New(%s) error = %v", kind, err)
	}
	return a
}

func turn(text string) contractx.TurnRequest {
	return contractx.TurnRequest{
		History:   []contractx.Entry{contractx.UserEntry(text)},
		Workspace: testWorkspace,
		Actor:     testActor,
		ThreadID:  "thread-1",
		MessageID: "msg-1",
		TopicID:   "topic-1",
	}
}

func TestNewRequiresCollaborators(t *testing.T) {
	t.Parallel()

	if _, err := New(nil, &fakeSink{}, Config{}); err == nil {
		t.Fatalf("expected error for missing completer")
	}
	if _, err := New(&fakeCompleter{}, nil, Config{}); err == nil {
		t.Fatalf("expected error for missing sink")
	}
	if _, err := New(&fakeCompleter{}, &fakeSink{}, Config{MaxIterations: -1}); err == nil {
		t.Fatalf("expected error for negative bound")
	}
}

func TestProcessTurnPlainAnswer(t *testing.T) {
	t.Parallel()

	h := newHarness(t, &fakeCompleter{responses: []contractx.CompletionResponse{text("Hi there")}}, contractx.Services{})
	reply, err := h.orch.ProcessTurn(context.Background(), h.agent(t, contractx.AgentKindMember, variant.ModeInteractive, integration.Bindings{}), turn("hello"))
	if err != nil {
		t.Fatalf("ProcessTurn() error = %v", err)
	}
	if reply != "Hi there" {
		t.Fatalf("reply = %q", reply)
	}
	if len(h.sink.entries) != 0 {
		t.Fatalf("expected no persisted entries, got %d", len(h.sink.entries))
	}

	req := h.completer.requests[0]
	if req.AgentKind != contractx.AgentKindMember || req.N != 1 {
		t.Fatalf("unexpected request %+v", req)
	}
	if req.Messages[0].Role != contractx.RoleSystem || req.Messages[len(req.Messages)-1].Content != "hello" {
		t.Fatalf("history must start with system context and end with the user entry: %+v", req.Messages)
	}
	if len(req.Tools) != 3 {
		t.Fatalf("member must offer 3 tools, got %d", len(req.Tools))
	}
}

func TestProcessTurnRunsNestedSpecialist(t *testing.T) {
	t.Parallel()

	tasks := &fakeTasks{tasks: []contractx.Task{{ID: "t-1", Title: "Ship release", Status: contractx.TaskTodo}}}
	completer := &fakeCompleter{responses: []contractx.CompletionResponse{
		toolCalls(call("c1", "route_to_task", `{"query":"what is open?"}`)),
		toolCalls(call("n1", "list_tasks", `{"status":"todo"}`)),
		text("One open task: Ship release."),
		text("You have one open task: Ship release."),
	}}
	h := newHarness(t, completer, contractx.Services{Tasks: tasks})

	reply, err := h.orch.ProcessTurn(context.Background(), h.agent(t, contractx.AgentKindMember, variant.ModeInteractive, integration.Bindings{}), turn("what is open?"))
	if err != nil {
		t.Fatalf("ProcessTurn() error = %v", err)
	}
	if reply != "You have one open task: Ship release." {
		t.Fatalf("reply = %q", reply)
	}

	nested := completer.requests[1]
	if nested.AgentKind != contractx.AgentKindSpecialist {
		t.Fatalf("nested turn must run the specialist, got %s", nested.AgentKind)
	}
	var nestedTools []string
	for _, d := range nested.Tools {
		nestedTools = append(nestedTools, d.Name)
	}
	if strings.Join(nestedTools, ",") != "list_tasks,update_task_status" {
		t.Fatalf("specialist tools must be the member allow-list, got %v", nestedTools)
	}
	if !strings.Contains(completer.requests[2].Messages[len(completer.requests[2].Messages)-1].Content, "Ship release") {
		t.Fatalf("nested tool result missing from nested history")
	}

	if len(h.sink.entries) != 2 {
		t.Fatalf("only the outer call persists, got %d entries", len(h.sink.entries))
	}
	if got := h.sink.entries[1].Content; got != "One open task: Ship release." {
		t.Fatalf("outer tool entry = %q", got)
	}
}

func TestProcessTurnFinalStep(t *testing.T) {
	t.Parallel()

	tasks := &fakeTasks{}
	completer := &fakeCompleter{responses: []contractx.CompletionResponse{
		toolCalls(
			call("c1", "route_to_task", `{"query":"create a task to ship","is_final":true,"step_number":1}`),
			call("c2", "route_to_meeting", `{"query":"book a sync"}`),
		),
		toolCalls(call("n1", "create_task", `{"title":"Ship"}`)),
		text("Task created."),
	}}
	h := newHarness(t, completer, contractx.Services{Tasks: tasks})

	reply, err := h.orch.ProcessTurn(context.Background(), h.agent(t, contractx.AgentKindAdmin, variant.ModeInteractive, integration.Bindings{}), turn("create a task"))
	if err != nil {
		t.Fatalf("ProcessTurn() error = %v", err)
	}
	if reply != "Task created." {
		t.Fatalf("reply = %q", reply)
	}
	if len(h.sink.entries) != 2 {
		t.Fatalf("expected 2 persisted entries, got %d", len(h.sink.entries))
	}
	if len(completer.requests) != 3 {
		t.Fatalf("the meeting call must not run, got %d completion calls", len(completer.requests))
	}
	if len(tasks.created) != 1 || tasks.created[0].CreatedBy != "u1" {
		t.Fatalf("unexpected drafts %+v", tasks.created)
	}
	for _, e := range h.sink.entries {
		if e.TopicID != "topic-1" || e.ThreadID != "thread-1" || !e.IsSystem || !e.CreatedAt.Equal(testNow) {
			t.Fatalf("unexpected persisted entry %+v", e)
		}
	}
}

func TestProcessTurnStrategyBinding(t *testing.T) {
	t.Parallel()

	completer := &fakeCompleter{responses: []contractx.CompletionResponse{
		toolCalls(call("c1", "generate_strategy", `{"objective":"grow adoption"}`)),
		text("Adoption is flat."),
		text(`{"summary":"grow"}`),
	}}
	h := newHarness(t, completer, contractx.Services{})

	reply, err := h.orch.ProcessTurn(context.Background(), h.agent(t, contractx.AgentKindAdmin, variant.ModeInteractive, integration.Bindings{}), turn("plan"))
	if err != nil {
		t.Fatalf("ProcessTurn() error = %v", err)
	}
	if reply != `{"summary":"grow"}` {
		t.Fatalf("reply = %q", reply)
	}
	if completer.requests[0].ResponseFormat != nil || completer.requests[1].ResponseFormat != nil {
		t.Fatalf("no constraint before the strategy tool ran")
	}
	if f := completer.requests[2].ResponseFormat; f == nil || f.Name != "strategy" {
		t.Fatalf("strategy binding must constrain the next outer call, got %+v", f)
	}
}

func TestProcessTurnInsightsBatch(t *testing.T) {
	t.Parallel()

	completer := &fakeCompleter{responses: []contractx.CompletionResponse{text(`{"insights":[]}`)}}
	h := newHarness(t, completer, contractx.Services{})

	reply, err := h.orch.ProcessTurn(context.Background(), h.agent(t, contractx.AgentKindInsights, variant.ModeBatch, integration.Bindings{}), turn("generate insights"))
	if err != nil {
		t.Fatalf("ProcessTurn() error = %v", err)
	}
	if reply != `{"insights":[]}` {
		t.Fatalf("reply = %q", reply)
	}
	req := completer.requests[0]
	if req.ResponseFormat == nil || req.ResponseFormat.Name != "insights" {
		t.Fatalf("batch mode must require the insights format, got %+v", req.ResponseFormat)
	}
	if len(req.Tools) != 3 {
		t.Fatalf("batch mode offers three tools, got %d", len(req.Tools))
	}
}

func TestProcessTurnIntegrationUnavailable(t *testing.T) {
	t.Parallel()

	completer := &fakeCompleter{responses: []contractx.CompletionResponse{
		toolCalls(call("c1", "use_github", `{"query":"open issues"}`)),
		text("GitHub is unavailable right now."),
	}}
	h := newHarness(t, completer, contractx.Services{}, variant.WithIntegrations(fakeIntegrations{records: []contractx.IntegrationRecord{
		{ID: "i1", Kind: "github", Enabled: true, Config: map[string]any{"owner": "acme"}},
	}}, nil))

	bindings, err := h.factory.LoadBindings(context.Background(), testWorkspace)
	if err != nil {
		t.Fatalf("LoadBindings() error = %v", err)
	}
	reply, err := h.orch.ProcessTurn(context.Background(), h.agent(t, contractx.AgentKindAdmin, variant.ModeInteractive, bindings), turn("open issues?"))
	if err != nil {
		t.Fatalf("ProcessTurn() error = %v", err)
	}
	if reply != "GitHub is unavailable right now." {
		t.Fatalf("reply = %q", reply)
	}
	if got := h.sink.entries[1].Content; got != contractx.MsgUnavailable {
		t.Fatalf("tool entry = %q, want the unavailable sentence", got)
	}
}

func TestProcessTurnErrors(t *testing.T) {
	t.Parallel()

	boom := errors.New("upstream down")
	h := newHarness(t, &fakeCompleter{err: boom}, contractx.Services{})
	member := h.agent(t, contractx.AgentKindMember, variant.ModeInteractive, integration.Bindings{})

	_, err := h.orch.ProcessTurn(context.Background(), member, turn("hello"))
	if !errors.Is(err, contractx.ErrModelInvoke) {
		t.Fatalf("expected ErrModelInvoke, got %v", err)
	}

	_, err = h.orch.ProcessTurn(context.Background(), member, contractx.TurnRequest{Workspace: testWorkspace})
	if !errors.Is(err, ErrEmptyHistory) || !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("expected ErrEmptyHistory, got %v", err)
	}

	_, err = h.orch.ProcessTurn(context.Background(), nil, turn("hello"))
	if !errors.Is(err, ErrMissingAgent) {
		t.Fatalf("expected ErrMissingAgent, got %v", err)
	}

	h = newHarness(t, &fakeCompleter{responses: []contractx.CompletionResponse{
		toolCalls(call("c1", "route_to_task", `{}`)),
	}}, contractx.Services{})
	h.sink.err = boom
	_, err = h.orch.ProcessTurn(context.Background(), h.agent(t, contractx.AgentKindMember, variant.ModeInteractive, integration.Bindings{}), turn("hello"))
	if !errors.Is(err, contractx.ErrPersistence) {
		t.Fatalf("expected ErrPersistence, got %v", err)
	}
}
