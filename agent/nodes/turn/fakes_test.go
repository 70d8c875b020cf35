package turnnode

import (
	"context"
	"errors"
	"fmt"
	"time"

	contractx "github.com/tanpawarit/pulse-agent/agent/contract"
)

type scriptedCompleter struct {
	responses []contractx.CompletionResponse
	err       error
	requests  []contractx.CompletionRequest
}

func (c *scriptedCompleter) Complete(_ context.Context, req contractx.CompletionRequest) (contractx.CompletionResponse, error) {
	c.requests = append(c.requests, req)
	if c.err != nil {
		return contractx.CompletionResponse{}, c.err
	}
	if len(c.requests) > len(c.responses) {
		return contractx.CompletionResponse{}, fmt.Errorf("unexpected completion call %d", len(c.requests))
	}
	return c.responses[len(c.requests)-1], nil
}

func textResponse(content string) contractx.CompletionResponse {
	return contractx.CompletionResponse{Choices: []contractx.CompletionChoice{{Message: contractx.CompletionMessage{Content: content}}}}
}

func toolResponse(calls ...contractx.ToolCall) contractx.CompletionResponse {
	return contractx.CompletionResponse{Choices: []contractx.CompletionChoice{{Message: contractx.CompletionMessage{ToolCalls: calls}}}}
}

func call(id, name, args string) contractx.ToolCall {
	return contractx.ToolCall{ID: id, FunctionName: name, ArgumentsJSON: args}
}

type memorySink struct {
	entries []contractx.PersistedEntry
	err     error
}

func (s *memorySink) AppendEntry(_ context.Context, e contractx.PersistedEntry) error {
	if s.err != nil {
		return s.err
	}
	s.entries = append(s.entries, e)
	return nil
}

type dispatched struct {
	name string
	args map[string]any
}

type fakeAgent struct {
	tools      []contractx.ToolDescriptor
	results    map[string]contractx.DispatchResult
	dispatchFn func(name string) (contractx.DispatchResult, error)
	required   *contractx.ResponseFormat
	contextErr error

	listCalls  int
	dispatched []dispatched
}

func (a *fakeAgent) Kind() contractx.AgentKind { return contractx.AgentKindAdmin }

func (a *fakeAgent) BuildContext(_ context.Context, actor contractx.Actor) ([]contractx.Entry, error) {
	if a.contextErr != nil {
		return nil, a.contextErr
	}
	return []contractx.Entry{contractx.SystemEntry("system for " + actor.Name)}, nil
}

func (a *fakeAgent) ListTools() []contractx.ToolDescriptor {
	a.listCalls++
	return a.tools
}

func (a *fakeAgent) Dispatch(_ context.Context, name string, args map[string]any, _ contractx.Scope) (contractx.DispatchResult, error) {
	a.dispatched = append(a.dispatched, dispatched{name: name, args: args})
	if a.dispatchFn != nil {
		return a.dispatchFn(name)
	}
	if res, ok := a.results[name]; ok {
		return res, nil
	}
	return contractx.TextResult(contractx.MsgNotImplemented), nil
}

func (a *fakeAgent) DescribeCapabilities() string { return "fake" }

type requiredFormatAgent struct {
	*fakeAgent
}

func (a requiredFormatAgent) RequiredResponseFormat() *contractx.ResponseFormat {
	return a.required
}

type fakeActivity struct {
	last, previous       time.Time
	hasLast, hasPrevious bool
	err                  error
}

func (f *fakeActivity) LastToolActivity(context.Context, string, string, string) (time.Time, bool, error) {
	return f.last, f.hasLast, f.err
}

func (f *fakeActivity) PreviousThreadCreatedAt(context.Context, string, string, string) (time.Time, bool, error) {
	return f.previous, f.hasPrevious, f.err
}

type fakePersonalization struct {
	text string
	err  error
}

func (f *fakePersonalization) Personalization(context.Context, string, string) (string, error) {
	return f.text, f.err
}

var errBoom = errors.New("boom")

var fixedNow = time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)

func newState(agent contractx.Agent, req contractx.TurnRequest) *GraphState {
	if req.Workspace.PulseID == "" {
		req.Workspace.PulseID = "pulse"
	}
	if len(req.History) == 0 {
		req.History = []contractx.Entry{contractx.UserEntry("hello")}
	}
	st, err := ValidateRequest(GraphInput{Agent: agent, Request: req}, func() time.Time { return fixedNow })
	if err != nil {
		panic(err)
	}
	st.History = append([]contractx.Entry(nil), req.History...)
	st.Tools = agent.ListTools()
	return st
}

func loopDeps(c contractx.Completer, sink contractx.EntrySink) LoopDeps {
	n := 0
	return LoopDeps{
		Completer: c,
		Sink:      sink,
		Now:       func() time.Time { return fixedNow },
		NewID: func() string {
			n++
			return fmt.Sprintf("entry-%d", n)
		},
	}
}
