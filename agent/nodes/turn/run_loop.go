package turnnode

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	contractx "github.com/tanpawarit/pulse-agent/agent/contract"
)

// LoopDeps are the collaborators the tool-calling loop needs.
type LoopDeps struct {
	Completer     contractx.Completer
	Sink          contractx.EntrySink
	MaxIterations int
	Now           func() time.Time
	NewID         func() string
	Logger        *zerolog.Logger
}

func (d LoopDeps) withDefaults() LoopDeps {
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.NewID == nil {
		d.NewID = uuid.NewString
	}
	d.Logger = orNop(d.Logger)
	return d
}

// RunLoop drives completion calls until the model answers without tool
// calls or a dispatched call terminates the turn. Tool calls of one response
// run sequentially in the order returned.
func RunLoop(ctx context.Context, st *GraphState, deps LoopDeps) (*GraphState, error) {
	deps = deps.withDefaults()
	var required *contractx.ResponseFormat
	if p, ok := st.Agent.(contractx.ResponseFormatProvider); ok {
		required = p.RequiredResponseFormat()
	}

	for {
		if deps.MaxIterations > 0 && st.Iterations >= deps.MaxIterations {
			return nil, fmt.Errorf("%w: %d completion calls", contractx.ErrIterationLimit, st.Iterations)
		}

		format := SelectResponseFormat(st.Request.SchemaOverride, required, st.Binding, st.PreviousTool)
		req := contractx.CompletionRequest{
			AgentKind:      st.Agent.Kind(),
			Messages:       append([]contractx.Entry(nil), st.History...),
			Tools:          st.Tools,
			N:              1,
			ResponseFormat: format,
		}
		st.Iterations++
		log := deps.Logger.With().Int("iteration", st.Iterations).Logger()

		resp, err := deps.Completer.Complete(ctx, req)
		st.Binding = nil
		if err != nil {
			return nil, fmt.Errorf("%w: %w", contractx.ErrModelInvoke, err)
		}

		msg := resp.First()
		log.Debug().
			Int("tool_calls", len(msg.ToolCalls)).
			Bool("response_format", format != nil).
			Msg("loop: completion received")

		if len(msg.ToolCalls) == 0 {
			st.Reply = msg.Content
			return st, nil
		}

		for _, call := range msg.ToolCalls {
			done, err := runToolCall(ctx, st, deps, call, &log)
			if err != nil {
				return nil, err
			}
			if done {
				return st, nil
			}
		}
	}
}

func runToolCall(ctx context.Context, st *GraphState, deps LoopDeps, call contractx.ToolCall, log *zerolog.Logger) (bool, error) {
	args, err := ParseArguments(call.ArgumentsJSON)
	if err != nil {
		log.Warn().Err(err).Str("tool", call.FunctionName).Str("tool_call_id", call.ID).Msg("loop: skipping malformed tool call")
		return false, nil
	}

	res, err := st.Agent.Dispatch(ctx, call.FunctionName, args, st.Scope)
	if err != nil {
		return false, err
	}

	assistant := contractx.AssistantToolCallEntry(call)
	result := contractx.ToolResultEntry(call.ID, res.Text)
	st.History = append(st.History, assistant, result)

	if !st.Request.Nested && deps.Sink != nil {
		for _, e := range []contractx.Entry{assistant, result} {
			if err := deps.Sink.AppendEntry(ctx, persisted(st, deps, e)); err != nil {
				return false, fmt.Errorf("%w: append %s entry: %w", contractx.ErrPersistence, e.Role, err)
			}
			st.Persisted++
		}
	}

	st.PreviousTool = call.FunctionName
	if res.Binding != nil {
		st.Binding = res.Binding
	}
	log.Info().Str("tool", call.FunctionName).Bool("binding", res.Binding != nil).Msg("loop: tool dispatched")

	if sig := Termination(args, res); sig != nil {
		st.Reply = res.Text
		st.Termination = sig
		log.Debug().Str("tool", call.FunctionName).Str("reason", sig.Reason).Msg("loop: turn terminated by tool")
		return true, nil
	}
	return false, nil
}

func persisted(st *GraphState, deps LoopDeps, e contractx.Entry) contractx.PersistedEntry {
	return contractx.PersistedEntry{
		ID:         deps.NewID(),
		Role:       e.Role,
		Content:    e.Content,
		ToolCalls:  e.ToolCalls,
		ToolCallID: e.ToolCallID,
		TopicID:    st.Request.TopicID,
		PulseID:    st.Scope.PulseID,
		ThreadID:   st.Scope.ThreadID,
		UserID:     st.Request.Actor.UserID,
		MessageID:  st.Scope.MessageID,
		IsSystem:   true,
		Status:     contractx.EntryStatusCompleted,
		CreatedAt:  deps.Now().UTC(),
	}
}

func orNop(l *zerolog.Logger) *zerolog.Logger {
	if l != nil {
		return l
	}
	nop := zerolog.Nop()
	return &nop
}
