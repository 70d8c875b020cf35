package orchestrator

import (
	"context"
	"errors"
	"time"

	"github.com/cloudwego/eino/compose"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/pulse-agent/agent/contract"
	turnnode "github.com/tanpawarit/pulse-agent/agent/nodes/turn"
)

var (
	ErrMissingAgent     = turnnode.ErrMissingAgent
	ErrEmptyHistory     = turnnode.ErrEmptyHistory
	ErrMissingWorkspace = turnnode.ErrMissingWorkspace
)

type Config struct {
	// MaxIterations bounds completion calls per turn. 0 disables the bound.
	MaxIterations int `envconfig:"MAX_ITERATIONS" default:"25"`
}

// Orchestrator runs one conversational turn through the tool-calling loop.
// It is stateless across turns and safe for concurrent use.
type Orchestrator struct {
	completer       contractx.Completer
	sink            contractx.EntrySink
	activity        contractx.ActivityStore
	personalization contractx.PersonalizationSource

	graphRunner compose.Runnable[turnnode.GraphInput, turnnode.GraphOutput]

	maxIterations int
	logger        *zerolog.Logger
	now           func() time.Time
	newID         func() string
}

type Option func(*Orchestrator)

func WithActivity(store contractx.ActivityStore) Option {
	return func(o *Orchestrator) { o.activity = store }
}

func WithPersonalization(src contractx.PersonalizationSource) Option {
	return func(o *Orchestrator) { o.personalization = src }
}

func WithLogger(logger *zerolog.Logger) Option {
	return func(o *Orchestrator) { o.logger = logger }
}

func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

func WithIDs(newID func() string) Option {
	return func(o *Orchestrator) { o.newID = newID }
}

func New(
	completer contractx.Completer,
	sink contractx.EntrySink,
	cfg Config,
	opts ...Option,
) (*Orchestrator, error) {
	if completer == nil {
		return nil, errors.New("completer is required")
	}
	if sink == nil {
		return nil, errors.New("entry sink is required")
	}
	if cfg.MaxIterations < 0 {
		return nil, errors.New("max iterations must not be negative")
	}

	o := &Orchestrator{
		completer:     completer,
		sink:          sink,
		maxIterations: cfg.MaxIterations,
		logger:        &log.Logger,
		now:           time.Now,
		newID:         uuid.NewString,
	}
	for _, opt := range opts {
		opt(o)
	}

	graphRunner, err := o.compileTurnGraph(context.Background())
	if err != nil {
		return nil, err
	}
	o.graphRunner = graphRunner

	return o, nil
}

// ProcessTurn returns the final assistant text of the turn. Completion and
// persistence faults propagate; dispatch faults have already been turned
// into tool result text by the agent.
func (o *Orchestrator) ProcessTurn(ctx context.Context, agent contractx.Agent, req contractx.TurnRequest) (string, error) {
	out, err := o.graphRunner.Invoke(ctx, turnnode.GraphInput{
		Agent:   agent,
		Request: req,
	})
	if err != nil {
		return "", err
	}

	o.logger.Debug().
		Str("pulse_id", req.Workspace.PulseID).
		Str("thread_id", req.ThreadID).
		Bool("nested", req.Nested).
		Int("iterations", out.Iterations).
		Int("persisted", out.Persisted).
		Msg("orchestrator: turn finished")

	return out.Reply, nil
}

func (o *Orchestrator) turnLogger(st *turnnode.GraphState) *zerolog.Logger {
	l := o.logger.With().
		Str("agent", string(st.Agent.Kind())).
		Str("pulse_id", st.Scope.PulseID).
		Str("thread_id", st.Scope.ThreadID).
		Str("message_id", st.Scope.MessageID).
		Bool("nested", st.Request.Nested).
		Logger()
	return &l
}
