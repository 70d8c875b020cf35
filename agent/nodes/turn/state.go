package turnnode

import (
	"time"

	contractx "github.com/tanpawarit/pulse-agent/agent/contract"
)

type GraphInput struct {
	Agent   contractx.Agent
	Request contractx.TurnRequest
}

type GraphOutput struct {
	Reply       string
	Iterations  int
	Persisted   int
	Termination *contractx.TerminationSignal
}

// GraphState lives for exactly one turn. The response-format binding and
// the previous tool name are kept here and never on the agent.
type GraphState struct {
	Agent   contractx.Agent
	Request contractx.TurnRequest
	Scope   contractx.Scope
	Now     time.Time

	LastActivity *time.Time
	History      []contractx.Entry
	Tools        []contractx.ToolDescriptor

	Binding      *contractx.ResponseFormatBinding
	PreviousTool string

	Reply       string
	Iterations  int
	Persisted   int
	Termination *contractx.TerminationSignal
}
