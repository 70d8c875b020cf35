package contract

import (
	"context"
	"time"
)

// Completer is the completion-service collaborator.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error)
}

// EntrySink receives the assistant/tool pair produced for every dispatched tool call.
type EntrySink interface {
	AppendEntry(ctx context.Context, entry PersistedEntry) error
}

type ActivityStore interface {
	// LastToolActivity returns the time of the most recent tool entry by the user in the thread.
	LastToolActivity(ctx context.Context, pulseID, threadID, userID string) (time.Time, bool, error)
	// PreviousThreadCreatedAt returns the creation time of the user's thread preceding threadID.
	PreviousThreadCreatedAt(ctx context.Context, pulseID, threadID, userID string) (time.Time, bool, error)
}

type PersonalizationSource interface {
	Personalization(ctx context.Context, pulseID, userID string) (string, error)
}

type IntegrationSource interface {
	ListIntegrations(ctx context.Context, orgID, pulseID string) ([]IntegrationRecord, error)
}

// Agent is the capability contract every variant satisfies.
type Agent interface {
	Kind() AgentKind
	BuildContext(ctx context.Context, actor Actor) ([]Entry, error)
	ListTools() []ToolDescriptor
	Dispatch(ctx context.Context, toolName string, args map[string]any, scope Scope) (DispatchResult, error)
	DescribeCapabilities() string
}

// ResponseFormatProvider is implemented by agents whose output shape is fixed.
type ResponseFormatProvider interface {
	RequiredResponseFormat() *ResponseFormat
}

type TurnRunner interface {
	ProcessTurn(ctx context.Context, agent Agent, req TurnRequest) (string, error)
}
