package contract

import "time"

type AgentKind string

const (
	AgentKindRoot        AgentKind = "root"
	AgentKindAdmin       AgentKind = "admin"
	AgentKindMember      AgentKind = "member"
	AgentKindHR          AgentKind = "hr"
	AgentKindOperations  AgentKind = "operations"
	AgentKindInsights    AgentKind = "insights"
	AgentKindChat        AgentKind = "chat"
	AgentKindSpecialist  AgentKind = "specialist"
	AgentKindIntegration AgentKind = "integration"
)

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Entry is one item of the conversation history sent to the completion
// service. History is append-only within a turn.
type Entry struct {
	Role       Role       `json:"role"`
	Content    string     `json:"content,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

func SystemEntry(content string) Entry {
	return Entry{Role: RoleSystem, Content: content}
}

func UserEntry(content string) Entry {
	return Entry{Role: RoleUser, Content: content}
}

func AssistantEntry(content string) Entry {
	return Entry{Role: RoleAssistant, Content: content}
}

// AssistantToolCallEntry carries exactly one tool call, matching how the
// loop records each dispatched call.
func AssistantToolCallEntry(call ToolCall) Entry {
	return Entry{Role: RoleAssistant, ToolCalls: []ToolCall{call}}
}

func ToolResultEntry(callID string, content string) Entry {
	return Entry{Role: RoleTool, Content: content, ToolCallID: callID}
}

// ToolCall is produced by the completion service, never by the orchestrator.
type ToolCall struct {
	ID            string `json:"id"`
	FunctionName  string `json:"function_name"`
	ArgumentsJSON string `json:"arguments"`
}

type ToolDescriptor struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// ResponseFormat is a JSON-schema structured-output constraint.
type ResponseFormat struct {
	Name   string         `json:"name"`
	Schema map[string]any `json:"schema"`
	Strict bool           `json:"strict"`
}

// ResponseFormatBinding is single-use: it applies to the next completion
// call only when the immediately preceding dispatched tool is ToolName.
type ResponseFormatBinding struct {
	ToolName string
	Format   ResponseFormat
}

type TerminationSignal struct {
	Reason string
}

// DispatchResult is what a tool dispatch hands back to the loop.
type DispatchResult struct {
	Text        string
	Binding     *ResponseFormatBinding
	Termination *TerminationSignal
}

func TextResult(text string) DispatchResult {
	return DispatchResult{Text: text}
}

type Workspace struct {
	OrgID   string `json:"org_id"`
	PulseID string `json:"pulse_id"`
	Name    string `json:"name"`
	Private bool   `json:"private"`
}

type Actor struct {
	UserID   string `json:"user_id"`
	Name     string `json:"name"`
	Email    string `json:"email,omitempty"`
	Role     string `json:"role,omitempty"`
	Timezone string `json:"timezone,omitempty"`
}

// Scope identifies where a dispatched tool call runs.
type Scope struct {
	OrgID     string
	PulseID   string
	ThreadID  string
	MessageID string
}

type IntegrationRecord struct {
	ID      string         `json:"id"`
	OrgID   string         `json:"org_id"`
	PulseID string         `json:"pulse_id"`
	Kind    string         `json:"kind"`
	Label   string         `json:"label,omitempty"`
	Config  map[string]any `json:"config,omitempty"`
	Enabled bool           `json:"enabled"`
}

// TurnRequest is the input of one orchestrator invocation.
type TurnRequest struct {
	History        []Entry
	Workspace      Workspace
	Actor          Actor
	ThreadID       string
	MessageID      string
	TopicID        string
	SchemaOverride *ResponseFormat

	// Nested turns run inside a tool dispatch: they skip activity lookup,
	// personalization and persistence.
	Nested bool
}

func (r TurnRequest) Scope() Scope {
	return Scope{
		OrgID:     r.Workspace.OrgID,
		PulseID:   r.Workspace.PulseID,
		ThreadID:  r.ThreadID,
		MessageID: r.MessageID,
	}
}

type CompletionRequest struct {
	AgentKind      AgentKind
	Messages       []Entry
	Tools          []ToolDescriptor
	N              int
	ResponseFormat *ResponseFormat
}

type CompletionResponse struct {
	Choices []CompletionChoice
}

type CompletionChoice struct {
	Message CompletionMessage
}

type CompletionMessage struct {
	Content   string
	ToolCalls []ToolCall
}

// First returns the first choice's message, or an empty message.
func (r CompletionResponse) First() CompletionMessage {
	if len(r.Choices) == 0 {
		return CompletionMessage{}
	}
	return r.Choices[0].Message
}

type EntryStatus string

const (
	EntryStatusCompleted EntryStatus = "completed"
)

// PersistedEntry is one transcript row written by the persistence collaborator.
type PersistedEntry struct {
	ID         string
	Role       Role
	Content    string
	ToolCalls  []ToolCall
	ToolCallID string
	TopicID    string
	PulseID    string
	ThreadID   string
	UserID     string
	MessageID  string
	IsSystem   bool
	Status     EntryStatus
	CreatedAt  time.Time
}
