package pg

import (
	"time"

	"github.com/uptrace/bun"

	contractx "github.com/tanpawarit/pulse-agent/agent/contract"
)

type messageRow struct {
	bun.BaseModel `bun:"table:messages,alias:m"`

	ID         string               `bun:"id,pk,type:uuid"`
	TopicID    string               `bun:"topic_id,nullzero"`
	PulseID    string               `bun:"pulse_id,notnull"`
	ThreadID   string               `bun:"thread_id,nullzero"`
	UserID     string               `bun:"user_id,nullzero"`
	MessageID  string               `bun:"message_id,nullzero"`
	Role       string               `bun:"role,notnull"`
	Content    string               `bun:"content"`
	ToolCalls  []contractx.ToolCall `bun:"tool_calls,type:jsonb,nullzero"`
	ToolCallID string               `bun:"tool_call_id,nullzero"`
	IsSystem   bool                 `bun:"is_system,notnull"`
	Status     string               `bun:"status,notnull"`
	CreatedAt  time.Time            `bun:"created_at,notnull"`
}

type threadRow struct {
	bun.BaseModel `bun:"table:threads,alias:th"`

	ID        string    `bun:"id,pk,type:uuid"`
	PulseID   string    `bun:"pulse_id,notnull"`
	UserID    string    `bun:"user_id,notnull"`
	Title     string    `bun:"title"`
	CreatedAt time.Time `bun:"created_at,notnull"`
}

type integrationRow struct {
	bun.BaseModel `bun:"table:integrations,alias:i"`

	ID        string         `bun:"id,pk,type:uuid"`
	OrgID     string         `bun:"org_id,notnull"`
	PulseID   string         `bun:"pulse_id,nullzero"`
	Kind      string         `bun:"kind,notnull"`
	Label     string         `bun:"label"`
	Config    map[string]any `bun:"config,type:jsonb"`
	Enabled   bool           `bun:"enabled,notnull"`
	CreatedAt time.Time      `bun:"created_at,notnull"`
}

type documentRow struct {
	bun.BaseModel `bun:"table:knowledge_documents,alias:d"`

	ID        string    `bun:"id,pk,type:uuid"`
	PulseID   string    `bun:"pulse_id,notnull"`
	Title     string    `bun:"title,notnull"`
	Body      string    `bun:"body"`
	UpdatedAt time.Time `bun:"updated_at,notnull"`
}

type meetingRow struct {
	bun.BaseModel `bun:"table:meetings,alias:mt"`

	ID        string    `bun:"id,pk,type:uuid"`
	PulseID   string    `bun:"pulse_id,notnull"`
	Title     string    `bun:"title,notnull"`
	StartsAt  time.Time `bun:"starts_at,notnull"`
	EndsAt    time.Time `bun:"ends_at,notnull"`
	Attendees []string  `bun:"attendees,type:jsonb"`
	Summary   string    `bun:"summary"`
	CreatedBy string    `bun:"created_by,nullzero"`
	CreatedAt time.Time `bun:"created_at,notnull"`
}

type taskRow struct {
	bun.BaseModel `bun:"table:tasks,alias:t"`

	ID         string     `bun:"id,pk,type:uuid"`
	PulseID    string     `bun:"pulse_id,notnull"`
	Title      string     `bun:"title,notnull"`
	Status     string     `bun:"status,notnull"`
	AssigneeID string     `bun:"assignee_id,nullzero"`
	DueAt      *time.Time `bun:"due_at"`
	CreatedBy  string     `bun:"created_by,nullzero"`
	CreatedAt  time.Time  `bun:"created_at,notnull"`
	UpdatedAt  time.Time  `bun:"updated_at,notnull"`
}

type memberRow struct {
	bun.BaseModel `bun:"table:members,alias:mb"`

	ID        string `bun:"id,pk,type:uuid"`
	OrgID     string `bun:"org_id,notnull"`
	PulseID   string `bun:"pulse_id,nullzero"`
	Name      string `bun:"name,notnull"`
	Email     string `bun:"email"`
	Title     string `bun:"title"`
	Team      string `bun:"team"`
	ManagerID string `bun:"manager_id,nullzero"`
}

type noteRow struct {
	bun.BaseModel `bun:"table:notes,alias:n"`

	ID        string    `bun:"id,pk,type:uuid"`
	PulseID   string    `bun:"pulse_id,notnull"`
	Title     string    `bun:"title,notnull"`
	Body      string    `bun:"body"`
	CreatedBy string    `bun:"created_by,nullzero"`
	CreatedAt time.Time `bun:"created_at,notnull"`
}

type directMessageRow struct {
	bun.BaseModel `bun:"table:direct_messages,alias:dm"`

	ID          string    `bun:"id,pk,type:uuid"`
	PulseID     string    `bun:"pulse_id,notnull"`
	SenderID    string    `bun:"sender_id,notnull"`
	RecipientID string    `bun:"recipient_id,notnull"`
	Body        string    `bun:"body,notnull"`
	CreatedAt   time.Time `bun:"created_at,notnull"`
}

type broadcastRow struct {
	bun.BaseModel `bun:"table:broadcasts,alias:b"`

	ID         string    `bun:"id,pk,type:uuid"`
	PulseID    string    `bun:"pulse_id,notnull"`
	SenderID   string    `bun:"sender_id,notnull"`
	Team       string    `bun:"team"`
	Body       string    `bun:"body,notnull"`
	Recipients int       `bun:"recipients,notnull"`
	CreatedAt  time.Time `bun:"created_at,notnull"`
}

func (r taskRow) toTask() contractx.Task {
	return contractx.Task{
		ID:         r.ID,
		Title:      r.Title,
		Status:     contractx.TaskStatus(r.Status),
		AssigneeID: r.AssigneeID,
		DueAt:      r.DueAt,
	}
}

func (r meetingRow) toMeeting() contractx.Meeting {
	return contractx.Meeting{
		ID:        r.ID,
		Title:     r.Title,
		StartsAt:  r.StartsAt,
		EndsAt:    r.EndsAt,
		Attendees: r.Attendees,
		Summary:   r.Summary,
	}
}

func (r memberRow) toMember() contractx.Member {
	return contractx.Member{
		ID:        r.ID,
		Name:      r.Name,
		Email:     r.Email,
		Title:     r.Title,
		Team:      r.Team,
		ManagerID: r.ManagerID,
	}
}

func (r noteRow) toNote() contractx.Note {
	return contractx.Note{ID: r.ID, Title: r.Title, Body: r.Body, CreatedAt: r.CreatedAt}
}
