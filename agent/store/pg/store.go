package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	contractx "github.com/tanpawarit/pulse-agent/agent/contract"
)

var (
	_ contractx.EntrySink         = (*Store)(nil)
	_ contractx.ActivityStore     = (*Store)(nil)
	_ contractx.IntegrationSource = (*Store)(nil)
)

// Store is the Postgres side of the orchestrator: transcript entries,
// threads, integrations and the workspace domain services.
type Store struct {
	db    bun.IDB
	now   func() time.Time
	newID func() string
}

type Option func(*Store)

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func New(db bun.IDB, opts ...Option) *Store {
	s := &Store{db: db, now: time.Now, newID: uuid.NewString}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Services exposes the domain services backed by this store.
func (s *Store) Services() contractx.Services {
	return contractx.Services{
		Knowledge: knowledgeService{s},
		Meetings:  meetingService{s},
		Tasks:     taskService{s},
		Org:       orgService{s},
		Notes:     noteService{s},
		Messaging: messagingService{s},
	}
}

func (s *Store) AppendEntry(ctx context.Context, e contractx.PersistedEntry) error {
	row := messageRow{
		ID:         e.ID,
		TopicID:    e.TopicID,
		PulseID:    e.PulseID,
		ThreadID:   e.ThreadID,
		UserID:     e.UserID,
		MessageID:  e.MessageID,
		Role:       string(e.Role),
		Content:    e.Content,
		ToolCalls:  e.ToolCalls,
		ToolCallID: e.ToolCallID,
		IsSystem:   e.IsSystem,
		Status:     string(e.Status),
		CreatedAt:  e.CreatedAt,
	}
	if row.ID == "" {
		row.ID = s.newID()
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = s.now().UTC()
	}
	if _, err := s.db.NewInsert().Model(&row).Exec(ctx); err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

// Entries returns a thread's transcript in insertion order.
func (s *Store) Entries(ctx context.Context, pulseID, threadID string) ([]contractx.PersistedEntry, error) {
	var rows []messageRow
	err := s.db.NewSelect().Model(&rows).
		Where("pulse_id = ?", pulseID).
		Where("thread_id = ?", threadID).
		Order("created_at ASC", "id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("select messages: %w", err)
	}
	out := make([]contractx.PersistedEntry, 0, len(rows))
	for _, r := range rows {
		out = append(out, contractx.PersistedEntry{
			ID:         r.ID,
			Role:       contractx.Role(r.Role),
			Content:    r.Content,
			ToolCalls:  r.ToolCalls,
			ToolCallID: r.ToolCallID,
			TopicID:    r.TopicID,
			PulseID:    r.PulseID,
			ThreadID:   r.ThreadID,
			UserID:     r.UserID,
			MessageID:  r.MessageID,
			IsSystem:   r.IsSystem,
			Status:     contractx.EntryStatus(r.Status),
			CreatedAt:  r.CreatedAt,
		})
	}
	return out, nil
}

func (s *Store) LastToolActivity(ctx context.Context, pulseID, threadID, userID string) (time.Time, bool, error) {
	var at time.Time
	err := s.db.NewSelect().Model((*messageRow)(nil)).
		Column("created_at").
		Where("pulse_id = ?", pulseID).
		Where("thread_id = ?", threadID).
		Where("user_id = ?", userID).
		Where("role = ?", string(contractx.RoleTool)).
		Order("created_at DESC").
		Limit(1).
		Scan(ctx, &at)
	return found(at, err)
}

// PreviousThreadCreatedAt finds the user's thread created just before
// threadID. When threadID is unknown, the user's newest thread counts.
func (s *Store) PreviousThreadCreatedAt(ctx context.Context, pulseID, threadID, userID string) (time.Time, bool, error) {
	var at time.Time
	err := s.db.NewSelect().Model((*threadRow)(nil)).
		Column("created_at").
		Where("pulse_id = ?", pulseID).
		Where("user_id = ?", userID).
		Where("id::text <> ?", threadID).
		Where("created_at < COALESCE((SELECT cur.created_at FROM threads AS cur WHERE cur.id::text = ?), now())", threadID).
		Order("created_at DESC").
		Limit(1).
		Scan(ctx, &at)
	return found(at, err)
}

// CreateThread opens a new conversation thread and returns its id.
func (s *Store) CreateThread(ctx context.Context, pulseID, userID, title string) (string, error) {
	row := threadRow{
		ID:        s.newID(),
		PulseID:   pulseID,
		UserID:    userID,
		Title:     strings.TrimSpace(title),
		CreatedAt: s.now().UTC(),
	}
	if _, err := s.db.NewInsert().Model(&row).Exec(ctx); err != nil {
		return "", fmt.Errorf("insert thread: %w", err)
	}
	return row.ID, nil
}

// ListIntegrations returns org-wide integrations and the pulse's own, oldest first.
func (s *Store) ListIntegrations(ctx context.Context, orgID, pulseID string) ([]contractx.IntegrationRecord, error) {
	var rows []integrationRow
	err := s.db.NewSelect().Model(&rows).
		Where("org_id = ?", orgID).
		WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("pulse_id IS NULL").WhereOr("pulse_id = ?", pulseID)
		}).
		Order("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("select integrations: %w", err)
	}
	out := make([]contractx.IntegrationRecord, 0, len(rows))
	for _, r := range rows {
		out = append(out, contractx.IntegrationRecord{
			ID:      r.ID,
			OrgID:   r.OrgID,
			PulseID: r.PulseID,
			Kind:    r.Kind,
			Label:   r.Label,
			Config:  r.Config,
			Enabled: r.Enabled,
		})
	}
	return out, nil
}

// SaveIntegration inserts or replaces an integration record.
func (s *Store) SaveIntegration(ctx context.Context, rec contractx.IntegrationRecord) (string, error) {
	row := integrationRow{
		ID:        rec.ID,
		OrgID:     rec.OrgID,
		PulseID:   rec.PulseID,
		Kind:      strings.ToLower(strings.TrimSpace(rec.Kind)),
		Label:     rec.Label,
		Config:    rec.Config,
		Enabled:   rec.Enabled,
		CreatedAt: s.now().UTC(),
	}
	if row.ID == "" {
		row.ID = s.newID()
	}
	_, err := s.db.NewInsert().Model(&row).
		On("CONFLICT (id) DO UPDATE").
		Set("kind = EXCLUDED.kind").
		Set("label = EXCLUDED.label").
		Set("config = EXCLUDED.config").
		Set("enabled = EXCLUDED.enabled").
		Exec(ctx)
	if err != nil {
		return "", fmt.Errorf("upsert integration: %w", err)
	}
	return row.ID, nil
}

func found(at time.Time, err error) (time.Time, bool, error) {
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	return at.UTC(), true, nil
}

func notFound(err error, what, id string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s %s: %w", what, id, contractx.ErrNotFound)
	}
	return fmt.Errorf("select %s: %w", what, err)
}
