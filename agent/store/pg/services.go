package pg

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/uptrace/bun"

	contractx "github.com/tanpawarit/pulse-agent/agent/contract"
)

const snippetRadius = 120

type knowledgeService struct{ s *Store }

func (k knowledgeService) Search(ctx context.Context, pulseID, query string, limit int) ([]contractx.KnowledgeHit, error) {
	var rows []documentRow
	pattern := likePattern(query)
	err := k.s.db.NewSelect().Model(&rows).
		Where("pulse_id = ?", pulseID).
		WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("title ILIKE ?", pattern).WhereOr("body ILIKE ?", pattern)
		}).
		OrderExpr("(title ILIKE ?) DESC, updated_at DESC", pattern).
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("search documents: %w", err)
	}
	hits := make([]contractx.KnowledgeHit, 0, len(rows))
	for _, r := range rows {
		score := 0.5
		if strings.Contains(strings.ToLower(r.Title), strings.ToLower(strings.TrimSpace(query))) {
			score = 1
		}
		hits = append(hits, contractx.KnowledgeHit{
			DocumentID: r.ID,
			Title:      r.Title,
			Snippet:    snippet(r.Body, query),
			Score:      score,
		})
	}
	return hits, nil
}

func (k knowledgeService) Document(ctx context.Context, pulseID, documentID string) (contractx.Document, error) {
	var row documentRow
	err := k.s.db.NewSelect().Model(&row).
		Where("pulse_id = ?", pulseID).
		Where("id = ?", documentID).
		Scan(ctx)
	if err != nil {
		return contractx.Document{}, notFound(err, "document", documentID)
	}
	return contractx.Document{ID: row.ID, Title: row.Title, Body: row.Body, UpdatedAt: row.UpdatedAt}, nil
}

type meetingService struct{ s *Store }

func (m meetingService) ListMeetings(ctx context.Context, pulseID string, from, to time.Time) ([]contractx.Meeting, error) {
	var rows []meetingRow
	err := m.s.db.NewSelect().Model(&rows).
		Where("pulse_id = ?", pulseID).
		Where("starts_at >= ?", from).
		Where("starts_at < ?", to).
		Order("starts_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("select meetings: %w", err)
	}
	out := make([]contractx.Meeting, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toMeeting())
	}
	return out, nil
}

func (m meetingService) ScheduleMeeting(ctx context.Context, draft contractx.MeetingDraft) (contractx.Meeting, error) {
	row := meetingRow{
		ID:        m.s.newID(),
		PulseID:   draft.PulseID,
		Title:     draft.Title,
		StartsAt:  draft.StartsAt.UTC(),
		EndsAt:    draft.StartsAt.Add(draft.Duration).UTC(),
		Attendees: draft.Attendees,
		CreatedBy: draft.CreatedBy,
		CreatedAt: m.s.now().UTC(),
	}
	if _, err := m.s.db.NewInsert().Model(&row).Exec(ctx); err != nil {
		return contractx.Meeting{}, fmt.Errorf("insert meeting: %w", err)
	}
	return row.toMeeting(), nil
}

func (m meetingService) Meeting(ctx context.Context, pulseID, meetingID string) (contractx.Meeting, error) {
	var row meetingRow
	err := m.s.db.NewSelect().Model(&row).
		Where("pulse_id = ?", pulseID).
		Where("id = ?", meetingID).
		Scan(ctx)
	if err != nil {
		return contractx.Meeting{}, notFound(err, "meeting", meetingID)
	}
	return row.toMeeting(), nil
}

type taskService struct{ s *Store }

func (t taskService) ListTasks(ctx context.Context, pulseID string, filter contractx.TaskFilter) ([]contractx.Task, error) {
	var rows []taskRow
	q := t.s.db.NewSelect().Model(&rows).Where("pulse_id = ?", pulseID)
	if filter.AssigneeID != "" {
		q = q.Where("assignee_id = ?", filter.AssigneeID)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", string(filter.Status))
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	if err := q.OrderExpr("due_at ASC NULLS LAST, created_at DESC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("select tasks: %w", err)
	}
	out := make([]contractx.Task, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toTask())
	}
	return out, nil
}

func (t taskService) CreateTask(ctx context.Context, draft contractx.TaskDraft) (contractx.Task, error) {
	now := t.s.now().UTC()
	row := taskRow{
		ID:         t.s.newID(),
		PulseID:    draft.PulseID,
		Title:      draft.Title,
		Status:     string(contractx.TaskTodo),
		AssigneeID: draft.AssigneeID,
		DueAt:      draft.DueAt,
		CreatedBy:  draft.CreatedBy,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if _, err := t.s.db.NewInsert().Model(&row).Exec(ctx); err != nil {
		return contractx.Task{}, fmt.Errorf("insert task: %w", err)
	}
	return row.toTask(), nil
}

func (t taskService) UpdateTaskStatus(ctx context.Context, pulseID, taskID string, status contractx.TaskStatus) (contractx.Task, error) {
	var row taskRow
	err := t.s.db.NewUpdate().Model(&row).
		Set("status = ?", string(status)).
		Set("updated_at = ?", t.s.now().UTC()).
		Where("pulse_id = ?", pulseID).
		Where("id = ?", taskID).
		Returning("*").
		Scan(ctx)
	if err != nil {
		return contractx.Task{}, notFound(err, "task", taskID)
	}
	return row.toTask(), nil
}

type orgService struct{ s *Store }

func (o orgService) FindMembers(ctx context.Context, orgID, query string, limit int) ([]contractx.Member, error) {
	var rows []memberRow
	pattern := likePattern(query)
	err := o.s.db.NewSelect().Model(&rows).
		Where("org_id = ?", orgID).
		WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("name ILIKE ?", pattern).
				WhereOr("email ILIKE ?", pattern).
				WhereOr("title ILIKE ?", pattern)
		}).
		Order("name ASC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("search members: %w", err)
	}
	return members(rows), nil
}

func (o orgService) ListTeam(ctx context.Context, pulseID string) ([]contractx.Member, error) {
	var rows []memberRow
	err := o.s.db.NewSelect().Model(&rows).
		Where("pulse_id = ?", pulseID).
		Order("team ASC", "name ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("select team: %w", err)
	}
	return members(rows), nil
}

type noteService struct{ s *Store }

func (n noteService) CreateNote(ctx context.Context, draft contractx.NoteDraft) (contractx.Note, error) {
	row := noteRow{
		ID:        n.s.newID(),
		PulseID:   draft.PulseID,
		Title:     draft.Title,
		Body:      draft.Body,
		CreatedBy: draft.CreatedBy,
		CreatedAt: n.s.now().UTC(),
	}
	if _, err := n.s.db.NewInsert().Model(&row).Exec(ctx); err != nil {
		return contractx.Note{}, fmt.Errorf("insert note: %w", err)
	}
	return row.toNote(), nil
}

func (n noteService) SearchNotes(ctx context.Context, pulseID, query string, limit int) ([]contractx.Note, error) {
	var rows []noteRow
	pattern := likePattern(query)
	err := n.s.db.NewSelect().Model(&rows).
		Where("pulse_id = ?", pulseID).
		WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("title ILIKE ?", pattern).WhereOr("body ILIKE ?", pattern)
		}).
		Order("created_at DESC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("search notes: %w", err)
	}
	out := make([]contractx.Note, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toNote())
	}
	return out, nil
}

type messagingService struct{ s *Store }

func (m messagingService) SendDirectMessage(ctx context.Context, msg contractx.DirectMessage) (string, error) {
	row := directMessageRow{
		ID:          m.s.newID(),
		PulseID:     msg.PulseID,
		SenderID:    msg.SenderID,
		RecipientID: msg.RecipientID,
		Body:        msg.Body,
		CreatedAt:   m.s.now().UTC(),
	}
	if _, err := m.s.db.NewInsert().Model(&row).Exec(ctx); err != nil {
		return "", fmt.Errorf("insert direct message: %w", err)
	}
	return row.ID, nil
}

// BroadcastToTeam records the announcement and returns how many members of
// the pulse (or of the named team) it reaches, the sender excluded.
func (m messagingService) BroadcastToTeam(ctx context.Context, msg contractx.Broadcast) (int, error) {
	var recipients int
	err := m.s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		q := tx.NewSelect().Model((*memberRow)(nil)).
			Where("pulse_id = ?", msg.PulseID).
			Where("id::text <> ?", msg.SenderID)
		if msg.Team != "" {
			q = q.Where("team ILIKE ?", msg.Team)
		}
		n, err := q.Count(ctx)
		if err != nil {
			return fmt.Errorf("count recipients: %w", err)
		}
		recipients = n

		row := broadcastRow{
			ID:         m.s.newID(),
			PulseID:    msg.PulseID,
			SenderID:   msg.SenderID,
			Team:       msg.Team,
			Body:       msg.Body,
			Recipients: n,
			CreatedAt:  m.s.now().UTC(),
		}
		if _, err := tx.NewInsert().Model(&row).Exec(ctx); err != nil {
			return fmt.Errorf("insert broadcast: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return recipients, nil
}

func members(rows []memberRow) []contractx.Member {
	out := make([]contractx.Member, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toMember())
	}
	return out
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func likePattern(query string) string {
	return "%" + likeEscaper.Replace(strings.TrimSpace(query)) + "%"
}

// snippet cuts body around the first case-insensitive match of query.
func snippet(body, query string) string {
	body = strings.TrimSpace(body)
	if body == "" {
		return ""
	}
	at := strings.Index(strings.ToLower(body), strings.ToLower(strings.TrimSpace(query)))
	if at < 0 || at > len(body) {
		at = 0
	}
	start := max(at-snippetRadius, 0)
	end := min(at+len(query)+snippetRadius, len(body))
	for start > 0 && !utf8.RuneStart(body[start]) {
		start--
	}
	for end < len(body) && !utf8.RuneStart(body[end]) {
		end++
	}
	out := body[start:end]
	if start > 0 {
		out = "..." + out
	}
	if end < len(body) {
		out += "..."
	}
	return out
}
