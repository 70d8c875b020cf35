package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"

	contractx "github.com/tanpawarit/pulse-agent/agent/contract"
)

// DomainHandler executes one nested tool against the workspace services and
// returns the JSON text handed back to the specialist model.
type DomainHandler func(ctx context.Context, svc contractx.Services, scope contractx.Scope, actor contractx.Actor, args map[string]any) (string, error)

var domainHandlers = map[ToolName]DomainHandler{
	SearchKnowledge:   searchKnowledge,
	GetDocument:       getDocument,
	ListMeetings:      listMeetings,
	ScheduleMeeting:   scheduleMeeting,
	GetMeetingSummary: getMeetingSummary,
	ListTasks:         listTasks,
	CreateTask:        createTask,
	UpdateTaskStatus:  updateTaskStatus,
	FindMember:        findMember,
	ListTeam:          listTeam,
	CreateNote:        createNote,
	SearchNotes:       searchNotes,
	SendDirectMessage: sendDirectMessage,
	BroadcastToTeam:   broadcastToTeam,
}

func LookupDomainHandler(name ToolName) (DomainHandler, bool) {
	h, ok := domainHandlers[name]
	return h, ok
}

var errServiceMissing = fmt.Errorf("%w: service not configured", contractx.ErrIntegrationUnavailable)

// argumentError is reported to the model as a result, not raised.
type argumentError struct{ msg string }

func (e argumentError) Error() string { return e.msg }

func decodeArgs(args map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		TagName:          "json",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(args); err != nil {
		return argumentError{msg: "invalid arguments: " + err.Error()}
	}
	return nil
}

func jsonResult(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func errorResult(msg string) (string, error) {
	return jsonResult(map[string]string{"error": msg})
}

// handled converts argument problems into results and keeps real faults as errors.
func handled(text string, err error) (string, error) {
	var argErr argumentError
	if errors.As(err, &argErr) {
		return errorResult(argErr.msg)
	}
	if errors.Is(err, contractx.ErrNotFound) {
		return errorResult(err.Error())
	}
	return text, err
}

func limitOr(v, def, max int) int {
	if v <= 0 {
		return def
	}
	if v > max {
		return max
	}
	return v
}

func parseWhen(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.DateOnly, raw); err == nil {
		return t, nil
	}
	return time.Time{}, argumentError{msg: fmt.Sprintf("cannot parse time %q, use RFC3339 or YYYY-MM-DD", raw)}
}

type searchArgs struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

func searchKnowledge(ctx context.Context, svc contractx.Services, scope contractx.Scope, _ contractx.Actor, args map[string]any) (string, error) {
	if svc.Knowledge == nil {
		return "", errServiceMissing
	}
	var in searchArgs
	if err := decodeArgs(args, &in); err != nil {
		return handled("", err)
	}
	if strings.TrimSpace(in.Query) == "" {
		return errorResult("query is required")
	}
	hits, err := svc.Knowledge.Search(ctx, scope.PulseID, in.Query, limitOr(in.Limit, 5, 20))
	if err != nil {
		return "", err
	}
	return jsonResult(map[string]any{"hits": hits})
}

func getDocument(ctx context.Context, svc contractx.Services, scope contractx.Scope, _ contractx.Actor, args map[string]any) (string, error) {
	if svc.Knowledge == nil {
		return "", errServiceMissing
	}
	var in struct {
		DocumentID string `json:"document_id"`
	}
	if err := decodeArgs(args, &in); err != nil {
		return handled("", err)
	}
	if in.DocumentID == "" {
		return errorResult("document_id is required")
	}
	doc, err := svc.Knowledge.Document(ctx, scope.PulseID, in.DocumentID)
	if err != nil {
		return handled("", err)
	}
	return jsonResult(doc)
}

func listMeetings(ctx context.Context, svc contractx.Services, scope contractx.Scope, _ contractx.Actor, args map[string]any) (string, error) {
	if svc.Meetings == nil {
		return "", errServiceMissing
	}
	var in struct {
		From string `json:"from"`
		To   string `json:"to"`
	}
	if err := decodeArgs(args, &in); err != nil {
		return handled("", err)
	}

	from := time.Now().UTC().Truncate(24 * time.Hour)
	if in.From != "" {
		t, err := parseWhen(in.From)
		if err != nil {
			return handled("", err)
		}
		from = t
	}
	to := from.Add(7 * 24 * time.Hour)
	if in.To != "" {
		t, err := parseWhen(in.To)
		if err != nil {
			return handled("", err)
		}
		to = t
	}
	if to.Before(from) {
		return errorResult("to must not be before from")
	}

	meetings, err := svc.Meetings.ListMeetings(ctx, scope.PulseID, from, to)
	if err != nil {
		return "", err
	}
	return jsonResult(map[string]any{"meetings": meetings})
}

func scheduleMeeting(ctx context.Context, svc contractx.Services, scope contractx.Scope, actor contractx.Actor, args map[string]any) (string, error) {
	if svc.Meetings == nil {
		return "", errServiceMissing
	}
	var in struct {
		Title           string   `json:"title"`
		StartsAt        string   `json:"starts_at"`
		DurationMinutes int      `json:"duration_minutes"`
		AttendeeIDs     []string `json:"attendee_ids"`
	}
	if err := decodeArgs(args, &in); err != nil {
		return handled("", err)
	}
	if strings.TrimSpace(in.Title) == "" {
		return errorResult("title is required")
	}
	if in.StartsAt == "" {
		return errorResult("starts_at is required")
	}
	start, err := parseWhen(in.StartsAt)
	if err != nil {
		return handled("", err)
	}

	meeting, err := svc.Meetings.ScheduleMeeting(ctx, contractx.MeetingDraft{
		PulseID:   scope.PulseID,
		Title:     strings.TrimSpace(in.Title),
		StartsAt:  start,
		Duration:  time.Duration(limitOr(in.DurationMinutes, 30, 8*60)) * time.Minute,
		Attendees: in.AttendeeIDs,
		CreatedBy: actor.UserID,
	})
	if err != nil {
		return "", err
	}
	return jsonResult(meeting)
}

func getMeetingSummary(ctx context.Context, svc contractx.Services, scope contractx.Scope, _ contractx.Actor, args map[string]any) (string, error) {
	if svc.Meetings == nil {
		return "", errServiceMissing
	}
	var in struct {
		MeetingID string `json:"meeting_id"`
	}
	if err := decodeArgs(args, &in); err != nil {
		return handled("", err)
	}
	if in.MeetingID == "" {
		return errorResult("meeting_id is required")
	}
	meeting, err := svc.Meetings.Meeting(ctx, scope.PulseID, in.MeetingID)
	if err != nil {
		return handled("", err)
	}
	summary := meeting.Summary
	if summary == "" {
		summary = "No summary has been recorded for this meeting."
	}
	return jsonResult(map[string]any{
		"meeting_id": meeting.ID,
		"title":      meeting.Title,
		"starts_at":  meeting.StartsAt,
		"summary":    summary,
	})
}

func parseStatus(raw string) (contractx.TaskStatus, bool) {
	switch contractx.TaskStatus(strings.ToLower(strings.TrimSpace(raw))) {
	case contractx.TaskTodo:
		return contractx.TaskTodo, true
	case contractx.TaskInProgress:
		return contractx.TaskInProgress, true
	case contractx.TaskDone:
		return contractx.TaskDone, true
	default:
		return "", false
	}
}

func listTasks(ctx context.Context, svc contractx.Services, scope contractx.Scope, _ contractx.Actor, args map[string]any) (string, error) {
	if svc.Tasks == nil {
		return "", errServiceMissing
	}
	var in struct {
		AssigneeID string `json:"assignee_id"`
		Status     string `json:"status"`
		Limit      int    `json:"limit"`
	}
	if err := decodeArgs(args, &in); err != nil {
		return handled("", err)
	}
	filter := contractx.TaskFilter{AssigneeID: in.AssigneeID, Limit: limitOr(in.Limit, 20, 100)}
	if in.Status != "" {
		status, ok := parseStatus(in.Status)
		if !ok {
			return errorResult("status must be one of todo, in_progress, done")
		}
		filter.Status = status
	}
	tasks, err := svc.Tasks.ListTasks(ctx, scope.PulseID, filter)
	if err != nil {
		return "", err
	}
	return jsonResult(map[string]any{"tasks": tasks})
}

func createTask(ctx context.Context, svc contractx.Services, scope contractx.Scope, actor contractx.Actor, args map[string]any) (string, error) {
	if svc.Tasks == nil {
		return "", errServiceMissing
	}
	var in struct {
		Title      string `json:"title"`
		AssigneeID string `json:"assignee_id"`
		DueAt      string `json:"due_at"`
	}
	if err := decodeArgs(args, &in); err != nil {
		return handled("", err)
	}
	if strings.TrimSpace(in.Title) == "" {
		return errorResult("title is required")
	}
	draft := contractx.TaskDraft{
		PulseID:    scope.PulseID,
		Title:      strings.TrimSpace(in.Title),
		AssigneeID: in.AssigneeID,
		CreatedBy:  actor.UserID,
	}
	if in.DueAt != "" {
		due, err := parseWhen(in.DueAt)
		if err != nil {
			return handled("", err)
		}
		draft.DueAt = &due
	}
	task, err := svc.Tasks.CreateTask(ctx, draft)
	if err != nil {
		return "", err
	}
	return jsonResult(task)
}

func updateTaskStatus(ctx context.Context, svc contractx.Services, scope contractx.Scope, _ contractx.Actor, args map[string]any) (string, error) {
	if svc.Tasks == nil {
		return "", errServiceMissing
	}
	var in struct {
		TaskID string `json:"task_id"`
		Status string `json:"status"`
	}
	if err := decodeArgs(args, &in); err != nil {
		return handled("", err)
	}
	if in.TaskID == "" {
		return errorResult("task_id is required")
	}
	status, ok := parseStatus(in.Status)
	if !ok {
		return errorResult("status must be one of todo, in_progress, done")
	}
	task, err := svc.Tasks.UpdateTaskStatus(ctx, scope.PulseID, in.TaskID, status)
	if err != nil {
		return handled("", err)
	}
	return jsonResult(task)
}

func findMember(ctx context.Context, svc contractx.Services, scope contractx.Scope, _ contractx.Actor, args map[string]any) (string, error) {
	if svc.Org == nil {
		return "", errServiceMissing
	}
	var in searchArgs
	if err := decodeArgs(args, &in); err != nil {
		return handled("", err)
	}
	if strings.TrimSpace(in.Query) == "" {
		return errorResult("query is required")
	}
	members, err := svc.Org.FindMembers(ctx, scope.OrgID, in.Query, limitOr(in.Limit, 5, 25))
	if err != nil {
		return "", err
	}
	return jsonResult(map[string]any{"members": members})
}

func listTeam(ctx context.Context, svc contractx.Services, scope contractx.Scope, _ contractx.Actor, _ map[string]any) (string, error) {
	if svc.Org == nil {
		return "", errServiceMissing
	}
	members, err := svc.Org.ListTeam(ctx, scope.PulseID)
	if err != nil {
		return "", err
	}
	return jsonResult(map[string]any{"members": members})
}

func createNote(ctx context.Context, svc contractx.Services, scope contractx.Scope, actor contractx.Actor, args map[string]any) (string, error) {
	if svc.Notes == nil {
		return "", errServiceMissing
	}
	var in struct {
		Title string `json:"title"`
		Body  string `json:"body"`
	}
	if err := decodeArgs(args, &in); err != nil {
		return handled("", err)
	}
	if strings.TrimSpace(in.Body) == "" {
		return errorResult("body is required")
	}
	title := strings.TrimSpace(in.Title)
	if title == "" {
		title = firstLine(in.Body, 60)
	}
	note, err := svc.Notes.CreateNote(ctx, contractx.NoteDraft{
		PulseID:   scope.PulseID,
		Title:     title,
		Body:      in.Body,
		CreatedBy: actor.UserID,
	})
	if err != nil {
		return "", err
	}
	return jsonResult(note)
}

func searchNotes(ctx context.Context, svc contractx.Services, scope contractx.Scope, _ contractx.Actor, args map[string]any) (string, error) {
	if svc.Notes == nil {
		return "", errServiceMissing
	}
	var in searchArgs
	if err := decodeArgs(args, &in); err != nil {
		return handled("", err)
	}
	if strings.TrimSpace(in.Query) == "" {
		return errorResult("query is required")
	}
	notes, err := svc.Notes.SearchNotes(ctx, scope.PulseID, in.Query, limitOr(in.Limit, 5, 20))
	if err != nil {
		return "", err
	}
	return jsonResult(map[string]any{"notes": notes})
}

func sendDirectMessage(ctx context.Context, svc contractx.Services, scope contractx.Scope, actor contractx.Actor, args map[string]any) (string, error) {
	if svc.Messaging == nil {
		return "", errServiceMissing
	}
	var in struct {
		RecipientID string `json:"recipient_id"`
		Body        string `json:"body"`
	}
	if err := decodeArgs(args, &in); err != nil {
		return handled("", err)
	}
	if in.RecipientID == "" {
		return errorResult("recipient_id is required")
	}
	if strings.TrimSpace(in.Body) == "" {
		return errorResult("body is required")
	}
	id, err := svc.Messaging.SendDirectMessage(ctx, contractx.DirectMessage{
		PulseID:     scope.PulseID,
		SenderID:    actor.UserID,
		RecipientID: in.RecipientID,
		Body:        in.Body,
	})
	if err != nil {
		return "", err
	}
	return jsonResult(map[string]any{"sent": true, "message_id": id})
}

func broadcastToTeam(ctx context.Context, svc contractx.Services, scope contractx.Scope, actor contractx.Actor, args map[string]any) (string, error) {
	if svc.Messaging == nil {
		return "", errServiceMissing
	}
	var in struct {
		Team string `json:"team"`
		Body string `json:"body"`
	}
	if err := decodeArgs(args, &in); err != nil {
		return handled("", err)
	}
	if strings.TrimSpace(in.Body) == "" {
		return errorResult("body is required")
	}
	n, err := svc.Messaging.BroadcastToTeam(ctx, contractx.Broadcast{
		PulseID:  scope.PulseID,
		SenderID: actor.UserID,
		Team:     strings.TrimSpace(in.Team),
		Body:     in.Body,
	})
	if err != nil {
		return "", err
	}
	return jsonResult(map[string]any{"sent": true, "recipients": n})
}

func firstLine(s string, max int) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	r := []rune(s)
	if len(r) > max {
		return string(r[:max])
	}
	return s
}
