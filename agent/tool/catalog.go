package tool

import (
	contractx "github.com/tanpawarit/pulse-agent/agent/contract"
)

// Descriptors returns the descriptors for names in the given order.
// Unknown names are skipped.
func Descriptors(names ...ToolName) []contractx.ToolDescriptor {
	out := make([]contractx.ToolDescriptor, 0, len(names))
	for _, n := range names {
		d, ok := Descriptor(n)
		if !ok {
			continue
		}
		out = append(out, d)
	}
	return out
}

func Descriptor(name ToolName) (contractx.ToolDescriptor, bool) {
	switch name {
	case RouteToData:
		return routingDescriptor(name, "Look up workspace knowledge: documents, reports and facts. Use this for any question about stored information."), true
	case RouteToMeeting:
		return routingDescriptor(name, "Find, schedule or summarize meetings in this workspace."), true
	case RouteToTask:
		return routingDescriptor(name, "List, create or update tasks in this workspace."), true
	case RouteToOrg:
		return routingDescriptor(name, "Answer questions about people, teams and reporting lines in the organization."), true
	case RouteToNotes:
		return routingDescriptor(name, "Create or search notes kept in this workspace."), true
	case RouteToDirectMessage:
		return routingDescriptor(name, "Send a direct message to one member of the workspace."), true
	case RouteToTeamBroadcast:
		return routingDescriptor(name, "Broadcast an announcement to a team channel of the workspace."), true
	case GenerateStrategy:
		return contractx.ToolDescriptor{
			Name:        string(name),
			Description: "Draft a strategy or set of goals grounded in workspace knowledge. The reply is returned as structured goals.",
			Parameters: objectSchema(map[string]any{
				"objective":   stringProp("What the strategy should achieve"),
				"horizon":     stringProp("Planning horizon, e.g. 'next quarter'"),
				"is_final":    boolProp("True when this tool's result is the final answer for the user"),
				"step_number": intProp("Position of this call in the plan, starting at 1"),
			}, "objective"),
		}, true
	case Calculate:
		return contractx.ToolDescriptor{
			Name:        string(name),
			Description: "Evaluate an arithmetic expression (+ - * / % ^ and parentheses).",
			Parameters: objectSchema(map[string]any{
				"expression": stringProp("Expression to evaluate"),
			}, "expression"),
		}, true
	case SearchKnowledge:
		return contractx.ToolDescriptor{
			Name:        string(name),
			Description: "Full-text search over workspace documents.",
			Parameters: objectSchema(map[string]any{
				"query": stringProp("Search terms"),
				"limit": intProp("Maximum number of hits (default 5)"),
			}, "query"),
		}, true
	case GetDocument:
		return contractx.ToolDescriptor{
			Name:        string(name),
			Description: "Fetch the full text of one document.",
			Parameters: objectSchema(map[string]any{
				"document_id": stringProp("Document identifier"),
			}, "document_id"),
		}, true
	case ListMeetings:
		return contractx.ToolDescriptor{
			Name:        string(name),
			Description: "List meetings between two dates.",
			Parameters: objectSchema(map[string]any{
				"from": stringProp("Start date (RFC3339 or YYYY-MM-DD); defaults to today"),
				"to":   stringProp("End date (RFC3339 or YYYY-MM-DD); defaults to seven days after from"),
			}),
		}, true
	case ScheduleMeeting:
		return contractx.ToolDescriptor{
			Name:        string(name),
			Description: "Schedule a meeting.",
			Parameters: objectSchema(map[string]any{
				"title":            stringProp("Meeting title"),
				"starts_at":        stringProp("Start time (RFC3339)"),
				"duration_minutes": intProp("Length in minutes (default 30)"),
				"attendee_ids":     arrayProp("Member identifiers of attendees"),
			}, "title", "starts_at"),
		}, true
	case GetMeetingSummary:
		return contractx.ToolDescriptor{
			Name:        string(name),
			Description: "Get the recorded summary of a meeting.",
			Parameters: objectSchema(map[string]any{
				"meeting_id": stringProp("Meeting identifier"),
			}, "meeting_id"),
		}, true
	case ListTasks:
		return contractx.ToolDescriptor{
			Name:        string(name),
			Description: "List tasks, optionally filtered by assignee or status.",
			Parameters: objectSchema(map[string]any{
				"assignee_id": stringProp("Member identifier of the assignee"),
				"status":      enumProp("Task status", "todo", "in_progress", "done"),
				"limit":       intProp("Maximum number of tasks (default 20)"),
			}),
		}, true
	case CreateTask:
		return contractx.ToolDescriptor{
			Name:        string(name),
			Description: "Create a task.",
			Parameters: objectSchema(map[string]any{
				"title":       stringProp("Task title"),
				"assignee_id": stringProp("Member identifier of the assignee"),
				"due_at":      stringProp("Due date (RFC3339 or YYYY-MM-DD)"),
			}, "title"),
		}, true
	case UpdateTaskStatus:
		return contractx.ToolDescriptor{
			Name:        string(name),
			Description: "Change the status of a task.",
			Parameters: objectSchema(map[string]any{
				"task_id": stringProp("Task identifier"),
				"status":  enumProp("New status", "todo", "in_progress", "done"),
			}, "task_id", "status"),
		}, true
	case FindMember:
		return contractx.ToolDescriptor{
			Name:        string(name),
			Description: "Find organization members by name, email or title.",
			Parameters: objectSchema(map[string]any{
				"query": stringProp("Name, email or title fragment"),
				"limit": intProp("Maximum number of members (default 5)"),
			}, "query"),
		}, true
	case ListTeam:
		return contractx.ToolDescriptor{
			Name:        string(name),
			Description: "List the members of this workspace.",
			Parameters:  objectSchema(map[string]any{}),
		}, true
	case CreateNote:
		return contractx.ToolDescriptor{
			Name:        string(name),
			Description: "Save a note in this workspace.",
			Parameters: objectSchema(map[string]any{
				"title": stringProp("Note title"),
				"body":  stringProp("Note content"),
			}, "title", "body"),
		}, true
	case SearchNotes:
		return contractx.ToolDescriptor{
			Name:        string(name),
			Description: "Search notes in this workspace.",
			Parameters: objectSchema(map[string]any{
				"query": stringProp("Search terms"),
				"limit": intProp("Maximum number of notes (default 5)"),
			}, "query"),
		}, true
	case SendDirectMessage:
		return contractx.ToolDescriptor{
			Name:        string(name),
			Description: "Send a direct message to a member.",
			Parameters: objectSchema(map[string]any{
				"recipient_id": stringProp("Member identifier of the recipient"),
				"body":         stringProp("Message text"),
			}, "recipient_id", "body"),
		}, true
	case BroadcastToTeam:
		return contractx.ToolDescriptor{
			Name:        string(name),
			Description: "Post an announcement to every member of a team.",
			Parameters: objectSchema(map[string]any{
				"team": stringProp("Team name; empty means the whole workspace"),
				"body": stringProp("Announcement text"),
			}, "body"),
		}, true
	default:
		return contractx.ToolDescriptor{}, false
	}
}

func routingDescriptor(name ToolName, desc string) contractx.ToolDescriptor {
	return contractx.ToolDescriptor{
		Name:        string(name),
		Description: desc,
		Parameters: objectSchema(map[string]any{
			"query":       stringProp("The user's request, restated with all details needed to act on it"),
			"is_final":    boolProp("True when this tool's result is the final answer for the user"),
			"step_number": intProp("Position of this call in the plan, starting at 1"),
		}, "query"),
	}
}

func objectSchema(props map[string]any, required ...string) map[string]any {
	schema := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func stringProp(desc string) map[string]any {
	return map[string]any{"type": "string", "description": desc}
}

func intProp(desc string) map[string]any {
	return map[string]any{"type": "integer", "description": desc}
}

func boolProp(desc string) map[string]any {
	return map[string]any{"type": "boolean", "description": desc}
}

func arrayProp(desc string) map[string]any {
	return map[string]any{"type": "array", "description": desc, "items": map[string]any{"type": "string"}}
}

func enumProp(desc string, values ...string) map[string]any {
	return map[string]any{"type": "string", "description": desc, "enum": values}
}
