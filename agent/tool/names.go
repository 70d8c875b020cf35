package tool

import "strings"

// ToolName is the closed set of tools this service knows how to describe and
// handle. Model-supplied names enter the set only through ParseToolName.
type ToolName string

// Routing tools, offered to top-level agents.
const (
	RouteToData          ToolName = "route_to_data"
	RouteToMeeting       ToolName = "route_to_meeting"
	RouteToTask          ToolName = "route_to_task"
	RouteToOrg           ToolName = "route_to_org"
	RouteToNotes         ToolName = "route_to_notes"
	RouteToDirectMessage ToolName = "route_to_direct_message"
	RouteToTeamBroadcast ToolName = "route_to_team_broadcast"
	GenerateStrategy     ToolName = "generate_strategy"
	Calculate            ToolName = "calculate"
)

// Nested domain tools, offered to specialist sub-agents.
const (
	SearchKnowledge   ToolName = "search_knowledge"
	GetDocument       ToolName = "get_document"
	ListMeetings      ToolName = "list_meetings"
	ScheduleMeeting   ToolName = "schedule_meeting"
	GetMeetingSummary ToolName = "get_meeting_summary"
	ListTasks         ToolName = "list_tasks"
	CreateTask        ToolName = "create_task"
	UpdateTaskStatus  ToolName = "update_task_status"
	FindMember        ToolName = "find_member"
	ListTeam          ToolName = "list_team"
	CreateNote        ToolName = "create_note"
	SearchNotes       ToolName = "search_notes"
	SendDirectMessage ToolName = "send_direct_message"
	BroadcastToTeam   ToolName = "broadcast_to_team"
)

var allToolNames = []ToolName{
	RouteToData, RouteToMeeting, RouteToTask, RouteToOrg, RouteToNotes,
	RouteToDirectMessage, RouteToTeamBroadcast, GenerateStrategy, Calculate,
	SearchKnowledge, GetDocument,
	ListMeetings, ScheduleMeeting, GetMeetingSummary,
	ListTasks, CreateTask, UpdateTaskStatus,
	FindMember, ListTeam,
	CreateNote, SearchNotes,
	SendDirectMessage,
	BroadcastToTeam,
}

var knownToolNames = func() map[string]ToolName {
	out := make(map[string]ToolName, len(allToolNames))
	for _, n := range allToolNames {
		out[string(n)] = n
	}
	return out
}()

// ParseToolName maps a raw name onto the closed set.
func ParseToolName(raw string) (ToolName, bool) {
	name, ok := knownToolNames[strings.TrimSpace(raw)]
	return name, ok
}

// MustParseToolNames converts configuration values, panicking on unknown names.
func MustParseToolNames(raw ...string) []ToolName {
	out, err := ParseToolNames(raw...)
	if err != nil {
		panic(err)
	}
	return out
}

func ParseToolNames(raw ...string) ([]ToolName, error) {
	out := make([]ToolName, 0, len(raw))
	for _, r := range raw {
		name, ok := ParseToolName(r)
		if !ok {
			return nil, &UnknownToolError{Name: r}
		}
		out = append(out, name)
	}
	return out, nil
}

// AllToolNames returns a copy of the closed set in declaration order.
func AllToolNames() []ToolName {
	return append([]ToolName(nil), allToolNames...)
}

type UnknownToolError struct {
	Name string
}

func (e *UnknownToolError) Error() string {
	return "unknown tool " + strings.TrimSpace(e.Name)
}

// Area is the domain a routing tool hands a sub-turn to.
type Area string

const (
	AreaData          Area = "data"
	AreaMeeting       Area = "meeting"
	AreaTask          Area = "task"
	AreaOrg           Area = "org"
	AreaNotes         Area = "notes"
	AreaDirectMessage Area = "direct_message"
	AreaTeamBroadcast Area = "team_broadcast"
)

var routeAreas = map[ToolName]Area{
	RouteToData:          AreaData,
	RouteToMeeting:       AreaMeeting,
	RouteToTask:          AreaTask,
	RouteToOrg:           AreaOrg,
	RouteToNotes:         AreaNotes,
	RouteToDirectMessage: AreaDirectMessage,
	RouteToTeamBroadcast: AreaTeamBroadcast,
	GenerateStrategy:     AreaData,
}

var areaTools = map[Area][]ToolName{
	AreaData:          {SearchKnowledge, GetDocument},
	AreaMeeting:       {ListMeetings, ScheduleMeeting, GetMeetingSummary},
	AreaTask:          {ListTasks, CreateTask, UpdateTaskStatus},
	AreaOrg:           {FindMember, ListTeam},
	AreaNotes:         {CreateNote, SearchNotes},
	AreaDirectMessage: {FindMember, SendDirectMessage},
	AreaTeamBroadcast: {ListTeam, BroadcastToTeam},
}

// AreaFor returns the area a routing tool delegates to.
func AreaFor(name ToolName) (Area, bool) {
	area, ok := routeAreas[name]
	return area, ok
}

// AreaTools returns the nested tools of area, intersected with allowed when
// allowed is non-empty. Order follows the area definition.
func AreaTools(area Area, allowed []ToolName) []ToolName {
	base := areaTools[area]
	if len(allowed) == 0 {
		return append([]ToolName(nil), base...)
	}
	permitted := make(map[ToolName]struct{}, len(allowed))
	for _, a := range allowed {
		permitted[a] = struct{}{}
	}
	out := make([]ToolName, 0, len(base))
	for _, n := range base {
		if _, ok := permitted[n]; ok {
			out = append(out, n)
		}
	}
	return out
}

// IsNested reports whether name is a domain tool reachable only through a specialist.
func IsNested(name ToolName) bool {
	for _, tools := range areaTools {
		for _, t := range tools {
			if t == name {
				return true
			}
		}
	}
	return false
}
