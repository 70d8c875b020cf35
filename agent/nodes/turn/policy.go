package turnnode

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	contractx "github.com/tanpawarit/pulse-agent/agent/contract"
)

// SelectResponseFormat picks the constraint for the next completion call:
// caller override, then the agent's required format, then a binding whose
// tool is the one dispatched last, else none.
func SelectResponseFormat(
	override *contractx.ResponseFormat,
	required *contractx.ResponseFormat,
	binding *contractx.ResponseFormatBinding,
	previousTool string,
) *contractx.ResponseFormat {
	if override != nil {
		return override
	}
	if required != nil {
		return required
	}
	if binding != nil && previousTool != "" && binding.ToolName == previousTool {
		f := binding.Format
		return &f
	}
	return nil
}

var errArgumentsNotObject = errors.New("tool arguments are not a JSON object")

// ParseArguments decodes a tool call's argument JSON. Blank input is an
// empty object.
func ParseArguments(raw string) (map[string]any, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return map[string]any{}, nil
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return nil, errArgumentsNotObject
		}
		return nil, err
	}
	if args == nil {
		args = map[string]any{}
	}
	return args, nil
}

const ReasonFinalStep = "is_final"

// Termination ends the turn after this call when the handler asks for it or
// the arguments carry is_final with step_number 1.
func Termination(args map[string]any, res contractx.DispatchResult) *contractx.TerminationSignal {
	if res.Termination != nil {
		return res.Termination
	}
	if truthy(args["is_final"]) && isFirstStep(args["step_number"]) {
		return &contractx.TerminationSignal{Reason: ReasonFinalStep}
	}
	return nil
}

func truthy(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		s := strings.ToLower(strings.TrimSpace(t))
		return s == "true" || s == "1" || s == "yes"
	case float64:
		return t == 1
	case int:
		return t == 1
	default:
		return false
	}
}

func isFirstStep(v any) bool {
	switch t := v.(type) {
	case float64:
		return t == 1
	case int:
		return t == 1
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return err == nil && n == 1
	default:
		return false
	}
}
