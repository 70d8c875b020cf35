package tool

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	contractx "github.com/tanpawarit/pulse-agent/agent/contract"
)

// DefaultIdentifierFields are normalized on every dispatch.
var DefaultIdentifierFields = []string{
	"org_id",
	"pulse_id",
	"thread_id",
	"user_id",
	"task_id",
	"meeting_id",
	"note_id",
	"document_id",
	"member_id",
	"recipient_id",
	"assignee_id",
}

// NormalizeIdentifiers returns a copy of args with every identifier field
// rewritten to canonical UUID form. Empty identifiers are dropped. Fields may
// hold a string or a list of strings.
func NormalizeIdentifiers(args map[string]any, extraFields ...string) (map[string]any, error) {
	out := make(map[string]any, len(args))
	for k, v := range args {
		out[k] = v
	}

	fields := make([]string, 0, len(DefaultIdentifierFields)+len(extraFields))
	fields = append(fields, DefaultIdentifierFields...)
	fields = append(fields, extraFields...)

	for _, field := range fields {
		raw, ok := out[field]
		if !ok {
			continue
		}
		switch v := raw.(type) {
		case nil:
			delete(out, field)
		case string:
			id, empty, err := canonicalID(v)
			if err != nil {
				return nil, fmt.Errorf("%w: %s: %v", contractx.ErrInvalidIdentifier, field, err)
			}
			if empty {
				delete(out, field)
				continue
			}
			out[field] = id
		case []any:
			ids := make([]any, 0, len(v))
			for _, item := range v {
				s, ok := item.(string)
				if !ok {
					return nil, fmt.Errorf("%w: %s: expected string, got %T", contractx.ErrInvalidIdentifier, field, item)
				}
				id, empty, err := canonicalID(s)
				if err != nil {
					return nil, fmt.Errorf("%w: %s: %v", contractx.ErrInvalidIdentifier, field, err)
				}
				if !empty {
					ids = append(ids, id)
				}
			}
			out[field] = ids
		default:
			return nil, fmt.Errorf("%w: %s: expected string, got %T", contractx.ErrInvalidIdentifier, field, raw)
		}
	}
	return out, nil
}

func canonicalID(raw string) (string, bool, error) {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(strings.ToLower(s), "urn:uuid:")
	s = strings.TrimSuffix(strings.TrimPrefix(s, "{"), "}")
	if s == "" {
		return "", true, nil
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return "", false, err
	}
	return id.String(), false, nil
}
