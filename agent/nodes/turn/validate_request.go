package turnnode

import (
	"errors"
	"fmt"
	"strings"
	"time"

	contractx "github.com/tanpawarit/pulse-agent/agent/contract"
)

var (
	ErrMissingAgent     = errors.New("agent is required")
	ErrEmptyHistory     = errors.New("turn history is empty")
	ErrMissingWorkspace = errors.New("workspace pulse id is empty")
)

func ValidateRequest(in GraphInput, nowFn func() time.Time) (*GraphState, error) {
	if in.Agent == nil {
		return nil, fmt.Errorf("%w: %w", contractx.ErrValidation, ErrMissingAgent)
	}
	req := in.Request
	if len(req.History) == 0 {
		return nil, fmt.Errorf("%w: %w", contractx.ErrValidation, ErrEmptyHistory)
	}
	req.Workspace.PulseID = strings.TrimSpace(req.Workspace.PulseID)
	if req.Workspace.PulseID == "" {
		return nil, fmt.Errorf("%w: %w", contractx.ErrValidation, ErrMissingWorkspace)
	}
	req.ThreadID = strings.TrimSpace(req.ThreadID)
	req.MessageID = strings.TrimSpace(req.MessageID)

	return &GraphState{
		Agent:   in.Agent,
		Request: req,
		Scope:   req.Scope(),
		Now:     nowFn().UTC(),
	}, nil
}
