package state

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

const maxProfileNotes = 20

// Profile is what the assistant remembers about one member of a pulse.
type Profile struct {
	PulseID     string            `json:"pulse_id"`
	UserID      string            `json:"user_id"`
	Tone        string            `json:"tone,omitempty"`
	Language    string            `json:"language,omitempty"`
	Preferences map[string]string `json:"preferences,omitempty"`
	Notes       []string          `json:"notes,omitempty"`

	UpdatedAt time.Time `json:"updated_at"`
}

func NewProfile(pulseID, userID string, now time.Time) *Profile {
	return &Profile{
		PulseID:     strings.TrimSpace(pulseID),
		UserID:      strings.TrimSpace(userID),
		Preferences: map[string]string{},
		UpdatedAt:   now.UTC(),
	}
}

func (p *Profile) Validate() error {
	if p == nil {
		return ErrNilProfile
	}
	if strings.TrimSpace(p.PulseID) == "" || strings.TrimSpace(p.UserID) == "" {
		return ErrInvalidProfileKey
	}
	return nil
}

// AddNote keeps the newest notes and drops exact duplicates.
func (p *Profile) AddNote(note string, now time.Time) {
	note = strings.TrimSpace(note)
	if note == "" {
		return
	}
	for _, n := range p.Notes {
		if strings.EqualFold(n, note) {
			return
		}
	}
	p.Notes = append(p.Notes, note)
	if len(p.Notes) > maxProfileNotes {
		p.Notes = p.Notes[len(p.Notes)-maxProfileNotes:]
	}
	p.UpdatedAt = now.UTC()
}

// Render formats the profile as a system context entry. An empty profile
// renders as "".
func (p *Profile) Render() string {
	if p == nil {
		return ""
	}
	var lines []string
	if p.Tone != "" {
		lines = append(lines, "- Preferred tone: "+p.Tone)
	}
	if p.Language != "" {
		lines = append(lines, "- Preferred language: "+p.Language)
	}
	keys := make([]string, 0, len(p.Preferences))
	for k := range p.Preferences {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		lines = append(lines, fmt.Sprintf("- %s: %s", k, p.Preferences[k]))
	}
	for _, n := range p.Notes {
		lines = append(lines, "- "+n)
	}
	if len(lines) == 0 {
		return ""
	}
	return "What you know about this user:\n" + strings.Join(lines, "\n")
}

var (
	ErrProfileNotFound   = errors.New("profile not found")
	ErrNilProfile        = errors.New("profile is nil")
	ErrInvalidProfileKey = errors.New("profile pulse id and user id are required")
)
