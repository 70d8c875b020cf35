package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	contractx "github.com/tanpawarit/pulse-agent/agent/contract"
)

const (
	defaultStoreKeyPrefix = "pulse:profile:"
	defaultStoreTTL       = 90 * 24 * time.Hour
)

// Store keeps member profiles. It also serves as the orchestrator's
// personalization source.
type Store interface {
	Load(ctx context.Context, pulseID, userID string) (*Profile, error)
	Save(ctx context.Context, p *Profile) error
	Delete(ctx context.Context, pulseID, userID string) error
}

var (
	_ Store                           = (*UpstashRedisStore)(nil)
	_ contractx.PersonalizationSource = (*UpstashRedisStore)(nil)
)

// StoreOption customizes UpstashRedisStore.
type StoreOption func(*UpstashRedisStore)

func WithKeyPrefix(prefix string) StoreOption {
	return func(s *UpstashRedisStore) {
		if trimmed := strings.TrimSpace(prefix); trimmed != "" {
			s.keyPrefix = trimmed
		}
	}
}

// WithTTL sets the profile expiry. Zero keeps profiles forever.
func WithTTL(ttl time.Duration) StoreOption {
	return func(s *UpstashRedisStore) {
		s.ttl = ttl
	}
}

func WithHTTPClient(client *http.Client) StoreOption {
	return func(s *UpstashRedisStore) {
		if client != nil {
			s.rest.http = client
		}
	}
}

// UpstashRedisStore persists one JSON profile per pulse member.
type UpstashRedisStore struct {
	rest      *restClient
	keyPrefix string
	ttl       time.Duration
}

func NewUpstashRedisStore(cfg UpstashRedisConfig, opts ...StoreOption) (*UpstashRedisStore, error) {
	rest, err := newRESTClient(cfg)
	if err != nil {
		return nil, err
	}
	store := &UpstashRedisStore{
		rest:      rest,
		keyPrefix: defaultStoreKeyPrefix,
		ttl:       defaultStoreTTL,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(store)
		}
	}
	if store.ttl < 0 {
		return nil, errors.New("ttl must be >= 0")
	}
	return store, nil
}

func (s *UpstashRedisStore) Load(ctx context.Context, pulseID, userID string) (*Profile, error) {
	key, err := s.redisKey(pulseID, userID)
	if err != nil {
		return nil, err
	}
	result, err := s.rest.do(ctx, "GET", key)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, ErrProfileNotFound
	}

	// GET replies with the stored JSON document as a string.
	var doc string
	if err := json.Unmarshal(result, &doc); err != nil {
		return nil, fmt.Errorf("decode profile payload: %w", err)
	}
	var p Profile
	if err := json.Unmarshal([]byte(doc), &p); err != nil {
		return nil, fmt.Errorf("unmarshal profile %s: %w", key, err)
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("stored profile %s: %w", key, err)
	}
	if p.Preferences == nil {
		p.Preferences = map[string]string{}
	}
	return &p, nil
}

func (s *UpstashRedisStore) Save(ctx context.Context, p *Profile) error {
	if err := p.Validate(); err != nil {
		return err
	}
	key, err := s.redisKey(p.PulseID, p.UserID)
	if err != nil {
		return err
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = time.Now()
	}
	p.UpdatedAt = p.UpdatedAt.UTC()

	doc, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal profile: %w", err)
	}
	args := []any{"SET", key, string(doc)}
	if s.ttl > 0 {
		args = append(args, "EX", expirySeconds(s.ttl))
	}
	_, err = s.rest.do(ctx, args...)
	return err
}

func (s *UpstashRedisStore) Delete(ctx context.Context, pulseID, userID string) error {
	key, err := s.redisKey(pulseID, userID)
	if err != nil {
		return err
	}
	_, err = s.rest.do(ctx, "DEL", key)
	return err
}

// Personalization renders the stored profile. A missing profile is not an error.
func (s *UpstashRedisStore) Personalization(ctx context.Context, pulseID, userID string) (string, error) {
	p, err := s.Load(ctx, pulseID, userID)
	switch {
	case errors.Is(err, ErrProfileNotFound):
		return "", nil
	case err != nil:
		return "", err
	}
	return p.Render(), nil
}

// Remember appends a note to the member's profile, creating it when absent.
func (s *UpstashRedisStore) Remember(ctx context.Context, pulseID, userID, note string, now time.Time) (*Profile, error) {
	p, err := s.Load(ctx, pulseID, userID)
	if errors.Is(err, ErrProfileNotFound) {
		p, err = NewProfile(pulseID, userID, now), nil
	}
	if err != nil {
		return nil, err
	}
	p.AddNote(note, now)
	if err := s.Save(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *UpstashRedisStore) redisKey(pulseID, userID string) (string, error) {
	pulseID, userID = strings.TrimSpace(pulseID), strings.TrimSpace(userID)
	if pulseID == "" || userID == "" {
		return "", ErrInvalidProfileKey
	}
	return s.keyPrefix + pulseID + ":" + userID, nil
}
