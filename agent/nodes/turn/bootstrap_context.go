package turnnode

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	contractx "github.com/tanpawarit/pulse-agent/agent/contract"
)

// BootstrapContext merges the agent's system entries, the actor's
// personalization and last activity, and the supplied history.
// Nested turns skip the activity and personalization lookups.
func BootstrapContext(
	ctx context.Context,
	st *GraphState,
	activity contractx.ActivityStore,
	personalization contractx.PersonalizationSource,
	logger *zerolog.Logger,
) (*GraphState, error) {
	logger = orNop(logger)
	system, err := st.Agent.BuildContext(ctx, st.Request.Actor)
	if err != nil {
		return nil, fmt.Errorf("build context for %s: %w", st.Agent.Kind(), err)
	}

	history := make([]contractx.Entry, 0, len(system)+len(st.Request.History)+2)
	history = append(history, system...)

	if !st.Request.Nested {
		if personalization != nil && st.Request.Actor.UserID != "" {
			text, err := personalization.Personalization(ctx, st.Scope.PulseID, st.Request.Actor.UserID)
			if err != nil {
				logger.Warn().Err(err).Str("user_id", st.Request.Actor.UserID).Msg("bootstrap: personalization unavailable")
			} else if text = strings.TrimSpace(text); text != "" {
				history = append(history, contractx.SystemEntry(text))
			}
		}

		last, err := lastActivity(ctx, st, activity)
		if err != nil {
			return nil, err
		}
		if last != nil {
			st.LastActivity = last
			history = append(history, contractx.SystemEntry(activityNote(*last, st.Now)))
		}
	}

	st.History = append(history, st.Request.History...)
	return st, nil
}

func lastActivity(ctx context.Context, st *GraphState, activity contractx.ActivityStore) (*time.Time, error) {
	if activity == nil || st.Request.Actor.UserID == "" || st.Scope.ThreadID == "" {
		return nil, nil
	}
	pulse, thread, user := st.Scope.PulseID, st.Scope.ThreadID, st.Request.Actor.UserID

	at, ok, err := activity.LastToolActivity(ctx, pulse, thread, user)
	if err != nil {
		return nil, fmt.Errorf("%w: last tool activity: %w", contractx.ErrPersistence, err)
	}
	if ok {
		return &at, nil
	}
	at, ok, err = activity.PreviousThreadCreatedAt(ctx, pulse, thread, user)
	if err != nil {
		return nil, fmt.Errorf("%w: previous thread: %w", contractx.ErrPersistence, err)
	}
	if ok {
		return &at, nil
	}
	return nil, nil
}

func activityNote(last, now time.Time) string {
	ago := now.Sub(last).Round(time.Minute)
	if ago < time.Minute {
		return fmt.Sprintf("The user was last active at %s, moments ago.", last.UTC().Format(time.RFC3339))
	}
	return fmt.Sprintf("The user was last active at %s (%s ago). Mention changes since then when relevant.", last.UTC().Format(time.RFC3339), ago)
}
