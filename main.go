package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/tanpawarit/pulse-agent/agent/agents/orchestrator"
	"github.com/tanpawarit/pulse-agent/agent/agents/variant"
	contractx "github.com/tanpawarit/pulse-agent/agent/contract"
	"github.com/tanpawarit/pulse-agent/agent/llm"
	statex "github.com/tanpawarit/pulse-agent/agent/state"
	pgstore "github.com/tanpawarit/pulse-agent/agent/store/pg"
	configx "github.com/tanpawarit/pulse-agent/pkg/config"
	_ "github.com/tanpawarit/pulse-agent/pkg/logger/autoload"
	openrouterx "github.com/tanpawarit/pulse-agent/pkg/openrouter"
	qstashx "github.com/tanpawarit/pulse-agent/pkg/qstash"
)

type AppConfig struct {
	InsightsCallbackURL string        `envconfig:"INSIGHTS_CALLBACK_URL"`
	TurnTimeout         time.Duration `envconfig:"TURN_TIMEOUT" default:"2m"`
}

var (
	kindFlag     = flag.String("kind", string(contractx.AgentKindMember), "agent variant to run")
	messageFlag  = flag.String("message", "", "user message for this turn")
	orgFlag      = flag.String("org", "", "organization id")
	pulseFlag    = flag.String("pulse", "", "pulse (workspace) id")
	pulseName    = flag.String("pulse-name", "", "pulse display name")
	privateFlag  = flag.Bool("private", false, "treat the pulse as private")
	userFlag     = flag.String("user", "", "acting user id")
	userName     = flag.String("user-name", "", "acting user display name")
	userRole     = flag.String("role", "", "acting user role")
	timezoneFlag = flag.String("tz", "UTC", "acting user IANA timezone")
	threadFlag   = flag.String("thread", "", "thread id; a new thread is created when empty")
	rememberFlag = flag.String("remember", "", "note to add to the user's profile before the turn")
	insightsFlag = flag.Bool("insights", false, "run the insights variant in batch mode and publish the result")
)

func main() {
	appCfg := configx.MustNew[AppConfig]("")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *appCfg); err != nil {
		log.Fatal().Err(err).Msg("pulse-agent: turn failed")
	}
}

func run(ctx context.Context, appCfg AppConfig) error {
	llmCfg := configx.MustNew[llm.Config]("OPENROUTER")
	openRouterClient := openrouterx.NewClient(llmCfg.OpenRouterFor(contractx.AgentKindRoot))
	if openRouterClient == nil {
		return errors.New("failed to initialize openrouter client")
	}
	completer, err := llm.NewCompleter(openRouterClient, *llmCfg)
	if err != nil {
		return err
	}

	dbCfg := configx.MustNew[pgstore.Config]("DATABASE")
	db, err := pgstore.Open(ctx, *dbCfg)
	if err != nil {
		return err
	}
	defer db.Close()
	store := pgstore.New(db)

	orchOpts := []orchestrator.Option{orchestrator.WithActivity(store)}
	profiles := loadProfiles()
	if profiles != nil {
		orchOpts = append(orchOpts, orchestrator.WithPersonalization(profiles))
	}

	orchCfg := configx.MustNew[orchestrator.Config]("ORCHESTRATOR")
	orch, err := orchestrator.New(completer, store, *orchCfg, orchOpts...)
	if err != nil {
		return err
	}

	factory, err := variant.NewFactory(variant.MustLoadDefinitions(), variant.Deps{
		Runner:   orch,
		Services: store.Services(),
	}, variant.WithIntegrations(store, nil))
	if err != nil {
		return err
	}

	workspace := contractx.Workspace{
		OrgID:   strings.TrimSpace(*orgFlag),
		PulseID: strings.TrimSpace(*pulseFlag),
		Name:    strings.TrimSpace(*pulseName),
		Private: *privateFlag,
	}
	actor := contractx.Actor{
		UserID:   strings.TrimSpace(*userFlag),
		Name:     strings.TrimSpace(*userName),
		Role:     strings.TrimSpace(*userRole),
		Timezone: strings.TrimSpace(*timezoneFlag),
	}
	if workspace.PulseID == "" || actor.UserID == "" {
		return errors.New("-pulse and -user are required")
	}

	ctx, cancel := context.WithTimeout(ctx, appCfg.TurnTimeout)
	defer cancel()

	if note := strings.TrimSpace(*rememberFlag); note != "" {
		if profiles == nil {
			return errors.New("-remember needs UPSTASH_REDIS_* settings")
		}
		if _, err := profiles.Remember(ctx, workspace.PulseID, actor.UserID, note, time.Now()); err != nil {
			return fmt.Errorf("remember note: %w", err)
		}
	}

	if *insightsFlag {
		return runInsights(ctx, appCfg, orch, factory, workspace, actor)
	}
	return runTurn(ctx, orch, factory, store, workspace, actor)
}

func runTurn(
	ctx context.Context,
	orch *orchestrator.Orchestrator,
	factory *variant.Factory,
	store *pgstore.Store,
	workspace contractx.Workspace,
	actor contractx.Actor,
) error {
	message := strings.TrimSpace(*messageFlag)
	if message == "" {
		return errors.New("-message is required")
	}

	threadID := strings.TrimSpace(*threadFlag)
	if threadID == "" {
		id, err := store.CreateThread(ctx, workspace.PulseID, actor.UserID, message)
		if err != nil {
			return err
		}
		threadID = id
	}

	bindings, err := factory.LoadBindings(ctx, workspace)
	if err != nil {
		return err
	}
	agent, err := factory.New(contractx.AgentKind(*kindFlag), variant.Params{
		Workspace: workspace,
		Actor:     actor,
		Mode:      variant.ModeInteractive,
		Bindings:  bindings,
	})
	if err != nil {
		return err
	}

	messageID := uuid.NewString()
	topicID := uuid.NewString()
	history, err := threadHistory(ctx, store, workspace.PulseID, threadID)
	if err != nil {
		return err
	}
	history = append(history, contractx.UserEntry(message))

	if err := store.AppendEntry(ctx, contractx.PersistedEntry{
		Role:      contractx.RoleUser,
		Content:   message,
		TopicID:   topicID,
		PulseID:   workspace.PulseID,
		ThreadID:  threadID,
		UserID:    actor.UserID,
		MessageID: messageID,
		Status:    contractx.EntryStatusCompleted,
	}); err != nil {
		return err
	}

	reply, err := orch.ProcessTurn(ctx, agent, contractx.TurnRequest{
		History:   history,
		Workspace: workspace,
		Actor:     actor,
		ThreadID:  threadID,
		MessageID: messageID,
		TopicID:   topicID,
	})
	if err != nil {
		return err
	}

	if err := store.AppendEntry(ctx, contractx.PersistedEntry{
		Role:      contractx.RoleAssistant,
		Content:   reply,
		TopicID:   topicID,
		PulseID:   workspace.PulseID,
		ThreadID:  threadID,
		UserID:    actor.UserID,
		MessageID: messageID,
		Status:    contractx.EntryStatusCompleted,
	}); err != nil {
		return err
	}

	log.Info().Str("thread_id", threadID).Str("agent", string(agent.Kind())).Msg("pulse-agent: turn complete")
	fmt.Println(reply)
	return nil
}

// threadHistory replays the user-visible part of a thread. Tool pairs stay
// out so every turn starts from the conversation the user saw.
func threadHistory(ctx context.Context, store *pgstore.Store, pulseID, threadID string) ([]contractx.Entry, error) {
	entries, err := store.Entries(ctx, pulseID, threadID)
	if err != nil {
		return nil, err
	}
	history := make([]contractx.Entry, 0, len(entries))
	for _, e := range entries {
		if e.IsSystem {
			continue
		}
		switch e.Role {
		case contractx.RoleUser:
			history = append(history, contractx.UserEntry(e.Content))
		case contractx.RoleAssistant:
			history = append(history, contractx.AssistantEntry(e.Content))
		}
	}
	return history, nil
}

type insightsPayload struct {
	OrgID       string          `json:"org_id"`
	PulseID     string          `json:"pulse_id"`
	UserID      string          `json:"user_id"`
	GeneratedAt time.Time       `json:"generated_at"`
	Insights    json.RawMessage `json:"insights"`
}

func runInsights(
	ctx context.Context,
	appCfg AppConfig,
	orch *orchestrator.Orchestrator,
	factory *variant.Factory,
	workspace contractx.Workspace,
	actor contractx.Actor,
) error {
	callback := strings.TrimSpace(appCfg.InsightsCallbackURL)
	if callback == "" {
		return errors.New("INSIGHTS_CALLBACK_URL is required for -insights")
	}

	agent, err := factory.New(contractx.AgentKindInsights, variant.Params{
		Workspace: workspace,
		Actor:     actor,
		Mode:      variant.ModeBatch,
	})
	if err != nil {
		return err
	}

	prompt := strings.TrimSpace(*messageFlag)
	if prompt == "" {
		prompt = "Generate this week's insights for the workspace."
	}
	reply, err := orch.ProcessTurn(ctx, agent, contractx.TurnRequest{
		History:   []contractx.Entry{contractx.UserEntry(prompt)},
		Workspace: workspace,
		Actor:     actor,
		MessageID: uuid.NewString(),
		TopicID:   uuid.NewString(),
	})
	if err != nil {
		return err
	}
	if !json.Valid([]byte(reply)) {
		return fmt.Errorf("%w: insights reply is not JSON", contractx.ErrSchemaViolation)
	}

	body, err := json.Marshal(insightsPayload{
		OrgID:       workspace.OrgID,
		PulseID:     workspace.PulseID,
		UserID:      actor.UserID,
		GeneratedAt: time.Now().UTC(),
		Insights:    json.RawMessage(reply),
	})
	if err != nil {
		return fmt.Errorf("marshal insights payload: %w", err)
	}

	qstashCfg := configx.MustNew[qstashx.Config]("QSTASH")
	qstashClient := qstashx.MustNew(*qstashCfg)
	id, err := qstashClient.Publish(ctx, callback, body)
	if err != nil {
		return fmt.Errorf("publish insights: %w", err)
	}
	log.Info().Str("pulse_id", workspace.PulseID).Str("qstash_message_id", id).Msg("pulse-agent: insights published")
	return nil
}

func loadProfiles() *statex.UpstashRedisStore {
	cfg, err := configx.New[statex.UpstashRedisConfig]("UPSTASH_REDIS")
	if err != nil {
		log.Warn().Err(err).Msg("pulse-agent: personalization disabled")
		return nil
	}
	store, err := statex.NewUpstashRedisStore(*cfg)
	if err != nil {
		log.Warn().Err(err).Msg("pulse-agent: personalization disabled")
		return nil
	}
	return store
}
