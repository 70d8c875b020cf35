package llm

import (
	"fmt"
	"strings"
	"time"

	contractx "github.com/tanpawarit/pulse-agent/agent/contract"
	openrouterx "github.com/tanpawarit/pulse-agent/pkg/openrouter"
)

type Config struct {
	BaseURL            string        `envconfig:"BASE_URL" split_words:"true" default:"https://openrouter.ai/api/v1"`
	APIKey             string        `envconfig:"API_KEY" split_words:"true" required:"true"`
	Model              string        `envconfig:"MODEL" split_words:"true" required:"true"`
	MaxCompletionToken int           `envconfig:"MAX_COMPLETION_TOKEN" split_words:"true" default:"2000"`
	Temperature        float32       `envconfig:"TEMPERATURE" split_words:"true" default:"0.5"`
	Timeout            time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"30s"`
	SiteURL            string        `envconfig:"SITE_URL" split_words:"true"`
	SiteName           string        `envconfig:"SITE_NAME" split_words:"true"`

	// Per-variant overrides keyed on agent kind, e.g. "insights:openai/gpt-4o,specialist:openai/gpt-4o-mini".
	Models       map[string]string  `envconfig:"MODELS" split_words:"true"`
	Temperatures map[string]float32 `envconfig:"TEMPERATURES" split_words:"true"`
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.APIKey) == "" {
		return fmt.Errorf("%w: openrouter api key is required", contractx.ErrValidation)
	}
	if strings.TrimSpace(c.Model) == "" {
		return fmt.Errorf("%w: default model is required", contractx.ErrValidation)
	}
	for kind, t := range c.Temperatures {
		if t < 0 || t > 2 {
			return fmt.Errorf("%w: temperature for %s must be within [0, 2]", contractx.ErrValidation, kind)
		}
	}
	return nil
}

func (c Config) OpenRouterFor(kind contractx.AgentKind) openrouterx.Config {
	modelName := strings.TrimSpace(c.Model)
	temp := c.Temperature

	if v := strings.TrimSpace(c.Models[string(kind)]); v != "" {
		modelName = v
	}
	if v, ok := c.Temperatures[string(kind)]; ok {
		temp = v
	}

	maxCompletionToken := c.MaxCompletionToken
	return openrouterx.Config{
		BaseURL:            strings.TrimSpace(c.BaseURL),
		APIKey:             strings.TrimSpace(c.APIKey),
		Model:              modelName,
		MaxCompletionToken: &maxCompletionToken,
		Temperature:        temp,
		Timeout:            c.Timeout,
		SiteURL:            strings.TrimSpace(c.SiteURL),
		SiteName:           strings.TrimSpace(c.SiteName),
	}
}
