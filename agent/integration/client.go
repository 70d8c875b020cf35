package integration

import (
	"context"

	contractx "github.com/tanpawarit/pulse-agent/agent/contract"
)

// Client is a live connection to one configured integration. A nested
// sub-agent offers its Tools to the model and routes calls through Call.
type Client interface {
	Kind() string
	Tools() []contractx.ToolDescriptor
	Call(ctx context.Context, tool string, args map[string]any) (string, error)
	Instructions() string
	// ResultFormat is applied to the parent's next completion when it
	// follows this integration's tool. Nil means unconstrained.
	ResultFormat() *contractx.ResponseFormat
}

// Factory builds a client for a record. Failures surface to the user as a
// fixed unavailable sentence.
type Factory func(ctx context.Context, rec contractx.IntegrationRecord) (Client, error)

// Kind describes one recognized integration type.
type Kind struct {
	Name      string
	Describe  func(rec contractx.IntegrationRecord) contractx.ToolDescriptor
	NewClient Factory
}

type Catalog map[string]Kind

// DefaultCatalog returns every integration kind this service supports.
func DefaultCatalog() Catalog {
	return Catalog{
		KindGitHub: {
			Name:      KindGitHub,
			Describe:  describeGitHub,
			NewClient: NewGitHubClient,
		},
	}
}
