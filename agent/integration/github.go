package integration

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	gogithub "github.com/google/go-github/v68/github"
	"github.com/mitchellh/mapstructure"

	contractx "github.com/tanpawarit/pulse-agent/agent/contract"
)

const KindGitHub = "github"

const (
	ghListIssues     = "list_issues"
	ghGetIssue       = "get_issue"
	ghCreateIssue    = "create_issue"
	ghCommentOnIssue = "comment_on_issue"
)

type GitHubConfig struct {
	Owner   string `mapstructure:"owner"`
	Repo    string `mapstructure:"repo"`
	Token   string `mapstructure:"token"`
	BaseURL string `mapstructure:"base_url"`
}

func (c GitHubConfig) validate() error {
	if strings.TrimSpace(c.Owner) == "" || strings.TrimSpace(c.Repo) == "" {
		return fmt.Errorf("%w: github integration needs owner and repo", contractx.ErrIntegrationUnavailable)
	}
	return nil
}

func decodeGitHubConfig(rec contractx.IntegrationRecord) (GitHubConfig, error) {
	var cfg GitHubConfig
	if err := mapstructure.WeakDecode(rec.Config, &cfg); err != nil {
		return GitHubConfig{}, fmt.Errorf("%w: decode github config: %v", contractx.ErrIntegrationUnavailable, err)
	}
	return cfg, cfg.validate()
}

func describeGitHub(rec contractx.IntegrationRecord) contractx.ToolDescriptor {
	repo := "the connected repository"
	if cfg, err := decodeGitHubConfig(rec); err == nil {
		repo = cfg.Owner + "/" + cfg.Repo
	}
	return contractx.ToolDescriptor{
		Name:        ToolNameFor(KindGitHub, rec.Label),
		Description: fmt.Sprintf("Work with GitHub issues in %s: list, read, open and comment on issues.", repo),
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "What to do in GitHub, with all details needed to act on it",
				},
				"is_final": map[string]any{
					"type":        "boolean",
					"description": "True when this tool's result is the final answer for the user",
				},
				"step_number": map[string]any{
					"type":        "integer",
					"description": "Position of this call in the plan, starting at 1",
				},
			},
			"required": []string{"query"},
		},
	}
}

// GitHubClient exposes one repository's issues to a nested sub-agent.
type GitHubClient struct {
	client *gogithub.Client
	owner  string
	repo   string
}

// NewGitHubClient is the Factory for the github kind.
func NewGitHubClient(_ context.Context, rec contractx.IntegrationRecord) (Client, error) {
	c, err := newGitHubClient(rec, &http.Client{Timeout: 20 * time.Second})
	if err != nil {
		return nil, err
	}
	return c, nil
}

func newGitHubClient(rec contractx.IntegrationRecord, httpClient *http.Client) (*GitHubClient, error) {
	cfg, err := decodeGitHubConfig(rec)
	if err != nil {
		return nil, err
	}

	client := gogithub.NewClient(httpClient)
	if cfg.Token != "" {
		client = client.WithAuthToken(cfg.Token)
	}
	if cfg.BaseURL != "" {
		client, err = client.WithEnterpriseURLs(cfg.BaseURL, cfg.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("%w: github base url: %v", contractx.ErrIntegrationUnavailable, err)
		}
	}
	return &GitHubClient{client: client, owner: cfg.Owner, repo: cfg.Repo}, nil
}

func (c *GitHubClient) Kind() string { return KindGitHub }

func (c *GitHubClient) Instructions() string {
	return fmt.Sprintf("You operate the GitHub repository %s/%s. Use the issue tools to answer; cite issue numbers and links. Never invent issue numbers.", c.owner, c.repo)
}

func (c *GitHubClient) ResultFormat() *contractx.ResponseFormat {
	issue := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"number": map[string]any{"type": "integer"},
			"title":  map[string]any{"type": "string"},
			"state":  map[string]any{"type": "string"},
			"url":    map[string]any{"type": "string"},
		},
		"required":             []string{"number", "title", "state", "url"},
		"additionalProperties": false,
	}
	return &contractx.ResponseFormat{
		Name:   "github_issue_summary",
		Strict: true,
		Schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"summary": map[string]any{"type": "string"},
				"issues":  map[string]any{"type": "array", "items": issue},
			},
			"required":             []string{"summary", "issues"},
			"additionalProperties": false,
		},
	}
}

func (c *GitHubClient) Tools() []contractx.ToolDescriptor {
	str := func(desc string) map[string]any { return map[string]any{"type": "string", "description": desc} }
	num := func(desc string) map[string]any { return map[string]any{"type": "integer", "description": desc} }
	obj := func(props map[string]any, required ...string) map[string]any {
		out := map[string]any{"type": "object", "properties": props}
		if len(required) > 0 {
			out["required"] = required
		}
		return out
	}
	return []contractx.ToolDescriptor{
		{
			Name:        ghListIssues,
			Description: "List issues in the repository.",
			Parameters: obj(map[string]any{
				"state":  map[string]any{"type": "string", "enum": []string{"open", "closed", "all"}},
				"labels": str("Comma-separated label names"),
				"limit":  num("Maximum number of issues (default 10)"),
			}),
		},
		{
			Name:        ghGetIssue,
			Description: "Read one issue.",
			Parameters:  obj(map[string]any{"number": num("Issue number")}, "number"),
		},
		{
			Name:        ghCreateIssue,
			Description: "Open a new issue.",
			Parameters: obj(map[string]any{
				"title":  str("Issue title"),
				"body":   str("Issue description"),
				"labels": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
			}, "title"),
		},
		{
			Name:        ghCommentOnIssue,
			Description: "Add a comment to an issue.",
			Parameters:  obj(map[string]any{"number": num("Issue number"), "body": str("Comment text")}, "number", "body"),
		},
	}
}

type issueView struct {
	Number   int      `json:"number"`
	Title    string   `json:"title"`
	State    string   `json:"state"`
	URL      string   `json:"url"`
	Author   string   `json:"author,omitempty"`
	Labels   []string `json:"labels,omitempty"`
	Comments int      `json:"comments"`
	Body     string   `json:"body,omitempty"`
}

func viewIssue(i *gogithub.Issue, withBody bool) issueView {
	v := issueView{
		Number:   i.GetNumber(),
		Title:    i.GetTitle(),
		State:    i.GetState(),
		URL:      i.GetHTMLURL(),
		Author:   i.GetUser().GetLogin(),
		Comments: i.GetComments(),
	}
	for _, l := range i.Labels {
		v.Labels = append(v.Labels, l.GetName())
	}
	if withBody {
		v.Body = i.GetBody()
	}
	return v
}

var errBadCall = errors.New("bad github call")

// Call executes one nested tool. Argument problems come back as a JSON error
// result; API failures are returned as errors.
func (c *GitHubClient) Call(ctx context.Context, tool string, args map[string]any) (string, error) {
	out, err := c.call(ctx, tool, args)
	if errors.Is(err, errBadCall) {
		data, _ := json.Marshal(map[string]string{"error": strings.TrimPrefix(err.Error(), errBadCall.Error()+": ")})
		return string(data), nil
	}
	if err != nil {
		return "", err
	}
	data, err := json.Marshal(out)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (c *GitHubClient) call(ctx context.Context, tool string, args map[string]any) (any, error) {
	switch tool {
	case ghListIssues:
		var in struct {
			State  string `mapstructure:"state"`
			Labels string `mapstructure:"labels"`
			Limit  int    `mapstructure:"limit"`
		}
		if err := mapstructure.WeakDecode(args, &in); err != nil {
			return nil, fmt.Errorf("%w: %v", errBadCall, err)
		}
		opts := &gogithub.IssueListByRepoOptions{
			State:       in.State,
			ListOptions: gogithub.ListOptions{PerPage: in.Limit},
		}
		if opts.State == "" {
			opts.State = "open"
		}
		if opts.PerPage <= 0 || opts.PerPage > 50 {
			opts.PerPage = 10
		}
		if in.Labels != "" {
			opts.Labels = strings.Split(in.Labels, ",")
		}
		issues, _, err := c.client.Issues.ListByRepo(ctx, c.owner, c.repo, opts)
		if err != nil {
			return nil, fmt.Errorf("github: list issues: %w", err)
		}
		views := make([]issueView, 0, len(issues))
		for _, i := range issues {
			if i.IsPullRequest() {
				continue
			}
			views = append(views, viewIssue(i, false))
		}
		return map[string]any{"issues": views}, nil

	case ghGetIssue:
		var in struct {
			Number int `mapstructure:"number"`
		}
		if err := mapstructure.WeakDecode(args, &in); err != nil || in.Number <= 0 {
			return nil, fmt.Errorf("%w: number is required", errBadCall)
		}
		issue, _, err := c.client.Issues.Get(ctx, c.owner, c.repo, in.Number)
		if err != nil {
			return nil, fmt.Errorf("github: get issue: %w", err)
		}
		return viewIssue(issue, true), nil

	case ghCreateIssue:
		var in struct {
			Title  string   `mapstructure:"title"`
			Body   string   `mapstructure:"body"`
			Labels []string `mapstructure:"labels"`
		}
		if err := mapstructure.WeakDecode(args, &in); err != nil {
			return nil, fmt.Errorf("%w: %v", errBadCall, err)
		}
		if strings.TrimSpace(in.Title) == "" {
			return nil, fmt.Errorf("%w: title is required", errBadCall)
		}
		req := &gogithub.IssueRequest{Title: &in.Title, Body: &in.Body}
		if len(in.Labels) > 0 {
			req.Labels = &in.Labels
		}
		issue, _, err := c.client.Issues.Create(ctx, c.owner, c.repo, req)
		if err != nil {
			return nil, fmt.Errorf("github: create issue: %w", err)
		}
		return viewIssue(issue, false), nil

	case ghCommentOnIssue:
		var in struct {
			Number int    `mapstructure:"number"`
			Body   string `mapstructure:"body"`
		}
		if err := mapstructure.WeakDecode(args, &in); err != nil || in.Number <= 0 {
			return nil, fmt.Errorf("%w: number is required", errBadCall)
		}
		if strings.TrimSpace(in.Body) == "" {
			return nil, fmt.Errorf("%w: body is required", errBadCall)
		}
		comment, _, err := c.client.Issues.CreateComment(ctx, c.owner, c.repo, in.Number, &gogithub.IssueComment{Body: &in.Body})
		if err != nil {
			return nil, fmt.Errorf("github: comment on issue: %w", err)
		}
		return map[string]any{"id": comment.GetID(), "url": comment.GetHTMLURL()}, nil

	default:
		return nil, fmt.Errorf("%w: unknown tool %s", errBadCall, tool)
	}
}
