package state

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const maxReplyBytes = 2 << 20

// ErrRedis marks failures talking to the Upstash REST endpoint.
var ErrRedis = errors.New("upstash redis")

type UpstashRedisConfig struct {
	URL     string        `envconfig:"URL" split_words:"true" required:"true"`
	Token   string        `envconfig:"TOKEN" split_words:"true" required:"true"`
	Timeout time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"10s"`
}

// restClient sends single Redis commands as JSON arrays to an Upstash REST
// endpoint.
type restClient struct {
	endpoint string
	token    string
	http     *http.Client
}

type restReply struct {
	Result json.RawMessage `json:"result"`
	Error  string          `json:"error"`
}

func newRESTClient(cfg UpstashRedisConfig) (*restClient, error) {
	endpoint := strings.TrimRight(strings.TrimSpace(cfg.URL), "/")
	if endpoint == "" {
		return nil, errors.New("upstash redis url is required")
	}
	if _, err := url.ParseRequestURI(endpoint); err != nil {
		return nil, fmt.Errorf("invalid redis rest url: %w", err)
	}
	token := strings.TrimSpace(cfg.Token)
	if token == "" {
		return nil, errors.New("upstash redis token is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &restClient{
		endpoint: endpoint,
		token:    token,
		http:     &http.Client{Timeout: timeout},
	}, nil
}

// do runs one command and returns its raw result. A JSON null result comes
// back as nil.
func (c *restClient) do(ctx context.Context, args ...any) (json.RawMessage, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("%w: empty command", ErrRedis)
	}
	name := fmt.Sprint(args[0])

	body, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("%w: encode %s: %w", ErrRedis, name, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: build %s: %w", ErrRedis, name, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrRedis, name, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxReplyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read %s reply: %w", ErrRedis, name, err)
	}
	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("%w: %s status=%d body=%s", ErrRedis, name, resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var reply restReply
	if err := json.Unmarshal(raw, &reply); err != nil {
		return nil, fmt.Errorf("%w: decode %s reply: %w", ErrRedis, name, err)
	}
	if reply.Error != "" {
		return nil, fmt.Errorf("%w: %s: %s", ErrRedis, name, reply.Error)
	}
	result := bytes.TrimSpace(reply.Result)
	if len(result) == 0 || bytes.Equal(result, []byte("null")) {
		return nil, nil
	}
	return result, nil
}

// expirySeconds rounds ttl up to whole seconds, never below one.
func expirySeconds(ttl time.Duration) int64 {
	secs := int64((ttl + time.Second - 1) / time.Second)
	if secs < 1 {
		return 1
	}
	return secs
}
