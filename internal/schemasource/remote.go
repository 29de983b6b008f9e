package schemasource

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/JonMunkholm/recimport/internal/core"
)

// maxSchemaBody bounds the remote response size.
const maxSchemaBody = 4 << 20

// RemoteConfig configures the remote schema service client.
type RemoteConfig struct {
	URL      string
	Token    string // sent as a bearer token when set
	Timeout  time.Duration
	RetryMax int
	Logger   *slog.Logger
}

// Remote fetches the schema from an authenticated HTTP endpoint returning
// a JSON object of key -> type tag. Transient failures (connection errors,
// 5xx, 429) are retried; anything else fails the fetch. There is no cached
// fallback: a failed fetch aborts the batch.
type Remote struct {
	url    string
	token  string
	client *retryablehttp.Client
}

// NewRemote builds a remote provider.
func NewRemote(cfg RemoteConfig) (*Remote, error) {
	if cfg.URL == "" {
		return nil, errors.New("remote schema source: URL is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.RetryMax < 0 {
		cfg.RetryMax = 0
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default().With("component", "schemasource")
	}

	client := retryablehttp.NewClient()
	client.HTTPClient.Timeout = cfg.Timeout
	client.RetryMax = cfg.RetryMax
	client.RetryWaitMin = 200 * time.Millisecond
	client.RetryWaitMax = 2 * time.Second
	client.Logger = logger

	return &Remote{url: cfg.URL, token: cfg.Token, client: client}, nil
}

// FetchSchema implements core.SchemaProvider.
func (r *Remote) FetchSchema(ctx context.Context) (core.DescriptiveSchema, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, r.url, nil)
	if err != nil {
		return core.DescriptiveSchema{}, fmt.Errorf("%w: build request: %w", core.ErrSchemaUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return core.DescriptiveSchema{}, fmt.Errorf("%w: %w", core.ErrSchemaUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return core.DescriptiveSchema{}, fmt.Errorf("%w: schema service returned %s", core.ErrSchemaUnavailable, resp.Status)
	}

	var raw map[string]string
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxSchemaBody)).Decode(&raw); err != nil {
		return core.DescriptiveSchema{}, fmt.Errorf("%w: decode response: %w", core.ErrSchemaUnavailable, err)
	}
	schema, err := core.NewDescriptiveSchema(raw)
	if err != nil {
		return core.DescriptiveSchema{}, fmt.Errorf("%w: %w", core.ErrSchemaUnavailable, err)
	}
	return schema, nil
}
