package wikidata

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ppiankov/qidlink/internal/metrics"
	"github.com/ppiankov/qidlink/internal/model"
	"github.com/ppiankov/qidlink/internal/util"
	"github.com/ppiankov/qidlink/internal/worker"
)

const (
	EndpointSearch = "search"
	EndpointEntity = "entity"

	maxBodyBytes = 16 << 20
)

// retrySleepFunc is the sleep function used between attempts (injectable for tests)
var retrySleepFunc = time.Sleep

// StatusError reports a non-200 response
type StatusError struct {
	Endpoint string
	Code     int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("wikidata %s returned %d", e.Endpoint, e.Code)
}

// Client provides access to Wikidata search and entity data.
type Client struct {
	searchURL   string
	entityURL   string
	language    string
	limit       int
	userAgent   string
	maxAttempts int
	backoff     time.Duration
	httpClient  *http.Client
	limiter     *worker.Limiter
	metrics     *metrics.Metrics
	logger      *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithLimiter applies per-host rate limiting to every attempt.
func WithLimiter(limiter *worker.Limiter) Option {
	return func(c *Client) {
		c.limiter = limiter
	}
}

// WithMetrics records request counters.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New creates a Wikidata client.
func New(wd model.WikidataConfig, httpCfg model.HTTPConfig, opts ...Option) (*Client, error) {
	searchURL := strings.TrimSpace(wd.SearchURL)
	if searchURL == "" {
		return nil, errors.New("wikidata search url required")
	}
	if _, err := url.Parse(searchURL); err != nil {
		return nil, fmt.Errorf("parse search url: %w", err)
	}
	entityURL := strings.TrimSpace(wd.EntityURL)
	if !strings.Contains(entityURL, "%s") {
		return nil, fmt.Errorf("entity url %q must contain %%s", entityURL)
	}

	attempts := httpCfg.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	timeout := httpCfg.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}

	client := &Client{
		searchURL:   searchURL,
		entityURL:   entityURL,
		language:    strings.TrimSpace(wd.Language),
		limit:       wd.SearchLimit,
		userAgent:   httpCfg.UserAgent,
		maxAttempts: attempts,
		backoff:     httpCfg.Backoff,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy: util.NewProxyFunc(httpCfg.HTTPProxy, httpCfg.HTTPSProxy, httpCfg.NoProxy),
			},
		},
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

type searchResponse struct {
	Search []struct {
		ID          string `json:"id"`
		Label       string `json:"label"`
		Description string `json:"description"`
	} `json:"search"`
	Error *apiError `json:"error,omitempty"`
}

type apiError struct {
	Code string `json:"code"`
	Info string `json:"info"`
}

// Search returns the candidates for a free-text label, in relevance order.
func (c *Client) Search(ctx context.Context, query string) ([]model.Candidate, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.New("query must not be empty")
	}

	endpoint, err := url.Parse(c.searchURL)
	if err != nil {
		return nil, fmt.Errorf("parse search url: %w", err)
	}
	params := endpoint.Query()
	params.Set("action", "wbsearchentities")
	params.Set("format", "json")
	if c.language != "" {
		params.Set("language", c.language)
	}
	if c.limit > 0 {
		params.Set("limit", strconv.Itoa(c.limit))
	}
	params.Set("search", query)
	endpoint.RawQuery = params.Encode()

	var payload searchResponse
	if err := c.getJSON(ctx, EndpointSearch, endpoint.String(), &payload); err != nil {
		return nil, err
	}
	if payload.Error != nil {
		return nil, fmt.Errorf("wikidata search error %s: %s", payload.Error.Code, payload.Error.Info)
	}

	candidates := make([]model.Candidate, 0, len(payload.Search))
	for _, hit := range payload.Search {
		if hit.ID == "" {
			continue
		}
		candidates = append(candidates, model.Candidate{
			ID:          hit.ID,
			Label:       hit.Label,
			Description: hit.Description,
		})
	}
	return candidates, nil
}

type entityResponse struct {
	Entities map[string]entityPayload `json:"entities"`
}

type entityPayload struct {
	ID        string                     `json:"id"`
	Sitelinks objectMap[sitelink]        `json:"sitelinks"`
	Aliases   objectMap[[]languageValue] `json:"aliases"`
}

type sitelink struct {
	Site  string `json:"site"`
	Title string `json:"title"`
}

type languageValue struct {
	Language string `json:"language"`
	Value    string `json:"value"`
}

// objectMap decodes a JSON object, accepting the empty array that the
// entity serializer emits for entities without entries.
type objectMap[V any] map[string]V

func (m *objectMap[V]) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("[]")) || bytes.Equal(trimmed, []byte("null")) {
		*m = nil
		return nil
	}
	var out map[string]V
	if err := json.Unmarshal(trimmed, &out); err != nil {
		return err
	}
	*m = out
	return nil
}

// Entity fetches sitelinks and aliases for one entity id.
func (c *Client) Entity(ctx context.Context, id string) (*model.EntityDetail, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, errors.New("entity id must not be empty")
	}

	var payload entityResponse
	rawURL := fmt.Sprintf(c.entityURL, url.PathEscape(id))
	if err := c.getJSON(ctx, EndpointEntity, rawURL, &payload); err != nil {
		return nil, err
	}

	entity, ok := payload.Entities[id]
	if !ok {
		return nil, fmt.Errorf("entity %s missing from response", id)
	}

	detail := &model.EntityDetail{
		ID:        id,
		Sitelinks: make(map[string]string, len(entity.Sitelinks)),
		Aliases:   make(map[string][]string, len(entity.Aliases)),
	}
	for site, link := range entity.Sitelinks {
		detail.Sitelinks[site] = link.Title
	}
	for lang, values := range entity.Aliases {
		for _, v := range values {
			if v.Value != "" {
				detail.Aliases[lang] = append(detail.Aliases[lang], v.Value)
			}
		}
	}
	return detail, nil
}

// getJSON performs a GET with retries and decodes the body into out
func (c *Client) getJSON(ctx context.Context, endpoint, rawURL string, out interface{}) error {
	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		lastErr = c.attempt(ctx, endpoint, rawURL, out)
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil || !isRetryable(lastErr) {
			break
		}
		if attempt < c.maxAttempts {
			backoff := c.backoff * time.Duration(attempt)
			c.logger.Debug("retrying wikidata request",
				zap.String("endpoint", endpoint),
				zap.Int("attempt", attempt),
				zap.Duration("backoff", backoff),
				zap.Error(lastErr))
			retrySleepFunc(backoff)
		}
	}

	c.metrics.SourceFailure(endpoint)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return fmt.Errorf("wikidata %s: %w", endpoint, lastErr)
}

func (c *Client) attempt(ctx context.Context, endpoint, rawURL string, out interface{}) error {
	if err := c.limiter.Wait(ctx, rawURL); err != nil {
		return fmt.Errorf("rate limit: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	requestStart := time.Now()
	resp, err := c.httpClient.Do(req)
	latency := time.Since(requestStart)
	if err != nil {
		c.metrics.HTTPRequest(endpoint, 0)
		return fmt.Errorf("execute request (latency=%v): %w", latency, err)
	}
	defer resp.Body.Close()
	c.metrics.HTTPRequest(endpoint, resp.StatusCode)

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return &StatusError{Endpoint: endpoint, Code: resp.StatusCode}
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", endpoint, err)
	}
	return nil
}

// isRetryable reports whether another attempt could succeed.
// Client errors other than 429 are permanent.
func isRetryable(err error) bool {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		if statusErr.Code == http.StatusTooManyRequests {
			return true
		}
		return statusErr.Code < 400 || statusErr.Code >= 500
	}
	return true
}
