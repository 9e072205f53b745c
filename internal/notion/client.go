package notion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/sumandas0/notionmbse/internal/observability"
	"github.com/sumandas0/notionmbse/internal/resilience"
	"github.com/sumandas0/notionmbse/pkg/utils"
)

const (
	DefaultBaseURL = "https://api.notion.com/v1"
	DefaultVersion = "2022-06-28"

	defaultTimeout = 30 * time.Second
	// the workspace API allows an average of three requests per second
	defaultRate  = 3
	defaultBurst = 3

	breakerName = "notion"
)

// API is the subset of the workspace API the controllers use. *Client
// implements it.
type API interface {
	RetrievePage(ctx context.Context, pageID string) (*Page, error)
	CreatePage(ctx context.Context, req CreatePageRequest) (*Page, error)
	UpdatePage(ctx context.Context, pageID string, req UpdatePageRequest) (*Page, error)
	ListBlockChildren(ctx context.Context, blockID, startCursor string, pageSize int) (*BlockList, error)
	AppendBlockChildren(ctx context.Context, blockID string, children []Block) (*BlockList, error)
	DeleteBlock(ctx context.Context, blockID string) error
	RetrieveDatabase(ctx context.Context, databaseID string) (*Database, error)
	UpdateDatabase(ctx context.Context, databaseID string, req UpdateDatabaseRequest) (*Database, error)
	QueryDatabase(ctx context.Context, databaseID string, req QueryRequest) (*QueryResponse, error)
}

// RequestRecorder receives one observation per API call.
type RequestRecorder interface {
	RecordNotionRequest(method, endpoint string, statusCode int, duration time.Duration)
}

type Client struct {
	baseURL    *url.URL
	token      string
	version    string
	httpClient *http.Client
	timeout    time.Duration
	limiter    *rate.Limiter
	breakers   *resilience.CircuitBreakerManager
	logger     zerolog.Logger
	metrics    RequestRecorder
	tracer     *observability.TracingManager
}

var _ API = (*Client)(nil)

type ClientOption func(*Client)

func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithTimeout bounds every request. It applies to a copy of the HTTP
// client, whatever order the options come in.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.timeout = timeout
	}
}

func WithBaseURL(u *url.URL) ClientOption {
	return func(c *Client) {
		c.baseURL = u
	}
}

func WithVersion(version string) ClientOption {
	return func(c *Client) {
		c.version = version
	}
}

// WithRateLimit replaces the default limiter. A non positive rps disables
// client side limiting.
func WithRateLimit(rps float64, burst int) ClientOption {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

func WithCircuitBreaker(breakers *resilience.CircuitBreakerManager) ClientOption {
	return func(c *Client) {
		c.breakers = breakers
	}
}

func WithLogger(logger zerolog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

func WithMetrics(metrics RequestRecorder) ClientOption {
	return func(c *Client) {
		c.metrics = metrics
	}
}

func WithTracer(tracer *observability.TracingManager) ClientOption {
	return func(c *Client) {
		c.tracer = tracer
	}
}

// NewClient returns a client authenticated with an integration token.
func NewClient(token string, opts ...ClientOption) (*Client, error) {
	if token == "" {
		return nil, utils.NewConfigurationError("notion integration token is not set")
	}

	baseURL, err := url.Parse(DefaultBaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}

	client := &Client{
		baseURL: baseURL,
		token:   token,
		version: DefaultVersion,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
		limiter: rate.NewLimiter(defaultRate, defaultBurst),
		logger:  zerolog.Nop(),
	}

	for _, opt := range opts {
		opt(client)
	}
	if client.timeout > 0 {
		hc := *client.httpClient
		hc.Timeout = client.timeout
		client.httpClient = &hc
	}

	return client, nil
}

// ParseBaseURL is a convenience for configuration driven base URLs.
func ParseBaseURL(raw string) (*url.URL, error) {
	if raw == "" {
		raw = DefaultBaseURL
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, utils.NewConfigurationError(fmt.Sprintf("invalid notion base URL %q", raw))
	}
	return u, nil
}

func (c *Client) RetrievePage(ctx context.Context, pageID string) (*Page, error) {
	var page Page
	if err := c.doJSONRequest(ctx, http.MethodGet, "pages.retrieve", nil, nil, &page, "pages", pageID); err != nil {
		return nil, err
	}
	return &page, nil
}

func (c *Client) CreatePage(ctx context.Context, req CreatePageRequest) (*Page, error) {
	var page Page
	if err := c.doJSONRequest(ctx, http.MethodPost, "pages.create", nil, req, &page, "pages"); err != nil {
		return nil, err
	}
	return &page, nil
}

func (c *Client) UpdatePage(ctx context.Context, pageID string, req UpdatePageRequest) (*Page, error) {
	var page Page
	if err := c.doJSONRequest(ctx, http.MethodPatch, "pages.update", nil, req, &page, "pages", pageID); err != nil {
		return nil, err
	}
	return &page, nil
}

// ArchivePage moves a page to the trash; archived pages stay retrievable.
func (c *Client) ArchivePage(ctx context.Context, pageID string) (*Page, error) {
	archived := true
	return c.UpdatePage(ctx, pageID, UpdatePageRequest{Archived: &archived})
}

func (c *Client) RetrieveDatabase(ctx context.Context, databaseID string) (*Database, error) {
	var db Database
	if err := c.doJSONRequest(ctx, http.MethodGet, "databases.retrieve", nil, nil, &db, "databases", databaseID); err != nil {
		return nil, err
	}
	return &db, nil
}

func (c *Client) UpdateDatabase(ctx context.Context, databaseID string, req UpdateDatabaseRequest) (*Database, error) {
	var db Database
	if err := c.doJSONRequest(ctx, http.MethodPatch, "databases.update", nil, req, &db, "databases", databaseID); err != nil {
		return nil, err
	}
	return &db, nil
}

func (c *Client) QueryDatabase(ctx context.Context, databaseID string, req QueryRequest) (*QueryResponse, error) {
	var resp QueryResponse
	if err := c.doJSONRequest(ctx, http.MethodPost, "databases.query", nil, req, &resp, "databases", databaseID, "query"); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) ListBlockChildren(ctx context.Context, blockID, startCursor string, pageSize int) (*BlockList, error) {
	query := url.Values{}
	if startCursor != "" {
		query.Set("start_cursor", startCursor)
	}
	if pageSize > 0 {
		query.Set("page_size", strconv.Itoa(pageSize))
	}

	var list BlockList
	if err := c.doJSONRequest(ctx, http.MethodGet, "blocks.children.list", query, nil, &list, "blocks", blockID, "children"); err != nil {
		return nil, err
	}
	return &list, nil
}

func (c *Client) AppendBlockChildren(ctx context.Context, blockID string, children []Block) (*BlockList, error) {
	var list BlockList
	req := AppendBlockChildrenRequest{Children: children}
	if err := c.doJSONRequest(ctx, http.MethodPatch, "blocks.children.append", nil, req, &list, "blocks", blockID, "children"); err != nil {
		return nil, err
	}
	return &list, nil
}

// DeleteBlock archives a block. Pages are blocks, so this deletes pages too.
func (c *Client) DeleteBlock(ctx context.Context, blockID string) error {
	var block Block
	return c.doJSONRequest(ctx, http.MethodDelete, "blocks.delete", nil, nil, &block, "blocks", blockID)
}

// QueryAll walks every result page of a database query.
func QueryAll(ctx context.Context, api API, databaseID string, req QueryRequest) iter.Seq2[Page, error] {
	return func(yield func(Page, error) bool) {
		for {
			resp, err := api.QueryDatabase(ctx, databaseID, req)
			if err != nil {
				yield(Page{}, err)
				return
			}
			for _, page := range resp.Results {
				if !yield(page, nil) {
					return
				}
			}
			if !resp.HasMore || resp.NextCursor == nil || *resp.NextCursor == "" {
				return
			}
			req.StartCursor = *resp.NextCursor
		}
	}
}

// doRequest performs one HTTP round trip after waiting on the limiter.
func (c *Client) doRequest(ctx context.Context, method string, query url.Values, body any, segments ...string) (*http.Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}
	}

	u := c.baseURL.JoinPath(segments...)
	if query != nil {
		u.RawQuery = query.Encode()
	}

	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Notion-Version", c.version)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	return resp, nil
}

// doJSONRequest runs a request through the breaker and decodes the reply
// into result.
func (c *Client) doJSONRequest(ctx context.Context, method, endpoint string, query url.Values, body, result any, segments ...string) error {
	return c.instrument(ctx, method, endpoint, func(ctx context.Context) (int, error) {
		call := func(ctx context.Context) (any, error) {
			return c.roundTrip(ctx, method, query, body, result, segments...)
		}

		var (
			out any
			err error
		)
		if c.breakers != nil {
			out, err = c.breakers.ExecuteWithContext(ctx, breakerName, call)
		} else {
			out, err = call(ctx)
		}
		status, _ := out.(int)
		return status, err
	})
}

func (c *Client) instrument(ctx context.Context, method, endpoint string, fn func(context.Context) (int, error)) error {
	start := time.Now()

	var span trace.Span
	if c.tracer != nil {
		ctx, span = c.tracer.StartNotionRequest(ctx, method, endpoint)
		defer span.End()
	}

	status, err := fn(ctx)
	duration := time.Since(start)

	if span != nil {
		span.SetAttributes(attribute.Int("http.status_code", status))
		if err != nil {
			c.tracer.SetSpanError(span, err)
			span.SetStatus(codes.Error, err.Error())
		}
	}
	if c.metrics != nil {
		c.metrics.RecordNotionRequest(method, endpoint, status, duration)
	}

	event := c.logger.Debug()
	if err != nil && !IsClientError(err) {
		event = c.logger.Warn().Err(err)
	}
	event.Str("method", method).
		Str("endpoint", endpoint).
		Int("status_code", status).
		Dur("duration", duration).
		Msg("Notion request")

	return err
}

func (c *Client) roundTrip(ctx context.Context, method string, query url.Values, body, result any, segments ...string) (any, error) {
	resp, err := c.doRequest(ctx, method, query, body, segments...)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return resp.StatusCode, c.handleErrorResponse(resp)
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return resp.StatusCode, fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return resp.StatusCode, nil
}

func (c *Client) handleErrorResponse(resp *http.Response) error {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read error response: %w", err)
	}

	apiErr := &APIError{Status: resp.StatusCode}
	if err := json.Unmarshal(body, apiErr); err != nil || apiErr.Message == "" {
		apiErr.Message = string(body)
	}
	// the body status wins only when present
	if apiErr.Status == 0 {
		apiErr.Status = resp.StatusCode
	}
	return apiErr
}
