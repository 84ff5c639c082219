// Package pixai is the transport to the PixAI GraphQL API.
package pixai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// DefaultEndpoint is the public GraphQL endpoint.
const DefaultEndpoint = "https://api.pixai.art/graphql"

// Sentinel errors for transport failures. All but ErrMalformed wrap ErrTransport.
var (
	ErrTransport   = errors.New("pixai transport error")
	ErrUnreachable = fmt.Errorf("%w: unreachable", ErrTransport)
	ErrTimeout     = fmt.Errorf("%w: timeout", ErrTransport)
	ErrBadStatus   = fmt.Errorf("%w: unexpected status", ErrTransport)
	ErrGraphQL     = fmt.Errorf("%w: graphql error", ErrTransport)

	// ErrMalformed is returned when a 2xx response cannot be decoded.
	ErrMalformed = errors.New("pixai malformed response")
)

var tracer = otel.Tracer("pixai-client")

// Client is the request/response exchange the generation core depends on.
// Implementations must be safe for concurrent use.
type Client interface {
	// Query sends a GraphQL operation and decodes its "data" member into out.
	Query(ctx context.Context, query string, variables map[string]any, out any) error
	// Download fetches the bytes behind url with the same credentials.
	Download(ctx context.Context, url string) ([]byte, error)
}

// HTTPClient implements Client over HTTPS with a bearer token.
type HTTPClient struct {
	endpoint string
	token    string
	client   *http.Client
}

// Options configures an HTTPClient. Zero values select defaults.
type Options struct {
	Endpoint   string
	APIKey     string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// NewHTTPClient creates a new PixAI client. The returned client holds no
// per-run state and may be shared between concurrent runs.
func NewHTTPClient(opts Options) *HTTPClient {
	endpoint := strings.TrimSpace(opts.Endpoint)
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	hc := opts.HTTPClient
	if hc == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 60 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}
	return &HTTPClient{
		endpoint: endpoint,
		token:    strings.TrimSpace(opts.APIKey),
		client:   hc,
	}
}

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

type graphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphQLError  `json:"errors"`
}

type graphQLError struct {
	Message string `json:"message"`
}

func (c *HTTPClient) Query(ctx context.Context, query string, variables map[string]any, out any) error {
	ctx, span := tracer.Start(ctx, "pixai_query",
		trace.WithAttributes(attribute.String("graphql.operation", OperationName(query))))
	defer span.End()

	if variables == nil {
		variables = map[string]any{}
	}
	body, err := json.Marshal(graphQLRequest{Query: query, Variables: variables})
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	c.setHeaders(req)

	resp, err := c.client.Do(req)
	if err != nil {
		span.RecordError(err)
		return classifyError(err)
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(resp)
	}

	var gqlResp graphQLResponse
	if err := json.NewDecoder(resp.Body).Decode(&gqlResp); err != nil {
		span.RecordError(err)
		return fmt.Errorf("%w: decoding graphql response: %w", ErrMalformed, err)
	}
	if len(gqlResp.Errors) > 0 {
		msgs := make([]string, 0, len(gqlResp.Errors))
		for _, e := range gqlResp.Errors {
			msgs = append(msgs, e.Message)
		}
		err := fmt.Errorf("%w: %s", ErrGraphQL, strings.Join(msgs, "; "))
		span.RecordError(err)
		return err
	}

	if out == nil || len(gqlResp.Data) == 0 || string(gqlResp.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(gqlResp.Data, out); err != nil {
		span.RecordError(err)
		return fmt.Errorf("%w: decoding graphql data: %w", ErrMalformed, err)
	}
	return nil
}

func (c *HTTPClient) Download(ctx context.Context, url string) ([]byte, error) {
	ctx, span := tracer.Start(ctx, "pixai_download")
	defer span.End()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("building download request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.client.Do(req)
	if err != nil {
		span.RecordError(err)
		return nil, classifyError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, statusError(resp)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		span.RecordError(err)
		return nil, classifyError(err)
	}
	span.SetAttributes(attribute.Int("pixai.download_size", len(data)))
	return data, nil
}

func (c *HTTPClient) setHeaders(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

// statusError reads a bounded part of the body into the error message.
func statusError(resp *http.Response) error {
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	text := strings.TrimSpace(string(msg))
	if text == "" {
		return fmt.Errorf("%w: status %d", ErrBadStatus, resp.StatusCode)
	}
	return fmt.Errorf("%w: status %d: %s", ErrBadStatus, resp.StatusCode, text)
}

// classifyError maps transport-level errors to sentinel errors. The underlying
// error stays in the chain so callers can still match context.Canceled.
func classifyError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %w", ErrTransport, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}

	return fmt.Errorf("%w: %w", ErrUnreachable, err)
}

// OperationName extracts "createGenerationTask" from
// "mutation createGenerationTask($parameters: ...) { ... }".
func OperationName(query string) string {
	fields := strings.Fields(query)
	if len(fields) < 2 {
		return "anonymous"
	}
	switch fields[0] {
	case "query", "mutation", "subscription":
	default:
		return "anonymous"
	}
	name := fields[1]
	if i := strings.IndexAny(name, "({"); i >= 0 {
		name = name[:i]
	}
	if name == "" {
		return "anonymous"
	}
	return name
}

// Compile-time check that HTTPClient implements Client.
var _ Client = (*HTTPClient)(nil)
