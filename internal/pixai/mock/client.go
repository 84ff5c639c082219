// Package mock provides a scripted pixai.Client for tests.
package mock

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/kiranshivaraju/pixgen/internal/pixai"
)

// Call records one Query invocation.
type Call struct {
	Operation string
	Variables map[string]any
}

// Client satisfies pixai.Client. Responses are scripted per GraphQL operation
// name; each Query pops the next response and the last one repeats.
// A response is either an error or any JSON-encodable value standing in for
// the "data" member.
type Client struct {
	mu        sync.Mutex
	responses map[string][]any
	calls     []Call
	downloads []string

	QueryFunc    func(ctx context.Context, query string, variables map[string]any, out any) error
	DownloadFunc func(ctx context.Context, url string) ([]byte, error)
}

// NewClient returns an empty scripted client.
func NewClient() *Client {
	return &Client{responses: make(map[string][]any)}
}

// On queues responses for the named operation.
func (c *Client) On(operation string, responses ...any) *Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.responses[operation] = append(c.responses[operation], responses...)
	return c
}

// OnDownload makes every Download return data and err.
func (c *Client) OnDownload(data []byte, err error) *Client {
	c.DownloadFunc = func(_ context.Context, _ string) ([]byte, error) {
		return data, err
	}
	return c
}

func (c *Client) Query(ctx context.Context, query string, variables map[string]any, out any) error {
	op := pixai.OperationName(query)

	c.mu.Lock()
	c.calls = append(c.calls, Call{Operation: op, Variables: variables})
	queue := c.responses[op]
	var next any
	var scripted bool
	if len(queue) > 0 {
		next, scripted = queue[0], true
		if len(queue) > 1 {
			c.responses[op] = queue[1:]
		}
	}
	c.mu.Unlock()

	if c.QueryFunc != nil {
		return c.QueryFunc(ctx, query, variables, out)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", pixai.ErrTransport, err)
	}
	if !scripted {
		return fmt.Errorf("%w: no scripted response for %s", pixai.ErrTransport, op)
	}
	if err, ok := next.(error); ok {
		return err
	}
	return Decode(next, out)
}

func (c *Client) Download(ctx context.Context, url string) ([]byte, error) {
	c.mu.Lock()
	c.downloads = append(c.downloads, url)
	c.mu.Unlock()

	if c.DownloadFunc != nil {
		return c.DownloadFunc(ctx, url)
	}
	return nil, fmt.Errorf("%w: no scripted download for %s", pixai.ErrTransport, url)
}

// Calls returns how many times operation was queried.
func (c *Client) Calls(operation string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, call := range c.calls {
		if call.Operation == operation {
			n++
		}
	}
	return n
}

// History returns a copy of all recorded queries in order.
func (c *Client) History() []Call {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Call, len(c.calls))
	copy(out, c.calls)
	return out
}

// Downloads returns the URLs passed to Download in order.
func (c *Client) Downloads() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.downloads))
	copy(out, c.downloads)
	return out
}

// Decode copies payload into out through JSON, the way a real response would be decoded.
func Decode(payload any, out any) error {
	if out == nil {
		return nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

// Compile-time check that Client implements pixai.Client.
var _ pixai.Client = (*Client)(nil)
