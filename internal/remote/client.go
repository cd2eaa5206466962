// Package remote wraps the table-oriented sync backend: per-entity REST
// endpoints with equality and timestamp filters, idempotent upsert by primary
// key, invocable server-side functions, and a websocket change-notification
// feed. The HTTP surface follows the PostgREST conventions the backend
// exposes (`col=eq.v`, `col=gte.v`, `col=in.(a,b)` filters, merge-duplicates
// upsert).
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Doer is the subset of [http.Client] the adapter needs. Defining it as an
// interface allows mock injection in tests.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client talks to the remote store. Create one with [New].
type Client struct {
	baseURL string
	apiKey  string
	token   func(context.Context) (string, error)
	hc      Doer
	log     *slog.Logger
}

// New creates a Client for the backend at baseURL. token returns the current
// account's bearer token; it is called per request so rotation is picked up
// without reconnecting.
func New(baseURL, apiKey string, token func(context.Context) (string, error), logger *slog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		token:   token,
		hc:      &http.Client{Timeout: 30 * time.Second},
		log:     logger,
	}
}

// NewWithDoer creates a Client with a caller-supplied HTTP doer. Intended for
// testing.
func NewWithDoer(baseURL, apiKey string, token func(context.Context) (string, error), d Doer, logger *slog.Logger) *Client {
	c := New(baseURL, apiKey, token, logger)
	c.hc = d
	return c
}

// Ping validates connectivity and credentials with a cheap HEAD request,
// with retry.
func (c *Client) Ping(ctx context.Context) error {
	err := Retry(ctx, defaultMaxAttempts, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.baseURL+"/rest/v1/", nil)
		if err != nil {
			return fmt.Errorf("creating ping request: %w", err)
		}
		if err := c.authorize(ctx, req); err != nil {
			return err
		}
		resp, err := c.hc.Do(req)
		if err != nil {
			return fmt.Errorf("executing ping request: %w", err)
		}
		_ = resp.Body.Close()
		if resp.StatusCode >= 300 {
			return fmt.Errorf("remote store returned status %d", resp.StatusCode)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("pinging remote store: %w", err)
	}
	return nil
}

func (c *Client) authorize(ctx context.Context, req *http.Request) error {
	req.Header.Set("apikey", c.apiKey)
	tok, err := c.token(ctx)
	if err != nil {
		return fmt.Errorf("resolving bearer token: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+tok)
	return nil
}

// do executes one authorized request and decodes the response into dest
// (dest may be nil when no body is expected).
func (c *Client) do(ctx context.Context, method, path string, query url.Values, headers map[string]string, body, dest any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request body: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("creating %s %s request: %w", method, path, err)
	}
	if err := c.authorize(ctx, req); err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("executing %s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("%s %s: 401 Unauthorized — check api_key and account token", method, path)
	}
	if resp.StatusCode >= 300 {
		var apiErr struct {
			Message string `json:"message"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		if apiErr.Message != "" {
			return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, apiErr.Message)
		}
		return fmt.Errorf("%s %s: unexpected status %d", method, path, resp.StatusCode)
	}

	if dest == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("decoding %s %s response: %w", method, path, err)
	}
	return nil
}

// selectRows fetches rows of table matching query into dest (a pointer to a
// slice of wire rows).
func (c *Client) selectRows(ctx context.Context, table string, query url.Values, dest any) error {
	return c.do(ctx, http.MethodGet, "/rest/v1/"+table, query, nil, nil, dest)
}

// upsertRows inserts-or-merges rows by primary key. Idempotent: re-sending
// the same rows is a no-op.
func (c *Client) upsertRows(ctx context.Context, table string, rows any) error {
	headers := map[string]string{"Prefer": "resolution=merge-duplicates"}
	return c.do(ctx, http.MethodPost, "/rest/v1/"+table, nil, headers, rows, nil)
}

// updateRows patches fields on all rows matching query.
func (c *Client) updateRows(ctx context.Context, table string, query url.Values, fields map[string]any) error {
	return c.do(ctx, http.MethodPatch, "/rest/v1/"+table, query, nil, fields, nil)
}

// deleteRows removes all rows matching query. Used only for junction
// collections, which are replaced as a set; entity rows are soft-deleted via
// their deleted_at column instead.
func (c *Client) deleteRows(ctx context.Context, table string, query url.Values) error {
	return c.do(ctx, http.MethodDelete, "/rest/v1/"+table, query, nil, nil, nil)
}

// rpc invokes the named server-side function.
func (c *Client) rpc(ctx context.Context, name string, args, dest any) error {
	return c.do(ctx, http.MethodPost, "/rest/v1/rpc/"+name, nil, nil, args, dest)
}

// --- filter helpers ----------------------------------------------------------

// filter builds PostgREST-style query parameters.
type filter url.Values

func where() filter { return filter(url.Values{}) }

func (f filter) eq(col, val string) filter {
	url.Values(f).Set(col, "eq."+val)
	return f
}

// gte adds an updated-since bound. A zero time adds nothing, which turns the
// first pull of a fresh device into a full download.
func (f filter) gte(col string, t time.Time) filter {
	if !t.IsZero() {
		url.Values(f).Set(col, "gte."+t.UTC().Format(time.RFC3339Nano))
	}
	return f
}

func (f filter) in(col string, vals []string) filter {
	url.Values(f).Set(col, "in.("+strings.Join(vals, ",")+")")
	return f
}

func (f filter) values() url.Values { return url.Values(f) }
