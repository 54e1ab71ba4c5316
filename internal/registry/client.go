// Package registry implements the HTTP client for fetching Soulpacks from
// direct URLs and from a registry index. All calls are bounded by a request
// timeout and routed through a circuit breaker so a dead registry degrades
// to fast failures instead of hanging every install.
package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/Brant123451/soulpack-reader/pkg/types"
)

// ErrRegistryUnavailable is returned when the circuit breaker is open and
// requests are rejected without touching the network.
var ErrRegistryUnavailable = errors.New("registry unavailable")

const (
	defaultTimeout = 5 * time.Second

	// maxResponseBytes bounds how much of a response body is read. Packs
	// are small JSON documents; anything larger is not a pack.
	maxResponseBytes = 4 << 20
)

// RegistryError describes a failed registry or pack-fetch request.
type RegistryError struct {
	Op         string // "fetch_pack", "search", "check_update"
	URL        string
	StatusCode int // 0 when the request never produced a response
	Err        error
}

func (e *RegistryError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("registry %s %s: status %d: %v", e.Op, e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("registry %s %s: %v", e.Op, e.URL, e.Err)
}

func (e *RegistryError) Unwrap() error {
	return e.Err
}

// IndexEntry is one character listed in the registry index.
type IndexEntry struct {
	CharacterID string `json:"characterId"`
	DisplayName string `json:"displayName"`
	Description string `json:"description,omitempty"`
	Version     string `json:"version"`
	PackURL     string `json:"packUrl"`
}

// Client talks to a Soulpack registry and to direct pack URLs.
type Client struct {
	baseURL string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout replaces the default per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client, e.g. in tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// NewClient creates a registry client. baseURL is the registry root; it may
// be empty when only direct-URL fetches are needed.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}

	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "SoulpackRegistry",
		MaxRequests: 2,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	})
	return c
}

// FetchPack downloads and validates a Character Definition from a URL.
// Validation failures are surfaced verbatim so install callers can report
// every reason.
func (c *Client) FetchPack(ctx context.Context, packURL string) (*types.CharacterDefinition, error) {
	data, err := c.get(ctx, "fetch_pack", packURL)
	if err != nil {
		return nil, err
	}

	def, result := types.ParsePack(data)
	if !result.OK {
		return nil, &RegistryError{
			Op:  "fetch_pack",
			URL: packURL,
			Err: fmt.Errorf("invalid character definition: %s", result.Summary()),
		}
	}
	return def, nil
}

// Search queries the registry index for characters whose id, name, or
// description contains query case-insensitively. An empty query returns the
// full index.
func (c *Client) Search(ctx context.Context, query string) ([]IndexEntry, error) {
	entries, err := c.index(ctx, "search")
	if err != nil {
		return nil, err
	}
	if query == "" {
		return entries, nil
	}

	needle := strings.ToLower(query)
	var matches []IndexEntry
	for _, e := range entries {
		haystack := strings.ToLower(e.CharacterID + " " + e.DisplayName + " " + e.Description)
		if strings.Contains(haystack, needle) {
			matches = append(matches, e)
		}
	}
	return matches, nil
}

func (c *Client) index(ctx context.Context, op string) ([]IndexEntry, error) {
	if c.baseURL == "" {
		return nil, &RegistryError{Op: op, Err: errors.New("no registry configured")}
	}
	data, err := c.get(ctx, op, c.baseURL+"/index.json")
	if err != nil {
		return nil, err
	}

	var entries []IndexEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, &RegistryError{
			Op:  op,
			URL: c.baseURL + "/index.json",
			Err: fmt.Errorf("decode index: %w", err),
		}
	}
	return entries, nil
}

// get performs one GET through the circuit breaker and returns the body.
func (c *Client) get(ctx context.Context, op, url string) ([]byte, error) {
	body, err := c.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, &RegistryError{Op: op, URL: url, Err: err}
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, &RegistryError{Op: op, URL: url, Err: err}
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return nil, &RegistryError{
				Op:         op,
				URL:        url,
				StatusCode: resp.StatusCode,
				Err:        fmt.Errorf("unexpected status %s", resp.Status),
			}
		}

		data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		if err != nil {
			return nil, &RegistryError{Op: op, URL: url, Err: err}
		}
		return data, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %v", ErrRegistryUnavailable, err)
		}
		return nil, err
	}
	return body.([]byte), nil
}
