// Package textapi is the HTTP client of the upstream text provider:
// versioned text, link graph and index metadata endpoints.
package textapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/shiurlab/shiur-core/internal/core/domain"
	"github.com/shiurlab/shiur-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.TextProvider = (*Client)(nil)

// Client implements driven.TextProvider over the provider's JSON API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// Config holds provider connection configuration.
type Config struct {
	// BaseURL is the API root (e.g. https://www.sefaria.org/api).
	BaseURL string

	// Timeout for HTTP requests.
	Timeout time.Duration

	// RequestsPerSecond throttles outgoing calls; 0 disables
	// throttling.
	RequestsPerSecond float64

	// Burst is the limiter burst size.
	Burst int
}

// DefaultConfig returns sensible defaults.
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:           baseURL,
		Timeout:           30 * time.Second,
		RequestsPerSecond: 5,
		Burst:             10,
	}
}

// NewClient creates a new provider client.
func NewClient(cfg Config) *Client {
	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	return &Client{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		limiter: limiter,
	}
}

// textResponse is the wire shape of the v3 texts endpoint.
type textResponse struct {
	Ref      string        `json:"ref"`
	He       any           `json:"he"`
	Versions []wireVersion `json:"versions"`
}

type wireVersion struct {
	Language string `json:"language"`
	Text     any    `json:"text"`
}

// FetchText retrieves the Hebrew text for a ref with lang=he and
// context=0.
func (c *Client) FetchText(ctx context.Context, ref string) (*driven.TextPayload, error) {
	endpoint := fmt.Sprintf("%s/v3/texts/%s?lang=he&context=0", c.baseURL, url.PathEscape(ref))
	body, err := c.get(ctx, endpoint, ref)
	if err != nil {
		return nil, err
	}

	var resp textResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: decode text for %q: %v", domain.ErrUpstreamSchema, ref, err)
	}

	// Some responses carry the Hebrew only inside versions.
	if resp.He == nil {
		for _, v := range resp.Versions {
			if v.Language == "he" && v.Text != nil {
				resp.He = v.Text
				break
			}
		}
	}
	if resp.Ref == "" || resp.He == nil {
		return nil, fmt.Errorf("%w: missing he/ref for %q", domain.ErrUpstreamSchema, ref)
	}

	payload := &driven.TextPayload{Ref: resp.Ref, He: resp.He}
	for _, v := range resp.Versions {
		payload.Versions = append(payload.Versions, driven.TextVersion{Language: v.Language, Text: v.Text})
	}
	return payload, nil
}

// linkEntry is the wire shape of one links element.
type linkEntry struct {
	Refs          []string `json:"refs"`
	ExpandedRefs0 []string `json:"expandedRefs0"`
	ExpandedRefs1 []string `json:"expandedRefs1"`
	ExpandedRefs  []string `json:"expandedRefs"`
	Ref           string   `json:"ref"`
	AnchorRef     string   `json:"anchorRef"`
	SourceRef     string   `json:"sourceRef"`
}

// FetchLinks retrieves the link graph anchored at ref. The endpoint
// answers either a bare array or an object wrapping it under "links".
func (c *Client) FetchLinks(ctx context.Context, ref string) ([]driven.LinkEntry, error) {
	endpoint := fmt.Sprintf("%s/links/%s", c.baseURL, url.PathEscape(ref))
	body, err := c.get(ctx, endpoint, ref)
	if err != nil {
		return nil, err
	}

	var entries []linkEntry
	if err := json.Unmarshal(body, &entries); err != nil {
		var wrapped struct {
			Links []linkEntry `json:"links"`
		}
		if err := json.Unmarshal(body, &wrapped); err != nil {
			return nil, fmt.Errorf("%w: decode links for %q: %v", domain.ErrUpstreamSchema, ref, err)
		}
		entries = wrapped.Links
	}

	out := make([]driven.LinkEntry, len(entries))
	for i, e := range entries {
		out[i] = driven.LinkEntry{
			Refs:          e.Refs,
			ExpandedRefs0: e.ExpandedRefs0,
			ExpandedRefs1: e.ExpandedRefs1,
			ExpandedRefs:  e.ExpandedRefs,
			Ref:           e.Ref,
			AnchorRef:     e.AnchorRef,
			SourceRef:     e.SourceRef,
		}
	}
	return out, nil
}

// FetchIndex retrieves the index metadata for a book title.
func (c *Client) FetchIndex(ctx context.Context, book string) (*driven.IndexInfo, error) {
	endpoint := fmt.Sprintf("%s/v2/index/%s", c.baseURL, url.PathEscape(book))
	body, err := c.get(ctx, endpoint, book)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Schema struct {
			Lengths []int `json:"lengths"`
		} `json:"schema"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: decode index for %q: %v", domain.ErrUpstreamSchema, book, err)
	}
	return &driven.IndexInfo{Lengths: resp.Schema.Lengths}, nil
}

// get performs a throttled GET and maps non-2xx to the upstream error
// taxonomy.
func (c *Client) get(ctx context.Context, endpoint, ref string) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("text api request for %q: %w", ref, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("%w: %q returned %d", domain.ErrUpstreamNotFound, ref, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
