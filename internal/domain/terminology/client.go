package terminology

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/goccy/go-json"
)

// Searcher runs a free-text ICD-10 search.
type Searcher interface {
	SearchICD10(ctx context.Context, terms string) (*LookupResult, error)
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient overrides the HTTP client used for searches.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(cl *Client) { cl.httpClient = c }
}

// WithTimeout sets a per-request timeout. Zero leaves the transport default.
func WithTimeout(d time.Duration) ClientOption {
	return func(cl *Client) { cl.httpClient.Timeout = d }
}

// Client queries a Clinical Tables style search endpoint:
//
//	GET <baseURL>?sf=code,name&terms=<text>
//
// which answers with [total, [[code, name], ...], ...].
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a search client for baseURL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// SearchICD10 issues one search. Every call goes to the network.
func (c *Client) SearchICD10(ctx context.Context, terms string) (*LookupResult, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse search url: %w", err)
	}
	q := u.Query()
	q.Set("sf", "code,name")
	q.Set("terms", terms)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("search returned status %d: %s", resp.StatusCode, snippet)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read search response: %w", err)
	}
	res, err := decodeSearchResponse(body)
	if err != nil {
		return nil, err
	}
	res.Terms = terms
	return res, nil
}

// decodePairs reads [code, name] pairs from element 1. The live service puts
// a bare code list there and the pairs in the display element (index 3), so
// that layout is accepted too.
func decodePairs(parts []json.RawMessage) ([][]string, error) {
	var pairs [][]string
	err := json.Unmarshal(parts[1], &pairs)
	if err == nil {
		return pairs, nil
	}
	var codes []string
	if json.Unmarshal(parts[1], &codes) != nil || len(parts) < 4 {
		return nil, fmt.Errorf("decode search candidates: %w", err)
	}
	if derr := json.Unmarshal(parts[3], &pairs); derr != nil {
		return nil, fmt.Errorf("decode search display strings: %w", derr)
	}
	if len(pairs) != len(codes) {
		return nil, fmt.Errorf("decode search candidates: %d codes but %d display rows", len(codes), len(pairs))
	}
	return pairs, nil
}

// decodeSearchResponse reads the positional array the service returns.
// Elements past the candidate list (extra fields, display strings) are
// ignored.
func decodeSearchResponse(body []byte) (*LookupResult, error) {
	var parts []json.RawMessage
	if err := json.Unmarshal(body, &parts); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	if len(parts) < 2 {
		return nil, fmt.Errorf("decode search response: expected at least 2 elements, got %d", len(parts))
	}

	res := &LookupResult{}
	if err := json.Unmarshal(parts[0], &res.Total); err != nil {
		return nil, fmt.Errorf("decode search total: %w", err)
	}

	pairs, err := decodePairs(parts)
	if err != nil {
		return nil, err
	}
	// Only the top entry has to be well formed; a short runner-up is skipped.
	res.Candidates = make([]ICD10Code, 0, len(pairs))
	for i, p := range pairs {
		if len(p) < 2 {
			if i == 0 {
				return nil, fmt.Errorf("decode search candidates: entry %d has %d fields, want 2", i, len(p))
			}
			continue
		}
		res.Candidates = append(res.Candidates, ICD10Code{Code: p[0], Display: p[1], SystemURI: SystemICD10})
	}
	return res, nil
}
