package exa

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"answer-engine/internal/domain"
)

const (
	defaultBaseURL    = "https://api.exa.ai"
	defaultTimeout    = 30 * time.Second
	defaultNumResults = 10
	searchTypeNeural  = "neural"
)

// searchRequest is the request shape for the /search endpoint with inline
// page contents.
type searchRequest struct {
	Query         string          `json:"query"`
	Type          string          `json:"type"`
	UseAutoprompt bool            `json:"useAutoprompt"`
	NumResults    int             `json:"numResults"`
	Contents      contentsOptions `json:"contents"`
}

type contentsOptions struct {
	Text bool `json:"text"`
}

// searchResponse is the minimal response shape for /search.
type searchResponse struct {
	RequestID          string         `json:"requestId"`
	AutopromptString   string         `json:"autopromptString"`
	ResolvedSearchType string         `json:"resolvedSearchType"`
	Results            []searchResult `json:"results"`
}

type searchResult struct {
	ID            string   `json:"id"`
	URL           string   `json:"url"`
	Title         *string  `json:"title"`
	Score         *float64 `json:"score"`
	PublishedDate *string  `json:"publishedDate"`
	Author        *string  `json:"author"`
	Text          string   `json:"text"`
}

// TokenProvider supplies the API key. *paramstore.TokenSource satisfies it.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
}

// HTTPStatusError captures non-2xx upstream responses.
type HTTPStatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("exa: unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

func (e *HTTPStatusError) HTTPStatusCode() int {
	return e.StatusCode
}

// Client is the search gateway backed by the Exa neural search API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenProvider
	numResults int
}

type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if b := strings.TrimSpace(baseURL); b != "" {
			c.baseURL = b
		}
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithNumResults overrides how many results are requested per search.
func WithNumResults(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.numResults = n
		}
	}
}

func NewClient(tokens TokenProvider, opts ...Option) (*Client, error) {
	if tokens == nil {
		return nil, errors.New("exa: token provider must not be nil")
	}
	c := &Client{
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
		tokens:     tokens,
		numResults: defaultNumResults,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func searchURL(baseURL string) string {
	base := strings.TrimRight(baseURL, "/")
	if base == "" {
		base = defaultBaseURL
	}
	return base + "/search"
}

// Search runs a neural search for query and returns the results in provider
// order, each carrying its full page text.
func (c *Client) Search(ctx context.Context, query string) ([]domain.Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.New("exa: query must not be empty")
	}

	apiKey, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("exa: resolve api key: %w", err)
	}

	body, err := json.Marshal(searchRequest{
		Query:         query,
		Type:          searchTypeNeural,
		UseAutoprompt: true,
		NumResults:    c.numResults,
		Contents:      contentsOptions{Text: true},
	})
	if err != nil {
		return nil, fmt.Errorf("exa: marshal request: %w", err)
	}

	url := searchURL(c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("exa: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("x-api-key", apiKey)

	httpClient := c.httpClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	res, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("exa: request failed: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		buf, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return nil, fmt.Errorf("exa: request failed: %w", &HTTPStatusError{
			StatusCode: res.StatusCode,
			URL:        url,
			Body:       string(buf),
		})
	}

	var payload searchResponse
	if err := json.NewDecoder(io.LimitReader(res.Body, 8<<20)).Decode(&payload); err != nil {
		return nil, fmt.Errorf("exa: decode response: %w", err)
	}

	results := make([]domain.Result, 0, len(payload.Results))
	for _, r := range payload.Results {
		results = append(results, toDomain(r))
	}
	return results, nil
}

func toDomain(r searchResult) domain.Result {
	out := domain.Result{
		Text:  r.Text,
		Score: r.Score,
		URL:   r.URL,
	}
	if r.Title != nil {
		out.Title = *r.Title
	}
	if r.PublishedDate != nil {
		out.PublishedDate = *r.PublishedDate
	}
	if r.Author != nil {
		out.Author = *r.Author
	}
	return out
}
