package exa

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type staticToken struct {
	token string
	err   error
}

func (s staticToken) Token(_ context.Context) (string, error) { return s.token, s.err }

func newTestClient(t *testing.T, srv *httptest.Server, opts ...Option) *Client {
	t.Helper()
	opts = append([]Option{
		WithBaseURL(srv.URL),
		WithHTTPClient(&http.Client{Timeout: 2 * time.Second}),
	}, opts...)
	c, err := NewClient(staticToken{token: "exa-test"}, opts...)
	require.NoError(t, err)
	return c
}

func TestSearchURL(t *testing.T) {
	require.Equal(t, "https://api.exa.ai/search", searchURL(""))
	require.Equal(t, "https://api.exa.ai/search", searchURL("https://api.exa.ai/"))
	require.Equal(t, "http://localhost:9000/search", searchURL("http://localhost:9000"))
}

func TestNewClient_NilTokens(t *testing.T) {
	_, err := NewClient(nil)
	require.ErrorContains(t, err, "nil")
}

func TestSearch_HappyPath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/search", r.URL.Path)
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "exa-test", r.Header.Get("x-api-key"))

		var req searchRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, searchRequest{
			Query:         "Ada Lovelace",
			Type:          "neural",
			UseAutoprompt: true,
			NumResults:    10,
			Contents:      contentsOptions{Text: true},
		}, req)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"requestId": "req-1",
			"results": [
				{"id":"a","url":"https://en.wikipedia.org/wiki/Ada_Lovelace","title":"Ada Lovelace - Wikipedia","score":0.91,"publishedDate":"2024-01-01","author":"Wikipedia","text":"Augusta Ada King..."},
				{"id":"b","url":"https://example.com/ada","title":null,"text":"No score or title."}
			]
		}`))
	}))
	defer srv.Close()

	results, err := newTestClient(t, srv).Search(context.Background(), "  Ada Lovelace ")
	require.NoError(t, err)
	require.Len(t, results, 2)

	require.Equal(t, "Ada Lovelace - Wikipedia", results[0].Title)
	require.Equal(t, "https://en.wikipedia.org/wiki/Ada_Lovelace", results[0].URL)
	require.NotNil(t, results[0].Score)
	require.InDelta(t, 0.91, *results[0].Score, 1e-9)
	require.Equal(t, "2024-01-01", results[0].PublishedDate)
	require.Equal(t, "Wikipedia", results[0].Author)

	require.Empty(t, results[1].Title)
	require.Nil(t, results[1].Score)
	require.Equal(t, "example.com", results[1].DisplayTitle())
}

func TestSearch_NumResultsOption(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req searchRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, 3, req.NumResults)
		_, _ = w.Write([]byte(`{"results":[]}`))
	}))
	defer srv.Close()

	results, err := newTestClient(t, srv, WithNumResults(3)).Search(context.Background(), "q")
	require.NoError(t, err)
	require.Empty(t, results)
}

func TestSearch_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":"slow down"}`))
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv).Search(context.Background(), "q")
	var statusErr *HTTPStatusError
	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, http.StatusTooManyRequests, statusErr.HTTPStatusCode())
	require.Contains(t, err.Error(), "slow down")
}

func TestSearch_InvalidJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not-json`))
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv).Search(context.Background(), "q")
	require.ErrorContains(t, err, "decode response")
}

func TestSearch_EmptyQuery(t *testing.T) {
	c, err := NewClient(staticToken{token: "exa-test"})
	require.NoError(t, err)
	_, err = c.Search(context.Background(), "   ")
	require.ErrorContains(t, err, "empty")
}

func TestSearch_TokenError(t *testing.T) {
	c, err := NewClient(staticToken{err: errors.New("ssm unavailable")})
	require.NoError(t, err)
	_, err = c.Search(context.Background(), "q")
	require.ErrorContains(t, err, "ssm unavailable")
}

func TestSearch_NetworkError(t *testing.T) {
	c, err := NewClient(staticToken{token: "k"},
		WithBaseURL("http://127.0.0.1:1"),
		WithHTTPClient(&http.Client{Timeout: 100 * time.Millisecond}),
	)
	require.NoError(t, err)
	_, err = c.Search(context.Background(), "q")
	require.ErrorContains(t, err, "request failed")
}
