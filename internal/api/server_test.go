package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"

	"answer-engine/handler"
	"answer-engine/internal/domain"
	"answer-engine/internal/reveal"
	"answer-engine/internal/usecase"
	"answer-engine/internal/view"
)

type fakeSearch struct {
	results []domain.Result
	err     error
}

func (f *fakeSearch) Search(_ context.Context, _ string) ([]domain.Result, error) {
	return f.results, f.err
}

type fakeLLM struct {
	reply string
	err   error
	calls int
}

func (f *fakeLLM) Complete(_ context.Context, _ string, _ []domain.ChatMessage) (domain.ChatMessage, error) {
	f.calls++
	return domain.ChatMessage{Role: domain.RoleAssistant, Content: f.reply}, f.err
}

func adaResults() []domain.Result {
	hi, lo := 0.9, 0.4
	return []domain.Result{
		{URL: "https://example.com/low", Title: "Low", Text: "Less relevant.", Score: &lo},
		{URL: "https://en.wikipedia.org/wiki/Ada_Lovelace", Title: "Ada Lovelace", Text: "Augusta Ada King, Countess of Lovelace.", Score: &hi},
	}
}

func newTestServer(t *testing.T, search usecase.Searcher, llm usecase.Completer) *Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc, err := usecase.NewAnswerService(search, llm, "gpt-4o", 5, 500, logger)
	require.NoError(t, err)
	h, err := handler.NewHandler(svc)
	require.NoError(t, err)
	reg := view.NewRegistry(svc, reveal.New(0), 0, logger)
	srv, err := NewServer(8080, svc, h, reg, logger)
	require.NoError(t, err)
	return srv
}

func serve(srv *Server, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

type sse struct {
	event string
	data  string
}

func parseSSE(t *testing.T, body string) []sse {
	t.Helper()
	var out []sse
	var cur sse
	sc := bufio.NewScanner(strings.NewReader(body))
	sc.Buffer(make([]byte, 1<<20), 1<<20)
	for sc.Scan() {
		line := sc.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			cur.event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			cur.data = strings.TrimPrefix(line, "data: ")
		case line == "":
			if cur.event != "" {
				out = append(out, cur)
			}
			cur = sse{}
		}
	}
	require.NoError(t, sc.Err())
	return out
}

func eventNames(events []sse) []string {
	names := make([]string, 0, len(events))
	for _, e := range events {
		names = append(names, e.event)
	}
	return names
}

func TestNewServer_ValidatesDependencies(t *testing.T) {
	_, err := NewServer(8080, nil, nil, nil, nil)
	require.Error(t, err)
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(t, &fakeSearch{}, &fakeLLM{})
	w := serve(srv, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	require.Equal(t, "ok", body["status"])
}

func TestNotFoundEndpoint(t *testing.T) {
	srv := newTestServer(t, &fakeSearch{}, &fakeLLM{})
	w := serve(srv, httptest.NewRequest(http.MethodGet, "/nonexistent", nil))
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestIndexPage(t *testing.T) {
	srv := newTestServer(t, &fakeSearch{}, &fakeLLM{})
	w := serve(srv, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Header().Get("Content-Type"), "text/html")
	require.Contains(t, w.Body.String(), `placeholder="Enter your search query"`)
}

func TestSearchPage_RendersSourcesAndAnswer(t *testing.T) {
	srv := newTestServer(t, &fakeSearch{results: adaResults()}, &fakeLLM{reply: "## About\nShe was **first** [1]"})
	w := serve(srv, httptest.NewRequest(http.MethodGet, "/search?q=Ada+Lovelace", nil))

	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	require.Contains(t, body, `value="Ada Lovelace"`)
	require.Contains(t, body, "[1] Ada Lovelace")
	require.Contains(t, body, "[2] Low")
	require.Contains(t, body, "<h2>About</h2>")
	require.Contains(t, body, "<strong>first</strong>")
	// [1] in the answer refers to the highest scoring source.
	require.Contains(t, body, `<a href="https://en.wikipedia.org/wiki/Ada_Lovelace" title="Ada Lovelace" target="_blank" rel="noopener noreferrer">[1]</a>`)

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	require.NoError(t, err)
	cards := doc.Find("#sources a.card")
	require.Equal(t, 2, cards.Length())
	cardHref, _ := cards.Eq(0).Attr("href")
	require.True(t, strings.HasPrefix(cards.Eq(0).Find("h3").Text(), "[1] "))
	citeHref, _ := doc.Find("#answer sup.citation a").First().Attr("href")
	require.Equal(t, citeHref, cardHref)
	require.Equal(t, 1, doc.Find("#answer section.answer-section").Length())
	require.Empty(t, strings.TrimSpace(doc.Find("#status").Text()))
}

func TestSearchPage_EmptyQueryRedirects(t *testing.T) {
	srv := newTestServer(t, &fakeSearch{}, &fakeLLM{})
	w := serve(srv, httptest.NewRequest(http.MethodGet, "/search?q=+", nil))
	require.Equal(t, http.StatusSeeOther, w.Code)
	require.Equal(t, "/", w.Header().Get("Location"))
}

func TestSearchPage_CompletionFailureShowsSources(t *testing.T) {
	srv := newTestServer(t, &fakeSearch{results: adaResults()}, &fakeLLM{err: errors.New("openai down")})
	w := serve(srv, httptest.NewRequest(http.MethodGet, "/search?q=Ada", nil))

	require.Equal(t, http.StatusBadGateway, w.Code)
	body := w.Body.String()
	require.Contains(t, body, "[1] Ada Lovelace")
	require.Contains(t, body, "The answer could not be generated")
}

func TestAnswerJSON_DelegatesToHandler(t *testing.T) {
	srv := newTestServer(t, &fakeSearch{results: adaResults()}, &fakeLLM{reply: "She was...[1]"})
	req := httptest.NewRequest(http.MethodPost, "/api/answer", strings.NewReader(`{"query":"Ada Lovelace"}`))
	req.Header.Set("X-Correlation-Id", "corr-9")
	w := serve(srv, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "corr-9", w.Header().Get("X-Correlation-Id"))
	require.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var body struct {
		Sources  []domain.Result `json:"sources"`
		Selected []domain.Result `json:"selected"`
		Answer   string          `json:"answer"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	require.Len(t, body.Sources, 2)
	require.Equal(t, "Ada Lovelace", body.Selected[0].Title)
	require.Equal(t, "She was...[1]", body.Answer)
}

func TestAnswerJSON_InvalidQuery(t *testing.T) {
	srv := newTestServer(t, &fakeSearch{}, &fakeLLM{})
	w := serve(srv, httptest.NewRequest(http.MethodPost, "/api/answer", strings.NewReader(`{"query":"  "}`)))
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.NotEmpty(t, w.Header().Get("X-Correlation-Id"))
}

func TestStream_EmitsSourcesTokensAnswer(t *testing.T) {
	srv := newTestServer(t, &fakeSearch{results: adaResults()}, &fakeLLM{reply: "## About\nShe was first [1]"})
	w := serve(srv, httptest.NewRequest(http.MethodGet, "/api/stream?q=Ada", nil))

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
	require.Contains(t, w.Header().Get("Set-Cookie"), sessionCookie+"=")

	events := parseSSE(t, w.Body.String())
	require.Equal(t, []string{"sources", "token", "token", "token", "token", "token", "token", "answer", "done"}, eventNames(events))

	var sources sourcesEvent
	require.NoError(t, json.Unmarshal([]byte(events[0].data), &sources))
	require.Len(t, sources.Results, 2)
	require.Equal(t, 2, sources.Selected)
	require.Equal(t, 1, sources.Results[0].Citation)
	require.Equal(t, "https://en.wikipedia.org/wiki/Ada_Lovelace", sources.Results[0].URL)
	require.Equal(t, 2, sources.Results[1].Citation)

	var tok tokenEvent
	require.NoError(t, json.Unmarshal([]byte(events[6].data), &tok))
	require.Equal(t, "## About She was first [1]", tok.Display)

	var ans answerEvent
	require.NoError(t, json.Unmarshal([]byte(events[7].data), &ans))
	require.Equal(t, "About", ans.Sections[0].Title)
	require.Contains(t, ans.HTML, "https://en.wikipedia.org/wiki/Ada_Lovelace")
}

func TestStream_SearchFailure(t *testing.T) {
	llm := &fakeLLM{reply: "unused"}
	srv := newTestServer(t, &fakeSearch{err: fmt.Errorf("exa down")}, llm)
	w := serve(srv, httptest.NewRequest(http.MethodGet, "/api/stream?q=Ada", nil))

	events := parseSSE(t, w.Body.String())
	require.Equal(t, []string{"error", "done"}, eventNames(events))

	var ev errorEvent
	require.NoError(t, json.Unmarshal([]byte(events[0].data), &ev))
	require.Equal(t, string(usecase.ErrorUpstream), ev.Error)
	require.Equal(t, "search_error", ev.Reason)
	require.Zero(t, llm.calls)
}

func TestStream_CompletionFailureKeepsSources(t *testing.T) {
	srv := newTestServer(t, &fakeSearch{results: adaResults()}, &fakeLLM{err: errors.New("openai down")})
	w := serve(srv, httptest.NewRequest(http.MethodGet, "/api/stream?q=Ada", nil))

	events := parseSSE(t, w.Body.String())
	require.Equal(t, []string{"sources", "error", "done"}, eventNames(events))
}

func TestStream_ReusesSessionCookie(t *testing.T) {
	srv := newTestServer(t, &fakeSearch{}, &fakeLLM{reply: "ok"})
	first := serve(srv, httptest.NewRequest(http.MethodGet, "/api/stream?q=a", nil))
	cookies := first.Result().Cookies()
	require.Len(t, cookies, 1)

	req := httptest.NewRequest(http.MethodGet, "/api/stream?q=b", nil)
	req.AddCookie(cookies[0])
	second := serve(srv, req)
	require.Equal(t, cookies[0].Value, second.Result().Cookies()[0].Value)
	require.Equal(t, 1, srv.sessions.Len())
}

func TestCiteOrder_SelectedFirstThenUncited(t *testing.T) {
	a, b, c := 0.2, 0.9, 0.5
	results := []domain.Result{
		{URL: "https://a.example", Score: &a},
		{URL: "https://b.example", Score: &b},
		{URL: "https://c.example", Score: &c},
		{URL: "https://b.example", Score: &b},
	}
	selected := usecase.SelectTop(results, 2)

	got := citeOrder(results, selected)
	require.Len(t, got, 4)
	require.Equal(t, []int{1, 2, 0, 0}, []int{got[0].Index, got[1].Index, got[2].Index, got[3].Index})
	require.Equal(t, "https://b.example", got[0].URL)
	require.Equal(t, "https://b.example", got[1].URL)
	require.Equal(t, "https://a.example", got[2].URL)
	require.Equal(t, "https://c.example", got[3].URL)
}

func TestSearchPage_UncitedSourcesAreUnnumbered(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc, err := usecase.NewAnswerService(&fakeSearch{results: adaResults()}, &fakeLLM{reply: "Only one [1]"}, "gpt-4o", 1, 500, logger)
	require.NoError(t, err)
	h, err := handler.NewHandler(svc)
	require.NoError(t, err)
	srv, err := NewServer(8080, svc, h, view.NewRegistry(svc, reveal.New(0), 0, logger), logger)
	require.NoError(t, err)

	w := serve(srv, httptest.NewRequest(http.MethodGet, "/search?q=Ada", nil))
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(w.Body.String()))
	require.NoError(t, err)
	titles := doc.Find("#sources a.card h3").Map(func(_ int, s *goquery.Selection) string { return s.Text() })
	require.Equal(t, []string{"[1] Ada Lovelace", "Low"}, titles)
}
