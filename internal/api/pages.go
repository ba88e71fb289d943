package api

import (
	"embed"
	"html/template"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"

	"answer-engine/handler"
	"answer-engine/internal/domain"
	"answer-engine/internal/render"
	"answer-engine/internal/usecase"
)

//go:embed templates/*.html
var templateFS embed.FS

var pages = template.Must(template.ParseFS(templateFS, "templates/*.html"))

const snippetRunes = 160

type sourceCard struct {
	Index   int
	Title   string
	URL     string
	Snippet string
}

type pageData struct {
	Query   string
	Sources []sourceCard
	Answer  template.HTML
	Error   string
}

func (s *Server) index(w http.ResponseWriter, r *http.Request) {
	s.renderPage(w, http.StatusOK, pageData{})
}

// search renders the complete answer without the timed reveal. It backs the
// form when scripts are unavailable.
func (s *Server) search(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	data := pageData{Query: query}
	out, err := s.answers.Answer(r.Context(), usecase.AnswerInput{
		Query:         query,
		CorrelationID: middleware.GetReqID(r.Context()),
	})
	data.Sources = sourceCards(out.Results, out.Selected)
	if err != nil {
		data.Error = errorMessage(err)
		s.renderPage(w, handler.StatusFor(err), data)
		return
	}

	html, err := render.HTML(out.Sections)
	if err != nil {
		s.logger.Error("render answer failed", "err", err)
		data.Error = errorMessage(err)
		s.renderPage(w, http.StatusInternalServerError, data)
		return
	}
	data.Answer = html
	s.renderPage(w, http.StatusOK, data)
}

func (s *Server) renderPage(w http.ResponseWriter, status int, data pageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := pages.ExecuteTemplate(w, "index.html", data); err != nil {
		s.logger.Error("failed to render page", "err", err)
	}
}

// citedSource is a result with the number the answer cites it by. Index is
// 0 for results that were not forwarded to the completion gateway.
type citedSource struct {
	domain.Result
	Index int
}

// citeOrder lists the selected results first, numbered as the answer cites
// them, then the remaining results unnumbered in gateway order.
func citeOrder(results, selected []domain.Result) []citedSource {
	out := make([]citedSource, 0, len(results))
	pending := make(map[string]int, len(selected))
	for i, r := range selected {
		out = append(out, citedSource{Result: r, Index: i + 1})
		pending[sourceKey(r)]++
	}
	for _, r := range results {
		if k := sourceKey(r); pending[k] > 0 {
			pending[k]--
			continue
		}
		out = append(out, citedSource{Result: r})
	}
	return out
}

func sourceKey(r domain.Result) string {
	return r.URL + "\x00" + r.Title + "\x00" + r.Text
}

func sourceCards(results, selected []domain.Result) []sourceCard {
	cited := citeOrder(results, selected)
	cards := make([]sourceCard, 0, len(cited))
	for _, c := range cited {
		cards = append(cards, sourceCard{
			Index:   c.Index,
			Title:   c.DisplayTitle(),
			URL:     c.URL,
			Snippet: snippet(c.Text),
		})
	}
	return cards
}

func snippet(text string) string {
	r := []rune(strings.Join(strings.Fields(text), " "))
	if len(r) <= snippetRunes {
		return string(r)
	}
	return string(r[:snippetRunes]) + "…"
}

func errorMessage(err error) string {
	switch handler.StatusFor(err) {
	case http.StatusBadRequest:
		return "Please enter a shorter, non-empty query."
	case http.StatusTooManyRequests:
		return "The search or summary service is busy. Please try again shortly."
	case http.StatusBadGateway:
		return "The answer could not be generated. Please try again."
	default:
		return "Something went wrong. Please try again."
	}
}
