package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"answer-engine/internal/domain"
	"answer-engine/internal/render"
	"answer-engine/internal/usecase"
	"answer-engine/internal/view"
)

const (
	sessionCookie     = "answer_session"
	correlationHeader = "X-Correlation-Id"
)

// streamSource is one source card. Citation is the number the answer cites
// it by, omitted for results that were not summarized.
type streamSource struct {
	Citation     int      `json:"citation,omitempty"`
	URL          string   `json:"url"`
	DisplayTitle string   `json:"displayTitle"`
	Snippet      string   `json:"snippet"`
	Score        *float64 `json:"score,omitempty"`
}

type sourcesEvent struct {
	QueryID  string         `json:"queryId"`
	Query    string         `json:"query"`
	Results  []streamSource `json:"results"`
	Selected int            `json:"selected"`
}

type tokenEvent struct {
	Display string `json:"display"`
}

type answerEvent struct {
	Answer   string           `json:"answer"`
	HTML     string           `json:"html"`
	Sections []domain.Section `json:"sections"`
}

type errorEvent struct {
	Error   string `json:"error"`
	Reason  string `json:"reason,omitempty"`
	Message string `json:"message"`
}

// stream runs a query on the caller's session and reports each view state
// as a server-sent event. A newer stream on the same session ends this one
// with a "superseded" event.
func (s *Server) stream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	sess := s.sessions.Get(sessionID(r))
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    sess.ID(),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	send := func(event string, v any) {
		if err := writeEvent(w, event, v); err != nil {
			s.logger.Warn("write event failed", "event", event, "err", err)
			return
		}
		flusher.Flush()
	}

	corrID := r.Header.Get(correlationHeader)
	if corrID == "" {
		corrID = middleware.GetReqID(r.Context())
	}
	query := strings.TrimSpace(r.URL.Query().Get("q"))

	lastDisplay := ""
	final, err := sess.Submit(r.Context(), query, corrID, func(st view.State) {
		switch st.Phase {
		case view.PhaseSummarizing:
			send("sources", toSourcesEvent(st))
		case view.PhaseRevealing:
			if st.Display != "" && st.Display != lastDisplay {
				lastDisplay = st.Display
				send("token", tokenEvent{Display: strings.TrimPrefix(st.Display, " ")})
			}
		}
	})

	switch {
	case errors.Is(err, view.ErrSuperseded):
		send("superseded", map[string]string{"message": "A newer query replaced this one."})
	case err != nil:
		send("error", toErrorEvent(err))
	default:
		html, rerr := render.HTML(final.Sections)
		if rerr != nil {
			send("error", toErrorEvent(rerr))
			break
		}
		send("answer", answerEvent{Answer: final.Answer, HTML: string(html), Sections: final.Sections})
	}
	send("done", map[string]string{"at": time.Now().UTC().Format(time.RFC3339)})
}

func sessionID(r *http.Request) string {
	c, err := r.Cookie(sessionCookie)
	if err != nil {
		return ""
	}
	return c.Value
}

func writeEvent(w http.ResponseWriter, event string, v any) error {
	buf, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("api: marshal %s event: %w", event, err)
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, buf)
	return err
}

func toSourcesEvent(st view.State) sourcesEvent {
	out := sourcesEvent{QueryID: st.QueryID, Query: st.Query, Selected: len(st.Selected), Results: []streamSource{}}
	for _, r := range citeOrder(st.Results, st.Selected) {
		out.Results = append(out.Results, streamSource{
			Citation:     r.Index,
			URL:          r.URL,
			DisplayTitle: r.DisplayTitle(),
			Snippet:      snippet(r.Text),
			Score:        r.Score,
		})
	}
	return out
}

func toErrorEvent(err error) errorEvent {
	ev := errorEvent{Error: string(usecase.ErrorInternal), Message: errorMessage(err)}
	var ue *usecase.Error
	if errors.As(err, &ue) {
		ev.Error = string(ue.Code)
		ev.Reason = ue.Reason
	}
	return ev
}
