package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"answer-engine/handler"
	"answer-engine/internal/usecase"
	"answer-engine/internal/view"
)

// Answerer runs the whole pipeline for the non-streaming page.
type Answerer interface {
	Answer(ctx context.Context, in usecase.AnswerInput) (usecase.AnswerOutput, error)
}

type Server struct {
	router   *chi.Mux
	port     int
	answers  Answerer
	lambda   *handler.Handler
	sessions *view.Registry
	logger   *slog.Logger
	httpSrv  *http.Server
}

func NewServer(port int, answers Answerer, lambda *handler.Handler, sessions *view.Registry, logger *slog.Logger) (*Server, error) {
	if answers == nil {
		return nil, errors.New("api: answerer must not be nil")
	}
	if lambda == nil {
		return nil, errors.New("api: handler must not be nil")
	}
	if sessions == nil {
		return nil, errors.New("api: session registry must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.RequestLogger(slogFormatter{logger: logger}))
	router.Use(middleware.Recoverer)

	s := &Server{
		router:   router,
		port:     port,
		answers:  answers,
		lambda:   lambda,
		sessions: sessions,
		logger:   logger,
	}

	router.Get("/health", s.health)
	router.Get("/", s.index)
	router.Get("/search", s.search)
	router.Route("/api", func(r chi.Router) {
		r.Post("/answer", s.answerJSON)
		r.Get("/stream", s.stream)
	})

	return s, nil
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.port)
	s.httpSrv = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("API server starting", "addr", addr)
	if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
