package usecase

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"answer-engine/internal/domain"
	"answer-engine/internal/render"
)

const (
	defaultMaxQuery = 500
	defaultModel    = "gpt-4o"
)

// Searcher is the search gateway.
type Searcher interface {
	Search(ctx context.Context, query string) ([]domain.Result, error)
}

// Completer is the completion gateway.
type Completer interface {
	Complete(ctx context.Context, model string, messages []domain.ChatMessage) (domain.ChatMessage, error)
}

type httpStatusCoder interface {
	HTTPStatusCode() int
}

// AnswerService runs the search → select → prompt → complete → parse pipeline.
type AnswerService struct {
	search      Searcher
	llm         Completer
	model       string
	topK        int
	maxQueryLen int
	logger      *slog.Logger
}

type AnswerInput struct {
	Query         string
	CorrelationID string
}

// SearchOutput is the first half of the pipeline: every result the gateway
// returned plus the subset forwarded to the completion gateway.
type SearchOutput struct {
	QueryID  string
	Query    string
	Results  []domain.Result
	Selected []domain.Result
}

type AnswerOutput struct {
	SearchOutput
	Answer   string
	Sections []domain.Section
}

func NewAnswerService(search Searcher, llm Completer, model string, topK, maxQueryLen int, logger *slog.Logger) (*AnswerService, error) {
	if search == nil {
		return nil, errors.New("usecase: searcher must not be nil")
	}
	if llm == nil {
		return nil, errors.New("usecase: completer must not be nil")
	}
	model = strings.TrimSpace(model)
	if model == "" {
		model = defaultModel
	}
	if topK <= 0 {
		topK = DefaultTopK
	}
	if maxQueryLen <= 0 {
		maxQueryLen = defaultMaxQuery
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AnswerService{
		search:      search,
		llm:         llm,
		model:       model,
		topK:        topK,
		maxQueryLen: maxQueryLen,
		logger:      logger,
	}, nil
}

// Search validates the query, calls the search gateway and selects the
// results that will be summarized.
func (s *AnswerService) Search(ctx context.Context, in AnswerInput) (SearchOutput, error) {
	query := strings.TrimSpace(in.Query)
	if query == "" {
		return SearchOutput{}, newError(ErrorInvalidInput, StageValidate, "empty_query", nil)
	}
	if len([]rune(query)) > s.maxQueryLen {
		return SearchOutput{}, newError(ErrorInvalidInput, StageValidate, "query_too_long", nil)
	}

	out := SearchOutput{QueryID: newUUID(), Query: query}
	log := s.logger.With("query_id", out.QueryID, "correlation_id", in.CorrelationID)

	results, err := s.search.Search(ctx, query)
	if err != nil {
		log.Error("search gateway failed", "err", err)
		return out, gatewayError(StageSearch, "search", err)
	}
	out.Results = results
	out.Selected = SelectTop(results, s.topK)
	log.Info("search complete", "results", len(results), "selected", len(out.Selected))
	return out, nil
}

// Summarize asks the completion gateway to answer query from selected. It is
// called even when selected is empty.
func (s *AnswerService) Summarize(ctx context.Context, found SearchOutput, correlationID string) (string, error) {
	log := s.logger.With("query_id", found.QueryID, "correlation_id", correlationID)

	msg, err := s.llm.Complete(ctx, s.model, buildPromptMessages(found.Query, found.Selected))
	if err != nil {
		log.Error("completion gateway failed", "err", err)
		return "", gatewayError(StageComplete, "completion", err)
	}
	answer := strings.TrimSpace(msg.Content)
	if answer == "" {
		log.Error("completion gateway returned empty content")
		return "", newError(ErrorUpstream, StageComplete, "completion_empty", nil)
	}
	log.Info("completion complete", "model", s.model, "chars", len(answer))
	return answer, nil
}

// Answer runs the whole pipeline. When search succeeds but completion fails
// the returned output still carries the search results alongside the error.
func (s *AnswerService) Answer(ctx context.Context, in AnswerInput) (AnswerOutput, error) {
	found, err := s.Search(ctx, in)
	if err != nil {
		return AnswerOutput{SearchOutput: found}, err
	}
	out := AnswerOutput{SearchOutput: found}

	answer, err := s.Summarize(ctx, found, in.CorrelationID)
	if err != nil {
		return out, err
	}
	out.Answer = answer
	out.Sections = render.Parse(answer, found.Selected)
	return out, nil
}

func gatewayError(stage Stage, gateway string, err error) *Error {
	if errors.Is(err, context.Canceled) {
		return newError(ErrorInternal, stage, gateway+"_canceled", err)
	}
	if status, ok := upstreamStatusCode(err); ok && status == http.StatusTooManyRequests {
		return newError(ErrorRateLimited, stage, gateway+"_rate_limited", err)
	}
	return newError(ErrorUpstream, stage, gateway+"_error", err)
}

func upstreamStatusCode(err error) (int, bool) {
	var statusErr httpStatusCoder
	if !errors.As(err, &statusErr) {
		return 0, false
	}
	return statusErr.HTTPStatusCode(), true
}

var newUUID = func() string {
	return uuid.NewString()
}
