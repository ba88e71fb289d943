package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"

	"answer-engine/internal/domain"
	"answer-engine/internal/render"
	"answer-engine/internal/usecase"
)

const correlationHeader = "X-Correlation-Id"

// AnswerUseCase is the pipeline entry point used by the handler.
type AnswerUseCase interface {
	Answer(ctx context.Context, in usecase.AnswerInput) (usecase.AnswerOutput, error)
}

type answerRequest struct {
	Query string `json:"query"`
}

type answerResponse struct {
	QueryID  string           `json:"queryId"`
	Query    string           `json:"query"`
	Sources  []domain.Result  `json:"sources"`
	Selected []domain.Result  `json:"selected"`
	Answer   string           `json:"answer"`
	Sections []domain.Section `json:"sections"`
	HTML     string           `json:"html"`
}

// errorResponse carries the sources of a query whose completion failed so
// clients can still show them.
type errorResponse struct {
	Error   string          `json:"error"`
	Reason  string          `json:"reason,omitempty"`
	Sources []domain.Result `json:"sources,omitempty"`
}

// Handler serves POST /answer behind API Gateway.
type Handler struct {
	uc     AnswerUseCase
	logger *slog.Logger
}

func NewHandler(uc AnswerUseCase) (*Handler, error) {
	if uc == nil {
		return nil, errors.New("handler: use case must not be nil")
	}
	return &Handler{uc: uc, logger: slog.Default()}, nil
}

func (h *Handler) Handle(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	corrID := correlationID(req.Headers)
	log := h.logger.With("correlation_id", corrID, "path", req.Path)

	if req.HTTPMethod != "" && req.HTTPMethod != http.MethodPost {
		return jsonResponse(http.StatusMethodNotAllowed, corrID, errorResponse{Error: string(usecase.ErrorInvalidInput), Reason: "method_not_allowed"}), nil
	}

	var in answerRequest
	if err := json.Unmarshal([]byte(req.Body), &in); err != nil {
		log.Warn("invalid request body", "err", err)
		return jsonResponse(http.StatusBadRequest, corrID, errorResponse{Error: string(usecase.ErrorInvalidInput), Reason: "invalid_body"}), nil
	}

	out, err := h.uc.Answer(ctx, usecase.AnswerInput{Query: in.Query, CorrelationID: corrID})
	if err != nil {
		status, body := errorToResponse(err)
		body.Sources = out.Results
		log.Error("answer failed", "status", status, "err", err)
		return jsonResponse(status, corrID, body), nil
	}

	html, err := render.HTML(out.Sections)
	if err != nil {
		log.Error("render answer failed", "err", err)
		return jsonResponse(http.StatusInternalServerError, corrID, errorResponse{Error: string(usecase.ErrorInternal), Reason: "render_error", Sources: out.Results}), nil
	}

	return jsonResponse(http.StatusOK, corrID, answerResponse{
		QueryID:  out.QueryID,
		Query:    out.Query,
		Sources:  nonNil(out.Results),
		Selected: nonNil(out.Selected),
		Answer:   out.Answer,
		Sections: out.Sections,
		HTML:     string(html),
	}), nil
}

// StatusFor maps a pipeline error to its HTTP status code.
func StatusFor(err error) int {
	status, _ := errorToResponse(err)
	return status
}

func errorToResponse(err error) (int, errorResponse) {
	var ue *usecase.Error
	if !errors.As(err, &ue) {
		return http.StatusInternalServerError, errorResponse{Error: string(usecase.ErrorInternal)}
	}
	body := errorResponse{Error: string(ue.Code), Reason: ue.Reason}
	switch ue.Code {
	case usecase.ErrorInvalidInput:
		return http.StatusBadRequest, body
	case usecase.ErrorRateLimited:
		return http.StatusTooManyRequests, body
	case usecase.ErrorUpstream:
		return http.StatusBadGateway, body
	default:
		return http.StatusInternalServerError, body
	}
}

func correlationID(headers map[string]string) string {
	for k, v := range headers {
		if strings.EqualFold(k, correlationHeader) && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return uuid.NewString()
}

func jsonResponse(status int, corrID string, body any) events.APIGatewayProxyResponse {
	buf, err := json.Marshal(body)
	if err != nil {
		status = http.StatusInternalServerError
		buf = []byte(`{"error":"INTERNAL_ERROR"}`)
	}
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers: map[string]string{
			"Content-Type":    "application/json",
			correlationHeader: corrID,
		},
		Body: string(buf),
	}
}

func nonNil(rs []domain.Result) []domain.Result {
	if rs == nil {
		return []domain.Result{}
	}
	return rs
}
