package api

import (
	"io"
	"net/http"

	"github.com/aws/aws-lambda-go/events"
	"github.com/go-chi/chi/v5/middleware"
)

const maxBodyBytes = 64 << 10

// answerJSON serves the JSON contract by adapting the request to the API
// Gateway event shape the Lambda handler consumes.
func (s *Server) answerJSON(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "INVALID_INPUT", "reason": "invalid_body"})
		return
	}

	headers := make(map[string]string, len(r.Header)+1)
	for k := range r.Header {
		headers[k] = r.Header.Get(k)
	}
	if headers[correlationHeader] == "" {
		if id := middleware.GetReqID(r.Context()); id != "" {
			headers[correlationHeader] = id
		}
	}

	resp, err := s.lambda.Handle(r.Context(), events.APIGatewayProxyRequest{
		HTTPMethod: r.Method,
		Path:       r.URL.Path,
		Headers:    headers,
		Body:       string(body),
	})
	if err != nil {
		s.logger.Error("answer handler failed", "err", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "INTERNAL_ERROR"})
		return
	}
	for k, v := range resp.Headers {
		w.Header().Set(k, v)
	}
	w.WriteHeader(resp.StatusCode)
	_, _ = io.WriteString(w, resp.Body)
}
