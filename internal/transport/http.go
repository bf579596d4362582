package transport

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/corisec/cori/internal/pipeline"
)

// errUnauthenticated reports that no valid bearer credential was found on
// the request.
var errUnauthenticated = errors.New("transport: missing or malformed bearer token")

// HTTPServer is a net/http handler accepting one JSON envelope per POST,
// extracting the caller's credential from the Authorization header, then
// handing off to Pipeline.Handle.
type HTTPServer struct {
	Pipeline *pipeline.Pipeline
	Logger   *zap.Logger
}

// NewHTTPServer constructs an HTTPServer bound to p.
func NewHTTPServer(p *pipeline.Pipeline, logger *zap.Logger) *HTTPServer {
	return &HTTPServer{Pipeline: p, Logger: logger}
}

// ServeHTTP implements http.Handler.
func (s *HTTPServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	token, err := extractBearerToken(r)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, response{Error: &wireError{Kind: "unauthenticated", Message: err.Error()}})
		return
	}

	var req request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, response{Error: &wireError{Kind: "invalid_argument", Message: "malformed request envelope"}})
		return
	}

	result := s.Pipeline.Handle(r.Context(), token, req.ToolName, req.Arguments, req.DryRun)
	if result.Err != nil {
		s.Logger.Warn("tool call denied or failed",
			zap.String("tool_name", req.ToolName),
			zap.String("outcome", string(result.Outcome)),
			zap.String("error_kind", string(result.Err.Kind)),
		)
	}
	writeJSON(w, http.StatusOK, toResponse(result))
}

func extractBearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", errUnauthenticated
	}
	token := header
	token = strings.TrimPrefix(token, "Bearer ")
	token = strings.TrimPrefix(token, "bearer ")
	if token == "" || token == header {
		return "", errUnauthenticated
	}
	return token, nil
}

func writeJSON(w http.ResponseWriter, status int, body response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
