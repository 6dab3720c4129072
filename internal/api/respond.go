package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	apperrors "github.com/ulauncher/extapi/pkg/errors"
)

const maxJSONBody = 1 << 20

type dataResponse struct {
	Data any `json:"data"`
}

type errorBody struct {
	Status      int    `json:"status"`
	Error       string `json:"error"`
	Description string `json:"description"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

func writeData(w http.ResponseWriter, v any) {
	writeJSON(w, http.StatusOK, dataResponse{Data: v})
}

// writeError renders err in the directory's error envelope. Errors without
// a code are logged and reported as internal errors without details.
func (s *server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := apperrors.GetCode(err)
	var rl *apperrors.RateLimitedError
	if code == "" && errors.As(err, &rl) {
		code = rl.Code()
	}

	desc := apperrors.UserMessage(err)
	if code == "" {
		code = apperrors.CodeInternal
		desc = "Internal server error"
	}
	status := apperrors.HTTPStatus(code)

	logger := s.Logger.With("method", r.Method, "path", r.URL.Path, "request_id", middleware.GetReqID(r.Context()))
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", "code", code, "error", err)
	} else {
		logger.Info("request rejected", "code", code, "error", desc)
	}

	writeJSON(w, status, errorResponse{Error: errorBody{
		Status:      status,
		Error:       apperrors.Name(code),
		Description: desc,
	}})
}

func decodeJSON(r *http.Request, w http.ResponseWriter, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apperrors.New(apperrors.CodeInvalidInput, "Request body cannot be empty")
		}
		return apperrors.Wrap(apperrors.CodeInvalidInput, err, "Invalid JSON: %v", err)
	}
	return nil
}

func badRequest(format string, args ...any) error {
	return apperrors.New(apperrors.CodeInvalidInput, format, args...)
}
