package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"GoEvolveAI/app/canvas"
	"GoEvolveAI/app/iteration"
	"GoEvolveAI/app/logging"
	"GoEvolveAI/app/queue"
	"GoEvolveAI/app/recognizer"
	"GoEvolveAI/app/storage"
)

const maxBodyBytes = 10 << 20

var errBadRequest = errors.New("bad request")

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logging.Log("⚠️ Error encoding response", slog.LevelWarn, "error", err)
	}
}

// decode reads a JSON body into dst and runs its validation tags.
func (s *APIServer) decode(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("%w: malformed JSON body: %v", errBadRequest, err)
	}
	if err := s.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("%w: field %s failed %q validation", errBadRequest, fe.Namespace(), fe.Tag())
		}
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, errBadRequest),
		errors.Is(err, recognizer.ErrInvalidDigit),
		errors.Is(err, recognizer.ErrInvalidImage),
		errors.Is(err, recognizer.ErrInvalidBatch),
		errors.Is(err, canvas.ErrInvalidCoordinates),
		errors.Is(err, canvas.ErrInvalidColor),
		errors.Is(err, iteration.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, recognizer.ErrNotTrained),
		errors.Is(err, iteration.ErrCycleInProgress),
		errors.Is(err, iteration.ErrNotStarted):
		return http.StatusConflict
	case errors.Is(err, queue.ErrClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		logging.Log("❌ Request failed", slog.LevelError, "method", r.Method, "path", r.URL.Path, "error", err)
		msg = "internal server error"
	}
	writeJSON(w, status, errorResponse{Error: msg})
}
