package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/AdamBeresnev/bracket-engine/internal/service"
	"go.uber.org/zap"
)

type errorResponse struct {
	Error string `json:"error"`
}

func WriteJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// WriteError maps service errors to a status code. Storage failures are
// reported generically; the cause only goes to the log.
func WriteError(w http.ResponseWriter, log *zap.Logger, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		NotFound(w, log, err.Error(), err)
	case errors.Is(err, service.ErrValidation):
		BadRequest(w, log, err.Error(), err)
	default:
		InternalServerError(w, log, "request failed", err)
	}
}

func InternalServerError(w http.ResponseWriter, log *zap.Logger, msg string, err error) {
	log.Error(msg, zap.Error(err))
	WriteJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal server error"})
}

func BadRequest(w http.ResponseWriter, log *zap.Logger, msg string, err error) {
	if err != nil {
		log.Warn("bad request", zap.String("message", msg), zap.Error(err))
	} else {
		log.Warn("bad request", zap.String("message", msg))
	}
	WriteJSON(w, http.StatusBadRequest, errorResponse{Error: msg})
}

func NotFound(w http.ResponseWriter, log *zap.Logger, msg string, err error) {
	if err != nil {
		log.Warn("not found", zap.String("message", msg), zap.Error(err))
	} else {
		log.Warn("not found", zap.String("message", msg))
	}
	WriteJSON(w, http.StatusNotFound, errorResponse{Error: msg})
}
