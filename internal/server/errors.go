package server

import (
	"encoding/json"
	"net/http"

	"github.com/goevery/sitepush/internal/ierr"
	"go.uber.org/zap"
)

type errorResponse struct {
	Error ierr.Error `json:"error"`
}

func writeError(logger *zap.Logger, w http.ResponseWriter, err error) {
	handlerErr := ierr.From(err)
	if handlerErr.Code == ierr.ErrorCodeInternal {
		logger.Error("error in http handler", zap.Error(err))
	}

	writeJSON(logger, w, handlerErr.HTTPStatus(), errorResponse{Error: handlerErr})
}

func writeJSON(logger *zap.Logger, w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Del("Cache-Control")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Warn("failed to encode response", zap.Error(err))
	}
}
