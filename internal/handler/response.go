package handler

import (
	"net/http"

	"github.com/goccy/go-json"

	"rivermonitor/internal/apperror"
	"rivermonitor/internal/dto"
	"rivermonitor/internal/logger"
	"rivermonitor/internal/middleware"
)

// ErrorCodeHeader carries the error code on replies without a body.
const ErrorCodeHeader = "X-Error-Code"

// writeJSON encodes v before writing anything, so an encoding failure still
// yields a clean 500.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, v interface{}, log *logger.Logger) {
	data, err := json.Marshal(v)
	if err != nil {
		writeError(w, r, apperror.New(apperror.KindInternal, "handler.writeJSON", err), log)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		log.Warning("Error writing response: %v", err)
	}
}

// writeError maps err to its status. Client errors get an empty body and the
// code in a header; server errors get {"error": "<CODE>: <message>"}. The
// underlying cause is only logged.
func writeError(w http.ResponseWriter, r *http.Request, err error, log *logger.Logger) {
	kind := apperror.KindOf(err)
	status := kind.Status()
	log = log.With("request_id", middleware.GetRequestID(r.Context()))

	w.Header().Set(ErrorCodeHeader, kind.Code())

	if status < http.StatusInternalServerError {
		log.Warning("%s %s rejected: %v", r.Method, r.URL.Path, err)
		w.WriteHeader(status)
		return
	}

	log.Error("%s %s failed: %v", r.Method, r.URL.Path, err)
	data, _ := json.Marshal(dto.ErrorResponse{Error: kind.Code() + ": " + kind.Message()})
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)
}
