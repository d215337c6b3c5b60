package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"coselect/dispute"
	"coselect/lead"
	"coselect/payout"
	"coselect/profile"
	"coselect/session"
	"coselect/store"
	"coselect/workflow"
)

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// errorResponse is the standard error envelope.
type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return nil
}

// statusFor maps service errors onto HTTP status codes. Storage failures are
// reported as unavailable rather than internal so clients retry.
func statusFor(err error) int {
	switch {
	case errors.Is(err, workflow.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, workflow.ErrPreconditionFailed), errors.Is(err, payout.ErrUncovered):
		return http.StatusUnprocessableEntity
	case errors.Is(err, workflow.ErrUnauthorized),
		errors.Is(err, dispute.ErrForbidden),
		errors.Is(err, session.ErrInvalidPassphrase),
		errors.Is(err, session.ErrDevToolsDisabled):
		return http.StatusForbidden
	case errors.Is(err, session.ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, lead.ErrNotFound),
		errors.Is(err, payout.ErrNotFound),
		errors.Is(err, payout.ErrTransactionNotFound),
		errors.Is(err, dispute.ErrNotFound),
		errors.Is(err, profile.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, lead.ErrClosed),
		errors.Is(err, lead.ErrNotEditable),
		errors.Is(err, lead.ErrResubmitForbidden),
		errors.Is(err, lead.ErrAlreadyResubmitted),
		errors.Is(err, dispute.ErrResolved):
		return http.StatusConflict
	case errors.Is(err, lead.ErrIncomplete),
		errors.Is(err, lead.ErrReasonRequired),
		errors.Is(err, payout.ErrReasonRequired),
		errors.Is(err, payout.ErrReferenceRequired),
		errors.Is(err, payout.ErrInvalidAmount),
		errors.Is(err, payout.ErrInvalidStatus),
		errors.Is(err, dispute.ErrInvalidInput),
		errors.Is(err, profile.ErrInvalidProfile),
		errors.Is(err, session.ErrInvalidRole),
		errors.Is(err, session.ErrInvalidPreset):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrStorage):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "err", err)
	}
	writeError(w, status, err.Error())
}
