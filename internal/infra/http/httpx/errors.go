// Package httpx maps the closed domain.Error taxonomy onto HTTP responses
// via a table-driven status mapping, so every handler reports errors the
// same way instead of each picking its own status code.
package httpx

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/obedmokua0/sample-digital-wallet-platform/internal/domain"
)

var statusByKind = map[domain.ErrorKind]int{
	domain.KindValidation:          http.StatusBadRequest,
	domain.KindUnauthorized:        http.StatusUnauthorized,
	domain.KindForbidden:           http.StatusForbidden,
	domain.KindNotFound:            http.StatusNotFound,
	domain.KindConflict:            http.StatusConflict,
	domain.KindInsufficientFunds:   http.StatusUnprocessableEntity,
	domain.KindCurrencyMismatch:    http.StatusUnprocessableEntity,
	domain.KindAmountExceedsLimit:  http.StatusUnprocessableEntity,
	domain.KindBalanceExceedsLimit: http.StatusUnprocessableEntity,
	domain.KindInvalidTransfer:     http.StatusUnprocessableEntity,
	domain.KindInvalidState:        http.StatusConflict,
	domain.KindRateLimitExceeded:   http.StatusTooManyRequests,
	domain.KindInternal:            http.StatusInternalServerError,
}

type errorBody struct {
	Error struct {
		Kind    domain.ErrorKind `json:"kind"`
		Message string           `json:"message"`
		Details map[string]any   `json:"details,omitempty"`
	} `json:"error"`
}

// WriteError translates err into an HTTP response carrying the error's
// taxonomy kind, message, and structured details. Errors outside the
// taxonomy are logged and reported as internal without leaking their
// message to the caller.
func WriteError(w http.ResponseWriter, err error) {
	var de *domain.Error
	if !errors.As(err, &de) {
		log.Error().Err(err).Msg("unclassified error reached the http boundary")
		de = domain.NewError(domain.KindInternal, "an internal error occurred")
	}

	status, ok := statusByKind[de.Kind]
	if !ok {
		status = http.StatusInternalServerError
	}
	if de.Kind == domain.KindInternal {
		log.Error().Err(de).Msg("internal error")
	}

	body := errorBody{}
	body.Error.Kind = de.Kind
	body.Error.Message = de.Message
	body.Error.Details = de.Details

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// WriteJSON writes v as a JSON body with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
