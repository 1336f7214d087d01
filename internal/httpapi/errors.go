package httpapi

import (
	"errors"
	"net/http"

	"github.com/ledgerhouse/ledgerhouse/internal/errs"
)

// errorResponse is the standard error payload for the API.
type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func writeErr(w http.ResponseWriter, status int, msg, code string) {
	toJSON(w, status, errorResponse{Error: msg, Code: code})
}

func badRequest(w http.ResponseWriter, msg string) { writeErr(w, http.StatusBadRequest, msg, "") }
func notFound(w http.ResponseWriter)               { writeErr(w, http.StatusNotFound, "not_found", "not_found") }
func conflict(w http.ResponseWriter, msg, code string) {
	writeErr(w, http.StatusConflict, msg, code)
}
func unprocessable(w http.ResponseWriter, msg, code string) {
	writeErr(w, http.StatusUnprocessableEntity, msg, code)
}

// writeDomainErr maps sentinel errors to HTTP statuses and codes.
// Validation failures are 422, business-rule conflicts are 409.
func writeDomainErr(w http.ResponseWriter, err error) {
	msg := err.Error()
	switch {
	case errors.Is(err, errs.ErrNotFound):
		notFound(w)
	case errors.Is(err, errs.ErrTooFewLines):
		unprocessable(w, msg, "too_few_lines")
	case errors.Is(err, errs.ErrUnbalanced):
		unprocessable(w, msg, "unbalanced_entry")
	case errors.Is(err, errs.ErrInvalidLine):
		unprocessable(w, msg, "invalid_line")
	case errors.Is(err, errs.ErrMixedCurrency):
		unprocessable(w, msg, "mixed_currency")
	case errors.Is(err, errs.ErrPostingNotAllowed):
		unprocessable(w, msg, "posting_not_allowed")
	case errors.Is(err, errs.ErrDuplicateCode):
		conflict(w, msg, "duplicate_code")
	case errors.Is(err, errs.ErrSystemAccount):
		conflict(w, msg, "system_account_protected")
	case errors.Is(err, errs.ErrAccountInUse):
		conflict(w, msg, "account_in_use")
	case errors.Is(err, errs.ErrHasJournalRefs):
		conflict(w, msg, "has_journal_references")
	case errors.Is(err, errs.ErrAlreadyReversed):
		conflict(w, msg, "already_reversed")
	case errors.Is(err, errs.ErrWrongStatus):
		conflict(w, msg, "wrong_status")
	case errors.Is(err, errs.ErrImmutable):
		conflict(w, msg, "immutable")
	case errors.Is(err, errs.ErrConcurrentUpdate):
		conflict(w, msg, "concurrent_update_conflict")
	case errors.Is(err, errs.ErrInvalid), errors.Is(err, errs.ErrUnprocessable):
		badRequest(w, msg)
	default:
		writeErr(w, http.StatusInternalServerError, "internal_error", "internal_error")
	}
}
