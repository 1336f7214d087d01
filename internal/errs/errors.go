package errs

import "errors"

// Common sentinel errors for cross-layer signaling.
var (
	ErrNotFound = errors.New("not_found")
	ErrInvalid  = errors.New("invalid")
	// ErrUnprocessable is used for semantic validation failures (HTTP 422)
	ErrUnprocessable = errors.New("unprocessable")
)

// Validation errors: client-correctable, never retried automatically.
var (
	// ErrDuplicateCode indicates an account code is already taken.
	ErrDuplicateCode = errors.New("duplicate_account_code")
	// ErrUnbalanced indicates sum(debits) != sum(credits) on a voucher.
	ErrUnbalanced = errors.New("unbalanced_entry")
	// ErrInvalidLine indicates a line missing an account or description,
	// or carrying both or neither of debit/credit.
	ErrInvalidLine = errors.New("invalid_line")
	// ErrPostingNotAllowed indicates a line targets a summary (non-posting) account.
	ErrPostingNotAllowed = errors.New("posting_not_allowed")
	ErrTooFewLines       = errors.New("too_few_lines")
	ErrMixedCurrency     = errors.New("mixed_currency")
)

// Conflict errors: a business rule blocks the operation; the caller resolves.
var (
	// ErrSystemAccount indicates a system account cannot be modified or deleted.
	ErrSystemAccount = errors.New("system_account_protected")
	// ErrAccountInUse indicates an account is referenced by voucher lines.
	ErrAccountInUse = errors.New("account_in_use")
	// ErrHasJournalRefs blocks deleting a party whose linked account has postings.
	ErrHasJournalRefs = errors.New("has_journal_references")
	// ErrAlreadyReversed indicates the voucher has been reversed before.
	ErrAlreadyReversed = errors.New("already_reversed")
	// ErrWrongStatus indicates an illegal voucher status transition.
	ErrWrongStatus = errors.New("wrong_status")
	// ErrImmutable indicates an attempt to change immutable fields.
	ErrImmutable = errors.New("immutable")
)

// ErrConcurrentUpdate surfaces an exhausted optimistic-retry loop on a
// contended balance update.
var ErrConcurrentUpdate = errors.New("concurrent_update_conflict")
