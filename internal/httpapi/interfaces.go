package httpapi

import (
	"context"

	"github.com/google/uuid"

	"github.com/ledgerhouse/ledgerhouse/internal/ledger"
	"github.com/ledgerhouse/ledgerhouse/internal/service/chart"
	"github.com/ledgerhouse/ledgerhouse/internal/service/journal"
	"github.com/ledgerhouse/ledgerhouse/internal/service/linker"
	"github.com/ledgerhouse/ledgerhouse/internal/service/reports"
)

// IdempotencyStore abstracts idempotency key operations for vouchers.
type IdempotencyStore interface {
	// GetVoucherByIdempotencyKey resolves a previously created voucher.
	GetVoucherByIdempotencyKey(ctx context.Context, key string) (ledger.Voucher, bool, error)
	// SaveIdempotencyKey stores a key mapping for a created voucher.
	SaveIdempotencyKey(ctx context.Context, key string, voucherID uuid.UUID) error
}

// ReadyChecker is optionally implemented by stores to indicate readiness.
type ReadyChecker interface {
	Ready(ctx context.Context) error
}

// Store is the union of storage operations the API depends on.
// Both the in-memory and postgres stores satisfy it.
type Store interface {
	chart.Repo
	chart.Writer
	journal.Repo
	journal.Writer
	linker.Repo
	linker.Writer
	reports.Repo
	IdempotencyStore
}
