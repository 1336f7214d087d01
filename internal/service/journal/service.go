// Package journal implements the voucher ledger: balance validation,
// draft creation with sequential numbering, atomic posting, and reversal
// by mirrored offsetting vouchers.
package journal

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ledgerhouse/ledgerhouse/internal/errs"
	"github.com/ledgerhouse/ledgerhouse/internal/ledger"
)

// postRetries bounds transparent retries on transient balance-update conflicts.
const postRetries = 3

// Filter narrows voucher listings.
type Filter struct {
	Type      *ledger.VoucherType
	Status    *ledger.VoucherStatus
	AccountID uuid.UUID
	From, To  *time.Time
}

// Repo defines read operations needed by the service.
type Repo interface {
	GetVoucher(ctx context.Context, voucherID uuid.UUID) (ledger.Voucher, error)
	ListVouchers(ctx context.Context, f Filter) ([]ledger.Voucher, error)
	AccountsByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]ledger.Account, error)
}

// BalanceDelta is one account's net posting effect in minor units.
type BalanceDelta struct {
	AccountID  uuid.UUID
	DeltaMinor int64
}

// Writer defines write operations needed by the service.
type Writer interface {
	CreateVoucher(ctx context.Context, v ledger.Voucher) (ledger.Voucher, error)
	// NextVoucherNumber returns the next counter value for (type, fiscalYear).
	// Implementations must be duplicate-safe under concurrency.
	NextVoucherNumber(ctx context.Context, t ledger.VoucherType, fiscalYear int) (int, error)
	// ApplyPosting applies every delta and transitions the voucher
	// draft->posted in one atomic step; no partial postings may remain.
	ApplyPosting(ctx context.Context, voucherID uuid.UUID, at time.Time, deltas []BalanceDelta) (ledger.Voucher, error)
	// ReverseVoucher stores the already-posted offsetting voucher, applies
	// its deltas, and transitions the original posted->reversed, all in one
	// atomic step. A concurrent reversal of the same original must lose the
	// transition and leave no balance effect behind.
	ReverseVoucher(ctx context.Context, originalID uuid.UUID, reversal ledger.Voucher, deltas []BalanceDelta) (ledger.Voucher, error)
	CancelVoucher(ctx context.Context, voucherID uuid.UUID) (ledger.Voucher, error)
}

// BalanceCheck is the result of the pure balance validation.
type BalanceCheck struct {
	TotalDebitMinor  int64
	TotalCreditMinor int64
	DifferenceMinor  int64
	Balanced         bool
}

// Service exposes the voucher ledger.
type Service interface {
	ValidateBalance(lines []ledger.VoucherLine) BalanceCheck
	ValidateVoucher(ctx context.Context, v ledger.Voucher) error
	Create(ctx context.Context, v ledger.Voucher) (ledger.Voucher, error)
	Get(ctx context.Context, voucherID uuid.UUID) (ledger.Voucher, error)
	List(ctx context.Context, f Filter) ([]ledger.Voucher, error)
	Post(ctx context.Context, voucherID uuid.UUID) (ledger.Voucher, error)
	Reverse(ctx context.Context, voucherID uuid.UUID, date time.Time, by string) (ledger.Voucher, error)
	Cancel(ctx context.Context, voucherID uuid.UUID) (ledger.Voucher, error)
}

type service struct {
	repo   Repo
	writer Writer
}

// New constructs the voucher ledger service over a store.
func New(repo Repo, writer Writer) Service { return &service{repo: repo, writer: writer} }

// ValidateBalance sums debit and credit lines. Amounts are integral minor
// units, so "balanced within 0.01" is exact equality of the sums.
func (s *service) ValidateBalance(lines []ledger.VoucherLine) BalanceCheck {
	var c BalanceCheck
	for _, ln := range lines {
		units, _ := ln.Amount.MinorUnits()
		switch ln.Side {
		case ledger.SideDebit:
			c.TotalDebitMinor += units
		case ledger.SideCredit:
			c.TotalCreditMinor += units
		}
	}
	c.DifferenceMinor = c.TotalDebitMinor - c.TotalCreditMinor
	if c.DifferenceMinor < 0 {
		c.DifferenceMinor = -c.DifferenceMinor
	}
	c.Balanced = c.DifferenceMinor == 0
	return c
}

// ValidateVoucher checks lines, balance and referenced accounts.
func (s *service) ValidateVoucher(ctx context.Context, v ledger.Voucher) error {
	if !v.Type.Valid() {
		return fmt.Errorf("%w: unknown voucher type %q", errs.ErrInvalid, v.Type)
	}
	if v.Date.IsZero() {
		return fmt.Errorf("%w: date is required", errs.ErrInvalid)
	}
	if v.Currency == "" {
		return fmt.Errorf("%w: currency is required", errs.ErrInvalid)
	}
	if len(v.Lines) < 2 {
		return errs.ErrTooFewLines
	}
	ids := make([]uuid.UUID, 0, len(v.Lines))
	for i, ln := range v.Lines {
		if ln.AccountID == uuid.Nil {
			return lineErr(i, "account_id required")
		}
		if strings.TrimSpace(ln.Description) == "" {
			return lineErr(i, "description required")
		}
		if !ln.Side.Valid() {
			return lineErr(i, "side must be debit or credit")
		}
		units, _ := ln.Amount.MinorUnits()
		if units <= 0 {
			return lineErr(i, "amount must be > 0")
		}
		if ln.Amount.Curr().Code() != v.Currency {
			return fmt.Errorf("%w: line[%d]", errs.ErrMixedCurrency, i)
		}
		ids = append(ids, ln.AccountID)
	}
	if check := s.ValidateBalance(v.Lines); !check.Balanced {
		return fmt.Errorf("%w: debits %d != credits %d (minor units)",
			errs.ErrUnbalanced, check.TotalDebitMinor, check.TotalCreditMinor)
	}
	accMap, err := s.repo.AccountsByIDs(ctx, ids)
	if err != nil {
		return err
	}
	for i, ln := range v.Lines {
		acc, ok := accMap[ln.AccountID]
		if !ok {
			return lineErr(i, "account not found")
		}
		if !acc.Active {
			return lineErr(i, "account is inactive")
		}
		if !acc.AllowPosting {
			return fmt.Errorf("%w: line[%d] account %s", errs.ErrPostingNotAllowed, i, acc.Code)
		}
		if acc.Currency != v.Currency {
			return fmt.Errorf("%w: line[%d] account %s", errs.ErrMixedCurrency, i, acc.Code)
		}
	}
	return nil
}

// prepare validates the voucher and stamps identity, fiscal fields and a
// sequential number scoped to (type, fiscal year). Nothing is persisted.
func (s *service) prepare(ctx context.Context, v ledger.Voucher) (ledger.Voucher, error) {
	if err := s.ValidateVoucher(ctx, v); err != nil {
		return ledger.Voucher{}, err
	}
	v.ID = uuid.New()
	v.FiscalYear, v.FiscalPeriod = ledger.FiscalOf(v.Date)
	v.CreatedAt = time.Now().UTC()
	seq, err := s.writer.NextVoucherNumber(ctx, v.Type, v.FiscalYear)
	if err != nil {
		return ledger.Voucher{}, err
	}
	v.Number = ledger.FormatVoucherNumber(v.Type, v.FiscalYear, seq)
	lines := make([]ledger.VoucherLine, len(v.Lines))
	for i, ln := range v.Lines {
		ln.ID = uuid.New()
		ln.VoucherID = v.ID
		lines[i] = ln
	}
	v.Lines = lines
	return v, nil
}

// Create validates the voucher, assigns a sequential number scoped to
// (type, fiscal year) and stores it as a draft.
func (s *service) Create(ctx context.Context, v ledger.Voucher) (ledger.Voucher, error) {
	v, err := s.prepare(ctx, v)
	if err != nil {
		return ledger.Voucher{}, err
	}
	v.Status = ledger.VoucherStatusDraft
	v.PostedAt = nil
	return s.writer.CreateVoucher(ctx, v)
}

func (s *service) Get(ctx context.Context, voucherID uuid.UUID) (ledger.Voucher, error) {
	if voucherID == uuid.Nil {
		return ledger.Voucher{}, errs.ErrInvalid
	}
	return s.repo.GetVoucher(ctx, voucherID)
}

func (s *service) List(ctx context.Context, f Filter) ([]ledger.Voucher, error) {
	return s.repo.ListVouchers(ctx, f)
}

// Post re-validates the draft and applies every line's effect to its
// account balance in one atomic step, transitioning draft->posted.
func (s *service) Post(ctx context.Context, voucherID uuid.UUID) (ledger.Voucher, error) {
	if voucherID == uuid.Nil {
		return ledger.Voucher{}, errs.ErrInvalid
	}
	v, err := s.repo.GetVoucher(ctx, voucherID)
	if err != nil {
		return ledger.Voucher{}, err
	}
	if v.Status != ledger.VoucherStatusDraft {
		return ledger.Voucher{}, fmt.Errorf("%w: cannot post %s voucher", errs.ErrWrongStatus, v.Status)
	}
	// Balance must still hold at posting time; this gate is the sole
	// enforcement point for the ledger invariant.
	if err := s.ValidateVoucher(ctx, v); err != nil {
		return ledger.Voucher{}, err
	}
	deltas, err := s.deltasFor(ctx, v)
	if err != nil {
		return ledger.Voucher{}, err
	}
	at := time.Now().UTC()
	var posted ledger.Voucher
	for attempt := 0; ; attempt++ {
		posted, err = s.writer.ApplyPosting(ctx, v.ID, at, deltas)
		if err == nil || !errors.Is(err, errs.ErrConcurrentUpdate) || attempt >= postRetries {
			break
		}
	}
	if err != nil {
		return ledger.Voucher{}, err
	}
	return posted, nil
}

// Reverse builds a mirrored voucher with every line's side swapped and
// hands it to the store together with the posted->reversed transition of
// the original. The store applies both atomically, so two racing reversals
// cannot each post an offsetting voucher: the loser sees the original
// already claimed and leaves no balance effect behind.
func (s *service) Reverse(ctx context.Context, voucherID uuid.UUID, date time.Time, by string) (ledger.Voucher, error) {
	if voucherID == uuid.Nil {
		return ledger.Voucher{}, errs.ErrInvalid
	}
	orig, err := s.repo.GetVoucher(ctx, voucherID)
	if err != nil {
		return ledger.Voucher{}, err
	}
	if orig.Status == ledger.VoucherStatusReversed {
		return ledger.Voucher{}, errs.ErrAlreadyReversed
	}
	if orig.Status != ledger.VoucherStatusPosted {
		return ledger.Voucher{}, fmt.Errorf("%w: cannot reverse %s voucher", errs.ErrWrongStatus, orig.Status)
	}
	if date.IsZero() {
		date = time.Now().UTC()
	}
	rev := ledger.Voucher{
		Type:        orig.Type,
		Date:        date,
		Description: reversalMemo(orig),
		Reference:   orig.Reference,
		Currency:    orig.Currency,
		CreatedBy:   by,
		ReversalOf:  orig.ID,
		Metadata:    orig.Metadata.Clone(),
		Lines:       make([]ledger.VoucherLine, len(orig.Lines)),
	}
	for i, ln := range orig.Lines {
		ln.ID = uuid.Nil
		ln.VoucherID = uuid.Nil
		ln.Side = ln.Side.Opposite()
		rev.Lines[i] = ln
	}
	rev, err = s.prepare(ctx, rev)
	if err != nil {
		return ledger.Voucher{}, err
	}
	rev.Status = ledger.VoucherStatusPosted
	at := time.Now().UTC()
	rev.PostedAt = &at
	deltas, err := s.deltasFor(ctx, rev)
	if err != nil {
		return ledger.Voucher{}, err
	}
	var reversed ledger.Voucher
	for attempt := 0; ; attempt++ {
		reversed, err = s.writer.ReverseVoucher(ctx, orig.ID, rev, deltas)
		if err == nil || !errors.Is(err, errs.ErrConcurrentUpdate) || attempt >= postRetries {
			break
		}
	}
	if err != nil {
		return ledger.Voucher{}, err
	}
	return reversed, nil
}

// Cancel abandons a draft. Posted vouchers are reversed, never cancelled.
func (s *service) Cancel(ctx context.Context, voucherID uuid.UUID) (ledger.Voucher, error) {
	if voucherID == uuid.Nil {
		return ledger.Voucher{}, errs.ErrInvalid
	}
	v, err := s.repo.GetVoucher(ctx, voucherID)
	if err != nil {
		return ledger.Voucher{}, err
	}
	if v.Status != ledger.VoucherStatusDraft {
		return ledger.Voucher{}, fmt.Errorf("%w: cannot cancel %s voucher", errs.ErrWrongStatus, v.Status)
	}
	return s.writer.CancelVoucher(ctx, voucherID)
}

// deltasFor aggregates the voucher's net effect per account using each
// account's normal-side sign convention.
func (s *service) deltasFor(ctx context.Context, v ledger.Voucher) ([]BalanceDelta, error) {
	ids := make([]uuid.UUID, 0, len(v.Lines))
	for _, ln := range v.Lines {
		ids = append(ids, ln.AccountID)
	}
	accMap, err := s.repo.AccountsByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	net := make(map[uuid.UUID]int64, len(accMap))
	order := make([]uuid.UUID, 0, len(accMap))
	for _, ln := range v.Lines {
		acc, ok := accMap[ln.AccountID]
		if !ok {
			return nil, errs.ErrNotFound
		}
		units, _ := ln.Amount.MinorUnits()
		if _, seen := net[acc.ID]; !seen {
			order = append(order, acc.ID)
		}
		net[acc.ID] += acc.SignedMinor(ln.Side, units)
	}
	deltas := make([]BalanceDelta, 0, len(order))
	for _, id := range order {
		deltas = append(deltas, BalanceDelta{AccountID: id, DeltaMinor: net[id]})
	}
	return deltas, nil
}

func reversalMemo(orig ledger.Voucher) string {
	memo := "Reversal of " + orig.Number
	if orig.Description != "" {
		memo += ": " + orig.Description
	}
	return memo
}

func lineErr(i int, msg string) error {
	return fmt.Errorf("%w: line[%d]: %s", errs.ErrInvalidLine, i, msg)
}
