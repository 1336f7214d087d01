// Package memory provides a simple in-memory implementation used for
// development and tests. A single RWMutex keeps voucher posting and
// tagged-account creation atomic without further machinery.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ledgerhouse/ledgerhouse/internal/errs"
	"github.com/ledgerhouse/ledgerhouse/internal/ledger"
	"github.com/ledgerhouse/ledgerhouse/internal/service/journal"
)

// Store is an in-memory implementation of the repository and writer
// interfaces used by the services and the API.
type Store struct {
	mu       sync.RWMutex
	accounts map[uuid.UUID]ledger.Account
	vouchers map[uuid.UUID]*ledger.Voucher
	parties  map[uuid.UUID]ledger.Party
	// counters holds the next voucher sequence per "type/fiscalYear".
	counters map[string]int
	// voucherIdem maps idempotency keys to voucher IDs.
	voucherIdem map[string]uuid.UUID
}

// New constructs an empty in-memory store.
func New() *Store {
	return &Store{
		accounts:    make(map[uuid.UUID]ledger.Account),
		vouchers:    make(map[uuid.UUID]*ledger.Voucher),
		parties:     make(map[uuid.UUID]ledger.Party),
		counters:    make(map[string]int),
		voucherIdem: make(map[string]uuid.UUID),
	}
}

// Seed helpers for local dev/tests.
func (s *Store) SeedAccount(a ledger.Account) { s.mu.Lock(); s.accounts[a.ID] = a; s.mu.Unlock() }

func (s *Store) Reset() {
	s.mu.Lock()
	s.accounts = map[uuid.UUID]ledger.Account{}
	s.vouchers = map[uuid.UUID]*ledger.Voucher{}
	s.parties = map[uuid.UUID]ledger.Party{}
	s.counters = map[string]int{}
	s.voucherIdem = map[string]uuid.UUID{}
	s.mu.Unlock()
}

// Ready always succeeds for the in-memory backend.
func (s *Store) Ready(context.Context) error { return nil }

// --- Account reads ---

func (s *Store) ListAccounts(context.Context) ([]ledger.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ledger.Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (s *Store) GetAccount(_ context.Context, accountID uuid.UUID) (ledger.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[accountID]
	if !ok {
		return ledger.Account{}, errs.ErrNotFound
	}
	return a, nil
}

func (s *Store) AccountByCode(_ context.Context, code string) (ledger.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.accounts {
		if strings.EqualFold(a.Code, code) {
			return a, nil
		}
	}
	return ledger.Account{}, errs.ErrNotFound
}

// AccountsByTagPrefix matches tags positionally against the given prefix.
func (s *Store) AccountsByTagPrefix(_ context.Context, prefix []string) ([]ledger.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ledger.Account, 0)
	for _, a := range s.accounts {
		if tagsMatch(a.Tags, prefix) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (s *Store) AccountsByIDs(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]ledger.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[uuid.UUID]ledger.Account, len(ids))
	for _, id := range ids {
		if a, ok := s.accounts[id]; ok {
			out[id] = a
		}
	}
	return out, nil
}

// AccountHasLines reports whether any voucher line, of any status,
// references the account.
func (s *Store) AccountHasLines(_ context.Context, accountID uuid.UUID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accountHasLinesLocked(accountID), nil
}

func (s *Store) accountHasLinesLocked(accountID uuid.UUID) bool {
	for _, v := range s.vouchers {
		for _, ln := range v.Lines {
			if ln.AccountID == accountID {
				return true
			}
		}
	}
	return false
}

// --- Account writes ---

func (s *Store) CreateAccount(_ context.Context, a ledger.Account) (ledger.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, other := range s.accounts {
		if strings.EqualFold(other.Code, a.Code) {
			return ledger.Account{}, errs.ErrDuplicateCode
		}
	}
	s.accounts[a.ID] = a
	return a, nil
}

func (s *Store) UpdateAccount(_ context.Context, a ledger.Account) (ledger.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.accounts[a.ID]
	if !ok {
		return ledger.Account{}, errs.ErrNotFound
	}
	// The cached balance is only written through ApplyBalance.
	a.BalanceMinor = current.BalanceMinor
	s.accounts[a.ID] = a
	return a, nil
}

func (s *Store) DeleteAccount(_ context.Context, accountID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[accountID]; !ok {
		return errs.ErrNotFound
	}
	delete(s.accounts, accountID)
	return nil
}

// EnsureTaggedAccount checks the tag key and inserts inside one critical
// section, so concurrent saves of the same entity cannot create duplicates.
func (s *Store) EnsureTaggedAccount(_ context.Context, a ledger.Account) (ledger.Account, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := a.TagKey()
	for _, other := range s.accounts {
		if other.TagKey() == key {
			return other, false, nil
		}
	}
	for _, other := range s.accounts {
		if strings.EqualFold(other.Code, a.Code) {
			return ledger.Account{}, false, errs.ErrDuplicateCode
		}
	}
	s.accounts[a.ID] = a
	return a, true, nil
}

func (s *Store) ApplyBalance(_ context.Context, accountID uuid.UUID, deltaMinor int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[accountID]
	if !ok {
		return errs.ErrNotFound
	}
	a.BalanceMinor += deltaMinor
	s.accounts[accountID] = a
	return nil
}

func (s *Store) RepointLinks(_ context.Context, fromAccountID, toAccountID uuid.UUID, toCode string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, p := range s.parties {
		if p.Link.AccountID == fromAccountID {
			p.Link.AccountID = toAccountID
			p.Link.AccountCode = toCode
			s.parties[id] = p
			n++
		}
	}
	return n, nil
}

// --- Voucher reads ---

func (s *Store) GetVoucher(_ context.Context, voucherID uuid.UUID) (ledger.Voucher, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.vouchers[voucherID]
	if !ok {
		return ledger.Voucher{}, errs.ErrNotFound
	}
	return cloneVoucher(v), nil
}

func (s *Store) ListVouchers(_ context.Context, f journal.Filter) ([]ledger.Voucher, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ledger.Voucher, 0, len(s.vouchers))
	for _, v := range s.vouchers {
		if !matches(v, f) {
			continue
		}
		out = append(out, cloneVoucher(v))
	}
	sortVouchers(out)
	return out, nil
}

// ListEffectiveVouchers returns vouchers whose lines are ledger history:
// posted and reversed ones.
func (s *Store) ListEffectiveVouchers(context.Context) ([]ledger.Voucher, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ledger.Voucher, 0, len(s.vouchers))
	for _, v := range s.vouchers {
		if v.Status != ledger.VoucherStatusPosted && v.Status != ledger.VoucherStatusReversed {
			continue
		}
		out = append(out, cloneVoucher(v))
	}
	sortVouchers(out)
	return out, nil
}

// --- Voucher writes ---

func (s *Store) CreateVoucher(_ context.Context, v ledger.Voucher) (ledger.Voucher, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := cloneVoucher(&v)
	s.vouchers[v.ID] = &e
	return v, nil
}

// NextVoucherNumber increments an atomic per-(type, year) counter; counting
// existing vouchers instead would race under concurrent creation.
func (s *Store) NextVoucherNumber(_ context.Context, t ledger.VoucherType, fiscalYear int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := fmt.Sprintf("%s/%d", t, fiscalYear)
	s.counters[key]++
	return s.counters[key], nil
}

// ApplyPosting applies all balance deltas and flips the voucher to posted
// under the single store lock; a concurrent second post sees wrong_status.
func (s *Store) ApplyPosting(_ context.Context, voucherID uuid.UUID, at time.Time, deltas []journal.BalanceDelta) (ledger.Voucher, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.vouchers[voucherID]
	if !ok {
		return ledger.Voucher{}, errs.ErrNotFound
	}
	if v.Status != ledger.VoucherStatusDraft {
		return ledger.Voucher{}, errs.ErrWrongStatus
	}
	for _, d := range deltas {
		if _, ok := s.accounts[d.AccountID]; !ok {
			return ledger.Voucher{}, errs.ErrNotFound
		}
	}
	for _, d := range deltas {
		a := s.accounts[d.AccountID]
		a.BalanceMinor += d.DeltaMinor
		s.accounts[d.AccountID] = a
	}
	v.Status = ledger.VoucherStatusPosted
	v.PostedAt = &at
	return cloneVoucher(v), nil
}

// ReverseVoucher stores the posted offsetting voucher, applies its deltas
// and flips the original to reversed under the single store lock; a
// concurrent second reversal finds the original already reversed.
func (s *Store) ReverseVoucher(_ context.Context, originalID uuid.UUID, reversal ledger.Voucher, deltas []journal.BalanceDelta) (ledger.Voucher, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	orig, ok := s.vouchers[originalID]
	if !ok {
		return ledger.Voucher{}, errs.ErrNotFound
	}
	if orig.Status == ledger.VoucherStatusReversed {
		return ledger.Voucher{}, errs.ErrAlreadyReversed
	}
	if orig.Status != ledger.VoucherStatusPosted {
		return ledger.Voucher{}, errs.ErrWrongStatus
	}
	for _, d := range deltas {
		if _, ok := s.accounts[d.AccountID]; !ok {
			return ledger.Voucher{}, errs.ErrNotFound
		}
	}
	for _, d := range deltas {
		a := s.accounts[d.AccountID]
		a.BalanceMinor += d.DeltaMinor
		s.accounts[d.AccountID] = a
	}
	e := cloneVoucher(&reversal)
	s.vouchers[reversal.ID] = &e
	orig.Status = ledger.VoucherStatusReversed
	orig.ReversedBy = reversal.ID
	return cloneVoucher(&e), nil
}

func (s *Store) CancelVoucher(_ context.Context, voucherID uuid.UUID) (ledger.Voucher, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.vouchers[voucherID]
	if !ok {
		return ledger.Voucher{}, errs.ErrNotFound
	}
	if v.Status != ledger.VoucherStatusDraft {
		return ledger.Voucher{}, errs.ErrWrongStatus
	}
	v.Status = ledger.VoucherStatusCancelled
	return cloneVoucher(v), nil
}

// --- Party reads/writes ---

func (s *Store) ListParties(_ context.Context, kind *ledger.PartyKind) ([]ledger.Party, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ledger.Party, 0, len(s.parties))
	for _, p := range s.parties {
		if kind != nil && p.Kind != *kind {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (s *Store) GetParty(_ context.Context, partyID uuid.UUID) (ledger.Party, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.parties[partyID]
	if !ok {
		return ledger.Party{}, errs.ErrNotFound
	}
	return p, nil
}

func (s *Store) PartyByCode(_ context.Context, kind ledger.PartyKind, code string) (ledger.Party, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.parties {
		if p.Kind == kind && strings.EqualFold(p.Code, code) {
			return p, nil
		}
	}
	return ledger.Party{}, errs.ErrNotFound
}

func (s *Store) CreateParty(_ context.Context, p ledger.Party) (ledger.Party, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.parties[p.ID] = p
	return p, nil
}

func (s *Store) UpdateParty(_ context.Context, p ledger.Party) (ledger.Party, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.parties[p.ID]; !ok {
		return ledger.Party{}, errs.ErrNotFound
	}
	s.parties[p.ID] = p
	return p, nil
}

// --- Idempotency ---

func (s *Store) GetVoucherByIdempotencyKey(_ context.Context, key string) (ledger.Voucher, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.voucherIdem[key]
	if !ok {
		return ledger.Voucher{}, false, nil
	}
	v, ok := s.vouchers[id]
	if !ok {
		return ledger.Voucher{}, false, nil
	}
	return cloneVoucher(v), true, nil
}

func (s *Store) SaveIdempotencyKey(_ context.Context, key string, voucherID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.voucherIdem[key] = voucherID
	return nil
}

// --- helpers ---

func tagsMatch(tags, prefix []string) bool {
	if len(prefix) > len(tags) {
		return false
	}
	for i, p := range prefix {
		if p != "" && tags[i] != p {
			return false
		}
	}
	return len(tags) > 0
}

func matches(v *ledger.Voucher, f journal.Filter) bool {
	if f.Type != nil && v.Type != *f.Type {
		return false
	}
	if f.Status != nil && v.Status != *f.Status {
		return false
	}
	if f.From != nil && v.Date.Before(*f.From) {
		return false
	}
	if f.To != nil && v.Date.After(*f.To) {
		return false
	}
	if f.AccountID != uuid.Nil {
		found := false
		for _, ln := range v.Lines {
			if ln.AccountID == f.AccountID {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func sortVouchers(out []ledger.Voucher) {
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].Number < out[j].Number
	})
}

func cloneVoucher(v *ledger.Voucher) ledger.Voucher {
	e := *v
	e.Lines = make([]ledger.VoucherLine, len(v.Lines))
	copy(e.Lines, v.Lines)
	if v.PostedAt != nil {
		at := *v.PostedAt
		e.PostedAt = &at
	}
	return e
}
