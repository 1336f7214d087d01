// Package chart implements the chart-of-accounts registry rules: unique
// account codes, normal-balance derivation, guarded deletion, and the
// tag-key deduplication sweep.
package chart

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ledgerhouse/ledgerhouse/internal/dictionary"
	"github.com/ledgerhouse/ledgerhouse/internal/errs"
	"github.com/ledgerhouse/ledgerhouse/internal/ledger"
	"github.com/ledgerhouse/ledgerhouse/internal/slug"
)

// Repo defines read operations needed by the service.
type Repo interface {
	ListAccounts(ctx context.Context) ([]ledger.Account, error)
	GetAccount(ctx context.Context, accountID uuid.UUID) (ledger.Account, error)
	AccountByCode(ctx context.Context, code string) (ledger.Account, error)
	// AccountsByTagPrefix returns accounts whose tags match the given
	// positional prefix (tags[0], tags[1], ... as far as provided).
	AccountsByTagPrefix(ctx context.Context, prefix []string) ([]ledger.Account, error)
	// AccountHasLines reports whether any voucher line, of any status,
	// references the account.
	AccountHasLines(ctx context.Context, accountID uuid.UUID) (bool, error)
}

// Writer defines write operations needed by the service.
type Writer interface {
	CreateAccount(ctx context.Context, a ledger.Account) (ledger.Account, error)
	UpdateAccount(ctx context.Context, a ledger.Account) (ledger.Account, error)
	DeleteAccount(ctx context.Context, accountID uuid.UUID) error
	// EnsureTaggedAccount creates the account unless one with the same tag
	// key exists; the existence check and insert share one critical section.
	EnsureTaggedAccount(ctx context.Context, a ledger.Account) (ledger.Account, bool, error)
	// ApplyBalance atomically adds a signed minor-unit delta to the cached balance.
	ApplyBalance(ctx context.Context, accountID uuid.UUID, deltaMinor int64) error
	// RepointLinks moves party account links from one account to another,
	// returning the number of parties updated.
	RepointLinks(ctx context.Context, fromAccountID, toAccountID uuid.UUID, toCode string) (int, error)
}

// Service exposes the chart-of-accounts registry.
type Service interface {
	ValidateCreate(a ledger.Account) error
	Create(ctx context.Context, a ledger.Account) (ledger.Account, error)
	EnsureTagged(ctx context.Context, a ledger.Account) (ledger.Account, bool, error)
	Get(ctx context.Context, accountID uuid.UUID) (ledger.Account, error)
	ByCode(ctx context.Context, code string) (ledger.Account, error)
	ByTag(ctx context.Context, prefix []string) ([]ledger.Account, error)
	List(ctx context.Context) ([]ledger.Account, error)
	// UpdateBalance is the only sanctioned mutator of an account's cached
	// balance. Postings on the account's normal side increase it.
	UpdateBalance(ctx context.Context, accountID uuid.UUID, amountMinor int64, side ledger.Side) error
	Rename(ctx context.Context, accountID uuid.UUID, newName string) (ledger.Account, error)
	Update(ctx context.Context, a ledger.Account) (ledger.Account, error)
	Delete(ctx context.Context, accountID uuid.UUID) error
	Deduplicate(ctx context.Context, tagPrefix []string) (DedupReport, error)
}

type service struct {
	repo   Repo
	writer Writer
}

// New constructs the registry service over a store.
func New(repo Repo, writer Writer) Service { return &service{repo: repo, writer: writer} }

func (s *service) ValidateCreate(a ledger.Account) error {
	if strings.TrimSpace(a.Code) == "" {
		return fmt.Errorf("%w: account code is required", errs.ErrInvalid)
	}
	if a.Name == "" {
		return fmt.Errorf("%w: name is required", errs.ErrInvalid)
	}
	if a.Currency == "" {
		return fmt.Errorf("%w: currency is required", errs.ErrInvalid)
	}
	if !a.Type.Valid() {
		return fmt.Errorf("%w: unknown account type %q", errs.ErrInvalid, a.Type)
	}
	if a.NormalSide != "" && !a.NormalSide.Valid() {
		return fmt.Errorf("%w: unknown normal side %q", errs.ErrInvalid, a.NormalSide)
	}
	if a.Category != "" && !slug.IsSlug(strings.ToLower(a.Category)) {
		return fmt.Errorf("%w: invalid category slug %q", errs.ErrInvalid, a.Category)
	}
	if !a.System && dictionary.IsReserved(a.Type, strings.ToLower(a.Category)) {
		return fmt.Errorf("%w: category %q is reserved for system accounts", errs.ErrInvalid, a.Category)
	}
	for _, t := range a.Tags {
		if !slug.IsSlug(slug.Slugify(t)) {
			return fmt.Errorf("%w: invalid tag %q", errs.ErrInvalid, t)
		}
	}
	return nil
}

func (s *service) Create(ctx context.Context, a ledger.Account) (ledger.Account, error) {
	a = normalize(a)
	if err := s.ValidateCreate(a); err != nil {
		return ledger.Account{}, err
	}
	acc := newAccount(a)
	created, err := s.writer.CreateAccount(ctx, acc)
	if err != nil {
		return ledger.Account{}, err
	}
	return created, nil
}

// EnsureTagged creates the account unless one already carries its tag key.
// The second return is true when a new account was created.
func (s *service) EnsureTagged(ctx context.Context, a ledger.Account) (ledger.Account, bool, error) {
	a = normalize(a)
	if len(a.Tags) == 0 {
		return ledger.Account{}, false, errs.ErrInvalid
	}
	if err := s.ValidateCreate(a); err != nil {
		return ledger.Account{}, false, err
	}
	return s.writer.EnsureTaggedAccount(ctx, newAccount(a))
}

func (s *service) Get(ctx context.Context, accountID uuid.UUID) (ledger.Account, error) {
	if accountID == uuid.Nil {
		return ledger.Account{}, errs.ErrInvalid
	}
	return s.repo.GetAccount(ctx, accountID)
}

func (s *service) ByCode(ctx context.Context, code string) (ledger.Account, error) {
	if strings.TrimSpace(code) == "" {
		return ledger.Account{}, errs.ErrInvalid
	}
	return s.repo.AccountByCode(ctx, code)
}

func (s *service) ByTag(ctx context.Context, prefix []string) ([]ledger.Account, error) {
	if len(prefix) == 0 {
		return nil, errs.ErrInvalid
	}
	return s.repo.AccountsByTagPrefix(ctx, prefix)
}

func (s *service) List(ctx context.Context) ([]ledger.Account, error) {
	return s.repo.ListAccounts(ctx)
}

func (s *service) UpdateBalance(ctx context.Context, accountID uuid.UUID, amountMinor int64, side ledger.Side) error {
	if accountID == uuid.Nil || amountMinor <= 0 || !side.Valid() {
		return errs.ErrInvalid
	}
	acc, err := s.repo.GetAccount(ctx, accountID)
	if err != nil {
		return err
	}
	// NormalSide is immutable, so deriving the sign outside the atomic
	// increment cannot race with another update.
	return s.writer.ApplyBalance(ctx, accountID, acc.SignedMinor(side, amountMinor))
}

func (s *service) Rename(ctx context.Context, accountID uuid.UUID, newName string) (ledger.Account, error) {
	if accountID == uuid.Nil || strings.TrimSpace(newName) == "" {
		return ledger.Account{}, errs.ErrInvalid
	}
	acc, err := s.repo.GetAccount(ctx, accountID)
	if err != nil {
		return ledger.Account{}, err
	}
	acc.Name = newName
	return s.writer.UpdateAccount(ctx, acc)
}

// Update applies allowed changes to name/category/metadata/allow-posting.
// Code, type, currency and normal side are immutable once created.
func (s *service) Update(ctx context.Context, a ledger.Account) (ledger.Account, error) {
	if a.ID == uuid.Nil {
		return ledger.Account{}, errs.ErrInvalid
	}
	current, err := s.repo.GetAccount(ctx, a.ID)
	if err != nil {
		return ledger.Account{}, err
	}
	if current.System {
		return ledger.Account{}, errs.ErrSystemAccount
	}
	if current.Code != a.Code || current.Type != a.Type || current.Currency != a.Currency {
		return ledger.Account{}, errs.ErrImmutable
	}
	if a.System != current.System {
		return ledger.Account{}, errs.ErrImmutable
	}
	current.Name = a.Name
	current.Category = a.Category
	current.Metadata = a.Metadata
	current.AllowPosting = a.AllowPosting
	current.Active = a.Active
	return s.writer.UpdateAccount(ctx, current)
}

func (s *service) Delete(ctx context.Context, accountID uuid.UUID) error {
	if accountID == uuid.Nil {
		return errs.ErrInvalid
	}
	acc, err := s.repo.GetAccount(ctx, accountID)
	if err != nil {
		return err
	}
	if acc.System {
		return errs.ErrSystemAccount
	}
	used, err := s.repo.AccountHasLines(ctx, accountID)
	if err != nil {
		return err
	}
	if used {
		return errs.ErrAccountInUse
	}
	return s.writer.DeleteAccount(ctx, accountID)
}

// DedupReport summarizes one deduplication sweep.
type DedupReport struct {
	Groups   int
	Survived []uuid.UUID
	Removed  []uuid.UUID
	// Skipped lists duplicates left in place because voucher lines
	// reference them; these are anomalies to resolve by hand.
	Skipped   []uuid.UUID
	Repointed int
}

// Deduplicate scans accounts sharing a tag key under the given prefix,
// keeps the earliest-created account of each group, repoints party links to
// the survivor and deletes the rest.
func (s *service) Deduplicate(ctx context.Context, tagPrefix []string) (DedupReport, error) {
	if len(tagPrefix) == 0 {
		return DedupReport{}, errs.ErrInvalid
	}
	accounts, err := s.repo.AccountsByTagPrefix(ctx, tagPrefix)
	if err != nil {
		return DedupReport{}, err
	}
	byKey := make(map[string][]ledger.Account)
	for _, a := range accounts {
		key := a.TagKey()
		if key == "" {
			continue
		}
		byKey[key] = append(byKey[key], a)
	}
	var rep DedupReport
	for _, group := range byKey {
		if len(group) < 2 {
			continue
		}
		rep.Groups++
		// Earliest CreatedAt wins; ties break by ID for determinism.
		sort.Slice(group, func(i, j int) bool {
			if group[i].CreatedAt.Equal(group[j].CreatedAt) {
				return group[i].ID.String() < group[j].ID.String()
			}
			return group[i].CreatedAt.Before(group[j].CreatedAt)
		})
		survivor := group[0]
		rep.Survived = append(rep.Survived, survivor.ID)
		for _, dup := range group[1:] {
			used, err := s.repo.AccountHasLines(ctx, dup.ID)
			if err != nil {
				return rep, err
			}
			if used || dup.System {
				rep.Skipped = append(rep.Skipped, dup.ID)
				continue
			}
			n, err := s.writer.RepointLinks(ctx, dup.ID, survivor.ID, survivor.Code)
			if err != nil {
				return rep, err
			}
			rep.Repointed += n
			if err := s.writer.DeleteAccount(ctx, dup.ID); err != nil {
				return rep, err
			}
			rep.Removed = append(rep.Removed, dup.ID)
		}
	}
	return rep, nil
}

// normalize trims and uppercases what the registry keys on.
func normalize(a ledger.Account) ledger.Account {
	a.Code = strings.TrimSpace(a.Code)
	a.Name = strings.TrimSpace(a.Name)
	a.Currency = strings.ToUpper(strings.TrimSpace(a.Currency))
	a.Category = strings.ToLower(strings.TrimSpace(a.Category))
	for i, t := range a.Tags {
		a.Tags[i] = slug.Slugify(t)
	}
	return a
}

// newAccount assigns identity and derived fields for a validated spec.
// BalanceMinor passes through as the opening balance.
func newAccount(a ledger.Account) ledger.Account {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.NormalSide == "" {
		a.NormalSide = a.Type.NormalSide()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	a.Active = true
	return a
}
