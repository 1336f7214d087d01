// Package linker provisions and maintains the per-customer and
// per-supplier subsidiary accounts in the chart of accounts. Entity
// lifecycle events arrive as explicit calls, never as storage hooks.
package linker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ledgerhouse/ledgerhouse/internal/errs"
	"github.com/ledgerhouse/ledgerhouse/internal/ledger"
	"github.com/ledgerhouse/ledgerhouse/internal/service/chart"
	"github.com/ledgerhouse/ledgerhouse/internal/slug"
)

// Repo defines party read operations needed by the service.
type Repo interface {
	ListParties(ctx context.Context, kind *ledger.PartyKind) ([]ledger.Party, error)
	GetParty(ctx context.Context, partyID uuid.UUID) (ledger.Party, error)
	PartyByCode(ctx context.Context, kind ledger.PartyKind, code string) (ledger.Party, error)
	// AccountHasLines reports whether any voucher line references the account.
	AccountHasLines(ctx context.Context, accountID uuid.UUID) (bool, error)
}

// Writer defines party write operations needed by the service.
type Writer interface {
	CreateParty(ctx context.Context, p ledger.Party) (ledger.Party, error)
	UpdateParty(ctx context.Context, p ledger.Party) (ledger.Party, error)
}

// Service exposes party lifecycle handling and account linking.
type Service interface {
	Create(ctx context.Context, p ledger.Party) (ledger.Party, error)
	Get(ctx context.Context, partyID uuid.UUID) (ledger.Party, error)
	List(ctx context.Context, kind *ledger.PartyKind) ([]ledger.Party, error)
	// OnPartyCreated provisions the subsidiary account for a saved party.
	// Idempotent on the tag triple: a retry reuses the existing account.
	OnPartyCreated(ctx context.Context, partyID uuid.UUID) (ledger.Party, error)
	// OnPartyRenamed syncs the linked account's display name.
	OnPartyRenamed(ctx context.Context, partyID uuid.UUID, displayName string) (ledger.Party, error)
	// OnPartyDeleteRequested unlinks and removes the subsidiary account,
	// then soft-deletes the party. Blocked while journal references exist.
	OnPartyDeleteRequested(ctx context.Context, partyID uuid.UUID) (ledger.Party, error)
	HasJournalEntries(ctx context.Context, partyID uuid.UUID) (bool, error)
	// CreateMissingAccounts reconciles parties that lack a linked account.
	CreateMissingAccounts(ctx context.Context) (ReconcileSummary, error)
}

type service struct {
	repo     Repo
	writer   Writer
	chart    chart.Service
	currency string
}

// New constructs the linker over the party store and the chart registry.
func New(repo Repo, writer Writer, chartSvc chart.Service, currency string) Service {
	return &service{repo: repo, writer: writer, chart: chartSvc, currency: strings.ToUpper(currency)}
}

// ItemError represents a per-party failure in a reconciliation run.
type ItemError struct {
	PartyID uuid.UUID
	Code    string
	Err     error
}

// ReconcileSummary reports one reconciliation run.
type ReconcileSummary struct {
	Created int
	Skipped int
	Errors  []ItemError
}

func (s *service) Create(ctx context.Context, p ledger.Party) (ledger.Party, error) {
	if !p.Kind.Valid() {
		return ledger.Party{}, fmt.Errorf("%w: unknown party kind %q", errs.ErrInvalid, p.Kind)
	}
	p.Code = strings.TrimSpace(p.Code)
	p.DisplayName = strings.TrimSpace(p.DisplayName)
	if p.Code == "" {
		return ledger.Party{}, fmt.Errorf("%w: code is required", errs.ErrInvalid)
	}
	if p.DisplayName == "" {
		return ledger.Party{}, fmt.Errorf("%w: display name is required", errs.ErrInvalid)
	}
	if _, err := s.repo.PartyByCode(ctx, p.Kind, p.Code); err == nil {
		return ledger.Party{}, errs.ErrDuplicateCode
	} else if !errors.Is(err, errs.ErrNotFound) {
		return ledger.Party{}, err
	}
	p.ID = uuid.New()
	p.Active = true
	p.CreatedAt = time.Now().UTC()
	created, err := s.writer.CreateParty(ctx, p)
	if err != nil {
		return ledger.Party{}, err
	}
	if created.Link.AutoCreate {
		return s.OnPartyCreated(ctx, created.ID)
	}
	return created, nil
}

func (s *service) Get(ctx context.Context, partyID uuid.UUID) (ledger.Party, error) {
	if partyID == uuid.Nil {
		return ledger.Party{}, errs.ErrInvalid
	}
	return s.repo.GetParty(ctx, partyID)
}

func (s *service) List(ctx context.Context, kind *ledger.PartyKind) ([]ledger.Party, error) {
	return s.repo.ListParties(ctx, kind)
}

func (s *service) OnPartyCreated(ctx context.Context, partyID uuid.UUID) (ledger.Party, error) {
	p, err := s.repo.GetParty(ctx, partyID)
	if err != nil {
		return ledger.Party{}, err
	}
	if !p.Link.AutoCreate || p.Link.Linked() {
		return p, nil
	}
	acc, _, err := s.chart.EnsureTagged(ctx, s.subsidiarySpec(p))
	if err != nil {
		return ledger.Party{}, err
	}
	p.Link.AccountID = acc.ID
	p.Link.AccountCode = acc.Code
	return s.writer.UpdateParty(ctx, p)
}

func (s *service) OnPartyRenamed(ctx context.Context, partyID uuid.UUID, displayName string) (ledger.Party, error) {
	displayName = strings.TrimSpace(displayName)
	if partyID == uuid.Nil || displayName == "" {
		return ledger.Party{}, errs.ErrInvalid
	}
	p, err := s.repo.GetParty(ctx, partyID)
	if err != nil {
		return ledger.Party{}, err
	}
	if p.DisplayName == displayName {
		return p, nil
	}
	p.DisplayName = displayName
	updated, err := s.writer.UpdateParty(ctx, p)
	if err != nil {
		return ledger.Party{}, err
	}
	if updated.Link.Linked() {
		if _, err := s.chart.Rename(ctx, updated.Link.AccountID, updated.AccountName()); err != nil {
			return ledger.Party{}, err
		}
	}
	return updated, nil
}

func (s *service) OnPartyDeleteRequested(ctx context.Context, partyID uuid.UUID) (ledger.Party, error) {
	p, err := s.repo.GetParty(ctx, partyID)
	if err != nil {
		return ledger.Party{}, err
	}
	if p.Link.Linked() {
		used, err := s.repo.AccountHasLines(ctx, p.Link.AccountID)
		if err != nil {
			return ledger.Party{}, err
		}
		if used {
			return ledger.Party{}, errs.ErrHasJournalRefs
		}
		accountID := p.Link.AccountID
		p.Link = ledger.AccountLink{AutoCreate: p.Link.AutoCreate}
		if p, err = s.writer.UpdateParty(ctx, p); err != nil {
			return ledger.Party{}, err
		}
		if err := s.chart.Delete(ctx, accountID); err != nil {
			return ledger.Party{}, err
		}
	}
	// Soft-delete only: the party record stays for audit history.
	p.Active = false
	return s.writer.UpdateParty(ctx, p)
}

func (s *service) HasJournalEntries(ctx context.Context, partyID uuid.UUID) (bool, error) {
	p, err := s.repo.GetParty(ctx, partyID)
	if err != nil {
		return false, err
	}
	if !p.Link.Linked() {
		return false, nil
	}
	return s.repo.AccountHasLines(ctx, p.Link.AccountID)
}

func (s *service) CreateMissingAccounts(ctx context.Context) (ReconcileSummary, error) {
	parties, err := s.repo.ListParties(ctx, nil)
	if err != nil {
		return ReconcileSummary{}, err
	}
	var sum ReconcileSummary
	for _, p := range parties {
		if !p.Active || p.Link.Linked() || !p.Link.AutoCreate {
			sum.Skipped++
			continue
		}
		if _, err := s.OnPartyCreated(ctx, p.ID); err != nil {
			sum.Errors = append(sum.Errors, ItemError{PartyID: p.ID, Code: "link_failed", Err: err})
			continue
		}
		sum.Created++
	}
	return sum, nil
}

// subsidiarySpec builds the account spec for a party: receivable asset for
// customers, payable liability for suppliers, keyed by the tag triple.
func (s *service) subsidiarySpec(p ledger.Party) ledger.Account {
	codeSlug := slug.Slugify(p.Code)
	return ledger.Account{
		Code:         p.Kind.AccountCodePrefix() + strings.ToUpper(p.Code),
		Name:         p.AccountName(),
		Type:         p.Kind.AccountType(),
		Category:     p.Kind.AccountCategory(),
		Currency:     s.currency,
		Tags:         []string{p.Kind.RoleTag(), p.Kind.LedgerTag(), codeSlug},
		AllowPosting: true,
	}
}
