package chart_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/govalues/money"

	"github.com/ledgerhouse/ledgerhouse/internal/errs"
	"github.com/ledgerhouse/ledgerhouse/internal/ledger"
	"github.com/ledgerhouse/ledgerhouse/internal/service/chart"
	"github.com/ledgerhouse/ledgerhouse/internal/storage/memory"
)

func newService(t *testing.T) (chart.Service, *memory.Store) {
	t.Helper()
	store := memory.New()
	return chart.New(store, store), store
}

func TestCreateDerivesNormalSide(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	acc, err := svc.Create(ctx, ledger.Account{
		Code: "1000", Name: "Cash", Type: ledger.AccountTypeAsset,
		Category: "cash", Currency: "usd", AllowPosting: true,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if acc.NormalSide != ledger.SideDebit {
		t.Errorf("asset normal side %s, want debit", acc.NormalSide)
	}
	if acc.Currency != "USD" {
		t.Errorf("currency not normalized: %s", acc.Currency)
	}
	if !acc.Active {
		t.Error("new account should be active")
	}
	if acc.BalanceMinor != 0 {
		t.Errorf("new account balance %d, want 0", acc.BalanceMinor)
	}
}

func TestCreateDuplicateCode(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	spec := ledger.Account{Code: "1000", Name: "Cash", Type: ledger.AccountTypeAsset, Currency: "USD", AllowPosting: true}
	if _, err := svc.Create(ctx, spec); err != nil {
		t.Fatalf("first create: %v", err)
	}
	if _, err := svc.Create(ctx, spec); !errors.Is(err, errs.ErrDuplicateCode) {
		t.Fatalf("second create: got %v, want ErrDuplicateCode", err)
	}
}

func TestUpdateBalanceSignConvention(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	cash, err := svc.Create(ctx, ledger.Account{Code: "1000", Name: "Cash", Type: ledger.AccountTypeAsset, Currency: "USD", AllowPosting: true})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// Debit increases a debit-normal account, credit decreases it.
	if err := svc.UpdateBalance(ctx, cash.ID, 10000, ledger.SideDebit); err != nil {
		t.Fatalf("debit: %v", err)
	}
	if err := svc.UpdateBalance(ctx, cash.ID, 3000, ledger.SideCredit); err != nil {
		t.Fatalf("credit: %v", err)
	}
	got, err := svc.Get(ctx, cash.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.BalanceMinor != 7000 {
		t.Errorf("balance %d, want 7000", got.BalanceMinor)
	}
}

func TestUpdateImmutableFields(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	acc, err := svc.Create(ctx, ledger.Account{Code: "1000", Name: "Cash", Type: ledger.AccountTypeAsset, Currency: "USD", AllowPosting: true})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	changed := acc
	changed.Currency = "EUR"
	if _, err := svc.Update(ctx, changed); !errors.Is(err, errs.ErrImmutable) {
		t.Fatalf("currency change: got %v, want ErrImmutable", err)
	}
	changed = acc
	changed.Type = ledger.AccountTypeExpense
	if _, err := svc.Update(ctx, changed); !errors.Is(err, errs.ErrImmutable) {
		t.Fatalf("type change: got %v, want ErrImmutable", err)
	}
}

func TestSystemAccountGuards(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	sys, err := svc.Create(ctx, ledger.Account{
		Code: "3000", Name: "Opening Balances", Type: ledger.AccountTypeEquity,
		Category: "opening_balances", Currency: "USD", System: true, AllowPosting: true,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := svc.Delete(ctx, sys.ID); !errors.Is(err, errs.ErrSystemAccount) {
		t.Fatalf("delete system: got %v, want ErrSystemAccount", err)
	}
	sys.Name = "Renamed"
	if _, err := svc.Update(ctx, sys); !errors.Is(err, errs.ErrSystemAccount) {
		t.Fatalf("update system: got %v, want ErrSystemAccount", err)
	}
}

func TestReservedCategoryRequiresSystemFlag(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, ledger.Account{
		Code: "3900", Name: "Retained Earnings", Type: ledger.AccountTypeEquity,
		Category: "retained_earnings", Currency: "USD", AllowPosting: true,
	})
	if !errors.Is(err, errs.ErrInvalid) {
		t.Fatalf("non-system reserved category: got %v, want ErrInvalid", err)
	}
	if _, err := svc.Create(ctx, ledger.Account{
		Code: "3900", Name: "Retained Earnings", Type: ledger.AccountTypeEquity,
		Category: "retained_earnings", Currency: "USD", System: true, AllowPosting: true,
	}); err != nil {
		t.Fatalf("system account with reserved category: %v", err)
	}
}

func TestValidateCreateWrapsInvalid(t *testing.T) {
	svc, _ := newService(t)

	if err := svc.ValidateCreate(ledger.Account{Name: "Cash", Type: ledger.AccountTypeAsset, Currency: "USD"}); !errors.Is(err, errs.ErrInvalid) {
		t.Errorf("missing code: got %v, want ErrInvalid", err)
	}
	if err := svc.ValidateCreate(ledger.Account{Code: "1000", Name: "Cash", Type: "imaginary", Currency: "USD"}); !errors.Is(err, errs.ErrInvalid) {
		t.Errorf("bad type: got %v, want ErrInvalid", err)
	}
}

func TestDeleteGuardedByVoucherLines(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()

	cash, err := svc.Create(ctx, ledger.Account{Code: "1000", Name: "Cash", Type: ledger.AccountTypeAsset, Currency: "USD", AllowPosting: true})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	amt, _ := money.NewAmountFromMinorUnits("USD", 1000)
	_, err = store.CreateVoucher(ctx, ledger.Voucher{
		ID: uuid.New(), Number: "JV2024001", Type: ledger.VoucherTypeJournal,
		Date: time.Now().UTC(), Currency: "USD", Status: ledger.VoucherStatusDraft,
		Lines: []ledger.VoucherLine{{ID: uuid.New(), AccountID: cash.ID, Side: ledger.SideDebit, Amount: amt}},
	})
	if err != nil {
		t.Fatalf("seed voucher: %v", err)
	}
	if err := svc.Delete(ctx, cash.ID); !errors.Is(err, errs.ErrAccountInUse) {
		t.Fatalf("delete: got %v, want ErrAccountInUse", err)
	}
}

func TestEnsureTaggedIdempotent(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	spec := ledger.Account{
		Code: "AR-CUST001", Name: "Accounts Receivable - Jane Doe",
		Type: ledger.AccountTypeAsset, Category: "current_asset", Currency: "USD",
		Tags: []string{"customer", "accounts-receivable", "cust001"}, AllowPosting: true,
	}
	first, created, err := svc.EnsureTagged(ctx, spec)
	if err != nil || !created {
		t.Fatalf("first ensure: created=%v err=%v", created, err)
	}
	second, created, err := svc.EnsureTagged(ctx, spec)
	if err != nil {
		t.Fatalf("second ensure: %v", err)
	}
	if created {
		t.Error("second ensure should reuse the existing account")
	}
	if second.ID != first.ID {
		t.Errorf("got %s, want %s", second.ID, first.ID)
	}
}

func TestDeduplicateKeepsEarliest(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	mk := func(id uuid.UUID, createdAt time.Time) ledger.Account {
		return ledger.Account{
			ID: id, Code: "AR-" + id.String()[:8], Name: "Accounts Receivable - Jane Doe",
			Type: ledger.AccountTypeAsset, NormalSide: ledger.SideDebit, Currency: "USD",
			Tags:      []string{"customer", "accounts-receivable", "cust001"},
			Active:    true, AllowPosting: true,
			CreatedAt: createdAt,
		}
	}
	survivor := mk(uuid.New(), base)
	dup := mk(uuid.New(), base.Add(time.Hour))
	store.SeedAccount(survivor)
	store.SeedAccount(dup)

	// A party linked to the duplicate must be repointed to the survivor.
	party := ledger.Party{
		ID: uuid.New(), Kind: ledger.PartyKindCustomer, Code: "CUST001",
		DisplayName: "Jane Doe", Active: true,
		Link: ledger.AccountLink{AccountID: dup.ID, AccountCode: dup.Code, AutoCreate: true},
	}
	if _, err := store.CreateParty(ctx, party); err != nil {
		t.Fatalf("seed party: %v", err)
	}

	rep, err := svc.Deduplicate(ctx, []string{"customer"})
	if err != nil {
		t.Fatalf("deduplicate: %v", err)
	}
	if rep.Groups != 1 || len(rep.Removed) != 1 || rep.Removed[0] != dup.ID {
		t.Fatalf("report %+v, want dup %s removed", rep, dup.ID)
	}
	if rep.Repointed != 1 {
		t.Errorf("repointed %d, want 1", rep.Repointed)
	}
	if _, err := svc.Get(ctx, dup.ID); !errors.Is(err, errs.ErrNotFound) {
		t.Error("duplicate should be gone")
	}
	got, err := store.GetParty(ctx, party.ID)
	if err != nil {
		t.Fatalf("get party: %v", err)
	}
	if got.Link.AccountID != survivor.ID {
		t.Errorf("party link %s, want survivor %s", got.Link.AccountID, survivor.ID)
	}
}

func TestDeduplicateSkipsReferencedAccounts(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	survivor := ledger.Account{
		ID: uuid.New(), Code: "AR-A", Name: "Accounts Receivable - Jane Doe",
		Type: ledger.AccountTypeAsset, NormalSide: ledger.SideDebit, Currency: "USD",
		Tags: []string{"customer", "accounts-receivable", "cust001"},
		Active: true, AllowPosting: true, CreatedAt: base,
	}
	dup := survivor
	dup.ID = uuid.New()
	dup.Code = "AR-B"
	dup.CreatedAt = base.Add(time.Hour)
	store.SeedAccount(survivor)
	store.SeedAccount(dup)

	amt, _ := money.NewAmountFromMinorUnits("USD", 1000)
	if _, err := store.CreateVoucher(ctx, ledger.Voucher{
		ID: uuid.New(), Number: "JV2024001", Type: ledger.VoucherTypeJournal,
		Date: base, Currency: "USD", Status: ledger.VoucherStatusPosted,
		Lines: []ledger.VoucherLine{{ID: uuid.New(), AccountID: dup.ID, Side: ledger.SideDebit, Amount: amt}},
	}); err != nil {
		t.Fatalf("seed voucher: %v", err)
	}

	rep, err := svc.Deduplicate(ctx, []string{"customer"})
	if err != nil {
		t.Fatalf("deduplicate: %v", err)
	}
	if len(rep.Skipped) != 1 || rep.Skipped[0] != dup.ID {
		t.Fatalf("report %+v, want dup %s skipped", rep, dup.ID)
	}
	if _, err := svc.Get(ctx, dup.ID); err != nil {
		t.Error("referenced duplicate must stay in place")
	}
}
