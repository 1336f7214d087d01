package linker_test

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
	"github.com/ledgerhouse/ledgerhouse/internal/service/linker"
	"github.com/ledgerhouse/ledgerhouse/internal/storage/memory"
)

func newServices(t *testing.T) (linker.Service, chart.Service, *memory.Store) {
	t.Helper()
	store := memory.New()
	chartSvc := chart.New(store, store)
	return linker.New(store, store, chartSvc, "USD"), chartSvc, store
}

// Creating a customer provisions a receivable asset account tagged with
// the (role, ledger, code) triple and a zero opening balance.
func TestCustomerCreationProvisionsAccount(t *testing.T) {
	svc, chartSvc, _ := newServices(t)
	ctx := context.Background()

	p, err := svc.Create(ctx, ledger.Party{
		Kind: ledger.PartyKindCustomer, Code: "CUST001", DisplayName: "Jane Doe",
		Link: ledger.AccountLink{AutoCreate: true},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !p.Link.Linked() {
		t.Fatal("no account linked")
	}
	acc, err := chartSvc.Get(ctx, p.Link.AccountID)
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	if acc.Type != ledger.AccountTypeAsset {
		t.Errorf("type %s, want asset", acc.Type)
	}
	if acc.Name != "Accounts Receivable - Jane Doe" {
		t.Errorf("name %q", acc.Name)
	}
	want := []string{"customer", "accounts-receivable", "cust001"}
	if len(acc.Tags) != 3 || acc.Tags[0] != want[0] || acc.Tags[1] != want[1] || acc.Tags[2] != want[2] {
		t.Errorf("tags %v, want %v", acc.Tags, want)
	}
	if acc.BalanceMinor != 0 {
		t.Errorf("balance %d, want 0", acc.BalanceMinor)
	}
}

func TestSupplierCreationProvisionsPayable(t *testing.T) {
	svc, chartSvc, _ := newServices(t)
	ctx := context.Background()

	p, err := svc.Create(ctx, ledger.Party{
		Kind: ledger.PartyKindSupplier, Code: "SUP042", DisplayName: "Acme Parts",
		Link: ledger.AccountLink{AutoCreate: true},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	acc, err := chartSvc.Get(ctx, p.Link.AccountID)
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	if acc.Type != ledger.AccountTypeLiability || acc.Category != "current_liability" {
		t.Errorf("type %s category %s", acc.Type, acc.Category)
	}
	if acc.Tags[1] != "accounts-payable" {
		t.Errorf("ledger tag %q", acc.Tags[1])
	}
}

// A retried save must reuse the account created by the first attempt.
func TestOnPartyCreatedIdempotent(t *testing.T) {
	svc, chartSvc, _ := newServices(t)
	ctx := context.Background()

	p, err := svc.Create(ctx, ledger.Party{
		Kind: ledger.PartyKindCustomer, Code: "CUST001", DisplayName: "Jane Doe",
		Link: ledger.AccountLink{AutoCreate: true},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	first := p.Link.AccountID

	again, err := svc.OnPartyCreated(ctx, p.ID)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if again.Link.AccountID != first {
		t.Errorf("retry linked %s, want %s", again.Link.AccountID, first)
	}
	accs, err := chartSvc.ByTag(ctx, []string{"customer", "accounts-receivable", "cust001"})
	if err != nil {
		t.Fatalf("by tag: %v", err)
	}
	if len(accs) != 1 {
		t.Errorf("%d accounts for the tag triple, want 1", len(accs))
	}
}

func TestDuplicatePartyCode(t *testing.T) {
	svc, _, _ := newServices(t)
	ctx := context.Background()
	p := ledger.Party{Kind: ledger.PartyKindCustomer, Code: "CUST001", DisplayName: "Jane Doe"}
	if _, err := svc.Create(ctx, p); err != nil {
		t.Fatalf("first: %v", err)
	}
	if _, err := svc.Create(ctx, p); !errors.Is(err, errs.ErrDuplicateCode) {
		t.Fatalf("second: got %v, want ErrDuplicateCode", err)
	}
}

func TestCreateValidation(t *testing.T) {
	svc, _, _ := newServices(t)
	ctx := context.Background()

	cases := []struct {
		name  string
		party ledger.Party
	}{
		{"bad kind", ledger.Party{Kind: "partner", Code: "X1", DisplayName: "X"}},
		{"empty code", ledger.Party{Kind: ledger.PartyKindCustomer, Code: "  ", DisplayName: "Jane Doe"}},
		{"empty name", ledger.Party{Kind: ledger.PartyKindCustomer, Code: "CUST001", DisplayName: ""}},
	}
	for _, tc := range cases {
		if _, err := svc.Create(ctx, tc.party); !errors.Is(err, errs.ErrInvalid) {
			t.Errorf("%s: got %v, want ErrInvalid", tc.name, err)
		}
	}
}

// Renaming a party propagates to the linked account's display name.
func TestRenamePropagates(t *testing.T) {
	svc, chartSvc, _ := newServices(t)
	ctx := context.Background()

	p, err := svc.Create(ctx, ledger.Party{
		Kind: ledger.PartyKindCustomer, Code: "CUST001", DisplayName: "Jane Doe",
		Link: ledger.AccountLink{AutoCreate: true},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	renamed, err := svc.OnPartyRenamed(ctx, p.ID, "Jane Smith")
	if err != nil {
		t.Fatalf("rename: %v", err)
	}
	if renamed.DisplayName != "Jane Smith" {
		t.Errorf("display name %q", renamed.DisplayName)
	}
	acc, err := chartSvc.Get(ctx, p.Link.AccountID)
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	if acc.Name != "Accounts Receivable - Jane Smith" {
		t.Errorf("account name %q", acc.Name)
	}
}

// Deletion is blocked while the receivable has journal references; after
// the reference goes away the retry unlinks and removes the account.
func TestDeleteBlockedThenSucceeds(t *testing.T) {
	svc, chartSvc, store := newServices(t)
	ctx := context.Background()

	p, err := svc.Create(ctx, ledger.Party{
		Kind: ledger.PartyKindCustomer, Code: "CUST001", DisplayName: "Jane Doe",
		Link: ledger.AccountLink{AutoCreate: true},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	amt, _ := money.NewAmountFromMinorUnits("USD", 5000)
	voucherID := uuid.New()
	if _, err := store.CreateVoucher(ctx, ledger.Voucher{
		ID: voucherID, Number: "SV2024001", Type: ledger.VoucherTypeSales,
		Date: time.Now().UTC(), Currency: "USD", Status: ledger.VoucherStatusDraft,
		Lines: []ledger.VoucherLine{{ID: uuid.New(), AccountID: p.Link.AccountID, Side: ledger.SideDebit, Amount: amt}},
	}); err != nil {
		t.Fatalf("seed voucher: %v", err)
	}

	if _, err := svc.OnPartyDeleteRequested(ctx, p.ID); !errors.Is(err, errs.ErrHasJournalRefs) {
		t.Fatalf("delete: got %v, want ErrHasJournalRefs", err)
	}
	has, err := svc.HasJournalEntries(ctx, p.ID)
	if err != nil || !has {
		t.Fatalf("has journal entries: %v %v", has, err)
	}

	// Rebuild the world without the blocking voucher and retry.
	svc, chartSvc, _ = newServices(t)
	p, err = svc.Create(ctx, ledger.Party{
		Kind: ledger.PartyKindCustomer, Code: "CUST001", DisplayName: "Jane Doe",
		Link: ledger.AccountLink{AutoCreate: true},
	})
	if err != nil {
		t.Fatalf("recreate: %v", err)
	}
	accountID := p.Link.AccountID

	deleted, err := svc.OnPartyDeleteRequested(ctx, p.ID)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if deleted.Active {
		t.Error("party should be soft-deleted")
	}
	if deleted.Link.Linked() {
		t.Error("party should be unlinked")
	}
	if _, err := chartSvc.Get(ctx, accountID); !errors.Is(err, errs.ErrNotFound) {
		t.Error("subsidiary account should be removed")
	}
}

// CreateMissingAccounts links parties saved with auto-create disabled off
// a later reconciliation run.
func TestCreateMissingAccounts(t *testing.T) {
	svc, _, store := newServices(t)
	ctx := context.Background()

	// Party persisted without an account (auto-create on, link missing),
	// as left behind by a crashed save.
	orphan := ledger.Party{
		ID: uuid.New(), Kind: ledger.PartyKindCustomer, Code: "CUST009",
		DisplayName: "Orphaned Co", Active: true,
		Link: ledger.AccountLink{AutoCreate: true},
	}
	if _, err := store.CreateParty(ctx, orphan); err != nil {
		t.Fatalf("seed party: %v", err)
	}
	linked, err := svc.Create(ctx, ledger.Party{
		Kind: ledger.PartyKindCustomer, Code: "CUST001", DisplayName: "Jane Doe",
		Link: ledger.AccountLink{AutoCreate: true},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	sum, err := svc.CreateMissingAccounts(ctx)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if sum.Created != 1 {
		t.Errorf("created %d, want 1", sum.Created)
	}
	if sum.Skipped != 1 {
		t.Errorf("skipped %d, want 1 (already linked %s)", sum.Skipped, linked.ID)
	}
	got, err := svc.Get(ctx, orphan.ID)
	if err != nil {
		t.Fatalf("get orphan: %v", err)
	}
	if !got.Link.Linked() {
		t.Error("orphan still unlinked after reconciliation")
	}
}
