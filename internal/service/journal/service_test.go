package journal_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/govalues/money"

	"github.com/ledgerhouse/ledgerhouse/internal/errs"
	"github.com/ledgerhouse/ledgerhouse/internal/ledger"
	"github.com/ledgerhouse/ledgerhouse/internal/service/journal"
	"github.com/ledgerhouse/ledgerhouse/internal/storage/memory"
)

func usd(t *testing.T, minor int64) money.Amount {
	t.Helper()
	amt, err := money.NewAmountFromMinorUnits("USD", minor)
	if err != nil {
		t.Fatalf("amount: %v", err)
	}
	return amt
}

type fixture struct {
	svc     journal.Service
	store   *memory.Store
	cash    ledger.Account
	salary  ledger.Account
	revenue ledger.Account
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	store := memory.New()
	mk := func(code, name string, at ledger.AccountType, category string) ledger.Account {
		a := ledger.Account{
			ID: uuid.New(), Code: code, Name: name, Type: at, Category: category,
			NormalSide: at.NormalSide(), Currency: "USD",
			AllowPosting: true, Active: true, CreatedAt: time.Now().UTC(),
		}
		store.SeedAccount(a)
		return a
	}
	return fixture{
		svc:     journal.New(store, store),
		store:   store,
		cash:    mk("1000", "Cash", ledger.AccountTypeAsset, "cash"),
		salary:  mk("5000", "Salaries Expense", ledger.AccountTypeExpense, "payroll"),
		revenue: mk("4000", "Sales Revenue", ledger.AccountTypeRevenue, "operating_revenue"),
	}
}

func (f fixture) salaryVoucher(t *testing.T, minor int64) ledger.Voucher {
	return ledger.Voucher{
		Type:        ledger.VoucherTypeJournal,
		Date:        time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC),
		Description: "Pay salaries",
		Currency:    "USD",
		Lines: []ledger.VoucherLine{
			{AccountID: f.salary.ID, Description: "March payroll", Side: ledger.SideDebit, Amount: usd(t, minor)},
			{AccountID: f.cash.ID, Description: "March payroll", Side: ledger.SideCredit, Amount: usd(t, minor)},
		},
	}
}

func (f fixture) balance(t *testing.T, id uuid.UUID) int64 {
	t.Helper()
	acc, err := f.store.GetAccount(context.Background(), id)
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	return acc.BalanceMinor
}

func TestValidateBalance(t *testing.T) {
	f := newFixture(t)
	check := f.svc.ValidateBalance([]ledger.VoucherLine{
		{Side: ledger.SideDebit, Amount: usd(t, 300000)},
		{Side: ledger.SideCredit, Amount: usd(t, 299999)},
	})
	if check.Balanced {
		t.Error("off-by-one should not balance")
	}
	if check.DifferenceMinor != 1 {
		t.Errorf("difference %d, want 1", check.DifferenceMinor)
	}
}

func TestCreateAssignsSequentialNumbers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	v1, err := f.svc.Create(ctx, f.salaryVoucher(t, 100000))
	if err != nil {
		t.Fatalf("create 1: %v", err)
	}
	v2, err := f.svc.Create(ctx, f.salaryVoucher(t, 200000))
	if err != nil {
		t.Fatalf("create 2: %v", err)
	}
	if v1.Number != "JV2024001" || v2.Number != "JV2024002" {
		t.Errorf("numbers %s, %s; want JV2024001, JV2024002", v1.Number, v2.Number)
	}
	if v1.Status != ledger.VoucherStatusDraft {
		t.Errorf("status %s, want draft", v1.Status)
	}
	if v1.FiscalYear != 2024 || v1.FiscalPeriod != 3 {
		t.Errorf("fiscal (%d, %d), want (2024, 3)", v1.FiscalYear, v1.FiscalPeriod)
	}
}

func TestCreateRejectsUnbalanced(t *testing.T) {
	f := newFixture(t)
	v := f.salaryVoucher(t, 100000)
	v.Lines[1].Amount = usd(t, 99999)
	if _, err := f.svc.Create(context.Background(), v); !errors.Is(err, errs.ErrUnbalanced) {
		t.Fatalf("got %v, want ErrUnbalanced", err)
	}
}

func TestCreateRejectsTooFewLines(t *testing.T) {
	f := newFixture(t)
	v := f.salaryVoucher(t, 100000)
	v.Lines = v.Lines[:1]
	if _, err := f.svc.Create(context.Background(), v); !errors.Is(err, errs.ErrTooFewLines) {
		t.Fatalf("got %v, want ErrTooFewLines", err)
	}
}

func TestCreateRejectsNonPostingAccount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	summary := ledger.Account{
		ID: uuid.New(), Code: "9999", Name: "Assets Summary", Type: ledger.AccountTypeAsset,
		NormalSide: ledger.SideDebit, Currency: "USD", AllowPosting: false, Active: true,
	}
	f.store.SeedAccount(summary)
	v := f.salaryVoucher(t, 100000)
	v.Lines[0].AccountID = summary.ID
	if _, err := f.svc.Create(ctx, v); !errors.Is(err, errs.ErrPostingNotAllowed) {
		t.Fatalf("got %v, want ErrPostingNotAllowed", err)
	}
}

// Posting a salaries voucher debits the expense and credits cash: the
// expense balance rises and the cash balance falls by the same amount.
func TestPostAppliesBalances(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.svc.Create(ctx, f.salaryVoucher(t, 300000))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if got := f.balance(t, f.salary.ID); got != 0 {
		t.Fatalf("draft must not touch balances, got %d", got)
	}

	posted, err := f.svc.Post(ctx, created.ID)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	if posted.Status != ledger.VoucherStatusPosted || posted.PostedAt == nil {
		t.Errorf("status %s, posted_at %v", posted.Status, posted.PostedAt)
	}
	if got := f.balance(t, f.salary.ID); got != 300000 {
		t.Errorf("salary balance %d, want 300000", got)
	}
	if got := f.balance(t, f.cash.ID); got != -300000 {
		t.Errorf("cash balance %d, want -300000", got)
	}
}

func TestPostTwiceFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created, _ := f.svc.Create(ctx, f.salaryVoucher(t, 100000))
	if _, err := f.svc.Post(ctx, created.ID); err != nil {
		t.Fatalf("first post: %v", err)
	}
	if _, err := f.svc.Post(ctx, created.ID); !errors.Is(err, errs.ErrWrongStatus) {
		t.Fatalf("second post: got %v, want ErrWrongStatus", err)
	}
	if got := f.balance(t, f.salary.ID); got != 100000 {
		t.Errorf("balance applied twice: %d", got)
	}
}

// Reversing a posted voucher creates a mirrored offsetting voucher and
// restores every balance to its prior value without mutating history.
func TestReverseRestoresBalances(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, _ := f.svc.Create(ctx, f.salaryVoucher(t, 250000))
	if _, err := f.svc.Post(ctx, created.ID); err != nil {
		t.Fatalf("post: %v", err)
	}

	rev, err := f.svc.Reverse(ctx, created.ID, time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC), "controller")
	if err != nil {
		t.Fatalf("reverse: %v", err)
	}
	if rev.ReversalOf != created.ID {
		t.Errorf("reversal_of %s, want %s", rev.ReversalOf, created.ID)
	}
	if !strings.HasPrefix(rev.Description, "Reversal of "+created.Number) {
		t.Errorf("memo %q", rev.Description)
	}
	for i, ln := range rev.Lines {
		if ln.Side != created.Lines[i].Side.Opposite() {
			t.Errorf("line %d side %s not mirrored", i, ln.Side)
		}
	}
	if got := f.balance(t, f.salary.ID); got != 0 {
		t.Errorf("salary balance %d, want 0", got)
	}
	if got := f.balance(t, f.cash.ID); got != 0 {
		t.Errorf("cash balance %d, want 0", got)
	}

	orig, err := f.svc.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("get original: %v", err)
	}
	if orig.Status != ledger.VoucherStatusReversed || orig.ReversedBy != rev.ID {
		t.Errorf("original status %s, reversed_by %s", orig.Status, orig.ReversedBy)
	}
	// The original's lines stay untouched.
	if len(orig.Lines) != 2 || orig.Lines[0].Side != ledger.SideDebit {
		t.Error("original lines mutated by reversal")
	}
}

func TestReverseTwiceFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created, _ := f.svc.Create(ctx, f.salaryVoucher(t, 100000))
	if _, err := f.svc.Post(ctx, created.ID); err != nil {
		t.Fatalf("post: %v", err)
	}
	if _, err := f.svc.Reverse(ctx, created.ID, time.Time{}, ""); err != nil {
		t.Fatalf("first reverse: %v", err)
	}
	if _, err := f.svc.Reverse(ctx, created.ID, time.Time{}, ""); !errors.Is(err, errs.ErrAlreadyReversed) {
		t.Fatalf("second reverse: got %v, want ErrAlreadyReversed", err)
	}
}

// Two reversals racing on one posted voucher must not both post an
// offsetting voucher: exactly one wins, balances are undone once, and the
// loser leaves nothing in the ledger.
func TestConcurrentReverseAppliesOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created, _ := f.svc.Create(ctx, f.salaryVoucher(t, 35000))
	if _, err := f.svc.Post(ctx, created.ID); err != nil {
		t.Fatalf("post: %v", err)
	}

	var wg sync.WaitGroup
	results := make([]error, 2)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = f.svc.Reverse(ctx, created.ID, time.Time{}, "")
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range results {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, errs.ErrAlreadyReversed):
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if wins != 1 {
		t.Fatalf("%d reversals succeeded, want exactly 1", wins)
	}
	if got := f.balance(t, f.salary.ID); got != 0 {
		t.Errorf("salary balance %d, want 0 (reversal applied once)", got)
	}
	if got := f.balance(t, f.cash.ID); got != 0 {
		t.Errorf("cash balance %d, want 0 (reversal applied once)", got)
	}
	all, err := f.svc.List(ctx, journal.Filter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("%d vouchers in the ledger, want original plus one mirror", len(all))
	}
}

func TestReverseDraftFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created, _ := f.svc.Create(ctx, f.salaryVoucher(t, 100000))
	if _, err := f.svc.Reverse(ctx, created.ID, time.Time{}, ""); !errors.Is(err, errs.ErrWrongStatus) {
		t.Fatalf("got %v, want ErrWrongStatus", err)
	}
}

func TestCancelDraftOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created, _ := f.svc.Create(ctx, f.salaryVoucher(t, 100000))
	cancelled, err := f.svc.Cancel(ctx, created.ID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Status != ledger.VoucherStatusCancelled {
		t.Errorf("status %s, want cancelled", cancelled.Status)
	}
	if got := f.balance(t, f.salary.ID); got != 0 {
		t.Errorf("cancelled draft touched balances: %d", got)
	}
	posted, _ := f.svc.Create(ctx, f.salaryVoucher(t, 100000))
	if _, err := f.svc.Post(ctx, posted.ID); err != nil {
		t.Fatalf("post: %v", err)
	}
	if _, err := f.svc.Cancel(ctx, posted.ID); !errors.Is(err, errs.ErrWrongStatus) {
		t.Fatalf("cancel posted: got %v, want ErrWrongStatus", err)
	}
}

func TestListFilters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	v1, _ := f.svc.Create(ctx, f.salaryVoucher(t, 100000))
	if _, err := f.svc.Post(ctx, v1.ID); err != nil {
		t.Fatalf("post: %v", err)
	}
	if _, err := f.svc.Create(ctx, f.salaryVoucher(t, 200000)); err != nil {
		t.Fatalf("create draft: %v", err)
	}

	posted := ledger.VoucherStatusPosted
	got, err := f.svc.List(ctx, journal.Filter{Status: &posted})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 1 || got[0].ID != v1.ID {
		t.Errorf("posted filter returned %d vouchers", len(got))
	}

	got, err = f.svc.List(ctx, journal.Filter{AccountID: f.revenue.ID})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("revenue filter returned %d vouchers, want 0", len(got))
	}
}
