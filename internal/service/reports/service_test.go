package reports_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/govalues/money"

	"github.com/ledgerhouse/ledgerhouse/internal/ledger"
	"github.com/ledgerhouse/ledgerhouse/internal/service/journal"
	"github.com/ledgerhouse/ledgerhouse/internal/service/reports"
	"github.com/ledgerhouse/ledgerhouse/internal/storage/memory"
)

type world struct {
	store    *memory.Store
	journal  journal.Service
	reports  reports.Service
	cash     ledger.Account
	ar       ledger.Account
	revenue  ledger.Account
	salaries ledger.Account
}

func newWorld(t *testing.T) *world {
	t.Helper()
	store := memory.New()
	w := &world{
		store:   store,
		journal: journal.New(store, store),
		reports: reports.New(store),
	}
	mk := func(code, name string, at ledger.AccountType, category string) ledger.Account {
		a := ledger.Account{
			ID: uuid.New(), Code: code, Name: name, Type: at, Category: category,
			NormalSide: at.NormalSide(), Currency: "USD",
			AllowPosting: true, Active: true, CreatedAt: time.Now().UTC(),
		}
		store.SeedAccount(a)
		return a
	}
	w.cash = mk("1000", "Cash", ledger.AccountTypeAsset, "cash")
	w.ar = mk("1200", "Accounts Receivable", ledger.AccountTypeAsset, "current_asset")
	w.revenue = mk("4000", "Sales Revenue", ledger.AccountTypeRevenue, "operating_revenue")
	w.salaries = mk("5000", "Salaries Expense", ledger.AccountTypeExpense, "payroll")
	return w
}

func (w *world) post(t *testing.T, vt ledger.VoucherType, date time.Time, desc string, debit, credit ledger.Account, minor int64) ledger.Voucher {
	t.Helper()
	amt, _ := money.NewAmountFromMinorUnits("USD", minor)
	v, err := w.journal.Create(context.Background(), ledger.Voucher{
		Type: vt, Date: date, Description: desc, Currency: "USD",
		Lines: []ledger.VoucherLine{
			{AccountID: debit.ID, Description: desc, Side: ledger.SideDebit, Amount: amt},
			{AccountID: credit.ID, Description: desc, Side: ledger.SideCredit, Amount: amt},
		},
	})
	if err != nil {
		t.Fatalf("create %s: %v", desc, err)
	}
	if v, err = w.journal.Post(context.Background(), v.ID); err != nil {
		t.Fatalf("post %s: %v", desc, err)
	}
	return v
}

func (w *world) seedActivity(t *testing.T) {
	w.post(t, ledger.VoucherTypeCashReceipt, date(2024, 1, 10), "Cash sale", w.cash, w.revenue, 100000)
	w.post(t, ledger.VoucherTypeSales, date(2024, 1, 20), "Invoice CUST001", w.ar, w.revenue, 50000)
	w.post(t, ledger.VoucherTypeJournal, date(2024, 2, 5), "Pay salaries", w.salaries, w.cash, 30000)
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Trial balance ties out: total debits equal total credits across all
// active accounts, with each net balance on its heavier side.
func TestTrialBalanceTiesOut(t *testing.T) {
	w := newWorld(t)
	w.seedActivity(t)

	tb, err := w.reports.TrialBalance(context.Background(), date(2024, 12, 31))
	if err != nil {
		t.Fatalf("trial balance: %v", err)
	}
	if !tb.IsBalanced || tb.VarianceMinor != 0 {
		t.Fatalf("variance %d, want 0", tb.VarianceMinor)
	}
	if tb.TotalDebitMinor != tb.TotalCreditMinor {
		t.Fatalf("totals (%d, %d) differ", tb.TotalDebitMinor, tb.TotalCreditMinor)
	}
	byCode := make(map[string]reports.TrialBalanceRow)
	for _, row := range tb.Rows {
		byCode[row.Code] = row
	}
	// Cash: +100000 -30000 = 70000 debit.
	if row := byCode["1000"]; row.DebitMinor != 70000 || row.CreditMinor != 0 {
		t.Errorf("cash row %+v", row)
	}
	// Revenue: 150000 on the credit side.
	if row := byCode["4000"]; row.CreditMinor != 150000 || row.DebitMinor != 0 {
		t.Errorf("revenue row %+v", row)
	}
	// Every active account appears, even without activity.
	if len(tb.Rows) != 4 {
		t.Errorf("%d rows, want 4", len(tb.Rows))
	}
}

func TestTrialBalanceAsOfCutoff(t *testing.T) {
	w := newWorld(t)
	w.seedActivity(t)

	tb, err := w.reports.TrialBalance(context.Background(), date(2024, 1, 31))
	if err != nil {
		t.Fatalf("trial balance: %v", err)
	}
	byCode := make(map[string]reports.TrialBalanceRow)
	for _, row := range tb.Rows {
		byCode[row.Code] = row
	}
	// The February salaries voucher is outside the cutoff.
	if row := byCode["5000"]; row.DebitMinor != 0 {
		t.Errorf("salaries row %+v, want zero", row)
	}
	if row := byCode["1000"]; row.DebitMinor != 100000 {
		t.Errorf("cash row %+v, want 100000 debit", row)
	}
	if !tb.IsBalanced {
		t.Error("cutoff view should still balance")
	}
}

func TestAccountingEquation(t *testing.T) {
	w := newWorld(t)
	w.seedActivity(t)

	eq, err := w.reports.AccountingEquation(context.Background())
	if err != nil {
		t.Fatalf("equation: %v", err)
	}
	// Assets: cash 70000 + receivables 50000.
	if eq.AssetsMinor != 120000 {
		t.Errorf("assets %d, want 120000", eq.AssetsMinor)
	}
	// Net income: revenue 150000 - salaries 30000.
	if eq.NetIncomeMinor != 120000 {
		t.Errorf("net income %d, want 120000", eq.NetIncomeMinor)
	}
	if !eq.Balanced || eq.DifferenceMinor != 0 {
		t.Errorf("difference %d, want 0", eq.DifferenceMinor)
	}
}

func TestGeneralLedgerRunningBalance(t *testing.T) {
	w := newWorld(t)
	w.seedActivity(t)

	gl, err := w.reports.GeneralLedger(context.Background(), w.cash.ID, date(2024, 1, 1), date(2024, 12, 31))
	if err != nil {
		t.Fatalf("general ledger: %v", err)
	}
	if gl.OpeningMinor != 0 {
		t.Errorf("opening %d, want 0", gl.OpeningMinor)
	}
	if len(gl.Rows) != 2 {
		t.Fatalf("%d rows, want 2", len(gl.Rows))
	}
	if gl.Rows[0].BalanceMinor != 100000 {
		t.Errorf("row 0 running balance %d, want 100000", gl.Rows[0].BalanceMinor)
	}
	if gl.Rows[1].BalanceMinor != 70000 || gl.Rows[1].CreditMinor != 30000 {
		t.Errorf("row 1 %+v", gl.Rows[1])
	}
	if gl.ClosingMinor != 70000 {
		t.Errorf("closing %d, want 70000", gl.ClosingMinor)
	}
}

func TestGeneralLedgerOpeningBalance(t *testing.T) {
	w := newWorld(t)
	w.seedActivity(t)

	gl, err := w.reports.GeneralLedger(context.Background(), w.cash.ID, date(2024, 2, 1), date(2024, 12, 31))
	if err != nil {
		t.Fatalf("general ledger: %v", err)
	}
	// January activity folds into the opening balance.
	if gl.OpeningMinor != 100000 {
		t.Errorf("opening %d, want 100000", gl.OpeningMinor)
	}
	if len(gl.Rows) != 1 || gl.Rows[0].BalanceMinor != 70000 {
		t.Errorf("rows %+v", gl.Rows)
	}
}

// A reversal's offsetting lines stay in ledger history, so reports see
// both the original and the mirror.
func TestReversalVisibleInLedgerHistory(t *testing.T) {
	w := newWorld(t)
	v := w.post(t, ledger.VoucherTypeJournal, date(2024, 2, 5), "Pay salaries", w.salaries, w.cash, 30000)
	if _, err := w.journal.Reverse(context.Background(), v.ID, date(2024, 2, 6), ""); err != nil {
		t.Fatalf("reverse: %v", err)
	}

	gl, err := w.reports.GeneralLedger(context.Background(), w.cash.ID, date(2024, 1, 1), date(2024, 12, 31))
	if err != nil {
		t.Fatalf("general ledger: %v", err)
	}
	if len(gl.Rows) != 2 {
		t.Fatalf("%d rows, want original plus mirror", len(gl.Rows))
	}
	if gl.ClosingMinor != 0 {
		t.Errorf("closing %d, want 0", gl.ClosingMinor)
	}
}

func TestIncomeStatement(t *testing.T) {
	w := newWorld(t)
	w.seedActivity(t)

	is, err := w.reports.IncomeStatement(context.Background(), date(2024, 1, 1), date(2024, 12, 31))
	if err != nil {
		t.Fatalf("income statement: %v", err)
	}
	if is.TotalRevenueMinor != 150000 || is.TotalExpensesMinor != 30000 {
		t.Errorf("totals (%d, %d)", is.TotalRevenueMinor, is.TotalExpensesMinor)
	}
	if is.NetIncomeMinor != 120000 {
		t.Errorf("net income %d, want 120000", is.NetIncomeMinor)
	}
}

func TestBalanceSheetBalances(t *testing.T) {
	w := newWorld(t)
	w.seedActivity(t)

	bs, err := w.reports.BalanceSheet(context.Background(), date(2024, 12, 31))
	if err != nil {
		t.Fatalf("balance sheet: %v", err)
	}
	if bs.TotalAssetsMinor != 120000 {
		t.Errorf("assets %d, want 120000", bs.TotalAssetsMinor)
	}
	if bs.RetainedEarningsMinor != 120000 {
		t.Errorf("retained earnings %d, want 120000", bs.RetainedEarningsMinor)
	}
	if !bs.Balanced {
		t.Error("balance sheet should balance")
	}
}

func TestIntegrityFlagsDivergedCache(t *testing.T) {
	w := newWorld(t)
	w.seedActivity(t)

	anomalies, err := w.reports.Integrity(context.Background())
	if err != nil {
		t.Fatalf("integrity: %v", err)
	}
	if len(anomalies) != 0 {
		t.Fatalf("clean ledger reported %d anomalies", len(anomalies))
	}

	// Tamper with a cached balance behind the store's back.
	bad := w.cash
	bad.BalanceMinor = 999999
	w.store.SeedAccount(bad)

	anomalies, err = w.reports.Integrity(context.Background())
	if err != nil {
		t.Fatalf("integrity: %v", err)
	}
	if len(anomalies) != 1 || anomalies[0].AccountID != w.cash.ID {
		t.Fatalf("anomalies %+v, want cash flagged", anomalies)
	}
	if anomalies[0].ComputedMinor != 70000 {
		t.Errorf("computed %d, want 70000", anomalies[0].ComputedMinor)
	}
}
