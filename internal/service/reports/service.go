// Package reports computes read-only projections over the chart of
// accounts and the voucher ledger: general ledger, trial balance,
// statement rollups and the accounting-equation diagnostic. Nothing in
// this package mutates a balance; divergence between a recomputed balance
// and the cached one is reported, never reconciled.
package reports

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/ledgerhouse/ledgerhouse/internal/errs"
	"github.com/ledgerhouse/ledgerhouse/internal/ledger"
)

// Repo defines the reads the aggregator folds over.
type Repo interface {
	ListAccounts(ctx context.Context) ([]ledger.Account, error)
	GetAccount(ctx context.Context, accountID uuid.UUID) (ledger.Account, error)
	// ListEffectiveVouchers returns vouchers whose lines are part of
	// ledger history: posted ones and reversed ones (a reversal adds an
	// offsetting voucher, it never unwinds the original's lines).
	ListEffectiveVouchers(ctx context.Context) ([]ledger.Voucher, error)
}

// LedgerRow is one line of a general ledger statement.
type LedgerRow struct {
	Date          time.Time
	VoucherID     uuid.UUID
	VoucherNumber string
	VoucherType   ledger.VoucherType
	Description   string
	Reference     string
	DebitMinor    int64
	CreditMinor   int64
	// BalanceMinor is the running balance after this row, signed per the
	// account's normal-side convention.
	BalanceMinor int64
}

// GeneralLedger is a per-account statement over a period.
type GeneralLedger struct {
	Account      ledger.Account
	From, To     time.Time
	OpeningMinor int64
	Rows         []LedgerRow
	ClosingMinor int64
}

// AccountActivity summarizes one account over a period.
type AccountActivity struct {
	Account          ledger.Account
	OpeningMinor     int64
	TotalDebitMinor  int64
	TotalCreditMinor int64
	ClosingMinor     int64
	TransactionCount int
}

// TrialBalanceRow places an account's net balance on its heavier side.
type TrialBalanceRow struct {
	AccountID   uuid.UUID
	Code        string
	Name        string
	Type        ledger.AccountType
	DebitMinor  int64
	CreditMinor int64
}

// TrialBalance lists all active accounts as of a date and verifies, but
// never enforces, that total debits equal total credits.
type TrialBalance struct {
	AsOf             time.Time
	Rows             []TrialBalanceRow
	TotalDebitMinor  int64
	TotalCreditMinor int64
	IsBalanced       bool
	VarianceMinor    int64
}

// EquationCheck is the Assets = Liabilities + Equity diagnostic.
// Open revenue and expense balances count as retained earnings.
type EquationCheck struct {
	AssetsMinor      int64
	LiabilitiesMinor int64
	EquityMinor      int64
	NetIncomeMinor   int64
	DifferenceMinor  int64
	Balanced         bool
}

// StatementLine is one account row in a rollup statement.
type StatementLine struct {
	AccountID   uuid.UUID
	Code        string
	Name        string
	AmountMinor int64
}

// IncomeStatement rolls up revenue and expense activity over a period.
type IncomeStatement struct {
	From, To           time.Time
	Revenue            []StatementLine
	Expenses           []StatementLine
	TotalRevenueMinor  int64
	TotalExpensesMinor int64
	NetIncomeMinor     int64
}

// BalanceSheet rolls up asset, liability and equity balances as of a date.
type BalanceSheet struct {
	AsOf                  time.Time
	Assets                []StatementLine
	Liabilities           []StatementLine
	Equity                []StatementLine
	RetainedEarningsMinor int64
	TotalAssetsMinor      int64
	TotalLiabilitiesMinor int64
	TotalEquityMinor      int64
	Balanced              bool
}

// BalanceAnomaly flags a cached balance diverging from the ledger sum.
type BalanceAnomaly struct {
	AccountID     uuid.UUID
	Code          string
	CachedMinor   int64
	ComputedMinor int64
}

// Service exposes the read-only reporting surface.
type Service interface {
	GeneralLedger(ctx context.Context, accountID uuid.UUID, from, to time.Time) (GeneralLedger, error)
	GeneralLedgerSummary(ctx context.Context, from, to time.Time) ([]AccountActivity, error)
	TrialBalance(ctx context.Context, asOf time.Time) (TrialBalance, error)
	AccountingEquation(ctx context.Context) (EquationCheck, error)
	IncomeStatement(ctx context.Context, from, to time.Time) (IncomeStatement, error)
	BalanceSheet(ctx context.Context, asOf time.Time) (BalanceSheet, error)
	// Integrity recomputes every balance from ledger history and reports
	// divergences from the cached account balances.
	Integrity(ctx context.Context) ([]BalanceAnomaly, error)
}

type service struct {
	repo Repo
}

// New constructs the aggregator over a store.
func New(repo Repo) Service { return &service{repo: repo} }

// entryRef pairs a voucher with one of its lines for ordered scans.
type entryRef struct {
	v  *ledger.Voucher
	ln *ledger.VoucherLine
}

func (s *service) GeneralLedger(ctx context.Context, accountID uuid.UUID, from, to time.Time) (GeneralLedger, error) {
	if accountID == uuid.Nil {
		return GeneralLedger{}, errs.ErrInvalid
	}
	acc, err := s.repo.GetAccount(ctx, accountID)
	if err != nil {
		return GeneralLedger{}, err
	}
	refs, err := s.linesFor(ctx, func(ln ledger.VoucherLine) bool { return ln.AccountID == accountID })
	if err != nil {
		return GeneralLedger{}, err
	}
	out := GeneralLedger{Account: acc, From: from, To: to}
	running := int64(0)
	for _, r := range refs {
		units, _ := r.ln.Amount.MinorUnits()
		signed := acc.SignedMinor(r.ln.Side, units)
		if r.v.Date.Before(from) {
			out.OpeningMinor += signed
			continue
		}
		if !to.IsZero() && r.v.Date.After(to) {
			continue
		}
		running += signed
		desc := r.ln.Description
		if desc == "" {
			desc = r.v.Description
		}
		out.Rows = append(out.Rows, LedgerRow{
			Date:          r.v.Date,
			VoucherID:     r.v.ID,
			VoucherNumber: r.v.Number,
			VoucherType:   r.v.Type,
			Description:   desc,
			Reference:     r.v.Reference,
			DebitMinor:    r.ln.DebitMinor(),
			CreditMinor:   r.ln.CreditMinor(),
			BalanceMinor:  out.OpeningMinor + running,
		})
	}
	out.ClosingMinor = out.OpeningMinor + running
	return out, nil
}

func (s *service) GeneralLedgerSummary(ctx context.Context, from, to time.Time) ([]AccountActivity, error) {
	accounts, err := s.repo.ListAccounts(ctx)
	if err != nil {
		return nil, err
	}
	refs, err := s.linesFor(ctx, nil)
	if err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]*AccountActivity, len(accounts))
	out := make([]AccountActivity, len(accounts))
	for i, a := range accounts {
		out[i] = AccountActivity{Account: a}
		byID[a.ID] = &out[i]
	}
	for _, r := range refs {
		act, ok := byID[r.ln.AccountID]
		if !ok {
			continue
		}
		units, _ := r.ln.Amount.MinorUnits()
		signed := act.Account.SignedMinor(r.ln.Side, units)
		if r.v.Date.Before(from) {
			act.OpeningMinor += signed
			continue
		}
		if !to.IsZero() && r.v.Date.After(to) {
			continue
		}
		act.TotalDebitMinor += r.ln.DebitMinor()
		act.TotalCreditMinor += r.ln.CreditMinor()
		act.TransactionCount++
	}
	for i := range out {
		a := &out[i]
		period := a.TotalDebitMinor - a.TotalCreditMinor
		if a.Account.NormalSide == ledger.SideCredit {
			period = -period
		}
		a.ClosingMinor = a.OpeningMinor + period
	}
	return out, nil
}

func (s *service) TrialBalance(ctx context.Context, asOf time.Time) (TrialBalance, error) {
	accounts, err := s.repo.ListAccounts(ctx)
	if err != nil {
		return TrialBalance{}, err
	}
	net, err := s.rawNetByAccount(ctx, asOf)
	if err != nil {
		return TrialBalance{}, err
	}
	tb := TrialBalance{AsOf: asOf}
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].Code < accounts[j].Code })
	for _, a := range accounts {
		if !a.Active {
			continue
		}
		row := TrialBalanceRow{AccountID: a.ID, Code: a.Code, Name: a.Name, Type: a.Type}
		raw := net[a.ID]
		if raw >= 0 {
			row.DebitMinor = raw
		} else {
			row.CreditMinor = -raw
		}
		tb.Rows = append(tb.Rows, row)
		tb.TotalDebitMinor += row.DebitMinor
		tb.TotalCreditMinor += row.CreditMinor
	}
	tb.VarianceMinor = tb.TotalDebitMinor - tb.TotalCreditMinor
	if tb.VarianceMinor < 0 {
		tb.VarianceMinor = -tb.VarianceMinor
	}
	tb.IsBalanced = tb.VarianceMinor == 0
	return tb, nil
}

func (s *service) AccountingEquation(ctx context.Context) (EquationCheck, error) {
	accounts, err := s.repo.ListAccounts(ctx)
	if err != nil {
		return EquationCheck{}, err
	}
	net, err := s.rawNetByAccount(ctx, time.Time{})
	if err != nil {
		return EquationCheck{}, err
	}
	var check EquationCheck
	for _, a := range accounts {
		signed := net[a.ID]
		if a.NormalSide == ledger.SideCredit {
			signed = -signed
		}
		switch a.Type {
		case ledger.AccountTypeAsset:
			check.AssetsMinor += signed
		case ledger.AccountTypeLiability:
			check.LiabilitiesMinor += signed
		case ledger.AccountTypeEquity:
			check.EquityMinor += signed
		case ledger.AccountTypeRevenue:
			check.NetIncomeMinor += signed
		case ledger.AccountTypeExpense:
			check.NetIncomeMinor -= signed
		}
	}
	check.DifferenceMinor = check.AssetsMinor - (check.LiabilitiesMinor + check.EquityMinor + check.NetIncomeMinor)
	check.Balanced = check.DifferenceMinor == 0
	return check, nil
}

func (s *service) IncomeStatement(ctx context.Context, from, to time.Time) (IncomeStatement, error) {
	activity, err := s.GeneralLedgerSummary(ctx, from, to)
	if err != nil {
		return IncomeStatement{}, err
	}
	out := IncomeStatement{From: from, To: to}
	for _, act := range activity {
		a := act.Account
		period := act.TotalDebitMinor - act.TotalCreditMinor
		if a.NormalSide == ledger.SideCredit {
			period = -period
		}
		switch a.Type {
		case ledger.AccountTypeRevenue:
			if period != 0 {
				out.Revenue = append(out.Revenue, StatementLine{AccountID: a.ID, Code: a.Code, Name: a.Name, AmountMinor: period})
				out.TotalRevenueMinor += period
			}
		case ledger.AccountTypeExpense:
			if period != 0 {
				out.Expenses = append(out.Expenses, StatementLine{AccountID: a.ID, Code: a.Code, Name: a.Name, AmountMinor: period})
				out.TotalExpensesMinor += period
			}
		}
	}
	out.NetIncomeMinor = out.TotalRevenueMinor - out.TotalExpensesMinor
	return out, nil
}

func (s *service) BalanceSheet(ctx context.Context, asOf time.Time) (BalanceSheet, error) {
	accounts, err := s.repo.ListAccounts(ctx)
	if err != nil {
		return BalanceSheet{}, err
	}
	net, err := s.rawNetByAccount(ctx, asOf)
	if err != nil {
		return BalanceSheet{}, err
	}
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].Code < accounts[j].Code })
	out := BalanceSheet{AsOf: asOf}
	for _, a := range accounts {
		signed := net[a.ID]
		if a.NormalSide == ledger.SideCredit {
			signed = -signed
		}
		line := StatementLine{AccountID: a.ID, Code: a.Code, Name: a.Name, AmountMinor: signed}
		switch a.Type {
		case ledger.AccountTypeAsset:
			if signed != 0 {
				out.Assets = append(out.Assets, line)
				out.TotalAssetsMinor += signed
			}
		case ledger.AccountTypeLiability:
			if signed != 0 {
				out.Liabilities = append(out.Liabilities, line)
				out.TotalLiabilitiesMinor += signed
			}
		case ledger.AccountTypeEquity:
			if signed != 0 {
				out.Equity = append(out.Equity, line)
				out.TotalEquityMinor += signed
			}
		case ledger.AccountTypeRevenue:
			out.RetainedEarningsMinor += signed
		case ledger.AccountTypeExpense:
			out.RetainedEarningsMinor -= signed
		}
	}
	out.TotalEquityMinor += out.RetainedEarningsMinor
	out.Balanced = out.TotalAssetsMinor == out.TotalLiabilitiesMinor+out.TotalEquityMinor
	return out, nil
}

func (s *service) Integrity(ctx context.Context) ([]BalanceAnomaly, error) {
	accounts, err := s.repo.ListAccounts(ctx)
	if err != nil {
		return nil, err
	}
	refs, err := s.linesFor(ctx, nil)
	if err != nil {
		return nil, err
	}
	computed := make(map[uuid.UUID]int64, len(accounts))
	byID := make(map[uuid.UUID]ledger.Account, len(accounts))
	for _, a := range accounts {
		byID[a.ID] = a
	}
	for _, r := range refs {
		acc, ok := byID[r.ln.AccountID]
		if !ok {
			continue
		}
		units, _ := r.ln.Amount.MinorUnits()
		computed[acc.ID] += acc.SignedMinor(r.ln.Side, units)
	}
	anomalies := make([]BalanceAnomaly, 0)
	for _, a := range accounts {
		if a.BalanceMinor != computed[a.ID] {
			anomalies = append(anomalies, BalanceAnomaly{
				AccountID:     a.ID,
				Code:          a.Code,
				CachedMinor:   a.BalanceMinor,
				ComputedMinor: computed[a.ID],
			})
		}
	}
	return anomalies, nil
}

// linesFor returns line refs from effective vouchers ordered by
// (date, created-at, voucher number), optionally filtered.
func (s *service) linesFor(ctx context.Context, keep func(ledger.VoucherLine) bool) ([]entryRef, error) {
	vouchers, err := s.repo.ListEffectiveVouchers(ctx)
	if err != nil {
		return nil, err
	}
	sort.Slice(vouchers, func(i, j int) bool {
		if !vouchers[i].Date.Equal(vouchers[j].Date) {
			return vouchers[i].Date.Before(vouchers[j].Date)
		}
		if !vouchers[i].CreatedAt.Equal(vouchers[j].CreatedAt) {
			return vouchers[i].CreatedAt.Before(vouchers[j].CreatedAt)
		}
		return vouchers[i].Number < vouchers[j].Number
	})
	refs := make([]entryRef, 0)
	for i := range vouchers {
		v := &vouchers[i]
		for j := range v.Lines {
			ln := &v.Lines[j]
			if keep != nil && !keep(*ln) {
				continue
			}
			refs = append(refs, entryRef{v: v, ln: ln})
		}
	}
	return refs, nil
}

// rawNetByAccount folds debits-credits per account up to asOf (inclusive);
// zero asOf means no cutoff.
func (s *service) rawNetByAccount(ctx context.Context, asOf time.Time) (map[uuid.UUID]int64, error) {
	vouchers, err := s.repo.ListEffectiveVouchers(ctx)
	if err != nil {
		return nil, err
	}
	net := make(map[uuid.UUID]int64)
	for _, v := range vouchers {
		if !asOf.IsZero() && v.Date.After(asOf) {
			continue
		}
		for _, ln := range v.Lines {
			net[ln.AccountID] += ln.DebitMinor() - ln.CreditMinor()
		}
	}
	return net, nil
}
