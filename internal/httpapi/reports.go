package httpapi

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/ledgerhouse/ledgerhouse/internal/ledger"
	"github.com/ledgerhouse/ledgerhouse/internal/service/reports"
)

type ledgerRowResponse struct {
	Date          time.Time          `json:"date"`
	VoucherID     uuid.UUID          `json:"voucher_id"`
	VoucherNumber string             `json:"voucher_number"`
	VoucherType   ledger.VoucherType `json:"voucher_type"`
	Description   string             `json:"description"`
	Reference     string             `json:"reference,omitempty"`
	DebitMinor    int64              `json:"debit_minor"`
	CreditMinor   int64              `json:"credit_minor"`
	BalanceMinor  int64              `json:"balance_minor"`
}

type generalLedgerResponse struct {
	Account      accountResponse     `json:"account"`
	From         time.Time           `json:"from"`
	To           time.Time           `json:"to"`
	OpeningMinor int64               `json:"opening_minor"`
	Rows         []ledgerRowResponse `json:"rows"`
	ClosingMinor int64               `json:"closing_minor"`
}

type activityResponse struct {
	Account          accountResponse `json:"account"`
	OpeningMinor     int64           `json:"opening_minor"`
	TotalDebitMinor  int64           `json:"total_debit_minor"`
	TotalCreditMinor int64           `json:"total_credit_minor"`
	ClosingMinor     int64           `json:"closing_minor"`
	TransactionCount int             `json:"transaction_count"`
}

type trialBalanceRowResponse struct {
	AccountID   uuid.UUID          `json:"account_id"`
	Code        string             `json:"code"`
	Name        string             `json:"name"`
	Type        ledger.AccountType `json:"type"`
	DebitMinor  int64              `json:"debit_minor"`
	CreditMinor int64              `json:"credit_minor"`
}

type trialBalanceResponse struct {
	AsOf             time.Time                 `json:"as_of"`
	Rows             []trialBalanceRowResponse `json:"rows"`
	TotalDebitMinor  int64                     `json:"total_debit_minor"`
	TotalCreditMinor int64                     `json:"total_credit_minor"`
	IsBalanced       bool                      `json:"is_balanced"`
	VarianceMinor    int64                     `json:"variance_minor"`
}

type equationResponse struct {
	AssetsMinor      int64 `json:"assets_minor"`
	LiabilitiesMinor int64 `json:"liabilities_minor"`
	EquityMinor      int64 `json:"equity_minor"`
	NetIncomeMinor   int64 `json:"net_income_minor"`
	DifferenceMinor  int64 `json:"difference_minor"`
	Balanced         bool  `json:"balanced"`
}

type statementLineResponse struct {
	AccountID   uuid.UUID `json:"account_id"`
	Code        string    `json:"code"`
	Name        string    `json:"name"`
	AmountMinor int64     `json:"amount_minor"`
}

type incomeStatementResponse struct {
	From               time.Time               `json:"from"`
	To                 time.Time               `json:"to"`
	Revenue            []statementLineResponse `json:"revenue"`
	Expenses           []statementLineResponse `json:"expenses"`
	TotalRevenueMinor  int64                   `json:"total_revenue_minor"`
	TotalExpensesMinor int64                   `json:"total_expenses_minor"`
	NetIncomeMinor     int64                   `json:"net_income_minor"`
}

type balanceSheetResponse struct {
	AsOf                  time.Time               `json:"as_of"`
	Assets                []statementLineResponse `json:"assets"`
	Liabilities           []statementLineResponse `json:"liabilities"`
	Equity                []statementLineResponse `json:"equity"`
	RetainedEarningsMinor int64                   `json:"retained_earnings_minor"`
	TotalAssetsMinor      int64                   `json:"total_assets_minor"`
	TotalLiabilitiesMinor int64                   `json:"total_liabilities_minor"`
	TotalEquityMinor      int64                   `json:"total_equity_minor"`
	Balanced              bool                    `json:"balanced"`
}

type anomalyResponse struct {
	AccountID     uuid.UUID `json:"account_id"`
	Code          string    `json:"code"`
	CachedMinor   int64     `json:"cached_minor"`
	ComputedMinor int64     `json:"computed_minor"`
}

// generalLedger handles GET /v1/reports/general-ledger. Requires
// account_id; from/to default to an open period; format=csv streams CSV.
func (s *Server) generalLedger(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	accountID, err := uuid.Parse(q.Get("account_id"))
	if err != nil {
		badRequest(w, "account_id is required")
		return
	}
	from, to, ok := parsePeriod(w, r)
	if !ok {
		return
	}
	gl, err := s.reportsSvc.GeneralLedger(r.Context(), accountID, from, to)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	if q.Get("format") == "csv" {
		writeGeneralLedgerCSV(w, gl)
		return
	}
	rows := make([]ledgerRowResponse, 0, len(gl.Rows))
	for _, row := range gl.Rows {
		rows = append(rows, ledgerRowResponse(row))
	}
	toJSON(w, http.StatusOK, generalLedgerResponse{
		Account:      toAccountResponse(gl.Account),
		From:         gl.From,
		To:           gl.To,
		OpeningMinor: gl.OpeningMinor,
		Rows:         rows,
		ClosingMinor: gl.ClosingMinor,
	})
}

func (s *Server) generalLedgerSummary(w http.ResponseWriter, r *http.Request) {
	from, to, ok := parsePeriod(w, r)
	if !ok {
		return
	}
	acts, err := s.reportsSvc.GeneralLedgerSummary(r.Context(), from, to)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	out := make([]activityResponse, 0, len(acts))
	for _, a := range acts {
		out = append(out, activityResponse{
			Account:          toAccountResponse(a.Account),
			OpeningMinor:     a.OpeningMinor,
			TotalDebitMinor:  a.TotalDebitMinor,
			TotalCreditMinor: a.TotalCreditMinor,
			ClosingMinor:     a.ClosingMinor,
			TransactionCount: a.TransactionCount,
		})
	}
	toJSON(w, http.StatusOK, out)
}

// trialBalance handles GET /v1/reports/trial-balance; as_of defaults to
// now and format=csv streams CSV.
func (s *Server) trialBalance(w http.ResponseWriter, r *http.Request) {
	asOf := time.Now().UTC()
	if raw := r.URL.Query().Get("as_of"); raw != "" {
		t, err := parseTimeParam(raw)
		if err != nil {
			badRequest(w, "invalid as_of")
			return
		}
		asOf = t
	}
	tb, err := s.reportsSvc.TrialBalance(r.Context(), asOf)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	if r.URL.Query().Get("format") == "csv" {
		writeTrialBalanceCSV(w, tb)
		return
	}
	rows := make([]trialBalanceRowResponse, 0, len(tb.Rows))
	for _, row := range tb.Rows {
		rows = append(rows, trialBalanceRowResponse(row))
	}
	toJSON(w, http.StatusOK, trialBalanceResponse{
		AsOf:             tb.AsOf,
		Rows:             rows,
		TotalDebitMinor:  tb.TotalDebitMinor,
		TotalCreditMinor: tb.TotalCreditMinor,
		IsBalanced:       tb.IsBalanced,
		VarianceMinor:    tb.VarianceMinor,
	})
}

func (s *Server) incomeStatement(w http.ResponseWriter, r *http.Request) {
	from, to, ok := parsePeriod(w, r)
	if !ok {
		return
	}
	is, err := s.reportsSvc.IncomeStatement(r.Context(), from, to)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	toJSON(w, http.StatusOK, incomeStatementResponse{
		From:               is.From,
		To:                 is.To,
		Revenue:            toStatementLines(is.Revenue),
		Expenses:           toStatementLines(is.Expenses),
		TotalRevenueMinor:  is.TotalRevenueMinor,
		TotalExpensesMinor: is.TotalExpensesMinor,
		NetIncomeMinor:     is.NetIncomeMinor,
	})
}

func (s *Server) balanceSheet(w http.ResponseWriter, r *http.Request) {
	asOf := time.Now().UTC()
	if raw := r.URL.Query().Get("as_of"); raw != "" {
		t, err := parseTimeParam(raw)
		if err != nil {
			badRequest(w, "invalid as_of")
			return
		}
		asOf = t
	}
	bs, err := s.reportsSvc.BalanceSheet(r.Context(), asOf)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	toJSON(w, http.StatusOK, balanceSheetResponse{
		AsOf:                  bs.AsOf,
		Assets:                toStatementLines(bs.Assets),
		Liabilities:           toStatementLines(bs.Liabilities),
		Equity:                toStatementLines(bs.Equity),
		RetainedEarningsMinor: bs.RetainedEarningsMinor,
		TotalAssetsMinor:      bs.TotalAssetsMinor,
		TotalLiabilitiesMinor: bs.TotalLiabilitiesMinor,
		TotalEquityMinor:      bs.TotalEquityMinor,
		Balanced:              bs.Balanced,
	})
}

func (s *Server) accountingEquation(w http.ResponseWriter, r *http.Request) {
	eq, err := s.reportsSvc.AccountingEquation(r.Context())
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	toJSON(w, http.StatusOK, equationResponse(eq))
}

func (s *Server) integrityReport(w http.ResponseWriter, r *http.Request) {
	anomalies, err := s.reportsSvc.Integrity(r.Context())
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	out := make([]anomalyResponse, 0, len(anomalies))
	for _, a := range anomalies {
		out = append(out, anomalyResponse(a))
	}
	toJSON(w, http.StatusOK, struct {
		Clean     bool              `json:"clean"`
		Anomalies []anomalyResponse `json:"anomalies"`
	}{Clean: len(out) == 0, Anomalies: out})
}

func toStatementLines(ls []reports.StatementLine) []statementLineResponse {
	out := make([]statementLineResponse, 0, len(ls))
	for _, l := range ls {
		out = append(out, statementLineResponse(l))
	}
	return out
}

// parsePeriod reads from/to query params; absent bounds leave the period
// open on that side (zero from, now for to).
func parsePeriod(w http.ResponseWriter, r *http.Request) (from, to time.Time, ok bool) {
	q := r.URL.Query()
	if raw := q.Get("from"); raw != "" {
		t, err := parseTimeParam(raw)
		if err != nil {
			badRequest(w, "invalid from")
			return from, to, false
		}
		from = t
	}
	to = time.Now().UTC()
	if raw := q.Get("to"); raw != "" {
		t, err := parseTimeParam(raw)
		if err != nil {
			badRequest(w, "invalid to")
			return from, to, false
		}
		to = t
	}
	return from, to, true
}
