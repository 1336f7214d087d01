package httpapi

import (
	"time"

	"github.com/google/uuid"
	"github.com/govalues/money"

	"github.com/ledgerhouse/ledgerhouse/internal/ledger"
	"github.com/ledgerhouse/ledgerhouse/internal/meta"
)

// Accounts

type postAccountRequest struct {
	Code     string             `json:"code"`
	Name     string             `json:"name"`
	Type     ledger.AccountType `json:"type"`
	Category string             `json:"category,omitempty"`
	Currency string             `json:"currency"`
	Tags     []string           `json:"tags,omitempty"`
	Metadata map[string]string  `json:"metadata,omitempty"`
	System   bool               `json:"system,omitempty"`
	// AllowPosting defaults to true when omitted.
	AllowPosting        *bool `json:"allow_posting,omitempty"`
	OpeningBalanceMinor int64 `json:"opening_balance_minor,omitempty"`
}

type updateAccountRequest struct {
	Name         *string           `json:"name,omitempty"`
	Category     *string           `json:"category,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	AllowPosting *bool             `json:"allow_posting,omitempty"`
	Active       *bool             `json:"active,omitempty"`
}

type accountResponse struct {
	ID           uuid.UUID          `json:"id"`
	Code         string             `json:"code"`
	Name         string             `json:"name"`
	Type         ledger.AccountType `json:"type"`
	Category     string             `json:"category,omitempty"`
	NormalSide   ledger.Side        `json:"normal_side"`
	Currency     string             `json:"currency"`
	BalanceMinor int64              `json:"balance_minor"`
	Balance      string             `json:"balance"`
	Tags         []string           `json:"tags,omitempty"`
	Metadata     map[string]string  `json:"metadata,omitempty"`
	System       bool               `json:"system"`
	AllowPosting bool               `json:"allow_posting"`
	Active       bool               `json:"active"`
	CreatedAt    time.Time          `json:"created_at"`
}

type dedupRequest struct {
	TagPrefix []string `json:"tag_prefix"`
}

// Vouchers

type postVoucherRequest struct {
	Type        ledger.VoucherType `json:"type"`
	Date        time.Time          `json:"date"`
	Description string             `json:"description"`
	Reference   string             `json:"reference,omitempty"`
	Currency    string             `json:"currency"`
	CreatedBy   string             `json:"created_by,omitempty"`
	Metadata    map[string]string  `json:"metadata,omitempty"`
	Lines       []postVoucherLine  `json:"lines"`
}

// postVoucherLine carries exactly one of debit_minor/credit_minor > 0.
type postVoucherLine struct {
	AccountID   uuid.UUID `json:"account_id"`
	Description string    `json:"description"`
	DebitMinor  int64     `json:"debit_minor,omitempty"`
	CreditMinor int64     `json:"credit_minor,omitempty"`
	Department  string    `json:"department,omitempty"`
	Project     string    `json:"project,omitempty"`
	CostCenter  string    `json:"cost_center,omitempty"`
}

type voucherResponse struct {
	ID               uuid.UUID            `json:"id"`
	Number           string               `json:"number"`
	Type             ledger.VoucherType   `json:"type"`
	Date             time.Time            `json:"date"`
	Description      string               `json:"description"`
	Reference        string               `json:"reference,omitempty"`
	Currency         string               `json:"currency"`
	Status           ledger.VoucherStatus `json:"status"`
	FiscalYear       int                  `json:"fiscal_year"`
	FiscalPeriod     int                  `json:"fiscal_period"`
	CreatedBy        string               `json:"created_by,omitempty"`
	ReversedBy       *uuid.UUID           `json:"reversed_by,omitempty"`
	ReversalOf       *uuid.UUID           `json:"reversal_of,omitempty"`
	Metadata         map[string]string    `json:"metadata,omitempty"`
	CreatedAt        time.Time            `json:"created_at"`
	PostedAt         *time.Time           `json:"posted_at,omitempty"`
	TotalDebitMinor  int64                `json:"total_debit_minor"`
	TotalCreditMinor int64                `json:"total_credit_minor"`
	Lines            []voucherLineResponse `json:"lines"`
}

type voucherLineResponse struct {
	ID          uuid.UUID   `json:"id"`
	AccountID   uuid.UUID   `json:"account_id"`
	Description string      `json:"description"`
	Side        ledger.Side `json:"side"`
	AmountMinor int64       `json:"amount_minor"`
	Amount      string      `json:"amount"`
	Department  string      `json:"department,omitempty"`
	Project     string      `json:"project,omitempty"`
	CostCenter  string      `json:"cost_center,omitempty"`
}

type balanceCheckResponse struct {
	TotalDebitMinor  int64 `json:"total_debit_minor"`
	TotalCreditMinor int64 `json:"total_credit_minor"`
	DifferenceMinor  int64 `json:"difference_minor"`
	Balanced         bool  `json:"balanced"`
}

type reverseVoucherRequest struct {
	Date      *time.Time `json:"date,omitempty"`
	CreatedBy string     `json:"created_by,omitempty"`
}

// Parties

type postPartyRequest struct {
	Code        string `json:"code"`
	DisplayName string `json:"display_name"`
	// AutoCreateAccount defaults to true when omitted.
	AutoCreateAccount *bool `json:"auto_create_account,omitempty"`
}

type renamePartyRequest struct {
	DisplayName string `json:"display_name"`
}

type partyResponse struct {
	ID          uuid.UUID        `json:"id"`
	Kind        ledger.PartyKind `json:"kind"`
	Code        string           `json:"code"`
	DisplayName string           `json:"display_name"`
	AccountID   *uuid.UUID       `json:"account_id,omitempty"`
	AccountCode string           `json:"account_code,omitempty"`
	Active      bool             `json:"active"`
	CreatedAt   time.Time        `json:"created_at"`
}

// Converters

func toAccountDomain(req postAccountRequest) ledger.Account {
	allowPosting := true
	if req.AllowPosting != nil {
		allowPosting = *req.AllowPosting
	}
	return ledger.Account{
		Code:         req.Code,
		Name:         req.Name,
		Type:         req.Type,
		Category:     req.Category,
		Currency:     req.Currency,
		Tags:         req.Tags,
		Metadata:     meta.New(req.Metadata),
		System:       req.System,
		AllowPosting: allowPosting,
		BalanceMinor: req.OpeningBalanceMinor,
	}
}

func toVoucherDomain(req postVoucherRequest) ledger.Voucher {
	lines := make([]ledger.VoucherLine, 0, len(req.Lines))
	for _, ln := range req.Lines {
		side := ledger.SideDebit
		minor := ln.DebitMinor
		if ln.CreditMinor > 0 {
			side = ledger.SideCredit
			minor = ln.CreditMinor
		}
		amt, _ := money.NewAmountFromMinorUnits(req.Currency, minor)
		lines = append(lines, ledger.VoucherLine{
			AccountID:   ln.AccountID,
			Description: ln.Description,
			Side:        side,
			Amount:      amt,
			Dimensions: ledger.Dimensions{
				Department: ln.Department,
				Project:    ln.Project,
				CostCenter: ln.CostCenter,
			},
		})
	}
	return ledger.Voucher{
		Type:        req.Type,
		Date:        req.Date,
		Description: req.Description,
		Reference:   req.Reference,
		Currency:    req.Currency,
		CreatedBy:   req.CreatedBy,
		Metadata:    meta.New(req.Metadata),
		Lines:       lines,
	}
}

func toAccountResponse(a ledger.Account) accountResponse {
	return accountResponse{
		ID:           a.ID,
		Code:         a.Code,
		Name:         a.Name,
		Type:         a.Type,
		Category:     a.Category,
		NormalSide:   a.NormalSide,
		Currency:     a.Currency,
		BalanceMinor: a.BalanceMinor,
		Balance:      a.Balance().String(),
		Tags:         a.Tags,
		Metadata:     a.Metadata,
		System:       a.System,
		AllowPosting: a.AllowPosting,
		Active:       a.Active,
		CreatedAt:    a.CreatedAt,
	}
}

func toAccountResponses(accs []ledger.Account) []accountResponse {
	out := make([]accountResponse, 0, len(accs))
	for _, a := range accs {
		out = append(out, toAccountResponse(a))
	}
	return out
}

func toVoucherResponse(v ledger.Voucher) voucherResponse {
	lines := make([]voucherLineResponse, 0, len(v.Lines))
	for _, ln := range v.Lines {
		units, _ := ln.Amount.MinorUnits()
		lines = append(lines, voucherLineResponse{
			ID:          ln.ID,
			AccountID:   ln.AccountID,
			Description: ln.Description,
			Side:        ln.Side,
			AmountMinor: units,
			Amount:      ln.Amount.String(),
			Department:  ln.Dimensions.Department,
			Project:     ln.Dimensions.Project,
			CostCenter:  ln.Dimensions.CostCenter,
		})
	}
	debit, credit := v.Totals()
	return voucherResponse{
		ID:               v.ID,
		Number:           v.Number,
		Type:             v.Type,
		Date:             v.Date,
		Description:      v.Description,
		Reference:        v.Reference,
		Currency:         v.Currency,
		Status:           v.Status,
		FiscalYear:       v.FiscalYear,
		FiscalPeriod:     v.FiscalPeriod,
		CreatedBy:        v.CreatedBy,
		ReversedBy:       optionalID(v.ReversedBy),
		ReversalOf:       optionalID(v.ReversalOf),
		Metadata:         v.Metadata,
		CreatedAt:        v.CreatedAt,
		PostedAt:         v.PostedAt,
		TotalDebitMinor:  debit,
		TotalCreditMinor: credit,
		Lines:            lines,
	}
}

func toVoucherResponses(vs []ledger.Voucher) []voucherResponse {
	out := make([]voucherResponse, 0, len(vs))
	for _, v := range vs {
		out = append(out, toVoucherResponse(v))
	}
	return out
}

func toPartyResponse(p ledger.Party) partyResponse {
	return partyResponse{
		ID:          p.ID,
		Kind:        p.Kind,
		Code:        p.Code,
		DisplayName: p.DisplayName,
		AccountID:   optionalID(p.Link.AccountID),
		AccountCode: p.Link.AccountCode,
		Active:      p.Active,
		CreatedAt:   p.CreatedAt,
	}
}

func toPartyResponses(ps []ledger.Party) []partyResponse {
	out := make([]partyResponse, 0, len(ps))
	for _, p := range ps {
		out = append(out, toPartyResponse(p))
	}
	return out
}

func optionalID(id uuid.UUID) *uuid.UUID {
	if id == uuid.Nil {
		return nil
	}
	return &id
}
