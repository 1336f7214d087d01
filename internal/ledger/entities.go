package ledger

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/govalues/money"

	"github.com/ledgerhouse/ledgerhouse/internal/meta"
)

// Side represents the accounting position of a voucher line.
type Side string

const (
	// SideDebit records a value on the debit side of an account.
	SideDebit Side = "debit"
	// SideCredit records a value on the credit side of an account.
	SideCredit Side = "credit"
)

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == SideDebit {
		return SideCredit
	}
	return SideDebit
}

// Valid reports whether s is one of the two sides.
func (s Side) Valid() bool { return s == SideDebit || s == SideCredit }

// AccountType enumerates the broad classification of an account in the chart.
type AccountType string

const (
	// AccountTypeAsset increases on the debit side and holds owned resources.
	AccountTypeAsset AccountType = "asset"
	// AccountTypeLiability increases on the credit side and tracks obligations.
	AccountTypeLiability AccountType = "liability"
	// AccountTypeEquity captures the owners' residual interest in the entity.
	AccountTypeEquity AccountType = "equity"
	// AccountTypeRevenue represents inflows that increase equity.
	AccountTypeRevenue AccountType = "revenue"
	// AccountTypeExpense represents outflows that decrease equity.
	AccountTypeExpense AccountType = "expense"
)

// Valid reports whether t is a known account type.
func (t AccountType) Valid() bool {
	switch t {
	case AccountTypeAsset, AccountTypeLiability, AccountTypeEquity, AccountTypeRevenue, AccountTypeExpense:
		return true
	}
	return false
}

// NormalSide returns the side on which the account type naturally increases:
// assets and expenses are debit-normal, the rest credit-normal.
func (t AccountType) NormalSide() Side {
	switch t {
	case AccountTypeAsset, AccountTypeExpense:
		return SideDebit
	default:
		return SideCredit
	}
}

// Account represents one entry in the chart of accounts.
type Account struct {
	ID   uuid.UUID
	Code string
	Name string
	Type AccountType
	// Category sub-classifies within the type (e.g. current_asset, operating_expense).
	Category   string
	NormalSide Side
	Currency   string
	// BalanceMinor caches the signed sum of all posted lines against this
	// account, in minor units, using the normal-side sign convention.
	// Stores are the only writers of this field.
	BalanceMinor int64
	// Tags form a positional composite key used by the subsidiary linker:
	// tags[0] role, tags[1] ledger role, tags[2] entity code slug.
	Tags     []string
	Metadata meta.Metadata `json:"metadata,omitempty"`
	// System marks reserved accounts protected from deletion.
	System bool
	// AllowPosting is false for summary accounts that reject direct lines.
	AllowPosting bool
	// Active indicates whether the account is active (soft-delete when false).
	Active    bool
	CreatedAt time.Time
}

// TagKey returns the composite key derived from Tags, or "" when untagged.
func (a Account) TagKey() string {
	if len(a.Tags) == 0 {
		return ""
	}
	key := a.Tags[0]
	for _, t := range a.Tags[1:] {
		key += "/" + t
	}
	return key
}

// SignedMinor converts a posted amount on the given side into the delta to
// apply to BalanceMinor: postings on the normal side increase the balance.
func (a Account) SignedMinor(side Side, amountMinor int64) int64 {
	if side == a.NormalSide {
		return amountMinor
	}
	return -amountMinor
}

// Balance renders the cached balance as a money amount.
func (a Account) Balance() money.Amount {
	amt, _ := money.NewAmountFromMinorUnits(a.Currency, a.BalanceMinor)
	return amt
}

// VoucherType enumerates the document types a voucher can carry.
type VoucherType string

const (
	VoucherTypeJournal     VoucherType = "journal"
	VoucherTypeCashReceipt VoucherType = "cash_receipt"
	VoucherTypeCashPayment VoucherType = "cash_payment"
	VoucherTypeBankReceipt VoucherType = "bank_receipt"
	VoucherTypeBankPayment VoucherType = "bank_payment"
	VoucherTypeSales       VoucherType = "sales"
	VoucherTypePurchase    VoucherType = "purchase"
	VoucherTypeAdjustment  VoucherType = "adjustment"
	VoucherTypeOpening     VoucherType = "opening"
)

var voucherPrefixes = map[VoucherType]string{
	VoucherTypeJournal:     "JV",
	VoucherTypeCashReceipt: "CR",
	VoucherTypeCashPayment: "CP",
	VoucherTypeBankReceipt: "BR",
	VoucherTypeBankPayment: "BP",
	VoucherTypeSales:       "SV",
	VoucherTypePurchase:    "PV",
	VoucherTypeAdjustment:  "AJ",
	VoucherTypeOpening:     "OP",
}

// Valid reports whether t is a known voucher type.
func (t VoucherType) Valid() bool { _, ok := voucherPrefixes[t]; return ok }

// Prefix returns the document-number prefix for the type (e.g. "JV").
func (t VoucherType) Prefix() string { return voucherPrefixes[t] }

// VoucherStatus enumerates the voucher lifecycle.
type VoucherStatus string

const (
	// VoucherStatusDraft has no balance effect yet.
	VoucherStatusDraft VoucherStatus = "draft"
	// VoucherStatusPosted means line effects are applied to account balances.
	VoucherStatusPosted VoucherStatus = "posted"
	// VoucherStatusReversed means a mirrored offsetting voucher exists;
	// the original's history is never mutated.
	VoucherStatusReversed VoucherStatus = "reversed"
	// VoucherStatusCancelled marks a draft abandoned before posting.
	VoucherStatusCancelled VoucherStatus = "cancelled"
)

// Voucher groups balanced debit/credit lines into one journal transaction.
type Voucher struct {
	ID     uuid.UUID
	Number string
	Type   VoucherType
	Date   time.Time
	// Description is the voucher-level memo.
	Description string
	// Reference is an optional external document number.
	Reference    string
	Currency     string
	Status       VoucherStatus
	FiscalYear   int
	FiscalPeriod int
	CreatedBy    string
	// ReversedBy holds the ID of the reversing voucher once reversed.
	ReversedBy uuid.UUID
	// ReversalOf holds the ID of the voucher this one offsets, if any.
	ReversalOf uuid.UUID
	Metadata   meta.Metadata `json:"metadata,omitempty"`
	CreatedAt  time.Time
	PostedAt   *time.Time
	Lines      []VoucherLine
}

// Totals returns the cached debit and credit sums in minor units.
func (v Voucher) Totals() (debitMinor, creditMinor int64) {
	for _, ln := range v.Lines {
		units, _ := ln.Amount.MinorUnits()
		switch ln.Side {
		case SideDebit:
			debitMinor += units
		case SideCredit:
			creditMinor += units
		}
	}
	return debitMinor, creditMinor
}

// Dimensions carries optional analytical axes on a line.
type Dimensions struct {
	Department string
	Project    string
	CostCenter string
}

// VoucherLine links a voucher to an account with an amount on one side.
// Side plus a strictly positive Amount encodes "exactly one of debit/credit".
type VoucherLine struct {
	ID          uuid.UUID
	VoucherID   uuid.UUID
	AccountID   uuid.UUID
	Description string
	Side        Side
	Amount      money.Amount
	Dimensions  Dimensions
}

// DebitMinor returns the line amount when on the debit side, else 0.
func (l VoucherLine) DebitMinor() int64 {
	if l.Side != SideDebit {
		return 0
	}
	units, _ := l.Amount.MinorUnits()
	return units
}

// CreditMinor returns the line amount when on the credit side, else 0.
func (l VoucherLine) CreditMinor() int64 {
	if l.Side != SideCredit {
		return 0
	}
	units, _ := l.Amount.MinorUnits()
	return units
}

// FiscalOf derives the fiscal year and period (calendar month) from a date.
func FiscalOf(date time.Time) (year, period int) {
	return date.Year(), int(date.Month())
}

// FormatVoucherNumber builds "{prefix}{fiscalYear}{seq:03d}", e.g. JV2024001.
func FormatVoucherNumber(t VoucherType, fiscalYear, seq int) string {
	return fmt.Sprintf("%s%d%03d", t.Prefix(), fiscalYear, seq)
}

// PartyKind distinguishes the two external entity kinds the linker serves.
type PartyKind string

const (
	PartyKindCustomer PartyKind = "customer"
	PartyKindSupplier PartyKind = "supplier"
)

// Valid reports whether k is a known party kind.
func (k PartyKind) Valid() bool { return k == PartyKindCustomer || k == PartyKindSupplier }

// RoleTag is the first element of the subsidiary account's tag triple.
func (k PartyKind) RoleTag() string { return string(k) }

// LedgerTag is the second element of the tag triple.
func (k PartyKind) LedgerTag() string {
	if k == PartyKindCustomer {
		return "accounts-receivable"
	}
	return "accounts-payable"
}

// AccountType returns the subsidiary account type: receivables are assets,
// payables are liabilities.
func (k PartyKind) AccountType() AccountType {
	if k == PartyKindCustomer {
		return AccountTypeAsset
	}
	return AccountTypeLiability
}

// AccountCategory returns the subsidiary account category for the kind.
func (k PartyKind) AccountCategory() string {
	if k == PartyKindCustomer {
		return "current_asset"
	}
	return "current_liability"
}

// AccountCodePrefix returns the generated account-code prefix for the kind.
func (k PartyKind) AccountCodePrefix() string {
	if k == PartyKindCustomer {
		return "AR-"
	}
	return "AP-"
}

// AccountNamePrefix returns the display-name prefix for linked accounts.
func (k PartyKind) AccountNamePrefix() string {
	if k == PartyKindCustomer {
		return "Accounts Receivable - "
	}
	return "Accounts Payable - "
}

// AccountLink records the subsidiary account provisioned for a party.
type AccountLink struct {
	AccountID   uuid.UUID
	AccountCode string
	// AutoCreate provisions the account on first save when true (default).
	AutoCreate bool
}

// Linked reports whether a subsidiary account is attached.
func (l AccountLink) Linked() bool { return l.AccountID != uuid.Nil }

// Party is a customer or supplier as seen by the accounting core.
type Party struct {
	ID          uuid.UUID
	Kind        PartyKind
	Code        string
	DisplayName string
	Link        AccountLink
	// Active is cleared on guarded delete; parties are never hard-deleted.
	Active    bool
	CreatedAt time.Time
}

// AccountName computes the linked account's display name for the party.
func (p Party) AccountName() string { return p.Kind.AccountNamePrefix() + p.DisplayName }
