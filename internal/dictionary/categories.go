package dictionary

import "github.com/ledgerhouse/ledgerhouse/internal/ledger"

// CategoryDef describes one curated account category.
type CategoryDef struct {
	Code     string `json:"code"`
	Label    string `json:"label"`
	Reserved bool   `json:"reserved"`
}

var curated = map[ledger.AccountType][]CategoryDef{
	ledger.AccountTypeAsset: {
		{Code: "current_asset", Label: "Current Asset", Reserved: false},
		{Code: "fixed_asset", Label: "Fixed Asset", Reserved: false},
		{Code: "bank", Label: "Bank", Reserved: false},
		{Code: "cash", Label: "Cash", Reserved: false},
		{Code: "inventory", Label: "Inventory", Reserved: false},
	},
	ledger.AccountTypeLiability: {
		{Code: "current_liability", Label: "Current Liability", Reserved: false},
		{Code: "long_term_liability", Label: "Long-term Liability", Reserved: false},
		{Code: "tax_payable", Label: "Tax Payable", Reserved: false},
	},
	ledger.AccountTypeEquity: {
		{Code: "opening_balances", Label: "Opening Balances", Reserved: true},
		{Code: "owner_equity", Label: "Owner Equity", Reserved: false},
		{Code: "retained_earnings", Label: "Retained Earnings", Reserved: true},
	},
	ledger.AccountTypeRevenue: {
		{Code: "operating_revenue", Label: "Operating Revenue", Reserved: false},
		{Code: "other_income", Label: "Other Income", Reserved: false},
	},
	ledger.AccountTypeExpense: {
		{Code: "operating_expense", Label: "Operating Expense", Reserved: false},
		{Code: "cost_of_sales", Label: "Cost of Sales", Reserved: false},
		{Code: "payroll", Label: "Payroll", Reserved: false},
		{Code: "other_expense", Label: "Other Expense", Reserved: false},
	},
}

// IsReserved reports whether the category is reserved for system accounts.
func IsReserved(t ledger.AccountType, category string) bool {
	for _, c := range curated[t] {
		if c.Code == category && c.Reserved {
			return true
		}
	}
	return false
}

var typeOrder = []ledger.AccountType{
	ledger.AccountTypeAsset,
	ledger.AccountTypeLiability,
	ledger.AccountTypeEquity,
	ledger.AccountTypeRevenue,
	ledger.AccountTypeExpense,
}

// CategoriesFor lists curated categories for a type, or all when t is nil.
func CategoriesFor(t *ledger.AccountType) []CategoryDef {
	if t == nil {
		out := make([]CategoryDef, 0)
		for _, at := range typeOrder {
			out = append(out, curated[at]...)
		}
		return out
	}
	list := curated[*t]
	out := make([]CategoryDef, len(list))
	copy(out, list)
	return out
}
