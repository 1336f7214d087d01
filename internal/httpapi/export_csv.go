package httpapi

import (
	"bufio"
	"encoding/csv"
	"net/http"
	"strconv"
	"time"

	"github.com/govalues/money"

	"github.com/ledgerhouse/ledgerhouse/internal/service/reports"
)

// minorString renders minor units as a decimal amount in the currency,
// falling back to the raw integer when the currency is unknown.
func minorString(currency string, minor int64) string {
	amt, err := money.NewAmountFromMinorUnits(currency, minor)
	if err != nil {
		return strconv.FormatInt(minor, 10)
	}
	return amt.String()
}

// writeGeneralLedgerCSV streams a per-account statement as CSV.
func writeGeneralLedgerCSV(w http.ResponseWriter, gl reports.GeneralLedger) {
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="general-ledger-`+gl.Account.Code+`.csv"`)
	bw := bufio.NewWriter(w)
	cw := csv.NewWriter(bw)
	cur := gl.Account.Currency
	_ = cw.Write([]string{"Date", "Voucher Number", "Voucher Type", "Description", "Reference", "Debit", "Credit", "Balance"})
	_ = cw.Write([]string{"", "", "", "Opening Balance", "", "", "", minorString(cur, gl.OpeningMinor)})
	for _, row := range gl.Rows {
		_ = cw.Write([]string{
			row.Date.Format(time.DateOnly),
			row.VoucherNumber,
			string(row.VoucherType),
			row.Description,
			row.Reference,
			minorString(cur, row.DebitMinor),
			minorString(cur, row.CreditMinor),
			minorString(cur, row.BalanceMinor),
		})
	}
	_ = cw.Write([]string{"", "", "", "Closing Balance", "", "", "", minorString(cur, gl.ClosingMinor)})
	cw.Flush()
	_ = bw.Flush()
}

// writeTrialBalanceCSV streams the trial balance as CSV with a totals row.
func writeTrialBalanceCSV(w http.ResponseWriter, tb reports.TrialBalance) {
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="trial-balance.csv"`)
	bw := bufio.NewWriter(w)
	cw := csv.NewWriter(bw)
	_ = cw.Write([]string{"Code", "Name", "Type", "Debit Minor", "Credit Minor"})
	for _, row := range tb.Rows {
		_ = cw.Write([]string{
			row.Code,
			row.Name,
			string(row.Type),
			strconv.FormatInt(row.DebitMinor, 10),
			strconv.FormatInt(row.CreditMinor, 10),
		})
	}
	_ = cw.Write([]string{"", "Totals", "",
		strconv.FormatInt(tb.TotalDebitMinor, 10),
		strconv.FormatInt(tb.TotalCreditMinor, 10),
	})
	cw.Flush()
	_ = bw.Flush()
}
