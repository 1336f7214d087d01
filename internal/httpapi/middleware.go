package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/ledgerhouse/ledgerhouse/internal/ledger"
	"github.com/ledgerhouse/ledgerhouse/internal/meta"
)

type ctxKey string

const (
	ctxKeyPostAccount ctxKey = "validatedPostAccount"
	ctxKeyPostVoucher ctxKey = "validatedPostVoucher"
)

// validatePostAccount parses and validates POST /v1/accounts and stores
// the domain account in the request context for the handler.
func (s *Server) validatePostAccount() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !requireJSON(w, r) {
				return
			}
			var req postAccountRequest
			dec := json.NewDecoder(r.Body)
			dec.DisallowUnknownFields()
			if err := dec.Decode(&req); err != nil {
				badRequest(w, "invalid JSON: "+err.Error())
				return
			}
			if req.Metadata != nil {
				if err := meta.New(req.Metadata).Validate(); err != nil {
					unprocessable(w, err.Error(), "validation_error")
					return
				}
			}
			a := toAccountDomain(req)
			if err := s.chartSvc.ValidateCreate(a); err != nil {
				unprocessable(w, err.Error(), "validation_error")
				return
			}
			ctx := context.WithValue(r.Context(), ctxKeyPostAccount, a)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// validatePostVoucher parses POST /v1/vouchers, enforces the line shape
// (exactly one of debit_minor/credit_minor strictly positive) and runs the
// full service validation before the handler sees the voucher.
func (s *Server) validatePostVoucher() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !requireJSON(w, r) {
				return
			}
			var req postVoucherRequest
			dec := json.NewDecoder(r.Body)
			dec.DisallowUnknownFields()
			if err := dec.Decode(&req); err != nil {
				badRequest(w, "invalid JSON: "+err.Error())
				return
			}
			if req.Metadata != nil {
				if err := meta.New(req.Metadata).Validate(); err != nil {
					unprocessable(w, err.Error(), "validation_error")
					return
				}
			}
			for i, ln := range req.Lines {
				if ln.DebitMinor < 0 || ln.CreditMinor < 0 {
					unprocessable(w, "line["+strconv.Itoa(i)+"]: amounts must be >= 0", "invalid_line")
					return
				}
				if (ln.DebitMinor > 0) == (ln.CreditMinor > 0) {
					unprocessable(w, "line["+strconv.Itoa(i)+"]: exactly one of debit_minor or credit_minor must be > 0", "invalid_line")
					return
				}
			}
			v := toVoucherDomain(req)
			if err := s.journalSvc.ValidateVoucher(r.Context(), v); err != nil {
				writeDomainErr(w, err)
				return
			}
			ctx := context.WithValue(r.Context(), ctxKeyPostVoucher, v)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func voucherFromCtx(ctx context.Context) (ledger.Voucher, bool) {
	v, ok := ctx.Value(ctxKeyPostVoucher).(ledger.Voucher)
	return v, ok
}

func accountFromCtx(ctx context.Context) (ledger.Account, bool) {
	a, ok := ctx.Value(ctxKeyPostAccount).(ledger.Account)
	return a, ok
}
