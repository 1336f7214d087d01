package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ledgerhouse/ledgerhouse/internal/ledger"
	"github.com/ledgerhouse/ledgerhouse/internal/service/journal"
)

// postVoucher handles POST /v1/vouchers. An Idempotency-Key header makes
// retries safe: a replay returns the originally created voucher.
func (s *Server) postVoucher(w http.ResponseWriter, r *http.Request) {
	v, ok := voucherFromCtx(r.Context())
	if !ok {
		writeErr(w, http.StatusInternalServerError, "internal_error", "internal_error")
		return
	}
	idemKey := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	if idemKey != "" {
		if existing, found, err := s.store.GetVoucherByIdempotencyKey(r.Context(), idemKey); err != nil {
			writeDomainErr(w, err)
			return
		} else if found {
			toJSON(w, http.StatusOK, toVoucherResponse(existing))
			return
		}
	}
	created, err := s.journalSvc.Create(r.Context(), v)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	if idemKey != "" {
		if err := s.store.SaveIdempotencyKey(r.Context(), idemKey, created.ID); err != nil {
			s.log.Error("save idempotency key", "err", err, "voucher_id", created.ID)
		}
	}
	toJSON(w, http.StatusCreated, toVoucherResponse(created))
}

// validateVoucher handles POST /v1/vouchers/validate: a dry run that
// reports the balance check without persisting anything.
func (s *Server) validateVoucher(w http.ResponseWriter, r *http.Request) {
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
	v := toVoucherDomain(req)
	check := s.journalSvc.ValidateBalance(v.Lines)
	resp := balanceCheckResponse{
		TotalDebitMinor:  check.TotalDebitMinor,
		TotalCreditMinor: check.TotalCreditMinor,
		DifferenceMinor:  check.DifferenceMinor,
		Balanced:         check.Balanced,
	}
	if err := s.journalSvc.ValidateVoucher(r.Context(), v); err != nil {
		toJSON(w, http.StatusOK, struct {
			balanceCheckResponse
			Error string `json:"error"`
		}{resp, err.Error()})
		return
	}
	toJSON(w, http.StatusOK, resp)
}

// listVouchers handles GET /v1/vouchers with type/status/account_id/from/to
// filters.
func (s *Server) listVouchers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var f journal.Filter
	if raw := q.Get("type"); raw != "" {
		t := ledger.VoucherType(raw)
		if !t.Valid() {
			badRequest(w, "invalid voucher type")
			return
		}
		f.Type = &t
	}
	if raw := q.Get("status"); raw != "" {
		st := ledger.VoucherStatus(raw)
		f.Status = &st
	}
	if raw := q.Get("account_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			badRequest(w, "invalid account_id")
			return
		}
		f.AccountID = id
	}
	if raw := q.Get("from"); raw != "" {
		t, err := parseTimeParam(raw)
		if err != nil {
			badRequest(w, "invalid from")
			return
		}
		f.From = &t
	}
	if raw := q.Get("to"); raw != "" {
		t, err := parseTimeParam(raw)
		if err != nil {
			badRequest(w, "invalid to")
			return
		}
		f.To = &t
	}
	vs, err := s.journalSvc.List(r.Context(), f)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	toJSON(w, http.StatusOK, toVoucherResponses(vs))
}

func (s *Server) getVoucher(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r)
	if !ok {
		return
	}
	v, err := s.journalSvc.Get(r.Context(), id)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	toJSON(w, http.StatusOK, toVoucherResponse(v))
}

// postVoucherToLedger handles POST /v1/vouchers/{id}/post.
func (s *Server) postVoucherToLedger(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r)
	if !ok {
		return
	}
	v, err := s.journalSvc.Post(r.Context(), id)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	vouchersPostedTotal.WithLabelValues(string(v.Type)).Inc()
	toJSON(w, http.StatusOK, toVoucherResponse(v))
}

// reverseVoucher handles POST /v1/vouchers/{id}/reverse and returns the
// newly created reversing voucher.
func (s *Server) reverseVoucher(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r)
	if !ok {
		return
	}
	var req reverseVoucherRequest
	if r.Body != nil && r.ContentLength != 0 {
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			badRequest(w, "invalid JSON: "+err.Error())
			return
		}
	}
	var date time.Time
	if req.Date != nil {
		date = req.Date.UTC()
	}
	rev, err := s.journalSvc.Reverse(r.Context(), id, date, req.CreatedBy)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	vouchersPostedTotal.WithLabelValues(string(rev.Type)).Inc()
	toJSON(w, http.StatusCreated, toVoucherResponse(rev))
}

func (s *Server) cancelVoucher(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r)
	if !ok {
		return
	}
	v, err := s.journalSvc.Cancel(r.Context(), id)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	toJSON(w, http.StatusOK, toVoucherResponse(v))
}
