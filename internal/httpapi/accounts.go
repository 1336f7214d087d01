package httpapi

import (
	"encoding/json"
	"net/http"

	chi "github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ledgerhouse/ledgerhouse/internal/dictionary"
	"github.com/ledgerhouse/ledgerhouse/internal/ledger"
	"github.com/ledgerhouse/ledgerhouse/internal/meta"
)

// postAccount handles POST /v1/accounts. The validation middleware has
// already parsed and validated the request.
func (s *Server) postAccount(w http.ResponseWriter, r *http.Request) {
	a, ok := accountFromCtx(r.Context())
	if !ok {
		writeErr(w, http.StatusInternalServerError, "internal_error", "internal_error")
		return
	}
	created, err := s.chartSvc.Create(r.Context(), a)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	toJSON(w, http.StatusCreated, toAccountResponse(created))
}

// listAccounts handles GET /v1/accounts. Optional ?tags=a,b filters by
// positional tag prefix.
func (s *Server) listAccounts(w http.ResponseWriter, r *http.Request) {
	if prefix := splitCSVParam(r.URL.Query().Get("tags")); len(prefix) > 0 {
		accs, err := s.chartSvc.ByTag(r.Context(), prefix)
		if err != nil {
			writeDomainErr(w, err)
			return
		}
		toJSON(w, http.StatusOK, toAccountResponses(accs))
		return
	}
	if code := r.URL.Query().Get("code"); code != "" {
		acc, err := s.chartSvc.ByCode(r.Context(), code)
		if err != nil {
			writeDomainErr(w, err)
			return
		}
		toJSON(w, http.StatusOK, []accountResponse{toAccountResponse(acc)})
		return
	}
	accs, err := s.chartSvc.List(r.Context())
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	toJSON(w, http.StatusOK, toAccountResponses(accs))
}

func (s *Server) getAccount(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r)
	if !ok {
		return
	}
	acc, err := s.chartSvc.Get(r.Context(), id)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	toJSON(w, http.StatusOK, toAccountResponse(acc))
}

// updateAccount handles PATCH /v1/accounts/{id}: name, category, metadata,
// allow_posting and active are mutable; everything else is not.
func (s *Server) updateAccount(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r)
	if !ok {
		return
	}
	if !requireJSON(w, r) {
		return
	}
	var req updateAccountRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		badRequest(w, "invalid JSON: "+err.Error())
		return
	}
	current, err := s.chartSvc.Get(r.Context(), id)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	if req.Name != nil {
		current.Name = *req.Name
	}
	if req.Category != nil {
		current.Category = *req.Category
	}
	if req.Metadata != nil {
		m := meta.New(req.Metadata)
		if err := m.Validate(); err != nil {
			unprocessable(w, err.Error(), "validation_error")
			return
		}
		current.Metadata = m
	}
	if req.AllowPosting != nil {
		current.AllowPosting = *req.AllowPosting
	}
	if req.Active != nil {
		current.Active = *req.Active
	}
	updated, err := s.chartSvc.Update(r.Context(), current)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	toJSON(w, http.StatusOK, toAccountResponse(updated))
}

func (s *Server) deleteAccount(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r)
	if !ok {
		return
	}
	if err := s.chartSvc.Delete(r.Context(), id); err != nil {
		writeDomainErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// deduplicateAccounts handles POST /v1/accounts/deduplicate.
func (s *Server) deduplicateAccounts(w http.ResponseWriter, r *http.Request) {
	if !requireJSON(w, r) {
		return
	}
	var req dedupRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		badRequest(w, "invalid JSON: "+err.Error())
		return
	}
	if len(req.TagPrefix) == 0 {
		badRequest(w, "tag_prefix is required")
		return
	}
	rep, err := s.chartSvc.Deduplicate(r.Context(), req.TagPrefix)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	toJSON(w, http.StatusOK, rep)
}

// listCategories handles GET /v1/categories. Optional ?type narrows by
// account type.
func (s *Server) listCategories(w http.ResponseWriter, r *http.Request) {
	var t *ledger.AccountType
	if raw := r.URL.Query().Get("type"); raw != "" {
		at := ledger.AccountType(raw)
		if !at.Valid() {
			badRequest(w, "invalid account type")
			return
		}
		t = &at
	}
	toJSON(w, http.StatusOK, dictionary.CategoriesFor(t))
}

func parseIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		badRequest(w, "invalid id")
		return uuid.Nil, false
	}
	return id, true
}
