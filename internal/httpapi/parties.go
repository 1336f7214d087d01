package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/ledgerhouse/ledgerhouse/internal/ledger"
)

// partyKindFromPath derives the party kind from the route prefix.
func partyKindFromPath(r *http.Request) ledger.PartyKind {
	if strings.HasPrefix(r.URL.Path, "/v1/suppliers") {
		return ledger.PartyKindSupplier
	}
	return ledger.PartyKindCustomer
}

func (s *Server) postCustomer(w http.ResponseWriter, r *http.Request) {
	s.createParty(w, r, ledger.PartyKindCustomer)
}

func (s *Server) postSupplier(w http.ResponseWriter, r *http.Request) {
	s.createParty(w, r, ledger.PartyKindSupplier)
}

// createParty saves the party and, unless auto-creation is disabled,
// provisions its subsidiary account in the same request.
func (s *Server) createParty(w http.ResponseWriter, r *http.Request, kind ledger.PartyKind) {
	if !requireJSON(w, r) {
		return
	}
	var req postPartyRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		badRequest(w, "invalid JSON: "+err.Error())
		return
	}
	autoCreate := true
	if req.AutoCreateAccount != nil {
		autoCreate = *req.AutoCreateAccount
	}
	p := ledger.Party{
		Kind:        kind,
		Code:        req.Code,
		DisplayName: req.DisplayName,
		Link:        ledger.AccountLink{AutoCreate: autoCreate},
	}
	created, err := s.linkerSvc.Create(r.Context(), p)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	toJSON(w, http.StatusCreated, toPartyResponse(created))
}

func (s *Server) listCustomers(w http.ResponseWriter, r *http.Request) {
	s.listParties(w, r, ledger.PartyKindCustomer)
}

func (s *Server) listSuppliers(w http.ResponseWriter, r *http.Request) {
	s.listParties(w, r, ledger.PartyKindSupplier)
}

func (s *Server) listParties(w http.ResponseWriter, r *http.Request, kind ledger.PartyKind) {
	ps, err := s.linkerSvc.List(r.Context(), &kind)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	toJSON(w, http.StatusOK, toPartyResponses(ps))
}

func (s *Server) getParty(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r)
	if !ok {
		return
	}
	p, err := s.linkerSvc.Get(r.Context(), id)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	if p.Kind != partyKindFromPath(r) {
		notFound(w)
		return
	}
	toJSON(w, http.StatusOK, toPartyResponse(p))
}

// renameParty handles PATCH on a party; a display-name change propagates
// to the linked subsidiary account's name.
func (s *Server) renameParty(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r)
	if !ok {
		return
	}
	if !requireJSON(w, r) {
		return
	}
	var req renamePartyRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		badRequest(w, "invalid JSON: "+err.Error())
		return
	}
	if strings.TrimSpace(req.DisplayName) == "" {
		badRequest(w, "display_name is required")
		return
	}
	p, err := s.linkerSvc.OnPartyRenamed(r.Context(), id, req.DisplayName)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	toJSON(w, http.StatusOK, toPartyResponse(p))
}

// deleteParty removes the subsidiary account and soft-deletes the party.
// Blocked with 409 while the account has journal references.
func (s *Server) deleteParty(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r)
	if !ok {
		return
	}
	p, err := s.linkerSvc.OnPartyDeleteRequested(r.Context(), id)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	toJSON(w, http.StatusOK, toPartyResponse(p))
}

// reconcileAccounts handles POST /v1/reconcile/accounts: provisions
// subsidiary accounts for parties that lack one.
func (s *Server) reconcileAccounts(w http.ResponseWriter, r *http.Request) {
	sum, err := s.linkerSvc.CreateMissingAccounts(r.Context())
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	type itemError struct {
		PartyID string `json:"party_id"`
		Code    string `json:"code"`
		Error   string `json:"error"`
	}
	resp := struct {
		Created int         `json:"created"`
		Skipped int         `json:"skipped"`
		Errors  []itemError `json:"errors,omitempty"`
	}{Created: sum.Created, Skipped: sum.Skipped}
	for _, e := range sum.Errors {
		resp.Errors = append(resp.Errors, itemError{PartyID: e.PartyID.String(), Code: e.Code, Error: e.Err.Error()})
	}
	toJSON(w, http.StatusOK, resp)
}
