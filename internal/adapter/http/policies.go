package http

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/couchcryptid/storm-parametric-settlement/internal/domain"
)

type createPolicyRequest struct {
	Holder       string              `json:"holder"`
	Coverage     decimal.Decimal     `json:"coverage"`
	Location     string              `json:"location"`
	DisasterType *domain.DisasterType `json:"disaster_type"`
	PremiumPaid  decimal.Decimal     `json:"premium_paid"`
}

type cancelPolicyRequest struct {
	Requester string `json:"requester"`
}

func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request) {
	coverage, err := decimal.NewFromString(r.URL.Query().Get("coverage"))
	if err != nil {
		s.writeError(w, r, badRequest("invalid coverage"))
		return
	}
	premium, err := s.deps.Policies.Quote(coverage)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]decimal.Decimal{"coverage": coverage, "premium": premium})
}

func (s *Server) handleCreatePolicy(w http.ResponseWriter, r *http.Request) {
	var req createPolicyRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.Holder == "" {
		s.writeError(w, r, badRequest("holder is required"))
		return
	}
	t, err := requireType(req.DisasterType)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	id, err := s.deps.Policies.Create(r.Context(), req.Holder, req.Coverage, req.Location, t, req.PremiumPaid)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	p, err := s.deps.Policies.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) handleListPolicies(w http.ResponseWriter, r *http.Request) {
	holder := r.URL.Query().Get("holder")
	if holder == "" {
		s.writeError(w, r, badRequest("holder is required"))
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Policies.ListByHolder(r.Context(), holder))
}

func (s *Server) handleGetPolicy(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	p, err := s.deps.Policies.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleCancelPolicy(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req cancelPolicyRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	refund, err := s.deps.Policies.Cancel(r.Context(), id, req.Requester)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"policy_id": id, "refund": refund})
}
