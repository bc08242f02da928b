package http

import (
	"net/http"
)

type claimRequest struct {
	PolicyID  uint64 `json:"policy_id"`
	EventID   uint64 `json:"event_id"`
	Requester string `json:"requester"`
}

type reviewRequest struct {
	PolicyID uint64 `json:"policy_id"`
	EventID  uint64 `json:"event_id"`
	Evidence string `json:"evidence"`
}

type fraudRequest struct {
	PolicyID uint64 `json:"policy_id"`
	EventID  uint64 `json:"event_id"`
	Claimant string `json:"claimant"`
	Data     string `json:"data"`
}

func (s *Server) handleProcessClaim(w http.ResponseWriter, r *http.Request) {
	var req claimRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	payout, err := s.deps.Claims.Process(r.Context(), req.PolicyID, req.EventID, req.Requester)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, payout)
}

func (s *Server) handleListPayouts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Claims.Payouts(r.Context()))
}

// Advisory only: the verdicts never feed back into settlement.
func (s *Server) handleReviewClaim(w http.ResponseWriter, r *http.Request) {
	var req reviewRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	review, err := s.deps.Reviewer.ReviewClaim(r.Context(), req.PolicyID, req.EventID, req.Evidence)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, review)
}

func (s *Server) handleAnalyzeClaim(w http.ResponseWriter, r *http.Request) {
	var req fraudRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	report, err := s.deps.Fraud.AnalyzeClaim(r.Context(), req.PolicyID, req.EventID, req.Claimant, req.Data)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}
