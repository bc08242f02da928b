package http

import (
	"encoding/hex"
	"net/http"

	"github.com/couchcryptid/storm-parametric-settlement/internal/attestation"
	"github.com/couchcryptid/storm-parametric-settlement/internal/domain"
)

type reportEventRequest struct {
	Reporter     string              `json:"reporter"`
	Location     string              `json:"location"`
	DisasterType *domain.DisasterType `json:"disaster_type"`
	Severity     uint64              `json:"severity"`
}

type attestRequest struct {
	Operator  string `json:"operator"`
	Signature string `json:"signature"`
}

// eventView is an event plus what an operator needs to sign it.
type eventView struct {
	domain.DisasterEvent
	State     string   `json:"state"`
	Threshold uint64   `json:"threshold"`
	Attestors []string `json:"attestors"`
	Digest    string   `json:"digest"`
}

func (s *Server) handleReportEvent(w http.ResponseWriter, r *http.Request) {
	var req reportEventRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.Location == "" {
		s.writeError(w, r, badRequest("location is required"))
		return
	}
	t, err := requireType(req.DisasterType)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	id, err := s.deps.Events.Report(r.Context(), req.Reporter, req.Location, t, req.Severity)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	view, err := s.eventView(r, id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

func (s *Server) handleGetEvent(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	view, err := s.eventView(r, id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleAttest(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req attestRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.Operator == "" {
		s.writeError(w, r, badRequest("operator is required"))
		return
	}
	sig, err := attestation.Submission{EventID: id, Operator: req.Operator, Signature: req.Signature}.SignatureBytes()
	if err != nil {
		s.writeError(w, r, badRequest("%v", err))
		return
	}
	res, err := s.deps.Events.Attest(r.Context(), id, req.Operator, sig)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleHasAttested(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	operator := r.PathValue("operator")
	ok, err := s.deps.Events.HasAttested(r.Context(), id, operator)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"event_id": id, "operator": operator, "attested": ok})
}

func (s *Server) eventView(r *http.Request, id uint64) (eventView, error) {
	ev, err := s.deps.Events.Get(r.Context(), id)
	if err != nil {
		return eventView{}, err
	}
	attestors, err := s.deps.Events.Attestors(r.Context(), id)
	if err != nil {
		return eventView{}, err
	}
	digest := attestation.Digest(ev)
	return eventView{
		DisasterEvent: ev,
		State:         ev.State(),
		Threshold:     s.deps.Events.Threshold(),
		Attestors:     attestors,
		Digest:        "0x" + hex.EncodeToString(digest[:]),
	}, nil
}
