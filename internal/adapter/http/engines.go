package http

import (
	"errors"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/couchcryptid/storm-parametric-settlement/internal/domain"
)

type riskRequest struct {
	Location     string              `json:"location"`
	DisasterType *domain.DisasterType `json:"disaster_type"`
}

type historyRequest struct {
	Location     string              `json:"location"`
	DisasterType *domain.DisasterType `json:"disaster_type"`
	Severity     uint64              `json:"severity"`
	DamageAmount decimal.Decimal     `json:"damage_amount"`
}

type impactRequest struct {
	Location     string              `json:"location"`
	DisasterType *domain.DisasterType `json:"disaster_type"`
	Severity     uint64              `json:"severity"`
	// Weather defaults to the latest oracle observation.
	Weather *domain.WeatherData `json:"weather,omitempty"`
}

type weatherRequest struct {
	Location string `json:"location"`
	domain.WeatherData
}

var errRouteDisabled = errors.New("route disabled")

func (s *Server) handleCalculateRisk(w http.ResponseWriter, r *http.Request) {
	var req riskRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	t, err := requireType(req.DisasterType)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	score, err := s.deps.Risk.Calculate(r.Context(), req.Location, t)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, score)
}

func (s *Server) handleCurrentRisk(w http.ResponseWriter, r *http.Request) {
	loc, err := requireLocation(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	score, err := s.deps.Risk.Current(r.Context(), loc)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, score)
}

func (s *Server) handleRecordHistory(w http.ResponseWriter, r *http.Request) {
	var req historyRequest
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
	ev := s.deps.Risk.RecordHistoricalEvent(r.Context(), req.Location, t, req.Severity, req.DamageAmount)
	writeJSON(w, http.StatusCreated, ev)
}

func (s *Server) handleRiskHistory(w http.ResponseWriter, r *http.Request) {
	loc, err := requireLocation(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Risk.History(r.Context(), loc))
}

func (s *Server) handlePredictImpact(w http.ResponseWriter, r *http.Request) {
	var req impactRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	t, err := requireType(req.DisasterType)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var weather domain.WeatherData
	if req.Weather != nil {
		weather = *req.Weather
	} else {
		latest, err := s.deps.Weather.LatestWeather(r.Context(), req.Location)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		weather = latest
	}
	pred, err := s.deps.Impact.Predict(r.Context(), req.Location, t, req.Severity, weather)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pred)
}

func (s *Server) handleImpactHistory(w http.ResponseWriter, r *http.Request) {
	loc, err := requireLocation(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	limit, err := queryUint(r, "limit")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Impact.History(r.Context(), loc, int(limit)))
}

func (s *Server) handleUpdateWeather(w http.ResponseWriter, r *http.Request) {
	if s.deps.Updater == nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: errRouteDisabled.Error(), Code: "NotFound"})
		return
	}
	var req weatherRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.Location == "" {
		s.writeError(w, r, badRequest("location is required"))
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Updater.Update(r.Context(), req.Location, req.WeatherData))
}

func (s *Server) handleGetWeather(w http.ResponseWriter, r *http.Request) {
	loc, err := requireLocation(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	data, err := s.deps.Weather.LatestWeather(r.Context(), loc)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, data)
}

func (s *Server) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	if s.deps.Journal == nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: errRouteDisabled.Error(), Code: "NotFound"})
		return
	}
	policyID, err := queryUint(r, "policy_id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	eventID, err := queryUint(r, "event_id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	limit, err := queryUint(r, "limit")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	list, err := s.deps.Journal.List(r.Context(), domain.NotificationFilter{
		Kind:     domain.NotificationKind(r.URL.Query().Get("kind")),
		PolicyID: policyID,
		EventID:  eventID,
		Limit:    int(limit),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleTreasury(w http.ResponseWriter, r *http.Request) {
	if s.deps.Balance == nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: errRouteDisabled.Error(), Code: "NotFound"})
		return
	}
	bal, err := s.deps.Balance(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]decimal.Decimal{"balance": bal})
}
