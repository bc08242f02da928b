package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/couchcryptid/storm-parametric-settlement/internal/domain"
)

// errorResponse is the body of every non-2xx API answer.
type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var errBadRequest = errors.New("bad request")

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

// statusFor maps a domain error code to an HTTP status.
func statusFor(code string) int {
	switch code {
	case "InvalidCoverage", "InsufficientPremium", "UnknownDisasterType":
		return http.StatusBadRequest
	case "InvalidSignature":
		return http.StatusUnauthorized
	case "NotPolicyholder":
		return http.StatusForbidden
	case "UnknownPolicy", "UnknownEvent", "UnsupportedLocation", "NoDataAvailable":
		return http.StatusNotFound
	case "PolicyNotActive", "DuplicateAttestation", "AlreadyValidated",
		"EventNotValidated", "LocationMismatch", "DisasterTypeMismatch":
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, errBadRequest) {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error(), Code: "BadRequest"})
		return
	}
	code := domain.ErrorCode(err)
	status := statusFor(code)
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeJSON(w, status, errorResponse{Error: "internal error", Code: "Internal"})
		return
	}
	writeJSON(w, status, errorResponse{Error: err.Error(), Code: code})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // client went away
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return badRequest("decode body: %v", err)
	}
	return nil
}

func pathID(r *http.Request) (uint64, error) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
	if err != nil {
		return 0, badRequest("invalid id %q", r.PathValue("id"))
	}
	return id, nil
}

func queryUint(r *http.Request, key string) (uint64, error) {
	s := r.URL.Query().Get(key)
	if s == "" {
		return 0, nil
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, badRequest("invalid %s %q", key, s)
	}
	return n, nil
}

func requireLocation(r *http.Request) (string, error) {
	loc := r.URL.Query().Get("location")
	if loc == "" {
		return "", badRequest("location is required")
	}
	return loc, nil
}

func requireType(t *domain.DisasterType) (domain.DisasterType, error) {
	if t == nil {
		return 0, badRequest("disaster_type is required")
	}
	return *t, nil
}
