package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dexgate-hq/dexgate/pkg/gwerr"
	"github.com/dexgate-hq/dexgate/pkg/models"
)

func (s *Server) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("Failed to encode response: %v", err)
	}
}

// writeError maps a classified error onto the wire: stable kind string, HTTP
// status, retryability, and the transaction hash when one reached the chain.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	kind := gwerr.KindOf(err)
	body := models.ErrorResponse{
		Error:     string(kind),
		Message:   err.Error(),
		Retryable: gwerr.Retryable(kind),
	}

	var ge *gwerr.Error
	if errors.As(err, &ge) {
		body.Message = ge.Message
		body.Signature = ge.TxHash
	}

	s.writeJSON(w, gwerr.HTTPStatus(kind), body)
}

// decode parses a JSON request body, rejecting unknown fields so typos in
// client field names fail loudly instead of silently defaulting.
func decode(r *http.Request, into interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(into); err != nil {
		return gwerr.Wrap(gwerr.Validation, err, "invalid request body")
	}
	return nil
}
