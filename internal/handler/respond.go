package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/accredit/compliance/internal/domain"
)

const maxBodyBytes = 1 << 20

// RespondJSON writes a JSON response with the given status code.
func RespondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Code        domain.ErrorCode `json:"code"`
	Message     string           `json:"message"`
	Participant string           `json:"participant,omitempty"`
}

// RespondError writes a JSON error response, detecting domain.AppError anywhere
// in the chain for status codes.
func RespondError(w http.ResponseWriter, err error) {
	var appErr *domain.AppError
	if errors.As(err, &appErr) && appErr.Status != 0 && appErr.Status != http.StatusInternalServerError {
		RespondJSON(w, appErr.Status, errorBody{Code: appErr.Code, Message: appErr.Message})
		return
	}
	RespondJSON(w, http.StatusInternalServerError, errorBody{
		Code:    domain.CodeInternal,
		Message: "internal server error",
	})
}

// RespondDenial writes a compliance denial with the offending participant.
func RespondDenial(w http.ResponseWriter, d domain.Decision) {
	RespondJSON(w, http.StatusForbidden, errorBody{
		Code:        d.Reason,
		Message:     d.Message,
		Participant: d.Participant,
	})
}

// DecodeJSON reads and decodes a JSON request body into dst, capped at 1 MiB.
func DecodeJSON(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}
