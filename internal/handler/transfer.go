package handler

import (
	"context"
	"net/http"

	"github.com/accredit/compliance/internal/domain"
	"github.com/accredit/compliance/internal/gate"
	"github.com/accredit/compliance/internal/policy"
)

// ComplianceService is the subset of gate.Service the HTTP layer depends on.
type ComplianceService interface {
	Check(ctx context.Context, req domain.TransferRequest, at int64) (domain.Decision, error)
	ApplyTransfer(ctx context.Context, req domain.TransferRequest) (*domain.ApplyResult, error)
	Entry(ctx context.Context, registry, wallet domain.Key) (*gate.EntryView, error)
	Compliance(ctx context.Context, registry, wallet domain.Key, minLevel domain.KycLevel, mask uint8) (policy.TraderCompliance, error)
	Transfers(ctx context.Context, registry, wallet domain.Key, limit int) ([]domain.TransferRecord, error)
}

// TransferHandler serves the dry-run and apply endpoints.
type TransferHandler struct {
	svc ComplianceService
}

// NewTransferHandler creates a new TransferHandler.
func NewTransferHandler(svc ComplianceService) *TransferHandler {
	return &TransferHandler{svc: svc}
}

type checkRequest struct {
	domain.TransferRequest
	At int64 `json:"at,omitempty"` // unix seconds; zero means now
}

// Check handles POST /v1/transfers/check. A denial is a 200 with allowed=false.
func (h *TransferHandler) Check(w http.ResponseWriter, r *http.Request) {
	var req checkRequest
	if err := DecodeJSON(r, &req); err != nil {
		RespondError(w, domain.ErrValidation("invalid request body"))
		return
	}
	if req.At < 0 {
		RespondError(w, domain.ErrValidation("at must not be negative"))
		return
	}

	d, err := h.svc.Check(r.Context(), req.TransferRequest, req.At)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, d)
}

// Apply handles POST /v1/transfers. A denial is a 403 carrying the reason code.
func (h *TransferHandler) Apply(w http.ResponseWriter, r *http.Request) {
	var req domain.TransferRequest
	if err := DecodeJSON(r, &req); err != nil {
		RespondError(w, domain.ErrValidation("invalid request body"))
		return
	}

	res, err := h.svc.ApplyTransfer(r.Context(), req)
	if err != nil {
		if res != nil && !res.Decision.Allowed {
			RespondDenial(w, res.Decision)
			return
		}
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, res)
}
