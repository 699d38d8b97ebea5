package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/accredit/compliance/internal/domain"
)

// EntryHandler serves read-only views of whitelist entries.
type EntryHandler struct {
	svc ComplianceService
}

// NewEntryHandler creates a new EntryHandler.
func NewEntryHandler(svc ComplianceService) *EntryHandler {
	return &EntryHandler{svc: svc}
}

func entryKeys(r *http.Request) (domain.Key, domain.Key) {
	return domain.Key(chi.URLParam(r, "registry")), domain.Key(chi.URLParam(r, "wallet"))
}

// Get handles GET /v1/registries/{registry}/entries/{wallet}.
func (h *EntryHandler) Get(w http.ResponseWriter, r *http.Request) {
	registry, wallet := entryKeys(r)
	view, err := h.svc.Entry(r.Context(), registry, wallet)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, view)
}

// Compliance handles GET /v1/registries/{registry}/entries/{wallet}/compliance.
// min_level defaults to basic; mask is a bitmask or comma-separated jurisdiction
// names and defaults to every jurisdiction.
func (h *EntryHandler) Compliance(w http.ResponseWriter, r *http.Request) {
	registry, wallet := entryKeys(r)

	minLevel := domain.KycBasic
	if s := r.URL.Query().Get("min_level"); s != "" {
		l, err := domain.ParseKycLevel(s)
		if err != nil {
			RespondError(w, domain.ErrValidation(err.Error()))
			return
		}
		minLevel = l
	}

	mask, err := parseMask(r.URL.Query().Get("mask"))
	if err != nil {
		RespondError(w, domain.ErrValidation(err.Error()))
		return
	}

	res, err := h.svc.Compliance(r.Context(), registry, wallet, minLevel, mask)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, res)
}

// Transfers handles GET /v1/registries/{registry}/entries/{wallet}/transfers.
func (h *EntryHandler) Transfers(w http.ResponseWriter, r *http.Request) {
	registry, wallet := entryKeys(r)

	limit := 20
	if s := r.URL.Query().Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}

	records, err := h.svc.Transfers(r.Context(), registry, wallet, limit)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, map[string]interface{}{
		"transfers": records,
	})
}

// parseMask reads the mask query parameter. An absent parameter admits every
// jurisdiction; an explicit 0 admits none.
func parseMask(s string) (uint8, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return domain.JurisdictionMask(domain.AllJurisdictions()...), nil
	}
	if n, err := strconv.ParseUint(s, 0, 8); err == nil {
		return uint8(n), nil
	}
	var js []domain.Jurisdiction
	for _, part := range strings.Split(s, ",") {
		j, err := domain.ParseJurisdiction(part)
		if err != nil {
			return 0, err
		}
		js = append(js, j)
	}
	return domain.JurisdictionMask(js...), nil
}
