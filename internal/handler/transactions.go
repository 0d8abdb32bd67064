package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/Dan9191/ledger-service/internal/models"
	"github.com/shopspring/decimal"
)

type transferRequest struct {
	RecipientAccountID int64           `json:"recipient_account_id" validate:"required,gt=0"`
	Amount             decimal.Decimal `json:"amount"`
	Description        string          `json:"description" validate:"max=255"`
	CategoryID         *int64          `json:"category_id" validate:"omitempty,gt=0"`
}

// CreateTransaction transfers from the caller's account
func (h *Handler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if err := h.decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	t, err := h.svc.TransferFrom(r.Context(), principal(r.Context()), req.RecipientAccountID, req.Amount, req.Description, req.CategoryID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

// ListTransactions pages through all transactions (admin)
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	page, err := pagination(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	list, err := h.svc.ListTransactions(r.Context(), principal(r.Context()), page)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func pagination(r *http.Request) (models.Pagination, error) {
	page := models.DefaultPagination()
	q := r.URL.Query()
	for _, p := range []struct {
		key string
		dst *int
	}{{"skip", &page.Skip}, {"limit", &page.Limit}} {
		raw := q.Get(p.key)
		if raw == "" {
			continue
		}
		v, err := strconv.Atoi(raw)
		if err != nil {
			return models.Pagination{}, models.ErrInvalidPagination
		}
		*p.dst = v
	}
	return models.NewPagination(page.Skip, page.Limit)
}

func (h *Handler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid transaction id")
		return
	}
	t, err := h.svc.GetTransaction(r.Context(), principal(r.Context()), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *Handler) DeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid transaction id")
		return
	}
	if err := h.svc.DeleteTransaction(r.Context(), principal(r.Context()), id); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Receipt streams the receipt document as a download
func (h *Handler) Receipt(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid transaction id")
		return
	}
	doc, contentType, err := h.svc.Receipt(r.Context(), principal(r.Context()), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=receipt_%d.xml", id))
	w.WriteHeader(http.StatusOK)
	w.Write(doc)
}
