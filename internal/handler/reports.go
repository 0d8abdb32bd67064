package handler

import "net/http"

// Summary returns the caller's income and expense report
func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	summary, err := h.svc.Summarize(r.Context(), principal(r.Context()).ID, q.Get("start_date"), q.Get("end_date"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
