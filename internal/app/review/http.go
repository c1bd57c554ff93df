package review

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/gtdflow/gtdflow/internal/app/tasks"
)

type Handler struct {
	Service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{Service: service}
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/api/v1/review/weekly", h.handleWeekly)
}

func (h *Handler) handleWeekly(w http.ResponseWriter, r *http.Request) {
	claims := tasks.ClaimsFromContext(r.Context())
	weeks, _ := strconv.Atoi(r.URL.Query().Get("weeks"))

	stats, err := h.Service.Weekly(r.Context(), claims.Subject, weeks)
	if err != nil {
		tasks.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	tasks.WriteJSON(w, http.StatusOK, map[string]any{"weeks": stats})
}
