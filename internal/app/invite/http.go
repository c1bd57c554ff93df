package invite

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/gtdflow/gtdflow/internal/app/tasks"
)

// Handler serves the invite endpoint. It is mounted into the task router's
// authenticated group rather than owning its own server.
type Handler struct {
	Service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{Service: service}
}

func (h *Handler) Routes(r chi.Router) {
	r.Post("/api/v1/invites", h.handleSend)
}

// sendRequest keeps the historical field names. userEmail predates
// userEmails and is still accepted; both are merged into one list.
type sendRequest struct {
	ActionID   string   `json:"actionId"`
	UserID     string   `json:"userId"`
	UserEmails []string `json:"userEmails"`
	UserEmail  string   `json:"userEmail"`
}

type sendResponse struct {
	Success        bool     `json:"success"`
	Message        string   `json:"message"`
	EmailID        string   `json:"emailId"`
	RecipientCount int      `json:"recipientCount"`
	Recipients     []string `json:"recipients"`
}

func (h *Handler) handleSend(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		tasks.WriteError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}

	if strings.TrimSpace(req.ActionID) == "" || strings.TrimSpace(req.UserID) == "" {
		tasks.WriteError(w, http.StatusBadRequest, "actionId and userId are required")
		return
	}

	recipients, err := NormalizeRecipients(req.UserEmails, req.UserEmail)
	if err != nil {
		tasks.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	claims := tasks.ClaimsFromContext(r.Context())
	if req.UserID != claims.Subject {
		tasks.WriteError(w, http.StatusForbidden, "userId does not match authenticated user")
		return
	}

	result, err := h.Service.Send(r.Context(), req.UserID, req.ActionID, recipients)
	if err != nil {
		switch {
		case errors.Is(err, tasks.ErrTaskNotFound):
			tasks.WriteError(w, http.StatusNotFound, "task not found")
		case errors.Is(err, ErrNotScheduled), errors.Is(err, ErrRecipientsRequired), errors.Is(err, ErrInvalidRecipient):
			tasks.WriteError(w, http.StatusBadRequest, err.Error())
		default:
			// Provider details stay in the logs.
			tasks.WriteError(w, http.StatusInternalServerError, "Failed to send calendar invite")
		}
		return
	}

	tasks.WriteJSON(w, http.StatusOK, sendResponse{
		Success:        true,
		Message:        "Calendar invite sent",
		EmailID:        result.MessageID,
		RecipientCount: len(result.Recipients),
		Recipients:     result.Recipients,
	})
}
