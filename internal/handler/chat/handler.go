package chat

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	chatservice "voicebot/internal/service/chat"
	"voicebot/pkg/utils"
)

// Handler serves the text chat round trip and the health check.
type Handler struct {
	chatSvc *chatservice.Orchestrator
}

// New creates the chat handler.
func New(chatSvc *chatservice.Orchestrator) *Handler {
	return &Handler{chatSvc: chatSvc}
}

// RegisterRoutes mounts the chat routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/chat", h.handleChat)
	r.Get("/health", h.handleHealth)
}

func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Message   string `json:"message"`
		SessionID string `json:"sessionId"`
	}

	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.chatSvc.HandleText(r.Context(), payload.SessionID, payload.Message)
	if err != nil {
		if errors.Is(err, chatservice.ErrEmptyMessage) {
			utils.RespondError(w, http.StatusBadRequest, "Message is required")
			return
		}
		log.Printf("[chat] unexpected error: %v", err)
		utils.RespondError(w, http.StatusInternalServerError, "A critical server error occurred.")
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"reply":        result.Reply,
		"conversation": result.Recent,
	})
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	utils.RespondJSON(w, http.StatusOK, map[string]string{
		"status":  "OK",
		"message": "Voice Bot is running",
	})
}
