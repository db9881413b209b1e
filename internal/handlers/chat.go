package handlers

import (
	"net/http"
	"strings"

	"annadata-backend/internal/models"
	"annadata-backend/internal/services"
)

type ChatHandler struct {
	completer services.Completer
}

func NewChatHandler(completer services.Completer) *ChatHandler {
	return &ChatHandler{completer: completer}
}

// Chat answers one farmer question through the completion API.
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req models.ChatRequest
	if err := decodeJSON(r, &req); err != nil {
		handleServiceError(w, r, "reply", err)
		return
	}

	message := strings.TrimSpace(req.Message)
	if message == "" {
		handleServiceError(w, r, "reply", &services.ValidationError{
			Fields: map[string]string{"message": "Message is required"},
		})
		return
	}

	reply, err := h.completer.Complete(r.Context(), services.BuildConversation(message), "")
	if err != nil {
		handleServiceError(w, r, "reply", err)
		return
	}

	writeJSON(w, http.StatusOK, models.ChatResponse{Reply: reply.Text})
}
