package httpserver

import (
	"net/http"
	"strconv"
	"time"

	"gatherly-backend/internal/chat"
)

type sendMessageRequest struct {
	Text string `json:"text"`
}

type messageResponse struct {
	ID       string    `json:"id"`
	ChatID   string    `json:"chatId"`
	SenderID string    `json:"senderId"`
	Text     string    `json:"text"`
	SentAt   time.Time `json:"sentAt"`
}

type listMessagesResponse struct {
	Messages []messageResponse `json:"messages"`
}

func toMessageResponse(m chat.Message) messageResponse {
	return messageResponse{
		ID:       m.ID,
		ChatID:   m.ChatID,
		SenderID: m.SenderID,
		Text:     m.Text,
		SentAt:   m.SentAt,
	}
}

func (api *v1API) handleChatSubroutes(w http.ResponseWriter, r *http.Request) {
	parts := splitPath(r.URL.Path)
	// Expected: ["v1", "chats", "{eventId}", "{action}"]
	if len(parts) != 4 {
		writeAPIError(w, ErrCodeNotFound, "not found")
		return
	}
	eventID := parts[2]

	switch {
	case parts[3] == "messages" && r.Method == http.MethodGet:
		api.handleListMessages(w, r, eventID)
	case parts[3] == "messages" && r.Method == http.MethodPost:
		api.handleSendMessage(w, r, eventID)
	case parts[3] == "read" && r.Method == http.MethodPost:
		api.handleMarkRead(w, r, eventID)
	default:
		writeAPIError(w, ErrCodeNotFound, "not found")
	}
}

func (api *v1API) handleSendMessage(w http.ResponseWriter, r *http.Request, eventID string) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req sendMessageRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Text == "" {
		writeAPIError(w, ErrCodeValidation, "text is required")
		return
	}

	msg, err := api.svcs.Chat.Send(r.Context(), eventID, userID, req.Text)
	if err != nil {
		api.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toMessageResponse(msg))
}

func (api *v1API) handleListMessages(w http.ResponseWriter, r *http.Request, eventID string) {
	if _, ok := requireUser(w, r); !ok {
		return
	}

	limit := chat.DefaultWindow
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeAPIError(w, ErrCodeValidation, "limit must be a positive integer")
			return
		}
		limit = n
	}

	msgs, err := api.svcs.Chat.Recent(r.Context(), eventID, limit)
	if err != nil {
		api.writeDomainError(w, err)
		return
	}

	out := make([]messageResponse, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, toMessageResponse(m))
	}
	writeJSON(w, http.StatusOK, listMessagesResponse{Messages: out})
}

func (api *v1API) handleMarkRead(w http.ResponseWriter, r *http.Request, eventID string) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	if err := api.svcs.Chat.MarkRead(r.Context(), eventID, userID); err != nil {
		api.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, okResponse{OK: true})
}
