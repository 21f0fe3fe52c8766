// internal/messaging/handlers.go

package messaging

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/sweatmatch/sweatmatch-backend/internal/auth"
	"github.com/sweatmatch/sweatmatch-backend/internal/common/utils"
)

type Handler struct {
	service Service
	hub     *Hub
}

func NewHandler(service Service, hub *Hub) *Handler {
	return &Handler{service: service, hub: hub}
}

// GetConversations handles GET /conversations
func (h *Handler) GetConversations(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	conversations, err := h.service.GetConversations(r.Context(), userID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	utils.SuccessResponse(w, conversations, http.StatusOK)
}

// GetUnreadCount handles GET /conversations/unread-count
func (h *Handler) GetUnreadCount(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	utils.SuccessResponse(w, map[string]int{
		"unread_count": h.service.GetUnreadTotal(r.Context(), userID),
	}, http.StatusOK)
}

// MarkRead handles PUT /conversations/{id}/read
func (h *Handler) MarkRead(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	convID, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}

	count, err := h.service.MarkConversationRead(r.Context(), convID, userID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	utils.SuccessResponse(w, map[string]int{"marked_read": count}, http.StatusOK)
}

// Hide handles DELETE /conversations/{id}
func (h *Handler) Hide(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	convID, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}

	if err := h.service.HideConversation(r.Context(), convID, userID); err != nil {
		h.writeServiceError(w, err)
		return
	}

	utils.MessageResponse(w, "Conversation hidden", http.StatusOK)
}

// Unhide handles POST /conversations/{id}/restore
func (h *Handler) Unhide(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	convID, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}

	if err := h.service.UnhideConversation(r.Context(), convID, userID); err != nil {
		h.writeServiceError(w, err)
		return
	}

	utils.MessageResponse(w, "Conversation restored", http.StatusOK)
}

// Block handles POST /conversations/{id}/block
func (h *Handler) Block(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	convID, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}

	if err := h.service.BlockConversation(r.Context(), convID, userID); err != nil {
		h.writeServiceError(w, err)
		return
	}

	utils.MessageResponse(w, "Conversation blocked", http.StatusOK)
}

// UpdateSettings handles PUT /conversations/{id}/settings
func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	convID, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}

	var req ConversationSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.ErrorResponse(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := utils.ValidateStruct(&req); err != nil {
		utils.ErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.service.UpdateSettings(r.Context(), convID, userID, &req); err != nil {
		h.writeServiceError(w, err)
		return
	}

	utils.MessageResponse(w, "Settings updated", http.StatusOK)
}

// SendMessage handles POST /messages
func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.ErrorResponse(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := utils.ValidateStruct(&req); err != nil {
		utils.ErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	msg, err := h.service.SendMessage(r.Context(), userID, &req)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	utils.SuccessResponse(w, msg, http.StatusCreated)
}

// GetMessages handles GET /conversations/{id}/messages?limit&before
func (h *Handler) GetMessages(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	convID, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	var before *time.Time
	if raw := r.URL.Query().Get("before"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			utils.ErrorResponse(w, "Invalid before timestamp", http.StatusBadRequest)
			return
		}
		before = &parsed
	}

	messages, err := h.service.GetMessages(r.Context(), convID, userID, limit, before)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	utils.SuccessResponse(w, messages, http.StatusOK)
}

// DeleteMessage handles DELETE /messages/{id}
func (h *Handler) DeleteMessage(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	messageID, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}

	if err := h.service.DeleteMessage(r.Context(), messageID, userID); err != nil {
		h.writeServiceError(w, err)
		return
	}

	utils.MessageResponse(w, "Message deleted", http.StatusOK)
}

// ServeWS handles GET /ws
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	ServeWS(h.hub, h.service, w, r, userID)
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)[name], 10, 64)
	if err != nil || id <= 0 {
		utils.ErrorResponse(w, "Invalid "+name, http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotParticipant):
		utils.ErrorResponse(w, err.Error(), http.StatusForbidden)
	case errors.Is(err, ErrConversationBlocked):
		utils.ErrorResponse(w, err.Error(), http.StatusForbidden)
	case errors.Is(err, ErrConversationNotFound), errors.Is(err, ErrMessageNotFound):
		utils.ErrorResponse(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, ErrEmptyContent), errors.Is(err, ErrContentTooLong), errors.Is(err, ErrInvalidMessageType):
		utils.ErrorResponse(w, err.Error(), http.StatusBadRequest)
	default:
		utils.ErrorResponse(w, "Internal server error", http.StatusInternalServerError)
	}
}
