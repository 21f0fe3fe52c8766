// internal/matching/handlers.go

package matching

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/sweatmatch/sweatmatch-backend/internal/auth"
	"github.com/sweatmatch/sweatmatch-backend/internal/common/utils"
	"github.com/sweatmatch/sweatmatch-backend/internal/profile"
)

type Handler struct {
	service      Service
	defaultLimit int
	maxLimit     int
}

func NewHandler(service Service, defaultLimit, maxLimit int) *Handler {
	return &Handler{
		service:      service,
		defaultLimit: defaultLimit,
		maxLimit:     maxLimit,
	}
}

// TargetRequest addresses another user for like/unlike/reject/block
type TargetRequest struct {
	TargetUserID int64 `json:"target_user_id" validate:"required,gt=0"`
}

// Like handles POST /like
func (h *Handler) Like(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	req, ok := h.decodeTarget(w, r)
	if !ok {
		return
	}

	result, err := h.service.Like(r.Context(), userID, req.TargetUserID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	utils.SuccessResponse(w, result, http.StatusOK)
}

// Unlike handles POST /unlike
func (h *Handler) Unlike(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	req, ok := h.decodeTarget(w, r)
	if !ok {
		return
	}

	if err := h.service.Unlike(r.Context(), userID, req.TargetUserID); err != nil {
		h.writeServiceError(w, err)
		return
	}

	utils.MessageResponse(w, "Like withdrawn", http.StatusOK)
}

// Reject handles POST /reject
func (h *Handler) Reject(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	req, ok := h.decodeTarget(w, r)
	if !ok {
		return
	}

	if err := h.service.Reject(r.Context(), userID, req.TargetUserID); err != nil {
		h.writeServiceError(w, err)
		return
	}

	utils.MessageResponse(w, "User rejected", http.StatusOK)
}

// Block handles POST /block
func (h *Handler) Block(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	req, ok := h.decodeTarget(w, r)
	if !ok {
		return
	}

	if err := h.service.Block(r.Context(), userID, req.TargetUserID); err != nil {
		h.writeServiceError(w, err)
		return
	}

	utils.MessageResponse(w, "User blocked", http.StatusOK)
}

// Suggestions handles GET /suggestions?limit&min_score
func (h *Handler) Suggestions(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = h.defaultLimit
	}
	if limit > h.maxLimit {
		limit = h.maxLimit
	}

	minScore, _ := strconv.Atoi(r.URL.Query().Get("min_score"))

	suggestions, err := h.service.Suggestions(r.Context(), userID, limit, minScore)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	utils.SuccessResponse(w, suggestions, http.StatusOK)
}

// GetMatches handles GET /matches?status
func (h *Handler) GetMatches(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	matches, err := h.service.GetMatches(r.Context(), userID, r.URL.Query().Get("status"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	utils.SuccessResponse(w, matches, http.StatusOK)
}

func (h *Handler) decodeTarget(w http.ResponseWriter, r *http.Request) (*TargetRequest, bool) {
	var req TargetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.ErrorResponse(w, "Invalid request body", http.StatusBadRequest)
		return nil, false
	}

	if err := utils.ValidateStruct(&req); err != nil {
		utils.ErrorResponse(w, err.Error(), http.StatusBadRequest)
		return nil, false
	}

	return &req, true
}

func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrCannotLikeSelf):
		utils.ErrorResponse(w, err.Error(), http.StatusForbidden)
	case errors.Is(err, ErrMatchBlocked):
		utils.ErrorResponse(w, err.Error(), http.StatusForbidden)
	case errors.Is(err, ErrMatchNotFound):
		utils.ErrorResponse(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, profile.ErrProfileNotFound):
		utils.ErrorResponse(w, err.Error(), http.StatusNotFound)
	default:
		utils.ErrorResponse(w, "Internal server error", http.StatusInternalServerError)
	}
}
