// internal/profile/handlers.go

package profile

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sweatmatch/sweatmatch-backend/internal/auth"
	"github.com/sweatmatch/sweatmatch-backend/internal/common/utils"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// GetMyProfile returns the caller's own profile
func (h *Handler) GetMyProfile(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	p, err := h.service.GetProfile(r.Context(), userID)
	if errors.Is(err, ErrProfileNotFound) {
		utils.ErrorResponse(w, "Profile not found", http.StatusNotFound)
		return
	}
	if err != nil {
		utils.ErrorResponse(w, "Failed to load profile", http.StatusInternalServerError)
		return
	}

	utils.SuccessResponse(w, p, http.StatusOK)
}

// GetUserProfile returns another user's profile
func (h *Handler) GetUserProfile(w http.ResponseWriter, r *http.Request) {
	targetID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		utils.ErrorResponse(w, "Invalid user id", http.StatusBadRequest)
		return
	}

	p, err := h.service.GetProfile(r.Context(), targetID)
	if errors.Is(err, ErrProfileNotFound) {
		utils.ErrorResponse(w, "Profile not found", http.StatusNotFound)
		return
	}
	if err != nil {
		utils.ErrorResponse(w, "Failed to load profile", http.StatusInternalServerError)
		return
	}

	if !p.IsVisible {
		utils.ErrorResponse(w, "Profile not found", http.StatusNotFound)
		return
	}

	utils.SuccessResponse(w, p, http.StatusOK)
}

// UpdateProfile applies a partial profile update
func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	var req UpdateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.ErrorResponse(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := utils.ValidateStruct(&req); err != nil {
		utils.ErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	p, err := h.service.UpdateProfile(r.Context(), userID, &req)
	if err != nil {
		utils.ErrorResponse(w, "Failed to update profile", http.StatusInternalServerError)
		return
	}

	utils.SuccessResponse(w, p, http.StatusOK)
}

// Deactivate hides the caller's profile from discovery
func (h *Handler) Deactivate(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	if err := h.service.Deactivate(r.Context(), userID); err != nil {
		if errors.Is(err, ErrProfileNotFound) {
			utils.ErrorResponse(w, "Profile not found", http.StatusNotFound)
			return
		}
		utils.ErrorResponse(w, "Failed to deactivate profile", http.StatusInternalServerError)
		return
	}

	utils.MessageResponse(w, "Profile deactivated", http.StatusOK)
}

// BlockUser adds a user to the caller's block list
func (h *Handler) BlockUser(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	targetID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		utils.ErrorResponse(w, "Invalid user id", http.StatusBadRequest)
		return
	}

	if err := h.service.BlockUser(r.Context(), userID, targetID); err != nil {
		if errors.Is(err, ErrCannotBlockSelf) {
			utils.ErrorResponse(w, err.Error(), http.StatusBadRequest)
			return
		}
		utils.ErrorResponse(w, "Failed to block user", http.StatusInternalServerError)
		return
	}

	utils.MessageResponse(w, "User blocked", http.StatusOK)
}

// UnblockUser removes a user from the caller's block list
func (h *Handler) UnblockUser(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	targetID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		utils.ErrorResponse(w, "Invalid user id", http.StatusBadRequest)
		return
	}

	if err := h.service.UnblockUser(r.Context(), userID, targetID); err != nil {
		utils.ErrorResponse(w, "Failed to unblock user", http.StatusInternalServerError)
		return
	}

	utils.MessageResponse(w, "User unblocked", http.StatusOK)
}
