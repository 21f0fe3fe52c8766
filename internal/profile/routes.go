// internal/profile/routes.go

package profile

import (
	"github.com/go-chi/chi/v5"

	"github.com/sweatmatch/sweatmatch-backend/internal/auth"
)

// RegisterRoutes registers all profile routes
func RegisterRoutes(r chi.Router, handler *Handler, authMiddleware *auth.Middleware) {
	r.Group(func(r chi.Router) {
		r.Use(authMiddleware.Authenticate)

		r.Get("/api/v1/profile", handler.GetMyProfile)
		r.Put("/api/v1/profile", handler.UpdateProfile)
		r.Delete("/api/v1/profile", handler.Deactivate)
		r.Get("/api/v1/users/{id}/profile", handler.GetUserProfile)

		r.Post("/api/v1/users/{id}/block", handler.BlockUser)
		r.Delete("/api/v1/users/{id}/block", handler.UnblockUser)
	})
}
