package matching

import (
	"github.com/gorilla/mux"

	"github.com/sweatmatch/sweatmatch-backend/internal/auth"
)

func RegisterRoutes(router *mux.Router, handler *Handler, authMiddleware *auth.Middleware) {
	api := router.PathPrefix("/api/v1/matching").Subrouter()
	api.Use(authMiddleware.Authenticate)

	api.HandleFunc("/like", handler.Like).Methods("POST")
	api.HandleFunc("/unlike", handler.Unlike).Methods("POST")
	api.HandleFunc("/reject", handler.Reject).Methods("POST")
	api.HandleFunc("/block", handler.Block).Methods("POST")

	api.HandleFunc("/suggestions", handler.Suggestions).Methods("GET")
	api.HandleFunc("/matches", handler.GetMatches).Methods("GET")
}
