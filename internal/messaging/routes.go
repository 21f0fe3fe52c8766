package messaging

import (
	"github.com/gorilla/mux"

	"github.com/sweatmatch/sweatmatch-backend/internal/auth"
)

func RegisterRoutes(router *mux.Router, handler *Handler, authMiddleware *auth.Middleware) {
	api := router.PathPrefix("/api/v1").Subrouter()
	api.Use(authMiddleware.Authenticate)

	api.HandleFunc("/conversations", handler.GetConversations).Methods("GET")
	api.HandleFunc("/conversations/unread-count", handler.GetUnreadCount).Methods("GET")
	api.HandleFunc("/conversations/{id:[0-9]+}/read", handler.MarkRead).Methods("PUT")

	// Deleting a conversation hides it for the caller; nothing is removed
	api.HandleFunc("/conversations/{id:[0-9]+}", handler.Hide).Methods("DELETE")
	api.HandleFunc("/conversations/{id:[0-9]+}/restore", handler.Unhide).Methods("POST")
	api.HandleFunc("/conversations/{id:[0-9]+}/block", handler.Block).Methods("POST")
	api.HandleFunc("/conversations/{id:[0-9]+}/settings", handler.UpdateSettings).Methods("PUT")
	api.HandleFunc("/conversations/{id:[0-9]+}/messages", handler.GetMessages).Methods("GET")

	api.HandleFunc("/messages", handler.SendMessage).Methods("POST")
	api.HandleFunc("/messages/{id:[0-9]+}", handler.DeleteMessage).Methods("DELETE")

	api.HandleFunc("/ws", handler.ServeWS).Methods("GET")
}
