package handlers

import (
	"net/http"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/mux"
	"github.com/pliu/offchat/internal/middleware"
	"github.com/pliu/offchat/internal/store"
	"github.com/pliu/offchat/internal/ws"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// NewRouter wires every REST endpoint, /ws and /metrics.
func NewRouter(st store.Store, hub *ws.Hub, logger zerolog.Logger, allowedOrigins []string) http.Handler {
	authHandler := &AuthHandler{Store: st, Logger: logger}
	chatHandler := &ChatHandler{Store: st, Hub: hub, Logger: logger}
	socialHandler := &SocialHandler{Store: st, Hub: hub, Logger: logger}

	r := mux.NewRouter()
	r.Use(middleware.Metrics)
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.LoggingMiddleware(logger))
	r.Use(chimw.Recoverer)

	r.Handle("/metrics", promhttp.Handler()).Methods("GET")
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "sockets": hub.Registry().Len()})
	}).Methods("GET")
	r.Handle("/ws", middleware.AuthMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws.ServeWs(hub, w, r, middleware.UserID(r))
	})))

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/signup", authHandler.Signup).Methods("POST")
	api.HandleFunc("/login", authHandler.Login).Methods("POST")
	api.HandleFunc("/logout", authHandler.Logout).Methods("POST")

	private := api.NewRoute().Subrouter()
	private.Use(middleware.AuthMiddleware)
	private.HandleFunc("/me", authHandler.Me).Methods("GET")
	private.HandleFunc("/users/search", authHandler.SearchUsers).Methods("GET")

	private.HandleFunc("/chats", chatHandler.CreateChat).Methods("POST")
	private.HandleFunc("/chats", chatHandler.GetChats).Methods("GET")
	private.HandleFunc("/chats/{id}", chatHandler.DeleteChat).Methods("DELETE")
	private.HandleFunc("/chats/{id}/invite", chatHandler.InviteUser).Methods("POST")
	private.HandleFunc("/chats/{id}/messages", chatHandler.GetChatMessages).Methods("GET")
	private.HandleFunc("/chats/{id}/participants", chatHandler.GetChatParticipants).Methods("GET")
	private.HandleFunc("/chats/{id}/participants/{userId}/role", chatHandler.SetRole).Methods("PUT")
	private.HandleFunc("/chats/{id}/kick", chatHandler.Kick).Methods("POST")
	private.HandleFunc("/chats/{id}/ban", chatHandler.Ban).Methods("POST")
	private.HandleFunc("/messages/{id}", chatHandler.DeleteMessage).Methods("DELETE")

	private.HandleFunc("/friends/request", socialHandler.SendFriendRequest).Methods("POST")
	private.HandleFunc("/friends/{id}/accept", socialHandler.AcceptFriendRequest).Methods("PUT")
	private.HandleFunc("/friends/{id}/reject", socialHandler.RejectFriendRequest).Methods("PUT")
	private.HandleFunc("/blocks", socialHandler.BlockUser).Methods("POST")
	private.HandleFunc("/blocks/{blockedId}", socialHandler.UnblockUser).Methods("DELETE")
	private.HandleFunc("/nfts", socialHandler.RegisterNFT).Methods("POST")

	if len(allowedOrigins) == 0 {
		return r
	}
	return cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	})(r)
}
