package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/pliu/offchat/internal/middleware"
	"github.com/pliu/offchat/internal/models"
	"github.com/pliu/offchat/internal/store"
	"github.com/pliu/offchat/internal/ws"
	"github.com/rs/zerolog"
)

type ChatHandler struct {
	Store  store.Store
	Hub    *ws.Hub
	Logger zerolog.Logger
}

type CreateChatRequest struct {
	Name           string   `json:"name"`
	IsGroup        bool     `json:"isGroup"`
	ParticipantIDs []string `json:"participantIds"`
}

type InviteUserRequest struct {
	Username string `json:"username"`
}

type DeleteRequest struct {
	DeleteForEveryone bool `json:"deleteForEveryone"`
}

// CreateChat makes the caller the owner. Listed participants join as members.
func (h *ChatHandler) CreateChat(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r)

	var req CreateChatRequest
	if !decode(w, r, &req) {
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		http.Error(w, "Chat name required", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	chat, err := h.Store.CreateChat(ctx, req.Name, req.IsGroup)
	if err != nil {
		storeError(w, h.Logger, err, "Chat")
		return
	}
	if err := h.Store.AddParticipant(ctx, chat.ID, userID, models.RoleOwner); err != nil {
		storeError(w, h.Logger, err, "Participant")
		return
	}
	for _, id := range req.ParticipantIDs {
		if id == userID {
			continue
		}
		if err := h.Store.AddParticipant(ctx, chat.ID, id, models.RoleMember); err != nil && !errors.Is(err, store.ErrConflict) {
			storeError(w, h.Logger, err, "Participant")
			return
		}
		h.Hub.Notifier().Notify(id, ws.NewChatEvent{Type: ws.TypeNewChat, Chat: chat})
	}

	writeJSON(w, http.StatusCreated, chat)
}

func (h *ChatHandler) InviteUser(w http.ResponseWriter, r *http.Request) {
	chatID := mux.Vars(r)["id"]
	ctx := r.Context()

	if _, _, err := member(ctx, h.Store, chatID, middleware.UserID(r)); err != nil {
		h.forbidden(w, err)
		return
	}

	var req InviteUserRequest
	if !decode(w, r, &req) {
		return
	}

	user, err := h.Store.GetUserByUsername(ctx, req.Username)
	if err != nil {
		http.Error(w, "User not found", http.StatusNotFound)
		return
	}
	chat, err := h.Store.GetChat(ctx, chatID)
	if err != nil {
		storeError(w, h.Logger, err, "Chat")
		return
	}

	if err := h.Store.AddParticipant(ctx, chatID, user.ID, models.RoleMember); err != nil {
		storeError(w, h.Logger, err, "Participant")
		return
	}

	h.Hub.Notifier().Notify(user.ID, ws.NewChatEvent{Type: ws.TypeNewChat, Chat: chat})

	w.WriteHeader(http.StatusOK)
}

func (h *ChatHandler) GetChats(w http.ResponseWriter, r *http.Request) {
	chats, err := h.Store.GetUserChats(r.Context(), middleware.UserID(r))
	if err != nil {
		storeError(w, h.Logger, err, "Chat")
		return
	}
	if chats == nil {
		chats = []models.Chat{}
	}
	writeJSON(w, http.StatusOK, chats)
}

func (h *ChatHandler) GetChatMessages(w http.ResponseWriter, r *http.Request) {
	chatID := mux.Vars(r)["id"]

	if _, _, err := member(r.Context(), h.Store, chatID, middleware.UserID(r)); err != nil {
		h.forbidden(w, err)
		return
	}

	messages, err := h.Store.GetChatMessages(r.Context(), chatID)
	if err != nil {
		storeError(w, h.Logger, err, "Message")
		return
	}
	if messages == nil {
		messages = []models.Message{}
	}
	writeJSON(w, http.StatusOK, messages)
}

func (h *ChatHandler) GetChatParticipants(w http.ResponseWriter, r *http.Request) {
	chatID := mux.Vars(r)["id"]

	_, participants, err := member(r.Context(), h.Store, chatID, middleware.UserID(r))
	if err != nil {
		h.forbidden(w, err)
		return
	}
	writeJSON(w, http.StatusOK, participants)
}

// DeleteChat announces chat_deleted while the participant list still exists.
func (h *ChatHandler) DeleteChat(w http.ResponseWriter, r *http.Request) {
	chatID := mux.Vars(r)["id"]
	ctx := r.Context()

	chat, err := h.Store.GetChat(ctx, chatID)
	if err != nil {
		storeError(w, h.Logger, err, "Chat")
		return
	}
	actor, _, err := member(ctx, h.Store, chatID, middleware.UserID(r))
	if err != nil {
		h.forbidden(w, err)
		return
	}
	if chat.IsGroup && actor.Role != models.RoleOwner {
		http.Error(w, "Only the owner can delete this group", http.StatusForbidden)
		return
	}

	var req DeleteRequest
	if r.ContentLength > 0 && !decode(w, r, &req) {
		return
	}

	if req.DeleteForEveryone {
		if err := h.Hub.ChatDeleted(ctx, chatID); err != nil {
			h.Logger.Warn().Err(err).Str("chat_id", chatID).Msg("chat_deleted broadcast failed")
		}
	}

	if err := h.Store.DeleteChat(ctx, chatID); err != nil {
		storeError(w, h.Logger, err, "Chat")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Chat deleted successfully"})
}

func (h *ChatHandler) forbidden(w http.ResponseWriter, err error) {
	if errors.Is(err, errNotParticipant) {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}
	storeError(w, h.Logger, err, "Chat")
}
