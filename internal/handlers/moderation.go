package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/pliu/offchat/internal/middleware"
	"github.com/pliu/offchat/internal/models"
)

const (
	kickReason = "You have been removed from this group"
	banReason  = "You have been banned from this group"
)

type ModerationRequest struct {
	UserID string `json:"userId"`
	Reason string `json:"reason"`
}

type RoleRequest struct {
	Role string `json:"role"`
}

// DeleteMessage is allowed for the sender, any member of a direct chat, and
// group admins or owners.
func (h *ChatHandler) DeleteMessage(w http.ResponseWriter, r *http.Request) {
	messageID := mux.Vars(r)["id"]
	userID := middleware.UserID(r)
	ctx := r.Context()

	msg, err := h.Store.GetMessage(ctx, messageID)
	if err != nil {
		storeError(w, h.Logger, err, "Message")
		return
	}
	chat, err := h.Store.GetChat(ctx, msg.ChatID)
	if err != nil {
		storeError(w, h.Logger, err, "Chat")
		return
	}

	if msg.SenderID != userID {
		actor, _, err := member(ctx, h.Store, msg.ChatID, userID)
		if err != nil {
			h.forbidden(w, err)
			return
		}
		if chat.IsGroup && !actor.CanModerate() {
			http.Error(w, "You don't have permission to delete this message", http.StatusForbidden)
			return
		}
	}

	var req DeleteRequest
	if r.ContentLength > 0 && !decode(w, r, &req) {
		return
	}

	if err := h.Store.DeleteMessage(ctx, messageID); err != nil {
		storeError(w, h.Logger, err, "Message")
		return
	}
	if req.DeleteForEveryone {
		if err := h.Hub.MessageDeleted(ctx, msg.ChatID, messageID); err != nil {
			h.Logger.Warn().Err(err).Str("message_id", messageID).Msg("message_deleted broadcast failed")
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Message deleted successfully"})
}

func (h *ChatHandler) Kick(w http.ResponseWriter, r *http.Request) {
	chatID := mux.Vars(r)["id"]
	req, ok := h.moderate(w, r, chatID)
	if !ok {
		return
	}
	if err := h.Store.RemoveParticipant(r.Context(), chatID, req.UserID); err != nil {
		storeError(w, h.Logger, err, "Participant")
		return
	}
	h.kicked(r, chatID, req.UserID, kickReason)
	writeJSON(w, http.StatusOK, map[string]string{"message": "User removed successfully"})
}

func (h *ChatHandler) Ban(w http.ResponseWriter, r *http.Request) {
	chatID := mux.Vars(r)["id"]
	req, ok := h.moderate(w, r, chatID)
	if !ok {
		return
	}
	ban := &models.BannedMember{
		ChatID:   chatID,
		UserID:   req.UserID,
		BannedBy: middleware.UserID(r),
		Reason:   req.Reason,
	}
	if err := h.Store.BanUser(r.Context(), ban); err != nil {
		storeError(w, h.Logger, err, "Ban")
		return
	}
	reason := req.Reason
	if reason == "" {
		reason = banReason
	}
	h.kicked(r, chatID, req.UserID, reason)
	writeJSON(w, http.StatusOK, ban)
}

// moderate checks that the caller is an admin or owner and that the target
// is a member who is not the owner.
func (h *ChatHandler) moderate(w http.ResponseWriter, r *http.Request, chatID string) (ModerationRequest, bool) {
	var req ModerationRequest
	if !decode(w, r, &req) {
		return req, false
	}
	if req.UserID == "" {
		http.Error(w, "userId required", http.StatusBadRequest)
		return req, false
	}

	actor, participants, err := member(r.Context(), h.Store, chatID, middleware.UserID(r))
	if err != nil {
		h.forbidden(w, err)
		return req, false
	}
	if !actor.CanModerate() {
		http.Error(w, "You don't have permission to remove users", http.StatusForbidden)
		return req, false
	}
	target, ok := find(participants, req.UserID)
	if !ok {
		http.Error(w, "User not found in chat", http.StatusNotFound)
		return req, false
	}
	if target.Role == models.RoleOwner {
		http.Error(w, "Cannot remove the group owner", http.StatusForbidden)
		return req, false
	}
	return req, true
}

func (h *ChatHandler) kicked(r *http.Request, chatID, userID, reason string) {
	if err := h.Hub.UserKicked(r.Context(), chatID, userID, reason); err != nil {
		h.Logger.Warn().Err(err).Str("chat_id", chatID).Msg("user_kicked broadcast failed")
	}
	h.Logger.Info().
		Str("chat_id", chatID).
		Str("user_id", userID).
		Str("by", middleware.UserID(r)).
		Msg("member removed")
}

// SetRole promotes to admin or demotes to member. The owner's role is fixed.
func (h *ChatHandler) SetRole(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	chatID, targetID := vars["id"], vars["userId"]

	var req RoleRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Role != models.RoleAdmin && req.Role != models.RoleMember {
		http.Error(w, "Role must be admin or member", http.StatusBadRequest)
		return
	}

	actor, participants, err := member(r.Context(), h.Store, chatID, middleware.UserID(r))
	if err != nil {
		h.forbidden(w, err)
		return
	}
	if !actor.CanModerate() {
		http.Error(w, "Only admins and owners can change roles", http.StatusForbidden)
		return
	}
	target, ok := find(participants, targetID)
	if !ok {
		http.Error(w, "User not found in chat", http.StatusNotFound)
		return
	}
	if target.Role == models.RoleOwner {
		http.Error(w, "Cannot change the group owner's role", http.StatusForbidden)
		return
	}

	if err := h.Store.SetParticipantRole(r.Context(), chatID, targetID, req.Role); err != nil {
		storeError(w, h.Logger, err, "Participant")
		return
	}
	target.Role = req.Role
	writeJSON(w, http.StatusOK, target)
}
