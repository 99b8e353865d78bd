package handlers

import (
	"context"
	"net/http"
	"testing"

	"github.com/pliu/offchat/internal/models"
)

func TestDeleteMessagePermissions(t *testing.T) {
	env := setupEnv(t)
	owner := env.user(t, "owner")
	admin := env.user(t, "admin")
	member := env.user(t, "member")
	other := env.user(t, "other")
	group := env.chat(t, true, owner, admin, member, other)
	env.store.SetParticipantRole(context.Background(), group.ID, admin.ID, models.RoleAdmin)

	alice := env.user(t, "alice")
	bob := env.user(t, "bob")
	direct := env.chat(t, false, alice, bob)

	tests := []struct {
		name   string
		chat   *models.Chat
		sender *models.User
		actor  *models.User
		want   int
	}{
		{"sender deletes own", group, member, member, http.StatusOK},
		{"admin deletes others", group, member, admin, http.StatusOK},
		{"owner deletes others", group, member, owner, http.StatusOK},
		{"member deletes others", group, member, other, http.StatusForbidden},
		{"outsider", group, member, alice, http.StatusForbidden},
		{"direct chat peer", direct, alice, bob, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := &models.Message{ChatID: tt.chat.ID, SenderID: tt.sender.ID, Content: "x"}
			if err := env.store.CreateMessage(context.Background(), msg); err != nil {
				t.Fatal(err)
			}
			rr := env.do(t, "DELETE", "/api/messages/"+msg.ID, tt.actor, nil)
			expectStatus(t, rr, tt.want)
		})
	}
}

func TestDeleteMessageForEveryoneBroadcasts(t *testing.T) {
	env := setupEnv(t)
	alice := env.user(t, "alice")
	bob := env.user(t, "bob")
	chat := env.chat(t, false, alice, bob)
	aliceConn := env.connect(alice.ID)
	bobConn := env.connect(bob.ID)

	msg := &models.Message{ChatID: chat.ID, SenderID: alice.ID, Content: "oops"}
	env.store.CreateMessage(context.Background(), msg)

	rr := env.do(t, "DELETE", "/api/messages/"+msg.ID, alice, DeleteRequest{DeleteForEveryone: true})
	expectStatus(t, rr, http.StatusOK)

	for name, c := range map[string]*recordingConn{"alice": aliceConn, "bob": bobConn} {
		ev := c.last()
		if ev == nil || ev["type"] != "message_deleted" || ev["messageId"] != msg.ID {
			t.Errorf("%s: expected message_deleted, got %v", name, ev)
		}
	}

	rr = env.do(t, "DELETE", "/api/messages/"+msg.ID, alice, nil)
	expectStatus(t, rr, http.StatusNotFound)
}

func TestKick(t *testing.T) {
	env := setupEnv(t)
	owner := env.user(t, "owner")
	member := env.user(t, "member")
	target := env.user(t, "target")
	chat := env.chat(t, true, owner, member, target)
	memberConn := env.connect(member.ID)
	targetConn := env.connect(target.ID)

	rr := env.do(t, "POST", "/api/chats/"+chat.ID+"/kick", member, ModerationRequest{UserID: target.ID})
	expectStatus(t, rr, http.StatusForbidden)

	rr = env.do(t, "POST", "/api/chats/"+chat.ID+"/kick", owner, ModerationRequest{UserID: target.ID})
	expectStatus(t, rr, http.StatusOK)

	participants, _ := env.store.GetChatParticipants(context.Background(), chat.ID)
	if _, ok := find(participants, target.ID); ok {
		t.Error("Expected target to be removed")
	}
	for name, c := range map[string]*recordingConn{"member": memberConn, "target": targetConn} {
		ev := c.last()
		if ev == nil || ev["type"] != "user_kicked" || ev["userId"] != target.ID || ev["reason"] != kickReason {
			t.Errorf("%s: expected user_kicked, got %v", name, ev)
		}
	}
}

func TestOwnerCannotBeRemoved(t *testing.T) {
	env := setupEnv(t)
	owner := env.user(t, "owner")
	admin := env.user(t, "admin")
	chat := env.chat(t, true, owner, admin)
	env.store.SetParticipantRole(context.Background(), chat.ID, admin.ID, models.RoleAdmin)

	for _, path := range []string{"/kick", "/ban"} {
		rr := env.do(t, "POST", "/api/chats/"+chat.ID+path, admin, ModerationRequest{UserID: owner.ID})
		expectStatus(t, rr, http.StatusForbidden)
	}

	rr := env.do(t, "PUT", "/api/chats/"+chat.ID+"/participants/"+owner.ID+"/role", admin, RoleRequest{Role: models.RoleMember})
	expectStatus(t, rr, http.StatusForbidden)
}

func TestBan(t *testing.T) {
	env := setupEnv(t)
	owner := env.user(t, "owner")
	target := env.user(t, "target")
	chat := env.chat(t, true, owner, target)
	targetConn := env.connect(target.ID)

	rr := env.do(t, "POST", "/api/chats/"+chat.ID+"/ban", owner, ModerationRequest{UserID: target.ID})
	expectStatus(t, rr, http.StatusOK)

	if ev := targetConn.last(); ev == nil || ev["type"] != "user_kicked" || ev["reason"] != banReason {
		t.Errorf("Expected user_kicked with ban reason, got %v", ev)
	}
	participants, _ := env.store.GetChatParticipants(context.Background(), chat.ID)
	if _, ok := find(participants, target.ID); ok {
		t.Error("Expected banned user to be removed")
	}

	// No longer a participant.
	rr = env.do(t, "POST", "/api/chats/"+chat.ID+"/ban", owner, ModerationRequest{UserID: target.ID})
	expectStatus(t, rr, http.StatusNotFound)
}

func TestSetRole(t *testing.T) {
	env := setupEnv(t)
	owner := env.user(t, "owner")
	member := env.user(t, "member")
	chat := env.chat(t, true, owner, member)
	path := "/api/chats/" + chat.ID + "/participants/" + member.ID + "/role"

	rr := env.do(t, "PUT", path, owner, RoleRequest{Role: models.RoleOwner})
	expectStatus(t, rr, http.StatusBadRequest)

	rr = env.do(t, "PUT", path, member, RoleRequest{Role: models.RoleAdmin})
	expectStatus(t, rr, http.StatusForbidden)

	rr = env.do(t, "PUT", path, owner, RoleRequest{Role: models.RoleAdmin})
	expectStatus(t, rr, http.StatusOK)

	participants, _ := env.store.GetChatParticipants(context.Background(), chat.ID)
	if p, _ := find(participants, member.ID); p.Role != models.RoleAdmin {
		t.Errorf("Expected admin role, got %q", p.Role)
	}
}
