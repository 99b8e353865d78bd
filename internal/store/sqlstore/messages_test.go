package sqlstore

import (
	"context"
	"errors"
	"testing"

	"github.com/pliu/offchat/internal/models"
	"github.com/pliu/offchat/internal/store"
)

func TestSaveMessage(t *testing.T) {
	SetupTestDB(t)
	defer TeardownTestDB()
	ctx := context.Background()

	user := mustCreateUser(t, "user1")
	chat, _ := testStore.CreateChat(ctx, "Chat 1", false)

	msg := &models.Message{ChatID: chat.ID, SenderID: user.ID, Content: "Hello"}
	if err := testStore.CreateMessage(ctx, msg); err != nil {
		t.Fatalf("Failed to save message: %v", err)
	}
	if msg.ID == "" || msg.Timestamp.IsZero() {
		t.Errorf("Expected store to assign id and timestamp, got %+v", msg)
	}
	if msg.MessageType != models.MessageText {
		t.Errorf("Expected default type text, got %s", msg.MessageType)
	}

	messages, err := testStore.GetChatMessages(ctx, chat.ID)
	if err != nil {
		t.Fatalf("Failed to get messages: %v", err)
	}

	if len(messages) != 1 {
		t.Fatalf("Expected 1 message, got %d", len(messages))
	}

	if messages[0].Content != "Hello" {
		t.Errorf("Expected message content 'Hello', got '%s'", messages[0].Content)
	}
}

func TestCreateMessageUnlessBlocked(t *testing.T) {
	SetupTestDB(t)
	defer TeardownTestDB()
	ctx := context.Background()

	alice := mustCreateUser(t, "alice")
	bob := mustCreateUser(t, "bob")
	carol := mustCreateUser(t, "carol")
	chat, _ := testStore.CreateChat(ctx, "Group", true)
	for _, u := range []*models.User{alice, bob} {
		testStore.AddParticipant(ctx, chat.ID, u.ID, models.RoleMember)
	}

	// carol blocked alice but is not in the chat
	testStore.BlockUser(ctx, carol.ID, alice.ID)
	if err := testStore.CreateMessageUnlessBlocked(ctx, &models.Message{ChatID: chat.ID, SenderID: alice.ID, Content: "hi"}); err != nil {
		t.Fatalf("Expected message to be stored, got %v", err)
	}

	testStore.BlockUser(ctx, bob.ID, alice.ID)
	err := testStore.CreateMessageUnlessBlocked(ctx, &models.Message{ChatID: chat.ID, SenderID: alice.ID, Content: "blocked"})
	if !errors.Is(err, store.ErrSenderBlocked) {
		t.Fatalf("Expected ErrSenderBlocked, got %v", err)
	}

	messages, _ := testStore.GetChatMessages(ctx, chat.ID)
	if len(messages) != 1 {
		t.Errorf("Expected only the unblocked message to persist, got %d", len(messages))
	}

	// bob's own messages are unaffected by his block
	if err := testStore.CreateMessageUnlessBlocked(ctx, &models.Message{ChatID: chat.ID, SenderID: bob.ID, Content: "still here"}); err != nil {
		t.Errorf("Expected blocker's own message to be stored, got %v", err)
	}
}

func TestDeleteMessage(t *testing.T) {
	SetupTestDB(t)
	defer TeardownTestDB()
	ctx := context.Background()

	user := mustCreateUser(t, "user1")
	chat, _ := testStore.CreateChat(ctx, "Chat", false)
	msg := &models.Message{ChatID: chat.ID, SenderID: user.ID, Content: "bye"}
	testStore.CreateMessage(ctx, msg)

	if err := testStore.DeleteMessage(ctx, msg.ID); err != nil {
		t.Fatalf("DeleteMessage failed: %v", err)
	}
	if _, err := testStore.GetMessage(ctx, msg.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Expected ErrNotFound after delete, got %v", err)
	}
	if err := testStore.DeleteMessage(ctx, msg.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Expected ErrNotFound on second delete, got %v", err)
	}
}
