package ws

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestJoinBroadcastsOnlineStatus(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	alice, bob := mustUser(t, s, "alice"), mustUser(t, s, "bob")
	chat := mustChat(t, s, alice, bob)
	h := testHub(t, s)

	ca, cb := &fakeConn{}, &fakeConn{}
	sa, sb := socketOf(alice), socketOf(bob)
	h.HandleFrame(ctx, cb, sb, frame(t, Frame{Type: TypeJoin, UserID: bob.ID, ChatID: chat.ID}))
	h.HandleFrame(ctx, ca, sa, frame(t, Frame{Type: TypeJoin, UserID: alice.ID, ChatID: chat.ID}))

	if ca.count() != 0 {
		t.Errorf("Joining user should not receive its own status")
	}
	frames := cb.decoded(t)
	if len(frames) != 1 || frames[0]["type"] != TypeUserStatus || frames[0]["userId"] != alice.ID || frames[0]["isOnline"] != true {
		t.Errorf("Expected alice online status, got %v", frames)
	}
	u, _ := s.GetUser(ctx, alice.ID)
	if !u.IsOnline {
		t.Errorf("Expected alice to be marked online")
	}
	if got, _ := h.Registry().Get(alice.ID); got != ca {
		t.Errorf("Expected alice's socket to be registered")
	}
}

func TestDisconnectMarksOfflineAndBroadcasts(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	alice, bob := mustUser(t, s, "alice"), mustUser(t, s, "bob")
	chat := mustChat(t, s, alice, bob)
	h := testHub(t, s)

	ca, cb := &fakeConn{}, &fakeConn{}
	sa, sb := socketOf(alice), socketOf(bob)
	h.HandleFrame(ctx, ca, sa, frame(t, Frame{Type: TypeJoin, UserID: alice.ID, ChatID: chat.ID}))
	h.HandleFrame(ctx, cb, sb, frame(t, Frame{Type: TypeJoin, UserID: bob.ID, ChatID: chat.ID}))
	ca.reset()
	cb.reset()

	ca.closed = true
	h.Disconnect(ctx, ca, sa)

	if _, ok := h.Registry().Get(alice.ID); ok {
		t.Errorf("Expected alice to be unregistered")
	}
	frames := cb.decoded(t)
	if len(frames) != 1 || frames[0]["isOnline"] != false || frames[0]["userId"] != alice.ID {
		t.Errorf("Expected offline status for alice, got %v", frames)
	}
	u, _ := s.GetUser(ctx, alice.ID)
	if u.IsOnline {
		t.Errorf("Expected alice to be marked offline")
	}

	// A later broadcast skips the unregistered user.
	if err := h.ChatDeleted(ctx, chat.ID); err != nil {
		t.Fatal(err)
	}
	if ca.count() != 0 {
		t.Errorf("Unregistered user received a broadcast")
	}
}

func TestStaleDisconnectKeepsNewerConnection(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	alice, bob := mustUser(t, s, "alice"), mustUser(t, s, "bob")
	chat := mustChat(t, s, alice, bob)
	h := testHub(t, s)

	old, current, cb := &fakeConn{}, &fakeConn{}, &fakeConn{}
	oldSess, curSess := socketOf(alice), socketOf(alice)
	h.HandleFrame(ctx, cb, socketOf(bob), frame(t, Frame{Type: TypeJoin, UserID: bob.ID, ChatID: chat.ID}))
	h.HandleFrame(ctx, old, oldSess, frame(t, Frame{Type: TypeJoin, UserID: alice.ID, ChatID: chat.ID}))
	h.HandleFrame(ctx, current, curSess, frame(t, Frame{Type: TypeJoin, UserID: alice.ID, ChatID: chat.ID}))
	cb.reset()

	old.closed = true
	h.Disconnect(ctx, old, oldSess)

	if got, _ := h.Registry().Get(alice.ID); got != current {
		t.Fatalf("Newer connection was evicted by the stale close")
	}
	if cb.count() != 0 {
		t.Errorf("No offline status expected while alice is still connected, got %v", cb.types(t))
	}
	u, _ := s.GetUser(ctx, alice.ID)
	if !u.IsOnline {
		t.Errorf("Alice should remain online")
	}

	// Only the last registered socket receives alice's traffic.
	h.HandleFrame(ctx, cb, &Session{Principal: bob.ID, UserID: bob.ID}, frame(t, Frame{Type: TypeSendMessage, ChatID: chat.ID, SenderID: bob.ID, Content: "hey"}))
	if current.count() != 1 {
		t.Errorf("Expected the current socket to receive the message")
	}
}

func TestMalformedAndUnknownFramesIgnored(t *testing.T) {
	s := setupStore(t)
	h := testHub(t, s)
	c := &fakeConn{}
	sess := &Session{}

	h.HandleFrame(context.Background(), c, sess, []byte("{not json"))
	h.HandleFrame(context.Background(), c, sess, []byte(`{"type":"dance"}`))

	if c.count() != 0 || sess.UserID != "" {
		t.Errorf("Expected frames to be ignored")
	}
}

func TestSendMessageRequiresMatchingSender(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	alice, bob := mustUser(t, s, "alice"), mustUser(t, s, "bob")
	chat := mustChat(t, s, alice, bob)
	h := testHub(t, s)

	c := &fakeConn{}
	sess := socketOf(alice)
	h.HandleFrame(ctx, c, sess, frame(t, Frame{Type: TypeSendMessage, ChatID: chat.ID, SenderID: alice.ID, Content: "x"}))
	h.HandleFrame(ctx, c, sess, frame(t, Frame{Type: TypeJoin, UserID: alice.ID, ChatID: chat.ID}))
	h.HandleFrame(ctx, c, sess, frame(t, Frame{Type: TypeSendMessage, ChatID: chat.ID, SenderID: bob.ID, Content: "spoof"}))

	frames := c.decoded(t)
	if len(frames) != 2 {
		t.Fatalf("Expected two error frames, got %v", frames)
	}
	if frames[1]["message"] != "Sender mismatch" {
		t.Errorf("Expected sender mismatch, got %v", frames[1])
	}
	stored, _ := s.GetChatMessages(ctx, chat.ID)
	if len(stored) != 0 {
		t.Errorf("No message should be stored")
	}
}

func TestTypingExcludesTypist(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	alice, bob := mustUser(t, s, "alice"), mustUser(t, s, "bob")
	chat := mustChat(t, s, alice, bob)
	h := testHub(t, s)

	ca, cb := &fakeConn{}, &fakeConn{}
	sa := socketOf(alice)
	h.HandleFrame(ctx, ca, sa, frame(t, Frame{Type: TypeJoin, UserID: alice.ID, ChatID: chat.ID}))
	h.HandleFrame(ctx, cb, socketOf(bob), frame(t, Frame{Type: TypeJoin, UserID: bob.ID, ChatID: chat.ID}))
	ca.reset()

	h.HandleFrame(ctx, ca, sa, frame(t, Frame{Type: TypeTyping, UserID: alice.ID, ChatID: chat.ID, IsTyping: true}))

	if ca.count() != 0 {
		t.Errorf("Typist should not receive its own typing event")
	}
	frames := cb.decoded(t)
	last := frames[len(frames)-1]
	if last["type"] != TypeTyping || last["isTyping"] != true || last["userId"] != alice.ID {
		t.Errorf("Unexpected typing frame %v", last)
	}
}

func TestUserKickedReachesKickedUser(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	alice, bob, carol := mustUser(t, s, "alice"), mustUser(t, s, "bob"), mustUser(t, s, "carol")
	chat := mustChat(t, s, alice, bob, carol)
	h := testHub(t, s)

	ca, cb, cc := &fakeConn{}, &fakeConn{}, &fakeConn{}
	h.Registry().Set(alice.ID, ca)
	h.Registry().Set(bob.ID, cb)
	h.Registry().Set(carol.ID, cc)

	s.RemoveParticipant(ctx, chat.ID, carol.ID)
	if err := h.UserKicked(ctx, chat.ID, carol.ID, "spam"); err != nil {
		t.Fatal(err)
	}
	for name, c := range map[string]*fakeConn{"alice": ca, "bob": cb, "carol": cc} {
		frames := c.decoded(t)
		if len(frames) != 1 || frames[0]["type"] != TypeUserKicked || frames[0]["reason"] != "spam" {
			t.Errorf("%s: expected one user_kicked frame, got %v", name, frames)
		}
	}
}

func TestMessageDeletedBroadcast(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	alice, bob := mustUser(t, s, "alice"), mustUser(t, s, "bob")
	chat := mustChat(t, s, alice, bob)
	h := testHub(t, s)
	ca, cb := &fakeConn{}, &fakeConn{}
	h.Registry().Set(alice.ID, ca)
	h.Registry().Set(bob.ID, cb)

	if err := h.MessageDeleted(ctx, chat.ID, "m1"); err != nil {
		t.Fatal(err)
	}
	for _, c := range []*fakeConn{ca, cb} {
		frames := c.decoded(t)
		if len(frames) != 1 || frames[0]["messageId"] != "m1" || frames[0]["chatId"] != chat.ID {
			t.Errorf("Unexpected frames %v", frames)
		}
	}
}

func TestChatSocketCloseFallsBackToGlobalSocket(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	alice, bob := mustUser(t, s, "alice"), mustUser(t, s, "bob")
	chat := mustChat(t, s, alice, bob)
	h := testHub(t, s)

	global, chatConn := &fakeConn{}, &fakeConn{}
	gs, cs := socketOf(alice), socketOf(alice)
	h.HandleFrame(ctx, global, gs, frame(t, Frame{Type: TypeJoinGlobal, UserID: alice.ID}))
	h.HandleFrame(ctx, chatConn, cs, frame(t, Frame{Type: TypeJoin, UserID: alice.ID, ChatID: chat.ID}))

	chatConn.closed = true
	h.Disconnect(ctx, chatConn, cs)

	if got, _ := h.Registry().Get(alice.ID); got != global {
		t.Fatalf("Expected the global socket to take over the registry entry")
	}
	u, _ := s.GetUser(ctx, alice.ID)
	if !u.IsOnline {
		t.Errorf("Alice still has a socket and should stay online")
	}
}

func TestStoreTimeoutOption(t *testing.T) {
	s := setupStore(t)
	h := NewHub(s, zerolog.Nop(), WithStoreTimeout(250*time.Millisecond), WithRegistry(NewRegistry()))
	if h.storeTimeout != 250*time.Millisecond {
		t.Errorf("Expected store timeout to be applied, got %v", h.storeTimeout)
	}
	if NewHub(s, zerolog.Nop(), WithStoreTimeout(0)).storeTimeout != defaultStoreTimeout {
		t.Errorf("Non-positive timeout should fall back to the default")
	}
}

func TestJoinAsAnotherUserRefused(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	alice, bob, mallory := mustUser(t, s, "alice"), mustUser(t, s, "bob"), mustUser(t, s, "mallory")
	chat := mustChat(t, s, alice, bob)
	h := testHub(t, s)

	cb := &fakeConn{}
	h.HandleFrame(ctx, cb, socketOf(bob), frame(t, Frame{Type: TypeJoin, UserID: bob.ID, ChatID: chat.ID}))

	cm := &fakeConn{}
	sm := socketOf(mallory)
	h.HandleFrame(ctx, cm, sm, frame(t, Frame{Type: TypeJoin, UserID: alice.ID, ChatID: chat.ID}))
	h.HandleFrame(ctx, cm, sm, frame(t, Frame{Type: TypeJoinGlobal, UserID: alice.ID}))

	frames := cm.decoded(t)
	if len(frames) != 2 || frames[0]["message"] != "User mismatch" || frames[1]["message"] != "User mismatch" {
		t.Fatalf("Expected two user mismatch errors, got %v", frames)
	}
	if sm.UserID != "" || sm.Global {
		t.Errorf("Session claimed an identity it does not own: %+v", sm)
	}
	if _, ok := h.Registry().Get(alice.ID); ok {
		t.Errorf("alice's registry entry was taken")
	}
	if cb.count() != 0 {
		t.Errorf("bob received a forged online status")
	}

	// An unauthenticated session cannot claim anyone.
	anon := &fakeConn{}
	h.HandleFrame(ctx, anon, &Session{}, frame(t, Frame{Type: TypeJoinGlobal, UserID: alice.ID}))
	if frames := anon.decoded(t); len(frames) != 1 || frames[0]["message"] != "User mismatch" {
		t.Errorf("Expected anonymous join to be refused, got %v", frames)
	}
}

func TestJoinDefaultsToAuthenticatedUser(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	alice, bob := mustUser(t, s, "alice"), mustUser(t, s, "bob")
	chat := mustChat(t, s, alice, bob)
	h := testHub(t, s)

	ca := &fakeConn{}
	sa := socketOf(alice)
	h.HandleFrame(ctx, ca, sa, frame(t, Frame{Type: TypeJoin, ChatID: chat.ID}))
	if sa.UserID != alice.ID {
		t.Errorf("Expected join without userId to bind alice, got %q", sa.UserID)
	}
	if got, _ := h.Registry().Get(alice.ID); got != ca {
		t.Errorf("Expected alice's socket to be registered")
	}
}

func TestTypingRequiresMembership(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	alice, bob, carol := mustUser(t, s, "alice"), mustUser(t, s, "bob"), mustUser(t, s, "carol")
	chat := mustChat(t, s, alice, bob)
	h := testHub(t, s)

	ca, cb, cc := &fakeConn{}, &fakeConn{}, &fakeConn{}
	h.HandleFrame(ctx, ca, socketOf(alice), frame(t, Frame{Type: TypeJoin, UserID: alice.ID, ChatID: chat.ID}))
	h.HandleFrame(ctx, cb, socketOf(bob), frame(t, Frame{Type: TypeJoin, UserID: bob.ID, ChatID: chat.ID}))
	ca.reset()
	cb.reset()

	sc := socketOf(carol)
	h.HandleFrame(ctx, cc, sc, frame(t, Frame{Type: TypeJoinGlobal, UserID: carol.ID}))
	h.HandleFrame(ctx, cc, sc, frame(t, Frame{Type: TypeTyping, ChatID: chat.ID, IsTyping: true}))
	h.HandleFrame(ctx, cc, sc, frame(t, Frame{Type: TypeSendMessage, ChatID: chat.ID, Content: "hi"}))

	if ca.count() != 0 || cb.count() != 0 {
		t.Errorf("Members received frames from an outsider: alice=%v bob=%v", ca.types(t), cb.types(t))
	}
	frames := cc.decoded(t)
	if len(frames) != 2 {
		t.Fatalf("Expected two errors for the outsider, got %v", frames)
	}
	for _, f := range frames {
		if f["message"] != "Not a participant of this chat" {
			t.Errorf("Unexpected frame %v", f)
		}
	}
}

// racingRegistry registers a newer socket right after the closing socket's
// entry is deleted, the way a concurrent join would.
type racingRegistry struct {
	Registry
	userID string
	newer  Conn
}

func (r *racingRegistry) Delete(userID string, conn Conn) bool {
	ok := r.Registry.Delete(userID, conn)
	if ok && userID == r.userID && r.newer != nil {
		r.Registry.Set(userID, r.newer)
		r.newer = nil
	}
	return ok
}

func TestGlobalFallbackDoesNotEvictNewerSocket(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	alice, bob := mustUser(t, s, "alice"), mustUser(t, s, "bob")
	chat := mustChat(t, s, alice, bob)
	reg := &racingRegistry{Registry: NewRegistry(), userID: alice.ID}
	h := NewHub(s, zerolog.Nop(), WithRegistry(reg))

	global, chatConn, newer := &fakeConn{}, &fakeConn{}, &fakeConn{}
	gs, cs := socketOf(alice), socketOf(alice)
	h.HandleFrame(ctx, global, gs, frame(t, Frame{Type: TypeJoinGlobal, UserID: alice.ID}))
	h.HandleFrame(ctx, chatConn, cs, frame(t, Frame{Type: TypeJoin, UserID: alice.ID, ChatID: chat.ID}))

	reg.newer = newer
	chatConn.closed = true
	h.Disconnect(ctx, chatConn, cs)

	if got, _ := h.Registry().Get(alice.ID); got != newer {
		t.Fatalf("Global fallback evicted the socket that joined during the close")
	}
}
