package ws

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/pliu/offchat/internal/models"
	"github.com/pliu/offchat/internal/store/sqlstore"
	"github.com/rs/zerolog"
)

type fakeConn struct {
	mu       sync.Mutex
	frames   [][]byte
	closed   bool
	failSend bool
}

func (c *fakeConn) Send(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failSend {
		return errors.New("broken pipe")
	}
	c.frames = append(c.frames, payload)
	return nil
}

func (c *fakeConn) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed
}

func (c *fakeConn) decoded(t *testing.T) []map[string]any {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]map[string]any, 0, len(c.frames))
	for _, f := range c.frames {
		var m map[string]any
		if err := json.Unmarshal(f, &m); err != nil {
			t.Fatalf("frame is not JSON: %v", err)
		}
		out = append(out, m)
	}
	return out
}

func (c *fakeConn) types(t *testing.T) []string {
	var types []string
	for _, m := range c.decoded(t) {
		types = append(types, m["type"].(string))
	}
	return types
}

func (c *fakeConn) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.frames)
}

func (c *fakeConn) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = nil
}

func setupStore(t *testing.T) *sqlstore.SQLStore {
	t.Helper()
	s, err := sqlstore.New("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func mustUser(t *testing.T, s *sqlstore.SQLStore, username string) *models.User {
	t.Helper()
	u := &models.User{Username: username, Password: "hash"}
	if err := s.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("CreateUser(%s): %v", username, err)
	}
	return u
}

func mustChat(t *testing.T, s *sqlstore.SQLStore, members ...*models.User) *models.Chat {
	t.Helper()
	ctx := context.Background()
	chat, err := s.CreateChat(ctx, "test chat", len(members) > 2)
	if err != nil {
		t.Fatalf("CreateChat: %v", err)
	}
	for i, m := range members {
		role := models.RoleMember
		if i == 0 {
			role = models.RoleOwner
		}
		if err := s.AddParticipant(ctx, chat.ID, m.ID, role); err != nil {
			t.Fatalf("AddParticipant: %v", err)
		}
	}
	return chat
}

func frame(t *testing.T, f Frame) []byte {
	t.Helper()
	data, err := json.Marshal(f)
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func testHub(t *testing.T, s *sqlstore.SQLStore) *Hub {
	return NewHub(s, zerolog.Nop())
}

// socketOf returns the session of a socket authenticated as u.
func socketOf(u *models.User) *Session {
	return &Session{Principal: u.ID}
}
