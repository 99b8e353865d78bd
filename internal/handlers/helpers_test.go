package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/pliu/offchat/internal/auth"
	"github.com/pliu/offchat/internal/models"
	"github.com/pliu/offchat/internal/store/sqlstore"
	"github.com/pliu/offchat/internal/ws"
	"github.com/rs/zerolog"
)

// recordingConn stands in for a websocket client registered with the hub.
type recordingConn struct {
	mu     sync.Mutex
	frames []map[string]any
}

func (c *recordingConn) Send(payload []byte) error {
	var m map[string]any
	if err := json.Unmarshal(payload, &m); err != nil {
		return err
	}
	c.mu.Lock()
	c.frames = append(c.frames, m)
	c.mu.Unlock()
	return nil
}

func (c *recordingConn) IsOpen() bool { return true }

func (c *recordingConn) types() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []string
	for _, f := range c.frames {
		out = append(out, f["type"].(string))
	}
	return out
}

func (c *recordingConn) last() map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.frames) == 0 {
		return nil
	}
	return c.frames[len(c.frames)-1]
}

type testEnv struct {
	store  *sqlstore.SQLStore
	hub    *ws.Hub
	router http.Handler
}

func setupEnv(t *testing.T) *testEnv {
	t.Helper()
	st, err := sqlstore.New("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	hub := ws.NewHub(st, zerolog.Nop())
	return &testEnv{store: st, hub: hub, router: NewRouter(st, hub, zerolog.Nop(), nil)}
}

func (e *testEnv) user(t *testing.T, username string) *models.User {
	t.Helper()
	u := &models.User{Username: username, Password: "x"}
	if err := e.store.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("CreateUser %s: %v", username, err)
	}
	return u
}

// chat creates a chat whose first member is the owner.
func (e *testEnv) chat(t *testing.T, isGroup bool, members ...*models.User) *models.Chat {
	t.Helper()
	ctx := context.Background()
	c, err := e.store.CreateChat(ctx, "Test Chat", isGroup)
	if err != nil {
		t.Fatalf("CreateChat: %v", err)
	}
	for i, m := range members {
		role := models.RoleMember
		if i == 0 {
			role = models.RoleOwner
		}
		if err := e.store.AddParticipant(ctx, c.ID, m.ID, role); err != nil {
			t.Fatalf("AddParticipant: %v", err)
		}
	}
	return c
}

// connect registers a recording socket for the user.
func (e *testEnv) connect(userID string) *recordingConn {
	c := &recordingConn{}
	e.hub.Registry().Set(userID, c)
	return c
}

func (e *testEnv) do(t *testing.T, method, path string, as *models.User, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if as != nil {
		req.AddCookie(auth.SessionCookie(as.ID))
	}
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

func expectStatus(t *testing.T, rr *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rr.Code != want {
		t.Fatalf("handler returned wrong status code: got %v want %v (body %q)", rr.Code, want, rr.Body.String())
	}
}
