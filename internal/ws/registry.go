package ws

import (
	"errors"
	"sync"
)

var (
	ErrConnClosed     = errors.New("connection closed")
	ErrSendBufferFull = errors.New("send buffer full")
)

// Conn is the write side of one socket as seen by the broadcast layer.
type Conn interface {
	// Send queues payload for delivery. It must not block.
	Send(payload []byte) error
	IsOpen() bool
}

// Registry maps a user id to the socket that receives that user's events.
//
// Only one connection is tracked per user: Set replaces any previous entry
// (last writer wins) and returns it. The replaced socket stays open.
type Registry interface {
	Get(userID string) (Conn, bool)
	Set(userID string, conn Conn) (prev Conn)
	// SetIfAbsent registers conn only when userID has no entry.
	SetIfAbsent(userID string, conn Conn) bool
	// Delete removes the entry only if it still points at conn.
	Delete(userID string, conn Conn) bool
	Range(fn func(userID string, conn Conn) bool)
	Len() int
}

type memoryRegistry struct {
	mu    sync.RWMutex
	conns map[string]Conn
}

func NewRegistry() Registry {
	return &memoryRegistry{conns: make(map[string]Conn)}
}

func (r *memoryRegistry) Get(userID string) (Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.conns[userID]
	return c, ok
}

func (r *memoryRegistry) Set(userID string, conn Conn) Conn {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev := r.conns[userID]
	r.conns[userID] = conn
	return prev
}

func (r *memoryRegistry) SetIfAbsent(userID string, conn Conn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.conns[userID]; ok {
		return false
	}
	r.conns[userID] = conn
	return true
}

func (r *memoryRegistry) Delete(userID string, conn Conn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.conns[userID]; ok && cur == conn {
		delete(r.conns, userID)
		return true
	}
	return false
}

// Range iterates over a snapshot so fn may call back into the registry.
func (r *memoryRegistry) Range(fn func(userID string, conn Conn) bool) {
	r.mu.RLock()
	snapshot := make(map[string]Conn, len(r.conns))
	for id, c := range r.conns {
		snapshot[id] = c
	}
	r.mu.RUnlock()

	for id, c := range snapshot {
		if !fn(id, c) {
			return
		}
	}
}

func (r *memoryRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
