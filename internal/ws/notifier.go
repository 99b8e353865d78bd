package ws

import (
	"encoding/json"
	"sync"

	"github.com/pliu/offchat/internal/metrics"
	"github.com/pliu/offchat/internal/models"
	"github.com/rs/zerolog"
)

// Notifier delivers per-user events (friend requests) to the sockets a user
// subscribed with join_global, plus the user's registry connection.
type Notifier struct {
	mu       sync.RWMutex
	subs     map[string]map[Conn]struct{}
	registry Registry
	logger   zerolog.Logger
}

func NewNotifier(registry Registry, logger zerolog.Logger) *Notifier {
	return &Notifier{
		subs:     make(map[string]map[Conn]struct{}),
		registry: registry,
		logger:   logger,
	}
}

func (n *Notifier) Subscribe(userID string, conn Conn) {
	n.mu.Lock()
	defer n.mu.Unlock()
	set, ok := n.subs[userID]
	if !ok {
		set = make(map[Conn]struct{})
		n.subs[userID] = set
	}
	set[conn] = struct{}{}
}

func (n *Notifier) Unsubscribe(userID string, conn Conn) {
	n.mu.Lock()
	defer n.mu.Unlock()
	set, ok := n.subs[userID]
	if !ok {
		return
	}
	delete(set, conn)
	if len(set) == 0 {
		delete(n.subs, userID)
	}
}

// openSubscriber returns an open subscription of userID other than except.
func (n *Notifier) openSubscriber(userID string, except Conn) Conn {
	n.mu.RLock()
	defer n.mu.RUnlock()
	for c := range n.subs[userID] {
		if c != except && c.IsOpen() {
			return c
		}
	}
	return nil
}

func (n *Notifier) targets(userID string) []Conn {
	n.mu.RLock()
	targets := make([]Conn, 0, len(n.subs[userID])+1)
	for c := range n.subs[userID] {
		targets = append(targets, c)
	}
	n.mu.RUnlock()

	if c, ok := n.registry.Get(userID); ok {
		for _, t := range targets {
			if t == c {
				return targets
			}
		}
		targets = append(targets, c)
	}
	return targets
}

// Notify sends payload to every socket of userID and returns how many sockets
// it was queued on. Sockets that fail are dropped from both indexes.
func (n *Notifier) Notify(userID string, payload any) int {
	data, err := json.Marshal(payload)
	if err != nil {
		n.logger.Error().Err(err).Msg("marshal notification")
		return 0
	}

	delivered := 0
	for _, c := range n.targets(userID) {
		if !c.IsOpen() {
			continue
		}
		if err := c.Send(data); err != nil {
			n.logger.Warn().Err(err).Str("user_id", userID).Msg("notification send failed, evicting connection")
			n.Unsubscribe(userID, c)
			if n.registry.Delete(userID, c) {
				metrics.Evictions.Inc()
			}
			continue
		}
		delivered++
	}
	if delivered > 0 {
		metrics.FriendNotifications.WithLabelValues(payloadType(payload)).Add(float64(delivered))
	}
	return delivered
}

// FriendRequestReceived tells the addressee about a new request.
func (n *Notifier) FriendRequestReceived(f *models.Friendship, requester *models.User) int {
	return n.Notify(f.AddresseeID, FriendRequestReceivedEvent{
		Type:       TypeFriendRequestReceived,
		Friendship: f,
		Requester: RequesterProfile{
			ID:       requester.ID,
			Username: requester.Username,
			Avatar:   requester.Avatar,
		},
	})
}

func (n *Notifier) FriendRequestAccepted(f *models.Friendship) int {
	return n.resolved(TypeFriendRequestAccepted, f)
}

func (n *Notifier) FriendRequestRejected(f *models.Friendship) int {
	return n.resolved(TypeFriendRequestRejected, f)
}

func (n *Notifier) resolved(eventType string, f *models.Friendship) int {
	ev := FriendRequestResolvedEvent{
		Type:         eventType,
		FriendshipID: f.ID,
		RequesterID:  f.RequesterID,
		AddresseeID:  f.AddresseeID,
	}
	delivered := n.Notify(f.RequesterID, ev)
	if f.AddresseeID != f.RequesterID {
		delivered += n.Notify(f.AddresseeID, ev)
	}
	return delivered
}
