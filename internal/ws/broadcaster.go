package ws

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/pliu/offchat/internal/metrics"
	"github.com/pliu/offchat/internal/models"
	"github.com/rs/zerolog"
)

// ParticipantLister resolves the members of a chat.
type ParticipantLister interface {
	GetChatParticipants(ctx context.Context, chatID string) ([]models.Participant, error)
}

const errNotParticipant = "Not a participant of this chat"

func isParticipant(ctx context.Context, lister ParticipantLister, chatID, userID string) (bool, error) {
	participants, err := lister.GetChatParticipants(ctx, chatID)
	if err != nil {
		return false, err
	}
	return containsParticipant(participants, userID), nil
}

func containsParticipant(participants []models.Participant, userID string) bool {
	for _, p := range participants {
		if p.ID == userID {
			return true
		}
	}
	return false
}

// Broadcaster fans a payload out to the connected participants of a chat.
type Broadcaster struct {
	participants ParticipantLister
	registry     Registry
	logger       zerolog.Logger
}

func NewBroadcaster(participants ParticipantLister, registry Registry, logger zerolog.Logger) *Broadcaster {
	return &Broadcaster{participants: participants, registry: registry, logger: logger}
}

// Broadcast sends payload to every connected participant of chatID except
// excludeUserID (empty excludes nobody) and returns the number of sockets
// the payload was queued on. Participants are looked up on every call.
// A failed send evicts that connection and the fan-out continues.
func (b *Broadcaster) Broadcast(ctx context.Context, chatID string, payload any, excludeUserID string) (int, error) {
	participants, err := b.participants.GetChatParticipants(ctx, chatID)
	if err != nil {
		return 0, fmt.Errorf("list participants of %s: %w", chatID, err)
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return 0, err
	}
	frameType := payloadType(payload)
	metrics.Broadcasts.Inc()

	delivered := 0
	for _, p := range participants {
		if p.ID == excludeUserID {
			continue
		}
		conn, ok := b.registry.Get(p.ID)
		if !ok || !conn.IsOpen() {
			continue
		}
		if err := conn.Send(data); err != nil {
			b.logger.Warn().Err(err).Str("user_id", p.ID).Str("chat_id", chatID).Msg("send failed, evicting connection")
			if b.registry.Delete(p.ID, conn) {
				metrics.Evictions.Inc()
			}
			continue
		}
		delivered++
	}
	metrics.FramesSent.WithLabelValues(frameType).Add(float64(delivered))

	b.logger.Debug().
		Str("chat_id", chatID).
		Str("type", frameType).
		Int("participants", len(participants)).
		Int("delivered", delivered).
		Msg("broadcast")
	return delivered, nil
}

func payloadType(payload any) string {
	switch p := payload.(type) {
	case NewMessageEvent:
		return p.Type
	case UserStatusEvent:
		return p.Type
	case TypingEvent:
		return p.Type
	case MessageDeletedEvent:
		return p.Type
	case ChatDeletedEvent:
		return p.Type
	case UserKickedEvent:
		return p.Type
	case FriendRequestReceivedEvent:
		return p.Type
	case FriendRequestResolvedEvent:
		return p.Type
	case NewChatEvent:
		return p.Type
	case ErrorEvent:
		return p.Type
	}
	return "other"
}
