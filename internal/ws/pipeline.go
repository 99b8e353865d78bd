package ws

import (
	"context"
	"errors"

	"github.com/pliu/offchat/internal/metrics"
	"github.com/pliu/offchat/internal/models"
	"github.com/pliu/offchat/internal/store"
	"github.com/rs/zerolog"
)

// Outcome is the result of ingesting one send_message frame.
type Outcome int

const (
	// OutcomeDelivered: persisted and broadcast to the chat.
	OutcomeDelivered Outcome = iota
	// OutcomeDropped: the sender is blocked by a participant. Nothing is
	// persisted and nobody, the sender included, is told.
	OutcomeDropped
	// OutcomeRejected: validation failed and an error frame went to the sender.
	OutcomeRejected
	// OutcomeFailed: a store call failed; logged, nothing broadcast.
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeDelivered:
		return "delivered"
	case OutcomeDropped:
		return "dropped"
	case OutcomeRejected:
		return "rejected"
	case OutcomeFailed:
		return "failed"
	}
	return "unknown"
}

// MessageStore is the subset of store.Store the ingest pipeline needs.
type MessageStore interface {
	ParticipantLister
	IsUserBlocked(ctx context.Context, blockerID, blockedID string) (bool, error)
	GetNFT(ctx context.Context, nftID string) (*models.NFT, error)
	CreateMessageUnlessBlocked(ctx context.Context, msg *models.Message) error
}

// Pipeline validates, persists and fans out inbound chat messages.
type Pipeline struct {
	store       MessageStore
	broadcaster *Broadcaster
	logger      zerolog.Logger
}

func NewPipeline(st MessageStore, b *Broadcaster, logger zerolog.Logger) *Pipeline {
	return &Pipeline{store: st, broadcaster: b, logger: logger}
}

// Ingest runs one send_message frame from origin through the pipeline.
// The returned message is nil unless the outcome is OutcomeDelivered.
func (p *Pipeline) Ingest(ctx context.Context, origin Conn, f Frame) (Outcome, *models.Message) {
	outcome, msg := p.ingest(ctx, origin, f)
	metrics.MessagesIngested.WithLabelValues(outcome.String()).Inc()
	return outcome, msg
}

func (p *Pipeline) ingest(ctx context.Context, origin Conn, f Frame) (Outcome, *models.Message) {
	log := p.logger.With().Str("chat_id", f.ChatID).Str("sender_id", f.SenderID).Logger()

	msg := &models.Message{
		ChatID:          f.ChatID,
		SenderID:        f.SenderID,
		Content:         f.Content,
		MessageType:     f.MessageType,
		TransactionHash: f.TransactionHash,
		Amount:          f.Amount,
		TokenSymbol:     f.TokenSymbol,
		NFTID:           f.NFTID,
	}
	if !models.ValidMessageType(msg.MessageType) {
		msg.MessageType = models.MessageText
	}
	if msg.ChatID == "" || msg.SenderID == "" {
		p.reject(origin, "chatId and senderId are required")
		return OutcomeRejected, nil
	}
	if msg.MessageType == models.MessageText && msg.NFTID == "" && msg.Content == "" {
		p.reject(origin, "Message content required")
		return OutcomeRejected, nil
	}

	participants, err := p.store.GetChatParticipants(ctx, msg.ChatID)
	if err != nil {
		log.Error().Err(err).Msg("list participants")
		return OutcomeFailed, nil
	}
	if !containsParticipant(participants, msg.SenderID) {
		p.reject(origin, errNotParticipant)
		return OutcomeRejected, nil
	}
	for _, participant := range participants {
		if participant.ID == msg.SenderID {
			continue
		}
		blocked, err := p.store.IsUserBlocked(ctx, participant.ID, msg.SenderID)
		if err != nil {
			log.Error().Err(err).Str("participant_id", participant.ID).Msg("check block")
			return OutcomeFailed, nil
		}
		if blocked {
			log.Debug().Str("blocker_id", participant.ID).Msg("sender blocked, dropping message")
			return OutcomeDropped, nil
		}
	}

	if msg.NFTID != "" {
		nft, err := p.store.GetNFT(ctx, msg.NFTID)
		switch {
		case errors.Is(err, store.ErrNotFound):
			p.reject(origin, "NFT not found")
			return OutcomeRejected, nil
		case err != nil:
			log.Error().Err(err).Str("nft_id", msg.NFTID).Msg("validate nft")
			p.reject(origin, "Failed to validate NFT")
			return OutcomeRejected, nil
		case nft.OwnerID != msg.SenderID:
			p.reject(origin, "You do not own this NFT")
			return OutcomeRejected, nil
		}
		msg.MessageType = models.MessageNFT
	}

	// A block created after the check above is caught here.
	if err := p.store.CreateMessageUnlessBlocked(ctx, msg); err != nil {
		if errors.Is(err, store.ErrSenderBlocked) {
			log.Debug().Msg("sender blocked at persist time, dropping message")
			return OutcomeDropped, nil
		}
		log.Error().Err(err).Msg("persist message")
		return OutcomeFailed, nil
	}

	if _, err := p.broadcaster.Broadcast(ctx, msg.ChatID, NewMessageEvent{Type: TypeNewMessage, Message: msg}, ""); err != nil {
		log.Error().Err(err).Str("message_id", msg.ID).Msg("broadcast new message")
	}
	return OutcomeDelivered, msg
}

func (p *Pipeline) reject(origin Conn, reason string) {
	sendJSON(origin, errorEvent(reason), p.logger)
}
