package ws

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pliu/offchat/internal/store"
	"github.com/rs/zerolog"
)

const defaultStoreTimeout = 5 * time.Second

// Session is the identity a socket has claimed through join or join_global.
// It is only touched by the socket's reader goroutine.
type Session struct {
	// Principal is the user the upgrade request authenticated as. Frames
	// naming any other user are refused.
	Principal string
	UserID    string
	// ChatID is the last chat joined; offline status is announced there.
	ChatID string
	Global bool
}

type Hub struct {
	store        store.Store
	registry     Registry
	presence     *PresenceTracker
	broadcaster  *Broadcaster
	pipeline     *Pipeline
	notifier     *Notifier
	logger       zerolog.Logger
	storeTimeout time.Duration
	upgrader     upgrader
}

type Option func(*hubOptions)

type hubOptions struct {
	registry       Registry
	presenceCache  PresenceCache
	storeTimeout   time.Duration
	allowedOrigins []string
}

// WithRegistry replaces the in-memory connection registry.
func WithRegistry(r Registry) Option {
	return func(o *hubOptions) { o.registry = r }
}

// WithPresenceCache mirrors online flags into cache.
func WithPresenceCache(cache PresenceCache) Option {
	return func(o *hubOptions) { o.presenceCache = cache }
}

// WithStoreTimeout bounds the store calls made while handling one frame.
func WithStoreTimeout(d time.Duration) Option {
	return func(o *hubOptions) { o.storeTimeout = d }
}

// WithAllowedOrigins restricts the Origin header on upgrade. Empty or "*"
// accepts any origin.
func WithAllowedOrigins(origins []string) Option {
	return func(o *hubOptions) { o.allowedOrigins = origins }
}

func NewHub(st store.Store, logger zerolog.Logger, opts ...Option) *Hub {
	o := hubOptions{storeTimeout: defaultStoreTimeout}
	for _, opt := range opts {
		opt(&o)
	}
	if o.registry == nil {
		o.registry = NewRegistry()
	}
	if o.storeTimeout <= 0 {
		o.storeTimeout = defaultStoreTimeout
	}

	logger = logger.With().Str("component", "ws").Logger()
	b := NewBroadcaster(st, o.registry, logger)
	return &Hub{
		store:        st,
		registry:     o.registry,
		presence:     NewPresenceTracker(st, o.presenceCache, logger),
		broadcaster:  b,
		pipeline:     NewPipeline(st, b, logger),
		notifier:     NewNotifier(o.registry, logger),
		logger:       logger,
		storeTimeout: o.storeTimeout,
		upgrader:     newUpgrader(o.allowedOrigins),
	}
}

func (h *Hub) Registry() Registry { return h.registry }

func (h *Hub) Notifier() *Notifier { return h.notifier }

func (h *Hub) Broadcaster() *Broadcaster { return h.broadcaster }

// HandleFrame processes one raw frame received on conn. Frames from one socket
// must be handed in sequentially.
func (h *Hub) HandleFrame(ctx context.Context, conn Conn, sess *Session, data []byte) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		h.logger.Warn().Err(err).Msg("malformed frame")
		return
	}

	ctx, cancel := context.WithTimeout(ctx, h.storeTimeout)
	defer cancel()

	switch f.Type {
	case TypeJoin:
		h.join(ctx, conn, sess, f)
	case TypeJoinGlobal:
		h.joinGlobal(ctx, conn, sess, f)
	case TypeSendMessage:
		h.sendMessage(ctx, conn, sess, f)
	case TypeTyping:
		h.typing(ctx, conn, sess, f)
	default:
		h.logger.Warn().Str("type", f.Type).Msg("unknown frame type")
	}
}

// authorize fills in an omitted userId with the socket's principal and
// refuses frames that name anyone else.
func (h *Hub) authorize(conn Conn, sess *Session, f *Frame) bool {
	if f.UserID == "" {
		f.UserID = sess.Principal
	}
	if sess.Principal == "" || f.UserID != sess.Principal {
		h.logger.Warn().Str("principal", sess.Principal).Str("user_id", f.UserID).Str("type", f.Type).Msg("frame for another user refused")
		sendJSON(conn, errorEvent("User mismatch"), h.logger)
		return false
	}
	return true
}

func (h *Hub) join(ctx context.Context, conn Conn, sess *Session, f Frame) {
	if f.ChatID == "" {
		sendJSON(conn, errorEvent("chatId is required"), h.logger)
		return
	}
	if !h.authorize(conn, sess, &f) {
		return
	}
	h.claim(conn, sess, f.UserID)
	sess.ChatID = f.ChatID

	if err := h.presence.MarkOnline(ctx, f.UserID); err != nil {
		h.logger.Error().Err(err).Str("user_id", f.UserID).Msg("mark online")
	}
	ev := UserStatusEvent{Type: TypeUserStatus, UserID: f.UserID, IsOnline: true}
	if _, err := h.broadcaster.Broadcast(ctx, f.ChatID, ev, f.UserID); err != nil {
		h.logger.Error().Err(err).Str("chat_id", f.ChatID).Msg("broadcast online status")
	}
	h.logger.Info().Str("user_id", f.UserID).Str("chat_id", f.ChatID).Msg("user joined chat")
}

func (h *Hub) joinGlobal(ctx context.Context, conn Conn, sess *Session, f Frame) {
	if !h.authorize(conn, sess, &f) {
		return
	}
	h.claim(conn, sess, f.UserID)
	sess.Global = true
	h.notifier.Subscribe(f.UserID, conn)

	if err := h.presence.MarkOnline(ctx, f.UserID); err != nil {
		h.logger.Error().Err(err).Str("user_id", f.UserID).Msg("mark online")
	}
	h.logger.Info().Str("user_id", f.UserID).Msg("user joined global channel")
}

// claim binds the socket to userID and makes it the user's registry entry.
func (h *Hub) claim(conn Conn, sess *Session, userID string) {
	sess.UserID = userID
	if prev := h.registry.Set(userID, conn); prev != nil && prev != conn {
		h.logger.Debug().Str("user_id", userID).Msg("connection replaced")
	}
}

func (h *Hub) sendMessage(ctx context.Context, conn Conn, sess *Session, f Frame) {
	if sess.UserID == "" {
		sendJSON(conn, errorEvent("Join a chat before sending messages"), h.logger)
		return
	}
	if f.SenderID == "" {
		f.SenderID = sess.UserID
	}
	if f.SenderID != sess.UserID {
		sendJSON(conn, errorEvent("Sender mismatch"), h.logger)
		return
	}
	h.pipeline.Ingest(ctx, conn, f)
}

func (h *Hub) typing(ctx context.Context, conn Conn, sess *Session, f Frame) {
	if f.ChatID == "" || !h.authorize(conn, sess, &f) {
		return
	}
	member, err := isParticipant(ctx, h.store, f.ChatID, f.UserID)
	if err != nil {
		h.logger.Error().Err(err).Str("chat_id", f.ChatID).Msg("check typing membership")
		return
	}
	if !member {
		sendJSON(conn, errorEvent(errNotParticipant), h.logger)
		return
	}
	ev := TypingEvent{Type: TypeTyping, UserID: f.UserID, IsTyping: f.IsTyping}
	if _, err := h.broadcaster.Broadcast(ctx, f.ChatID, ev, f.UserID); err != nil {
		h.logger.Error().Err(err).Str("chat_id", f.ChatID).Msg("broadcast typing")
	}
}

// Disconnect releases everything the closed socket held.
func (h *Hub) Disconnect(ctx context.Context, conn Conn, sess *Session) {
	ctx, cancel := context.WithTimeout(ctx, h.storeTimeout)
	defer cancel()
	h.release(ctx, conn, sess)
}

func (h *Hub) release(ctx context.Context, conn Conn, sess *Session) {
	if sess.UserID == "" {
		return
	}
	userID := sess.UserID
	if sess.Global {
		h.notifier.Unsubscribe(userID, conn)
	}

	if !h.registry.Delete(userID, conn) {
		// A newer socket owns the entry; the user is still online.
		return
	}
	if next := h.notifier.openSubscriber(userID, conn); next != nil {
		// A socket that joined since the Delete keeps the entry.
		h.registry.SetIfAbsent(userID, next)
		return
	}

	if err := h.presence.MarkOffline(ctx, userID); err != nil {
		h.logger.Error().Err(err).Str("user_id", userID).Msg("mark offline")
	}
	if sess.ChatID != "" {
		ev := UserStatusEvent{Type: TypeUserStatus, UserID: userID, IsOnline: false}
		if _, err := h.broadcaster.Broadcast(ctx, sess.ChatID, ev, userID); err != nil {
			h.logger.Error().Err(err).Str("chat_id", sess.ChatID).Msg("broadcast offline status")
		}
	}
	h.logger.Info().Str("user_id", userID).Msg("user disconnected")
}

// MessageDeleted tells the chat that a message is gone.
func (h *Hub) MessageDeleted(ctx context.Context, chatID, messageID string) error {
	_, err := h.broadcaster.Broadcast(ctx, chatID, MessageDeletedEvent{
		Type:      TypeMessageDeleted,
		MessageID: messageID,
		ChatID:    chatID,
	}, "")
	return err
}

// ChatDeleted must be called before the participants are removed.
func (h *Hub) ChatDeleted(ctx context.Context, chatID string) error {
	_, err := h.broadcaster.Broadcast(ctx, chatID, ChatDeletedEvent{Type: TypeChatDeleted, ChatID: chatID}, "")
	return err
}

// UserKicked announces a removal to the remaining participants and to the
// removed user, who is no longer in the participant list.
func (h *Hub) UserKicked(ctx context.Context, chatID, userID, reason string) error {
	ev := UserKickedEvent{Type: TypeUserKicked, UserID: userID, ChatID: chatID, Reason: reason}
	_, err := h.broadcaster.Broadcast(ctx, chatID, ev, userID)
	h.notifier.Notify(userID, ev)
	return err
}

func sendJSON(conn Conn, payload any, logger zerolog.Logger) {
	data, err := json.Marshal(payload)
	if err != nil {
		logger.Error().Err(err).Msg("marshal frame")
		return
	}
	if err := conn.Send(data); err != nil {
		logger.Warn().Err(err).Msg("send frame")
	}
}
