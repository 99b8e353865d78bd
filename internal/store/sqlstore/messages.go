package sqlstore

import (
	"context"
	"database/sql"

	"github.com/oklog/ulid/v2"
	"github.com/pliu/offchat/internal/models"
	"github.com/pliu/offchat/internal/store"
)

const insertMessage = `INSERT INTO messages
	(id, chat_id, sender_id, content, message_type, transaction_hash, amount, token_symbol, nft_id, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// Any other participant of the chat that has blocked the sender.
const senderBlockedInChat = `
	SELECT EXISTS(
		SELECT 1 FROM blocked_users b
		JOIN participants p ON p.user_id = b.blocker_id
		WHERE p.chat_id = ? AND b.blocked_id = ? AND b.blocker_id <> ?
	)`

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *SQLStore) insertMessage(ctx context.Context, db execer, msg *models.Message) error {
	msg.ID = ulid.Make().String()
	msg.Timestamp = now()
	if msg.MessageType == "" {
		msg.MessageType = models.MessageText
	}
	_, err := db.ExecContext(ctx, s.rebind(insertMessage),
		msg.ID, msg.ChatID, msg.SenderID, msg.Content, msg.MessageType,
		nullString(msg.TransactionHash), nullString(msg.Amount), nullString(msg.TokenSymbol), nullString(msg.NFTID),
		msg.Timestamp)
	return err
}

func (s *SQLStore) CreateMessage(ctx context.Context, msg *models.Message) error {
	return s.insertMessage(ctx, s.db, msg)
}

func (s *SQLStore) CreateMessageUnlessBlocked(ctx context.Context, msg *models.Message) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var blocked bool
	if err := tx.QueryRowContext(ctx, s.rebind(senderBlockedInChat), msg.ChatID, msg.SenderID, msg.SenderID).Scan(&blocked); err != nil {
		return err
	}
	if blocked {
		return store.ErrSenderBlocked
	}
	if err := s.insertMessage(ctx, tx, msg); err != nil {
		return err
	}
	return tx.Commit()
}

const messageColumns = `id, chat_id, sender_id, content, message_type,
	COALESCE(transaction_hash, ''), COALESCE(amount, ''), COALESCE(token_symbol, ''), COALESCE(nft_id, ''),
	created_at, is_delivered, is_read, is_pinned`

func scanMessage(row interface{ Scan(...any) error }) (*models.Message, error) {
	var m models.Message
	err := row.Scan(&m.ID, &m.ChatID, &m.SenderID, &m.Content, &m.MessageType,
		&m.TransactionHash, &m.Amount, &m.TokenSymbol, &m.NFTID,
		&m.Timestamp, &m.IsDelivered, &m.IsRead, &m.IsPinned)
	if err != nil {
		return nil, notFound(err)
	}
	return &m, nil
}

func (s *SQLStore) GetMessage(ctx context.Context, messageID string) (*models.Message, error) {
	query := s.rebind("SELECT " + messageColumns + " FROM messages WHERE id = ?")
	return scanMessage(s.db.QueryRowContext(ctx, query, messageID))
}

func (s *SQLStore) DeleteMessage(ctx context.Context, messageID string) error {
	res, err := s.db.ExecContext(ctx, s.rebind("DELETE FROM messages WHERE id = ?"), messageID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *SQLStore) GetChatMessages(ctx context.Context, chatID string) ([]models.Message, error) {
	query := s.rebind("SELECT " + messageColumns + " FROM messages WHERE chat_id = ? ORDER BY created_at ASC, id ASC")
	rows, err := s.db.QueryContext(ctx, query, chatID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, *m)
	}
	return messages, rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
