package sqlstore

import (
	"context"

	"github.com/pliu/offchat/internal/models"
	"github.com/pliu/offchat/internal/store"
)

func (s *SQLStore) CreateChat(ctx context.Context, name string, isGroup bool) (*models.Chat, error) {
	chat := &models.Chat{ID: newID(), Name: name, IsGroup: isGroup}
	query := s.rebind("INSERT INTO chats (id, name, is_group) VALUES (?, ?, ?)")
	if _, err := s.db.ExecContext(ctx, query, chat.ID, chat.Name, chat.IsGroup); err != nil {
		return nil, err
	}
	return chat, nil
}

func (s *SQLStore) GetChat(ctx context.Context, chatID string) (*models.Chat, error) {
	var chat models.Chat
	query := s.rebind("SELECT id, name, is_group FROM chats WHERE id = ?")
	if err := s.db.QueryRowContext(ctx, query, chatID).Scan(&chat.ID, &chat.Name, &chat.IsGroup); err != nil {
		return nil, notFound(err)
	}
	return &chat, nil
}

func (s *SQLStore) DeleteChat(ctx context.Context, chatID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// Children first (foreign key constraints)
	for _, q := range []string{
		"DELETE FROM messages WHERE chat_id = ?",
		"DELETE FROM participants WHERE chat_id = ?",
		"DELETE FROM banned_members WHERE chat_id = ?",
	} {
		if _, err := tx.ExecContext(ctx, s.rebind(q), chatID); err != nil {
			return err
		}
	}

	res, err := tx.ExecContext(ctx, s.rebind("DELETE FROM chats WHERE id = ?"), chatID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return tx.Commit()
}

func (s *SQLStore) AddParticipant(ctx context.Context, chatID, userID, role string) error {
	if role == "" {
		role = models.RoleMember
	}
	query := s.rebind("INSERT INTO participants (chat_id, user_id, role) VALUES (?, ?, ?)")
	_, err := s.db.ExecContext(ctx, query, chatID, userID, role)
	if isUniqueViolation(err) {
		return store.ErrConflict
	}
	return err
}

func (s *SQLStore) RemoveParticipant(ctx context.Context, chatID, userID string) error {
	query := s.rebind("DELETE FROM participants WHERE chat_id = ? AND user_id = ?")
	_, err := s.db.ExecContext(ctx, query, chatID, userID)
	return err
}

func (s *SQLStore) SetParticipantRole(ctx context.Context, chatID, userID, role string) error {
	query := s.rebind("UPDATE participants SET role = ? WHERE chat_id = ? AND user_id = ?")
	res, err := s.db.ExecContext(ctx, query, role, chatID, userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *SQLStore) GetChatParticipants(ctx context.Context, chatID string) ([]models.Participant, error) {
	query := s.rebind(`
		SELECT u.id, u.username, COALESCE(u.avatar, ''), p.role
		FROM users u
		JOIN participants p ON u.id = p.user_id
		WHERE p.chat_id = ?
		ORDER BY u.username
	`)

	rows, err := s.db.QueryContext(ctx, query, chatID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var participants []models.Participant
	for rows.Next() {
		var p models.Participant
		if err := rows.Scan(&p.ID, &p.Username, &p.Avatar, &p.Role); err != nil {
			return nil, err
		}
		participants = append(participants, p)
	}
	return participants, rows.Err()
}

func (s *SQLStore) GetUserChats(ctx context.Context, userID string) ([]models.Chat, error) {
	query := s.rebind(`
		SELECT c.id, c.name, c.is_group
		FROM chats c
		JOIN participants p ON c.id = p.chat_id
		WHERE p.user_id = ?
		ORDER BY c.name
	`)
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chats []models.Chat
	for rows.Next() {
		var chat models.Chat
		if err := rows.Scan(&chat.ID, &chat.Name, &chat.IsGroup); err != nil {
			return nil, err
		}
		chats = append(chats, chat)
	}
	return chats, rows.Err()
}

func (s *SQLStore) BanUser(ctx context.Context, ban *models.BannedMember) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	ban.BannedAt = now()
	if _, err := tx.ExecContext(ctx, s.rebind("DELETE FROM participants WHERE chat_id = ? AND user_id = ?"), ban.ChatID, ban.UserID); err != nil {
		return err
	}
	query := s.rebind("INSERT INTO banned_members (chat_id, user_id, banned_by, reason, banned_at) VALUES (?, ?, ?, ?, ?)")
	if _, err := tx.ExecContext(ctx, query, ban.ChatID, ban.UserID, ban.BannedBy, ban.Reason, ban.BannedAt); err != nil {
		if isUniqueViolation(err) {
			return store.ErrConflict
		}
		return err
	}
	return tx.Commit()
}
