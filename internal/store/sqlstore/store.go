package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib" // Postgres driver, registered as "pgx"
	_ "github.com/mattn/go-sqlite3"    // SQLite driver
	"github.com/pliu/offchat/internal/models"
	"github.com/pliu/offchat/internal/store"
)

type SQLStore struct {
	db         *sql.DB
	driverName string
}

var _ store.Store = (*SQLStore)(nil)

func New(driverName, dataSourceName string) (*SQLStore, error) {
	db, err := sql.Open(driverName, dataSourceName)
	if err != nil {
		return nil, err
	}
	if driverName == "sqlite3" {
		// :memory: databases are per connection
		db.SetMaxOpenConns(1)
	}
	if err = db.Ping(); err != nil {
		return nil, err
	}

	s := &SQLStore{db: db, driverName: driverName}
	if err := s.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}
	return s, nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id TEXT PRIMARY KEY,
	username TEXT UNIQUE NOT NULL,
	password TEXT NOT NULL,
	wallet_address TEXT,
	avatar TEXT,
	is_online BOOLEAN DEFAULT FALSE,
	last_seen TIMESTAMP
);

CREATE TABLE IF NOT EXISTS chats (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	is_group BOOLEAN DEFAULT FALSE
);

CREATE TABLE IF NOT EXISTS participants (
	chat_id TEXT REFERENCES chats(id),
	user_id TEXT REFERENCES users(id),
	role TEXT NOT NULL DEFAULT 'member',
	PRIMARY KEY (chat_id, user_id)
);

CREATE TABLE IF NOT EXISTS messages (
	id TEXT PRIMARY KEY,
	chat_id TEXT REFERENCES chats(id),
	sender_id TEXT REFERENCES users(id),
	content TEXT NOT NULL,
	message_type TEXT NOT NULL DEFAULT 'text',
	transaction_hash TEXT,
	amount TEXT,
	token_symbol TEXT,
	nft_id TEXT,
	created_at TIMESTAMP NOT NULL,
	is_delivered BOOLEAN DEFAULT FALSE,
	is_read BOOLEAN DEFAULT FALSE,
	is_pinned BOOLEAN DEFAULT FALSE
);

CREATE TABLE IF NOT EXISTS blocked_users (
	blocker_id TEXT REFERENCES users(id),
	blocked_id TEXT REFERENCES users(id),
	created_at TIMESTAMP NOT NULL,
	PRIMARY KEY (blocker_id, blocked_id)
);

CREATE TABLE IF NOT EXISTS nfts (
	id TEXT PRIMARY KEY,
	owner_id TEXT REFERENCES users(id),
	contract_address TEXT NOT NULL,
	token_id TEXT NOT NULL,
	name TEXT NOT NULL,
	chain TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS friendships (
	id TEXT PRIMARY KEY,
	requester_id TEXT REFERENCES users(id),
	addressee_id TEXT REFERENCES users(id),
	status TEXT NOT NULL DEFAULT 'pending',
	created_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS banned_members (
	chat_id TEXT REFERENCES chats(id),
	user_id TEXT REFERENCES users(id),
	banned_by TEXT REFERENCES users(id),
	reason TEXT,
	banned_at TIMESTAMP NOT NULL,
	PRIMARY KEY (chat_id, user_id)
)
`

func (s *SQLStore) createTables() error {
	// Simplified for brevity, ideally use migrations
	for _, stmt := range strings.Split(schema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Helper to handle placeholders
func (s *SQLStore) rebind(query string) string {
	if s.driverName == "pgx" || s.driverName == "postgres" {
		// Replace ? with $1, $2, etc.
		n := strings.Count(query, "?")
		for i := 1; i <= n; i++ {
			query = strings.Replace(query, "?", fmt.Sprintf("$%d", i), 1)
		}
	}
	return query
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	return err
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint") || strings.Contains(msg, "duplicate key")
}

func newID() string {
	return uuid.NewString()
}

func now() time.Time {
	return time.Now().UTC()
}

func (s *SQLStore) CreateUser(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = newID()
	}
	user.LastSeen = now()
	query := s.rebind("INSERT INTO users (id, username, password, wallet_address, avatar, is_online, last_seen) VALUES (?, ?, ?, ?, ?, ?, ?)")
	_, err := s.db.ExecContext(ctx, query, user.ID, user.Username, user.Password, user.WalletAddress, user.Avatar, false, user.LastSeen)
	if isUniqueViolation(err) {
		return store.ErrConflict
	}
	return err
}

const userColumns = "id, username, password, COALESCE(wallet_address, ''), COALESCE(avatar, ''), is_online, last_seen"

func scanUser(row interface{ Scan(...any) error }) (*models.User, error) {
	var user models.User
	var lastSeen sql.NullTime
	if err := row.Scan(&user.ID, &user.Username, &user.Password, &user.WalletAddress, &user.Avatar, &user.IsOnline, &lastSeen); err != nil {
		return nil, notFound(err)
	}
	user.LastSeen = lastSeen.Time
	return &user, nil
}

func (s *SQLStore) GetUser(ctx context.Context, id string) (*models.User, error) {
	query := s.rebind("SELECT " + userColumns + " FROM users WHERE id = ?")
	return scanUser(s.db.QueryRowContext(ctx, query, id))
}

func (s *SQLStore) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	query := s.rebind("SELECT " + userColumns + " FROM users WHERE username = ?")
	return scanUser(s.db.QueryRowContext(ctx, query, username))
}

func (s *SQLStore) SearchUsers(ctx context.Context, queryStr string) ([]models.User, error) {
	query := s.rebind("SELECT " + userColumns + " FROM users WHERE username LIKE ? ORDER BY username LIMIT 10")
	rows, err := s.db.QueryContext(ctx, query, "%"+queryStr+"%")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *user)
	}
	return users, rows.Err()
}

func (s *SQLStore) UpdateUserOnlineStatus(ctx context.Context, userID string, online bool) error {
	query := s.rebind("UPDATE users SET is_online = ?, last_seen = ? WHERE id = ?")
	_, err := s.db.ExecContext(ctx, query, online, now(), userID)
	return err
}
