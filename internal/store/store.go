package store

import (
	"context"
	"errors"

	"github.com/pliu/offchat/internal/models"
)

var (
	// ErrNotFound is returned when a looked-up row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrSenderBlocked is returned by CreateMessageUnlessBlocked when another
	// participant of the chat has blocked the sender.
	ErrSenderBlocked = errors.New("sender is blocked by a participant")
	// ErrConflict is returned on unique constraint violations.
	ErrConflict = errors.New("already exists")
)

type Store interface {
	// User operations
	CreateUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, id string) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	SearchUsers(ctx context.Context, query string) ([]models.User, error)
	UpdateUserOnlineStatus(ctx context.Context, userID string, online bool) error

	// Chat operations
	CreateChat(ctx context.Context, name string, isGroup bool) (*models.Chat, error)
	GetChat(ctx context.Context, chatID string) (*models.Chat, error)
	DeleteChat(ctx context.Context, chatID string) error
	AddParticipant(ctx context.Context, chatID, userID, role string) error
	RemoveParticipant(ctx context.Context, chatID, userID string) error
	SetParticipantRole(ctx context.Context, chatID, userID, role string) error
	GetChatParticipants(ctx context.Context, chatID string) ([]models.Participant, error)
	GetUserChats(ctx context.Context, userID string) ([]models.Chat, error)
	BanUser(ctx context.Context, ban *models.BannedMember) error

	// Message operations
	CreateMessage(ctx context.Context, msg *models.Message) error
	// CreateMessageUnlessBlocked checks the block relations of every other
	// participant and inserts msg in the same transaction.
	CreateMessageUnlessBlocked(ctx context.Context, msg *models.Message) error
	GetMessage(ctx context.Context, messageID string) (*models.Message, error)
	DeleteMessage(ctx context.Context, messageID string) error
	GetChatMessages(ctx context.Context, chatID string) ([]models.Message, error)

	// Block operations
	BlockUser(ctx context.Context, blockerID, blockedID string) error
	UnblockUser(ctx context.Context, blockerID, blockedID string) error
	IsUserBlocked(ctx context.Context, blockerID, blockedID string) (bool, error)

	// NFT operations
	CreateNFT(ctx context.Context, nft *models.NFT) error
	GetNFT(ctx context.Context, nftID string) (*models.NFT, error)

	// Friend operations
	SendFriendRequest(ctx context.Context, requesterID, addresseeID string) (*models.Friendship, error)
	GetFriendship(ctx context.Context, friendshipID string) (*models.Friendship, error)
	CheckFriendship(ctx context.Context, userA, userB string) (bool, error)
	SetFriendshipStatus(ctx context.Context, friendshipID, status string) error

	Close() error
}
