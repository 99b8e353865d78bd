package models

import "time"

type User struct {
	ID            string    `json:"id"`
	Username      string    `json:"username"`
	Password      string    `json:"-"`
	WalletAddress string    `json:"walletAddress,omitempty"`
	Avatar        string    `json:"avatar,omitempty"`
	IsOnline      bool      `json:"isOnline"`
	LastSeen      time.Time `json:"lastSeen"`
}

type Chat struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	IsGroup bool   `json:"isGroup"`
}

// Participant roles.
const (
	RoleMember = "member"
	RoleAdmin  = "admin"
	RoleOwner  = "owner"
)

// Participant is a user as seen through their membership in one chat.
type Participant struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Avatar   string `json:"avatar,omitempty"`
	Role     string `json:"role"`
}

// CanModerate reports whether the role may kick, ban or delete others' messages.
func (p Participant) CanModerate() bool {
	return p.Role == RoleAdmin || p.Role == RoleOwner
}

// Message types.
const (
	MessageText              = "text"
	MessageMedia             = "media"
	MessageCryptoTransaction = "crypto_transaction"
	MessageNFT               = "nft"
)

// ValidMessageType reports whether t is one of the known message types.
func ValidMessageType(t string) bool {
	switch t {
	case MessageText, MessageMedia, MessageCryptoTransaction, MessageNFT:
		return true
	}
	return false
}

type Message struct {
	ID              string    `json:"id"`
	ChatID          string    `json:"chatId"`
	SenderID        string    `json:"senderId"`
	Content         string    `json:"content"`
	MessageType     string    `json:"messageType"`
	TransactionHash string    `json:"transactionHash,omitempty"`
	Amount          string    `json:"amount,omitempty"`
	TokenSymbol     string    `json:"tokenSymbol,omitempty"`
	NFTID           string    `json:"nftId,omitempty"`
	Timestamp       time.Time `json:"timestamp"`
	IsDelivered     bool      `json:"isDelivered"`
	IsRead          bool      `json:"isRead"`
	IsPinned        bool      `json:"isPinned"`
}

type NFT struct {
	ID              string `json:"id"`
	OwnerID         string `json:"ownerId"`
	ContractAddress string `json:"contractAddress"`
	TokenID         string `json:"tokenId"`
	Name            string `json:"name"`
	Chain           string `json:"chain"`
}

// Friendship statuses.
const (
	FriendshipPending  = "pending"
	FriendshipAccepted = "accepted"
	FriendshipRejected = "rejected"
)

type Friendship struct {
	ID          string    `json:"id"`
	RequesterID string    `json:"requesterId"`
	AddresseeID string    `json:"addresseeId"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"createdAt"`
}

type BannedMember struct {
	ChatID   string    `json:"chatId"`
	UserID   string    `json:"userId"`
	BannedBy string    `json:"bannedBy"`
	Reason   string    `json:"reason,omitempty"`
	BannedAt time.Time `json:"bannedAt"`
}
