package ws

import "github.com/pliu/offchat/internal/models"

// Client→server frame types.
const (
	TypeJoin        = "join"
	TypeJoinGlobal  = "join_global"
	TypeSendMessage = "send_message"
	TypeTyping      = "typing"
)

// Server→client frame types.
const (
	TypeNewMessage            = "new_message"
	TypeUserStatus            = "user_status"
	TypeMessageDeleted        = "message_deleted"
	TypeChatDeleted           = "chat_deleted"
	TypeUserKicked            = "user_kicked"
	TypeFriendRequestReceived = "friend_request_received"
	TypeFriendRequestAccepted = "friend_request_accepted"
	TypeFriendRequestRejected = "friend_request_rejected"
	TypeNewChat               = "new_chat"
	TypeError                 = "error"
)

// Frame is any message received from a client. Fields unused by a type are
// left empty.
type Frame struct {
	Type            string `json:"type"`
	UserID          string `json:"userId,omitempty"`
	ChatID          string `json:"chatId,omitempty"`
	SenderID        string `json:"senderId,omitempty"`
	Content         string `json:"content,omitempty"`
	MessageType     string `json:"messageType,omitempty"`
	TransactionHash string `json:"transactionHash,omitempty"`
	Amount          string `json:"amount,omitempty"`
	TokenSymbol     string `json:"tokenSymbol,omitempty"`
	NFTID           string `json:"nftId,omitempty"`
	IsTyping        bool   `json:"isTyping,omitempty"`
}

type NewMessageEvent struct {
	Type    string          `json:"type"`
	Message *models.Message `json:"message"`
}

type UserStatusEvent struct {
	Type     string `json:"type"`
	UserID   string `json:"userId"`
	IsOnline bool   `json:"isOnline"`
}

type TypingEvent struct {
	Type     string `json:"type"`
	UserID   string `json:"userId"`
	IsTyping bool   `json:"isTyping"`
}

type MessageDeletedEvent struct {
	Type      string `json:"type"`
	MessageID string `json:"messageId"`
	ChatID    string `json:"chatId"`
}

type ChatDeletedEvent struct {
	Type   string `json:"type"`
	ChatID string `json:"chatId"`
}

type UserKickedEvent struct {
	Type   string `json:"type"`
	UserID string `json:"userId"`
	ChatID string `json:"chatId"`
	Reason string `json:"reason"`
}

// NewChatEvent tells an invited user about a chat they were added to.
type NewChatEvent struct {
	Type string       `json:"type"`
	Chat *models.Chat `json:"chat"`
}

// RequesterProfile is the minimal profile attached to a friend request.
type RequesterProfile struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Avatar   string `json:"avatar,omitempty"`
}

type FriendRequestReceivedEvent struct {
	Type       string             `json:"type"`
	Friendship *models.Friendship `json:"friendship"`
	Requester  RequesterProfile   `json:"requester"`
}

type FriendRequestResolvedEvent struct {
	Type         string `json:"type"`
	FriendshipID string `json:"friendshipId"`
	RequesterID  string `json:"requesterId"`
	AddresseeID  string `json:"addresseeId"`
}

type ErrorEvent struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func errorEvent(msg string) ErrorEvent {
	return ErrorEvent{Type: TypeError, Message: msg}
}
