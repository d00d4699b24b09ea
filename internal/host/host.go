// Package host describes what the plugin needs from the chat-bot host: the
// stream a message arrived on and the operations used to answer into it.
package host

import (
	"context"
	"fmt"
)

type GroupInfo struct {
	GroupID   string `json:"group_id"`
	GroupName string `json:"group_name,omitempty"`
}

type UserInfo struct {
	UserID   string `json:"user_id"`
	Nickname string `json:"nickname,omitempty"`
}

// ChatStream identifies a conversation. Group is nil for private chats.
type ChatStream struct {
	StreamID string     `json:"stream_id"`
	Platform string     `json:"platform,omitempty"`
	Group    *GroupInfo `json:"group,omitempty"`
	User     UserInfo   `json:"user"`
}

func (s ChatStream) IsGroup() bool {
	return s.Group != nil && s.Group.GroupID != ""
}

func (s ChatStream) String() string {
	if s.IsGroup() {
		return fmt.Sprintf("group:%s", s.Group.GroupID)
	}
	return fmt.Sprintf("user:%s", s.User.UserID)
}

// Message is an inbound chat message.
type Message struct {
	Stream ChatStream `json:"stream"`
	Text   string     `json:"text"`
}

// Sender delivers plain text back into the chat.
type Sender interface {
	// SendText answers into the stream the current message came from.
	SendText(ctx context.Context, stream ChatStream, text string) error
	TextToGroup(ctx context.Context, groupID, text string) error
	TextToUser(ctx context.Context, userID, text string) error
}

// CommandBus hands structured commands to the host. The boolean reports
// whether the host accepted the command; err is reserved for transport
// failures.
type CommandBus interface {
	SendCommand(ctx context.Context, stream ChatStream, name string, args map[string]any, storeMessage bool) (bool, error)
}

// Messenger is everything a component talks to.
type Messenger interface {
	Sender
	CommandBus
}
