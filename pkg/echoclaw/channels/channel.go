// Package channels is the transport side of EchoClaw. WhatsApp, Discord and
// the local console all satisfy Channel, and the Manager merges their
// inbound streams into one feed for the assistant.
package channels

import (
	"context"
	"errors"
	"time"
)

// Channel is a chat platform connection.
//
// Receive must return the same stream for the life of the channel. Send
// fails with ErrChannelDisconnected while offline instead of queueing.
type Channel interface {
	// Name is the stable identifier used in logs and health output.
	Name() string
	Connect(ctx context.Context) error
	Disconnect() error
	// Send delivers a reply to chatID.
	Send(ctx context.Context, chatID string, message *OutgoingMessage) error
	Receive() <-chan *IncomingMessage
	IsConnected() bool
	Health() HealthStatus
}

// PresenceChannel is implemented by platforms that can show "typing" while
// the assistant is thinking.
type PresenceChannel interface {
	Channel
	SendTyping(ctx context.Context, chatID string) error
}

// IncomingMessage is a text message normalized across platforms.
type IncomingMessage struct {
	ID      string
	Channel string

	// From identifies the author; ChatID is where replies go. They differ in
	// groups and are equal in direct chats.
	From     string
	FromName string
	ChatID   string
	IsGroup  bool

	// FromMe marks messages the account owner wrote. They feed persona
	// learning and are never answered.
	FromMe bool

	Content   string
	Timestamp time.Time
}

// OutgoingMessage is a reply. ReplyTo, when set, quotes the message with
// that ID; QuotedSender and QuotedContent are only needed by platforms that
// render the quote client side.
type OutgoingMessage struct {
	Content       string
	ReplyTo       string
	QuotedSender  string
	QuotedContent string
}

// HealthStatus is a snapshot reported by Channel.Health. Details carries
// platform specific fields such as the session state.
type HealthStatus struct {
	Connected     bool
	LastMessageAt time.Time
	ErrorCount    int
	Details       map[string]any
}

var (
	ErrChannelDisconnected = errors.New("channel is not connected")
	ErrSendFailed          = errors.New("failed to send message")
	ErrNoChannelConnected  = errors.New("no channel connected")
)
