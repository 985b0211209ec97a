// Package channels defines the contract between messaging surfaces and the
// assistant. Each surface (WhatsApp today) implements Channel to receive and
// send messages in a unified way.
package channels

import (
	"context"
	"fmt"
	"time"
)

// MessageType identifies the kind of message content.
type MessageType string

const (
	MessageText     MessageType = "text"
	MessageAudio    MessageType = "audio"
	MessageDocument MessageType = "document"
)

// Channel is the interface every messaging surface implements.
type Channel interface {
	// Name returns the channel identifier (e.g. "whatsapp").
	Name() string

	// Connect establishes the connection to the messaging platform.
	Connect(ctx context.Context) error

	// Disconnect gracefully closes the connection.
	Disconnect() error

	// Send sends a message to the specified recipient.
	Send(ctx context.Context, to string, message *OutgoingMessage) error

	// Receive returns a Go channel that emits incoming messages.
	Receive() <-chan *IncomingMessage

	// IsConnected reports whether the channel is connected.
	IsConnected() bool

	// Health returns the channel health status.
	Health() HealthStatus
}

// IncomingMessage is a message received from any channel.
type IncomingMessage struct {
	// ID is the unique message identifier in the source channel.
	ID string

	// Channel identifies the source channel.
	Channel string

	// From is the sender identifier on the platform (phone number for
	// WhatsApp, without the server suffix).
	From string

	// FromName is the sender display name, when available.
	FromName string

	// ChatID is the conversation identifier used for replies.
	ChatID string

	// Type is the message content type.
	Type MessageType

	// Content is the text content, or the transcript for audio messages.
	Content string

	// Audio holds the raw voice note bytes for MessageAudio.
	Audio []byte

	// AudioMIME is the voice note MIME type.
	AudioMIME string

	// Timestamp is when the message was sent.
	Timestamp time.Time
}

// OutgoingMessage is a message to send through a channel.
type OutgoingMessage struct {
	// Content is the text content of the message.
	Content string

	// Attachments are documents delivered with the message.
	Attachments []Attachment

	// SpokenAudio is a rendered voice reply (optional).
	SpokenAudio []byte

	// SpokenMIME is the voice reply MIME type.
	SpokenMIME string
}

// Attachment is a document to deliver alongside a message.
type Attachment struct {
	Filename string
	MIMEType string
	Data     []byte
}

// HealthStatus reports the health of a channel.
type HealthStatus struct {
	Connected     bool
	LastMessageAt time.Time
	ErrorCount    int
	Details       map[string]any
}

var (
	ErrChannelDisconnected = fmt.Errorf("channel is not connected")
	ErrSendFailed          = fmt.Errorf("failed to send message")
	ErrConnectionFailed    = fmt.Errorf("failed to connect to channel")
)
