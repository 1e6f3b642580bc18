package entity

import (
	"errors"
	"fmt"
	"time"

	"github.com/archos-hq/archos/pkg/resource"
)

// TableMessages holds the chat transcript.
const TableMessages = "messages"

// DefaultHistoryLimit caps how much transcript the chat view loads.
const DefaultHistoryLimit = 100

// MessageRole is the author side of a chat message.
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleSystem    MessageRole = "system"
)

// MessageChannel records which transport carried a message.
type MessageChannel string

const (
	ChannelWeb      MessageChannel = "web"
	ChannelTelegram MessageChannel = "telegram"
	ChannelEmail    MessageChannel = "email"
)

// Message is one chat transcript entry, optionally tied to a ticket.
type Message struct {
	ID        string         `db:"id" json:"id"`
	TicketID  *string        `db:"ticket_id" json:"ticket_id"`
	Role      MessageRole    `db:"role" json:"role"`
	Channel   MessageChannel `db:"channel" json:"channel"`
	Content   string         `db:"content" json:"content"`
	Metadata  map[string]any `db:"metadata" json:"metadata"`
	CreatedAt time.Time      `db:"created_at" json:"created_at"`
}

func (m Message) EntityID() string { return m.ID }

// MessageDefaults assumes the web chat when no channel is named.
func MessageDefaults(m Message) Message {
	if m.Channel == "" {
		m.Channel = ChannelWeb
	}
	return m
}

// ValidateMessage rejects empty messages and unknown roles or channels.
func ValidateMessage(m Message) error {
	var errs []error
	if m.Content == "" {
		errs = append(errs, errors.New("content is required"))
	}
	switch m.Role {
	case RoleUser, RoleAssistant, RoleSystem:
	default:
		errs = append(errs, fmt.Errorf("unknown role %q", m.Role))
	}
	switch m.Channel {
	case ChannelWeb, ChannelTelegram, ChannelEmail:
	default:
		errs = append(errs, fmt.Errorf("unknown channel %q", m.Channel))
	}
	if err := errors.Join(errs...); err != nil {
		return &resource.ValidationError{Table: TableMessages, Reason: "message", Err: err}
	}
	return nil
}

// MessageLess sorts oldest first, transcript order.
func MessageLess(a, b Message) bool { return a.CreatedAt.Before(b.CreatedAt) }
