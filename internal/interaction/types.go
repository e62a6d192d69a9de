// Package interaction decodes inbound interaction callbacks and encodes the
// synchronous acknowledgment returned to the platform.
package interaction

import "log/slog"

// Type is the discriminant of an inbound interaction.
type Type int

const (
	TypePing               Type = 1
	TypeApplicationCommand Type = 2
)

// ResponseType is the discriminant of an interaction response.
type ResponseType int

const (
	ResponsePong                   ResponseType = 1
	ResponseChannelMessage         ResponseType = 4
	ResponseDeferredChannelMessage ResponseType = 5
)

// FlagEphemeral marks a message as visible only to the invoking user.
const FlagEphemeral = 1 << 6

// Event is a decoded interaction: Handshake, CommandInvocation or Unrecognized.
type Event interface {
	isEvent()
}

// Handshake is the platform's endpoint probe. It must be answered with Acknowledge.
type Handshake struct{}

// CommandInvocation is a user-initiated slash command.
type CommandInvocation struct {
	Name      string
	Arguments map[string]any
	Invoker   Invoker
}

// Unrecognized carries any discriminant this service does not handle.
type Unrecognized struct {
	RawType int
}

func (Handshake) isEvent()         {}
func (CommandInvocation) isEvent() {}
func (Unrecognized) isEvent()      {}

// Invoker identifies who triggered a command and where. The values are
// opaque; they are passed through to handlers and follow-up delivery.
type Invoker struct {
	UserID    string
	ChannelID string
	GuildID   string

	InteractionID string
	ApplicationID string
	// Token authorizes follow-up messages for this interaction. Never log it.
	Token string
}

// LogValue keeps the interaction token out of logs.
func (i Invoker) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("user_id", i.UserID),
		slog.String("channel_id", i.ChannelID),
		slog.String("guild_id", i.GuildID),
		slog.String("interaction_id", i.InteractionID),
	)
}

// Response is what a handler answers: Acknowledge, Message or Deferred.
type Response interface {
	isResponse()
}

// Acknowledge answers a Handshake.
type Acknowledge struct{}

// Message answers a command with content. Ephemeral messages are only shown
// to the invoking user.
type Message struct {
	Content   string
	Ephemeral bool
}

// Deferred acknowledges a command now and promises a follow-up message later.
type Deferred struct {
	Ephemeral bool
}

func (Acknowledge) isResponse() {}
func (Message) isResponse()     {}
func (Deferred) isResponse()    {}
