// Package chat is the boundary between the match bridge and the chat
// platform hosting the players.
package chat

import "context"

// Channel is an opaque reference to a private per-player channel.
type Channel struct {
	ID   string
	Name string
}

type User struct {
	ID          string
	DisplayName string
	AvatarURL   string
}

type Field struct {
	Name   string
	Value  string
	Inline bool
}

type Embed struct {
	Author      string
	AuthorIcon  string
	Title       string
	Description string
	Footer      string
	Image       string
	Color       int
	Fields      []Field
}

type ControlStyle int

const (
	ControlPrimary ControlStyle = iota
	ControlSecondary
	ControlDanger
)

// Control is an interactive button. ID is the command text a press stands
// for, so presses route through the same parser as typed input.
type Control struct {
	ID    string
	Label string
	Style ControlStyle
}

type Message struct {
	Content  string
	Embed    *Embed
	Controls []Control
}

// MessageRef points at a sent message so its controls can be disabled later.
type MessageRef struct {
	ChannelID string
	MessageID string
	Controls  []Control
}

// Incoming is a line of player input, typed or from a control press.
type Incoming struct {
	GuildID   string
	ChannelID string
	Author    User
	Content   string
}

// Platform is everything the bridge needs from the chat platform. All calls
// are best-effort from the bridge's point of view.
type Platform interface {
	CreatePrivateChannel(ctx context.Context, guildID string, user User) (*Channel, error)
	Send(ctx context.Context, channelID string, msg Message) (MessageRef, error)
	DeleteChannel(ctx context.Context, channelID string) error
	DisableControls(ctx context.Context, ref MessageRef) error
}
