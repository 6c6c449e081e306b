// Package discord implements the chat platform on top of a Discord bot
// session.
package discord

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"burstbot/internal/chat"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

// controlPrefix marks the custom ids of buttons this bot sent.
const controlPrefix = "burst:"

const channelSuffix = "-All-Burst"

// Handler receives player input. It runs on discordgo's event goroutine.
type Handler func(ctx context.Context, in chat.Incoming)

type Platform struct {
	session  *discordgo.Session
	category string
	logger   *zap.Logger

	mu         sync.Mutex
	categories map[string]string // guild id -> category channel id
}

func New(token, category string, logger *zap.Logger) (*Platform, error) {
	if token == "" {
		return nil, errors.New("discord token is empty")
	}
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentGuilds | discordgo.IntentGuildMessages | discordgo.IntentMessageContent
	return &Platform{
		session:    session,
		category:   category,
		logger:     logger,
		categories: make(map[string]string),
	}, nil
}

// Open connects to the gateway and starts delivering input to handle.
func (p *Platform) Open(handle Handler) error {
	p.session.AddHandler(func(s *discordgo.Session, m *discordgo.MessageCreate) {
		if m.Author == nil || m.Author.Bot {
			return
		}
		handle(context.Background(), incomingFromMessage(m.Message))
	})
	p.session.AddHandler(func(s *discordgo.Session, i *discordgo.InteractionCreate) {
		in, ok := incomingFromInteraction(i.Interaction)
		if !ok {
			return
		}
		err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseDeferredMessageUpdate,
		})
		if err != nil {
			p.logger.Warn("failed to acknowledge control press", zap.String("channel_id", in.ChannelID), zap.Error(err))
		}
		handle(context.Background(), in)
	})
	if err := p.session.Open(); err != nil {
		return fmt.Errorf("open discord gateway: %w", err)
	}
	return nil
}

func (p *Platform) Close() error {
	return p.session.Close()
}

func (p *Platform) CreatePrivateChannel(ctx context.Context, guildID string, user chat.User) (*chat.Channel, error) {
	parentID, err := p.categoryID(ctx, guildID)
	if err != nil {
		return nil, err
	}

	botID := ""
	if p.session.State != nil && p.session.State.User != nil {
		botID = p.session.State.User.ID
	}
	name := ChannelName(user.DisplayName)
	ch, err := p.session.GuildChannelCreateComplex(guildID, discordgo.GuildChannelCreateData{
		Name:                 name,
		Type:                 discordgo.ChannelTypeGuildText,
		ParentID:             parentID,
		PermissionOverwrites: privateOverwrites(guildID, user.ID, botID),
	}, discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("create channel %s: %w", name, err)
	}
	return &chat.Channel{ID: ch.ID, Name: ch.Name}, nil
}

// categoryID finds or creates the guild's category for private channels.
func (p *Platform) categoryID(ctx context.Context, guildID string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if id, ok := p.categories[guildID]; ok {
		return id, nil
	}

	channels, err := p.session.GuildChannels(guildID, discordgo.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("list channels of guild %s: %w", guildID, err)
	}
	for _, ch := range channels {
		if ch.Type == discordgo.ChannelTypeGuildCategory && ch.Name == p.category {
			p.categories[guildID] = ch.ID
			return ch.ID, nil
		}
	}

	ch, err := p.session.GuildChannelCreate(guildID, p.category, discordgo.ChannelTypeGuildCategory, discordgo.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("create category %s: %w", p.category, err)
	}
	p.categories[guildID] = ch.ID
	return ch.ID, nil
}

func (p *Platform) Send(ctx context.Context, channelID string, msg chat.Message) (chat.MessageRef, error) {
	sent, err := p.session.ChannelMessageSendComplex(channelID, messageSend(msg), discordgo.WithContext(ctx))
	if err != nil {
		return chat.MessageRef{}, fmt.Errorf("send to %s: %w", channelID, err)
	}
	return chat.MessageRef{ChannelID: channelID, MessageID: sent.ID, Controls: msg.Controls}, nil
}

func (p *Platform) DeleteChannel(ctx context.Context, channelID string) error {
	if _, err := p.session.ChannelDelete(channelID, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("delete channel %s: %w", channelID, err)
	}
	return nil
}

func (p *Platform) DisableControls(ctx context.Context, ref chat.MessageRef) error {
	if len(ref.Controls) == 0 {
		return nil
	}
	edit := discordgo.NewMessageEdit(ref.ChannelID, ref.MessageID)
	rows := components(ref.Controls, true)
	edit.Components = &rows
	if _, err := p.session.ChannelMessageEditComplex(edit, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("disable controls on %s: %w", ref.MessageID, err)
	}
	return nil
}

// ChannelName is the private channel name for a player.
func ChannelName(displayName string) string {
	name := strings.ToLower(strings.Join(strings.Fields(displayName), "-"))
	if name == "" {
		name = "player"
	}
	return name + strings.ToLower(channelSuffix)
}

func privateOverwrites(everyoneID, userID, botID string) []*discordgo.PermissionOverwrite {
	const access = discordgo.PermissionViewChannel | discordgo.PermissionSendMessages | discordgo.PermissionReadMessageHistory
	overwrites := []*discordgo.PermissionOverwrite{
		{ID: everyoneID, Type: discordgo.PermissionOverwriteTypeRole, Deny: discordgo.PermissionViewChannel},
		{ID: userID, Type: discordgo.PermissionOverwriteTypeMember, Allow: access},
	}
	if botID != "" {
		overwrites = append(overwrites, &discordgo.PermissionOverwrite{
			ID: botID, Type: discordgo.PermissionOverwriteTypeMember, Allow: access,
		})
	}
	return overwrites
}

func messageSend(msg chat.Message) *discordgo.MessageSend {
	send := &discordgo.MessageSend{Content: msg.Content}
	if msg.Embed != nil {
		send.Embeds = []*discordgo.MessageEmbed{embed(msg.Embed)}
	}
	if len(msg.Controls) > 0 {
		send.Components = components(msg.Controls, false)
	}
	return send
}

func embed(e *chat.Embed) *discordgo.MessageEmbed {
	out := &discordgo.MessageEmbed{
		Title:       e.Title,
		Description: e.Description,
		Color:       e.Color,
	}
	if e.Author != "" {
		out.Author = &discordgo.MessageEmbedAuthor{Name: e.Author, IconURL: e.AuthorIcon}
	}
	if e.Footer != "" {
		out.Footer = &discordgo.MessageEmbedFooter{Text: e.Footer}
	}
	if e.Image != "" {
		out.Image = &discordgo.MessageEmbedImage{URL: e.Image}
	}
	for _, f := range e.Fields {
		out.Fields = append(out.Fields, &discordgo.MessageEmbedField{Name: f.Name, Value: f.Value, Inline: f.Inline})
	}
	return out
}

func components(controls []chat.Control, disabled bool) []discordgo.MessageComponent {
	buttons := make([]discordgo.MessageComponent, 0, len(controls))
	for _, c := range controls {
		buttons = append(buttons, discordgo.Button{
			Label:    c.Label,
			Style:    buttonStyle(c.Style),
			CustomID: controlPrefix + c.ID,
			Disabled: disabled,
		})
	}
	return []discordgo.MessageComponent{discordgo.ActionsRow{Components: buttons}}
}

func buttonStyle(s chat.ControlStyle) discordgo.ButtonStyle {
	switch s {
	case chat.ControlSecondary:
		return discordgo.SecondaryButton
	case chat.ControlDanger:
		return discordgo.DangerButton
	default:
		return discordgo.PrimaryButton
	}
}

func incomingFromMessage(m *discordgo.Message) chat.Incoming {
	return chat.Incoming{
		GuildID:   m.GuildID,
		ChannelID: m.ChannelID,
		Author:    user(m.Author, m.Member),
		Content:   m.Content,
	}
}

// incomingFromInteraction turns a press on one of our buttons into input
// carrying the control's command text.
func incomingFromInteraction(i *discordgo.Interaction) (chat.Incoming, bool) {
	if i.Type != discordgo.InteractionMessageComponent {
		return chat.Incoming{}, false
	}
	id, ok := strings.CutPrefix(i.MessageComponentData().CustomID, controlPrefix)
	if !ok {
		return chat.Incoming{}, false
	}
	author := i.User
	if i.Member != nil && i.Member.User != nil {
		author = i.Member.User
	}
	if author == nil {
		return chat.Incoming{}, false
	}
	return chat.Incoming{
		GuildID:   i.GuildID,
		ChannelID: i.ChannelID,
		Author:    user(author, i.Member),
		Content:   id,
	}, true
}

func user(u *discordgo.User, member *discordgo.Member) chat.User {
	if u == nil {
		return chat.User{}
	}
	name := u.Username
	if u.GlobalName != "" {
		name = u.GlobalName
	}
	if member != nil && member.Nick != "" {
		name = member.Nick
	}
	return chat.User{ID: u.ID, DisplayName: name, AvatarURL: u.AvatarURL("")}
}
