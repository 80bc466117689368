// Package discord adapts a Discord gateway session to the clip pipeline:
// messages become clip events and reactions become acknowledgments.
package discord

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/your-org/clipflow/internal/clip"
)

// Sink receives events in gateway delivery order.
type Sink interface {
	Submit(ctx context.Context, ev clip.Event) error
}

// Bot owns the Discord session.
type Bot struct {
	session *discordgo.Session
	status  string
	logger  *zap.Logger
}

// New creates a Bot for the given bot token. The session is not opened
// until Start.
func New(token, status string, logger *zap.Logger) (*Bot, error) {
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	s.Identify.Intents = discordgo.IntentGuildMessages | discordgo.IntentDirectMessages | discordgo.IntentMessageContent
	// Handlers run on the gateway reader so events reach the sink in order.
	s.SyncEvents = true

	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bot{session: s, status: status, logger: logger.Named("discord")}, nil
}

// Start registers the message handler and opens the gateway connection.
// Events are forwarded to sink until ctx is done.
func (b *Bot) Start(ctx context.Context, sink Sink) error {
	b.session.AddHandler(func(_ *discordgo.Session, r *discordgo.Ready) {
		b.logger.Info("logged in", zap.String("user", r.User.Username), zap.String("user_id", r.User.ID))
	})
	b.session.AddHandler(func(_ *discordgo.Session, m *discordgo.MessageCreate) {
		b.forward(ctx, sink, m)
	})

	if err := b.session.Open(); err != nil {
		return fmt.Errorf("open discord session: %w", err)
	}
	if b.status != "" {
		if err := b.session.UpdateCustomStatus(b.status); err != nil {
			b.logger.Warn("set custom status", zap.Error(err))
		}
	}
	return nil
}

// SelfID resolves the bot's own user id. It may be called before Start.
func (b *Bot) SelfID(ctx context.Context) (string, error) {
	if b.session.State != nil && b.session.State.User != nil {
		return b.session.State.User.ID, nil
	}
	u, err := b.session.User("@me", discordgo.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("fetch bot user: %w", err)
	}
	return u.ID, nil
}

// Close disconnects from the gateway.
func (b *Bot) Close() error {
	return b.session.Close()
}

func (b *Bot) forward(ctx context.Context, sink Sink, m *discordgo.MessageCreate) {
	if m == nil || m.Message == nil || m.Author == nil {
		return
	}
	ev := ToEvent(m.Message, time.Now())
	if err := sink.Submit(ctx, ev); err != nil {
		b.logger.Warn("drop message", zap.String("message_id", ev.ID), zap.Error(err))
	}
}

// React adds r to the originating message.
func (b *Bot) React(ctx context.Context, ev clip.Event, r clip.Reaction) error {
	return b.session.MessageReactionAdd(ev.ChannelID, ev.ID, string(r), discordgo.WithContext(ctx))
}

// Unreact removes the bot's own r from the originating message.
func (b *Bot) Unreact(ctx context.Context, ev clip.Event, r clip.Reaction) error {
	return b.session.MessageReactionRemove(ev.ChannelID, ev.ID, string(r), "@me", discordgo.WithContext(ctx))
}

// ToEvent converts a gateway message into a pipeline event.
func ToEvent(m *discordgo.Message, receivedAt time.Time) clip.Event {
	ev := clip.Event{
		ID:         m.ID,
		ChannelID:  m.ChannelID,
		GuildID:    m.GuildID,
		Content:    m.Content,
		Link:       MessageLink(m.GuildID, m.ChannelID, m.ID),
		ReceivedAt: receivedAt,
	}
	if m.Author != nil {
		ev.AuthorID = m.Author.ID
		ev.AuthorName = m.Author.Username
	}
	for _, a := range m.Attachments {
		if a == nil {
			continue
		}
		ev.Attachments = append(ev.Attachments, clip.Attachment{
			URL:      a.URL,
			Filename: a.Filename,
			Size:     int64(a.Size),
		})
	}
	return ev
}

// MessageLink is the jump URL for a message. Direct messages use "@me" in
// place of a guild id.
func MessageLink(guildID, channelID, messageID string) string {
	if guildID == "" {
		guildID = "@me"
	}
	return fmt.Sprintf("https://discord.com/channels/%s/%s/%s", guildID, channelID, messageID)
}
