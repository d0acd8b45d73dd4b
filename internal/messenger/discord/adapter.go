// Package discord implements messenger.Messenger on top of a Discord bot
// session. Submitters and moderators talk to the bot in direct messages;
// approved content is posted to a guild channel.
package discord

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/bwmarrin/discordgo"

	"relay/internal/messenger"
)

var ErrNotReady = errors.New("discord session not ready")

type Adapter struct {
	session *discordgo.Session
	logger  *slog.Logger

	// selfID is written by the Ready handler and read by message handlers,
	// both on discordgo goroutines.
	selfID atomic.Value
}

type Option func(*Adapter)

func WithLogger(logger *slog.Logger) Option {
	return func(a *Adapter) {
		a.logger = logger
	}
}

var _ messenger.Messenger = (*Adapter)(nil)

func New(token string, opts ...Option) (*Adapter, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsDirectMessages | discordgo.IntentsMessageContent
	a := &Adapter{session: session, logger: slog.Default()}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Open connects the gateway and feeds inbound events to handler. discordgo
// runs each callback on its own goroutine.
func (a *Adapter) Open(ctx context.Context, handler messenger.Handler) error {
	a.session.AddHandler(func(_ *discordgo.Session, r *discordgo.Ready) {
		a.onReady(r)
	})
	a.session.AddHandler(func(_ *discordgo.Session, m *discordgo.MessageCreate) {
		a.onMessage(ctx, handler, m.Message)
	})
	a.session.AddHandler(func(_ *discordgo.Session, i *discordgo.InteractionCreate) {
		ev, ok := fromInteraction(i.Interaction)
		if !ok {
			return
		}
		handler.HandleEvent(ctx, ev)
	})
	if err := a.session.Open(); err != nil {
		return fmt.Errorf("open discord gateway: %w", err)
	}
	a.logger.InfoContext(ctx, "discord gateway connected", "bot_user_id", a.self())
	return nil
}

func (a *Adapter) onReady(r *discordgo.Ready) {
	if r != nil && r.User != nil {
		a.selfID.Store(r.User.ID)
	}
}

func (a *Adapter) onMessage(ctx context.Context, handler messenger.Handler, m *discordgo.Message) {
	ev, ok := fromMessage(m, a.self())
	if !ok {
		return
	}
	handler.HandleEvent(ctx, ev)
}

// self is the bot's own user id, empty until the gateway reports Ready.
func (a *Adapter) self() string {
	id, _ := a.selfID.Load().(string)
	return id
}

func (a *Adapter) Close() error {
	return a.session.Close()
}

func (a *Adapter) Health(context.Context) error {
	if !a.session.DataReady {
		return ErrNotReady
	}
	return nil
}

func (a *Adapter) dmChannel(ctx context.Context, userID string) (string, error) {
	ch, err := a.session.UserChannelCreate(userID, discordgo.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("open dm with %s: %w", userID, err)
	}
	return ch.ID, nil
}

func (a *Adapter) send(ctx context.Context, channelID, content string, controls []messenger.Button) (messenger.Handle, error) {
	msg, err := a.session.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Content:         content,
		Components:      toComponents(controls),
		AllowedMentions: &discordgo.MessageAllowedMentions{},
	}, discordgo.WithContext(ctx))
	if err != nil {
		return messenger.Handle{}, fmt.Errorf("send message to %s: %w", channelID, err)
	}
	return messenger.Handle{ChannelID: msg.ChannelID, MessageID: msg.ID}, nil
}

func (a *Adapter) fetch(ctx context.Context, h messenger.Handle) (*discordgo.Message, error) {
	msg, err := a.session.ChannelMessage(h.ChannelID, h.MessageID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("fetch message %s: %w", h, err)
	}
	return msg, nil
}

func (a *Adapter) Deliver(ctx context.Context, recipientID string, content messenger.ContentRef, controls []messenger.Button) (messenger.Handle, error) {
	src, err := a.fetch(ctx, content)
	if err != nil {
		return messenger.Handle{}, err
	}
	channelID, err := a.dmChannel(ctx, recipientID)
	if err != nil {
		return messenger.Handle{}, err
	}
	return a.send(ctx, channelID, copyContent(src), controls)
}

func (a *Adapter) StripControls(ctx context.Context, message messenger.Handle, note string) error {
	msg, err := a.fetch(ctx, message)
	if err != nil {
		return err
	}
	content := appendNote(msg.Content, note)
	components := []discordgo.MessageComponent{}
	_, err = a.session.ChannelMessageEditComplex(&discordgo.MessageEdit{
		Channel:    message.ChannelID,
		ID:         message.MessageID,
		Content:    &content,
		Components: &components,
	}, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("edit message %s: %w", message, err)
	}
	return nil
}

func (a *Adapter) Publish(ctx context.Context, destinationID string, source messenger.Handle, signature string) error {
	src, err := a.fetch(ctx, source)
	if err != nil {
		return err
	}
	_, err = a.send(ctx, destinationID, appendNote(copyContent(src), signature), nil)
	return err
}

func (a *Adapter) SendText(ctx context.Context, recipientID, text string) error {
	channelID, err := a.dmChannel(ctx, recipientID)
	if err != nil {
		return err
	}
	_, err = a.send(ctx, channelID, text, nil)
	return err
}

func (a *Adapter) Prompt(ctx context.Context, recipientID, text string, controls []messenger.Button) (messenger.Handle, error) {
	channelID, err := a.dmChannel(ctx, recipientID)
	if err != nil {
		return messenger.Handle{}, err
	}
	return a.send(ctx, channelID, text, controls)
}

// Answer responds to the interaction. Discord has no toast, so every
// non-empty answer is an ephemeral message; an empty one only acknowledges.
func (a *Adapter) Answer(ctx context.Context, cb messenger.Callback, text string, _ bool) error {
	resp := &discordgo.InteractionResponse{Type: discordgo.InteractionResponseDeferredMessageUpdate}
	if text != "" {
		resp = &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseChannelMessageWithSource,
			Data: &discordgo.InteractionResponseData{
				Content:         text,
				Flags:           discordgo.MessageFlagsEphemeral,
				AllowedMentions: &discordgo.MessageAllowedMentions{},
			},
		}
	}
	interaction := &discordgo.Interaction{ID: cb.ID, Token: cb.Token}
	if err := a.session.InteractionRespond(interaction, resp, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("answer interaction %s: %w", cb.ID, err)
	}
	return nil
}

func (a *Adapter) Escape(text string) string {
	return escapeMarkdown(text)
}
