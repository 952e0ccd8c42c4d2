package telegram

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"valarify-bot/internal/services/music"
)

const (
	pollTimeout  = 3
	startCommand = "start"
	welcomeText  = "Welcome to the Valarify Bot!"
)

// Router produces at most one reply per inbound message.
type Router interface {
	Route(ctx context.Context, msg music.InboundMessage) (string, bool, error)
}

type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Bot wraps Telegram API interactions.
type Bot struct {
	api      *tgbotapi.BotAPI
	sender   sender
	router   Router
	username string
	logger   *zap.Logger

	inflight sync.WaitGroup
}

// NewBot constructs a bot instance.
func NewBot(token string, router Router, logger *zap.Logger) (*Bot, error) {
	if router == nil {
		return nil, fmt.Errorf("router is nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	api.Debug = false

	return &Bot{
		api:      api,
		sender:   api,
		router:   router,
		username: api.Self.UserName,
		logger:   logger,
	}, nil
}

// Username returns the account name Telegram reports for the token.
func (b *Bot) Username() string {
	return b.username
}

// Start begins long polling and handles each incoming message in its own goroutine.
// It returns once ctx is done and every message already picked up has been answered.
func (b *Bot) Start(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = pollTimeout

	updates := b.api.GetUpdatesChan(u)
	defer b.inflight.Wait()
	defer b.api.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return fmt.Errorf("updates channel closed")
			}
			if update.Message != nil {
				b.spawn(ctx, update)
			}
		}
	}
}

// spawn handles update in its own goroutine. A message that has started is
// not cancelled when ctx is.
func (b *Bot) spawn(ctx context.Context, update tgbotapi.Update) {
	b.inflight.Add(1)
	go func() {
		defer b.inflight.Done()
		b.dispatch(context.WithoutCancel(ctx), update)
	}()
}

// dispatch handles one update and reports any failure to onFault.
func (b *Bot) dispatch(ctx context.Context, update tgbotapi.Update) {
	defer func() {
		if r := recover(); r != nil {
			b.onFault(update, fmt.Errorf("panic: %v\n%s", r, debug.Stack()))
		}
	}()

	if err := b.handleMessage(ctx, update.Message); err != nil {
		b.onFault(update, err)
	}
}

func (b *Bot) handleMessage(ctx context.Context, m *tgbotapi.Message) error {
	if m.Chat == nil || m.Text == "" {
		return nil
	}

	if b.isStart(m) {
		return b.reply(m, welcomeText)
	}

	kind, ok := chatKind(m.Chat)
	if !ok {
		return nil
	}

	text, addressed, err := b.router.Route(ctx, music.InboundMessage{
		ChatID:   m.Chat.ID,
		ChatKind: kind,
		Text:     m.Text,
	})
	if err != nil {
		return err
	}
	if !addressed {
		return nil
	}

	return b.reply(m, text)
}

// isStart reports whether m is /start, either bare or addressed to this bot.
func (b *Bot) isStart(m *tgbotapi.Message) bool {
	if !m.IsCommand() {
		return false
	}

	name, target, addressed := strings.Cut(m.CommandWithAt(), "@")
	if name != startCommand {
		return false
	}
	return !addressed || strings.EqualFold(target, b.username)
}

// reply sends text to the chat of m, quoting m outside private chats.
func (b *Bot) reply(m *tgbotapi.Message, text string) error {
	msg := tgbotapi.NewMessage(m.Chat.ID, text)
	if !m.Chat.IsPrivate() {
		msg.ReplyToMessageID = m.MessageID
	}

	if _, err := b.sender.Send(msg); err != nil {
		return fmt.Errorf("send reply: %w", err)
	}
	return nil
}

// onFault is the last stop for errors raised while handling an update.
// The user gets no reply.
func (b *Bot) onFault(update tgbotapi.Update, err error) {
	fields := []zap.Field{zap.Int("updateID", update.UpdateID), zap.Error(err)}
	if update.Message != nil && update.Message.Chat != nil {
		fields = append(fields, zap.Int64("chatID", update.Message.Chat.ID))
	}
	b.logger.Error("update caused error", fields...)
}

func chatKind(chat *tgbotapi.Chat) (music.ChatKind, bool) {
	switch {
	case chat.IsPrivate():
		return music.Direct, true
	case chat.IsGroup(), chat.IsSuperGroup():
		return music.Group, true
	default:
		return music.Direct, false
	}
}
