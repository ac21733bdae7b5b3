// Package telegram drives the core services from Telegram updates.
package telegram

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/go-telegram/bot/models"
	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/drive-relay/internal/core/domain"
	"github.com/custodia-labs/drive-relay/internal/core/ports/driving"
)

const (
	defaultConcurrency  = 4
	defaultEventTimeout = 5 * time.Minute
)

// Messenger is the part of the Bot API the bot uses.
type Messenger interface {
	// Listen delivers incoming messages to handle until ctx is cancelled.
	Listen(ctx context.Context, handle func(context.Context, *models.Message))
	SendMessage(ctx context.Context, chatID int64, threadID *int64, text string) (*models.Message, error)
	EditMessageText(ctx context.Context, chatID int64, messageID int, text string) error
}

// BotConfig holds configuration for the bot.
type BotConfig struct {
	Messenger     Messenger
	Authorization driving.AuthorizationService
	Upload        driving.UploadService
	Folder        driving.FolderService
	Logger        *slog.Logger

	// Concurrency bounds how many updates are handled at once (default: 4).
	Concurrency int
	// EventTimeout bounds the handling of a single update (default: 5m).
	EventTimeout time.Duration
}

// Bot long-polls Telegram and dispatches every update to a bounded pool.
type Bot struct {
	messenger Messenger
	auth      driving.AuthorizationService
	upload    driving.UploadService
	folder    driving.FolderService
	logger    *slog.Logger

	concurrency  int
	eventTimeout time.Duration
}

// NewBot creates a new bot.
func NewBot(cfg BotConfig) *Bot {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	eventTimeout := cfg.EventTimeout
	if eventTimeout <= 0 {
		eventTimeout = defaultEventTimeout
	}

	return &Bot{
		messenger:    cfg.Messenger,
		auth:         cfg.Authorization,
		upload:       cfg.Upload,
		folder:       cfg.Folder,
		logger:       logger,
		concurrency:  concurrency,
		eventTimeout: eventTimeout,
	}
}

// Run listens until ctx is cancelled, then waits for in-flight updates.
func (b *Bot) Run(ctx context.Context) error {
	var g errgroup.Group
	g.SetLimit(b.concurrency)

	b.logger.Info("telegram bot polling", "concurrency", b.concurrency)

	b.messenger.Listen(ctx, func(ctx context.Context, msg *models.Message) {
		// Blocks while the pool is full.
		g.Go(func() error {
			b.HandleMessage(ctx, msg)
			return nil
		})
	})

	_ = g.Wait()
	b.logger.Info("telegram bot stopped")
	return nil
}

// HandleMessage routes one message. Messages without a sender are ignored.
func (b *Bot) HandleMessage(ctx context.Context, msg *models.Message) {
	ctx, cancel := context.WithTimeout(ctx, b.eventTimeout)
	defer cancel()

	ev := domain.InboundEvent{ChatID: msg.Chat.ID, ThreadID: threadID(msg)}
	if msg.From != nil {
		id := msg.From.ID
		ev.SenderID = &id
	}
	key, err := domain.ResolveContextKey(ev)
	if errors.Is(err, domain.ErrNoSender) {
		return
	}

	c := &chat{bot: b, msg: msg, thread: ev.ThreadID, key: key}

	if cmd, args, ok := parseCommand(msg.Text); ok {
		switch cmd {
		case "start", "help":
			b.handleStart(ctx, c)
		case "connect":
			b.handleConnect(ctx, c)
		case "disconnect":
			b.handleDisconnect(ctx, c)
		case "status":
			b.handleStatus(ctx, c)
		case "setfolder":
			b.handleSetFolder(ctx, c, args)
		}
		return
	}

	if text := strings.TrimSpace(msg.Text); strings.HasPrefix(text, domain.AuthorizationCodePrefix) {
		b.handleCode(ctx, c, text)
		return
	}

	if ref, ok := fileRef(msg); ok {
		b.handleFile(ctx, c, ref)
	}
}

// parseCommand splits "/cmd@bot args" into "cmd" and "args".
func parseCommand(text string) (string, string, bool) {
	if !strings.HasPrefix(text, "/") {
		return "", "", false
	}
	head, args, _ := strings.Cut(text[1:], " ")
	head, _, _ = strings.Cut(head, "@")
	return strings.ToLower(head), strings.TrimSpace(args), true
}

// threadID returns the forum topic of msg, nil outside topics.
func threadID(msg *models.Message) *int64 {
	if msg.MessageThreadID == 0 {
		return nil
	}
	id := int64(msg.MessageThreadID)
	return &id
}

func fullName(u *models.User) string {
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

// chat replies into the conversation and sub-thread a message came from.
type chat struct {
	bot    *Bot
	msg    *models.Message
	thread *int64
	key    domain.ContextKey
}

func (c *chat) reply(ctx context.Context, text string) *models.Message {
	sent, err := c.bot.messenger.SendMessage(ctx, c.msg.Chat.ID, c.thread, text)
	if err != nil {
		c.bot.logger.Warn("failed to send message", "context_key", c.key.String(), "error", err)
		return nil
	}
	return sent
}

// edit replaces a status message, or sends a new one when there is none.
func (c *chat) edit(ctx context.Context, status *models.Message, text string) {
	if status == nil {
		c.reply(ctx, text)
		return
	}
	if err := c.bot.messenger.EditMessageText(ctx, c.msg.Chat.ID, status.ID, text); err != nil {
		c.bot.logger.Warn("failed to edit message", "context_key", c.key.String(), "error", err)
	}
}
