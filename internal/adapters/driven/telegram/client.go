// Package telegram adapts the Telegram Bot API (github.com/go-telegram/bot)
// to the bot's messenger and the core's file source.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/custodia-labs/drive-relay/internal/core/domain"
	"github.com/custodia-labs/drive-relay/internal/core/ports/driven"
)

// Ensure Client implements FileSource
var _ driven.FileSource = (*Client)(nil)

const (
	defaultPollTimeout = 30 * time.Second
	downloadTimeout    = 60 * time.Second
)

// ClientConfig holds Bot API settings.
type ClientConfig struct {
	Token       string
	APIURL      string        // default: https://api.telegram.org
	PollTimeout time.Duration // long-poll timeout for getUpdates (default: 30s)
	Logger      *slog.Logger
}

// Client wraps a Bot API connection.
type Client struct {
	api      *bot.Bot
	token    string
	download *http.Client
	logger   *slog.Logger

	mu     sync.RWMutex
	handle func(context.Context, *models.Message)
}

// NewClient creates a new Bot API client. It makes no network calls.
func NewClient(cfg ClientConfig) (*Client, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	pollTimeout := cfg.PollTimeout
	if pollTimeout <= 0 {
		pollTimeout = defaultPollTimeout
	}

	c := &Client{
		token:    cfg.Token,
		download: &http.Client{Timeout: downloadTimeout},
		logger:   logger,
	}

	opts := []bot.Option{
		bot.WithSkipGetMe(),
		bot.WithHTTPClient(pollTimeout, &http.Client{Timeout: pollTimeout + 10*time.Second}),
		bot.WithDefaultHandler(c.dispatch),
		bot.WithErrorsHandler(func(err error) {
			c.logger.Warn("telegram polling error", "error", c.redact(err))
		}),
	}
	if cfg.APIURL != "" {
		opts = append(opts, bot.WithServerURL(strings.TrimSuffix(cfg.APIURL, "/")))
	}

	api, err := bot.New(cfg.Token, opts...)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", c.redact(err))
	}
	c.api = api
	return c, nil
}

// Listen long-polls for updates and passes every message to handle until ctx
// is cancelled. No handle call is in flight once Listen returns.
func (c *Client) Listen(ctx context.Context, handle func(context.Context, *models.Message)) {
	c.mu.Lock()
	c.handle = handle
	c.mu.Unlock()

	c.api.Start(ctx)
}

func (c *Client) dispatch(ctx context.Context, _ *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	c.mu.RLock()
	handle := c.handle
	c.mu.RUnlock()
	if handle != nil {
		handle(ctx, update.Message)
	}
}

// SendMessage posts plain text to a chat, inside threadID when set.
func (c *Client) SendMessage(ctx context.Context, chatID int64, threadID *int64, text string) (*models.Message, error) {
	params := &bot.SendMessageParams{ChatID: chatID, Text: text}
	if threadID != nil {
		params.MessageThreadID = int(*threadID)
	}
	msg, err := c.api.SendMessage(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("telegram sendMessage: %w", c.redact(err))
	}
	return msg, nil
}

// EditMessageText replaces the text of a message the bot sent.
func (c *Client) EditMessageText(ctx context.Context, chatID int64, messageID int, text string) error {
	_, err := c.api.EditMessageText(ctx, &bot.EditMessageTextParams{
		ChatID:    chatID,
		MessageID: messageID,
		Text:      text,
	})
	if err != nil {
		return fmt.Errorf("telegram editMessageText: %w", c.redact(err))
	}
	return nil
}

// Download fetches the bytes of ref. Bot API downloads are capped at
// domain.MaxUploadSize; anything past the cap is cut off for the caller to refuse.
func (c *Client) Download(ctx context.Context, ref domain.FileRef) ([]byte, error) {
	f, err := c.api.GetFile(ctx, &bot.GetFileParams{FileID: ref.ID})
	if err != nil {
		return nil, fmt.Errorf("telegram getFile: %w", c.redact(err))
	}
	if f.FilePath == "" {
		return nil, errors.New("telegram getFile: no file path returned")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.api.FileDownloadLink(f), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", c.redact(err))
	}

	resp, err := c.download.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download file: %w", c.redact(err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download file: HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, domain.MaxUploadSize+1))
	if err != nil {
		return nil, fmt.Errorf("read file: %w", c.redact(err))
	}
	return data, nil
}

// redact keeps the bot token, which is part of every request URL, out of errors.
func (c *Client) redact(err error) error {
	if err == nil {
		return nil
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		err = fmt.Errorf("%s: %w", urlErr.Op, urlErr.Err)
	}
	if c.token != "" && strings.Contains(err.Error(), c.token) {
		return errors.New(strings.ReplaceAll(err.Error(), c.token, "<token>"))
	}
	return err
}
