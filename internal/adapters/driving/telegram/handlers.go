package telegram

import (
	"context"
	"errors"
	"fmt"

	"github.com/custodia-labs/drive-relay/internal/core/domain"
	"github.com/custodia-labs/drive-relay/internal/core/ports/driving"
)

func (b *Bot) handleStart(ctx context.Context, c *chat) {
	c.reply(ctx, fmt.Sprintf("Hello, %s!\n\n%s", fullName(c.msg.From), helpText))
}

func (b *Bot) handleConnect(ctx context.Context, c *chat) {
	cred, err := b.auth.Status(ctx, c.key)
	switch {
	case err == nil:
		c.reply(ctx, fmt.Sprintf("Already connected as %s.\n"+
			"Use /disconnect first if you want to connect a different account.", cred.AccountEmail))
		return
	case !errors.Is(err, domain.ErrNotConnected):
		b.logger.Error("status lookup failed", "context_key", c.key.String(), "error", err)
		c.reply(ctx, msgTryAgain)
		return
	}

	url, err := b.auth.Initiate(ctx, c.key)
	if err != nil {
		b.logger.Error("failed to initiate authorization", "context_key", c.key.String(), "error", err)
		c.reply(ctx, msgTryAgain)
		return
	}
	c.reply(ctx, connectText(url))
}

func (b *Bot) handleCode(ctx context.Context, c *chat, code string) {
	cred, err := b.auth.Complete(ctx, c.key, code)
	switch {
	case err == nil:
		c.reply(ctx, connectedText(cred.AccountEmail))
	case errors.Is(err, domain.ErrNoPendingAuthorization):
		c.reply(ctx, msgNoPending)
	case errors.Is(err, domain.ErrExchangeFailed):
		c.reply(ctx, msgExchangeFailed)
	default:
		b.logger.Error("authorization completion failed", "context_key", c.key.String(), "error", err)
		c.reply(ctx, msgExchangeFailed)
	}
}

func (b *Bot) handleDisconnect(ctx context.Context, c *chat) {
	removed, err := b.auth.Disconnect(ctx, c.key)
	switch {
	case err != nil:
		b.logger.Error("disconnect failed", "context_key", c.key.String(), "error", err)
		c.reply(ctx, msgTryAgain)
	case removed:
		c.reply(ctx, "Disconnected from Google Drive.")
	default:
		c.reply(ctx, "Not connected to Google Drive.")
	}
}

func (b *Bot) handleStatus(ctx context.Context, c *chat) {
	cred, err := b.auth.Status(ctx, c.key)
	switch {
	case err == nil:
		text := "Connected to Google Drive as " + cred.AccountEmail
		if cred.HasFolder() {
			text += "\nUploads go to folder " + cred.FolderID
		}
		c.reply(ctx, text)
	case errors.Is(err, domain.ErrNotConnected):
		c.reply(ctx, fmt.Sprintf("Not connected to Google Drive for %s.\nUse /connect to link your account.", location(c.key)))
	default:
		b.logger.Error("status lookup failed", "context_key", c.key.String(), "error", err)
		c.reply(ctx, msgTryAgain)
	}
}

func (b *Bot) handleSetFolder(ctx context.Context, c *chat, name string) {
	if name == "" {
		c.reply(ctx, msgFolderUsage)
		return
	}

	status := c.reply(ctx, fmt.Sprintf("Setting up folder '%s'...", name))

	_, err := b.folder.SetFolder(ctx, c.key, name)
	switch {
	case err == nil:
		c.edit(ctx, status, fmt.Sprintf("Files will now be uploaded to folder '%s'.", name))
	case errors.Is(err, domain.ErrNotConnected):
		c.edit(ctx, status, notConnectedText(c.key))
	case domain.OutcomeOf(err) == domain.OutcomeReauthorizationRequired:
		c.edit(ctx, status, msgReauthorize)
	default:
		b.logger.Warn("set folder failed", "context_key", c.key.String(), "error", err)
		c.edit(ctx, status, msgFolderFailed)
	}
}

func (b *Bot) handleFile(ctx context.Context, c *chat, ref domain.FileRef) {
	status := c.reply(ctx, fmt.Sprintf("Uploading %s to Google Drive...", ref.Name))

	result, _ := b.upload.Upload(ctx, driving.UploadRequest{Key: c.key, File: ref})
	if result == nil {
		result = &driving.UploadResult{Outcome: domain.OutcomeTransientFailure, FileName: ref.Name}
	}
	c.edit(ctx, status, uploadText(c.key, ref, result))
}
