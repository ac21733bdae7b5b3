package telegram

import (
	"fmt"

	"github.com/custodia-labs/drive-relay/internal/core/domain"
	"github.com/custodia-labs/drive-relay/internal/core/ports/driving"
)

const helpText = "I can sync files to your Google Drive.\n\n" +
	"Commands:\n" +
	"/connect - Connect your Google Drive\n" +
	"/disconnect - Disconnect your Google Drive\n" +
	"/status - Check connection status\n" +
	"/setfolder FolderName - Upload into a folder\n\n" +
	"Once connected, just send me any file and I'll upload it to your Drive."

const (
	msgNoPending = "No pending connection request found.\n" +
		"Use /connect to start the authorization process."
	msgExchangeFailed = "Failed to connect. The code may be invalid or expired.\n" +
		"Please try /connect again."
	msgReauthorize = "Your Google Drive access has been revoked or has expired.\n" +
		"Please use /disconnect and then /connect to reconnect."
	msgTransient = "Failed to refresh Google Drive connection.\n" +
		"Please try again or use /disconnect and /connect to reconnect."
	msgTryAgain     = "Something went wrong. Please try again."
	msgFolderUsage  = "Please specify a folder name.\nUsage: /setfolder FolderName\nExample: /setfolder MyBooks"
	msgFolderFailed = "Failed to set folder. Please try again or check your connection."
)

func location(key domain.ContextKey) string {
	if key.HasThread() {
		return "this topic"
	}
	return "this chat"
}

func notConnectedText(key domain.ContextKey) string {
	return fmt.Sprintf("Not connected to Google Drive for %s.\nUse /connect to link your account first.", location(key))
}

func connectText(url string) string {
	return "Click the link below to connect your Google Drive:\n\n" +
		url + "\n\n" +
		"After authorizing, copy the code shown on the page (or the code parameter " +
		"from the address bar, it starts with 4/) and send it here."
}

func connectedText(email string) string {
	return fmt.Sprintf("Successfully connected to Google Drive as %s!\n"+
		"You can now send files and I'll upload them to your Drive.\n\n"+
		"Use /setfolder FolderName to specify a folder for uploads.", email)
}

// uploadText renders the message for an upload outcome. Each outcome has one message.
func uploadText(key domain.ContextKey, ref domain.FileRef, result *driving.UploadResult) string {
	switch result.Outcome {
	case domain.OutcomeUploaded:
		return "Uploaded to Google Drive:\n" + result.Link
	case domain.OutcomeNotConnected:
		return notConnectedText(key)
	case domain.OutcomeTooLarge:
		return fmt.Sprintf("File is too large (%.1fMB).\nTelegram bots can only download files up to 20MB.",
			float64(ref.Size)/1024/1024)
	case domain.OutcomeReauthorizationRequired:
		return msgReauthorize
	case domain.OutcomeSourceFetchFailed:
		return "Failed to download file from Telegram. Please try again."
	case domain.OutcomeDeliveryFailed:
		return "Failed to upload file to Google Drive. Please try again."
	default:
		return msgTransient
	}
}
