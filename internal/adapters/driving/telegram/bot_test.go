package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/go-telegram/bot/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/drive-relay/internal/core/domain"
	"github.com/custodia-labs/drive-relay/internal/core/ports/driving"
)

// Mock services for testing

type fakeMessenger struct {
	mu      sync.Mutex
	sent    []sentMessage
	edits   []sentMessage
	nextID  int
	updates chan *models.Message
}

type sentMessage struct {
	ChatID    int64
	ThreadID  *int64
	MessageID int
	Text      string
}

func newFakeMessenger() *fakeMessenger {
	return &fakeMessenger{updates: make(chan *models.Message, 4)}
}

func (m *fakeMessenger) Listen(ctx context.Context, handle func(context.Context, *models.Message)) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-m.updates:
			handle(ctx, msg)
		}
	}
}

func (m *fakeMessenger) SendMessage(ctx context.Context, chatID int64, threadID *int64, text string) (*models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	m.sent = append(m.sent, sentMessage{ChatID: chatID, ThreadID: threadID, MessageID: m.nextID, Text: text})
	return &models.Message{ID: m.nextID, Chat: models.Chat{ID: chatID}}, nil
}

func (m *fakeMessenger) EditMessageText(ctx context.Context, chatID int64, messageID int, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.edits = append(m.edits, sentMessage{ChatID: chatID, MessageID: messageID, Text: text})
	return nil
}

// last returns the text the user ends up seeing: the latest edit or message.
func (m *fakeMessenger) last() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.edits) > 0 {
		return m.edits[len(m.edits)-1].Text
	}
	if len(m.sent) > 0 {
		return m.sent[len(m.sent)-1].Text
	}
	return ""
}

func (m *fakeMessenger) sentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

type mockAuthorizationService struct {
	initiateFn   func(ctx context.Context, key domain.ContextKey) (string, error)
	completeFn   func(ctx context.Context, key domain.ContextKey, code string) (*domain.Credential, error)
	disconnectFn func(ctx context.Context, key domain.ContextKey) (bool, error)
	statusFn     func(ctx context.Context, key domain.ContextKey) (*domain.Credential, error)
}

func (m *mockAuthorizationService) Initiate(ctx context.Context, key domain.ContextKey) (string, error) {
	if m.initiateFn != nil {
		return m.initiateFn(ctx, key)
	}
	return "https://accounts.example.com/auth", nil
}

func (m *mockAuthorizationService) Complete(ctx context.Context, key domain.ContextKey, code string) (*domain.Credential, error) {
	if m.completeFn != nil {
		return m.completeFn(ctx, key, code)
	}
	return nil, errors.New("not implemented")
}

func (m *mockAuthorizationService) CompleteWithState(ctx context.Context, state, code string) (*domain.Credential, error) {
	return nil, errors.New("not implemented")
}

func (m *mockAuthorizationService) Disconnect(ctx context.Context, key domain.ContextKey) (bool, error) {
	if m.disconnectFn != nil {
		return m.disconnectFn(ctx, key)
	}
	return false, nil
}

func (m *mockAuthorizationService) Status(ctx context.Context, key domain.ContextKey) (*domain.Credential, error) {
	if m.statusFn != nil {
		return m.statusFn(ctx, key)
	}
	return nil, domain.ErrNotConnected
}

type mockUploadService struct {
	mu       sync.Mutex
	uploadFn func(ctx context.Context, req driving.UploadRequest) (*driving.UploadResult, error)
	requests []driving.UploadRequest
}

func (m *mockUploadService) Upload(ctx context.Context, req driving.UploadRequest) (*driving.UploadResult, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()
	if m.uploadFn != nil {
		return m.uploadFn(ctx, req)
	}
	return &driving.UploadResult{Outcome: domain.OutcomeUploaded, FileName: req.File.Name, Link: "https://drive.example.com/x"}, nil
}

type mockFolderService struct {
	setFolderFn func(ctx context.Context, key domain.ContextKey, name string) (string, error)
}

func (m *mockFolderService) SetFolder(ctx context.Context, key domain.ContextKey, name string) (string, error) {
	if m.setFolderFn != nil {
		return m.setFolderFn(ctx, key, name)
	}
	return "folder-" + name, nil
}

type botFixture struct {
	bot       *Bot
	messenger *fakeMessenger
	auth      *mockAuthorizationService
	upload    *mockUploadService
	folder    *mockFolderService
}

func newBotFixture() *botFixture {
	f := &botFixture{
		messenger: newFakeMessenger(),
		auth:      &mockAuthorizationService{},
		upload:    &mockUploadService{},
		folder:    &mockFolderService{},
	}
	f.bot = NewBot(BotConfig{
		Messenger:     f.messenger,
		Authorization: f.auth,
		Upload:        f.upload,
		Folder:        f.folder,
		Logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	return f
}

func textMessage(text string, thread *int64) *models.Message {
	msg := &models.Message{
		ID:   1,
		From: &models.User{ID: 10, FirstName: "Ada", LastName: "Lovelace"},
		Chat: models.Chat{ID: -100, Type: "supergroup"},
		Text: text,
	}
	if thread != nil {
		msg.MessageThreadID = int(*thread)
		msg.IsTopicMessage = true
	}
	return msg
}

func int64Ptr(v int64) *int64 { return &v }

func TestParseCommand(t *testing.T) {
	tests := []struct {
		text string
		cmd  string
		args string
		ok   bool
	}{
		{"/start", "start", "", true},
		{"/setfolder My Books ", "setfolder", "My Books", true},
		{"/Status@drive_relay_bot", "status", "", true},
		{"4/0Abc", "", "", false},
		{"hello", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			cmd, args, ok := parseCommand(tt.text)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.cmd, cmd)
			assert.Equal(t, tt.args, args)
		})
	}
}

func TestBot_IgnoresMessagesWithoutSender(t *testing.T) {
	f := newBotFixture()
	msg := textMessage("/status", nil)
	msg.From = nil

	f.bot.HandleMessage(context.Background(), msg)
	assert.Equal(t, 0, f.messenger.sentCount())
}

func TestBot_StartGreetsByName(t *testing.T) {
	f := newBotFixture()
	f.bot.HandleMessage(context.Background(), textMessage("/start", nil))
	assert.Contains(t, f.messenger.last(), "Hello, Ada Lovelace!")
	assert.Contains(t, f.messenger.last(), "/connect")
}

func TestBot_ConnectRefusedWhenConnected(t *testing.T) {
	f := newBotFixture()
	f.auth.statusFn = func(ctx context.Context, key domain.ContextKey) (*domain.Credential, error) {
		return &domain.Credential{Key: key, AccountEmail: "ada@example.com"}, nil
	}
	initiated := false
	f.auth.initiateFn = func(ctx context.Context, key domain.ContextKey) (string, error) {
		initiated = true
		return "", nil
	}

	f.bot.HandleMessage(context.Background(), textMessage("/connect", nil))
	assert.False(t, initiated)
	assert.Contains(t, f.messenger.last(), "Already connected as ada@example.com")
}

func TestBot_ConnectSendsURLForThreadKey(t *testing.T) {
	f := newBotFixture()
	var gotKey domain.ContextKey
	f.auth.initiateFn = func(ctx context.Context, key domain.ContextKey) (string, error) {
		gotKey = key
		return "https://accounts.example.com/auth?state=s", nil
	}

	f.bot.HandleMessage(context.Background(), textMessage("/connect", int64Ptr(7)))

	assert.True(t, gotKey.Equal(domain.NewContextKey(10, -100, int64Ptr(7))))
	assert.Contains(t, f.messenger.last(), "https://accounts.example.com/auth?state=s")
	require.Equal(t, 1, f.messenger.sentCount())
	assert.Equal(t, int64(7), *f.messenger.sent[0].ThreadID, "reply stays in the topic")
}

func TestBot_CodeOutcomes(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"success", nil, "Successfully connected to Google Drive as ada@example.com!"},
		{"no pending", domain.ErrNoPendingAuthorization, "No pending connection request found."},
		{"exchange failed", fmt.Errorf("%w: invalid_grant", domain.ErrExchangeFailed), "The code may be invalid or expired."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newBotFixture()
			var gotCode string
			f.auth.completeFn = func(ctx context.Context, key domain.ContextKey, code string) (*domain.Credential, error) {
				gotCode = code
				if tt.err != nil {
					return nil, tt.err
				}
				return &domain.Credential{Key: key, AccountEmail: "ada@example.com"}, nil
			}

			f.bot.HandleMessage(context.Background(), textMessage("  4/0AbcDef  ", nil))
			assert.Equal(t, "4/0AbcDef", gotCode)
			assert.Contains(t, f.messenger.last(), tt.want)
		})
	}
}

func TestBot_Disconnect(t *testing.T) {
	f := newBotFixture()
	f.auth.disconnectFn = func(ctx context.Context, key domain.ContextKey) (bool, error) { return true, nil }
	f.bot.HandleMessage(context.Background(), textMessage("/disconnect", nil))
	assert.Equal(t, "Disconnected from Google Drive.", f.messenger.last())

	f.auth.disconnectFn = func(ctx context.Context, key domain.ContextKey) (bool, error) { return false, nil }
	f.bot.HandleMessage(context.Background(), textMessage("/disconnect", nil))
	assert.Equal(t, "Not connected to Google Drive.", f.messenger.last())
}

func TestBot_StatusNotConnectedNamesLocation(t *testing.T) {
	f := newBotFixture()
	f.bot.HandleMessage(context.Background(), textMessage("/status", int64Ptr(3)))
	assert.Contains(t, f.messenger.last(), "for this topic")

	f.bot.HandleMessage(context.Background(), textMessage("/status", nil))
	assert.Contains(t, f.messenger.last(), "for this chat")
}

func TestBot_SetFolder(t *testing.T) {
	f := newBotFixture()
	var gotName string
	f.folder.setFolderFn = func(ctx context.Context, key domain.ContextKey, name string) (string, error) {
		gotName = name
		return "folder-1", nil
	}

	f.bot.HandleMessage(context.Background(), textMessage("/setfolder My Books", nil))
	assert.Equal(t, "My Books", gotName)
	assert.Equal(t, "Files will now be uploaded to folder 'My Books'.", f.messenger.last())
}

func TestBot_SetFolderUsage(t *testing.T) {
	f := newBotFixture()
	called := false
	f.folder.setFolderFn = func(ctx context.Context, key domain.ContextKey, name string) (string, error) {
		called = true
		return "", nil
	}

	f.bot.HandleMessage(context.Background(), textMessage("/setfolder", nil))
	assert.False(t, called)
	assert.Contains(t, f.messenger.last(), "Usage: /setfolder FolderName")
}

func TestBot_SetFolderRevoked(t *testing.T) {
	f := newBotFixture()
	f.folder.setFolderFn = func(ctx context.Context, key domain.ContextKey, name string) (string, error) {
		return "", fmt.Errorf("%w: token revoked", domain.ErrRefreshDenied)
	}

	f.bot.HandleMessage(context.Background(), textMessage("/setfolder Inbox", nil))
	assert.Contains(t, f.messenger.last(), "/disconnect and then /connect")
}

func TestBot_FileKinds(t *testing.T) {
	tests := []struct {
		name     string
		msg      *models.Message
		wantName string
		wantMime string
	}{
		{"document", &models.Message{Document: &models.Document{FileID: "d", FileName: "report.pdf", MimeType: "application/pdf", FileSize: 10}}, "report.pdf", "application/pdf"},
		{"unnamed document", &models.Message{Document: &models.Document{FileID: "d"}}, "document", "application/octet-stream"},
		{"photo", &models.Message{Photo: []models.PhotoSize{{FileID: "small"}, {FileID: "large"}}}, "photo.jpg", "image/jpeg"},
		{"video", &models.Message{Video: &models.Video{FileID: "v"}}, "video.mp4", "video/mp4"},
		{"audio", &models.Message{Audio: &models.Audio{FileID: "a", FileName: "song.flac", MimeType: "audio/flac"}}, "song.flac", "audio/flac"},
		{"voice", &models.Message{Voice: &models.Voice{FileID: "vo"}}, "voice.ogg", "audio/ogg"},
		{"video note", &models.Message{VideoNote: &models.VideoNote{FileID: "vn"}}, "video_note.mp4", "video/mp4"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ref, ok := fileRef(tt.msg)
			require.True(t, ok)
			assert.Equal(t, tt.wantName, ref.Name)
			assert.Equal(t, tt.wantMime, ref.MimeType)
		})
	}

	ref, _ := fileRef(tests[2].msg)
	assert.Equal(t, "large", ref.ID, "largest photo size")

	_, ok := fileRef(&models.Message{Text: "hi"})
	assert.False(t, ok)
}

func TestBot_UploadOutcomeMessages(t *testing.T) {
	tests := []struct {
		outcome domain.Outcome
		want    string
	}{
		{domain.OutcomeUploaded, "Uploaded to Google Drive:\nhttps://drive.example.com/x"},
		{domain.OutcomeNotConnected, "Not connected to Google Drive for this chat."},
		{domain.OutcomeTooLarge, "File is too large (25.0MB)."},
		{domain.OutcomeReauthorizationRequired, "Please use /disconnect and then /connect to reconnect."},
		{domain.OutcomeTransientFailure, "Failed to refresh Google Drive connection."},
		{domain.OutcomeSourceFetchFailed, "Failed to download file from Telegram."},
		{domain.OutcomeDeliveryFailed, "Failed to upload file to Google Drive."},
	}
	for _, tt := range tests {
		t.Run(string(tt.outcome), func(t *testing.T) {
			f := newBotFixture()
			f.upload.uploadFn = func(ctx context.Context, req driving.UploadRequest) (*driving.UploadResult, error) {
				res := &driving.UploadResult{Outcome: tt.outcome, FileName: req.File.Name}
				if tt.outcome == domain.OutcomeUploaded {
					res.Link = "https://drive.example.com/x"
					return res, nil
				}
				return res, errors.New("failed")
			}

			msg := textMessage("", nil)
			msg.Document = &models.Document{FileID: "d", FileName: "big.bin", FileSize: 25 * 1024 * 1024}
			f.bot.HandleMessage(context.Background(), msg)

			require.Len(t, f.messenger.sent, 1, "status message")
			assert.Contains(t, f.messenger.sent[0].Text, "Uploading big.bin")
			assert.Contains(t, f.messenger.last(), tt.want)
		})
	}
}

func TestBot_RunDispatchesUntilCancelled(t *testing.T) {
	f := newBotFixture()
	ctx, cancel := context.WithCancel(context.Background())

	f.messenger.updates <- textMessage("/disconnect", nil)
	f.messenger.updates <- textMessage("/disconnect", int64Ptr(4))

	done := make(chan error, 1)
	go func() { done <- f.bot.Run(ctx) }()

	require.Eventually(t, func() bool { return f.messenger.sentCount() == 2 }, 2*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("bot did not stop")
	}
}

func TestBot_StartWithoutLastName(t *testing.T) {
	f := newBotFixture()
	msg := textMessage("/help", nil)
	msg.From.LastName = ""

	f.bot.HandleMessage(context.Background(), msg)
	assert.Contains(t, f.messenger.last(), "Hello, Ada!")
}

func TestBot_UploadEditsStatusMessage(t *testing.T) {
	f := newBotFixture()
	msg := textMessage("", int64Ptr(9))
	msg.Photo = []models.PhotoSize{{FileID: "p", FileSize: 100}}

	f.bot.HandleMessage(context.Background(), msg)

	require.Len(t, f.messenger.sent, 1)
	require.Len(t, f.messenger.edits, 1)
	assert.Equal(t, f.messenger.sent[0].MessageID, f.messenger.edits[0].MessageID)
	assert.Equal(t, int64(9), *f.messenger.sent[0].ThreadID)

	require.Len(t, f.upload.requests, 1)
	assert.Equal(t, int64(100), f.upload.requests[0].File.Size)
}
