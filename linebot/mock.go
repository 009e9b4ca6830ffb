package linebot

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"

	"line-comicbot/pkg/gallery"
)

// MockClient logs outbound messages instead of calling LINE, for local development.
// Content is read from a directory, keyed by message ID.
type MockClient struct {
	logger     *slog.Logger
	contentDir string
}

// NewMockClient creates a mock client. contentDir may be empty.
func NewMockClient(contentDir string, logger *slog.Logger) *MockClient {
	return &MockClient{logger: logger, contentDir: contentDir}
}

// Reply logs the reply.
func (m *MockClient) Reply(_ context.Context, replyToken string, msgs ...Message) error {
	m.logger.Info("MOCK LINE REPLY", "reply_token", replyToken, "messages", describe(msgs))
	return nil
}

// Push logs the push.
func (m *MockClient) Push(_ context.Context, userID string, msgs ...Message) error {
	m.logger.Info("MOCK LINE PUSH", "user_id", userID, "messages", describe(msgs))
	return nil
}

// StartLoading logs the loading indicator.
func (m *MockClient) StartLoading(_ context.Context, userID string, seconds int) error {
	m.logger.Info("MOCK LINE LOADING", "user_id", userID, "seconds", ClampLoadingSeconds(seconds))
	return nil
}

// Content reads <contentDir>/<messageID>.
func (m *MockClient) Content(_ context.Context, messageID string) (gallery.MediaBlob, error) {
	if m.contentDir == "" || messageID != filepath.Base(messageID) {
		return gallery.MediaBlob{}, ErrContentGone
	}
	data, err := os.ReadFile(filepath.Join(m.contentDir, messageID))
	if err != nil {
		if os.IsNotExist(err) {
			return gallery.MediaBlob{}, ErrContentGone
		}
		return gallery.MediaBlob{}, err
	}
	return gallery.MediaBlob{Data: data, MimeType: "image/jpeg"}, nil
}

func describe(msgs []Message) string {
	b, err := json.Marshal(msgs)
	if err != nil {
		return err.Error()
	}
	return string(b)
}
