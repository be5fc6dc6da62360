// Package messaging provides the pluggable message transport abstraction.
//
// This file implements Service against the Telegram Bot API using long
// polling. Photo and document attachments are downloaded before the inbound
// message is emitted, so the engine only ever sees raw bytes.
package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/avtotest/chekbot/internal/models"
)

// Telegram transport configuration constants.
const (
	// DefaultTelegramAPIBase is the production Bot API endpoint.
	DefaultTelegramAPIBase = "https://api.telegram.org"
	// DefaultPollTimeoutSeconds is the long-poll timeout passed to getUpdates.
	DefaultPollTimeoutSeconds = 30
	// MaxAttachmentBytes caps downloaded attachment size.
	MaxAttachmentBytes = 20 << 20
)

// TelegramOpts holds configuration options for the Telegram transport.
type TelegramOpts struct {
	Token      string
	APIBase    string
	HTTPClient *http.Client
}

// TelegramOption defines a configuration option for the Telegram transport.
type TelegramOption func(*TelegramOpts)

// WithTelegramToken sets the bot token explicitly.
func WithTelegramToken(token string) TelegramOption {
	return func(o *TelegramOpts) { o.Token = token }
}

// WithTelegramAPIBase overrides the Bot API base URL (used in tests).
func WithTelegramAPIBase(base string) TelegramOption {
	return func(o *TelegramOpts) { o.APIBase = base }
}

// WithTelegramHTTPClient overrides the HTTP client.
func WithTelegramHTTPClient(c *http.Client) TelegramOption {
	return func(o *TelegramOpts) { o.HTTPClient = c }
}

// TelegramService implements Service using the Telegram Bot API.
type TelegramService struct {
	token     string
	apiBase   string
	http      *http.Client
	responses chan models.Response
	done      chan struct{}
	offset    int64
	mu        sync.RWMutex
	stopped   bool
}

// NewTelegramService creates the transport, falling back to the
// TELEGRAM_BOT_TOKEN environment variable.
func NewTelegramService(opts ...TelegramOption) (*TelegramService, error) {
	var cfg TelegramOpts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Token == "" {
		cfg.Token = os.Getenv("TELEGRAM_BOT_TOKEN")
	}
	if cfg.Token == "" {
		return nil, fmt.Errorf("telegram bot token must be provided")
	}
	if cfg.APIBase == "" {
		cfg.APIBase = DefaultTelegramAPIBase
	}
	if cfg.HTTPClient == nil {
		// Client timeout must exceed the long-poll window.
		cfg.HTTPClient = &http.Client{Timeout: (DefaultPollTimeoutSeconds + 30) * time.Second}
	}

	return &TelegramService{
		token:     cfg.Token,
		apiBase:   strings.TrimSuffix(cfg.APIBase, "/"),
		http:      cfg.HTTPClient,
		responses: make(chan models.Response, DefaultChannelBufferSize),
		done:      make(chan struct{}),
	}, nil
}

// ValidateAndCanonicalizeRecipient accepts a Telegram chat ID: an optionally
// negative integer in decimal form.
func (s *TelegramService) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	trimmed := strings.TrimSpace(recipient)
	if trimmed == "" {
		return "", models.ErrEmptyRecipient
	}
	if _, err := strconv.ParseInt(trimmed, 10, 64); err != nil {
		return "", fmt.Errorf("invalid telegram chat id %q: %w", recipient, err)
	}
	return trimmed, nil
}

// Start begins long polling for updates.
func (s *TelegramService) Start(ctx context.Context) error {
	slog.Debug("TelegramService Start invoked")
	go s.poll(ctx)
	return nil
}

// Stop stops polling. The responses channel is never closed; a pending emit
// could otherwise race the close and panic. Consumers stop via their own
// context.
func (s *TelegramService) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return nil
	}
	s.stopped = true
	close(s.done)
	slog.Info("TelegramService stopped")
	return nil
}

// SendMessage sends a text message and returns its message ID as the ref.
func (s *TelegramService) SendMessage(ctx context.Context, to string, body string) (models.MessageRef, error) {
	if body == "" {
		return "", models.ErrEmptyBody
	}
	canonicalTo, err := s.ValidateAndCanonicalizeRecipient(to)
	if err != nil {
		return "", err
	}

	var sent tgMessage
	err = s.call(ctx, "sendMessage", map[string]any{"chat_id": canonicalTo, "text": body}, &sent)
	if err != nil {
		slog.Error("TelegramService SendMessage failed", "error", err, "to", canonicalTo)
		return "", fmt.Errorf("failed to send message to %s: %w", canonicalTo, err)
	}
	slog.Debug("TelegramService message sent", "to", canonicalTo, "message_id", sent.MessageID)
	return models.MessageRef(strconv.FormatInt(sent.MessageID, 10)), nil
}

// EditMessage replaces the text of a previously sent message in place.
func (s *TelegramService) EditMessage(ctx context.Context, to string, ref models.MessageRef, body string) error {
	canonicalTo, err := s.ValidateAndCanonicalizeRecipient(to)
	if err != nil {
		return err
	}
	messageID, err := strconv.ParseInt(string(ref), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid message ref %q: %w", ref, err)
	}

	err = s.call(ctx, "editMessageText", map[string]any{"chat_id": canonicalTo, "message_id": messageID, "text": body}, nil)
	if err != nil {
		slog.Error("TelegramService EditMessage failed", "error", err, "to", canonicalTo, "message_id", messageID)
		return fmt.Errorf("failed to edit message %d for %s: %w", messageID, canonicalTo, err)
	}
	slog.Debug("TelegramService message edited", "to", canonicalTo, "message_id", messageID)
	return nil
}

// Responses returns the channel of incoming user messages.
func (s *TelegramService) Responses() <-chan models.Response {
	return s.responses
}

// poll runs the getUpdates long-poll loop until the context is cancelled.
func (s *TelegramService) poll(ctx context.Context) {
	slog.Info("TelegramService polling started")
	defer slog.Info("TelegramService polling stopped")

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		default:
		}

		var updates []tgUpdate
		err := s.call(ctx, "getUpdates", map[string]any{
			"offset":          s.offset,
			"timeout":         DefaultPollTimeoutSeconds,
			"allowed_updates": []string{"message", "business_message"},
		}, &updates)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			slog.Error("TelegramService getUpdates failed", "error", err)
			time.Sleep(3 * time.Second)
			continue
		}

		for _, upd := range updates {
			if upd.UpdateID >= s.offset {
				s.offset = upd.UpdateID + 1
			}
			msg := upd.Message
			if msg == nil {
				msg = upd.BusinessMessage
			}
			if msg == nil {
				continue
			}
			s.handleMessage(ctx, msg)
		}
	}
}

// handleMessage converts one Telegram message into a models.Response,
// downloading any photo or document first. Other media types are ignored.
func (s *TelegramService) handleMessage(ctx context.Context, msg *tgMessage) {
	from := strconv.FormatInt(msg.Chat.ID, 10)
	response := models.Response{From: from, Body: msg.Text, Time: msg.Date}

	switch {
	case len(msg.Photo) > 0:
		// The last photo size is the largest rendition.
		fileID := msg.Photo[len(msg.Photo)-1].FileID
		data, err := s.downloadFile(ctx, fileID)
		if err != nil {
			slog.Error("TelegramService photo download failed", "error", err, "from", from)
			return
		}
		response.Body = msg.Caption
		response.Attachment = &models.Attachment{Data: data, Kind: models.MediaKindImage}
	case msg.Document != nil:
		data, err := s.downloadFile(ctx, msg.Document.FileID)
		if err != nil {
			slog.Error("TelegramService document download failed", "error", err, "from", from)
			return
		}
		response.Body = msg.Caption
		response.Attachment = &models.Attachment{Data: data, Kind: models.MediaKindDocument, Filename: msg.Document.FileName}
	case msg.Text == "":
		slog.Debug("TelegramService ignoring unsupported message type", "from", from)
		return
	}

	s.safeEmitResponse(response)
}

// downloadFile resolves a file_id and fetches its content.
func (s *TelegramService) downloadFile(ctx context.Context, fileID string) ([]byte, error) {
	var file tgFile
	if err := s.call(ctx, "getFile", map[string]any{"file_id": fileID}, &file); err != nil {
		return nil, fmt.Errorf("getFile failed: %w", err)
	}
	if file.FilePath == "" {
		return nil, fmt.Errorf("getFile returned empty file path")
	}

	url := fmt.Sprintf("%s/file/bot%s/%s", s.apiBase, s.token, file.FilePath)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("file download failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("file download returned status %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, MaxAttachmentBytes))
}

// call performs one Bot API method call and decodes the result into out.
func (s *TelegramService) call(ctx context.Context, method string, params map[string]any, out any) error {
	payload, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("failed to encode %s params: %w", method, err)
	}

	url := fmt.Sprintf("%s/bot%s/%s", s.apiBase, s.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", method, err)
	}
	defer resp.Body.Close()

	var envelope tgAPIResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", method, err)
	}
	if !envelope.OK {
		return fmt.Errorf("%s returned error: %s", method, envelope.Description)
	}
	if out != nil && len(envelope.Result) > 0 {
		if err := json.Unmarshal(envelope.Result, out); err != nil {
			return fmt.Errorf("failed to decode %s result: %w", method, err)
		}
	}
	return nil
}

// safeEmitResponse pushes an inbound message without blocking the poll loop.
func (s *TelegramService) safeEmitResponse(response models.Response) {
	s.mu.RLock()
	stopped := s.stopped
	s.mu.RUnlock()
	if stopped {
		slog.Warn("TelegramService dropping inbound response (service stopped)", "from", response.From)
		return
	}

	select {
	case s.responses <- response:
		slog.Debug("TelegramService emitted inbound response", "from", response.From, "has_attachment", response.Attachment != nil)
	case <-s.done:
		slog.Warn("TelegramService dropping inbound response (service stopped)", "from", response.From)
	case <-time.After(DefaultChannelTimeout):
		slog.Warn("TelegramService responses channel blocked, dropping message", "from", response.From)
	}
}

// Telegram Bot API wire types (only the fields this transport reads).

type tgAPIResponse struct {
	OK          bool            `json:"ok"`
	Description string          `json:"description"`
	Result      json.RawMessage `json:"result"`
}

type tgUpdate struct {
	UpdateID        int64      `json:"update_id"`
	Message         *tgMessage `json:"message"`
	BusinessMessage *tgMessage `json:"business_message"`
}

type tgMessage struct {
	MessageID int64         `json:"message_id"`
	Chat      tgChat        `json:"chat"`
	Date      int64         `json:"date"`
	Text      string        `json:"text"`
	Caption   string        `json:"caption"`
	Photo     []tgPhotoSize `json:"photo"`
	Document  *tgDocument   `json:"document"`
}

type tgChat struct {
	ID int64 `json:"id"`
}

type tgPhotoSize struct {
	FileID string `json:"file_id"`
}

type tgDocument struct {
	FileID   string `json:"file_id"`
	FileName string `json:"file_name"`
	MimeType string `json:"mime_type"`
}

type tgFile struct {
	FilePath string `json:"file_path"`
}
