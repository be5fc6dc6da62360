// Package messaging provides the pluggable message transport abstraction.
//
// This file implements Service using the Twilio WhatsApp API. Inbound
// messages arrive through a webhook handler; media referenced by the webhook
// is downloaded before the response is emitted.
package messaging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/avtotest/chekbot/internal/models"
	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

// TwilioOpts holds configuration options for the Twilio transport.
type TwilioOpts struct {
	AccountSID string
	AuthToken  string
	FromWhats  string
	HTTPClient *http.Client
}

// TwilioOption defines a configuration option for the Twilio transport.
type TwilioOption func(*TwilioOpts)

// WithTwilioAccountSID sets the account SID.
func WithTwilioAccountSID(sid string) TwilioOption {
	return func(o *TwilioOpts) { o.AccountSID = sid }
}

// WithTwilioAuthToken sets the auth token.
func WithTwilioAuthToken(token string) TwilioOption {
	return func(o *TwilioOpts) { o.AuthToken = token }
}

// WithTwilioFrom sets the WhatsApp sender number ("whatsapp:+1234567890").
func WithTwilioFrom(from string) TwilioOption {
	return func(o *TwilioOpts) { o.FromWhats = from }
}

// TwilioService implements Service using the Twilio REST API.
type TwilioService struct {
	client     *twilio.RestClient
	accountSID string
	authToken  string
	fromWhats  string
	http       *http.Client
	responses  chan models.Response
	done       chan struct{}
	mu         sync.RWMutex
	stopped    bool
}

// NewTwilioService creates the transport, falling back to the
// TWILIO_ACCOUNT_SID, TWILIO_AUTH_TOKEN and TWILIO_FROM_NUMBER environment
// variables.
func NewTwilioService(opts ...TwilioOption) (*TwilioService, error) {
	var cfg TwilioOpts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.AccountSID == "" {
		cfg.AccountSID = os.Getenv("TWILIO_ACCOUNT_SID")
	}
	if cfg.AuthToken == "" {
		cfg.AuthToken = os.Getenv("TWILIO_AUTH_TOKEN")
	}
	if cfg.FromWhats == "" {
		cfg.FromWhats = os.Getenv("TWILIO_FROM_NUMBER")
	}
	slog.Debug("Twilio service config loaded",
		"AccountSID_set", cfg.AccountSID != "",
		"AuthToken_set", cfg.AuthToken != "",
		"FromWhats_set", cfg.FromWhats != "")

	if cfg.AccountSID == "" || cfg.AuthToken == "" {
		return nil, fmt.Errorf("account SID and auth token must be provided")
	}
	if cfg.FromWhats == "" {
		return nil, fmt.Errorf("from number must be provided")
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}

	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})

	return &TwilioService{
		client:     client,
		accountSID: cfg.AccountSID,
		authToken:  cfg.AuthToken,
		fromWhats:  cfg.FromWhats,
		http:       cfg.HTTPClient,
		responses:  make(chan models.Response, DefaultChannelBufferSize),
		done:       make(chan struct{}),
	}, nil
}

// ValidateAndCanonicalizeRecipient reduces a WhatsApp identifier to digits
// and requires at least 6 of them.
func (s *TwilioService) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	if recipient == "" {
		return "", models.ErrEmptyRecipient
	}
	canonical := nonDigitRegex.ReplaceAllString(recipient, "")
	if canonical == "" {
		return "", fmt.Errorf("invalid phone number: no digits found in recipient %q", recipient)
	}
	if len(canonical) < 6 {
		return "", fmt.Errorf("invalid phone number: %q is too short (minimum 6 digits required)", canonical)
	}
	return canonical, nil
}

// Start is a no-op; inbound traffic arrives via WebhookHandler.
func (s *TwilioService) Start(ctx context.Context) error {
	return nil
}

// Stop stops the service. The responses channel is never closed; a pending
// webhook emit could otherwise race the close and panic.
func (s *TwilioService) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return nil
	}
	s.stopped = true
	close(s.done)
	return nil
}

// SendMessage sends a WhatsApp message and returns the message SID as ref.
func (s *TwilioService) SendMessage(ctx context.Context, to string, body string) (models.MessageRef, error) {
	s.mu.RLock()
	if s.stopped {
		s.mu.RUnlock()
		return "", ErrServiceStopped
	}
	s.mu.RUnlock()

	canonicalTo, err := s.ValidateAndCanonicalizeRecipient(to)
	if err != nil {
		return "", err
	}

	params := &twilioApi.CreateMessageParams{}
	params.SetTo("whatsapp:+" + canonicalTo)
	params.SetFrom(s.fromWhats)
	params.SetBody(body)

	resp, err := s.client.Api.CreateMessage(params)
	if err != nil {
		slog.Error("TwilioService SendMessage failed", "error", err, "to", canonicalTo)
		return "", fmt.Errorf("failed to send message to %s: %w", canonicalTo, err)
	}

	var ref models.MessageRef
	if resp.Sid != nil {
		ref = models.MessageRef(*resp.Sid)
	}
	slog.Debug("TwilioService message sent", "to", canonicalTo)
	return ref, nil
}

// EditMessage falls back to sending a fresh message; the Twilio API cannot
// edit delivered WhatsApp messages.
func (s *TwilioService) EditMessage(ctx context.Context, to string, ref models.MessageRef, body string) error {
	slog.Debug("TwilioService EditMessage falling back to send (edit unsupported)", "to", to)
	_, err := s.SendMessage(ctx, to, body)
	return err
}

// Responses returns the channel of incoming user messages.
func (s *TwilioService) Responses() <-chan models.Response {
	return s.responses
}

// WebhookHandler handles inbound Twilio webhook requests, emitting them as
// models.Response into the Responses() channel.
func (s *TwilioService) WebhookHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		slog.Error("Failed to parse Twilio webhook form", "error", err)
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}

	from := r.FormValue("From")
	body := r.FormValue("Body")
	if from == "" {
		slog.Warn("Twilio webhook missing From field")
		http.Error(w, "Missing required fields", http.StatusBadRequest)
		return
	}

	response := models.Response{
		From: strings.TrimPrefix(from, "whatsapp:"),
		Body: body,
		Time: time.Now().Unix(),
	}

	if mediaURL := r.FormValue("MediaUrl0"); mediaURL != "" {
		contentType := r.FormValue("MediaContentType0")
		data, err := s.downloadMedia(r.Context(), mediaURL)
		if err != nil {
			slog.Error("TwilioService media download failed", "error", err, "from", response.From)
			http.Error(w, "Media download failed", http.StatusInternalServerError)
			return
		}
		response.Attachment = mediaAttachment(data, contentType)
	}

	s.safeEmitResponse(response)

	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "OK")
}

// mediaAttachment maps a Twilio media content type onto the transport
// attachment model. PDFs are declared as documents with a synthetic filename
// so downstream routing can recognize them.
func mediaAttachment(data []byte, contentType string) *models.Attachment {
	switch {
	case strings.HasPrefix(contentType, "image/"):
		return &models.Attachment{Data: data, Kind: models.MediaKindImage}
	case contentType == "application/pdf":
		return &models.Attachment{Data: data, Kind: models.MediaKindDocument, Filename: "receipt.pdf"}
	default:
		return &models.Attachment{Data: data, Kind: models.MediaKindDocument, Filename: "attachment"}
	}
}

// downloadMedia fetches webhook media content with API credentials.
func (s *TwilioService) downloadMedia(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(s.accountSID, s.authToken)

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("media download failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("media download returned status %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, MaxAttachmentBytes))
}

// safeEmitResponse safely pushes responses into the responses channel.
func (s *TwilioService) safeEmitResponse(response models.Response) {
	s.mu.RLock()
	stopped := s.stopped
	s.mu.RUnlock()
	if stopped {
		slog.Warn("TwilioService dropping inbound response (service stopped)", "from", response.From)
		return
	}

	select {
	case s.responses <- response:
		slog.Debug("TwilioService emitted inbound response", "from", response.From)
	case <-s.done:
		slog.Warn("TwilioService dropping inbound response (service stopped)", "from", response.From)
	case <-time.After(DefaultChannelTimeout):
		slog.Warn("TwilioService responses channel blocked, dropping message", "from", response.From)
	}
}
