// Package messaging provides the pluggable message transport abstraction.
//
// This file implements Service using the Whatsmeow-based whatsapp client.
package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/avtotest/chekbot/internal/models"
	"github.com/avtotest/chekbot/internal/whatsapp"
	"go.mau.fi/whatsmeow/types/events"
)

// WhatsAppService implements Service using the Whatsmeow-based client.
type WhatsAppService struct {
	client    *whatsapp.Client
	responses chan models.Response
	done      chan struct{}
	mu        sync.RWMutex
	stopped   bool
}

// NewWhatsAppService creates a new WhatsAppService wrapping the given client.
func NewWhatsAppService(client *whatsapp.Client) *WhatsAppService {
	return &WhatsAppService{
		client:    client,
		responses: make(chan models.Response, DefaultChannelBufferSize),
		done:      make(chan struct{}),
	}
}

// ValidateAndCanonicalizeRecipient reduces a WhatsApp identifier to digits
// and requires at least 6 of them.
func (s *WhatsAppService) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
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

// Start registers the event handler for incoming messages.
func (s *WhatsAppService) Start(ctx context.Context) error {
	slog.Debug("WhatsAppService Start invoked")
	go s.handleEvents(ctx)
	return nil
}

// Stop stops background processing. The responses channel is never closed; a
// pending emit from the event handler could otherwise race the close and
// panic.
func (s *WhatsAppService) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return nil
	}
	s.stopped = true
	close(s.done)
	slog.Info("WhatsAppService stopped")
	return nil
}

// SendMessage sends a message and returns its message ID as the ref.
func (s *WhatsAppService) SendMessage(ctx context.Context, to string, body string) (models.MessageRef, error) {
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

	id, err := s.client.SendMessage(ctx, canonicalTo, body)
	if err != nil {
		return "", err
	}
	return models.MessageRef(id), nil
}

// EditMessage replaces the content of a previously sent message.
func (s *WhatsAppService) EditMessage(ctx context.Context, to string, ref models.MessageRef, body string) error {
	canonicalTo, err := s.ValidateAndCanonicalizeRecipient(to)
	if err != nil {
		return err
	}
	return s.client.EditMessage(ctx, canonicalTo, string(ref), body)
}

// Responses returns the channel of incoming user messages.
func (s *WhatsAppService) Responses() <-chan models.Response {
	return s.responses
}

// handleEvents registers the whatsmeow event handler and keeps it running
// until the context is cancelled.
func (s *WhatsAppService) handleEvents(ctx context.Context) {
	if s.client == nil || s.client.GetClient() == nil {
		slog.Error("WhatsAppService handleEvents: no client available")
		return
	}

	s.client.GetClient().AddEventHandler(func(evt interface{}) {
		if msg, ok := evt.(*events.Message); ok {
			s.handleIncomingMessage(ctx, msg)
		}
	})
	slog.Debug("WhatsAppService event handler registered")

	select {
	case <-ctx.Done():
	case <-s.done:
	}
}

// handleIncomingMessage converts one WhatsApp message into a models.Response,
// downloading image or document media first. Other media types are ignored.
func (s *WhatsAppService) handleIncomingMessage(ctx context.Context, evt *events.Message) {
	if evt.Message == nil {
		return
	}

	from := evt.Info.Sender.User
	response := models.Response{From: from, Time: evt.Info.Timestamp.Unix()}

	switch {
	case evt.Message.GetImageMessage() != nil:
		img := evt.Message.GetImageMessage()
		data, err := s.client.Download(ctx, img)
		if err != nil {
			slog.Error("WhatsAppService image download failed", "error", err, "from", from)
			return
		}
		response.Body = img.GetCaption()
		response.Attachment = &models.Attachment{Data: data, Kind: models.MediaKindImage}
	case evt.Message.GetDocumentMessage() != nil:
		doc := evt.Message.GetDocumentMessage()
		data, err := s.client.Download(ctx, doc)
		if err != nil {
			slog.Error("WhatsAppService document download failed", "error", err, "from", from)
			return
		}
		response.Body = doc.GetCaption()
		response.Attachment = &models.Attachment{Data: data, Kind: models.MediaKindDocument, Filename: doc.GetFileName()}
	case evt.Message.GetConversation() != "":
		response.Body = evt.Message.GetConversation()
	case evt.Message.GetExtendedTextMessage().GetText() != "":
		response.Body = evt.Message.GetExtendedTextMessage().GetText()
	default:
		slog.Debug("WhatsAppService ignoring unsupported message type", "from", from)
		return
	}

	s.safeEmitResponse(response)
}

// safeEmitResponse pushes an inbound message without blocking the event handler.
func (s *WhatsAppService) safeEmitResponse(response models.Response) {
	s.mu.RLock()
	stopped := s.stopped
	s.mu.RUnlock()
	if stopped {
		slog.Warn("WhatsAppService dropping inbound response (service stopped)", "from", response.From)
		return
	}

	select {
	case s.responses <- response:
		slog.Debug("WhatsAppService emitted inbound response", "from", response.From, "has_attachment", response.Attachment != nil)
	case <-s.done:
		slog.Warn("WhatsAppService dropping inbound response (service stopped)", "from", response.From)
	case <-time.After(DefaultChannelTimeout):
		slog.Warn("WhatsAppService responses channel blocked, dropping message", "from", response.From)
	}
}
