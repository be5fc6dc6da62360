// Package messaging provides the pluggable message transport abstraction.
//
// A Service delivers outbound messages (with optional in-place edits for
// progress updates) and exposes a channel of inbound user responses,
// including downloaded attachments.
package messaging

import (
	"context"
	"errors"
	"regexp"
	"time"

	"github.com/avtotest/chekbot/internal/models"
)

// Constants shared by transport implementations.
const (
	// DefaultChannelBufferSize defines the buffer size for the responses channel.
	DefaultChannelBufferSize = 100
	// DefaultChannelTimeout defines the timeout for non-blocking channel sends.
	DefaultChannelTimeout = 1 * time.Second
)

// ErrServiceStopped is returned when sending through a stopped service.
var ErrServiceStopped = errors.New("messaging service stopped")

// nonDigitRegex strips everything but digits when canonicalizing phone numbers.
var nonDigitRegex = regexp.MustCompile(`[^0-9]`)

// Service defines a pluggable message delivery abstraction.
type Service interface {
	// ValidateAndCanonicalizeRecipient validates and canonicalizes a recipient
	// identifier. Each transport has its own rules (chat IDs, phone numbers).
	ValidateAndCanonicalizeRecipient(recipient string) (string, error)

	// SendMessage sends a message and returns a reference usable with
	// EditMessage. Transports that cannot address sent messages return an
	// empty ref.
	SendMessage(ctx context.Context, to string, body string) (models.MessageRef, error)

	// EditMessage replaces the body of a previously sent message. Transports
	// without edit support fall back to sending a fresh message.
	EditMessage(ctx context.Context, to string, ref models.MessageRef, body string) error

	// Start begins background processing (e.g., polling for events).
	Start(ctx context.Context) error

	// Stop stops background processing and cleans up resources.
	Stop() error

	// Responses returns a channel of incoming user messages.
	Responses() <-chan models.Response
}
