// Package models defines the core data structures for chekbot.
//
// It includes the per-user session record, classified inbound events,
// provisioning results and transport message types shared across modules.
package models

import (
	"errors"
	"time"
)

// SessionState identifies where a user is in the payment-verification flow.
type SessionState string

const (
	// StateIdle is the initial state for a newly seen user.
	StateIdle SessionState = "IDLE"
	// StateAwaitingCheck means payment instructions (or an email) were received
	// and the bot is waiting for a payment receipt.
	StateAwaitingCheck SessionState = "AWAITING_CHECK"
	// StateAwaitingEmail means a receipt was accepted and the bot is waiting
	// for the email address to provision.
	StateAwaitingEmail SessionState = "AWAITING_EMAIL"
	// StateCompleted means an account was provisioned; the bot stays quiet
	// except for price inquiries and a fresh payment intent.
	StateCompleted SessionState = "COMPLETED"
)

// IsValidSessionState checks if the given state is one of the closed set.
func IsValidSessionState(s SessionState) bool {
	switch s {
	case StateIdle, StateAwaitingCheck, StateAwaitingEmail, StateCompleted:
		return true
	default:
		return false
	}
}

// Session is the per-user workflow record. It is created lazily on the first
// inbound message from a user and mutated only by the workflow engine.
type Session struct {
	UserID       string       `json:"user_id"`
	State        SessionState `json:"state"`
	PendingEmail string       `json:"pending_email,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// EventKind classifies one inbound message.
type EventKind string

const (
	// EventEmailFound means the message text contained an email address.
	EventEmailFound EventKind = "email_found"
	// EventPriceInquiry means the text matched a price-inquiry marker.
	EventPriceInquiry EventKind = "price_inquiry"
	// EventPaymentIntent means the text matched a payment-intent marker.
	EventPaymentIntent EventKind = "payment_intent"
	// EventUnclassified means the text matched nothing; always a no-op.
	EventUnclassified EventKind = "unclassified"
	// EventProofSubmitted means an image or PDF receipt was uploaded and its
	// text extracted.
	EventProofSubmitted EventKind = "proof_submitted"
	// EventUnsupportedAttachment means an attachment of an unusable type was
	// uploaded.
	EventUnsupportedAttachment EventKind = "unsupported_attachment"
)

// Event is one classified inbound message, transient per message.
type Event struct {
	Kind EventKind
	// Email is set for EventEmailFound: the first address found in the text.
	Email string
	// ExtractedText is set for EventProofSubmitted: raw text recovered from
	// the uploaded receipt. May be empty when extraction recovered nothing.
	ExtractedText string
}

// ProvisionOutcome classifies the result of an account-provisioning attempt.
type ProvisionOutcome string

const (
	// ProvisionCreated means a fresh account was issued.
	ProvisionCreated ProvisionOutcome = "created"
	// ProvisionAlreadyExists means the identity was already registered.
	// The workflow treats this as a successful idempotent outcome.
	ProvisionAlreadyExists ProvisionOutcome = "already_exists"
	// ProvisionFailed means the issuing service returned any other error.
	// The session stays in place so the user can retry.
	ProvisionFailed ProvisionOutcome = "failed"
)

// ProvisioningResult is the typed outcome of one provisioning call.
type ProvisioningResult struct {
	Outcome ProvisionOutcome
	Login   string
	Secret  string
	Reason  string
}

// MediaKind is the transport-declared type of an uploaded attachment.
type MediaKind string

const (
	MediaKindImage    MediaKind = "image"
	MediaKindDocument MediaKind = "document"
)

// Attachment carries downloaded attachment bytes from the transport.
type Attachment struct {
	Data     []byte
	Kind     MediaKind
	Filename string
}

// Response is one inbound message delivered by the messaging transport.
type Response struct {
	From       string
	Body       string
	Attachment *Attachment
	Time       int64
}

// MessageRef identifies a previously sent message so it can be edited.
// Transports that cannot edit return refs but ignore edits.
type MessageRef string

// Error variables shared across modules for classification and testability.
var (
	ErrEmptyRecipient = errors.New("recipient cannot be empty")
	ErrEmptyBody      = errors.New("message body cannot be empty")
)
