// Package engine implements the payment-verification workflow state machine.
//
// The engine consumes inbound transport messages, classifies them (or
// extracts and validates proof attachments), steps the per-user session
// through the transition table and emits the outbound replies. Processing is
// serialized per user; sessions of different users proceed in parallel.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/avtotest/chekbot/internal/classify"
	"github.com/avtotest/chekbot/internal/extract"
	"github.com/avtotest/chekbot/internal/messaging"
	"github.com/avtotest/chekbot/internal/models"
	"github.com/avtotest/chekbot/internal/provision"
	"github.com/avtotest/chekbot/internal/store"
	"github.com/avtotest/chekbot/internal/verify"
)

// DefaultCallTimeout bounds a single extraction or provisioning call.
const DefaultCallTimeout = 45 * time.Second

// Engine drives the conversation workflow.
type Engine struct {
	store       store.Store
	classifier  *classify.Classifier
	validator   *verify.Validator
	extractor   extract.Extractor
	provisioner *provision.Provisioner
	msg         messaging.Service
	replies     Replies
	locks       *userLocks
	callTimeout time.Duration
}

// Option defines a configuration option for the Engine.
type Option func(*Engine)

// WithReplies overrides the outbound message catalog.
func WithReplies(r Replies) Option {
	return func(e *Engine) { e.replies = r }
}

// WithCallTimeout overrides the collaborator call timeout.
func WithCallTimeout(d time.Duration) Option {
	return func(e *Engine) { e.callTimeout = d }
}

// New creates an Engine with the given collaborators.
func New(st store.Store, cls *classify.Classifier, val *verify.Validator, ext extract.Extractor, prov *provision.Provisioner, svc messaging.Service, opts ...Option) *Engine {
	e := &Engine{
		store:       st,
		classifier:  cls,
		validator:   val,
		extractor:   ext,
		provisioner: prov,
		msg:         svc,
		replies:     DefaultReplies(),
		locks:       newUserLocks(),
		callTimeout: DefaultCallTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// HandleResponse processes one inbound message end to end under the sender's
// session lock. Transport send failures propagate to the caller; the session
// is only persisted after all sends for the message succeeded.
func (e *Engine) HandleResponse(ctx context.Context, response models.Response) error {
	userID, err := e.msg.ValidateAndCanonicalizeRecipient(response.From)
	if err != nil {
		return fmt.Errorf("invalid sender: %w", err)
	}

	unlock := e.locks.lock(userID)
	defer unlock()

	sess, err := e.store.GetSession(userID)
	if err != nil {
		return fmt.Errorf("failed to load session for %s: %w", userID, err)
	}
	if sess == nil {
		now := time.Now()
		sess = &models.Session{UserID: userID, State: models.StateIdle, CreatedAt: now, UpdatedAt: now}
		slog.Debug("Engine created session", "userID", userID)
	}

	// An attached file always takes the proof path, regardless of caption
	// text; plain text is never treated as a file.
	if response.Attachment != nil {
		return e.handleAttachment(ctx, sess, response.Attachment)
	}

	ev := e.classifier.Classify(response.Body)
	slog.Debug("Engine classified message", "userID", userID, "kind", ev.Kind, "state", sess.State)
	return e.apply(ctx, sess, ev, "")
}

// handleAttachment routes an uploaded file: images and PDF documents go
// through extraction and validation, everything else is rejected as
// unsupported.
func (e *Engine) handleAttachment(ctx context.Context, sess *models.Session, att *models.Attachment) error {
	kind, ok := proofKind(att)
	if !ok {
		slog.Debug("Engine unsupported attachment", "userID", sess.UserID, "kind", att.Kind, "filename", att.Filename)
		return e.apply(ctx, sess, models.Event{Kind: models.EventUnsupportedAttachment}, "")
	}

	// Converted users get silence for further uploads; skip the progress
	// message and the extraction call entirely.
	if sess.State == models.StateCompleted {
		slog.Debug("Engine ignoring proof from completed session", "userID", sess.UserID)
		return e.save(sess)
	}

	ref, err := e.msg.SendMessage(ctx, sess.UserID, e.replies.Checking)
	if err != nil {
		return fmt.Errorf("failed to send progress message: %w", err)
	}

	cctx, cancel := context.WithTimeout(ctx, e.callTimeout)
	text, err := e.extractor.Extract(cctx, att.Data, kind)
	cancel()
	if err != nil {
		// Extraction service failure is recovered locally: tell the user,
		// leave the session untouched so a resubmit can succeed.
		slog.Error("Engine extraction failed", "error", err, "userID", sess.UserID)
		if editErr := e.msg.EditMessage(ctx, sess.UserID, ref, e.replies.ExtractionFailed); editErr != nil {
			return fmt.Errorf("failed to report extraction failure: %w", editErr)
		}
		return e.save(sess)
	}

	return e.apply(ctx, sess, models.Event{Kind: models.EventProofSubmitted, ExtractedText: text}, ref)
}

// apply runs one transition step and executes its plan: replies first (the
// first reply edits the progress message when one exists), then session
// mutations, then provisioning, then persistence.
func (e *Engine) apply(ctx context.Context, sess *models.Session, ev models.Event, progressRef models.MessageRef) error {
	proofAccepted := false
	if ev.Kind == models.EventProofSubmitted {
		proofAccepted = e.validator.Accept(ev.ExtractedText)
		slog.Info("Engine proof validated", "userID", sess.UserID, "accepted", proofAccepted, "text_length", len(ev.ExtractedText))
	}

	pl := step(*sess, ev, proofAccepted, e.replies)

	if err := e.deliver(ctx, sess.UserID, pl.replies, progressRef); err != nil {
		return err
	}

	if pl.pendingEmail != "" {
		sess.PendingEmail = pl.pendingEmail
	}
	if pl.clearPending {
		sess.PendingEmail = ""
	}
	if pl.next != "" && pl.next != sess.State {
		slog.Info("Engine state transition", "userID", sess.UserID, "from", sess.State, "to", pl.next, "event", ev.Kind)
		sess.State = pl.next
	}

	if pl.provisionEmail != "" {
		if err := e.provisionAccount(ctx, sess, pl.provisionEmail); err != nil {
			return err
		}
	}

	return e.save(sess)
}

// deliver sends the planned replies sequentially, preserving order. When a
// progress message exists, the first reply replaces it in place.
func (e *Engine) deliver(ctx context.Context, userID string, replies []string, progressRef models.MessageRef) error {
	for i, body := range replies {
		if i == 0 && progressRef != "" {
			if err := e.msg.EditMessage(ctx, userID, progressRef, body); err != nil {
				return fmt.Errorf("failed to edit progress message: %w", err)
			}
			continue
		}
		if _, err := e.msg.SendMessage(ctx, userID, body); err != nil {
			return fmt.Errorf("failed to send reply: %w", err)
		}
	}
	return nil
}

// provisionAccount invokes the provisioner and maps the typed outcome onto
// the session. Created and AlreadyExists both complete the session (an
// existing account is a successful idempotent outcome); any other failure
// leaves the session where it was so the user can retry.
func (e *Engine) provisionAccount(ctx context.Context, sess *models.Session, email string) error {
	cctx, cancel := context.WithTimeout(ctx, e.callTimeout)
	result := e.provisioner.Provision(cctx, email)
	cancel()

	switch result.Outcome {
	case models.ProvisionCreated:
		// Two distinct sequential messages: credentials first, invite link
		// second. The second send only starts after the first returned so
		// the user observes them in order.
		if _, err := e.msg.SendMessage(ctx, sess.UserID, e.replies.credentials(result.Login, result.Secret)); err != nil {
			return fmt.Errorf("failed to send credentials message: %w", err)
		}
		if _, err := e.msg.SendMessage(ctx, sess.UserID, e.replies.InviteMessage); err != nil {
			return fmt.Errorf("failed to send invite message: %w", err)
		}
		sess.State = models.StateCompleted
		sess.PendingEmail = ""

	case models.ProvisionAlreadyExists:
		if _, err := e.msg.SendMessage(ctx, sess.UserID, e.replies.alreadyRegistered(email)); err != nil {
			return fmt.Errorf("failed to send already-registered notice: %w", err)
		}
		sess.State = models.StateCompleted
		sess.PendingEmail = ""

	default:
		if _, err := e.msg.SendMessage(ctx, sess.UserID, e.replies.provisionFailed(result.Reason)); err != nil {
			return fmt.Errorf("failed to send provisioning failure message: %w", err)
		}
	}
	return nil
}

// save stamps and persists the session.
func (e *Engine) save(sess *models.Session) error {
	sess.UpdatedAt = time.Now()
	if err := e.store.SaveSession(*sess); err != nil {
		return fmt.Errorf("failed to save session for %s: %w", sess.UserID, err)
	}
	return nil
}

// proofKind maps an attachment onto the extraction media kind. Images and
// PDF documents are usable proofs; anything else is unsupported.
func proofKind(att *models.Attachment) (models.MediaKind, bool) {
	switch att.Kind {
	case models.MediaKindImage:
		return models.MediaKindImage, true
	case models.MediaKindDocument:
		if strings.HasSuffix(strings.ToLower(att.Filename), ".pdf") {
			return models.MediaKindDocument, true
		}
	}
	return "", false
}
