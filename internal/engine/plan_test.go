package engine

import (
	"testing"

	"github.com/avtotest/chekbot/internal/models"
)

func sessionIn(state models.SessionState, pendingEmail string) models.Session {
	return models.Session{UserID: "12345", State: state, PendingEmail: pendingEmail}
}

func TestStepEmailBeforeProof(t *testing.T) {
	r := DefaultReplies()
	pl := step(sessionIn(models.StateIdle, ""), models.Event{Kind: models.EventEmailFound, Email: "user@example.com"}, false, r)

	if pl.next != models.StateAwaitingCheck {
		t.Errorf("expected transition to AWAITING_CHECK, got %q", pl.next)
	}
	if pl.pendingEmail != "user@example.com" {
		t.Errorf("expected pending email stored, got %q", pl.pendingEmail)
	}
	if pl.provisionEmail != "" {
		t.Error("email before proof must not provision")
	}
	if len(pl.replies) != 1 || pl.replies[0] != r.emailSaved("user@example.com") {
		t.Errorf("unexpected replies: %v", pl.replies)
	}
}

func TestStepEmailReplacesPending(t *testing.T) {
	pl := step(sessionIn(models.StateAwaitingCheck, "old@example.com"), models.Event{Kind: models.EventEmailFound, Email: "new@example.com"}, false, DefaultReplies())

	if pl.pendingEmail != "new@example.com" {
		t.Errorf("a later email must replace the pending one, got %q", pl.pendingEmail)
	}
	if pl.next != models.StateAwaitingCheck {
		t.Errorf("state must stay AWAITING_CHECK, got %q", pl.next)
	}
}

func TestStepEmailAfterAcceptedProofProvisions(t *testing.T) {
	r := DefaultReplies()
	pl := step(sessionIn(models.StateAwaitingEmail, ""), models.Event{Kind: models.EventEmailFound, Email: "user@example.com"}, false, r)

	if pl.provisionEmail != "user@example.com" {
		t.Fatalf("expected provisioning for %q, got %q", "user@example.com", pl.provisionEmail)
	}
	if len(pl.replies) != 1 || pl.replies[0] != r.emailAccepted("user@example.com") {
		t.Errorf("unexpected replies: %v", pl.replies)
	}
}

func TestStepPriceInquiryAnsweredInEveryState(t *testing.T) {
	r := DefaultReplies()
	states := []models.SessionState{models.StateIdle, models.StateAwaitingCheck, models.StateAwaitingEmail, models.StateCompleted}
	for _, state := range states {
		pl := step(sessionIn(state, ""), models.Event{Kind: models.EventPriceInquiry}, false, r)
		if len(pl.replies) != 1 || pl.replies[0] != r.PriceInfo {
			t.Errorf("state %s: expected price reply, got %v", state, pl.replies)
		}
		if pl.next != "" {
			t.Errorf("state %s: price inquiry must not change state, got %q", state, pl.next)
		}
	}
}

func TestStepPaymentIntentFromIdle(t *testing.T) {
	r := DefaultReplies()
	pl := step(sessionIn(models.StateIdle, ""), models.Event{Kind: models.EventPaymentIntent}, false, r)

	if pl.next != models.StateAwaitingCheck {
		t.Errorf("expected AWAITING_CHECK, got %q", pl.next)
	}
	want := []string{r.PaymentInstructions, r.ContactInfo}
	if len(pl.replies) != 2 || pl.replies[0] != want[0] || pl.replies[1] != want[1] {
		t.Errorf("expected instructions then contact info, got %v", pl.replies)
	}
	if pl.clearPending {
		t.Error("a first purchase has no stale email to clear")
	}
}

func TestStepPaymentIntentMidFlowSuppressed(t *testing.T) {
	for _, state := range []models.SessionState{models.StateAwaitingCheck, models.StateAwaitingEmail} {
		pl := step(sessionIn(state, ""), models.Event{Kind: models.EventPaymentIntent}, false, DefaultReplies())
		if len(pl.replies) != 0 || pl.next != "" {
			t.Errorf("state %s: repeated payment intent must be a no-op, got %+v", state, pl)
		}
	}
}

func TestStepPaymentIntentReopensCompleted(t *testing.T) {
	pl := step(sessionIn(models.StateCompleted, "stale@example.com"), models.Event{Kind: models.EventPaymentIntent}, false, DefaultReplies())

	if pl.next != models.StateAwaitingCheck {
		t.Errorf("renewal must reopen the flow, got %q", pl.next)
	}
	if !pl.clearPending {
		t.Error("renewal must clear the previous cycle's email")
	}
}

func TestStepProofRejected(t *testing.T) {
	r := DefaultReplies()
	pl := step(sessionIn(models.StateAwaitingCheck, ""), models.Event{Kind: models.EventProofSubmitted, ExtractedText: "nothing useful"}, false, r)

	if len(pl.replies) != 1 || pl.replies[0] != r.ProofRejected {
		t.Errorf("expected rejection reply, got %v", pl.replies)
	}
	if pl.next != "" || pl.provisionEmail != "" {
		t.Errorf("rejected proof must not transition or provision, got %+v", pl)
	}
}

func TestStepProofAcceptedWithPendingEmailProvisions(t *testing.T) {
	r := DefaultReplies()
	pl := step(sessionIn(models.StateAwaitingCheck, "user@example.com"), models.Event{Kind: models.EventProofSubmitted, ExtractedText: "PAYME 5614"}, true, r)

	if pl.provisionEmail != "user@example.com" {
		t.Fatalf("expected provisioning with pending email, got %q", pl.provisionEmail)
	}
	if len(pl.replies) != 1 || pl.replies[0] != r.ProofAcceptedProvisioning {
		t.Errorf("unexpected replies: %v", pl.replies)
	}
}

func TestStepProofAcceptedWithoutEmailAsks(t *testing.T) {
	r := DefaultReplies()
	pl := step(sessionIn(models.StateAwaitingCheck, ""), models.Event{Kind: models.EventProofSubmitted, ExtractedText: "PAYME 5614"}, true, r)

	if pl.next != models.StateAwaitingEmail {
		t.Errorf("expected AWAITING_EMAIL, got %q", pl.next)
	}
	if pl.provisionEmail != "" {
		t.Error("must not provision without an email")
	}
	if len(pl.replies) != 1 || pl.replies[0] != r.ProofAcceptedAskEmail {
		t.Errorf("unexpected replies: %v", pl.replies)
	}
}

func TestStepCompletedIsQuiet(t *testing.T) {
	events := []models.Event{
		{Kind: models.EventProofSubmitted, ExtractedText: "PAYME 5614"},
		{Kind: models.EventUnsupportedAttachment},
		{Kind: models.EventUnclassified},
	}
	for _, ev := range events {
		pl := step(sessionIn(models.StateCompleted, ""), ev, true, DefaultReplies())
		if len(pl.replies) != 0 || pl.next != "" || pl.provisionEmail != "" {
			t.Errorf("event %s in COMPLETED must be a silent no-op, got %+v", ev.Kind, pl)
		}
	}
}

func TestStepUnsupportedAttachment(t *testing.T) {
	r := DefaultReplies()
	pl := step(sessionIn(models.StateAwaitingCheck, ""), models.Event{Kind: models.EventUnsupportedAttachment}, false, r)

	if len(pl.replies) != 1 || pl.replies[0] != r.UnsupportedAttachment {
		t.Errorf("expected unsupported-attachment reply, got %v", pl.replies)
	}
	if pl.next != "" {
		t.Errorf("unsupported attachment must not change state, got %q", pl.next)
	}
}

func TestStepUnclassifiedNoOp(t *testing.T) {
	for _, state := range []models.SessionState{models.StateIdle, models.StateAwaitingCheck, models.StateAwaitingEmail} {
		pl := step(sessionIn(state, "x@y.uz"), models.Event{Kind: models.EventUnclassified}, false, DefaultReplies())
		if len(pl.replies) != 0 || pl.next != "" || pl.provisionEmail != "" || pl.clearPending {
			t.Errorf("state %s: unclassified must be a no-op, got %+v", state, pl)
		}
	}
}
