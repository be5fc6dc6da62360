package engine

import "github.com/avtotest/chekbot/internal/models"

// plan is the outcome of one transition step: replies to send in order, the
// session mutations to apply, and whether provisioning must run afterwards.
type plan struct {
	replies        []string
	next           models.SessionState // empty: state unchanged
	pendingEmail   string              // non-empty: store as the pending email
	clearPending   bool
	provisionEmail string // non-empty: invoke the provisioner after replies
}

// step is the transition table. It is a pure function of the session record,
// the classified event and the validator verdict; all I/O happens in the
// engine around it.
//
// Completed is terminal for everything except a fresh email, a new payment
// intent (a renewal restarts the cycle) and price inquiries: a converted user
// must not receive further payment prompts.
func step(sess models.Session, ev models.Event, proofAccepted bool, r Replies) plan {
	switch ev.Kind {
	case models.EventEmailFound:
		if sess.State == models.StateAwaitingEmail {
			return plan{
				replies:        []string{r.emailAccepted(ev.Email)},
				provisionEmail: ev.Email,
			}
		}
		return plan{
			replies:      []string{r.emailSaved(ev.Email)},
			next:         models.StateAwaitingCheck,
			pendingEmail: ev.Email,
		}

	case models.EventPriceInquiry:
		return plan{replies: []string{r.PriceInfo}}

	case models.EventPaymentIntent:
		switch sess.State {
		case models.StateIdle, models.StateCompleted:
			return plan{
				replies: []string{r.PaymentInstructions, r.ContactInfo},
				next:    models.StateAwaitingCheck,
				// A renewal is a fresh purchase; stale emails from the
				// previous cycle must not leak into it.
				clearPending: sess.State == models.StateCompleted,
			}
		default:
			// Already mid-flow: suppress repeated instructions.
			return plan{}
		}

	case models.EventProofSubmitted:
		if sess.State == models.StateCompleted {
			return plan{}
		}
		if !proofAccepted {
			return plan{replies: []string{r.ProofRejected}}
		}
		if sess.PendingEmail != "" {
			return plan{
				replies:        []string{r.ProofAcceptedProvisioning},
				provisionEmail: sess.PendingEmail,
			}
		}
		return plan{
			replies: []string{r.ProofAcceptedAskEmail},
			next:    models.StateAwaitingEmail,
		}

	case models.EventUnsupportedAttachment:
		if sess.State == models.StateCompleted {
			return plan{}
		}
		return plan{replies: []string{r.UnsupportedAttachment}}

	default:
		return plan{}
	}
}
