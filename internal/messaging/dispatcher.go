// Package messaging provides the pluggable message transport abstraction.
//
// This file implements the inbound dispatch loop feeding the workflow engine.
package messaging

import (
	"context"
	"log/slog"

	"github.com/avtotest/chekbot/internal/models"
)

// Processor handles one inbound message end to end. The workflow engine
// implements this; it serializes per user internally, so the dispatcher may
// hand it messages from different users concurrently.
type Processor interface {
	HandleResponse(ctx context.Context, response models.Response) error
}

// Dispatcher routes inbound transport messages to the processor, one
// goroutine per message so slow collaborator calls for one user never stall
// another user's conversation.
type Dispatcher struct {
	svc  Service
	proc Processor
}

// NewDispatcher creates a Dispatcher for the given service and processor.
func NewDispatcher(svc Service, proc Processor) *Dispatcher {
	return &Dispatcher{svc: svc, proc: proc}
}

// Start begins consuming the service's responses channel. It returns when
// the context is cancelled or the channel closes.
func (d *Dispatcher) Start(ctx context.Context) {
	slog.Info("Dispatcher starting response processing")
	defer slog.Info("Dispatcher stopped response processing")

	for {
		select {
		case response, ok := <-d.svc.Responses():
			if !ok {
				slog.Debug("Dispatcher responses channel closed")
				return
			}
			go func(response models.Response) {
				if err := d.proc.HandleResponse(ctx, response); err != nil {
					slog.Error("Dispatcher failed to process response", "error", err, "from", response.From)
				}
			}(response)

		case <-ctx.Done():
			slog.Debug("Dispatcher stopping due to context cancellation")
			return
		}
	}
}
