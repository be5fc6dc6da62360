// Package extract recovers raw text from submitted payment proofs.
package extract

import (
	"context"

	"github.com/avtotest/chekbot/internal/models"
)

// Extractor turns an uploaded image or PDF into raw text.
//
// Implementations return empty text (not an error) when nothing legible was
// recovered; the workflow treats empty text as a validation rejection. An
// error means the extraction service itself failed.
type Extractor interface {
	Extract(ctx context.Context, data []byte, kind models.MediaKind) (string, error)
}
