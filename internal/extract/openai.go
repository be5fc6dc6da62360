// Package extract recovers raw text from submitted payment proofs.
//
// This file implements the Extractor interface using the OpenAI API: vision
// input for images, file input for PDF documents.
package extract

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/avtotest/chekbot/internal/models"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// transcribePrompt asks for a plain transcription; the validator only needs
// the raw text, not any interpretation.
const transcribePrompt = "Transcribe all text visible in this payment receipt. " +
	"Output only the raw text, nothing else. If no text is legible, output nothing."

// Opts holds configuration options for the OpenAI extractor.
type Opts struct {
	APIKey string
	Model  string
}

// Option defines a configuration option for the OpenAI extractor.
type Option func(*Opts)

// WithAPIKey sets the API key explicitly instead of reading the environment.
func WithAPIKey(key string) Option {
	return func(o *Opts) { o.APIKey = key }
}

// WithModel overrides the default vision-capable model.
func WithModel(model string) Option {
	return func(o *Opts) { o.Model = model }
}

// OpenAIExtractor transcribes receipts with a vision-capable model.
type OpenAIExtractor struct {
	client openai.Client
	model  string
}

// NewOpenAIExtractor initializes the extractor, falling back to the
// OPENAI_API_KEY environment variable.
func NewOpenAIExtractor(opts ...Option) (*OpenAIExtractor, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY not set")
	}
	if cfg.Model == "" {
		cfg.Model = openai.ChatModelGPT4oMini
	}
	client := openai.NewClient(option.WithAPIKey(cfg.APIKey))
	return &OpenAIExtractor{client: client, model: cfg.Model}, nil
}

// Extract sends the attachment to the model and returns the transcription.
// Empty model output is returned as empty text, not an error.
func (e *OpenAIExtractor) Extract(ctx context.Context, data []byte, kind models.MediaKind) (string, error) {
	if len(data) == 0 {
		return "", nil
	}

	var part openai.ChatCompletionContentPartUnionParam
	switch kind {
	case models.MediaKindImage:
		mime := http.DetectContentType(data)
		dataURL := fmt.Sprintf("data:%s;base64,%s", mime, base64.StdEncoding.EncodeToString(data))
		part = openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{URL: dataURL})
	case models.MediaKindDocument:
		dataURL := "data:application/pdf;base64," + base64.StdEncoding.EncodeToString(data)
		part = openai.FileContentPart(openai.ChatCompletionContentPartFileFileParam{
			FileData: openai.String(dataURL),
			Filename: openai.String("receipt.pdf"),
		})
	default:
		return "", fmt.Errorf("unsupported media kind %q", kind)
	}

	slog.Debug("OpenAIExtractor Extract invoked", "kind", kind, "bytes", len(data))
	resp, err := e.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(e.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage([]openai.ChatCompletionContentPartUnionParam{
				openai.TextContentPart(transcribePrompt),
				part,
			}),
		},
	})
	if err != nil {
		slog.Error("OpenAIExtractor request failed", "error", err, "kind", kind)
		return "", fmt.Errorf("extraction request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		slog.Debug("OpenAIExtractor returned no choices", "kind", kind)
		return "", nil
	}

	text := resp.Choices[0].Message.Content
	slog.Debug("OpenAIExtractor Extract succeeded", "kind", kind, "text_length", len(text))
	return text, nil
}
