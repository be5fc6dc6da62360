// Package classify turns raw message text into classified workflow events.
//
// Classification is a pure function of the text and the configured marker
// vocabulary: email grammar first, then price-inquiry markers, then
// payment-intent markers, first match wins.
package classify

import (
	"regexp"
	"strings"

	"github.com/avtotest/chekbot/internal/models"
)

// emailPattern matches the first email-looking substring anywhere in a
// message: local part, "@", domain, dot, TLD of at least two letters.
var emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)

// Markers holds the configured marker vocabulary per intent category.
// Matching is case-folded substring containment, so entries may be in any
// script or language.
type Markers struct {
	PriceInquiry  []string
	PaymentIntent []string
}

// DefaultMarkers returns the stock multi-script vocabulary.
func DefaultMarkers() Markers {
	return Markers{
		PriceInquiry: []string{"narx", "qancha turadi", "price"},
		PaymentIntent: []string{
			"salom", "салом", "assalomu",
			"karta", "to'lov", "tolov",
			"pro", "sotib", "obuna",
		},
	}
}

// Classifier maps message text to exactly one event kind.
type Classifier struct {
	markers Markers
}

// New creates a Classifier with the given markers, case-folding them once.
func New(m Markers) *Classifier {
	folded := Markers{
		PriceInquiry:  foldAll(m.PriceInquiry),
		PaymentIntent: foldAll(m.PaymentIntent),
	}
	return &Classifier{markers: folded}
}

// Classify returns exactly one event for the given text. Precedence,
// first match wins: email address > price marker > payment-intent marker >
// unclassified.
func (c *Classifier) Classify(text string) models.Event {
	if email := emailPattern.FindString(text); email != "" {
		return models.Event{Kind: models.EventEmailFound, Email: email}
	}

	folded := strings.ToLower(text)
	for _, marker := range c.markers.PriceInquiry {
		if strings.Contains(folded, marker) {
			return models.Event{Kind: models.EventPriceInquiry}
		}
	}
	for _, marker := range c.markers.PaymentIntent {
		if strings.Contains(folded, marker) {
			return models.Event{Kind: models.EventPaymentIntent}
		}
	}
	return models.Event{Kind: models.EventUnclassified}
}

func foldAll(markers []string) []string {
	folded := make([]string, 0, len(markers))
	for _, m := range markers {
		if m == "" {
			continue
		}
		folded = append(folded, strings.ToLower(m))
	}
	return folded
}
