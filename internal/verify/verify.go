// Package verify decides whether extracted receipt text counts as proof of
// payment.
//
// The policy is deliberately permissive: accept if any configured marker
// occurs as a case-insensitive substring. OCR output is noisy, so false
// positives are taken over false rejections of legitimate receipts. There is
// no structural parsing and no amount or date verification.
package verify

import "strings"

// DefaultMarkers returns the stock marker set: card number fragments, payee
// name fragments, payment-provider names.
func DefaultMarkers() []string {
	return []string{"5614", "6847", "07", "ELDOR", "ATAJANOV", "PAYME", "CLICK"}
}

// Validator is a pure substring-membership check over extracted text.
type Validator struct {
	markers []string
}

// New creates a Validator with the given markers, case-folding them once.
func New(markers []string) *Validator {
	folded := make([]string, 0, len(markers))
	for _, m := range markers {
		if m == "" {
			continue
		}
		folded = append(folded, strings.ToUpper(m))
	}
	return &Validator{markers: folded}
}

// Accept reports whether the extracted text contains any configured marker.
// Empty text is always rejected.
func (v *Validator) Accept(text string) bool {
	if text == "" {
		return false
	}
	folded := strings.ToUpper(text)
	for _, marker := range v.markers {
		if strings.Contains(folded, marker) {
			return true
		}
	}
	return false
}
