// Package ai wraps the external AI collaborators: receipt data extraction and
// split suggestion. Both are one-shot calls with a bounded timeout; the package
// validates response shape but implements no splitting logic of its own.
package ai

import (
	"context"
	"errors"
)

// ErrExternalService indicates the extraction or suggestion call failed or
// timed out. Callers surface it to the user with a retry affordance; no
// partial state is ever committed on this error.
var ErrExternalService = errors.New("external AI service unavailable")

// ExtractedItem is one line item as reported by the extraction service.
// Values are raw and unvalidated; internal/receipt owns validation.
type ExtractedItem struct {
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Quantity float64 `json:"quantity"`
}

// ExtractionOutput is the extraction service response for one receipt image.
type ExtractionOutput struct {
	Items       []ExtractedItem `json:"items"`
	TotalAmount float64         `json:"totalAmount"`
}

// Extractor extracts line items and a total from a receipt image.
// PhotoURL may be a data URL or a hosted image URL.
type Extractor interface {
	ExtractReceipt(ctx context.Context, photoURL string) (*ExtractionOutput, error)
}

// Suggester produces a free-text split suggestion from serialized receipt
// data and a participant count. The text is displayed verbatim.
type Suggester interface {
	SuggestSplit(ctx context.Context, receiptData string, numberOfPeople int) (string, error)
}
