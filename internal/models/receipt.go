package models

import "github.com/shopspring/decimal"

// ReceiptItem represents a single line item on an extracted receipt.
type ReceiptItem struct {
	// Index is the 0-based position of the item on the receipt.
	// It is stable for the whole session and is how assignments refer to items.
	Index int `json:"index"`

	// Name is the item description as extracted (e.g. "Coffee", "Pad Thai").
	Name string `json:"name"`

	// UnitPriceTotal is the total price for all units of this line,
	// not the price of a single unit. Per-unit price is UnitPriceTotal / Quantity.
	UnitPriceTotal decimal.Decimal `json:"price"`

	// Quantity is the number of units on this line. Always positive.
	Quantity int `json:"quantity"`
}

// UnitPrice returns the price of a single unit of this item.
// The division is exact to decimal precision; callers round at presentation time.
func (i ReceiptItem) UnitPrice() decimal.Decimal {
	return i.UnitPriceTotal.Div(decimal.NewFromInt(int64(i.Quantity)))
}

// Receipt represents an extracted receipt: an ordered list of items plus the
// total printed on the receipt.
type Receipt struct {
	// Items are the receipt lines in extraction order.
	Items []ReceiptItem `json:"items"`

	// DeclaredTotal is the total amount printed on the receipt.
	// Extraction is imperfect, so this may disagree with the sum of item
	// totals. It is informational only and is never recomputed or reconciled.
	DeclaredTotal decimal.Decimal `json:"totalAmount"`
}

// Clone returns a deep copy of the receipt.
// Item edits operate on copies so a failed edit never leaks partial state.
func (r *Receipt) Clone() *Receipt {
	items := make([]ReceiptItem, len(r.Items))
	copy(items, r.Items)
	return &Receipt{Items: items, DeclaredTotal: r.DeclaredTotal}
}

// Participant is a person taking part in the split.
type Participant struct {
	// ID is the 1-based identifier, stable for the session.
	ID int `json:"id"`

	// DisplayName defaults to "Person N" and can be renamed at any time
	// before the result is finalized.
	DisplayName string `json:"name"`
}

// Assignment records how many units of one item are allocated to one participant.
// There is at most one Assignment per (ItemIndex, ParticipantID) pair; assigning
// the same pair again replaces the quantity.
type Assignment struct {
	ItemIndex     int `json:"item_index"`
	ParticipantID int `json:"participant_id"`
	Quantity      int `json:"quantity"`
}
