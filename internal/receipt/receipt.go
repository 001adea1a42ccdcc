// Package receipt builds and edits the normalized Receipt model from raw
// extraction output. Validation is strict: a receipt that fails shape or
// positivity checks is rejected outright, never clamped.
package receipt

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/harryandriyan/bilbul/internal/ai"
	"github.com/harryandriyan/bilbul/internal/models"
)

// InvalidDataError reports extraction output that failed validation.
// ItemIndex is the 0-based position of the first offending item, or -1 when
// the problem is receipt-level (empty item list, bad total).
type InvalidDataError struct {
	ItemIndex int
	ItemName  string
	Reason    string
}

func (e *InvalidDataError) Error() string {
	if e.ItemIndex < 0 {
		return fmt.Sprintf("invalid receipt data: %s", e.Reason)
	}
	name := e.ItemName
	if name == "" {
		name = fmt.Sprintf("item %d", e.ItemIndex+1)
	}
	return fmt.Sprintf("invalid receipt data: %s (%s)", e.Reason, name)
}

// FromExtraction validates raw extraction output and converts it into a
// Receipt. Items must be non-empty, the total must be positive, and every
// item needs a non-empty name, a positive price, and a positive whole-number
// quantity. The first offending item is reported.
func FromExtraction(out *ai.ExtractionOutput) (*models.Receipt, error) {
	if out == nil || len(out.Items) == 0 {
		return nil, &InvalidDataError{ItemIndex: -1, Reason: "no items found in the receipt"}
	}
	if out.TotalAmount <= 0 {
		return nil, &InvalidDataError{ItemIndex: -1, Reason: "total amount must be positive"}
	}

	items := make([]models.ReceiptItem, 0, len(out.Items))
	for i, raw := range out.Items {
		if raw.Name == "" {
			return nil, &InvalidDataError{ItemIndex: i, Reason: "item name is empty"}
		}
		if raw.Price <= 0 {
			return nil, &InvalidDataError{ItemIndex: i, ItemName: raw.Name, Reason: "item price must be positive"}
		}
		if raw.Quantity <= 0 || raw.Quantity != float64(int(raw.Quantity)) {
			return nil, &InvalidDataError{ItemIndex: i, ItemName: raw.Name, Reason: "item quantity must be a positive whole number"}
		}

		items = append(items, models.ReceiptItem{
			Index:          i,
			Name:           raw.Name,
			UnitPriceTotal: decimal.NewFromFloat(raw.Price),
			Quantity:       int(raw.Quantity),
		})
	}

	return &models.Receipt{
		Items:         items,
		DeclaredTotal: decimal.NewFromFloat(out.TotalAmount),
	}, nil
}

// EditItem returns a copy of the receipt with the item at index updated.
// Nil fields are left untouched; quantity is not editable. Edits are
// cosmetic with respect to the ledger: assignments referencing the index
// remain valid.
func EditItem(r *models.Receipt, index int, newName *string, newPrice *decimal.Decimal) (*models.Receipt, error) {
	if index < 0 || index >= len(r.Items) {
		return nil, fmt.Errorf("item index %d out of range", index)
	}
	if newName != nil && *newName == "" {
		return nil, &InvalidDataError{ItemIndex: index, ItemName: r.Items[index].Name, Reason: "item name is empty"}
	}
	if newPrice != nil && !newPrice.IsPositive() {
		return nil, &InvalidDataError{ItemIndex: index, ItemName: r.Items[index].Name, Reason: "item price must be positive"}
	}

	updated := r.Clone()
	if newName != nil {
		updated.Items[index].Name = *newName
	}
	if newPrice != nil {
		updated.Items[index].UnitPriceTotal = *newPrice
	}
	return updated, nil
}
