// Package ledger tracks which participant gets how many units of each receipt
// item during a manual split. It owns the quantity-conservation invariant:
// for every item, 0 <= remaining <= quantity at all times.
package ledger

import (
	"fmt"

	"github.com/harryandriyan/bilbul/internal/models"
)

// QuantityExceedsRemainingError reports an assignment that would over-allocate
// an item. The item name is included for user display.
type QuantityExceedsRemainingError struct {
	ItemName  string
	Requested int
	Remaining int
}

func (e *QuantityExceedsRemainingError) Error() string {
	return fmt.Sprintf("quantity exceeds remaining for item %s: requested %d, %d left", e.ItemName, e.Requested, e.Remaining)
}

type key struct {
	item        int
	participant int
}

type lineItem struct {
	name     string
	quantity int
}

// Ledger maps (item, participant) pairs to assigned quantities.
//
// Assignment is keyed rather than appended as an event log because the UI
// always shows "current quantity assigned to this person for this item" and
// re-clicking must adjust, not accumulate. Re-assigning a pair replaces the
// prior quantity (last write wins).
type Ledger struct {
	items    []lineItem
	assigned map[key]int
	order    []key // keys in first-assignment order
}

// New creates an empty ledger over the given receipt items.
// Item quantities are captured at creation and are immutable; price edits on
// the receipt do not invalidate ledger state. Name edits are forwarded via
// RenameItem so over-allocation errors always report the current name.
func New(items []models.ReceiptItem) *Ledger {
	lines := make([]lineItem, len(items))
	for i, item := range items {
		lines[i] = lineItem{name: item.Name, quantity: item.Quantity}
	}
	return &Ledger{
		items:    lines,
		assigned: make(map[key]int),
	}
}

// Assign allocates quantity units of the item to the participant, replacing
// any prior allocation for the same pair. The quantity may not exceed what is
// left of the item once every other participant's allocation is counted; the
// participant's own prior allocation is excluded since this call overwrites it.
// On error the ledger is unchanged.
func (l *Ledger) Assign(itemIndex, participantID, quantity int) error {
	if itemIndex < 0 || itemIndex >= len(l.items) {
		return fmt.Errorf("item index %d out of range", itemIndex)
	}
	if quantity <= 0 {
		return fmt.Errorf("quantity must be positive, got %d", quantity)
	}

	k := key{item: itemIndex, participant: participantID}

	// Headroom for this pair: item quantity minus everyone else's allocations.
	available := l.items[itemIndex].quantity
	for other, qty := range l.assigned {
		if other.item == itemIndex && other != k {
			available -= qty
		}
	}

	if quantity > available {
		return &QuantityExceedsRemainingError{
			ItemName:  l.items[itemIndex].name,
			Requested: quantity,
			Remaining: available,
		}
	}

	if _, exists := l.assigned[k]; !exists {
		l.order = append(l.order, k)
	}
	l.assigned[k] = quantity
	return nil
}

// RenameItem updates the display name used in over-allocation errors.
// Quantities and assignments are untouched. Out-of-range indexes are ignored.
func (l *Ledger) RenameItem(itemIndex int, name string) {
	if itemIndex < 0 || itemIndex >= len(l.items) {
		return
	}
	l.items[itemIndex].name = name
}

// Remaining returns the unallocated units of the item.
func (l *Ledger) Remaining(itemIndex int) int {
	if itemIndex < 0 || itemIndex >= len(l.items) {
		return 0
	}
	remaining := l.items[itemIndex].quantity
	for k, qty := range l.assigned {
		if k.item == itemIndex {
			remaining -= qty
		}
	}
	return remaining
}

// Complete reports whether every item is fully allocated. This gates the
// transition out of manual assignment.
func (l *Ledger) Complete() bool {
	for i := range l.items {
		if l.Remaining(i) != 0 {
			return false
		}
	}
	return true
}

// Assignments returns all assignments in first-assignment order.
// A replaced assignment keeps its original position: it is an update to an
// existing entry, not a new one.
func (l *Ledger) Assignments() []models.Assignment {
	out := make([]models.Assignment, 0, len(l.order))
	for _, k := range l.order {
		out = append(out, models.Assignment{
			ItemIndex:     k.item,
			ParticipantID: k.participant,
			Quantity:      l.assigned[k],
		})
	}
	return out
}

// AssignmentsFor returns the participant's assignments in first-assignment order.
func (l *Ledger) AssignmentsFor(participantID int) []models.Assignment {
	var out []models.Assignment
	for _, k := range l.order {
		if k.participant == participantID {
			out = append(out, models.Assignment{
				ItemIndex:     k.item,
				ParticipantID: k.participant,
				Quantity:      l.assigned[k],
			})
		}
	}
	return out
}

// Reset clears all assignments. Item quantities are untouched.
func (l *Ledger) Reset() {
	l.assigned = make(map[key]int)
	l.order = nil
}
