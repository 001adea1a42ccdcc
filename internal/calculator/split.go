// Package calculator derives per-person totals and the final split summary
// from a receipt and a completed assignment ledger.
package calculator

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/harryandriyan/bilbul/internal/ledger"
	"github.com/harryandriyan/bilbul/internal/models"
)

// TotalFor computes how much one participant owes: the sum over their
// assignments of (item line total / item quantity) * assigned quantity.
// The per-unit price is always derived by division — receipts carry line
// totals, not unit prices. The result is unrounded; round at presentation.
func TotalFor(participantID int, r *models.Receipt, l *ledger.Ledger) decimal.Decimal {
	total := decimal.Zero
	for _, a := range l.AssignmentsFor(participantID) {
		item := r.Items[a.ItemIndex]
		total = total.Add(item.UnitPrice().Mul(decimal.NewFromInt(int64(a.Quantity))))
	}
	return total
}

// RenderSummary renders the plain-text split report. The output is the
// external artifact users copy to the clipboard, so it is deterministic:
// participants in list order, each with a "<name>: $<total>" line followed by
// one indented "<qty> x <item>" line per assignment in assignment order.
func RenderSummary(r *models.Receipt, l *ledger.Ledger, participants []models.Participant) string {
	var b strings.Builder
	for _, p := range participants {
		total := TotalFor(p.ID, r, l)
		fmt.Fprintf(&b, "%s: $%s\n", p.DisplayName, total.StringFixed(2))
		for _, a := range l.AssignmentsFor(p.ID) {
			fmt.Fprintf(&b, "  %d x %s\n", a.Quantity, r.Items[a.ItemIndex].Name)
		}
	}
	return b.String()
}
