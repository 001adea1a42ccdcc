package calculator

import (
	"github.com/shopspring/decimal"

	"github.com/harryandriyan/bilbul/internal/ledger"
	"github.com/harryandriyan/bilbul/internal/models"
)

// ParticipantTotal pairs a participant with their owed amount, rounded to the
// currency's two decimal places for display.
type ParticipantTotal struct {
	ParticipantID int             `json:"participant_id"`
	DisplayName   string          `json:"name"`
	Total         decimal.Decimal `json:"total"`
}

// Totals computes every participant's owed amount in participant-list order.
// When the ledger is complete, the sum of all totals equals the sum of
// assigned line totals — never more than the receipt's item sum.
func Totals(r *models.Receipt, l *ledger.Ledger, participants []models.Participant) []ParticipantTotal {
	out := make([]ParticipantTotal, 0, len(participants))
	for _, p := range participants {
		out = append(out, ParticipantTotal{
			ParticipantID: p.ID,
			DisplayName:   p.DisplayName,
			Total:         TotalFor(p.ID, r, l).Round(2),
		})
	}
	return out
}
