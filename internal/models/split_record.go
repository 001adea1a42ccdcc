package models

// SplitMode identifies which path produced a split result.
type SplitMode string

const (
	// SplitModeSimple is the AI-suggested, non-itemized split.
	SplitModeSimple SplitMode = "simple"

	// SplitModeManual is the user-driven, item-level split.
	SplitModeManual SplitMode = "manual"
)

// SplitRecord is a persisted record of one completed split.
// It backs per-user split history and the anonymous one-shot usage gate.
type SplitRecord struct {
	// ID is the unique identifier for the record (UUID format).
	ID string

	// UserID is the account that produced the split. Empty for anonymous use.
	UserID string

	// ClientID identifies the anonymous client that produced the split.
	// Used to enforce the one-free-split policy for signed-out visitors.
	ClientID string

	// Mode records whether the split was suggested or manually assigned.
	Mode SplitMode

	// Summary is the rendered plain-text result exactly as shown to the user.
	Summary string

	// DeclaredTotal is the receipt total as a fixed 2-decimal string.
	DeclaredTotal string

	// CreatedAt is the Unix timestamp when the split completed.
	CreatedAt int64
}
