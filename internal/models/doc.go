// Package models defines the core domain models for Bilbul.
//
// # Current Models
//
// The split flow is built from these models:
//   - Receipt: An extracted receipt with line items and a declared total
//   - ReceiptItem: A single line on the receipt (name, line total, quantity)
//   - Participant: A person taking part in the split (renameable)
//   - Assignment: Units of one item allocated to one participant
//   - SplitRecord: A persisted record of a completed split
//
// Account models:
//   - User: Registered user account (email/password)
//
// # Design Principles
//
// 1. **Session-scoped identity**: items are addressed by 0-based index, participants
// by 1-based ID; both are stable for the lifetime of one upload cycle.
// 2. **Decimal money**: all currency values are decimal.Decimal, never float64.
// Rounding happens at presentation time only.
// 3. **Value semantics**: models carry no behavior beyond cloning and formatting;
// the invariants live in the ledger and session packages.
package models
