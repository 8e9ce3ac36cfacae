package models

import "github.com/shopspring/decimal"

// SettlementStatus is the lifecycle state of a settlement.
type SettlementStatus string

const (
	// SettlementPending is a freshly computed obligation awaiting payment.
	// Pending rows are owned by the recalculation engine and replaced
	// wholesale on every run.
	SettlementPending SettlementStatus = "pending"

	// SettlementCompleted means the debtor marked the transfer as paid.
	// Terminal: recalculation never deletes completed rows.
	SettlementCompleted SettlementStatus = "completed"

	// SettlementCancelled means a user dismissed the obligation.
	// Terminal, kept as historical record.
	SettlementCancelled SettlementStatus = "cancelled"
)

// Valid reports whether s is one of the known statuses.
func (s SettlementStatus) Valid() bool {
	switch s {
	case SettlementPending, SettlementCompleted, SettlementCancelled:
		return true
	}
	return false
}

// Terminal reports whether s is a final state.
func (s SettlementStatus) Terminal() bool {
	return s == SettlementCompleted || s == SettlementCancelled
}

// Settlement represents a directed obligation between group members that
// nets the group's balances toward zero.
type Settlement struct {
	// ID is the unique identifier for the settlement (UUID format).
	ID string

	// GroupID is the group this settlement belongs to.
	GroupID string

	// FromMemberID is the debtor (who owes the transfer).
	FromMemberID string

	// ToMemberID is the creditor (who receives it).
	ToMemberID string

	// Amount is the transfer amount, always positive.
	Amount decimal.Decimal

	// Status is the lifecycle state. New rows start pending.
	Status SettlementStatus

	// CreatedAt is the Unix timestamp when the row was written.
	CreatedAt int64
}
