package models

import "github.com/shopspring/decimal"

// Expense represents a shared cost inside a group.
//
// Who paid and who owes are recorded as sub-records rather than derived
// here: the business policy that divides the cost (equal, percentage,
// exact, itemized) runs upstream and lands as already-computed amounts.
type Expense struct {
	// ID is the unique identifier for the expense (UUID format).
	ID string

	// GroupID is the group this expense belongs to.
	GroupID string

	// Description is a human-readable label (e.g., "Groceries week 12").
	Description string

	// Amount is the total cost of the expense.
	Amount decimal.Decimal

	// Payers records who actually paid and how much. The payer amounts
	// sum to Amount.
	Payers []ExpensePayer

	// Splits records who owes and how much. The split amounts sum to
	// Amount.
	Splits []ExpenseSplit

	// CreatedAt is the Unix timestamp when the expense was recorded.
	CreatedAt int64
}

// ExpensePayer is one member's contribution toward an expense.
type ExpensePayer struct {
	MemberID string
	Amount   decimal.Decimal
}

// ExpenseSplit is one member's owed share of an expense.
type ExpenseSplit struct {
	MemberID string
	Amount   decimal.Decimal
}
