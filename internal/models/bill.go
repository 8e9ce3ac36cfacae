package models

import "github.com/shopspring/decimal"

// Bill represents a standalone bill with items to be split among
// participants. Bills are not owned by a group; they are settled
// synchronously on request.
type Bill struct {
	// ID is the unique identifier for the bill (UUID format).
	ID string

	// Title is the human-readable name for the bill.
	// Auto-generated from participants when empty.
	Title string

	// Items are the individual line items on the bill.
	Items []Item

	// Total is the final bill amount including tax, tips, and fees.
	Total decimal.Decimal

	// Subtotal is the pre-tax amount (sum of all items before tax).
	Subtotal decimal.Decimal

	// Participants is the list of people splitting the bill.
	Participants []string

	// PayerID is the participant who paid the bill. Bills without a
	// payer cannot be settled.
	PayerID string

	// CreatedAt is the Unix timestamp when the bill was created.
	CreatedAt int64
}

// Item represents a single line item on a bill, split equally among the
// participants it is assigned to.
type Item struct {
	// ID is the unique identifier for the item (UUID format).
	ID string

	// Description is the name of the item (e.g., "Pizza", "Beer").
	Description string

	// Amount is the pre-tax price of this item.
	Amount decimal.Decimal

	// AssignedTo is the list of participants who share this item.
	AssignedTo []string
}

// Payment is a settled transfer for a bill, the bill-flow counterpart of
// Settlement. Payments are replaced wholesale on every settle request.
type Payment struct {
	// ID is the unique identifier for the payment (UUID format).
	ID string

	// BillID is the bill this payment belongs to.
	BillID string

	// FromParticipant owes the transfer; ToParticipant receives it.
	FromParticipant string
	ToParticipant   string

	// Amount is the transfer amount, always positive.
	Amount decimal.Decimal

	// Paid records whether the transfer has been marked as done.
	Paid bool

	// CreatedAt is the Unix timestamp when the row was written.
	CreatedAt int64
}
