// Package models defines the core domain models for tabmates.
//
// # Model Overview
//
// Two flows share the settlement machinery:
//
//   - Group flow: a Group owns Expenses. Each expense records who paid
//     (ExpensePayer rows) and who owes (ExpenseSplit rows). The settlement
//     engine turns those facts into Settlement rows.
//   - Bill flow: a standalone Bill with Items and item assignments, settled
//     synchronously into Payment rows. No group, no scheduling.
//
// # Design Principles
//
//  1. Money is always shopspring/decimal, never float64. Amounts round-trip
//     through storage in their canonical string form.
//  2. Relationships use ID strings instead of pointers, avoiding circular
//     references.
//  3. Models carry no behavior beyond trivial accessors; the math lives in
//     internal/calculator.
package models
