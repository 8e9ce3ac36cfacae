// Package storage provides abstractions for persistent data storage.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/tabmates/tabmates/internal/models"
)

// ErrNotFound is returned (wrapped) when a requested entity does not
// exist. Callers test with errors.Is.
var ErrNotFound = errors.New("not found")

// Store defines the interface for tabmates storage operations.
// This abstraction allows swapping storage backends (SQLite, PostgreSQL,
// etc.) without changing the service or engine layers.
type Store interface {
	// CreateGroup persists a new group. The ID field is populated by the
	// store when empty.
	CreateGroup(ctx context.Context, group *models.Group) error

	// GetGroup retrieves a group with its member list.
	GetGroup(ctx context.Context, groupID string) (*models.Group, error)

	// ListGroups retrieves all groups.
	ListGroups(ctx context.Context) ([]*models.Group, error)

	// UpdateGroup replaces a group's name and member list.
	UpdateGroup(ctx context.Context, group *models.Group) error

	// CreateExpense persists an expense with its payer and split rows in
	// one transaction.
	CreateExpense(ctx context.Context, expense *models.Expense) error

	// GetExpense retrieves an expense with payers and splits.
	GetExpense(ctx context.Context, expenseID string) (*models.Expense, error)

	// UpdateExpense replaces an expense and its payer/split rows.
	UpdateExpense(ctx context.Context, expense *models.Expense) error

	// DeleteExpense removes an expense and its sub-records.
	DeleteExpense(ctx context.Context, expenseID string) error

	// ListExpensesByGroup retrieves all expenses for a group with their
	// payers and splits.
	ListExpensesByGroup(ctx context.Context, groupID string) ([]models.Expense, error)

	// ReplacePendingSettlements deletes every pending settlement for the
	// group and inserts the given rows as fresh pending settlements, all
	// inside a single transaction. Terminal rows are untouched.
	ReplacePendingSettlements(ctx context.Context, groupID string, settlements []models.Settlement) error

	// ListSettlementsByGroup retrieves a group's settlements, newest
	// first.
	ListSettlementsByGroup(ctx context.Context, groupID string) ([]models.Settlement, error)

	// GetSettlement retrieves a settlement by ID.
	GetSettlement(ctx context.Context, settlementID string) (*models.Settlement, error)

	// UpdateSettlementStatus transitions a settlement to the given
	// status.
	UpdateSettlementStatus(ctx context.Context, settlementID string, status models.SettlementStatus) error

	// PurgeTerminalSettlements removes completed and cancelled
	// settlements older than the retention window and reports how many
	// rows went away.
	PurgeTerminalSettlements(ctx context.Context, olderThan time.Duration) (int64, error)

	// CreateBill persists a bill with items, assignments, and
	// participants.
	CreateBill(ctx context.Context, bill *models.Bill) error

	// GetBill retrieves a bill with all sub-records.
	GetBill(ctx context.Context, billID string) (*models.Bill, error)

	// ReplaceBillPayments deletes all payment rows for a bill and
	// inserts the given ones in a single transaction.
	ReplaceBillPayments(ctx context.Context, billID string, payments []models.Payment) error

	// ListBillPayments retrieves a bill's payment rows.
	ListBillPayments(ctx context.Context, billID string) ([]models.Payment, error)

	// Close releases any resources held by the store.
	Close() error
}
