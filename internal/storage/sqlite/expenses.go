package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tabmates/tabmates/internal/models"
	"github.com/tabmates/tabmates/internal/storage"
)

// CreateExpense persists an expense with its payer and split rows in one
// transaction.
func (s *SQLiteStore) CreateExpense(ctx context.Context, expense *models.Expense) error {
	if expense.ID == "" {
		expense.ID = uuid.New().String()
	}
	if expense.CreatedAt == 0 {
		expense.CreatedAt = time.Now().Unix()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		"INSERT INTO expenses (id, group_id, description, amount, created_at) VALUES (?, ?, ?, ?, ?)",
		expense.ID, expense.GroupID, expense.Description, expense.Amount.String(), expense.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert expense: %w", err)
	}

	if err := insertExpenseRecords(ctx, tx, expense); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func insertExpenseRecords(ctx context.Context, tx *sql.Tx, expense *models.Expense) error {
	for _, p := range expense.Payers {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO expense_payers (expense_id, member_id, amount) VALUES (?, ?, ?)",
			expense.ID, p.MemberID, p.Amount.String(),
		)
		if err != nil {
			return fmt.Errorf("failed to insert expense payer: %w", err)
		}
	}
	for _, sp := range expense.Splits {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO expense_splits (expense_id, member_id, amount) VALUES (?, ?, ?)",
			expense.ID, sp.MemberID, sp.Amount.String(),
		)
		if err != nil {
			return fmt.Errorf("failed to insert expense split: %w", err)
		}
	}
	return nil
}

// GetExpense retrieves an expense with payers and splits.
func (s *SQLiteStore) GetExpense(ctx context.Context, expenseID string) (*models.Expense, error) {
	expense := &models.Expense{}
	var amount string
	err := s.db.QueryRowContext(ctx,
		"SELECT id, group_id, description, amount, created_at FROM expenses WHERE id = ?",
		expenseID,
	).Scan(&expense.ID, &expense.GroupID, &expense.Description, &amount, &expense.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("expense %s: %w", expenseID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get expense: %w", err)
	}
	if expense.Amount, err = scanAmount(amount); err != nil {
		return nil, err
	}

	if err := s.loadExpenseRecords(ctx, expense); err != nil {
		return nil, err
	}
	return expense, nil
}

func (s *SQLiteStore) loadExpenseRecords(ctx context.Context, expense *models.Expense) error {
	payerRows, err := s.db.QueryContext(ctx,
		"SELECT member_id, amount FROM expense_payers WHERE expense_id = ? ORDER BY member_id",
		expense.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to get expense payers: %w", err)
	}
	defer payerRows.Close()

	for payerRows.Next() {
		var p models.ExpensePayer
		var amount string
		if err := payerRows.Scan(&p.MemberID, &amount); err != nil {
			return fmt.Errorf("failed to scan expense payer: %w", err)
		}
		if p.Amount, err = scanAmount(amount); err != nil {
			return err
		}
		expense.Payers = append(expense.Payers, p)
	}
	if err := payerRows.Err(); err != nil {
		return fmt.Errorf("failed to iterate expense payers: %w", err)
	}

	splitRows, err := s.db.QueryContext(ctx,
		"SELECT member_id, amount FROM expense_splits WHERE expense_id = ? ORDER BY member_id",
		expense.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to get expense splits: %w", err)
	}
	defer splitRows.Close()

	for splitRows.Next() {
		var sp models.ExpenseSplit
		var amount string
		if err := splitRows.Scan(&sp.MemberID, &amount); err != nil {
			return fmt.Errorf("failed to scan expense split: %w", err)
		}
		if sp.Amount, err = scanAmount(amount); err != nil {
			return err
		}
		expense.Splits = append(expense.Splits, sp)
	}
	if err := splitRows.Err(); err != nil {
		return fmt.Errorf("failed to iterate expense splits: %w", err)
	}
	return nil
}

// UpdateExpense replaces an expense and its payer/split rows.
func (s *SQLiteStore) UpdateExpense(ctx context.Context, expense *models.Expense) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		"UPDATE expenses SET description = ?, amount = ? WHERE id = ?",
		expense.Description, expense.Amount.String(), expense.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update expense: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("expense %s: %w", expense.ID, storage.ErrNotFound)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM expense_payers WHERE expense_id = ?", expense.ID); err != nil {
		return fmt.Errorf("failed to clear expense payers: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM expense_splits WHERE expense_id = ?", expense.ID); err != nil {
		return fmt.Errorf("failed to clear expense splits: %w", err)
	}
	if err := insertExpenseRecords(ctx, tx, expense); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// DeleteExpense removes an expense; payer and split rows cascade.
func (s *SQLiteStore) DeleteExpense(ctx context.Context, expenseID string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM expenses WHERE id = ?", expenseID)
	if err != nil {
		return fmt.Errorf("failed to delete expense: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("expense %s: %w", expenseID, storage.ErrNotFound)
	}
	return nil
}

// ListExpensesByGroup retrieves all expenses for a group with their payers
// and splits.
func (s *SQLiteStore) ListExpensesByGroup(ctx context.Context, groupID string) ([]models.Expense, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, group_id, description, amount, created_at FROM expenses WHERE group_id = ? ORDER BY created_at, id",
		groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list expenses: %w", err)
	}
	defer rows.Close()

	var expenses []models.Expense
	for rows.Next() {
		var expense models.Expense
		var amount string
		if err := rows.Scan(&expense.ID, &expense.GroupID, &expense.Description, &amount, &expense.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan expense: %w", err)
		}
		if expense.Amount, err = scanAmount(amount); err != nil {
			return nil, err
		}
		expenses = append(expenses, expense)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate expenses: %w", err)
	}

	for i := range expenses {
		if err := s.loadExpenseRecords(ctx, &expenses[i]); err != nil {
			return nil, err
		}
	}
	return expenses, nil
}
