package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tabmates/tabmates/internal/models"
	"github.com/tabmates/tabmates/internal/storage"
)

// CreateBill persists a new bill with items, assignments, and participants.
func (s *SQLiteStore) CreateBill(ctx context.Context, bill *models.Bill) error {
	if bill.ID == "" {
		bill.ID = uuid.New().String()
	}
	if bill.CreatedAt == 0 {
		bill.CreatedAt = time.Now().Unix()
	}
	if bill.Title == "" {
		bill.Title = generateTitle(bill.Participants)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		"INSERT INTO bills (id, title, total, subtotal, payer_id, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		bill.ID, bill.Title, bill.Total.String(), bill.Subtotal.String(), bill.PayerID, bill.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert bill: %w", err)
	}

	for _, name := range bill.Participants {
		_, err = tx.ExecContext(ctx,
			"INSERT INTO bill_participants (bill_id, name) VALUES (?, ?)",
			bill.ID, name,
		)
		if err != nil {
			return fmt.Errorf("failed to insert participant: %w", err)
		}
	}

	for i := range bill.Items {
		item := &bill.Items[i]
		if item.ID == "" {
			item.ID = uuid.New().String()
		}

		_, err = tx.ExecContext(ctx,
			"INSERT INTO items (id, bill_id, description, amount) VALUES (?, ?, ?, ?)",
			item.ID, bill.ID, item.Description, item.Amount.String(),
		)
		if err != nil {
			return fmt.Errorf("failed to insert item: %w", err)
		}

		for _, participant := range item.AssignedTo {
			_, err = tx.ExecContext(ctx,
				"INSERT INTO item_assignments (item_id, participant) VALUES (?, ?)",
				item.ID, participant,
			)
			if err != nil {
				return fmt.Errorf("failed to insert item assignment: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetBill retrieves a bill by ID, including all items, assignments, and
// participants.
func (s *SQLiteStore) GetBill(ctx context.Context, billID string) (*models.Bill, error) {
	bill := &models.Bill{}
	var total, subtotal string
	err := s.db.QueryRowContext(ctx,
		"SELECT id, title, total, subtotal, payer_id, created_at FROM bills WHERE id = ?",
		billID,
	).Scan(&bill.ID, &bill.Title, &total, &subtotal, &bill.PayerID, &bill.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("bill %s: %w", billID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get bill: %w", err)
	}
	if bill.Total, err = scanAmount(total); err != nil {
		return nil, err
	}
	if bill.Subtotal, err = scanAmount(subtotal); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT name FROM bill_participants WHERE bill_id = ? ORDER BY name",
		billID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get participants: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan participant: %w", err)
		}
		bill.Participants = append(bill.Participants, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate participants: %w", err)
	}

	itemRows, err := s.db.QueryContext(ctx,
		"SELECT id, description, amount FROM items WHERE bill_id = ?",
		billID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get items: %w", err)
	}
	defer itemRows.Close()

	for itemRows.Next() {
		var item models.Item
		var amount string
		if err := itemRows.Scan(&item.ID, &item.Description, &amount); err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		if item.Amount, err = scanAmount(amount); err != nil {
			return nil, err
		}

		assignRows, err := s.db.QueryContext(ctx,
			"SELECT participant FROM item_assignments WHERE item_id = ? ORDER BY participant",
			item.ID,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to get item assignments: %w", err)
		}

		for assignRows.Next() {
			var participant string
			if err := assignRows.Scan(&participant); err != nil {
				assignRows.Close()
				return nil, fmt.Errorf("failed to scan assignment: %w", err)
			}
			item.AssignedTo = append(item.AssignedTo, participant)
		}
		if err := assignRows.Err(); err != nil {
			assignRows.Close()
			return nil, fmt.Errorf("failed to iterate assignments: %w", err)
		}
		assignRows.Close()

		bill.Items = append(bill.Items, item)
	}
	if err := itemRows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate items: %w", err)
	}

	return bill, nil
}

// ReplaceBillPayments deletes all payment rows for a bill and inserts the
// given ones in a single transaction.
func (s *SQLiteStore) ReplaceBillPayments(ctx context.Context, billID string, payments []models.Payment) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM payments WHERE bill_id = ?", billID); err != nil {
		return fmt.Errorf("failed to delete payments: %w", err)
	}

	now := time.Now().Unix()
	for i := range payments {
		p := &payments[i]
		if p.ID == "" {
			p.ID = uuid.New().String()
		}
		if p.CreatedAt == 0 {
			p.CreatedAt = now
		}
		p.BillID = billID

		paid := 0
		if p.Paid {
			paid = 1
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO payments (id, bill_id, from_participant, to_participant, amount, paid, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			p.ID, p.BillID, p.FromParticipant, p.ToParticipant, p.Amount.String(), paid, p.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert payment: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// ListBillPayments retrieves a bill's payment rows.
func (s *SQLiteStore) ListBillPayments(ctx context.Context, billID string) ([]models.Payment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, bill_id, from_participant, to_participant, amount, paid, created_at
		 FROM payments WHERE bill_id = ? ORDER BY created_at, id`,
		billID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	defer rows.Close()

	var payments []models.Payment
	for rows.Next() {
		var p models.Payment
		var amount string
		var paid int
		if err := rows.Scan(&p.ID, &p.BillID, &p.FromParticipant, &p.ToParticipant, &amount, &paid, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		if p.Amount, err = scanAmount(amount); err != nil {
			return nil, err
		}
		p.Paid = paid != 0
		payments = append(payments, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate payments: %w", err)
	}
	return payments, nil
}

// generateTitle creates an auto-generated title from participants.
func generateTitle(participants []string) string {
	if len(participants) == 0 {
		return fmt.Sprintf("Bill - %s", time.Now().Format("Jan 2, 2006"))
	}
	if len(participants) <= 3 {
		return fmt.Sprintf("Split with %s", strings.Join(participants, ", "))
	}
	return fmt.Sprintf("Split with %s and %d others",
		strings.Join(participants[:2], ", "),
		len(participants)-2,
	)
}
