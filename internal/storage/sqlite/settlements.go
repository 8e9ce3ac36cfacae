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

// ReplacePendingSettlements deletes every pending settlement for the group
// and inserts the given rows as fresh pending settlements.
//
// Delete-then-reinsert runs in one transaction so a concurrent reader never
// observes a half-settled group. Completed and cancelled rows are
// historical record and are never touched here.
func (s *SQLiteStore) ReplacePendingSettlements(ctx context.Context, groupID string, settlements []models.Settlement) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		"DELETE FROM settlements WHERE group_id = ? AND status = ?",
		groupID, string(models.SettlementPending),
	)
	if err != nil {
		return fmt.Errorf("failed to delete pending settlements: %w", err)
	}

	now := time.Now().Unix()
	for i := range settlements {
		st := &settlements[i]
		if st.ID == "" {
			st.ID = uuid.New().String()
		}
		if st.CreatedAt == 0 {
			st.CreatedAt = now
		}
		st.GroupID = groupID
		st.Status = models.SettlementPending

		_, err = tx.ExecContext(ctx,
			`INSERT INTO settlements (id, group_id, from_member_id, to_member_id, amount, status, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			st.ID, st.GroupID, st.FromMemberID, st.ToMemberID, st.Amount.String(), string(st.Status), st.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert settlement: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// ListSettlementsByGroup retrieves all settlements for a group, newest
// first.
func (s *SQLiteStore) ListSettlementsByGroup(ctx context.Context, groupID string) ([]models.Settlement, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, group_id, from_member_id, to_member_id, amount, status, created_at
		 FROM settlements WHERE group_id = ? ORDER BY created_at DESC, id`,
		groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list settlements by group: %w", err)
	}
	defer rows.Close()

	var settlements []models.Settlement
	for rows.Next() {
		st, err := scanSettlement(rows.Scan)
		if err != nil {
			return nil, err
		}
		settlements = append(settlements, *st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate settlements: %w", err)
	}
	return settlements, nil
}

// GetSettlement retrieves a settlement by ID.
func (s *SQLiteStore) GetSettlement(ctx context.Context, settlementID string) (*models.Settlement, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, group_id, from_member_id, to_member_id, amount, status, created_at
		 FROM settlements WHERE id = ?`,
		settlementID,
	)
	st, err := scanSettlement(row.Scan)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("settlement %s: %w", settlementID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return st, nil
}

func scanSettlement(scan func(...any) error) (*models.Settlement, error) {
	st := &models.Settlement{}
	var amount, status string
	if err := scan(&st.ID, &st.GroupID, &st.FromMemberID, &st.ToMemberID, &amount, &status, &st.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan settlement: %w", err)
	}
	var err error
	if st.Amount, err = scanAmount(amount); err != nil {
		return nil, err
	}
	st.Status = models.SettlementStatus(status)
	return st, nil
}

// UpdateSettlementStatus transitions a settlement to the given status.
func (s *SQLiteStore) UpdateSettlementStatus(ctx context.Context, settlementID string, status models.SettlementStatus) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE settlements SET status = ? WHERE id = ?",
		string(status), settlementID,
	)
	if err != nil {
		return fmt.Errorf("failed to update settlement status: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("settlement %s: %w", settlementID, storage.ErrNotFound)
	}
	return nil
}

// PurgeTerminalSettlements removes completed and cancelled settlements
// older than the retention window. Not safety-critical: pending rows are
// never purged.
func (s *SQLiteStore) PurgeTerminalSettlements(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan).Unix()
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM settlements WHERE status IN (?, ?) AND created_at < ?",
		string(models.SettlementCompleted), string(models.SettlementCancelled), cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to purge settlements: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count purged settlements: %w", err)
	}
	return n, nil
}
