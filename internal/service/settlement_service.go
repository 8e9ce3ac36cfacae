package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tabmates/tabmates/internal/models"
	"github.com/tabmates/tabmates/internal/scheduler"
	"github.com/tabmates/tabmates/internal/storage"
)

// SettlementService exposes a group's settlements and drives user status
// transitions on them.
type SettlementService struct {
	store  storage.Store
	sched  Trigger
	logger *slog.Logger
}

// NewSettlementService creates a SettlementService.
func NewSettlementService(store storage.Store, sched Trigger, logger *slog.Logger) *SettlementService {
	if logger == nil {
		logger = slog.Default()
	}
	return &SettlementService{store: store, sched: sched, logger: logger}
}

// ListSettlements retrieves a group's settlements, newest first.
func (s *SettlementService) ListSettlements(ctx context.Context, groupID string) ([]models.Settlement, error) {
	if _, err := s.store.GetGroup(ctx, groupID); err != nil {
		return nil, err
	}
	return s.store.ListSettlementsByGroup(ctx, groupID)
}

// UpdateStatus transitions a settlement from pending to a terminal state.
// Terminal rows are historical record and cannot change again.
//
// Completing a settlement means money actually moved, which shifts the
// group's balances, so it recalculates immediately. Cancelling removes an
// obligation without moving money; the next recalculation will simply
// recreate an equivalent transfer, so no trigger fires.
func (s *SettlementService) UpdateStatus(ctx context.Context, settlementID string, status models.SettlementStatus) error {
	if !status.Terminal() {
		return fmt.Errorf("settlement status can only transition to completed or cancelled, got %q", status)
	}

	settlement, err := s.store.GetSettlement(ctx, settlementID)
	if err != nil {
		return err
	}
	if settlement.Status.Terminal() {
		return fmt.Errorf("settlement %s is already %s", settlementID, settlement.Status)
	}

	if err := s.store.UpdateSettlementStatus(ctx, settlementID, status); err != nil {
		return err
	}

	if status == models.SettlementCompleted {
		if err := s.sched.Trigger(ctx, settlement.GroupID, scheduler.ChangeSettlementProcessed, scheduler.Options{Immediate: true}); err != nil {
			s.logger.Warn("failed to schedule recalculation after settlement",
				"group_id", settlement.GroupID, "settlement_id", settlementID, "error", err)
		}
	}
	return nil
}
