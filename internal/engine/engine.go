// Package engine runs one full settlement recalculation for a group:
// read committed state, aggregate balances, net debts, reconcile the
// settlement rows, and report the outcome.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tabmates/tabmates/internal/calculator"
	"github.com/tabmates/tabmates/internal/metrics"
	"github.com/tabmates/tabmates/internal/models"
	"github.com/tabmates/tabmates/internal/notify"
	"github.com/tabmates/tabmates/internal/scheduler"
	"github.com/tabmates/tabmates/internal/storage"
)

// Summary describes a completed recalculation.
type Summary struct {
	GroupID         string              `json:"group_id"`
	Settlements     []models.Settlement `json:"settlements"`
	SettlementCount int                 `json:"settlements_count"`
	TotalAmount     decimal.Decimal     `json:"total_amount"`
	MembersInvolved int                 `json:"members_involved"`
	Duration        time.Duration       `json:"-"`
}

// Engine wires storage, calculator, and the notification hook together.
type Engine struct {
	store    storage.Store
	notifier notify.Notifier
	logger   *slog.Logger
}

// New creates an engine. A nil notifier disables outcome events.
func New(store storage.Store, notifier notify.Notifier, logger *slog.Logger) *Engine {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{store: store, notifier: notifier, logger: logger}
}

// Execute satisfies scheduler.Executor.
func (e *Engine) Execute(ctx context.Context, groupID string, reason scheduler.ChangeType) error {
	_, err := e.Recalculate(ctx, groupID, string(reason))
	return err
}

// Recalculate rebuilds the group's pending settlements from scratch.
//
// It always reads the current database state, never a snapshot from
// trigger time: intermediate writes landing during the debounce window are
// exactly what the delay waits for. Balances that fail the zero-sum
// invariant abort the run with a full dump — persisting transfers from
// corrupt balances would fabricate money.
func (e *Engine) Recalculate(ctx context.Context, groupID, reason string) (*Summary, error) {
	start := time.Now()
	summary, err := e.recalculate(ctx, groupID)
	duration := time.Since(start)
	metrics.RecalculationDuration.Observe(duration.Seconds())

	event := notify.RecalculationEvent{
		GroupID:    groupID,
		Reason:     reason,
		DurationMs: duration.Milliseconds(),
		OccurredAt: time.Now().UTC(),
	}

	if err != nil {
		metrics.RecalculationsTotal.WithLabelValues("error").Inc()
		event.Error = err.Error()

		var inv *calculator.InvariantViolationError
		if errors.As(err, &inv) {
			e.logger.Error("balance invariant violated, aborting recalculation",
				"group_id", groupID, "reason", reason, "sum", inv.Sum.String(), "balances", inv.Error())
		} else {
			e.logger.Error("recalculation failed",
				"group_id", groupID, "reason", reason, "error", err)
		}
	} else {
		metrics.RecalculationsTotal.WithLabelValues("success").Inc()
		metrics.SettlementsReplaced.Add(float64(summary.SettlementCount))
		summary.Duration = duration
		event.SettlementCount = summary.SettlementCount
		event.TotalAmount = summary.TotalAmount
		event.MembersInvolved = summary.MembersInvolved

		e.logger.Info("recalculation completed",
			"group_id", groupID,
			"reason", reason,
			"settlements", summary.SettlementCount,
			"total_amount", summary.TotalAmount.String(),
			"duration_ms", duration.Milliseconds())
	}

	if pubErr := e.notifier.PublishRecalculation(ctx, event); pubErr != nil {
		// The settlements themselves are durable; a lost event only
		// delays downstream consumers.
		e.logger.Warn("failed to publish recalculation event",
			"group_id", groupID, "error", pubErr)
	}

	return summary, err
}

func (e *Engine) recalculate(ctx context.Context, groupID string) (*Summary, error) {
	group, err := e.store.GetGroup(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("load group: %w", err)
	}

	expenses, err := e.store.ListExpensesByGroup(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("load expenses: %w", err)
	}

	settlements, err := e.store.ListSettlementsByGroup(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("load settlements: %w", err)
	}

	balances := calculator.ComputeBalances(group.Members, expenses, settlements)
	transfers, err := calculator.NetBalances(balances)
	if err != nil {
		return nil, err
	}

	rows := make([]models.Settlement, len(transfers))
	for i, tr := range transfers {
		rows[i] = models.Settlement{
			GroupID:      groupID,
			FromMemberID: tr.From,
			ToMemberID:   tr.To,
			Amount:       tr.Amount,
			Status:       models.SettlementPending,
		}
	}

	if err := e.store.ReplacePendingSettlements(ctx, groupID, rows); err != nil {
		return nil, fmt.Errorf("reconcile settlements: %w", err)
	}

	return summarize(groupID, rows), nil
}

// Balances exposes the aggregator for read endpoints: current balances
// for a group without touching settlements.
func (e *Engine) Balances(ctx context.Context, groupID string) ([]calculator.MemberBalance, error) {
	group, err := e.store.GetGroup(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("load group: %w", err)
	}
	expenses, err := e.store.ListExpensesByGroup(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("load expenses: %w", err)
	}
	settlements, err := e.store.ListSettlementsByGroup(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("load settlements: %w", err)
	}
	return calculator.ComputeBalances(group.Members, expenses, settlements), nil
}

func summarize(groupID string, rows []models.Settlement) *Summary {
	total := decimal.Zero
	members := make(map[string]struct{})
	for _, st := range rows {
		total = total.Add(st.Amount)
		members[st.FromMemberID] = struct{}{}
		members[st.ToMemberID] = struct{}{}
	}
	return &Summary{
		GroupID:         groupID,
		Settlements:     rows,
		SettlementCount: len(rows),
		TotalAmount:     total,
		MembersInvolved: len(members),
	}
}
