// Package service implements the application operations on top of storage
// and the recalculation scheduler. Services own input validation and the
// trigger policy; money math stays in internal/calculator.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tabmates/tabmates/internal/models"
	"github.com/tabmates/tabmates/internal/scheduler"
	"github.com/tabmates/tabmates/internal/storage"
)

// amountTolerance is how far payer/split sums may drift from the expense
// total before the expense is rejected as inconsistent.
var amountTolerance = decimal.NewFromFloat(0.01)

// Trigger delays per change kind. Creation waits the longest so dependent
// payer and split writes from the same user flow can land first; deletions
// and structural edits recalculate at once.
const (
	createDelay = 1000 * time.Millisecond
	updateDelay = 500 * time.Millisecond
)

// Trigger abstracts the scheduler for services and tests.
type Trigger interface {
	Trigger(ctx context.Context, groupID string, change scheduler.ChangeType, opts scheduler.Options) error
}

// ExpenseService handles expense CRUD and emits recalculation triggers
// after each committed write.
type ExpenseService struct {
	store  storage.Store
	sched  Trigger
	logger *slog.Logger
}

// NewExpenseService creates an ExpenseService.
func NewExpenseService(store storage.Store, sched Trigger, logger *slog.Logger) *ExpenseService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExpenseService{store: store, sched: sched, logger: logger}
}

// validateExpense checks structural consistency: the group exists, every
// payer and split references a group member, and both sides sum to the
// expense amount.
func (s *ExpenseService) validateExpense(ctx context.Context, expense *models.Expense) error {
	if !expense.Amount.IsPositive() {
		return fmt.Errorf("expense amount must be positive, got %s", expense.Amount)
	}
	if len(expense.Payers) == 0 {
		return fmt.Errorf("expense must have at least one payer")
	}
	if len(expense.Splits) == 0 {
		return fmt.Errorf("expense must have at least one split")
	}

	group, err := s.store.GetGroup(ctx, expense.GroupID)
	if err != nil {
		return err
	}

	paid := decimal.Zero
	for _, p := range expense.Payers {
		if !group.HasMember(p.MemberID) {
			return fmt.Errorf("payer %q is not a member of group %s", p.MemberID, group.ID)
		}
		paid = paid.Add(p.Amount)
	}
	if paid.Sub(expense.Amount).Abs().GreaterThan(amountTolerance) {
		return fmt.Errorf("payer amounts sum to %s, expense total is %s", paid, expense.Amount)
	}

	owed := decimal.Zero
	for _, sp := range expense.Splits {
		if !group.HasMember(sp.MemberID) {
			return fmt.Errorf("split member %q is not a member of group %s", sp.MemberID, group.ID)
		}
		owed = owed.Add(sp.Amount)
	}
	if owed.Sub(expense.Amount).Abs().GreaterThan(amountTolerance) {
		return fmt.Errorf("split amounts sum to %s, expense total is %s", owed, expense.Amount)
	}
	return nil
}

// CreateExpense persists a new expense and schedules a recalculation with
// a generous delay so follow-up writes from the same flow coalesce.
func (s *ExpenseService) CreateExpense(ctx context.Context, expense *models.Expense) error {
	if err := s.validateExpense(ctx, expense); err != nil {
		return err
	}
	if err := s.store.CreateExpense(ctx, expense); err != nil {
		return err
	}

	s.trigger(ctx, expense.GroupID, scheduler.ChangeExpenseCreated, scheduler.Options{Delay: createDelay})
	return nil
}

// GetExpense retrieves an expense.
func (s *ExpenseService) GetExpense(ctx context.Context, expenseID string) (*models.Expense, error) {
	return s.store.GetExpense(ctx, expenseID)
}

// ListExpenses retrieves a group's expenses.
func (s *ExpenseService) ListExpenses(ctx context.Context, groupID string) ([]models.Expense, error) {
	if _, err := s.store.GetGroup(ctx, groupID); err != nil {
		return nil, err
	}
	return s.store.ListExpensesByGroup(ctx, groupID)
}

// UpdateExpense replaces an expense. Edits that move money (amount,
// payers, splits) recalculate immediately; cosmetic edits debounce.
func (s *ExpenseService) UpdateExpense(ctx context.Context, expense *models.Expense) error {
	existing, err := s.store.GetExpense(ctx, expense.ID)
	if err != nil {
		return err
	}
	expense.GroupID = existing.GroupID

	if err := s.validateExpense(ctx, expense); err != nil {
		return err
	}
	if err := s.store.UpdateExpense(ctx, expense); err != nil {
		return err
	}

	change, opts := updatePolicy(existing, expense)
	s.trigger(ctx, expense.GroupID, change, opts)
	return nil
}

// DeleteExpense removes an expense and recalculates immediately.
func (s *ExpenseService) DeleteExpense(ctx context.Context, expenseID string) error {
	existing, err := s.store.GetExpense(ctx, expenseID)
	if err != nil {
		return err
	}
	if err := s.store.DeleteExpense(ctx, expenseID); err != nil {
		return err
	}

	s.trigger(ctx, existing.GroupID, scheduler.ChangeExpenseDeleted, scheduler.Options{Immediate: true})
	return nil
}

// updatePolicy maps what an edit touched to a change type and timing.
func updatePolicy(old, new *models.Expense) (scheduler.ChangeType, scheduler.Options) {
	switch {
	case !payersEqual(old.Payers, new.Payers):
		return scheduler.ChangePayerUpdated, scheduler.Options{Immediate: true}
	case !splitsEqual(old.Splits, new.Splits):
		return scheduler.ChangeSplitUpdated, scheduler.Options{Immediate: true}
	case !old.Amount.Equal(new.Amount):
		return scheduler.ChangeExpenseUpdated, scheduler.Options{Immediate: true}
	default:
		// Description-only edit: nothing moved, a debounced refresh is
		// plenty.
		return scheduler.ChangeExpenseUpdated, scheduler.Options{Delay: updateDelay}
	}
}

func payersEqual(a, b []models.ExpensePayer) bool {
	if len(a) != len(b) {
		return false
	}
	amounts := make(map[string]decimal.Decimal, len(a))
	for _, p := range a {
		amounts[p.MemberID] = p.Amount
	}
	for _, p := range b {
		amount, ok := amounts[p.MemberID]
		if !ok || !amount.Equal(p.Amount) {
			return false
		}
	}
	return true
}

func splitsEqual(a, b []models.ExpenseSplit) bool {
	if len(a) != len(b) {
		return false
	}
	amounts := make(map[string]decimal.Decimal, len(a))
	for _, sp := range a {
		amounts[sp.MemberID] = sp.Amount
	}
	for _, sp := range b {
		amount, ok := amounts[sp.MemberID]
		if !ok || !amount.Equal(sp.Amount) {
			return false
		}
	}
	return true
}

// trigger fires a recalculation request and logs failures without
// surfacing them: an expense write never fails because scheduling did.
func (s *ExpenseService) trigger(ctx context.Context, groupID string, change scheduler.ChangeType, opts scheduler.Options) {
	if err := s.sched.Trigger(ctx, groupID, change, opts); err != nil {
		s.logger.Warn("failed to schedule recalculation",
			"group_id", groupID, "change_type", change, "error", err)
	}
}
