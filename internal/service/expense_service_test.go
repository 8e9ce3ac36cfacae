package service

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tabmates/tabmates/internal/models"
	"github.com/tabmates/tabmates/internal/scheduler"
	"github.com/tabmates/tabmates/internal/storage"
	"github.com/tabmates/tabmates/internal/storage/sqlite"
)

// fakeTrigger records trigger calls instead of scheduling anything.
type fakeTrigger struct {
	mu    sync.Mutex
	calls []triggerCall
	err   error
}

type triggerCall struct {
	groupID string
	change  scheduler.ChangeType
	opts    scheduler.Options
}

func (f *fakeTrigger) Trigger(_ context.Context, groupID string, change scheduler.ChangeType, opts scheduler.Options) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, triggerCall{groupID: groupID, change: change, opts: opts})
	return f.err
}

func (f *fakeTrigger) last(t *testing.T) triggerCall {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.calls)
	return f.calls[len(f.calls)-1]
}

func (f *fakeTrigger) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newStore(t *testing.T) storage.Store {
	t.Helper()
	store, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func newGroup(t *testing.T, store storage.Store, members ...string) *models.Group {
	t.Helper()
	group := &models.Group{Name: "trip", Members: members}
	require.NoError(t, store.CreateGroup(context.Background(), group))
	return group
}

func evenExpense(groupID, payer, amount string, owers ...string) *models.Expense {
	total := dec(amount)
	share := total.Div(decimal.NewFromInt(int64(len(owers)))).Round(2)
	exp := &models.Expense{
		GroupID:     groupID,
		Description: "dinner",
		Amount:      total,
		Payers:      []models.ExpensePayer{{MemberID: payer, Amount: total}},
	}
	for _, o := range owers {
		exp.Splits = append(exp.Splits, models.ExpenseSplit{MemberID: o, Amount: share})
	}
	return exp
}

func TestCreateExpenseSchedulesDelayedRecalculation(t *testing.T) {
	store := newStore(t)
	trig := &fakeTrigger{}
	svc := NewExpenseService(store, trig, nil)
	group := newGroup(t, store, "alice", "bob")

	exp := evenExpense(group.ID, "alice", "30.00", "alice", "bob")
	require.NoError(t, svc.CreateExpense(context.Background(), exp))
	require.NotEmpty(t, exp.ID)

	call := trig.last(t)
	assert.Equal(t, group.ID, call.groupID)
	assert.Equal(t, scheduler.ChangeExpenseCreated, call.change)
	assert.False(t, call.opts.Immediate)
	assert.Equal(t, createDelay, call.opts.Delay)
}

func TestCreateExpenseValidation(t *testing.T) {
	store := newStore(t)
	trig := &fakeTrigger{}
	svc := NewExpenseService(store, trig, nil)
	group := newGroup(t, store, "alice", "bob")

	tests := []struct {
		name    string
		expense *models.Expense
	}{
		{
			name:    "zero amount",
			expense: evenExpense(group.ID, "alice", "0", "alice", "bob"),
		},
		{
			name: "no payers",
			expense: &models.Expense{
				GroupID: group.ID,
				Amount:  dec("20"),
				Splits:  []models.ExpenseSplit{{MemberID: "alice", Amount: dec("20")}},
			},
		},
		{
			name: "no splits",
			expense: &models.Expense{
				GroupID: group.ID,
				Amount:  dec("20"),
				Payers:  []models.ExpensePayer{{MemberID: "alice", Amount: dec("20")}},
			},
		},
		{
			name:    "payer outside group",
			expense: evenExpense(group.ID, "mallory", "20.00", "alice", "bob"),
		},
		{
			name:    "split member outside group",
			expense: evenExpense(group.ID, "alice", "20.00", "alice", "mallory"),
		},
		{
			name: "payer sum mismatch",
			expense: &models.Expense{
				GroupID: group.ID,
				Amount:  dec("20"),
				Payers:  []models.ExpensePayer{{MemberID: "alice", Amount: dec("15")}},
				Splits:  []models.ExpenseSplit{{MemberID: "bob", Amount: dec("20")}},
			},
		},
		{
			name: "split sum mismatch",
			expense: &models.Expense{
				GroupID: group.ID,
				Amount:  dec("20"),
				Payers:  []models.ExpensePayer{{MemberID: "alice", Amount: dec("20")}},
				Splits:  []models.ExpenseSplit{{MemberID: "bob", Amount: dec("12")}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.CreateExpense(context.Background(), tt.expense)
			require.Error(t, err)
		})
	}
	// Rejected writes never schedule anything.
	assert.Zero(t, trig.count())
}

func TestCreateExpenseToleratesRoundingDrift(t *testing.T) {
	store := newStore(t)
	trig := &fakeTrigger{}
	svc := NewExpenseService(store, trig, nil)
	group := newGroup(t, store, "alice", "bob", "carol")

	// 10 / 3: shares of 3.33 leave a cent on the table. Within tolerance.
	exp := &models.Expense{
		GroupID: group.ID,
		Amount:  dec("10.00"),
		Payers:  []models.ExpensePayer{{MemberID: "alice", Amount: dec("10.00")}},
		Splits: []models.ExpenseSplit{
			{MemberID: "alice", Amount: dec("3.33")},
			{MemberID: "bob", Amount: dec("3.33")},
			{MemberID: "carol", Amount: dec("3.33")},
		},
	}
	require.NoError(t, svc.CreateExpense(context.Background(), exp))
}

func TestUpdateExpenseTriggerPolicy(t *testing.T) {
	store := newStore(t)
	trig := &fakeTrigger{}
	svc := NewExpenseService(store, trig, nil)
	group := newGroup(t, store, "alice", "bob")

	base := evenExpense(group.ID, "alice", "30.00", "alice", "bob")
	require.NoError(t, svc.CreateExpense(context.Background(), base))

	tests := []struct {
		name       string
		mutate     func(exp *models.Expense)
		wantChange scheduler.ChangeType
		immediate  bool
	}{
		{
			name: "payer change fires immediately",
			mutate: func(exp *models.Expense) {
				exp.Payers = []models.ExpensePayer{{MemberID: "bob", Amount: exp.Amount}}
			},
			wantChange: scheduler.ChangePayerUpdated,
			immediate:  true,
		},
		{
			name: "split change fires immediately",
			mutate: func(exp *models.Expense) {
				exp.Splits = []models.ExpenseSplit{
					{MemberID: "alice", Amount: dec("10.00")},
					{MemberID: "bob", Amount: dec("20.00")},
				}
			},
			wantChange: scheduler.ChangeSplitUpdated,
			immediate:  true,
		},
		{
			name: "amount change fires immediately",
			mutate: func(exp *models.Expense) {
				exp.Amount = dec("40.00")
				exp.Payers = []models.ExpensePayer{{MemberID: exp.Payers[0].MemberID, Amount: dec("40.00")}}
				exp.Splits = []models.ExpenseSplit{
					{MemberID: "alice", Amount: dec("20.00")},
					{MemberID: "bob", Amount: dec("20.00")},
				}
			},
			// Payers and splits changed too, so the policy reports the
			// first difference it finds.
			wantChange: scheduler.ChangePayerUpdated,
			immediate:  true,
		},
		{
			name: "description-only edit debounces",
			mutate: func(exp *models.Expense) {
				exp.Description = "dinner, actually lunch"
			},
			wantChange: scheduler.ChangeExpenseUpdated,
			immediate:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			existing, err := svc.GetExpense(context.Background(), base.ID)
			require.NoError(t, err)
			tt.mutate(existing)

			require.NoError(t, svc.UpdateExpense(context.Background(), existing))

			call := trig.last(t)
			assert.Equal(t, tt.wantChange, call.change)
			assert.Equal(t, tt.immediate, call.opts.Immediate)
			if !tt.immediate {
				assert.Equal(t, updateDelay, call.opts.Delay)
			}

			// Reset for the next case.
			require.NoError(t, svc.UpdateExpense(context.Background(), evenExpenseWithID(base.ID, group.ID)))
		})
	}
}

func evenExpenseWithID(id, groupID string) *models.Expense {
	exp := evenExpense(groupID, "alice", "30.00", "alice", "bob")
	exp.ID = id
	return exp
}

func TestDeleteExpenseFiresImmediately(t *testing.T) {
	store := newStore(t)
	trig := &fakeTrigger{}
	svc := NewExpenseService(store, trig, nil)
	group := newGroup(t, store, "alice", "bob")

	exp := evenExpense(group.ID, "alice", "30.00", "alice", "bob")
	require.NoError(t, svc.CreateExpense(context.Background(), exp))

	require.NoError(t, svc.DeleteExpense(context.Background(), exp.ID))

	call := trig.last(t)
	assert.Equal(t, group.ID, call.groupID)
	assert.Equal(t, scheduler.ChangeExpenseDeleted, call.change)
	assert.True(t, call.opts.Immediate)

	_, err := svc.GetExpense(context.Background(), exp.ID)
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestExpenseWriteSucceedsWhenTriggerFails(t *testing.T) {
	store := newStore(t)
	trig := &fakeTrigger{err: errors.New("scheduler closed")}
	svc := NewExpenseService(store, trig, nil)
	group := newGroup(t, store, "alice", "bob")

	exp := evenExpense(group.ID, "alice", "30.00", "alice", "bob")
	require.NoError(t, svc.CreateExpense(context.Background(), exp))

	got, err := svc.GetExpense(context.Background(), exp.ID)
	require.NoError(t, err)
	assert.True(t, got.Amount.Equal(dec("30.00")))
}

func TestListExpensesUnknownGroup(t *testing.T) {
	store := newStore(t)
	svc := NewExpenseService(store, &fakeTrigger{}, nil)

	_, err := svc.ListExpenses(context.Background(), "no-such-group")
	require.ErrorIs(t, err, storage.ErrNotFound)
}
