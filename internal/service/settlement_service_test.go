package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tabmates/tabmates/internal/models"
	"github.com/tabmates/tabmates/internal/scheduler"
	"github.com/tabmates/tabmates/internal/storage"
)

func seedPendingSettlement(t *testing.T, store storage.Store, groupID string) models.Settlement {
	t.Helper()
	rows := []models.Settlement{{
		GroupID:      groupID,
		FromMemberID: "bob",
		ToMemberID:   "alice",
		Amount:       dec("15.00"),
	}}
	require.NoError(t, store.ReplacePendingSettlements(context.Background(), groupID, rows))

	listed, err := store.ListSettlementsByGroup(context.Background(), groupID)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	return listed[0]
}

func TestCompleteSettlementTriggersImmediateRecalculation(t *testing.T) {
	store := newStore(t)
	trig := &fakeTrigger{}
	svc := NewSettlementService(store, trig, nil)
	group := newGroup(t, store, "alice", "bob")
	row := seedPendingSettlement(t, store, group.ID)

	require.NoError(t, svc.UpdateStatus(context.Background(), row.ID, models.SettlementCompleted))

	call := trig.last(t)
	assert.Equal(t, group.ID, call.groupID)
	assert.Equal(t, scheduler.ChangeSettlementProcessed, call.change)
	assert.True(t, call.opts.Immediate)

	got, err := store.GetSettlement(context.Background(), row.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SettlementCompleted, got.Status)
}

func TestCancelSettlementDoesNotTrigger(t *testing.T) {
	store := newStore(t)
	trig := &fakeTrigger{}
	svc := NewSettlementService(store, trig, nil)
	group := newGroup(t, store, "alice", "bob")
	row := seedPendingSettlement(t, store, group.ID)

	require.NoError(t, svc.UpdateStatus(context.Background(), row.ID, models.SettlementCancelled))

	assert.Zero(t, trig.count())

	got, err := store.GetSettlement(context.Background(), row.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SettlementCancelled, got.Status)
}

func TestUpdateStatusRejectsInvalidTransitions(t *testing.T) {
	store := newStore(t)
	trig := &fakeTrigger{}
	svc := NewSettlementService(store, trig, nil)
	group := newGroup(t, store, "alice", "bob")
	row := seedPendingSettlement(t, store, group.ID)

	// Back to pending is not a transition.
	require.Error(t, svc.UpdateStatus(context.Background(), row.ID, models.SettlementPending))

	// Terminal rows are frozen.
	require.NoError(t, svc.UpdateStatus(context.Background(), row.ID, models.SettlementCompleted))
	err := svc.UpdateStatus(context.Background(), row.ID, models.SettlementCancelled)
	require.Error(t, err)

	got, err := store.GetSettlement(context.Background(), row.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SettlementCompleted, got.Status)
}

func TestUpdateStatusUnknownSettlement(t *testing.T) {
	store := newStore(t)
	svc := NewSettlementService(store, &fakeTrigger{}, nil)

	err := svc.UpdateStatus(context.Background(), "no-such-settlement", models.SettlementCompleted)
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestListSettlementsUnknownGroup(t *testing.T) {
	store := newStore(t)
	svc := NewSettlementService(store, &fakeTrigger{}, nil)

	_, err := svc.ListSettlements(context.Background(), "no-such-group")
	require.ErrorIs(t, err, storage.ErrNotFound)
}
