package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tabmates/tabmates/internal/models"
	"github.com/tabmates/tabmates/internal/scheduler"
	"github.com/tabmates/tabmates/internal/storage"
)

// GroupService handles group CRUD.
type GroupService struct {
	store  storage.Store
	sched  Trigger
	logger *slog.Logger
}

// NewGroupService creates a GroupService.
func NewGroupService(store storage.Store, sched Trigger, logger *slog.Logger) *GroupService {
	if logger == nil {
		logger = slog.Default()
	}
	return &GroupService{store: store, sched: sched, logger: logger}
}

// CreateGroup creates a new group.
func (s *GroupService) CreateGroup(ctx context.Context, group *models.Group) error {
	if group.Name == "" {
		return fmt.Errorf("group name is required")
	}
	if err := s.store.CreateGroup(ctx, group); err != nil {
		return err
	}
	s.logger.Info("group created", "group_id", group.ID, "members", len(group.Members))
	return nil
}

// GetGroup retrieves a group by ID.
func (s *GroupService) GetGroup(ctx context.Context, groupID string) (*models.Group, error) {
	return s.store.GetGroup(ctx, groupID)
}

// ListGroups retrieves all groups.
func (s *GroupService) ListGroups(ctx context.Context) ([]*models.Group, error) {
	return s.store.ListGroups(ctx)
}

// UpdateGroup replaces a group's name and member list. The member list is
// the universe the balance aggregator reports over, so a membership change
// schedules a debounced recalculation.
func (s *GroupService) UpdateGroup(ctx context.Context, group *models.Group) error {
	if group.Name == "" {
		return fmt.Errorf("group name is required")
	}
	if err := s.store.UpdateGroup(ctx, group); err != nil {
		return err
	}

	if err := s.sched.Trigger(ctx, group.ID, scheduler.ChangeManual, scheduler.Options{}); err != nil {
		s.logger.Warn("failed to schedule recalculation after group update",
			"group_id", group.ID, "error", err)
	}
	return nil
}
