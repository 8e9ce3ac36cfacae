// Package notify publishes recalculation outcomes as structured events.
//
// The debounced scheduler swallows execution errors by design (there is no
// caller left to notify), so outcomes are surfaced here instead: every
// recalculation, successful or not, produces one event a collaborator can
// subscribe to.
package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// RecalculationEvent describes the outcome of one settlement
// recalculation.
type RecalculationEvent struct {
	GroupID         string          `json:"group_id"`
	Reason          string          `json:"reason"`
	SettlementCount int             `json:"settlement_count"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	MembersInvolved int             `json:"members_involved"`
	DurationMs      int64           `json:"duration_ms"`
	Error           string          `json:"error,omitempty"`
	OccurredAt      time.Time       `json:"occurred_at"`
}

// ToJSON serializes the event for the wire.
func (e *RecalculationEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// Notifier delivers recalculation events to interested collaborators.
type Notifier interface {
	PublishRecalculation(ctx context.Context, event RecalculationEvent) error
	Close() error
}

// Nop is a Notifier that drops every event. Used when no broker is
// configured.
type Nop struct{}

func (Nop) PublishRecalculation(context.Context, RecalculationEvent) error { return nil }
func (Nop) Close() error                                                   { return nil }
