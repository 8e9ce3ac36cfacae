package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tabmates/tabmates/internal/calculator"
	"github.com/tabmates/tabmates/internal/models"
	"github.com/tabmates/tabmates/internal/storage"
)

// BillService handles standalone bills and their synchronous settlement.
// No debounce, no scheduler: every settle request recomputes from the
// current bill and replaces the payment rows wholesale, reusing the exact
// netting algorithm the group flow uses.
type BillService struct {
	store  storage.Store
	logger *slog.Logger
}

// NewBillService creates a BillService.
func NewBillService(store storage.Store, logger *slog.Logger) *BillService {
	if logger == nil {
		logger = slog.Default()
	}
	return &BillService{store: store, logger: logger}
}

// SettleResult is the synchronous settle response: the balances the
// netting ran over and the payments it produced.
type SettleResult struct {
	BillID   string                             `json:"bill_id"`
	Balances []calculator.MemberBalance         `json:"balances"`
	Shares   map[string]*calculator.PersonShare `json:"shares"`
	Payments []models.Payment                   `json:"payments"`
}

// CreateBill validates and persists a bill.
func (s *BillService) CreateBill(ctx context.Context, bill *models.Bill) error {
	if len(bill.Participants) == 0 {
		return fmt.Errorf("bill must have at least one participant")
	}
	if !bill.Total.IsPositive() {
		return fmt.Errorf("bill total must be positive, got %s", bill.Total)
	}
	if err := validatePayer(bill.PayerID, bill.Participants); err != nil {
		return err
	}
	return s.store.CreateBill(ctx, bill)
}

// GetBill retrieves a bill with its payment rows.
func (s *BillService) GetBill(ctx context.Context, billID string) (*models.Bill, []models.Payment, error) {
	bill, err := s.store.GetBill(ctx, billID)
	if err != nil {
		return nil, nil, err
	}
	payments, err := s.store.ListBillPayments(ctx, billID)
	if err != nil {
		return nil, nil, err
	}
	return bill, payments, nil
}

// Settle recomputes the bill's payments: split the items, build balances
// (payer paid the total, everyone owes their share), net them, and replace
// the payment rows in one transaction. Synchronous; errors surface to the
// caller.
func (s *BillService) Settle(ctx context.Context, billID string) (*SettleResult, error) {
	bill, err := s.store.GetBill(ctx, billID)
	if err != nil {
		return nil, err
	}
	if bill.PayerID == "" {
		return nil, fmt.Errorf("bill %s has no payer, nothing to settle", billID)
	}

	shares, err := calculator.CalculateSplit(bill.Items, bill.Total, bill.Subtotal, bill.Participants)
	if err != nil {
		return nil, fmt.Errorf("calculate split: %w", err)
	}

	balances := calculator.ComputeBillBalances(bill, shares)
	transfers, err := calculator.NetBalances(balances)
	if err != nil {
		return nil, fmt.Errorf("net balances: %w", err)
	}

	payments := make([]models.Payment, len(transfers))
	for i, tr := range transfers {
		payments[i] = models.Payment{
			BillID:          billID,
			FromParticipant: tr.From,
			ToParticipant:   tr.To,
			Amount:          tr.Amount,
		}
	}

	if err := s.store.ReplaceBillPayments(ctx, billID, payments); err != nil {
		return nil, fmt.Errorf("persist payments: %w", err)
	}

	s.logger.Info("bill settled",
		"bill_id", billID,
		"payments", len(payments))

	return &SettleResult{
		BillID:   billID,
		Balances: balances,
		Shares:   shares,
		Payments: payments,
	}, nil
}

// validatePayer checks the payer is one of the participants.
func validatePayer(payerID string, participants []string) error {
	if payerID == "" {
		return nil // optional until settle time
	}
	for _, p := range participants {
		if p == payerID {
			return nil
		}
	}
	return fmt.Errorf("payer %q must be one of the participants", payerID)
}
