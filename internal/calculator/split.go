package calculator

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/tabmates/tabmates/internal/models"
)

// PersonShare is one participant's computed share of a bill.
type PersonShare struct {
	Subtotal decimal.Decimal
	Tax      decimal.Decimal
	Total    decimal.Decimal
}

// CalculateSplit computes how much each participant owes on a bill,
// including a proportional share of tax:
//
//	person_total = person_subtotal × (1 + tax/bill_subtotal)
//
// Items assigned to multiple participants are divided equally among them.
// A bill with no items is split equally among all participants.
func CalculateSplit(items []models.Item, total, subtotal decimal.Decimal, participants []string) (map[string]*PersonShare, error) {
	if subtotal.IsZero() {
		return nil, fmt.Errorf("subtotal cannot be zero")
	}
	if len(participants) == 0 {
		return nil, fmt.Errorf("must have at least one participant")
	}

	tax := total.Sub(subtotal)
	shares := make(map[string]*PersonShare, len(participants))
	for _, p := range participants {
		shares[p] = &PersonShare{}
	}

	if len(items) == 0 {
		n := decimal.NewFromInt(int64(len(participants)))
		for _, share := range shares {
			share.Subtotal = subtotal.Div(n)
			share.Tax = tax.Div(n)
			share.Total = total.Div(n)
		}
		return shares, nil
	}

	for _, item := range items {
		if len(item.AssignedTo) == 0 {
			continue
		}
		perPerson := item.Amount.Div(decimal.NewFromInt(int64(len(item.AssignedTo))))
		for _, person := range item.AssignedTo {
			if share, ok := shares[person]; ok {
				share.Subtotal = share.Subtotal.Add(perPerson)
			}
		}
	}

	taxRate := tax.Div(subtotal)
	for _, share := range shares {
		share.Tax = share.Subtotal.Mul(taxRate)
		share.Total = share.Subtotal.Add(share.Tax)
	}

	return shares, nil
}

// ComputeBillBalances builds per-participant balances for a bill: the payer
// paid the full total, every participant owes their computed share. The
// result is ordered by participant ID and feeds straight into NetBalances.
func ComputeBillBalances(bill *models.Bill, shares map[string]*PersonShare) []MemberBalance {
	members := make([]string, 0, len(bill.Participants)+1)
	members = append(members, bill.Participants...)
	if bill.PayerID != "" && !containsString(members, bill.PayerID) {
		members = append(members, bill.PayerID)
	}

	// Reuse the aggregation path by expressing the bill as a single
	// expense with one payer and per-participant splits.
	exp := models.Expense{Amount: bill.Total}
	if bill.PayerID != "" {
		exp.Payers = []models.ExpensePayer{{MemberID: bill.PayerID, Amount: bill.Total}}
	}
	for p, share := range shares {
		exp.Splits = append(exp.Splits, models.ExpenseSplit{MemberID: p, Amount: share.Total})
	}

	return ComputeBalances(members, []models.Expense{exp}, nil)
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
