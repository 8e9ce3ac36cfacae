package calculator

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// Transfer is a directed, positive-amount obligation from one member to
// another.
type Transfer struct {
	From   string
	To     string
	Amount decimal.Decimal
}

// InvariantViolationError reports balances that do not sum to zero.
// Netting such input would fabricate or destroy money, so the caller must
// abort the recalculation instead of persisting anything.
type InvariantViolationError struct {
	Sum      decimal.Decimal
	Balances []MemberBalance
}

func (e *InvariantViolationError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "balances sum to %s, want 0", e.Sum)
	for _, b := range e.Balances {
		fmt.Fprintf(&sb, "; %s: paid=%s owed=%s net=%s", b.MemberID, b.Paid, b.Owed, b.Net)
	}
	return sb.String()
}

// NetBalances reduces a set of net balances to a small list of transfers
// that resolve all debts.
//
// Greedy two-pointer sweep: repeatedly match the largest creditor with the
// largest debtor and transfer min(credit, debt). This yields at most
// creditors+debtors-1 transfers; the global minimum is NP-hard and the
// greedy result is standard for this problem.
//
// The output is deterministic: ties in magnitude break on ascending member
// ID. Transfers at or below amountEpsilon are dropped entirely rather than
// emitted as near-zero noise.
func NetBalances(balances []MemberBalance) ([]Transfer, error) {
	sum := decimal.Zero
	for _, b := range balances {
		sum = sum.Add(b.Net)
	}
	if sum.Abs().GreaterThan(zeroSumEpsilon) {
		return nil, &InvariantViolationError{Sum: sum, Balances: balances}
	}

	var creditors, debtors []MemberBalance
	for _, b := range balances {
		switch {
		case b.Net.GreaterThan(amountEpsilon):
			creditors = append(creditors, b)
		case b.Net.LessThan(amountEpsilon.Neg()):
			debtors = append(debtors, b)
		}
	}

	// Largest credit first; most negative debt first.
	sort.Slice(creditors, func(i, j int) bool {
		if !creditors[i].Net.Equal(creditors[j].Net) {
			return creditors[i].Net.GreaterThan(creditors[j].Net)
		}
		return creditors[i].MemberID < creditors[j].MemberID
	})
	sort.Slice(debtors, func(i, j int) bool {
		if !debtors[i].Net.Equal(debtors[j].Net) {
			return debtors[i].Net.LessThan(debtors[j].Net)
		}
		return debtors[i].MemberID < debtors[j].MemberID
	})

	credit := make([]decimal.Decimal, len(creditors))
	for i, c := range creditors {
		credit[i] = c.Net
	}
	debt := make([]decimal.Decimal, len(debtors))
	for i, d := range debtors {
		debt[i] = d.Net.Neg()
	}

	var transfers []Transfer
	i, j := 0, 0
	for i < len(debtors) && j < len(creditors) {
		amount := debt[i]
		if credit[j].LessThan(amount) {
			amount = credit[j]
		}

		if amount.GreaterThan(amountEpsilon) {
			transfers = append(transfers, Transfer{
				From:   debtors[i].MemberID,
				To:     creditors[j].MemberID,
				Amount: amount,
			})
		}

		debt[i] = debt[i].Sub(amount)
		credit[j] = credit[j].Sub(amount)

		if debt[i].LessThanOrEqual(amountEpsilon) {
			i++
		}
		if credit[j].LessThanOrEqual(amountEpsilon) {
			j++
		}
	}

	return transfers, nil
}
