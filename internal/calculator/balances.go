// Package calculator holds the pure settlement math: balance aggregation,
// item-based bill splitting, and greedy debt netting. Nothing in here
// touches storage or holds state between calls.
package calculator

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/tabmates/tabmates/internal/models"
)

// amountEpsilon is the tolerance for "this amount matters": members whose
// net is within it are considered settled, and transfers at or below it
// are dropped as rounding noise.
var amountEpsilon = decimal.NewFromFloat(0.01)

// zeroSumEpsilon is the tolerance for the balance zero-sum invariant.
// Much tighter than amountEpsilon: owed amounts derive from the same
// totals as paid amounts, so anything beyond accumulated division
// residue means the input is corrupt.
var zeroSumEpsilon = decimal.NewFromFloat(1e-6)

// MemberBalance is one member's aggregate position in a group.
type MemberBalance struct {
	MemberID string

	// Paid is the total this member put in across all expenses.
	Paid decimal.Decimal

	// Owed is the total of this member's shares across all expenses.
	Owed decimal.Decimal

	// Net is Paid minus Owed. Positive means the group owes the member.
	Net decimal.Decimal
}

// ComputeBalances aggregates net balances from expense payer/split records
// and completed settlements. It is rebuilt from scratch on every call,
// never incrementally mutated.
//
// Every group member gets an entry, zero-valued if they appear on no
// record. Members referenced by records but missing from the group list
// are included as well so their money is never dropped. The result is
// ordered by member ID.
func ComputeBalances(members []string, expenses []models.Expense, settlements []models.Settlement) []MemberBalance {
	balances := make(map[string]*MemberBalance, len(members))
	entry := func(id string) *MemberBalance {
		b, ok := balances[id]
		if !ok {
			b = &MemberBalance{MemberID: id}
			balances[id] = b
		}
		return b
	}

	for _, m := range members {
		entry(m)
	}

	for _, exp := range expenses {
		for _, p := range exp.Payers {
			b := entry(p.MemberID)
			b.Paid = b.Paid.Add(p.Amount)
		}
		for _, s := range exp.Splits {
			b := entry(s.MemberID)
			b.Owed = b.Owed.Add(s.Amount)
		}
	}

	// A completed settlement is real money that changed hands: the payer
	// effectively paid more, the receiver effectively owes more. Pending
	// and cancelled settlements carry no weight.
	for _, s := range settlements {
		if s.Status != models.SettlementCompleted {
			continue
		}
		from := entry(s.FromMemberID)
		from.Paid = from.Paid.Add(s.Amount)
		to := entry(s.ToMemberID)
		to.Owed = to.Owed.Add(s.Amount)
	}

	out := make([]MemberBalance, 0, len(balances))
	for _, b := range balances {
		b.Net = b.Paid.Sub(b.Owed)
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MemberID < out[j].MemberID })
	return out
}
