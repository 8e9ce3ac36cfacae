package calculator

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/tabmates/tabmates/internal/models"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestComputeBalances(t *testing.T) {
	members := []string{"alice", "bob", "carol"}
	expenses := []models.Expense{
		{
			ID:     "e1",
			Amount: dec("90"),
			Payers: []models.ExpensePayer{{MemberID: "alice", Amount: dec("90")}},
			Splits: []models.ExpenseSplit{
				{MemberID: "alice", Amount: dec("30")},
				{MemberID: "bob", Amount: dec("30")},
				{MemberID: "carol", Amount: dec("30")},
			},
		},
		{
			ID:     "e2",
			Amount: dec("40"),
			Payers: []models.ExpensePayer{
				{MemberID: "bob", Amount: dec("25")},
				{MemberID: "carol", Amount: dec("15")},
			},
			Splits: []models.ExpenseSplit{
				{MemberID: "alice", Amount: dec("20")},
				{MemberID: "bob", Amount: dec("20")},
			},
		},
	}

	balances := ComputeBalances(members, expenses, nil)

	if len(balances) != 3 {
		t.Fatalf("got %d balances, want 3", len(balances))
	}

	want := map[string]struct{ paid, owed, net string }{
		"alice": {"90", "50", "40"},
		"bob":   {"25", "50", "-25"},
		"carol": {"15", "30", "-15"},
	}
	for _, b := range balances {
		w := want[b.MemberID]
		if !b.Paid.Equal(dec(w.paid)) {
			t.Errorf("%s paid = %s, want %s", b.MemberID, b.Paid, w.paid)
		}
		if !b.Owed.Equal(dec(w.owed)) {
			t.Errorf("%s owed = %s, want %s", b.MemberID, b.Owed, w.owed)
		}
		if !b.Net.Equal(dec(w.net)) {
			t.Errorf("%s net = %s, want %s", b.MemberID, b.Net, w.net)
		}
	}

	// Output is ordered by member ID.
	for i := 1; i < len(balances); i++ {
		if balances[i-1].MemberID >= balances[i].MemberID {
			t.Errorf("balances not ordered: %s before %s", balances[i-1].MemberID, balances[i].MemberID)
		}
	}

	// Zero-sum invariant holds for aggregator output.
	sum := decimal.Zero
	for _, b := range balances {
		sum = sum.Add(b.Net)
	}
	if !sum.IsZero() {
		t.Errorf("balances sum to %s, want 0", sum)
	}
}

func TestComputeBalancesCompletedSettlements(t *testing.T) {
	members := []string{"alice", "bob"}
	expenses := []models.Expense{
		{
			ID:     "e1",
			Amount: dec("60"),
			Payers: []models.ExpensePayer{{MemberID: "alice", Amount: dec("60")}},
			Splits: []models.ExpenseSplit{
				{MemberID: "alice", Amount: dec("30")},
				{MemberID: "bob", Amount: dec("30")},
			},
		},
	}
	settlements := []models.Settlement{
		{FromMemberID: "bob", ToMemberID: "alice", Amount: dec("30"), Status: models.SettlementCompleted},
		// Pending and cancelled settlements must not move balances.
		{FromMemberID: "bob", ToMemberID: "alice", Amount: dec("99"), Status: models.SettlementPending},
		{FromMemberID: "bob", ToMemberID: "alice", Amount: dec("99"), Status: models.SettlementCancelled},
	}

	balances := ComputeBalances(members, expenses, settlements)

	for _, b := range balances {
		if !b.Net.IsZero() {
			t.Errorf("%s net = %s, want 0 after settling up", b.MemberID, b.Net)
		}
	}
}

func TestComputeBalancesEmptyGroup(t *testing.T) {
	balances := ComputeBalances(nil, nil, nil)
	if len(balances) != 0 {
		t.Errorf("got %d balances for empty group, want 0", len(balances))
	}

	// Members with no records still get zero entries.
	balances = ComputeBalances([]string{"alice", "bob"}, nil, nil)
	if len(balances) != 2 {
		t.Fatalf("got %d balances, want 2", len(balances))
	}
	for _, b := range balances {
		if !b.Paid.IsZero() || !b.Owed.IsZero() || !b.Net.IsZero() {
			t.Errorf("%s has non-zero balance with no expenses", b.MemberID)
		}
	}
}

func TestComputeBalancesIncludesUnknownPayer(t *testing.T) {
	// A payer missing from the member list still gets an entry; dropping
	// their money would break the zero-sum invariant.
	expenses := []models.Expense{
		{
			ID:     "e1",
			Amount: dec("10"),
			Payers: []models.ExpensePayer{{MemberID: "zed", Amount: dec("10")}},
			Splits: []models.ExpenseSplit{{MemberID: "alice", Amount: dec("10")}},
		},
	}

	balances := ComputeBalances([]string{"alice"}, expenses, nil)
	if len(balances) != 2 {
		t.Fatalf("got %d balances, want 2", len(balances))
	}
}
