package http

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/tabmates/tabmates/internal/models"
)

type expenseRecordJSON struct {
	MemberID string          `json:"member_id"`
	Amount   decimal.Decimal `json:"amount"`
}

type expenseJSON struct {
	ID          string              `json:"id"`
	GroupID     string              `json:"group_id"`
	Description string              `json:"description"`
	Amount      decimal.Decimal     `json:"amount"`
	Payers      []expenseRecordJSON `json:"payers"`
	Splits      []expenseRecordJSON `json:"splits"`
	CreatedAt   int64               `json:"created_at"`
}

type expenseRequest struct {
	GroupID     string              `json:"group_id,omitempty"`
	Description string              `json:"description"`
	Amount      decimal.Decimal     `json:"amount"`
	Payers      []expenseRecordJSON `json:"payers"`
	Splits      []expenseRecordJSON `json:"splits"`
}

func (req *expenseRequest) toModel() *models.Expense {
	exp := &models.Expense{
		GroupID:     req.GroupID,
		Description: req.Description,
		Amount:      req.Amount,
	}
	for _, p := range req.Payers {
		exp.Payers = append(exp.Payers, models.ExpensePayer{MemberID: p.MemberID, Amount: p.Amount})
	}
	for _, sp := range req.Splits {
		exp.Splits = append(exp.Splits, models.ExpenseSplit{MemberID: sp.MemberID, Amount: sp.Amount})
	}
	return exp
}

func expenseToJSON(exp *models.Expense) expenseJSON {
	out := expenseJSON{
		ID:          exp.ID,
		GroupID:     exp.GroupID,
		Description: exp.Description,
		Amount:      exp.Amount,
		CreatedAt:   exp.CreatedAt,
	}
	for _, p := range exp.Payers {
		out.Payers = append(out.Payers, expenseRecordJSON{MemberID: p.MemberID, Amount: p.Amount})
	}
	for _, sp := range exp.Splits {
		out.Splits = append(out.Splits, expenseRecordJSON{MemberID: sp.MemberID, Amount: sp.Amount})
	}
	return out
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	var req expenseRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	exp := req.toModel()
	if err := s.expenses.CreateExpense(r.Context(), exp); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, expenseToJSON(exp))
}

func (s *Server) handleGetExpense(w http.ResponseWriter, r *http.Request) {
	exp, err := s.expenses.GetExpense(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, expenseToJSON(exp))
}

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	expenses, err := s.expenses.ListExpenses(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}

	out := make([]expenseJSON, 0, len(expenses))
	for i := range expenses {
		out = append(out, expenseToJSON(&expenses[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request) {
	var req expenseRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	exp := req.toModel()
	exp.ID = r.PathValue("id")
	if err := s.expenses.UpdateExpense(r.Context(), exp); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, expenseToJSON(exp))
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	if err := s.expenses.DeleteExpense(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
