package http

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/tabmates/tabmates/internal/models"
)

type itemJSON struct {
	ID          string          `json:"id,omitempty"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	AssignedTo  []string        `json:"assigned_to"`
}

type billRequest struct {
	Title        string          `json:"title"`
	Items        []itemJSON      `json:"items"`
	Total        decimal.Decimal `json:"total"`
	Subtotal     decimal.Decimal `json:"subtotal"`
	Participants []string        `json:"participants"`
	PayerID      string          `json:"payer_id"`
}

type billJSON struct {
	ID           string          `json:"id"`
	Title        string          `json:"title"`
	Items        []itemJSON      `json:"items"`
	Total        decimal.Decimal `json:"total"`
	Subtotal     decimal.Decimal `json:"subtotal"`
	Participants []string        `json:"participants"`
	PayerID      string          `json:"payer_id,omitempty"`
	CreatedAt    int64           `json:"created_at"`
}

type paymentJSON struct {
	ID              string          `json:"id"`
	FromParticipant string          `json:"from_participant"`
	ToParticipant   string          `json:"to_participant"`
	Amount          decimal.Decimal `json:"amount"`
	Paid            bool            `json:"paid"`
}

func (req *billRequest) toModel() *models.Bill {
	bill := &models.Bill{
		Title:        req.Title,
		Total:        req.Total,
		Subtotal:     req.Subtotal,
		Participants: req.Participants,
		PayerID:      req.PayerID,
	}
	for _, it := range req.Items {
		bill.Items = append(bill.Items, models.Item{
			Description: it.Description,
			Amount:      it.Amount,
			AssignedTo:  it.AssignedTo,
		})
	}
	return bill
}

func billToJSON(bill *models.Bill) billJSON {
	out := billJSON{
		ID:           bill.ID,
		Title:        bill.Title,
		Total:        bill.Total,
		Subtotal:     bill.Subtotal,
		Participants: bill.Participants,
		PayerID:      bill.PayerID,
		CreatedAt:    bill.CreatedAt,
	}
	for _, it := range bill.Items {
		out.Items = append(out.Items, itemJSON{
			ID:          it.ID,
			Description: it.Description,
			Amount:      it.Amount,
			AssignedTo:  it.AssignedTo,
		})
	}
	return out
}

func paymentsToJSON(payments []models.Payment) []paymentJSON {
	out := make([]paymentJSON, 0, len(payments))
	for _, p := range payments {
		out = append(out, paymentJSON{
			ID:              p.ID,
			FromParticipant: p.FromParticipant,
			ToParticipant:   p.ToParticipant,
			Amount:          p.Amount,
			Paid:            p.Paid,
		})
	}
	return out
}

func (s *Server) handleCreateBill(w http.ResponseWriter, r *http.Request) {
	var req billRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	bill := req.toModel()
	if err := s.bills.CreateBill(r.Context(), bill); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, billToJSON(bill))
}

type billResponse struct {
	Bill     billJSON      `json:"bill"`
	Payments []paymentJSON `json:"payments"`
}

func (s *Server) handleGetBill(w http.ResponseWriter, r *http.Request) {
	bill, payments, err := s.bills.GetBill(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, billResponse{
		Bill:     billToJSON(bill),
		Payments: paymentsToJSON(payments),
	})
}

type settleResponse struct {
	BillID   string        `json:"bill_id"`
	Balances []balanceJSON `json:"balances"`
	Payments []paymentJSON `json:"payments"`
}

// handleSettleBill runs the synchronous settle flow and returns the
// replaced payments.
func (s *Server) handleSettleBill(w http.ResponseWriter, r *http.Request) {
	result, err := s.bills.Settle(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, settleResponse{
		BillID:   result.BillID,
		Balances: balancesToJSON(result.Balances),
		Payments: paymentsToJSON(result.Payments),
	})
}
