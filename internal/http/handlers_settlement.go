package http

import (
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/tabmates/tabmates/internal/models"
)

type settlementJSON struct {
	ID           string          `json:"id"`
	GroupID      string          `json:"group_id"`
	FromMemberID string          `json:"from_member_id"`
	ToMemberID   string          `json:"to_member_id"`
	Amount       decimal.Decimal `json:"amount"`
	Status       string          `json:"status"`
	CreatedAt    int64           `json:"created_at"`
}

func settlementsToJSON(settlements []models.Settlement) []settlementJSON {
	out := make([]settlementJSON, 0, len(settlements))
	for _, st := range settlements {
		out = append(out, settlementJSON{
			ID:           st.ID,
			GroupID:      st.GroupID,
			FromMemberID: st.FromMemberID,
			ToMemberID:   st.ToMemberID,
			Amount:       st.Amount,
			Status:       string(st.Status),
			CreatedAt:    st.CreatedAt,
		})
	}
	return out
}

// handleListSettlements lists a group's settlements, optionally filtered
// by ?status=pending|completed|cancelled.
func (s *Server) handleListSettlements(w http.ResponseWriter, r *http.Request) {
	settlements, err := s.settlements.ListSettlements(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}

	if raw := r.URL.Query().Get("status"); raw != "" {
		status := models.SettlementStatus(raw)
		if !status.Valid() {
			writeError(w, fmt.Errorf("unknown settlement status %q", raw))
			return
		}
		filtered := settlements[:0]
		for _, st := range settlements {
			if st.Status == status {
				filtered = append(filtered, st)
			}
		}
		settlements = filtered
	}
	writeJSON(w, http.StatusOK, settlementsToJSON(settlements))
}

type statusRequest struct {
	Status string `json:"status"`
}

func (s *Server) handleUpdateSettlementStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	status := models.SettlementStatus(req.Status)
	if !status.Valid() {
		writeError(w, fmt.Errorf("unknown settlement status %q", req.Status))
		return
	}

	if err := s.settlements.UpdateStatus(r.Context(), r.PathValue("id"), status); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
