package http

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/tabmates/tabmates/internal/calculator"
	"github.com/tabmates/tabmates/internal/models"
)

type groupJSON struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Members   []string `json:"members"`
	CreatedAt int64    `json:"created_at"`
}

type groupRequest struct {
	Name    string   `json:"name"`
	Members []string `json:"members"`
}

func groupToJSON(g *models.Group) groupJSON {
	return groupJSON{ID: g.ID, Name: g.Name, Members: g.Members, CreatedAt: g.CreatedAt}
}

func (s *Server) handleCreateGroup(w http.ResponseWriter, r *http.Request) {
	var req groupRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	group := &models.Group{Name: req.Name, Members: req.Members}
	if err := s.groups.CreateGroup(r.Context(), group); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, groupToJSON(group))
}

func (s *Server) handleGetGroup(w http.ResponseWriter, r *http.Request) {
	group, err := s.groups.GetGroup(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, groupToJSON(group))
}

func (s *Server) handleListGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := s.groups.ListGroups(r.Context())
	if err != nil {
		writeServerError(w, err)
		return
	}

	out := make([]groupJSON, 0, len(groups))
	for _, g := range groups {
		out = append(out, groupToJSON(g))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleUpdateGroup(w http.ResponseWriter, r *http.Request) {
	var req groupRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	group := &models.Group{ID: r.PathValue("id"), Name: req.Name, Members: req.Members}
	if err := s.groups.UpdateGroup(r.Context(), group); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, groupToJSON(group))
}

type balanceJSON struct {
	MemberID string          `json:"member_id"`
	Paid     decimal.Decimal `json:"paid"`
	Owed     decimal.Decimal `json:"owed"`
	Net      decimal.Decimal `json:"net"`
}

// handleBalances reports the group's current per-member balances without
// touching stored settlements.
func (s *Server) handleBalances(w http.ResponseWriter, r *http.Request) {
	balances, err := s.engine.Balances(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, balancesToJSON(balances))
}

func balancesToJSON(balances []calculator.MemberBalance) []balanceJSON {
	out := make([]balanceJSON, 0, len(balances))
	for _, b := range balances {
		out = append(out, balanceJSON{MemberID: b.MemberID, Paid: b.Paid, Owed: b.Owed, Net: b.Net})
	}
	return out
}
