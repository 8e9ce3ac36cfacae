package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tabmates/tabmates/internal/engine"
	"github.com/tabmates/tabmates/internal/notify"
	"github.com/tabmates/tabmates/internal/scheduler"
	"github.com/tabmates/tabmates/internal/service"
	"github.com/tabmates/tabmates/internal/storage/sqlite"
)

// newTestServer wires a full stack on a temp database.
func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	store, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	eng := engine.New(store, notify.Nop{}, nil)
	sched := scheduler.New(eng, nil)
	t.Cleanup(sched.Cleanup)

	srv := NewServer(
		":0",
		service.NewGroupService(store, sched, nil),
		service.NewExpenseService(store, sched, nil),
		service.NewSettlementService(store, sched, nil),
		service.NewBillService(store, nil),
		eng,
		sched,
		nil,
	)

	ts := httptest.NewServer(srv.Handler)
	t.Cleanup(ts.Close)
	return ts
}

func doJSON(t *testing.T, method, url string, body any) (*http.Response, []byte) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out bytes.Buffer
	_, err = out.ReadFrom(resp.Body)
	require.NoError(t, err)
	return resp, out.Bytes()
}

func createTestGroup(t *testing.T, ts *httptest.Server, members ...string) string {
	t.Helper()
	resp, body := doJSON(t, http.MethodPost, ts.URL+"/groups", map[string]any{
		"name":    "trip",
		"members": members,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	var group groupJSON
	require.NoError(t, json.Unmarshal(body, &group))
	require.NotEmpty(t, group.ID)
	return group.ID
}

func TestGroupEndpoints(t *testing.T) {
	ts := newTestServer(t)
	groupID := createTestGroup(t, ts, "alice", "bob")

	resp, body := doJSON(t, http.MethodGet, ts.URL+"/groups/"+groupID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var group groupJSON
	require.NoError(t, json.Unmarshal(body, &group))
	assert.Equal(t, []string{"alice", "bob"}, group.Members)

	resp, _ = doJSON(t, http.MethodGet, ts.URL+"/groups/missing", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, body = doJSON(t, http.MethodGet, ts.URL+"/groups", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var groups []groupJSON
	require.NoError(t, json.Unmarshal(body, &groups))
	assert.Len(t, groups, 1)
}

func TestExpenseAndSettlementFlow(t *testing.T) {
	ts := newTestServer(t)
	groupID := createTestGroup(t, ts, "alice", "bob")

	resp, body := doJSON(t, http.MethodPost, ts.URL+"/expenses", map[string]any{
		"group_id":    groupID,
		"description": "dinner",
		"amount":      "30.00",
		"payers":      []map[string]any{{"member_id": "alice", "amount": "30.00"}},
		"splits": []map[string]any{
			{"member_id": "alice", "amount": "15.00"},
			{"member_id": "bob", "amount": "15.00"},
		},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	// Force the recalculation instead of waiting out the debounce.
	resp, body = doJSON(t, http.MethodPost, ts.URL+"/groups/"+groupID+"/recalculate", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var settlements []settlementJSON
	require.NoError(t, json.Unmarshal(body, &settlements))
	require.Len(t, settlements, 1)
	assert.Equal(t, "bob", settlements[0].FromMemberID)
	assert.Equal(t, "alice", settlements[0].ToMemberID)
	assert.True(t, settlements[0].Amount.Equal(dec("15")), "got %s", settlements[0].Amount)
	assert.Equal(t, "pending", settlements[0].Status)

	// Completing the settlement zeroes the group out.
	resp, _ = doJSON(t, http.MethodPut, ts.URL+"/settlements/"+settlements[0].ID+"/status",
		map[string]any{"status": "completed"})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, body = doJSON(t, http.MethodGet, ts.URL+"/groups/"+groupID+"/settlements?status=completed", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var completed []settlementJSON
	require.NoError(t, json.Unmarshal(body, &completed))
	require.Len(t, completed, 1)
	assert.Equal(t, "completed", completed[0].Status)

	resp, body = doJSON(t, http.MethodGet, ts.URL+"/groups/"+groupID+"/balances", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var balances []balanceJSON
	require.NoError(t, json.Unmarshal(body, &balances))
	require.Len(t, balances, 2)
	for _, b := range balances {
		assert.True(t, b.Net.IsZero(), "member %s net = %s", b.MemberID, b.Net)
	}
}

func TestExpenseValidationSurfacesAsBadRequest(t *testing.T) {
	ts := newTestServer(t)
	groupID := createTestGroup(t, ts, "alice", "bob")

	resp, body := doJSON(t, http.MethodPost, ts.URL+"/expenses", map[string]any{
		"group_id": groupID,
		"amount":   "30.00",
		"payers":   []map[string]any{{"member_id": "mallory", "amount": "30.00"}},
		"splits":   []map[string]any{{"member_id": "bob", "amount": "30.00"}},
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var errResp errorResponse
	require.NoError(t, json.Unmarshal(body, &errResp))
	assert.Contains(t, errResp.Error, "mallory")
}

func TestSettlementStatusValidation(t *testing.T) {
	ts := newTestServer(t)

	resp, _ := doJSON(t, http.MethodPut, ts.URL+"/settlements/whatever/status",
		map[string]any{"status": "paid"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodPut, ts.URL+"/settlements/missing/status",
		map[string]any{"status": "completed"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestBillEndpoints(t *testing.T) {
	ts := newTestServer(t)

	resp, body := doJSON(t, http.MethodPost, ts.URL+"/bills", map[string]any{
		"title": "dinner",
		"items": []map[string]any{
			{"description": "pizza", "amount": "20.00", "assigned_to": []string{"alice", "bob"}},
			{"description": "beer", "amount": "10.00", "assigned_to": []string{"bob"}},
		},
		"total":        "33.00",
		"subtotal":     "30.00",
		"participants": []string{"alice", "bob"},
		"payer_id":     "alice",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	var bill billJSON
	require.NoError(t, json.Unmarshal(body, &bill))
	require.NotEmpty(t, bill.ID)

	resp, body = doJSON(t, http.MethodPost, ts.URL+"/bills/"+bill.ID+"/settle", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var settled settleResponse
	require.NoError(t, json.Unmarshal(body, &settled))
	require.Len(t, settled.Payments, 1)
	assert.Equal(t, "bob", settled.Payments[0].FromParticipant)
	assert.True(t, settled.Payments[0].Amount.Equal(dec("22")), "got %s", settled.Payments[0].Amount)

	resp, body = doJSON(t, http.MethodGet, ts.URL+"/bills/"+bill.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var fetched billResponse
	require.NoError(t, json.Unmarshal(body, &fetched))
	assert.Len(t, fetched.Payments, 1)
}

func TestHealthAndStats(t *testing.T) {
	ts := newTestServer(t)

	resp, _ := doJSON(t, http.MethodGet, ts.URL+"/healthz", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := doJSON(t, http.MethodGet, ts.URL+"/stats", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var stats scheduler.Statistics
	require.NoError(t, json.Unmarshal(body, &stats))
	assert.Equal(t, "running", stats.Status)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
