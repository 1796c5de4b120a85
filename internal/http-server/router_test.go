package httpserver

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"tender_dashboard/internal/client"
	"tender_dashboard/internal/client/clienttest"
	"tender_dashboard/internal/dashboard"
	"tender_dashboard/internal/http-server/handlers/api/auth"
	"tender_dashboard/internal/http-server/handlers/api/comparison"
	"tender_dashboard/internal/http-server/handlers/api/tender"
	"tender_dashboard/internal/lib/logger/sl"
	"tender_dashboard/internal/models/user"
	"tender_dashboard/internal/storage/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type browser struct {
	t    *testing.T
	base string
	hc   *http.Client
}

func setupServer(t *testing.T, tenders int) (*browser, *clienttest.Upstream, *dashboard.Registry) {
	t.Helper()

	up := clienttest.New(t, clienttest.SampleTenders(tenders)...)
	log := sl.Discard()
	reg := dashboard.NewRegistry(log, memory.New(), nil, dashboard.Options{
		Client:   client.Config{BaseURL: up.URL(), Timeout: 2 * time.Second},
		Location: time.UTC,
	})
	srv := httptest.NewServer(NewRouter(log, reg, Config{Cookie: "tender_session"}))
	t.Cleanup(srv.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &browser{t: t, base: srv.URL, hc: &http.Client{Jar: jar}}, up, reg
}

func (b *browser) do(method, path string, body any, out any) int {
	b.t.Helper()

	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(b.t, err)
		rd = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, b.base+path, rd)
	require.NoError(b.t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := b.hc.Do(req)
	require.NoError(b.t, err)
	defer resp.Body.Close()

	if out != nil {
		require.NoError(b.t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func (b *browser) login(email string) {
	b.t.Helper()
	var st auth.Status
	require.Equal(b.t, http.StatusOK, b.do(http.MethodPost, "/api/auth/login", user.LoginRequest{Email: email, Password: "secret"}, &st))
	require.True(b.t, st.Authenticated)
}

func TestSessionCookieAndAuth(t *testing.T) {
	b, _, reg := setupServer(t, 2)

	var st auth.Status
	require.Equal(t, http.StatusOK, b.do(http.MethodGet, "/api/auth/me", nil, &st))
	assert.False(t, st.Authenticated)
	assert.Equal(t, 1, reg.Len())

	var failed map[string]any
	code := b.do(http.MethodPost, "/api/auth/login", user.LoginRequest{Email: "user@example.com", Password: "wrong"}, &failed)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "Invalid credentials", failed["reason"])

	code = b.do(http.MethodPost, "/api/auth/login", user.LoginRequest{Email: "not-an-email", Password: "x"}, &failed)
	assert.Equal(t, http.StatusBadRequest, code)

	b.login("emp@example.com")
	require.Equal(t, http.StatusOK, b.do(http.MethodGet, "/api/auth/me", nil, &st))
	assert.True(t, st.Authenticated)
	assert.Equal(t, user.RoleEmployee, st.Role)
	assert.Equal(t, "employee", st.RoleName)
	assert.Equal(t, 1, reg.Len(), "the cookie keeps the same dashboard")

	require.Equal(t, http.StatusOK, b.do(http.MethodPost, "/api/auth/logout", nil, &st))
	require.Equal(t, http.StatusOK, b.do(http.MethodGet, "/api/auth/me", nil, &st))
	assert.False(t, st.Authenticated)
}

func TestRegister(t *testing.T) {
	b, up, _ := setupServer(t, 1)

	req := user.RegisterRequest{Name: "Neo", Email: "neo@example.com", Password: "secret1", ConfirmPassword: "secret2", EmpId: "E9"}
	var failed map[string]any
	require.Equal(t, http.StatusBadRequest, b.do(http.MethodPost, "/api/auth/register", req, &failed))
	assert.Equal(t, "passwords do not match", failed["reason"])

	req.ConfirmPassword = req.Password
	require.Equal(t, http.StatusCreated, b.do(http.MethodPost, "/api/auth/register", req, nil))

	up.Mu.Lock()
	defer up.Mu.Unlock()
	require.Len(t, up.Pending, 1)
	assert.Equal(t, "neo@example.com", up.Pending[0].Email)
}

func TestTenderPaging(t *testing.T) {
	b, up, _ := setupServer(t, 5)

	var page tender.Page
	require.Equal(t, http.StatusOK, b.do(http.MethodGet, "/api/tenders", nil, &page))
	assert.Len(t, page.Summaries, 5)
	assert.Equal(t, 1, page.Query.Page)
	assert.False(t, page.HasPrev)
	assert.Equal(t, "5M", page.Summaries[0].Value)

	require.Equal(t, http.StatusOK, b.do(http.MethodPatch, "/api/tenders/query", map[string]any{"quantity": "2abc"}, &page))
	assert.Equal(t, 2, page.Query.Quantity)
	require.Len(t, page.Summaries, 2)

	require.Equal(t, http.StatusOK, b.do(http.MethodPost, "/api/tenders/next", nil, &page))
	assert.Equal(t, 2, page.Query.Page)
	assert.Equal(t, "t3", page.Summaries[0].ID)
	assert.True(t, page.HasPrev)

	require.Equal(t, http.StatusOK, b.do(http.MethodPost, "/api/tenders/prev", nil, &page))
	require.Equal(t, http.StatusOK, b.do(http.MethodPost, "/api/tenders/prev", nil, &page))
	assert.Equal(t, 1, page.Query.Page, "page never drops below 1")

	calls := up.CallCount("/dashboard/all-tenders")
	require.Equal(t, http.StatusOK, b.do(http.MethodPatch, "/api/tenders/query", map[string]any{"search": "t4"}, &page))
	assert.Equal(t, calls, up.CallCount("/dashboard/all-tenders"), "typing a search term fetches nothing")

	require.Equal(t, http.StatusOK, b.do(http.MethodPost, "/api/tenders/search", nil, &page))
	require.Len(t, page.Summaries, 1)
	assert.Equal(t, "t4", page.Summaries[0].ID)
	assert.Equal(t, "t4", page.SubmittedSearch)

	var failed map[string]any
	assert.Equal(t, http.StatusBadRequest, b.do(http.MethodPatch, "/api/tenders/query", map[string]any{"sortBy": "colour"}, &failed))
}

func TestTenderDetailAndHighlights(t *testing.T) {
	b, _, _ := setupServer(t, 3)

	var hl tender.Highlights
	require.Equal(t, http.StatusOK, b.do(http.MethodGet, "/api/tenders/highlights", nil, &hl))
	require.Len(t, hl.BestValued, 2)
	require.Len(t, hl.ByWorks, 1)
	assert.Equal(t, "Civil", hl.ByWorks[0].Name)

	var detail tender.Detail
	require.Equal(t, http.StatusOK, b.do(http.MethodGet, "/api/tenders/t2", nil, &detail))
	assert.Equal(t, "Tender t2", detail.Title)
	labels := make([]string, 0, len(detail.Attributes))
	for _, a := range detail.Attributes {
		labels = append(labels, a.Label)
	}
	assert.Equal(t, []string{"Tender Title", "Tender Value", "Location"}, labels)

	var failed map[string]any
	assert.Equal(t, http.StatusNotFound, b.do(http.MethodGet, "/api/tenders/nope", nil, &failed))
}

func TestWishlistAndComparison(t *testing.T) {
	b, _, _ := setupServer(t, 3)

	var failed map[string]any
	assert.Equal(t, http.StatusUnauthorized, b.do(http.MethodGet, "/api/wishlist", nil, &failed))
	assert.Equal(t, http.StatusUnauthorized, b.do(http.MethodPost, "/api/wishlist/t1/toggle", nil, &failed))

	b.login("user@example.com")
	require.Equal(t, http.StatusOK, b.do(http.MethodGet, "/api/tenders", nil, nil))

	var toggled struct {
		Outcome struct {
			Member bool   `json:"member"`
			Phase  string `json:"phase"`
		} `json:"outcome"`
		Notices []struct {
			Message string `json:"message"`
		} `json:"notices"`
	}
	require.Equal(t, http.StatusOK, b.do(http.MethodPost, "/api/wishlist/t1/toggle", nil, &toggled))
	assert.True(t, toggled.Outcome.Member)
	assert.Equal(t, "committed", toggled.Outcome.Phase)
	require.Len(t, toggled.Notices, 1)
	assert.Equal(t, `Tender "Tender t1" has been added to the wishlist.`, toggled.Notices[0].Message)

	var page tender.Page
	require.Equal(t, http.StatusOK, b.do(http.MethodGet, "/api/tenders", nil, &page))
	assert.Equal(t, []string{"t1"}, page.Wishlist)

	require.Equal(t, http.StatusOK, b.do(http.MethodPost, "/api/wishlist/t1/toggle", nil, &toggled))
	assert.False(t, toggled.Outcome.Member)

	for _, id := range []string{"t1", "t2"} {
		require.Equal(t, http.StatusOK, b.do(http.MethodPost, "/api/comparison/"+id+"/toggle", nil, nil))
	}

	var table comparison.Table
	require.Equal(t, http.StatusOK, b.do(http.MethodPut, "/api/comparison/remarks",
		comparison.RemarksRequest{Remarks: map[string]string{"tender_value": "t1 is bigger"}}, &table))
	assert.Equal(t, []string{"Tender t1", "Tender t2"}, table.Headers)
	require.NotEmpty(t, table.Rows)
	assert.Equal(t, "t1 is bigger", table.Rows[0].Remark)

	resp, err := b.hc.Get(b.base + "/api/comparison/export")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/pdf", resp.Header.Get("Content-Type"))
	assert.True(t, strings.Contains(resp.Header.Get("Content-Disposition"), "Tender_Comparison.pdf"))
	assert.True(t, bytes.HasPrefix(body, []byte("%PDF-")))

	require.Equal(t, http.StatusOK, b.do(http.MethodDelete, "/api/comparison", nil, &table))
	assert.True(t, table.Empty())
	assert.Equal(t, http.StatusBadRequest, b.do(http.MethodGet, "/api/comparison/export", nil, &failed))
}

func TestAdminGate(t *testing.T) {
	b, up, _ := setupServer(t, 2)

	var failed map[string]any
	assert.Equal(t, http.StatusUnauthorized, b.do(http.MethodGet, "/api/admin/pending-users", nil, &failed))

	b.login("user@example.com")
	assert.Equal(t, http.StatusForbidden, b.do(http.MethodGet, "/api/admin/pending-users", nil, &failed))
	assert.Zero(t, up.CallCount("/admin/pending-users"), "the gate stops the request before the API")
}

func TestAdminModeration(t *testing.T) {
	b, up, _ := setupServer(t, 2)
	up.Mu.Lock()
	up.Pending = []user.PendingUser{{Id: "p1", Name: "Pat", Email: "pat@example.com"}, {Id: "p2", Name: "Quin", Email: "quin@example.com"}}
	up.Mu.Unlock()

	b.login("admin@example.com")

	var snap struct {
		Pending []user.PendingUser `json:"pending"`
		Results []user.User        `json:"results"`
	}
	require.Equal(t, http.StatusOK, b.do(http.MethodGet, "/api/admin/pending-users", nil, &snap))
	require.Len(t, snap.Pending, 2)

	var failed map[string]any
	assert.Equal(t, http.StatusBadRequest, b.do(http.MethodPost, "/api/admin/pending-users/p1/approve", map[string]string{"role": "user"}, &failed))

	require.Equal(t, http.StatusOK, b.do(http.MethodPost, "/api/admin/pending-users/p1/approve", map[string]string{"role": "employee"}, &snap))
	require.Len(t, snap.Pending, 1)
	assert.Equal(t, "p2", snap.Pending[0].Id)

	require.Equal(t, http.StatusOK, b.do(http.MethodGet, "/api/admin/users?search=uma", nil, &snap))
	require.Len(t, snap.Results, 1)
	require.Equal(t, http.StatusOK, b.do(http.MethodPost, "/api/admin/users/u1/reject", nil, &snap))
	assert.Empty(t, snap.Results)

	require.Equal(t, http.StatusOK, b.do(http.MethodGet, "/api/tenders", nil, nil))
	require.Equal(t, http.StatusOK, b.do(http.MethodPost, "/api/admin/tenders/t1/hide", nil, nil))
	var page tender.Page
	require.Equal(t, http.StatusOK, b.do(http.MethodGet, "/api/tenders", nil, &page))
	require.Len(t, page.Summaries, 1)
	assert.Equal(t, "t2", page.Summaries[0].ID)
}
