// Package clienttest runs an in-process tender API for tests.
package clienttest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"slices"
	"strconv"
	"strings"
	"sync"
	"testing"

	"tender_dashboard/internal/models/tender"
	"tender_dashboard/internal/models/user"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
)

type Account struct {
	user.User
	Password string
	Token    string
}

// Upstream is a small stateful tender API. Its fields may be changed
// between requests while holding Mu.
type Upstream struct {
	Mu         sync.Mutex
	Accounts   []Account
	Tenders    []tender.Tender
	Pending    []user.PendingUser
	Hidden     []string
	Wishlist   map[string][]string
	Comparison map[string][]string
	// Fail makes the given path answer with the status.
	Fail  map[string]int
	Calls map[string]int

	srv *httptest.Server
}

// New starts an upstream with an admin, an employee and a plain user, and
// the given tenders. It is closed when the test ends.
func New(t testing.TB, tenders ...tender.Tender) *Upstream {
	u := &Upstream{
		Accounts: []Account{
			{User: user.User{Id: "a1", Name: "Ada", Email: "admin@example.com", Role: user.RoleAdmin}, Password: "secret", Token: "admin-token"},
			{User: user.User{Id: "e1", Name: "Eve", Email: "emp@example.com", Role: user.RoleEmployee}, Password: "secret", Token: "emp-token"},
			{User: user.User{Id: "u1", Name: "Uma", Email: "user@example.com", Role: user.RoleUser}, Password: "secret", Token: "user-token"},
		},
		Tenders:    tenders,
		Wishlist:   make(map[string][]string),
		Comparison: make(map[string][]string),
		Fail:       make(map[string]int),
		Calls:      make(map[string]int),
	}
	u.srv = httptest.NewServer(u.router())
	t.Cleanup(u.srv.Close)
	return u
}

func (u *Upstream) URL() string { return u.srv.URL }

// CallCount returns how many requests reached path.
func (u *Upstream) CallCount(path string) int {
	u.Mu.Lock()
	defer u.Mu.Unlock()
	return u.Calls[path]
}

// SampleTenders builds n tenders t1..tn with descending values.
func SampleTenders(n int) []tender.Tender {
	out := make([]tender.Tender, 0, n)
	for i := 1; i <= n; i++ {
		id := "t" + strconv.Itoa(i)
		out = append(out, tender.New(
			tender.Field{Key: tender.KeyObjectID, Value: id},
			tender.Field{Key: tender.KeyTitle, Value: "Tender " + id},
			tender.Field{Key: tender.KeyValue, Value: float64(1000000 * (n - i + 1))},
			tender.Field{Key: "location", Value: "Pune"},
		))
	}
	return out
}

func (u *Upstream) router() chi.Router {
	r := chi.NewRouter()
	r.Use(u.count)

	r.Route("/dashboard", func(r chi.Router) {
		r.Get("/all-tenders", u.listTenders)
		r.Get("/search-tenders", u.listTenders)
		r.Get("/highlight-tenders", u.highlights)
	})
	r.Route("/user", func(r chi.Router) {
		r.Post("/login", u.login)
		r.Post("/register", u.register)
		r.Get("/verify-token", u.verify)
		r.Get("/user-wishlist", u.authed(u.list(u.wishlist)))
		r.Get("/add-to-wishlist", u.authed(u.add(u.wishlist)))
		r.Get("/remove-from-wishlist", u.authed(u.remove(u.wishlist)))
		r.Get("/user-comparison", u.authed(u.list(u.comparison)))
		r.Get("/add-to-comparison", u.authed(u.add(u.comparison)))
		r.Get("/remove-from-comparison", u.authed(u.remove(u.comparison)))
		r.Get("/remove-all-from-comparison", u.authed(u.clearComparison))
	})
	r.Route("/admin", func(r chi.Router) {
		r.Get("/pending-users", u.admin(u.pendingUsers))
		r.Post("/approve-user", u.admin(u.approve))
		r.Get("/reject-user", u.admin(u.reject))
		r.Get("/search-user", u.admin(u.searchUsers))
		r.Get("/hide-tender", u.admin(u.hide))
	})
	return r
}

func (u *Upstream) count(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u.Mu.Lock()
		u.Calls[r.URL.Path]++
		status := u.Fail[r.URL.Path]
		u.Mu.Unlock()

		if status != 0 {
			fail(w, r, status, "injected failure")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func fail(w http.ResponseWriter, r *http.Request, status int, message string) {
	render.Status(r, status)
	render.JSON(w, r, map[string]string{"message": message})
}

func (u *Upstream) account(r *http.Request) (Account, bool) {
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	u.Mu.Lock()
	defer u.Mu.Unlock()
	for _, a := range u.Accounts {
		if token != "" && a.Token == token {
			return a, true
		}
	}
	return Account{}, false
}

func (u *Upstream) authed(next func(w http.ResponseWriter, r *http.Request, a Account)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, ok := u.account(r)
		if !ok {
			fail(w, r, http.StatusUnauthorized, "invalid token")
			return
		}
		next(w, r, a)
	}
}

func (u *Upstream) admin(next http.HandlerFunc) http.HandlerFunc {
	return u.authed(func(w http.ResponseWriter, r *http.Request, a Account) {
		if a.Role != user.RoleAdmin {
			fail(w, r, http.StatusForbidden, "admins only")
			return
		}
		next(w, r)
	})
}

func (u *Upstream) visible() []tender.Tender {
	out := make([]tender.Tender, 0, len(u.Tenders))
	for _, t := range u.Tenders {
		if !slices.Contains(u.Hidden, t.ID()) {
			out = append(out, t)
		}
	}
	return out
}

func (u *Upstream) listTenders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	quantity, _ := strconv.Atoi(q.Get("quantity"))
	search := strings.ToLower(q.Get("search"))

	u.Mu.Lock()
	matched := make([]tender.Tender, 0)
	for _, t := range u.visible() {
		if search == "" || strings.Contains(strings.ToLower(t.Title()), search) {
			matched = append(matched, t)
		}
	}
	u.Mu.Unlock()

	page, quantity = tender.ClampPositive(page), tender.ClampPositive(quantity)
	start := min((page-1)*quantity, len(matched))
	end := min(start+quantity, len(matched))
	render.JSON(w, r, map[string]any{"data": matched[start:end]})
}

func (u *Upstream) highlights(w http.ResponseWriter, r *http.Request) {
	u.Mu.Lock()
	vis := u.visible()
	u.Mu.Unlock()

	h := tender.Highlights{
		ReachingDeadline: vis[:min(1, len(vis))],
		BestValued:       vis[:min(2, len(vis))],
		ByWorks:          []tender.WorkGroup{{Name: "Civil", Count: len(vis), Docs: vis}},
	}
	render.JSON(w, r, map[string]any{"data": h})
}

func (u *Upstream) login(w http.ResponseWriter, r *http.Request) {
	var req user.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		fail(w, r, http.StatusBadRequest, "bad body")
		return
	}

	u.Mu.Lock()
	defer u.Mu.Unlock()
	for _, a := range u.Accounts {
		if a.Email == req.Email && a.Password == req.Password {
			render.JSON(w, r, map[string]any{"token": a.Token, "role": a.Role, "data": a.User})
			return
		}
	}
	fail(w, r, http.StatusUnauthorized, "Invalid credentials")
}

func (u *Upstream) register(w http.ResponseWriter, r *http.Request) {
	var req map[string]string
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		fail(w, r, http.StatusBadRequest, "bad body")
		return
	}

	u.Mu.Lock()
	defer u.Mu.Unlock()
	id := "p" + strconv.Itoa(len(u.Pending)+1)
	u.Pending = append(u.Pending, user.PendingUser{Id: id, Name: req["name"], Email: req["email"]})
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, map[string]string{"message": "registered"})
}

func (u *Upstream) verify(w http.ResponseWriter, r *http.Request) {
	a, ok := u.account(r)
	if !ok {
		render.JSON(w, r, map[string]any{"code": http.StatusUnauthorized, "message": "invalid token"})
		return
	}
	render.JSON(w, r, map[string]any{"code": http.StatusOK, "role": a.Role})
}

func (u *Upstream) wishlist() map[string][]string   { return u.Wishlist }
func (u *Upstream) comparison() map[string][]string { return u.Comparison }

type collectionOf func() map[string][]string

func (u *Upstream) members(ids []string) []tender.Tender {
	out := make([]tender.Tender, 0, len(ids))
	for _, id := range ids {
		if t, ok := tender.Find(u.Tenders, id); ok {
			out = append(out, t)
		}
	}
	return out
}

func (u *Upstream) list(of collectionOf) func(http.ResponseWriter, *http.Request, Account) {
	return func(w http.ResponseWriter, r *http.Request, a Account) {
		u.Mu.Lock()
		items := u.members(of()[a.Token])
		u.Mu.Unlock()
		render.JSON(w, r, map[string]any{"data": items})
	}
}

func (u *Upstream) add(of collectionOf) func(http.ResponseWriter, *http.Request, Account) {
	return func(w http.ResponseWriter, r *http.Request, a Account) {
		id := r.URL.Query().Get("tenderId")
		u.Mu.Lock()
		defer u.Mu.Unlock()
		m := of()
		if !slices.Contains(m[a.Token], id) {
			m[a.Token] = append(m[a.Token], id)
		}
		render.JSON(w, r, map[string]string{"message": "added"})
	}
}

func (u *Upstream) remove(of collectionOf) func(http.ResponseWriter, *http.Request, Account) {
	return func(w http.ResponseWriter, r *http.Request, a Account) {
		id := r.URL.Query().Get("tenderId")
		u.Mu.Lock()
		defer u.Mu.Unlock()
		m := of()
		m[a.Token] = slices.DeleteFunc(m[a.Token], func(s string) bool { return s == id })
		render.JSON(w, r, map[string]string{"message": "removed"})
	}
}

func (u *Upstream) clearComparison(w http.ResponseWriter, r *http.Request, a Account) {
	u.Mu.Lock()
	defer u.Mu.Unlock()
	delete(u.Comparison, a.Token)
	render.JSON(w, r, map[string]string{"message": "cleared"})
}

func (u *Upstream) pendingUsers(w http.ResponseWriter, r *http.Request) {
	u.Mu.Lock()
	defer u.Mu.Unlock()
	render.JSON(w, r, map[string]any{"data": append([]user.PendingUser{}, u.Pending...)})
}

func (u *Upstream) dropPending(id string) bool {
	n := len(u.Pending)
	u.Pending = slices.DeleteFunc(u.Pending, func(p user.PendingUser) bool { return p.Id == id })
	return len(u.Pending) != n
}

func (u *Upstream) approve(w http.ResponseWriter, r *http.Request) {
	var req user.ApproveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		fail(w, r, http.StatusBadRequest, "bad body")
		return
	}

	u.Mu.Lock()
	defer u.Mu.Unlock()
	if !u.dropPending(req.Id) {
		fail(w, r, http.StatusNotFound, "no such user")
		return
	}
	render.JSON(w, r, map[string]string{"message": "approved"})
}

func (u *Upstream) reject(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")

	u.Mu.Lock()
	defer u.Mu.Unlock()
	dropped := u.dropPending(id)
	n := len(u.Accounts)
	u.Accounts = slices.DeleteFunc(u.Accounts, func(a Account) bool { return a.Id == id })
	if !dropped && len(u.Accounts) == n {
		fail(w, r, http.StatusNotFound, "no such user")
		return
	}
	render.JSON(w, r, map[string]string{"message": "rejected"})
}

func (u *Upstream) searchUsers(w http.ResponseWriter, r *http.Request) {
	term := strings.ToLower(r.URL.Query().Get("search"))

	u.Mu.Lock()
	defer u.Mu.Unlock()
	found := make([]user.User, 0)
	for _, a := range u.Accounts {
		if strings.Contains(strings.ToLower(a.Name), term) || strings.Contains(strings.ToLower(a.Email), term) {
			found = append(found, a.User)
		}
	}
	render.JSON(w, r, map[string]any{"data": found})
}

func (u *Upstream) hide(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("tenderId")

	u.Mu.Lock()
	defer u.Mu.Unlock()
	if !slices.Contains(u.Hidden, id) {
		u.Hidden = append(u.Hidden, id)
	}
	render.JSON(w, r, map[string]string{"message": "hidden"})
}
