package admin

import (
	"context"
	"encoding/json"
	serrors "errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"tender_dashboard/internal/client"
	"tender_dashboard/internal/lib/errors"
	"tender_dashboard/internal/lib/logger/sl"
	"tender_dashboard/internal/models/user"
	"tender_dashboard/internal/session"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAPI struct {
	pending  []user.PendingUser
	users    []user.User
	err      error
	searches int
	hidden   []string
	approved []user.ApproveRequest
	rejected []string
}

func (f *fakeAPI) PendingUsers(context.Context) ([]user.PendingUser, error) {
	return f.pending, f.err
}

func (f *fakeAPI) ApproveUser(_ context.Context, req user.ApproveRequest) error {
	if f.err != nil {
		return f.err
	}
	f.approved = append(f.approved, req)
	return nil
}

func (f *fakeAPI) RejectUser(_ context.Context, id string) error {
	if f.err != nil {
		return f.err
	}
	f.rejected = append(f.rejected, id)
	return nil
}

func (f *fakeAPI) SearchUsers(context.Context, string) ([]user.User, error) {
	f.searches++
	return f.users, f.err
}

func (f *fakeAPI) HideTender(_ context.Context, id string) error {
	if f.err != nil {
		return f.err
	}
	f.hidden = append(f.hidden, id)
	return nil
}

type countingRefresher struct{ n int }

func (r *countingRefresher) Refresh(context.Context) error {
	r.n++
	return nil
}

func pendingFixture() []user.PendingUser {
	return []user.PendingUser{
		{Id: "u1", Name: "Ann", Email: "ann@example.com"},
		{Id: "u2", Name: "Bob", Email: "bob@example.com"},
	}
}

func TestApprove_RemovesLocallyWithoutRefetch(t *testing.T) {
	api := &fakeAPI{pending: pendingFixture()}
	m := New(sl.Discard(), api, nil)
	ctx := context.Background()

	_, err := m.ListPendingUsers(ctx)
	require.NoError(t, err)

	api.pending = nil // a refetch would now come back empty
	require.NoError(t, m.Approve(ctx, "u1", user.RoleEmployee))
	assert.Equal(t, []user.PendingUser{{Id: "u2", Name: "Bob", Email: "bob@example.com"}}, m.Pending())
	assert.Equal(t, []user.ApproveRequest{{Id: "u1", Role: user.RoleEmployee}}, api.approved)
}

func TestApprove_RejectsUnknownRole(t *testing.T) {
	api := &fakeAPI{pending: pendingFixture()}
	m := New(sl.Discard(), api, nil)

	err := m.Approve(context.Background(), "u1", user.RoleUser)
	var ve *errors.ValidationError
	require.True(t, serrors.As(err, &ve))
	assert.Empty(t, api.approved)
}

func TestFailureKeepsListAndSetsError(t *testing.T) {
	api := &fakeAPI{pending: pendingFixture()}
	m := New(sl.Discard(), api, nil)
	ctx := context.Background()

	_, err := m.ListPendingUsers(ctx)
	require.NoError(t, err)

	api.err = &errors.ServerError{Op: "client.RejectUser", Status: http.StatusInternalServerError}
	require.Error(t, m.Reject(ctx, "u1"))
	assert.Len(t, m.Pending(), 2)
	assert.NotEmpty(t, m.Snapshot().Error)
}

func TestReject_DropsFromPendingAndResults(t *testing.T) {
	api := &fakeAPI{
		pending: pendingFixture(),
		users:   []user.User{{Id: "u1", Name: "Ann"}, {Id: "u3", Name: "Cid"}},
	}
	m := New(sl.Discard(), api, nil)
	ctx := context.Background()

	_, err := m.ListPendingUsers(ctx)
	require.NoError(t, err)
	_, err = m.SearchUsers(ctx, "a")
	require.NoError(t, err)

	require.NoError(t, m.Reject(ctx, "u1"))
	assert.Equal(t, []string{"u1"}, api.rejected)
	assert.Len(t, m.Pending(), 1)
	require.Len(t, m.Results(), 1)
	assert.Equal(t, "u3", m.Results()[0].Id)

	require.Error(t, m.Reject(ctx, " "))
}

func TestSearchUsers_EmptyTermKeepsResults(t *testing.T) {
	api := &fakeAPI{users: []user.User{{Id: "u1", Name: "Ann"}}}
	m := New(sl.Discard(), api, nil)
	ctx := context.Background()

	got, err := m.SearchUsers(ctx, "ann")
	require.NoError(t, err)
	require.Len(t, got, 1)

	got, err = m.SearchUsers(ctx, "   ")
	require.NoError(t, err)
	assert.Equal(t, 1, api.searches, "empty term sends nothing")
	assert.Len(t, got, 1)
	assert.Equal(t, "ann", m.Snapshot().SearchTerm)
}

func TestHideTender_RefreshesPage(t *testing.T) {
	api := &fakeAPI{}
	r := &countingRefresher{}
	m := New(sl.Discard(), api, r)
	ctx := context.Background()

	require.NoError(t, m.HideTender(ctx, "t1"))
	assert.Equal(t, []string{"t1"}, api.hidden)
	assert.Equal(t, 1, r.n)

	api.err = assert.AnError
	require.Error(t, m.HideTender(ctx, "t2"))
	assert.Equal(t, 1, r.n, "no refresh after a failed hide")
}

// upstream is a minimal tender API holding one admin account.
type upstream struct {
	mu       sync.Mutex
	pending  []user.PendingUser
	authSeen []string
}

func (u *upstream) router() chi.Router {
	r := chi.NewRouter()
	r.Post("/user/login", func(w http.ResponseWriter, r *http.Request) {
		var req user.LoginRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Email != "admin@example.com" || req.Password != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"message": "Invalid credentials"})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"token": "admin-token", "data": map[string]any{"email": req.Email}})
	})
	r.Get("/user/verify-token", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer admin-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"code": 200, "role": "admin"})
	})
	r.Get("/admin/pending-users", func(w http.ResponseWriter, r *http.Request) {
		u.mu.Lock()
		defer u.mu.Unlock()
		u.authSeen = append(u.authSeen, r.Header.Get("Authorization"))
		if r.Header.Get("Authorization") != "Bearer admin-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(u.pending)
	})
	r.Post("/admin/approve-user", func(w http.ResponseWriter, r *http.Request) {
		u.mu.Lock()
		defer u.mu.Unlock()
		u.authSeen = append(u.authSeen, r.Header.Get("Authorization"))
		var req user.ApproveRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		kept := u.pending[:0:0]
		for _, p := range u.pending {
			if p.Id != req.Id {
				kept = append(kept, p)
			}
		}
		u.pending = kept
		_ = json.NewEncoder(w).Encode(map[string]string{"message": "approved"})
	})
	return r
}

func TestLoginListApproveFlow(t *testing.T) {
	up := &upstream{pending: pendingFixture()}
	srv := httptest.NewServer(up.router())
	t.Cleanup(srv.Close)

	log := sl.Discard()
	api := client.New(log, client.Config{BaseURL: srv.URL, Timeout: 2 * time.Second})
	store := session.NewFileStore(filepath.Join(t.TempDir(), "session.json"))
	sess := session.New(log, api, store)
	api.Bind(sess, sess.Unauthorized)

	ctx := context.Background()
	st, err := sess.Login(ctx, "admin@example.com", "secret")
	require.NoError(t, err)
	assert.Equal(t, user.RoleAdmin, st.Role, "role comes from the server")

	persisted, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "admin-token", persisted.Token)

	m := New(log, api, nil)
	users, err := m.ListPendingUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 2)

	require.NoError(t, m.Approve(ctx, "u1", user.RoleEmployee))
	assert.Equal(t, []user.PendingUser{{Id: "u2", Name: "Bob", Email: "bob@example.com"}}, m.Pending())

	up.mu.Lock()
	defer up.mu.Unlock()
	assert.Equal(t, []string{"Bearer admin-token", "Bearer admin-token"}, up.authSeen)
}

func TestUnauthorizedForcesLogout(t *testing.T) {
	up := &upstream{pending: pendingFixture()}
	srv := httptest.NewServer(up.router())
	t.Cleanup(srv.Close)

	log := sl.Discard()
	api := client.New(log, client.Config{BaseURL: srv.URL, Timeout: 2 * time.Second})
	store := session.NewFileStore(filepath.Join(t.TempDir(), "session.json"))
	sess := session.New(log, api, store)
	api.Bind(sess, sess.Unauthorized)

	ctx := context.Background()
	require.NoError(t, store.Save(ctx, session.State{Token: "revoked", Role: user.RoleAdmin}))

	m := New(log, api, nil)
	_, err := m.ListPendingUsers(ctx)
	require.True(t, errors.IsUnauthorized(err))
	assert.False(t, sess.IsAuthenticated(ctx))
}
