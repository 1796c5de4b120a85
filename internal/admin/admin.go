// Package admin is the state behind the admin panel: users waiting for
// approval, the user search, and tender hiding.
package admin

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"tender_dashboard/internal/lib/errors"
	"tender_dashboard/internal/lib/logger/sl"
	"tender_dashboard/internal/models/user"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

type API interface {
	PendingUsers(ctx context.Context) ([]user.PendingUser, error)
	ApproveUser(ctx context.Context, req user.ApproveRequest) error
	RejectUser(ctx context.Context, id string) error
	SearchUsers(ctx context.Context, term string) ([]user.User, error)
	HideTender(ctx context.Context, tenderID string) error
}

// Refresher re-fetches the tender page after a tender is hidden.
type Refresher interface {
	Refresh(ctx context.Context) error
}

type Moderation struct {
	log     *slog.Logger
	api     API
	tenders Refresher

	mu      sync.Mutex
	pending []user.PendingUser
	results []user.User
	term    string
	err     error
}

func New(log *slog.Logger, api API, tenders Refresher) *Moderation {
	return &Moderation{
		log:     log.With(slog.String("component", "admin")),
		api:     api,
		tenders: tenders,
		pending: make([]user.PendingUser, 0),
		results: make([]user.User, 0),
	}
}

func (m *Moderation) ListPendingUsers(ctx context.Context) ([]user.PendingUser, error) {
	const op = "admin.ListPendingUsers"

	users, err := m.api.PendingUsers(ctx)
	if err != nil {
		return nil, m.fail(op, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending = users
	m.err = nil
	return append(make([]user.PendingUser, 0, len(users)), users...), nil
}

// Approve grants role to a pending user and drops them from the local list
// without a re-fetch.
func (m *Moderation) Approve(ctx context.Context, id string, role user.Role) error {
	const op = "admin.Approve"

	req := user.ApproveRequest{Id: strings.TrimSpace(id), Role: role}
	if err := validate.Struct(req); err != nil {
		return errors.FromValidator(err)
	}

	if err := m.api.ApproveUser(ctx, req); err != nil {
		return m.fail(op, err)
	}

	m.dropPending(req.Id)
	m.log.Info("user approved", slog.String("user", req.Id), slog.String("role", req.Role.String()))
	return nil
}

// Reject removes a user. They leave both the pending list and the current
// search results.
func (m *Moderation) Reject(ctx context.Context, id string) error {
	const op = "admin.Reject"

	id = strings.TrimSpace(id)
	if id == "" {
		return errors.NewValidationError("user id is required")
	}

	if err := m.api.RejectUser(ctx, id); err != nil {
		return m.fail(op, err)
	}

	m.dropPending(id)
	m.mu.Lock()
	kept := m.results[:0:0]
	for _, u := range m.results {
		if u.Id != id {
			kept = append(kept, u)
		}
	}
	m.results = kept
	m.mu.Unlock()

	m.log.Info("user rejected", slog.String("user", id))
	return nil
}

// SearchUsers looks users up by term. An empty term sends nothing and
// keeps the previous results.
func (m *Moderation) SearchUsers(ctx context.Context, term string) ([]user.User, error) {
	const op = "admin.SearchUsers"

	term = strings.TrimSpace(term)
	if term == "" {
		return m.Results(), nil
	}

	users, err := m.api.SearchUsers(ctx, term)
	if err != nil {
		return m.Results(), m.fail(op, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.results = users
	m.term = term
	m.err = nil
	return append(make([]user.User, 0, len(users)), users...), nil
}

// HideTender hides a tender server side and then reloads the tender page.
func (m *Moderation) HideTender(ctx context.Context, tenderID string) error {
	const op = "admin.HideTender"

	tenderID = strings.TrimSpace(tenderID)
	if tenderID == "" {
		return errors.NewValidationError("tender id is required")
	}

	if err := m.api.HideTender(ctx, tenderID); err != nil {
		return m.fail(op, err)
	}
	m.log.Info("tender hidden", slog.String("tender", tenderID))

	if m.tenders == nil {
		return nil
	}
	if err := m.tenders.Refresh(ctx); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (m *Moderation) Pending() []user.PendingUser {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append(make([]user.PendingUser, 0, len(m.pending)), m.pending...)
}

func (m *Moderation) Results() []user.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append(make([]user.User, 0, len(m.results)), m.results...)
}

type Snapshot struct {
	Pending    []user.PendingUser `json:"pending"`
	Results    []user.User        `json:"results"`
	SearchTerm string             `json:"searchTerm"`
	Error      string             `json:"error,omitempty"`
}

func (m *Moderation) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := Snapshot{
		Pending:    append(make([]user.PendingUser, 0, len(m.pending)), m.pending...),
		Results:    append(make([]user.User, 0, len(m.results)), m.results...),
		SearchTerm: m.term,
	}
	if m.err != nil {
		s.Error = m.err.Error()
	}
	return s
}

// Reset forgets everything; used on logout.
func (m *Moderation) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending = make([]user.PendingUser, 0)
	m.results = make([]user.User, 0)
	m.term = ""
	m.err = nil
}

func (m *Moderation) dropPending(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.pending[:0:0]
	for _, u := range m.pending {
		if u.Id != id {
			kept = append(kept, u)
		}
	}
	m.pending = kept
}

// fail records err as the view error.
func (m *Moderation) fail(op string, err error) error {
	m.mu.Lock()
	m.err = err
	m.mu.Unlock()
	m.log.Error("admin action failed", slog.String("op", op), sl.Err(err))
	return fmt.Errorf("%s: %w", op, err)
}
