// Package session owns the auth token lifecycle: it is created at login,
// read right before every authenticated call, and destroyed at logout or
// when the API answers 401.
package session

import (
	"context"
	serrors "errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"tender_dashboard/internal/client"
	"tender_dashboard/internal/lib/errors"
	"tender_dashboard/internal/lib/logger/sl"
	"tender_dashboard/internal/models/user"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// State is what survives between requests.
type State struct {
	Token string    `json:"token"`
	Role  user.Role `json:"role"`
	Email string    `json:"email"`
}

func (s State) Authenticated() bool {
	return strings.TrimSpace(s.Token) != ""
}

// Store persists one session. Load on an empty store returns a zero State.
type Store interface {
	Load(ctx context.Context) (State, error)
	Save(ctx context.Context, st State) error
	Clear(ctx context.Context) error
}

// API is the part of the tender API the session talks to.
type API interface {
	Login(ctx context.Context, req user.LoginRequest) (client.LoginResult, error)
	Register(ctx context.Context, req user.RegisterRequest) error
	VerifyToken(ctx context.Context) (user.Role, error)
	VerifyTokenWith(ctx context.Context, token string) (user.Role, error)
}

type Session struct {
	log   *slog.Logger
	api   API
	store Store

	mu    sync.Mutex
	hooks []func(ctx context.Context)
}

func New(log *slog.Logger, api API, store Store) *Session {
	return &Session{
		log:   log.With(slog.String("component", "session")),
		api:   api,
		store: store,
	}
}

// OnLogout registers a hook run after every logout, forced or not.
func (s *Session) OnLogout(hook func(ctx context.Context)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks = append(s.hooks, hook)
}

func (s *Session) Login(ctx context.Context, email, password string) (State, error) {
	const op = "session.Login"

	req := user.LoginRequest{Email: strings.TrimSpace(email), Password: password}
	if err := validate.Struct(req); err != nil {
		return State{}, errors.FromValidator(err)
	}

	res, err := s.api.Login(ctx, req)
	if err != nil {
		return State{}, fmt.Errorf("%s: %w", op, err)
	}

	role := res.Role
	if role == user.RoleNone {
		role, err = s.api.VerifyTokenWith(ctx, res.Token)
		if err != nil {
			return State{}, fmt.Errorf("%s: %w", op, err)
		}
	}

	st := State{Token: res.Token, Role: role, Email: req.Email}
	if res.User.Email != "" {
		st.Email = res.User.Email
	}
	if err := s.store.Save(ctx, st); err != nil {
		return State{}, fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("logged in", slog.String("email", st.Email), slog.String("role", st.Role.String()))
	return st, nil
}

func (s *Session) Register(ctx context.Context, req user.RegisterRequest) error {
	const op = "session.Register"

	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	req.EmpId = strings.TrimSpace(req.EmpId)
	if err := validate.Struct(req); err != nil {
		verr := errors.FromValidator(err)
		var ve *errors.ValidationError
		if serrors.As(verr, &ve) {
			for _, f := range ve.Fields {
				if f.Field == "ConfirmPassword" && f.Rule == "eqfield" {
					ve.Message = "passwords do not match"
				}
			}
		}
		return verr
	}

	if err := s.api.Register(ctx, req); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *Session) State(ctx context.Context) State {
	st, err := s.store.Load(ctx)
	if err != nil {
		s.log.Error("failed to load session", sl.Err(err))
		return State{}
	}
	return st
}

// IsAuthenticated reports whether a token is stored. The token is not
// checked against the server.
func (s *Session) IsAuthenticated(ctx context.Context) bool {
	return s.State(ctx).Authenticated()
}

// Token implements client.TokenSource.
func (s *Session) Token(ctx context.Context) string {
	return s.State(ctx).Token
}

func (s *Session) Role(ctx context.Context) user.Role {
	return s.State(ctx).Role
}

// Verify asks the server for the current role and records it.
func (s *Session) Verify(ctx context.Context) (user.Role, error) {
	const op = "session.Verify"

	st := s.State(ctx)
	if !st.Authenticated() {
		return user.RoleNone, &errors.AuthError{Op: op, Status: http.StatusUnauthorized, Message: "not logged in"}
	}

	role, err := s.api.VerifyToken(ctx)
	if err != nil {
		return user.RoleNone, fmt.Errorf("%s: %w", op, err)
	}

	if role != st.Role {
		st.Role = role
		if err := s.store.Save(ctx, st); err != nil {
			return role, fmt.Errorf("%s: %w", op, err)
		}
	}
	return role, nil
}

// Logout clears the stored token and runs the logout hooks. Calling it
// without a session is not an error.
func (s *Session) Logout(ctx context.Context) error {
	const op = "session.Logout"

	err := s.store.Clear(ctx)

	s.mu.Lock()
	hooks := make([]func(ctx context.Context), len(s.hooks))
	copy(hooks, s.hooks)
	s.mu.Unlock()

	for _, hook := range hooks {
		hook(ctx)
	}

	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Unauthorized is the client's 401 callback: the server no longer accepts
// the token, so the session ends.
func (s *Session) Unauthorized(ctx context.Context) {
	if !s.IsAuthenticated(ctx) {
		return
	}
	s.log.Warn("token rejected by server, logging out")
	if err := s.Logout(ctx); err != nil {
		s.log.Error("forced logout failed", sl.Err(err))
	}
}
