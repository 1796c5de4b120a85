package client

import (
	"context"
	serrors "errors"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"tender_dashboard/internal/lib/errors"
	"tender_dashboard/internal/models/tender"
	"tender_dashboard/internal/models/user"
)

const (
	pathLogin       = "/user/login"
	pathRegister    = "/user/register"
	pathVerifyToken = "/user/verify-token"
)

// LoginResult is what a successful login hands back. Role is empty when the
// login response does not carry one.
type LoginResult struct {
	Token string
	Role  user.Role
	User  user.User
}

func (c *Client) Login(ctx context.Context, req user.LoginRequest) (LoginResult, error) {
	const op = "client.Login"

	body, err := c.send(ctx, op, call{
		method: http.MethodPost,
		path:   pathLogin,
		body:   req,
	})
	if err != nil {
		return LoginResult{}, rejected(op, err)
	}

	var payload struct {
		Token string          `json:"token"`
		Role  user.Role       `json:"role"`
		Data  json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return LoginResult{}, &errors.ServerError{Op: op, Status: http.StatusOK, Message: "malformed login response"}
	}

	res := LoginResult{Token: payload.Token, Role: payload.Role}

	// data is the user document in some deployments and absent in others.
	var data struct {
		user.User
		Token string `json:"token"`
	}
	if len(payload.Data) > 0 && json.Unmarshal(payload.Data, &data) == nil {
		res.User = data.User
		if res.Token == "" {
			res.Token = data.Token
		}
		if res.Role == user.RoleNone {
			res.Role = data.Role
		}
	}

	if strings.TrimSpace(res.Token) == "" {
		return LoginResult{}, &errors.AuthError{Op: op, Status: http.StatusOK, Message: "login response carried no token"}
	}
	return res, nil
}

func (c *Client) Register(ctx context.Context, req user.RegisterRequest) error {
	const op = "client.Register"

	// The confirmation never leaves the client.
	wire := struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
		EmpId    string `json:"empId"`
	}{req.Name, req.Email, req.Password, req.EmpId}

	_, err := c.send(ctx, op, call{
		method: http.MethodPost,
		path:   pathRegister,
		body:   wire,
	})
	return rejected(op, err)
}

// rejected reports a 4xx answer to login or registration as an AuthError.
// Deployments answer bad credentials with 400 or 404 as often as with 401.
func rejected(op string, err error) error {
	var se *errors.ServerError
	if !serrors.As(err, &se) || se.Status < 400 || se.Status >= 500 {
		return err
	}
	return &errors.AuthError{Op: op, Status: se.Status, Message: se.Message}
}

// VerifyToken asks the API who the bound session belongs to.
func (c *Client) VerifyToken(ctx context.Context) (user.Role, error) {
	return c.verify(ctx, "client.VerifyToken", "")
}

// VerifyTokenWith checks a token that is not stored yet. A 401 here does not
// trigger the unauthorized hook.
func (c *Client) VerifyTokenWith(ctx context.Context, token string) (user.Role, error) {
	return c.verify(ctx, "client.VerifyTokenWith", token)
}

func (c *Client) verify(ctx context.Context, op, token string) (user.Role, error) {
	body, err := c.send(ctx, op, call{
		method: http.MethodGet,
		path:   pathVerifyToken,
		auth:   true,
		token:  token,
	})
	if err != nil {
		return user.RoleNone, err
	}

	var payload struct {
		Code int       `json:"code"`
		Role user.Role `json:"role"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return user.RoleNone, &errors.ServerError{Op: op, Status: http.StatusOK, Message: "malformed verify response"}
	}
	if payload.Code != 0 && payload.Code != http.StatusOK {
		return user.RoleNone, &errors.AuthError{Op: op, Status: payload.Code, Message: messageOf(body)}
	}
	return payload.Role, nil
}

// CollectionAPI is the server side of one tender collection.
type CollectionAPI struct {
	c          *Client
	name       string
	listPath   string
	addPath    string
	removePath string
	clearPath  string
}

func (c *Client) Wishlist() *CollectionAPI {
	return &CollectionAPI{
		c:          c,
		name:       "wishlist",
		listPath:   "/user/user-wishlist",
		addPath:    "/user/add-to-wishlist",
		removePath: "/user/remove-from-wishlist",
	}
}

func (c *Client) Comparison() *CollectionAPI {
	return &CollectionAPI{
		c:          c,
		name:       "comparison",
		listPath:   "/user/user-comparison",
		addPath:    "/user/add-to-comparison",
		removePath: "/user/remove-from-comparison",
		clearPath:  "/user/remove-all-from-comparison",
	}
}

func (a *CollectionAPI) Name() string { return a.name }

// CanClear reports whether the collection has a bulk clear endpoint.
func (a *CollectionAPI) CanClear() bool { return a.clearPath != "" }

func (a *CollectionAPI) List(ctx context.Context) ([]tender.Tender, error) {
	op := "client." + a.name + ".List"

	body, err := a.c.send(ctx, op, call{
		method: http.MethodGet,
		path:   a.listPath,
		auth:   true,
	})
	if err != nil {
		return nil, err
	}
	return decodeList[tender.Tender](op, body)
}

func (a *CollectionAPI) Add(ctx context.Context, tenderID string) error {
	return a.mutate(ctx, "client."+a.name+".Add", a.addPath, tenderID)
}

func (a *CollectionAPI) Remove(ctx context.Context, tenderID string) error {
	return a.mutate(ctx, "client."+a.name+".Remove", a.removePath, tenderID)
}

func (a *CollectionAPI) Clear(ctx context.Context) error {
	op := "client." + a.name + ".Clear"
	if a.clearPath == "" {
		return &errors.ServerError{Op: op, Status: http.StatusNotImplemented, Message: a.name + " has no clear endpoint"}
	}

	_, err := a.c.send(ctx, op, call{
		method: http.MethodGet,
		path:   a.clearPath,
		auth:   true,
	})
	return err
}

func (a *CollectionAPI) mutate(ctx context.Context, op, path, tenderID string) error {
	_, err := a.c.send(ctx, op, call{
		method: http.MethodGet,
		path:   path,
		auth:   true,
		query:  url.Values{"tenderId": {tenderID}},
	})
	return err
}
