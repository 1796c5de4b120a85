package client

import (
	"context"
	"net/http"
	"net/url"

	"tender_dashboard/internal/models/user"
)

const (
	pathPendingUsers = "/admin/pending-users"
	pathApproveUser  = "/admin/approve-user"
	pathRejectUser   = "/admin/reject-user"
	pathSearchUser   = "/admin/search-user"
	pathHideTender   = "/admin/hide-tender"
)

func (c *Client) PendingUsers(ctx context.Context) ([]user.PendingUser, error) {
	const op = "client.PendingUsers"

	body, err := c.send(ctx, op, call{
		method: http.MethodGet,
		path:   pathPendingUsers,
		auth:   true,
	})
	if err != nil {
		return nil, err
	}
	return decodeList[user.PendingUser](op, body)
}

func (c *Client) ApproveUser(ctx context.Context, req user.ApproveRequest) error {
	const op = "client.ApproveUser"

	_, err := c.send(ctx, op, call{
		method: http.MethodPost,
		path:   pathApproveUser,
		auth:   true,
		body:   req,
	})
	return err
}

func (c *Client) RejectUser(ctx context.Context, id string) error {
	const op = "client.RejectUser"

	_, err := c.send(ctx, op, call{
		method: http.MethodGet,
		path:   pathRejectUser,
		auth:   true,
		query:  url.Values{"id": {id}},
	})
	return err
}

func (c *Client) SearchUsers(ctx context.Context, term string) ([]user.User, error) {
	const op = "client.SearchUsers"

	body, err := c.send(ctx, op, call{
		method: http.MethodGet,
		path:   pathSearchUser,
		auth:   true,
		query:  url.Values{"search": {term}},
	})
	if err != nil {
		return nil, err
	}
	return decodeList[user.User](op, body)
}

func (c *Client) HideTender(ctx context.Context, tenderID string) error {
	const op = "client.HideTender"

	_, err := c.send(ctx, op, call{
		method: http.MethodGet,
		path:   pathHideTender,
		auth:   true,
		query:  url.Values{"tenderId": {tenderID}},
	})
	return err
}
