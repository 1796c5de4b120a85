package client

import (
	"context"
	"net/http"

	"tender_dashboard/internal/models/tender"
)

const (
	pathAllTenders       = "/dashboard/all-tenders"
	pathSearchTenders    = "/dashboard/search-tenders"
	pathHighlightTenders = "/dashboard/highlight-tenders"
)

func (c *Client) ListTenders(ctx context.Context, q tender.Query) ([]tender.Tender, error) {
	const op = "client.ListTenders"

	body, err := c.send(ctx, op, call{
		method: http.MethodGet,
		path:   pathAllTenders,
		query:  q.Values(false),
	})
	if err != nil {
		return nil, err
	}
	return decodeList[tender.Tender](op, body)
}

func (c *Client) SearchTenders(ctx context.Context, q tender.Query) ([]tender.Tender, error) {
	const op = "client.SearchTenders"

	body, err := c.send(ctx, op, call{
		method: http.MethodGet,
		path:   pathSearchTenders,
		query:  q.Values(true),
	})
	if err != nil {
		return nil, err
	}
	return decodeList[tender.Tender](op, body)
}

func (c *Client) Highlights(ctx context.Context) (tender.Highlights, error) {
	const op = "client.Highlights"

	body, err := c.send(ctx, op, call{
		method: http.MethodGet,
		path:   pathHighlightTenders,
	})
	if err != nil {
		return tender.Highlights{}, err
	}

	var h tender.Highlights
	if err := decodeData(op, body, &h); err != nil {
		return tender.Highlights{}, err
	}
	return h, nil
}
