package tender

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

type SortField string

const (
	SortByTitle           SortField = "tender_title"
	SortByValue           SortField = "tender_value"
	SortBySubmissionEnd   SortField = "bid_submission_end_date"
	SortByEndDate         SortField = "bid_end_date"
	SortByReferenceNumber SortField = "tender_reference_number"
	SortByTenderID        SortField = "tender_id"
	SortByURL             SortField = "tender_url"
)

var sortFields = []SortField{
	SortByTitle,
	SortByValue,
	SortBySubmissionEnd,
	SortByEndDate,
	SortByReferenceNumber,
	SortByTenderID,
	SortByURL,
}

func SortFields() []SortField {
	out := make([]SortField, len(sortFields))
	copy(out, sortFields)
	return out
}

func ParseSortField(s string) (SortField, error) {
	for _, f := range sortFields {
		if string(f) == s {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown sort field %q", s)
}

type SortDirection string

const (
	Ascending  SortDirection = "asc"
	Descending SortDirection = "desc"
)

func ParseSortDirection(s string) (SortDirection, error) {
	switch SortDirection(strings.ToLower(s)) {
	case Ascending:
		return Ascending, nil
	case Descending:
		return Descending, nil
	}
	return "", fmt.Errorf("unknown sort direction %q", s)
}

const (
	DefaultQuantity = 20
	DefaultSortBy   = SortByValue
	DefaultSorting  = Descending
)

// Query is the state of one tender list view.
type Query struct {
	SearchTerm string        `json:"search"`
	Page       int           `json:"page" validate:"min=1"`
	Quantity   int           `json:"quantity" validate:"min=1"`
	SortBy     SortField     `json:"sortBy" validate:"required"`
	Sorting    SortDirection `json:"sorting" validate:"required,oneof=asc desc"`
}

func DefaultQuery() Query {
	return Query{
		Page:     1,
		Quantity: DefaultQuantity,
		SortBy:   DefaultSortBy,
		Sorting:  DefaultSorting,
	}
}

// Normalized clamps paging values to 1.
func (q Query) Normalized() Query {
	q.Page = ClampPositive(q.Page)
	q.Quantity = ClampPositive(q.Quantity)
	return q
}

// Values encodes the query the way the tender API expects it. The search
// term is only included when withSearch is set.
func (q Query) Values(withSearch bool) url.Values {
	q = q.Normalized()
	v := url.Values{}
	if withSearch {
		v.Set("search", q.SearchTerm)
	}
	v.Set("page", strconv.Itoa(q.Page))
	v.Set("quantity", strconv.Itoa(q.Quantity))
	v.Set("sorting", string(q.Sorting))
	v.Set("sortBy", string(q.SortBy))
	return v
}

func ClampPositive(n int) int {
	if n < 1 {
		return 1
	}
	return n
}

const maxInput = 1 << 31

// ParsePositive turns user input into a page or quantity. The leading
// integer is used ("12abc" is 12, "3.7" is 3), it is floored at 1, and input
// without a leading integer becomes 1.
func ParsePositive(raw string) int {
	raw = strings.TrimSpace(raw)
	end := 0
	if end < len(raw) && (raw[end] == '-' || raw[end] == '+') {
		end++
	}
	digits := end
	for end < len(raw) && raw[end] >= '0' && raw[end] <= '9' {
		end++
	}
	if end == digits {
		return 1
	}
	n, err := strconv.ParseInt(raw[:end], 10, 64)
	if err != nil || n > maxInput {
		if strings.HasPrefix(raw, "-") {
			return 1
		}
		return maxInput
	}
	return ClampPositive(int(n))
}
