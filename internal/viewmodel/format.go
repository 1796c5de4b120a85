// Package viewmodel turns tender records into display strings: labels,
// abbreviated numbers, long dates, detail attributes and comparison rows.
package viewmodel

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"tender_dashboard/internal/models/tender"
)

// NA marks a missing value.
const NA = "N/A"

const DateLayout = "Monday, January 2, 2006"

var suffixes = []string{"", "K", "M", "B", "T"}

// AbbreviateNumber renders n with a K/M/B/T suffix and at most two
// decimals. Values past trillions keep the T suffix.
func AbbreviateNumber(n float64) string {
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return NA
	}
	if n == 0 {
		return "0"
	}

	tier := 0
	scaled := n
	for math.Abs(scaled) >= 1000 && tier < len(suffixes)-1 {
		scaled /= 1000
		tier++
	}

	rounded := math.Round(scaled*100) / 100
	// 999_999 rounds up to 1000K; promote it to 1M.
	if math.Abs(rounded) >= 1000 && tier < len(suffixes)-1 {
		tier++
		rounded = math.Round(scaled/1000*100) / 100
	}
	if rounded == 0 {
		return "0"
	}
	return strconv.FormatFloat(rounded, 'f', -1, 64) + suffixes[tier]
}

var (
	wordStart     = regexp.MustCompile(`\b\w`)
	abbreviations = regexp.MustCompile(`(?i)\b(id|boq)\b`)
)

// FormatKey turns a record key into a label: "tender_boq_id" becomes
// "Tender BOQ ID".
func FormatKey(key string) string {
	label := strings.ReplaceAll(key, "_", " ")
	label = wordStart.ReplaceAllStringFunc(label, strings.ToUpper)
	label = abbreviations.ReplaceAllStringFunc(label, strings.ToUpper)
	return strings.Join(strings.Fields(label), " ")
}

type Formatter struct {
	Location *time.Location
}

func NewFormatter(loc *time.Location) Formatter {
	if loc == nil {
		loc = time.Local
	}
	return Formatter{Location: loc}
}

// FormatDate renders a date value in the long form. Values that are not
// dates are returned as they are.
func (f Formatter) FormatDate(v any) string {
	s, ok := v.(string)
	if !ok {
		return f.FormatValue("", v)
	}
	if strings.TrimSpace(s) == "" {
		return NA
	}
	ts, err := tender.ParseTime(strings.TrimSpace(s))
	if err != nil {
		return s
	}
	loc := f.Location
	if loc == nil {
		loc = time.Local
	}
	return ts.In(loc).Format(DateLayout)
}

// FormatValue renders the value stored under key. Keys mentioning a date
// are rendered as dates.
func (f Formatter) FormatValue(key string, v any) string {
	if key != "" && strings.Contains(strings.ToLower(key), "date") {
		if _, ok := v.(string); ok {
			return f.FormatDate(v)
		}
	}

	switch val := v.(type) {
	case nil:
		return NA
	case string:
		if strings.TrimSpace(val) == "" {
			return NA
		}
		return val
	case bool:
		if val {
			return "Yes"
		}
		return "No"
	case json.Number:
		n, err := val.Float64()
		if err != nil {
			return val.String()
		}
		return AbbreviateNumber(n)
	}

	if n, ok := tender.AsFloat(v); ok {
		return AbbreviateNumber(n)
	}

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(data)
}

// Attribute is one row of the tender detail view.
type Attribute struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Value string `json:"value"`
}

// AttributesOf lists every displayable field of t in server order. Identity
// and version keys are hidden, and so is the raw submission end date when
// the normalized end date is present.
func (f Formatter) AttributesOf(t tender.Tender) []Attribute {
	hasEndDate := t.Has(tender.KeyEndDate)

	out := make([]Attribute, 0, t.Len())
	for _, field := range t.Fields() {
		switch field.Key {
		case tender.KeyObjectID, tender.KeyID, tender.KeyVersion:
			continue
		case tender.KeySubmissionEnd:
			if hasEndDate {
				continue
			}
		}
		out = append(out, Attribute{
			Key:   field.Key,
			Label: FormatKey(field.Key),
			Value: f.FormatValue(field.Key, field.Value),
		})
	}
	return out
}

// Summary is the short form of a tender used in lists.
type Summary struct {
	ID              string `json:"id"`
	Title           string `json:"title"`
	ReferenceNumber string `json:"referenceNumber"`
	Value           string `json:"value"`
	EndDate         string `json:"endDate"`
	URL             string `json:"url,omitempty"`
}

func (f Formatter) Summarize(t tender.Tender) Summary {
	s := Summary{
		ID:              t.ID(),
		Title:           orNA(t.Title()),
		ReferenceNumber: orNA(t.ReferenceNumber()),
		Value:           NA,
		EndDate:         NA,
		URL:             t.URL(),
	}
	if v, ok := t.Get(tender.KeyValue); ok {
		s.Value = f.FormatValue(tender.KeyValue, v)
	}
	for _, key := range []string{tender.KeyEndDate, tender.KeySubmissionEnd} {
		if v, ok := t.Get(key); ok && v != nil {
			s.EndDate = f.FormatValue(key, v)
			break
		}
	}
	return s
}

func (f Formatter) SummarizeAll(ts []tender.Tender) []Summary {
	out := make([]Summary, 0, len(ts))
	for _, t := range ts {
		out = append(out, f.Summarize(t))
	}
	return out
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return NA
	}
	return s
}
