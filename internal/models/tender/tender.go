package tender

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Well-known keys of a tender record as served by the API.
const (
	KeyObjectID        = "_id"
	KeyID              = "id"
	KeyVersion         = "__v"
	KeyTenderID        = "tender_id"
	KeyTitle           = "tender_title"
	KeyReferenceNumber = "tender_reference_number"
	KeyValue           = "tender_value"
	KeyEndDate         = "bid_end_date"
	KeySubmissionEnd   = "bid_submission_end_date"
	KeyURL             = "tender_url"
)

type Field struct {
	Key   string
	Value any
}

// Tender is a record whose attribute set is decided by the server. Fields
// keep the order in which the server sent them.
type Tender struct {
	fields []Field
	index  map[string]int
}

func New(fields ...Field) Tender {
	var t Tender
	for _, f := range fields {
		t.set(f.Key, f.Value)
	}
	return t
}

// Ref builds a tender that only carries an id.
func Ref(id string) Tender {
	return New(Field{Key: KeyObjectID, Value: id})
}

// With returns a copy of t with key set to value. t itself is unchanged.
func (t Tender) With(key string, value any) Tender {
	out := Tender{
		fields: make([]Field, len(t.fields), len(t.fields)+1),
		index:  make(map[string]int, len(t.index)+1),
	}
	copy(out.fields, t.fields)
	for k, i := range t.index {
		out.index[k] = i
	}
	out.set(key, value)
	return out
}

// set writes in place. Only a Tender under construction may use it.
func (t *Tender) set(key string, value any) {
	if t.index == nil {
		t.index = make(map[string]int)
	}
	if i, ok := t.index[key]; ok {
		t.fields[i].Value = value
		return
	}
	t.index[key] = len(t.fields)
	t.fields = append(t.fields, Field{Key: key, Value: value})
}

func (t Tender) Get(key string) (any, bool) {
	i, ok := t.index[key]
	if !ok {
		return nil, false
	}
	return t.fields[i].Value, true
}

func (t Tender) Has(key string) bool {
	_, ok := t.index[key]
	return ok
}

func (t Tender) Keys() []string {
	keys := make([]string, len(t.fields))
	for i, f := range t.fields {
		keys[i] = f.Key
	}
	return keys
}

func (t Tender) Fields() []Field {
	out := make([]Field, len(t.fields))
	copy(out, t.fields)
	return out
}

func (t Tender) Len() int { return len(t.fields) }

func (t Tender) ID() string {
	if s := t.String(KeyObjectID); s != "" {
		return s
	}
	return t.String(KeyID)
}

func (t Tender) Title() string           { return t.String(KeyTitle) }
func (t Tender) ReferenceNumber() string { return t.String(KeyReferenceNumber) }
func (t Tender) URL() string             { return t.String(KeyURL) }

func (t Tender) Value() (float64, bool) {
	v, ok := t.Get(KeyValue)
	if !ok {
		return 0, false
	}
	return AsFloat(v)
}

func (t Tender) EndDate() (time.Time, bool) {
	for _, key := range []string{KeyEndDate, KeySubmissionEnd} {
		v, ok := t.Get(key)
		if !ok {
			continue
		}
		s, ok := v.(string)
		if !ok {
			continue
		}
		if ts, err := ParseTime(s); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

// String returns the value under key rendered as text; numbers keep their
// shortest representation. Missing keys and nulls give "".
func (t Tender) String(key string) string {
	v, ok := t.Get(key)
	if !ok || v == nil {
		return ""
	}
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return fmt.Sprint(val)
	}
}

func (t *Tender) UnmarshalJSON(data []byte) error {
	const op = "models.tender.UnmarshalJSON"

	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("%s: expected object, got %v", op, tok)
	}

	*t = Tender{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("%s: unexpected key %v", op, tok)
		}
		var value any
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("%s: field %q: %w", op, key, err)
		}
		t.set(key, value)
	}

	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (t Tender) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range t.fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(f.Key)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		value, err := json.Marshal(f.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// AsFloat converts the numeric shapes a decoded JSON value can take.
func AsFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"02-Jan-2006 03:04 PM",
	"02-Jan-2006",
}

// ParseTime accepts the date shapes the tender API has been seen to send.
func ParseTime(s string) (time.Time, error) {
	var lastErr error
	for _, layout := range timeLayouts {
		ts, err := time.Parse(layout, s)
		if err == nil {
			return ts, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

// WorkGroup is one "tenders by works" bucket of the highlights view.
type WorkGroup struct {
	Name  string   `json:"_id"`
	Count int      `json:"count"`
	Docs  []Tender `json:"docs"`
}

type Highlights struct {
	ReachingDeadline []Tender    `json:"reachingDeadlineTenders"`
	BestValued       []Tender    `json:"bestValuedTenders"`
	ByWorks          []WorkGroup `json:"tendersByWorks"`
}

// All returns every tender referenced by the highlights, in display order.
func (h Highlights) All() []Tender {
	out := make([]Tender, 0, len(h.ReachingDeadline)+len(h.BestValued))
	out = append(out, h.ReachingDeadline...)
	out = append(out, h.BestValued...)
	for _, g := range h.ByWorks {
		out = append(out, g.Docs...)
	}
	return out
}

// Find returns the first tender with the given id.
func Find(tenders []Tender, id string) (Tender, bool) {
	for _, t := range tenders {
		if t.ID() == id {
			return t, true
		}
	}
	return Tender{}, false
}
