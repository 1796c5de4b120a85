package viewmodel

import (
	"strconv"

	"tender_dashboard/internal/models/tender"
)

// ComparisonRow is one aspect of the side-by-side comparison.
type ComparisonRow struct {
	Aspect string   `json:"aspect"`
	Label  string   `json:"label"`
	Cells  []string `json:"cells"`
	Remark string   `json:"remark,omitempty"`
}

type ComparisonTable struct {
	TenderIDs   []string        `json:"tenderIds"`
	Headers     []string        `json:"headers"`
	Rows        []ComparisonRow `json:"rows"`
	WithRemarks bool            `json:"withRemarks"`
}

func (t ComparisonTable) Empty() bool { return len(t.Headers) == 0 }

// Aspects are the keys of the first tender only; keys that appear on later
// tenders alone are not compared.
func Aspects(tenders []tender.Tender) []string {
	if len(tenders) == 0 {
		return []string{}
	}
	out := make([]string, 0, tenders[0].Len())
	for _, key := range tenders[0].Keys() {
		switch key {
		case tender.KeyObjectID, tender.KeyID, tender.KeyTitle:
			continue
		}
		out = append(out, key)
	}
	return out
}

func (f Formatter) ComparisonRows(tenders []tender.Tender) []ComparisonRow {
	aspects := Aspects(tenders)
	rows := make([]ComparisonRow, 0, len(aspects))
	for _, aspect := range aspects {
		row := ComparisonRow{
			Aspect: aspect,
			Label:  FormatKey(aspect),
			Cells:  make([]string, 0, len(tenders)),
		}
		for _, t := range tenders {
			v, ok := t.Get(aspect)
			if !ok {
				row.Cells = append(row.Cells, NA)
				continue
			}
			row.Cells = append(row.Cells, f.FormatValue(aspect, v))
		}
		rows = append(rows, row)
	}
	return rows
}

// NewComparisonTable builds the table the comparison view shows. remarks
// are keyed by aspect; a nil map leaves out the remarks column.
func (f Formatter) NewComparisonTable(tenders []tender.Tender, remarks map[string]string) ComparisonTable {
	table := ComparisonTable{
		TenderIDs:   make([]string, 0, len(tenders)),
		Headers:     make([]string, 0, len(tenders)),
		Rows:        f.ComparisonRows(tenders),
		WithRemarks: remarks != nil,
	}
	for i, t := range tenders {
		table.TenderIDs = append(table.TenderIDs, t.ID())
		header := t.Title()
		if header == "" {
			header = "Tender " + strconv.Itoa(i+1)
		}
		table.Headers = append(table.Headers, header)
	}
	for i := range table.Rows {
		table.Rows[i].Remark = remarks[table.Rows[i].Aspect]
	}
	return table
}
