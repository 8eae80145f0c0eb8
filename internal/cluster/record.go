// Package cluster defines news-analysis cluster records and the pure
// transforms applied to them: preview enrichment, display chunking, and
// recency filtering.
package cluster

import (
	"fmt"
	"strings"
	"time"

	"github.com/fyrsmithlabs/newsdeck/internal/preview"
)

// idTimeLayout is the timestamp prefix encoded into record identifiers by
// the ingest jobs, e.g. "2024-01-01 00:00:00_ab12".
const idTimeLayout = "2006-01-02 15:04:05"

// Record is one clustered news-analysis document as read from the store.
//
// ID is sortable and encodes creation order; in the timestamped variant it
// carries an idTimeLayout prefix before an underscore delimiter. Fields holds
// descriptive attributes the pipeline treats as opaque and passes through to
// rendering unchanged. The pipeline reads and annotates a copy, never writes
// back.
type Record struct {
	ID     string         `bson:"_id"`
	Links  []string       `bson:"links,omitempty"`
	Fields map[string]any `bson:",inline"`
}

// Timestamp parses the creation time encoded in the record identifier.
// Records whose IDs carry no parseable timestamp return an error; recency
// filtering treats them as never recent.
func (r Record) Timestamp() (time.Time, error) {
	id := r.ID
	if i := strings.Index(id, "_"); i >= 0 {
		id = id[:i]
	}
	ts, err := time.Parse(idTimeLayout, id)
	if err != nil {
		return time.Time{}, fmt.Errorf("record %q: no timestamp prefix: %w", r.ID, err)
	}
	return ts, nil
}

// Field returns a descriptive field by name, or "" when absent or not a
// string. Used by templates for opaque display fields.
func (r Record) Field(name string) string {
	if s, ok := r.Fields[name].(string); ok {
		return s
	}
	return ""
}

// Enriched is a Record joined with one preview card per reference link, in
// link order. The pairing order is significant for display.
type Enriched struct {
	Record
	Cards []preview.Card
}

// Enrich joins records against the metadata index.
//
// Every record is kept: a record without links gets an empty card sequence
// rather than being dropped, so enriched output pairs index-for-index with
// the raw listing. Index misses synthesize an empty card carrying the
// original URL, so downstream code always sees a structurally valid card.
func Enrich(records []Record, idx *preview.Index) []Enriched {
	out := make([]Enriched, 0, len(records))
	for _, r := range records {
		cards := make([]preview.Card, 0, len(r.Links))
		for _, link := range r.Links {
			cards = append(cards, idx.Lookup(link))
		}
		out = append(out, Enriched{Record: r, Cards: cards})
	}
	return out
}
