package snapshot

import (
	"time"

	"github.com/fyrsmithlabs/newsdeck/internal/cluster"
	"github.com/fyrsmithlabs/newsdeck/internal/quotes"
)

// PartitionView is everything one partition contributes to a snapshot: the
// raw listing, the link-enriched records pairing index-for-index with it,
// and the recency-filtered records chunked for paged display.
type PartitionView struct {
	// Name is the partition's collection name.
	Name string

	// Raw is the full reverse-chronological listing.
	Raw []cluster.Record

	// Enriched pairs each raw record with its preview cards, same order.
	Enriched []cluster.Enriched

	// Groups holds the recency-filtered records in display chunks.
	Groups [][]cluster.Enriched
}

// Snapshot is one complete, immutable output of the aggregation pipeline,
// ready for rendering. Serving never mutates it; a new pass produces a new
// Snapshot.
type Snapshot struct {
	GeneratedAt time.Time

	Issues    PartitionView
	Countries []PartitionView

	Quotes []quotes.Quote
}
