// Package store persists summarization results keyed by run.
package store

import (
	"context"
	"time"

	"github.com/sweetpotato0/batchsum/rag/document"
	"github.com/sweetpotato0/batchsum/rag/summarizer"
)

// Record is one saved summary. Group and Position locate it in the output it
// came from: the group index (0 for a flat result) and its index in the group.
type Record struct {
	RunID     string
	Group     int
	Position  int
	Summary   document.Document
	CreatedAt time.Time
}

// ResultStore saves and loads summarization runs.
type ResultStore interface {
	// Save stores every summary of out under runID, replacing earlier records
	// at the same positions.
	Save(ctx context.Context, runID string, out summarizer.Output) error
	// Load returns the records of runID ordered by group then position, or
	// errors.ErrNotFound when the run has none.
	Load(ctx context.Context, runID string) ([]Record, error)
	Close() error
}

// Records flattens out into records stamped with runID and now. Empty groups
// contribute no records.
func Records(runID string, out summarizer.Output, now time.Time) []Record {
	var records []Record
	add := func(group int, docs []document.Document) {
		for i, d := range docs {
			records = append(records, Record{
				RunID:     runID,
				Group:     group,
				Position:  i,
				Summary:   d.Clone(),
				CreatedAt: now,
			})
		}
	}
	switch o := out.(type) {
	case summarizer.FlatResult:
		add(0, o)
	case summarizer.GroupedResult:
		for g, r := range o {
			add(g, r.Documents())
		}
	}
	return records
}

// Groups regroups ordered records by group index. Missing groups in between
// come back empty.
func Groups(records []Record) [][]document.Document {
	if len(records) == 0 {
		return nil
	}
	groups := make([][]document.Document, records[len(records)-1].Group+1)
	for _, r := range records {
		groups[r.Group] = append(groups[r.Group], r.Summary)
	}
	return groups
}
