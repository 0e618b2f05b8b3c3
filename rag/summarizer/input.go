package summarizer

import (
	"fmt"

	errorskg "github.com/sweetpotato0/batchsum/errors"
	"github.com/sweetpotato0/batchsum/rag/document"
)

// Input is the shape of a SummarizeMany request: either a FlatGroup or a
// GroupList. The shape is resolved once and mirrored by the Output.
type Input interface {
	normalize() (groups [][]document.Document, singleGroup bool, err error)
}

// FlatGroup is a single list of related documents.
type FlatGroup []document.Document

// GroupList is a batch of independent document groups.
type GroupList [][]document.Document

var (
	_ Input = FlatGroup(nil)
	_ Input = GroupList(nil)
)

func (f FlatGroup) normalize() ([][]document.Document, bool, error) {
	if len(f) == 0 {
		return nil, true, fmt.Errorf("%w: summarizer needs at least one document to produce a summary", errorskg.ErrInvalidInput)
	}
	return [][]document.Document{f}, true, nil
}

func (g GroupList) normalize() ([][]document.Document, bool, error) {
	total := 0
	for _, docs := range g {
		total += len(docs)
	}
	if total == 0 {
		return nil, false, fmt.Errorf("%w: summarizer needs at least one document to produce a summary (%d empty groups)", errorskg.ErrInvalidInput, len(g))
	}
	return g, false, nil
}

// Output mirrors the Input shape: FlatResult for a FlatGroup, GroupedResult for
// a GroupList.
type Output interface {
	// Documents returns every summary in submission order.
	Documents() []document.Document
}

// FlatResult is the result of summarizing a FlatGroup: one summary per document,
// or a single summary in single-summary mode.
type FlatResult []document.Document

// GroupedResult holds one GroupResult per input group, in input order.
type GroupedResult []GroupResult

// GroupResult is either one merged Summary (single-summary mode) or the list of
// per-document Summaries. An empty group yields a zero GroupResult.
type GroupResult struct {
	Summary   *document.Document  `json:"summary,omitempty"`
	Summaries []document.Document `json:"summaries,omitempty"`
}

var (
	_ Output = FlatResult(nil)
	_ Output = GroupedResult(nil)
)

func (f FlatResult) Documents() []document.Document {
	return []document.Document(f)
}

func (g GroupedResult) Documents() []document.Document {
	var out []document.Document
	for _, r := range g {
		out = append(out, r.Documents()...)
	}
	return out
}

// Documents returns the group's summaries as a list regardless of mode.
func (r GroupResult) Documents() []document.Document {
	if r.Summary != nil {
		return []document.Document{*r.Summary}
	}
	return r.Summaries
}

// Merged reports whether the group was summarized as a single joined span.
func (r GroupResult) Merged() bool {
	return r.Summary != nil
}
