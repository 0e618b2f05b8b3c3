package summarizer

import (
	"fmt"
	"strings"

	errorskg "github.com/sweetpotato0/batchsum/errors"
	"github.com/sweetpotato0/batchsum/rag/document"
)

// spanPlan is the flattened view of a request. spans[offsets[i]:offsets[i+1]]
// belong to group i, and counts[i] == offsets[i+1]-offsets[i].
type spanPlan struct {
	spans   []string
	origins []*document.Document // originating document per span, nil when merged
	counts  []int                // spans contributed by each group
	offsets []int                // prefix sums over counts, len(counts)+1 entries
	merged  bool
}

// buildSpans turns groups into spans. In merged mode each non-empty group is
// joined into one span in document order; empty groups contribute no span.
// Otherwise every document becomes its own span.
func buildSpans(groups [][]document.Document, merged bool, sep string) *spanPlan {
	p := &spanPlan{
		counts: make([]int, len(groups)),
		merged: merged,
	}
	for i, docs := range groups {
		if merged {
			if len(docs) == 0 {
				continue
			}
			p.spans = append(p.spans, strings.Join(document.Contents(docs), sep))
			p.origins = append(p.origins, nil)
			p.counts[i] = 1
			continue
		}
		for j := range docs {
			p.spans = append(p.spans, docs[j].Content)
			p.origins = append(p.origins, &docs[j])
		}
		p.counts[i] = len(docs)
	}
	p.offsets = prefixSums(p.counts)
	return p
}

func prefixSums(counts []int) []int {
	offsets := make([]int, len(counts)+1)
	for i, n := range counts {
		offsets[i+1] = offsets[i] + n
	}
	return offsets
}

// bounds returns the half-open span range of group i.
func (p *spanPlan) bounds(i int) (int, int) {
	return p.offsets[i], p.offsets[i+1]
}

// verify checks sum(counts) == len(spans) == summaries.
func (p *spanPlan) verify(summaries int) error {
	total := p.offsets[len(p.offsets)-1]
	if total != len(p.spans) {
		return fmt.Errorf("span bookkeeping mismatch: counted %d, built %d", total, len(p.spans))
	}
	if summaries != total {
		return fmt.Errorf("%w: got %d summaries for %d spans", errorskg.ErrEngineContract, summaries, total)
	}
	return nil
}

// regroup pairs each summary with its span and splits the flat list back into
// groups along the offset table.
func (p *spanPlan) regroup(summaries []string) ([][]document.Document, error) {
	if err := p.verify(len(summaries)); err != nil {
		return nil, err
	}
	groups := make([][]document.Document, len(p.counts))
	for i := range p.counts {
		lo, hi := p.bounds(i)
		docs := make([]document.Document, 0, hi-lo)
		for k := lo; k < hi; k++ {
			docs = append(docs, p.result(k, summaries[k]))
		}
		groups[i] = docs
	}
	return groups, nil
}

// result builds the summary document for span k. Per-document results carry a
// copy of the source metadata; the context key always wins.
func (p *spanPlan) result(k int, summary string) document.Document {
	out := document.Document{Content: summary}
	if origin := p.origins[k]; origin != nil {
		src := origin.Clone()
		out.Title = src.Title
		out.Metadata = src.Metadata
	}
	if out.Metadata == nil {
		out.Metadata = make(map[string]any, 1)
	}
	out.Metadata[document.MetaContext] = p.spans[k]
	return out
}

// shape unwraps regrouped results into the caller's original shape.
func (p *spanPlan) shape(groups [][]document.Document, singleGroup bool) Output {
	if singleGroup {
		return FlatResult(groups[0])
	}
	out := make(GroupedResult, len(groups))
	for i, docs := range groups {
		switch {
		case p.merged && len(docs) == 1:
			d := docs[0]
			out[i] = GroupResult{Summary: &d}
		case p.merged:
			out[i] = GroupResult{}
		default:
			out[i] = GroupResult{Summaries: docs}
		}
	}
	return out
}
