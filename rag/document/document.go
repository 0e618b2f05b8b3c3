package document

import (
	"fmt"
	"maps"
	"sync/atomic"
)

// MetaContext is the metadata key holding the un-summarized text a summary was
// generated from.
const MetaContext = "context"

// Document is a unit of text handed to the summarizer, and the shape of every
// summary it returns.
type Document struct {
	ID       string         `json:"id,omitempty" bson:"id,omitempty"`
	Title    string         `json:"title,omitempty" bson:"title,omitempty"`
	Content  string         `json:"content" bson:"content"`
	Metadata map[string]any `json:"metadata,omitempty" bson:"metadata,omitempty"`
}

var docCounter atomic.Int64

// EnsureDocumentID makes sure every document has a stable identifier.
func EnsureDocumentID(doc *Document) {
	if doc == nil {
		return
	}
	if doc.ID != "" {
		return
	}
	id := docCounter.Add(1)
	doc.ID = fmt.Sprintf("doc_%d", id)
}

// Clone returns a copy of the document whose metadata map can be modified
// without affecting the original.
func (d Document) Clone() Document {
	out := d
	if d.Metadata != nil {
		out.Metadata = maps.Clone(d.Metadata)
	}
	return out
}

// Context returns the provenance text attached to a summary, if any.
func (d Document) Context() (string, bool) {
	if d.Metadata == nil {
		return "", false
	}
	ctx, ok := d.Metadata[MetaContext].(string)
	return ctx, ok
}

// Contents extracts the content of every document, preserving order.
func Contents(docs []Document) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i] = d.Content
	}
	return out
}
