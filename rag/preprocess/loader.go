package preprocess

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	errorskg "github.com/sweetpotato0/batchsum/errors"
	"github.com/sweetpotato0/batchsum/rag/document"
)

// MetaSource is the metadata key holding the file a document was loaded from.
const MetaSource = "source"

type format int

const (
	formatUnknown format = iota
	formatText
	formatHTML
)

var extensions = map[string]format{
	".txt": formatText, ".md": formatText, ".markdown": formatText,
	".html": formatHTML, ".htm": formatHTML,
}

// Supported reports whether LoadFile understands the file extension. Files
// without an extension are sniffed by LoadFile instead.
func Supported(path string) bool {
	return extensions[strings.ToLower(filepath.Ext(path))] != formatUnknown
}

// detect resolves the format from the extension, falling back to content
// sniffing for extension-less files.
func detect(path string) (format, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext != "" {
		return extensions[ext], nil
	}
	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		return formatUnknown, fmt.Errorf("detect MIME type: %w", err)
	}
	switch {
	case mtype.Is("text/html"):
		return formatHTML, nil
	case mtype.Is("text/plain"):
		return formatText, nil
	default:
		return formatUnknown, nil
	}
}

// LoadFile reads a text, markdown or HTML file and returns it as a cleaned
// document titled after the file name.
func LoadFile(path string) (document.Document, error) {
	f, err := detect(path)
	if err != nil {
		return document.Document{}, err
	}
	if f == formatUnknown {
		return document.Document{}, fmt.Errorf("%w: unsupported file type %q", errorskg.ErrInvalidInput, path)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return document.Document{}, err
	}
	text := string(raw)
	if f == formatHTML {
		if text, err = HTMLToText(text); err != nil {
			return document.Document{}, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	base := filepath.Base(path)
	doc := document.Document{
		ID:       path,
		Title:    strings.TrimSuffix(base, filepath.Ext(base)),
		Content:  Preprocess(text),
		Metadata: map[string]any{MetaSource: path},
	}
	return doc, nil
}

// LoadDir loads every text, markdown and HTML file directly inside dir, in
// name order. Subdirectories and other files are skipped.
func LoadDir(dir string) ([]document.Document, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var docs []document.Document
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		path := filepath.Join(dir, e.Name())
		f, err := detect(path)
		if err != nil {
			return nil, err
		}
		if f == formatUnknown {
			continue
		}
		doc, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}
