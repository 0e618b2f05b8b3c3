package summarizer

import (
	"bytes"
	"context"
	"errors"
	"iter"
	"reflect"
	"strings"
	"testing"

	errorskg "github.com/sweetpotato0/batchsum/errors"
	"github.com/sweetpotato0/batchsum/pkg/diagnostics"
	"github.com/sweetpotato0/batchsum/pkg/logging"
	"github.com/sweetpotato0/batchsum/pkg/progress"
	"github.com/sweetpotato0/batchsum/rag/document"
	"github.com/sweetpotato0/batchsum/rag/tokenizer"
)

// stubEngine summarizes a span as "sum(<span>)" and yields chunks of
// params.BatchSize spans.
type stubEngine struct {
	calls  int
	spans  [][]string
	params []GenerateParams
	err    error // returned after the first chunk when set
	drop   int   // summaries to drop from the final chunk
}

func (e *stubEngine) Generate(_ context.Context, spans []string, params GenerateParams) iter.Seq2[[]string, error] {
	e.calls++
	e.spans = append(e.spans, append([]string(nil), spans...))
	e.params = append(e.params, params)
	return func(yield func([]string, error) bool) {
		size := params.BatchSize
		if size <= 0 {
			size = len(spans)
		}
		for start := 0; start < len(spans); start += size {
			end := min(start+size, len(spans))
			if e.err != nil && start > 0 {
				yield(nil, e.err)
				return
			}
			chunk := make([]string, 0, end-start)
			for _, s := range spans[start:end] {
				chunk = append(chunk, "sum("+s+")")
			}
			if end == len(spans) && e.drop > 0 {
				chunk = chunk[:len(chunk)-e.drop]
			}
			if !yield(chunk, nil) {
				return
			}
		}
	}
}

type countingTokenizer struct {
	*tokenizer.SimpleTokenizer
	calls int
	err   error
}

func (c *countingTokenizer) EncodeBatch(texts []string) ([][]int, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return c.SimpleTokenizer.EncodeBatch(texts)
}

type recordingObserver struct {
	started  int
	advances []int
	finished int
}

func (r *recordingObserver) Start(total int) { r.started = total }
func (r *recordingObserver) Advance(n int)   { r.advances = append(r.advances, n) }
func (r *recordingObserver) Finish()         { r.finished++ }

func newTestSummarizer(t *testing.T, eng Engine, tok tokenizer.Tokenizer, opts ...Option) *BatchSummarizer {
	t.Helper()
	base := []Option{WithLogger(logging.Discard()), WithProgressBar(false)}
	s, err := New(eng, tok, append(base, opts...)...)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	return s
}

func docs(contents ...string) []document.Document {
	out := make([]document.Document, len(contents))
	for i, c := range contents {
		out[i] = document.Document{Content: c}
	}
	return out
}

func TestNewRequiresEngine(t *testing.T) {
	if _, err := New(nil, nil); !errors.Is(err, errorskg.ErrInvalidConfiguration) {
		t.Fatalf("expected ErrInvalidConfiguration, got %v", err)
	}
}

func TestNewDefaults(t *testing.T) {
	s, err := New(&stubEngine{}, nil)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	cfg := s.Config()
	if cfg.MaxLength != 200 || cfg.MinLength != 5 || cfg.Separator != " " || cfg.BatchSize != 16 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.GenerateSingleSummary || !cfg.ProgressBar || !cfg.CleanUpTokenizationSpaces {
		t.Fatalf("unexpected mode defaults: %+v", cfg)
	}
}

func TestSummarizeOnePerDocument(t *testing.T) {
	eng := &stubEngine{}
	s := newTestSummarizer(t, eng, tokenizer.NewSimpleTokenizer())
	in := []document.Document{
		{Title: "first", Content: "alpha", Metadata: map[string]any{"source": "a.txt", document.MetaContext: "stale"}},
		{Content: "beta"},
		{Content: "gamma", Metadata: map[string]any{"lang": "en"}},
	}

	out, err := s.SummarizeOne(context.Background(), in)
	if err != nil {
		t.Fatalf("SummarizeOne error: %v", err)
	}
	if len(out) != len(in) {
		t.Fatalf("expected %d results, got %d", len(in), len(out))
	}
	for i, d := range out {
		if want := "sum(" + in[i].Content + ")"; d.Content != want {
			t.Errorf("result %d content = %q, want %q", i, d.Content, want)
		}
		if ctx, _ := d.Context(); ctx != in[i].Content {
			t.Errorf("result %d context = %q, want %q", i, ctx, in[i].Content)
		}
	}
	if out[0].Metadata["source"] != "a.txt" || out[0].Title != "first" {
		t.Errorf("original metadata not carried: %+v", out[0])
	}
	if out[2].Metadata["lang"] != "en" {
		t.Errorf("original metadata not carried: %+v", out[2])
	}
	if in[0].Metadata[document.MetaContext] != "stale" {
		t.Errorf("caller metadata mutated: %v", in[0].Metadata)
	}
	if _, ok := in[2].Metadata[document.MetaContext]; ok {
		t.Errorf("caller metadata gained context key: %v", in[2].Metadata)
	}
	if eng.params[0].BatchSize != 0 || !eng.params[0].Truncation {
		t.Errorf("unexpected params for single call: %+v", eng.params[0])
	}
}

func TestSummarizeOneMergedJoinsInOrder(t *testing.T) {
	eng := &stubEngine{}
	s := newTestSummarizer(t, eng, tokenizer.NewSimpleTokenizer(), WithSeparator(" "))

	out, err := s.SummarizeOne(context.Background(), docs("A. B. C.", "D. E. F."), GenerateSingleSummary(true))
	if err != nil {
		t.Fatalf("SummarizeOne error: %v", err)
	}
	if eng.calls != 1 || !reflect.DeepEqual(eng.spans[0], []string{"A. B. C. D. E. F."}) {
		t.Fatalf("unexpected engine submission: %v", eng.spans)
	}
	if len(out) != 1 {
		t.Fatalf("expected 1 result, got %d", len(out))
	}
	if ctx, _ := out[0].Context(); ctx != "A. B. C. D. E. F." {
		t.Fatalf("context = %q", ctx)
	}

	reordered, err := s.SummarizeOne(context.Background(), docs("D. E. F.", "A. B. C."), GenerateSingleSummary(true))
	if err != nil {
		t.Fatalf("SummarizeOne error: %v", err)
	}
	if reordered[0].Content == out[0].Content {
		t.Fatalf("expected reordering documents to change the merged span")
	}
}

func TestInvalidBoundsFailBeforeCollaborators(t *testing.T) {
	eng := &stubEngine{}
	tok := &countingTokenizer{SimpleTokenizer: tokenizer.NewSimpleTokenizer()}
	s := newTestSummarizer(t, eng, tok, WithMinLength(300), WithMaxLength(200))

	if _, err := s.SummarizeOne(context.Background(), docs("a")); !errors.Is(err, errorskg.ErrInvalidConfiguration) {
		t.Fatalf("SummarizeOne: expected ErrInvalidConfiguration, got %v", err)
	}
	if _, err := s.SummarizeMany(context.Background(), GroupList{docs("a")}); !errors.Is(err, errorskg.ErrInvalidConfiguration) {
		t.Fatalf("SummarizeMany: expected ErrInvalidConfiguration, got %v", err)
	}
	if eng.calls != 0 || tok.calls != 0 {
		t.Fatalf("collaborators invoked: engine=%d tokenizer=%d", eng.calls, tok.calls)
	}
}

func TestEmptyInputIsInvalid(t *testing.T) {
	eng := &stubEngine{}
	s := newTestSummarizer(t, eng, nil)
	ctx := context.Background()

	if _, err := s.SummarizeOne(ctx, nil); !errors.Is(err, errorskg.ErrInvalidInput) {
		t.Errorf("SummarizeOne(nil): %v", err)
	}
	inputs := map[string]Input{
		"nil input":        nil,
		"empty flat group": FlatGroup{},
		"empty group list": GroupList{},
		"all groups empty": GroupList{{}, {}},
	}
	for name, in := range inputs {
		if _, err := s.SummarizeMany(ctx, in); !errors.Is(err, errorskg.ErrInvalidInput) {
			t.Errorf("%s: expected ErrInvalidInput, got %v", name, err)
		}
	}
	if eng.calls != 0 {
		t.Fatalf("engine invoked %d times for invalid input", eng.calls)
	}
}

func TestSummarizeManyPerDocumentRegroups(t *testing.T) {
	eng := &stubEngine{}
	s := newTestSummarizer(t, eng, tokenizer.NewSimpleTokenizer())

	out, err := s.SummarizeMany(context.Background(), GroupList{
		docs("g0d0", "g0d1"),
		{},
		docs("g2d0"),
	})
	if err != nil {
		t.Fatalf("SummarizeMany error: %v", err)
	}
	grouped, ok := out.(GroupedResult)
	if !ok {
		t.Fatalf("expected GroupedResult, got %T", out)
	}
	if len(grouped) != 3 {
		t.Fatalf("expected 3 groups, got %d", len(grouped))
	}
	want := [][]string{{"sum(g0d0)", "sum(g0d1)"}, {}, {"sum(g2d0)"}}
	for i, g := range grouped {
		if g.Merged() {
			t.Errorf("group %d unexpectedly merged", i)
		}
		got := document.Contents(g.Documents())
		if len(got) != len(want[i]) {
			t.Fatalf("group %d = %v, want %v", i, got, want[i])
		}
		for k := range got {
			if got[k] != want[i][k] {
				t.Errorf("group %d[%d] = %q, want %q", i, k, got[k], want[i][k])
			}
			if ctx, _ := g.Documents()[k].Context(); "sum("+ctx+")" != got[k] {
				t.Errorf("group %d[%d] context %q does not match summary %q", i, k, ctx, got[k])
			}
		}
	}
	if eng.calls != 1 || len(eng.spans[0]) != 3 {
		t.Fatalf("expected one engine call with 3 spans, got %v", eng.spans)
	}
}

func TestSummarizeManyMergedGroups(t *testing.T) {
	eng := &stubEngine{}
	s := newTestSummarizer(t, eng, tokenizer.NewSimpleTokenizer(), WithSingleSummary(true), WithSeparator("\n"))

	out, err := s.SummarizeMany(context.Background(), GroupList{
		docs("a", "b"),
		{},
		docs("c"),
	})
	if err != nil {
		t.Fatalf("SummarizeMany error: %v", err)
	}
	if !reflect.DeepEqual(eng.spans[0], []string{"a\nb", "c"}) {
		t.Fatalf("empty group should not produce a span, got %q", eng.spans[0])
	}
	grouped := out.(GroupedResult)
	if !grouped[0].Merged() || grouped[0].Summary.Content != "sum(a\nb)" {
		t.Errorf("group 0 = %+v", grouped[0])
	}
	if grouped[1].Merged() || len(grouped[1].Documents()) != 0 {
		t.Errorf("empty group should yield no summary, got %+v", grouped[1])
	}
	if ctx, _ := grouped[2].Summary.Context(); ctx != "c" {
		t.Errorf("group 2 context = %q", ctx)
	}
	if len(out.Documents()) != 2 {
		t.Errorf("Documents() = %d, want 2", len(out.Documents()))
	}
}

func TestSummarizeManyFlatGroupKeepsShape(t *testing.T) {
	eng := &stubEngine{}
	s := newTestSummarizer(t, eng, nil)

	out, err := s.SummarizeMany(context.Background(), FlatGroup(docs("x", "y", "z")))
	if err != nil {
		t.Fatalf("SummarizeMany error: %v", err)
	}
	flat, ok := out.(FlatResult)
	if !ok || len(flat) != 3 {
		t.Fatalf("expected FlatResult of 3, got %T %v", out, out)
	}

	merged, err := s.SummarizeMany(context.Background(), FlatGroup(docs("x", "y")), GenerateSingleSummary(true))
	if err != nil {
		t.Fatalf("SummarizeMany error: %v", err)
	}
	if flat, ok := merged.(FlatResult); !ok || len(flat) != 1 || flat[0].Content != "sum(x y)" {
		t.Fatalf("unexpected merged flat result %#v", merged)
	}
}

func TestSummarizeManyBatchSizeAndProgress(t *testing.T) {
	eng := &stubEngine{}
	obs := &recordingObserver{}
	factoryCalls := 0
	s := newTestSummarizer(t, eng, nil,
		WithBatchSize(4),
		WithProgressBar(true),
		WithProgress(func() progress.Observer { factoryCalls++; return obs }),
	)

	_, err := s.SummarizeMany(context.Background(), GroupList{docs("1", "2", "3"), docs("4", "5")}, BatchSize(2))
	if err != nil {
		t.Fatalf("SummarizeMany error: %v", err)
	}
	if eng.params[0].BatchSize != 2 {
		t.Fatalf("batch size override not applied: %+v", eng.params[0])
	}
	if factoryCalls != 1 || obs.started != 5 || obs.finished != 1 {
		t.Fatalf("unexpected observer lifecycle: %+v (factory calls %d)", obs, factoryCalls)
	}
	if !reflect.DeepEqual(obs.advances, []int{2, 2, 1}) {
		t.Fatalf("progress should follow chunks, got %v", obs.advances)
	}

	if _, err := s.SummarizeMany(context.Background(), FlatGroup(docs("1"))); err != nil {
		t.Fatalf("SummarizeMany error: %v", err)
	}
	if eng.params[1].BatchSize != 4 {
		t.Fatalf("configured batch size not used: %+v", eng.params[1])
	}
}

func TestProgressSuppressed(t *testing.T) {
	factoryCalls := 0
	s := newTestSummarizer(t, &stubEngine{}, nil,
		WithProgress(func() progress.Observer { factoryCalls++; return progress.Nop{} }),
	)
	if _, err := s.SummarizeMany(context.Background(), FlatGroup(docs("1"))); err != nil {
		t.Fatalf("SummarizeMany error: %v", err)
	}
	if factoryCalls != 0 {
		t.Fatalf("progress factory called %d times with progress disabled", factoryCalls)
	}
}

func TestEngineErrorPropagatesUnmodified(t *testing.T) {
	boom := errors.New("device lost")
	eng := &stubEngine{err: boom}
	obs := &recordingObserver{}
	s := newTestSummarizer(t, eng, nil, WithProgressBar(true), WithProgress(func() progress.Observer { return obs }))

	out, err := s.SummarizeMany(context.Background(), FlatGroup(docs("1", "2", "3")), BatchSize(1))
	if err != boom {
		t.Fatalf("expected engine error as is, got %v", err)
	}
	if out != nil {
		t.Fatalf("expected no partial results, got %v", out)
	}
	if obs.finished != 1 {
		t.Fatalf("observer should be finished on failure")
	}
}

func TestEngineCountMismatch(t *testing.T) {
	s := newTestSummarizer(t, &stubEngine{drop: 1}, nil)
	_, err := s.SummarizeOne(context.Background(), docs("1", "2"))
	if !errors.Is(err, errorskg.ErrEngineContract) {
		t.Fatalf("expected ErrEngineContract, got %v", err)
	}
}

func TestTokenizerErrorPropagates(t *testing.T) {
	boom := errors.New("tokenizer unavailable")
	eng := &stubEngine{}
	tok := &countingTokenizer{SimpleTokenizer: tokenizer.NewSimpleTokenizer(), err: boom}
	s := newTestSummarizer(t, eng, tok)

	if _, err := s.SummarizeMany(context.Background(), FlatGroup(docs("1"))); err != boom {
		t.Fatalf("expected tokenizer error as is, got %v", err)
	}
	if eng.calls != 0 {
		t.Fatalf("engine should not run after tokenizer failure")
	}
}

func TestAdvisoryDeduplicatedAcrossSummarizeOneCalls(t *testing.T) {
	var buf bytes.Buffer
	sink := diagnostics.NewMemorySink()
	tok := tokenizer.NewSimpleTokenizer(tokenizer.WithModelMaxLength(3))
	s := newTestSummarizer(t, &stubEngine{}, tok,
		WithLogger(logging.New(&buf, "text", "warn")),
		WithDiagnostics(sink),
	)

	long := docs("one two three four", "five six seven eight", "short")
	for i := 0; i < 2; i++ {
		if _, err := s.SummarizeOne(context.Background(), long); err != nil {
			t.Fatalf("SummarizeOne error: %v", err)
		}
	}
	if got := strings.Count(buf.String(), "Generating summary from first 3 tokens"); got != 1 {
		t.Fatalf("expected exactly one advisory, got %d:\n%s", got, buf.String())
	}
	if sink.Len() != 1 {
		t.Fatalf("sink recorded %d messages, want 1", sink.Len())
	}
}

func TestAdvisoryOncePerSummarizeManyCall(t *testing.T) {
	var buf bytes.Buffer
	tok := tokenizer.NewSimpleTokenizer(tokenizer.WithModelMaxLength(2))
	s := newTestSummarizer(t, &stubEngine{}, tok, WithLogger(logging.New(&buf, "text", "warn")))

	in := GroupList{docs("a b c", "d e f"), docs("g h i")}
	for i := 0; i < 2; i++ {
		if _, err := s.SummarizeMany(context.Background(), in); err != nil {
			t.Fatalf("SummarizeMany error: %v", err)
		}
	}
	if got := strings.Count(buf.String(), "maximum sequence length"); got != 2 {
		t.Fatalf("expected one advisory per call, got %d:\n%s", got, buf.String())
	}
}

func TestAdvisoryDoesNotBlockInference(t *testing.T) {
	eng := &stubEngine{}
	tok := tokenizer.NewSimpleTokenizer(tokenizer.WithModelMaxLength(1))
	s := newTestSummarizer(t, eng, tok)

	out, err := s.SummarizeOne(context.Background(), docs("far too many tokens"))
	if err != nil || len(out) != 1 || eng.calls != 1 {
		t.Fatalf("inference should proceed: out=%v err=%v calls=%d", out, err, eng.calls)
	}
}

func TestSummarizeManyIsIdempotent(t *testing.T) {
	s := newTestSummarizer(t, &stubEngine{}, tokenizer.NewSimpleTokenizer())
	in := GroupList{docs("a", "b"), docs("c")}

	first, err := s.SummarizeMany(context.Background(), in)
	if err != nil {
		t.Fatalf("SummarizeMany error: %v", err)
	}
	second, err := s.SummarizeMany(context.Background(), in)
	if err != nil {
		t.Fatalf("SummarizeMany error: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("identical calls produced different output:\n%v\n%v", first, second)
	}
}

func TestEngineFuncSingleChunk(t *testing.T) {
	calls := 0
	eng := EngineFunc(func(_ context.Context, spans []string, _ GenerateParams) ([]string, error) {
		calls++
		out := make([]string, len(spans))
		for i, s := range spans {
			out[i] = strings.ToUpper(s)
		}
		return out, nil
	})
	s := newTestSummarizer(t, eng, nil)

	out, err := s.SummarizeOne(context.Background(), docs("abc", "def"))
	if err != nil {
		t.Fatalf("SummarizeOne error: %v", err)
	}
	if calls != 1 || out[0].Content != "ABC" || out[1].Content != "DEF" {
		t.Fatalf("unexpected output %v (calls %d)", out, calls)
	}
}
