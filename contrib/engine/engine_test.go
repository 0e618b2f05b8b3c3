package engine

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sweetpotato0/batchsum/rag/summarizer"
	"github.com/sweetpotato0/batchsum/rag/tokenizer"
)

func upper() Generator {
	return GeneratorFunc(func(_ context.Context, span string, _ summarizer.GenerateParams) (string, error) {
		return strings.ToUpper(span), nil
	})
}

func collect(t *testing.T, seq func(func([]string, error) bool)) ([][]string, error) {
	t.Helper()
	var chunks [][]string
	for chunk, err := range seq {
		if err != nil {
			return chunks, err
		}
		chunks = append(chunks, chunk)
	}
	return chunks, nil
}

func TestRunChunksInOrder(t *testing.T) {
	spans := []string{"a", "b", "c", "d", "e"}
	tests := []struct {
		name      string
		batchSize int
		want      [][]string
	}{
		{name: "batched", batchSize: 2, want: [][]string{{"A", "B"}, {"C", "D"}, {"E"}}},
		{name: "single chunk", batchSize: 0, want: [][]string{{"A", "B", "C", "D", "E"}}},
		{name: "oversized batch", batchSize: 10, want: [][]string{{"A", "B", "C", "D", "E"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params := summarizer.GenerateParams{BatchSize: tt.batchSize}
			got, err := collect(t, Run(context.Background(), spans, params, upper(), 3))
			if err != nil {
				t.Fatalf("Run error: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("chunks = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRunBoundsConcurrency(t *testing.T) {
	var inFlight, peak atomic.Int32
	gen := GeneratorFunc(func(_ context.Context, span string, _ summarizer.GenerateParams) (string, error) {
		n := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		return span, nil
	})

	spans := make([]string, 12)
	if _, err := collect(t, Run(context.Background(), spans, summarizer.GenerateParams{}, gen, 2)); err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if peak.Load() > 2 {
		t.Fatalf("peak concurrency %d exceeds limit 2", peak.Load())
	}
}

func TestRunStopsAtFirstError(t *testing.T) {
	boom := errors.New("rate limited")
	var mu sync.Mutex
	seen := map[string]bool{}
	gen := GeneratorFunc(func(_ context.Context, span string, _ summarizer.GenerateParams) (string, error) {
		mu.Lock()
		seen[span] = true
		mu.Unlock()
		if span == "c" {
			return "", boom
		}
		return span, nil
	})

	chunks, err := collect(t, Run(context.Background(), []string{"a", "b", "c", "d", "e"}, summarizer.GenerateParams{BatchSize: 2}, gen, 1))
	if !errors.Is(err, boom) {
		t.Fatalf("expected generator error, got %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("expected one completed chunk before failure, got %v", chunks)
	}
	if seen["e"] {
		t.Fatalf("chunk after failure should not be generated")
	}
}

func TestRunStopsWhenConsumerBreaks(t *testing.T) {
	var calls atomic.Int32
	gen := GeneratorFunc(func(_ context.Context, span string, _ summarizer.GenerateParams) (string, error) {
		calls.Add(1)
		return span, nil
	})
	for range Run(context.Background(), []string{"a", "b", "c"}, summarizer.GenerateParams{BatchSize: 1}, gen, 1) {
		break
	}
	if calls.Load() != 1 {
		t.Fatalf("generator called %d times after consumer stopped", calls.Load())
	}
}

func TestRunCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := collect(t, Run(ctx, []string{"a"}, summarizer.GenerateParams{}, upper(), 1))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestRunAppliesCleanup(t *testing.T) {
	gen := GeneratorFunc(func(context.Context, string, summarizer.GenerateParams) (string, error) {
		return " It isn't here , is it ? ", nil
	})

	got, err := collect(t, Run(context.Background(), []string{"x"}, summarizer.GenerateParams{CleanUpTokenizationSpaces: true}, gen, 1))
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if got[0][0] != "It isn't here, is it?" {
		t.Fatalf("cleaned = %q", got[0][0])
	}

	raw, _ := collect(t, Run(context.Background(), []string{"x"}, summarizer.GenerateParams{}, gen, 1))
	if raw[0][0] != "It isn't here , is it ?" {
		t.Fatalf("cleanup applied without being requested: %q", raw[0][0])
	}
}

func TestCleanUpTokenization(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{in: "Hello , world !", want: "Hello, world!"},
		{in: "I 'm sure they 're right .", want: "I'm sure they're right."},
		{in: "do n't", want: "don't"},
		{in: "no change", want: "no change"},
	}
	for _, tt := range tests {
		if got := CleanUpTokenization(tt.in); got != tt.want {
			t.Errorf("CleanUpTokenization(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestEngineTruncatesWithTokenizer(t *testing.T) {
	var got string
	gen := GeneratorFunc(func(_ context.Context, span string, _ summarizer.GenerateParams) (string, error) {
		got = span
		return "ok", nil
	})
	tok := tokenizer.NewSimpleTokenizer(tokenizer.WithModelMaxLength(3))
	e := New(gen, WithTokenizer(tok), WithConcurrency(1))

	params := summarizer.GenerateParams{Truncation: true}
	if _, err := collect(t, e.Generate(context.Background(), []string{"one two three four five"}, params)); err != nil {
		t.Fatalf("Generate error: %v", err)
	}
	if got != "one two three" {
		t.Fatalf("span not truncated: %q", got)
	}

	params.Truncation = false
	if _, err := collect(t, e.Generate(context.Background(), []string{"one two three four five"}, params)); err != nil {
		t.Fatalf("Generate error: %v", err)
	}
	if got != "one two three four five" {
		t.Fatalf("span truncated without request: %q", got)
	}
}

func TestEngineRateLimit(t *testing.T) {
	if e := New(upper(), WithRateLimit(0, 5)); e.limiter != nil {
		t.Fatal("zero rate should not install a limiter")
	}

	var calls atomic.Int32
	gen := GeneratorFunc(func(_ context.Context, span string, _ summarizer.GenerateParams) (string, error) {
		calls.Add(1)
		return span, nil
	})
	// One token up front, the next one far past the deadline.
	e := New(gen, WithRateLimit(0.001, 1), WithConcurrency(1))
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := collect(t, e.Generate(ctx, []string{"a", "b"}, summarizer.GenerateParams{}))
	if err == nil {
		t.Fatal("expected the limiter to refuse the second call")
	}
	if calls.Load() != 1 {
		t.Fatalf("generator calls = %d, want 1", calls.Load())
	}
}

func TestPrompt(t *testing.T) {
	p := Prompt(summarizer.GenerateParams{MinLength: 5, MaxLength: 200})
	if !strings.Contains(p, "at least 5") || !strings.Contains(p, "at most 200") {
		t.Fatalf("prompt missing bounds: %q", p)
	}
}

func TestEngineWithSummarizer(t *testing.T) {
	s, err := summarizer.New(New(upper()), nil, summarizer.WithProgressBar(false))
	if err != nil {
		t.Fatalf("summarizer.New error: %v", err)
	}
	out, err := s.SummarizeMany(context.Background(), summarizer.GroupList{
		{{Content: "a"}, {Content: "b"}},
		{{Content: "c"}},
	}, summarizer.BatchSize(1))
	if err != nil {
		t.Fatalf("SummarizeMany error: %v", err)
	}
	grouped := out.(summarizer.GroupedResult)
	if grouped[0].Summaries[1].Content != "B" || grouped[1].Summaries[0].Content != "C" {
		t.Fatalf("unexpected output %+v", grouped)
	}
}
