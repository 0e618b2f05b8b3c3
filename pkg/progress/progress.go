// Package progress reports how many spans an inference run has completed.
package progress

import (
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/schollz/progressbar/v3"
)

// Observer receives chunk-completion events while a batch is being summarized.
// Start is called once with the number of spans, Advance once per returned
// chunk, and Finish once when the run ends (successfully or not).
type Observer interface {
	Start(total int)
	Advance(n int)
	Finish()
}

// Nop discards all progress events.
type Nop struct{}

func (Nop) Start(int)   {}
func (Nop) Advance(int) {}
func (Nop) Finish()     {}

var (
	_ Observer = Nop{}
	_ Observer = (*Bar)(nil)
	_ Observer = (*Log)(nil)
)

// Bar renders a terminal progress bar.
type Bar struct {
	mu          sync.Mutex
	w           io.Writer
	description string
	bar         *progressbar.ProgressBar
}

// NewBar creates a bar writing to w (stderr when nil).
func NewBar(w io.Writer, description string) *Bar {
	if w == nil {
		w = os.Stderr
	}
	if description == "" {
		description = "Summarizing"
	}
	return &Bar{w: w, description: description}
}

func (b *Bar) Start(total int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.bar = progressbar.NewOptions(total,
		progressbar.OptionSetWriter(b.w),
		progressbar.OptionSetDescription(b.description),
		progressbar.OptionShowCount(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionOnCompletion(func() { _, _ = io.WriteString(b.w, "\n") }),
	)
}

func (b *Bar) Advance(n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.bar != nil {
		_ = b.bar.Add(n)
	}
}

func (b *Bar) Finish() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.bar != nil {
		_ = b.bar.Finish()
		b.bar = nil
	}
}

// Log writes one structured record per completed chunk.
type Log struct {
	mu     sync.Mutex
	logger *slog.Logger
	total  int
	done   int
}

// NewLog creates a logging observer.
func NewLog(logger *slog.Logger) *Log {
	return &Log{logger: logger}
}

func (l *Log) Start(total int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.total, l.done = total, 0
	l.logger.Info("summarization started", "spans", total)
}

func (l *Log) Advance(n int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.done += n
	l.logger.Debug("summarization progress", "done", l.done, "total", l.total)
}

func (l *Log) Finish() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.logger.Info("summarization finished", "done", l.done, "total", l.total)
}

// Done reports how many spans have completed so far.
func (l *Log) Done() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.done
}
