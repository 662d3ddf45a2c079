package batch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"
)

// ProgressCallback receives progress while a batch runs. Calls come from the
// result collector, one at a time.
type ProgressCallback interface {
	OnStart(total int)
	OnProgress(done, total int)
	OnComplete()
	OnError(file string, err error)
}

// NoOpProgress ignores all progress.
type NoOpProgress struct{}

func (NoOpProgress) OnStart(int)           {}
func (NoOpProgress) OnProgress(int, int)   {}
func (NoOpProgress) OnComplete()           {}
func (NoOpProgress) OnError(string, error) {}

// ConsoleProgress draws a progress bar with rate and ETA.
type ConsoleProgress struct {
	mu       sync.Mutex
	w        io.Writer
	prefix   string
	width    int
	interval time.Duration
	started  time.Time
	last     time.Time
}

// NewConsoleProgress writes to w, or stderr when w is nil.
func NewConsoleProgress(w io.Writer, prefix string) *ConsoleProgress {
	if w == nil {
		w = os.Stderr
	}
	return &ConsoleProgress{w: w, prefix: prefix, width: 40, interval: 100 * time.Millisecond}
}

// WithUpdateInterval sets the minimum redraw interval.
func (c *ConsoleProgress) WithUpdateInterval(d time.Duration) *ConsoleProgress {
	if d > 0 {
		c.interval = d
	}
	return c
}

func (c *ConsoleProgress) OnStart(total int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.started, c.last = time.Now(), time.Time{}
	_, _ = fmt.Fprintf(c.w, "%s0/%d\n", c.prefix, total)
}

func (c *ConsoleProgress) OnProgress(done, total int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	if done < total && now.Sub(c.last) < c.interval {
		return
	}
	c.last = now
	if total <= 0 {
		return
	}

	filled := c.width * done / total
	line := fmt.Sprintf("\r%s[%s%s] %d/%d", c.prefix,
		strings.Repeat("#", filled), strings.Repeat(".", c.width-filled), done, total)
	if elapsed := now.Sub(c.started); elapsed > 0 && done > 0 {
		rate := float64(done) / elapsed.Seconds()
		line += fmt.Sprintf(" %.1f/s", rate)
		if done < total {
			eta := time.Duration(float64(total-done) / rate * float64(time.Second))
			line += fmt.Sprintf(" ETA %v", eta.Round(time.Second))
		}
	}
	_, _ = fmt.Fprint(c.w, line)
}

func (c *ConsoleProgress) OnComplete() {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = fmt.Fprintf(c.w, "\n%sdone in %v\n", c.prefix, time.Since(c.started).Round(time.Millisecond))
}

func (c *ConsoleProgress) OnError(file string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = fmt.Fprintf(c.w, "\n%s%s: %v\n", c.prefix, file, err)
}

// LogProgress reports through slog every Every items.
type LogProgress struct {
	logger  *slog.Logger
	level   slog.Level
	every   int
	last    int
	started time.Time
}

// NewLogProgress logs at level; a nil logger uses slog.Default.
func NewLogProgress(logger *slog.Logger, level slog.Level, every int) *LogProgress {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogProgress{logger: logger, level: level, every: max(every, 1)}
}

func (l *LogProgress) OnStart(total int) {
	l.started, l.last = time.Now(), 0
	l.logger.Log(context.Background(), l.level, "Batch started", "total", total)
}

func (l *LogProgress) OnProgress(done, total int) {
	if done-l.last < l.every && done != total {
		return
	}
	l.last = done
	l.logger.Log(context.Background(), l.level, "Batch progress",
		"done", done,
		"total", total,
		"elapsed", time.Since(l.started).Round(time.Millisecond),
	)
}

func (l *LogProgress) OnComplete() {
	l.logger.Log(context.Background(), l.level, "Batch completed", "elapsed", time.Since(l.started).Round(time.Millisecond))
}

func (l *LogProgress) OnError(file string, err error) {
	l.logger.Log(context.Background(), slog.LevelError, "Batch item failed", "file", file, "error", err)
}

// MultiProgress fans progress out to several callbacks.
type MultiProgress []ProgressCallback

func (m MultiProgress) OnStart(total int) {
	for _, cb := range m {
		cb.OnStart(total)
	}
}

func (m MultiProgress) OnProgress(done, total int) {
	for _, cb := range m {
		cb.OnProgress(done, total)
	}
}

func (m MultiProgress) OnComplete() {
	for _, cb := range m {
		cb.OnComplete()
	}
}

func (m MultiProgress) OnError(file string, err error) {
	for _, cb := range m {
		cb.OnError(file, err)
	}
}
