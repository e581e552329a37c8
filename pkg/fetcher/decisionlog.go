package fetcher

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
)

// DecisionLog records every per-user and per-repository decision as a
// plain text line, appending to the file across runs. Each line is also
// emitted through the structured logger.
type DecisionLog struct {
	mu     sync.Mutex
	out    io.Writer
	closer io.Closer
	logger *slog.Logger
}

// OpenDecisionLog opens path for appending, creating it when missing.
func OpenDecisionLog(path string, logger *slog.Logger) (*DecisionLog, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open decision log: %w", err)
	}

	return &DecisionLog{out: f, closer: f, logger: logger}, nil
}

// NewDecisionLog writes to w without owning it.
func NewDecisionLog(w io.Writer, logger *slog.Logger) *DecisionLog {
	return &DecisionLog{out: w, logger: logger}
}

// Printf appends one formatted line.
func (d *DecisionLog) Printf(ctx context.Context, format string, args ...any) {
	line := fmt.Sprintf(format, args...)

	if d.logger != nil {
		d.logger.InfoContext(ctx, line)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	// A failed log write must not stop the fetch.
	_, _ = io.WriteString(d.out, line+"\n")
}

// Close closes the underlying file, if owned.
func (d *DecisionLog) Close() error {
	if d.closer == nil {
		return nil
	}

	err := d.closer.Close()
	if err != nil {
		return fmt.Errorf("close decision log: %w", err)
	}

	return nil
}
