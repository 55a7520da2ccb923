package main

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"log/slog"

	"golang.org/x/time/rate"

	"github.com/c360/livegraph/errors"
	"github.com/c360/livegraph/input/natstriple"
	"github.com/c360/livegraph/realtime"
)

// maxLineSize bounds a single JSON-lines message.
const maxLineSize = 1024 * 1024

// ingestStats counts the outcome of every non-blank line.
type ingestStats struct {
	Applied  int
	Rejected int
	Failed   int
}

// ingest reads one triple message per line and applies it to u. Lines that
// fail to decode or apply are logged and skipped. It returns at EOF, or with
// the context error when ctx ends first.
func ingest(ctx context.Context, r io.Reader, u realtime.Updater, perSecond float64, logger *slog.Logger) (ingestStats, error) {
	var stats ingestStats
	var limiter *rate.Limiter
	if perSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	line := 0
	for scanner.Scan() {
		line++
		data := bytes.TrimSpace(scanner.Bytes())
		if len(data) == 0 {
			continue
		}
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		msg, err := natstriple.Decode(data)
		if err != nil {
			stats.Rejected++
			logger.Warn("Rejected stdin message", "line", line, "error", err)
			continue
		}

		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return stats, err
			}
		}

		if err := natstriple.Apply(ctx, u, msg); err != nil {
			stats.Failed++
			logger.Error("Failed to apply stdin message", "line", line, "op", msg.Op, "error", err)
			continue
		}
		stats.Applied++
	}

	if err := scanner.Err(); err != nil {
		return stats, errors.WrapTransient(err, "ingest", "ingest", "read stdin")
	}
	return stats, nil
}
