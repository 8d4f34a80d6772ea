package writers

import (
	"context"
	"encoding/csv"
	"os"

	"github.com/TFMV/driftscan/pkg/core"
)

// header matches the result-file contract: three string fields per record.
var header = []string{"identifier", "outcome_kind", "detail"}

// CSVSink is the default sink: one CSV row per outcome, header row first,
// flushed after every write so rows written before an abort stay on disk.
type CSVSink struct {
	file *os.File
	w    *csv.Writer
}

// NewCSVSink creates or truncates the destination and writes the header.
func NewCSVSink(config Config) (core.Sink, error) {
	if config.Path == "" {
		return nil, core.Failf(core.FailSink, "path is required for CSV output")
	}
	file, err := os.Create(config.Path)
	if err != nil {
		return nil, core.Failf(core.FailSink, "creating %s: %v", config.Path, err)
	}

	w := csv.NewWriter(file)
	if err := w.Write(header); err != nil {
		file.Close()
		return nil, core.Failf(core.FailSink, "writing header to %s: %v", config.Path, err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		file.Close()
		return nil, core.Failf(core.FailSink, "writing header to %s: %v", config.Path, err)
	}

	return &CSVSink{file: file, w: w}, nil
}

// Write appends one record and flushes it through to the file.
func (s *CSVSink) Write(ctx context.Context, outcome core.Outcome) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if err := s.w.Write([]string{outcome.Identifier, string(outcome.Kind), outcome.Detail}); err != nil {
		return core.Failf(core.FailSink, "writing record for %s: %v", outcome.Identifier, err)
	}
	s.w.Flush()
	if err := s.w.Error(); err != nil {
		return core.Failf(core.FailSink, "flushing record for %s: %v", outcome.Identifier, err)
	}
	return nil
}

// Close makes everything written durable before returning.
func (s *CSVSink) Close() error {
	s.w.Flush()
	err := s.w.Error()
	if syncErr := s.file.Sync(); syncErr != nil && err == nil {
		err = syncErr
	}
	if closeErr := s.file.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	if err != nil {
		return core.Fail(core.FailSink, err)
	}
	return nil
}
