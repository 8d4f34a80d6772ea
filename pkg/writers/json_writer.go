package writers

import (
	"context"
	"os"

	"github.com/goccy/go-json"

	"github.com/TFMV/driftscan/pkg/core"
)

// JSONSink streams outcomes as a JSON array, one object per outcome.
type JSONSink struct {
	file     *os.File
	firstRow bool
}

// NewJSONSink creates a new JSON sink.
func NewJSONSink(config Config) (core.Sink, error) {
	if config.Path == "" {
		return nil, core.Failf(core.FailSink, "path is required for JSON output")
	}
	file, err := os.Create(config.Path)
	if err != nil {
		return nil, core.Failf(core.FailSink, "creating %s: %v", config.Path, err)
	}

	if _, err := file.WriteString("[\n"); err != nil {
		file.Close()
		return nil, core.Failf(core.FailSink, "writing opening bracket: %v", err)
	}

	return &JSONSink{file: file, firstRow: true}, nil
}

// Write appends one outcome object to the array.
func (s *JSONSink) Write(ctx context.Context, outcome core.Outcome) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if !s.firstRow {
		if _, err := s.file.WriteString(",\n"); err != nil {
			return core.Failf(core.FailSink, "writing separator: %v", err)
		}
	}
	s.firstRow = false

	data, err := json.Marshal(outcome)
	if err != nil {
		return core.Failf(core.FailSink, "encoding record for %s: %v", outcome.Identifier, err)
	}
	if _, err := s.file.Write(data); err != nil {
		return core.Failf(core.FailSink, "writing record for %s: %v", outcome.Identifier, err)
	}
	return nil
}

// Close terminates the array and makes the file durable.
func (s *JSONSink) Close() error {
	var err error
	if _, closeErr := s.file.WriteString("\n]\n"); closeErr != nil {
		err = core.Failf(core.FailSink, "writing closing bracket: %v", closeErr)
	}
	if syncErr := s.file.Sync(); syncErr != nil && err == nil {
		err = core.Failf(core.FailSink, "syncing output: %v", syncErr)
	}
	if closeErr := s.file.Close(); closeErr != nil && err == nil {
		err = core.Failf(core.FailSink, "closing output: %v", closeErr)
	}
	return err
}
