package writers

import (
	"context"
	"os"

	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/TFMV/driftscan/pkg/core"
)

// ArrowSink writes outcomes to an Arrow IPC file, one record batch per
// FlushEvery outcomes.
type ArrowSink struct {
	file       *os.File
	writer     *ipc.FileWriter
	builder    *outcomeBuilder
	flushEvery int
}

// NewArrowSink creates a new Arrow IPC sink.
func NewArrowSink(config Config) (core.Sink, error) {
	if config.Path == "" {
		return nil, core.Failf(core.FailSink, "path is required for Arrow output")
	}
	file, err := os.Create(config.Path)
	if err != nil {
		return nil, core.Failf(core.FailSink, "creating %s: %v", config.Path, err)
	}

	writer, err := ipc.NewFileWriter(file, ipc.WithSchema(outcomeSchema))
	if err != nil {
		file.Close()
		return nil, core.Failf(core.FailSink, "creating Arrow writer for %s: %v", config.Path, err)
	}

	flushEvery := config.FlushEvery
	if flushEvery <= 0 {
		flushEvery = defaultFlushEvery
	}

	return &ArrowSink{
		file:       file,
		writer:     writer,
		builder:    newOutcomeBuilder(memory.DefaultAllocator),
		flushEvery: flushEvery,
	}, nil
}

// Write buffers one outcome, cutting a record batch at the flush boundary.
func (s *ArrowSink) Write(ctx context.Context, outcome core.Outcome) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	s.builder.append(outcome)
	if s.builder.rows >= s.flushEvery {
		return s.flush()
	}
	return nil
}

func (s *ArrowSink) flush() error {
	if s.builder.rows == 0 {
		return nil
	}
	rec := s.builder.record()
	defer rec.Release()
	if err := s.writer.Write(rec); err != nil {
		return core.Failf(core.FailSink, "writing record batch: %v", err)
	}
	return nil
}

// Close flushes the remainder and finalizes the file.
func (s *ArrowSink) Close() error {
	err := s.flush()
	s.builder.release()
	if closeErr := s.writer.Close(); closeErr != nil && err == nil {
		err = core.Failf(core.FailSink, "closing Arrow writer: %v", closeErr)
	}
	if syncErr := s.file.Sync(); syncErr != nil && err == nil {
		err = core.Failf(core.FailSink, "syncing output: %v", syncErr)
	}
	if closeErr := s.file.Close(); closeErr != nil && err == nil {
		err = core.Failf(core.FailSink, "closing output: %v", closeErr)
	}
	return err
}
