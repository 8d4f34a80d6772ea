package writers

import (
	"context"
	"os"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"

	"github.com/TFMV/driftscan/pkg/core"
)

// ParquetSink writes outcomes to a Parquet file with Snappy compression.
type ParquetSink struct {
	file       *os.File
	writer     *pqarrow.FileWriter
	builder    *outcomeBuilder
	flushEvery int
}

// NewParquetSink creates a new Parquet sink.
func NewParquetSink(config Config) (core.Sink, error) {
	if config.Path == "" {
		return nil, core.Failf(core.FailSink, "path is required for Parquet output")
	}
	file, err := os.Create(config.Path)
	if err != nil {
		return nil, core.Failf(core.FailSink, "creating %s: %v", config.Path, err)
	}

	writeProps := parquet.NewWriterProperties(
		parquet.WithCompression(compress.Codecs.Snappy),
		parquet.WithDictionaryDefault(false),
	)
	writer, err := pqarrow.NewFileWriter(outcomeSchema, file, writeProps, pqarrow.NewArrowWriterProperties())
	if err != nil {
		file.Close()
		return nil, core.Failf(core.FailSink, "creating Parquet writer for %s: %v", config.Path, err)
	}

	flushEvery := config.FlushEvery
	if flushEvery <= 0 {
		flushEvery = defaultFlushEvery
	}

	return &ParquetSink{
		file:       file,
		writer:     writer,
		builder:    newOutcomeBuilder(memory.DefaultAllocator),
		flushEvery: flushEvery,
	}, nil
}

// Write buffers one outcome, cutting a record batch at the flush boundary.
func (s *ParquetSink) Write(ctx context.Context, outcome core.Outcome) error {
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

func (s *ParquetSink) flush() error {
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
func (s *ParquetSink) Close() error {
	err := s.flush()
	s.builder.release()
	if closeErr := s.writer.Close(); closeErr != nil && err == nil {
		err = core.Failf(core.FailSink, "closing Parquet writer: %v", closeErr)
	}
	if closeErr := s.file.Close(); closeErr != nil && err == nil {
		err = core.Failf(core.FailSink, "closing output: %v", closeErr)
	}
	return err
}
