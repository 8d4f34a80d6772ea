// Package writers provides result sinks for the supported output formats.
package writers

import (
	"github.com/TFMV/driftscan/pkg/core"
)

// Config configures a result sink.
type Config struct {
	// Format selects the sink implementation: csv, json, arrow, parquet.
	Format string

	// Path is the destination file. Created or truncated at open.
	Path string

	// FlushEvery caps how many outcomes the columnar sinks buffer before
	// cutting a record batch. Zero means the default.
	FlushEvery int
}

// Creator builds a sink from a configuration.
type Creator func(config Config) (core.Sink, error)

// Factory creates sinks by format name.
type Factory struct {
	sinks map[string]Creator
}

// NewFactory creates an empty sink factory.
func NewFactory() *Factory {
	return &Factory{sinks: make(map[string]Creator)}
}

// Register registers a creator for a format.
func (f *Factory) Register(format string, creator Creator) {
	f.sinks[format] = creator
}

// Supported reports whether a format is registered.
func (f *Factory) Supported(format string) bool {
	_, ok := f.sinks[format]
	return ok
}

// Create opens a sink for the configuration.
func (f *Factory) Create(config Config) (core.Sink, error) {
	creator, ok := f.sinks[config.Format]
	if !ok {
		return nil, core.Failf(core.FailSink, "unsupported output format: %s", config.Format)
	}
	return creator(config)
}

// DefaultFactory is the factory with the built-in formats.
var DefaultFactory = NewFactory()

func init() {
	DefaultFactory.Register("csv", NewCSVSink)
	DefaultFactory.Register("json", NewJSONSink)
	DefaultFactory.Register("arrow", NewArrowSink)
	DefaultFactory.Register("parquet", NewParquetSink)
}
