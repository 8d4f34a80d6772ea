package writers

import (
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/TFMV/driftscan/pkg/core"
)

// defaultFlushEvery bounds how many outcomes the columnar sinks buffer
// before cutting a record batch, keeping memory at O(batch), not O(results).
const defaultFlushEvery = 1024

// outcomeSchema is the Arrow schema shared by the arrow and parquet sinks.
var outcomeSchema = arrow.NewSchema([]arrow.Field{
	{Name: "identifier", Type: arrow.BinaryTypes.String},
	{Name: "outcome_kind", Type: arrow.BinaryTypes.String},
	{Name: "detail", Type: arrow.BinaryTypes.String},
}, nil)

// outcomeBuilder accumulates outcomes into Arrow string columns.
type outcomeBuilder struct {
	identifier *array.StringBuilder
	kind       *array.StringBuilder
	detail     *array.StringBuilder
	rows       int
}

func newOutcomeBuilder(mem memory.Allocator) *outcomeBuilder {
	return &outcomeBuilder{
		identifier: array.NewStringBuilder(mem),
		kind:       array.NewStringBuilder(mem),
		detail:     array.NewStringBuilder(mem),
	}
}

func (b *outcomeBuilder) append(outcome core.Outcome) {
	b.identifier.Append(outcome.Identifier)
	b.kind.Append(string(outcome.Kind))
	b.detail.Append(outcome.Detail)
	b.rows++
}

// record drains the builder into one record batch. Caller releases it.
func (b *outcomeBuilder) record() arrow.Record {
	cols := []arrow.Array{
		b.identifier.NewArray(),
		b.kind.NewArray(),
		b.detail.NewArray(),
	}
	rec := array.NewRecord(outcomeSchema, cols, int64(b.rows))
	for _, col := range cols {
		col.Release()
	}
	b.rows = 0
	return rec
}

func (b *outcomeBuilder) release() {
	b.identifier.Release()
	b.kind.Release()
	b.detail.Release()
}
