// Package core provides the shared types and interfaces of the driftscan
// comparison engine.
package core

import (
	"context"

	"github.com/TFMV/driftscan/pkg/value"
)

// Document is one identified value tree fetched from a collection.
type Document struct {
	// ID is the document identifier, unique within its collection.
	ID string

	// Source is the document body decoded into the closed value tree.
	Source value.Value
}

// Batch is one page of documents returned by a single fetch step.
type Batch []Document

// IDs returns the identifiers of the batch in order.
func (b Batch) IDs() []string {
	ids := make([]string, len(b))
	for i, doc := range b {
		ids[i] = doc.ID
	}
	return ids
}

// Fetcher yields a collection's documents as a finite ordered sequence of
// bounded batches.
type Fetcher interface {
	// Next returns the next batch. Returns io.EOF when the traversal is
	// complete. Batches must be consumed in the order returned; a skipped
	// batch is permanently lost to the traversal.
	Next(ctx context.Context) (Batch, error)

	// Close releases the server-side traversal state. Best effort.
	Close() error
}

// OutcomeKind classifies a comparison outcome.
type OutcomeKind string

const (
	// KindFieldDifference marks a document present on both sides with a
	// non-empty structural delta.
	KindFieldDifference OutcomeKind = "field_difference"

	// KindMissingInOne marks a document present in only one collection.
	KindMissingInOne OutcomeKind = "missing_in_one"
)

// Outcome is one classified comparison result. Detail carries the
// JSON-encoded structural delta for field differences, or a human-readable
// provenance string for one-sided documents.
type Outcome struct {
	Identifier string      `json:"identifier"`
	Kind       OutcomeKind `json:"outcome_kind"`
	Detail     string      `json:"detail"`
}

// Sink streams classified outcomes to a durable destination. Implementations
// flush incrementally so memory does not grow with the result count, and
// guarantee durability of everything written once Close returns.
type Sink interface {
	Write(ctx context.Context, outcome Outcome) error
	Close() error
}
