// Package compare implements the comparison orchestrator: a two-pass
// traversal over collections A and B that classifies every identifier as
// equal, structurally different, or missing from one side.
package compare

import (
	"context"
	"errors"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/TFMV/driftscan/config"
	"github.com/TFMV/driftscan/metrics"
	"github.com/TFMV/driftscan/pkg/core"
	"github.com/TFMV/driftscan/pkg/diff"
	"github.com/TFMV/driftscan/pkg/value"
)

// Store is the remote-store capability the comparison consumes.
type Store interface {
	// Ping probes liveness before any traversal begins.
	Ping(ctx context.Context) error

	// CollectionExists reports whether a named collection exists.
	CollectionExists(ctx context.Context, collection string) (bool, error)

	// Count returns a collection's document count, used for progress totals.
	Count(ctx context.Context, collection string) (int64, error)

	// Scan opens a full ordered traversal over a collection.
	Scan(ctx context.Context, collection string) (core.Fetcher, error)

	// MultiGet resolves identifiers against a collection in one round trip.
	MultiGet(ctx context.Context, collection string, ids []string) (map[string]core.Document, error)
}

// Differ computes the structural delta for a matched document pair.
type Differ interface {
	Compare(a, b value.Value) diff.Delta
}

// The run moves through three states, linearly, with no branching back.
type state uint8

const (
	stateScanningA state = iota
	stateScanningB
	stateDone
)

// Comparer drives a single run. It exclusively owns the set of reconciled
// identifiers and the sink handle for the run's lifetime.
type Comparer struct {
	cfg     *config.Config
	store   Store
	differ  Differ
	sink    core.Sink
	logger  *zap.Logger
	tracker *metrics.Tracker

	// seen holds every identifier classified during pass 1. Identifiers
	// only, never documents: memory stays O(|A|) ids + O(page size) docs.
	seen  map[string]struct{}
	state state
}

// New builds a Comparer from an immutable run configuration and its
// collaborators.
func New(cfg *config.Config, store Store, differ Differ, sink core.Sink, logger *zap.Logger, tracker *metrics.Tracker) *Comparer {
	return &Comparer{
		cfg:     cfg,
		store:   store,
		differ:  differ,
		sink:    sink,
		logger:  logger,
		tracker: tracker,
		seen:    make(map[string]struct{}),
		state:   stateScanningA,
	}
}

// Run executes the full comparison. Any failure is fatal for the run; the
// outcomes already streamed to the sink remain on disk as a partial result.
// Cancellation takes effect at the next page boundary.
func (c *Comparer) Run(ctx context.Context) (metrics.RunSummary, error) {
	if err := c.preflight(ctx); err != nil {
		return c.tracker.Summarize(), err
	}
	if err := c.scanPrimary(ctx); err != nil {
		return c.tracker.Summarize(), err
	}
	if err := c.scanResidual(ctx); err != nil {
		return c.tracker.Summarize(), err
	}

	c.state = stateDone
	c.tracker.SetPhase(metrics.PhaseDone)
	summary := c.tracker.Summarize()
	c.logger.Info("comparison complete",
		zap.String("run_id", summary.RunID),
		zap.Int64("scanned_a", summary.ScannedA),
		zap.Int64("scanned_b", summary.ScannedB),
		zap.Int64("field_differences", summary.FieldDifferences),
		zap.Int64("missing_in_one", summary.MissingInOne),
		zap.Duration("elapsed", summary.Duration))
	return summary, nil
}

// Done reports whether the run reached its terminal state. A terminal run
// performs no further reads or writes.
func (c *Comparer) Done() bool { return c.state == stateDone }

// preflight verifies liveness and that both collections exist before any
// scroll is opened, and records totals for progress reporting.
func (c *Comparer) preflight(ctx context.Context) error {
	if err := c.store.Ping(ctx); err != nil {
		return err
	}

	for _, collection := range []string{c.cfg.CollectionA, c.cfg.CollectionB} {
		ok, err := c.store.CollectionExists(ctx, collection)
		if err != nil {
			return err
		}
		if !ok {
			return core.Failf(core.FailNotFound, "collection %q does not exist", collection)
		}
	}

	totalA, err := c.store.Count(ctx, c.cfg.CollectionA)
	if err != nil {
		return err
	}
	totalB, err := c.store.Count(ctx, c.cfg.CollectionB)
	if err != nil {
		return err
	}
	c.tracker.SetTotals(totalA, totalB)

	c.logger.Info("starting comparison",
		zap.String("collection_a", c.cfg.CollectionA),
		zap.String("collection_b", c.cfg.CollectionB),
		zap.Int64("total_a", totalA),
		zap.Int64("total_b", totalB),
		zap.Int("page_size", c.cfg.PageSize))
	return nil
}

// scanPrimary is pass 1: traverse A, cross-look peers up in B, diff matched
// pairs, and record every A identifier as reconciled.
func (c *Comparer) scanPrimary(ctx context.Context) error {
	c.state = stateScanningA
	c.tracker.SetPhase(metrics.PhaseScanningA)

	fetcher, err := c.store.Scan(ctx, c.cfg.CollectionA)
	if err != nil {
		return err
	}
	defer fetcher.Close()

	for {
		if err := pageBoundary(ctx); err != nil {
			return err
		}

		batch, err := fetcher.Next(ctx)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		start := time.Now()
		peers, err := c.store.MultiGet(ctx, c.cfg.CollectionB, batch.IDs())
		if err != nil {
			return err
		}

		for _, doc := range batch {
			c.seen[doc.ID] = struct{}{}

			peer, found := peers[doc.ID]
			if !found {
				if err := c.emit(ctx, core.Outcome{
					Identifier: doc.ID,
					Kind:       core.KindMissingInOne,
					Detail:     "present only in " + c.cfg.CollectionA,
				}); err != nil {
					return err
				}
				continue
			}

			delta := c.differ.Compare(doc.Source, peer.Source)
			if delta.Empty() {
				continue
			}
			detail, err := delta.Detail()
			if err != nil {
				return core.Fail(core.FailTraversal, err)
			}
			if err := c.emit(ctx, core.Outcome{
				Identifier: doc.ID,
				Kind:       core.KindFieldDifference,
				Detail:     detail,
			}); err != nil {
				return err
			}
		}

		c.tracker.ObserveBatch(metrics.PhaseScanningA, len(batch), time.Since(start))
	}
}

// scanResidual is pass 2: traverse B and emit anything pass 1 never saw.
// Identifiers reconciled in pass 1 are never re-emitted.
func (c *Comparer) scanResidual(ctx context.Context) error {
	c.state = stateScanningB
	c.tracker.SetPhase(metrics.PhaseScanningB)

	fetcher, err := c.store.Scan(ctx, c.cfg.CollectionB)
	if err != nil {
		return err
	}
	defer fetcher.Close()

	for {
		if err := pageBoundary(ctx); err != nil {
			return err
		}

		batch, err := fetcher.Next(ctx)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		start := time.Now()
		for _, doc := range batch {
			if _, reconciled := c.seen[doc.ID]; reconciled {
				continue
			}
			if err := c.emit(ctx, core.Outcome{
				Identifier: doc.ID,
				Kind:       core.KindMissingInOne,
				Detail:     "present only in " + c.cfg.CollectionB,
			}); err != nil {
				return err
			}
		}

		c.tracker.ObserveBatch(metrics.PhaseScanningB, len(batch), time.Since(start))
	}
}

func (c *Comparer) emit(ctx context.Context, outcome core.Outcome) error {
	if err := c.sink.Write(ctx, outcome); err != nil {
		return err
	}
	c.tracker.RecordOutcome(outcome.Kind)
	return nil
}

// pageBoundary is the only point a requested stop takes effect: an
// in-progress batch always finishes first.
func pageBoundary(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return core.Failf(core.FailTraversal, "run canceled: %v", err)
	}
	return nil
}
