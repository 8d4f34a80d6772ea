package compare

import (
	"context"
	"io"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/TFMV/driftscan/config"
	"github.com/TFMV/driftscan/metrics"
	"github.com/TFMV/driftscan/pkg/core"
	"github.com/TFMV/driftscan/pkg/diff"
	"github.com/TFMV/driftscan/pkg/value"
)

// memStore is an in-memory Store with deterministic traversal order.
type memStore struct {
	collections map[string][]core.Document
	pageSize    int

	failScan     map[string]error // collection -> error on Scan
	failMultiGet error
}

func newMemStore(pageSize int) *memStore {
	return &memStore{
		collections: make(map[string][]core.Document),
		pageSize:    pageSize,
		failScan:    make(map[string]error),
	}
}

func (m *memStore) add(t *testing.T, collection, id, source string) {
	t.Helper()
	v, err := value.FromJSON([]byte(source))
	require.NoError(t, err)
	m.collections[collection] = append(m.collections[collection], core.Document{ID: id, Source: v})
}

func (m *memStore) Ping(ctx context.Context) error { return nil }

func (m *memStore) CollectionExists(ctx context.Context, collection string) (bool, error) {
	_, ok := m.collections[collection]
	return ok, nil
}

func (m *memStore) Count(ctx context.Context, collection string) (int64, error) {
	return int64(len(m.collections[collection])), nil
}

func (m *memStore) Scan(ctx context.Context, collection string) (core.Fetcher, error) {
	if err := m.failScan[collection]; err != nil {
		return nil, err
	}
	return &memFetcher{docs: m.collections[collection], pageSize: m.pageSize}, nil
}

func (m *memStore) MultiGet(ctx context.Context, collection string, ids []string) (map[string]core.Document, error) {
	if m.failMultiGet != nil {
		return nil, m.failMultiGet
	}
	byID := make(map[string]core.Document)
	for _, doc := range m.collections[collection] {
		byID[doc.ID] = doc
	}
	out := make(map[string]core.Document)
	for _, id := range ids {
		if doc, ok := byID[id]; ok {
			out[id] = doc
		}
	}
	return out, nil
}

type memFetcher struct {
	docs     []core.Document
	pageSize int
	offset   int
	closed   bool
}

func (f *memFetcher) Next(ctx context.Context) (core.Batch, error) {
	if f.offset >= len(f.docs) {
		return nil, io.EOF
	}
	end := f.offset + f.pageSize
	if end > len(f.docs) {
		end = len(f.docs)
	}
	batch := core.Batch(f.docs[f.offset:end])
	f.offset = end
	return batch, nil
}

func (f *memFetcher) Close() error {
	f.closed = true
	return nil
}

// memSink captures outcomes in memory.
type memSink struct {
	outcomes  []core.Outcome
	closed    bool
	failWrite error
}

func (s *memSink) Write(ctx context.Context, outcome core.Outcome) error {
	if s.failWrite != nil {
		return s.failWrite
	}
	s.outcomes = append(s.outcomes, outcome)
	return nil
}

func (s *memSink) Close() error {
	s.closed = true
	return nil
}

func testConfig() *config.Config {
	return &config.Config{
		Address:      "http://localhost:9200",
		CollectionA:  "index_a",
		CollectionB:  "index_b",
		DocType:      "_doc",
		PageSize:     2,
		Lease:        "2m",
		OutputFormat: "csv",
		OutputPath:   "out.csv",
	}
}

func newTestComparer(t *testing.T, store Store, sink core.Sink, exclude ...string) *Comparer {
	t.Helper()
	differ, err := diff.New(exclude)
	require.NoError(t, err)
	return New(testConfig(), store, differ, sink, zap.NewNop(), metrics.NewTracker())
}

func outcomeByID(outcomes []core.Outcome, id string) (core.Outcome, bool) {
	for _, o := range outcomes {
		if o.Identifier == id {
			return o, true
		}
	}
	return core.Outcome{}, false
}

func TestRunEqualCollectionsEmitNothing(t *testing.T) {
	store := newMemStore(2)
	for _, c := range []string{"index_a", "index_b"} {
		store.add(t, c, "1", `{"x":1}`)
		store.add(t, c, "2", `{"x":2,"tags":["a","b"]}`)
	}
	sink := &memSink{}

	comparer := newTestComparer(t, store, sink)
	summary, err := comparer.Run(context.Background())
	require.NoError(t, err)

	assert.Empty(t, sink.outcomes, "equal collections must produce no records")
	assert.True(t, comparer.Done())
	assert.Equal(t, int64(2), summary.ScannedA)
	assert.Equal(t, int64(2), summary.ScannedB)
	assert.Zero(t, summary.Outcomes())
}

func TestRunEndToEndScenario(t *testing.T) {
	store := newMemStore(2)
	store.add(t, "index_a", "1", `{"x":1}`)
	store.add(t, "index_a", "2", `{"x":2}`)
	store.add(t, "index_a", "3", `{"x":3}`)
	store.add(t, "index_b", "1", `{"x":1}`)
	store.add(t, "index_b", "2", `{"x":9}`)
	store.add(t, "index_b", "4", `{"x":4}`)
	sink := &memSink{}

	comparer := newTestComparer(t, store, sink)
	summary, err := comparer.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, sink.outcomes, 3, "exactly three records expected")

	_, found := outcomeByID(sink.outcomes, "1")
	assert.False(t, found, "id 1 is equal on both sides and must be absent")

	o2, found := outcomeByID(sink.outcomes, "2")
	require.True(t, found)
	assert.Equal(t, core.KindFieldDifference, o2.Kind)
	assert.Contains(t, o2.Detail, `"$.x"`)

	o3, found := outcomeByID(sink.outcomes, "3")
	require.True(t, found)
	assert.Equal(t, core.KindMissingInOne, o3.Kind)
	assert.Equal(t, "present only in index_a", o3.Detail)

	o4, found := outcomeByID(sink.outcomes, "4")
	require.True(t, found)
	assert.Equal(t, core.KindMissingInOne, o4.Kind)
	assert.Equal(t, "present only in index_b", o4.Detail)

	assert.Equal(t, int64(1), summary.FieldDifferences)
	assert.Equal(t, int64(2), summary.MissingInOne)
}

func TestRunResidualEmittedAfterPrimary(t *testing.T) {
	store := newMemStore(1)
	store.add(t, "index_a", "a1", `{"x":1}`)
	store.add(t, "index_b", "a1", `{"x":1}`)
	store.add(t, "index_b", "b1", `{"x":1}`)
	store.add(t, "index_b", "b2", `{"x":1}`)
	sink := &memSink{}

	comparer := newTestComparer(t, store, sink)
	_, err := comparer.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, sink.outcomes, 2)
	for _, o := range sink.outcomes {
		assert.Equal(t, core.KindMissingInOne, o.Kind)
		assert.Equal(t, "present only in index_b", o.Detail)
	}
}

func TestRunNoIdentifierEmittedTwice(t *testing.T) {
	store := newMemStore(3)
	// Every id present in both collections but all different, plus one-sided
	// ids on each side.
	for i := 0; i < 7; i++ {
		id := string(rune('a' + i))
		store.add(t, "index_a", id, `{"v":1}`)
		store.add(t, "index_b", id, `{"v":2}`)
	}
	store.add(t, "index_a", "only-a", `{"v":1}`)
	store.add(t, "index_b", "only-b", `{"v":1}`)
	sink := &memSink{}

	comparer := newTestComparer(t, store, sink)
	_, err := comparer.Run(context.Background())
	require.NoError(t, err)

	seen := make(map[string]int)
	for _, o := range sink.outcomes {
		seen[o.Identifier]++
	}
	for id, n := range seen {
		assert.Equal(t, 1, n, "identifier %s emitted %d times", id, n)
	}
	assert.Len(t, seen, 9)
}

func TestRunOrderIndependentSequences(t *testing.T) {
	store := newMemStore(2)
	store.add(t, "index_a", "1", `{"tags":["x","y","z"]}`)
	store.add(t, "index_b", "1", `{"tags":["z","x","y"]}`)
	sink := &memSink{}

	comparer := newTestComparer(t, store, sink)
	_, err := comparer.Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, sink.outcomes)
}

func TestRunExcludedPath(t *testing.T) {
	store := newMemStore(2)
	store.add(t, "index_a", "1", `{"x":1,"updated_at":"then"}`)
	store.add(t, "index_b", "1", `{"x":1,"updated_at":"now"}`)

	sink := &memSink{}
	comparer := newTestComparer(t, store, sink)
	_, err := comparer.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, sink.outcomes, 1, "difference expected without exclusion")

	sink = &memSink{}
	comparer = newTestComparer(t, store, sink, "updated_at")
	_, err = comparer.Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, sink.outcomes, "excluded path must silence the difference")
}

func TestRunMissingCollectionFailsUpFront(t *testing.T) {
	store := newMemStore(2)
	store.add(t, "index_a", "1", `{"x":1}`)
	sink := &memSink{}

	comparer := newTestComparer(t, store, sink)
	_, err := comparer.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, core.FailNotFound, core.KindOf(err))
	assert.Empty(t, sink.outcomes, "not-found must be detected before scanning")
}

func TestRunPassOneResultsSurviveResidualFailure(t *testing.T) {
	store := newMemStore(2)
	store.add(t, "index_a", "1", `{"x":1}`)
	store.add(t, "index_a", "2", `{"x":2}`)
	store.add(t, "index_b", "1", `{"x":1}`)
	store.add(t, "index_b", "9", `{"x":9}`)
	store.failScan["index_b"] = core.Failf(core.FailTraversal, "lease expired")
	sink := &memSink{}

	comparer := newTestComparer(t, store, sink)
	_, err := comparer.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, core.FailTraversal, core.KindOf(err))

	// Exactly the pass-1 records, nothing from the failed pass 2.
	ids := make([]string, 0, len(sink.outcomes))
	for _, o := range sink.outcomes {
		ids = append(ids, o.Identifier)
	}
	sort.Strings(ids)
	assert.Equal(t, []string{"2"}, ids)
	assert.False(t, comparer.Done())
}

func TestRunCrossLookupFailureIsFatal(t *testing.T) {
	store := newMemStore(2)
	store.add(t, "index_a", "1", `{"x":1}`)
	store.add(t, "index_b", "1", `{"x":1}`)
	store.failMultiGet = core.Failf(core.FailTraversal, "mget timeout")
	sink := &memSink{}

	comparer := newTestComparer(t, store, sink)
	_, err := comparer.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, core.FailTraversal, core.KindOf(err))
}

func TestRunSinkFailureIsFatal(t *testing.T) {
	store := newMemStore(2)
	store.add(t, "index_a", "1", `{"x":1}`)
	store.add(t, "index_b", "1", `{"x":2}`)
	sink := &memSink{failWrite: core.Failf(core.FailSink, "disk full")}

	comparer := newTestComparer(t, store, sink)
	_, err := comparer.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, core.FailSink, core.KindOf(err))
}

func TestRunCancellationStopsAtPageBoundary(t *testing.T) {
	store := newMemStore(2)
	store.add(t, "index_a", "1", `{"x":1}`)
	store.collections["index_b"] = nil
	sink := &memSink{}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	comparer := newTestComparer(t, store, sink)
	_, err := comparer.Run(ctx)
	require.Error(t, err)
	assert.Equal(t, core.FailTraversal, core.KindOf(err))
	assert.Empty(t, sink.outcomes)
}
