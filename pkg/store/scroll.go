package store

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/TFMV/driftscan/pkg/core"
)

// closeTimeout bounds the best-effort scroll cleanup call.
const closeTimeout = 5 * time.Second

// Scroll is a cursor-backed traversal over one collection. Each continuation
// must be made with exactly the handle returned by the previous call; the
// server invalidates the handle once the lease elapses with no call.
type Scroll struct {
	client     *Client
	collection string
	id         string
	first      core.Batch
	delivered  bool
	done       bool
}

type continueRequest struct {
	ScrollID string `json:"scroll_id"`
	Scroll   string `json:"scroll"`
}

type clearRequest struct {
	ScrollID []string `json:"scroll_id"`
}

// Next returns the next batch in traversal order, or io.EOF once the
// collection is exhausted. A failed or expired continuation is fatal; the
// traversal cannot be resumed.
func (s *Scroll) Next(ctx context.Context) (core.Batch, error) {
	if !s.delivered {
		s.delivered = true
		if len(s.first) == 0 {
			s.done = true
			return nil, io.EOF
		}
		batch := s.first
		s.first = nil
		return batch, nil
	}
	if s.done {
		return nil, io.EOF
	}

	body := continueRequest{ScrollID: s.id, Scroll: s.client.lease}
	resp, err := s.client.do(ctx, http.MethodPost, "/_search/scroll", nil, body)
	if err != nil {
		return nil, core.Fail(core.FailTraversal, err)
	}
	defer drain(resp)
	if resp.StatusCode != http.StatusOK {
		// A 404 here almost always means the lease expired.
		return nil, core.Failf(core.FailTraversal, "continuing scan of %s: unexpected status %d: %s", s.collection, resp.StatusCode, bodyExcerpt(resp))
	}

	var out searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, core.Failf(core.FailTraversal, "continuing scan of %s: decoding response: %v", s.collection, err)
	}

	// The continuation handle can rotate between calls.
	s.id = out.ScrollID

	batch, err := decodeHits(s.collection, out)
	if err != nil {
		return nil, err
	}
	if len(batch) == 0 {
		s.done = true
		return nil, io.EOF
	}
	return batch, nil
}

// Close releases the server-side scroll context. Best effort: a failure is
// not fatal since the lease expires on its own.
func (s *Scroll) Close() error {
	if s.id == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()

	resp, err := s.client.do(ctx, http.MethodDelete, "/_search/scroll", nil, clearRequest{ScrollID: []string{s.id}})
	if err != nil {
		return err
	}
	drain(resp)
	s.id = ""
	return nil
}
