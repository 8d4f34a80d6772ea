// Package store implements the HTTP client for the remote document store:
// liveness probe, collection checks, counts, scroll traversal, and
// multi-get cross-lookup.
package store

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/TFMV/driftscan/pkg/core"
	"github.com/TFMV/driftscan/pkg/value"
)

// Options configures a store client.
type Options struct {
	// Address is the base URL of the store, e.g. http://localhost:9200.
	Address string

	// DocType is the document type tag used in request paths.
	DocType string

	// PageSize is the number of documents per scroll batch. Must be > 0.
	PageSize int

	// Lease is the scroll lease duration in store syntax, e.g. "2m".
	Lease string

	// HTTPClient overrides the transport. Defaults to http.DefaultClient.
	HTTPClient *http.Client

	// Logger is optional; defaults to a no-op logger.
	Logger *zap.Logger
}

// Client talks to one store. All methods are blocking round trips; no method
// retries on failure.
type Client struct {
	base     *url.URL
	http     *http.Client
	docType  string
	pageSize int
	lease    string
	logger   *zap.Logger
}

// NewClient validates the options and builds a client. No network traffic
// happens here.
func NewClient(opts Options) (*Client, error) {
	base, err := url.Parse(opts.Address)
	if err != nil {
		return nil, fmt.Errorf("parsing store address: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("store address %q must use http or https", opts.Address)
	}
	if opts.PageSize <= 0 {
		return nil, fmt.Errorf("page size must be positive, got %d", opts.PageSize)
	}
	if opts.Lease == "" {
		return nil, fmt.Errorf("lease duration is required")
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	docType := opts.DocType
	if docType == "" {
		docType = "_doc"
	}

	return &Client{
		base:     base,
		http:     httpClient,
		docType:  docType,
		pageSize: opts.PageSize,
		lease:    opts.Lease,
		logger:   logger,
	}, nil
}

// Ping probes store liveness. A failure is a connectivity failure.
func (c *Client) Ping(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodGet, "/", nil, nil)
	if err != nil {
		return core.Fail(core.FailConnectivity, err)
	}
	defer drain(resp)
	if resp.StatusCode != http.StatusOK {
		return core.Failf(core.FailConnectivity, "store at %s answered ping with status %d", c.base, resp.StatusCode)
	}
	return nil
}

// CollectionExists reports whether the named collection exists.
func (c *Client) CollectionExists(ctx context.Context, collection string) (bool, error) {
	resp, err := c.do(ctx, http.MethodHead, "/"+url.PathEscape(collection), nil, nil)
	if err != nil {
		return false, core.Fail(core.FailConnectivity, err)
	}
	defer drain(resp)
	switch resp.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, core.Failf(core.FailConnectivity, "existence check for %s: unexpected status %d", collection, resp.StatusCode)
	}
}

type countResponse struct {
	Count int64 `json:"count"`
}

// Count returns the number of documents in the collection.
func (c *Client) Count(ctx context.Context, collection string) (int64, error) {
	path := fmt.Sprintf("/%s/%s/_count", url.PathEscape(collection), url.PathEscape(c.docType))
	resp, err := c.do(ctx, http.MethodGet, path, nil, nil)
	if err != nil {
		return 0, core.Fail(core.FailConnectivity, err)
	}
	defer drain(resp)
	if resp.StatusCode != http.StatusOK {
		return 0, core.Failf(core.FailConnectivity, "counting %s: unexpected status %d", collection, resp.StatusCode)
	}
	var out countResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, core.Failf(core.FailConnectivity, "counting %s: decoding response: %v", collection, err)
	}
	return out.Count, nil
}

type mgetRequest struct {
	IDs []string `json:"ids"`
}

type mgetResponse struct {
	Docs []struct {
		ID     string          `json:"_id"`
		Found  bool            `json:"found"`
		Source json.RawMessage `json:"_source"`
	} `json:"docs"`
}

// MultiGet resolves the identifiers against a collection in one round trip.
// Identifiers absent from the collection are simply missing from the result.
func (c *Client) MultiGet(ctx context.Context, collection string, ids []string) (map[string]core.Document, error) {
	path := fmt.Sprintf("/%s/%s/_mget", url.PathEscape(collection), url.PathEscape(c.docType))
	resp, err := c.do(ctx, http.MethodPost, path, nil, mgetRequest{IDs: ids})
	if err != nil {
		return nil, core.Fail(core.FailTraversal, err)
	}
	defer drain(resp)
	if resp.StatusCode != http.StatusOK {
		return nil, core.Failf(core.FailTraversal, "multi-get against %s: unexpected status %d: %s", collection, resp.StatusCode, bodyExcerpt(resp))
	}

	var out mgetResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, core.Failf(core.FailTraversal, "multi-get against %s: decoding response: %v", collection, err)
	}

	docs := make(map[string]core.Document, len(out.Docs))
	for _, d := range out.Docs {
		if !d.Found {
			continue
		}
		src, err := value.FromJSON(d.Source)
		if err != nil {
			return nil, core.Failf(core.FailTraversal, "multi-get against %s: document %s: %v", collection, d.ID, err)
		}
		docs[d.ID] = core.Document{ID: d.ID, Source: src}
	}
	return docs, nil
}

type searchRequest struct {
	Size  int            `json:"size"`
	Query map[string]any `json:"query"`
}

type searchResponse struct {
	ScrollID string `json:"_scroll_id"`
	Hits     struct {
		Hits []struct {
			ID     string          `json:"_id"`
			Source json.RawMessage `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// Scan opens a scroll over the whole collection and returns a Fetcher for
// its batches. The caller must consume batches in order and Close the
// fetcher when done.
func (c *Client) Scan(ctx context.Context, collection string) (core.Fetcher, error) {
	path := fmt.Sprintf("/%s/%s/_search", url.PathEscape(collection), url.PathEscape(c.docType))
	query := url.Values{"scroll": {c.lease}}
	body := searchRequest{
		Size:  c.pageSize,
		Query: map[string]any{"match_all": map[string]any{}},
	}

	resp, err := c.do(ctx, http.MethodPost, path+"?"+query.Encode(), nil, body)
	if err != nil {
		return nil, core.Fail(core.FailTraversal, err)
	}
	defer drain(resp)
	if resp.StatusCode != http.StatusOK {
		return nil, core.Failf(core.FailTraversal, "opening scan of %s: unexpected status %d: %s", collection, resp.StatusCode, bodyExcerpt(resp))
	}

	var out searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, core.Failf(core.FailTraversal, "opening scan of %s: decoding response: %v", collection, err)
	}

	first, err := decodeHits(collection, out)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("scan opened",
		zap.String("collection", collection),
		zap.Int("page_size", c.pageSize),
		zap.String("lease", c.lease),
		zap.Int("first_batch", len(first)))

	return &Scroll{
		client:     c,
		collection: collection,
		id:         out.ScrollID,
		first:      first,
	}, nil
}

func decodeHits(collection string, resp searchResponse) (core.Batch, error) {
	batch := make(core.Batch, 0, len(resp.Hits.Hits))
	for _, hit := range resp.Hits.Hits {
		src, err := value.FromJSON(hit.Source)
		if err != nil {
			return nil, core.Failf(core.FailTraversal, "scanning %s: document %s: %v", collection, hit.ID, err)
		}
		batch = append(batch, core.Document{ID: hit.ID, Source: src})
	}
	return batch, nil
}

// do issues one request with an optional JSON body.
func (c *Client) do(ctx context.Context, method, path string, header http.Header, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	ref, err := url.Parse(path)
	if err != nil {
		return nil, fmt.Errorf("bad request path %q: %w", path, err)
	}
	u := c.base.ResolveReference(ref)

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return nil, err
	}
	for k, vals := range header {
		for _, v := range vals {
			req.Header.Add(k, v)
		}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	c.logger.Debug("store request",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)))
	return resp, nil
}

// drain discards and closes a response body so connections are reused.
func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}

// bodyExcerpt reads a short prefix of an error response for diagnostics.
func bodyExcerpt(resp *http.Response) string {
	data, err := io.ReadAll(io.LimitReader(resp.Body, 512))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}
