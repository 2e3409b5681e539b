package ingest

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/m3uproxy/m3uproxy/internal/sandbox"
)

// Strategy selects how a fetched response body is accumulated before
// parsing, traded off between memory pressure and latency.
type Strategy int

const (
	// StrategyInMemory buffers the whole decoded body in memory. Fastest,
	// but only safe below a configured size/pressure threshold.
	StrategyInMemory Strategy = iota
	// StrategyStreamToFile spools the decoded body straight to a sandboxed
	// temp file without ever holding more than a read-buffer's worth in
	// memory, then hands the caller a file handle to parse from.
	StrategyStreamToFile
	// StrategyHybrid buffers up to a threshold in memory and only spills to
	// a temp file if the body exceeds it, avoiding a temp file entirely for
	// the common case of small-to-medium playlists.
	StrategyHybrid
	// StrategyStreamingParser hands the decoded, decompressed reader
	// directly to the caller's parser without buffering or spilling at all;
	// used when the caller can genuinely process record-by-record without
	// needing to seek or retry the read.
	StrategyStreamingParser
)

// Accumulated is the result of running an Accumulator: either an in-memory
// byte slice, or a path to a spooled temp file — never both.
type Accumulated struct {
	Bytes    []byte
	FilePath string
	Reader   io.ReadCloser // set only for StrategyStreamingParser
}

// Close releases the accumulated resource, removing any spooled temp file.
func (a *Accumulated) Close() error {
	if a.Reader != nil {
		a.Reader.Close()
	}
	if a.FilePath != "" {
		return os.Remove(a.FilePath)
	}
	return nil
}

// Open returns a reader over the accumulated content, regardless of which
// strategy produced it.
func (a *Accumulated) Open() (io.ReadCloser, error) {
	if a.Reader != nil {
		return a.Reader, nil
	}
	if a.FilePath != "" {
		return os.Open(a.FilePath)
	}
	return io.NopCloser(bytes.NewReader(a.Bytes)), nil
}

// HybridThreshold is the in-memory size ceiling StrategyHybrid uses before
// spilling to a sandboxed temp file.
const HybridThreshold = 16 << 20 // 16 MiB

// Accumulator fetches and accumulates one upstream document.
type Accumulator struct {
	Client   *http.Client
	Sandbox  *sandbox.Sandbox
	Strategy Strategy
}

// NewAccumulator builds an Accumulator using box for any spooled files.
func NewAccumulator(client *http.Client, box *sandbox.Sandbox, strategy Strategy) *Accumulator {
	return &Accumulator{Client: client, Sandbox: box, Strategy: strategy}
}

// Fetch retrieves url, applies automatic decompression, and accumulates the
// result per a.Strategy. Callers must call Accumulated.Close when done.
func (a *Accumulator) Fetch(ctx context.Context, url string, headers http.Header) (*Accumulated, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("ingest: build request: %w", err)
	}
	for k, vs := range headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Accept-Encoding", "gzip, deflate, br, zstd")

	resp, err := FetchWithRetry(ctx, a.Client, req, DefaultRetryPolicy)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("ingest: upstream %s returned HTTP %d", url, resp.StatusCode)
	}

	br := bufio.NewReader(resp.Body)
	enc, err := SniffEncoding(br, resp.Header.Get("Content-Encoding"))
	if err != nil {
		return nil, fmt.Errorf("ingest: sniff encoding: %w", err)
	}
	decoded, err := DecodeReader(br, enc)
	if err != nil {
		return nil, fmt.Errorf("ingest: decode body: %w", err)
	}

	switch a.Strategy {
	case StrategyInMemory:
		return a.accumulateInMemory(decoded)
	case StrategyStreamToFile:
		return a.accumulateToFile(decoded)
	case StrategyHybrid:
		return a.accumulateHybrid(decoded)
	case StrategyStreamingParser:
		return &Accumulated{Reader: decoded}, nil
	default:
		decoded.Close()
		return nil, fmt.Errorf("ingest: unknown accumulation strategy %d", a.Strategy)
	}
}

func (a *Accumulator) accumulateInMemory(r io.ReadCloser) (*Accumulated, error) {
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("ingest: read body: %w", err)
	}
	return &Accumulated{Bytes: data}, nil
}

func (a *Accumulator) accumulateToFile(r io.ReadCloser) (*Accumulated, error) {
	defer r.Close()
	f, err := a.Sandbox.CreateTemp("ingest-spool", "fetch-*.tmp")
	if err != nil {
		return nil, fmt.Errorf("ingest: create spool file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		os.Remove(f.Name())
		return nil, fmt.Errorf("ingest: spool to disk: %w", err)
	}
	return &Accumulated{FilePath: f.Name()}, nil
}

func (a *Accumulator) accumulateHybrid(r io.ReadCloser) (*Accumulated, error) {
	defer r.Close()

	limited := io.LimitReader(r, HybridThreshold+1)
	buf, err := io.ReadAll(limited)
	if err != nil {
		return nil, fmt.Errorf("ingest: read hybrid buffer: %w", err)
	}
	if len(buf) <= HybridThreshold {
		return &Accumulated{Bytes: buf}, nil
	}

	// Exceeded the in-memory threshold: spill what's buffered plus the rest
	// of the stream to a sandboxed temp file.
	f, err := a.Sandbox.CreateTemp("ingest-spool", "hybrid-*.tmp")
	if err != nil {
		return nil, fmt.Errorf("ingest: create spool file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(buf); err != nil {
		os.Remove(f.Name())
		return nil, fmt.Errorf("ingest: write buffered prefix: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		os.Remove(f.Name())
		return nil, fmt.Errorf("ingest: spool remainder to disk: %w", err)
	}
	return &Accumulated{FilePath: f.Name()}, nil
}
