package downloader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/italolelis/leechbot/internal/downloader/progress"
	"github.com/italolelis/leechbot/internal/logctx"
	"github.com/italolelis/leechbot/internal/policy"
	"github.com/italolelis/leechbot/internal/transfer"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	// ChunkSize bounds how much of a response is held in memory at once.
	ChunkSize = 1 << 20

	DefaultConnectTimeout = 30 * time.Second
	DefaultReadTimeout    = 30 * time.Minute

	dirPerm = 0755
)

// ErrReadStalled is the cause of a transport failure when the server sent nothing
// for longer than the read timeout.
var ErrReadStalled = errors.New("no data received within read timeout")

// Result describes a finished download.
type Result struct {
	Written       int64
	DeclaredTotal int64 // zero when the server did not send Content-Length
}

// Fetcher streams a URL to a local file.
type Fetcher struct {
	client      *http.Client
	readTimeout time.Duration
	chunkSize   int
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithHTTPClient replaces the instrumented default client.
func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) {
		f.client = c
	}
}

// WithChunkSize overrides ChunkSize.
func WithChunkSize(n int) Option {
	return func(f *Fetcher) {
		if n > 0 {
			f.chunkSize = n
		}
	}
}

// NewFetcher creates a fetcher whose connections fail fast on connect but tolerate
// slow servers: readTimeout applies to each wait for data, not to the whole transfer.
func NewFetcher(connectTimeout, readTimeout time.Duration, opts ...Option) *Fetcher {
	if connectTimeout <= 0 {
		connectTimeout = DefaultConnectTimeout
	}

	if readTimeout <= 0 {
		readTimeout = DefaultReadTimeout
	}

	dialer := &net.Dialer{
		Timeout:   connectTimeout,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         dialer.DialContext,
		TLSHandshakeTimeout: connectTimeout,
		ForceAttemptHTTP2:   true,
		MaxIdleConns:        10,
		IdleConnTimeout:     90 * time.Second,
	}

	f := &Fetcher{
		client:      &http.Client{Transport: otelhttp.NewTransport(transport)},
		readTimeout: readTimeout,
		chunkSize:   ChunkSize,
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// Fetch downloads url into destPath, never holding more than one chunk in memory.
// On a size violation the partially written file is left in place for the caller.
func (f *Fetcher) Fetch(ctx context.Context, url, destPath string, ceiling int64, sink progress.Sink) (Result, error) {
	logger := logctx.LoggerFromContext(ctx)

	if sink == nil {
		sink = progress.Discard
	}

	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	stall := time.AfterFunc(f.readTimeout, func() { cancel(ErrReadStalled) })
	defer stall.Stop()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Result{}, &transfer.DownloadError{Kind: transfer.KindTransport, Err: fmt.Errorf("failed to build request: %w", err)}
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return Result{}, transportError(ctx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Result{}, &transfer.DownloadError{
			Kind:       transfer.KindHTTPStatus,
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
		}
	}

	declared := max(resp.ContentLength, 0)
	if err := policy.Preflight(declared, ceiling); err != nil {
		return Result{DeclaredTotal: declared}, err
	}

	if err := ensureTargetDir(destPath); err != nil {
		return Result{DeclaredTotal: declared}, err
	}

	out, err := os.Create(destPath)
	if err != nil {
		return Result{DeclaredTotal: declared}, fmt.Errorf("failed to create target file: %w", err)
	}
	defer out.Close()

	logger.Debug("downloading file", "file_path", destPath, "declared_size", humanize.Bytes(uint64(declared)))

	written, err := f.copyChunks(ctx, out, resp.Body, declared, ceiling, sink, stall)
	res := Result{Written: written, DeclaredTotal: declared}

	if err != nil {
		return res, err
	}

	if err := out.Close(); err != nil {
		return res, fmt.Errorf("failed to close target file: %w", err)
	}

	return res, nil
}

func (f *Fetcher) copyChunks(
	ctx context.Context, out io.Writer, body io.Reader, declared, ceiling int64, sink progress.Sink, stall *time.Timer,
) (int64, error) {
	buf := make([]byte, f.chunkSize)
	body = &stallReader{r: body, timer: stall, timeout: f.readTimeout}

	var written int64

	for {
		// Disk writes and progress edits between chunks do not count as silence.
		stall.Reset(f.readTimeout)

		n, readErr := io.ReadFull(body, buf)
		if n > 0 {
			if _, err := out.Write(buf[:n]); err != nil {
				return written, fmt.Errorf("failed to write chunk: %w", err)
			}

			written += int64(n)

			if err := policy.OnChunk(written, ceiling); err != nil {
				return written, err
			}

			sink.Report(ctx, written, declared)
		}

		switch {
		case readErr == nil:
			continue
		case errors.Is(readErr, io.EOF), errors.Is(readErr, io.ErrUnexpectedEOF):
			// A truncated body also surfaces as ErrUnexpectedEOF.
			if declared > 0 && written != declared {
				return written, &transfer.DownloadError{
					Kind: transfer.KindTransport,
					Err:  fmt.Errorf("connection closed after %d of %d bytes", written, declared),
				}
			}

			return written, nil
		default:
			return written, transportError(ctx, readErr)
		}
	}
}

// stallReader pushes the stall deadline back on every read that returns data, so the
// read timeout bounds silence between packets, not the time to fill a chunk.
type stallReader struct {
	r       io.Reader
	timer   *time.Timer
	timeout time.Duration
}

func (s *stallReader) Read(p []byte) (int, error) {
	n, err := s.r.Read(p)
	if n > 0 {
		s.timer.Reset(s.timeout)
	}

	return n, err
}

func transportError(ctx context.Context, err error) error {
	if errors.Is(context.Cause(ctx), ErrReadStalled) {
		err = ErrReadStalled
	}

	return &transfer.DownloadError{Kind: transfer.KindTransport, Err: err}
}

func ensureTargetDir(targetPath string) error {
	dir := filepath.Dir(targetPath)
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return fmt.Errorf("failed to create target directory: %w", err)
	}

	return nil
}
