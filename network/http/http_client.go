package http

import (
	"bytes"
	"compress/gzip"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptrace"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/pokt-network/poktroll/pkg/polylog"

	"github.com/poroburu/ic-cosmos/network/concurrency"
)

const (
	// DefaultMaxResponseBytes applies when a request sets no response cap.
	DefaultMaxResponseBytes = 2 * 1024 * 1024

	// maxDecompressedBytes bounds the size of a gzip response once inflated.
	maxDecompressedBytes = 16 * 1024 * 1024
)

// RejectionClass categorizes why an outbound call produced no usable response.
type RejectionClass string

const (
	RejectionTimeout            RejectionClass = "timeout"
	RejectionTransport          RejectionClass = "transport"
	RejectionResponseTooLarge   RejectionClass = "response_too_large"
	RejectionInvalidDestination RejectionClass = "invalid_destination"
	RejectionHostNotAllowed     RejectionClass = "host_not_allowed"
	RejectionHTTPStatus         RejectionClass = "http_status"
)

// OutcallError is returned by Client.Post when a call fails before a
// response body could be read.
type OutcallError struct {
	Class RejectionClass
	Err   error
}

func (e *OutcallError) Error() string {
	return fmt.Sprintf("%s: %v", e.Class, e.Err)
}

func (e *OutcallError) Unwrap() error {
	return e.Err
}

// Request is a single outbound JSON-RPC POST.
type Request struct {
	URL              string
	Headers          map[string]string
	Body             []byte
	MaxResponseBytes uint64
}

// Response is the raw outcome of a POST that reached the provider.
// Non-2xx responses are returned as is: callers decide whether the body
// carries a JSON-RPC error.
type Response struct {
	StatusCode int
	Body       []byte
	Latency    time.Duration
}

// ClientOptions tunes the outbound client.
type ClientOptions struct {
	// UseCompression requests gzip encoded responses.
	UseCompression bool
	// AllowedHosts restricts outbound calls to these hostnames. Empty allows all.
	AllowedHosts []string
	// Transport overrides the default transport. Used by tests.
	Transport http.RoundTripper
}

// Client sends outbound calls with request tracing and failure counters,
// logging a detailed timing breakdown for failed calls.
type Client struct {
	httpClient     *http.Client
	bufferPool     *concurrency.BufferPool
	useCompression bool
	allowedHosts   map[string]struct{}

	activeRequests   atomic.Int64
	totalRequests    atomic.Int64
	timeoutErrors    atomic.Int64
	connectionErrors atomic.Int64
}

// requestMetrics holds timing and status information for a single call.
type requestMetrics struct {
	StartTime      time.Time
	DNSLookupTime  time.Duration
	ConnectTime    time.Duration
	TLSTime        time.Duration
	FirstByteTime  time.Duration
	TotalTime      time.Duration
	StatusCode     int
	Error          error
	ContextTimeout time.Duration
	Host           string
}

// NewClient builds a client tuned for fanning out to a handful of providers.
// Per-call deadlines come from the request context.
func NewClient(opts ClientOptions) *Client {
	transport := opts.Transport
	if transport == nil {
		transport = &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   10 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:          100,
			MaxIdleConnsPerHost:   10,
			MaxConnsPerHost:       50,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ResponseHeaderTimeout: 30 * time.Second,
			// Compression is negotiated explicitly so the response cap applies
			// to the bytes on the wire.
			DisableCompression: true,
		}
	}

	var allowed map[string]struct{}
	if len(opts.AllowedHosts) > 0 {
		allowed = make(map[string]struct{}, len(opts.AllowedHosts))
		for _, h := range opts.AllowedHosts {
			allowed[strings.ToLower(h)] = struct{}{}
		}
	}

	return &Client{
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   60 * time.Second,
		},
		bufferPool:     concurrency.NewBufferPool(),
		useCompression: opts.UseCompression,
		allowedHosts:   allowed,
	}
}

// Post sends req and returns the response of the provider, whatever its
// status code. Failures are returned as *OutcallError.
func (c *Client) Post(ctx context.Context, logger polylog.Logger, req Request) (Response, error) {
	u, err := c.validateDestination(req.URL)
	if err != nil {
		return Response{}, err
	}

	tracedCtx, recordRequest := c.setupRequestTracing(ctx, logger, u.Hostname())

	var (
		requestErr error
		statusCode int
	)
	defer func() {
		recordRequest(statusCode, requestErr)
	}()

	httpReq, err := http.NewRequestWithContext(tracedCtx, http.MethodPost, req.URL, bytes.NewReader(req.Body))
	if err != nil {
		requestErr = &OutcallError{Class: RejectionInvalidDestination, Err: err}
		return Response{}, requestErr
	}
	for key, value := range req.Headers {
		httpReq.Header.Set(key, value)
	}
	if c.useCompression {
		httpReq.Header.Set("Accept-Encoding", "gzip")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		requestErr = c.categorizeError(tracedCtx, err)
		return Response{}, requestErr
	}
	defer resp.Body.Close()
	statusCode = resp.StatusCode

	body, err := c.readResponse(resp, req.MaxResponseBytes)
	if err != nil {
		requestErr = err
		return Response{}, requestErr
	}

	return Response{
		StatusCode: resp.StatusCode,
		Body:       body,
		Latency:    time.Since(start),
	}, nil
}

func (c *Client) validateDestination(rawURL string) (*url.URL, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, &OutcallError{Class: RejectionInvalidDestination, Err: err}
	}
	if u.Scheme != "http" && u.Scheme != "https" || u.Host == "" {
		return nil, &OutcallError{Class: RejectionInvalidDestination, Err: fmt.Errorf("unsupported url %q", rawURL)}
	}
	if c.allowedHosts != nil {
		if _, ok := c.allowedHosts[strings.ToLower(u.Hostname())]; !ok {
			return nil, &OutcallError{Class: RejectionHostNotAllowed, Err: fmt.Errorf("host %q is not allowed", u.Hostname())}
		}
	}
	return u, nil
}

// readResponse reads the body within the response cap, inflating it when
// the provider answered with gzip.
func (c *Client) readResponse(resp *http.Response, maxResponseBytes uint64) ([]byte, error) {
	limit := int64(maxResponseBytes)
	if limit <= 0 {
		limit = DefaultMaxResponseBytes
	}

	body, err := c.bufferPool.ReadWithBuffer(resp.Body, limit)
	if errors.Is(err, concurrency.ErrReadLimitExceeded) {
		return nil, &OutcallError{Class: RejectionResponseTooLarge, Err: fmt.Errorf("response exceeds %d bytes", limit)}
	}
	if err != nil {
		return nil, &OutcallError{Class: RejectionTransport, Err: fmt.Errorf("failed to read response body: %w", err)}
	}

	if !strings.EqualFold(resp.Header.Get("Content-Encoding"), "gzip") {
		return body, nil
	}

	gz, err := gzip.NewReader(bytes.NewReader(body))
	if err != nil {
		return nil, &OutcallError{Class: RejectionTransport, Err: fmt.Errorf("failed to open gzip response: %w", err)}
	}
	defer gz.Close()

	inflated, err := c.bufferPool.ReadWithBuffer(gz, maxDecompressedBytes)
	if errors.Is(err, concurrency.ErrReadLimitExceeded) {
		return nil, &OutcallError{Class: RejectionResponseTooLarge, Err: fmt.Errorf("decompressed response exceeds %d bytes", maxDecompressedBytes)}
	}
	if err != nil {
		return nil, &OutcallError{Class: RejectionTransport, Err: fmt.Errorf("failed to inflate gzip response: %w", err)}
	}
	return inflated, nil
}

// setupRequestTracing starts the counters and the HTTP trace of a call.
// The returned function records the outcome and logs failed calls.
func (c *Client) setupRequestTracing(
	ctx context.Context,
	logger polylog.Logger,
	host string,
) (context.Context, func(int, error)) {
	c.activeRequests.Add(1)
	c.totalRequests.Add(1)

	metrics := &requestMetrics{
		StartTime: time.Now(),
		Host:      host,
	}
	if deadline, ok := ctx.Deadline(); ok {
		metrics.ContextTimeout = time.Until(deadline)
	}

	tracedCtx := httptrace.WithClientTrace(ctx, createHTTPTrace(metrics))

	return tracedCtx, func(statusCode int, err error) {
		c.activeRequests.Add(-1)
		metrics.TotalTime = time.Since(metrics.StartTime)
		metrics.StatusCode = statusCode
		metrics.Error = err
		if err != nil {
			c.logRequestMetrics(logger, *metrics)
		}
	}
}

// categorizeError maps a transport failure onto a rejection class.
func (c *Client) categorizeError(ctx context.Context, err error) error {
	var netErr net.Error
	if ctx.Err() == context.DeadlineExceeded || (errors.As(err, &netErr) && netErr.Timeout()) {
		c.timeoutErrors.Add(1)
		return &OutcallError{Class: RejectionTimeout, Err: err}
	}
	c.connectionErrors.Add(1)
	return &OutcallError{Class: RejectionTransport, Err: err}
}

func createHTTPTrace(metrics *requestMetrics) *httptrace.ClientTrace {
	var dnsStart, connectStart, tlsStart time.Time

	return &httptrace.ClientTrace{
		DNSStart: func(httptrace.DNSStartInfo) {
			dnsStart = time.Now()
		},
		DNSDone: func(httptrace.DNSDoneInfo) {
			if !dnsStart.IsZero() {
				metrics.DNSLookupTime = time.Since(dnsStart)
			}
		},
		ConnectStart: func(string, string) {
			connectStart = time.Now()
		},
		ConnectDone: func(string, string, error) {
			if !connectStart.IsZero() {
				metrics.ConnectTime = time.Since(connectStart)
			}
		},
		TLSHandshakeStart: func() {
			tlsStart = time.Now()
		},
		TLSHandshakeDone: func(tls.ConnectionState, error) {
			if !tlsStart.IsZero() {
				metrics.TLSTime = time.Since(tlsStart)
			}
		},
		GotFirstResponseByte: func() {
			metrics.FirstByteTime = time.Since(metrics.StartTime)
		},
	}
}

// logRequestMetrics logs a timing breakdown of a failed call.
func (c *Client) logRequestMetrics(logger polylog.Logger, metrics requestMetrics) {
	logger.With(
		"host", metrics.Host,
		"dns_lookup_ms", metrics.DNSLookupTime.Milliseconds(),
		"connect_ms", metrics.ConnectTime.Milliseconds(),
		"tls_ms", metrics.TLSTime.Milliseconds(),
		"first_byte_ms", metrics.FirstByteTime.Milliseconds(),
		"total_ms", metrics.TotalTime.Milliseconds(),
		"status_code", metrics.StatusCode,
		"timeout_ms", metrics.ContextTimeout.Milliseconds(),
		"active_requests", c.activeRequests.Load(),
		"total_requests", c.totalRequests.Load(),
		"timeout_errors", c.timeoutErrors.Load(),
		"connection_errors", c.connectionErrors.Load(),
	).Warn().Err(metrics.Error).Msg("Outbound call failed - timing breakdown")
}

// Close releases idle connections.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}
