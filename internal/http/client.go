package http

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultUserAgent is sent when Options.UserAgent is empty.
const DefaultUserAgent = "bfg-downloader"

// TransportError reports a request that failed on the wire or came back
// with a non-success status.
//
// StatusCode is zero when no response was received; Err then holds the
// underlying network or context error.
//
// Example:
//
//	var te *http.TransportError
//	if errors.As(err, &te) && te.StatusCode == 404 {
//	    // segment is gone
//	}
type TransportError struct {
	Method     string
	URL        string
	StatusCode int
	Status     string
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s %s: HTTP %s", e.Method, e.URL, e.Status)
	}
	return fmt.Sprintf("%s %s: %v", e.Method, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Options configures a Client.
type Options struct {
	// UserAgent is sent with every request.
	// Default: DefaultUserAgent
	UserAgent string

	// Timeout bounds Get and Post calls end to end.
	// Default: 60s
	Timeout time.Duration

	// HeaderTimeout bounds the wait for response headers on Open. The body
	// of a download is never cut off by a timer.
	// Default: 60s
	HeaderTimeout time.Duration
}

// DefaultOptions returns options with the defaults filled in.
func DefaultOptions() Options {
	return Options{
		UserAgent:     DefaultUserAgent,
		Timeout:       60 * time.Second,
		HeaderTimeout: 60 * time.Second,
	}
}

// Client performs the catalog, game info and segment requests.
//
// Client provides:
//   - A configured User-Agent header
//   - Bounded API calls (Get, Post)
//   - Streamed, optionally ranged downloads (Open)
//   - Uniform *TransportError failures
//
// Example usage:
//
//	client := NewClient(DefaultOptions())
//
//	body, err := client.Get(ctx, catalogURL)
//
//	resp, err := client.Open(ctx, segmentURL, offset)
//	defer resp.Body.Close()
type Client struct {
	apiClient      *http.Client
	downloadClient *http.Client
	userAgent      string
}

// NewClient creates a Client. Zero option fields take their defaults.
func NewClient(opts Options) *Client {
	def := DefaultOptions()
	if opts.UserAgent == "" {
		opts.UserAgent = def.UserAgent
	}
	if opts.Timeout <= 0 {
		opts.Timeout = def.Timeout
	}
	if opts.HeaderTimeout <= 0 {
		opts.HeaderTimeout = def.HeaderTimeout
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.MaxIdleConnsPerHost = 64
	transport.ResponseHeaderTimeout = opts.HeaderTimeout

	return &Client{
		apiClient: &http.Client{
			Timeout: opts.Timeout,
		},
		downloadClient: &http.Client{
			Transport: transport,
		},
		userAgent: opts.UserAgent,
	}
}

// ProgressWriter wraps a writer to track download progress.
//
// Written starts at the resume offset so callbacks always see the file's
// total length, not just the bytes of this transfer.
//
// Example:
//
//	pw := &ProgressWriter{
//	    Writer:  file,
//	    Total:   offset + resp.ContentLength,
//	    Written: offset,
//	    OnUpdate: func(written, total int64) {
//	        fmt.Printf("%d / %d bytes\n", written, total)
//	    },
//	}
type ProgressWriter struct {
	// Writer is the underlying writer to write data to.
	Writer io.Writer

	// Total is the expected final size, or -1 when unknown.
	Total int64

	// Written is the current number of bytes written.
	Written int64

	// OnUpdate is called after each Write with current progress.
	OnUpdate func(written, total int64)
}

// Write implements io.Writer, tracking progress and calling OnUpdate.
func (pw *ProgressWriter) Write(p []byte) (int, error) {
	n, err := pw.Writer.Write(p)
	pw.Written += int64(n)
	if pw.OnUpdate != nil {
		pw.OnUpdate(pw.Written, pw.Total)
	}
	return n, err
}

// Get performs a GET request and returns the response body.
//
// Any status other than 200 OK is a *TransportError.
func (c *Client) Get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	return c.do(req)
}

// Post sends body with the given content type and returns the response body.
//
// Example:
//
//	resp, err := client.Post(ctx, rpcURL, "text/xml", payload)
func (c *Client) Post(ctx context.Context, url, contentType string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentType)
	return c.do(req)
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.apiClient.Do(req)
	if err != nil {
		return nil, &TransportError{Method: req.Method, URL: req.URL.String(), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(req, resp)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Method: req.Method, URL: req.URL.String(), Err: err}
	}
	return body, nil
}

// Response is an open download stream.
type Response struct {
	// Body must be closed by the caller.
	Body io.ReadCloser

	// StatusCode is 200, 206 or 416.
	StatusCode int

	// ContentLength is the length of Body, or -1 when unknown.
	ContentLength int64
}

// Partial reports whether the server honoured the requested range.
func (r *Response) Partial() bool {
	return r.StatusCode == http.StatusPartialContent
}

// RangeNotSatisfiable reports a 416 answer, meaning the requested offset is
// at or past the end of the remote file.
func (r *Response) RangeNotSatisfiable() bool {
	return r.StatusCode == http.StatusRequestedRangeNotSatisfiable
}

// Open starts a streamed GET of url. A positive offset adds a
// "Range: bytes=<offset>-" header.
//
// 200 and 206 are returned as-is. 416 is returned (with an empty body) only
// for ranged requests, so the caller can treat the file as complete. Every
// other status is a *TransportError.
func (c *Client) Open(ctx context.Context, url string, offset int64) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.userAgent)
	if offset > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", offset))
	}

	resp, err := c.downloadClient.Do(req)
	if err != nil {
		return nil, &TransportError{Method: req.Method, URL: url, Err: err}
	}

	switch {
	case resp.StatusCode == http.StatusOK, resp.StatusCode == http.StatusPartialContent:
		return &Response{Body: resp.Body, StatusCode: resp.StatusCode, ContentLength: resp.ContentLength}, nil
	case resp.StatusCode == http.StatusRequestedRangeNotSatisfiable && offset > 0:
		resp.Body.Close()
		return &Response{Body: http.NoBody, StatusCode: resp.StatusCode}, nil
	default:
		resp.Body.Close()
		return nil, statusError(req, resp)
	}
}

func statusError(req *http.Request, resp *http.Response) *TransportError {
	return &TransportError{
		Method:     req.Method,
		URL:        req.URL.String(),
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
	}
}
