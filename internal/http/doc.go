// Package http provides the HTTP client used to talk to the catalog, the
// game info endpoint and the binary host.
//
// The Client in this package handles:
//   - User-Agent headers
//   - Timeouts for API calls
//   - Streamed downloads with optional byte ranges for resume
//   - Mapping every failure to *TransportError
//
// # Basic Usage
//
//	client := http.NewClient(http.DefaultOptions())
//
//	// API request
//	body, err := client.Get(ctx, "https://www.bigfishgames.com/graphql?...")
//
//	// Resume a download from byte 1024
//	resp, err := client.Open(ctx, segmentURL, 1024)
//	if err != nil {
//	    return err
//	}
//	defer resp.Body.Close()
//	if resp.RangeNotSatisfiable() {
//	    // already complete
//	}
//
// # Errors
//
// Non-success statuses and network failures are returned as
// *TransportError. Context cancellation stays visible through Unwrap:
//
//	if errors.Is(err, context.Canceled) { ... }
//
// # Progress Tracking
//
// The ProgressWriter type can be used to wrap any io.Writer for progress tracking:
//
//	pw := &http.ProgressWriter{
//	    Writer:   file,
//	    Total:    contentLength,
//	    OnUpdate: func(written, total int64) { /* update UI */ },
//	}
package http
