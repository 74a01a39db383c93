// Package export crawls the catalog and writes every resolvable game to
// per-language JSON files plus a run report.
//
// # Output
//
// For platform Windows and languages L1 and L2 a run produces:
//
//	installers_Windows_L1.json   [{"wrapId": ..., "segments": [...]}, ...]
//	installers_Windows_L2.json
//	installers_Windows_meta.json the Report
//
// A game is routed by the label embedded in its own WrapID, which may differ
// from the language whose listing discovered it.
//
// # Concurrency
//
// Three limits apply independently: CrawlConcurrency languages are crawled
// at once, Options.Jobs workers resolve game info, and each PartitionWriter
// serializes its own writes.
//
// # Errors
//
// Game info failures are collected into Report.Failures with a kind of
// InvalidFormat, TransportError, ProtocolError or Error. Catalog failures
// and cancellation abort the run without writing a report.
package export
