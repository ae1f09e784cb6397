// Package observability provides the logrus logger, the JSONL board event
// log, and the metrics and alerts derived from it on demand.
package observability
