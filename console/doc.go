// Package console records the process-wide logging calls into a bounded ring buffer,
// so that the most recent ones can be attached to a feedback report.
//
// A recorder wraps the default slog handler and the standard log package writer, errors and
// panics nobody handled reach it through ReportError, ReportRejection, Recover and Go.
// Recorded values are converted with Serialize, that tolerates cycles and values panicking
// while being inspected. Interception never changes what the wrapped sinks receive.
package console
