// Package diag defines the diagnostic model shared by all pipeline stages.
//
// Every user-facing finding — a cyclic dependency, a captive lifetime, a
// missing synthesis opt-in — is a Diagnostic: severity, stable numeric code,
// message, primary span, optional notes. Stages emit through a Reporter so
// emission stays decoupled from storage; BagReporter aggregates into a Bag,
// which supports deterministic sorting and merging across modules.
//
// The model is intentionally data-only. Rendering lives in internal/diagfmt,
// and nothing here performs IO, so discovery results (diagnostics included)
// can be serialized for the incremental cache and compared byte-for-byte
// between runs.
package diag
