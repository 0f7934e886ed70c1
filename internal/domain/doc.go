// Package domain models the signal-to-story pipeline: civic signal records,
// anomaly clusters, recurring calendar events, and the story candidates
// derived from them.
//
// # Signal records
//
// Records arrive from the platform's ingest proxy as flat JSON rows with a
// source-assigned id, a category, a free-text location, an occurrence
// timestamp, and optional domain extras (permit holder, license name, the
// neighborhood the source tagged the row with). Records are immutable once
// fetched and owned by a single run.
//
// # Location normalization
//
// Clustering keys use a coarse block-level location: the address is
// lowercased, punctuation is stripped, and a leading house number is rounded
// down to its hundred block, so "123 Main St" and "145 MAIN ST." both key to
// "100 main st". Records whose location cannot be reduced to a usable key
// are excluded from clustering entirely; a catch-all "unknown" cluster would
// only manufacture meaningless hotspots.
//
// # Severity and trend
//
// Severity is a step function of cluster size against the domain threshold:
//
//	count ≥ 3.0×threshold  → high
//	count ≥ 1.5×threshold  → medium
//	otherwise              → low
//
// Trend compares the current window's count against the mean count for the
// same (location, category) key over the preceding N equal-length windows:
//
//	count ≥ 2.0×baseline → spike
//	count ≥ 1.2×baseline → elevated
//	otherwise            → normal
//
// A key with no history defaults to elevated: a brand-new hotspot should not
// read as "normal", but sparse history is not enough evidence for "spike".
//
// # Identity keys
//
// Story identity keys are deterministic SHA-256 hashes of
// domain|target|date|distinguisher, shortened to 16 hex characters and
// prefixed with the domain. Re-running a job for the same day against the
// same signals always derives the same key, which is what makes publication
// idempotent across runs (the store enforces uniqueness on the key).
package domain
