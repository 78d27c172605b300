// Package store persists labeled score sets and caches per-image scores.
//
// Two sinks implement Sink: JSONFile writes the single-document format the
// histogram tooling reads, and SQL keeps every evaluation run in a database
// through gorm. CachedScorer memoizes scores in Redis, keyed by the scorer
// fingerprint and the image pixels.
package store
