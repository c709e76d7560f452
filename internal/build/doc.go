// Package build provides the canonical build execution pipeline for mdcompile.
//
// DefaultBuildService parses the source documents, builds the unit model and
// the dependency graph, fingerprints every unit and then drives each unit to a
// terminal state: Accepted from the artifact cache, Accepted after generation
// and verification, Failed after exhausting its attempts, or Skipped because a
// dependency was not accepted. The Scheduler releases a unit only after all of
// its dependencies are terminal, over a bounded errgroup worker pool.
//
// Per-unit failures never abort a build. Model and cycle errors abort it before
// any generation; a cache conflict or cancellation aborts it in flight.
package build
