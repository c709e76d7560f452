// Package watch keeps a build output current while its source documents
// change. A SourceWatcher turns filesystem events into build requests, a
// Debouncer coalesces bursts of requests into single builds, and a Scheduler
// runs periodic maintenance such as cache garbage collection.
package watch
