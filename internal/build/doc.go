// Package build schedules page generation for sitebuilder.
//
// A Scheduler owns the addressable pages of one site and exposes the build
// entry points used by the CLI: FullBuild, LazyBuild, Rebuild,
// ChangeViewedPage and DrainPending. Every entry point creates a Session
// that scopes the artifact memoization table, the named lock registry and
// the link validator to that invocation.
//
// Pages run through RunBatch, either sequentially or throttled by a fixed
// width worker pool. Cancellation is cooperative: raising the stop threshold
// makes every task of an older batch skip generation, both before it starts
// and right after it finishes.
package build
