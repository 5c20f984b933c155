// Package processing holds the per-item post-import work that runs
// concurrently with later download batches. A Processor receives the local
// path of a freshly persisted media file and performs whatever validation or
// derived-asset work the deployment needs.
package processing
