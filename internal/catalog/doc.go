// Package catalog persists imported media metadata in SQLite.
//
// Two access paths exist on purpose. Store is a long-lived pooled handle used
// for reads and low-frequency bookkeeping (playlist sync, processed flags,
// stats). Factory hands out single-connection Writers, one per concurrent
// import write, so no two in-flight inserts ever share a connection; that
// isolation is what keeps a burst of concurrent imports from wedging the
// single-writer sqlite file.
package catalog
