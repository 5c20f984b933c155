// Package source defines the remote photo-source contract consumed by the
// import pipeline and provides the Nixplay HTTP implementation. The importer
// only depends on the Source interface: an ordered list of playlists, the
// media descriptors inside each, and a Fetch that lands one item on disk.
package source
