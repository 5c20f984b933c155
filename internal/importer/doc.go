// Package importer contains the throttled import pipeline.
//
// A Session carries media items through download, catalog persist, and
// post-import processing. Downloads and catalog writes run behind independent
// concurrency caps; items move in fixed-size batches with a cooldown between
// them, while processing overlaps later batches under its own cap. Item
// failures are contained to the item; only configuration errors and an
// unavailable catalog abort a session.
package importer
