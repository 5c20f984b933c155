// Package notifications delivers import events via pluggable notifiers.
//
// The default implementation publishes to ntfy using the topic configured in
// config.toml and gracefully degrades to a no-op when notifications are
// disabled. Per-event toggles let a deployment report only completions, only
// errors, or nothing at all.
//
// Extend this package if you need alternative transports; import code depends
// only on the simple Service interface.
package notifications
