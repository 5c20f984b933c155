// Package config loads, normalizes, and validates the TOML configuration for
// framefeed. Throttling knobs carry hard bounds; values outside them fail
// validation rather than being clamped, so a typo cannot silently disable the
// concurrency limits the import pipeline depends on.
package config
