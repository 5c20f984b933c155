// Command framefeed imports photos and videos from remote playlist sources
// into a local directory and catalog for a digital photo frame.
package main
