// Package monitoring holds the process-wide diagnostic loggers.
package monitoring

import "log"

// Logf is the package-level diagnostic logger. It defaults to log.Printf but
// may be replaced by SetLogger so tests can capture or mute output.
var Logf func(format string, v ...interface{}) = log.Printf

// Debugf receives per-frame detail (dropped detections, skewed poses). It is
// a no-op until SetDebug(true).
var Debugf func(format string, v ...interface{}) = func(string, ...interface{}) {}

// SetLogger replaces Logf. Passing nil installs a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// SetDebug routes Debugf to Logf when enabled and mutes it otherwise.
func SetDebug(enabled bool) {
	if !enabled {
		Debugf = func(string, ...interface{}) {}
		return
	}
	Debugf = func(format string, v ...interface{}) {
		Logf("[debug] "+format, v...)
	}
}

// Prefixed returns a logger that prepends prefix to every message and
// writes through the current Logf.
func Prefixed(prefix string) func(format string, v ...interface{}) {
	return func(format string, v ...interface{}) {
		Logf(prefix+format, v...)
	}
}
