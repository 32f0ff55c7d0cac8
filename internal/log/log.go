// Package log defines the logger used across dagsort.
//
// Core packages only ever see the Logger interface so they stay free of any
// output sink; the CLI decides the concrete implementation.
package log

// Kv is a helper type for structured logging key-value pairs.
type Kv = map[string]any

// Logger is the interface every dagsort logger implements.
type Logger interface {
	Infof(format string, args ...any)
	Warningf(format string, args ...any)
	Errorf(format string, args ...any)
	Debugf(format string, args ...any)
	WithValues(values Kv) Logger
}

type noop struct{}

// Noop logger doesn't log anything.
var Noop Logger = noop{}

func (noop) Infof(string, ...any)    {}
func (noop) Warningf(string, ...any) {}
func (noop) Errorf(string, ...any)   {}
func (noop) Debugf(string, ...any)   {}
func (n noop) WithValues(Kv) Logger  { return n }
