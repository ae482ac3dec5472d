// Package testutil provides shared test helpers for mcpapi packages.
package testutil

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

// Logger returns a logger that writes through t.Log, so output appears
// only for failing or verbose tests, named after the running test.
func Logger(t testing.TB) *zap.Logger {
	return zaptest.NewLogger(t, zaptest.Level(zapcore.DebugLevel)).Named(t.Name())
}

// ObservedLogger returns a logger that records entries at level and
// above, together with the recorder for assertions on what was logged.
func ObservedLogger(level zapcore.Level) (*zap.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(level)
	return zap.New(core), logs
}
