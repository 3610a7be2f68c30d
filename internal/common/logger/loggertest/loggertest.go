// Package loggertest provides test-scoped Logger construction, keeping
// the testing dependency out of the logger package itself.
package loggertest

import (
	"testing"

	"go.uber.org/zap/zaptest"

	"lead-intelligence/internal/common/logger"
)

// New creates a Logger that writes through t.Log.
func New(t testing.TB) logger.Logger {
	return logger.NewZapAdapter(zaptest.NewLogger(t))
}
