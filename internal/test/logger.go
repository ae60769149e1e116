package test

import (
	"testing"

	log "github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
)

// Logger returns a logger that discards output and records entries in the
// returned hook.
func Logger(t *testing.T) (*log.Logger, *logtest.Hook) {
	t.Helper()

	logger, hook := logtest.NewNullLogger()
	logger.SetLevel(log.DebugLevel)
	t.Cleanup(hook.Reset)

	return logger, hook
}
