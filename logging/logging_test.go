package logging

import (
	"testing"

	"go.uber.org/zap/zapcore"
	"go.viam.com/test"
)

func TestParseLevel(t *testing.T) {
	lvl, err := ParseLevel("WARN")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, lvl, test.ShouldEqual, zapcore.WarnLevel)

	_, err = ParseLevel("loud")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "loud")
}

func TestObservedTestLogger(t *testing.T) {
	logger, logs := NewObservedTestLogger(t)
	logger.Named("stage").With("frame", 3).Debugw("built cost volume", "planes", 64)
	logger.Warn("falling back")

	test.That(t, logs.Len(), test.ShouldEqual, 2)
	entry := logs.All()[0]
	test.That(t, entry.LoggerName, test.ShouldEqual, "stage")
	test.That(t, entry.ContextMap()["frame"], test.ShouldEqual, int64(3))
	test.That(t, entry.ContextMap()["planes"], test.ShouldEqual, int64(64))
	test.That(t, logs.FilterMessage("falling back").FilterLevelExact(zapcore.WarnLevel).Len(), test.ShouldEqual, 1)
}

func TestGlobal(t *testing.T) {
	old := Global()
	defer ReplaceGlobal(old)
	logger := NewTestLogger(t)
	ReplaceGlobal(logger)
	test.That(t, Global(), test.ShouldEqual, logger)
	NewBlankLogger("quiet").Info("dropped")
}
