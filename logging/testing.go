package logging

import (
	"strings"
	"testing"

	"github.com/edaniels/golog"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// testCore writes entries through tb.Log so each line is attributed to the test that
// produced it, even when tests run in parallel.
type testCore struct {
	zapcore.LevelEnabler
	tb     testing.TB
	fields []zapcore.Field
}

func (c *testCore) With(fields []zapcore.Field) zapcore.Core {
	merged := append(append([]zapcore.Field(nil), c.fields...), fields...)
	return &testCore{LevelEnabler: c.LevelEnabler, tb: c.tb, fields: merged}
}

func (c *testCore) Check(entry zapcore.Entry, checked *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(entry.Level) {
		return checked.AddCore(entry, c)
	}
	return checked
}

func (c *testCore) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	c.tb.Helper()
	toPrint := []string{
		entry.Time.Format("2006-01-02T15:04:05.000Z0700"),
		strings.ToUpper(entry.Level.String()),
		entry.LoggerName,
	}
	if entry.Caller.Defined {
		toPrint = append(toPrint, entry.Caller.TrimmedPath())
	}
	toPrint = append(toPrint, entry.Message)

	all := append(append([]zapcore.Field(nil), c.fields...), fields...)
	if len(all) > 0 {
		// Use zap's json encoder which will encode our slice of fields in-order. Call it with an
		// empty Entry object such that only the fields become "map-ified".
		jsonEncoder := zapcore.NewJSONEncoder(zapcore.EncoderConfig{SkipLineEnding: true})
		buf, err := jsonEncoder.EncodeEntry(zapcore.Entry{}, all)
		if err != nil {
			c.tb.Log(strings.Join(toPrint, "\t"))
			return err
		}
		toPrint = append(toPrint, buf.String())
		buf.Free()
	}
	c.tb.Log(strings.Join(toPrint, "\t"))
	return nil
}

func (c *testCore) Sync() error {
	return nil
}

// NewTestLogger returns a Debug+ logger that writes to the test log.
func NewTestLogger(tb testing.TB) golog.Logger {
	logger, _ := NewObservedTestLogger(tb)
	return logger
}

// NewObservedTestLogger is like NewTestLogger but also saves logs to an in memory observer.
func NewObservedTestLogger(tb testing.TB) (golog.Logger, *observer.ObservedLogs) {
	observerCore, observedLogs := observer.New(zap.LevelEnablerFunc(zapcore.DebugLevel.Enabled))
	core := zapcore.NewTee(&testCore{LevelEnabler: zapcore.DebugLevel, tb: tb}, observerCore)
	return zap.New(core, zap.AddCaller()).Sugar(), observedLogs
}
