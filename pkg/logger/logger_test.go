package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, ParseLevel("DEBUG"))
	assert.Equal(t, zapcore.WarnLevel, ParseLevel("warning"))
	assert.Equal(t, zapcore.ErrorLevel, ParseLevel("error"))
	assert.Equal(t, zapcore.InfoLevel, ParseLevel("verbose"))
}

func TestNamedAndFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	Set(zap.New(core))
	t.Cleanup(func() { Set(nil) })

	Info("top level", zap.String("k", "v"))
	Named("github").Warn("named")
	WithFields(zap.Int("n", 1)).Debug("with fields")

	entries := logs.All()
	if assert.Len(t, entries, 3) {
		assert.Equal(t, "top level", entries[0].Message)
		assert.Equal(t, "v", entries[0].ContextMap()["k"])
		assert.Equal(t, "github", entries[1].LoggerName)
		assert.Equal(t, int64(1), entries[2].ContextMap()["n"])
	}
}
