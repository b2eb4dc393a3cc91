package log

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLoggerWithFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := NewWithCore(core).With(String("component", "test"))

	l.Info("tick", Uint64("tick", 42), Bool("running", true))
	l.Warn("listener failed", Error(errors.New("boom")))

	entries := logs.All()
	require.Len(t, entries, 2)
	require.Equal(t, "tick", entries[0].Message)
	ctx := entries[0].ContextMap()
	require.Equal(t, "test", ctx["component"])
	require.Equal(t, uint64(42), ctx["tick"])
	require.Equal(t, "boom", entries[1].ContextMap()["error"])
}

func TestLevelFiltering(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := NewWithCore(core)
	l.SetLevel(LevelWarn)

	l.Log(LevelInfo, "dropped")
	l.Log(LevelError, "kept")

	require.Equal(t, LevelWarn, l.GetLevel())
	require.Equal(t, 1, logs.Len())
	require.Equal(t, "kept", logs.All()[0].Message)
}

func TestParseLevel(t *testing.T) {
	require.Equal(t, LevelDebug, ParseLevel("debug"))
	require.Equal(t, LevelWarn, ParseLevel("warning"))
	require.Equal(t, LevelInfo, ParseLevel("nonsense"))
}
