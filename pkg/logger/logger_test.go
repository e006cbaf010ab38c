package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"DEBUG":   zapcore.DebugLevel,
		"warn":    zapcore.WarnLevel,
		"warning": zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"info":    zapcore.InfoLevel,
		"":        zapcore.InfoLevel,
		"bogus":   zapcore.InfoLevel,
	}

	for in, want := range tests {
		t.Run(in, func(t *testing.T) {
			assert.Equal(t, want, parseLevel(in))
		})
	}
}

func TestGet_BeforeInit(t *testing.T) {
	mu.Lock()
	global = nil
	mu.Unlock()

	l := Get()
	require.NotNil(t, l)
	l.Info("dropped")
}

func TestInit_SetsGlobal(t *testing.T) {
	err := Init(&Config{Level: "debug", ServiceName: "api-service"})
	require.NoError(t, err)
	defer func() {
		mu.Lock()
		global = nil
		mu.Unlock()
	}()

	assert.True(t, Get().Zap().Core().Enabled(zapcore.DebugLevel))
}

func TestLogger_WithFields(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	l := &Logger{zl: zap.New(core)}

	l.With(zap.String("request_id", "abc")).Warn("slow request", zap.Int("status", 200))
	l.Debug("filtered")

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "slow request", entries[0].Message)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)

	ctx := entries[0].ContextMap()
	assert.Equal(t, "abc", ctx["request_id"])
	assert.EqualValues(t, 200, ctx["status"])
}
