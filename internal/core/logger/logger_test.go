package logger

import (
	"log"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"team-visualizer/internal/core/config"
)

func TestFromConfig_WritesRotatedFile(t *testing.T) {
	fn := filepath.Join(t.TempDir(), "app.log")
	l, cleanup := FromConfig(config.Log{
		Level: "info",
		JSON:  true,
		File:  config.LogFile{Filename: fn, MaxSizeMB: 1},
	})
	l.Info("ledger adjusted", zap.String("user_id", "u1"))
	cleanup()

	b, err := os.ReadFile(fn)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"msg":"ledger adjusted"`)
	assert.Contains(t, string(b), `"user_id":"u1"`)
}

func TestBuildLogger_BadLevelFallsBackToInfo(t *testing.T) {
	l, cleanup := New("verbose", true)
	defer cleanup()
	assert.False(t, l.Core().Enabled(zapcore.DebugLevel))
	assert.True(t, l.Core().Enabled(zapcore.InfoLevel))
}

func TestToWriter(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	w := ToWriter(zap.New(core), zapcore.WarnLevel)

	n, err := w.Write([]byte("[GIN-debug] something\n"))
	require.NoError(t, err)
	assert.Equal(t, 22, n)
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "[GIN-debug] something", logs.All()[0].Message)
	assert.Equal(t, zapcore.WarnLevel, logs.All()[0].Level)
}

func TestRedirectStdLog(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	undo := RedirectStdLog(zap.New(core), zapcore.InfoLevel)
	log.Print("[db] final mysql dsn = u:****@tcp(h)/d")
	undo()

	require.Equal(t, 1, logs.Len())
	assert.Contains(t, logs.All()[0].Message, "final mysql dsn")
}
