package logger

import (
	"context"
	"path/filepath"
	"testing"

	"atelier/pkg/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTraceID(t *testing.T) {
	assert.Equal(t, "0", TraceID(context.Background()))
	assert.Equal(t, "req-1", TraceID(WithTraceID(context.Background(), "req-1")))
	assert.Equal(t, "0", TraceID(WithTraceID(context.Background(), "")))
}

func TestInit_FileOutput(t *testing.T) {
	prev := config.GlobalConfig
	t.Cleanup(func() { config.GlobalConfig = prev })

	config.GlobalConfig = &config.Config{Logger: config.LoggerConfig{
		Level:  "debug",
		Output: "file",
		File:   config.LoggerFileConfig{Path: filepath.Join(t.TempDir(), "logs", "app.log"), MaxSizeMB: 1},
	}}
	require.NoError(t, Init())

	InfoCtx(WithTraceID(context.Background(), "t-1"), "hello %s", "world")
	Info("structured")
	_ = Sync()
}

func TestInit_FileOutputRequiresPath(t *testing.T) {
	prev := config.GlobalConfig
	t.Cleanup(func() { config.GlobalConfig = prev })

	config.GlobalConfig = &config.Config{Logger: config.LoggerConfig{Output: "file"}}
	assert.Error(t, Init())
}
