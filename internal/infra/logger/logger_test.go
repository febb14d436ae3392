package logger_test

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"tg-channel-cleaner/internal/infra/logger"
)

func TestLevelsAndWriters(t *testing.T) {
	var out bytes.Buffer
	logger.SetWriters(&out, &out)
	defer logger.SetWriters(nil, nil)

	logger.Init("warn")
	logger.Info("hidden")
	logger.Warn("visible", zap.Int("n", 1))

	if strings.Contains(out.String(), "hidden") {
		t.Fatalf("info message leaked at warn level: %q", out.String())
	}
	if !strings.Contains(out.String(), "visible") {
		t.Fatalf("warn message missing: %q", out.String())
	}
	if logger.IsDebugEnabled() {
		t.Fatal("IsDebugEnabled() = true at warn level")
	}

	logger.Init("debug")
	if !logger.IsDebugEnabled() {
		t.Fatal("IsDebugEnabled() = false at debug level")
	}
}

func TestInitFileWritesRotatedLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bot.log")
	var out bytes.Buffer
	logger.SetWriters(&out, &out)
	logger.Init("info")
	logger.InitFile(logger.FileOptions{Path: path, Level: "debug", MaxSizeMB: 1})
	defer logger.InitFile(logger.FileOptions{})

	logger.Debug("file only")
	logger.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), "file only") {
		t.Fatalf("log file content = %q", string(data))
	}
	if strings.Contains(out.String(), "file only") {
		t.Fatal("debug message reached console at info level")
	}
}
