package utils

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	l := NewETLLoggerWithWriter(&buf, false)

	l.Info("фаза %s", "nodes:Region")
	l.Warn("файл не найден")
	l.Error("пакет %d", 3)
	l.Debug("скрыто")

	out := buf.String()
	assert.Contains(t, out, "INFO: ")
	assert.Contains(t, out, "фаза nodes:Region")
	assert.Contains(t, out, "WARN: ")
	assert.Contains(t, out, "ERROR: ")
	assert.NotContains(t, out, "скрыто")
}

func TestLoggerVerbose(t *testing.T) {
	var buf bytes.Buffer
	l := NewETLLoggerWithWriter(&buf, true)
	l.Debug("видно")
	assert.Contains(t, buf.String(), "DEBUG: ")
}

func TestLoggerFile(t *testing.T) {
	dir := t.TempDir()
	l, err := NewETLLogger(dir, false)
	assert.NoError(t, err)
	l.LogPhaseComplete("nodes:Region", 17, 17, time.Second)
}
