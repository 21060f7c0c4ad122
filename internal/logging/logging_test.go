package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contact-intake-go/config"
)

func TestConfigure_JSONToConsole(t *testing.T) {
	logger := logrus.New()
	var buf bytes.Buffer

	closer, err := Configure(logger, config.LogConfig{Level: "warn", Format: "json"}, &buf)
	require.NoError(t, err)
	defer closer.Close()

	logger.Info("hidden")
	logger.WithField("id", "msg-1").Warn("notification failed")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "notification failed", entry["msg"])
	assert.Equal(t, "msg-1", entry["id"])
	assert.Equal(t, "warning", entry["level"])
}

func TestConfigure_WritesFile(t *testing.T) {
	logger := logrus.New()
	path := filepath.Join(t.TempDir(), "intake.log")
	var buf bytes.Buffer

	closer, err := Configure(logger, config.LogConfig{
		Level:      "info",
		Format:     "text",
		FilePath:   path,
		MaxSizeMB:  1,
		MaxBackups: 1,
		MaxAgeDays: 1,
	}, &buf)
	require.NoError(t, err)

	logger.Info("message stored")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "message stored")
	assert.Contains(t, buf.String(), "message stored")
}

func TestConfigure_RejectsBadInput(t *testing.T) {
	_, err := Configure(logrus.New(), config.LogConfig{Level: "loud"}, &bytes.Buffer{})
	assert.Error(t, err)

	_, err = Configure(logrus.New(), config.LogConfig{Level: "info", Format: "xml"}, &bytes.Buffer{})
	assert.Error(t, err)
}
