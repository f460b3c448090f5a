package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithWriter_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, "debug", "json")

	logger.WithField("sweep_id", "abc").Debug("sweep started")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "sweep started", entry["msg"])
	assert.Equal(t, "abc", entry["sweep_id"])
	assert.Equal(t, "debug", entry["level"])
}

func TestNewWithWriter_LevelFallback(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, "loud", "text")

	assert.Equal(t, logrus.InfoLevel, logger.GetLevel())
	logger.Debug("hidden")
	assert.Empty(t, buf.String())

	logger.Info("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestOrDiscard(t *testing.T) {
	assert.NotNil(t, OrDiscard(nil))

	l := Discard()
	assert.Same(t, l, OrDiscard(l))
}

func TestOrDiscard_TypedNil(t *testing.T) {
	var logger *logrus.Logger
	var entry *logrus.Entry

	for _, l := range []logrus.FieldLogger{logger, entry} {
		got := OrDiscard(l)
		require.NotNil(t, got)
		assert.NotPanics(t, func() { got.WithField("sweep_id", "abc").Info("sweep started") })
	}
}
