package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	log, err := NewWithOutput(&buf, "debug", "json")
	require.NoError(t, err)

	Component(log, "stock_ledger").WithField("ingredient_id", "rum").Debug("списание")

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "debug", line["level"])
	assert.Equal(t, "списание", line["msg"])
	assert.Equal(t, "stock_ledger", line["component"])
	assert.Equal(t, "rum", line["ingredient_id"])
	assert.Contains(t, line, "ts")
}

func TestLevelFilters(t *testing.T) {
	var buf bytes.Buffer
	log, err := NewWithOutput(&buf, "warn", "text")
	require.NoError(t, err)

	log.Info("скрыто")
	assert.Empty(t, buf.String())
	assert.Equal(t, logrus.WarnLevel, log.GetLevel())
}

func TestRejectsUnknownSettings(t *testing.T) {
	_, err := New("loud", "text")
	assert.Error(t, err)

	_, err = New("info", "xml")
	assert.Error(t, err)
}
