package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitRejectsUnknownSettings(t *testing.T) {
	t.Cleanup(func() { _ = Init("info", "json") })

	require.NoError(t, Init("debug", "text"))
	assert.Equal(t, logrus.DebugLevel, logrus.GetLevel())

	assert.Error(t, Init("loud", "json"))
	assert.Error(t, Init("info", "xml"))
}

func TestWithContextCarriesRequestIDAndFields(t *testing.T) {
	var buf bytes.Buffer
	logrus.SetOutput(&buf)
	logrus.SetFormatter(&logrus.JSONFormatter{})
	t.Cleanup(func() { _ = Init("info", "json") })

	ctx := context.WithValue(context.Background(), middleware.RequestIDKey, "req-1")
	ctx = WithFields(ctx, logrus.Fields{"session_id": "s-1"})

	WithContext(ctx).Info("hello")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "req-1", line["request_id"])
	assert.Equal(t, "s-1", line["session_id"])
	assert.Equal(t, "hello", line["msg"])
}
