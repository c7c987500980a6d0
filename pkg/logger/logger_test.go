package logger

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscribeReceivesEntries(t *testing.T) {
	l := NewNop()
	ch := l.Subscribe()

	l.WithFields(map[string]string{"connection": "db1"}).Info("connected")

	select {
	case e := <-ch:
		assert.Equal(t, "INFO", e.Level)
		assert.Equal(t, "connected", e.Message)
		assert.Equal(t, "db1", e.Fields["connection"])
	case <-time.After(time.Second):
		t.Fatal("no entry published")
	}
}

func TestLevelFiltering(t *testing.T) {
	l := NewNop()
	ch := l.Subscribe()

	require.NoError(t, l.SetLevel("warn"))
	l.Info("dropped")
	l.Warnf("kept %d", 1)

	e := <-ch
	assert.Equal(t, "WARN", e.Level)
	assert.Equal(t, "kept 1", e.Message)

	assert.Error(t, l.SetLevel("loud"))
}

func TestJSONFormatCarriesServiceFields(t *testing.T) {
	var buf bytes.Buffer
	l := New("redb-persist", "1.2.3")
	l.SetOutput(&buf)
	require.NoError(t, l.SetFormat("json"))

	l.Info("hello %s", "world")

	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	assert.Equal(t, "hello world", doc["msg"])
	assert.Equal(t, "redb-persist", doc[ServiceField])
	assert.Equal(t, "1.2.3", doc[VersionField])
}

func TestConsoleFormat(t *testing.T) {
	var buf bytes.Buffer
	l := New("handler", "dev")
	l.SetOutput(&buf)

	l.WithFields(map[string]string{"uri": "jdbc://db1/orders/items/"}).Error("write failed")

	out := buf.String()
	assert.Contains(t, out, "ERROR")
	assert.Contains(t, out, "write failed")
	assert.Contains(t, out, "uri=jdbc://db1/orders/items/")
	assert.Error(t, l.SetFormat("xml"))
}

func TestFormatServiceName(t *testing.T) {
	assert.Len(t, formatServiceName("short"), ServiceNameWidth)
	assert.Equal(t, "abcdefghijklmnopqrs…", formatServiceName("abcdefghijklmnopqrstuvwxyz"))
}
