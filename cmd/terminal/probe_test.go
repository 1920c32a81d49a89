package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestPrinter_WritesJSONLinesUpToLimit(t *testing.T) {
	var buf bytes.Buffer
	p := newPrinter(&buf, 2, zap.NewNop())

	p.HandlePublication("pumpfun-mintTokens", json.RawMessage(`{"token":"a"}`))
	p.HandlePublication("pumpfun-tokenUpdates", json.RawMessage(`{"token":"b"}`))
	p.HandlePublication("pumpfun-tokenUpdates", json.RawMessage(`{"token":"c"}`))

	select {
	case <-p.done:
	default:
		t.Fatal("printer should be done after the limit")
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var first publication
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, "pumpfun-mintTokens", first.Channel)
	assert.JSONEq(t, `{"token":"a"}`, string(first.Data))
}

func TestNewLogger(t *testing.T) {
	logger, err := newLogger("debug")
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zap.DebugLevel))

	_, err = newLogger("loud")
	assert.Error(t, err)
}
