package codec

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnmarshalKeepsNumbers(t *testing.T) {
	var doc map[string]any
	require.NoError(t, Unmarshal([]byte(`{"evt":"READY","data":{"v":1,"id":1234567890123456789}}`), &doc))

	assert.Equal(t, "READY", String(doc, "evt"))
	data := Object(doc, "data")
	require.NotNil(t, data)
	assert.Equal(t, json.Number("1234567890123456789"), data["id"])
}

func TestUnmarshalEmpty(t *testing.T) {
	var doc map[string]any
	assert.ErrorIs(t, Unmarshal([]byte("  "), &doc), ErrEmptyPayload)
}

func TestAccessorsOnMissingKeys(t *testing.T) {
	doc := map[string]any{"n": 1}
	assert.Empty(t, String(doc, "n"))
	assert.Nil(t, Object(doc, "missing"))
}
