package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPayloadUnmarshalJSON(t *testing.T) {
	raw := []byte(`{
		"resource": "patient/123",
		"count": 3,
		"phi": true,
		"fields": {"name": "redacted", "attempts": 2}
	}`)

	var p Payload
	require.NoError(t, json.Unmarshal(raw, &p))

	assert.Equal(t, String("patient/123"), p["resource"])
	assert.Equal(t, Int(3), p["count"])
	assert.Equal(t, Bool(true), p["phi"])

	nested, ok := p["fields"].(Map)
	require.True(t, ok)
	assert.Equal(t, Int(2), nested["attempts"])
}

func TestPayloadRejectsFloats(t *testing.T) {
	var p Payload
	err := json.Unmarshal([]byte(`{"score": 0.5}`), &p)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnsupportedPayloadType)
}

func TestPayloadRejectsArraysAndNull(t *testing.T) {
	var p Payload
	err := json.Unmarshal([]byte(`{"tags": ["a", "b"]}`), &p)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnsupportedPayloadType)

	err = json.Unmarshal([]byte(`{"gone": null}`), &p)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnsupportedPayloadType)
}

func TestPayloadLargeIntegersSurviveRoundTrip(t *testing.T) {
	// float64 holds integers only up to 2^53; the decoder must not route
	// int64-range values through it.
	raw := []byte(`{"bytes_read": 9007199254740993}`)

	var p Payload
	require.NoError(t, json.Unmarshal(raw, &p))
	assert.Equal(t, Int(9007199254740993), p["bytes_read"])

	encoded, err := json.Marshal(p)
	require.NoError(t, err)
	assert.JSONEq(t, string(raw), string(encoded))
}

func TestPayloadValidate(t *testing.T) {
	good := Payload{
		"resource": String("doc/1"),
		"nested":   Map{"ok": Bool(true)},
	}
	require.NoError(t, good.Validate())

	bad := Payload{"gone": nil}
	err := bad.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnsupportedPayloadType)
}
