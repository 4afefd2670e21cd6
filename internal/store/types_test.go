// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Topiq Contributors

package store_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/topiq-dev/topiq/internal/store"
)

func TestValueJSON(t *testing.T) {
	t.Run("text", func(t *testing.T) {
		data, err := json.Marshal(store.TextValue("hello"))
		require.NoError(t, err)
		assert.JSONEq(t, `"hello"`, string(data))

		var v store.Value
		require.NoError(t, json.Unmarshal(data, &v))
		assert.Equal(t, store.ValueText, v.Kind)
		assert.Equal(t, "hello", v.Text)
	})

	t.Run("list", func(t *testing.T) {
		data, err := json.Marshal(store.ListValue("a", "b"))
		require.NoError(t, err)
		assert.JSONEq(t, `["a","b"]`, string(data))

		var v store.Value
		require.NoError(t, json.Unmarshal(data, &v))
		assert.Equal(t, store.ValueList, v.Kind)
		assert.Equal(t, []string{"a", "b"}, v.List)
	})

	t.Run("map", func(t *testing.T) {
		data, err := json.Marshal(store.MapValue(map[string]string{"k": "v"}))
		require.NoError(t, err)
		assert.JSONEq(t, `{"k":"v"}`, string(data))

		var v store.Value
		require.NoError(t, json.Unmarshal(data, &v))
		assert.Equal(t, store.ValueMap, v.Kind)
		assert.Equal(t, map[string]string{"k": "v"}, v.Map)
	})

	t.Run("mixed payloads degrade to text", func(t *testing.T) {
		var v store.Value
		require.NoError(t, json.Unmarshal([]byte(`{"nested":{"deep":1}}`), &v))
		assert.Equal(t, store.ValueText, v.Kind)
		assert.NotEmpty(t, v.Text)
	})
}

func TestPayloadRoundTrip(t *testing.T) {
	payload := store.Payload{
		"summary":  store.TextValue("a summary"),
		"steps":    store.ListValue("one", "two"),
		"contacts": store.MapValue(map[string]string{"office": "x@example.edu"}),
	}

	data, err := json.Marshal(payload)
	require.NoError(t, err)

	var decoded store.Payload
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, payload, decoded)
}

func TestPayloadSummary(t *testing.T) {
	payload := store.Payload{
		"summary": store.TextValue("the short version"),
		"steps":   store.ListValue("one"),
	}
	assert.Contains(t, payload.Summary(), "the short version")

	assert.Equal(t, "(empty)", store.Payload{}.Summary())
}
