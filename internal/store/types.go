// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Topiq Contributors

package store

import (
	"encoding/json"
	"fmt"
	"time"
)

// --- Alias types ---

// AliasRecord is one entry in the vector store: an alias text mapped to
// its canonical topic together with the embedding used for similarity
// matching. An alias text maps to exactly one topic at any time; a
// re-Put overwrites the prior mapping.
type AliasRecord struct {
	Text      string
	TopicID   string
	Embedding []float32
	CreatedAt time.Time
	ExpiresAt time.Time
}

// --- Topic types ---

// Topic is the stable unit of cached knowledge a query resolves to.
// The ID is a human-readable slug minted from the first query that
// created the topic. The payload is replaced wholesale on re-extraction.
type Topic struct {
	ID        string
	Payload   Payload
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Payload is the open, domain-evolving fact mapping of a topic.
// Keys are free-form (titles, requirements, fees, deadlines, steps,
// contacts); values are restricted to the Value variants.
type Payload map[string]Value

// ValueKind discriminates the closed set of payload value shapes.
type ValueKind int

const (
	ValueText ValueKind = iota
	ValueList
	ValueMap
)

// Value is one payload field: plain text, a list of text, or a
// key/value list. Exactly one member is populated per Kind.
type Value struct {
	Kind ValueKind
	Text string
	List []string
	Map  map[string]string
}

// Text returns a text Value.
func TextValue(s string) Value { return Value{Kind: ValueText, Text: s} }

// ListValue returns a list-of-text Value.
func ListValue(items ...string) Value { return Value{Kind: ValueList, List: items} }

// MapValue returns a key/value-list Value.
func MapValue(m map[string]string) Value { return Value{Kind: ValueMap, Map: m} }

// MarshalJSON encodes the populated variant directly, so payloads
// round-trip as natural JSON ({"fees": "...", "steps": [...]}).
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case ValueText:
		return json.Marshal(v.Text)
	case ValueList:
		if v.List == nil {
			return json.Marshal([]string{})
		}
		return json.Marshal(v.List)
	case ValueMap:
		if v.Map == nil {
			return json.Marshal(map[string]string{})
		}
		return json.Marshal(v.Map)
	default:
		return nil, fmt.Errorf("unknown payload value kind %d", v.Kind)
	}
}

// UnmarshalJSON decodes a string, string array, or string map into the
// matching variant. Other JSON shapes (numbers, nested objects) are
// stored as their text rendering so acquisition output never fails to
// persist.
func (v *Value) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*v = TextValue(s)
		return nil
	}

	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*v = ListValue(list...)
		return nil
	}

	var m map[string]string
	if err := json.Unmarshal(data, &m); err == nil {
		*v = MapValue(m)
		return nil
	}

	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*v = TextValue(fmt.Sprintf("%v", raw))
	return nil
}

// Summary renders a compact one-line view of the payload for arbiter
// prompts and logs.
func (p Payload) Summary() string {
	if len(p) == 0 {
		return "(empty)"
	}
	out := ""
	for key, val := range p {
		if out != "" {
			out += "; "
		}
		switch val.Kind {
		case ValueText:
			out += key + ": " + truncate(val.Text, 80)
		case ValueList:
			out += fmt.Sprintf("%s: %d items", key, len(val.List))
		case ValueMap:
			out += fmt.Sprintf("%s: %d entries", key, len(val.Map))
		}
	}
	return out
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "…"
}

// --- Stats ---

// Stats reports store-wide counts for the stats endpoint.
type Stats struct {
	Topics  int64 `json:"topics"`
	Aliases int64 `json:"aliases"`
	Vectors int64 `json:"vectors"`
}
