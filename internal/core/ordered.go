package core

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Pair is a single member of an OrderedMap.
type Pair[V any] struct {
	Key   string
	Value V
}

// OrderedMap is a string-keyed map that remembers insertion order and
// encodes to a JSON object with members in that order. The zero value is an
// empty map ready to use.
type OrderedMap[V any] struct {
	pairs []Pair[V]
	index map[string]int
}

// Set stores value under key. A new key is appended; an existing key keeps
// its position.
func (m *OrderedMap[V]) Set(key string, value V) {
	if i, ok := m.index[key]; ok {
		m.pairs[i].Value = value
		return
	}
	if m.index == nil {
		m.index = make(map[string]int)
	}
	m.index[key] = len(m.pairs)
	m.pairs = append(m.pairs, Pair[V]{Key: key, Value: value})
}

// Get returns the value stored under key.
func (m OrderedMap[V]) Get(key string) (V, bool) {
	if i, ok := m.index[key]; ok {
		return m.pairs[i].Value, true
	}
	var zero V
	return zero, false
}

// Len returns the number of keys.
func (m OrderedMap[V]) Len() int { return len(m.pairs) }

// Keys returns the keys in insertion order.
func (m OrderedMap[V]) Keys() []string {
	keys := make([]string, len(m.pairs))
	for i, p := range m.pairs {
		keys[i] = p.Key
	}
	return keys
}

// Pairs returns a copy of the members in insertion order.
func (m OrderedMap[V]) Pairs() []Pair[V] {
	out := make([]Pair[V], len(m.pairs))
	copy(out, m.pairs)
	return out
}

// MarshalJSON encodes the map as a JSON object, preserving order.
// An empty map encodes as {} rather than null.
func (m OrderedMap[V]) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, p := range m.pairs {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(p.Key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(p.Value)
		if err != nil {
			return nil, fmt.Errorf("encode %q: %w", p.Key, err)
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object, keeping member order. null decodes
// to an empty map.
func (m *OrderedMap[V]) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	*m = OrderedMap[V]{}
	if tok == nil {
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("ordered map: expected object, got %v", tok)
	}

	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("ordered map: expected string key, got %v", tok)
		}
		var v V
		if err := dec.Decode(&v); err != nil {
			return fmt.Errorf("ordered map: decode %q: %w", key, err)
		}
		m.Set(key, v)
	}

	// closing brace
	if _, err := dec.Token(); err != nil {
		return err
	}
	return nil
}
