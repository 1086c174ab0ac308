// Copyright Contributors to the Opus project

// Package canonjson produces a deterministic JSON encoding used for
// checksum and unique-id calculation. Free-form maps are encoded with
// sorted keys; a Doc preserves its declared field order so identifier
// serializations keep their canonical shape.
package canonjson

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
)

// Field is a single ordered key/value pair inside a Doc.
type Field struct {
	Key   string
	Value any
}

// Doc is a JSON object whose fields encode in declaration order.
type Doc []Field

// Marshal encodes v deterministically. Two values with the same logical
// content always produce the same bytes, regardless of map key order.
func Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := encode(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Hash returns the hex encoded SHA-256 of the canonical encoding of v.
func Hash(v any) (string, error) {
	data, err := Marshal(v)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

func encode(buf *bytes.Buffer, v any) error {
	switch val := v.(type) {
	case nil:
		buf.WriteString("null")
	case Doc:
		buf.WriteByte('{')
		for i, f := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := encodeString(buf, f.Key); err != nil {
				return err
			}
			buf.WriteByte(':')
			if err := encode(buf, f.Value); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := encodeString(buf, k); err != nil {
				return err
			}
			buf.WriteByte(':')
			if err := encode(buf, val[k]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	case []any:
		buf.WriteByte('[')
		for i, item := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := encode(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case []Doc:
		items := make([]any, len(val))
		for i, d := range val {
			items[i] = d
		}
		return encode(buf, items)
	case []string:
		items := make([]any, len(val))
		for i, s := range val {
			items[i] = s
		}
		return encode(buf, items)
	case []map[string]any:
		items := make([]any, len(val))
		for i, m := range val {
			items[i] = m
		}
		return encode(buf, items)
	case map[string]string:
		converted := make(map[string]any, len(val))
		for k, s := range val {
			converted[k] = s
		}
		return encode(buf, converted)
	default:
		// Scalars (strings, bools, all numeric types) take the stdlib
		// encoding, which is already deterministic.
		data, err := json.Marshal(val)
		if err != nil {
			return fmt.Errorf("failed to encode value of type %T: %w", v, err)
		}
		buf.Write(data)
	}
	return nil
}

func encodeString(buf *bytes.Buffer, s string) error {
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	buf.Write(data)
	return nil
}
