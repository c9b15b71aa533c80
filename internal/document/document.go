// Package document holds JSON objects whose field order survives a decode and
// re-encode cycle. Field values stay in their raw JSON form so numbers, nested
// objects and arrays come back out exactly as they went in.
package document

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

type Document struct {
	keys   []string
	fields map[string]json.RawMessage
}

func New() *Document {
	return &Document{fields: make(map[string]json.RawMessage)}
}

// Parse decodes a single JSON object.
func Parse(data []byte) (*Document, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	doc, err := Decode(dec)
	if err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("unexpected data after JSON object")
	}
	return doc, nil
}

// Decode reads the next JSON object from dec.
func Decode(dec *json.Decoder) (*Document, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("expected JSON object, found %v", describeToken(tok))
	}

	doc := New()
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("expected object key, found %v", describeToken(keyTok))
		}

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("failed to decode field %q: %w", key, err)
		}
		doc.Set(key, raw)
	}

	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return doc, nil
}

func (d *Document) Len() int {
	return len(d.keys)
}

// Keys returns the field names in document order.
func (d *Document) Keys() []string {
	keys := make([]string, len(d.keys))
	copy(keys, d.keys)
	return keys
}

func (d *Document) Get(key string) (json.RawMessage, bool) {
	raw, ok := d.fields[key]
	return raw, ok
}

// Set stores value under key. A key that already exists keeps its position.
func (d *Document) Set(key string, value json.RawMessage) {
	if _, exists := d.fields[key]; !exists {
		d.keys = append(d.keys, key)
	}
	d.fields[key] = value
}

// SetValue marshals value and stores it under key.
func (d *Document) SetValue(key string, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode field %q: %w", key, err)
	}
	d.Set(key, raw)
	return nil
}

func (d *Document) Delete(key string) {
	if _, exists := d.fields[key]; !exists {
		return
	}
	delete(d.fields, key)
	for i, k := range d.keys {
		if k == key {
			d.keys = append(d.keys[:i], d.keys[i+1:]...)
			break
		}
	}
}

// Merge copies every field of other into d, in other's order.
func (d *Document) Merge(other *Document) {
	for _, key := range other.keys {
		d.Set(key, other.fields[key])
	}
}

func (d *Document) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, key := range d.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		encodedKey, err := json.Marshal(key)
		if err != nil {
			return nil, err
		}
		buf.Write(encodedKey)
		buf.WriteByte(':')

		raw := d.fields[key]
		if len(raw) == 0 {
			buf.WriteString("null")
			continue
		}
		if err := json.Compact(&buf, raw); err != nil {
			return nil, fmt.Errorf("invalid value for field %q: %w", key, err)
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (d *Document) UnmarshalJSON(data []byte) error {
	parsed, err := Parse(data)
	if err != nil {
		return err
	}
	*d = *parsed
	return nil
}

func describeToken(tok json.Token) string {
	switch v := tok.(type) {
	case json.Delim:
		return fmt.Sprintf("%q", v.String())
	case string:
		return "string"
	case nil:
		return "null"
	case bool:
		return "boolean"
	default:
		return "number"
	}
}
