package document

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

type ValueKind int

const (
	KindInvalid ValueKind = iota
	KindNull
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
)

func (k ValueKind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "boolean"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return "invalid"
	}
}

// KindOf inspects the first significant byte of raw.
func KindOf(raw json.RawMessage) ValueKind {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return KindInvalid
	}
	switch c := trimmed[0]; {
	case c == 'n':
		return KindNull
	case c == 't' || c == 'f':
		return KindBool
	case c == '"':
		return KindString
	case c == '[':
		return KindArray
	case c == '{':
		return KindObject
	case c == '-' || (c >= '0' && c <= '9'):
		return KindNumber
	default:
		return KindInvalid
	}
}

// IsNull reports whether raw is absent or the JSON literal null.
func IsNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

// ScalarString renders a string, number or boolean value as text. Numbers keep
// their literal spelling.
func ScalarString(raw json.RawMessage) (string, error) {
	switch kind := KindOf(raw); kind {
	case KindString:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", err
		}
		return s, nil
	case KindNumber, KindBool:
		return string(bytes.TrimSpace(raw)), nil
	default:
		return "", fmt.Errorf("cannot represent %s value as text", kind)
	}
}

// Bool coerces a JSON boolean, a numeric 0/1 or a boolean string.
func Bool(raw json.RawMessage) (bool, error) {
	switch kind := KindOf(raw); kind {
	case KindBool:
		return bytes.Equal(bytes.TrimSpace(raw), []byte("true")), nil
	case KindNumber:
		n, err := strconv.ParseFloat(string(bytes.TrimSpace(raw)), 64)
		if err != nil {
			return false, err
		}
		if n != 0 && n != 1 {
			return false, fmt.Errorf("number %v is not a boolean", n)
		}
		return n == 1, nil
	case KindString:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return false, err
		}
		b, err := strconv.ParseBool(s)
		if err != nil {
			return false, fmt.Errorf("string %q is not a boolean", s)
		}
		return b, nil
	default:
		return false, fmt.Errorf("%s value is not a boolean", kind)
	}
}

// Array splits a JSON array into its raw elements.
func Array(raw json.RawMessage) ([]json.RawMessage, error) {
	if KindOf(raw) != KindArray {
		return nil, fmt.Errorf("expected array, found %s", KindOf(raw))
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, err
	}
	return items, nil
}
