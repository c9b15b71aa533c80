package document

import (
	"encoding/json"
	"fmt"
	"io"
)

// ArrayReader streams the objects of a top-level JSON array one at a time.
type ArrayReader struct {
	dec  *json.Decoder
	done bool
}

// NewArrayReader consumes the opening bracket and fails when the input does
// not start with a JSON array.
func NewArrayReader(r io.Reader) (*ArrayReader, error) {
	dec := json.NewDecoder(r)
	tok, err := dec.Token()
	if err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("expected a JSON array of documents, found empty input")
		}
		return nil, fmt.Errorf("expected a JSON array of documents: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '[' {
		return nil, fmt.Errorf("expected a JSON array of documents, found %s", describeToken(tok))
	}
	return &ArrayReader{dec: dec}, nil
}

// Next returns the next document, or io.EOF after the closing bracket when
// nothing but whitespace follows it.
func (r *ArrayReader) Next() (*Document, error) {
	if r.done {
		return nil, io.EOF
	}
	if !r.dec.More() {
		if _, err := r.dec.Token(); err != nil {
			return nil, fmt.Errorf("unterminated JSON array: %w", err)
		}
		if _, err := r.dec.Token(); err != io.EOF {
			return nil, fmt.Errorf("unexpected data after JSON array")
		}
		r.done = true
		return nil, io.EOF
	}
	doc, err := Decode(r.dec)
	if err != nil {
		return nil, err
	}
	return doc, nil
}
