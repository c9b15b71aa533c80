package interactive

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfirmAction(t *testing.T) {
	cases := map[string]bool{
		"y\n":     true,
		" YES \n": true,
		"yes":     true,
		"n\n":     false,
		"\n":      false,
		"":        false,
		"maybe\n": false,
	}

	for input, want := range cases {
		var out bytes.Buffer
		got := NewPrompter(strings.NewReader(input), &out).ConfirmAction("reset", "store.db")
		assert.Equal(t, want, got, "input %q", input)
		assert.Contains(t, out.String(), "Confirm running reset for store.db (y/N): ")
	}
}
