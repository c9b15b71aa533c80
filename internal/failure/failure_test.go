package failure_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirbelkuyu/docbridge/internal/failure"
)

func TestSentinelsMatchAtAnyDepth(t *testing.T) {
	storageErr := failure.Storage(errors.New("disk full"))
	importErr := failure.Import("person.json", fmt.Errorf("failed to insert row: %w", storageErr))
	wrapped := fmt.Errorf("import failed: %w", importErr)

	assert.True(t, errors.Is(wrapped, failure.ErrImport))
	assert.True(t, errors.Is(wrapped, failure.ErrStorage))
	assert.False(t, errors.Is(wrapped, failure.ErrExport))

	kind, ok := failure.KindOf(wrapped)
	require.True(t, ok)
	assert.Equal(t, failure.KindImport, kind)
}

func TestErrorMessageIncludesSubject(t *testing.T) {
	err := failure.Export("person", errors.New("table was unexpectedly empty"))
	assert.Equal(t, "export error: person: table was unexpectedly empty", err.Error())

	assert.Equal(t, "config error: no schema configuration supplied",
		failure.Configf("no schema configuration supplied").Error())
}

func TestKindOfPlainError(t *testing.T) {
	_, ok := failure.KindOf(errors.New("plain"))
	assert.False(t, ok)
}
