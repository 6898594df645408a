package logging

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigure_InvalidLevel(t *testing.T) {
	orig := Default()
	defer SetLogger(orig)

	err := Configure("prod", "loud")
	assert.Error(t, err)
	assert.Same(t, orig, Default())
}

func TestConfigure_Dev(t *testing.T) {
	orig := Default()
	defer SetLogger(orig)

	require.NoError(t, Configure("dev", "DEBUG"))
	assert.NotSame(t, orig, Default())
}

func TestOrDefault(t *testing.T) {
	noop := NewNoopLogger()
	assert.Equal(t, noop, OrDefault(noop))
	assert.Equal(t, Default(), OrDefault(nil))
}

func TestZapFields_NamesErrors(t *testing.T) {
	fields := zapFields(map[string]any{"error": errors.New("boom"), "n": 1})
	assert.Len(t, fields, 2)
}
