package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	logger, err := New("debug", "json")
	require.NoError(t, err)
	assert.NotNil(t, logger)

	logger, err = New("info", "console")
	require.NoError(t, err)
	assert.NotNil(t, logger)
}

func TestNewRejectsBadInput(t *testing.T) {
	_, err := New("verbose", "json")
	require.Error(t, err)

	_, err = New("info", "xml")
	require.Error(t, err)
}
