package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNew(t *testing.T) {
	l, err := New("production", "")
	require.NoError(t, err)
	assert.False(t, l.Core().Enabled(zap.DebugLevel))

	l, err = New("development", "")
	require.NoError(t, err)
	assert.True(t, l.Core().Enabled(zap.DebugLevel))

	l, err = New("dev", "warn")
	require.NoError(t, err)
	assert.False(t, l.Core().Enabled(zap.InfoLevel))
	assert.True(t, l.Core().Enabled(zap.WarnLevel))
}

func TestNew_Invalid(t *testing.T) {
	_, err := New("verbose", "")
	assert.Error(t, err)

	_, err = New("production", "loud")
	assert.ErrorContains(t, err, "invalid log level")
}
