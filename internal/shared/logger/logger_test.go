package logger_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/radieske/updown-rounds/internal/shared/logger"
)

func TestNew_Levels(t *testing.T) {
	local, err := logger.New("bet-service", "local", "")
	require.NoError(t, err)
	assert.True(t, local.Core().Enabled(zapcore.DebugLevel))

	prod, err := logger.New("bet-service", "prod", "")
	require.NoError(t, err)
	assert.False(t, prod.Core().Enabled(zapcore.DebugLevel))
	assert.True(t, prod.Core().Enabled(zapcore.InfoLevel))

	quiet, err := logger.New("bet-service", "local", "warn")
	require.NoError(t, err)
	assert.False(t, quiet.Core().Enabled(zapcore.InfoLevel))

	_, err = logger.New("bet-service", "prod", "loud")
	assert.Error(t, err)
}
