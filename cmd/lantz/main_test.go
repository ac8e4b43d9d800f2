package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zapcore"
)

func TestVerbosityLevel(t *testing.T) {
	assert.Equal(t, zapcore.InfoLevel, verbosityLevel(0))
	assert.Equal(t, zapcore.DebugLevel, verbosityLevel(1))
	assert.Equal(t, zapcore.DebugLevel, verbosityLevel(3))
}
