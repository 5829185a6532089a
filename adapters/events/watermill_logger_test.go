package events

import (
	"errors"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestZapLogger(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	logger := NewZapLogger(zap.New(core)).With(watermill.LogFields{"topic": TopicSignIn})

	logger.Info("published", watermill.LogFields{"uuid": "m1"})
	logger.Trace("acked", nil)
	logger.Error("publish failed", errors.New("broken pipe"), nil)

	entries := logs.AllUntimed()
	require.Len(t, entries, 3)

	assert.Equal(t, zap.InfoLevel, entries[0].Level)
	assert.Equal(t, map[string]any{"topic": TopicSignIn, "uuid": "m1"}, entries[0].ContextMap())
	assert.Equal(t, zap.DebugLevel, entries[1].Level)
	assert.Equal(t, "broken pipe", entries[2].ContextMap()["error"])
}
