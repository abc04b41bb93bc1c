package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"cardassist/pkg/logging"
)

func TestContextFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := NewWithCore(core, "consumer-service")

	ctx := logging.WithMessageID(context.Background(), "m1")
	ctx = logging.WithUserID(ctx, "u1")
	log.InfowCtx(ctx, "Message acknowledged", "attempts", 1)

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "m1", fields[logging.MessageIDKey])
	assert.Equal(t, "u1", fields[logging.UserIDKey])
	assert.Equal(t, "consumer-service", fields[logging.ServiceNameKey])
	assert.EqualValues(t, 1, fields["attempts"])
}

func TestContextServiceNameWins(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	log := NewWithCore(core, "router-service")

	log.WarnwCtx(logging.WithServiceName(context.Background(), "admin-service"), "x")

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "admin-service", logs.All()[0].ContextMap()[logging.ServiceNameKey])
}

func TestNew(t *testing.T) {
	_, err := New("debug", "console")
	assert.NoError(t, err)

	_, err = New("", "")
	assert.NoError(t, err)

	_, err = New("loud", "json")
	assert.Error(t, err)
}
