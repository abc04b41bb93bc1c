package logging

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetLogFields(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, GetLogFields(ctx))

	ctx = WithMessageID(ctx, "m-1")
	ctx = WithUserID(ctx, "u1")
	ctx = WithChannel(ctx, "web")

	assert.Equal(t, []interface{}{"message_id", "m-1", "user_id", "u1", "channel", "web"}, GetLogFields(ctx))
	assert.Equal(t, "u1", GetUserID(ctx))
	assert.Equal(t, "", GetTraceID(ctx))
}
