//go:build integration

package idempotency

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cardassist/internal/testutil"
	"cardassist/pkg/models"
)

func TestRedisStore(t *testing.T) {
	store := NewRedisStore(testutil.Redis(t))
	ctx := context.Background()

	rec, err := store.Get(ctx, "m1")
	require.NoError(t, err)
	assert.Nil(t, rec)

	ok, err := store.Claim(ctx, "m1", 5*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.Claim(ctx, "m1", 5*time.Second)
	require.NoError(t, err)
	assert.False(t, ok)

	resp := models.Response{MessageID: "m1", Text: "Your card ending in 1234 has been blocked.", Status: models.ResponseAnswered}
	require.NoError(t, store.Complete(ctx, Record{MessageID: "m1", Response: resp, CompletedAt: time.Now().UTC()}, time.Minute))

	rec, err = store.Get(ctx, "m1")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, resp.Text, rec.Response.Text)

	ok, err = store.Claim(ctx, "m1", 5*time.Second)
	require.NoError(t, err)
	assert.True(t, ok, "complete removes the claim")

	require.NoError(t, store.Release(ctx, "m1"))
	ok, err = store.Claim(ctx, "m1", 5*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisStore_ClaimExpires(t *testing.T) {
	store := NewRedisStore(testutil.Redis(t))
	ctx := context.Background()

	ok, err := store.Claim(ctx, "m2", time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	time.Sleep(1500 * time.Millisecond)

	ok, err = store.Claim(ctx, "m2", time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
}
