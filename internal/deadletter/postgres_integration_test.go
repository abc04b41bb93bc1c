//go:build integration

package deadletter

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cardassist/internal/broker"
	"cardassist/internal/config"
	"cardassist/internal/constants"
	"cardassist/internal/logger"
	"cardassist/internal/testutil"
	"cardassist/pkg/errors"
)

func TestPostgresRepository(t *testing.T) {
	repo := NewPostgresRepository(testutil.Postgres(t))
	ctx := context.Background()
	at := time.Date(2024, 1, 20, 10, 0, 0, 0, time.UTC)

	rec := &Record{
		MessageID:      "m1",
		RoutingKey:     constants.RoutingKeyAction,
		SourceQueue:    constants.DefaultActionQueue,
		Reason:         "retry_exhausted",
		Attempts:       3,
		Payload:        *deadLettered("m1", at),
		DeadLetteredAt: at,
	}
	inserted, err := repo.Insert(ctx, rec)
	require.NoError(t, err)
	assert.True(t, inserted)

	dup := *rec
	dup.ID = ""
	inserted, err = repo.Insert(ctx, &dup)
	require.NoError(t, err)
	assert.False(t, inserted)

	got, err := repo.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "m1", got.MessageID)
	assert.Equal(t, 3, got.Payload.Envelope.AttemptCount)
	assert.Equal(t, "retry_exhausted", got.Payload.Envelope.Metadata.DeadLetter.Reason)
	assert.Nil(t, got.ReplayedAt)

	_, err = repo.Get(ctx, "not-a-uuid")
	assert.True(t, errors.IsNotFound(err))

	require.NoError(t, repo.MarkReplayed(ctx, rec.ID, "ops", time.Now().UTC()))
	err = repo.MarkReplayed(ctx, rec.ID, "ops", time.Now().UTC())
	assert.True(t, errors.IsConflict(err))

	pending, err := repo.List(ctx, ListFilter{PendingOnly: true, Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, pending)

	require.NoError(t, repo.UnmarkReplayed(ctx, rec.ID))
	pending, err = repo.List(ctx, ListFilter{PendingOnly: true, Limit: 10})
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestService_ReplayWithPostgres(t *testing.T) {
	b := broker.NewMemoryBroker(broker.NewTopology(config.BrokerConfig{}))
	svc := NewService(NewPostgresRepository(testutil.Postgres(t)), b, b.Topology(), logger.NopLogger())
	ctx := context.Background()

	require.NoError(t, svc.Archive(ctx, deadLettered("m2", time.Now().UTC())))
	records, err := svc.List(ctx, ListFilter{})
	require.NoError(t, err)
	require.Len(t, records, 1)

	_, err = svc.Replay(ctx, records[0].ID, "ops")
	require.NoError(t, err)

	queue, _ := b.Topology().QueueFor(constants.RoutingKeyAction)
	assert.Equal(t, 1, b.Len(queue))

	_, err = svc.Replay(ctx, records[0].ID, "ops")
	assert.True(t, errors.IsConflict(err))
}
