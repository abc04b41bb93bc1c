package bootstrap

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cardassist/internal/config"
	"cardassist/internal/logger"
)

func TestPostgresDSN(t *testing.T) {
	dsn := PostgresDSN(config.PostgresConfig{
		Host:     "db",
		Port:     5432,
		User:     "admin",
		Password: "s3cr@t",
		DBName:   "cardassist",
	})
	assert.Equal(t, "postgres://admin:s3cr%40t@db:5432/cardassist?sslmode=disable", dsn)
}

func TestDatabaseConnector_OptionalStores(t *testing.T) {
	dc := NewDatabaseConnector(&config.Config{}, logger.NopLogger())
	ctx := context.Background()

	rdb, err := dc.InitRedis(ctx)
	require.NoError(t, err)
	assert.Nil(t, rdb)

	db, err := dc.InitPostgreSQL(ctx)
	require.NoError(t, err)
	assert.Nil(t, db)

	mc, err := dc.InitMongoDB(ctx)
	require.NoError(t, err)
	assert.Nil(t, mc)

	assert.Empty(t, dc.ShutdownDatabases(ctx, nil, nil, nil))
}
