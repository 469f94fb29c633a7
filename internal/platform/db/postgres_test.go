package db

import (
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyPoolOptions(t *testing.T) {
	config, err := pgxpool.ParseConfig("postgres://u:p@localhost:5432/assetdesk")
	require.NoError(t, err)
	defaultMax := config.MaxConns

	applyPoolOptions(config, PoolOptions{})
	assert.Equal(t, defaultMax, config.MaxConns)

	applyPoolOptions(config, PoolOptions{MaxConns: 20, MinConns: 2, MaxConnLifetime: time.Hour, ConnectTimeout: 3 * time.Second})
	assert.Equal(t, int32(20), config.MaxConns)
	assert.Equal(t, int32(2), config.MinConns)
	assert.Equal(t, time.Hour, config.MaxConnLifetime)
	assert.Equal(t, 3*time.Second, config.ConnConfig.ConnectTimeout)
}

func TestApplyPoolOptionsIgnoresMinAboveMax(t *testing.T) {
	config, err := pgxpool.ParseConfig("postgres://u:p@localhost:5432/assetdesk")
	require.NoError(t, err)

	applyPoolOptions(config, PoolOptions{MaxConns: 4, MinConns: 8})
	assert.Equal(t, int32(4), config.MaxConns)
	assert.Equal(t, int32(0), config.MinConns)
}
