package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erazemk/duka/internal/db"
)

func TestGetJWTSecretGeneratesAndPersists(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	secret1, err := GetJWTSecret(ctx, database)
	require.NoError(t, err)
	assert.Len(t, secret1, 64, "32 bytes hex encoded")

	secret2, err := GetJWTSecret(ctx, database)
	require.NoError(t, err)
	assert.Equal(t, secret1, secret2)
}

func TestInitSettingKeepsFirstValue(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	_, ok, err := GetSetting(ctx, database, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	v, err := InitSetting(ctx, database, "k", "first")
	require.NoError(t, err)
	assert.Equal(t, "first", v)

	v, err = InitSetting(ctx, database, "k", "second")
	require.NoError(t, err)
	assert.Equal(t, "first", v)
}
