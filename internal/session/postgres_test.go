package session

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func setupSessionTestDB(t *testing.T) *pgxpool.Pool {
	dsn := os.Getenv("TEST_DB_DSN")
	if dsn == "" {
		t.Skip("Skipping test: TEST_DB_DSN not set")
	}
	db, err := Connect(context.Background(), dsn)
	if err != nil {
		t.Skipf("Skipping test: cannot connect to test database: %v", err)
	}
	t.Cleanup(db.Close)
	return db
}

func TestPGStoreRoundTrip(t *testing.T) {
	db := setupSessionTestDB(t)
	store := NewPGStore(db, time.Hour)
	ctx := context.Background()
	require.NoError(t, store.EnsureSchema(ctx))

	data := New()
	data.Token = &oauth2.Token{AccessToken: "abc", RefreshToken: "def"}
	data.SheetID = "sheet-1"
	data.FirstName = "Ada"
	require.NoError(t, store.Save(ctx, data))

	got, err := store.Get(ctx, data.ID)
	require.NoError(t, err)
	assert.Equal(t, "sheet-1", got.SheetID)
	assert.Equal(t, "Ada", got.FirstName)
	assert.Equal(t, "def", got.Token.RefreshToken)

	data.SheetID = "sheet-2"
	require.NoError(t, store.Save(ctx, data))
	got, err = store.Get(ctx, data.ID)
	require.NoError(t, err)
	assert.Equal(t, "sheet-2", got.SheetID)

	require.NoError(t, store.Delete(ctx, data.ID))
	_, err = store.Get(ctx, data.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPGStoreMissing(t *testing.T) {
	db := setupSessionTestDB(t)
	store := NewPGStore(db, time.Hour)
	ctx := context.Background()
	require.NoError(t, store.EnsureSchema(ctx))

	_, err := store.Get(ctx, "does-not-exist")
	assert.ErrorIs(t, err, ErrNotFound)
}
