package cache

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReservation_AbortLeavesNothing(t *testing.T) {
	d := newTestDir(t)

	r, err := d.Reserve(context.Background(), testKey)
	require.NoError(t, err)
	_, _ = r.Write([]byte("partial"))

	require.NoError(t, r.Abort())
	assert.NoFileExists(t, d.Path(testKey))
	assert.NoFileExists(t, d.Path(testKey)+partSuffix)
}

func TestReservation_AbortIsIdempotent(t *testing.T) {
	d := newTestDir(t)
	r, err := d.Reserve(context.Background(), testKey)
	require.NoError(t, err)
	require.NoError(t, r.Abort())
	require.NoError(t, r.Abort())
}

func TestReservation_AbortAfterCommitKeepsEntry(t *testing.T) {
	d := newTestDir(t)
	ctx := context.Background()
	r, err := d.Reserve(ctx, testKey)
	require.NoError(t, err)
	_, _ = r.Write([]byte("image"))
	require.NoError(t, r.Commit())

	// Deferred Abort after a successful Commit is a no-op.
	require.NoError(t, r.Abort())
	assert.True(t, d.Exists(ctx, testKey), "committed entry was removed by Abort")
}

func TestReservation_CommitTwice(t *testing.T) {
	d := newTestDir(t)
	r, err := d.Reserve(context.Background(), testKey)
	require.NoError(t, err)
	_, _ = r.Write([]byte("x"))
	require.NoError(t, r.Commit())

	assert.ErrorIs(t, r.Commit(), ErrCommitted)
	_, err = r.Write([]byte("y"))
	assert.ErrorIs(t, err, ErrCommitted)
}

func TestReservation_EmptyCommitDiscarded(t *testing.T) {
	d := newTestDir(t)
	ctx := context.Background()
	r, err := d.Reserve(ctx, testKey)
	require.NoError(t, err)

	require.ErrorIs(t, r.Commit(), ErrEmptyResult)
	assert.False(t, d.Exists(ctx, testKey), "empty entry must not be published")
	assert.NoFileExists(t, d.Path(testKey)+partSuffix)
}

func TestReservation_OverwritesStalePart(t *testing.T) {
	d := newTestDir(t)
	require.NoError(t, os.WriteFile(d.Path(testKey)+partSuffix, []byte("stale-bytes"), 0o644))

	commitEntry(t, d, testKey, []byte("new"))

	data, err := os.ReadFile(d.Path(testKey))
	require.NoError(t, err)
	assert.Equal(t, "new", string(data))
}

func TestReservation_Written(t *testing.T) {
	d := newTestDir(t)
	r, err := d.Reserve(context.Background(), testKey)
	require.NoError(t, err)
	defer r.Abort()

	_, err = r.Write([]byte("abc"))
	require.NoError(t, err)
	assert.EqualValues(t, 3, r.Written())
}
