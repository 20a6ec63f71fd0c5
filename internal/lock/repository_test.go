package lock

import (
	"context"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepository(t *testing.T, mock *clock.Mock) *Repository {
	t.Helper()
	return New(testCollection(t), mock, testLogger())
}

// TestLock_ContestedThenTakenOverAfterExpiry verifies a fresh lock is acquired, a second
// owner is rejected while it's live, and the second owner succeeds once
// it expires.
func TestLock_ContestedThenTakenOverAfterExpiry(t *testing.T) {
	mock := clock.NewMock()
	repo := newTestRepository(t, mock)
	ctx := context.Background()

	acquired, err := repo.Lock(ctx, "job-a", "worker-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, acquired)

	contended, err := repo.Lock(ctx, "job-a", "worker-2", time.Minute)
	require.NoError(t, err)
	assert.False(t, contended)

	mock.Add(time.Minute + time.Millisecond)

	takeover, err := repo.Lock(ctx, "job-a", "worker-2", time.Minute)
	require.NoError(t, err)
	assert.True(t, takeover)

	locked, err := repo.IsLocked(ctx, "job-a", "worker-2")
	require.NoError(t, err)
	assert.True(t, locked)

	stillLocked, err := repo.IsLocked(ctx, "job-a", "worker-1")
	require.NoError(t, err)
	assert.False(t, stillLocked)
}

// TestLock_OwnerCanReacquireBeforeExpiry exercises the state-machine rule
// that the current holder may re-lock (and so reset its own ttl) at any
// point, not only once the window has expired.
func TestLock_OwnerCanReacquireBeforeExpiry(t *testing.T) {
	mock := clock.NewMock()
	repo := newTestRepository(t, mock)
	ctx := context.Background()

	acquired, err := repo.Lock(ctx, "job-b", "worker-1", time.Minute)
	require.NoError(t, err)
	require.True(t, acquired)

	mock.Add(10 * time.Second)

	reacquired, err := repo.Lock(ctx, "job-b", "worker-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, reacquired)

	found, err := repo.Find(ctx, "job-b")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, mock.Now().Add(time.Minute).UTC(), found.ExpiryTime)
}

// TestRefreshExpiry_AcrossMissingOwnedAndForeignLocks verifies refreshExpiry on a
// nonexistent lock, one held by the caller, and one held by someone else.
func TestRefreshExpiry_AcrossMissingOwnedAndForeignLocks(t *testing.T) {
	mock := clock.NewMock()
	repo := newTestRepository(t, mock)
	ctx := context.Background()

	refreshed, err := repo.RefreshExpiry(ctx, "job-c", "worker-1", time.Minute)
	require.NoError(t, err)
	assert.False(t, refreshed)

	acquired, err := repo.Lock(ctx, "job-c", "worker-1", time.Minute)
	require.NoError(t, err)
	require.True(t, acquired)

	mock.Add(30 * time.Second)

	refreshed, err = repo.RefreshExpiry(ctx, "job-c", "worker-1", 2*time.Minute)
	require.NoError(t, err)
	assert.True(t, refreshed)

	found, err := repo.Find(ctx, "job-c")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, mock.Now().Add(2*time.Minute).UTC(), found.ExpiryTime)

	refreshed, err = repo.RefreshExpiry(ctx, "job-c", "worker-2", time.Minute)
	require.NoError(t, err)
	assert.False(t, refreshed, "refreshExpiry must not succeed for a non-owning caller")
}

// TestReleaseLock_IsIdempotentAndScopedToOwner verifies release only
// removes the record when owner matches, and is safe to call twice.
func TestReleaseLock_IsIdempotentAndScopedToOwner(t *testing.T) {
	mock := clock.NewMock()
	repo := newTestRepository(t, mock)
	ctx := context.Background()

	acquired, err := repo.Lock(ctx, "job-d", "worker-1", time.Minute)
	require.NoError(t, err)
	require.True(t, acquired)

	require.NoError(t, repo.ReleaseLock(ctx, "job-d", "worker-2"))
	locked, err := repo.IsLocked(ctx, "job-d", "worker-1")
	require.NoError(t, err)
	assert.True(t, locked, "release by a non-owner must be a no-op")

	require.NoError(t, repo.ReleaseLock(ctx, "job-d", "worker-1"))
	require.NoError(t, repo.ReleaseLock(ctx, "job-d", "worker-1"))

	found, err := repo.Find(ctx, "job-d")
	require.NoError(t, err)
	assert.Nil(t, found)

	reacquired, err := repo.Lock(ctx, "job-d", "worker-2", time.Minute)
	require.NoError(t, err)
	assert.True(t, reacquired, "a released lock id must be immediately acquirable")
}
