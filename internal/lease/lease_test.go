package lease

import (
	"context"
	"testing"
	"time"

	"github.com/alexanderramin/recur/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingLocker struct {
	acquire  bool
	renewErr error
	renews   int
	release  int
}

func (c *countingLocker) Acquire(context.Context, string, string, time.Duration) (bool, error) {
	return c.acquire, nil
}

func (c *countingLocker) Renew(context.Context, string, string, time.Duration) error {
	c.renews++
	return c.renewErr
}

func (c *countingLocker) Release(context.Context, string, string) error {
	c.release++
	return ErrNotHeld
}

func TestHold_HeldElsewhere(t *testing.T) {
	l, err := Hold(context.Background(), &countingLocker{acquire: false}, "rule-1", "w", time.Minute, nil)
	require.NoError(t, err)
	assert.Nil(t, l)
}

func TestLease_KeepAliveRenewsAfterThirdOfTTL(t *testing.T) {
	clock := testutil.NewClock(time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC))
	locker := &countingLocker{acquire: true}
	ctx := context.Background()

	l, err := Hold(ctx, locker, "rule-1", "w", 30*time.Second, clock.Now)
	require.NoError(t, err)
	require.NotNil(t, l)

	clock.Advance(5 * time.Second)
	require.NoError(t, l.KeepAlive(ctx))
	assert.Zero(t, locker.renews)

	clock.Advance(6 * time.Second)
	require.NoError(t, l.KeepAlive(ctx))
	assert.Equal(t, 1, locker.renews)

	clock.Advance(time.Second)
	require.NoError(t, l.KeepAlive(ctx))
	assert.Equal(t, 1, locker.renews, "renewal window restarts after each renew")
}

func TestLease_KeepAliveReportsLoss(t *testing.T) {
	clock := testutil.NewClock(time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC))
	locker := &countingLocker{acquire: true, renewErr: ErrNotHeld}
	ctx := context.Background()

	l, err := Hold(ctx, locker, "rule-1", "w", 30*time.Second, clock.Now)
	require.NoError(t, err)

	clock.Advance(20 * time.Second)
	assert.ErrorIs(t, l.KeepAlive(ctx), ErrNotHeld)
}

func TestLease_ReleaseIgnoresExpiry(t *testing.T) {
	locker := &countingLocker{acquire: true}
	l, err := Hold(context.Background(), locker, "rule-1", "w", time.Minute, nil)
	require.NoError(t, err)

	assert.NoError(t, l.Release(context.Background()))
	assert.Equal(t, 1, locker.release)
}
