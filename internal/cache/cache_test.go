package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegionKeyNormalizes(t *testing.T) {
	a := RegionKey("market", "Texas")
	b := RegionKey("market", "  texas ")
	c := RegionKey("market", "Ohio")
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.NotEqual(t, a, RegionKey("zones", "Texas"))
}

func TestCoordinateKeyRounds(t *testing.T) {
	a := CoordinateKey("viability", 30.26715, -97.74306)
	b := CoordinateKey("viability", 30.26719, -97.74308)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, CoordinateKey("viability", 30.3, -97.7))
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	s, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()

	_, err = s.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrMiss)

	payload := []byte(`{"region":"Texas","score":0.82}`)
	require.NoError(t, s.Set(ctx, "k1", payload, time.Hour))

	got, err := s.Get(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, payload, got)

	require.NoError(t, s.Delete(ctx, "k1"))
	_, err = s.Get(ctx, "k1")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestSQLiteStoreExpiry(t *testing.T) {
	s, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	require.NoError(t, s.Set(ctx, "k1", []byte("v"), -time.Second))

	_, err = s.Get(ctx, "k1")
	assert.ErrorIs(t, err, ErrMiss)

	// overwriting an expired row revives the key
	require.NoError(t, s.Set(ctx, "k1", []byte("v2"), time.Hour))
	got, err := s.Get(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), got)
}

func TestRedisStoreRoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	s, err := NewRedisStore(ctx, mr.Addr(), "", 0)
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrMiss)

	payload := []byte(`{"zones":3}`)
	require.NoError(t, s.Set(ctx, "k1", payload, time.Minute))

	got, err := s.Get(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, payload, got)

	mr.FastForward(2 * time.Minute)
	_, err = s.Get(ctx, "k1")
	assert.ErrorIs(t, err, ErrMiss)

	require.NoError(t, s.Set(ctx, "k2", []byte("v"), time.Minute))
	require.NoError(t, s.Delete(ctx, "k2"))
	_, err = s.Get(ctx, "k2")
	assert.ErrorIs(t, err, ErrMiss)
}
