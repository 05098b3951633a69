package kv_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vvbbnn00/onedrive-index/kv"
	"github.com/vvbbnn00/onedrive-index/kv/memory"
)

func TestPrefixedNamespacing(t *testing.T) {
	base := memory.NewStore()
	defer base.Close()
	ctx := context.Background()

	cacheView := kv.WithPrefix(base, "site_cache:")
	sessionView := kv.WithPrefix(base, "site_session:")

	require.NoError(t, cacheView.Set(ctx, "k", "cached", 0))
	require.NoError(t, sessionView.Set(ctx, "k", "session", 0))

	got, ok, err := cacheView.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "cached", got)

	got, ok, err = sessionView.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "session", got)

	// The raw key lands under the full namespace in the base store.
	got, ok, err = base.Get(ctx, "site_cache:k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "cached", got)
}

func TestPrefixedDeleteAndExpire(t *testing.T) {
	base := memory.NewStore()
	defer base.Close()
	ctx := context.Background()

	view := kv.WithPrefix(base, "p:")
	require.NoError(t, view.Set(ctx, "k", "v", 5*time.Millisecond))
	require.NoError(t, view.Expire(ctx, "k", time.Hour))
	time.Sleep(10 * time.Millisecond)
	_, ok, err := view.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, view.Delete(ctx, "k"))
	_, ok, err = base.Get(ctx, "p:k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPrefixedCloseDoesNotCloseBase(t *testing.T) {
	base := memory.NewStore()
	defer base.Close()

	view := kv.WithPrefix(base, "p:")
	require.NoError(t, view.Close())

	require.NoError(t, base.Set(context.Background(), "k", "v", 0))
}
