package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withMiniredis(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	mr := miniredis.RunT(t)
	SetClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { SetClient(nil) })
	return mr
}

type cachedUser struct {
	ID    uint   `json:"id"`
	Email string `json:"email"`
}

func TestKeys(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "user:7", UserKey(7))
	assert.Equal(t, "flat:12", FlatKey(12))
	assert.Equal(t, "flat:12:messages", FlatMessagesKey(12))
	assert.Equal(t, "pwreset:abc", ResetTokenKey("abc"))
}

func TestGetSetJSON(t *testing.T) {
	withMiniredis(t)
	ctx := context.Background()

	var missing cachedUser
	found, err := GetJSON(ctx, UserKey(1), &missing)
	require.NoError(t, err)
	assert.False(t, found)

	want := cachedUser{ID: 1, Email: "user@example.com"}
	require.NoError(t, SetJSON(ctx, UserKey(1), want, UserTTL))

	var got cachedUser
	found, err = GetJSON(ctx, UserKey(1), &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, want, got)
}

func TestGetSetJSON_NoClient(t *testing.T) {
	SetClient(nil)
	ctx := context.Background()

	// without a client everything degrades to a miss
	require.NoError(t, SetJSON(ctx, "k", "v", time.Minute))
	var got string
	found, err := GetJSON(ctx, "k", &got)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestAside(t *testing.T) {
	mr := withMiniredis(t)
	ctx := context.Background()

	calls := 0
	fetch := func(dest *cachedUser) func() error {
		return func() error {
			calls++
			*dest = cachedUser{ID: 3, Email: "cached@example.com"}
			return nil
		}
	}

	var first cachedUser
	require.NoError(t, Aside(ctx, UserKey(3), &first, UserTTL, fetch(&first)))
	assert.Equal(t, 1, calls)
	assert.Equal(t, uint(3), first.ID)

	// second read is served from the cache
	var second cachedUser
	require.NoError(t, Aside(ctx, UserKey(3), &second, UserTTL, fetch(&second)))
	assert.Equal(t, 1, calls)
	assert.Equal(t, first, second)

	// after expiry the fetch runs again
	mr.FastForward(UserTTL + time.Second)
	var third cachedUser
	require.NoError(t, Aside(ctx, UserKey(3), &third, UserTTL, fetch(&third)))
	assert.Equal(t, 2, calls)
}

func TestInvalidate(t *testing.T) {
	withMiniredis(t)
	ctx := context.Background()

	require.NoError(t, SetJSON(ctx, FlatKey(5), "flat", FlatTTL))
	require.NoError(t, SetJSON(ctx, FlatMessagesKey(5), "messages", FlatMessagesTTL))

	InvalidateFlat(ctx, 5)

	var got string
	found, err := GetJSON(ctx, FlatKey(5), &got)
	require.NoError(t, err)
	assert.False(t, found)
	found, err = GetJSON(ctx, FlatMessagesKey(5), &got)
	require.NoError(t, err)
	assert.False(t, found)
}
