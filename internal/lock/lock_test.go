package lock

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKey(t *testing.T) {
	assert.Equal(t, "custom:j1", New(nil, " custom: ").Key(" j1 "))
	assert.Equal(t, DefaultPrefix+"j1", New(nil, "").Key("j1"))

	var c *Client
	assert.Equal(t, DefaultPrefix+"j1", c.Key("j1"))
}

func TestNewToken(t *testing.T) {
	a, err := newToken()
	require.NoError(t, err)
	b, err := newToken()
	require.NoError(t, err)

	assert.Len(t, a, 32)
	assert.NotEqual(t, a, b)
}

func TestUninitialisedClient(t *testing.T) {
	ctx := context.Background()
	c := New(nil, "")

	_, err := c.Acquire(ctx, "j1", 0)
	require.ErrorIs(t, err, errNotReady)
	_, err = c.Extend(ctx, "j1", "t", 0)
	require.ErrorIs(t, err, errNotReady)
	require.ErrorIs(t, c.Release(ctx, "j1", "t"), errNotReady)
}

func TestOrDefault(t *testing.T) {
	assert.Equal(t, defaultTTL, orDefault(0))
	assert.Equal(t, defaultTTL, orDefault(-1))
	assert.Equal(t, 42*defaultTTL, orDefault(42*defaultTTL))
}
