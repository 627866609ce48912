package cache

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/studentkit/internal/crypto"
)

func TestSealedCache(t *testing.T) {
	ctx := context.Background()
	sealer, err := crypto.NewSealer(bytes.Repeat([]byte{3}, crypto.KeySize))
	require.NoError(t, err)
	inner := NewMemoryCache()
	c := NewSealedCache(inner, sealer)

	require.NoError(t, c.Set(ctx, "ums:grades:abc", `[{"grade":"A+"}]`, time.Minute))

	raw, ok, err := inner.Get(ctx, "ums:grades:abc")
	require.NoError(t, err)
	require.True(t, ok)
	assert.NotContains(t, raw, "A+")

	got, ok, err := c.Get(ctx, "ums:grades:abc")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, `[{"grade":"A+"}]`, got)

	// A plaintext value left by an older deployment reads as a miss.
	require.NoError(t, inner.Set(ctx, "legacy", "plain", time.Minute))
	_, ok, err = c.Get(ctx, "legacy")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Delete(ctx, "ums:grades:abc"))
	_, ok, err = c.Get(ctx, "ums:grades:abc")
	require.NoError(t, err)
	assert.False(t, ok)
}
