package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func TestMemoryTTL(t *testing.T) {
	clk := &clock{t: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
	c := NewMemory(clk.now, 10)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "goa", []byte("beaches"), 10*time.Minute))
	v, ok, err := c.Get(ctx, "goa")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "beaches", string(v))

	clk.t = clk.t.Add(10 * time.Minute)
	_, ok, err = c.Get(ctx, "goa")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestMemoryEvictsOldestWhenFull(t *testing.T) {
	clk := &clock{t: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
	c := NewMemory(clk.now, 2)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "a", []byte("1"), time.Hour))
	clk.t = clk.t.Add(time.Second)
	require.NoError(t, c.Set(ctx, "b", []byte("2"), time.Hour))
	clk.t = clk.t.Add(time.Second)
	require.NoError(t, c.Set(ctx, "c", []byte("3"), time.Hour))

	assert.Equal(t, 2, c.Len())
	_, ok, _ := c.Get(ctx, "a")
	assert.False(t, ok)
	_, ok, _ = c.Get(ctx, "c")
	assert.True(t, ok)
}

func TestJSONHelpers(t *testing.T) {
	c := NewMemory(nil, 0)
	ctx := context.Background()
	type hotel struct {
		Name  string `json:"name"`
		Stars int    `json:"stars"`
	}

	require.NoError(t, SetJSON(ctx, c, "k", []hotel{{Name: "Zostel", Stars: 3}}, time.Minute))
	got, ok, err := GetJSON[[]hotel](ctx, c, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []hotel{{Name: "Zostel", Stars: 3}}, got)

	_, ok, err = GetJSON[[]hotel](ctx, c, "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}
