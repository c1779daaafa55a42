package plancache

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quelldb/quell/internal/sql/planner"
)

func plan(table string) *planner.Plan {
	return &planner.Plan{Root: &planner.Scan{Table: table}}
}

func TestCache_GetPut(t *testing.T) {
	c := New(4)
	_, ok := c.Get("SELECT * FROM a")
	assert.False(t, ok)

	c.Put("SELECT * FROM a", plan("a"))
	got, ok := c.Get("SELECT * FROM a")
	require.True(t, ok)
	assert.Equal(t, `Plan(Scan { table: "a", alias: None, filter: None })`, got.String())
}

func TestCache_PutReplaces(t *testing.T) {
	c := New(4)
	c.Put("q", plan("a"))
	c.Put("q", plan("b"))
	got, ok := c.Get("q")
	require.True(t, ok)
	assert.Contains(t, got.String(), `"b"`)
	assert.Equal(t, 1, c.Len())
}

func TestCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c := New(2)
	c.Put("a", plan("a"))
	c.Put("b", plan("b"))

	// touch a so b is the eviction candidate
	_, ok := c.Get("a")
	require.True(t, ok)

	c.Put("c", plan("c"))
	assert.Equal(t, 2, c.Len())
	_, ok = c.Get("b")
	assert.False(t, ok)
	_, ok = c.Get("a")
	assert.True(t, ok)
}

func TestCache_MinimumCapacity(t *testing.T) {
	c := New(0)
	for i := 0; i < 3; i++ {
		c.Put(fmt.Sprintf("q%d", i), plan("t"))
	}
	assert.Equal(t, 1, c.Len())
}
