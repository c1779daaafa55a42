// Package plancache memoizes compiled query plans keyed by their SQL
// text, so repeated statements skip the parse/plan/optimize pipeline.
package plancache

import (
	"container/list"
	"sync"

	"github.com/quelldb/quell/internal/sql/planner"
)

type entry struct {
	sql  string
	plan *planner.Plan
}

// Cache is a fixed-capacity LRU. Plans are immutable once optimized, so
// a cached plan can be handed to any number of executions.
type Cache struct {
	mu      sync.Mutex
	cap     int
	lruList *list.List
	byKey   map[string]*list.Element
}

func New(capacity int) *Cache {
	if capacity < 1 {
		capacity = 1
	}
	return &Cache{
		cap:     capacity,
		lruList: list.New(),
		byKey:   make(map[string]*list.Element, capacity),
	}
}

func (c *Cache) Get(sql string) (*planner.Plan, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	elem, ok := c.byKey[sql]
	if !ok {
		return nil, false
	}
	c.lruList.MoveToFront(elem)
	return elem.Value.(*entry).plan, true
}

func (c *Cache) Put(sql string, plan *planner.Plan) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.byKey[sql]; ok {
		elem.Value.(*entry).plan = plan
		c.lruList.MoveToFront(elem)
		return
	}
	c.byKey[sql] = c.lruList.PushFront(&entry{sql: sql, plan: plan})
	for c.lruList.Len() > c.cap {
		oldest := c.lruList.Back()
		c.lruList.Remove(oldest)
		delete(c.byKey, oldest.Value.(*entry).sql)
	}
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lruList.Len()
}
