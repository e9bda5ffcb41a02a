package netcdf

import (
	"fmt"
	"slices"
	"sync"

	"github.com/couchcryptid/coral-dhw-etl/internal/domain"
)

// MemberSet reads ensemble members year by year, keeping at most maxOpen
// files open. Least recently used readers are closed first. A MemberSet is
// not safe for concurrent use.
type MemberSet struct {
	paths    []string
	variable string
	cache    *lruCache
	open     func(string) (*Reader, error)

	// OnLookup, when set, is called with the cache result of every member
	// access.
	OnLookup func(hit bool)
}

// NewMemberSet creates a member reader over paths.
func NewMemberSet(paths []string, variable string, maxOpen int) *MemberSet {
	return &MemberSet{
		paths:    paths,
		variable: variable,
		cache:    newLRUCache(max(maxOpen, 1)),
		open:     Open,
	}
}

// Members returns the member paths in the order given.
func (m *MemberSet) Members() []string { return m.paths }

// Years returns the union of years present in any member, ascending.
func (m *MemberSet) Years() ([]int, error) {
	var all []int
	for _, p := range m.paths {
		r, err := m.reader(p)
		if err != nil {
			return nil, err
		}
		ys, err := r.Years()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p, err)
		}
		all = append(all, ys...)
	}
	slices.Sort(all)
	return slices.Compact(all), nil
}

// Year reads year from member. The second result is false when the member has
// no day in year.
func (m *MemberSet) Year(member string, year int) (domain.YearSlice, bool, error) {
	r, err := m.reader(member)
	if err != nil {
		return domain.YearSlice{}, false, err
	}
	return r.Year(m.variable, year)
}

// Close closes every open reader.
func (m *MemberSet) Close() error {
	return m.cache.purge()
}

func (m *MemberSet) reader(path string) (*Reader, error) {
	if r, ok := m.cache.get(path); ok {
		m.lookup(true)
		return r, nil
	}
	m.lookup(false)
	r, err := m.open(path)
	if err != nil {
		return nil, err
	}
	if err := m.cache.put(path, r); err != nil {
		return nil, err
	}
	return r, nil
}

func (m *MemberSet) lookup(hit bool) {
	if m.OnLookup != nil {
		m.OnLookup(hit)
	}
}

// lruCache is a small thread-safe LRU of open readers. Evicted readers are
// closed.
type lruCache struct {
	maxEntries int
	mu         sync.Mutex
	entries    map[string]*entry
	head       *entry // most recently used
	tail       *entry // least recently used
}

type entry struct {
	key   string
	value *Reader
	prev  *entry
	next  *entry
}

func newLRUCache(maxEntries int) *lruCache {
	return &lruCache{
		maxEntries: maxEntries,
		entries:    make(map[string]*entry),
	}
}

func (c *lruCache) get(key string) (*Reader, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	c.moveToFront(e)
	return e.value, true
}

func (c *lruCache) put(key string, value *Reader) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		if e.value != nil && e.value != value {
			_ = e.value.Close()
		}
		e.value = value
		c.moveToFront(e)
		return nil
	}

	e := &entry{key: key, value: value}
	c.entries[key] = e
	c.addToFront(e)

	if len(c.entries) > c.maxEntries {
		return c.evictTail()
	}
	return nil
}

func (c *lruCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *lruCache) purge() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var first error
	for c.tail != nil {
		if err := c.evictTail(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (c *lruCache) moveToFront(e *entry) {
	if e == c.head {
		return
	}
	c.remove(e)
	c.addToFront(e)
}

func (c *lruCache) addToFront(e *entry) {
	e.next = c.head
	e.prev = nil
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *lruCache) remove(e *entry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
}

func (c *lruCache) evictTail() error {
	if c.tail == nil {
		return nil
	}
	e := c.tail
	delete(c.entries, e.key)
	c.remove(e)
	if e.value == nil {
		return nil
	}
	return e.value.Close()
}
