// Package bufpool keeps reusable copy buffers for archive extraction and
// process output draining.
//
// Buffers are grouped into size classes. A request is served from the
// smallest class that fits; requests above the largest class are allocated
// directly and dropped on Put so an occasional huge chunk size does not pin
// memory.
//
//	buf := bufpool.Get(64 << 10)
//	defer bufpool.Put(buf)
package bufpool

import (
	"slices"
	"sync"
)

// Default size classes.
const (
	DefaultSmallSize  = 4 << 10  // line scanners
	DefaultMediumSize = 64 << 10 // default extraction chunk
	DefaultLargeSize  = 1 << 20  // tuned bulk extraction
)

type class struct {
	size int
	pool sync.Pool
}

// Pool is a set of sync.Pools keyed by buffer capacity. Safe for concurrent use.
type Pool struct {
	classes []*class
}

// Config lists the size classes of a Pool. Zero or negative sizes are
// ignored; an empty list yields the defaults.
type Config struct {
	Sizes []int
}

// DefaultConfig returns the small, medium and large classes.
func DefaultConfig() Config {
	return Config{Sizes: []int{DefaultSmallSize, DefaultMediumSize, DefaultLargeSize}}
}

// NewPool builds a pool from cfg. A nil cfg uses DefaultConfig.
func NewPool(cfg *Config) *Pool {
	var sizes []int
	if cfg != nil {
		for _, s := range cfg.Sizes {
			if s > 0 {
				sizes = append(sizes, s)
			}
		}
	}
	if len(sizes) == 0 {
		sizes = DefaultConfig().Sizes
	}
	slices.Sort(sizes)
	sizes = slices.Compact(sizes)

	p := &Pool{classes: make([]*class, len(sizes))}
	for i, size := range sizes {
		c := &class{size: size}
		c.pool.New = func() any {
			b := make([]byte, c.size)
			return &b
		}
		p.classes[i] = c
	}
	return p
}

// Get returns a slice of length size. Its capacity is the size class that
// served it, or exactly size when no class is large enough.
func (p *Pool) Get(size int) []byte {
	if size < 0 {
		size = 0
	}
	for _, c := range p.classes {
		if size <= c.size {
			b := *(c.pool.Get().(*[]byte))
			return b[:size]
		}
	}
	return make([]byte, size)
}

// Put returns buf to the class matching its capacity. Buffers whose
// capacity matches no class are left to the garbage collector.
func (p *Pool) Put(buf []byte) {
	if buf == nil {
		return
	}
	n := cap(buf)
	for _, c := range p.classes {
		if n == c.size {
			b := buf[:n]
			c.pool.Put(&b)
			return
		}
	}
}

// Sizes returns the configured size classes in ascending order.
func (p *Pool) Sizes() []int {
	out := make([]int, len(p.classes))
	for i, c := range p.classes {
		out[i] = c.size
	}
	return out
}

var globalPool = NewPool(nil)

// Get returns a buffer of length size from the shared pool.
func Get(size int) []byte {
	return globalPool.Get(size)
}

// Put returns buf to the shared pool.
func Put(buf []byte) {
	globalPool.Put(buf)
}
