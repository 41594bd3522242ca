package bufpool

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetSizeClasses(t *testing.T) {
	cases := []struct {
		name    string
		size    int
		wantCap int
	}{
		{"Zero", 0, DefaultSmallSize},
		{"Small", 100, DefaultSmallSize},
		{"SmallBoundary", DefaultSmallSize, DefaultSmallSize},
		{"Medium", DefaultSmallSize + 1, DefaultMediumSize},
		{"MediumBoundary", DefaultMediumSize, DefaultMediumSize},
		{"Large", 100 << 10, DefaultLargeSize},
		{"Oversized", 2 << 20, 2 << 20},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			buf := Get(tc.size)
			defer Put(buf)

			assert.Len(t, buf, tc.size)
			assert.Equal(t, tc.wantCap, cap(buf))
		})
	}
}

func TestNegativeSize(t *testing.T) {
	buf := Get(-5)
	defer Put(buf)
	assert.Empty(t, buf)
}

func TestPutRestoresFullLength(t *testing.T) {
	p := NewPool(&Config{Sizes: []int{16}})

	buf := p.Get(4)
	copy(buf, "abcd")
	p.Put(buf)

	again := p.Get(16)
	assert.Len(t, again, 16)
	assert.Equal(t, 16, cap(again))
}

func TestPutIgnoresForeignBuffers(t *testing.T) {
	p := NewPool(nil)
	assert.NotPanics(t, func() {
		p.Put(nil)
		p.Put(make([]byte, 123))
	})
}

func TestCustomSizes(t *testing.T) {
	p := NewPool(&Config{Sizes: []int{1024, 0, 256, 1024, -1}})
	require.Equal(t, []int{256, 1024}, p.Sizes())

	assert.Equal(t, 256, cap(p.Get(10)))
	assert.Equal(t, 1024, cap(p.Get(300)))
	assert.Equal(t, 2048, cap(p.Get(2048)))
}

func TestEmptyConfigUsesDefaults(t *testing.T) {
	p := NewPool(&Config{})
	assert.Equal(t, DefaultConfig().Sizes, p.Sizes())
}

func TestConcurrentUse(t *testing.T) {
	const workers = 16
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				buf := Get(DefaultMediumSize)
				buf[0] = byte(id)
				buf[len(buf)-1] = byte(j)
				Put(buf)
			}
		}(i)
	}
	wg.Wait()
}

func BenchmarkGetPut(b *testing.B) {
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		Put(Get(DefaultMediumSize))
	}
}
