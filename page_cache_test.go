package main

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPageCacheGetIsMemoized(t *testing.T) {
	src := newMemSource(pageFiles(t, 3))
	cache := NewPageCache(src)

	first, err := cache.Get(1)
	require.NoError(t, err)
	assert.Equal(t, 21, first.Width)
	assert.Equal(t, 30, first.Height)

	second, err := cache.Get(1)
	require.NoError(t, err)
	assert.Same(t, first, second, "second Get must return the stored page")
	assert.Equal(t, 1, src.readCount(1))
	assert.True(t, cache.Contains(1))
	assert.False(t, cache.Contains(0))
	assert.Equal(t, 1, cache.Len())
}

func TestPageCacheConcurrentGetDecodesOnce(t *testing.T) {
	src := newMemSource(pageFiles(t, 1))
	cache := NewPageCache(src)

	var wg sync.WaitGroup
	pages := make([]*DecodedPage, 8)
	for i := range pages {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p, err := cache.Get(0)
			assert.NoError(t, err)
			pages[i] = p
		}(i)
	}
	wg.Wait()

	for _, p := range pages[1:] {
		assert.Same(t, pages[0], p)
	}
	assert.LessOrEqual(t, src.readCount(0), 2)
}

func TestPageCacheFailuresAreLocal(t *testing.T) {
	files := pageFiles(t, 4)
	files[1].Data = []byte("definitely not an image")
	src := newMemSource(files)
	src.data[2] = nil // unreadable entry
	cache := NewPageCache(src)

	good, err := cache.Get(0)
	require.NoError(t, err)

	tests := []struct {
		name  string
		index int
		want  error
	}{
		{"corrupt image", 1, ErrCorruptImage},
		{"unreadable entry", 2, ErrUnreadableEntry},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := cache.Get(tt.index)
			assert.Nil(t, p)
			assert.ErrorIs(t, err, tt.want)

			var pe *PageError
			require.True(t, errors.As(err, &pe))
			assert.Equal(t, tt.index, pe.Index)
			assert.Equal(t, files[tt.index].Name, pe.Name)

			// the failure is remembered, not retried
			_, again := cache.Get(tt.index)
			assert.ErrorIs(t, again, tt.want)
			assert.Equal(t, 1, src.readCount(tt.index))
		})
	}

	stillGood, err := cache.Get(0)
	require.NoError(t, err)
	assert.Same(t, good, stillGood, "a bad page must not evict good ones")

	last, err := cache.Get(3)
	require.NoError(t, err)
	assert.Equal(t, 23, last.Width)
}

func TestPageCacheInvalidate(t *testing.T) {
	oldSrc := newMemSource(pageFiles(t, 2))
	cache := NewPageCache(oldSrc)

	before, err := cache.Get(0)
	require.NoError(t, err)
	gen := cache.Generation()

	files := pageFiles(t, 3)
	files[0].Data = pngBytes(t, 50, 60)
	newSrc := newMemSource(files)
	cache.Invalidate(newSrc)

	assert.Equal(t, gen+1, cache.Generation())
	assert.Equal(t, 0, cache.Len())
	assert.False(t, cache.Contains(0))

	after, err := cache.Get(0)
	require.NoError(t, err)
	assert.NotSame(t, before, after)
	assert.Equal(t, 50, after.Width)

	_, err = cache.Get(2)
	assert.NoError(t, err, "new page range applies after invalidate")
}

func TestPageCacheInvalidateClearsFailures(t *testing.T) {
	files := pageFiles(t, 1)
	files[0].Data = []byte("garbage")
	cache := NewPageCache(newMemSource(files))

	_, err := cache.Get(0)
	require.ErrorIs(t, err, ErrCorruptImage)

	cache.Invalidate(newMemSource(pageFiles(t, 1)))
	_, err = cache.Get(0)
	assert.NoError(t, err)
}

func TestPageCacheBounds(t *testing.T) {
	t.Run("no source", func(t *testing.T) {
		_, err := NewPageCache(nil).Get(0)
		assert.ErrorIs(t, err, ErrNoArchive)
	})

	t.Run("out of range", func(t *testing.T) {
		cache := NewPageCache(newMemSource(pageFiles(t, 2)))
		for _, i := range []int{-1, 2, 100} {
			_, err := cache.Get(i)
			assert.Error(t, err, "index %d", i)
		}
		assert.Equal(t, 0, cache.Len())
	})
}

func TestPageCacheWithArchive(t *testing.T) {
	files := pageFiles(t, 3)
	files[2].Data = []byte("broken")
	list, err := OpenArchive(tempArchive(t, "book.zip", files), ArchiveOptions{SortMethod: SortSimple})
	require.NoError(t, err)

	cache := NewPageCache(list)
	p, err := cache.Get(0)
	require.NoError(t, err)
	assert.Equal(t, 20, p.Width)

	_, err = cache.Get(2)
	assert.ErrorIs(t, err, ErrCorruptImage)
}
