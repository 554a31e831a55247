package main

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"runtime"
	"strconv"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// DecodedPage is a decoded bitmap with its native size. Never mutated.
type DecodedPage struct {
	Image  image.Image
	Width  int
	Height int
}

// PageSource supplies raw page bytes; *PageList is the production source
type PageSource interface {
	Len() int
	Entry(i int) PageEntry
	ReadPage(i int) ([]byte, error)
}

type cachedPage struct {
	page *DecodedPage
	err  error
}

// PageCache decodes pages on first access and keeps them until the archive
// is replaced. There is no per-page eviction: the working set is bounded by
// the archive itself.
type PageCache struct {
	mu         sync.RWMutex
	source     PageSource
	generation uint64
	entries    map[int]cachedPage
	inflight   singleflight.Group
}

// NewPageCache creates a cache over source. A nil source yields ErrNoArchive
// until Invalidate installs one.
func NewPageCache(source PageSource) *PageCache {
	return &PageCache{
		source:  source,
		entries: make(map[int]cachedPage),
	}
}

// Invalidate drops every cached page and switches to a new source. Decodes
// that started before the call finish but are not stored.
func (c *PageCache) Invalidate(source PageSource) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	c.source = source
	c.entries = make(map[int]cachedPage)
	debugLog("PageCache invalidated (generation %d)", c.generation)
}

// Generation increases on every Invalidate
func (c *PageCache) Generation() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.generation
}

// Len returns the number of pages decoded so far, failed ones included
func (c *PageCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Contains reports whether page i has already been decoded
func (c *PageCache) Contains(i int) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.entries[i]
	return ok
}

// Get returns page i, decoding it on first access. A failed decode is
// remembered as a *PageError for that index only.
func (c *PageCache) Get(i int) (*DecodedPage, error) {
	c.mu.RLock()
	src, gen := c.source, c.generation
	if src == nil {
		c.mu.RUnlock()
		return nil, ErrNoArchive
	}
	if i < 0 || i >= src.Len() {
		c.mu.RUnlock()
		return nil, fmt.Errorf("page %d out of range [0, %d)", i, src.Len())
	}
	if e, ok := c.entries[i]; ok {
		c.mu.RUnlock()
		debugLog("Cache HIT: page %d", i+1)
		return e.page, e.err
	}
	c.mu.RUnlock()

	key := strconv.FormatUint(gen, 10) + ":" + strconv.Itoa(i)
	v, _, _ := c.inflight.Do(key, func() (interface{}, error) {
		c.mu.RLock()
		if e, ok := c.entries[i]; ok && c.generation == gen {
			c.mu.RUnlock()
			return e, nil
		}
		c.mu.RUnlock()

		e := decodePage(src, i)

		c.mu.Lock()
		if c.generation == gen {
			c.entries[i] = e
		}
		cached := len(c.entries)
		c.mu.Unlock()

		if logger.IsLevelEnabled(logrus.DebugLevel) {
			var mem runtime.MemStats
			runtime.ReadMemStats(&mem)
			debugLog("Cache MISS: page %d decoded (cache: %d items, memory: %dMB)",
				i+1, cached, mem.Alloc/1024/1024)
		}
		return e, nil
	})

	e := v.(cachedPage)
	return e.page, e.err
}

func decodePage(src PageSource, i int) cachedPage {
	entry := src.Entry(i)
	data, err := src.ReadPage(i)
	if err != nil {
		logger.WithFields(logrus.Fields{"page": i + 1, "entry": entry.Name}).Warnf("Failed to read page: %v", err)
		return cachedPage{err: &PageError{Index: i, Name: entry.Name, Err: fmt.Errorf("%w: %v", ErrUnreadableEntry, err)}}
	}

	img, err := decodeImage(data)
	if err != nil {
		logger.WithFields(logrus.Fields{"page": i + 1, "entry": entry.Name}).Warnf("Failed to decode page: %v", err)
		return cachedPage{err: &PageError{Index: i, Name: entry.Name, Err: fmt.Errorf("%w: %v", ErrCorruptImage, err)}}
	}

	b := img.Bounds()
	return cachedPage{page: &DecodedPage{Image: img, Width: b.Dx(), Height: b.Dy()}}
}

func decodeImage(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	if b := img.Bounds(); b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, fmt.Errorf("empty image %dx%d", b.Dx(), b.Dy())
	}
	return img, nil
}
