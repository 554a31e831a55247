package main

import (
	"context"
	"sync"
)

// NavigationDirection represents the direction of navigation
type NavigationDirection int

const (
	NavigationForward NavigationDirection = iota
	NavigationBackward
	NavigationJump
)

// directionOf classifies a cursor move for prefetching
func directionOf(delta int) NavigationDirection {
	if delta < 0 {
		return NavigationBackward
	}
	return NavigationForward
}

// PreloadRequest represents a request to preload pages around Index
type PreloadRequest struct {
	Index     int
	Count     int
	Direction NavigationDirection
}

// PreloadStats provides statistics about preloading
type PreloadStats struct {
	LoadedCount   int
	FailedCount   int
	LastDirection NavigationDirection
}

// Prefetcher decodes pages next to the cursor on a background goroutine so
// the next step finds them in the PageCache.
type Prefetcher struct {
	requestChan chan PreloadRequest
	ctx         context.Context
	cancel      context.CancelFunc
	cache       *PageCache
	mu          sync.RWMutex
	stats       PreloadStats
	maxPreload  int
	wg          sync.WaitGroup
}

// NewPrefetcher starts a worker that fills cache
func NewPrefetcher(cache *PageCache, maxPreload int) *Prefetcher {
	ctx, cancel := context.WithCancel(context.Background())
	p := &Prefetcher{
		requestChan: make(chan PreloadRequest, 16),
		ctx:         ctx,
		cancel:      cancel,
		cache:       cache,
		maxPreload:  maxPreload,
	}

	p.wg.Add(1)
	go p.worker()

	return p
}

// Stats returns current preload statistics
func (p *Prefetcher) Stats() PreloadStats {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.stats
}

// Stop ends the worker and waits for it to exit
func (p *Prefetcher) Stop() {
	p.cancel()
	p.wg.Wait()
}

// Request replaces any queued work with pages around currentIdx
func (p *Prefetcher) Request(currentIdx, count int, direction NavigationDirection) {
	// Clear the request channel to cancel any pending requests
drain:
	for {
		select {
		case <-p.requestChan:
		default:
			break drain
		}
	}

	select {
	case p.requestChan <- PreloadRequest{Index: currentIdx, Count: count, Direction: direction}:
	default:
		debugLog("Preload request channel full, skipping preload request")
	}
}

func (p *Prefetcher) worker() {
	defer p.wg.Done()
	for {
		select {
		case <-p.ctx.Done():
			return
		case req := <-p.requestChan:
			p.process(req)
		}
	}
}

func (p *Prefetcher) process(req PreloadRequest) {
	p.mu.Lock()
	p.stats.LastDirection = req.Direction
	p.mu.Unlock()

	for _, idx := range calculatePreloadIndices(req.Index, req.Direction, req.Count, p.maxPreload) {
		select {
		case <-p.ctx.Done():
			return
		default:
			p.preload(idx)
		}
	}
}

// calculatePreloadIndices lists the pages to warm, nearest first
func calculatePreloadIndices(currentIdx int, direction NavigationDirection, count, maxPreload int) []int {
	var indices []int

	switch direction {
	case NavigationForward:
		for i := 1; i <= maxPreload; i++ {
			if idx := currentIdx + i; idx < count {
				indices = append(indices, idx)
			}
		}
	case NavigationBackward:
		for i := 1; i <= maxPreload; i++ {
			if idx := currentIdx - i; idx >= 0 {
				indices = append(indices, idx)
			}
		}
	case NavigationJump:
		half := max(1, maxPreload/2)
		for i := 1; i <= half; i++ {
			if idx := currentIdx + i; idx < count {
				indices = append(indices, idx)
			}
			if idx := currentIdx - i; idx >= 0 {
				indices = append(indices, idx)
			}
		}
	}

	return indices
}

func (p *Prefetcher) preload(idx int) {
	if p.cache.Contains(idx) {
		return
	}

	_, err := p.cache.Get(idx)

	p.mu.Lock()
	if err != nil {
		p.stats.FailedCount++
	} else {
		p.stats.LoadedCount++
	}
	p.mu.Unlock()

	debugLog("Preloaded page %d (cache: %d items, err: %v)", idx+1, p.cache.Len(), err)
}
