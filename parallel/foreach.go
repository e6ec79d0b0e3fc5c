// Package parallel contains bounded parallel loops.
package parallel

import "sync"

// ForEach executes a for loop with a limited number of concurrent goroutines.
// Each goroutine processes one integer, from 0 to length.
func ForEach(length, limit int, body func(i int)) {
	if limit <= 0 {
		limit = 1
	}
	if length <= 0 {
		return
	}

	sem := make(chan struct{}, limit)
	var wg sync.WaitGroup
	wg.Add(length)

	for i := 0; i < length; i++ {
		sem <- struct{}{}
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()

			body(i)
		}(i)
	}

	wg.Wait()
}

// ForEachBlock splits [0, length) into consecutive blocks of at most block
// items and calls body once per block [lo, hi) using at most limit goroutines.
// Blocks never overlap, so body may write to its own range of a shared slice.
func ForEachBlock(length, block, limit int, body func(lo, hi int)) {
	if block <= 0 {
		block = 1
	}
	if length <= 0 {
		return
	}
	blocks := (length + block - 1) / block
	ForEach(blocks, limit, func(b int) {
		lo := b * block
		hi := lo + block
		if hi > length {
			hi = length
		}
		body(lo, hi)
	})
}
