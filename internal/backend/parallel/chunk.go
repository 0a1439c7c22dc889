package parallel

import (
	"fmt"

	"golang.org/x/sync/errgroup"
)

// minChunk keeps tiny ranges on one goroutine.
const minChunk = 64

// forRange splits [0, n) into at most workers contiguous chunks and runs fn
// on each concurrently. A panicking chunk is reported as an error.
func forRange(n, workers int, fn func(lo, hi int)) error {
	if n <= 0 {
		return nil
	}
	workers = max(1, workers)
	size := max(minChunk, (n+workers-1)/workers)
	if size >= n {
		return guard(func() { fn(0, n) })
	}

	var g errgroup.Group
	g.SetLimit(workers)
	for lo := 0; lo < n; lo += size {
		hi := min(lo+size, n)
		g.Go(func() error {
			return guard(func() { fn(lo, hi) })
		})
	}
	return g.Wait()
}

// forEach runs fn for every index, chunked.
func forEach(indices []int, workers int, fn func(i int)) error {
	return forRange(len(indices), workers, func(lo, hi int) {
		for _, i := range indices[lo:hi] {
			fn(i)
		}
	})
}

func guard(fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("kernel panic: %v", r)
		}
	}()
	fn()
	return nil
}
