package cpuacc

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// workers bounds the goroutines used by the cpuacc kernels. Values <= 1 run
// every kernel sequentially.
var workers atomic.Int32

func init() {
	SetWorkers(runtime.GOMAXPROCS(0))
}

// SetWorkers sets the maximum number of goroutines used per kernel.
// n <= 1 disables parallelism.
func SetWorkers(n int) {
	const maxInt32 = int(^uint32(0) >> 1)

	if n < 0 {
		n = 0
	}

	if n > maxInt32 {
		n = maxInt32
	}

	workers.Store(int32(n))
}

// Workers returns the current worker bound (0 or 1 means sequential).
func Workers() int { return int(workers.Load()) }

// parallelFor splits [0, n) into contiguous chunks and runs fn(lo, hi)
// concurrently. When workers <= 1 the call is sequential.
func parallelFor(n, workers int, fn func(lo, hi int)) {
	if workers <= 1 || n <= 1 {
		fn(0, n)
		return
	}

	if workers > n {
		workers = n
	}

	var wg sync.WaitGroup

	chunk := (n + workers - 1) / workers
	for lo := 0; lo < n; lo += chunk {
		hi := min(lo+chunk, n)

		wg.Add(1)

		go func(lo, hi int) {
			defer wg.Done()

			fn(lo, hi)
		}(lo, hi)
	}

	wg.Wait()
}

// minChunk is the smallest element-wise slice handed to one goroutine.
const minChunk = 4096

// chunked runs fn over [0, n) in chunks of at least minChunk elements on an
// errgroup. The first error cancels the remaining chunks.
func chunked(ctx context.Context, n int, fn func(lo, hi int) error) error {
	w := Workers()
	if w <= 1 || n <= minChunk {
		if err := ctx.Err(); err != nil {
			return err
		}

		return fn(0, n)
	}

	chunk := max((n+w-1)/w, minChunk)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w)

	for lo := 0; lo < n; lo += chunk {
		hi := min(lo+chunk, n)

		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			return fn(lo, hi)
		})
	}

	return g.Wait()
}

// scratchPools is a size-class pool for the im2col patch matrices. Classes
// are powers of two from 2^10 to 2^26 elements.
var (
	scratchPools   [17]sync.Pool
	scratchPools32 [17]sync.Pool
)

// getScratch returns a zeroed []float32 of exactly n elements. The caller
// must hand it back with putScratch.
func getScratch(n int) []float32 {
	cls := scratchClass(n)
	sz := 1 << (cls + 10)

	if sz < n {
		return make([]float32, n)
	}

	if v := scratchPools[cls].Get(); v != nil {
		if buf, ok := v.([]float32); ok {
			buf = buf[:n]
			clear(buf)

			return buf
		}
	}

	return make([]float32, sz)[:n]
}

func putScratch(buf []float32) {
	c := cap(buf)

	cls := scratchClass(c)
	if 1<<(cls+10) < c {
		return
	}

	scratchPools[cls].Put(buf[:c])
}

// getScratchInt32 is getScratch for the integer im2col path.
func getScratchInt32(n int) []int32 {
	cls := scratchClass(n)
	sz := 1 << (cls + 10)

	if sz < n {
		return make([]int32, n)
	}

	if v := scratchPools32[cls].Get(); v != nil {
		if buf, ok := v.([]int32); ok {
			buf = buf[:n]
			clear(buf)

			return buf
		}
	}

	return make([]int32, sz)[:n]
}

func putScratchInt32(buf []int32) {
	c := cap(buf)

	cls := scratchClass(c)
	if 1<<(cls+10) < c {
		return
	}

	scratchPools32[cls].Put(buf[:c])
}

// scratchClass returns the pool index for a buffer of n elements.
func scratchClass(n int) int {
	if n <= 1<<10 {
		return 0
	}

	bits := 0

	v := n - 1
	for v > 0 {
		v >>= 1
		bits++
	}

	return min(max(bits-10, 0), 16)
}
