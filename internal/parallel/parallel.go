// Package parallel provides the chunked worker fan-out used by element-wise tensor helpers.
package parallel

import (
	"runtime"
	"sync"
)

// Config controls parallel execution behavior.
type Config struct {
	Enabled      bool // Whether parallel execution is enabled.
	NumWorkers   int  // Number of worker goroutines to use.
	MinChunkSize int  // Minimum elements per goroutine to avoid overhead.
}

// DefaultConfig returns defaults based on CPU count.
//
// Element-wise float updates are cheap, so chunks are large: small
// parameters (biases, norms) always run on the calling goroutine.
func DefaultConfig() Config {
	n := runtime.NumCPU()
	return Config{
		Enabled:      n > 1,
		NumWorkers:   n,
		MinChunkSize: 4096,
	}
}

// chunkSize returns the per-goroutine range size, or 0 when n should run sequentially.
func (cfg Config) chunkSize(n int) int {
	if !cfg.Enabled || cfg.NumWorkers <= 1 || n < 2*cfg.MinChunkSize {
		return 0
	}
	return max((n+cfg.NumWorkers-1)/cfg.NumWorkers, cfg.MinChunkSize)
}

// ForChunks calls f(start, end) over disjoint ranges covering [0, n).
// Falls back to a single f(0, n) call if parallelism is disabled or n is too small.
// It returns only after every range has been processed.
func ForChunks(n int, cfg Config, f func(start, end int)) {
	if n <= 0 {
		return
	}
	size := cfg.chunkSize(n)
	if size == 0 {
		f(0, n)
		return
	}

	var wg sync.WaitGroup
	for start := 0; start < n; start += size {
		end := min(start+size, n)
		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			f(s, e)
		}(start, end)
	}
	wg.Wait()
}

// For executes f(i) for i in [0, n) with optional parallelism.
func For(n int, f func(i int), cfg Config) {
	ForChunks(n, cfg, func(start, end int) {
		for i := start; i < end; i++ {
			f(i)
		}
	})
}

// Sum reduces partial(start, end) over disjoint ranges of [0, n).
// Partial results are combined in range order, so the result is deterministic
// for a fixed Config.
func Sum(n int, cfg Config, partial func(start, end int) float64) float64 {
	if n <= 0 {
		return 0
	}
	size := cfg.chunkSize(n)
	if size == 0 {
		return partial(0, n)
	}

	parts := make([]float64, (n+size-1)/size)
	ForChunks(n, cfg, func(start, end int) {
		parts[start/size] = partial(start, end)
	})
	var total float64
	for _, p := range parts {
		total += p
	}
	return total
}
