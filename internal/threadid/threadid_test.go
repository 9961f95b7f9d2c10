package threadid

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGen_unique(t *testing.T) {
	const n = 1000
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = make(map[uint64]struct{}, n*4)
	)
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range n {
				id := Gen()
				mu.Lock()
				seen[id] = struct{}{}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Len(t, seen, n*4)
	assert.NotContains(t, seen, uint64(0))
}
