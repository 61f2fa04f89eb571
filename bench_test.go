package evmap

import (
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"
)

// target is the common interface the benchmark drives against both a
// plain RWMutex-guarded map and this package's Writer/Reader pair, so
// the same driver loop measures both.
type target interface {
	Insert(key int, value int)
	Get(key int) (int, bool)
}

var _ target = &mutexMap{}
var _ target = &evmapTarget{}

// mutexMap is the baseline: a single RWMutex around a plain Go map.
type mutexMap struct {
	mu sync.RWMutex
	m  map[int]int
}

func (t *mutexMap) Insert(key, value int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.m[key] = value
}

func (t *mutexMap) Get(key int) (int, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	v, ok := t.m[key]
	return v, ok
}

// evmapTarget adapts a (Writer, Reader) pair to target. Since this
// package only ever allows one Writer per map, every writing goroutine
// in the benchmark shares the one Writer behind a plain mutex. Every
// reading goroutine shares the same Reader handle: Guard/Close only ever
// touch that handle's own reference count cell via atomics, so
// concurrent callers never contend on the registry lock the way the
// mutex baseline contends on its lock.
type evmapTarget struct {
	w  *Writer[int, int]
	mu sync.Mutex
	r  *Reader[int, int]
}

func newEvmapTarget(maxReplicationWriteLag int) *evmapTarget {
	w, r, _ := NewBuilder[int, int](
		WithMaxReplicationWriteLag[int, int](maxReplicationWriteLag),
	).Build()
	return &evmapTarget{w: w, r: r}
}

func (t *evmapTarget) Insert(key, value int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	g := t.w.Guard()
	g.Insert(key, value)
	g.Close()
}

func (t *evmapTarget) Get(key int) (int, bool) {
	g := t.r.Guard()
	defer g.Close()
	return g.Get(key)
}

func BenchmarkMap(b *testing.B) {
	var cases = []struct {
		writers      int
		readers      int
		keys         int
		refreshEvery int
		duration     time.Duration
	}{
		{1, 10, 1000, 1000, 200 * time.Millisecond},
		{1, 50, 10000, 1000, 200 * time.Millisecond},
	}

	for _, c := range cases {
		for _, impl := range []string{"mutex", "evmap"} {
			b.Run(fmt.Sprintf("%s/w%d/r%d/k%d/%s", impl, c.writers, c.readers, c.keys, c.duration), func(b *testing.B) {
				var m target
				switch impl {
				case "mutex":
					m = &mutexMap{m: map[int]int{}}
				case "evmap":
					m = newEvmapTarget(c.refreshEvery)
				}
				reads, writes := drive(driveParams{
					writers:  c.writers,
					readers:  c.readers,
					keys:     c.keys,
					duration: c.duration,
				}, m)
				b.ReportMetric(reads, "rps")
				b.ReportMetric(writes, "wps")
			})
		}
	}
}

type driveParams struct {
	writers  int
	readers  int
	keys     int
	duration time.Duration
}

func drive(p driveParams, m target) (readsPerSecond, writesPerSecond float64) {
	start := time.Now()
	var wg sync.WaitGroup

	writesCh := make(chan int, p.writers)
	for i := 0; i < p.writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			writes := 0
			defer func() { writesCh <- writes }()
			for time.Since(start) < p.duration {
				k := rand.Intn(p.keys)
				m.Insert(k, k)
				writes++
			}
		}()
	}

	readsCh := make(chan int, p.readers)
	for i := 0; i < p.readers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			reads := 0
			defer func() { readsCh <- reads }()
			for time.Since(start) < p.duration {
				k := rand.Intn(p.keys)
				m.Get(k)
				reads++
			}
		}()
	}

	wg.Wait()
	close(writesCh)
	close(readsCh)

	var totalReads, totalWrites float64
	for r := range readsCh {
		totalReads += float64(r)
	}
	for w := range writesCh {
		totalWrites += float64(w)
	}
	return totalReads / p.duration.Seconds(), totalWrites / p.duration.Seconds()
}
