package orchestrator

import (
	"sync"
	"time"
)

// StartClock calls fn with the time elapsed since the start every interval
// until stop is called. stop may be called more than once; it returns only
// after the last call to fn has finished.
func StartClock(interval time.Duration, fn func(elapsed time.Duration)) (stop func()) {
	start := time.Now()
	ticker := time.NewTicker(interval)
	done := make(chan struct{})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				fn(time.Since(start))
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			ticker.Stop()
			close(done)
			wg.Wait()
		})
	}
}
