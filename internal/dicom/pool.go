package dicom

import (
	"fmt"
	"runtime"
	"sync"
)

type taskResult struct {
	index int
	err   error
}

// runPool calls work for every index in [0, n) on up to workers goroutines (0 means one
// per CPU) and returns the first error. progress, when set, sees each completion.
func runPool(n, workers int, work func(i int) error, progress func(done, total int)) error {
	if n == 0 {
		return nil
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	// Don't use more workers than tasks
	if workers > n {
		workers = n
	}

	taskChan := make(chan int, n)
	resultChan := make(chan taskResult, n)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range taskChan {
				resultChan <- taskResult{index: i, err: work(i)}
			}
		}()
	}

	for i := 0; i < n; i++ {
		taskChan <- i
	}
	close(taskChan)

	go func() {
		wg.Wait()
		close(resultChan)
	}()

	completed := 0
	var firstErr error
	for result := range resultChan {
		if result.err != nil && firstErr == nil {
			firstErr = fmt.Errorf("task %d: %w", result.index, result.err)
		}
		completed++
		if progress != nil {
			progress(completed, n)
		}
	}
	return firstErr
}
