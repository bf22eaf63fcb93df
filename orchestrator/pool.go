package orchestrator

import (
	"context"
	"sync"

	log "github.com/sirupsen/logrus"
)

// DefaultDraftWorkers bounds how many draft creations run at once.
const DefaultDraftWorkers = 4

type createJob struct {
	index int
}

// runJobs calls fn for indexes [0, n) on at most workers goroutines and
// returns the per-index errors. Jobs not yet started when ctx is done fail
// with ctx.Err().
func runJobs(ctx context.Context, logger *log.Entry, workers, n int, fn func(ctx context.Context, i int) error) []error {
	errs := make([]error, n)
	if n == 0 {
		return errs
	}
	if workers <= 0 {
		workers = DefaultDraftWorkers
	}
	if workers > n {
		workers = n
	}

	jobs := make(chan createJob)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := range jobs {
				if err := ctx.Err(); err != nil {
					errs[j.index] = err
					continue
				}
				if err := fn(ctx, j.index); err != nil {
					errs[j.index] = err
					logger.WithError(err).WithFields(log.Fields{"index": j.index, "worker": id}).Warn("orchestrator: job failed")
				}
			}
		}(w)
	}
	for i := 0; i < n; i++ {
		jobs <- createJob{index: i}
	}
	close(jobs)
	wg.Wait()
	return errs
}
