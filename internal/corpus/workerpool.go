package corpus

import (
	"context"
	"runtime"
	"sync"
)

// WorkerPool runs a function over queued jobs on a fixed set of
// goroutines. Results arrive in completion order; callers that need input
// order carry an index in the job.
type WorkerPool[Job any, Result any] struct {
	workers int
	jobs    chan Job
	results chan Result
	wg      sync.WaitGroup
}

// NewWorkerPool sizes a pool for numJobs jobs. numWorkers <= 0 means
// GOMAXPROCS, and the pool never starts more workers than jobs. Both
// channels are buffered to numJobs so Submit does not block when every
// job is queued before results are read.
func NewWorkerPool[Job any, Result any](numWorkers, numJobs int) *WorkerPool[Job, Result] {
	if numWorkers <= 0 {
		numWorkers = runtime.GOMAXPROCS(0)
	}
	if numJobs > 0 {
		numWorkers = min(numWorkers, numJobs)
	}
	return &WorkerPool[Job, Result]{
		workers: numWorkers,
		jobs:    make(chan Job, max(numJobs, 0)),
		results: make(chan Result, max(numJobs, 0)),
	}
}

// Start launches the workers. Each job is passed to fn unless ctx is
// already done, in which case skip produces its result instead.
func (p *WorkerPool[Job, Result]) Start(ctx context.Context, fn func(context.Context, Job) Result, skip func(Job, error) Result) {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for job := range p.jobs {
				if err := ctx.Err(); err != nil && skip != nil {
					p.results <- skip(job, err)
					continue
				}
				p.results <- fn(ctx, job)
			}
		}()
	}
}

// Submit queues a job.
func (p *WorkerPool[Job, Result]) Submit(job Job) {
	p.jobs <- job
}

// Close stops accepting jobs. The results channel is closed once every
// queued job has finished.
func (p *WorkerPool[Job, Result]) Close() {
	close(p.jobs)
	go func() {
		p.wg.Wait()
		close(p.results)
	}()
}

// Results returns the channel results are delivered on.
func (p *WorkerPool[Job, Result]) Results() <-chan Result {
	return p.results
}

// Workers returns the number of workers the pool runs.
func (p *WorkerPool[Job, Result]) Workers() int {
	return p.workers
}
