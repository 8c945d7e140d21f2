package breaker

import (
	"context"
	"runtime"
	"sync"
)

// MaxWorkers caps the size of a sweep worker pool.
const MaxWorkers = 256

// DefaultWorkers sizes a pool from the available hardware concurrency.
func DefaultWorkers() int {
	return clampWorkers(runtime.GOMAXPROCS(0) * 4)
}

func clampWorkers(n int) int {
	if n < 1 {
		return 1
	}
	if n > MaxWorkers {
		return MaxWorkers
	}
	return n
}

type sweepJob struct {
	index int
}

type sweepResult struct {
	index     int
	candidate Candidate
}

// pool evaluates independent key candidates in parallel. Results are stored by
// job index so the caller sees enumeration order regardless of scheduling.
type pool struct {
	workers int
	jobs    chan sweepJob
	results chan sweepResult
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
	eval    func(int) Candidate
}

func newPool(ctx context.Context, workers int, eval func(int) Candidate) *pool {
	ctx, cancel := context.WithCancel(ctx)
	return &pool{
		workers: workers,
		jobs:    make(chan sweepJob, workers*2),
		results: make(chan sweepResult, workers*2),
		ctx:     ctx,
		cancel:  cancel,
		eval:    eval,
	}
}

func (p *pool) start() {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

func (p *pool) worker() {
	defer p.wg.Done()
	for {
		select {
		case <-p.ctx.Done():
			return
		case job, ok := <-p.jobs:
			if !ok {
				return
			}
			res := sweepResult{index: job.index, candidate: p.eval(job.index)}
			select {
			case p.results <- res:
			case <-p.ctx.Done():
				return
			}
		}
	}
}

// sweep evaluates eval for every index in [0,n) and returns the candidates in
// index order.
func sweep(ctx context.Context, workers, n int, eval func(int) Candidate) ([]Candidate, error) {
	if workers > n {
		workers = n
	}
	if workers < 1 {
		workers = 1
	}
	p := newPool(ctx, workers, eval)
	defer p.cancel()
	p.start()

	go func() {
		defer close(p.jobs)
		for i := 0; i < n; i++ {
			select {
			case p.jobs <- sweepJob{index: i}:
			case <-p.ctx.Done():
				return
			}
		}
	}()
	go func() {
		p.wg.Wait()
		close(p.results)
	}()

	out := make([]Candidate, n)
	received := 0
	for res := range p.results {
		out[res.index] = res.candidate
		received++
	}
	if received < n {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
	return out, nil
}
