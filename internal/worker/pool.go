package worker

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"
)

// EmbedFunc embeds one batch of texts, returning one vector per text in order.
type EmbedFunc func(ctx context.Context, texts []string) ([][]float32, error)

// Pool fans embedding batches out to a fixed number of goroutines and
// reassembles the vectors in input order.
type Pool struct {
	workerCount int
	batchSize   int
	maxAttempts int
	backoff     time.Duration
}

func NewPool(workerCount, batchSize int) *Pool {
	if workerCount < 1 {
		workerCount = 1
	}
	if batchSize < 1 {
		batchSize = 1
	}
	return &Pool{
		workerCount: workerCount,
		batchSize:   batchSize,
		maxAttempts: 3,
		backoff:     time.Second,
	}
}

type job struct {
	index int
	start int
	texts []string
}

type result struct {
	job  job
	vecs [][]float32
	err  error
}

// Embed splits texts into batches and runs them through embed. The first
// batch that fails after all retries cancels the rest.
func (p *Pool) Embed(ctx context.Context, texts []string, embed EmbedFunc) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var jobs []job
	for start := 0; start < len(texts); start += p.batchSize {
		end := min(start+p.batchSize, len(texts))
		jobs = append(jobs, job{index: len(jobs), start: start, texts: texts[start:end]})
	}

	jobChan := make(chan job)
	results := make(chan result, len(jobs))

	var wg sync.WaitGroup
	for i := 0; i < min(p.workerCount, len(jobs)); i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := range jobChan {
				vecs, err := p.process(ctx, id, j, embed)
				results <- result{job: j, vecs: vecs, err: err}
			}
		}(i)
	}

	go func() {
		defer close(jobChan)
		for _, j := range jobs {
			select {
			case jobChan <- j:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	out := make([][]float32, len(texts))
	var firstErr error
	done := 0
	for r := range results {
		if r.err != nil {
			if firstErr == nil {
				firstErr = r.err
				cancel()
			}
			continue
		}
		copy(out[r.job.start:], r.vecs)
		done++
	}

	if firstErr != nil {
		return nil, firstErr
	}
	if done != len(jobs) {
		return nil, fmt.Errorf("embedding interrupted: %w", ctx.Err())
	}
	return out, nil
}

func (p *Pool) process(ctx context.Context, workerID int, j job, embed EmbedFunc) ([][]float32, error) {
	var lastErr error
	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		vecs, err := embed(ctx, j.texts)
		if err == nil && len(vecs) != len(j.texts) {
			err = fmt.Errorf("expected %d vectors, got %d", len(j.texts), len(vecs))
		}
		if err == nil {
			return vecs, nil
		}
		lastErr = err

		if attempt == p.maxAttempts {
			break
		}
		wait := p.backoff * time.Duration(1<<uint(attempt-1))
		log.Printf("Worker %d: batch %d failed (attempt %d): %v, retrying in %s", workerID, j.index, attempt, err, wait)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}
	return nil, fmt.Errorf("batch %d failed permanently: %w", j.index, lastErr)
}
