package buffer

import (
	"context"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/keeperhq/keeper/internal/core/model"
)

// Executor runs the side effect a buffer item describes.
type Executor interface {
	Execute(ctx context.Context, item model.BufferItem) error
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(ctx context.Context, item model.BufferItem) error

func (f ExecutorFunc) Execute(ctx context.Context, item model.BufferItem) error {
	return f(ctx, item)
}

// Pool drains the buffer with a fixed number of workers. On cancellation no
// new items are claimed; items already executing finish and record their
// outcome.
type Pool struct {
	Buffer   *Buffer
	Exec     Executor
	Workers  int
	PollWait time.Duration
}

func NewPool(b *Buffer, exec Executor, workers int) *Pool {
	if workers <= 0 {
		workers = 2
	}
	return &Pool{
		Buffer:   b,
		Exec:     exec,
		Workers:  workers,
		PollWait: 50 * time.Millisecond,
	}
}

// Run blocks until ctx is canceled.
func (p *Pool) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for w := 0; w < p.Workers; w++ {
		g.Go(func() error {
			return p.work(ctx)
		})
	}
	return g.Wait()
}

func (p *Pool) work(ctx context.Context) error {
	ticker := time.NewTicker(p.PollWait)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		item, ok := p.Buffer.Claim()
		if !ok {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
			}
			continue
		}

		p.runOne(ctx, item)
	}
}

func (p *Pool) runOne(ctx context.Context, item model.BufferItem) {
	if err := p.Exec.Execute(ctx, item); err != nil {
		log.Printf("buffer item %s (%s) attempt %d failed: %v", item.ID, item.Type, item.RetryCount+1, err)
		if ferr := p.Buffer.Fail(item.ID, err); ferr != nil {
			log.Printf("failed to record failure for %s: %v", item.ID, ferr)
		}
		return
	}
	if cerr := p.Buffer.Complete(item.ID); cerr != nil {
		log.Printf("failed to record completion for %s: %v", item.ID, cerr)
	}
}

// Drain claims and executes until the buffer has no claimable work or ctx is
// canceled. It is the synchronous path used by tests and by one-shot passes.
func (p *Pool) Drain(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		item, ok := p.Buffer.Claim()
		if !ok {
			if p.Buffer.Pending() == 0 {
				return
			}
			// Remaining items are backing off; wait out the shortest delay.
			select {
			case <-ctx.Done():
				return
			case <-time.After(p.PollWait):
			}
			continue
		}
		p.runOne(ctx, item)
	}
}
