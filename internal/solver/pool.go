package solver

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Pool bounds how many solves run at once (solver licences, CBC
// processes). A slot is held for the duration of one solve.
type Pool struct {
	sem  *semaphore.Weighted
	size int
}

// NewPool returns a pool with size slots; size < 1 is treated as 1.
func NewPool(size int) *Pool {
	if size < 1 {
		size = 1
	}
	return &Pool{sem: semaphore.NewWeighted(int64(size)), size: size}
}

func (p *Pool) Size() int { return p.size }

// Acquire blocks until a slot is free or ctx is done. The returned release
// func is safe to call more than once and must be called on every path.
func (p *Pool) Acquire(ctx context.Context) (func(), error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return func() {}, err
	}
	var once sync.Once
	return func() { once.Do(func() { p.sem.Release(1) }) }, nil
}
