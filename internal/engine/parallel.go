package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/converge-sh/converge/internal/ir"
)

// runParallel converges mutually unordered resources concurrently, bounded
// by e.Parallelism. A resource starts only when every ordering dependency
// (require and incoming notify edges) has reached a terminal state, so the
// outcome set is identical to a sequential run for the same declaration.
func (e *Executor) runParallel(ctx context.Context, run *runState) error {
	terminal := make(map[ir.Ref]bool)
	var mu sync.Mutex
	cond := sync.NewCond(&mu)
	var cancelled error

	sem := make(chan struct{}, e.Parallelism)
	var wg sync.WaitGroup

	// ordering deps restricted to selected resources; a filtered-out notify
	// source cannot hold its target back.
	deps := make(map[ir.Ref][]ir.Ref)
	for _, ref := range run.graph.Order() {
		if !run.selected(ref) {
			continue
		}
		for _, dep := range run.graph.ordering[ref] {
			if run.selected(dep) {
				deps[ref] = append(deps[ref], dep)
			}
		}
	}

	for _, ref := range run.graph.Order() {
		if !run.selected(ref) {
			continue
		}
		wg.Add(1)
		go func(ref ir.Ref) {
			defer wg.Done()

			mu.Lock()
			for {
				if cancelled != nil {
					mu.Unlock()
					return
				}
				ready := true
				for _, dep := range deps[ref] {
					if !terminal[dep] {
						ready = false
						break
					}
				}
				if ready {
					break
				}
				cond.Wait()
			}
			mu.Unlock()

			if err := ctx.Err(); err != nil {
				mu.Lock()
				if cancelled == nil {
					cancelled = fmt.Errorf("run cancelled: %w", err)
				}
				mu.Unlock()
				cond.Broadcast()
				return
			}

			sem <- struct{}{}
			e.converge(ctx, run, ref)
			<-sem

			mu.Lock()
			terminal[ref] = true
			mu.Unlock()
			cond.Broadcast()
		}(ref)
	}

	wg.Wait()

	if cancelled != nil {
		return cancelled
	}
	return nil
}
