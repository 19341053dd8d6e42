// Package deleter removes marked entries from disk and reports a separate
// outcome for every path.
package deleter

import (
	"context"
	"os"
	"sync"

	"golang.org/x/sync/errgroup"

	"duview/internal/tree"
)

// Target is one marked entry to remove from disk.
type Target struct {
	Index tree.Index
	Path  string
	Size  int64
}

type Progress struct {
	Completed int
	Total     int
	Path      string
	Err       error
}

type Failure struct {
	Target Target
	Err    error
}

// Summary lists outcomes in the order the targets were given.
type Summary struct {
	Successes []Target
	Failures  []Failure
	Freed     int64
}

// Options tunes a deletion run. Remove defaults to os.RemoveAll.
type Options struct {
	Concurrency int
	DryRun      bool
	Remove      func(path string) error
}

// DeleteTargets removes every target, each independently of the others, with
// at most opts.Concurrency removals in flight. A Progress update is offered on
// progress (if non-nil) as each target finishes; a full channel drops it.
// Targets not yet started when ctx is cancelled fail with ctx.Err().
func DeleteTargets(ctx context.Context, targets []Target, opts Options, progress chan<- Progress) Summary {
	if ctx == nil {
		ctx = context.Background()
	}
	remove := opts.Remove
	if remove == nil {
		remove = os.RemoveAll
	}
	limit := opts.Concurrency
	if limit < 1 {
		limit = 1
	}

	errs := make([]error, len(targets))
	var (
		mu        sync.Mutex
		completed int
	)
	finish := func(i int, err error) {
		errs[i] = err
		mu.Lock()
		completed++
		p := Progress{Completed: completed, Total: len(targets), Path: targets[i].Path, Err: err}
		mu.Unlock()
		if progress != nil {
			select {
			case progress <- p:
			default:
			}
		}
	}

	g := &errgroup.Group{}
	g.SetLimit(limit)
	for i := range targets {
		i := i
		if err := ctx.Err(); err != nil {
			finish(i, err)
			continue
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				finish(i, err)
				return nil
			}
			var err error
			if !opts.DryRun {
				err = remove(targets[i].Path)
			}
			finish(i, err)
			return nil
		})
	}
	_ = g.Wait()

	var sum Summary
	for i, t := range targets {
		if errs[i] != nil {
			sum.Failures = append(sum.Failures, Failure{Target: t, Err: errs[i]})
			continue
		}
		sum.Successes = append(sum.Successes, t)
		sum.Freed += t.Size
	}
	return sum
}
