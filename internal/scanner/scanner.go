package scanner

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"duview/internal/tree"
	"duview/pkg/utils"
)

// ErrAlreadyRunning is returned by Start while an earlier traversal has not
// been joined.
var ErrAlreadyRunning = errors.New("scanner: traversal already running")

var errNotDir = errors.New("scanner: not a directory")

// Options defines walking behavior.
type Options struct {
	Roots            []string // paths given by the user, absolute
	Concurrency      int      // directory readers running at once
	FollowSymlink    bool     // descend into symlinked directories and size link targets
	CrossFilesystems bool     // descend into directories on other devices
	Excludes         []string // glob patterns matched against full path and base name
}

// Stats are live traversal counters.
type Stats struct {
	EntriesTraversed int64
	IOErrors         int64
	TotalBytes       int64
	Elapsed          time.Duration
}

// WalkResult is the terminal outcome of a traversal or of the whole app.
type WalkResult struct {
	NumErrors int64
}

// Walker runs at most one Traversal at a time over a Tree.
type Walker struct {
	tree *tree.Tree
	opts Options
	log  *zap.Logger

	mu     sync.Mutex
	active *Traversal
}

// NewWalker binds a walker to t. A nil logger discards output.
func NewWalker(t *tree.Tree, opts Options, log *zap.Logger) *Walker {
	if opts.Concurrency <= 0 {
		opts.Concurrency = runtime.NumCPU()
		if opts.Concurrency < 1 {
			opts.Concurrency = 1
		}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Walker{tree: t, opts: opts, log: log}
}

// Options returns the options the walker was created with.
func (w *Walker) Options() Options { return w.opts }

// Running reports whether a traversal was started and not yet joined.
func (w *Walker) Running() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.active != nil
}

// Start clears target's children and walks roots into it on a background
// goroutine. A single directory root has its contents placed directly under
// target; otherwise every root becomes a child of target.
func (w *Walker) Start(ctx context.Context, target tree.Index, roots []string) (*Traversal, error) {
	if len(roots) == 0 {
		return nil, errors.New("scanner: no roots to walk")
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.active != nil {
		return nil, ErrAlreadyRunning
	}
	if err := w.tree.RemoveChildren(target); err != nil {
		return nil, fmt.Errorf("prepare traversal target: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	t := &Traversal{
		walker: w,
		target: target,
		cancel: cancel,
		done:   make(chan struct{}),
		start:  time.Now(),
		seen:   make(map[string]struct{}),
	}
	w.active = t
	w.log.Info("traversal started", zap.Strings("roots", roots), zap.Int("target", int(target)))
	go t.run(ctx, roots)
	return t, nil
}

// Walk runs a traversal to completion, or until ctx is cancelled.
func (w *Walker) Walk(ctx context.Context, target tree.Index, roots []string) (WalkResult, error) {
	t, err := w.Start(ctx, target, roots)
	if err != nil {
		return WalkResult{}, err
	}
	select {
	case <-ctx.Done():
		t.Cancel()
	case <-t.Done():
	}
	return t.Join(), nil
}

// Traversal is the handle of one background walk.
type Traversal struct {
	walker *Walker
	target tree.Index
	cancel context.CancelFunc
	done   chan struct{}
	start  time.Time

	entries  atomic.Int64
	ioErrors atomic.Int64
	bytes    atomic.Int64
	elapsed  atomic.Int64
	finished atomic.Bool

	joinOnce sync.Once

	seenMu sync.Mutex
	seen   map[string]struct{}
}

// Target is the node the traversal fills.
func (t *Traversal) Target() tree.Index { return t.target }

// Poll returns a snapshot of the counters without blocking.
func (t *Traversal) Poll() Stats {
	el := time.Since(t.start)
	if t.finished.Load() {
		el = time.Duration(t.elapsed.Load())
	}
	return Stats{
		EntriesTraversed: t.entries.Load(),
		IOErrors:         t.ioErrors.Load(),
		TotalBytes:       t.bytes.Load(),
		Elapsed:          el,
	}
}

// Cancel asks the worker to stop at the next entry boundary.
func (t *Traversal) Cancel() {
	if !t.finished.Load() {
		t.walker.log.Info("traversal cancelled", zap.Int("target", int(t.target)))
	}
	t.cancel()
}

// Done is closed once the worker has exited.
func (t *Traversal) Done() <-chan struct{} { return t.done }

// Join waits for the worker to exit and releases the walker for the next
// Start. It is safe to call more than once.
func (t *Traversal) Join() WalkResult {
	<-t.done
	t.joinOnce.Do(func() {
		t.cancel()
		w := t.walker
		w.mu.Lock()
		if w.active == t {
			w.active = nil
		}
		w.mu.Unlock()
	})
	return WalkResult{NumErrors: t.ioErrors.Load()}
}

func (t *Traversal) run(ctx context.Context, roots []string) {
	defer close(t.done)
	defer t.finish()

	g := &errgroup.Group{}
	g.SetLimit(t.walker.opts.Concurrency)

	if len(roots) == 1 {
		info, err := os.Stat(roots[0])
		switch {
		case err != nil:
			// the target itself is gone or unreadable; it stays empty and flagged
			t.ioError(roots[0], err)
			_ = t.walker.tree.SetIOError(t.target)
			return
		case info.IsDir():
			if t.target == t.walker.tree.Root() {
				_ = t.walker.tree.SetName(t.target, roots[0])
			}
			dev, _ := deviceID(info)
			t.walkDir(ctx, g, t.target, roots[0], dev)
			_ = g.Wait()
			return
		case t.target == t.walker.tree.Root():
			// a lone file is shown as the only entry of its directory
			_ = t.walker.tree.SetName(t.target, filepath.Dir(roots[0]))
			t.add(t.target, entryData(filepath.Base(roots[0]), info))
			return
		default:
			t.ioError(roots[0], errNotDir)
			_ = t.walker.tree.SetIOError(t.target)
			return
		}
	}
	for _, root := range roots {
		if ctx.Err() != nil {
			break
		}
		t.walkRoot(ctx, g, root)
	}
	_ = g.Wait()
}

func (t *Traversal) finish() {
	t.elapsed.Store(int64(time.Since(t.start)))
	t.finished.Store(true)
	s := t.Poll()
	t.walker.log.Info("traversal finished",
		zap.Int64("entries", s.EntriesTraversed),
		zap.Int64("io_errors", s.IOErrors),
		zap.Int64("bytes", s.TotalBytes),
		zap.Duration("elapsed", s.Elapsed),
	)
}

// walkRoot inserts root itself as a child of the target and descends into it.
func (t *Traversal) walkRoot(ctx context.Context, g *errgroup.Group, root string) {
	info, err := os.Stat(root)
	if err != nil {
		t.ioError(root, err)
		t.add(t.target, tree.EntryData{Name: root, Kind: tree.KindError, IOError: true})
		return
	}
	idx, ok := t.add(t.target, entryData(root, info))
	if !ok || !info.IsDir() {
		return
	}
	dev, _ := deviceID(info)
	t.walkDir(ctx, g, idx, root, dev)
}

func (t *Traversal) walkDir(ctx context.Context, g *errgroup.Group, parent tree.Index, dir string, dev uint64) {
	if ctx.Err() != nil {
		return
	}
	opts := t.walker.opts
	des, err := os.ReadDir(dir)
	if err != nil {
		// ReadDir may still hand back what it read before failing.
		t.ioError(dir, err)
		_ = t.walker.tree.SetIOError(parent)
	}
	for _, de := range des {
		if ctx.Err() != nil {
			return
		}
		p := filepath.Join(dir, de.Name())
		if utils.MatchAny(opts.Excludes, p) {
			continue
		}
		info, err := de.Info()
		if err != nil {
			t.ioError(p, err)
			t.add(parent, tree.EntryData{Name: de.Name(), Kind: tree.KindError, IOError: true})
			continue
		}

		descendPath := p
		if info.Mode()&fs.ModeSymlink != 0 && opts.FollowSymlink {
			resolved, target, err := resolveLink(p)
			if err != nil {
				t.ioError(p, err)
				t.add(parent, tree.EntryData{Name: de.Name(), Kind: tree.KindError, IOError: true})
				continue
			}
			info, descendPath = target, resolved
			if info.IsDir() && !t.firstVisit(resolved) {
				t.add(parent, tree.EntryData{Name: de.Name(), Kind: tree.KindFile, ModTime: info.ModTime()})
				continue
			}
		}

		idx, ok := t.add(parent, entryData(de.Name(), info))
		if !ok {
			// parent was removed underneath us; nothing left to fill
			return
		}
		if !info.IsDir() {
			continue
		}
		if !opts.CrossFilesystems {
			if d, ok := deviceID(info); ok && d != dev {
				continue
			}
		}
		child := idx
		job := func() error {
			t.walkDir(ctx, g, child, descendPath, dev)
			return nil
		}
		if !g.TryGo(job) {
			_ = job()
		}
	}
}

func (t *Traversal) add(parent tree.Index, data tree.EntryData) (tree.Index, bool) {
	idx, err := t.walker.tree.AddNode(data, parent)
	if err != nil {
		t.walker.log.Debug("dropping entry", zap.String("name", data.Name), zap.Error(err))
		return tree.Invalid, false
	}
	t.entries.Add(1)
	if data.Kind == tree.KindFile {
		t.bytes.Add(data.Size)
	}
	return idx, true
}

func (t *Traversal) ioError(path string, err error) {
	t.ioErrors.Add(1)
	t.walker.log.Debug("io error", zap.String("path", path), zap.Error(err))
}

func (t *Traversal) firstVisit(resolved string) bool {
	t.seenMu.Lock()
	defer t.seenMu.Unlock()
	if _, ok := t.seen[resolved]; ok {
		return false
	}
	t.seen[resolved] = struct{}{}
	return true
}

func resolveLink(p string) (string, fs.FileInfo, error) {
	resolved, err := filepath.EvalSymlinks(p)
	if err != nil {
		return "", nil, err
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return "", nil, err
	}
	return resolved, info, nil
}

func entryData(name string, info fs.FileInfo) tree.EntryData {
	d := tree.EntryData{Name: name, Kind: tree.KindFile, Size: info.Size(), ModTime: info.ModTime()}
	if info.IsDir() {
		d.Kind = tree.KindDir
		d.Size = 0
	}
	return d
}
