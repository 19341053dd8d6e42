// Package tui runs the interactive terminal front end on top of app.AppState.
package tui

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"duview/internal/app"
	"duview/internal/deleter"
	"duview/internal/scanner"
	"duview/internal/tree"
	"duview/pkg/utils"
)

const tickInterval = 100 * time.Millisecond

// Config carries the settings that are not walk options.
type Config struct {
	Format            utils.ByteFormat
	DryRun            bool
	DeleteConcurrency int
	Logger            *zap.Logger
}

// Model is the bubbletea model. It owns the tree, the walker and the state.
type Model struct {
	ctx    context.Context
	cfg    Config
	log    *zap.Logger
	tree   *tree.Tree
	walker *scanner.Walker
	state  *app.AppState

	sp           spinner.Model
	help         help.Model
	scrollOffset int

	delCh     chan tea.Msg
	delCancel context.CancelFunc

	result   scanner.WalkResult
	quitting bool
	initErr  error
}

// New builds the model for opts.Roots. Nothing is scanned until Init.
func New(ctx context.Context, opts scanner.Options, cfg Config) *Model {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	rootName := ""
	if len(opts.Roots) == 1 {
		rootName = opts.Roots[0]
	}
	t := tree.New(rootName)
	w := scanner.NewWalker(t, opts, log.Named("scanner"))

	st := app.New(ctx, t, w, log.Named("app"))
	st.Format = cfg.Format

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = spinnerStyle

	return &Model{
		ctx:    ctx,
		cfg:    cfg,
		log:    log,
		tree:   t,
		walker: w,
		state:  st,
		sp:     sp,
		help:   help.New(),
	}
}

// State exposes the state machine, mostly for tests.
func (m *Model) State() *app.AppState { return m.state }

// Result is the outcome recorded when the model quit.
func (m *Model) Result() scanner.WalkResult { return m.result }

// Run starts the program and blocks until the user quits. A failing terminal
// backend is returned as an error; scan errors are only counted.
func Run(ctx context.Context, opts scanner.Options, cfg Config) (scanner.WalkResult, error) {
	m := New(ctx, opts, cfg)
	p := tea.NewProgram(m, tea.WithAltScreen())

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			p.Quit()
		case <-stop:
		}
	}()

	_, err := p.Run()
	if !m.quitting {
		// the program ended without a quit key, e.g. ctx was cancelled
		m.result = m.state.Quit()
	}
	if err != nil {
		return m.result, fmt.Errorf("run terminal ui: %w", err)
	}
	return m.result, m.initErr
}

func tick() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg { return app.TickMsg(t) })
}

func (m *Model) Init() tea.Cmd {
	if err := m.state.Traverse(m.tree.Root()); err != nil {
		m.initErr = fmt.Errorf("start scan: %w", err)
		return tea.Quit
	}
	return tea.Batch(m.sp.Tick, tick())
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	switch msg := msg.(type) {
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.sp, cmd = m.sp.Update(msg)
		return m, cmd
	case tea.WindowSizeMsg:
		m.help.Width = msg.Width
	case app.TickMsg:
		cmds = append(cmds, tick())
	case app.DeleteProgressMsg:
		cmds = append(cmds, m.waitDeleteMsg())
	case app.DeleteDoneMsg:
		m.delCh, m.delCancel = nil, nil
	}

	out := m.state.ProcessEvent(msg)
	if out.Exit {
		if m.delCancel != nil {
			m.delCancel()
		}
		m.result, m.quitting = out.Result, true
		return m, tea.Quit
	}
	if len(out.Delete) > 0 {
		cmds = append(cmds, m.startDeletion(out.Delete))
	}
	if out.Cmd != nil {
		cmds = append(cmds, out.Cmd)
	}
	m.adjustScroll()
	return m, tea.Batch(cmds...)
}

// startDeletion removes targets on a background goroutine and streams its
// progress back as messages.
func (m *Model) startDeletion(targets []deleter.Target) tea.Cmd {
	ctx, cancel := context.WithCancel(m.ctx)
	ch := make(chan tea.Msg)
	m.delCh, m.delCancel = ch, cancel
	opts := deleter.Options{Concurrency: m.cfg.DeleteConcurrency, DryRun: m.cfg.DryRun}
	log := m.log

	go func() {
		defer close(ch)
		defer cancel()
		send := func(msg tea.Msg) bool {
			select {
			case ch <- msg:
				return true
			case <-ctx.Done():
				return false
			}
		}
		pch := make(chan deleter.Progress, 16)
		done := make(chan deleter.Summary, 1)
		go func() {
			done <- deleter.DeleteTargets(ctx, targets, opts, pch)
		}()
		for {
			select {
			case p := <-pch:
				if !send(app.DeleteProgressMsg{Progress: p}) {
					return
				}
			case sum := <-done:
				log.Info("deletion finished",
					zap.Int("succeeded", len(sum.Successes)),
					zap.Int("failed", len(sum.Failures)),
					zap.Int64("freed", sum.Freed),
					zap.Bool("dry_run", opts.DryRun),
				)
				send(app.DeleteDoneMsg{Summary: sum})
				return
			}
		}
	}()
	return m.waitDeleteMsg()
}

func (m *Model) waitDeleteMsg() tea.Cmd {
	ch := m.delCh
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		msg, ok := <-ch
		if !ok {
			return nil
		}
		return msg
	}
}
