package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"duview/internal/config"
	"duview/internal/logging"
	"duview/internal/scanner"
	"duview/internal/tree"
	ui "duview/internal/tui"
	"duview/internal/view"
	"duview/pkg/utils"
)

type multiFlag []string

func (m *multiFlag) String() string     { return fmt.Sprint([]string(*m)) }
func (m *multiFlag) Set(v string) error { *m = append(*m, v); return nil }

func main() {
	var (
		root        string
		jsonOut     bool
		concurrency int
		useTUI      bool
		dryRun      bool
		excludes    multiFlag
		followLinks bool
		stayOnFS    bool
		format      string
		configPath  string
		logFile     string
		logLevel    string
		logFormat   string
	)

	flag.StringVar(&root, "path", ".", "Root path to scan (positional arguments add more roots)")
	flag.StringVar(&root, "p", ".", "Alias of --path")
	flag.BoolVar(&jsonOut, "json", false, "Output JSON instead of table (implies --tui=false)")
	flag.IntVar(&concurrency, "concurrency", 0, "Directories read at once (0 = number of CPUs)")
	flag.IntVar(&concurrency, "c", 0, "Alias of --concurrency")
	flag.BoolVar(&useTUI, "tui", true, "Run interactive TUI (default)")
	flag.BoolVar(&useTUI, "t", true, "Alias of --tui")
	flag.BoolVar(&dryRun, "dry-run", false, "Do not delete anything; simulate deletion in TUI")
	flag.BoolVar(&dryRun, "d", false, "Alias of --dry-run")
	flag.Var(&excludes, "exclude", "Glob pattern to exclude (can repeat). Matches full path or basename.")
	flag.Var(&excludes, "x", "Alias of --exclude")
	flag.BoolVar(&followLinks, "follow-symlinks", false, "Follow symlinks and count their targets")
	flag.BoolVar(&followLinks, "L", false, "Alias of --follow-symlinks")
	flag.BoolVar(&stayOnFS, "stay-on-filesystem", false, "Do not descend into directories on other filesystems")
	flag.BoolVar(&stayOnFS, "s", false, "Alias of --stay-on-filesystem")
	flag.StringVar(&format, "format", "metric", "Byte format: metric, binary or bytes")
	flag.StringVar(&format, "f", "metric", "Alias of --format")
	flag.StringVar(&configPath, "config", "", "Path to a JSON config file")
	flag.StringVar(&logFile, "log-file", "", "Write logs to this file (disabled by default)")
	flag.StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	flag.StringVar(&logFormat, "log-format", "json", "Log encoding: json or console")
	flag.Parse()

	roots, err := resolveRoots(root, flag.Args())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to resolve path: %v\n", err)
		os.Exit(2)
	}

	cfg := config.Default()
	if path, ok, err := config.ResolvePath(roots[0], configPath); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(2)
	} else if ok {
		if cfg, err = config.Load(path); err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(2)
		}
	}

	// Flags given on the command line win over the config file.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "concurrency", "c":
			cfg.Concurrency = concurrency
		case "dry-run", "d":
			cfg.DryRun = dryRun
		case "exclude", "x":
			cfg.Excludes = append(cfg.Excludes, excludes...)
		case "follow-symlinks", "L":
			cfg.FollowSymlinks = followLinks
		case "stay-on-filesystem", "s":
			cfg.CrossFilesystems = !stayOnFS
		case "format", "f":
			cfg.Format = format
		case "log-file":
			cfg.LogFile = logFile
		case "log-level":
			cfg.LogLevel = logLevel
		case "log-format":
			cfg.LogFormat = logFormat
		}
	})
	cfg, err = config.Normalize(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(2)
	}

	log, err := logging.New(logging.Config{
		Level:      cfg.LogLevel,
		Format:     strings.ToLower(cfg.LogFormat),
		OutputPath: cfg.LogFile,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open log: %v\n", err)
		os.Exit(2)
	}
	defer func() { _ = log.Sync() }()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	opts := scanner.Options{
		Roots:            roots,
		Concurrency:      cfg.Concurrency,
		FollowSymlink:    cfg.FollowSymlinks,
		CrossFilesystems: cfg.CrossFilesystems,
		Excludes:         cfg.Excludes,
	}
	log.Info("starting", zap.Strings("roots", roots), zap.Bool("tui", useTUI && !jsonOut))

	var res scanner.WalkResult
	if useTUI && !jsonOut {
		res, err = ui.Run(ctx, opts, ui.Config{
			Format:            cfg.ByteFormat(),
			DryRun:            cfg.DryRun,
			DeleteConcurrency: cfg.Concurrency,
			Logger:            log,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "tui error: %v\n", err)
			os.Exit(1)
		}
	} else {
		res, err = report(ctx, opts, cfg.ByteFormat(), jsonOut, log)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(1)
		}
	}

	if res.NumErrors > 0 {
		fmt.Fprintf(os.Stderr, "encountered %d i/o errors\n", res.NumErrors)
		_ = log.Sync()
		os.Exit(1)
	}
}

func resolveRoots(root string, args []string) ([]string, error) {
	paths := args
	if len(paths) == 0 {
		paths = []string{root}
	}
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, err
		}
		out = append(out, abs)
	}
	return out, nil
}

type jsonEntry struct {
	Name    string    `json:"name"`
	Path    string    `json:"path"`
	Kind    string    `json:"kind"`
	Size    int64     `json:"size"`
	Count   int64     `json:"count"`
	ModTime time.Time `json:"modTime"`
	IOError bool      `json:"ioError,omitempty"`
}

// report walks opts.Roots to completion and prints the top-level entries.
func report(ctx context.Context, opts scanner.Options, bf utils.ByteFormat, jsonOut bool, log *zap.Logger) (scanner.WalkResult, error) {
	start := time.Now()
	rootName := ""
	if len(opts.Roots) == 1 {
		rootName = opts.Roots[0]
	}
	t := tree.New(rootName)
	w := scanner.NewWalker(t, opts, log.Named("scanner"))
	res, err := w.Walk(ctx, t.Root(), opts.Roots)
	if err != nil {
		return res, fmt.Errorf("scan: %w", err)
	}
	entries := view.SortedEntries(t, t.Root(), view.SizeDescending, nil)
	total, _ := t.Entry(t.Root())

	if jsonOut {
		items := make([]jsonEntry, 0, len(entries))
		for _, e := range entries {
			items = append(items, jsonEntry{
				Name: e.Name, Path: e.Path, Kind: e.Kind.String(),
				Size: e.Size, Count: e.Count, ModTime: e.ModTime, IOError: e.IOError,
			})
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		payload := struct {
			Roots     []string    `json:"roots"`
			TotalSize int64       `json:"totalSize"`
			Entries   []jsonEntry `json:"entries"`
			IOErrors  int64       `json:"ioErrors"`
			Duration  string      `json:"duration"`
		}{Roots: opts.Roots, TotalSize: total.Aggregate, Entries: items, IOErrors: res.NumErrors, Duration: time.Since(start).String()}
		if err := enc.Encode(payload); err != nil {
			return res, fmt.Errorf("failed to write json: %w", err)
		}
		return res, nil
	}

	for _, e := range entries {
		name := e.Name
		if e.IsDir() {
			name += "/"
		}
		if e.IOError {
			name += "  (i/o error)"
		}
		fmt.Printf("%12s  %5.1f%%  %s\n", bf.Format(e.Size), e.Percentage, name)
	}
	fmt.Println("----------------------------------------------")
	fmt.Printf("%12s  total, %s entries\n", bf.Format(total.Aggregate), utils.HumanizeCount(total.Count))
	fmt.Printf("Duration: %s\n", time.Since(start).Round(time.Millisecond))
	return res, nil
}
