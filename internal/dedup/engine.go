package dedup

import (
	"context"
	"io"
	"time"

	"github.com/CodeMonkeyCybersecurity/anew/internal/config"
	"github.com/CodeMonkeyCybersecurity/anew/internal/logger"
)

// Engine ties the seed phase to the stream phase for one run.
type Engine struct {
	cfg    config.DedupConfig
	log    *logger.Logger
	set    Set
	seed   Seed
	target *Target
}

// New runs the seed phase: it loads cfg.File into a fresh Set and, unless
// cfg.DryRun is set, opens it for append. With no file configured the engine
// is a pure filter. Seed read and target open failures are returned as
// *IOError before any input is consumed. The engine logs through the logger
// carried by ctx.
func New(ctx context.Context, cfg config.DedupConfig) (*Engine, error) {
	log := logger.FromContext(ctx).WithComponent("dedup")

	set, err := NewSet(cfg.Hash)
	if err != nil {
		return nil, err
	}

	e := &Engine{cfg: cfg, log: log, set: set}
	if cfg.File == "" {
		return e, nil
	}

	seedLog := log.WithFile(cfg.File)
	start := time.Now()
	ctx, span := seedLog.StartOperation(ctx, "dedup.seed", "dry_run", cfg.DryRun)

	e.seed, err = LoadSeed(cfg.File, set)
	if err == nil && !cfg.DryRun {
		e.target, err = OpenTarget(e.seed)
	}

	seedLog.FinishOperation(ctx, span, "dedup.seed", start, err,
		"exists", e.seed.Exists,
		"bytes", e.seed.Size,
		"lines", e.seed.Lines,
		"distinct", set.Len(),
		"terminator_added", e.target != nil && e.seed.NeedsTerminator(),
	)
	if err != nil {
		return nil, err
	}
	return e, nil
}

// Seed returns what the seed phase found.
func (e *Engine) Seed() Seed {
	return e.seed
}

// Appending reports whether new lines are written to the target file.
func (e *Engine) Appending() bool {
	return e.target != nil
}

// Run streams in through the engine, echoing new lines to out unless the
// config is quiet.
func (e *Engine) Run(ctx context.Context, in io.Reader, out io.Writer) (Stats, error) {
	var file io.Writer
	if e.target != nil {
		file = e.target
	}
	if e.cfg.Quiet {
		out = nil
	}

	start := time.Now()
	ctx, span := e.log.StartOperation(ctx, "dedup.stream")

	stats, err := NewProcessor(e.set, file, out, e.log).Run(in)

	e.log.FinishOperation(ctx, span, "dedup.stream", start, err,
		"lines_read", stats.Read,
		"lines_new", stats.New,
		"lines_duplicate", stats.Duplicate,
		"output_closed", stats.OutputClosed,
	)
	return stats, err
}

// Close releases the target file, if one was opened.
func (e *Engine) Close() error {
	if e.target == nil {
		return nil
	}
	err := e.target.Close()
	e.target = nil
	return err
}
