// Package runner processes export files end to end: read, run the engine,
// optionally bulk load, and record the outcome in the ledger.
package runner

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/salesops-cli/internal/channel"
	"github.com/sells-group/salesops-cli/internal/config"
	"github.com/sells-group/salesops-cli/internal/engine"
	"github.com/sells-group/salesops-cli/internal/fetcher"
	"github.com/sells-group/salesops-cli/internal/model"
	"github.com/sells-group/salesops-cli/internal/store"
)

// Loader bulk loads an accepted dataset.
type Loader interface {
	Load(ctx context.Context, batchID string, ds *model.Dataset) (int64, error)
}

// Engines hands out an Engine per batch.
type Engines interface {
	Engine(ctx context.Context, name string) (*engine.Engine, config.Profile, error)
}

// Runner wires the engine to its collaborators. Ledger and Loader are optional.
type Runner struct {
	Engines Engines
	Ledger  store.Ledger
	Loader  Loader
}

// Result is the outcome of one batch. Dataset is nil unless the run was accepted.
type Result struct {
	Run     *model.Run
	Dataset *model.Dataset
	Loaded  int64
}

// LoadError reports a bulk load failure after the batch was accepted.
type LoadError struct {
	Err error
}

func (e *LoadError) Error() string { return "runner: load: " + e.Err.Error() }

func (e *LoadError) Unwrap() error { return e.Err }

// ProcessFile reads path with the profile's input options and processes it.
func (r *Runner) ProcessFile(ctx context.Context, profile, path string) (*Result, error) {
	e, p, err := r.Engines.Engine(ctx, profile)
	if err != nil {
		return nil, err
	}
	tbl, err := fetcher.ReadTable(ctx, path, tableOptions(p.Input))
	if err != nil {
		return r.fail(ctx, profile, path, err)
	}
	return r.process(ctx, e, profile, model.Batch{Source: path, Rows: tbl.Records()})
}

// ProcessReader processes an export streamed from rd; name selects the parser.
func (r *Runner) ProcessReader(ctx context.Context, profile, name string, rd io.Reader) (*Result, error) {
	e, p, err := r.Engines.Engine(ctx, profile)
	if err != nil {
		return nil, err
	}
	tbl, err := fetcher.ReadTableFrom(ctx, rd, name, tableOptions(p.Input))
	if err != nil {
		return r.fail(ctx, profile, name, err)
	}
	return r.process(ctx, e, profile, model.Batch{Source: name, Rows: tbl.Records()})
}

// Process runs an already-built batch.
func (r *Runner) Process(ctx context.Context, profile string, batch model.Batch) (*Result, error) {
	e, _, err := r.Engines.Engine(ctx, profile)
	if err != nil {
		return nil, err
	}
	return r.process(ctx, e, profile, batch)
}

func tableOptions(in config.InputConfig) fetcher.TableOptions {
	opts := fetcher.TableOptions{Sheet: in.Sheet, Charset: in.Charset}
	if d := []rune(in.Delimiter); len(d) > 0 {
		opts.Delimiter = d[0]
	}
	return opts
}

func (r *Runner) process(ctx context.Context, e *engine.Engine, profile string, batch model.Batch) (*Result, error) {
	run := &model.Run{
		ID:        uuid.NewString(),
		Profile:   profile,
		Source:    filepath.Base(batch.Source),
		Rows:      len(batch.Rows),
		CreatedAt: time.Now().UTC(),
	}
	res := &Result{Run: run}

	ds, err := e.Run(batch)
	var ue *channel.UnresolvedError
	switch {
	case errors.As(err, &ue):
		run.Status = model.RunStatusRejected
		run.Transactions = ue.Count
		run.Unresolved = ue.Branches
		run.Error = ue.Error()
		r.record(ctx, run)
		return res, err
	case err != nil:
		run.Status = model.RunStatusFailed
		run.Error = err.Error()
		r.record(ctx, run)
		return res, err
	}

	run.Status = model.RunStatusAccepted
	run.Transactions = ds.Len()
	res.Dataset = ds

	if r.Loader != nil {
		n, err := r.Loader.Load(ctx, run.ID, ds)
		if err != nil {
			run.Status = model.RunStatusFailed
			run.Error = err.Error()
			r.record(ctx, run)
			return res, &LoadError{Err: err}
		}
		res.Loaded = n
	}

	r.record(ctx, run)
	return res, nil
}

func (r *Runner) fail(ctx context.Context, profile, source string, err error) (*Result, error) {
	run := &model.Run{
		ID:        uuid.NewString(),
		Profile:   profile,
		Source:    filepath.Base(source),
		Status:    model.RunStatusFailed,
		Error:     err.Error(),
		CreatedAt: time.Now().UTC(),
	}
	r.record(ctx, run)
	return &Result{Run: run}, eris.Wrapf(err, "runner: read %s", filepath.Base(source))
}

func (r *Runner) record(ctx context.Context, run *model.Run) {
	if r.Ledger == nil {
		return
	}
	if err := r.Ledger.RecordRun(ctx, run); err != nil {
		zap.L().Error("ledger: record run failed",
			zap.String("run_id", run.ID),
			zap.String("status", string(run.Status)),
			zap.Error(err),
		)
	}
}
