package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/salesops-cli/internal/channel"
	"github.com/sells-group/salesops-cli/internal/export"
	"github.com/sells-group/salesops-cli/internal/runner"
)

var (
	runProfile string
	runInputs  []string
	runOutput  string
	runFormat  string
	runLoad    bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Process one or more export files with a profile",
	Long: `Processes each --input file as its own batch. Accepted batches are written
to --output (a file for a single input, a directory for several) and, with
--load, copied into Postgres. A batch with transactions lacking a channel is
rejected and the command exits non-zero listing every unresolved branch.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		mode := "run"
		if runLoad {
			mode = "load"
		}
		if err := cfg.Validate(mode); err != nil {
			return err
		}
		if len(runInputs) == 0 {
			return eris.New("at least one --input is required")
		}

		var format export.Format
		if runFormat != "" {
			f, err := export.ParseFormat(runFormat)
			if err != nil {
				return err
			}
			format = f
		}

		env, err := initEnv(cmd.Context(), runLoad)
		if err != nil {
			return err
		}
		defer env.Close()

		results, err := processInputs(cmd.Context(), env.Runner, runProfile, runInputs, cfg.Batch.MaxConcurrentFiles)
		if err != nil {
			return err
		}

		rejected := 0
		for _, r := range results {
			if r.err != nil {
				rejected++
				reportFailure(os.Stderr, r)
				continue
			}
			path := outputPath(runOutput, r.input, len(results) > 1, format)
			if err := writeResult(path, format, r.res); err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "%s: %d transactions, run %s\n", filepath.Base(r.input), r.res.Dataset.Len(), r.res.Run.ID)
		}

		if rejected > 0 {
			return eris.Errorf("%d of %d batches not accepted", rejected, len(results))
		}
		return nil
	},
}

type inputResult struct {
	input string
	res   *runner.Result
	err   error
}

// processInputs runs each input as a separate batch, at most limit at a time.
// Batch failures are collected per input; only context cancellation aborts.
func processInputs(ctx context.Context, r *runner.Runner, profile string, inputs []string, limit int) ([]inputResult, error) {
	results := make([]inputResult, len(inputs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(limit, 1))

	for i, in := range inputs {
		g.Go(func() error {
			res, err := r.ProcessFile(gctx, profile, in)
			results[i] = inputResult{input: in, res: res, err: err}
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "run")
	}
	return results, nil
}

func reportFailure(w io.Writer, r inputResult) {
	name := filepath.Base(r.input)
	var ue *channel.UnresolvedError
	if errors.As(r.err, &ue) {
		fmt.Fprintf(w, "%s: rejected, %d transactions without channel\n", name, ue.Count)
		for _, b := range ue.Branches {
			if b == "" {
				b = "(blank)"
			}
			fmt.Fprintf(w, "  unresolved branch: %s\n", b)
		}
		return
	}
	fmt.Fprintf(w, "%s: %v\n", name, r.err)
}

// outputPath picks where an accepted batch is written. With several inputs
// output is a directory and each result keeps its input's base name.
func outputPath(output, input string, multi bool, format export.Format) string {
	ext := ".csv"
	if format != "" {
		ext = "." + string(format)
	}
	base := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input)) + "_procesado"

	switch {
	case output == "" || output == "-":
		if multi {
			return filepath.Join(filepath.Dir(input), base+ext)
		}
		return "-"
	case multi:
		return filepath.Join(output, base+ext)
	default:
		return output
	}
}

func writeResult(path string, format export.Format, res *runner.Result) error {
	if path == "-" {
		if format == "" {
			format = export.FormatCSV
		}
		return export.Write(os.Stdout, format, res.Dataset, export.Options{})
	}
	if format == "" {
		format = export.FormatFromPath(path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrapf(err, "create output dir for %s", path)
	}
	if err := export.WriteFile(path, format, res.Dataset, export.Options{}); err != nil {
		return err
	}
	zap.L().Info("wrote dataset", zap.String("path", path), zap.String("run_id", res.Run.ID))
	return nil
}

func init() {
	runCmd.Flags().StringVarP(&runProfile, "profile", "p", "ventas", "report profile name")
	runCmd.Flags().StringArrayVarP(&runInputs, "input", "i", nil, "export file to process (repeatable)")
	runCmd.Flags().StringVarP(&runOutput, "output", "o", "", "output file, or directory when several inputs are given (default stdout)")
	runCmd.Flags().StringVar(&runFormat, "format", "", "output format: csv, xlsx or json (default from output extension)")
	runCmd.Flags().BoolVar(&runLoad, "load", false, "bulk load accepted batches into Postgres")
	rootCmd.AddCommand(runCmd)
}
