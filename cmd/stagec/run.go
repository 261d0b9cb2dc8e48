package main

import (
	"context"
	"fmt"
	"io"
	"runtime"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"staged/internal/capture"
	"staged/internal/diagfmt"
	"staged/internal/observ"
	"staged/internal/stage"
	"staged/internal/ui"
)

var (
	runJobs       int
	runRepeat     int
	runDiagFormat string
	runUI         string
)

func init() {
	runCmd.Flags().IntVar(&runJobs, "jobs", runtime.NumCPU(), "recordings replayed in parallel")
	runCmd.Flags().IntVar(&runRepeat, "repeat", 1, "replay each recording this many times")
	runCmd.Flags().StringVar(&runUI, "ui", "off", "progress UI (auto|on|off)")
	runCmd.Flags().StringVar(&runDiagFormat, "diag-format", "pretty", "diagnostics format for failed replays (pretty|json)")
}

var runCmd = &cobra.Command{
	Use:   "run <file.mp>...",
	Short: "Replay recordings through the stage engine",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if runRepeat < 1 {
			return fmt.Errorf("--repeat must be positive, got %d", runRepeat)
		}
		format := strings.ToLower(runDiagFormat)
		if format != "pretty" && format != "json" {
			return fmt.Errorf("unsupported --diag-format %q (must be pretty or json)", runDiagFormat)
		}
		showTimings, err := cmd.Root().PersistentFlags().GetBool("timings")
		if err != nil {
			return fmt.Errorf("failed to get timings flag: %w", err)
		}

		engine, err := stage.Standard(currentConfig().Setup())
		if err != nil {
			return err
		}
		defer engine.Close(context.WithoutCancel(cmd.Context()))

		mode, err := readToggle("ui", runUI)
		if err != nil {
			return err
		}
		var reports []replayReport
		if enabled(mode) {
			reports, err = replayWithUI(cmd.Context(), engine, args, runJobs, runRepeat)
		} else {
			reports, err = replayAll(cmd.Context(), engine, args, runJobs, runRepeat, ui.NopSink{})
		}
		out := cmd.OutOrStdout()
		for _, r := range reports {
			if perr := printReplay(out, r, format, showTimings); perr != nil {
				return perr
			}
		}
		if err != nil {
			return err
		}
		if showTimings {
			printCacheTable(out, engine)
		}
		return nil
	},
}

type replayReport struct {
	path     string
	domain   string
	outcomes []capture.Outcome
	timer    *observ.Timer
	err      error
}

// replayAll replays every path repeat times. Reports keep the order of paths;
// the first failure is returned after all replays finish.
func replayAll(ctx context.Context, engine *stage.Engine, paths []string, jobs, repeat int, sink ui.Sink) ([]replayReport, error) {
	for _, path := range paths {
		sink.Emit(ui.Event{File: path, Status: ui.StatusQueued})
	}
	reports := make([]replayReport, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	if jobs > 0 {
		g.SetLimit(jobs)
	}
	for i, path := range paths {
		g.Go(func() error {
			r := replayOne(gctx, engine, path, repeat, sink)
			reports[i] = r
			if r.err != nil {
				sink.Emit(ui.Event{File: path, Status: ui.StatusError, Err: r.err.Error()})
				return fmt.Errorf("%s: %w", path, r.err)
			}
			sink.Emit(ui.Event{File: path, Status: ui.StatusDone})
			return nil
		})
	}
	return reports, g.Wait()
}

func replayOne(ctx context.Context, engine *stage.Engine, path string, repeat int, sink ui.Sink) replayReport {
	r := replayReport{path: path, timer: observ.NewTimer()}
	sink.Emit(ui.Event{File: path, Stage: ui.StageLoad, Status: ui.StatusWorking})
	rec, err := readRecording(path)
	if err != nil {
		r.err = err
		return r
	}
	r.domain = rec.Domain
	for pass := 1; pass <= repeat; pass++ {
		sink.Emit(ui.Event{File: path, Stage: ui.StageCompile, Status: ui.StatusWorking, Pass: pass, Passes: repeat})
		compiled, err := capture.Compile(ctx, engine, rec, builtins, r.timer)
		if err != nil {
			r.err = err
			return r
		}
		sink.Emit(ui.Event{File: path, Stage: ui.StageEval, Status: ui.StatusWorking, Pass: pass, Passes: repeat})
		if r.outcomes, r.err = capture.Evaluate(compiled, rec, builtins, r.timer); r.err != nil {
			return r
		}
	}
	return r
}

func printReplay(out io.Writer, r replayReport, format string, showTimings bool) error {
	if r.path == "" {
		return nil
	}
	if r.err != nil {
		fmt.Fprintf(out, "%s %s\n", color.RedString("fail"), r.path)
		bag := diagfmt.Collect(r.err, maxDiagnostics)
		switch {
		case bag == nil:
			fmt.Fprintf(out, "  %v\n", r.err)
		case format == "json":
			return diagfmt.JSON(out, bag, diagfmt.JSONOpts{PathMode: diagfmt.PathModeBasename, IncludeNotes: true})
		default:
			diagfmt.Pretty(out, bag, diagfmt.PrettyOpts{
				Color:     !color.NoColor,
				PathMode:  diagfmt.PathModeBasename,
				ShowNotes: true,
			})
		}
		return nil
	}
	fmt.Fprintf(out, "%s %s [%s]\n", color.GreenString("ok"), r.path, r.domain)
	for _, o := range r.outcomes {
		args := make([]string, len(o.Args))
		for i, a := range o.Args {
			args[i] = a.String()
		}
		fmt.Fprintf(out, "  run %d (%s) = %s\n", o.Run, strings.Join(args, ", "), o.Result)
	}
	if showTimings {
		fmt.Fprint(out, r.timer.Summary())
	}
	return nil
}

const maxDiagnostics = 100
