package main

import (
	"context"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"staged/internal/expr"
	"staged/internal/isocache"
	"staged/internal/lang/seq"
	"staged/internal/prof"
	"staged/internal/stage"
	"staged/internal/synth"
	"staged/internal/value"
)

var (
	benchSites   int
	benchJobs    int
	benchLen     int
	benchMetrics bool
	benchProf    prof.Paths
)

func init() {
	benchCmd.Flags().IntVar(&benchSites, "sites", 64, "call sites to stage per shape")
	benchCmd.Flags().IntVar(&benchJobs, "jobs", 8, "concurrent compilations")
	benchCmd.Flags().IntVar(&benchLen, "len", 1000, "input list length")
	benchCmd.Flags().BoolVar(&benchMetrics, "metrics", false, "dump collected prometheus metrics")
	benchCmd.Flags().StringVar(&benchProf.CPU, "cpu-profile", "", "write a CPU profile to this file")
	benchCmd.Flags().StringVar(&benchProf.Mem, "mem-profile", "", "write a heap profile to this file")
	benchCmd.Flags().StringVar(&benchProf.Trace, "runtime-trace", "", "write a runtime trace to this file")
}

// benchShape builds one list program; every site of a shape is isomorphic.
type benchShape struct {
	name   string
	domain string
	build  func(b *seq.Builder) expr.NodeID
}

var benchShapes = []benchShape{
	{"sum.map.filter", seq.ReduceDomain, func(b *seq.Builder) expr.NodeID {
		return b.Sum(b.Map(b.Filter(b.Input("xs"), b.Fn("even")), b.Fn("square")))
	}},
	{"count.filter", seq.ReduceDomain, func(b *seq.Builder) expr.NodeID {
		return b.Count(b.Filter(b.Input("xs"), b.Fn("odd")))
	}},
	{"map.map", seq.Domain, func(b *seq.Builder) expr.NodeID {
		return b.Map(b.Map(b.Input("xs"), b.Fn("inc")), b.Fn("double"))
	}},
}

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Stage many isomorphic call sites concurrently and report cache reuse",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if benchSites < 1 || benchLen < 0 {
			return fmt.Errorf("--sites must be positive and --len non-negative")
		}
		metrics := isocache.NewMetrics()
		registry := prometheus.NewRegistry()
		registry.MustRegister(metrics.PrometheusCollectors()...)

		setup := currentConfig().Setup()
		setup.Metrics = metrics
		interp := synth.NewInterp()
		setup.Synth = interp
		engine, err := stage.Standard(setup)
		if err != nil {
			return err
		}
		defer engine.Close(context.WithoutCancel(cmd.Context()))

		xs := make([]int64, benchLen)
		for i := range xs {
			xs[i] = int64(i)
		}
		input := value.Object(value.Longs(xs...))

		session, err := prof.Start(benchProf)
		if err != nil {
			return fmt.Errorf("failed to start profiling: %w", err)
		}
		start := time.Now()
		results, err := benchRun(cmd.Context(), engine, input, benchSites, benchJobs)
		elapsed := time.Since(start)
		if stopErr := session.Stop(); stopErr != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "profiling: %v\n", stopErr)
		}
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		for i, s := range benchShapes {
			fmt.Fprintf(out, "%-16s %s\n", s.name, results[i])
		}
		fmt.Fprintf(out, "%d sites in %s, %s units synthesized\n",
			benchSites*len(benchShapes), elapsed.Round(time.Microsecond),
			color.New(color.Bold).Sprint(interp.Synthesized()))
		printCacheTable(out, engine)
		if benchMetrics {
			return dumpMetrics(out, registry)
		}
		return nil
	},
}

// benchRun compiles and evaluates sites copies of every shape. All sites of a
// shape must agree on the result.
func benchRun(ctx context.Context, engine *stage.Engine, input value.Value, sites, jobs int) ([]value.Value, error) {
	results := make([][]value.Value, len(benchShapes))
	for i := range results {
		results[i] = make([]value.Value, sites)
	}
	g, gctx := errgroup.WithContext(ctx)
	if jobs > 0 {
		g.SetLimit(jobs)
	}
	for site := range sites {
		for i, shape := range benchShapes {
			g.Go(func() error {
				b := seq.NewBuilder()
				root := shape.build(b)
				c, err := engine.Compile(gctx, shape.domain, b.G, root, nil)
				if err != nil {
					return fmt.Errorf("%s site %d: %w", shape.name, site, err)
				}
				res, err := c.Eval(input)
				if err != nil {
					return fmt.Errorf("%s site %d: %w", shape.name, site, err)
				}
				results[i][site] = res
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]value.Value, len(benchShapes))
	for i, rs := range results {
		want := rs[0].String()
		for site, r := range rs {
			if r.String() != want {
				return nil, fmt.Errorf("%s: site %d = %s, site 0 = %s", benchShapes[i].name, site, r, want)
			}
		}
		out[i] = summarize(rs[0])
	}
	return out, nil
}

// summarize keeps long list results readable.
func summarize(v value.Value) value.Value {
	if vs, ok := v.AsObject().([]value.Value); ok && len(vs) > 8 {
		return value.Object(fmt.Sprintf("%s ... (%d items)", strings.TrimSuffix(value.FormatList(vs[:8]), "]"), len(vs)))
	}
	return v
}

func dumpMetrics(out io.Writer, registry *prometheus.Registry) error {
	families, err := registry.Gather()
	if err != nil {
		return err
	}
	var lines []string
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			var labels []string
			for _, lp := range m.GetLabel() {
				labels = append(labels, lp.GetName()+"="+lp.GetValue())
			}
			v := m.GetCounter().GetValue()
			if m.GetGauge() != nil {
				v = m.GetGauge().GetValue()
			}
			lines = append(lines, fmt.Sprintf("%s{%s} %g", mf.GetName(), strings.Join(labels, ","), v))
		}
	}
	slices.Sort(lines)
	for _, l := range lines {
		fmt.Fprintln(out, l)
	}
	return nil
}
