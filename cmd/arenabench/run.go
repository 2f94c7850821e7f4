package main

import (
	"flag"
	"fmt"
	"io"
	"iter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/pavanmanishd/arena/v2"
)

var (
	runCount    int
	runBatch    int
	runKind     string
	runRounds   int
	runWorkload string
	runMetrics  bool
	runConfig   arena.Config
)

func init() {
	cmd := newRunCmd()
	cmd.Flags().IntVar(&runCount, "count", 100_000, "Values to allocate per step")
	cmd.Flags().IntVar(&runBatch, "batch", 0, "Allocate values this many at a time from an iterator (0 allocates one by one)")
	cmd.Flags().StringVar(&runKind, "kind", kindTyped, "Arena kind: typed, dropless or composite")
	cmd.Flags().IntVar(&runRounds, "rounds", 1, "Times to repeat the workload, each on fresh arenas")
	cmd.Flags().StringVar(&runWorkload, "workload", "", "YAML workload file; its steps replace --kind, --count and --batch")
	cmd.Flags().BoolVar(&runMetrics, "metrics", false, "Print the arena counters in Prometheus text format after the run")
	addConfigFlags(cmd.Flags(), &runConfig)
	rootCmd.AddCommand(cmd)
}

// addConfigFlags exposes the arena.* flags of cfg on a cobra flag set.
func addConfigFlags(fs *pflag.FlagSet, cfg *arena.Config) {
	goFlags := flag.NewFlagSet("arena", flag.ContinueOnError)
	cfg.RegisterFlags(goFlags)
	fs.AddGoFlagSet(goFlags)
}

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run an allocation workload",
		Long: `The run command allocates synthetic values into fresh arenas, tears
them down and reports chunk growth, memory use and timings.

Example:
  arenabench run --kind dropless --count 1000000
  arenabench run --kind typed --batch 64 --arena.page-size 16384
  arenabench run --workload compiler.yaml --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
	return cmd
}

func runRun(out, errOut io.Writer) error {
	w := Workload{
		Arena:  runConfig,
		Rounds: runRounds,
		Steps:  []Step{{Kind: runKind, Count: runCount, Batch: runBatch}},
	}
	if runWorkload != "" {
		var err error
		if w, err = loadWorkload(runWorkload, w); err != nil {
			return err
		}
	} else if err := w.Validate(); err != nil {
		return err
	}

	logger := newLogger(errOut)
	collector := arena.NewCollector()
	results := runWorkloadSteps(w, logger, collector)

	if jsonOut {
		if err := printJSON(out, results); err != nil {
			return err
		}
	} else {
		for _, r := range results {
			printResult(out, r)
		}
	}

	if runMetrics {
		return writeMetrics(out, collector)
	}
	return nil
}

// result is the outcome of one step in one round.
type result struct {
	Kind        string             `json:"kind"`
	Round       int                `json:"round"`
	Count       int                `json:"count"`
	Batch       int                `json:"batch"`
	AllocTime   time.Duration      `json:"alloc_ns"`
	ReleaseTime time.Duration      `json:"release_ns"`
	Metrics     arena.ArenaMetrics `json:"metrics"`
	Stats       arena.Stats        `json:"stats"`
}

// runWorkloadSteps runs every step of w, w.Rounds times. Each arena is
// tracked by collector under "<kind>/<round>/<step>".
func runWorkloadSteps(w Workload, logger log.Logger, collector *arena.Collector) []result {
	results := make([]result, 0, w.Rounds*len(w.Steps))
	for round := range w.Rounds {
		for i, s := range w.Steps {
			name := fmt.Sprintf("%s/%d/%d", s.Kind, round, i)
			opts := []arena.Option{
				arena.WithConfig(w.Arena),
				arena.WithLogger(logger),
				arena.WithName(name),
			}
			r := runStep(s, opts, func(a arena.Observable) { collector.Track(name, a) })
			r.Round = round
			level.Info(logger).Log(
				"msg", "step done",
				"arena", name,
				"values", r.Count,
				"chunks", r.Metrics.NumChunks,
				"capacity", r.Metrics.Capacity,
				"alloc", r.AllocTime,
				"release", r.ReleaseTime,
			)
			results = append(results, r)
		}
	}
	return results
}

// tokenSpan is pointer-free, so it lives in raw dropless chunks.
type tokenSpan struct {
	lo, hi uint32
	file   uint32
}

// astNode points at its parent and needs a typed arena.
type astNode struct {
	id     int64
	text   string
	parent *astNode
}

type releaser interface {
	arena.Observable
	Metrics() arena.ArenaMetrics
	Release()
}

func runStep(s Step, opts []arena.Option, track func(arena.Observable)) result {
	var (
		a    releaser
		fill func()
	)
	switch s.Kind {
	case kindTyped:
		typed := arena.NewTypedArena[astNode](opts...)
		a, fill = typed, func() { fillTyped(typed, s) }
	case kindDropless:
		dropless := arena.NewDroplessArena(opts...)
		a, fill = dropless, func() { fillDropless(dropless, s) }
	case kindComposite:
		composite := arena.NewArena(opts...)
		arena.Register[astNode](composite)
		a, fill = composite, func() { fillComposite(composite, s) }
	default:
		panic(fmt.Sprintf("unknown arena kind %q", s.Kind))
	}
	track(a)

	start := time.Now()
	fill()
	allocTime := time.Since(start)
	metrics := a.Metrics()

	start = time.Now()
	a.Release()
	releaseTime := time.Since(start)

	return result{
		Kind:        s.Kind,
		Count:       s.Count,
		Batch:       s.Batch,
		AllocTime:   allocTime,
		ReleaseTime: releaseTime,
		Metrics:     metrics,
		Stats:       a.Stats(),
	}
}

func fillTyped(a *arena.TypedArena[astNode], s Step) {
	if s.Batch == 0 {
		var parent *astNode
		for i := range s.Count {
			parent = a.Alloc(newNode(i, parent))
		}
		return
	}
	for lo := 0; lo < s.Count; lo += s.Batch {
		n := min(s.Batch, s.Count-lo)
		a.AllocFromIterN(generate(lo, n, func(i int) astNode { return newNode(i, nil) }), n)
	}
}

func fillDropless(a *arena.DroplessArena, s Step) {
	if s.Batch == 0 {
		for i := range s.Count {
			arena.DroplessAlloc(a, newSpan(i))
		}
		return
	}
	for lo := 0; lo < s.Count; lo += s.Batch {
		n := min(s.Batch, s.Count-lo)
		arena.DroplessAllocFromIterN(a, generate(lo, n, newSpan), n)
	}
}

// fillComposite alternates spans and nodes, so half of the values land in
// the dropless member and half in the typed one.
func fillComposite(a *arena.Arena, s Step) {
	if s.Batch == 0 {
		var parent *astNode
		for i := range s.Count {
			if i%2 == 0 {
				arena.Alloc(a, newSpan(i))
			} else {
				parent = arena.Alloc(a, newNode(i, parent))
			}
		}
		return
	}
	for lo := 0; lo < s.Count; lo += s.Batch {
		n := min(s.Batch, s.Count-lo)
		spans := (n + 1) / 2
		arena.AllocFromIterN(a, generate(lo, spans, newSpan), spans)
		if nodes := n - spans; nodes > 0 {
			arena.AllocFromIterN(a, generate(lo+spans, nodes, func(i int) astNode { return newNode(i, nil) }), nodes)
		}
	}
}

func newSpan(i int) tokenSpan {
	return tokenSpan{lo: uint32(i), hi: uint32(i + 1), file: uint32(i % 16)}
}

func newNode(i int, parent *astNode) astNode {
	return astNode{id: int64(i), text: "ident", parent: parent}
}

// generate yields gen(lo), ..., gen(lo+n-1).
func generate[T any](lo, n int, gen func(int) T) iter.Seq[T] {
	return func(yield func(T) bool) {
		for i := lo; i < lo+n; i++ {
			if !yield(gen(i)) {
				return
			}
		}
	}
}

func printResult(w io.Writer, r result) {
	m := r.Metrics
	fmt.Fprintf(w, "%-9s round %d: %s values in %s chunks, %s reserved (%.1f%% used), alloc %s, release %s\n",
		r.Kind,
		r.Round,
		humanize.Comma(int64(r.Count)),
		humanize.Comma(int64(m.NumChunks)),
		humanize.IBytes(uint64(m.Capacity)),
		m.Utilization*100,
		r.AllocTime,
		r.ReleaseTime,
	)
}

// writeMetrics prints every metric collector exports in the Prometheus text
// exposition format.
func writeMetrics(w io.Writer, collector *arena.Collector) error {
	reg := prometheus.NewRegistry()
	if err := reg.Register(collector); err != nil {
		return err
	}
	families, err := reg.Gather()
	if err != nil {
		return err
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}
