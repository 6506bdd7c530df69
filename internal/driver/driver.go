package driver

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"

	"github.com/bplaa-yai/v8m-rb/internal/compiler"
	"github.com/bplaa-yai/v8m-rb/internal/config"
	"github.com/bplaa-yai/v8m-rb/pkg/builtins"
	"github.com/bplaa-yai/v8m-rb/pkg/color"
	"github.com/bplaa-yai/v8m-rb/pkg/heap"
	"github.com/bplaa-yai/v8m-rb/pkg/interpreter"
	"github.com/bplaa-yai/v8m-rb/pkg/isolate"
	"github.com/bplaa-yai/v8m-rb/pkg/runtime"
	"github.com/bplaa-yai/v8m-rb/pkg/stubs"
)

type Options struct {
	Help         bool   // Show help message
	Verbose      bool   // Enable debug logging
	NoColor      bool   // Disable colored output
	ConfigFile   string // Path to a v8m.toml file, empty for defaults
	SaveSnapshot string // Where to write the stub cache snapshot, empty to skip
	LoadSnapshot string // Snapshot to warm the stub cache from, empty to skip
	Expression   string // Expression to evaluate after the scenarios, empty to skip

	Out io.Writer // Report destination, stdout when nil
}

// Result is the outcome of one scenario.
type Result struct {
	Name string
	Err  error
}

// Report is what a run produced.
type Report struct {
	Results  []Result
	Counters isolate.Counters
	Heap     heap.Stats
	Stubs    int
	Restored int

	Expression string // Value of Options.Expression
}

// Failed returns the number of failed scenarios.
func (r *Report) Failed() int {
	n := 0
	for _, res := range r.Results {
		if res.Err != nil {
			n++
		}
	}
	return n
}

// Run loads the configuration, runs every scenario and prints the report.
func (opts *Options) Run() error {
	cfg := config.Default()
	if opts.ConfigFile != "" {
		var err error
		if cfg, err = config.Load(opts.ConfigFile); err != nil {
			return err
		}
	}
	if opts.SaveSnapshot == "-" {
		opts.SaveSnapshot = cfg.Stubs.Snapshot
	}

	report, err := opts.Execute(cfg)
	if err != nil {
		return err
	}
	report.Print(opts.out())
	if n := report.Failed(); n > 0 {
		return fmt.Errorf("%d of %d scenarios failed", n, len(report.Results))
	}
	return nil
}

func (opts *Options) out() io.Writer {
	if opts.Out == nil {
		return os.Stdout
	}
	return opts.Out
}

// Execute builds an isolate from cfg and runs the scenarios against it.
func (opts *Options) Execute(cfg *config.Config) (*Report, error) {
	ic, err := cfg.Isolate()
	if err != nil {
		return nil, err
	}
	iso, err := isolate.New(ic)
	if err != nil {
		return nil, fmt.Errorf("create isolate: %w", err)
	}
	builtins.Install(iso)
	runtime.Install(iso)
	log.Info("Isolate ready", "id", iso.ID, "old", humanize.IBytes(uint64(ic.Heap.OldSpace)), "young", humanize.IBytes(uint64(ic.Heap.YoungSpace)))

	env := &Env{Iso: iso, Stubs: stubs.NewCache(iso)}
	report := &Report{}
	if opts.LoadSnapshot != "" {
		data, err := os.ReadFile(opts.LoadSnapshot)
		if err != nil {
			return nil, fmt.Errorf("cannot read snapshot %s: %w", opts.LoadSnapshot, err)
		}
		if report.Restored, err = env.Stubs.Restore(data); err != nil {
			return nil, fmt.Errorf("load snapshot %s: %w", opts.LoadSnapshot, err)
		}
	}

	for _, sc := range Scenarios {
		err := sc.Run(env)
		if err != nil {
			log.Error("Scenario failed", "scenario", sc.Name, "error", err)
		}
		report.Results = append(report.Results, Result{Name: sc.Name, Err: err})
	}
	if opts.Expression != "" {
		c := compiler.New(iso, env.Stubs)
		c.Verbose = opts.Verbose
		c.Out = opts.out()
		v, err := c.Evaluate(opts.Expression)
		if err != nil {
			return nil, err
		}
		report.Expression = interpreter.Describe(iso.Heap, v)
	}
	if err := iso.Heap.Verify(); err != nil {
		report.Results = append(report.Results, Result{Name: "heap verification", Err: err})
	}

	if report.Heap, err = iso.Heap.Stats(); err != nil {
		return nil, fmt.Errorf("heap stats: %w", err)
	}
	report.Counters = iso.Counters
	report.Stubs = env.Stubs.Len()

	if opts.SaveSnapshot != "" {
		data, err := env.Stubs.Snapshot()
		if err != nil {
			return nil, fmt.Errorf("snapshot: %w", err)
		}
		if err := os.WriteFile(opts.SaveSnapshot, data, 0o644); err != nil {
			return nil, fmt.Errorf("cannot write snapshot %s: %w", opts.SaveSnapshot, err)
		}
		log.Info("Saved stub snapshot", "file", opts.SaveSnapshot, "stubs", report.Stubs, "size", humanize.Bytes(uint64(len(data))))
	}
	return report, nil
}

// Print writes the report.
func (r *Report) Print(w io.Writer) {
	fmt.Fprintln(w, color.BoldText("=== Scenarios ==="))
	for _, res := range r.Results {
		if res.Err != nil {
			fmt.Fprintf(w, "%s: %v\n", color.Fail(res.Name), res.Err)
			continue
		}
		fmt.Fprintln(w, color.Pass(res.Name))
	}

	c := r.Counters
	fmt.Fprintln(w, color.BoldText("\n=== Counters ==="))
	for _, s := range []struct {
		name  string
		value int
	}{
		{"array_function_native", c.ArrayFunctionNative},
		{"constructed_objects", c.ConstructedObjects},
		{"construct_fast_path", c.ConstructFastPath},
		{"construct_slow_path", c.ConstructSlowPath},
		{"adaptor_calls", c.AdaptorCalls},
		{"runtime_calls", c.RuntimeCalls},
		{"stub_cache_hits", c.StubCacheHits},
		{"stub_cache_misses", c.StubCacheMisses},
	} {
		fmt.Fprintln(w, color.Stat(fmt.Sprintf("%-22s", s.name), humanize.Comma(int64(s.value))))
	}

	h := r.Heap
	fmt.Fprintln(w, color.BoldText("\n=== Heap ==="))
	fmt.Fprintln(w, color.Stat(fmt.Sprintf("%-22s", "old space"), fmt.Sprintf("%s / %s", humanize.IBytes(uint64(h.OldUsed)), humanize.IBytes(uint64(h.OldCapacity)))))
	fmt.Fprintln(w, color.Stat(fmt.Sprintf("%-22s", "young space"), fmt.Sprintf("%s / %s", humanize.IBytes(uint64(h.YoungUsed)), humanize.IBytes(uint64(h.YoungCapacity)))))
	fmt.Fprintln(w, color.Stat(fmt.Sprintf("%-22s", "objects"), humanize.Comma(int64(h.Objects))))
	fmt.Fprintln(w, color.Stat(fmt.Sprintf("%-22s", "remembered slots"), humanize.Comma(int64(h.Remembered))))
	fmt.Fprintln(w, color.Stat(fmt.Sprintf("%-22s", "stubs"), fmt.Sprintf("%d (%d restored)", r.Stubs, r.Restored)))

	if r.Expression != "" {
		fmt.Fprintln(w, color.BoldText("\n=== Expression ==="))
		fmt.Fprintln(w, r.Expression)
	}
}
