// baseline CLI - runs the inline-cache engine over the demo workload,
// manages stored profiles, and serves the engine over Connect.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"
	"golang.org/x/sync/errgroup"

	"github.com/chazu/baseline/aot"
	"github.com/chazu/baseline/config"
	"github.com/chazu/baseline/ic"
	"github.com/chazu/baseline/interp"
	"github.com/chazu/baseline/profilestore"
	"github.com/chazu/baseline/server"
	"github.com/chazu/baseline/snapshot"
)

var log = commonlog.GetLogger("baseline.cli")

func main() {
	configDir := flag.String("config", ".", "Directory to search upwards for baseline.toml")
	verbosity := flag.Int("v", -1, "Log verbosity (overrides [log] verbosity)")
	iterations := flag.Int("n", 0, "Workload iterations (overrides [engine] iterations)")
	save := flag.String("save", "", "Capture a snapshot after the run and save it with this label")
	list := flag.Bool("list", false, "List stored snapshots")
	show := flag.String("show", "", "Print the chains of a stored snapshot")
	emitGo := flag.Bool("emit-go", false, "Render a profile as Go source (a stored one with -id, else a fresh run)")
	emitID := flag.String("id", "", "Snapshot id for -emit-go")
	emitPkg := flag.String("pkg", "profile", "Package name for -emit-go")
	output := flag.String("o", "", "Output file for -emit-go (default stdout)")
	serveMode := flag.Bool("serve", false, "Serve the engine over Connect")
	addr := flag.String("addr", "", "Server address (overrides [server] addr)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: baseline [options]\n\n")
		fmt.Fprintf(os.Stderr, "Runs the demo workload through the inline-cache engine and reports site statistics.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  baseline -n 5000                  # Run 5000 iterations and print stats\n")
		fmt.Fprintf(os.Stderr, "  baseline -save warm               # Run, then store a snapshot labelled warm\n")
		fmt.Fprintf(os.Stderr, "  baseline -list                    # List stored snapshots\n")
		fmt.Fprintf(os.Stderr, "  baseline -emit-go -o profile.go   # Render a fresh profile as Go\n")
		fmt.Fprintf(os.Stderr, "  baseline -serve -addr :7411       # Serve over Connect\n")
	}
	flag.Parse()

	cfg, err := loadConfig(*configDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *verbosity >= 0 {
		cfg.Log.Verbosity = *verbosity
	}
	if *iterations > 0 {
		cfg.Engine.Iterations = *iterations
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	configureLogging(cfg)

	if err := run(cfg, options{
		save:    *save,
		list:    *list,
		show:    *show,
		emitGo:  *emitGo,
		emitID:  *emitID,
		emitPkg: *emitPkg,
		output:  *output,
		serve:   *serveMode,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	save    string
	list    bool
	show    string
	emitGo  bool
	emitID  string
	emitPkg string
	output  string
	serve   bool
}

func loadConfig(dir string) (*config.Config, error) {
	cfg, err := config.FindAndLoad(dir)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		cfg = config.Default()
	}
	return cfg, nil
}

func configureLogging(cfg *config.Config) {
	var path *string
	if cfg.Log.File != "" {
		path = &cfg.Log.File
	}
	commonlog.Configure(cfg.Log.Verbosity, path)
}

func run(cfg *config.Config, opts options) error {
	switch {
	case opts.list:
		return withStore(cfg, listSnapshots)
	case opts.show != "":
		return withStore(cfg, func(s *profilestore.Store) error { return showSnapshot(s, opts.show) })
	case opts.emitGo && opts.emitID != "":
		return withStore(cfg, func(s *profilestore.Store) error {
			snap, err := s.Load(opts.emitID)
			if err != nil {
				return err
			}
			return emit(snap, opts)
		})
	case opts.serve:
		return serve(cfg)
	}

	e, r := newEngine(cfg)
	w, err := interp.RunWorkload(e, r, cfg.Engine.Iterations)
	if err != nil {
		return err
	}
	printStats(e, w)

	if opts.emitGo {
		return emit(snapshot.Capture(e, "emit-go"), opts)
	}
	if opts.save != "" {
		return withStore(cfg, func(s *profilestore.Store) error {
			snap := snapshot.Capture(e, opts.save)
			if err := s.Save(snap); err != nil {
				return err
			}
			fmt.Printf("Saved snapshot %s (%d sites)\n", snap.ID, snap.NumSites())
			return nil
		})
	}
	return nil
}

func newEngine(cfg *config.Config) (*ic.Engine, *interp.Realm) {
	r := interp.NewRealm()
	opts := cfg.EngineOptions()
	opts.OnHot = func(s *ic.Script) {
		log.Noticef("script %s is hot", s.Name())
	}
	return ic.NewEngine(r, opts), r
}

func withStore(cfg *config.Config, fn func(*profilestore.Store) error) error {
	s, err := profilestore.Open(cfg.Store.Driver, cfg.Store.DSN)
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(s)
}

func printStats(e *ic.Engine, w *interp.Workload) {
	st := e.Stats()
	sites := e.CollectSiteStats()
	fmt.Printf("Engine %s\n", e.ID())
	fmt.Printf("  checksum:         %g\n", w.Checksum())
	fmt.Printf("  sites:            %d (%d empty, %d mono, %d poly, %d capped)\n",
		sites.TotalSites, sites.Empty, sites.Monomorphic, sites.Polymorphic, sites.Capped)
	fmt.Printf("  hit rate:         %.1f%% (%d hits, %d misses)\n", sites.HitRate, sites.TotalHits, sites.TotalMisses)
	fmt.Printf("  stubs attached:   %d (+%d monitor, +%d update)\n", st.StubsAttached, st.MonitorStubsAttached, st.UpdateStubsAttached)
	fmt.Printf("  unspecializable:  %d\n", st.Unspecializable)
	fmt.Printf("  optimized space:  %d stubs\n", e.OptimizedSpace().Len())
	fmt.Printf("  fallback space:   %d stubs\n", e.FallbackSpace().Len())
	fmt.Printf("  shared code:      %d entries\n", e.CodeCacheSize())
}

func listSnapshots(s *profilestore.Store) error {
	entries, err := s.List()
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println("No snapshots stored")
		return nil
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tLABEL\tTAKEN\tSITES")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", e.ID, e.Label, e.TakenAt.Format(time.RFC3339), e.Sites)
	}
	return tw.Flush()
}

func showSnapshot(s *profilestore.Store, id string) error {
	snap, err := s.Load(id)
	if err != nil {
		return err
	}
	fmt.Printf("Snapshot %s %q taken %s\n", snap.ID, snap.Label, snap.Time().Format(time.RFC3339))
	for _, sc := range snap.Scripts {
		fmt.Printf("\n%s (hot=%v, loop entries=%d)\n", sc.Name, sc.Hot, sc.LoopEntries)
		for _, site := range sc.Sites {
			fmt.Printf("  %4d %-12s %-12s hits=%-6d misses=%-6d", site.PC, site.Op, site.State, site.Hits, site.Misses)
			for _, st := range site.Stubs {
				fmt.Printf(" %s", st.Kind)
			}
			fmt.Println()
		}
	}

	caps := aot.Caps(snap)
	if len(caps) > 0 {
		kinds := make([]ic.Kind, 0, len(caps))
		for k := range caps {
			kinds = append(kinds, k)
		}
		sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
		fmt.Println("\nObserved chain lengths:")
		for _, k := range kinds {
			fmt.Printf("  %-24s %d\n", k, caps[k])
		}
	}
	return nil
}

func emit(snap *snapshot.Snapshot, opts options) error {
	res, err := aot.Generate(snap, aot.Options{Package: opts.emitPkg})
	if err != nil {
		return err
	}
	for _, w := range res.Warnings {
		log.Warningf("%s", w)
	}
	if opts.output == "" {
		fmt.Print(res.Code)
		return nil
	}
	return os.WriteFile(opts.output, []byte(res.Code), 0644)
}

func serve(cfg *config.Config) error {
	e, r := newEngine(cfg)

	var srvOpts []server.ServerOption
	if cfg.Sweep.Enabled {
		interval, err := cfg.SweepInterval()
		if err != nil {
			return err
		}
		srvOpts = append(srvOpts, server.WithSweeper(interval, cfg.Sweep.Purge))
	}
	store, err := profilestore.Open(cfg.Store.Driver, cfg.Store.DSN)
	if err != nil {
		return err
	}
	defer store.Close()
	srvOpts = append(srvOpts, server.WithStore(store))

	srv := server.New(e, r, srvOpts...)
	defer srv.Stop()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.ListenAndServe(ctx, cfg.Server.Addr)
	})
	g.Go(func() error {
		// Warm the engine so the first capture has something to show.
		_, err := srv.Worker().Do(func(st *server.EngineState) (interface{}, error) {
			w, err := st.Workload()
			if err != nil {
				return nil, err
			}
			return nil, w.Run(cfg.Engine.Iterations)
		})
		return err
	})
	return g.Wait()
}
