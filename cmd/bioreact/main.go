package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/san-kum/bioreact/internal/analysis"
	"github.com/san-kum/bioreact/internal/bioreactor"
	"github.com/san-kum/bioreact/internal/config"
	"github.com/san-kum/bioreact/internal/dynamo"
	"github.com/san-kum/bioreact/internal/export"
	"github.com/san-kum/bioreact/internal/integrators"
	"github.com/san-kum/bioreact/internal/metrics"
	"github.com/san-kum/bioreact/internal/optim"
	"github.com/san-kum/bioreact/internal/sim"
	"github.com/san-kum/bioreact/internal/storage"
	"github.com/san-kum/bioreact/internal/viz"
)

var (
	dataDir  string
	logLevel string
	env      config.Env

	// run
	configFile  string
	preset      string
	runName     string
	feeds       []float64
	feedConc    float64
	tEnd        float64
	points      int
	rtol        float64
	atol        float64
	maxSteps    int
	timeout     time.Duration
	workers     int
	metricsFile string
	noSave      bool
	showPlot    bool

	// plot / phase / view
	variable  string
	width     int
	height    int
	scenarioN int

	// optimize
	feedMin   float64
	feedMax   float64
	feedSteps int
	concs     []float64
	objective string
	top       int

	// render / export
	outPath string
	format  string
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// newRootCmd builds the command tree and binds every flag to its package
// variable, resetting those variables to their defaults.
func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "bioreact",
		Short:         "fed-batch bioreactor simulator",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if env, err = config.ParseEnv(); err != nil {
				return err
			}
			if !cmd.Flags().Changed("data") {
				dataDir = env.DataDir
			}
			if !cmd.Flags().Changed("log-level") {
				logLevel = env.LogLevel
			}
			level, err := logrus.ParseLevel(logLevel)
			if err != nil {
				return err
			}
			logrus.SetLevel(level)
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".bioreact", "data directory (env BIOREACT_DATA)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (env BIOREACT_LOG_LEVEL)")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "simulate every feed scenario of an experiment",
		Args:  cobra.NoArgs,
		RunE:  runSweep,
	}
	runCmd.Flags().StringVar(&configFile, "config", "", "experiment file (yaml)")
	runCmd.Flags().StringVar(&preset, "preset", "", "start from a preset experiment")
	runCmd.Flags().StringVar(&runName, "name", "", "run name")
	runCmd.Flags().Float64SliceVar(&feeds, "feed", nil, "feed flow rates F in L/hr, one scenario each")
	runCmd.Flags().Float64Var(&feedConc, "sf", config.DefaultSf, "feed substrate concentration in g/L (with --feed)")
	runCmd.Flags().Float64Var(&tEnd, "t-end", config.DefaultTEnd, "end of the horizon in hr")
	runCmd.Flags().IntVar(&points, "points", config.DefaultPoints, "evenly spaced samples including both ends")
	runCmd.Flags().Float64Var(&rtol, "rtol", dynamo.DefaultRelTol, "relative tolerance")
	runCmd.Flags().Float64Var(&atol, "atol", dynamo.DefaultAbsTol, "absolute tolerance")
	runCmd.Flags().IntVar(&maxSteps, "max-steps", dynamo.DefaultMaxSteps, "step budget per scenario")
	runCmd.Flags().DurationVar(&timeout, "timeout", 0, "wall-clock limit per scenario (0 disables)")
	runCmd.Flags().IntVar(&workers, "workers", 0, "concurrent scenarios (0 = GOMAXPROCS)")
	runCmd.Flags().StringVar(&metricsFile, "metrics-file", "", "write run metrics in Prometheus text format")
	runCmd.Flags().BoolVar(&noSave, "no-save", false, "do not store the run")
	runCmd.Flags().BoolVar(&showPlot, "plot", false, "plot biomass after the run")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list runs",
		Args:  cobra.NoArgs,
		RunE:  listRuns,
	}

	summaryCmd := &cobra.Command{
		Use:   "summary [run_id]",
		Short: "per-scenario end state and mass balance",
		Args:  cobra.MaximumNArgs(1),
		RunE:  showSummary,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot run results in the terminal",
		Args:  cobra.MaximumNArgs(1),
		RunE:  plotRun,
	}
	plotCmd.Flags().StringVar(&variable, "var", "all", "variable to plot (X, S, P, V or all)")
	plotCmd.Flags().IntVar(&width, "width", 80, "plot width")
	plotCmd.Flags().IntVar(&height, "height", 12, "plot height")

	phaseCmd := &cobra.Command{
		Use:   "phase [run_id]",
		Short: "substrate/biomass phase portrait",
		Args:  cobra.MaximumNArgs(1),
		RunE:  phasePlot,
	}
	phaseCmd.Flags().IntVar(&scenarioN, "scenario", 0, "scenario index")
	phaseCmd.Flags().IntVar(&width, "width", 70, "plot width")
	phaseCmd.Flags().IntVar(&height, "height", 20, "plot height")

	renderCmd := &cobra.Command{
		Use:   "render [run_id]",
		Short: "render charts to image files",
		Args:  cobra.MaximumNArgs(1),
		RunE:  renderRun,
	}
	renderCmd.Flags().StringVarP(&outPath, "out", "o", "", "output directory (default <data>/<run_id>/charts)")
	renderCmd.Flags().StringVar(&format, "format", "png", "image format (png or svg)")

	viewCmd := &cobra.Command{
		Use:   "view [run_id]",
		Short: "replay a run interactively",
		Args:  cobra.MaximumNArgs(1),
		RunE:  viewRun,
	}

	exportCSVCmd := &cobra.Command{
		Use:   "export-csv [run_id]",
		Short: "export run data to CSV",
		Args:  cobra.MaximumNArgs(1),
		RunE:  exportCSV,
	}
	exportCSVCmd.Flags().StringVarP(&outPath, "out", "o", "", "output file (default stdout)")

	exportJSONCmd := &cobra.Command{
		Use:   "export-json [run_id]",
		Short: "export run data to JSON",
		Args:  cobra.MaximumNArgs(1),
		RunE:  exportJSON,
	}
	exportJSONCmd.Flags().StringVarP(&outPath, "out", "o", "", "output file (default stdout)")

	presetsCmd := &cobra.Command{
		Use:   "presets [name]",
		Short: "list presets, or write one as an experiment file",
		Args:  cobra.MaximumNArgs(1),
		RunE:  listPresets,
	}
	presetsCmd.Flags().StringVarP(&outPath, "out", "o", "", "write the named preset to this file")

	optimizeCmd := &cobra.Command{
		Use:   "optimize",
		Short: "grid-search the feeding policy for an objective",
		Args:  cobra.NoArgs,
		RunE:  optimizeFeed,
	}
	optimizeCmd.Flags().StringVar(&configFile, "config", "", "experiment file (yaml)")
	optimizeCmd.Flags().StringVar(&preset, "preset", "", "start from a preset experiment")
	optimizeCmd.Flags().Float64Var(&feedMin, "f-min", 0, "smallest feed flow in L/hr")
	optimizeCmd.Flags().Float64Var(&feedMax, "f-max", 0.1, "largest feed flow in L/hr")
	optimizeCmd.Flags().IntVar(&feedSteps, "f-steps", 11, "feed flow grid points")
	optimizeCmd.Flags().Float64SliceVar(&concs, "sf", []float64{config.DefaultSf}, "feed concentrations in g/L")
	optimizeCmd.Flags().StringVar(&objective, "objective", "productivity", fmt.Sprintf("quantity to maximize %v", optim.ListObjectives()))
	optimizeCmd.Flags().IntVar(&top, "top", 5, "candidates to show")
	optimizeCmd.Flags().Float64Var(&tEnd, "t-end", config.DefaultTEnd, "end of the horizon in hr")
	optimizeCmd.Flags().IntVar(&workers, "workers", 0, "concurrent scenarios (0 = GOMAXPROCS)")

	rootCmd.AddCommand(runCmd, optimizeCmd, listCmd, summaryCmd, plotCmd, phaseCmd, renderCmd, viewCmd, exportCSVCmd, exportJSONCmd, presetsCmd)
	return rootCmd
}

// experiment assembles the configuration for run: preset, then config file,
// then environment, then explicitly set flags.
func experiment(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if preset != "" {
		if cfg = config.GetPreset(preset); cfg == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets())
		}
	}

	if configFile != "" {
		var err error
		if cfg, err = config.LoadOnto(configFile, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	}

	env.Apply(cfg)

	flags := cmd.Flags()
	if flags.Changed("name") {
		cfg.Name = runName
	}
	if flags.Changed("feed") {
		cfg.Scenarios = cfg.Scenarios[:0]
		for _, f := range feeds {
			cfg.Scenarios = append(cfg.Scenarios, bioreactor.Scenario{F: f, Sf: feedConc})
		}
	} else if flags.Lookup("feed") != nil && flags.Changed("sf") {
		for i := range cfg.Scenarios {
			cfg.Scenarios[i].Sf = feedConc
		}
	}
	if flags.Changed("t-end") {
		cfg.Horizon.TEnd = tEnd
	}
	if flags.Changed("points") {
		cfg.Horizon.Points = points
		cfg.Horizon.Times = nil
	}
	if flags.Changed("rtol") {
		cfg.Solver.RelTol = rtol
	}
	if flags.Changed("atol") {
		cfg.Solver.AbsTol = atol
	}
	if flags.Changed("max-steps") {
		cfg.Solver.MaxSteps = maxSteps
	}
	if flags.Changed("timeout") {
		cfg.Timeout = timeout
	}
	if flags.Changed("workers") {
		cfg.Workers = workers
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runSweep(cmd *cobra.Command, args []string) error {
	cfg, err := experiment(cmd)
	if err != nil {
		return err
	}

	model, err := bioreactor.NewModel(cfg.Params())
	if err != nil {
		return err
	}
	solver := integrators.NewRK45()
	log := logrus.StandardLogger()
	s := sim.New(model, solver, log)

	var collector *metrics.Collector
	if metricsFile != "" {
		if collector, err = metrics.NewCollector(prometheus.NewRegistry()); err != nil {
			return err
		}
		s.AddRecorder(collector)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	x0 := cfg.GetInitState()
	simCfg := cfg.SimConfig()

	log.WithFields(logrus.Fields{
		"scenarios": len(cfg.Scenarios),
		"t_end":     simCfg.TEnd,
		"method":    solver.Name(),
	}).Info("starting sweep")
	start := time.Now()

	results, err := s.Sweep(ctx, x0, cfg.Scenarios, simCfg)
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	sw := storage.Sweep{
		Name:    cfg.Name,
		Method:  solver.Name(),
		Params:  model.Params(),
		Initial: x0,
		Config:  simCfg,
		Results: results,
	}

	fmt.Printf("completed in %v\n", elapsed)
	if !noSave {
		st := storage.New(dataDir)
		if err := st.Init(); err != nil {
			return err
		}
		runID, err := st.Save(sw)
		if err != nil {
			return err
		}
		fmt.Printf("run id: %s\n", runID)
	}

	records := sw.Records()
	fmt.Println(viz.SummaryTable(records))

	if showPlot {
		fmt.Println(viz.PlotVariable(bioreactor.Variables()[bioreactor.IdxX], resultSeries(results), viz.PlotOptions{}))
	}

	if collector != nil {
		if err := collector.WriteFile(metricsFile); err != nil {
			return err
		}
	}

	failed := 0
	for _, r := range results {
		if !r.OK() {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d scenarios did not complete", failed, len(results))
	}
	return nil
}

func optimizeFeed(cmd *cobra.Command, args []string) error {
	cfg, err := experiment(cmd)
	if err != nil {
		return err
	}
	if feedSteps < 1 || feedMax < feedMin {
		return fmt.Errorf("invalid feed grid [%g, %g] with %d points", feedMin, feedMax, feedSteps)
	}

	model, err := bioreactor.NewModel(cfg.Params())
	if err != nil {
		return err
	}
	s := sim.New(model, integrators.NewRK45(), logrus.StandardLogger())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	search := optim.NewGridSearch(optim.Range(feedMin, feedMax, feedSteps), concs)
	candidates, err := search.Search(ctx, s, cfg.GetInitState(), cfg.SimConfig(), objective)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "RANK\tF\tSF\t%s\tX\tP\tV\tSTATUS\n", strings.ToUpper(objective))
	for i, c := range candidates {
		if i >= top {
			break
		}
		sum := c.Summary
		fmt.Fprintf(w, "%d\t%g\t%g\t%.5g\t%.4g\t%.4g\t%.4g\t%s\n",
			i+1, c.Result.Scenario.F, c.Result.Scenario.Sf, c.Score, sum.FinalX, sum.FinalP, sum.FinalV, c.Result.Status)
	}
	return w.Flush()
}

func resultSeries(results []sim.RunResult) []viz.Series {
	series := make([]viz.Series, len(results))
	for i, r := range results {
		series[i] = viz.Series{Label: r.Scenario.Label(), Trajectory: r.Trajectory}
	}
	return series
}

func listRuns(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runs, err := st.List()
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tTIME\tSCENARIOS\tFAILED\tT_END\tPOINTS\tRTOL")

	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%.4gh\t%d\t%.0e\n",
			run.ID,
			run.Name,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			len(run.Scenarios),
			run.Failed(),
			run.Grid.TEnd,
			run.Grid.Points,
			run.Grid.RelTol,
		)
	}

	return w.Flush()
}

// loadRun resolves the optional run ID argument, defaulting to the latest
// run, and loads every trajectory of it.
func loadRun(args []string) (*storage.RunMetadata, []*dynamo.Trajectory, error) {
	st := storage.New(dataDir)
	var runID string
	if len(args) > 0 {
		runID = args[0]
	} else {
		var err error
		if runID, err = st.Latest(); err != nil {
			if errors.Is(err, storage.ErrRunNotFound) {
				return nil, nil, errors.New("no runs found")
			}
			return nil, nil, err
		}
	}
	return st.LoadAll(runID)
}

func storedSeries(meta *storage.RunMetadata, trajectories []*dynamo.Trajectory) []viz.Series {
	series := make([]viz.Series, len(trajectories))
	for i, tr := range trajectories {
		series[i] = viz.Series{Label: meta.Scenarios[i].Scenario.Label(), Trajectory: tr}
	}
	return series
}

func showSummary(cmd *cobra.Command, args []string) error {
	meta, _, err := loadRun(args)
	if err != nil {
		return err
	}
	head := fmt.Sprintf("%s  %s\n%s\n%s",
		viz.Title.Render(meta.ID),
		viz.Subtle.Render(meta.Timestamp.Format(time.RFC3339)),
		viz.MetricLabel.Render(fmt.Sprintf("mumax=%g ks=%g yxs=%g ypx=%g", meta.Params.MuMax, meta.Params.Ks, meta.Params.Yxs, meta.Params.Ypx)),
		viz.MetricLabel.Render(fmt.Sprintf("x0=(%g, %g, %g, %g)  t=[%g, %g] %s", meta.Initial.X, meta.Initial.S, meta.Initial.P, meta.Initial.V, meta.Grid.T0, meta.Grid.TEnd, bioreactor.TimeUnit)))
	fmt.Println(viz.Panel.Render(head))
	fmt.Println(viz.SummaryTable(meta.Scenarios))
	return nil
}

func plotRun(cmd *cobra.Command, args []string) error {
	meta, trajectories, err := loadRun(args)
	if err != nil {
		return err
	}

	vars, err := selectVariables(variable)
	if err != nil {
		return err
	}

	series := storedSeries(meta, trajectories)
	for _, v := range vars {
		fmt.Println(viz.PlotVariable(v, series, viz.PlotOptions{Width: width, Height: height}))
		fmt.Println()
	}
	return nil
}

func selectVariables(name string) ([]bioreactor.Variable, error) {
	all := bioreactor.Variables()
	if strings.EqualFold(name, "all") {
		return all, nil
	}
	for _, v := range all {
		if strings.EqualFold(v.Symbol, name) {
			return []bioreactor.Variable{v}, nil
		}
	}
	return nil, fmt.Errorf("unknown variable %q (want X, S, P, V or all)", name)
}

func phasePlot(cmd *cobra.Command, args []string) error {
	meta, trajectories, err := loadRun(args)
	if err != nil {
		return err
	}
	if scenarioN < 0 || scenarioN >= len(trajectories) {
		return fmt.Errorf("scenario %d out of range (run has %d)", scenarioN, len(trajectories))
	}

	portrait := analysis.NewPhasePortrait(trajectories[scenarioN], bioreactor.IdxS, bioreactor.IdxX)
	if portrait == nil {
		return errors.New("scenario has no samples")
	}

	fmt.Printf("%s: X (%s) vs S (%s)\n", meta.Scenarios[scenarioN].Scenario.Label(), bioreactor.ConcentrationUnit, bioreactor.ConcentrationUnit)
	fmt.Print(analysis.PhasePortraitToASCII(portrait, width, height))
	return nil
}

func renderRun(cmd *cobra.Command, args []string) error {
	meta, trajectories, err := loadRun(args)
	if err != nil {
		return err
	}

	dir := outPath
	if dir == "" {
		dir = filepath.Join(dataDir, meta.ID, "charts")
	}

	series := make([]export.Series, len(trajectories))
	for i, tr := range trajectories {
		series[i] = export.Series{Label: meta.Scenarios[i].Scenario.Label(), Trajectory: tr}
	}

	paths, err := export.SaveCharts(dir, format, series)
	if err != nil {
		return err
	}
	for _, p := range paths {
		fmt.Println(p)
	}
	return nil
}

func viewRun(cmd *cobra.Command, args []string) error {
	meta, trajectories, err := loadRun(args)
	if err != nil {
		return err
	}

	title := meta.Name
	if title == "" {
		title = meta.ID
	}
	p := tea.NewProgram(viz.NewPlayback(title, storedSeries(meta, trajectories)), tea.WithAltScreen())
	_, err = p.Run()
	return err
}

// output opens outPath for writing, or returns stdout.
func output() (io.WriteCloser, error) {
	if outPath == "" {
		return nopCloser{os.Stdout}, nil
	}
	return os.Create(outPath)
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

func exportCSV(cmd *cobra.Command, args []string) error {
	meta, trajectories, err := loadRun(args)
	if err != nil {
		return err
	}
	out, err := output()
	if err != nil {
		return err
	}
	defer out.Close()

	if err := storage.WriteSweepCSV(out, meta, trajectories); err != nil {
		return err
	}
	if outPath != "" {
		fmt.Printf("exported to %s\n", outPath)
	}
	return nil
}

func exportJSON(cmd *cobra.Command, args []string) error {
	meta, trajectories, err := loadRun(args)
	if err != nil {
		return err
	}
	out, err := output()
	if err != nil {
		return err
	}
	defer out.Close()

	if err := storage.WriteJSON(out, meta, trajectories); err != nil {
		return err
	}
	if outPath != "" {
		fmt.Printf("exported to %s\n", outPath)
	}
	return nil
}

func listPresets(cmd *cobra.Command, args []string) error {
	if len(args) == 1 {
		cfg := config.GetPreset(args[0])
		if cfg == nil {
			return fmt.Errorf("unknown preset: %s (available: %v)", args[0], config.ListPresets())
		}
		if outPath == "" {
			return errors.New("--out is required when naming a preset")
		}
		if err := config.Save(outPath, cfg); err != nil {
			return err
		}
		fmt.Printf("wrote %s to %s\n", args[0], outPath)
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PRESET\tSCENARIOS\tT_END")
	for _, name := range config.ListPresets() {
		cfg := config.GetPreset(name)
		labels := make([]string, len(cfg.Scenarios))
		for i, sc := range cfg.Scenarios {
			labels[i] = sc.Label()
		}
		fmt.Fprintf(w, "%s\t%s\t%.4gh\n", name, strings.Join(labels, ", "), cfg.Horizon.TEnd)
	}
	return w.Flush()
}
