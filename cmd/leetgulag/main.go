// Package main provides the CLI entrypoint for leetgulag.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/verte-zerg/leetgulag/internal/catalog"
	"github.com/verte-zerg/leetgulag/internal/collection"
	"github.com/verte-zerg/leetgulag/internal/config"
	"github.com/verte-zerg/leetgulag/internal/daemon"
	"github.com/verte-zerg/leetgulag/internal/judge"
	"github.com/verte-zerg/leetgulag/internal/model"
	"github.com/verte-zerg/leetgulag/internal/provision"
	"github.com/verte-zerg/leetgulag/internal/stats"
	"github.com/verte-zerg/leetgulag/internal/statusui"
	"github.com/verte-zerg/leetgulag/internal/store"
)

const (
	defaultStatsDays    = 30
	defaultStatsWindow  = 7
	defaultStatsHistory = 10
)

var (
	difficulty         string
	collectionName     string
	includePremium     bool
	listen             string
	catalogURL         string
	catalogRPS         float64
	escalatedMaxCycles int
	logLevel           string

	statusPlain bool

	statsDays    int
	statsWindow  int
	statsHistory int
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "leetgulag",
		Short:         "Daily practice problem enforcer",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE:          runStatusCmd,
	}
	rootCmd.PersistentFlags().StringVar(&listen, "listen", config.DefaultListen, "daemon listen address")
	rootCmd.Flags().BoolVar(&statusPlain, "plain", false, "print status without the interactive view")

	rootCmd.AddCommand(newDaemonCmd())
	rootCmd.AddCommand(newStatusCmd())
	rootCmd.AddCommand(newModeCmd())
	rootCmd.AddCommand(newProvisionCmd())
	rootCmd.AddCommand(newCollectionsCmd())
	rootCmd.AddCommand(newStatsCmd())
	rootCmd.AddCommand(newConfigCmd())
	return rootCmd
}

func newDaemonCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run the enforcement daemon",
		Args:  cobra.NoArgs,
		RunE:  runDaemonCmd,
	}
	cmd.Flags().StringVar(&difficulty, "difficulty", config.DefaultDifficulty, "problem difficulty (all, easy, medium, hard)")
	cmd.Flags().StringVar(&collectionName, "collection", config.DefaultCollection, "problem collection (all, remote:<id>, or a bundled/user list)")
	cmd.Flags().BoolVar(&includePremium, "include-premium", false, "allow premium problems")
	cmd.Flags().StringVar(&catalogURL, "catalog-url", config.DefaultCatalogURL, "catalog GraphQL endpoint")
	cmd.Flags().Float64Var(&catalogRPS, "catalog-rps", config.DefaultCatalogRPS, "catalog requests per second")
	cmd.Flags().IntVar(&escalatedMaxCycles, "escalated-max-cycles", config.DefaultEscalatedMaxCycles, "escalated re-provisions per day (0 = unbounded)")
	cmd.Flags().StringVar(&logLevel, "log-level", config.DefaultLogLevel, "log level (debug, info, warn, error)")
	return cmd
}

// loadConfig resolves defaults, the config file, .env and environment
// variables, and flags, in increasing priority.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	if err := config.LoadEnvFile(config.DefaultEnvPath()); err != nil {
		return config.Config{}, err
	}
	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return config.Config{}, fmt.Errorf("failed to load config: %w", err)
	}
	if err := config.ApplyEnv(&fileCfg); err != nil {
		return config.Config{}, err
	}
	cfg := config.Default().Merge(fileCfg)

	applyStringConfig(cmd, "listen", &cfg.Listen, &listen)
	applyStringConfig(cmd, "difficulty", &cfg.Difficulty, &difficulty)
	applyStringConfig(cmd, "collection", &cfg.Collection, &collectionName)
	applyBoolConfig(cmd, "include-premium", &cfg.IncludePremium, &includePremium)
	applyStringConfig(cmd, "catalog-url", &cfg.CatalogURL, &catalogURL)
	applyFloatConfig(cmd, "catalog-rps", &cfg.CatalogRPS, &catalogRPS)
	applyIntConfig(cmd, "escalated-max-cycles", &cfg.EscalatedMaxCycles, &escalatedMaxCycles)
	applyStringConfig(cmd, "log-level", &cfg.LogLevel, &logLevel)

	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func runDaemonCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	settings, err := cfg.Settings()
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	st, err := openStore()
	if err != nil {
		return err
	}
	defer closeStore(st)

	cat := catalog.New(cfg.CatalogURL, catalog.WithRate(cfg.CatalogRPS))
	prov := provision.New(cat, collection.NewSource(config.DefaultCollectionDir()), st,
		provision.WithLogger(logger.With("component", "provision")))
	var judgeOpts []judge.Option
	if cfg.Session != "" {
		judgeOpts = append(judgeOpts, judge.WithSession(cfg.Session))
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	d := daemon.New(st, prov, judge.New(nil, judgeOpts...), daemon.Options{
		Settings:           settings,
		EscalatedMaxCycles: cfg.EscalatedMaxCycles,
		Logger:             logger,
		Registry:           reg,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := d.Run(ctx, cfg.Listen); err != nil {
		return fmt.Errorf("daemon stopped: %w", err)
	}
	return nil
}

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show today's problem and streaks",
		Args:  cobra.NoArgs,
		RunE:  runStatusCmd,
	}
	cmd.Flags().BoolVar(&statusPlain, "plain", false, "print status without the interactive view")
	return cmd
}

func runStatusCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	st, err := openStore()
	if err != nil {
		return err
	}
	defer closeStore(st)

	load := func(ctx context.Context) (statusui.Snapshot, error) {
		return loadSnapshot(ctx, st)
	}
	messages := statusui.PickMessages(rand.New(rand.NewSource(time.Now().UnixNano())))

	if statusPlain || !term.IsTerminal(int(os.Stdout.Fd())) {
		snap, err := load(cmd.Context())
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintln(cmd.OutOrStdout(), statusui.Render(snap, messages, 0)); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
		return nil
	}

	client := newDaemonClient(cfg.Listen)
	refresh := func(ctx context.Context) error {
		_, err := client.provision(ctx)
		return err
	}
	program := tea.NewProgram(statusui.NewModel(load, refresh, messages), tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("failed to run status TUI: %w", err)
	}
	return nil
}

func loadSnapshot(ctx context.Context, st *store.Store) (statusui.Snapshot, error) {
	var snap statusui.Snapshot
	var err error
	if snap.Problem, err = st.Problem(ctx); err != nil {
		return snap, fmt.Errorf("failed to read problem: %w", err)
	}
	if snap.Solved, err = st.ProblemSolved(ctx); err != nil {
		return snap, fmt.Errorf("failed to read solved flag: %w", err)
	}
	if snap.Mode, err = st.Mode(ctx); err != nil {
		return snap, fmt.Errorf("failed to read mode: %w", err)
	}
	if snap.Loading, err = st.Loading(ctx); err != nil {
		return snap, fmt.Errorf("failed to read loading flag: %w", err)
	}
	if snap.Permissions, err = st.Permissions(ctx); err != nil {
		return snap, fmt.Errorf("failed to read permissions: %w", err)
	}
	snap.Streaks = make(map[model.Mode]model.StreakState, 2)
	for _, mode := range []model.Mode{model.ModeNormal, model.ModeEscalated} {
		s, err := st.Streak(ctx, mode)
		if err != nil {
			return snap, fmt.Errorf("failed to read streak: %w", err)
		}
		snap.Streaks[mode] = s
	}
	return snap, nil
}

func newModeCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "mode [normal|escalated]",
		Short:     "Show or switch the enforcement mode",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{string(model.ModeNormal), string(model.ModeEscalated)},
		RunE:      runModeCmd,
	}
}

func runModeCmd(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if len(args) == 0 {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer closeStore(st)
		mode, err := st.Mode(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to read mode: %w", err)
		}
		if _, err := fmt.Fprintln(cmd.OutOrStdout(), mode); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
		return nil
	}

	mode, err := model.ParseMode(args[0])
	if err != nil {
		return err
	}
	err = newDaemonClient(cfg.Listen).setMode(cmd.Context(), mode)
	if !errors.Is(err, errDaemonUnreachable) {
		return err
	}
	st, err := openStore()
	if err != nil {
		return err
	}
	defer closeStore(st)
	if err := st.SetMode(cmd.Context(), mode); err != nil {
		return fmt.Errorf("failed to set mode: %w", err)
	}
	logErrln("daemon not running; mode saved and applied on next start")
	return nil
}

func newProvisionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "provision",
		Short: "Retry provisioning after a catalog failure",
		Args:  cobra.NoArgs,
		RunE:  runProvisionCmd,
	}
}

func runProvisionCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	status, err := newDaemonClient(cfg.Listen).provision(cmd.Context())
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(cmd.OutOrStdout(), "%s\n%s\n", status.Problem.Name, status.Problem.URL); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func newCollectionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "collections",
		Short: "List bundled and user collections",
		Args:  cobra.NoArgs,
		RunE:  runCollectionsCmd,
	}
}

func runCollectionsCmd(cmd *cobra.Command, _ []string) error {
	src := collection.NewSource(config.DefaultCollectionDir())
	names, err := src.Names()
	if err != nil {
		return fmt.Errorf("failed to list collections: %w", err)
	}
	for _, name := range names {
		records, err := src.Load(name)
		if err != nil {
			logErrf("skipping %s: %v\n", name, err)
			continue
		}
		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "%-16s %d problems\n", name, len(records)); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
	}
	return nil
}

func newStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show completion history",
		Args:  cobra.NoArgs,
		RunE:  runStatsCmd,
	}
	cmd.Flags().IntVar(&statsDays, "days", defaultStatsDays, "number of days to include")
	cmd.Flags().IntVar(&statsWindow, "window", defaultStatsWindow, "moving average window")
	cmd.Flags().IntVar(&statsHistory, "history", defaultStatsHistory, "number of recent completions to list (0 = all)")
	return cmd
}

func runStatsCmd(cmd *cobra.Command, _ []string) error {
	if statsDays <= 0 {
		return fmt.Errorf("--days must be > 0")
	}
	st, err := openStore()
	if err != nil {
		return err
	}
	defer closeStore(st)

	report, err := stats.BuildReport(cmd.Context(), st, time.Now(), statsDays, statsWindow)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if err := stats.RenderSummary(out, report); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	if err := stats.RenderHistory(out, report.Completions, statsHistory); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Create/open config file",
		Args:  cobra.NoArgs,
		RunE:  runConfigCmd,
	}
}

func runConfigCmd(_ *cobra.Command, _ []string) error {
	path := config.DefaultConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to stat config: %w", err)
		}
		if err := os.WriteFile(path, []byte(defaultConfigTemplate()), 0o644); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
	}

	editor := strings.TrimSpace(os.Getenv("EDITOR"))
	if editor == "" {
		editor = "vi"
	}
	parts := strings.Fields(editor)
	if len(parts) == 0 {
		return fmt.Errorf("editor command is empty")
	}
	cmd := exec.Command(parts[0], append(parts[1:], path)...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to open editor: %w", err)
	}
	return nil
}

func openStore() (*store.Store, error) {
	path := config.DefaultDBPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}
	return st, nil
}

func closeStore(st *store.Store) {
	if cerr := st.Close(); cerr != nil {
		logErrf("failed to close db: %v\n", cerr)
	}
}

// The apply helpers copy a flag value over the resolved config only when the
// user set the flag explicitly.
func applyStringConfig(cmd *cobra.Command, name string, target, flagValue *string) {
	if !flagChanged(cmd, name) {
		return
	}
	*target = *flagValue
}

func applyIntConfig(cmd *cobra.Command, name string, target, flagValue *int) {
	if !flagChanged(cmd, name) {
		return
	}
	*target = *flagValue
}

func applyFloatConfig(cmd *cobra.Command, name string, target, flagValue *float64) {
	if !flagChanged(cmd, name) {
		return
	}
	*target = *flagValue
}

func applyBoolConfig(cmd *cobra.Command, name string, target, flagValue *bool) {
	if !flagChanged(cmd, name) {
		return
	}
	*target = *flagValue
}

func flagChanged(cmd *cobra.Command, name string) bool {
	f := cmd.Flags().Lookup(name)
	return f != nil && f.Changed
}

func defaultConfigTemplate() string {
	return fmt.Sprintf(`# leetgulag configuration
# Uncomment a value to enable it. CLI flags and LEETGULAG_* variables override config values.
# Secrets such as the session cookie can live in %s instead.

[practice]
# difficulty = %q        # all, easy, medium or hard
# collection = %q        # all, remote:<list id>, Blind75, NeetCode150, allNeetcode or a user list
# include-premium = false  # Allow premium problems

[daemon]
# listen = %q
# catalog-url = %q
# catalog-rps = %.1f
# escalated-max-cycles = %d   # Re-provisions per day in escalated mode (0 = unbounded)
# session = ""                # Practice site session cookie for verdict checks

[log]
# level = %q
`,
		config.DefaultEnvPath(),
		config.DefaultDifficulty,
		config.DefaultCollection,
		config.DefaultListen,
		config.DefaultCatalogURL,
		config.DefaultCatalogRPS,
		config.DefaultEscalatedMaxCycles,
		config.DefaultLogLevel,
	)
}

func logErrf(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}

func logErrln(args ...any) {
	if _, err := fmt.Fprintln(os.Stderr, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}
