// Package main provides the harness command line: a probe run against
// a deployed environment and a sequential UI scenario.
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	skew "skew"
	"skew/circuit/memory"
	"skew/event"
	"skew/lock"
	redislock "skew/lock/redis"
	skewprom "skew/metrics/prometheus"
	"skew/monitor"
	"skew/report"
	"skew/scenario"
	"skew/store"
	mysqlstore "skew/store/mysql"
	"skew/tracing"
)

var (
	configPath string

	// run flags
	memberURL  string
	accountURL string
	clients    int
	duration   time.Duration
	redisAddr  string
	mysqlDSN   string
	reportAddr string

	// scenario flags
	baseURL string
	headful bool
)

func main() {
	root := &cobra.Command{
		Use:           "skew",
		Short:         "Cross-service consistency harness",
		Long:          "skew probes a member/account deployment for deletions that succeed despite linked accounts.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to YAML config file")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the concurrent probe workload",
		RunE:  runProbes,
	}
	runCmd.Flags().StringVar(&memberURL, "member-url", "", "member service base URL")
	runCmd.Flags().StringVar(&accountURL, "account-url", "", "account service base URL")
	runCmd.Flags().IntVar(&clients, "clients", 0, "number of virtual clients")
	runCmd.Flags().DurationVar(&duration, "duration", 0, "run duration, 0 runs until interrupted")
	runCmd.Flags().StringVar(&redisAddr, "redis-addr", "", "Redis address for the environment run lock")
	runCmd.Flags().StringVar(&mysqlDSN, "mysql-dsn", "", "MySQL DSN for run history")
	runCmd.Flags().StringVar(&reportAddr, "report-addr", ":9090", "report server listen address")

	scenarioCmd := &cobra.Command{
		Use:   "scenario",
		Short: "Run the sequential UI scenario",
		RunE:  runScenario,
	}
	scenarioCmd.Flags().StringVar(&baseURL, "base-url", "", "frontend base URL")
	scenarioCmd.Flags().BoolVar(&headful, "headful", false, "run the browser with a visible window")

	root.AddCommand(runCmd, scenarioCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// loadConfig merges the config file, if any, with command line
// overrides.
func loadConfig() (skew.Config, error) {
	cfg := skew.DefaultConfig()
	if configPath != "" {
		loaded, err := skew.LoadConfig(configPath)
		if err != nil {
			return skew.Config{}, err
		}
		cfg = loaded
	}

	if memberURL != "" {
		cfg.MemberServiceURL = memberURL
	}
	if accountURL != "" {
		cfg.AccountServiceURL = accountURL
	}
	if clients > 0 {
		cfg.Clients = clients
	}

	if err := cfg.Validate(); err != nil {
		return skew.Config{}, err
	}
	return cfg, nil
}

func runProbes(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx := cmd.Context()

	bus := event.NewMemoryEventBus()
	registry := prometheus.NewRegistry()
	mx := skewprom.New(skewprom.Config{
		Namespace: "skew",
		Registry:  registry,
	})
	breaker := memory.NewMemoryBreaker(memory.WithMetrics(mx))
	tracer := tracing.NewOTelTracer(tracing.Config{ServiceName: "skew"})

	var locker lock.Locker
	if redisAddr != "" {
		locker = redislock.NewRedisLocker(redis.NewClient(&redis.Options{Addr: redisAddr}))
	}

	var history store.Store
	if mysqlDSN != "" {
		db, err := sql.Open("mysql", mysqlDSN)
		if err != nil {
			return fmt.Errorf("open run history: %w", err)
		}
		defer db.Close()
		if err := db.PingContext(ctx); err != nil {
			return fmt.Errorf("connect run history: %w", err)
		}
		history = mysqlstore.New(db)
	}

	runner := skew.NewRunner(
		skew.WithRunnerConfig(cfg),
		skew.WithRunnerLocker(locker),
		skew.WithRunnerBreaker(breaker),
		skew.WithRunnerEventBus(bus),
		skew.WithRunnerMetrics(mx),
		skew.WithRunnerTracer(tracer),
	)

	watchdog := monitor.NewMonitor(runner,
		monitor.WithEventBus(bus),
		monitor.WithMetrics(mx),
		monitor.WithConfig(monitor.Config{
			Interval:           cfg.MonitorInterval,
			AmbiguousTolerance: cfg.AmbiguousTolerance,
		}),
	)

	reportOpts := []report.Option{
		report.WithAddr(reportAddr),
		report.WithRun(runner),
		report.WithMonitor(watchdog),
		report.WithRegistry(registry),
	}
	if history != nil {
		reportOpts = append(reportOpts, report.WithHistory(history))
	}
	server := report.NewReportServer(reportOpts...)
	go func() {
		if err := server.Start(); err != nil {
			fmt.Fprintln(os.Stderr, "report server:", err)
		}
	}()

	var record *store.Run
	if history != nil {
		record = store.NewRun(runner.RunID(), cfg.MemberServiceURL, cfg.AccountServiceURL, cfg.Clients)
		if err := history.CreateRun(ctx, record); err != nil {
			return fmt.Errorf("record run start: %w", err)
		}
	}

	if err := runner.Start(ctx); err != nil {
		return err
	}
	if err := watchdog.Start(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "monitor:", err)
	}

	if record != nil {
		eligible := 0
		for _, c := range runner.Clients() {
			if c.Eligible() {
				eligible++
			}
		}
		record.EligibleClients = eligible
		history.UpdateRun(ctx, record)
	}

	fmt.Printf("run %s started: %d clients, report on %s\n", runner.RunID(), cfg.Clients, reportAddr)

	// Run until the duration elapses or an interrupt arrives.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	if duration > 0 {
		select {
		case <-quit:
		case <-time.After(duration):
		}
	} else {
		<-quit
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	watchdog.Stop()
	snapshot := runner.Stop(stopCtx)
	clean := runner.Clean()
	server.Stop(stopCtx)

	if record != nil {
		record.Finish(snapshot, clean)
		if err := history.UpdateRun(stopCtx, record); err != nil {
			fmt.Fprintln(os.Stderr, "record run finish:", err)
		}
		for _, v := range runner.Verdict().Violations() {
			if err := history.CreateViolation(stopCtx, store.NewViolationRecord(runner.RunID(), v)); err != nil {
				fmt.Fprintln(os.Stderr, "record violation:", err)
			}
		}
	}

	printVerdict(runner.RunID(), snapshot, clean)
	if !clean {
		os.Exit(1)
	}
	return nil
}

func printVerdict(runID string, s skew.VerdictSnapshot, clean bool) {
	verdict := "CLEAN"
	if !clean {
		verdict = "NOT CLEAN"
	}
	fmt.Printf("\nrun %s: %s\n", runID, verdict)
	fmt.Printf("  probes:    %d\n", s.TotalProbes)
	fmt.Printf("  blocked:   %d\n", s.BlockedCount)
	fmt.Printf("  violated:  %d\n", s.ViolatedCount)
	fmt.Printf("  ambiguous: %d\n", s.AmbiguousCount)
}

func runScenario(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	var chromeOpts []scenario.ChromeOption
	if headful {
		chromeOpts = append(chromeOpts, scenario.WithHeadful())
	}
	surface, err := scenario.NewChromeSurface(ctx, chromeOpts...)
	if err != nil {
		return err
	}
	defer surface.Close()

	scenarioCfg := scenario.DefaultConfig()
	if baseURL != "" {
		scenarioCfg.BaseURL = baseURL
	}

	sc := scenario.New(surface,
		scenario.WithConfig(scenarioCfg),
		scenario.WithTracer(tracing.NewOTelTracer(tracing.Config{ServiceName: "skew-scenario"})),
	)

	result, runErr := sc.Run(ctx)

	out, _ := json.MarshalIndent(result, "", "  ")
	fmt.Println(string(out))

	if runErr != nil {
		return runErr
	}
	return nil
}
