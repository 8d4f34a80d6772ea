package main

import (
	"context"
	"fmt"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/briandowns/spinner"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/TFMV/driftscan/api"
	"github.com/TFMV/driftscan/config"
	"github.com/TFMV/driftscan/logger"
	"github.com/TFMV/driftscan/metrics"
	"github.com/TFMV/driftscan/pkg/compare"
	"github.com/TFMV/driftscan/pkg/core"
	"github.com/TFMV/driftscan/pkg/diff"
	"github.com/TFMV/driftscan/pkg/store"
	"github.com/TFMV/driftscan/pkg/writers"
	"github.com/TFMV/driftscan/report"
	"github.com/TFMV/driftscan/version"
)

// newCompareCommand creates the compare subcommand.
func newCompareCommand() *cobra.Command {
	var (
		configPath string
		cfg        config.Config
	)

	cmd := &cobra.Command{
		Use:   "compare [flags] COLLECTION_A COLLECTION_B",
		Short: "Compare two collections and stream the differences to a file",
		Long: `The compare command performs a full unfiltered traversal of both
collections. Pass 1 scans collection A, resolves each batch's peers in
collection B, and diffs matched pairs. Pass 2 scans collection B and reports
documents pass 1 never saw.

Every document needing attention produces exactly one output record;
documents equal on both sides produce none. Any mid-run failure aborts the
run: output written so far stays on disk as an explicitly partial result.`,
		Args: cobra.RangeArgs(0, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath != "" {
				loaded, err := config.Load(configPath)
				if err != nil {
					return core.Failf(core.FailConfig, "loading %s: %v", configPath, err)
				}
				merged := *loaded
				overrideFromFlags(cmd, &merged, &cfg)
				cfg = merged
			}
			if len(args) == 2 {
				cfg.CollectionA = args[0]
				cfg.CollectionB = args[1]
			}

			cfg.ApplyDefaults(time.Now())
			if err := cfg.Validate(); err != nil {
				return core.Fail(core.FailConfig, err)
			}
			return runCompare(&cfg)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "YAML configuration file (flags override it)")
	cmd.Flags().StringVar(&cfg.Address, "host", "", "Store base URL (e.g. http://localhost:9200)")
	cmd.Flags().StringVar(&cfg.DocType, "doc-type", "", "Document type tag used in store paths")
	cmd.Flags().IntVar(&cfg.PageSize, "page-size", 0, "Documents per scroll batch")
	cmd.Flags().StringVar(&cfg.Lease, "lease", "", "Scroll lease duration (e.g. 2m, 30s, 1h)")
	cmd.Flags().StringSliceVar(&cfg.ExcludePaths, "exclude", nil, "Field path to exclude from comparison (repeatable)")
	cmd.Flags().StringVarP(&cfg.OutputPath, "output", "o", "", "Output path (defaults to a generated name)")
	cmd.Flags().StringVarP(&cfg.OutputFormat, "format", "f", "", "Output format (csv, json, arrow, parquet)")
	cmd.Flags().StringVar(&cfg.ReportPath, "report", "", "Write a run report to this path (.json or .html)")
	cmd.Flags().StringVar(&cfg.StatusAddr, "status-addr", "", "Serve the live status API on this address")

	return cmd
}

// overrideFromFlags copies explicitly-set flag values over a file-loaded
// configuration.
func overrideFromFlags(cmd *cobra.Command, dst, flags *config.Config) {
	if cmd.Flags().Changed("host") {
		dst.Address = flags.Address
	}
	if cmd.Flags().Changed("doc-type") {
		dst.DocType = flags.DocType
	}
	if cmd.Flags().Changed("page-size") {
		dst.PageSize = flags.PageSize
	}
	if cmd.Flags().Changed("lease") {
		dst.Lease = flags.Lease
	}
	if cmd.Flags().Changed("exclude") {
		dst.ExcludePaths = flags.ExcludePaths
	}
	if cmd.Flags().Changed("output") {
		dst.OutputPath = flags.OutputPath
	}
	if cmd.Flags().Changed("format") {
		dst.OutputFormat = flags.OutputFormat
	}
	if cmd.Flags().Changed("report") {
		dst.ReportPath = flags.ReportPath
	}
	if cmd.Flags().Changed("status-addr") {
		dst.StatusAddr = flags.StatusAddr
	}
}

// runCompare wires the run together and executes it.
func runCompare(cfg *config.Config) error {
	logger.InitLogger()
	defer logger.Sync()
	log := logger.GetLogger()

	// A requested stop takes effect at the next page boundary.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tracker := metrics.NewTracker()

	client, err := store.NewClient(store.Options{
		Address:  cfg.Address,
		DocType:  cfg.DocType,
		PageSize: cfg.PageSize,
		Lease:    cfg.Lease,
		Logger:   log,
	})
	if err != nil {
		return core.Fail(core.FailConfig, err)
	}

	differ, err := diff.New(cfg.ExcludePaths)
	if err != nil {
		return core.Fail(core.FailConfig, err)
	}

	sink, err := writers.DefaultFactory.Create(writers.Config{
		Format:     cfg.OutputFormat,
		Path:       cfg.OutputPath,
		FlushEvery: cfg.PageSize,
	})
	if err != nil {
		return err
	}

	if cfg.StatusAddr != "" {
		srv := api.NewServer(api.ServerOptions{Addr: cfg.StatusAddr}, tracker)
		go func() {
			if err := srv.Start(); err != nil {
				log.Warn("status server stopped", zap.Error(err))
			}
		}()
		defer srv.Shutdown()
	}

	fmt.Printf("Comparing %q with %q on %s\n", cfg.CollectionA, cfg.CollectionB, cfg.Address)
	fmt.Printf("Output will be saved to: %s\n", cfg.OutputPath)

	stopProgress := startProgress(tracker)

	comparer := compare.New(cfg, client, differ, sink, log, tracker)
	summary, runErr := comparer.Run(ctx)

	stopProgress()

	// The sink closes on every exit path so rows written before an abort
	// stay durable on disk.
	if closeErr := sink.Close(); closeErr != nil && runErr == nil {
		runErr = closeErr
	}

	printSummary(summary, cfg, runErr)

	if cfg.ReportPath != "" {
		if err := saveReport(summary, cfg); err != nil {
			log.Warn("failed to save run report", zap.Error(err))
		}
	}

	return runErr
}

// startProgress runs a spinner whose suffix tracks live counters. Returns a
// stop function.
func startProgress(tracker *metrics.Tracker) func() {
	spin := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	spin.Suffix = " scanning..."
	spin.Start()

	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(500 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				p := tracker.Snapshot()
				spin.Suffix = fmt.Sprintf(" %s | A %d/%d B %d/%d | batch %dms | mem %.1fMB (peak %.1fMB)",
					p.Phase, p.ScannedA, p.TotalA, p.ScannedB, p.TotalB,
					p.LastBatchMillis, p.MemAllocMB, p.MemPeakMB)
			}
		}
	}()

	return func() {
		close(done)
		spin.Stop()
	}
}

// printSummary reports the final counts, flagging partial results.
func printSummary(summary metrics.RunSummary, cfg *config.Config, runErr error) {
	if runErr != nil {
		fmt.Printf("\nRun aborted: results in %s are PARTIAL and incomplete.\n", cfg.OutputPath)
	} else {
		fmt.Printf("\nComparison complete. Results saved in %s\n", cfg.OutputPath)
	}
	fmt.Printf("  Documents scanned in %s: %d\n", cfg.CollectionA, summary.ScannedA)
	fmt.Printf("  Documents scanned in %s: %d\n", cfg.CollectionB, summary.ScannedB)
	fmt.Printf("  Field differences:  %d\n", summary.FieldDifferences)
	fmt.Printf("  Missing in one:     %d\n", summary.MissingInOne)
	fmt.Printf("  Total records:      %d\n", summary.Outcomes())
	fmt.Printf("Total execution time: %.2f seconds\n", summary.Duration.Seconds())
}

// saveReport writes the run report, picking the generator by extension.
func saveReport(summary metrics.RunSummary, cfg *config.Config) error {
	run := report.RunReport{
		Summary: summary,
		Config: report.ConfigEcho{
			Address:      cfg.Address,
			CollectionA:  cfg.CollectionA,
			CollectionB:  cfg.CollectionB,
			DocType:      cfg.DocType,
			PageSize:     cfg.PageSize,
			Lease:        cfg.Lease,
			ExcludePaths: cfg.ExcludePaths,
			OutputPath:   cfg.OutputPath,
			OutputFormat: cfg.OutputFormat,
		},
		Version:     version.Version,
		GeneratedAt: time.Now().UTC(),
	}

	var gen report.Generator
	if strings.EqualFold(filepath.Ext(cfg.ReportPath), ".html") {
		gen = &report.HTMLGenerator{}
	} else {
		gen = &report.JSONGenerator{}
	}
	return gen.SaveToFile(run, cfg.ReportPath)
}
