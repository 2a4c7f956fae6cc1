package main

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"srx-config-parser/internal/config"
	"srx-config-parser/internal/parser"
	"srx-config-parser/pkg/wellknown"
)

var (
	configFile     string
	outFile        string
	outDir         string
	reportFile     string
	workers        int
	resolve        bool
	logLevel       string
	logFile        string
	lookupProvider string
	protocolsFile  string
	icmpFile       string
	defaultsFile   string
	lookupDB       string
)

func newRootCmd() *cobra.Command {
	defaults := config.Default()
	rootCmd := &cobra.Command{
		Use:   "srxparse <config.xml>...",
		Short: "Parse JunosOS SRX XML configurations into typed objects",
		Long: `srxparse reads SRX configurations exported as XML, extracts addresses,
	zones, interfaces, routes, applications, schedulers, policies and NAT, infers
	which interface every static route leaves through, and writes the result as JSON.`,
		Args:         cobra.MinimumNArgs(1),
		RunE:         run,
		SilenceUsage: true,
	}

	rootCmd.Flags().StringVar(&configFile, "config", "", "YAML settings file; flags override its values")
	rootCmd.Flags().StringVar(&outFile, "out", "", "Output JSON file (single input only)")
	rootCmd.Flags().StringVar(&outDir, "out-dir", defaults.OutDir, "Directory for <input>.json outputs")
	rootCmd.Flags().StringVar(&reportFile, "report", "", "CSV file listing every incident")
	rootCmd.Flags().BoolVar(&resolve, "resolve", false, "Add the address ranges of every zone-pair rule to the output")
	rootCmd.Flags().IntVarP(&workers, "workers", "w", defaults.Workers, "Number of files parsed concurrently")
	rootCmd.Flags().StringVar(&logLevel, "log-level", defaults.LogLevel, "Log level (DEBUG, INFO, WARN, ERROR)")
	rootCmd.Flags().StringVar(&logFile, "log-file", "", "Log file path (default: stderr)")
	rootCmd.Flags().StringVar(&lookupProvider, "lookup-provider", defaults.Lookup.Provider, "Reference data provider: 'file' or 'mariadb'")
	rootCmd.Flags().StringVar(&protocolsFile, "protocols", "", "Protocol and port names CSV (default: embedded)")
	rootCmd.Flags().StringVar(&icmpFile, "icmp", "", "ICMP type and code names CSV (default: embedded)")
	rootCmd.Flags().StringVar(&defaultsFile, "defaults", "", "Predefined junos-* applications XML (default: embedded)")
	rootCmd.Flags().StringVar(&lookupDB, "db", "", "Database connection string (for 'mariadb' provider)")

	return rootCmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	settings, err := resolveSettings(cmd)
	if err != nil {
		return err
	}
	if outFile != "" && len(args) > 1 {
		return fmt.Errorf("--out accepts a single input, got %d", len(args))
	}
	jobList, err := planJobs(args, outFile, settings)
	if err != nil {
		return err
	}

	// --- 1. Setup Logging ---
	logger := setupLogger(settings.LogLevel, settings.LogFile)
	slog.SetDefault(logger)
	slog.Info("Starting SRX configuration parser", "inputs", len(args), "workers", settings.Workers)
	startTime := time.Now()

	// --- 2. Load Reference Data ---
	slog.Info("Loading reference data...", "provider", settings.Lookup.Provider)
	lookup, err := loadLookup(settings.Lookup)
	if err != nil {
		slog.Error("Failed to load reference data", "error", err)
		return err
	}
	protocols, ports, icmpTypes, icmpCodes := lookup.Sizes()
	slog.Info("Reference data loaded", "protocols", protocols, "ports", ports, "icmp_types", icmpTypes, "icmp_codes", icmpCodes)

	// --- 3. Start Writer and Workers ---
	jobs := make(chan job, len(args))
	results := make(chan fileResult, len(args))
	var wg sync.WaitGroup

	var failures []error
	var writerWg sync.WaitGroup
	writerWg.Add(1)
	go resultWriter(&writerWg, results, settings.Report, &failures)

	n := min(settings.Workers, len(args))
	slog.Debug("Starting parser workers", "count", n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go worker(&wg, i+1, lookup, jobs, results)
	}

	// --- 4. Queue Inputs ---
	for _, j := range jobList {
		jobs <- j
	}
	close(jobs)

	wg.Wait()
	close(results)
	writerWg.Wait()

	slog.Info("Parsing complete", "duration", time.Since(startTime), "failed", len(failures))
	return errors.Join(failures...)
}

// resolveSettings layers explicitly set flags over the config file.
func resolveSettings(cmd *cobra.Command) (config.Config, error) {
	cfg := config.Default()
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return config.Config{}, err
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	overrides := []struct {
		name   string
		target *string
		value  string
	}{
		{"out-dir", &cfg.OutDir, outDir},
		{"report", &cfg.Report, reportFile},
		{"log-level", &cfg.LogLevel, logLevel},
		{"log-file", &cfg.LogFile, logFile},
		{"lookup-provider", &cfg.Lookup.Provider, lookupProvider},
		{"protocols", &cfg.Lookup.Protocols, protocolsFile},
		{"icmp", &cfg.Lookup.ICMP, icmpFile},
		{"defaults", &cfg.Lookup.Defaults, defaultsFile},
		{"db", &cfg.Lookup.DSN, lookupDB},
	}
	for _, o := range overrides {
		if flags.Changed(o.name) {
			*o.target = o.value
		}
	}
	if flags.Changed("workers") {
		cfg.Workers = workers
	}
	if flags.Changed("resolve") {
		cfg.Resolve = resolve
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// planJobs assigns an output file to every input; explicit is used when
// set. Two inputs writing the same file are rejected.
func planJobs(args []string, explicit string, settings config.Config) ([]job, error) {
	jobs := make([]job, 0, len(args))
	owners := make(map[string]string, len(args))
	for _, path := range args {
		out := explicit
		if out == "" {
			out = outputPath(settings.OutDir, path)
		}
		key := filepath.Clean(out)
		if prev, ok := owners[key]; ok {
			return nil, fmt.Errorf("inputs %s and %s both write %s", prev, path, out)
		}
		owners[key] = path
		jobs = append(jobs, job{path: path, out: out, resolve: settings.Resolve})
	}
	return jobs, nil
}

func outputPath(dir, input string) string {
	base := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	return filepath.Join(dir, base+".json")
}

func setupLogger(level, logFilePath string) *slog.Logger {
	var logWriter io.Writer = os.Stderr
	if logFilePath != "" {
		f, err := os.OpenFile(logFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err == nil {
			logWriter = f
		}
		// The logger does not exist yet, so a failure silently falls back to stderr.
	}

	var lvl slog.Level
	switch strings.ToUpper(level) {
	case "DEBUG":
		lvl = slog.LevelDebug
	case "INFO":
		lvl = slog.LevelInfo
	case "WARN":
		lvl = slog.LevelWarn
	case "ERROR":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	return slog.New(slog.NewJSONHandler(logWriter, &slog.HandlerOptions{Level: lvl}))
}

func loadLookup(cfg config.LookupConfig) (*wellknown.Lookup, error) {
	switch cfg.Provider {
	case config.ProviderFile:
		return wellknown.LoadFiles(wellknown.Sources{
			Protocols: cfg.Protocols,
			ICMP:      cfg.ICMP,
			Defaults:  cfg.Defaults,
		})
	case config.ProviderMariaDB:
		if cfg.DSN == "" {
			return nil, fmt.Errorf("database connection string must be provided for mariadb provider")
		}
		return wellknown.LoadMariaDB(cfg.DSN, cfg.Defaults)
	default:
		return nil, fmt.Errorf("unknown lookup provider: %s", cfg.Provider)
	}
}

type job struct {
	path    string
	out     string
	resolve bool
}

type fileResult struct {
	job    job
	parser *parser.JunosParser
	err    error
}

// worker parses whole files; each file runs through every stage on one
// goroutine, only distinct files proceed in parallel.
func worker(wg *sync.WaitGroup, id int, lookup *wellknown.Lookup, jobs <-chan job, results chan<- fileResult) {
	defer wg.Done()
	slog.Debug("Worker started", "id", id)
	for j := range jobs {
		results <- parseFile(lookup, j)
	}
	slog.Debug("Worker finished", "id", id)
}

func parseFile(lookup *wellknown.Lookup, j job) fileResult {
	logger := slog.Default().With("file", j.path)
	f, err := os.Open(j.path)
	if err != nil {
		return fileResult{job: j, err: fmt.Errorf("failed to open configuration: %w", err)}
	}
	defer f.Close()

	p := parser.NewJunosParser(lookup, logger)
	if err := p.Parse(f); err != nil {
		return fileResult{job: j, err: fmt.Errorf("%s: %w", j.path, err)}
	}
	if err := writeExport(j.out, j.path, p, j.resolve); err != nil {
		return fileResult{job: j, err: fmt.Errorf("%s: %w", j.path, err)}
	}
	return fileResult{job: j, parser: p}
}

var reportHeader = []string{"file", "kind", "name", "zone", "owner", "line", "severity", "title", "message"}

// resultWriter logs a summary per file and, when reportPath is set, writes
// every incident to one CSV file.
func resultWriter(wg *sync.WaitGroup, results <-chan fileResult, reportPath string, failures *[]error) {
	defer wg.Done()

	var (
		reportOut *os.File
		report    *csv.Writer
	)
	if reportPath != "" {
		f, err := os.Create(reportPath)
		if err != nil {
			slog.Error("Failed to create report file", "path", reportPath, "error", err)
			*failures = append(*failures, err)
		} else {
			reportOut = f
			report = csv.NewWriter(f)
			report.Write(reportHeader)
		}
	}

	for result := range results {
		if result.err != nil {
			slog.Error("Failed to parse configuration", "file", result.job.path, "error", result.err)
			*failures = append(*failures, result.err)
			continue
		}
		findings := result.parser.Findings()
		logSummary(result.job, result.parser, findings)
		if report == nil {
			continue
		}
		for _, f := range findings {
			report.Write([]string{
				result.job.path,
				f.Kind,
				f.Name,
				f.Zone,
				f.Owner,
				strconv.Itoa(f.Incident.Line),
				f.Incident.Severity.String(),
				f.Incident.Title,
				f.Incident.Message,
			})
		}
	}

	if report != nil {
		// Write errors are sticky and surface here.
		report.Flush()
		err := report.Error()
		if closeErr := reportOut.Close(); err == nil {
			err = closeErr
		}
		if err != nil {
			slog.Error("Failed to write report file", "path", reportPath, "error", err)
			*failures = append(*failures, fmt.Errorf("failed to write report: %w", err))
		}
	}
	slog.Debug("Result writer finished")
}

func logSummary(j job, p *parser.JunosParser, findings []parser.Finding) {
	attrs := []any{"file", j.path, "output", j.out, "version", p.Version, "objects", p.Objects.Len(), "global_rules", len(p.GlobalRules)}
	for kind, count := range p.Objects.Counts() {
		attrs = append(attrs, string(kind), count)
	}
	for severity, count := range parser.SeverityCounts(findings) {
		attrs = append(attrs, "incidents_"+strings.ToLower(severity.String()), count)
	}
	slog.Info("Configuration summary", attrs...)
	if ambiguous := p.Zones.Ambiguous(); len(ambiguous) > 0 {
		slog.Warn("Address names defined in several zones", "file", j.path, "names", ambiguous)
	}
}
