// Command fredpull downloads FRED series and writes raw and processed CSV files.
//
//	fredpull [-series name|all] [-out dir] [-cutoff YYYY-MM-DD] [-list] [-config file]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"fredcli/internal/app"
	"fredcli/internal/config"
	"fredcli/internal/infrastructure"
	"fredcli/internal/operations"
	"fredcli/internal/validation"
	"fredcli/pkg/contracts"
	"fredcli/pkg/contracts/domain"
)

const serviceName = "fredpull"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

type options struct {
	series     string
	outDir     string
	cutoff     string
	list       bool
	configFile string
	version    bool
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	fs := flag.NewFlagSet(serviceName, flag.ContinueOnError)
	fs.SetOutput(stderr)

	opts := &options{}
	fs.StringVar(&opts.series, "series", "", `series to fetch, or "all" (default from configuration, jtsjol)`)
	fs.StringVar(&opts.outDir, "out", "", "output directory (default from configuration, data)")
	fs.StringVar(&opts.cutoff, "cutoff", "", "override the series cutoff, YYYY-MM-DD")
	fs.BoolVar(&opts.list, "list", false, "list the known series and exit")
	fs.StringVar(&opts.configFile, "config", "", "YAML configuration file")
	fs.BoolVar(&opts.version, "version", false, "print the version and exit")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	if opts.cutoff != "" {
		if _, err := time.Parse(config.CutoffLayout, opts.cutoff); err != nil {
			return nil, fmt.Errorf("invalid -cutoff %q: want YYYY-MM-DD", opts.cutoff)
		}
	}
	return opts, nil
}

func loadConfig(opts *options) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if opts.configFile != "" {
		cfg, err = config.LoadFile(opts.configFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	if opts.outDir != "" {
		cfg.Paths.OutputDir = opts.outDir
	}
	if opts.series == "" {
		opts.series = cfg.Pipeline.DefaultSeries
	}
	return cfg, nil
}

// run executes the command and returns the process exit code
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	opts, err := parseFlags(args, stderr)
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}
	if opts.version {
		fmt.Fprintln(stdout, contracts.GetVersionString())
		return 0
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		fmt.Fprintf(stderr, "Error loading configuration: %v\n", err)
		return 1
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(stderr, "Error initializing logger: %v\n", err)
		return 1
	}

	if opts.list {
		registry, err := cfg.Registry()
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		listSeries(stdout, registry)
		return 0
	}

	rt, err := app.NewRuntime(cfg, serviceName, logger)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer rt.Close(context.Background())

	series, err := rt.Registry.Resolve(opts.series)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	if opts.cutoff != "" {
		for i := range series {
			series[i].Cutoff = opts.cutoff
		}
	}

	validator := validation.NewFileValidator(logger)
	if err := validator.ValidateOutputDirectory(rt.Paths.OutputDir); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	logger.InfoContext(ctx, "Starting fredpull",
		slog.String("version", contracts.Version),
		slog.String("series", opts.series),
		slog.String("output_dir", rt.Paths.OutputDir))

	fmt.Fprintln(stdout, "Fetching CSV from FRED...")

	var reports []*domain.RunReport
	if len(series) == 1 {
		var report *domain.RunReport
		report, err = rt.Manager.Run(ctx, series[0])
		reports = []*domain.RunReport{report}
	} else {
		reports, err = rt.Manager.RunAll(ctx, series)
	}

	for _, report := range reports {
		printReport(stdout, stderr, validator, report, len(reports) > 1)
	}
	if err != nil {
		printFailure(stderr, err)
	}
	return operations.ExitCode(err)
}

func listSeries(w io.Writer, registry *config.SeriesRegistry) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tFRED ID\tCUTOFF\tDESCRIPTION")
	for _, s := range registry.All() {
		cutoff := s.Cutoff
		if cutoff == "" {
			cutoff = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", s.Name, s.SeriesID, cutoff, s.Description)
	}
	tw.Flush()
}

func printReport(stdout, stderr io.Writer, validator *validation.FileValidator, report *domain.RunReport, labelled bool) {
	if report == nil {
		return
	}
	prefix := ""
	if labelled {
		prefix = "[" + report.Series + "] "
	}

	if report.RawPath != "" {
		fmt.Fprintf(stdout, "%sWrote raw CSV to: %s\n", prefix, report.RawPath)
	}
	if !report.Succeeded() {
		return
	}
	if report.ProcessedPath != "" {
		if err := validator.ValidateCSVFile(report.ProcessedPath); err != nil {
			fmt.Fprintf(stderr, "%sWarning: %v\n", prefix, err)
		}
		fmt.Fprintf(stdout, "%sWrote processed CSV to: %s\n", prefix, report.ProcessedPath)
		fmt.Fprintf(stdout, "%sRows in processed CSV: %d\n", prefix, report.Rows)
	}
	if report.WorkbookPath != "" {
		if err := validator.ValidateWorkbookFile(report.WorkbookPath); err != nil {
			fmt.Fprintf(stderr, "%sWarning: %v\n", prefix, err)
		}
		fmt.Fprintf(stdout, "%sWrote workbook to: %s\n", prefix, report.WorkbookPath)
	}
}

// printFailure writes the error and, for unusable downloads, what was actually received
func printFailure(stderr io.Writer, err error) {
	fmt.Fprintf(stderr, "Error: %v\n", err)

	var opErr *operations.OperationError
	if !errors.As(err, &opErr) || opErr.Type != operations.ErrorTypeTransform {
		return
	}
	if cols, ok := opErr.Context["columns"]; ok {
		fmt.Fprintf(stderr, "Columns found: %v\n", cols)
	}
	if preview, ok := opErr.Context["preview"].(string); ok && preview != "" {
		fmt.Fprintf(stderr, "Response preview:\n%s\n", preview)
	}
}
