package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"k8s.io/klog/v2"

	dvfs "github.com/BinSquare/dvfs-go"
	"github.com/BinSquare/dvfs-go/internal/exporter"
)

type optionFlags struct {
	jsonOutput  bool
	rowsOutput  bool
	chip        string
	catalogPath string
	configPath  string
	workers     int
	serveAddr   string
	ladderPath  string
	refresh     time.Duration
	help        bool
}

func main() {
	code := run(os.Args[1:])
	klog.Flush()
	os.Exit(code)
}

// run executes the command line and returns the process exit code.
func run(args []string) int {
	fs := flag.NewFlagSet("dvfs-go", flag.ContinueOnError)
	opts, files, err := readArguments(fs, args)
	if err != nil {
		return 2
	}

	if opts.help {
		printUsage(fs)
		return 0
	}

	cfg, err := buildConfig(opts)
	if err != nil {
		klog.ErrorS(err, "Invalid configuration")
		return 1
	}

	catalog, err := dvfs.LoadCatalog(cfg.CatalogPath)
	if err != nil {
		klog.ErrorS(err, "Failed to load chip catalog", "path", cfg.CatalogPath)
		return 1
	}
	klog.V(2).InfoS("Loaded chip catalog", "chips", catalog.Len())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case <-sigChan:
			klog.InfoS("Received signal, stopping")
			cancel()
		case <-ctx.Done():
		}
	}()

	parser := dvfs.NewParserWithCatalog(cfg, catalog)

	sources := make([]dvfs.Source, 0, len(files))
	for _, f := range files {
		sources = append(sources, dvfs.FileSource{Path: f})
	}
	if len(sources) == 0 {
		sources = append(sources, dvfs.NewCommandSource(cfg))
	}

	if opts.serveAddr != "" {
		if len(sources) > 1 {
			klog.ErrorS(errors.New("too many sources"), "The exporter serves a single dump", "sources", len(sources))
			return 1
		}
		if err := exporter.Serve(ctx, opts.serveAddr, opts.refresh, parser, sources[0]); err != nil {
			klog.ErrorS(err, "Metrics server failed")
			return 1
		}
		return 0
	}

	var ladder dvfs.Ladder
	if opts.ladderPath != "" {
		ladderSource := dvfs.Source(dvfs.FileSource{Path: opts.ladderPath})
		if opts.ladderPath == liveLadder {
			ladderSource = dvfs.NewPowermetricsSource(cfg)
		}
		ladder, err = dvfs.ReadLadder(ctx, ladderSource)
		if err != nil {
			klog.ErrorS(err, "Failed to read frequency ladder", "source", ladderSource.Name())
			return 1
		}
	}

	if failed := printResults(parser.RunSources(ctx, sources...), opts, ladder); failed {
		return 1
	}
	return 0
}

const liveLadder = "live"

func readArguments(fs *flag.FlagSet, args []string) (optionFlags, []string, error) {
	opts := optionFlags{}

	fs.BoolVar(&opts.jsonOutput, "json", false, "output decoded points in JSON format")
	fs.BoolVar(&opts.rowsOutput, "rows", false, "output per-domain rows instead of the text report")
	fs.StringVar(&opts.chip, "chip", "", "chip class to use instead of the one found in the dump (e.g. T8103)")
	fs.StringVar(&opts.catalogPath, "catalog", "", "YAML chip catalog merged over the bundled one")
	fs.StringVar(&opts.configPath, "config", "", "YAML configuration file")
	fs.IntVar(&opts.workers, "workers", 0, "entries decoded in parallel per document (default GOMAXPROCS)")
	fs.StringVar(&opts.serveAddr, "serve", "", "serve Prometheus metrics on this address instead of printing (e.g. :9101)")
	fs.StringVar(&opts.ladderPath, "ladder", "", "powermetrics capture whose frequency steps the report follows; \"live\" samples powermetrics (needs root)")
	fs.DurationVar(&opts.refresh, "refresh", 30*time.Second, "refresh interval when serving metrics")
	fs.BoolVar(&opts.help, "help", false, "show help message")
	klog.InitFlags(fs)

	if err := fs.Parse(args); err != nil {
		return optionFlags{}, nil, err
	}
	return opts, fs.Args(), nil
}

func printUsage(fs *flag.FlagSet) {
	fmt.Println("dvfs-go CLI tool")
	fmt.Println("Usage: dvfs-go [options] [dump.ioreg ...]")
	fmt.Println("Without files the live registry is read through ioreg.")
	fmt.Println("")
	fmt.Println("Options:")
	fs.SetOutput(os.Stdout)
	fs.PrintDefaults()
}

func buildConfig(opts optionFlags) (dvfs.Config, error) {
	var cfg dvfs.Config
	if opts.configPath != "" {
		loaded, err := dvfs.LoadConfig(opts.configPath)
		if err != nil {
			return dvfs.Config{}, err
		}
		cfg = loaded
	}

	if opts.chip != "" {
		cfg.Chip = opts.chip
	}
	if opts.catalogPath != "" {
		cfg.CatalogPath = opts.catalogPath
	}
	if opts.workers > 0 {
		cfg.Workers = opts.workers
	}
	if opts.refresh <= 0 {
		return dvfs.Config{}, fmt.Errorf("refresh interval must be positive, got %v", opts.refresh)
	}

	return cfg, nil
}

// printResults drains the stream and reports whether any document was unreadable.
func printResults(stream *dvfs.Stream, opts optionFlags, ladder dvfs.Ladder) bool {
	failed := false
	results, errs := stream.Results, stream.Errors

	for results != nil || errs != nil {
		select {
		case result, ok := <-results:
			if !ok {
				results = nil
				continue
			}
			printResult(result, opts, ladder)
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			failed = true
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
	}

	return failed
}

func printResult(result dvfs.Result, opts optionFlags, ladder dvfs.Ladder) {
	for _, err := range result.EntryErrors {
		klog.InfoS("No data for domain", "source", result.Source, "err", err)
	}

	if opts.jsonOutput {
		var payload any = result
		switch {
		case ladder != nil:
			payload = ladderPayload(result, ladder)
		case opts.rowsOutput:
			payload = rowsPayload(result)
		}
		data, err := json.Marshal(payload)
		if err != nil {
			klog.ErrorS(err, "Failed to encode result", "source", result.Source)
			return
		}
		fmt.Println(string(data))
		return
	}

	if result.Source != "" {
		fmt.Printf("== %s ==\n", result.Source)
	}
	if result.Empty() {
		fmt.Println("No chip identity or voltage data found.")
		return
	}
	if len(result.Points) == 0 {
		fmt.Println("No voltage data found.")
	}

	if ladder != nil {
		if err := dvfs.RenderLadder(os.Stdout, result, dvfs.Align(result.Points, ladder)); err != nil {
			klog.ErrorS(err, "Failed to write report", "source", result.Source)
		}
		return
	}

	if opts.rowsOutput {
		table := dvfs.Rows(result.Points)
		for _, d := range dvfs.Domains {
			fmt.Printf("%s: %d points\n", d, len(table[d]))
			for _, row := range table[d] {
				fmt.Printf("  %-14s %s\n", row.FrequencyLabel, row.VoltageLabel)
			}
		}
		return
	}

	if err := dvfs.RenderReport(os.Stdout, result); err != nil {
		klog.ErrorS(err, "Failed to write report", "source", result.Source)
	}
}

func rowsPayload(result dvfs.Result) map[string]any {
	table := dvfs.Rows(result.Points)
	rows := make(map[string][]dvfs.Row, len(dvfs.Domains))
	for _, d := range dvfs.Domains {
		rows[d.String()] = append([]dvfs.Row{}, table[d]...)
	}
	return map[string]any{
		"source":    result.Source,
		"chip":      result.Chip,
		"cpu_model": result.CPUModel,
		"rows":      rows,
	}
}

func ladderPayload(result dvfs.Result, ladder dvfs.Ladder) map[string]any {
	return map[string]any{
		"source":    result.Source,
		"chip":      result.Chip,
		"cpu_model": result.CPUModel,
		"steps":     dvfs.Align(result.Points, ladder),
	}
}
