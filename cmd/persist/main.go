package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"

	"github.com/tailored-agentic-units/persist/codec"
	"github.com/tailored-agentic-units/persist/observability"
	"github.com/tailored-agentic-units/persist/persistence"
)

const usage = `Usage: persist [flags] <command> [args]

Commands:
  dump        print the service's backing file as JSON
  keys        list the keys stored for -unit
  get KEY     print the value of KEY for -unit
  clear KEY   remove KEY from -unit and save
`

func main() {
	var (
		configFile = flag.String("config", "", "Path to persistence config JSON file")
		path       = flag.String("path", "", "Storage directory (overrides config)")
		service    = flag.String("service", "", "Service name (overrides config)")
		unit       = flag.String("unit", "", "Unit name for keys, get and clear")
		verbose    = flag.Bool("verbose", false, "Enable verbose logging to stderr")
		metrics    = flag.Bool("metrics", false, "Print collected metrics to stderr on exit")
	)
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(1)
	}

	cfg := persistence.DefaultConfig()
	if *configFile != "" {
		loaded, err := persistence.LoadConfig(*configFile)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		cfg = *loaded
	}
	if *path != "" {
		cfg.Path = *path
	}
	if *service != "" {
		cfg.Service = *service
	}

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	observability.Register("stderr", func() observability.Observer {
		return observability.NewSlogObserver(logger)
	})
	if cfg.Observer == "" {
		cfg.Observer = "stderr"
	}

	var opts []persistence.Option
	reg := prometheus.NewRegistry()
	if *metrics {
		opts = append(opts, persistence.WithPrometheus(reg, "persist"))
	}

	pctx, err := persistence.Setup(&cfg, opts...)
	if err != nil {
		log.Fatalf("Failed to set up persistence: %v", err)
	}

	runErr := run(pctx, *unit, flag.Args())
	if *metrics {
		if err := writeMetrics(os.Stderr, reg); err != nil {
			log.Printf("Failed to write metrics: %v", err)
		}
	}
	if runErr != nil {
		log.Fatal(runErr)
	}
}

func run(pctx *persistence.Context, unit string, args []string) error {
	cmd, rest := args[0], args[1:]

	if cmd == "dump" {
		data, err := persistence.ReadFile(pctx.Path())
		if err != nil {
			return fmt.Errorf("read %s: %w", pctx.Path(), err)
		}
		return printJSON(data)
	}

	if unit == "" {
		return fmt.Errorf("%s requires -unit", cmd)
	}
	engine := pctx.NewEngine(unit)

	switch cmd {
	case "keys":
		for _, key := range engine.Keys() {
			fmt.Println(key)
		}
		return nil
	case "get":
		if len(rest) != 1 {
			return fmt.Errorf("get requires exactly one key")
		}
		if !engine.HasKey(rest[0]) {
			return fmt.Errorf("key not found: %s", rest[0])
		}
		return printJSON(map[string]any{rest[0]: engine.Load(rest[0], nil)})
	case "clear":
		if len(rest) != 1 {
			return fmt.Errorf("clear requires exactly one key")
		}
		engine.Clear(rest[0])
		return engine.Save()
	default:
		return fmt.Errorf("unknown command: %s", cmd)
	}
}

// writeMetrics prints every gathered metric family in the Prometheus text
// exposition format.
func writeMetrics(w io.Writer, g prometheus.Gatherer) error {
	families, err := g.Gather()
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

func printJSON(data map[string]any) error {
	out, err := codec.EncodeText(data, codec.WithIndent("", "  "))
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
