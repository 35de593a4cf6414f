package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AliAbdElhafeez/Sparkify-Data-Modeling/internal/config"
	"github.com/AliAbdElhafeez/Sparkify-Data-Modeling/internal/etl"
	"github.com/AliAbdElhafeez/Sparkify-Data-Modeling/internal/metrics"
	"github.com/AliAbdElhafeez/Sparkify-Data-Modeling/internal/metrics/prompush"
	"github.com/AliAbdElhafeez/Sparkify-Data-Modeling/internal/storage"

	// register all backends with the storage factory.
	// config specifies which to use but we need to build in support for all of them.
	_ "github.com/AliAbdElhafeez/Sparkify-Data-Modeling/internal/storage/all"
)

// main is the entry point for the loader binary. It loads the run config,
// optionally initializes a metrics backend, opens the store, and executes
// the two-phase batch.
func main() {
	var (
		cfgPath           string
		metricsBackendFlg string
		pushGatewayURLFlg string
		validate          bool
	)

	flag.StringVar(&cfgPath, "config", "configs/sample.json", "run config JSON path")
	flag.StringVar(&metricsBackendFlg, "metrics-backend", "none", "metrics backend to use (pushgateway, none)")
	flag.StringVar(&pushGatewayURLFlg, "pushgateway-url", "", "Pushgateway base URL (overrides env PUSHGATEWAY_URL)")
	flag.BoolVar(&validate, "validate", false, "validate the configuration and exit")
	verbose := flag.Bool("v", false, "enable verbose logs")

	flag.Parse()

	f, err := os.Open(cfgPath)
	if err != nil {
		fatalf("open config: %v", err)
	}
	var p config.Pipeline
	err = json.NewDecoder(f).Decode(&p)
	f.Close()
	if err != nil {
		fatalf("decode config: %v", err)
	}

	issues := config.ValidatePipeline(p)
	for _, iss := range issues {
		fmt.Fprintf(os.Stderr, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
	}
	if config.HasErrors(issues) {
		log.Printf("Configuration is invalid: %v", cfgPath)
		os.Exit(1)
	}
	if validate {
		log.Printf("Configuration is valid: %v", cfgPath)
		os.Exit(0)
	}

	setupMetrics(metricsBackendFlg, pushGatewayURLFlg, p.Job, *verbose)
	defer func() {
		if err := metrics.Flush(); err != nil {
			log.Printf("metrics: flush error: %v", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := storage.New(ctx, storage.Config{
		Kind:        p.Storage.Kind,
		DSN:         p.Storage.DB.DSN,
		DedupePlays: p.Transform.DedupePlays,
	})
	if err != nil {
		fatalf("open store: %v (registered kinds: %v)", err, storage.ListKinds())
	}
	defer store.Close()

	if p.Storage.DB.AutoCreateTables {
		if err := store.EnsureSchema(ctx); err != nil {
			fatalf("create tables: %v", err)
		}
	}

	driver := etl.NewDriver(store, etl.Options{
		Job:          p.Job,
		Normalize:    p.Transform.Normalize,
		MaxRetries:   p.Runtime.MaxRetries,
		RetryBackoff: time.Duration(p.Runtime.RetryBackoffMS) * time.Millisecond,
	})

	start := time.Now()
	sums, err := driver.Run(ctx, p.Catalog.Path, p.Events.Path)
	if err != nil {
		log.Fatalf("%v", err)
	}

	failed := 0
	for _, s := range sums {
		failed += len(s.Failed)
	}
	if *verbose {
		log.Printf("completed in %s", time.Since(start).Truncate(time.Millisecond))
	}
	if failed > 0 {
		// Partial success: committed files stay committed, but the exit
		// code must tell schedulers something was skipped.
		os.Exit(1)
	}
}

// setupMetrics installs the metrics backend selected by flag → env →
// default. The nop backend stays in place when metrics are disabled or the
// backend fails to initialize.
func setupMetrics(backendName, gwURL, job string, verbose bool) {
	if backendName == "" {
		backendName = os.Getenv("METRICS_BACKEND")
	}
	switch backendName {
	case "pushgateway":
		if gwURL == "" {
			gwURL = os.Getenv("PUSHGATEWAY_URL")
		}
		if gwURL == "" {
			gwURL = "http://localhost:9091"
		}
		if job == "" {
			job = "etl_job"
		}

		b, err := prompush.NewBackend(job, gwURL)
		if err != nil {
			log.Printf("metrics: failed to init prom push backend: %v; using nop", err)
			return
		}
		log.Printf("metrics: url=%v, backend=%v, job_name=%v", gwURL, backendName, job)
		metrics.SetBackend(b)

	case "", "none":
		if verbose {
			log.Printf("metrics: disabled (backend=%q)", backendName)
		}

	default:
		log.Printf("metrics: unknown backend %q; metrics disabled", backendName)
	}
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
