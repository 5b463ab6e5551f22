// Package commands contains the tabload CLI command definitions.
package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"tabload/internal/config"
	"tabload/internal/logging"
	"tabload/internal/metrics"
	"tabload/internal/metrics/datadog"
	"tabload/internal/metrics/prompush"
)

// ErrChecksFailed is returned when a run completes but found problems
// (failed batches, column discrepancies, invalid values, config errors).
var ErrChecksFailed = errors.New("checks failed")

type app struct {
	configPath     string
	envFile        string
	logLevel       string
	logFormat      string
	metricsBackend string
	pushgatewayURL string
	datadogAddr    string

	job config.Job
}

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "tabload",
		Short: "Validate delimited files and load them into SQL tables in batches",
		Long: `tabload checks tabular files against a reference column set and a
per-column allowed-value catalog, and inserts them into a SQL store one
composite statement per batch.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.preRun,
	}

	f := rootCmd.PersistentFlags()
	f.StringVarP(&a.configPath, "config", "c", "", "job file (JSON or YAML)")
	f.StringVar(&a.envFile, "env-file", ".env", "dotenv file loaded before configuration")
	f.StringVar(&a.logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	f.StringVar(&a.logFormat, "log-format", "text", "log format (text, json)")
	f.StringVar(&a.metricsBackend, "metrics-backend", "", "metrics backend (none, prometheus, datadog); overrides the job file")
	f.StringVar(&a.pushgatewayURL, "pushgateway-url", "", "Pushgateway base URL")
	f.StringVar(&a.datadogAddr, "datadog-addr", "", "DogStatsD address")

	registerIngestCmd(rootCmd, a)
	registerCheckCmds(rootCmd, a)
	registerLintCmd(rootCmd, a)
	registerKindsCmd(rootCmd)

	return rootCmd
}

// preRun loads the environment, configures logging and resolves the job.
func (a *app) preRun(cmd *cobra.Command, _ []string) error {
	if err := config.LoadDotEnv(a.envFile); err != nil {
		return err
	}
	logging.Setup(a.logLevel, a.logFormat)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, runID := logging.WithRunID(ctx)
	cmd.SetContext(ctx)

	if a.configPath != "" {
		job, err := config.Load(a.configPath)
		if err != nil {
			return err
		}
		a.job = job
	} else {
		config.ApplyEnv(&a.job, os.LookupEnv)
		config.ApplyDefaults(&a.job)
	}
	if a.job.Job == "" {
		a.job.Job = "tabload"
	}

	m := &a.job.Metrics
	if a.metricsBackend != "" {
		m.Backend = a.metricsBackend
	}
	if a.pushgatewayURL != "" {
		m.PushgatewayURL = a.pushgatewayURL
	}
	if a.datadogAddr != "" {
		m.DatadogAddr = a.datadogAddr
	}

	logging.FromContext(ctx).Debug("run started", "command", cmd.Name(), "job", a.job.Job, "run_id", runID)
	return nil
}

// step runs fn with metrics installed, records the step outcome and
// flushes the backend afterwards.
func (a *app) step(ctx context.Context, name string, fn func(context.Context) error) error {
	flush := a.setupMetrics(ctx)
	defer flush()

	start := time.Now()
	err := fn(ctx)
	metrics.RecordStep(a.job.Job, name, err, time.Since(start))
	return err
}

func (a *app) setupMetrics(ctx context.Context) func() {
	log := logging.FromContext(ctx)
	m := a.job.Metrics

	var (
		b   metrics.Backend
		err error
	)
	switch m.Backend {
	case "", "none":
		return func() {}
	case "prometheus":
		b, err = prompush.NewBackend(a.job.Job, m.PushgatewayURL)
	case "datadog":
		addr := m.DatadogAddr
		if addr == "" {
			addr = "127.0.0.1:8125"
		}
		b, err = datadog.NewBackend(datadog.Config{
			Addr:       addr,
			Namespace:  "tabload.",
			GlobalTags: []string{"job:" + a.job.Job},
		})
	default:
		err = fmt.Errorf("unknown metrics backend %q", m.Backend)
	}
	if err != nil {
		log.Warn("metrics disabled", "backend", m.Backend, "err", err)
		return func() {}
	}

	log.Debug("metrics enabled", "backend", m.Backend)
	metrics.SetBackend(b)
	return func() {
		if err := metrics.Flush(); err != nil {
			log.Warn("metrics flush failed", "err", err)
		}
		metrics.Reset()
	}
}

func printIssues(w io.Writer, issues []config.Issue) {
	for _, iss := range issues {
		fmt.Fprintf(w, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
	}
}

// logger returns the run-scoped logger for cmd.
func logger(cmd *cobra.Command) *slog.Logger { return logging.FromContext(cmd.Context()) }
