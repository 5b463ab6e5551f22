package commands

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"tabload/internal/catalog"
	"tabload/internal/config"
	"tabload/internal/datasource/file"
	"tabload/internal/ingest"
	"tabload/internal/parser/csv"
	"tabload/internal/schema"
	"tabload/internal/storage"
	"tabload/internal/validate"

	// Every backend registers itself with the storage factory; the job picks one.
	_ "tabload/internal/storage/all"
)

type ingestOptions struct {
	namespace string
	table     string
	fields    []string
	storage   string
	dsn       string
	batchSize int
	mode      string
	noCheck   bool
}

func registerIngestCmd(parent *cobra.Command, a *app) {
	opts := &ingestOptions{}

	cmd := &cobra.Command{
		Use:   "ingest [file or dir...]",
		Short: "Load delimited files into the target table",
		Long: `Load each file into the target table, one composite statement per batch.
A batch the store rejects is reported and the run continues. When a reference
column set is configured, files whose columns do not match it are skipped.`,
		Example: `  # Use the job file's source path
  tabload ingest -c jobs/schools.json

  # Override source and target on the command line
  tabload ingest -c jobs/schools.json --storage sqlite --dsn out.db data/`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.apply(cmd, &a.job); err != nil {
				return err
			}
			if len(args) > 0 {
				a.job.Source.File.Path = args[0]
			}
			issues := config.ValidateJob(a.job)
			printIssues(cmd.ErrOrStderr(), issues)
			if config.HasErrors(issues) {
				return fmt.Errorf("%w: job configuration is invalid", ErrChecksFailed)
			}
			paths := args
			if len(paths) == 0 {
				paths = []string{a.job.Source.File.Path}
			}
			return a.step(cmd.Context(), "ingest", func(ctx context.Context) error {
				return runIngest(ctx, cmd, a.job, paths, opts.noCheck)
			})
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.namespace, "namespace", "", "table namespace (schema)")
	f.StringVar(&opts.table, "table", "", "target table")
	f.StringSliceVar(&opts.fields, "field", nil, `field descriptor "name TYPE" (repeatable)`)
	f.StringVar(&opts.storage, "storage", "", "storage kind (see `tabload kinds`)")
	f.StringVar(&opts.dsn, "dsn", "", "storage DSN")
	f.IntVar(&opts.batchSize, "batch-size", 0, "rows per batch")
	f.StringVar(&opts.mode, "mode", "", "statement mode (literal, bind)")
	f.BoolVar(&opts.noCheck, "no-check", false, "skip the column check before loading")

	parent.AddCommand(cmd)
}

// apply overrides job fields with flags the user set explicitly.
func (o *ingestOptions) apply(cmd *cobra.Command, job *config.Job) error {
	changed := cmd.Flags().Changed
	if changed("namespace") {
		job.Target.Namespace = o.namespace
	}
	if changed("table") {
		job.Target.Table = o.table
	}
	if changed("field") {
		fields, err := schema.ParseFields(o.fields)
		if err != nil {
			return fmt.Errorf("--field: %w", err)
		}
		job.Target.Fields = fields
	}
	if changed("storage") {
		job.Storage.Kind = o.storage
	}
	if changed("dsn") {
		job.Storage.DSN = o.dsn
	}
	if changed("batch-size") {
		job.Runtime.BatchSize = o.batchSize
	}
	if changed("mode") {
		job.Runtime.StatementMode = o.mode
	}
	return nil
}

type ingestSummary struct {
	path   string
	result ingest.Result
	err    error
}

func runIngest(ctx context.Context, cmd *cobra.Command, job config.Job, paths []string, noCheck bool) error {
	log := logger(cmd)

	files, err := file.Discover(paths)
	if err != nil {
		return fmt.Errorf("discover sources: %w", err)
	}
	mode, err := ingest.ParseMode(job.Runtime.StatementMode)
	if err != nil {
		return err
	}

	repo, err := storage.New(ctx, storage.Config{Kind: job.Storage.Kind, DSN: job.Storage.DSN})
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}
	defer repo.Close()

	if job.Storage.AutoCreateTable {
		if err := storage.EnsureTable(ctx, repo, job.Target.FQN(), job.Target.Fields); err != nil {
			return fmt.Errorf("ensure table %s: %w", job.Target.FQN(), err)
		}
	}

	var (
		refs      = newReferenceResolver(job.Validation, catalog.NewLoader(job.Validation.CatalogDir))
		summaries []ingestSummary
		failed    int
	)
	for _, path := range files {
		name := file.DatasetName(path)
		s := ingestSummary{path: path}

		r, err := csv.Open(ctx, path, csv.OptionsFrom(job.Parser.Options))
		if err != nil {
			s.err = err
			summaries = append(summaries, s)
			failed++
			log.Error("file skipped", "file", path, "err", err)
			continue
		}

		if !noCheck && refs.configured() {
			ref, err := refs.resolve(name)
			if err != nil {
				r.Close()
				return err
			}
			if rep := validate.CheckColumns(r.Header(), ref, name); !rep.OK() {
				r.Close()
				s.err = rep.Err()
				summaries = append(summaries, s)
				failed++
				log.Error("file skipped", "file", path, "err", s.err)
				continue
			}
		}

		req := ingest.Request{
			Job:       job.Job,
			Namespace: job.Target.Namespace,
			Table:     job.Target.Table,
			Fields:    job.Target.Fields,
			BatchSize: job.Runtime.BatchSize,
			File:      path,
			Mode:      mode,
			Dialect:   repo.Dialect(),
		}
		s.result, s.err = ingest.Ingest(ctx, req, r, repo)
		r.Close()
		summaries = append(summaries, s)
		if s.err != nil || !s.result.OK() {
			failed++
		}
		if ctx.Err() != nil {
			break
		}
	}

	printIngestSummary(cmd.OutOrStdout(), summaries)
	if err := ctx.Err(); err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%w: %d of %d files did not load cleanly", ErrChecksFailed, failed, len(files))
	}
	return nil
}

func printIngestSummary(out io.Writer, summaries []ingestSummary) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "FILE\tROWS\tBATCHES\tFAILED BATCHES\tSTATUS")
	for _, s := range summaries {
		status := "ok"
		switch {
		case s.err != nil:
			status = s.err.Error()
		case !s.result.OK():
			status = fmt.Sprintf("%d rows in failed batches", s.result.FailedRows())
		}
		_, _ = fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%s\n",
			s.path, s.result.RowsProcessed, s.result.Batches, len(s.result.BatchErrors), status)
	}
	_ = w.Flush()

	for _, s := range summaries {
		for _, be := range s.result.BatchErrors {
			_, _ = fmt.Fprintf(out, "  %v\n", be)
		}
	}
}
