package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"tabload/internal/catalog"
	"tabload/internal/config"
	"tabload/internal/datasource/file"
	"tabload/internal/metrics"
	"tabload/internal/parser/csv"
	"tabload/internal/validate"
)

type checkOptions struct {
	reference     []string
	referenceFile string
	catalogDir    string
	errorLog      string
	violations    string
	output        string
	workers       int
}

func (o *checkOptions) bind(cmd *cobra.Command, columns, values bool) {
	f := cmd.Flags()
	if columns {
		f.StringSliceVar(&o.reference, "reference", nil, "reference column names (comma separated)")
		f.StringVar(&o.referenceFile, "reference-file", "", "file listing reference columns, one per line")
		f.StringVar(&o.errorLog, "error-log", "", "append-only report file (default err.txt)")
	}
	if values || columns {
		f.StringVar(&o.catalogDir, "catalog-dir", "", "directory holding <name>_config.json catalogs")
	}
	if values {
		f.StringVar(&o.violations, "violations", "", "write violations as CSV to this file")
		f.StringVarP(&o.output, "output", "o", "table", "violation output format (table, csv, json, yaml)")
		f.IntVar(&o.workers, "workers", 0, "columns checked concurrently (default GOMAXPROCS)")
	}
}

func (o *checkOptions) apply(cmd *cobra.Command, v *config.Validation) {
	changed := cmd.Flags().Changed
	if changed("reference") {
		v.ReferenceColumns = o.reference
	}
	if changed("reference-file") {
		v.ReferenceFile = o.referenceFile
	}
	if changed("catalog-dir") {
		v.CatalogDir = o.catalogDir
	}
	if changed("error-log") {
		v.ErrorLog = o.errorLog
	}
	if changed("violations") {
		v.ViolationsFile = o.violations
	}
	if changed("workers") {
		v.Workers = o.workers
	}
}

func registerCheckCmds(parent *cobra.Command, a *app) {
	parent.AddCommand(
		newCheckCmd(a, "check-columns", "Compare file columns with the reference column set", true, false),
		newCheckCmd(a, "check-values", "Check column values against the allowed-value catalog", false, true),
		newCheckCmd(a, "check", "Run the column check, then the value check", true, true),
	)
}

func newCheckCmd(a *app, use, short string, columns, values bool) *cobra.Command {
	opts := &checkOptions{}
	cmd := &cobra.Command{
		Use:   use + " [file or dir...]",
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.apply(cmd, &a.job.Validation)
			paths := args
			if len(paths) == 0 && a.job.Source.File.Path != "" {
				paths = []string{a.job.Source.File.Path}
			}
			if len(paths) == 0 {
				return errors.New("no input: pass files or set source.file.path")
			}
			files, err := file.Discover(paths)
			if err != nil {
				return fmt.Errorf("discover sources: %w", err)
			}
			return a.step(cmd.Context(), strings.ReplaceAll(use, "-", "_"), func(ctx context.Context) error {
				c := &checker{
					job:    a.job,
					out:    cmd.OutOrStdout(),
					output: opts.output,
					loader: catalog.NewLoader(a.job.Validation.CatalogDir),
				}
				return c.run(ctx, files, columns, values)
			})
		},
	}
	opts.bind(cmd, columns, values)
	return cmd
}

type checker struct {
	job    config.Job
	out    io.Writer
	output string
	loader *catalog.Loader
}

func (c *checker) run(ctx context.Context, files []string, columns, values bool) error {
	var (
		errLog     *validate.ErrorLog
		refs       = newReferenceResolver(c.job.Validation, c.loader)
		violations []validate.ViolationRecord
		failed     int
	)
	if columns && c.job.Validation.ErrorLog != "" {
		l, err := validate.OpenErrorLog(c.job.Validation.ErrorLog)
		if err != nil {
			return err
		}
		defer l.Close()
		errLog = l
	}

	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		name := file.DatasetName(path)
		table, err := csv.ReadFile(ctx, path, csv.OptionsFrom(c.job.Parser.Options))
		if err != nil {
			return err
		}

		if columns {
			ok, err := c.checkColumns(name, table.Header, refs, errLog)
			if err != nil {
				return err
			}
			if !ok {
				failed++
				// Values of a mis-shaped file are not worth checking.
				continue
			}
		}
		if values {
			recs, ok, err := c.checkValues(ctx, name, table)
			if err != nil {
				return err
			}
			violations = append(violations, recs...)
			if !ok {
				failed++
			}
		}
	}

	if values {
		if err := c.report(violations); err != nil {
			return err
		}
	}
	if failed > 0 {
		return fmt.Errorf("%w: %d of %d files", ErrChecksFailed, failed, len(files))
	}
	return nil
}

func (c *checker) checkColumns(name string, header []string, refs *referenceResolver, errLog *validate.ErrorLog) (bool, error) {
	ref, err := refs.resolve(name)
	if err != nil {
		return false, err
	}
	rep := validate.CheckColumns(header, ref, name)
	if errLog != nil {
		if err := errLog.Append(rep); err != nil {
			return false, fmt.Errorf("append error log: %w", err)
		}
	}
	if rep.OK() {
		fmt.Fprintf(c.out, "%s: columns ok\n", name)
		return true, nil
	}
	fmt.Fprintf(c.out, "%s: columns not in reference set: %s\n", name, strings.Join(rep.Extra, ", "))
	return false, nil
}

func (c *checker) checkValues(ctx context.Context, name string, table csv.Table) ([]validate.ViolationRecord, bool, error) {
	cat, err := c.loader.Load(name)
	if err != nil {
		return nil, false, err
	}
	res := validate.CheckValues(ctx, name, validate.Dataset(table), cat, validate.WithWorkers(c.job.Validation.Workers))
	metrics.RecordViolations(c.job.Job, name, len(res.Violations))
	for _, col := range res.Columns {
		if col.Err != nil {
			fmt.Fprintf(c.out, "%s: column %s not checked: %v\n", name, col.Column, col.Err)
		}
	}
	if len(res.Violations) == 0 {
		fmt.Fprintf(c.out, "%s: values ok\n", name)
	}
	return res.Violations, res.OK(), nil
}

func (c *checker) report(recs []validate.ViolationRecord) error {
	if p := c.job.Validation.ViolationsFile; p != "" {
		f, err := os.Create(p)
		if err != nil {
			return fmt.Errorf("create violations file: %w", err)
		}
		if err := validate.WriteViolations(f, recs); err != nil {
			f.Close()
			return fmt.Errorf("write violations: %w", err)
		}
		if err := f.Close(); err != nil {
			return err
		}
	}
	if len(recs) == 0 {
		return nil
	}

	switch c.output {
	case "csv":
		return validate.WriteViolations(c.out, recs)
	case "json":
		enc := json.NewEncoder(c.out)
		enc.SetIndent("", "  ")
		return enc.Encode(recs)
	case "yaml":
		enc := yaml.NewEncoder(c.out)
		enc.SetIndent(2)
		if err := enc.Encode(recs); err != nil {
			return err
		}
		return enc.Close()
	default:
		w := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, "FILE\tCOLUMN\tVALUE")
		for _, r := range recs {
			_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", r.File, r.Column, r.Value)
		}
		return w.Flush()
	}
}
