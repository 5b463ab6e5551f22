// Package ingest loads rows from a tabular source into a storage.Sink in
// bounded batches. Each batch becomes one composite statement; a batch the
// sink rejects is recorded and the run continues with the next one.
//
// Statement building runs in a producer goroutine and hands finished batches
// to a single submitter, so the sink never sees concurrent calls and batches
// arrive in stream order.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"golang.org/x/sync/errgroup"

	"tabload/internal/logging"
	"tabload/internal/metrics"
	"tabload/internal/schema"
	"tabload/internal/storage"
)

// RowSource is a single-pass stream of data rows preceded by a header.
// Next returns io.EOF after the last row.
type RowSource interface {
	Header() []string
	Next() ([]string, error)
}

// Request describes one ingestion call.
type Request struct {
	// Job labels metrics; optional.
	Job string

	Namespace string
	Table     string
	Fields    []schema.Field
	BatchSize int

	// File identifies the source in batch errors and logs.
	File string

	Mode Mode
	// Dialect renders bind placeholders. Only consulted in Bind mode.
	Dialect storage.Dialect
}

func (r Request) validate() error {
	if len(r.Fields) == 0 {
		return fmt.Errorf("%w: no fields", ErrInvalidRequest)
	}
	if r.BatchSize < 1 {
		return fmt.Errorf("%w: batch size %d", ErrInvalidRequest, r.BatchSize)
	}
	if r.Table == "" {
		return fmt.Errorf("%w: empty table name", ErrInvalidRequest)
	}
	switch r.Mode {
	case "", Literal, Bind:
	default:
		return fmt.Errorf("%w: unknown statement mode %q", ErrInvalidRequest, r.Mode)
	}
	return nil
}

// Result summarizes an ingestion call.
type Result struct {
	// RowsProcessed counts rows in every submitted batch, accepted or not.
	RowsProcessed int
	Batches       int
	BatchErrors   []*BatchExecutionError
	Elapsed       time.Duration
}

// OK reports whether every submitted batch was accepted.
func (r Result) OK() bool { return len(r.BatchErrors) == 0 }

// FailedRows counts rows in rejected batches.
func (r Result) FailedRows() int {
	n := 0
	for _, be := range r.BatchErrors {
		n += be.Rows
	}
	return n
}

type batch struct {
	index int
	st    storage.Statement
}

// Ingest streams rows into sink. Preconditions (non-empty fields, batch size
// of at least one, every field resolving in the header) are checked before
// the first row is read; a violation returns an error and the sink is never
// called.
//
// Sink errors are collected in Result.BatchErrors and do not stop the run.
// A row read error or a row too short for the resolved columns aborts: full
// batches built before it are still submitted, the pending partial batch is
// dropped, and the error is returned with the partial Result. Cancellation
// returns ctx.Err() the same way.
func Ingest(ctx context.Context, req Request, rows RowSource, sink storage.Sink) (Result, error) {
	if err := req.validate(); err != nil {
		return Result{}, err
	}
	if sink == nil {
		return Result{}, fmt.Errorf("%w: nil sink", ErrInvalidRequest)
	}
	if req.Mode == "" {
		req.Mode = Literal
	}

	idx, err := Resolve(rows.Header(), req.Fields)
	if err != nil {
		return Result{}, err
	}
	b := NewBuilder(req, idx)

	log := logging.WithFields(ctx,
		"file", req.File,
		"table", QualifiedName(req.Namespace, req.Table),
		"mode", string(req.Mode),
	)
	log.Info("ingest started", "batch_size", req.BatchSize, "fields", len(req.Fields))

	var (
		res   Result
		start = time.Now()
		out   = make(chan batch, 1)
	)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(out)
		return produce(gctx, rows, req.BatchSize, idx.Need(), b, out)
	})

	g.Go(func() error {
		lastTS, lastRows := start, 0
		for bt := range out {
			if err := ctx.Err(); err != nil {
				return err
			}
			res.Batches++
			res.RowsProcessed += bt.st.Rows

			err := sink.ExecBatch(ctx, bt.st)
			metrics.RecordBatch(req.Job, err == nil)
			if err != nil {
				be := &BatchExecutionError{Index: bt.index, File: req.File, Rows: bt.st.Rows, Err: err}
				res.BatchErrors = append(res.BatchErrors, be)
				metrics.RecordRows(req.Job, "failed", int64(bt.st.Rows))
				log.Error("batch failed", "batch", bt.index, "rows", bt.st.Rows, "err", err)
				continue
			}

			now := time.Now()
			sinceLast := now.Sub(lastTS)
			rps := float64(0)
			if sinceLast > 0 {
				rps = float64(res.RowsProcessed-lastRows) / sinceLast.Seconds()
			}
			log.Info("batch submitted",
				"batch", bt.index,
				"rows", bt.st.Rows,
				"total_rows", res.RowsProcessed,
				"rps", int64(rps),
				"elapsed", now.Sub(start).Truncate(time.Millisecond),
			)
			lastTS, lastRows = now, res.RowsProcessed
		}
		return nil
	})

	err = g.Wait()
	res.Elapsed = time.Since(start)
	metrics.RecordRows(req.Job, "processed", int64(res.RowsProcessed))

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		}
		log.Error("ingest aborted", "rows", res.RowsProcessed, "batches", res.Batches, "err", err)
		return res, err
	}
	log.Info("ingest finished",
		"rows", res.RowsProcessed,
		"batches", res.Batches,
		"failed_batches", len(res.BatchErrors),
		"elapsed", res.Elapsed.Truncate(time.Millisecond),
	)
	return res, nil
}

// maxReserve caps the rows preallocated per batch; larger batches grow.
const maxReserve = 1024

// produce reads rows, groups them into batches of size and sends one built
// statement per batch. The final partial batch is sent at EOF.
func produce(ctx context.Context, rows RowSource, size, need int, b *Builder, out chan<- batch) error {
	reserve := min(size, maxReserve)
	pending := make([][]string, 0, reserve)
	index, rowNum := 0, 0

	send := func() error {
		index++
		bt := batch{index: index, st: b.Statement(pending)}
		pending = make([][]string, 0, reserve)
		select {
		case out <- bt:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		row, err := rows.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("read row %d: %w", rowNum+1, err)
		}
		rowNum++
		if len(row) < need {
			return fmt.Errorf("%w: row %d has %d columns, need %d", ErrRowWidth, rowNum, len(row), need)
		}
		pending = append(pending, row)
		if len(pending) == size {
			if err := send(); err != nil {
				return err
			}
		}
	}
	if len(pending) > 0 {
		return send()
	}
	return nil
}
