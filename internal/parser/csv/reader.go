// Package csv turns a delimited text file into the header-first row stream the
// ingest engine and the validators consume. It streams: rows are decoded one
// at a time and nothing but the current record is held in memory.
//
// A byte-order mark (UTF-8, or UTF-16 with transcoding) is removed before the
// header is decoded, so the first column name compares cleanly.
package csv

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"tabload/internal/config"
	"tabload/internal/datasource"
	"tabload/internal/datasource/file"
)

// ErrNoHeader is returned for an input without a header row.
var ErrNoHeader = errors.New("csv: missing header row")

const utf8BOM = "\uFEFF"

// Options configures decoding. The zero value reads comma-separated UTF-8
// without trimming, like a plain csv.Reader.
type Options struct {
	// Comma is the field delimiter. When zero, ',' is used.
	Comma rune

	// TrimSpace trims leading/trailing whitespace from data cells.
	TrimSpace bool

	// LazyQuotes relaxes quote handling (see encoding/csv).
	LazyQuotes bool

	// HeaderMap renames source header cells before they are exposed.
	HeaderMap map[string]string

	// Replacements are applied to the raw bytes before decoding.
	Replacements []Replacement
}

// OptionsFrom reads parser options from a job's free-form options bag.
func OptionsFrom(o config.Options) Options {
	opt := Options{
		Comma:      o.Rune("comma", ','),
		TrimSpace:  o.Bool("trim_space", false),
		LazyQuotes: o.Bool("lazy_quotes", false),
		HeaderMap:  o.StringMap("header_map"),
	}
	for from, to := range o.StringMap("replace") {
		opt.Replacements = append(opt.Replacements, Replacement{From: from, To: to})
	}
	return opt
}

// Reader is a single-pass, header-first row stream.
type Reader struct {
	cr     *csv.Reader
	header []string
	trim   bool
	line   int
	closer io.Closer
}

// NewReader reads the header from r and returns a Reader positioned at the
// first data row.
func NewReader(r io.Reader, opt Options) (*Reader, error) {
	r = transform.NewReader(r, unicode.BOMOverride(transform.Nop))
	r = wrapReplacements(r, opt.Replacements)

	cr := csv.NewReader(r)
	if opt.Comma != 0 {
		cr.Comma = opt.Comma
	}
	cr.LazyQuotes = opt.LazyQuotes
	// Width is checked by consumers against the columns they need.
	cr.FieldsPerRecord = -1

	h, err := cr.Read()
	if err == io.EOF {
		return nil, ErrNoHeader
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	header := make([]string, len(h))
	for i, c := range h {
		c = strings.TrimPrefix(c, utf8BOM)
		if m, ok := opt.HeaderMap[c]; ok {
			c = m
		}
		header[i] = c
	}
	return &Reader{cr: cr, header: header, trim: opt.TrimSpace, line: 1}, nil
}

// Open opens path and returns a Reader over it. Close releases the file.
func Open(ctx context.Context, path string, opt Options) (*Reader, error) {
	return OpenSource(ctx, file.NewLocal(path), opt)
}

// OpenSource returns a Reader over src. Close releases the underlying input.
func OpenSource(ctx context.Context, src datasource.Source, opt Options) (*Reader, error) {
	rc, err := src.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("open source: %w", err)
	}
	r, err := NewReader(rc, opt)
	if err != nil {
		rc.Close()
		return nil, fmt.Errorf("%s: %w", src.Name(), err)
	}
	r.closer = rc
	return r, nil
}

// Header returns the decoded header row.
func (r *Reader) Header() []string { return r.header }

// Line returns the 1-based line of the most recently returned record (the
// header is line 1).
func (r *Reader) Line() int { return r.line }

// Next returns the next data row, or io.EOF after the last one.
func (r *Reader) Next() ([]string, error) {
	rec, err := r.cr.Read()
	if err == io.EOF {
		return nil, io.EOF
	}
	r.line++
	if err != nil {
		return nil, fmt.Errorf("line %d: %w", r.line, err)
	}
	if r.trim {
		for i, v := range rec {
			rec[i] = strings.TrimSpace(v)
		}
	}
	return rec, nil
}

// Close closes the underlying file when the Reader was created by Open.
func (r *Reader) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}

// Table is a fully materialized file: header plus every data row.
type Table struct {
	Header []string
	Rows   [][]string
}

// ReadAll drains r into a Table.
func ReadAll(r *Reader) (Table, error) {
	t := Table{Header: r.Header()}
	for {
		row, err := r.Next()
		if err == io.EOF {
			return t, nil
		}
		if err != nil {
			return t, err
		}
		t.Rows = append(t.Rows, row)
	}
}

// ReadFile opens and fully reads path.
func ReadFile(ctx context.Context, path string, opt Options) (Table, error) {
	r, err := Open(ctx, path, opt)
	if err != nil {
		return Table{}, err
	}
	defer r.Close()
	t, err := ReadAll(r)
	if err != nil {
		return t, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}
