package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"tabload/internal/schema"
	"tabload/internal/storage"
)

// sliceSource is an in-memory RowSource. When failAt > 0, Next returns err
// instead of row failAt.
type sliceSource struct {
	header []string
	rows   [][]string
	pos    int
	failAt int
	err    error
}

func (s *sliceSource) Header() []string { return s.header }

func (s *sliceSource) Next() ([]string, error) {
	if s.failAt > 0 && s.pos+1 == s.failAt {
		return nil, s.err
	}
	if s.pos >= len(s.rows) {
		return nil, io.EOF
	}
	r := s.rows[s.pos]
	s.pos++
	return r, nil
}

// recordingSink captures every statement. fail lists 1-based call numbers
// that return an error.
type recordingSink struct {
	mu    sync.Mutex
	calls []storage.Statement
	fail  map[int]bool
}

func (s *recordingSink) ExecBatch(_ context.Context, st storage.Statement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, st)
	if s.fail[len(s.calls)] {
		return fmt.Errorf("sink rejected call %d", len(s.calls))
	}
	return nil
}

func textField(name string) schema.Field { return schema.Field{Name: name, Kind: schema.Text} }

func numberedRows(n int) [][]string {
	rows := make([][]string, n)
	for i := range rows {
		rows[i] = []string{strconv.Itoa(i + 1)}
	}
	return rows
}

func TestIngest_TwoBatchesCaseInsensitiveHeader(t *testing.T) {
	t.Parallel()

	src := &sliceSource{
		header: []string{"A", "B"},
		rows:   [][]string{{"1", "x"}, {"2", "y"}, {"3", "z"}},
	}
	sink := &recordingSink{}
	req := Request{Namespace: "ns", Table: "t", Fields: []schema.Field{textField("b")}, BatchSize: 2, File: "f.csv"}

	res, err := Ingest(context.Background(), req, src, sink)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	want := []string{
		"INSERT INTO ns.t (b) VALUES ('x'); INSERT INTO ns.t (b) VALUES ('y');",
		"INSERT INTO ns.t (b) VALUES ('z');",
	}
	var got []string
	for _, st := range sink.calls {
		got = append(got, st.SQL)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("statements mismatch (-want +got):\n%s", diff)
	}
	if res.RowsProcessed != 3 || res.Batches != 2 || !res.OK() {
		t.Fatalf("result = %+v", res)
	}
}

func TestIngest_BatchesCoverStreamInOrder(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct{ rows, size int }{
		{1, 1}, {5, 1}, {5, 2}, {6, 3}, {7, 3}, {3, 10}, {100, 7},
	} {
		t.Run(fmt.Sprintf("rows=%d,size=%d", tc.rows, tc.size), func(t *testing.T) {
			t.Parallel()

			src := &sliceSource{header: []string{"n"}, rows: numberedRows(tc.rows)}
			sink := &recordingSink{}
			req := Request{Table: "t", Fields: []schema.Field{{Name: "n", Kind: schema.Integer}}, BatchSize: tc.size, Mode: Bind}

			res, err := Ingest(context.Background(), req, src, sink)
			if err != nil {
				t.Fatalf("Ingest: %v", err)
			}

			next, total := int64(1), 0
			for i, st := range sink.calls {
				last := i == len(sink.calls)-1
				if st.Rows != tc.size && !(last && st.Rows < tc.size) {
					t.Fatalf("batch %d has %d rows, want %d", i+1, st.Rows, tc.size)
				}
				for _, q := range st.Queries {
					if q.Args[0] != next {
						t.Fatalf("batch %d: got row %v, want %d", i+1, q.Args[0], next)
					}
					next++
				}
				total += st.Rows
			}
			if total != tc.rows || res.RowsProcessed != tc.rows {
				t.Fatalf("total=%d processed=%d, want %d", total, res.RowsProcessed, tc.rows)
			}
			wantBatches := (tc.rows + tc.size - 1) / tc.size
			if res.Batches != wantBatches || len(sink.calls) != wantBatches {
				t.Fatalf("batches=%d calls=%d, want %d", res.Batches, len(sink.calls), wantBatches)
			}
		})
	}
}

func TestIngest_IntegerNaNBecomesZero(t *testing.T) {
	t.Parallel()

	src := &sliceSource{header: []string{"v"}, rows: [][]string{{"nan"}, {"12"}, {"NaN"}}}
	sink := &recordingSink{}
	req := Request{Table: "t", Fields: []schema.Field{{Name: "v", Kind: schema.Integer}}, BatchSize: 3}

	if _, err := Ingest(context.Background(), req, src, sink); err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	want := "INSERT INTO t (v) VALUES (0); INSERT INTO t (v) VALUES (12); INSERT INTO t (v) VALUES (NaN);"
	if got := sink.calls[0].SQL; got != want {
		t.Fatalf("SQL =\n%s\nwant\n%s", got, want)
	}
}

func TestIngest_HugeBatchSizeHoldsWholeStream(t *testing.T) {
	t.Parallel()

	src := &sliceSource{header: []string{"n"}, rows: numberedRows(3)}
	sink := &recordingSink{}
	req := Request{Table: "t", Fields: []schema.Field{textField("n")}, BatchSize: math.MaxInt}

	res, err := Ingest(context.Background(), req, src, sink)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if len(sink.calls) != 1 || res.Batches != 1 {
		t.Fatalf("calls = %d, batches = %d, want 1 and 1", len(sink.calls), res.Batches)
	}
	if got := sink.calls[0].Rows; got != 3 {
		t.Fatalf("rows in batch = %d, want 3", got)
	}
	if res.RowsProcessed != 3 {
		t.Fatalf("RowsProcessed = %d, want 3", res.RowsProcessed)
	}
}

func TestIngest_MissingColumnNeverCallsSink(t *testing.T) {
	t.Parallel()

	src := &sliceSource{header: []string{"A", "B"}, rows: [][]string{{"1", "2"}}}
	sink := &recordingSink{}
	req := Request{Table: "t", Fields: []schema.Field{textField("a"), textField("c")}, BatchSize: 1}

	res, err := Ingest(context.Background(), req, src, sink)
	if !errors.Is(err, ErrSchemaResolution) {
		t.Fatalf("err = %v, want ErrSchemaResolution", err)
	}
	if len(sink.calls) != 0 || src.pos != 0 {
		t.Fatalf("sink calls = %d, rows read = %d; want 0, 0", len(sink.calls), src.pos)
	}
	if res.RowsProcessed != 0 {
		t.Fatalf("result = %+v", res)
	}
}

func TestIngest_FailedBatchIsRecordedAndRunContinues(t *testing.T) {
	t.Parallel()

	src := &sliceSource{header: []string{"n"}, rows: numberedRows(5)}
	sink := &recordingSink{fail: map[int]bool{2: true}}
	req := Request{Table: "t", Fields: []schema.Field{textField("n")}, BatchSize: 2, File: "data/x.csv"}

	res, err := Ingest(context.Background(), req, src, sink)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if len(sink.calls) != 3 {
		t.Fatalf("sink calls = %d, want 3", len(sink.calls))
	}
	if len(res.BatchErrors) != 1 {
		t.Fatalf("batch errors = %v, want exactly one", res.BatchErrors)
	}
	be := res.BatchErrors[0]
	if be.Index != 2 || be.File != "data/x.csv" || be.Rows != 2 {
		t.Fatalf("batch error = %+v", be)
	}
	if be.Err == nil || be.Error() == "" {
		t.Fatal("batch error should carry the sink error")
	}
	if res.OK() || res.RowsProcessed != 5 || res.FailedRows() != 2 {
		t.Fatalf("result = %+v", res)
	}
}

func TestIngest_EmptyStream(t *testing.T) {
	t.Parallel()

	sink := &recordingSink{}
	req := Request{Table: "t", Fields: []schema.Field{textField("a")}, BatchSize: 2}
	res, err := Ingest(context.Background(), req, &sliceSource{header: []string{"a"}}, sink)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if len(sink.calls) != 0 || res.Batches != 0 || !res.OK() {
		t.Fatalf("calls=%d result=%+v", len(sink.calls), res)
	}
}

func TestIngest_InvalidRequest(t *testing.T) {
	t.Parallel()

	good := Request{Table: "t", Fields: []schema.Field{textField("a")}, BatchSize: 1}
	tests := map[string]func(*Request){
		"no fields":  func(r *Request) { r.Fields = nil },
		"zero batch": func(r *Request) { r.BatchSize = 0 },
		"no table":   func(r *Request) { r.Table = "" },
		"bad mode":   func(r *Request) { r.Mode = "copy" },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			req := good
			mutate(&req)
			sink := &recordingSink{}
			_, err := Ingest(context.Background(), req, &sliceSource{header: []string{"a"}, rows: [][]string{{"x"}}}, sink)
			if !errors.Is(err, ErrInvalidRequest) {
				t.Fatalf("err = %v, want ErrInvalidRequest", err)
			}
			if len(sink.calls) != 0 {
				t.Fatalf("sink calls = %d, want 0", len(sink.calls))
			}
		})
	}

	if _, err := Ingest(context.Background(), good, &sliceSource{header: []string{"a"}}, nil); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("nil sink err = %v", err)
	}
}

func TestIngest_ShortRowAborts(t *testing.T) {
	t.Parallel()

	src := &sliceSource{
		header: []string{"a", "b"},
		rows:   [][]string{{"1", "2"}, {"3", "4"}, {"5"}},
	}
	sink := &recordingSink{}
	req := Request{Table: "t", Fields: []schema.Field{textField("b")}, BatchSize: 2}

	res, err := Ingest(context.Background(), req, src, sink)
	if !errors.Is(err, ErrRowWidth) {
		t.Fatalf("err = %v, want ErrRowWidth", err)
	}
	// The full first batch was built before the short row and still lands.
	if len(sink.calls) != 1 || res.RowsProcessed != 2 {
		t.Fatalf("calls=%d result=%+v", len(sink.calls), res)
	}
}

func TestIngest_ReadErrorAborts(t *testing.T) {
	t.Parallel()

	boom := errors.New("decode failure")
	src := &sliceSource{header: []string{"n"}, rows: numberedRows(5), failAt: 2, err: boom}
	sink := &recordingSink{}
	req := Request{Table: "t", Fields: []schema.Field{textField("n")}, BatchSize: 3}

	res, err := Ingest(context.Background(), req, src, sink)
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
	if len(sink.calls) != 0 || res.RowsProcessed != 0 {
		t.Fatalf("pending partial batch should be dropped: calls=%d result=%+v", len(sink.calls), res)
	}
}

func TestIngest_CancelStopsSubmitting(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	calls := 0
	sink := storage.SinkFunc(func(context.Context, storage.Statement) error {
		calls++
		cancel()
		return nil
	})
	src := &sliceSource{header: []string{"n"}, rows: numberedRows(10)}
	req := Request{Table: "t", Fields: []schema.Field{textField("n")}, BatchSize: 1}

	res, err := Ingest(ctx, req, src, sink)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if calls != 1 || res.Batches != 1 || res.RowsProcessed != 1 {
		t.Fatalf("calls=%d result=%+v", calls, res)
	}
}
