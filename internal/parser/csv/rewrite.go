package csv

import (
	"bufio"
	"bytes"
	"io"
)

// Replacement is a literal byte sequence rewritten before the CSV decoder sees
// it, used to repair known malformed quoting in real-world exports.
type Replacement struct {
	From string `json:"from" yaml:"from"`
	To   string `json:"to" yaml:"to"`
}

// rewriter replaces every occurrence of pat with repl without buffering the
// whole stream. Matches spanning chunk boundaries are caught by retaining the
// last len(pat)-1 bytes of each processed block and prepending them to the
// next one.
type rewriter struct {
	br    *bufio.Reader
	pat   []byte
	repl  []byte
	carry []byte       // last len(pat)-1 bytes retained between reads
	buf   bytes.Buffer // pending output
	chunk []byte
	eof   bool
}

func newRewriter(r io.Reader, pat, repl []byte) *rewriter {
	capacity := 0
	if n := len(pat) - 1; n > 0 {
		capacity = n
	}
	return &rewriter{
		br:    bufio.NewReaderSize(r, 64*1024),
		pat:   pat,
		repl:  repl,
		carry: make([]byte, 0, capacity),
		chunk: make([]byte, 64*1024),
	}
}

// wrapReplacements chains one rewriter per replacement.
func wrapReplacements(r io.Reader, reps []Replacement) io.Reader {
	for _, rp := range reps {
		if rp.From == "" || rp.From == rp.To {
			continue
		}
		r = newRewriter(r, []byte(rp.From), []byte(rp.To))
	}
	return r
}

// Read implements io.Reader.
func (rw *rewriter) Read(p []byte) (int, error) {
	for rw.buf.Len() == 0 {
		if rw.eof {
			return 0, io.EOF
		}
		if err := rw.fill(); err != nil {
			return 0, err
		}
	}
	return rw.buf.Read(p)
}

// fill reads one chunk, rewrites it, and moves everything except the new
// carry into buf. At EOF the carry is flushed.
func (rw *rewriter) fill() error {
	n, rerr := rw.br.Read(rw.chunk)
	if n > 0 {
		block := make([]byte, 0, len(rw.carry)+n)
		block = append(block, rw.carry...)
		block = append(block, rw.chunk[:n]...)
		block = bytes.ReplaceAll(block, rw.pat, rw.repl)

		k := len(rw.pat) - 1
		if k > 0 && len(block) > k {
			rw.buf.Write(block[:len(block)-k])
			rw.carry = append(rw.carry[:0], block[len(block)-k:]...)
		} else if k > 0 {
			rw.carry = append(rw.carry[:0], block...)
		} else {
			rw.buf.Write(block)
		}
	}
	if rerr == io.EOF {
		rw.buf.Write(rw.carry)
		rw.carry = rw.carry[:0]
		rw.eof = true
		return nil
	}
	return rerr
}
