// Package fastaio opens a plain or gzip-compressed FASTA file
// (auto-detected by magic bytes) and streams its records.
package fastaio

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// Record is one FASTA entry: its identifier line (without the leading '>')
// and raw sequence bytes (newlines stripped).
type Record struct {
	ID  string
	Seq []byte

	// Line is the 1-based line number of the '>' header, for error
	// messages that need to point at a file position.
	Line int
}

var gzipMagic = [2]byte{0x1f, 0x8b}

// Open opens path for reading, transparently unwrapping gzip compression
// when the first two bytes match the gzip magic number. klauspost/compress's
// gzip reader is used instead of the stdlib one: it decodes meaningfully
// faster on the multi-gigabyte reference FASTA files this tool is meant to
// index.
func Open(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	br := bufio.NewReader(f)
	magic, err := br.Peek(2)
	if err != nil && err != io.EOF {
		f.Close()
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	if len(magic) == 2 && magic[0] == gzipMagic[0] && magic[1] == gzipMagic[1] {
		gz, err := gzip.NewReader(br)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("open %s: corrupt gzip header: %w", path, err)
		}
		return &gzipCloser{Reader: gz, f: f}, nil
	}

	return &plainCloser{Reader: br, f: f}, nil
}

type gzipCloser struct {
	*gzip.Reader
	f *os.File
}

func (g *gzipCloser) Close() error {
	g.Reader.Close()
	return g.f.Close()
}

type plainCloser struct {
	io.Reader
	f *os.File
}

func (p *plainCloser) Close() error { return p.f.Close() }

// ForEach streams every record in r, calling fn for each. Parsing stops at
// the first error, either from malformed input or from fn itself.
func ForEach(r io.Reader, fn func(Record) error) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)

	var cur *Record
	var seq strings.Builder
	lineNo := 0

	flush := func() error {
		if cur == nil {
			return nil
		}
		cur.Seq = []byte(seq.String())
		if len(cur.Seq) == 0 {
			return fmt.Errorf("%s:%d: empty sequence", cur.ID, cur.Line)
		}
		if err := fn(*cur); err != nil {
			return err
		}
		cur = nil
		seq.Reset()
		return nil
	}

	for sc.Scan() {
		lineNo++
		line := strings.TrimRight(sc.Text(), "\r")
		if line == "" {
			continue
		}

		if line[0] == '>' {
			if err := flush(); err != nil {
				return err
			}
			cur = &Record{ID: line[1:], Line: lineNo}
			continue
		}

		if cur == nil {
			return fmt.Errorf("line %d: sequence data before any '>' header", lineNo)
		}
		seq.WriteString(line)
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read FASTA: %w", err)
	}

	return flush()
}
