// Package linefile reads and writes DNSBL files one raw line at a time.
//
// Lines are handed out exactly as stored, minus the terminating '\n', so
// that a row copied from input to output keeps its original bytes.
package linefile

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
)

var (
	// ErrBehindCursor means a line was requested that the cursor already
	// passed. Callers must request indices in ascending order.
	ErrBehindCursor = errors.New("requested line is behind the cursor")
	// ErrNoWriter means no output is registered for an origin.
	ErrNoWriter = errors.New("no writer for origin")
)

const readBufferSize = 64 * 1024

// Reader yields raw lines of any length.
type Reader struct {
	br   *bufio.Reader
	next int
}

func NewReader(r io.Reader) *Reader {
	return &Reader{br: bufio.NewReaderSize(r, readBufferSize)}
}

// Next returns the next line and its zero based index. It returns io.EOF
// once the input is exhausted. A final line without '\n' is still returned.
func (r *Reader) Next() (string, int, error) {
	line, err := r.br.ReadString('\n')
	if err != nil {
		if err == io.EOF && line != "" {
			idx := r.next
			r.next++
			return line, idx, nil
		}
		return "", r.next, err
	}
	idx := r.next
	r.next++
	return line[:len(line)-1], idx, nil
}

// skip advances past one line without keeping it.
func (r *Reader) skip() error {
	for {
		_, isPrefix, err := r.br.ReadLine()
		if err != nil {
			return err
		}
		if !isPrefix {
			r.next++
			return nil
		}
	}
}

// Cursor re-reads an input file forward only.
type Cursor struct {
	path string
	f    *os.File
	r    *Reader
}

func Open(path string) (*Cursor, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return &Cursor{path: path, f: f, r: NewReader(f)}, nil
}

// Position is the index of the next line the cursor will read.
func (c *Cursor) Position() int { return c.r.next }

// Line skips forward to index and returns that line.
func (c *Cursor) Line(index int) (string, error) {
	if index < c.r.next {
		return "", fmt.Errorf("%s: line %d, cursor at %d: %w", c.path, index, c.r.next, ErrBehindCursor)
	}
	for c.r.next < index {
		if err := c.r.skip(); err != nil {
			return "", c.eof(index, err)
		}
	}
	line, _, err := c.r.Next()
	if err != nil {
		return "", c.eof(index, err)
	}
	return line, nil
}

func (c *Cursor) eof(index int, err error) error {
	if err == io.EOF {
		return fmt.Errorf("%s: line %d past end of file: %w", c.path, index, io.ErrUnexpectedEOF)
	}
	return fmt.Errorf("read %s: %w", c.path, err)
}

func (c *Cursor) Close() error {
	if c.f == nil {
		return nil
	}
	err := c.f.Close()
	c.f = nil
	return err
}
