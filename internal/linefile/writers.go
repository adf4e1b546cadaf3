package linefile

import (
	"bufio"
	"errors"
	"fmt"
	"os"
)

type output struct {
	path string
	f    *os.File
	w    *bufio.Writer
}

// Writers keeps one output file per origin name.
type Writers struct {
	outs map[string]*output
}

func NewWriters() *Writers {
	return &Writers{outs: make(map[string]*output)}
}

// Create opens path for origin, truncating any previous content.
func (ws *Writers) Create(origin, path string) error {
	return ws.open(origin, path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC)
}

// Append opens path for origin in append mode so rows written by an earlier
// pass are preserved.
func (ws *Writers) Append(origin, path string) error {
	return ws.open(origin, path, os.O_CREATE|os.O_WRONLY|os.O_APPEND)
}

func (ws *Writers) open(origin, path string, flag int) error {
	if _, ok := ws.outs[origin]; ok {
		return fmt.Errorf("output for %q already open", origin)
	}
	f, err := os.OpenFile(path, flag, 0644)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	ws.outs[origin] = &output{path: path, f: f, w: bufio.NewWriterSize(f, readBufferSize)}
	return nil
}

// Write appends raw plus a newline to the output of origin.
func (ws *Writers) Write(origin, raw string) error {
	out, ok := ws.outs[origin]
	if !ok {
		return fmt.Errorf("%q: %w", origin, ErrNoWriter)
	}
	if _, err := out.w.WriteString(raw); err != nil {
		return fmt.Errorf("write %s: %w", out.path, err)
	}
	if err := out.w.WriteByte('\n'); err != nil {
		return fmt.Errorf("write %s: %w", out.path, err)
	}
	return nil
}

// CloseOrigin flushes and closes the output of one origin.
func (ws *Writers) CloseOrigin(origin string) error {
	out, ok := ws.outs[origin]
	if !ok {
		return nil
	}
	delete(ws.outs, origin)
	return out.close()
}

// Close flushes and closes every open output.
func (ws *Writers) Close() error {
	var errs []error
	for origin, out := range ws.outs {
		if err := out.close(); err != nil {
			errs = append(errs, err)
		}
		delete(ws.outs, origin)
	}
	return errors.Join(errs...)
}

func (o *output) close() error {
	flushErr := o.w.Flush()
	closeErr := o.f.Close()
	if flushErr != nil {
		return fmt.Errorf("flush %s: %w", o.path, flushErr)
	}
	if closeErr != nil {
		return fmt.Errorf("close %s: %w", o.path, closeErr)
	}
	return nil
}
