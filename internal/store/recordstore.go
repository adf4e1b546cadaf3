// Package store decides how a record gets its original row back at output
// time. Two strategies exist:
//
//   - inline: the record keeps the full row in memory. Materializing is a
//     filter with no I/O.
//   - indexed: the record keeps only its line index. Materializing re-reads
//     each input file once, forward only, and copies the surviving lines.
//
// The trie and the literal filter only ever see record.Payload, so neither
// knows which strategy is active.
package store

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/babilon/dedup-domains/internal/linefile"
	"github.com/babilon/dedup-domains/internal/record"
)

// Strategy names a record storage strategy.
type Strategy string

const (
	Inline  Strategy = "inline"
	Indexed Strategy = "indexed"
)

var ErrUnknownStrategy = errors.New("unknown storage strategy")

func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case Inline, Indexed:
		return Strategy(s), nil
	default:
		return "", fmt.Errorf("%w: %q (want %q or %q)", ErrUnknownStrategy, s, Inline, Indexed)
	}
}

// Group is the set of live records that came from one input file.
type Group struct {
	Origin  *record.Origin
	Records []*record.Record
}

// Sink receives materialized rows. Write returns an error wrapping
// linefile.ErrNoWriter when no output exists for origin.
type Sink interface {
	Write(origin, raw string) error
}

// Result summarizes a materialization.
type Result struct {
	Emitted int `yaml:"emitted"`
	// Dropped counts rows that had no writer for their origin.
	Dropped int `yaml:"dropped"`
}

// Store creates payloads during ingestion and turns surviving records back
// into rows.
type Store interface {
	Strategy() Strategy
	Payload(origin *record.Origin, line int, row record.Row) record.Payload
	Materialize(groups []Group, sink Sink) (Result, error)
}

// New returns the store for strategy s.
func New(s Strategy, logger *zap.Logger) (Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch s {
	case Inline:
		return &inlineStore{logger: logger}, nil
	case Indexed:
		return newIndexedStore(logger), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, s)
	}
}

// emit writes one row and classifies a missing writer as a drop.
func emit(sink Sink, res *Result, logger *zap.Logger, origin, raw string) error {
	err := sink.Write(origin, raw)
	switch {
	case err == nil:
		res.Emitted++
		return nil
	case errors.Is(err, linefile.ErrNoWriter):
		res.Dropped++
		logger.Warn("No writer for origin, row dropped",
			zap.String("origin", origin),
			zap.String("row", raw))
		return nil
	default:
		return err
	}
}
