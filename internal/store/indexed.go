package store

import (
	"fmt"
	"slices"

	"go.uber.org/zap"

	"github.com/babilon/dedup-domains/internal/linefile"
	"github.com/babilon/dedup-domains/internal/record"
)

// deadLines is a per-origin bit set of killed line indices.
type deadLines []uint64

func (d *deadLines) has(line int) bool {
	w := line / 64
	return w < len(*d) && (*d)[w]&(1<<(uint(line)%64)) != 0
}

func (d *deadLines) set(line int) {
	w := line / 64
	if w >= len(*d) {
		*d = append(*d, make([]uint64, w-len(*d)+1)...)
	}
	(*d)[w] |= 1 << (uint(line) % 64)
}

// locator points at a row in its input file. Its liveness is kept in the
// owning store, not in the locator.
type locator struct {
	store  *indexedStore
	origin *record.Origin
	line   int
}

func (l *locator) Alive() bool {
	d := l.store.dead[l.origin]
	return d == nil || !d.has(l.line)
}

func (l *locator) Kill() bool {
	d := l.store.dead[l.origin]
	if d == nil {
		d = &deadLines{}
		l.store.dead[l.origin] = d
	}
	if d.has(l.line) {
		return false
	}
	d.set(l.line)
	return true
}

type indexedStore struct {
	logger *zap.Logger
	dead   map[*record.Origin]*deadLines
}

func newIndexedStore(logger *zap.Logger) *indexedStore {
	return &indexedStore{
		logger: logger,
		dead:   make(map[*record.Origin]*deadLines),
	}
}

func (s *indexedStore) Strategy() Strategy { return Indexed }

func (s *indexedStore) Payload(origin *record.Origin, line int, _ record.Row) record.Payload {
	return &locator{store: s, origin: origin, line: line}
}

func (s *indexedStore) Materialize(groups []Group, sink Sink) (Result, error) {
	var res Result
	for _, g := range groups {
		lines := make([]int, 0, len(g.Records))
		for _, r := range g.Records {
			loc, ok := r.Payload().(*locator)
			if !ok || loc.store != s {
				return res, fmt.Errorf("record %s was not created by this indexed store", r.Domain())
			}
			if loc.Alive() {
				lines = append(lines, loc.line)
			}
		}
		if len(lines) == 0 {
			continue
		}
		slices.Sort(lines)

		if err := s.copyLines(g.Origin, lines, sink, &res); err != nil {
			return res, err
		}
	}
	return res, nil
}

// copyLines makes one forward pass over the origin's input file.
func (s *indexedStore) copyLines(origin *record.Origin, lines []int, sink Sink, res *Result) error {
	cur, err := linefile.Open(origin.Path)
	if err != nil {
		return err
	}
	defer cur.Close()

	for _, idx := range lines {
		raw, err := cur.Line(idx)
		if err != nil {
			return err
		}
		if err := emit(sink, res, s.logger, origin.Name, raw); err != nil {
			return err
		}
	}
	s.logger.Debug("Materialized origin",
		zap.String("origin", origin.Name),
		zap.Int("lines", len(lines)),
		zap.Int("scanned", cur.Position()))
	return nil
}
