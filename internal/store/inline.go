package store

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/babilon/dedup-domains/internal/record"
)

type rowPayload struct {
	raw  string
	dead bool
}

func (p *rowPayload) Alive() bool { return !p.dead }

func (p *rowPayload) Kill() bool {
	if p.dead {
		return false
	}
	p.dead = true
	return true
}

type inlineStore struct {
	logger *zap.Logger
}

func (s *inlineStore) Strategy() Strategy { return Inline }

func (s *inlineStore) Payload(_ *record.Origin, _ int, row record.Row) record.Payload {
	return &rowPayload{raw: row.Raw}
}

func (s *inlineStore) Materialize(groups []Group, sink Sink) (Result, error) {
	var res Result
	for _, g := range groups {
		for _, r := range g.Records {
			p, ok := r.Payload().(*rowPayload)
			if !ok {
				return res, fmt.Errorf("record %s was not created by the inline store", r.Domain())
			}
			if p.dead {
				continue
			}
			if err := emit(sink, &res, s.logger, g.Origin.Name, p.raw); err != nil {
				return res, err
			}
		}
		s.logger.Debug("Materialized origin",
			zap.String("origin", g.Origin.Name),
			zap.Int("records", len(g.Records)))
	}
	return res, nil
}
