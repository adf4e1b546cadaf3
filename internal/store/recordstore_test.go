package store

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/babilon/dedup-domains/internal/linefile"
	"github.com/babilon/dedup-domains/internal/record"
)

type memSink struct {
	rows map[string][]string
}

func newMemSink(origins ...string) *memSink {
	s := &memSink{rows: make(map[string][]string)}
	for _, o := range origins {
		s.rows[o] = nil
	}
	return s
}

func (s *memSink) Write(origin, raw string) error {
	if _, ok := s.rows[origin]; !ok {
		return fmt.Errorf("%q: %w", origin, linefile.ErrNoWriter)
	}
	s.rows[origin] = append(s.rows[origin], raw)
	return nil
}

// ingest mimics the driver: every line becomes a record of origin.
func ingest(t *testing.T, st Store, origin *record.Origin, lines []string) []*record.Record {
	t.Helper()
	recs := make([]*record.Record, 0, len(lines))
	for i, raw := range lines {
		row := record.ParseRow(raw)
		s, err := row.Classify()
		require.NoError(t, err)
		r, err := record.New(row, s, origin, st.Payload(origin, i, row))
		require.NoError(t, err)
		recs = append(recs, r)
	}
	return recs
}

func writeInput(t *testing.T, name string, lines []string) *record.Origin {
	t.Helper()
	path := filepath.Join(t.TempDir(), name+".fat")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0644))
	return &record.Origin{Name: name, Path: path}
}

var sampleLines = []string{
	",a.com,,1,listA,grp,0",
	",b.com,,1,listA,grp,1",
	",c.com,,1,listA,grp,0\r",
	`,"d,quoted.com",,1,listA,grp,0`,
	",e.com,,1,listA,grp",
}

func TestParseStrategy(t *testing.T) {
	s, err := ParseStrategy("inline")
	require.NoError(t, err)
	assert.Equal(t, Inline, s)

	s, err = ParseStrategy("indexed")
	require.NoError(t, err)
	assert.Equal(t, Indexed, s)

	_, err = ParseStrategy("pointer")
	assert.ErrorIs(t, err, ErrUnknownStrategy)

	_, err = New("bogus", nil)
	assert.ErrorIs(t, err, ErrUnknownStrategy)
}

func TestMaterialize_RoundTrip(t *testing.T) {
	for _, strategy := range []Strategy{Inline, Indexed} {
		t.Run(string(strategy), func(t *testing.T) {
			st, err := New(strategy, zaptest.NewLogger(t))
			require.NoError(t, err)
			assert.Equal(t, strategy, st.Strategy())

			origin := writeInput(t, "listA", sampleLines)
			recs := ingest(t, st, origin, sampleLines)

			// drop line 1 as if rejected and kill line 3 as if a pattern matched
			require.True(t, recs[3].Kill())
			survivors := []*record.Record{recs[4], recs[0], recs[2], recs[3]}

			sink := newMemSink("listA")
			res, err := st.Materialize([]Group{{Origin: origin, Records: survivors}}, sink)
			require.NoError(t, err)

			assert.Equal(t, 3, res.Emitted, "ingested - rejected - killed")
			assert.Zero(t, res.Dropped)
			assert.ElementsMatch(t, []string{sampleLines[0], sampleLines[2], sampleLines[4]}, sink.rows["listA"])
		})
	}
}

func TestMaterialize_IndexedEmitsInLineOrder(t *testing.T) {
	st, err := New(Indexed, nil)
	require.NoError(t, err)

	origin := writeInput(t, "listA", sampleLines)
	recs := ingest(t, st, origin, sampleLines)

	shuffled := []*record.Record{recs[4], recs[1], recs[3], recs[0], recs[2]}
	sink := newMemSink("listA")
	res, err := st.Materialize([]Group{{Origin: origin, Records: shuffled}}, sink)
	require.NoError(t, err)

	assert.Equal(t, len(sampleLines), res.Emitted)
	assert.Equal(t, sampleLines, sink.rows["listA"], "bytes and order preserved")
}

func TestMaterialize_MissingWriterDrops(t *testing.T) {
	for _, strategy := range []Strategy{Inline, Indexed} {
		t.Run(string(strategy), func(t *testing.T) {
			st, err := New(strategy, nil)
			require.NoError(t, err)

			a := writeInput(t, "listA", sampleLines[:2])
			b := writeInput(t, "listB", sampleLines[2:3])
			groups := []Group{
				{Origin: a, Records: ingest(t, st, a, sampleLines[:2])},
				{Origin: b, Records: ingest(t, st, b, sampleLines[2:3])},
			}

			sink := newMemSink("listA")
			res, err := st.Materialize(groups, sink)
			require.NoError(t, err)
			assert.Equal(t, 2, res.Emitted)
			assert.Equal(t, 1, res.Dropped)
		})
	}
}

func TestMaterialize_IndexedDuplicateLineIsFatal(t *testing.T) {
	st, err := New(Indexed, nil)
	require.NoError(t, err)

	origin := writeInput(t, "listA", sampleLines)
	row := record.ParseRow(sampleLines[1])
	r1, err := record.New(row, record.Full, origin, st.Payload(origin, 1, row))
	require.NoError(t, err)
	r2, err := record.New(row, record.Full, origin, st.Payload(origin, 1, row))
	require.NoError(t, err)

	_, err = st.Materialize([]Group{{Origin: origin, Records: []*record.Record{r1, r2}}}, newMemSink("listA"))
	assert.ErrorIs(t, err, linefile.ErrBehindCursor)
}

func TestMaterialize_IndexedMissingInput(t *testing.T) {
	st, err := New(Indexed, nil)
	require.NoError(t, err)

	origin := &record.Origin{Name: "gone", Path: filepath.Join(t.TempDir(), "gone.fat")}
	recs := ingest(t, st, origin, sampleLines[:1])

	_, err = st.Materialize([]Group{{Origin: origin, Records: recs}}, newMemSink("gone"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestMaterialize_ForeignPayload(t *testing.T) {
	inline, err := New(Inline, nil)
	require.NoError(t, err)
	indexed, err := New(Indexed, nil)
	require.NoError(t, err)

	origin := writeInput(t, "listA", sampleLines)
	recs := ingest(t, inline, origin, sampleLines[:1])

	_, err = indexed.Materialize([]Group{{Origin: origin, Records: recs}}, newMemSink("listA"))
	assert.Error(t, err)
}

func TestIndexedLiveness_OutOfBand(t *testing.T) {
	st := newIndexedStore(nil)
	origin := &record.Origin{Name: "x"}
	other := &record.Origin{Name: "y"}

	p := st.Payload(origin, 130, record.Row{})
	q := st.Payload(other, 130, record.Row{})

	assert.True(t, p.Alive())
	assert.True(t, p.Kill())
	assert.False(t, p.Kill())
	assert.False(t, p.Alive())
	assert.True(t, q.Alive(), "liveness is per origin")
	assert.True(t, st.Payload(origin, 129, record.Row{}).Alive())
}

func TestMaterialize_IndexedStopsAtLastLiveLine(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	st, err := New(Indexed, zap.New(core))
	require.NoError(t, err)

	origin := writeInput(t, "listA", sampleLines)
	recs := ingest(t, st, origin, sampleLines)

	sink := newMemSink("listA")
	_, err = st.Materialize([]Group{{Origin: origin, Records: []*record.Record{recs[2], recs[0]}}}, sink)
	require.NoError(t, err)

	entries := logs.FilterMessage("Materialized origin").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.EqualValues(t, 2, fields["lines"])
	assert.EqualValues(t, 3, fields["scanned"], "lines after the last live row are never read")
}
