// Package canonsort rewrites a DNSBL file in a canonical order so that two
// lists can be compared with an ordinary diff.
//
// Regex rows come first, ordered by their raw text. Domain rows follow,
// ordered by their labels read from the top level down: at each position
// the shorter label sorts first, then the lexically smaller one, and a
// domain that runs out of labels sorts before the longer domains below it.
package canonsort

import (
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/babilon/dedup-domains/internal/linefile"
	"github.com/babilon/dedup-domains/internal/record"
)

// Suffix is appended to the input path to name the sorted output.
const Suffix = ".sorted"

// Result counts the rows of one sorted file.
type Result struct {
	Input   string `yaml:"input"`
	Output  string `yaml:"output"`
	Rows    int    `yaml:"rows"`
	Regex   int    `yaml:"regex"`
	Domains int    `yaml:"domains"`
	Ignored int    `yaml:"ignored"`
}

type entry struct {
	raw    string
	labels []string
}

// Compare orders two reversed label sequences.
func Compare(a, b []string) int {
	n := min(len(a), len(b))
	for i := 0; i < n; i++ {
		if la, lb := len(a[i]), len(b[i]); la != lb {
			return la - lb
		}
		if c := strings.Compare(a[i], b[i]); c != 0 {
			return c
		}
	}
	return len(a) - len(b)
}

// Lines sorts raw rows and returns them in canonical order along with the
// counts. Malformed rows are dropped.
func Lines(lines []string) ([]string, Result) {
	var (
		res     Result
		regex   []string
		domains []entry
	)
	for _, raw := range lines {
		res.Rows++
		row := record.ParseRow(raw)
		s, err := row.Classify()
		if err != nil {
			res.Ignored++
			continue
		}
		if s == record.Regex {
			regex = append(regex, raw)
			continue
		}
		domains = append(domains, entry{raw: raw, labels: record.ReverseLabels(row.Domain())})
	}

	slices.Sort(regex)
	slices.SortStableFunc(domains, func(a, b entry) int { return Compare(a.labels, b.labels) })

	out := make([]string, 0, len(regex)+len(domains))
	out = append(out, regex...)
	for _, e := range domains {
		out = append(out, e.raw)
	}
	res.Regex = len(regex)
	res.Domains = len(domains)
	return out, res
}

// File sorts path into path+Suffix. An input with no rows at all produces
// an output holding a single empty line.
func File(path string, logger *zap.Logger) (Result, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	lines, err := readLines(path)
	if err != nil {
		return Result{}, err
	}

	sorted, res := Lines(lines)
	res.Input = path
	res.Output = path + Suffix
	if res.Rows == 0 {
		logger.Info("Zero rows read", zap.String("file", path))
		sorted = []string{""}
	}

	if err := writeLines(res.Output, sorted); err != nil {
		return res, err
	}
	logger.Info("Sorted",
		zap.String("file", path),
		zap.String("output", res.Output),
		zap.Int("rows", res.Rows),
		zap.Int("regex", res.Regex),
		zap.Int("ignored", res.Ignored))
	return res, nil
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input %s: %w", path, err)
	}
	defer f.Close()

	var lines []string
	rd := linefile.NewReader(f)
	for {
		raw, _, err := rd.Next()
		if errors.Is(err, io.EOF) {
			return lines, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		lines = append(lines, raw)
	}
}

func writeLines(path string, lines []string) (err error) {
	out := linefile.NewWriters()
	if err := out.Create(path, path); err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	for _, l := range lines {
		if err := out.Write(path, l); err != nil {
			return err
		}
	}
	return nil
}
