// Package record holds the parsed form of a DNSBL row as it travels through
// the suffix trie: the domain, its reversed labels, the match strength and a
// storage payload that knows how to get the original row back.
package record

import (
	"errors"
	"strings"
)

// Strength is the match strength carried in column 7.
type Strength int

const (
	// Weak blocks the exact domain only.
	Weak Strength = 0
	// Full blocks the domain and every subdomain.
	Full Strength = 1
	// Regex rows hold a literal pattern and never enter the trie.
	Regex Strength = 2
)

func (s Strength) String() string {
	switch s {
	case Weak:
		return "weak"
	case Full:
		return "full"
	case Regex:
		return "regex"
	default:
		return "unknown"
	}
}

var (
	ErrRegexRecord = errors.New("regex rows cannot become records")
	ErrNoPayload   = errors.New("record requires a payload")
)

// Origin identifies the input file a record was read from. One Origin is
// shared by every record of that file.
type Origin struct {
	Name string // file name without the input extension
	Path string // path of the input file
}

// Payload is the storage side of a record. Liveness lives here so that the
// trie never has to know whether the row is resident or not.
type Payload interface {
	Alive() bool
	// Kill marks the record dead. It reports true only on the transition.
	Kill() bool
}

// Record is a strength 0 or 1 row prepared for insertion.
type Record struct {
	domain   string
	list     string
	group    string
	strength Strength
	origin   *Origin
	labels   []string
	payload  Payload
}

// New builds a record from a parsed row. The label sequence is derived once,
// most general label first.
func New(row Row, strength Strength, origin *Origin, payload Payload) (*Record, error) {
	if strength != Weak && strength != Full {
		return nil, ErrRegexRecord
	}
	if payload == nil {
		return nil, ErrNoPayload
	}
	domain := row.Domain()
	return &Record{
		domain:   domain,
		list:     row.List(),
		group:    row.Group(),
		strength: strength,
		origin:   origin,
		labels:   ReverseLabels(domain),
		payload:  payload,
	}, nil
}

func (r *Record) Domain() string     { return r.domain }
func (r *Record) List() string       { return r.list }
func (r *Record) Group() string      { return r.group }
func (r *Record) Strength() Strength { return r.strength }
func (r *Record) Origin() *Origin    { return r.origin }
func (r *Record) Payload() Payload   { return r.payload }

// Labels returns the reversed label sequence, e.g. ["com", "example", "www"].
// Callers must not modify it.
func (r *Record) Labels() []string { return r.labels }

func (r *Record) Alive() bool { return r.payload.Alive() }
func (r *Record) Kill() bool  { return r.payload.Kill() }

// ReverseLabels splits a domain on '.' and reverses the result.
func ReverseLabels(domain string) []string {
	labels := strings.Split(domain, ".")
	for i, j := 0, len(labels)-1; i < j; i, j = i+1, j-1 {
		labels[i], labels[j] = labels[j], labels[i]
	}
	return labels
}
