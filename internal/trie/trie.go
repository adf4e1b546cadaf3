// Package trie implements the domain suffix trie that decides which DNSBL
// records are redundant.
//
// Labels are consumed most general first ("com", then "example", then
// "www"). A node holding a Full (strength 1) record covers its whole subtree:
// installing one drops every descendant and later insertions below it are
// rejected. A Weak (strength 0) record covers only its exact domain, so a
// weak node may still gain children.
package trie

import (
	"iter"

	"github.com/babilon/dedup-domains/internal/record"
)

type node struct {
	label    string
	children map[string]*node
	order    []string // child labels in insertion order
	rec      *record.Record
}

func (n *node) child(label string) *node {
	if n.children == nil {
		return nil
	}
	return n.children[label]
}

func (n *node) addChild(label string) *node {
	if n.children == nil {
		n.children = make(map[string]*node)
	}
	c := &node{label: label}
	n.children[label] = c
	n.order = append(n.order, label)
	return c
}

func (n *node) isLeaf() bool { return len(n.children) == 0 }

// Stats counts what insertion did to the trie.
type Stats struct {
	Nodes    int `yaml:"nodes"`
	Records  int `yaml:"records"`
	Kept     int `yaml:"kept"`
	Rejected int `yaml:"rejected"`
	// Replaced counts terminal records overwritten by a stronger duplicate.
	Replaced int `yaml:"replaced"`
	// Subsumed counts descendant records dropped by a Full install.
	Subsumed int `yaml:"subsumed"`
}

// Trie holds the best known record for every domain path. It is not safe
// for concurrent use; callers serialize Insert.
type Trie struct {
	root  node
	stats Stats
}

func New() *Trie {
	return &Trie{}
}

// Insert offers r to the trie and reports whether it was kept. A false
// return means r is redundant: an ancestor with Full strength covers it, or
// the same domain is already present with equal or greater strength.
func (t *Trie) Insert(r *record.Record) bool {
	kept := t.insert(r)
	if kept {
		t.stats.Kept++
	} else {
		t.stats.Rejected++
	}
	return kept
}

func (t *Trie) insert(r *record.Record) bool {
	labels := r.Labels()
	cur := &t.root

	for i := 0; i < len(labels); i++ {
		c := cur.child(labels[i])
		if c == nil {
			t.attach(cur, labels[i:], r)
			return true
		}

		if c.isLeaf() && c.rec != nil {
			if i == len(labels)-1 {
				// same domain on both sides
				return t.settle(c, r)
			}
			if c.rec.Strength() == record.Full {
				return false
			}
		}
		cur = c
	}

	return t.settle(cur, r)
}

// attach builds a fresh chain below parent for the remaining labels.
func (t *Trie) attach(parent *node, labels []string, r *record.Record) {
	n := parent
	for _, l := range labels {
		n = n.addChild(l)
		t.stats.Nodes++
	}
	n.rec = r
	t.stats.Records++
}

// settle resolves an insertion whose labels are all consumed at n.
func (t *Trie) settle(n *node, r *record.Record) bool {
	if n.rec == nil {
		n.rec = r
		t.stats.Records++
		if r.Strength() == record.Full {
			t.prune(n)
		}
		return true
	}

	if r.Strength() <= n.rec.Strength() {
		return false
	}

	n.rec = r
	t.stats.Replaced++
	if r.Strength() == record.Full {
		t.prune(n)
	}
	return true
}

// prune drops every descendant of n.
func (t *Trie) prune(n *node) {
	if n.isLeaf() {
		return
	}
	stack := make([]*node, 0, len(n.children))
	for _, c := range n.children {
		stack = append(stack, c)
	}
	for len(stack) > 0 {
		c := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		t.stats.Nodes--
		if c.rec != nil {
			t.stats.Records--
			t.stats.Subsumed++
		}
		for _, gc := range c.children {
			stack = append(stack, gc)
		}
	}
	n.children = nil
	n.order = nil
}

// Live yields every terminal record that is still alive. The walk is depth
// first, parent before children, children in the order their labels were
// first inserted. It uses an explicit stack so very deep domains do not
// grow the call stack.
//
// Records may be killed while iterating; the trie structure must not be
// modified until the iteration ends.
func (t *Trie) Live() iter.Seq[*record.Record] {
	return t.walk(true)
}

// All yields every terminal record, dead ones included, in the same order
// as Live.
func (t *Trie) All() iter.Seq[*record.Record] {
	return t.walk(false)
}

func (t *Trie) walk(liveOnly bool) iter.Seq[*record.Record] {
	return func(yield func(*record.Record) bool) {
		stack := make([]*node, 0, 64)
		pushChildren := func(n *node) {
			for i := len(n.order) - 1; i >= 0; i-- {
				stack = append(stack, n.children[n.order[i]])
			}
		}

		pushChildren(&t.root)
		for len(stack) > 0 {
			n := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if n.rec != nil && (!liveOnly || n.rec.Alive()) {
				if !yield(n.rec) {
					return
				}
			}
			pushChildren(n)
		}
	}
}

// Len returns the number of terminal records, live or dead.
func (t *Trie) Len() int { return t.stats.Records }

func (t *Trie) Stats() Stats { return t.stats }
