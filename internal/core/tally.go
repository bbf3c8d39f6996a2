package core

import (
	"sort"

	"github.com/goccy/go-json"
)

// Tally is a running count and byte total.
type Tally struct {
	Count int64 `json:"count"`
	Bytes int64 `json:"bytes"`
}

// Ranked is one entry of a top-N view.
type Ranked[K comparable] struct {
	Key K `json:"key"`
	Tally
}

// RankBy orders a top-N view.
type RankBy int

const (
	// RankByBytes orders by bytes, ties by first-seen order.
	RankByBytes RankBy = iota
	// RankByCount orders by count, then bytes, then first-seen order.
	RankByCount
)

// Tallies accumulates Tally values per key in first-seen order.
// The zero value is ready to use.
type Tallies[K comparable] struct {
	index map[K]int
	keys  []K
	vals  []Tally
}

// Add increments the tally for key by one transfer of bytes.
func (t *Tallies[K]) Add(key K, bytes int64) {
	t.AddTally(key, Tally{Count: 1, Bytes: bytes})
}

// AddTally merges v into the tally for key, inserting it if new.
func (t *Tallies[K]) AddTally(key K, v Tally) {
	if t.index == nil {
		t.index = make(map[K]int)
	}
	i, ok := t.index[key]
	if !ok {
		i = len(t.keys)
		t.index[key] = i
		t.keys = append(t.keys, key)
		t.vals = append(t.vals, Tally{})
	}
	t.vals[i].Count += v.Count
	t.vals[i].Bytes += v.Bytes
}

// Get returns the tally for key.
func (t *Tallies[K]) Get(key K) (Tally, bool) {
	i, ok := t.index[key]
	if !ok {
		return Tally{}, false
	}
	return t.vals[i], true
}

// Len returns the number of keys.
func (t *Tallies[K]) Len() int {
	return len(t.keys)
}

// Merge adds every tally of o, keeping o's order for keys new to t.
func (t *Tallies[K]) Merge(o *Tallies[K]) {
	if o == nil {
		return
	}
	for i, k := range o.keys {
		t.AddTally(k, o.vals[i])
	}
}

// Sum returns the total over all keys.
func (t *Tallies[K]) Sum() Tally {
	var s Tally
	for _, v := range t.vals {
		s.Count += v.Count
		s.Bytes += v.Bytes
	}
	return s
}

// All returns every entry in first-seen order.
func (t *Tallies[K]) All() []Ranked[K] {
	out := make([]Ranked[K], len(t.keys))
	for i, k := range t.keys {
		out[i] = Ranked[K]{Key: k, Tally: t.vals[i]}
	}
	return out
}

// Top returns the n highest entries. n <= 0 returns every entry ranked.
func (t *Tallies[K]) Top(n int, by RankBy) []Ranked[K] {
	out := t.All()
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].Tally, out[j].Tally
		if by == RankByCount {
			if a.Count != b.Count {
				return a.Count > b.Count
			}
		}
		return a.Bytes > b.Bytes
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// MarshalJSON encodes the tallies as an ordered list.
func (t *Tallies[K]) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.All())
}
