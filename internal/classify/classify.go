// Package classify maps raw detections from the remote classification service
// onto the fixed moderation taxonomy and derives the final verdict.
package classify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Detection is one labeled finding reported by the classification service.
type Detection struct {
	Label      string
	Confidence float32
	Timestamp  time.Duration
}

// Verdict is the final moderation decision for a session.
type Verdict string

const (
	VerdictAllowed  Verdict = "allowed"
	VerdictRejected Verdict = "rejected"
)

// Tally counts detections per taxonomy category. Every declared category is
// present, zero-initialized, and serializes in taxonomy declaration order.
type Tally struct {
	order  []Category
	counts map[Category]int
}

// NewTally returns an all-zero tally over the taxonomy's categories.
func (x Taxonomy) NewTally() Tally {
	t := Tally{
		order:  x.Categories,
		counts: make(map[Category]int, len(x.Categories)),
	}
	for _, c := range x.Categories {
		t.counts[c] = 0
	}
	return t
}

// Classify tallies detections against the taxonomy. Labels with no taxonomy
// entry are ignored; the service's label set may grow ahead of the table.
func (x Taxonomy) Classify(detections []Detection) Tally {
	t := x.NewTally()
	for _, d := range detections {
		c, ok := x.Labels[d.Label]
		if !ok {
			continue
		}
		t.counts[c]++
	}
	return t
}

// Count returns the tally for a single category.
func (t Tally) Count(c Category) int {
	return t.counts[c]
}

// Categories returns the tally's keys in declaration order.
func (t Tally) Categories() []Category {
	return t.order
}

// Total sums all category counts.
func (t Tally) Total() int {
	sum := 0
	for _, n := range t.counts {
		sum += n
	}
	return sum
}

// Verdict is allowed only when no detection hit any category.
func (t Tally) Verdict() Verdict {
	if t.Total() == 0 {
		return VerdictAllowed
	}
	return VerdictRejected
}

// MarshalJSON emits the tally as an object whose keys appear in taxonomy
// declaration order.
func (t Tally) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, c := range t.order {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(string(c))
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		fmt.Fprintf(&buf, ":%d", t.counts[c])
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
