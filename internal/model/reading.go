package model

import (
	"sort"
	"time"
)

// MeterID is the device index typed into the metering application.
type MeterID string

// ReadingKind names one value read per meter (e.g. "previous_day").
type ReadingKind string

const (
	KindPreviousDay ReadingKind = "previous_day"
	KindResetEnergy ReadingKind = "reset_energy"
)

// MeterReading holds the values read from one meter. A kind that could not
// be parsed is absent from the map.
type MeterReading map[ReadingKind]float64

// Empty reports whether no value was read.
func (r MeterReading) Empty() bool {
	return len(r) == 0
}

// Kinds returns the kinds present in r in lexical order.
func (r MeterReading) Kinds() []ReadingKind {
	kinds := make([]ReadingKind, 0, len(r))
	for k := range r {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// ReadingSet maps meters to their readings for one automation cycle and
// remembers the order in which meters were collected.
type ReadingSet struct {
	order    []MeterID
	readings map[MeterID]MeterReading
}

func NewReadingSet() *ReadingSet {
	return &ReadingSet{readings: make(map[MeterID]MeterReading)}
}

// Add records the reading for id. A failed meter is added with an empty
// reading so that it keeps its slot. Adding the same id twice replaces the
// reading but keeps the original position.
func (s *ReadingSet) Add(id MeterID, r MeterReading) {
	if _, ok := s.readings[id]; !ok {
		s.order = append(s.order, id)
	}
	cp := make(MeterReading, len(r))
	for k, v := range r {
		cp[k] = v
	}
	s.readings[id] = cp
}

// Meters returns meter ids in collection order.
func (s *ReadingSet) Meters() []MeterID {
	if s == nil {
		return nil
	}
	out := make([]MeterID, len(s.order))
	copy(out, s.order)
	return out
}

func (s *ReadingSet) Get(id MeterID) (MeterReading, bool) {
	if s == nil {
		return nil, false
	}
	r, ok := s.readings[id]
	return r, ok
}

// Value returns the value of kind for meter id.
func (s *ReadingSet) Value(id MeterID, kind ReadingKind) (float64, bool) {
	r, ok := s.Get(id)
	if !ok {
		return 0, false
	}
	v, ok := r[kind]
	return v, ok
}

func (s *ReadingSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.order)
}

// Empty reports whether no meter in the set holds any value.
func (s *ReadingSet) Empty() bool {
	if s == nil {
		return true
	}
	for _, r := range s.readings {
		if !r.Empty() {
			return false
		}
	}
	return true
}

const (
	dateStampLayout = "02.01.2006"
	daySuffixLayout = "_02_01"
)

// DateStamp formats t as dd.mm.yyyy, the row key used in spreadsheets and the flat log.
func DateStamp(t time.Time) string {
	return t.Format(dateStampLayout)
}

// DaySuffix formats t as _dd_mm, used for alternate and exported file names.
func DaySuffix(t time.Time) string {
	return t.Format(daySuffixLayout)
}
