package md

import (
	"sort"
	"time"
)

// DefaultCapacity is the number of samples the chart keeps.
const DefaultCapacity = 50

type Sample struct {
	Timestamp     time.Time `json:"timestamp"`
	Price         float64   `json:"price"`
	MovingAverage float64   `json:"movingAverage"`
}

// Series is a fixed-capacity ring of samples. Once full, each append evicts the
// oldest sample. Timestamps never decrease from one sample to the next.
type Series struct {
	samples []Sample
	size    int
	index   int
	filled  bool
}

func NewSeries(size int) *Series {
	if size <= 0 {
		size = DefaultCapacity
	}
	return &Series{
		samples: make([]Sample, size),
		size:    size,
	}
}

func (s *Series) Cap() int {
	return s.size
}

// Append adds a sample at the tail. A sample older than the current tail is
// stamped with the tail's timestamp.
func (s *Series) Append(sample Sample) {
	if last, ok := s.Last(); ok && sample.Timestamp.Before(last.Timestamp) {
		sample.Timestamp = last.Timestamp
	}
	s.samples[s.index] = sample
	s.index = (s.index + 1) % s.size
	if s.index == 0 {
		s.filled = true
	}
}

func (s *Series) Len() int {
	if s.filled {
		return s.size
	}
	return s.index
}

// Samples returns a copy of the buffer, oldest first.
func (s *Series) Samples() []Sample {
	length := s.Len()
	result := make([]Sample, 0, length)
	if length == 0 {
		return result
	}
	if s.filled {
		result = append(result, s.samples[s.index:]...)
	}
	result = append(result, s.samples[:s.index]...)
	return result
}

func (s *Series) Last() (Sample, bool) {
	if s.Len() == 0 {
		return Sample{}, false
	}
	return s.samples[(s.index-1+s.size)%s.size], true
}

func (s *Series) Reset() {
	clear(s.samples)
	s.index = 0
	s.filled = false
}

// ReplaceWith discards the current content and loads samples in timestamp
// order. Only the most recent Cap() samples are kept.
func (s *Series) ReplaceWith(samples []Sample) {
	ordered := make([]Sample, len(samples))
	copy(ordered, samples)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Timestamp.Before(ordered[j].Timestamp)
	})
	if len(ordered) > s.size {
		ordered = ordered[len(ordered)-s.size:]
	}

	s.Reset()
	for _, sample := range ordered {
		s.Append(sample)
	}
}
