// Copyright ©2022 Evolution. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Centralised store of comparison metrics.

package metric

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

var ErrRecordNotFound = errors.New("record not found")

type ID int64

type Store struct {
	mu      sync.RWMutex
	records map[ID]Record
	next    ID
}

func NewStore() *Store {
	return &Store{
		records: make(map[ID]Record),
	}
}

func (s *Store) Insert(r Record) ID {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[s.next] = r
	id := s.next
	s.next++

	return id
}

func (s *Store) Get(id ID) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[id]
	if !ok {
		return r, fmt.Errorf("getting record: %w", ErrRecordNotFound)
	}

	return r, nil
}

func (s *Store) GetIDs() []ID {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]ID, 0, len(s.records))
	for id := range s.records {
		ids = append(ids, id)
	}
	// Insertion order.
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (s *Store) Update(id ID, r Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[id]; !exists {
		return fmt.Errorf("updating record: %w", ErrRecordNotFound)
	}

	s.records[id] = r
	return nil
}

// Records returns all records in insertion order.
func (s *Store) Records() []Record {
	ids := s.GetIDs()

	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Record, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.records[id])
	}
	return out
}

// Record contains metrics for a single reference/test comparison.
type Record struct {
	Name          string
	Metric        string
	ReferenceFile string
	TestFile      string
	FramesFile    string
	PlotFile      string
	FrameCount    int
	// Aggregate score, arithmetic mean of per-frame values
	Score        float64
	Min          float64
	Max          float64
	Mean         float64
	HarmonicMean float64
	StDev        float64
	Variance     float64
	HElapsed     string
	Elapsed      time.Duration
	// Non-empty for failed comparisons
	Error string
}
