package model

import (
	"math"

	"github.com/m-mizutani/goerr/v2"
)

var (
	ErrInvalidSorting = goerr.New("invalid sorting structure")
)

const (
	// EvidenceCount is the exact number of evidence items in a sorting
	EvidenceCount = 3

	MinQuotes = 1
	MaxQuotes = 2

	MinAffinity = 0
	MaxAffinity = 100
)

// Sorting is the classification of a user into a house. HousePercentages are
// independent affinities (0-100) and do not sum to 100.
type Sorting struct {
	PrimaryHouse     House             `json:"primaryHouse"`
	HousePercentages map[House]float64 `json:"housePercentages"`
	Summary          string            `json:"summary"`
	Evidence         []Evidence        `json:"evidence"`
	CounterArguments map[House]string  `json:"counterArguments"`
}

type Evidence struct {
	Trait       string   `json:"trait"`
	Quotes      []string `json:"quotes"`
	Explanation string   `json:"explanation"`
}

// Validate checks required fields, affinity of every house within 0-100 and
// evidence shape of a sorting. Affinities are not required to sum to 100.
func (s *Sorting) Validate() error {
	if s.PrimaryHouse == "" {
		return goerr.Wrap(ErrInvalidSorting, "primaryHouse is missing")
	}
	if err := s.PrimaryHouse.Validate(); err != nil {
		return goerr.Wrap(ErrInvalidSorting, "primaryHouse is not a house", goerr.V("house", s.PrimaryHouse))
	}
	if s.HousePercentages == nil {
		return goerr.Wrap(ErrInvalidSorting, "housePercentages is missing")
	}
	for _, h := range Houses() {
		v, ok := s.HousePercentages[h]
		if !ok {
			return goerr.Wrap(ErrInvalidSorting, "housePercentages lacks a house", goerr.V("house", h))
		}
		if v < MinAffinity || v > MaxAffinity || math.IsNaN(v) {
			return goerr.Wrap(ErrInvalidSorting, "affinity is out of range",
				goerr.V("house", h),
				goerr.V("value", v))
		}
	}
	if s.CounterArguments == nil {
		return goerr.Wrap(ErrInvalidSorting, "counterArguments is missing")
	}
	if len(s.Evidence) != EvidenceCount {
		return goerr.Wrap(ErrInvalidSorting, "evidence must have exactly 3 items", goerr.V("count", len(s.Evidence)))
	}
	for i, ev := range s.Evidence {
		if n := len(ev.Quotes); n < MinQuotes || n > MaxQuotes {
			return goerr.Wrap(ErrInvalidSorting, "evidence must have 1-2 quotes",
				goerr.V("index", i),
				goerr.V("count", n))
		}
	}
	return nil
}

// FilterCounterArguments drops the entry of the primary house and empty
// explanations. It returns the number of remaining entries.
func (s *Sorting) FilterCounterArguments() int {
	filtered := make(map[House]string, len(s.CounterArguments))
	for house, reason := range s.CounterArguments {
		if house == s.PrimaryHouse || reason == "" {
			continue
		}
		filtered[house] = reason
	}
	s.CounterArguments = filtered
	return len(filtered)
}
