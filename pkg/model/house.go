package model

import (
	"github.com/m-mizutani/goerr/v2"
)

var (
	ErrInvalidHouse = goerr.New("invalid house")
)

type House string

const (
	HouseGryffindor House = "Gryffindor"
	HouseSlytherin  House = "Slytherin"
	HouseHufflepuff House = "Hufflepuff"
	HouseRavenclaw  House = "Ravenclaw"
)

// Houses returns all houses in a stable order
func Houses() []House {
	return []House{
		HouseGryffindor,
		HouseSlytherin,
		HouseHufflepuff,
		HouseRavenclaw,
	}
}

// Validate checks if the house is one of the four known houses
func (h House) Validate() error {
	switch h {
	case HouseGryffindor, HouseSlytherin, HouseHufflepuff, HouseRavenclaw:
		return nil
	default:
		return goerr.Wrap(ErrInvalidHouse, "unknown house", goerr.V("house", h))
	}
}

// Others returns the three houses that are not h
func (h House) Others() []House {
	others := make([]House, 0, 3)
	for _, house := range Houses() {
		if house != h {
			others = append(others, house)
		}
	}
	return others
}
