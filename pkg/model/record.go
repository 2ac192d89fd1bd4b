package model

import (
	"time"

	"github.com/google/uuid"
)

type RecordID string

// NewRecordID generates a new unique RecordID
func NewRecordID() RecordID {
	return RecordID(uuid.New().String())
}

// SortingRecord is a log entry of a completed sorting
type SortingRecord struct {
	ID               RecordID
	FID              FID
	Username         string
	PrimaryHouse     House
	HousePercentages map[House]float64
	CastCount        int
	CreatedAt        time.Time
}

// ShareRecord is a log entry of a stored share image
type ShareRecord struct {
	ID             RecordID
	FID            FID
	House          House
	StorageKey     string
	PublicImageURL string
	CreatedAt      time.Time
}
