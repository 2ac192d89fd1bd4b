package repository

import (
	"context"

	"github.com/m-mizutani/sortinghat/pkg/model"
)

// Repository defines the interface of the sorting log
type Repository interface {
	// PutSorting saves a completed sorting
	PutSorting(ctx context.Context, record *model.SortingRecord) error

	// ListSortings retrieves the most recent sortings, newest first
	ListSortings(ctx context.Context, limit int) ([]*model.SortingRecord, error)

	// PutShare saves a stored share image
	PutShare(ctx context.Context, record *model.ShareRecord) error

	// ListSharesByFID retrieves share records of a user, newest first
	ListSharesByFID(ctx context.Context, fid model.FID) ([]*model.ShareRecord, error)
}
