package repository

import (
	"context"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/sortinghat/pkg/model"
	"google.golang.org/api/iterator"
)

const (
	collectionSortings = "sortings"
	collectionShares   = "shares"
)

// Firestore implements Repository interface using Firestore
type Firestore struct {
	client *firestore.Client
}

// New creates a new Firestore repository
func New(ctx context.Context, projectID, databaseID string) (*Firestore, error) {
	client, err := firestore.NewClientWithDatabase(ctx, projectID, databaseID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create firestore client",
			goerr.V("project", projectID),
			goerr.V("database", databaseID))
	}

	return &Firestore{client: client}, nil
}

// Close closes the underlying client
func (r *Firestore) Close() error {
	return r.client.Close()
}

func (r *Firestore) PutSorting(ctx context.Context, record *model.SortingRecord) error {
	if record.ID == "" {
		record.ID = model.NewRecordID()
	}
	if _, err := r.client.Collection(collectionSortings).Doc(string(record.ID)).Set(ctx, record); err != nil {
		return goerr.Wrap(err, "failed to put sorting", goerr.V("id", record.ID))
	}
	return nil
}

func (r *Firestore) ListSortings(ctx context.Context, limit int) ([]*model.SortingRecord, error) {
	iter := r.client.Collection(collectionSortings).
		OrderBy("CreatedAt", firestore.Desc).
		Limit(limit).
		Documents(ctx)
	defer iter.Stop()

	var records []*model.SortingRecord
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate sortings")
		}

		var record model.SortingRecord
		if err := doc.DataTo(&record); err != nil {
			return nil, goerr.Wrap(err, "failed to decode sorting", goerr.V("id", doc.Ref.ID))
		}
		records = append(records, &record)
	}

	return records, nil
}

func (r *Firestore) PutShare(ctx context.Context, record *model.ShareRecord) error {
	if record.ID == "" {
		record.ID = model.NewRecordID()
	}
	if _, err := r.client.Collection(collectionShares).Doc(string(record.ID)).Set(ctx, record); err != nil {
		return goerr.Wrap(err, "failed to put share", goerr.V("id", record.ID))
	}
	return nil
}

func (r *Firestore) ListSharesByFID(ctx context.Context, fid model.FID) ([]*model.ShareRecord, error) {
	iter := r.client.Collection(collectionShares).
		Where("FID", "==", int64(fid)).
		OrderBy("CreatedAt", firestore.Desc).
		Documents(ctx)
	defer iter.Stop()

	var records []*model.ShareRecord
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate shares", goerr.V("fid", fid))
		}

		var record model.ShareRecord
		if err := doc.DataTo(&record); err != nil {
			return nil, goerr.Wrap(err, "failed to decode share", goerr.V("id", doc.Ref.ID))
		}
		records = append(records, &record)
	}

	return records, nil
}
