package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/m-mizutani/sortinghat/pkg/model"
)

// Memory is an in-process Repository used when no Firestore project is set
type Memory struct {
	mu       sync.RWMutex
	sortings []*model.SortingRecord
	shares   []*model.ShareRecord
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) PutSorting(ctx context.Context, record *model.SortingRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if record.ID == "" {
		record.ID = model.NewRecordID()
	}
	copied := *record
	m.sortings = append(m.sortings, &copied)
	return nil
}

func (m *Memory) ListSortings(ctx context.Context, limit int) ([]*model.SortingRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	records := make([]*model.SortingRecord, len(m.sortings))
	copy(records, m.sortings)
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})

	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

func (m *Memory) PutShare(ctx context.Context, record *model.ShareRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if record.ID == "" {
		record.ID = model.NewRecordID()
	}
	copied := *record
	m.shares = append(m.shares, &copied)
	return nil
}

func (m *Memory) ListSharesByFID(ctx context.Context, fid model.FID) ([]*model.ShareRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var records []*model.ShareRecord
	for _, r := range m.shares {
		if r.FID == fid {
			records = append(records, r)
		}
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
	return records, nil
}
