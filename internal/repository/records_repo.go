package repository

import (
	"context"
	"time"

	"emmo-data/internal/domain"
)

// Record list orderings.
const (
	RecordSortCreated   = ""          // newest first
	RecordSortScheduled = "scheduled" // earliest scheduled first
	RecordSortBoard     = "board"     // Kanban column order
)

// RecordsFilter narrows ListRecords. Empty fields are ignored.
type RecordsFilter struct {
	DriveID  string
	PartID   string
	Status   string
	Priority string
	// Overdue keeps records scheduled before Now that are not completed.
	Overdue bool
	// Upcoming keeps records scheduled at or after Now that are not completed.
	Upcoming bool
	Now      time.Time
	Sort     string
}

// RecordMutation edits a record in place and reports whether anything changed.
// Returning an error aborts the surrounding transaction.
type RecordMutation func(record *domain.MaintenanceRecord) (changed bool, err error)

// MaintenanceRecordsRepository 维护记录Repository接口
type MaintenanceRecordsRepository interface {
	// CreateRecord inserts the record at the end of its status column (SortOrder is assigned).
	CreateRecord(ctx context.Context, record *domain.MaintenanceRecord) error
	GetRecord(ctx context.Context, id string) (*domain.MaintenanceRecord, error)
	// ListRecords with size <= 0 returns every matching record.
	ListRecords(ctx context.Context, filter RecordsFilter, page, size int) ([]*domain.MaintenanceRecord, int, error)
	DeleteRecord(ctx context.Context, id string) error
	// MutateRecord is the single read-modify-write path for a record: the row is read,
	// fn applied and, if it changed anything, written back in one transaction.
	MutateRecord(ctx context.Context, id string, fn RecordMutation) (*domain.MaintenanceRecord, error)
}
