package repository

import (
	"context"
	"fmt"
	"time"

	"emmo-data/internal/domain"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

const recordColumns = `id, drive_id, part_id, title, description, status, priority, scheduled_date, completed_at,
	checklist_json, sort_order, created_by, updated_by, created_at, updated_at`

// recordRow is the storage shape; the checklist travels as a JSON text column.
type recordRow struct {
	ID            string     `db:"id"`
	DriveID       *string    `db:"drive_id"`
	PartID        *string    `db:"part_id"`
	Title         string     `db:"title"`
	Description   string     `db:"description"`
	Status        string     `db:"status"`
	Priority      string     `db:"priority"`
	ScheduledDate *time.Time `db:"scheduled_date"`
	CompletedAt   *time.Time `db:"completed_at"`
	ChecklistJSON string     `db:"checklist_json"`
	SortOrder     int        `db:"sort_order"`
	CreatedBy     string     `db:"created_by"`
	UpdatedBy     string     `db:"updated_by"`
	CreatedAt     time.Time  `db:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at"`
}

// SQLMaintenanceRecordsRepository implements MaintenanceRecordsRepository on sqlx.
type SQLMaintenanceRecordsRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

func NewSQLMaintenanceRecordsRepository(db *sqlx.DB, logger *zap.Logger) *SQLMaintenanceRecordsRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SQLMaintenanceRecordsRepository{db: db, logger: logger}
}

var _ MaintenanceRecordsRepository = (*SQLMaintenanceRecordsRepository)(nil)

// toDomain normalizes the stored checklist. Corrupt elements are dropped and logged;
// a blob that is not an array at all is read as an empty checklist. A non-empty
// checklist decides the status that is returned.
func (r *SQLMaintenanceRecordsRepository) toDomain(row *recordRow) *domain.MaintenanceRecord {
	checklist, dropped, err := domain.ParseChecklist([]byte(row.ChecklistJSON))
	if err != nil {
		r.logger.Warn("Unreadable checklist, treating as empty",
			zap.String("record_id", row.ID),
			zap.Error(err),
		)
	}
	for _, d := range dropped {
		r.logger.Warn("Dropped malformed checklist item",
			zap.String("record_id", row.ID),
			zap.Error(d),
		)
	}
	rec := &domain.MaintenanceRecord{
		ID:            row.ID,
		DriveID:       row.DriveID,
		PartID:        row.PartID,
		Title:         row.Title,
		Description:   row.Description,
		Status:        domain.MaintenanceStatus(row.Status),
		Priority:      domain.Priority(row.Priority),
		ScheduledDate: row.ScheduledDate,
		CompletedAt:   row.CompletedAt,
		Checklist:     checklist,
		SortOrder:     row.SortOrder,
		CreatedBy:     row.CreatedBy,
		UpdatedBy:     row.UpdatedBy,
		CreatedAt:     row.CreatedAt,
		UpdatedAt:     row.UpdatedAt,
	}

	// 有清单时状态总是由清单推导；存储值不一致时只修正读出的记录，不回写
	if derived, ok := domain.DeriveMaintenanceStatus(checklist); ok && derived != rec.Status {
		r.logger.Warn("Stored status disagrees with checklist, using derived status",
			zap.String("record_id", row.ID),
			zap.String("stored", row.Status),
			zap.String("derived", string(derived)),
		)
		rec.SetStatus(derived, row.UpdatedAt)
	}
	return rec
}

func (r *SQLMaintenanceRecordsRepository) CreateRecord(ctx context.Context, rec *domain.MaintenanceRecord) error {
	checklist, err := domain.SerializeChecklist(rec.Checklist)
	if err != nil {
		return fmt.Errorf("failed to serialize checklist: %w", err)
	}
	return withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		var next int
		err := tx.GetContext(ctx, &next,
			tx.Rebind(`SELECT COALESCE(MAX(sort_order), -1) + 1 FROM maintenance_records WHERE status = ?`),
			string(rec.Status))
		if err != nil {
			return fmt.Errorf("failed to compute sort order: %w", err)
		}
		rec.SortOrder = next

		_, err = tx.ExecContext(ctx, tx.Rebind(`
			INSERT INTO maintenance_records (`+recordColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
			rec.ID, nullableString(rec.DriveID), nullableString(rec.PartID), rec.Title, rec.Description,
			string(rec.Status), string(rec.Priority), rec.ScheduledDate, rec.CompletedAt,
			string(checklist), rec.SortOrder, rec.CreatedBy, rec.UpdatedBy, rec.CreatedAt, rec.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to create maintenance record: %w", err)
		}
		return nil
	})
}

func (r *SQLMaintenanceRecordsRepository) GetRecord(ctx context.Context, id string) (*domain.MaintenanceRecord, error) {
	row, err := getRecordRow(ctx, r.db, id, "")
	if err != nil {
		return nil, err
	}
	return r.toDomain(row), nil
}

func getRecordRow(ctx context.Context, q queryer, id, suffix string) (*recordRow, error) {
	var row recordRow
	query := q.Rebind(`SELECT ` + recordColumns + ` FROM maintenance_records WHERE id = ?` + suffix)
	if err := sqlx.GetContext(ctx, q, &row, query, id); err != nil {
		if isNoRows(err) {
			return nil, domain.NotFoundf("maintenance record %s not found", id)
		}
		return nil, fmt.Errorf("failed to get maintenance record: %w", err)
	}
	return &row, nil
}

func (r *SQLMaintenanceRecordsRepository) ListRecords(ctx context.Context, filter RecordsFilter, page, size int) ([]*domain.MaintenanceRecord, int, error) {
	now := filter.Now
	if now.IsZero() {
		now = nowUTC()
	}

	var w whereBuilder
	if filter.DriveID != "" {
		w.add("drive_id = ?", filter.DriveID)
	}
	if filter.PartID != "" {
		w.add("part_id = ?", filter.PartID)
	}
	if filter.Status != "" {
		w.add("status = ?", filter.Status)
	}
	if filter.Priority != "" {
		w.add("priority = ?", filter.Priority)
	}
	if filter.Overdue {
		w.add("scheduled_date IS NOT NULL AND scheduled_date < ? AND status <> ?", now, string(domain.MaintenanceCompleted))
	}
	if filter.Upcoming {
		w.add("scheduled_date IS NOT NULL AND scheduled_date >= ? AND status <> ?", now, string(domain.MaintenanceCompleted))
	}

	var total int
	if err := r.db.GetContext(ctx, &total, r.db.Rebind(`SELECT COUNT(*) FROM maintenance_records`+w.clause()), w.args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count maintenance records: %w", err)
	}

	order := " ORDER BY created_at DESC, id"
	switch filter.Sort {
	case RecordSortScheduled:
		order = " ORDER BY scheduled_date ASC, id"
	case RecordSortBoard:
		order = " ORDER BY status, sort_order ASC, updated_at DESC, id"
	}

	limit, args := limitClause(page, size, w.args)
	query := r.db.Rebind(`SELECT ` + recordColumns + ` FROM maintenance_records` + w.clause() + order + limit)
	var rows []*recordRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to list maintenance records: %w", err)
	}

	records := make([]*domain.MaintenanceRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, r.toDomain(row))
	}
	return records, total, nil
}

func (r *SQLMaintenanceRecordsRepository) DeleteRecord(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM maintenance_records WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("failed to delete maintenance record: %w", err)
	}
	return expectAffected(res, "maintenance record", id)
}

func (r *SQLMaintenanceRecordsRepository) MutateRecord(ctx context.Context, id string, fn RecordMutation) (*domain.MaintenanceRecord, error) {
	var rec *domain.MaintenanceRecord
	err := withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		row, err := getRecordRow(ctx, tx, id, forUpdate(r.db))
		if err != nil {
			return err
		}
		rec = r.toDomain(row)

		changed, err := fn(rec)
		if err != nil || !changed {
			return err
		}

		checklist, err := domain.SerializeChecklist(rec.Checklist)
		if err != nil {
			return fmt.Errorf("failed to serialize checklist: %w", err)
		}
		_, err = tx.ExecContext(ctx, tx.Rebind(`
			UPDATE maintenance_records
			SET drive_id = ?, part_id = ?, title = ?, description = ?, status = ?, priority = ?,
				scheduled_date = ?, completed_at = ?, checklist_json = ?, sort_order = ?,
				updated_by = ?, updated_at = ?
			WHERE id = ?`),
			nullableString(rec.DriveID), nullableString(rec.PartID), rec.Title, rec.Description,
			string(rec.Status), string(rec.Priority), rec.ScheduledDate, rec.CompletedAt,
			string(checklist), rec.SortOrder, rec.UpdatedBy, rec.UpdatedAt, rec.ID)
		if err != nil {
			return fmt.Errorf("failed to update maintenance record: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}
