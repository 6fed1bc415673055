package repository

import (
	"context"
	"fmt"

	"emmo-data/internal/domain"

	"github.com/jmoiron/sqlx"
)

const inspectionColumns = `id, drive_id, inspector, inspected_at, result, notes, created_at`

type SQLInspectionsRepository struct {
	db *sqlx.DB
}

func NewSQLInspectionsRepository(db *sqlx.DB) *SQLInspectionsRepository {
	return &SQLInspectionsRepository{db: db}
}

var _ InspectionsRepository = (*SQLInspectionsRepository)(nil)

func (r *SQLInspectionsRepository) CreateInspection(ctx context.Context, in *domain.Inspection) error {
	query := r.db.Rebind(`INSERT INTO inspections (` + inspectionColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	_, err := r.db.ExecContext(ctx, query,
		in.ID, in.DriveID, in.Inspector, in.InspectedAt, string(in.Result), in.Notes, in.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create inspection: %w", err)
	}
	return nil
}

func (r *SQLInspectionsRepository) GetInspection(ctx context.Context, id string) (*domain.Inspection, error) {
	var in domain.Inspection
	query := r.db.Rebind(`SELECT ` + inspectionColumns + ` FROM inspections WHERE id = ?`)
	if err := r.db.GetContext(ctx, &in, query, id); err != nil {
		if isNoRows(err) {
			return nil, domain.NotFoundf("inspection %s not found", id)
		}
		return nil, fmt.Errorf("failed to get inspection: %w", err)
	}
	return &in, nil
}

func (r *SQLInspectionsRepository) ListInspections(ctx context.Context, filter InspectionsFilter, page, size int) ([]*domain.Inspection, int, error) {
	var w whereBuilder
	if filter.DriveID != "" {
		w.add("drive_id = ?", filter.DriveID)
	}
	if filter.Result != "" {
		w.add("result = ?", filter.Result)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, r.db.Rebind(`SELECT COUNT(*) FROM inspections`+w.clause()), w.args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count inspections: %w", err)
	}

	limit, args := limitClause(page, size, w.args)
	query := r.db.Rebind(`SELECT ` + inspectionColumns + ` FROM inspections` + w.clause() + ` ORDER BY inspected_at DESC, id` + limit)
	var list []*domain.Inspection
	if err := r.db.SelectContext(ctx, &list, query, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to list inspections: %w", err)
	}
	return list, total, nil
}

func (r *SQLInspectionsRepository) UpdateInspection(ctx context.Context, in *domain.Inspection) error {
	query := r.db.Rebind(`UPDATE inspections SET inspector = ?, inspected_at = ?, result = ?, notes = ? WHERE id = ?`)
	res, err := r.db.ExecContext(ctx, query, in.Inspector, in.InspectedAt, string(in.Result), in.Notes, in.ID)
	if err != nil {
		return fmt.Errorf("failed to update inspection: %w", err)
	}
	return expectAffected(res, "inspection", in.ID)
}

func (r *SQLInspectionsRepository) DeleteInspection(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM inspections WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("failed to delete inspection: %w", err)
	}
	return expectAffected(res, "inspection", id)
}
