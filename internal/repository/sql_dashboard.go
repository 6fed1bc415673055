package repository

import (
	"context"
	"fmt"
	"time"

	"emmo-data/internal/domain"

	"github.com/jmoiron/sqlx"
)

type SQLDashboardRepository struct {
	db *sqlx.DB
}

func NewSQLDashboardRepository(db *sqlx.DB) *SQLDashboardRepository {
	return &SQLDashboardRepository{db: db}
}

var _ DashboardRepository = (*SQLDashboardRepository)(nil)

type statusCount struct {
	Status string `db:"status"`
	Count  int    `db:"count"`
}

func (r *SQLDashboardRepository) Counts(ctx context.Context, now, since time.Time) (*DashboardCounts, error) {
	c := &DashboardCounts{}

	var err error
	if c.DrivesByStatus, err = r.groupByStatus(ctx, "drives"); err != nil {
		return nil, err
	}
	if c.RecordsByStatus, err = r.groupByStatus(ctx, "maintenance_records"); err != nil {
		return nil, err
	}

	err = r.db.GetContext(ctx, &c.OverdueRecords, r.db.Rebind(`
		SELECT COUNT(*) FROM maintenance_records
		WHERE scheduled_date IS NOT NULL AND scheduled_date < ? AND status <> ?`),
		now, string(domain.MaintenanceCompleted))
	if err != nil {
		return nil, fmt.Errorf("failed to count overdue records: %w", err)
	}

	var inspections struct {
		Total  int `db:"total"`
		Failed int `db:"failed"`
	}
	err = r.db.GetContext(ctx, &inspections, r.db.Rebind(`
		SELECT COUNT(*) AS total,
			COALESCE(SUM(CASE WHEN result = ? THEN 1 ELSE 0 END), 0) AS failed
		FROM inspections WHERE inspected_at >= ?`),
		string(domain.InspectionFailed), since)
	if err != nil {
		return nil, fmt.Errorf("failed to count inspections: %w", err)
	}
	c.RecentInspections = inspections.Total
	c.RecentFailedInspects = inspections.Failed

	var parts struct {
		Installed int `db:"installed"`
		Spare     int `db:"spare"`
	}
	err = r.db.GetContext(ctx, &parts, `
		SELECT COALESCE(SUM(CASE WHEN drive_id IS NOT NULL THEN 1 ELSE 0 END), 0) AS installed,
			COALESCE(SUM(CASE WHEN drive_id IS NULL THEN 1 ELSE 0 END), 0) AS spare
		FROM parts`)
	if err != nil {
		return nil, fmt.Errorf("failed to count parts: %w", err)
	}
	c.InstalledParts = parts.Installed
	c.SpareParts = parts.Spare

	return c, nil
}

func (r *SQLDashboardRepository) groupByStatus(ctx context.Context, table string) (map[string]int, error) {
	var rows []statusCount
	if err := r.db.SelectContext(ctx, &rows, `SELECT status, COUNT(*) AS count FROM `+table+` GROUP BY status`); err != nil {
		return nil, fmt.Errorf("failed to count %s by status: %w", table, err)
	}
	out := make(map[string]int, len(rows))
	for _, row := range rows {
		out[row.Status] = row.Count
	}
	return out, nil
}
