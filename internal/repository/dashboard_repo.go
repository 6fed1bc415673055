package repository

import (
	"context"
	"time"
)

// DashboardCounts holds the aggregate numbers shown on the dashboard.
type DashboardCounts struct {
	DrivesByStatus       map[string]int
	RecordsByStatus      map[string]int
	OverdueRecords       int
	RecentInspections    int
	RecentFailedInspects int
	InstalledParts       int
	SpareParts           int
}

// DashboardRepository 仪表盘聚合查询
type DashboardRepository interface {
	// Counts aggregates over the whole database. Overdue is judged against now,
	// recent inspections are those at or after since.
	Counts(ctx context.Context, now, since time.Time) (*DashboardCounts, error)
}
