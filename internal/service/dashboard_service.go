package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"emmo-data/internal/domain"
	"emmo-data/internal/repository"
	"emmo-data/internal/store"

	"go.uber.org/zap"
)

const (
	dashboardCacheKey  = "emmo:dashboard:summary"
	recentInspectDays  = 30
	upcomingRecordsMax = 5
)

// DashboardService 仪表盘服务
type DashboardService struct {
	counts  repository.DashboardRepository
	records repository.MaintenanceRecordsRepository
	cache   store.KV // optional
	ttl     time.Duration
	logger  *zap.Logger
	now     func() time.Time
}

// NewDashboardService creates the service; cache may be nil and ttl <= 0 disables caching.
func NewDashboardService(
	counts repository.DashboardRepository,
	records repository.MaintenanceRecordsRepository,
	cache store.KV,
	ttl time.Duration,
	logger *zap.Logger,
) *DashboardService {
	return &DashboardService{
		counts:  counts,
		records: records,
		cache:   cache,
		ttl:     ttl,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

type UpcomingRecord struct {
	ID            string                   `json:"id"`
	Title         string                   `json:"title"`
	Status        domain.MaintenanceStatus `json:"status"`
	Priority      domain.Priority          `json:"priority"`
	DriveID       *string                  `json:"drive_id"`
	ScheduledDate *time.Time               `json:"scheduled_date"`
}

// DashboardSummary 仪表盘汇总
type DashboardSummary struct {
	DrivesByStatus             map[string]int   `json:"drives_by_status"`
	RecordsByStatus            map[string]int   `json:"records_by_status"`
	OverdueRecords             int              `json:"overdue_records"`
	RecentInspections          int              `json:"recent_inspections"`
	RecentFailedInspections    int              `json:"recent_failed_inspections"`
	InstalledParts             int              `json:"installed_parts"`
	SpareParts                 int              `json:"spare_parts"`
	Upcoming                   []UpcomingRecord `json:"upcoming"`
	ChecklistCompletionPercent int              `json:"checklist_completion_percentage"`
	RecordsWithChecklist       int              `json:"records_with_checklist"`
	GeneratedAt                time.Time        `json:"generated_at"`
}

// Summary returns the dashboard, from cache when possible. refresh bypasses and
// replaces the cached copy.
func (s *DashboardService) Summary(ctx context.Context, refresh bool) (*DashboardSummary, error) {
	if s.cacheEnabled() {
		if refresh {
			if err := s.cache.Delete(ctx, dashboardCacheKey); err != nil {
				s.logger.Warn("Failed to drop dashboard cache", zap.Error(err))
			}
		} else if summary, ok := s.cached(ctx); ok {
			return summary, nil
		}
	}

	summary, err := s.build(ctx)
	if err != nil {
		return nil, err
	}

	if s.cacheEnabled() {
		if data, err := json.Marshal(summary); err == nil {
			if err := s.cache.Set(ctx, dashboardCacheKey, string(data), s.ttl); err != nil {
				s.logger.Warn("Failed to cache dashboard summary", zap.Error(err))
			}
		}
	}
	return summary, nil
}

func (s *DashboardService) cacheEnabled() bool {
	return s.cache != nil && s.ttl > 0
}

func (s *DashboardService) cached(ctx context.Context) (*DashboardSummary, bool) {
	raw, err := s.cache.Get(ctx, dashboardCacheKey)
	if err != nil {
		if !errors.Is(err, store.ErrMiss) {
			s.logger.Warn("Dashboard cache read failed", zap.Error(err))
		}
		return nil, false
	}
	var summary DashboardSummary
	if err := json.Unmarshal([]byte(raw), &summary); err != nil {
		s.logger.Warn("Discarding unreadable dashboard cache entry", zap.Error(err))
		return nil, false
	}
	return &summary, true
}

func (s *DashboardService) build(ctx context.Context) (*DashboardSummary, error) {
	now := s.now()
	counts, err := s.counts.Counts(ctx, now, now.AddDate(0, 0, -recentInspectDays))
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate dashboard: %w", err)
	}

	upcoming, _, err := s.records.ListRecords(ctx, repository.RecordsFilter{
		Upcoming: true,
		Now:      now,
		Sort:     repository.RecordSortScheduled,
	}, 1, upcomingRecordsMax)
	if err != nil {
		return nil, fmt.Errorf("failed to load upcoming records: %w", err)
	}

	all, _, err := s.records.ListRecords(ctx, repository.RecordsFilter{}, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to load records: %w", err)
	}
	var items domain.Checklist
	withChecklist := 0
	for _, rec := range all {
		if len(rec.Checklist) > 0 {
			withChecklist++
			items = append(items, rec.Checklist...)
		}
	}

	summary := &DashboardSummary{
		DrivesByStatus:             withZeroes(counts.DrivesByStatus, driveStatusKeys()),
		RecordsByStatus:            withZeroes(counts.RecordsByStatus, recordStatusKeys()),
		OverdueRecords:             counts.OverdueRecords,
		RecentInspections:          counts.RecentInspections,
		RecentFailedInspections:    counts.RecentFailedInspects,
		InstalledParts:             counts.InstalledParts,
		SpareParts:                 counts.SpareParts,
		Upcoming:                   make([]UpcomingRecord, 0, len(upcoming)),
		ChecklistCompletionPercent: items.Stats().CompletionPercentage,
		RecordsWithChecklist:       withChecklist,
		GeneratedAt:                now,
	}
	for _, rec := range upcoming {
		summary.Upcoming = append(summary.Upcoming, UpcomingRecord{
			ID:            rec.ID,
			Title:         rec.Title,
			Status:        rec.Status,
			Priority:      rec.Priority,
			DriveID:       rec.DriveID,
			ScheduledDate: rec.ScheduledDate,
		})
	}
	return summary, nil
}

func withZeroes(m map[string]int, keys []string) map[string]int {
	out := make(map[string]int, len(keys))
	for _, k := range keys {
		out[k] = 0
	}
	for k, v := range m {
		out[k] = v
	}
	return out
}

func driveStatusKeys() []string {
	keys := make([]string, 0, len(domain.DriveStatuses))
	for _, st := range domain.DriveStatuses {
		keys = append(keys, string(st))
	}
	return keys
}

func recordStatusKeys() []string {
	keys := make([]string, 0, len(domain.MaintenanceStatuses))
	for _, st := range domain.MaintenanceStatuses {
		keys = append(keys, string(st))
	}
	return keys
}
