package domain

import "time"

// MaintenanceStatus 维护记录状态
type MaintenanceStatus string

const (
	MaintenancePending    MaintenanceStatus = "pending"
	MaintenanceInProgress MaintenanceStatus = "in_progress"
	MaintenanceCompleted  MaintenanceStatus = "completed"
)

// MaintenanceStatuses lists the statuses in Kanban column order.
var MaintenanceStatuses = []MaintenanceStatus{MaintenancePending, MaintenanceInProgress, MaintenanceCompleted}

func (s MaintenanceStatus) IsValid() bool {
	return s == MaintenancePending || s == MaintenanceInProgress || s == MaintenanceCompleted
}

// Priority 优先级
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

func (p Priority) IsValid() bool {
	return p == PriorityLow || p == PriorityMedium || p == PriorityHigh
}

// MaintenanceRecord 维护记录
// While Checklist is non-empty, Status is derived from it and cannot be set directly.
type MaintenanceRecord struct {
	ID            string            `json:"id"`
	DriveID       *string           `json:"drive_id"`
	PartID        *string           `json:"part_id"`
	Title         string            `json:"title"`
	Description   string            `json:"description"`
	Status        MaintenanceStatus `json:"status"`
	Priority      Priority          `json:"priority"`
	ScheduledDate *time.Time        `json:"scheduled_date"`
	CompletedAt   *time.Time        `json:"completed_at"`
	Checklist     Checklist         `json:"checklist"`
	SortOrder     int               `json:"sort_order"`
	CreatedBy     string            `json:"created_by"`
	UpdatedBy     string            `json:"updated_by"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// StatusManaged reports whether the status is system-managed (checklist non-empty).
func (r *MaintenanceRecord) StatusManaged() bool {
	return len(r.Checklist) > 0
}

// SetStatus changes the status and keeps CompletedAt in step with it.
func (r *MaintenanceRecord) SetStatus(status MaintenanceStatus, now time.Time) {
	if status == MaintenanceCompleted {
		if r.Status != MaintenanceCompleted || r.CompletedAt == nil {
			r.CompletedAt = &now
		}
	} else {
		r.CompletedAt = nil
	}
	r.Status = status
}

// ApplyDerivedStatus recomputes Status from the checklist. An empty checklist
// leaves Status untouched and reports false.
func (r *MaintenanceRecord) ApplyDerivedStatus(now time.Time) bool {
	derived, ok := DeriveMaintenanceStatus(r.Checklist)
	if !ok {
		return false
	}
	r.SetStatus(derived, now)
	return true
}

// IsOverdue reports whether the record was scheduled before now and is not completed.
func (r *MaintenanceRecord) IsOverdue(now time.Time) bool {
	return r.ScheduledDate != nil && r.ScheduledDate.Before(now) && r.Status != MaintenanceCompleted
}

// DeriveMaintenanceStatus maps checklist progress to a record status:
// all completed → completed; any item out of pending → in_progress; otherwise pending.
// The result depends only on the multiset of item statuses. ok is false for an empty checklist.
func DeriveMaintenanceStatus(items Checklist) (status MaintenanceStatus, ok bool) {
	if len(items) == 0 {
		return "", false
	}
	allCompleted := true
	started := false
	for _, item := range items {
		if item.Status != ChecklistItemCompleted {
			allCompleted = false
		}
		if item.Status == ChecklistItemCompleted || item.Status == ChecklistItemFailed {
			started = true
		}
	}
	switch {
	case allCompleted:
		return MaintenanceCompleted, true
	case started:
		return MaintenanceInProgress, true
	default:
		return MaintenancePending, true
	}
}
