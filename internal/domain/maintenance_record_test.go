package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var itemStatuses = []ChecklistItemStatus{ChecklistItemPending, ChecklistItemCompleted, ChecklistItemFailed}

// every checklist of length 1..4 over the three item statuses
func allChecklists() []Checklist {
	var out []Checklist
	var walk func(prefix []ChecklistItemStatus)
	walk = func(prefix []ChecklistItemStatus) {
		if len(prefix) > 0 {
			out = append(out, checklistOf(prefix...))
		}
		if len(prefix) == 4 {
			return
		}
		for _, s := range itemStatuses {
			walk(append(append([]ChecklistItemStatus{}, prefix...), s))
		}
	}
	walk(nil)
	return out
}

func TestDeriveMaintenanceStatus_Empty(t *testing.T) {
	_, ok := DeriveMaintenanceStatus(Checklist{})
	assert.False(t, ok)
	_, ok = DeriveMaintenanceStatus(nil)
	assert.False(t, ok)
}

func TestDeriveMaintenanceStatus_Properties(t *testing.T) {
	for _, c := range allChecklists() {
		got, ok := DeriveMaintenanceStatus(c)
		require.True(t, ok)

		stats := c.Stats()
		switch {
		case stats.Completed == stats.Total:
			assert.Equal(t, MaintenanceCompleted, got, "%v", c)
		case stats.Pending == stats.Total:
			assert.Equal(t, MaintenancePending, got, "%v", c)
		default:
			assert.Equal(t, MaintenanceInProgress, got, "%v", c)
		}

		reversed := make(Checklist, len(c))
		for i := range c {
			reversed[len(c)-1-i] = c[i]
		}
		again, _ := DeriveMaintenanceStatus(reversed)
		assert.Equal(t, got, again, "order must not matter")
	}
}

func TestDeriveMaintenanceStatus_Examples(t *testing.T) {
	got, _ := DeriveMaintenanceStatus(checklistOf(ChecklistItemCompleted, ChecklistItemFailed, ChecklistItemPending))
	assert.Equal(t, MaintenanceInProgress, got)

	got, _ = DeriveMaintenanceStatus(checklistOf(ChecklistItemFailed, ChecklistItemFailed))
	assert.Equal(t, MaintenanceInProgress, got)

	got, _ = DeriveMaintenanceStatus(checklistOf(ChecklistItemPending))
	assert.Equal(t, MaintenancePending, got)
}

func TestMaintenanceRecord_SetStatus_TracksCompletedAt(t *testing.T) {
	now := time.Date(2024, 5, 2, 10, 0, 0, 0, time.UTC)
	rec := &MaintenanceRecord{Status: MaintenancePending}

	rec.SetStatus(MaintenanceCompleted, now)
	require.NotNil(t, rec.CompletedAt)
	assert.Equal(t, now, *rec.CompletedAt)

	rec.SetStatus(MaintenanceCompleted, now.Add(time.Hour))
	assert.Equal(t, now, *rec.CompletedAt, "re-completing keeps the first timestamp")

	rec.SetStatus(MaintenanceInProgress, now)
	assert.Nil(t, rec.CompletedAt)
}

func TestMaintenanceRecord_ApplyDerivedStatus(t *testing.T) {
	now := time.Now().UTC()
	rec := &MaintenanceRecord{Status: MaintenanceInProgress}
	assert.False(t, rec.ApplyDerivedStatus(now))
	assert.Equal(t, MaintenanceInProgress, rec.Status)
	assert.False(t, rec.StatusManaged())

	rec.Checklist = checklistOf(ChecklistItemPending)
	assert.True(t, rec.ApplyDerivedStatus(now))
	assert.Equal(t, MaintenancePending, rec.Status)
	assert.True(t, rec.StatusManaged())
}

func TestMaintenanceRecord_IsOverdue(t *testing.T) {
	now := time.Date(2024, 5, 2, 10, 0, 0, 0, time.UTC)
	yesterday := now.Add(-24 * time.Hour)
	tomorrow := now.Add(24 * time.Hour)

	assert.True(t, (&MaintenanceRecord{Status: MaintenancePending, ScheduledDate: &yesterday}).IsOverdue(now))
	assert.False(t, (&MaintenanceRecord{Status: MaintenanceCompleted, ScheduledDate: &yesterday}).IsOverdue(now))
	assert.False(t, (&MaintenanceRecord{Status: MaintenancePending, ScheduledDate: &tomorrow}).IsOverdue(now))
	assert.False(t, (&MaintenanceRecord{Status: MaintenancePending}).IsOverdue(now))
}
