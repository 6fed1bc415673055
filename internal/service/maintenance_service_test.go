package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"emmo-data/internal/domain"
	"emmo-data/internal/metrics"
	"emmo-data/internal/notify"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateRecord_Defaults(t *testing.T) {
	f := newFixture(t)
	rec, err := f.maintenance.CreateRecord(context.Background(), CreateRecordRequest{Title: "  Replace belt  "})
	require.NoError(t, err)

	assert.Equal(t, "Replace belt", rec.Title)
	assert.Equal(t, domain.MaintenancePending, rec.Status)
	assert.Equal(t, domain.PriorityMedium, rec.Priority)
	assert.Equal(t, AnonymousActor, rec.CreatedBy)
	assert.Empty(t, rec.Checklist)
	assert.False(t, rec.StatusManaged)
	assert.Equal(t, 0, rec.ChecklistStats.Total)
}

func TestCreateRecord_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.maintenance.CreateRecord(ctx, CreateRecordRequest{Title: "  "})
	requireKind(t, err, domain.ErrValidation)

	_, err = f.maintenance.CreateRecord(ctx, CreateRecordRequest{Title: "x", Status: "done"})
	requireKind(t, err, domain.ErrValidation)

	_, err = f.maintenance.CreateRecord(ctx, CreateRecordRequest{Title: "x", Priority: "urgent"})
	requireKind(t, err, domain.ErrValidation)

	_, err = f.maintenance.CreateRecord(ctx, CreateRecordRequest{Title: "x", DriveID: strPtr("missing")})
	requireKind(t, err, domain.ErrValidation)

	_, err = f.maintenance.CreateRecord(ctx, CreateRecordRequest{Title: "x", PartID: strPtr("missing")})
	requireKind(t, err, domain.ErrValidation)
}

func TestCreateRecord_CompletedSetsCompletedAt(t *testing.T) {
	f := newFixture(t)
	rec := f.createRecord(t, "Done already", domain.MaintenanceCompleted)
	require.NotNil(t, rec.CompletedAt)
	assert.True(t, rec.CompletedAt.Equal(fixedNow))
}

func TestSetManualStatus_WithoutChecklist(t *testing.T) {
	f := newFixture(t)
	rec := f.createRecord(t, "Inspect pump", domain.MaintenancePending)

	got, err := f.maintenance.SetManualStatus(context.Background(), rec.ID, "in_progress", "bob")
	require.NoError(t, err)
	assert.Equal(t, domain.MaintenanceInProgress, got.Status)
	assert.Equal(t, "bob", got.UpdatedBy)

	stored, err := f.maintenance.GetRecord(context.Background(), rec.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.MaintenanceInProgress, stored.Status)

	events := f.events.all()
	require.Len(t, events, 1)
	assert.Equal(t, notify.EventStatusChanged, events[0].Type)
	assert.Equal(t, domain.MaintenancePending, events[0].From)
	assert.Equal(t, domain.MaintenanceInProgress, events[0].To)
	assert.Equal(t, notify.ModeManual, events[0].Mode)
	assert.Equal(t, "bob", events[0].Actor)
}

func TestSetManualStatus_UnchangedIsNoop(t *testing.T) {
	f := newFixture(t)
	rec := f.createRecord(t, "Inspect pump", domain.MaintenancePending)

	got, err := f.maintenance.SetManualStatus(context.Background(), rec.ID, "pending", "bob")
	require.NoError(t, err)
	assert.Equal(t, "alice", got.UpdatedBy)
	assert.Empty(t, f.events.all())
}

func TestSetManualStatus_ConflictWhenManaged(t *testing.T) {
	f := newFixture(t)
	rec := f.createRecord(t, "Inspect pump", domain.MaintenancePending)
	f.addItems(t, rec.ID, domain.ChecklistItemPending)

	_, err := f.maintenance.SetManualStatus(context.Background(), rec.ID, "completed", "bob")
	requireKind(t, err, domain.ErrConflict)
	assert.Contains(t, err.Error(), "automatically managed")
}

func TestSetManualStatus_Errors(t *testing.T) {
	f := newFixture(t)
	rec := f.createRecord(t, "Inspect pump", domain.MaintenancePending)

	_, err := f.maintenance.SetManualStatus(context.Background(), rec.ID, "bogus", "bob")
	requireKind(t, err, domain.ErrValidation)

	_, err = f.maintenance.SetManualStatus(context.Background(), "nope", "completed", "bob")
	requireKind(t, err, domain.ErrNotFound)
}

func TestAddChecklistItem_OverridesManualStatus(t *testing.T) {
	f := newFixture(t)
	rec := f.createRecord(t, "Service drive", domain.MaintenanceInProgress)

	resp, err := f.maintenance.AddChecklistItem(context.Background(), AddChecklistItemRequest{
		RecordID: rec.ID,
		Text:     "Check oil",
		Actor:    "carol",
	})
	require.NoError(t, err)

	assert.Equal(t, domain.MaintenancePending, resp.Record.Status)
	assert.True(t, resp.Record.StatusManaged)
	assert.Equal(t, "Check oil", resp.Item.Text)
	assert.Equal(t, domain.ChecklistItemPending, resp.Item.Status)
	assert.Equal(t, "carol", resp.Item.UpdatedBy)
	require.Len(t, resp.Record.Checklist, 1)

	events := f.events.all()
	require.Len(t, events, 1)
	assert.Equal(t, domain.MaintenanceInProgress, events[0].From)
	assert.Equal(t, domain.MaintenancePending, events[0].To)
	assert.Equal(t, notify.ModeDerived, events[0].Mode)
}

func TestAddChecklistItem_Validation(t *testing.T) {
	f := newFixture(t)
	rec := f.createRecord(t, "Service drive", domain.MaintenancePending)

	_, err := f.maintenance.AddChecklistItem(context.Background(), AddChecklistItemRequest{RecordID: rec.ID, Text: " "})
	requireKind(t, err, domain.ErrValidation)

	_, err = f.maintenance.AddChecklistItem(context.Background(), AddChecklistItemRequest{RecordID: "nope", Text: "x"})
	requireKind(t, err, domain.ErrNotFound)
}

func TestRemoveChecklistItem_StaysInProgress(t *testing.T) {
	f := newFixture(t)
	rec := f.createRecord(t, "Service drive", domain.MaintenancePending)
	ids := f.addItems(t, rec.ID,
		domain.ChecklistItemCompleted, domain.ChecklistItemFailed, domain.ChecklistItemPending)

	got, err := f.maintenance.GetRecord(context.Background(), rec.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.MaintenanceInProgress, got.Status)

	got, err = f.maintenance.RemoveChecklistItem(context.Background(), rec.ID, ids[2], "alice")
	require.NoError(t, err)
	assert.Equal(t, domain.MaintenanceInProgress, got.Status)
	assert.Len(t, got.Checklist, 2)
	assert.Equal(t, 50, got.ChecklistStats.CompletionPercentage)
}

func TestRemoveChecklistItem_LastItemKeepsStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rec := f.createRecord(t, "Service drive", domain.MaintenancePending)
	ids := f.addItems(t, rec.ID, domain.ChecklistItemCompleted)

	got, err := f.maintenance.GetRecord(ctx, rec.ID)
	require.NoError(t, err)
	require.Equal(t, domain.MaintenanceCompleted, got.Status)
	require.NotNil(t, got.CompletedAt)

	got, err = f.maintenance.RemoveChecklistItem(ctx, rec.ID, ids[0], "alice")
	require.NoError(t, err)
	assert.Empty(t, got.Checklist)
	assert.Equal(t, domain.MaintenanceCompleted, got.Status)
	assert.False(t, got.StatusManaged)

	got, err = f.maintenance.SetManualStatus(ctx, rec.ID, "pending", "alice")
	require.NoError(t, err)
	assert.Equal(t, domain.MaintenancePending, got.Status)
	assert.Nil(t, got.CompletedAt)
}

func TestRemoveChecklistItem_UnknownIsIdempotent(t *testing.T) {
	f := newFixture(t)
	rec := f.createRecord(t, "Service drive", domain.MaintenancePending)
	f.addItems(t, rec.ID, domain.ChecklistItemPending)
	before, err := f.maintenance.GetRecord(context.Background(), rec.ID)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		got, err := f.maintenance.RemoveChecklistItem(context.Background(), rec.ID, "does-not-exist", "bob")
		require.NoError(t, err)
		assert.Len(t, got.Checklist, 1)
		assert.Equal(t, before.UpdatedBy, got.UpdatedBy)
	}
}

func TestUpdateChecklistItem_RequiresStatusOrNotes(t *testing.T) {
	f := newFixture(t)
	_, err := f.maintenance.UpdateChecklistItem(context.Background(), UpdateChecklistItemRequest{
		RecordID: "whatever",
		ItemID:   "whatever",
	})
	requireKind(t, err, domain.ErrValidation)
}

func TestUpdateChecklistItem_Errors(t *testing.T) {
	f := newFixture(t)
	rec := f.createRecord(t, "Service drive", domain.MaintenancePending)
	f.addItems(t, rec.ID, domain.ChecklistItemPending)

	_, err := f.maintenance.UpdateChecklistItem(context.Background(), UpdateChecklistItemRequest{
		RecordID: rec.ID, ItemID: "missing", Status: strPtr("completed"),
	})
	requireKind(t, err, domain.ErrNotFound)

	_, err = f.maintenance.UpdateChecklistItem(context.Background(), UpdateChecklistItemRequest{
		RecordID: rec.ID, ItemID: "missing", Status: strPtr("done"),
	})
	requireKind(t, err, domain.ErrValidation)
}

func TestUpdateChecklistItem_NotesAndStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rec := f.createRecord(t, "Service drive", domain.MaintenancePending)
	ids := f.addItems(t, rec.ID, domain.ChecklistItemPending, domain.ChecklistItemPending)

	got, err := f.maintenance.UpdateChecklistItem(ctx, UpdateChecklistItemRequest{
		RecordID: rec.ID,
		ItemID:   ids[0],
		Status:   strPtr("completed"),
		SetNotes: true,
		Notes:    strPtr("oil topped up"),
		Actor:    "dave",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.MaintenanceInProgress, got.Status)
	item, ok := got.Checklist.Item(ids[0])
	require.True(t, ok)
	assert.Equal(t, domain.ChecklistItemCompleted, item.Status)
	require.NotNil(t, item.Notes)
	assert.Equal(t, "oil topped up", *item.Notes)
	assert.Equal(t, "dave", item.UpdatedBy)
	assert.Equal(t, "dave", got.UpdatedBy)

	// Notes only; nil clears.
	got, err = f.maintenance.UpdateChecklistItem(ctx, UpdateChecklistItemRequest{
		RecordID: rec.ID, ItemID: ids[0], SetNotes: true,
	})
	require.NoError(t, err)
	item, _ = got.Checklist.Item(ids[0])
	assert.Nil(t, item.Notes)
	assert.Equal(t, domain.ChecklistItemCompleted, item.Status)

	got, err = f.maintenance.UpdateChecklistItem(ctx, UpdateChecklistItemRequest{
		RecordID: rec.ID, ItemID: ids[1], Status: strPtr("completed"),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.MaintenanceCompleted, got.Status)
	require.NotNil(t, got.CompletedAt)
	assert.Equal(t, 100, got.ChecklistStats.CompletionPercentage)

	// Reopening an item leaves completed and clears CompletedAt.
	got, err = f.maintenance.UpdateChecklistItem(ctx, UpdateChecklistItemRequest{
		RecordID: rec.ID, ItemID: ids[1], Status: strPtr("pending"),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.MaintenanceInProgress, got.Status)
	assert.Nil(t, got.CompletedAt)
}

func TestChecklistChangesArePersisted(t *testing.T) {
	f := newFixture(t)
	rec := f.createRecord(t, "Service drive", domain.MaintenancePending)
	ids := f.addItems(t, rec.ID, domain.ChecklistItemFailed, domain.ChecklistItemCompleted)

	stored, err := f.records.GetRecord(context.Background(), rec.ID)
	require.NoError(t, err)
	require.Len(t, stored.Checklist, 2)
	assert.Equal(t, ids[0], stored.Checklist[0].ID)
	assert.Equal(t, domain.ChecklistItemFailed, stored.Checklist[0].Status)
	assert.Equal(t, domain.MaintenanceInProgress, stored.Status)
}

func TestUpdateRecord(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	drive := f.createDrive(t, "Drive 1", "SN-1")
	rec, err := f.maintenance.CreateRecord(ctx, CreateRecordRequest{Title: "Old", DriveID: &drive.ID})
	require.NoError(t, err)
	require.NotNil(t, rec.DriveID)

	when := time.Date(2024, 7, 1, 8, 0, 0, 0, time.UTC)
	got, err := f.maintenance.UpdateRecord(ctx, UpdateRecordRequest{
		ID:               rec.ID,
		Title:            strPtr("New"),
		Priority:         strPtr("high"),
		DriveID:          strPtr(""),
		SetScheduledDate: true,
		ScheduledDate:    &when,
		Actor:            "erin",
	})
	require.NoError(t, err)
	assert.Equal(t, "New", got.Title)
	assert.Equal(t, domain.PriorityHigh, got.Priority)
	assert.Nil(t, got.DriveID)
	require.NotNil(t, got.ScheduledDate)
	assert.True(t, got.ScheduledDate.Equal(when))
	assert.Equal(t, domain.MaintenancePending, got.Status)
	assert.Equal(t, "erin", got.UpdatedBy)

	got, err = f.maintenance.UpdateRecord(ctx, UpdateRecordRequest{ID: rec.ID, SetScheduledDate: true})
	require.NoError(t, err)
	assert.Nil(t, got.ScheduledDate)
	assert.Equal(t, "New", got.Title)

	_, err = f.maintenance.UpdateRecord(ctx, UpdateRecordRequest{ID: rec.ID, Title: strPtr(" ")})
	requireKind(t, err, domain.ErrValidation)
	_, err = f.maintenance.UpdateRecord(ctx, UpdateRecordRequest{ID: rec.ID, PartID: strPtr("missing")})
	requireKind(t, err, domain.ErrValidation)
	_, err = f.maintenance.UpdateRecord(ctx, UpdateRecordRequest{ID: "missing", Title: strPtr("x")})
	requireKind(t, err, domain.ErrNotFound)
}

func TestListRecords_Overdue(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	past := fixedNow.Add(-48 * time.Hour)
	future := fixedNow.Add(48 * time.Hour)

	late, err := f.maintenance.CreateRecord(ctx, CreateRecordRequest{Title: "late", ScheduledDate: &past})
	require.NoError(t, err)
	_, err = f.maintenance.CreateRecord(ctx, CreateRecordRequest{Title: "soon", ScheduledDate: &future})
	require.NoError(t, err)
	_, err = f.maintenance.CreateRecord(ctx, CreateRecordRequest{Title: "done", Status: "completed", ScheduledDate: &past})
	require.NoError(t, err)

	resp, err := f.maintenance.ListRecords(ctx, ListRecordsRequest{Overdue: true})
	require.NoError(t, err)
	require.Equal(t, 1, resp.Total)
	assert.Equal(t, late.ID, resp.Items[0].ID)
	assert.True(t, resp.Items[0].Overdue)

	all, err := f.maintenance.ListRecords(ctx, ListRecordsRequest{})
	require.NoError(t, err)
	assert.Equal(t, 3, all.Total)

	_, err = f.maintenance.ListRecords(ctx, ListRecordsRequest{Status: "nope"})
	requireKind(t, err, domain.ErrValidation)
}

func TestDeleteRecord(t *testing.T) {
	f := newFixture(t)
	rec := f.createRecord(t, "gone", domain.MaintenancePending)
	require.NoError(t, f.maintenance.DeleteRecord(context.Background(), rec.ID))

	_, err := f.maintenance.GetRecord(context.Background(), rec.ID)
	requireKind(t, err, domain.ErrNotFound)
	requireKind(t, f.maintenance.DeleteRecord(context.Background(), rec.ID), domain.ErrNotFound)
}

func TestMoveRecord(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	manual := f.createRecord(t, "manual", domain.MaintenancePending)
	managed := f.createRecord(t, "managed", domain.MaintenancePending)
	f.addItems(t, managed.ID, domain.ChecklistItemPending)

	// Reordering inside the column is allowed for both kinds.
	got, err := f.maintenance.MoveRecord(ctx, MoveRecordRequest{ID: managed.ID, Status: "pending", SortOrder: 0})
	require.NoError(t, err)
	assert.Equal(t, 0, got.SortOrder)

	_, err = f.maintenance.MoveRecord(ctx, MoveRecordRequest{ID: managed.ID, Status: "completed", SortOrder: 0})
	requireKind(t, err, domain.ErrConflict)

	got, err = f.maintenance.MoveRecord(ctx, MoveRecordRequest{ID: manual.ID, Status: "in_progress", SortOrder: 3, Actor: "frank"})
	require.NoError(t, err)
	assert.Equal(t, domain.MaintenanceInProgress, got.Status)
	assert.Equal(t, 3, got.SortOrder)

	events := f.events.all()
	last := events[len(events)-1]
	assert.Equal(t, manual.ID, last.RecordID)
	assert.Equal(t, notify.ModeManual, last.Mode)
	assert.Equal(t, "frank", last.Actor)

	_, err = f.maintenance.MoveRecord(ctx, MoveRecordRequest{ID: manual.ID, Status: "in_progress", SortOrder: -1})
	requireKind(t, err, domain.ErrValidation)
}

func TestGetBoard(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.createRecord(t, "a", domain.MaintenancePending)
	b := f.createRecord(t, "b", domain.MaintenancePending)
	c := f.createRecord(t, "c", domain.MaintenanceCompleted)
	f.addItems(t, c.ID, domain.ChecklistItemCompleted)

	_, err := f.maintenance.MoveRecord(ctx, MoveRecordRequest{ID: b.ID, Status: "pending", SortOrder: 0})
	require.NoError(t, err)
	_, err = f.maintenance.MoveRecord(ctx, MoveRecordRequest{ID: a.ID, Status: "pending", SortOrder: 5})
	require.NoError(t, err)

	board, err := f.maintenance.GetBoard(ctx)
	require.NoError(t, err)
	require.Len(t, board.Columns, 3)

	assert.Equal(t, domain.MaintenancePending, board.Columns[0].Status)
	require.Len(t, board.Columns[0].Records, 2)
	assert.Equal(t, b.ID, board.Columns[0].Records[0].ID)
	assert.Equal(t, a.ID, board.Columns[0].Records[1].ID)

	assert.Equal(t, domain.MaintenanceInProgress, board.Columns[1].Status)
	assert.NotNil(t, board.Columns[1].Records)
	assert.Empty(t, board.Columns[1].Records)

	require.Len(t, board.Columns[2].Records, 1)
	assert.True(t, board.Columns[2].Records[0].StatusManaged)
	assert.Equal(t, 100, board.Columns[2].Records[0].ChecklistStats.CompletionPercentage)
}

func TestNotifierFailureDoesNotFailRequest(t *testing.T) {
	f := newFixture(t)
	reg := prometheus.NewRegistry()
	f.maintenance.metrics = metrics.New(reg)
	f.events.err = errors.New("broker down")

	rec := f.createRecord(t, "x", domain.MaintenancePending)
	got, err := f.maintenance.SetManualStatus(context.Background(), rec.ID, "completed", "bob")
	require.NoError(t, err)
	assert.Equal(t, domain.MaintenanceCompleted, got.Status)
	assert.Len(t, f.events.all(), 1)

	families, err := reg.Gather()
	require.NoError(t, err)
	found := false
	for _, mf := range families {
		if mf.GetName() == "emmo_event_publish_failures_total" {
			found = true
			assert.Equal(t, float64(1), mf.GetMetric()[0].GetCounter().GetValue())
		}
	}
	assert.True(t, found)
}

func TestNilNotifier(t *testing.T) {
	f := newFixture(t)
	f.maintenance.notifier = nil
	rec := f.createRecord(t, "x", domain.MaintenancePending)
	_, err := f.maintenance.SetManualStatus(context.Background(), rec.ID, "completed", "")
	require.NoError(t, err)
}
