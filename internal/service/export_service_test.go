package service

import (
	"bytes"
	"context"
	"testing"

	"emmo-data/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

func TestExportRecords(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	drive := f.createDrive(t, "Pump", "PUMP-1")
	part := f.createPart(t, "Seal", "SEAL-1")

	rec, err := f.maintenance.CreateRecord(ctx, CreateRecordRequest{
		Title:   "Replace seal",
		DriveID: &drive.ID,
		PartID:  &part.ID,
		Actor:   "alice",
	})
	require.NoError(t, err)
	f.addItems(t, rec.ID, domain.ChecklistItemCompleted, domain.ChecklistItemFailed)
	f.createRecord(t, "Lubricate", domain.MaintenanceCompleted)

	svc := NewExportService(f.records, f.drives, f.parts, zap.NewNop())
	data, err := svc.ExportRecords(ctx, ExportRecordsRequest{})
	require.NoError(t, err)

	wb, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer wb.Close()
	assert.Equal(t, []string{recordsSheet}, wb.GetSheetList())

	rows, err := wb.GetRows(recordsSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Title", rows[0][0])
	assert.Equal(t, "Completion %", rows[0][11])

	var seal []string
	for _, r := range rows[1:] {
		if r[0] == "Replace seal" {
			seal = r
		}
	}
	require.NotNil(t, seal)
	assert.Equal(t, "in_progress", seal[1])
	assert.Equal(t, "PUMP-1", seal[3])
	assert.Equal(t, "Pump", seal[4])
	assert.Equal(t, "SEAL-1", seal[5])
	assert.Equal(t, "2", seal[8])
	assert.Equal(t, "1", seal[9])
	assert.Equal(t, "1", seal[10])
	assert.Equal(t, "50", seal[11])
	assert.Equal(t, "alice", seal[12])

	filtered, err := svc.ExportRecords(ctx, ExportRecordsRequest{Status: "completed"})
	require.NoError(t, err)
	wb2, err := excelize.OpenReader(bytes.NewReader(filtered))
	require.NoError(t, err)
	defer wb2.Close()
	rows, err = wb2.GetRows(recordsSheet)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Lubricate", rows[1][0])

	_, err = svc.ExportRecords(ctx, ExportRecordsRequest{Priority: "urgent"})
	requireKind(t, err, domain.ErrValidation)
}
