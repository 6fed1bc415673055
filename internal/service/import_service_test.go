package service

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"emmo-data/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

func newImportService(f *fixture) *ImportService {
	svc := NewImportService(f.drives, f.parts, nil, zap.NewNop())
	svc.now = func() time.Time { return fixedNow }
	return svc
}

func TestDetectImportFormat(t *testing.T) {
	got, err := DetectImportFormat("drives.CSV")
	require.NoError(t, err)
	assert.Equal(t, ImportCSV, got)

	got, err = DetectImportFormat("/tmp/parts.xlsx")
	require.NoError(t, err)
	assert.Equal(t, ImportXLSX, got)

	_, err = DetectImportFormat("parts.xls")
	requireKind(t, err, domain.ErrValidation)
}

func TestNormalizeHeader(t *testing.T) {
	cases := map[string]string{
		"\ufeffName":      "name",
		" Serial Number ": "serial_number",
		"serial-no":       "serial_number",
		"Part No":         "part_number",
		"DRIVE":           "drive_serial",
		"Model":           "model",
	}
	for in, want := range cases {
		assert.Equal(t, want, normalizeHeader(in), in)
	}
}

func TestImportDrives_CSV(t *testing.T) {
	f := newFixture(t)
	svc := newImportService(f)
	ctx := context.Background()
	existing, err := NewDriveService(f.drives, f.parts, zap.NewNop()).CreateDrive(ctx, CreateDriveRequest{
		Name: "Old name", SerialNumber: "SN-1", Location: "Hall A",
	})
	require.NoError(t, err)

	csv := "\ufeffName,Serial Number,Location,Status\n" +
		"Updated name,SN-1,,under_maintenance\n" +
		"Mixer,SN-2,Hall C\n" +
		",,,\n" +
		"No serial,,Hall D,active\n" +
		"Bad status,SN-3,,exploded\n" +
		",SN-4,,\n"

	res, err := svc.ImportDrives(ctx, strings.NewReader(csv), ImportCSV)
	require.NoError(t, err)
	assert.Equal(t, 5, res.Total)
	assert.Equal(t, 1, res.Created)
	assert.Equal(t, 1, res.Updated)
	assert.Equal(t, 3, res.Skipped)
	require.Len(t, res.Errors, 3)
	assert.Equal(t, 5, res.Errors[0].Row)
	assert.Contains(t, res.Errors[0].Message, "serial_number")
	assert.Equal(t, 6, res.Errors[1].Row)
	assert.Equal(t, 7, res.Errors[2].Row)
	assert.Contains(t, res.Errors[2].Message, "name")

	got, err := f.drives.GetDrive(ctx, existing.ID)
	require.NoError(t, err)
	assert.Equal(t, "Updated name", got.Name)
	assert.Equal(t, domain.DriveUnderMaintenance, got.Status)
	assert.Equal(t, "Hall A", got.Location)

	mixer, err := f.drives.GetDriveBySerial(ctx, "SN-2")
	require.NoError(t, err)
	assert.Equal(t, "Hall C", mixer.Location)
	assert.Equal(t, domain.DriveActive, mixer.Status)
}

func TestImportDrives_Empty(t *testing.T) {
	f := newFixture(t)
	_, err := newImportService(f).ImportDrives(context.Background(), strings.NewReader(""), ImportCSV)
	requireKind(t, err, domain.ErrValidation)
}

func TestImportParts_XLSXWithAttach(t *testing.T) {
	f := newFixture(t)
	svc := newImportService(f)
	ctx := context.Background()
	drive := f.createDrive(t, "Pump", "PUMP-1")

	wb := excelize.NewFile()
	sheet := wb.GetSheetName(0)
	rows := [][]any{
		{"Name", "Part Number", "Manufacturer", "Drive Serial"},
		{"Seal", "SEAL-1", "SKF", "PUMP-1"},
		{"Belt", "BELT-1", "", ""},
		{"Ghost", "GH-1", "", "NOPE"},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, wb.SetSheetRow(sheet, cell, &row))
	}
	var buf bytes.Buffer
	_, err := wb.WriteTo(&buf)
	require.NoError(t, err)
	require.NoError(t, wb.Close())

	res, err := svc.ImportParts(ctx, &buf, ImportXLSX, "importer")
	require.NoError(t, err)
	assert.Equal(t, 3, res.Total)
	assert.Equal(t, 2, res.Created)
	assert.Equal(t, 1, res.Skipped)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, 4, res.Errors[0].Row)

	seal, err := f.parts.GetPartByNumber(ctx, "SEAL-1")
	require.NoError(t, err)
	require.NotNil(t, seal.DriveID)
	assert.Equal(t, drive.ID, *seal.DriveID)

	history, err := f.parts.ListAttachmentsByPart(ctx, seal.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "importer", history[0].AttachedBy)

	_, err = f.parts.GetPartByNumber(ctx, "GH-1")
	requireKind(t, err, domain.ErrNotFound)

	// Re-importing the same sheet updates without re-attaching.
	again := "name,part_number,drive_serial\nSeal v2,SEAL-1,PUMP-1\n"
	res, err = svc.ImportParts(ctx, strings.NewReader(again), ImportCSV, "importer")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Updated)
	history, err = f.parts.ListAttachmentsByPart(ctx, seal.ID)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestImportTemplate(t *testing.T) {
	data, err := ImportTemplate("drives")
	require.NoError(t, err)

	wb, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer wb.Close()
	rows, err := wb.GetRows("drives")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "serial_number", rows[0][1])

	_, err = ImportTemplate("widgets")
	requireKind(t, err, domain.ErrValidation)
}
