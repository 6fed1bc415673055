package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"emmo-data/internal/domain"
	"emmo-data/internal/metrics"
	"emmo-data/internal/repository"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// ImportFormat is the layout of an uploaded table.
type ImportFormat string

const (
	ImportCSV  ImportFormat = "csv"
	ImportXLSX ImportFormat = "xlsx"
)

// DetectImportFormat picks the format from a file name extension.
func DetectImportFormat(fileName string) (ImportFormat, error) {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".csv":
		return ImportCSV, nil
	case ".xlsx":
		return ImportXLSX, nil
	default:
		return "", domain.Validationf("unsupported file type %q: expected .csv or .xlsx", filepath.Ext(fileName))
	}
}

// ImportRowError reports one skipped row. Row counts the header as row 1.
type ImportRowError struct {
	Row     int    `json:"row"`
	Message string `json:"message"`
}

// ImportResult 导入结果
type ImportResult struct {
	Total   int              `json:"total"`
	Created int              `json:"created"`
	Updated int              `json:"updated"`
	Skipped int              `json:"skipped"`
	Errors  []ImportRowError `json:"errors"`
}

func (r *ImportResult) skip(row int, err error) {
	r.Skipped++
	r.Errors = append(r.Errors, ImportRowError{Row: row, Message: err.Error()})
}

// ImportService loads drives and parts from CSV/XLSX tables.
type ImportService struct {
	drives  repository.DrivesRepository
	parts   repository.PartsRepository
	metrics *metrics.Collector
	logger  *zap.Logger
	now     func() time.Time
}

func NewImportService(drives repository.DrivesRepository, parts repository.PartsRepository, m *metrics.Collector, logger *zap.Logger) *ImportService {
	return &ImportService{
		drives:  drives,
		parts:   parts,
		metrics: m,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

var driveImportColumns = []sheetColumn{
	{Header: "name", Width: 25},
	{Header: "serial_number", Width: 22},
	{Header: "location", Width: 20},
	{Header: "manufacturer", Width: 20},
	{Header: "model", Width: 18},
	{Header: "status", Width: 18},
	{Header: "notes", Width: 30},
}

var partImportColumns = []sheetColumn{
	{Header: "name", Width: 25},
	{Header: "part_number", Width: 22},
	{Header: "manufacturer", Width: 20},
	{Header: "notes", Width: 30},
	{Header: "drive_serial", Width: 22},
}

// ImportTemplate returns an empty XLSX with the columns accepted for entity ("drives" or "parts").
func ImportTemplate(entity string) ([]byte, error) {
	var columns []sheetColumn
	switch entity {
	case "drives":
		columns = driveImportColumns
	case "parts":
		columns = partImportColumns
	default:
		return nil, domain.Validationf("unknown import entity: %s", entity)
	}
	f, err := newSheetWorkbook(entity, columns)
	if err != nil {
		return nil, err
	}
	return workbookBytes(f)
}

// ImportDrives upserts drives by serial_number. Bad rows are reported and skipped.
func (s *ImportService) ImportDrives(ctx context.Context, r io.Reader, format ImportFormat) (*ImportResult, error) {
	rows, err := readTable(r, format)
	if err != nil {
		return nil, err
	}
	result := &ImportResult{Errors: []ImportRowError{}}
	for _, row := range rows {
		result.Total++
		created, err := s.upsertDrive(ctx, row)
		if err != nil {
			if !isRowError(err) {
				return nil, fmt.Errorf("import aborted at row %d: %w", row.Number, err)
			}
			result.skip(row.Number, err)
			continue
		}
		if created {
			result.Created++
		} else {
			result.Updated++
		}
	}
	s.finish("drives", result)
	return result, nil
}

func (s *ImportService) upsertDrive(ctx context.Context, row tableRow) (bool, error) {
	name := row.get("name")
	serial := row.get("serial_number")
	if serial == "" {
		return false, domain.Validationf("serial_number is required")
	}
	var status domain.DriveStatus
	if v := row.get("status"); v != "" {
		status = domain.DriveStatus(strings.ToLower(v))
		if !status.IsValid() {
			return false, domain.Validationf("invalid drive status: %s", v)
		}
	}

	now := s.now()
	drive, err := s.drives.GetDriveBySerial(ctx, serial)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		if name == "" {
			return false, domain.Validationf("name is required")
		}
		if status == "" {
			status = domain.DriveActive
		}
		drive = &domain.Drive{
			ID:           newID(),
			Name:         name,
			SerialNumber: serial,
			Location:     row.get("location"),
			Manufacturer: row.get("manufacturer"),
			Model:        row.get("model"),
			Status:       status,
			Notes:        row.get("notes"),
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		return true, s.drives.CreateDrive(ctx, drive)
	case err != nil:
		return false, err
	}

	// Empty cells keep the stored value.
	if name != "" {
		drive.Name = name
	}
	if status != "" {
		drive.Status = status
	}
	row.assign("location", &drive.Location)
	row.assign("manufacturer", &drive.Manufacturer)
	row.assign("model", &drive.Model)
	row.assign("notes", &drive.Notes)
	drive.UpdatedAt = now
	return false, s.drives.UpdateDrive(ctx, drive)
}

// ImportParts upserts parts by part_number. A drive_serial cell attaches the part to that
// drive, recorded as actor.
func (s *ImportService) ImportParts(ctx context.Context, r io.Reader, format ImportFormat, actor string) (*ImportResult, error) {
	rows, err := readTable(r, format)
	if err != nil {
		return nil, err
	}
	actor = actorOrDefault(actor)
	result := &ImportResult{Errors: []ImportRowError{}}
	for _, row := range rows {
		result.Total++
		created, err := s.upsertPart(ctx, row, actor)
		if err != nil {
			if !isRowError(err) {
				return nil, fmt.Errorf("import aborted at row %d: %w", row.Number, err)
			}
			result.skip(row.Number, err)
			continue
		}
		if created {
			result.Created++
		} else {
			result.Updated++
		}
	}
	s.finish("parts", result)
	return result, nil
}

func (s *ImportService) upsertPart(ctx context.Context, row tableRow, actor string) (bool, error) {
	name := row.get("name")
	number := row.get("part_number")
	if number == "" {
		return false, domain.Validationf("part_number is required")
	}

	// Resolve the drive first so a bad reference skips the whole row.
	var drive *domain.Drive
	if serial := row.get("drive_serial"); serial != "" {
		d, err := s.drives.GetDriveBySerial(ctx, serial)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return false, domain.Validationf("drive with serial %s does not exist", serial)
			}
			return false, err
		}
		drive = d
	}

	now := s.now()
	created := false
	part, err := s.parts.GetPartByNumber(ctx, number)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		if name == "" {
			return false, domain.Validationf("name is required")
		}
		part = &domain.Part{
			ID:           newID(),
			Name:         name,
			PartNumber:   number,
			Manufacturer: row.get("manufacturer"),
			Notes:        row.get("notes"),
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := s.parts.CreatePart(ctx, part); err != nil {
			return false, err
		}
		created = true
	case err != nil:
		return false, err
	default:
		if name != "" {
			part.Name = name
		}
		row.assign("manufacturer", &part.Manufacturer)
		row.assign("notes", &part.Notes)
		part.UpdatedAt = now
		if err := s.parts.UpdatePart(ctx, part); err != nil {
			return false, err
		}
	}

	if drive != nil && (part.DriveID == nil || *part.DriveID != drive.ID) {
		if _, err := s.parts.AttachPart(ctx, part.ID, drive.ID, actor, "imported", now); err != nil {
			return created, err
		}
	}
	return created, nil
}

func (s *ImportService) finish(entity string, result *ImportResult) {
	s.metrics.AddImportRows(entity, "created", result.Created)
	s.metrics.AddImportRows(entity, "updated", result.Updated)
	s.metrics.AddImportRows(entity, "skipped", result.Skipped)
	fields := []zap.Field{
		zap.String("entity", entity),
		zap.Int("total", result.Total),
		zap.Int("created", result.Created),
		zap.Int("updated", result.Updated),
		zap.Int("skipped", result.Skipped),
	}
	if result.Skipped > 0 {
		s.logger.Warn("Import finished with skipped rows", fields...)
		return
	}
	s.logger.Info("Import finished", fields...)
}

// isRowError reports whether err belongs to the row rather than the system.
func isRowError(err error) bool {
	var de *domain.Error
	return errors.As(err, &de)
}

// tableRow is one non-blank data row keyed by normalised header.
type tableRow struct {
	Number int
	Values map[string]string
}

func (r tableRow) get(key string) string {
	return strings.TrimSpace(r.Values[key])
}

// assign overwrites *dst only when the cell is non-empty.
func (r tableRow) assign(key string, dst *string) {
	if v := r.get(key); v != "" {
		*dst = v
	}
}

var headerAliases = map[string]string{
	"serial":              "serial_number",
	"serial_no":           "serial_number",
	"part_no":             "part_number",
	"drive":               "drive_serial",
	"drive_serial_number": "drive_serial",
}

// normalizeHeader lower-cases a header and joins words with underscores.
func normalizeHeader(h string) string {
	h = strings.TrimPrefix(h, "\ufeff")
	h = strings.ToLower(strings.TrimSpace(h))
	h = strings.Join(strings.FieldsFunc(h, func(r rune) bool {
		return r == ' ' || r == '-' || r == '_' || r == '.'
	}), "_")
	if alias, ok := headerAliases[h]; ok {
		return alias
	}
	return h
}

func readTable(r io.Reader, format ImportFormat) ([]tableRow, error) {
	var records [][]string
	var err error
	switch format {
	case ImportCSV:
		records, err = readCSV(r)
	case ImportXLSX:
		records, err = readXLSX(r)
	default:
		return nil, domain.Validationf("unsupported import format: %s", format)
	}
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, domain.Validationf("file is empty")
	}

	headers := make([]string, len(records[0]))
	for i, h := range records[0] {
		headers[i] = normalizeHeader(h)
	}

	rows := make([]tableRow, 0, len(records)-1)
	for i, rec := range records[1:] {
		values := make(map[string]string, len(headers))
		blank := true
		for j, h := range headers {
			if h == "" || j >= len(rec) {
				continue
			}
			values[h] = rec[j]
			if strings.TrimSpace(rec[j]) != "" {
				blank = false
			}
		}
		if blank {
			continue
		}
		rows = append(rows, tableRow{Number: i + 2, Values: values})
	}
	return rows, nil
}

func readCSV(r io.Reader) ([][]string, error) {
	rdr := csv.NewReader(r)
	// allow ragged rows
	rdr.FieldsPerRecord = -1
	rdr.TrimLeadingSpace = true
	records, err := rdr.ReadAll()
	if err != nil {
		return nil, domain.Validationf("invalid CSV: %v", err)
	}
	return records, nil
}

func readXLSX(r io.Reader) ([][]string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, domain.Validationf("invalid XLSX file: %v", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, domain.Validationf("XLSX file has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, domain.Validationf("failed to read sheet %s: %v", sheets[0], err)
	}
	return rows, nil
}
