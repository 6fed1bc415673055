package repository

import (
	"context"
	"fmt"
	"strings"

	"emmo-data/internal/domain"

	"github.com/jmoiron/sqlx"
)

const driveColumns = `id, name, serial_number, location, manufacturer, model, status, notes, created_at, updated_at`

// SQLDrivesRepository implements DrivesRepository on sqlx (Postgres or SQLite).
type SQLDrivesRepository struct {
	db *sqlx.DB
}

func NewSQLDrivesRepository(db *sqlx.DB) *SQLDrivesRepository {
	return &SQLDrivesRepository{db: db}
}

var _ DrivesRepository = (*SQLDrivesRepository)(nil)

func (r *SQLDrivesRepository) CreateDrive(ctx context.Context, d *domain.Drive) error {
	query := r.db.Rebind(`
		INSERT INTO drives (` + driveColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := r.db.ExecContext(ctx, query,
		d.ID, d.Name, d.SerialNumber, d.Location, d.Manufacturer, d.Model, string(d.Status), d.Notes,
		d.CreatedAt, d.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.Conflictf("drive with serial number %s already exists", d.SerialNumber)
		}
		return fmt.Errorf("failed to create drive: %w", err)
	}
	return nil
}

func (r *SQLDrivesRepository) GetDrive(ctx context.Context, id string) (*domain.Drive, error) {
	return r.getBy(ctx, "id", id)
}

func (r *SQLDrivesRepository) GetDriveBySerial(ctx context.Context, serial string) (*domain.Drive, error) {
	return r.getBy(ctx, "serial_number", serial)
}

func (r *SQLDrivesRepository) getBy(ctx context.Context, column, value string) (*domain.Drive, error) {
	var d domain.Drive
	query := r.db.Rebind(`SELECT ` + driveColumns + ` FROM drives WHERE ` + column + ` = ?`)
	if err := r.db.GetContext(ctx, &d, query, value); err != nil {
		if isNoRows(err) {
			return nil, domain.NotFoundf("drive %s not found", value)
		}
		return nil, fmt.Errorf("failed to get drive: %w", err)
	}
	return &d, nil
}

func (r *SQLDrivesRepository) ListDrives(ctx context.Context, filter DrivesFilter, page, size int) ([]*domain.Drive, int, error) {
	var w whereBuilder
	if filter.Status != "" {
		w.add("status = ?", filter.Status)
	}
	if s := strings.TrimSpace(filter.Search); s != "" {
		op := likeOp(r.db)
		pattern := "%" + s + "%"
		w.add(fmt.Sprintf("(name %[1]s ? OR serial_number %[1]s ? OR location %[1]s ?)", op), pattern, pattern, pattern)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, r.db.Rebind(`SELECT COUNT(*) FROM drives`+w.clause()), w.args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count drives: %w", err)
	}

	limit, args := limitClause(page, size, w.args)
	query := r.db.Rebind(`SELECT ` + driveColumns + ` FROM drives` + w.clause() + ` ORDER BY name, serial_number` + limit)
	var drives []*domain.Drive
	if err := r.db.SelectContext(ctx, &drives, query, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to list drives: %w", err)
	}
	return drives, total, nil
}

func (r *SQLDrivesRepository) UpdateDrive(ctx context.Context, d *domain.Drive) error {
	query := r.db.Rebind(`
		UPDATE drives
		SET name = ?, serial_number = ?, location = ?, manufacturer = ?, model = ?, status = ?, notes = ?, updated_at = ?
		WHERE id = ?`)
	res, err := r.db.ExecContext(ctx, query,
		d.Name, d.SerialNumber, d.Location, d.Manufacturer, d.Model, string(d.Status), d.Notes, d.UpdatedAt, d.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.Conflictf("drive with serial number %s already exists", d.SerialNumber)
		}
		return fmt.Errorf("failed to update drive: %w", err)
	}
	return expectAffected(res, "drive", d.ID)
}

func (r *SQLDrivesRepository) DeleteDrive(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM drives WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("failed to delete drive: %w", err)
	}
	return expectAffected(res, "drive", id)
}
