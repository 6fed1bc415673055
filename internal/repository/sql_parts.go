package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"emmo-data/internal/domain"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const (
	partColumns       = `id, name, part_number, manufacturer, drive_id, notes, created_at, updated_at`
	attachmentColumns = `id, part_id, drive_id, attached_at, attached_by, detached_at, detached_by, notes`
)

// SQLPartsRepository implements PartsRepository on sqlx.
type SQLPartsRepository struct {
	db *sqlx.DB
}

func NewSQLPartsRepository(db *sqlx.DB) *SQLPartsRepository {
	return &SQLPartsRepository{db: db}
}

var _ PartsRepository = (*SQLPartsRepository)(nil)

func (r *SQLPartsRepository) CreatePart(ctx context.Context, p *domain.Part) error {
	query := r.db.Rebind(`INSERT INTO parts (` + partColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := r.db.ExecContext(ctx, query,
		p.ID, p.Name, p.PartNumber, p.Manufacturer, nullableString(p.DriveID), p.Notes, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.Conflictf("part with part number %s already exists", p.PartNumber)
		}
		return fmt.Errorf("failed to create part: %w", err)
	}
	return nil
}

func (r *SQLPartsRepository) GetPart(ctx context.Context, id string) (*domain.Part, error) {
	return getPart(ctx, r.db, "id", id, "")
}

func (r *SQLPartsRepository) GetPartByNumber(ctx context.Context, partNumber string) (*domain.Part, error) {
	return getPart(ctx, r.db, "part_number", partNumber, "")
}

func getPart(ctx context.Context, q queryer, column, value, suffix string) (*domain.Part, error) {
	var p domain.Part
	query := q.Rebind(`SELECT ` + partColumns + ` FROM parts WHERE ` + column + ` = ?` + suffix)
	if err := sqlx.GetContext(ctx, q, &p, query, value); err != nil {
		if isNoRows(err) {
			return nil, domain.NotFoundf("part %s not found", value)
		}
		return nil, fmt.Errorf("failed to get part: %w", err)
	}
	return &p, nil
}

func (r *SQLPartsRepository) ListParts(ctx context.Context, filter PartsFilter, page, size int) ([]*domain.Part, int, error) {
	var w whereBuilder
	if filter.DriveID != "" {
		w.add("drive_id = ?", filter.DriveID)
	}
	if filter.Attached != nil {
		if *filter.Attached {
			w.add("drive_id IS NOT NULL")
		} else {
			w.add("drive_id IS NULL")
		}
	}
	if s := strings.TrimSpace(filter.Search); s != "" {
		op := likeOp(r.db)
		pattern := "%" + s + "%"
		w.add(fmt.Sprintf("(name %[1]s ? OR part_number %[1]s ?)", op), pattern, pattern)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, r.db.Rebind(`SELECT COUNT(*) FROM parts`+w.clause()), w.args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count parts: %w", err)
	}

	limit, args := limitClause(page, size, w.args)
	query := r.db.Rebind(`SELECT ` + partColumns + ` FROM parts` + w.clause() + ` ORDER BY name, part_number` + limit)
	var parts []*domain.Part
	if err := r.db.SelectContext(ctx, &parts, query, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to list parts: %w", err)
	}
	return parts, total, nil
}

func (r *SQLPartsRepository) UpdatePart(ctx context.Context, p *domain.Part) error {
	query := r.db.Rebind(`
		UPDATE parts SET name = ?, part_number = ?, manufacturer = ?, notes = ?, updated_at = ?
		WHERE id = ?`)
	res, err := r.db.ExecContext(ctx, query, p.Name, p.PartNumber, p.Manufacturer, p.Notes, p.UpdatedAt, p.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.Conflictf("part with part number %s already exists", p.PartNumber)
		}
		return fmt.Errorf("failed to update part: %w", err)
	}
	return expectAffected(res, "part", p.ID)
}

func (r *SQLPartsRepository) DeletePart(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM parts WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("failed to delete part: %w", err)
	}
	return expectAffected(res, "part", id)
}

func (r *SQLPartsRepository) AttachPart(ctx context.Context, partID, driveID, actor, notes string, at time.Time) (*domain.PartAttachment, error) {
	var attachment *domain.PartAttachment
	err := withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		part, err := getPart(ctx, tx, "id", partID, forUpdate(r.db))
		if err != nil {
			return err
		}
		if part.Attached() && *part.DriveID == driveID {
			return domain.Conflictf("part %s is already attached to drive %s", partID, driveID)
		}

		var exists int
		if err := tx.GetContext(ctx, &exists, tx.Rebind(`SELECT COUNT(*) FROM drives WHERE id = ?`), driveID); err != nil {
			return fmt.Errorf("failed to check drive: %w", err)
		}
		if exists == 0 {
			return domain.NotFoundf("drive %s not found", driveID)
		}

		if err := closeOpenAttachment(ctx, tx, partID, actor, at); err != nil {
			return err
		}

		attachment = &domain.PartAttachment{
			ID:         uuid.NewString(),
			PartID:     partID,
			DriveID:    driveID,
			AttachedAt: at,
			AttachedBy: actor,
			Notes:      notes,
		}
		_, err = tx.ExecContext(ctx, tx.Rebind(`
			INSERT INTO part_attachments (id, part_id, drive_id, attached_at, attached_by, notes)
			VALUES (?, ?, ?, ?, ?, ?)`),
			attachment.ID, partID, driveID, at, actor, notes)
		if err != nil {
			return fmt.Errorf("failed to insert attachment: %w", err)
		}

		_, err = tx.ExecContext(ctx, tx.Rebind(`UPDATE parts SET drive_id = ?, updated_at = ? WHERE id = ?`), driveID, at, partID)
		if err != nil {
			return fmt.Errorf("failed to update part drive: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return attachment, nil
}

func (r *SQLPartsRepository) DetachPart(ctx context.Context, partID, actor string, at time.Time) (*domain.PartAttachment, error) {
	var closed *domain.PartAttachment
	err := withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		part, err := getPart(ctx, tx, "id", partID, forUpdate(r.db))
		if err != nil {
			return err
		}
		if !part.Attached() {
			return domain.Conflictf("part %s is not attached to any drive", partID)
		}

		open, err := openAttachment(ctx, tx, partID)
		if err != nil {
			return err
		}
		if err := closeOpenAttachment(ctx, tx, partID, actor, at); err != nil {
			return err
		}
		if open != nil {
			open.DetachedAt = &at
			open.DetachedBy = &actor
			closed = open
		}

		_, err = tx.ExecContext(ctx, tx.Rebind(`UPDATE parts SET drive_id = NULL, updated_at = ? WHERE id = ?`), at, partID)
		if err != nil {
			return fmt.Errorf("failed to clear part drive: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return closed, nil
}

func openAttachment(ctx context.Context, tx *sqlx.Tx, partID string) (*domain.PartAttachment, error) {
	var a domain.PartAttachment
	query := tx.Rebind(`SELECT ` + attachmentColumns + ` FROM part_attachments WHERE part_id = ? AND detached_at IS NULL`)
	if err := tx.GetContext(ctx, &a, query, partID); err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get open attachment: %w", err)
	}
	return &a, nil
}

func closeOpenAttachment(ctx context.Context, tx *sqlx.Tx, partID, actor string, at time.Time) error {
	_, err := tx.ExecContext(ctx, tx.Rebind(`
		UPDATE part_attachments SET detached_at = ?, detached_by = ?
		WHERE part_id = ? AND detached_at IS NULL`), at, actor, partID)
	if err != nil {
		return fmt.Errorf("failed to close attachment: %w", err)
	}
	return nil
}

func (r *SQLPartsRepository) ListAttachmentsByPart(ctx context.Context, partID string) ([]*domain.PartAttachment, error) {
	return r.listAttachments(ctx, "part_id", partID)
}

func (r *SQLPartsRepository) ListAttachmentsByDrive(ctx context.Context, driveID string) ([]*domain.PartAttachment, error) {
	return r.listAttachments(ctx, "drive_id", driveID)
}

func (r *SQLPartsRepository) listAttachments(ctx context.Context, column, value string) ([]*domain.PartAttachment, error) {
	query := r.db.Rebind(`SELECT ` + attachmentColumns + ` FROM part_attachments WHERE ` + column + ` = ? ORDER BY attached_at DESC, id`)
	attachments := []*domain.PartAttachment{}
	if err := r.db.SelectContext(ctx, &attachments, query, value); err != nil {
		return nil, fmt.Errorf("failed to list attachments: %w", err)
	}
	return attachments, nil
}
