package domain

import "time"

// Part is a component that can be attached to at most one drive at a time.
type Part struct {
	ID           string    `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	PartNumber   string    `db:"part_number" json:"part_number"`
	Manufacturer string    `db:"manufacturer" json:"manufacturer"`
	DriveID      *string   `db:"drive_id" json:"drive_id"`
	Notes        string    `db:"notes" json:"notes"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// Attached reports whether the part is currently installed on a drive.
func (p *Part) Attached() bool {
	return p.DriveID != nil && *p.DriveID != ""
}

// PartAttachment is one row of a part's installation history.
// DetachedAt is nil while the attachment is open.
type PartAttachment struct {
	ID         string     `db:"id" json:"id"`
	PartID     string     `db:"part_id" json:"part_id"`
	DriveID    string     `db:"drive_id" json:"drive_id"`
	AttachedAt time.Time  `db:"attached_at" json:"attached_at"`
	AttachedBy string     `db:"attached_by" json:"attached_by"`
	DetachedAt *time.Time `db:"detached_at" json:"detached_at"`
	DetachedBy *string    `db:"detached_by" json:"detached_by"`
	Notes      string     `db:"notes" json:"notes"`
}
