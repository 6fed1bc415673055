package domain

import "time"

// DriveStatus 设备状态
type DriveStatus string

const (
	DriveActive           DriveStatus = "active"
	DriveUnderMaintenance DriveStatus = "under_maintenance"
	DriveDecommissioned   DriveStatus = "decommissioned"
)

// DriveStatuses lists every drive status.
var DriveStatuses = []DriveStatus{DriveActive, DriveUnderMaintenance, DriveDecommissioned}

func (s DriveStatus) IsValid() bool {
	return s == DriveActive || s == DriveUnderMaintenance || s == DriveDecommissioned
}

// Drive is a machinery unit. SerialNumber is the code printed on its barcode label.
type Drive struct {
	ID           string      `db:"id" json:"id"`
	Name         string      `db:"name" json:"name"`
	SerialNumber string      `db:"serial_number" json:"serial_number"`
	Location     string      `db:"location" json:"location"`
	Manufacturer string      `db:"manufacturer" json:"manufacturer"`
	Model        string      `db:"model" json:"model"`
	Status       DriveStatus `db:"status" json:"status"`
	Notes        string      `db:"notes" json:"notes"`
	CreatedAt    time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time   `db:"updated_at" json:"updated_at"`
}
