package domain

import "time"

// InspectionResult 巡检结果
type InspectionResult string

const (
	InspectionPassed         InspectionResult = "passed"
	InspectionFailed         InspectionResult = "failed"
	InspectionNeedsAttention InspectionResult = "needs_attention"
)

func (r InspectionResult) IsValid() bool {
	return r == InspectionPassed || r == InspectionFailed || r == InspectionNeedsAttention
}

// Inspection 巡检记录
type Inspection struct {
	ID          string           `db:"id" json:"id"`
	DriveID     string           `db:"drive_id" json:"drive_id"`
	Inspector   string           `db:"inspector" json:"inspector"`
	InspectedAt time.Time        `db:"inspected_at" json:"inspected_at"`
	Result      InspectionResult `db:"result" json:"result"`
	Notes       string           `db:"notes" json:"notes"`
	CreatedAt   time.Time        `db:"created_at" json:"created_at"`
}
