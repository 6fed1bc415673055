package domain

import "time"

// RecordDocument is a file attached to a maintenance record; the bytes live in object storage.
type RecordDocument struct {
	ID          string    `db:"id" json:"id"`
	RecordID    string    `db:"record_id" json:"record_id"`
	FileName    string    `db:"file_name" json:"file_name"`
	ContentType string    `db:"content_type" json:"content_type"`
	Size        int64     `db:"size" json:"size"`
	ObjectKey   string    `db:"object_key" json:"-"`
	UploadedBy  string    `db:"uploaded_by" json:"uploaded_by"`
	UploadedAt  time.Time `db:"uploaded_at" json:"uploaded_at"`
}
