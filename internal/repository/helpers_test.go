package repository

import (
	"context"
	"testing"
	"time"

	"emmo-data/internal/common/database"
	"emmo-data/internal/domain"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

// newTestDB returns a migrated in-memory SQLite database.
func newTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := database.NewSQLiteDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = Migrate(context.Background(), db)
	require.NoError(t, err)
	return db
}

var testTime = time.Date(2024, 6, 3, 9, 30, 0, 0, time.UTC)

func seedDrive(t *testing.T, repo *SQLDrivesRepository, name, serial string) *domain.Drive {
	t.Helper()
	d := &domain.Drive{
		ID:           uuid.NewString(),
		Name:         name,
		SerialNumber: serial,
		Location:     "Hall A",
		Status:       domain.DriveActive,
		CreatedAt:    testTime,
		UpdatedAt:    testTime,
	}
	require.NoError(t, repo.CreateDrive(context.Background(), d))
	return d
}

func seedPart(t *testing.T, repo *SQLPartsRepository, name, number string) *domain.Part {
	t.Helper()
	p := &domain.Part{
		ID:         uuid.NewString(),
		Name:       name,
		PartNumber: number,
		CreatedAt:  testTime,
		UpdatedAt:  testTime,
	}
	require.NoError(t, repo.CreatePart(context.Background(), p))
	return p
}

func newRecord(title string, status domain.MaintenanceStatus) *domain.MaintenanceRecord {
	return &domain.MaintenanceRecord{
		ID:        uuid.NewString(),
		Title:     title,
		Status:    status,
		Priority:  domain.PriorityMedium,
		Checklist: domain.Checklist{},
		CreatedBy: "alice",
		UpdatedBy: "alice",
		CreatedAt: testTime,
		UpdatedAt: testTime,
	}
}
