package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"emmo-data/internal/common/database"
	"emmo-data/internal/domain"
	"emmo-data/internal/notify"
	"emmo-data/internal/repository"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var fixedNow = time.Date(2024, 6, 3, 9, 30, 0, 0, time.UTC)

// recordingNotifier keeps every event it receives and optionally fails.
type recordingNotifier struct {
	mu     sync.Mutex
	events []notify.StatusChangedEvent
	err    error
}

func (n *recordingNotifier) Notify(_ context.Context, ev notify.StatusChangedEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
	return n.err
}

func (n *recordingNotifier) all() []notify.StatusChangedEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notify.StatusChangedEvent(nil), n.events...)
}

type fixture struct {
	db          *sqlx.DB
	drives      *repository.SQLDrivesRepository
	parts       *repository.SQLPartsRepository
	records     *repository.SQLMaintenanceRecordsRepository
	events      *recordingNotifier
	maintenance *MaintenanceService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := database.NewSQLiteDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	_, err = repository.Migrate(context.Background(), db)
	require.NoError(t, err)

	logger := zap.NewNop()
	f := &fixture{
		db:      db,
		drives:  repository.NewSQLDrivesRepository(db),
		parts:   repository.NewSQLPartsRepository(db),
		records: repository.NewSQLMaintenanceRecordsRepository(db, logger),
		events:  &recordingNotifier{},
	}
	f.maintenance = NewMaintenanceService(f.records, f.drives, f.parts, f.events, nil, logger)
	f.maintenance.now = func() time.Time { return fixedNow }
	return f
}

func (f *fixture) createDrive(t *testing.T, name, serial string) *domain.Drive {
	t.Helper()
	svc := NewDriveService(f.drives, f.parts, zap.NewNop())
	d, err := svc.CreateDrive(context.Background(), CreateDriveRequest{Name: name, SerialNumber: serial})
	require.NoError(t, err)
	return d
}

func (f *fixture) createPart(t *testing.T, name, number string) *domain.Part {
	t.Helper()
	svc := NewPartService(f.parts, zap.NewNop())
	p, err := svc.CreatePart(context.Background(), CreatePartRequest{Name: name, PartNumber: number})
	require.NoError(t, err)
	return p
}

func (f *fixture) createRecord(t *testing.T, title string, status domain.MaintenanceStatus) *RecordView {
	t.Helper()
	rec, err := f.maintenance.CreateRecord(context.Background(), CreateRecordRequest{
		Title:  title,
		Status: string(status),
		Actor:  "alice",
	})
	require.NoError(t, err)
	return rec
}

// addItems appends one item per status and applies the status, returning the item ids.
func (f *fixture) addItems(t *testing.T, recordID string, statuses ...domain.ChecklistItemStatus) []string {
	t.Helper()
	ctx := context.Background()
	ids := make([]string, 0, len(statuses))
	for _, st := range statuses {
		resp, err := f.maintenance.AddChecklistItem(ctx, AddChecklistItemRequest{
			RecordID: recordID,
			Text:     "step " + string(st),
			Actor:    "alice",
		})
		require.NoError(t, err)
		ids = append(ids, resp.Item.ID)
		if st != domain.ChecklistItemPending {
			s := string(st)
			_, err = f.maintenance.UpdateChecklistItem(ctx, UpdateChecklistItemRequest{
				RecordID: recordID,
				ItemID:   resp.Item.ID,
				Status:   &s,
				Actor:    "alice",
			})
			require.NoError(t, err)
		}
	}
	return ids
}

func strPtr(s string) *string { return &s }

func requireKind(t *testing.T, err error, kind error) {
	t.Helper()
	require.Error(t, err)
	require.Truef(t, errors.Is(err, kind), "expected %v, got %v", kind, err)
}
