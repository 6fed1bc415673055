package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"emmo-data/internal/domain"
	"emmo-data/internal/metrics"
	"emmo-data/internal/notify"
	"emmo-data/internal/repository"

	"go.uber.org/zap"
)

// MaintenanceService 维护记录服务
// Every record mutation goes through records.MutateRecord so that a checklist change and
// the status it derives are written together.
type MaintenanceService struct {
	records  repository.MaintenanceRecordsRepository
	drives   repository.DrivesRepository
	parts    repository.PartsRepository
	notifier notify.Notifier
	metrics  *metrics.Collector
	logger   *zap.Logger
	now      func() time.Time
}

// NewMaintenanceService creates the service. notifier and m may be nil.
func NewMaintenanceService(
	records repository.MaintenanceRecordsRepository,
	drives repository.DrivesRepository,
	parts repository.PartsRepository,
	notifier notify.Notifier,
	m *metrics.Collector,
	logger *zap.Logger,
) *MaintenanceService {
	return &MaintenanceService{
		records:  records,
		drives:   drives,
		parts:    parts,
		notifier: notifier,
		metrics:  m,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// RecordView is a record as returned to callers, with its checklist progress.
type RecordView struct {
	*domain.MaintenanceRecord
	ChecklistStats domain.ChecklistStats `json:"checklist_stats"`
	StatusManaged  bool                  `json:"status_managed"`
	Overdue        bool                  `json:"overdue"`
}

func (s *MaintenanceService) view(rec *domain.MaintenanceRecord) *RecordView {
	if rec.Checklist == nil {
		rec.Checklist = domain.Checklist{}
	}
	return &RecordView{
		MaintenanceRecord: rec,
		ChecklistStats:    rec.Checklist.Stats(),
		StatusManaged:     rec.StatusManaged(),
		Overdue:           rec.IsOverdue(s.now()),
	}
}

// CreateRecordRequest 创建维护记录请求
type CreateRecordRequest struct {
	Title         string
	Description   string
	Status        string // initial manual status, default pending
	Priority      string // default medium
	DriveID       *string
	PartID        *string
	ScheduledDate *time.Time
	Actor         string
}

// CreateRecord creates a record in manual mode with an empty checklist.
func (s *MaintenanceService) CreateRecord(ctx context.Context, req CreateRecordRequest) (*RecordView, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, domain.Validationf("title is required")
	}
	status := domain.MaintenanceStatus(strings.TrimSpace(req.Status))
	if status == "" {
		status = domain.MaintenancePending
	}
	if !status.IsValid() {
		return nil, domain.Validationf("invalid status: %s", req.Status)
	}
	priority := domain.Priority(strings.TrimSpace(req.Priority))
	if priority == "" {
		priority = domain.PriorityMedium
	}
	if !priority.IsValid() {
		return nil, domain.Validationf("invalid priority: %s", req.Priority)
	}

	driveID, err := s.resolveDrive(ctx, req.DriveID)
	if err != nil {
		return nil, err
	}
	partID, err := s.resolvePart(ctx, req.PartID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	rec := &domain.MaintenanceRecord{
		ID:            newID(),
		DriveID:       driveID,
		PartID:        partID,
		Title:         title,
		Description:   strings.TrimSpace(req.Description),
		Priority:      priority,
		ScheduledDate: utcPtr(req.ScheduledDate),
		Checklist:     domain.Checklist{},
		CreatedBy:     actorOrDefault(req.Actor),
		UpdatedBy:     actorOrDefault(req.Actor),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	rec.SetStatus(status, now)

	if err := s.records.CreateRecord(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to create maintenance record: %w", err)
	}
	s.logger.Info("Maintenance record created",
		zap.String("record_id", rec.ID),
		zap.String("status", string(rec.Status)),
		zap.String("actor", rec.CreatedBy),
	)
	return s.view(rec), nil
}

func (s *MaintenanceService) GetRecord(ctx context.Context, id string) (*RecordView, error) {
	if strings.TrimSpace(id) == "" {
		return nil, domain.Validationf("record id is required")
	}
	rec, err := s.records.GetRecord(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.view(rec), nil
}

// ListRecordsRequest 查询维护记录列表请求
type ListRecordsRequest struct {
	DriveID  string
	PartID   string
	Status   string
	Priority string
	Overdue  bool
	Page     int
	Size     int
}

type ListRecordsResponse struct {
	Items []*RecordView `json:"items"`
	Total int           `json:"total"`
}

func (s *MaintenanceService) ListRecords(ctx context.Context, req ListRecordsRequest) (*ListRecordsResponse, error) {
	if req.Status != "" && !domain.MaintenanceStatus(req.Status).IsValid() {
		return nil, domain.Validationf("invalid status: %s", req.Status)
	}
	if req.Priority != "" && !domain.Priority(req.Priority).IsValid() {
		return nil, domain.Validationf("invalid priority: %s", req.Priority)
	}
	page, size := normalizePage(req.Page, req.Size)

	records, total, err := s.records.ListRecords(ctx, repository.RecordsFilter{
		DriveID:  strings.TrimSpace(req.DriveID),
		PartID:   strings.TrimSpace(req.PartID),
		Status:   req.Status,
		Priority: req.Priority,
		Overdue:  req.Overdue,
		Now:      s.now(),
	}, page, size)
	if err != nil {
		return nil, fmt.Errorf("failed to list maintenance records: %w", err)
	}

	items := make([]*RecordView, 0, len(records))
	for _, rec := range records {
		items = append(items, s.view(rec))
	}
	return &ListRecordsResponse{Items: items, Total: total}, nil
}

// UpdateRecordRequest changes descriptive fields only; status has its own operations.
// nil fields are left unchanged. An empty DriveID/PartID unlinks the record.
type UpdateRecordRequest struct {
	ID               string
	Title            *string
	Description      *string
	Priority         *string
	DriveID          *string
	PartID           *string
	SetScheduledDate bool
	ScheduledDate    *time.Time // nil with SetScheduledDate clears the date
	Actor            string
}

func (s *MaintenanceService) UpdateRecord(ctx context.Context, req UpdateRecordRequest) (*RecordView, error) {
	var title string
	if req.Title != nil {
		title = strings.TrimSpace(*req.Title)
		if title == "" {
			return nil, domain.Validationf("title cannot be empty")
		}
	}
	if req.Priority != nil && !domain.Priority(*req.Priority).IsValid() {
		return nil, domain.Validationf("invalid priority: %s", *req.Priority)
	}
	driveID, err := s.resolveDrive(ctx, req.DriveID)
	if err != nil {
		return nil, err
	}
	partID, err := s.resolvePart(ctx, req.PartID)
	if err != nil {
		return nil, err
	}

	return s.mutate(ctx, req.ID, req.Actor, "", func(r *domain.MaintenanceRecord, now time.Time) (bool, error) {
		if req.Title != nil {
			r.Title = title
		}
		if req.Description != nil {
			r.Description = strings.TrimSpace(*req.Description)
		}
		if req.Priority != nil {
			r.Priority = domain.Priority(*req.Priority)
		}
		if req.DriveID != nil {
			r.DriveID = driveID
		}
		if req.PartID != nil {
			r.PartID = partID
		}
		if req.SetScheduledDate {
			r.ScheduledDate = utcPtr(req.ScheduledDate)
		}
		return true, nil
	})
}

func (s *MaintenanceService) DeleteRecord(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return domain.Validationf("record id is required")
	}
	if err := s.records.DeleteRecord(ctx, id); err != nil {
		return err
	}
	s.logger.Info("Maintenance record deleted", zap.String("record_id", id))
	return nil
}

// SetManualStatus sets the status of a record in manual mode. While the checklist has
// items the status is system-managed and the change is rejected with a conflict.
func (s *MaintenanceService) SetManualStatus(ctx context.Context, id string, status string, actor string) (*RecordView, error) {
	st := domain.MaintenanceStatus(strings.TrimSpace(status))
	if !st.IsValid() {
		return nil, domain.Validationf("invalid status: %s", status)
	}
	return s.mutate(ctx, id, actor, notify.ModeManual, func(r *domain.MaintenanceRecord, now time.Time) (bool, error) {
		if r.StatusManaged() {
			return false, domain.Conflictf("status is automatically managed while the checklist has items")
		}
		if r.Status == st {
			return false, nil
		}
		r.SetStatus(st, now)
		return true, nil
	})
}

// AddChecklistItemRequest 添加检查项请求
type AddChecklistItemRequest struct {
	RecordID string
	Text     string
	Notes    *string
	Actor    string
}

type AddChecklistItemResponse struct {
	Record *RecordView          `json:"record"`
	Item   domain.ChecklistItem `json:"item"`
}

// AddChecklistItem appends an item and re-derives the record status. Adding the first
// item switches the record from manual to system-managed mode.
func (s *MaintenanceService) AddChecklistItem(ctx context.Context, req AddChecklistItemRequest) (*AddChecklistItemResponse, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, domain.Validationf("checklist item text is required")
	}
	actor := actorOrDefault(req.Actor)

	var item domain.ChecklistItem
	view, err := s.mutate(ctx, req.RecordID, actor, notify.ModeDerived, func(r *domain.MaintenanceRecord, now time.Time) (bool, error) {
		checklist, added, err := r.Checklist.AddItem(req.Text, req.Notes, actor)
		if err != nil {
			return false, err
		}
		r.Checklist = checklist
		r.ApplyDerivedStatus(now)
		item = added
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.IncChecklistOp("add")
	return &AddChecklistItemResponse{Record: view, Item: item}, nil
}

// RemoveChecklistItem deletes an item; removing an unknown item is a no-op. When the
// checklist becomes empty the status keeps its last derived value and manual mode resumes.
func (s *MaintenanceService) RemoveChecklistItem(ctx context.Context, recordID, itemID, actor string) (*RecordView, error) {
	if strings.TrimSpace(itemID) == "" {
		return nil, domain.Validationf("checklist item id is required")
	}
	view, err := s.mutate(ctx, recordID, actor, notify.ModeDerived, func(r *domain.MaintenanceRecord, now time.Time) (bool, error) {
		if _, ok := r.Checklist.Item(itemID); !ok {
			return false, nil
		}
		r.Checklist = r.Checklist.RemoveItem(itemID)
		r.ApplyDerivedStatus(now)
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.IncChecklistOp("remove")
	return view, nil
}

// UpdateChecklistItemRequest carries an optional status and optional notes; at least
// one is required. SetNotes with nil Notes clears the notes.
type UpdateChecklistItemRequest struct {
	RecordID string
	ItemID   string
	Status   *string
	SetNotes bool
	Notes    *string
	Actor    string
}

func (s *MaintenanceService) UpdateChecklistItem(ctx context.Context, req UpdateChecklistItemRequest) (*RecordView, error) {
	if req.Status == nil && !req.SetNotes {
		return nil, domain.Validationf("status or notes is required")
	}
	var status domain.ChecklistItemStatus
	if req.Status != nil {
		status = domain.ChecklistItemStatus(strings.TrimSpace(*req.Status))
		if !status.IsValid() {
			return nil, domain.Validationf("invalid checklist item status: %s", *req.Status)
		}
	}
	actor := actorOrDefault(req.Actor)

	view, err := s.mutate(ctx, req.RecordID, actor, notify.ModeDerived, func(r *domain.MaintenanceRecord, now time.Time) (bool, error) {
		checklist := r.Checklist
		var err error
		if req.Status != nil {
			if checklist, err = checklist.UpdateItemStatus(req.ItemID, status, actor); err != nil {
				return false, err
			}
		}
		if req.SetNotes {
			if checklist, err = checklist.UpdateItemNotes(req.ItemID, req.Notes, actor); err != nil {
				return false, err
			}
		}
		r.Checklist = checklist
		r.ApplyDerivedStatus(now)
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.IncChecklistOp("update")
	return view, nil
}

// MoveRecordRequest is a Kanban drag-and-drop.
type MoveRecordRequest struct {
	ID        string
	Status    string
	SortOrder int
	Actor     string
}

// MoveRecord repositions a record on the board. Reordering inside a column is always
// allowed; moving a checklist-bearing record to another column is a conflict.
func (s *MaintenanceService) MoveRecord(ctx context.Context, req MoveRecordRequest) (*RecordView, error) {
	st := domain.MaintenanceStatus(strings.TrimSpace(req.Status))
	if !st.IsValid() {
		return nil, domain.Validationf("invalid status: %s", req.Status)
	}
	if req.SortOrder < 0 {
		return nil, domain.Validationf("sort_order must not be negative")
	}
	return s.mutate(ctx, req.ID, req.Actor, notify.ModeManual, func(r *domain.MaintenanceRecord, now time.Time) (bool, error) {
		changed := false
		if r.Status != st {
			if r.StatusManaged() {
				return false, domain.Conflictf("status is automatically managed while the checklist has items")
			}
			r.SetStatus(st, now)
			changed = true
		}
		if r.SortOrder != req.SortOrder {
			r.SortOrder = req.SortOrder
			changed = true
		}
		return changed, nil
	})
}

// BoardColumn 看板列
type BoardColumn struct {
	Status  domain.MaintenanceStatus `json:"status"`
	Records []*RecordView            `json:"records"`
}

type BoardResponse struct {
	Columns []BoardColumn `json:"columns"`
}

// GetBoard groups every record into its status column, ordered by sort_order.
func (s *MaintenanceService) GetBoard(ctx context.Context) (*BoardResponse, error) {
	records, _, err := s.records.ListRecords(ctx, repository.RecordsFilter{Sort: repository.RecordSortBoard}, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to load board: %w", err)
	}

	columns := make(map[domain.MaintenanceStatus][]*RecordView, len(domain.MaintenanceStatuses))
	for _, rec := range records {
		columns[rec.Status] = append(columns[rec.Status], s.view(rec))
	}

	resp := &BoardResponse{Columns: make([]BoardColumn, 0, len(domain.MaintenanceStatuses))}
	for _, st := range domain.MaintenanceStatuses {
		col := columns[st]
		if col == nil {
			col = []*RecordView{}
		}
		sort.SliceStable(col, func(i, j int) bool { return col[i].SortOrder < col[j].SortOrder })
		resp.Columns = append(resp.Columns, BoardColumn{Status: st, Records: col})
	}
	return resp, nil
}

// mutate runs fn inside the record transaction, stamps attribution and, after commit,
// reports a status change. mode is empty for edits that never touch the status.
func (s *MaintenanceService) mutate(
	ctx context.Context,
	id, actor, mode string,
	fn func(r *domain.MaintenanceRecord, now time.Time) (bool, error),
) (*RecordView, error) {
	if strings.TrimSpace(id) == "" {
		return nil, domain.Validationf("record id is required")
	}
	actor = actorOrDefault(actor)

	var from domain.MaintenanceStatus
	rec, err := s.records.MutateRecord(ctx, id, func(r *domain.MaintenanceRecord) (bool, error) {
		from = r.Status
		now := s.now()
		changed, err := fn(r, now)
		if err != nil || !changed {
			return false, err
		}
		r.UpdatedBy = actor
		r.UpdatedAt = now
		return true, nil
	})
	if err != nil {
		var kind *domain.Error
		if !errors.As(err, &kind) {
			s.logger.Error("Maintenance record mutation failed", zap.String("record_id", id), zap.Error(err))
		}
		return nil, err
	}

	if rec.Status != from {
		s.statusChanged(ctx, rec, from, mode, actor)
	}
	return s.view(rec), nil
}

func (s *MaintenanceService) statusChanged(ctx context.Context, rec *domain.MaintenanceRecord, from domain.MaintenanceStatus, mode, actor string) {
	s.metrics.IncStatusTransition(string(from), string(rec.Status), mode)
	s.logger.Info("Maintenance record status changed",
		zap.String("record_id", rec.ID),
		zap.String("from", string(from)),
		zap.String("to", string(rec.Status)),
		zap.String("mode", mode),
		zap.String("actor", actor),
	)
	if s.notifier == nil {
		return
	}
	ev := notify.StatusChangedEvent{
		Type:       notify.EventStatusChanged,
		RecordID:   rec.ID,
		From:       from,
		To:         rec.Status,
		Mode:       mode,
		Actor:      actor,
		OccurredAt: rec.UpdatedAt,
	}
	if err := s.notifier.Notify(ctx, ev); err != nil {
		s.metrics.IncEventFailure()
		s.logger.Warn("Failed to publish status change event", zap.String("record_id", rec.ID), zap.Error(err))
	}
}

// resolveDrive validates an optional drive reference. "" unlinks.
func (s *MaintenanceService) resolveDrive(ctx context.Context, id *string) (*string, error) {
	if id == nil || strings.TrimSpace(*id) == "" {
		return nil, nil
	}
	v := strings.TrimSpace(*id)
	if _, err := s.drives.GetDrive(ctx, v); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.Validationf("drive %s does not exist", v)
		}
		return nil, err
	}
	return &v, nil
}

func (s *MaintenanceService) resolvePart(ctx context.Context, id *string) (*string, error) {
	if id == nil || strings.TrimSpace(*id) == "" {
		return nil, nil
	}
	v := strings.TrimSpace(*id)
	if _, err := s.parts.GetPart(ctx, v); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.Validationf("part %s does not exist", v)
		}
		return nil, err
	}
	return &v, nil
}
