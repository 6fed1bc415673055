package httpapi

import (
	"io"
	"mime"
	"net/http"
	"strconv"
	"time"

	"emmo-data/internal/service"

	"go.uber.org/zap"
)

const recordsPath = apiPrefix + "/maintenance-records"

// MaintenanceHandler 维护记录 Handler（含检查单、看板、导出、附件）
type MaintenanceHandler struct {
	records        *service.MaintenanceService
	exports        *service.ExportService
	documents      *service.DocumentService
	uploadMaxBytes int64
	logger         *zap.Logger
}

func NewMaintenanceHandler(
	records *service.MaintenanceService,
	exports *service.ExportService,
	documents *service.DocumentService,
	uploadMaxBytes int64,
	logger *zap.Logger,
) *MaintenanceHandler {
	return &MaintenanceHandler{
		records:        records,
		exports:        exports,
		documents:      documents,
		uploadMaxBytes: uploadMaxBytes,
		logger:         logger,
	}
}

func (h *MaintenanceHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	seg := pathSegments(r.URL.Path, recordsPath)
	m := r.Method
	switch {
	case len(seg) == 0 && m == http.MethodGet:
		h.ListRecords(w, r)
	case len(seg) == 0 && m == http.MethodPost:
		h.CreateRecord(w, r)
	case len(seg) == 1 && seg[0] == "board" && m == http.MethodGet:
		h.Board(w, r)
	case len(seg) == 1 && seg[0] == "export" && m == http.MethodGet:
		h.Export(w, r)
	case len(seg) == 1 && m == http.MethodGet:
		h.GetRecord(w, r, seg[0])
	case len(seg) == 1 && (m == http.MethodPut || m == http.MethodPatch):
		h.UpdateRecord(w, r, seg[0])
	case len(seg) == 1 && m == http.MethodDelete:
		h.DeleteRecord(w, r, seg[0])
	case len(seg) == 2 && seg[1] == "status" && (m == http.MethodPut || m == http.MethodPost):
		h.SetStatus(w, r, seg[0])
	case len(seg) == 2 && seg[1] == "move" && m == http.MethodPost:
		h.Move(w, r, seg[0])
	case len(seg) == 2 && seg[1] == "checklist" && m == http.MethodPost:
		h.AddChecklistItem(w, r, seg[0])
	case len(seg) == 3 && seg[1] == "checklist" && (m == http.MethodPatch || m == http.MethodPut):
		h.UpdateChecklistItem(w, r, seg[0], seg[2])
	case len(seg) == 3 && seg[1] == "checklist" && m == http.MethodDelete:
		h.RemoveChecklistItem(w, r, seg[0], seg[2])
	case len(seg) == 2 && seg[1] == "documents" && m == http.MethodGet:
		h.ListDocuments(w, r, seg[0])
	case len(seg) == 2 && seg[1] == "documents" && m == http.MethodPost:
		h.UploadDocument(w, r, seg[0])
	case len(seg) == 3 && seg[1] == "documents" && m == http.MethodGet:
		h.DownloadDocument(w, r, seg[0], seg[2])
	case len(seg) == 3 && seg[1] == "documents" && m == http.MethodDelete:
		h.DeleteDocument(w, r, seg[0], seg[2])
	default:
		notFound(w)
	}
}

func (h *MaintenanceHandler) ListRecords(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	overdue := parseBool(q.Get("overdue"))
	resp, err := h.records.ListRecords(r.Context(), service.ListRecordsRequest{
		DriveID:  q.Get("drive_id"),
		PartID:   q.Get("part_id"),
		Status:   q.Get("status"),
		Priority: q.Get("priority"),
		Overdue:  overdue != nil && *overdue,
		Page:     parseInt(q.Get("page"), 1),
		Size:     parseInt(q.Get("size"), 20),
	})
	if err != nil {
		writeError(w, h.logger, "ListRecords", err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(resp))
}

func (h *MaintenanceHandler) CreateRecord(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Title         string  `json:"title"`
		Description   string  `json:"description"`
		Status        string  `json:"status"`
		Priority      string  `json:"priority"`
		DriveID       *string `json:"drive_id"`
		PartID        *string `json:"part_id"`
		ScheduledDate *string `json:"scheduled_date"`
	}
	if err := readBodyJSON(r, maxJSONBody, &payload); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid body"))
		return
	}
	scheduled, err := parseOptionalTime(payload.ScheduledDate)
	if err != nil {
		writeError(w, h.logger, "CreateRecord", err)
		return
	}
	rec, err := h.records.CreateRecord(r.Context(), service.CreateRecordRequest{
		Title:         payload.Title,
		Description:   payload.Description,
		Status:        payload.Status,
		Priority:      payload.Priority,
		DriveID:       payload.DriveID,
		PartID:        payload.PartID,
		ScheduledDate: scheduled,
		Actor:         actor(r),
	})
	if err != nil {
		writeError(w, h.logger, "CreateRecord", err)
		return
	}
	writeJSON(w, http.StatusCreated, Ok(rec))
}

func (h *MaintenanceHandler) GetRecord(w http.ResponseWriter, r *http.Request, id string) {
	rec, err := h.records.GetRecord(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, "GetRecord", err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(rec))
}

func (h *MaintenanceHandler) UpdateRecord(w http.ResponseWriter, r *http.Request, id string) {
	var payload struct {
		Title         *string       `json:"title"`
		Description   *string       `json:"description"`
		Priority      *string       `json:"priority"`
		DriveID       optionalField `json:"drive_id"`
		PartID        optionalField `json:"part_id"`
		ScheduledDate optionalField `json:"scheduled_date"`
		Status        *string       `json:"status"`
	}
	if err := readBodyJSON(r, maxJSONBody, &payload); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid body"))
		return
	}
	if payload.Status != nil {
		writeJSON(w, http.StatusBadRequest, Fail("status cannot be changed here; use the status endpoint"))
		return
	}
	req := service.UpdateRecordRequest{
		ID:               id,
		Title:            payload.Title,
		Description:      payload.Description,
		Priority:         payload.Priority,
		SetScheduledDate: payload.ScheduledDate.Set,
		Actor:            actor(r),
	}
	// null and "" both unlink
	if payload.DriveID.Set {
		req.DriveID = emptyIfNil(payload.DriveID.Value)
	}
	if payload.PartID.Set {
		req.PartID = emptyIfNil(payload.PartID.Value)
	}
	if payload.ScheduledDate.Set {
		scheduled, err := parseOptionalTime(payload.ScheduledDate.Value)
		if err != nil {
			writeError(w, h.logger, "UpdateRecord", err)
			return
		}
		req.ScheduledDate = scheduled
	}
	rec, err := h.records.UpdateRecord(r.Context(), req)
	if err != nil {
		writeError(w, h.logger, "UpdateRecord", err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(rec))
}

func (h *MaintenanceHandler) DeleteRecord(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.documents.DeleteRecord(r.Context(), id, h.records.DeleteRecord); err != nil {
		writeError(w, h.logger, "DeleteRecord", err)
		return
	}
	writeJSON(w, http.StatusOK, Ok[any](nil))
}

func (h *MaintenanceHandler) SetStatus(w http.ResponseWriter, r *http.Request, id string) {
	var payload struct {
		Status string `json:"status"`
	}
	if err := readBodyJSON(r, maxJSONBody, &payload); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid body"))
		return
	}
	rec, err := h.records.SetManualStatus(r.Context(), id, payload.Status, actor(r))
	if err != nil {
		writeError(w, h.logger, "SetManualStatus", err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(rec))
}

func (h *MaintenanceHandler) Move(w http.ResponseWriter, r *http.Request, id string) {
	var payload struct {
		Status    string `json:"status"`
		SortOrder int    `json:"sort_order"`
	}
	if err := readBodyJSON(r, maxJSONBody, &payload); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid body"))
		return
	}
	rec, err := h.records.MoveRecord(r.Context(), service.MoveRecordRequest{
		ID:        id,
		Status:    payload.Status,
		SortOrder: payload.SortOrder,
		Actor:     actor(r),
	})
	if err != nil {
		writeError(w, h.logger, "MoveRecord", err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(rec))
}

func (h *MaintenanceHandler) Board(w http.ResponseWriter, r *http.Request) {
	board, err := h.records.GetBoard(r.Context())
	if err != nil {
		writeError(w, h.logger, "GetBoard", err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(board))
}

func (h *MaintenanceHandler) AddChecklistItem(w http.ResponseWriter, r *http.Request, id string) {
	var payload struct {
		Text  string  `json:"text"`
		Notes *string `json:"notes"`
	}
	if err := readBodyJSON(r, maxJSONBody, &payload); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid body"))
		return
	}
	resp, err := h.records.AddChecklistItem(r.Context(), service.AddChecklistItemRequest{
		RecordID: id,
		Text:     payload.Text,
		Notes:    payload.Notes,
		Actor:    actor(r),
	})
	if err != nil {
		writeError(w, h.logger, "AddChecklistItem", err)
		return
	}
	writeJSON(w, http.StatusCreated, Ok(resp))
}

func (h *MaintenanceHandler) UpdateChecklistItem(w http.ResponseWriter, r *http.Request, id, itemID string) {
	var payload struct {
		Status *string       `json:"status"`
		Notes  optionalField `json:"notes"`
	}
	if err := readBodyJSON(r, maxJSONBody, &payload); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid body"))
		return
	}
	rec, err := h.records.UpdateChecklistItem(r.Context(), service.UpdateChecklistItemRequest{
		RecordID: id,
		ItemID:   itemID,
		Status:   payload.Status,
		SetNotes: payload.Notes.Set,
		Notes:    payload.Notes.Value,
		Actor:    actor(r),
	})
	if err != nil {
		writeError(w, h.logger, "UpdateChecklistItem", err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(rec))
}

func (h *MaintenanceHandler) RemoveChecklistItem(w http.ResponseWriter, r *http.Request, id, itemID string) {
	rec, err := h.records.RemoveChecklistItem(r.Context(), id, itemID, actor(r))
	if err != nil {
		writeError(w, h.logger, "RemoveChecklistItem", err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(rec))
}

func (h *MaintenanceHandler) Export(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	data, err := h.exports.ExportRecords(r.Context(), service.ExportRecordsRequest{
		DriveID:  q.Get("drive_id"),
		Status:   q.Get("status"),
		Priority: q.Get("priority"),
	})
	if err != nil {
		writeError(w, h.logger, "ExportRecords", err)
		return
	}
	name := "maintenance-records-" + time.Now().UTC().Format("20060102") + ".xlsx"
	writeFile(w, xlsxMimeType, name, data)
}

func (h *MaintenanceHandler) ListDocuments(w http.ResponseWriter, r *http.Request, id string) {
	docs, err := h.documents.List(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, "ListDocuments", err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(docs))
}

func (h *MaintenanceHandler) UploadDocument(w http.ResponseWriter, r *http.Request, id string) {
	if !h.documents.Enabled() {
		writeError(w, h.logger, "UploadDocument", service.ErrStorageDisabled)
		return
	}
	// room for the multipart envelope around the file
	file, header, err := formFile(w, r, h.uploadMaxBytes+1<<20)
	if err != nil {
		writeError(w, h.logger, "UploadDocument", err)
		return
	}
	defer file.Close()

	doc, err := h.documents.Upload(r.Context(), service.UploadDocumentRequest{
		RecordID:    id,
		FileName:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Body:        file,
		Actor:       actor(r),
	})
	if err != nil {
		writeError(w, h.logger, "UploadDocument", err)
		return
	}
	writeJSON(w, http.StatusCreated, Ok(doc))
}

func (h *MaintenanceHandler) DownloadDocument(w http.ResponseWriter, r *http.Request, id, docID string) {
	doc, body, err := h.documents.Open(r.Context(), id, docID)
	if err != nil {
		writeError(w, h.logger, "DownloadDocument", err)
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", doc.ContentType)
	w.Header().Set("Content-Disposition", attachmentDisposition(doc.FileName))
	w.Header().Set("Content-Length", strconv.FormatInt(doc.Size, 10))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, body); err != nil {
		h.logger.Warn("Document download interrupted", zap.String("document_id", docID), zap.Error(err))
	}
}

func (h *MaintenanceHandler) DeleteDocument(w http.ResponseWriter, r *http.Request, id, docID string) {
	if err := h.documents.Delete(r.Context(), id, docID); err != nil {
		writeError(w, h.logger, "DeleteDocument", err)
		return
	}
	writeJSON(w, http.StatusOK, Ok[any](nil))
}

func attachmentDisposition(fileName string) string {
	if v := mime.FormatMediaType("attachment", map[string]string{"filename": fileName}); v != "" {
		return v
	}
	return "attachment"
}

func emptyIfNil(s *string) *string {
	if s == nil {
		empty := ""
		return &empty
	}
	return s
}
