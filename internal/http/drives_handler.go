package httpapi

import (
	"net/http"

	"emmo-data/internal/service"

	"go.uber.org/zap"
)

const drivesPath = apiPrefix + "/drives"

// DrivesHandler 设备 Handler
type DrivesHandler struct {
	drives         *service.DriveService
	imports        *service.ImportService
	uploadMaxBytes int64
	logger         *zap.Logger
}

func NewDrivesHandler(drives *service.DriveService, imports *service.ImportService, uploadMaxBytes int64, logger *zap.Logger) *DrivesHandler {
	return &DrivesHandler{drives: drives, imports: imports, uploadMaxBytes: uploadMaxBytes, logger: logger}
}

func (h *DrivesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	seg := pathSegments(r.URL.Path, drivesPath)
	switch {
	case len(seg) == 0 && r.Method == http.MethodGet:
		h.ListDrives(w, r)
	case len(seg) == 0 && r.Method == http.MethodPost:
		h.CreateDrive(w, r)
	case len(seg) == 1 && seg[0] == "lookup" && r.Method == http.MethodGet:
		h.Lookup(w, r)
	case len(seg) == 1 && seg[0] == "import" && r.Method == http.MethodPost:
		h.Import(w, r)
	case len(seg) == 2 && seg[0] == "import" && seg[1] == "template" && r.Method == http.MethodGet:
		writeImportTemplate(w, h.logger, "drives")
	case len(seg) == 1 && r.Method == http.MethodGet:
		h.GetDrive(w, r, seg[0])
	case len(seg) == 1 && (r.Method == http.MethodPut || r.Method == http.MethodPatch):
		h.UpdateDrive(w, r, seg[0])
	case len(seg) == 1 && r.Method == http.MethodDelete:
		h.DeleteDrive(w, r, seg[0])
	case len(seg) == 2 && seg[1] == "attachments" && r.Method == http.MethodGet:
		h.ListAttachments(w, r, seg[0])
	default:
		notFound(w)
	}
}

func (h *DrivesHandler) ListDrives(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	resp, err := h.drives.ListDrives(r.Context(), service.ListDrivesRequest{
		Status: q.Get("status"),
		Search: q.Get("q"),
		Page:   parseInt(q.Get("page"), 1),
		Size:   parseInt(q.Get("size"), 20),
	})
	if err != nil {
		writeError(w, h.logger, "ListDrives", err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(resp))
}

func (h *DrivesHandler) CreateDrive(w http.ResponseWriter, r *http.Request) {
	var req service.CreateDriveRequest
	if err := readBodyJSON(r, maxJSONBody, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid body"))
		return
	}
	drive, err := h.drives.CreateDrive(r.Context(), req)
	if err != nil {
		writeError(w, h.logger, "CreateDrive", err)
		return
	}
	writeJSON(w, http.StatusCreated, Ok(drive))
}

func (h *DrivesHandler) GetDrive(w http.ResponseWriter, r *http.Request, id string) {
	drive, err := h.drives.GetDrive(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, "GetDrive", err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(drive))
}

func (h *DrivesHandler) UpdateDrive(w http.ResponseWriter, r *http.Request, id string) {
	var req service.UpdateDriveRequest
	if err := readBodyJSON(r, maxJSONBody, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid body"))
		return
	}
	req.ID = id
	drive, err := h.drives.UpdateDrive(r.Context(), req)
	if err != nil {
		writeError(w, h.logger, "UpdateDrive", err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(drive))
}

func (h *DrivesHandler) DeleteDrive(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.drives.DeleteDrive(r.Context(), id); err != nil {
		writeError(w, h.logger, "DeleteDrive", err)
		return
	}
	writeJSON(w, http.StatusOK, Ok[any](nil))
}

func (h *DrivesHandler) ListAttachments(w http.ResponseWriter, r *http.Request, id string) {
	items, err := h.drives.ListAttachments(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, "ListDriveAttachments", err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(items))
}

// Lookup resolves a scanned barcode to a drive or part.
func (h *DrivesHandler) Lookup(w http.ResponseWriter, r *http.Request) {
	res, err := h.drives.LookupByCode(r.Context(), r.URL.Query().Get("code"))
	if err != nil {
		writeError(w, h.logger, "LookupByCode", err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(res))
}

func (h *DrivesHandler) Import(w http.ResponseWriter, r *http.Request) {
	file, header, err := formFile(w, r, h.uploadMaxBytes)
	if err != nil {
		writeError(w, h.logger, "ImportDrives", err)
		return
	}
	defer file.Close()

	format, err := service.DetectImportFormat(header.Filename)
	if err != nil {
		writeError(w, h.logger, "ImportDrives", err)
		return
	}
	res, err := h.imports.ImportDrives(r.Context(), file, format)
	if err != nil {
		writeError(w, h.logger, "ImportDrives", err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(res))
}

func writeImportTemplate(w http.ResponseWriter, logger *zap.Logger, entity string) {
	data, err := service.ImportTemplate(entity)
	if err != nil {
		writeError(w, logger, "ImportTemplate", err)
		return
	}
	writeFile(w, xlsxMimeType, entity+"-import-template.xlsx", data)
}

func writeFile(w http.ResponseWriter, contentType, fileName string, data []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", attachmentDisposition(fileName))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
