package httpapi

import (
	"net/http"

	"emmo-data/internal/service"

	"go.uber.org/zap"
)

const partsPath = apiPrefix + "/parts"

// PartsHandler 配件 Handler
type PartsHandler struct {
	parts          *service.PartService
	imports        *service.ImportService
	uploadMaxBytes int64
	logger         *zap.Logger
}

func NewPartsHandler(parts *service.PartService, imports *service.ImportService, uploadMaxBytes int64, logger *zap.Logger) *PartsHandler {
	return &PartsHandler{parts: parts, imports: imports, uploadMaxBytes: uploadMaxBytes, logger: logger}
}

func (h *PartsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	seg := pathSegments(r.URL.Path, partsPath)
	switch {
	case len(seg) == 0 && r.Method == http.MethodGet:
		h.ListParts(w, r)
	case len(seg) == 0 && r.Method == http.MethodPost:
		h.CreatePart(w, r)
	case len(seg) == 1 && seg[0] == "import" && r.Method == http.MethodPost:
		h.Import(w, r)
	case len(seg) == 2 && seg[0] == "import" && seg[1] == "template" && r.Method == http.MethodGet:
		writeImportTemplate(w, h.logger, "parts")
	case len(seg) == 1 && r.Method == http.MethodGet:
		h.GetPart(w, r, seg[0])
	case len(seg) == 1 && (r.Method == http.MethodPut || r.Method == http.MethodPatch):
		h.UpdatePart(w, r, seg[0])
	case len(seg) == 1 && r.Method == http.MethodDelete:
		h.DeletePart(w, r, seg[0])
	case len(seg) == 2 && seg[1] == "attach" && r.Method == http.MethodPost:
		h.Attach(w, r, seg[0])
	case len(seg) == 2 && seg[1] == "detach" && r.Method == http.MethodPost:
		h.Detach(w, r, seg[0])
	case len(seg) == 2 && seg[1] == "attachments" && r.Method == http.MethodGet:
		h.ListAttachments(w, r, seg[0])
	default:
		notFound(w)
	}
}

func (h *PartsHandler) ListParts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	resp, err := h.parts.ListParts(r.Context(), service.ListPartsRequest{
		DriveID:  q.Get("drive_id"),
		Attached: parseBool(q.Get("attached")),
		Search:   q.Get("q"),
		Page:     parseInt(q.Get("page"), 1),
		Size:     parseInt(q.Get("size"), 20),
	})
	if err != nil {
		writeError(w, h.logger, "ListParts", err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(resp))
}

func (h *PartsHandler) CreatePart(w http.ResponseWriter, r *http.Request) {
	var req service.CreatePartRequest
	if err := readBodyJSON(r, maxJSONBody, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid body"))
		return
	}
	part, err := h.parts.CreatePart(r.Context(), req)
	if err != nil {
		writeError(w, h.logger, "CreatePart", err)
		return
	}
	writeJSON(w, http.StatusCreated, Ok(part))
}

func (h *PartsHandler) GetPart(w http.ResponseWriter, r *http.Request, id string) {
	part, err := h.parts.GetPart(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, "GetPart", err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(part))
}

func (h *PartsHandler) UpdatePart(w http.ResponseWriter, r *http.Request, id string) {
	var req service.UpdatePartRequest
	if err := readBodyJSON(r, maxJSONBody, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid body"))
		return
	}
	req.ID = id
	part, err := h.parts.UpdatePart(r.Context(), req)
	if err != nil {
		writeError(w, h.logger, "UpdatePart", err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(part))
}

func (h *PartsHandler) DeletePart(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.parts.DeletePart(r.Context(), id); err != nil {
		writeError(w, h.logger, "DeletePart", err)
		return
	}
	writeJSON(w, http.StatusOK, Ok[any](nil))
}

func (h *PartsHandler) Attach(w http.ResponseWriter, r *http.Request, id string) {
	var payload struct {
		DriveID string `json:"drive_id"`
		Notes   string `json:"notes"`
	}
	if err := readBodyJSON(r, maxJSONBody, &payload); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid body"))
		return
	}
	att, err := h.parts.AttachPart(r.Context(), id, payload.DriveID, actor(r), payload.Notes)
	if err != nil {
		writeError(w, h.logger, "AttachPart", err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(att))
}

func (h *PartsHandler) Detach(w http.ResponseWriter, r *http.Request, id string) {
	att, err := h.parts.DetachPart(r.Context(), id, actor(r))
	if err != nil {
		writeError(w, h.logger, "DetachPart", err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(att))
}

func (h *PartsHandler) ListAttachments(w http.ResponseWriter, r *http.Request, id string) {
	items, err := h.parts.ListAttachments(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, "ListPartAttachments", err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(items))
}

func (h *PartsHandler) Import(w http.ResponseWriter, r *http.Request) {
	file, header, err := formFile(w, r, h.uploadMaxBytes)
	if err != nil {
		writeError(w, h.logger, "ImportParts", err)
		return
	}
	defer file.Close()

	format, err := service.DetectImportFormat(header.Filename)
	if err != nil {
		writeError(w, h.logger, "ImportParts", err)
		return
	}
	res, err := h.imports.ImportParts(r.Context(), file, format, actor(r))
	if err != nil {
		writeError(w, h.logger, "ImportParts", err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(res))
}
