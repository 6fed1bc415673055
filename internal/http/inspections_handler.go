package httpapi

import (
	"net/http"

	"emmo-data/internal/service"

	"go.uber.org/zap"
)

const inspectionsPath = apiPrefix + "/inspections"

// InspectionsHandler 巡检 Handler
type InspectionsHandler struct {
	inspections *service.InspectionService
	logger      *zap.Logger
}

func NewInspectionsHandler(inspections *service.InspectionService, logger *zap.Logger) *InspectionsHandler {
	return &InspectionsHandler{inspections: inspections, logger: logger}
}

func (h *InspectionsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	seg := pathSegments(r.URL.Path, inspectionsPath)
	switch {
	case len(seg) == 0 && r.Method == http.MethodGet:
		h.List(w, r)
	case len(seg) == 0 && r.Method == http.MethodPost:
		h.Create(w, r)
	case len(seg) == 1 && r.Method == http.MethodGet:
		h.Get(w, r, seg[0])
	case len(seg) == 1 && (r.Method == http.MethodPut || r.Method == http.MethodPatch):
		h.Update(w, r, seg[0])
	case len(seg) == 1 && r.Method == http.MethodDelete:
		h.Delete(w, r, seg[0])
	default:
		notFound(w)
	}
}

func (h *InspectionsHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	resp, err := h.inspections.ListInspections(r.Context(), service.ListInspectionsRequest{
		DriveID: q.Get("drive_id"),
		Result:  q.Get("result"),
		Page:    parseInt(q.Get("page"), 1),
		Size:    parseInt(q.Get("size"), 20),
	})
	if err != nil {
		writeError(w, h.logger, "ListInspections", err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(resp))
}

func (h *InspectionsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		DriveID     string  `json:"drive_id"`
		Inspector   string  `json:"inspector"`
		InspectedAt *string `json:"inspected_at"`
		Result      string  `json:"result"`
		Notes       string  `json:"notes"`
	}
	if err := readBodyJSON(r, maxJSONBody, &payload); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid body"))
		return
	}
	inspectedAt, err := parseOptionalTime(payload.InspectedAt)
	if err != nil {
		writeError(w, h.logger, "CreateInspection", err)
		return
	}
	if payload.Inspector == "" {
		payload.Inspector = actor(r)
	}
	ins, err := h.inspections.CreateInspection(r.Context(), service.CreateInspectionRequest{
		DriveID:     payload.DriveID,
		Inspector:   payload.Inspector,
		InspectedAt: inspectedAt,
		Result:      payload.Result,
		Notes:       payload.Notes,
	})
	if err != nil {
		writeError(w, h.logger, "CreateInspection", err)
		return
	}
	writeJSON(w, http.StatusCreated, Ok(ins))
}

func (h *InspectionsHandler) Get(w http.ResponseWriter, r *http.Request, id string) {
	ins, err := h.inspections.GetInspection(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, "GetInspection", err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(ins))
}

func (h *InspectionsHandler) Update(w http.ResponseWriter, r *http.Request, id string) {
	var payload struct {
		DriveID     *string `json:"drive_id"`
		Inspector   *string `json:"inspector"`
		InspectedAt *string `json:"inspected_at"`
		Result      *string `json:"result"`
		Notes       *string `json:"notes"`
	}
	if err := readBodyJSON(r, maxJSONBody, &payload); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid body"))
		return
	}
	inspectedAt, err := parseOptionalTime(payload.InspectedAt)
	if err != nil {
		writeError(w, h.logger, "UpdateInspection", err)
		return
	}
	ins, err := h.inspections.UpdateInspection(r.Context(), service.UpdateInspectionRequest{
		ID:          id,
		DriveID:     payload.DriveID,
		Inspector:   payload.Inspector,
		InspectedAt: inspectedAt,
		Result:      payload.Result,
		Notes:       payload.Notes,
	})
	if err != nil {
		writeError(w, h.logger, "UpdateInspection", err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(ins))
}

func (h *InspectionsHandler) Delete(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.inspections.DeleteInspection(r.Context(), id); err != nil {
		writeError(w, h.logger, "DeleteInspection", err)
		return
	}
	writeJSON(w, http.StatusOK, Ok[any](nil))
}
