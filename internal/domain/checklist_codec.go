package domain

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// checklistElement accepts both persisted item shapes: the current one with
// "status" and the legacy one with a boolean "completed".
type checklistElement struct {
	ID        *string         `json:"id"`
	Text      *string         `json:"text"`
	Status    *string         `json:"status"`
	Completed *bool           `json:"completed"`
	Notes     *string         `json:"notes"`
	UpdatedAt json.RawMessage `json:"updated_at"`
	UpdatedBy string          `json:"updated_by"`
}

// ParseChecklist decodes a persisted checklist blob into canonical items.
//
// A blob that is not a JSON array fails with ErrMalformedData. Individual
// elements that cannot be normalized are dropped; each one is reported in
// dropped (wrapping ErrMalformedData) and parsing continues. Empty input and
// JSON null decode to an empty checklist.
func ParseChecklist(raw []byte) (items Checklist, dropped []error, err error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return Checklist{}, nil, nil
	}

	var elements []json.RawMessage
	if err := json.Unmarshal(trimmed, &elements); err != nil {
		return Checklist{}, nil, Malformedf("checklist is not a JSON array: %v", err)
	}

	items = make(Checklist, 0, len(elements))
	seen := make(map[string]bool, len(elements))
	for idx, element := range elements {
		item, err := normalizeElement(idx, element)
		if err != nil {
			dropped = append(dropped, Malformedf("checklist element %d: %v", idx, err))
			continue
		}
		if seen[item.ID] {
			dropped = append(dropped, Malformedf("checklist element %d: duplicate id %s", idx, item.ID))
			continue
		}
		seen[item.ID] = true
		items = append(items, item)
	}
	return items, dropped, nil
}

// normalizeElement keeps any element with text; without a status field the item is pending.
func normalizeElement(idx int, element json.RawMessage) (ChecklistItem, error) {
	var e checklistElement
	if err := json.Unmarshal(element, &e); err != nil {
		return ChecklistItem{}, err
	}
	if e.Text == nil || strings.TrimSpace(*e.Text) == "" {
		return ChecklistItem{}, errMissing("text")
	}

	status := ChecklistItemPending
	switch {
	case e.Status != nil:
		status = ChecklistItemStatus(*e.Status)
		if !status.IsValid() {
			return ChecklistItem{}, errInvalidStatus(*e.Status)
		}
	case e.Completed != nil && *e.Completed:
		status = ChecklistItemCompleted
	}

	item := ChecklistItem{
		Text:      *e.Text,
		Status:    status,
		Notes:     e.Notes,
		UpdatedAt: parseItemTime(e.UpdatedAt),
		UpdatedBy: e.UpdatedBy,
	}
	if e.ID != nil && strings.TrimSpace(*e.ID) != "" {
		item.ID = *e.ID
	} else {
		// Stable across reads so that later edits can still address the item;
		// the position keeps identical id-less elements apart.
		name := append([]byte(strconv.Itoa(idx)+":"), element...)
		item.ID = uuid.NewSHA1(uuid.NameSpaceOID, name).String()
	}
	return item, nil
}

// parseItemTime is lenient: an unreadable timestamp is dropped, the item is kept.
func parseItemTime(raw json.RawMessage) *time.Time {
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	var t time.Time
	if err := json.Unmarshal(raw, &t); err != nil {
		return nil
	}
	t = t.UTC()
	return &t
}

// SerializeChecklist encodes items in the canonical shape. An empty checklist encodes as "[]".
func SerializeChecklist(items Checklist) ([]byte, error) {
	if items == nil {
		items = Checklist{}
	}
	return json.Marshal(items)
}

type elementError string

func (e elementError) Error() string { return string(e) }

func errMissing(field string) error { return elementError("missing " + field) }

func errInvalidStatus(s string) error { return elementError("invalid status " + s) }
