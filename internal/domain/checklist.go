package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// ChecklistItemStatus 检查项状态
type ChecklistItemStatus string

const (
	ChecklistItemPending   ChecklistItemStatus = "pending"
	ChecklistItemCompleted ChecklistItemStatus = "completed"
	ChecklistItemFailed    ChecklistItemStatus = "failed"
)

// IsValid reports whether s is one of the three item states.
func (s ChecklistItemStatus) IsValid() bool {
	return s == ChecklistItemPending || s == ChecklistItemCompleted || s == ChecklistItemFailed
}

// Swapped in tests.
var (
	nowFunc   = func() time.Time { return time.Now().UTC() }
	newItemID = func() string { return uuid.NewString() }
)

// ChecklistItem is one task line inside a maintenance record.
// ID is stable across edits; it is not a database key.
type ChecklistItem struct {
	ID        string              `json:"id"`
	Text      string              `json:"text"`
	Status    ChecklistItemStatus `json:"status"`
	Notes     *string             `json:"notes"`
	UpdatedAt *time.Time          `json:"updated_at"`
	UpdatedBy string              `json:"updated_by,omitempty"`
}

// NewChecklistItem validates text and builds an item with a fresh id.
// An empty status means pending.
func NewChecklistItem(text string, status ChecklistItemStatus, notes *string, actor string) (ChecklistItem, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return ChecklistItem{}, Validationf("checklist item text is required")
	}
	if status == "" {
		status = ChecklistItemPending
	}
	if !status.IsValid() {
		return ChecklistItem{}, Validationf("invalid checklist item status: %s", status)
	}
	now := nowFunc()
	return ChecklistItem{
		ID:        newItemID(),
		Text:      text,
		Status:    status,
		Notes:     copyString(notes),
		UpdatedAt: &now,
		UpdatedBy: actor,
	}, nil
}

// WithStatus returns a copy of the item with status replaced. Any status may follow any other.
func (i ChecklistItem) WithStatus(status ChecklistItemStatus, actor string) ChecklistItem {
	now := nowFunc()
	i.Status = status
	i.UpdatedAt = &now
	i.UpdatedBy = actor
	return i
}

// WithNotes returns a copy with notes replaced. nil clears the notes, "" is kept as-is.
func (i ChecklistItem) WithNotes(notes *string, actor string) ChecklistItem {
	now := nowFunc()
	i.Notes = copyString(notes)
	i.UpdatedAt = &now
	i.UpdatedBy = actor
	return i
}

// Checklist is the ordered item list owned by one maintenance record.
// Every method returns a new slice; the receiver is never modified.
type Checklist []ChecklistItem

// ChecklistStats 检查单统计
type ChecklistStats struct {
	Total                int `json:"total"`
	Completed            int `json:"completed"`
	Failed               int `json:"failed"`
	Pending              int `json:"pending"`
	CompletionPercentage int `json:"completion_percentage"`
}

func (c Checklist) clone() Checklist {
	out := make(Checklist, len(c))
	copy(out, c)
	return out
}

func (c Checklist) indexOf(id string) int {
	for i := range c {
		if c[i].ID == id {
			return i
		}
	}
	return -1
}

// Item looks up an item by id.
func (c Checklist) Item(id string) (ChecklistItem, bool) {
	if i := c.indexOf(id); i >= 0 {
		return c[i], true
	}
	return ChecklistItem{}, false
}

// AddItem appends a new pending item.
func (c Checklist) AddItem(text string, notes *string, actor string) (Checklist, ChecklistItem, error) {
	item, err := NewChecklistItem(text, ChecklistItemPending, notes, actor)
	if err != nil {
		return c, ChecklistItem{}, err
	}
	out := append(c.clone(), item)
	return out, item, nil
}

// RemoveItem drops the item with id. Unknown ids are a no-op.
func (c Checklist) RemoveItem(id string) Checklist {
	i := c.indexOf(id)
	if i < 0 {
		return c
	}
	out := make(Checklist, 0, len(c)-1)
	out = append(out, c[:i]...)
	return append(out, c[i+1:]...)
}

// UpdateItemStatus sets the status of item id.
func (c Checklist) UpdateItemStatus(id string, status ChecklistItemStatus, actor string) (Checklist, error) {
	if !status.IsValid() {
		return c, Validationf("invalid checklist item status: %s", status)
	}
	i := c.indexOf(id)
	if i < 0 {
		return c, NotFoundf("checklist item %s not found", id)
	}
	out := c.clone()
	out[i] = out[i].WithStatus(status, actor)
	return out, nil
}

// UpdateItemNotes sets the notes of item id.
func (c Checklist) UpdateItemNotes(id string, notes *string, actor string) (Checklist, error) {
	i := c.indexOf(id)
	if i < 0 {
		return c, NotFoundf("checklist item %s not found", id)
	}
	out := c.clone()
	out[i] = out[i].WithNotes(notes, actor)
	return out, nil
}

// Stats counts items per status. The percentage is completed/total rounded half-up, 0 when empty.
func (c Checklist) Stats() ChecklistStats {
	var s ChecklistStats
	for _, item := range c {
		switch item.Status {
		case ChecklistItemCompleted:
			s.Completed++
		case ChecklistItemFailed:
			s.Failed++
		default:
			s.Pending++
		}
	}
	s.Total = len(c)
	s.CompletionPercentage = percentHalfUp(s.Completed, s.Total)
	return s
}

func percentHalfUp(part, total int) int {
	if total <= 0 {
		return 0
	}
	return (part*200 + total) / (2 * total)
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
