package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseChecklist_RoundTrip(t *testing.T) {
	var c Checklist
	c, first, err := c.AddItem("Check oil", nil, "alice")
	require.NoError(t, err)
	c, second, err := c.AddItem("Replace filter", strPtr(""), "alice")
	require.NoError(t, err)
	c, err = c.UpdateItemStatus(first.ID, ChecklistItemCompleted, "bob")
	require.NoError(t, err)
	c, err = c.UpdateItemNotes(second.ID, strPtr("ordered"), "bob")
	require.NoError(t, err)

	raw, err := SerializeChecklist(c)
	require.NoError(t, err)

	parsed, dropped, err := ParseChecklist(raw)
	require.NoError(t, err)
	assert.Empty(t, dropped)
	assert.Equal(t, c, parsed)
}

func TestSerializeChecklist_Empty(t *testing.T) {
	raw, err := SerializeChecklist(nil)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(raw))
}

func TestParseChecklist_LegacyShape(t *testing.T) {
	parsed, dropped, err := ParseChecklist([]byte(`[{"id":"1","text":"x","completed":true}]`))
	require.NoError(t, err)
	assert.Empty(t, dropped)
	assert.Equal(t, Checklist{{ID: "1", Text: "x", Status: ChecklistItemCompleted}}, parsed)

	parsed, _, err = ParseChecklist([]byte(`[{"id":"2","text":"y","completed":false,"notes":"n","updated_at":"2024-01-02T03:04:05Z"}]`))
	require.NoError(t, err)
	require.Len(t, parsed, 1)
	assert.Equal(t, ChecklistItemPending, parsed[0].Status)
	require.NotNil(t, parsed[0].Notes)
	assert.Equal(t, "n", *parsed[0].Notes)
	require.NotNil(t, parsed[0].UpdatedAt)
	assert.Equal(t, 2024, parsed[0].UpdatedAt.Year())

	// normalizing again changes nothing
	raw, err := SerializeChecklist(parsed)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "completed\":")
	again, _, err := ParseChecklist(raw)
	require.NoError(t, err)
	assert.Equal(t, parsed, again)
}

func TestParseChecklist_StatusWinsOverLegacyFlag(t *testing.T) {
	parsed, _, err := ParseChecklist([]byte(`[{"id":"1","text":"x","status":"failed","completed":true}]`))
	require.NoError(t, err)
	require.Len(t, parsed, 1)
	assert.Equal(t, ChecklistItemFailed, parsed[0].Status)
}

func TestParseChecklist_DropsCorruptElements(t *testing.T) {
	raw := []byte(`[
		{"id":"ok","text":"keep me","status":"pending"},
		{"id":"no-text","status":"completed"},
		{"id":"bad-status","text":"x","status":"done"},
		42,
		"string",
		{"id":"ok2","text":"also kept","completed":true,"updated_at":"not a time"},
		{"id":"ok","text":"duplicate","status":"pending"}
	]`)

	parsed, dropped, err := ParseChecklist(raw)
	require.NoError(t, err)
	require.Len(t, parsed, 2)
	assert.Equal(t, "ok", parsed[0].ID)
	assert.Equal(t, "ok2", parsed[1].ID)
	assert.Nil(t, parsed[1].UpdatedAt)

	require.Len(t, dropped, 5)
	for _, d := range dropped {
		assert.True(t, errors.Is(d, ErrMalformedData))
	}
}

func TestParseChecklist_NotAnArray(t *testing.T) {
	for _, raw := range []string{`{"id":"1"}`, `"text"`, `12`, `[{"id":`} {
		_, _, err := ParseChecklist([]byte(raw))
		require.Error(t, err, raw)
		assert.True(t, errors.Is(err, ErrMalformedData), raw)
	}
}

func TestParseChecklist_EmptyInput(t *testing.T) {
	for _, raw := range []string{"", "  ", "null", "[]"} {
		parsed, dropped, err := ParseChecklist([]byte(raw))
		require.NoError(t, err, raw)
		assert.Empty(t, parsed)
		assert.NotNil(t, parsed)
		assert.Empty(t, dropped)
	}
}

func TestParseChecklist_MissingIDIsStable(t *testing.T) {
	raw := []byte(`[{"text":"no id","completed":false}]`)
	first, _, err := ParseChecklist(raw)
	require.NoError(t, err)
	second, _, err := ParseChecklist(raw)
	require.NoError(t, err)

	require.Len(t, first, 1)
	assert.NotEmpty(t, first[0].ID)
	assert.Equal(t, first[0].ID, second[0].ID)
}

func TestParseChecklist_TextWithoutStatusIsPending(t *testing.T) {
	parsed, dropped, err := ParseChecklist([]byte(`[{"id":"a","text":"Check oil"},{"id":"b","text":"Grease bearings","completed":false}]`))
	require.NoError(t, err)
	assert.Empty(t, dropped)
	require.Len(t, parsed, 2)
	assert.Equal(t, ChecklistItem{ID: "a", Text: "Check oil", Status: ChecklistItemPending}, parsed[0])
	assert.Equal(t, ChecklistItemPending, parsed[1].Status)
}

func TestParseChecklist_IdenticalLegacyItemsKeptApart(t *testing.T) {
	raw := []byte(`[{"text":"Check oil","completed":false},{"text":"Check oil","completed":false}]`)
	parsed, dropped, err := ParseChecklist(raw)
	require.NoError(t, err)
	assert.Empty(t, dropped)
	require.Len(t, parsed, 2)
	assert.NotEqual(t, parsed[0].ID, parsed[1].ID)

	again, _, err := ParseChecklist(raw)
	require.NoError(t, err)
	assert.Equal(t, parsed[0].ID, again[0].ID)
	assert.Equal(t, parsed[1].ID, again[1].ID)
}
