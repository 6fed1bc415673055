package service

import (
	"context"
	"testing"

	"emmo-data/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestPartService_AttachDetachHistory(t *testing.T) {
	f := newFixture(t)
	svc := NewPartService(f.parts, zap.NewNop())
	ctx := context.Background()
	d1 := f.createDrive(t, "Drive 1", "SN-1")
	d2 := f.createDrive(t, "Drive 2", "SN-2")
	part := f.createPart(t, "Bearing", "BRG-1")

	att, err := svc.AttachPart(ctx, part.ID, d1.ID, "", "initial fit")
	require.NoError(t, err)
	assert.Equal(t, AnonymousActor, att.AttachedBy)
	assert.Equal(t, "initial fit", att.Notes)

	_, err = svc.AttachPart(ctx, part.ID, d1.ID, "hank", "")
	requireKind(t, err, domain.ErrConflict)

	_, err = svc.AttachPart(ctx, part.ID, d2.ID, "hank", "moved")
	require.NoError(t, err)

	got, err := svc.GetPart(ctx, part.ID)
	require.NoError(t, err)
	require.NotNil(t, got.DriveID)
	assert.Equal(t, d2.ID, *got.DriveID)

	closed, err := svc.DetachPart(ctx, part.ID, "hank")
	require.NoError(t, err)
	assert.Equal(t, d2.ID, closed.DriveID)
	require.NotNil(t, closed.DetachedBy)
	assert.Equal(t, "hank", *closed.DetachedBy)

	_, err = svc.DetachPart(ctx, part.ID, "hank")
	requireKind(t, err, domain.ErrConflict)

	history, err := svc.ListAttachments(ctx, part.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	for _, h := range history {
		assert.NotNil(t, h.DetachedAt)
	}
}

func TestPartService_Validation(t *testing.T) {
	f := newFixture(t)
	svc := NewPartService(f.parts, zap.NewNop())
	ctx := context.Background()

	_, err := svc.CreatePart(ctx, CreatePartRequest{Name: "x"})
	requireKind(t, err, domain.ErrValidation)
	part := f.createPart(t, "Seal", "SEAL-1")
	_, err = svc.CreatePart(ctx, CreatePartRequest{Name: "dup", PartNumber: "SEAL-1"})
	requireKind(t, err, domain.ErrConflict)

	_, err = svc.AttachPart(ctx, part.ID, "", "a", "")
	requireKind(t, err, domain.ErrValidation)
	_, err = svc.AttachPart(ctx, part.ID, "missing-drive", "a", "")
	requireKind(t, err, domain.ErrNotFound)

	_, err = svc.UpdatePart(ctx, UpdatePartRequest{ID: part.ID, Name: strPtr("")})
	requireKind(t, err, domain.ErrValidation)
}

func TestPartService_ListAndUpdate(t *testing.T) {
	f := newFixture(t)
	svc := NewPartService(f.parts, zap.NewNop())
	ctx := context.Background()
	drive := f.createDrive(t, "Drive 1", "SN-1")
	installed := f.createPart(t, "Bearing", "BRG-1")
	f.createPart(t, "Seal", "SEAL-1")
	_, err := svc.AttachPart(ctx, installed.ID, drive.ID, "a", "")
	require.NoError(t, err)

	attached := true
	list, err := svc.ListParts(ctx, ListPartsRequest{Attached: &attached})
	require.NoError(t, err)
	require.Equal(t, 1, list.Total)
	assert.Equal(t, installed.ID, list.Items[0].ID)

	spare := false
	list, err = svc.ListParts(ctx, ListPartsRequest{Attached: &spare})
	require.NoError(t, err)
	assert.Equal(t, 1, list.Total)

	updated, err := svc.UpdatePart(ctx, UpdatePartRequest{ID: installed.ID, Manufacturer: strPtr("SKF")})
	require.NoError(t, err)
	assert.Equal(t, "SKF", updated.Manufacturer)
	require.NotNil(t, updated.DriveID)
	assert.Equal(t, drive.ID, *updated.DriveID)
}
