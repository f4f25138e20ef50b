package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"litbase/models"
)

func TestUpsertRefIdempotent(t *testing.T) {
	refs := NewRefStore(newTestDB(t), zap.NewNop())
	ctx := context.Background()

	ids := RefIdentifiers{PMID: strPtr("12345"), DOI: strPtr("10.1000/abc")}
	first, err := refs.UpsertRef(ctx, ids)
	require.NoError(t, err)

	second, err := refs.UpsertRef(ctx, ids)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	var count int64
	refs.DB.Model(&models.TextRef{}).Count(&count)
	assert.EqualValues(t, 1, count)
}

func TestUpsertRefConflictingDOI(t *testing.T) {
	refs := NewRefStore(newTestDB(t), zap.NewNop())
	ctx := context.Background()

	_, err := refs.UpsertRef(ctx, RefIdentifiers{PMID: strPtr("12345"), DOI: strPtr("10.1000/abc")})
	require.NoError(t, err)

	_, err = refs.UpsertRef(ctx, RefIdentifiers{PMID: strPtr("12345"), DOI: strPtr("10.1000/other")})
	assert.ErrorIs(t, err, ErrIdentityConflict)
}

func TestUpsertRefNoIdentifiers(t *testing.T) {
	refs := NewRefStore(newTestDB(t), zap.NewNop())

	_, err := refs.UpsertRef(context.Background(), RefIdentifiers{})
	assert.ErrorIs(t, err, ErrNoIdentifiers)
}

func TestUpsertRefDoesNotMergeNewIdentifiers(t *testing.T) {
	refs := NewRefStore(newTestDB(t), zap.NewNop())
	ctx := context.Background()

	refID, err := refs.UpsertRef(ctx, RefIdentifiers{PMID: strPtr("12345")})
	require.NoError(t, err)

	// Eine Wieder-Einreichung mit zusätzlicher PMCID liefert den bestehenden
	// Ref, schreibt die neue Kennung aber nicht nachträglich in die Zeile.
	again, err := refs.UpsertRef(ctx, RefIdentifiers{PMID: strPtr("12345"), PMCID: strPtr("PMC777")})
	require.NoError(t, err)
	assert.Equal(t, refID, again)

	var ref models.TextRef
	require.NoError(t, refs.DB.First(&ref, refID).Error)
	assert.Nil(t, ref.PMCID)
}

func TestFindRefByPmcid(t *testing.T) {
	refs := NewRefStore(newTestDB(t), zap.NewNop())
	ctx := context.Background()

	refID, err := refs.UpsertRef(ctx, RefIdentifiers{PMCID: strPtr("PMC123")})
	require.NoError(t, err)

	found, err := refs.FindRefByPmcid(ctx, "PMC123")
	require.NoError(t, err)
	assert.Equal(t, refID, found)

	_, err = refs.FindRefByPmcid(ctx, "PMC999")
	assert.ErrorIs(t, err, ErrRefNotFound)
}

func TestFindRefsByPmidSkipsUnknown(t *testing.T) {
	refs := NewRefStore(newTestDB(t), zap.NewNop())
	ctx := context.Background()

	idA, err := refs.UpsertRef(ctx, RefIdentifiers{PMID: strPtr("111")})
	require.NoError(t, err)
	idB, err := refs.UpsertRef(ctx, RefIdentifiers{PMID: strPtr("222")})
	require.NoError(t, err)

	found, err := refs.FindRefsByPmid(ctx, []string{"111", "222", "333"})
	require.NoError(t, err)
	assert.Equal(t, map[string]uint{"111": idA, "222": idB}, found)
}

func TestFindRefMatchesDOI(t *testing.T) {
	refs := NewRefStore(newTestDB(t), zap.NewNop())
	ctx := context.Background()

	refID, err := refs.UpsertRef(ctx, RefIdentifiers{PMID: strPtr("12345"), DOI: strPtr("10.1000/abc")})
	require.NoError(t, err)

	// FindRef matcht auch über die nicht einzeln eindeutigen Felder.
	ref, err := refs.FindRef(ctx, RefIdentifiers{DOI: strPtr("10.1000/abc")})
	require.NoError(t, err)
	assert.Equal(t, refID, ref.ID)
}
