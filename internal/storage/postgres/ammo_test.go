package postgres_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/shooter/internal/game/weapon"
	"github.com/cory-johannsen/shooter/internal/storage/postgres"
	"github.com/cory-johannsen/shooter/internal/testutil"
)

func uniquePawn(prefix string) weapon.PawnID {
	return weapon.PawnID(fmt.Sprintf("%s_%d", prefix, time.Now().UnixNano()))
}

func TestAmmoRepository_RejectsBadInput(t *testing.T) {
	// Validation happens before any query, so a nil pool is never touched.
	repo := postgres.NewAmmoRepository(nil)
	ctx := context.Background()

	assert.ErrorIs(t, repo.Save(ctx, "", nil), postgres.ErrEmptyPawnID)
	_, err := repo.Load(ctx, "")
	assert.ErrorIs(t, err, postgres.ErrEmptyPawnID)
	assert.ErrorIs(t, repo.Delete(ctx, ""), postgres.ErrEmptyPawnID)
	assert.Error(t, repo.Save(ctx, "p1", []weapon.Snapshot{{DefID: "", Clip: 1}}))
	assert.Error(t, repo.Save(ctx, "p1", []weapon.Snapshot{{DefID: "rifle", Clip: -1}}))
	assert.NoError(t, repo.Save(ctx, "p1", nil))
}

func TestAmmoRepository_SaveAndLoad(t *testing.T) {
	repo := postgres.NewAmmoRepository(testutil.NewPool(t))
	ctx := context.Background()
	pawn := uniquePawn("pawn")

	empty, err := repo.Load(ctx, pawn)
	require.NoError(t, err)
	assert.Empty(t, empty)
	assert.NotNil(t, empty)

	snaps := []weapon.Snapshot{
		{DefID: "rifle", Clip: 15, Reserve: 40},
		{DefID: "pistol", Clip: 12, Reserve: 60},
	}
	require.NoError(t, repo.Save(ctx, pawn, snaps))

	got, err := repo.Load(ctx, pawn)
	require.NoError(t, err)
	assert.Equal(t, []weapon.Snapshot{
		{DefID: "pistol", Clip: 12, Reserve: 60},
		{DefID: "rifle", Clip: 15, Reserve: 40},
	}, got)
}

func TestAmmoRepository_SaveOverwrites(t *testing.T) {
	repo := postgres.NewAmmoRepository(testutil.NewPool(t))
	ctx := context.Background()
	pawn := uniquePawn("pawn")

	require.NoError(t, repo.Save(ctx, pawn, []weapon.Snapshot{{DefID: "rifle", Clip: 20, Reserve: 80}}))
	require.NoError(t, repo.Save(ctx, pawn, []weapon.Snapshot{{DefID: "rifle", Clip: 3, Reserve: 0}}))

	got, err := repo.Load(ctx, pawn)
	require.NoError(t, err)
	assert.Equal(t, []weapon.Snapshot{{DefID: "rifle", Clip: 3, Reserve: 0}}, got)

	require.NoError(t, repo.Delete(ctx, pawn))
	got, err = repo.Load(ctx, pawn)
	require.NoError(t, err)
	assert.Empty(t, got)
}

// Property: whatever is saved for a pawn is loaded back unchanged.
func TestPropertyAmmoRoundTrip(t *testing.T) {
	repo := postgres.NewAmmoRepository(testutil.NewPool(t))
	ctx := context.Background()

	rapid.Check(t, func(rt *rapid.T) {
		pawn := uniquePawn("prop")
		snap := weapon.Snapshot{
			DefID:   rapid.StringMatching(`[a-z]{1,12}`).Draw(rt, "def"),
			Clip:    rapid.IntRange(0, 500).Draw(rt, "clip"),
			Reserve: rapid.IntRange(0, 5000).Draw(rt, "reserve"),
		}
		if err := repo.Save(ctx, pawn, []weapon.Snapshot{snap}); err != nil {
			rt.Fatalf("Save: %v", err)
		}
		got, err := repo.Load(ctx, pawn)
		if err != nil {
			rt.Fatalf("Load: %v", err)
		}
		if len(got) != 1 || got[0] != snap {
			rt.Fatalf("loaded %+v, saved %+v", got, snap)
		}
	})
}
