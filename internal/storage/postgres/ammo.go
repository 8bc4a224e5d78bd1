package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cory-johannsen/shooter/internal/game/weapon"
)

// ErrEmptyPawnID is returned when a pawn ID is required but empty.
var ErrEmptyPawnID = errors.New("pawn id must not be empty")

// AmmoRepository persists per-pawn weapon ammo counters.
type AmmoRepository struct {
	db *pgxpool.Pool
}

// NewAmmoRepository creates an AmmoRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool.
func NewAmmoRepository(db *pgxpool.Pool) *AmmoRepository {
	return &AmmoRepository{db: db}
}

// Save upserts one row per snapshot for the pawn inside a single transaction.
//
// Precondition: pawnID must be non-empty; every snapshot must have a DefID
// and non-negative counters.
// Postcondition: Either every snapshot is stored or none is.
func (r *AmmoRepository) Save(ctx context.Context, pawnID weapon.PawnID, snaps []weapon.Snapshot) error {
	if pawnID == "" {
		return ErrEmptyPawnID
	}
	for _, s := range snaps {
		if s.DefID == "" || s.Clip < 0 || s.Reserve < 0 {
			return fmt.Errorf("invalid ammo snapshot %+v", s)
		}
	}
	if len(snaps) == 0 {
		return nil
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning ammo save: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	batch := &pgx.Batch{}
	for _, s := range snaps {
		batch.Queue(`
			INSERT INTO weapon_ammo (pawn_id, weapon_def, clip, reserve, updated_at)
			VALUES ($1, $2, $3, $4, NOW())
			ON CONFLICT (pawn_id, weapon_def)
			DO UPDATE SET clip = EXCLUDED.clip, reserve = EXCLUDED.reserve, updated_at = NOW()`,
			string(pawnID), s.DefID, s.Clip, s.Reserve,
		)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("saving ammo: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing ammo save: %w", err)
	}
	return nil
}

// Load returns every stored snapshot for the pawn ordered by definition ID.
//
// Postcondition: Returns an empty, non-nil slice when nothing is stored.
func (r *AmmoRepository) Load(ctx context.Context, pawnID weapon.PawnID) ([]weapon.Snapshot, error) {
	if pawnID == "" {
		return nil, ErrEmptyPawnID
	}
	rows, err := r.db.Query(ctx, `
		SELECT weapon_def, clip, reserve
		FROM weapon_ammo WHERE pawn_id = $1
		ORDER BY weapon_def`,
		string(pawnID),
	)
	if err != nil {
		return nil, fmt.Errorf("loading ammo: %w", err)
	}
	defer rows.Close()

	snaps := make([]weapon.Snapshot, 0)
	for rows.Next() {
		var s weapon.Snapshot
		if err := rows.Scan(&s.DefID, &s.Clip, &s.Reserve); err != nil {
			return nil, fmt.Errorf("scanning ammo row: %w", err)
		}
		snaps = append(snaps, s)
	}
	return snaps, rows.Err()
}

// Delete removes every stored snapshot for the pawn.
func (r *AmmoRepository) Delete(ctx context.Context, pawnID weapon.PawnID) error {
	if pawnID == "" {
		return ErrEmptyPawnID
	}
	if _, err := r.db.Exec(ctx, `DELETE FROM weapon_ammo WHERE pawn_id = $1`, string(pawnID)); err != nil {
		return fmt.Errorf("deleting ammo: %w", err)
	}
	return nil
}
