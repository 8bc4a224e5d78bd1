package pawn

import (
	"fmt"
	"sort"

	"github.com/cory-johannsen/shooter/internal/game/weapon"
)

// Registry indexes live characters by ID and resolves weapon owner
// back-references.
type Registry struct {
	pawns map[weapon.PawnID]*Character
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{pawns: make(map[weapon.PawnID]*Character)}
}

// Register adds c.
//
// Precondition: c must not be nil.
// Postcondition: Character(c.ID()) returns c; returns error if the ID is taken.
func (r *Registry) Register(c *Character) error {
	if _, exists := r.pawns[c.ID()]; exists {
		return fmt.Errorf("pawn: Registry.Register: pawn ID %q already registered", c.ID())
	}
	r.pawns[c.ID()] = c
	return nil
}

// Remove drops the character with id. Unknown ids are ignored.
func (r *Registry) Remove(id weapon.PawnID) {
	delete(r.pawns, id)
}

// Character returns the character for id and whether it was found.
func (r *Registry) Character(id weapon.PawnID) (*Character, bool) {
	c, ok := r.pawns[id]
	return c, ok
}

// Owner implements the host-side pawn lookup.
func (r *Registry) Owner(id weapon.PawnID) (weapon.Owner, bool) {
	c, ok := r.pawns[id]
	if !ok {
		return nil, false
	}
	return c, true
}

// All returns every registered character ordered by ID.
func (r *Registry) All() []*Character {
	out := make([]*Character, 0, len(r.pawns))
	for _, c := range r.pawns {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}
