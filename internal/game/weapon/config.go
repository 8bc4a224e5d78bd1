// Package weapon implements the weapon state machine and ammo model: equip
// sequencing, firing cadence, reloads and the host adapter a game engine uses
// to drive them.
package weapon

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultEquipDuration is used when neither the host animation nor the
// definition supplies an equip duration.
const DefaultEquipDuration = 500 * time.Millisecond

// Kind selects how a shot is resolved once the state machine fires.
type Kind string

const (
	// KindInstant resolves damage immediately with a trace along the aim.
	KindInstant Kind = "instant"
	// KindProjectile spawns a projectile that travels from the muzzle.
	KindProjectile Kind = "projectile"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	return k == KindInstant || k == KindProjectile
}

// Config holds the per-type ammo and timing data. It is immutable at run time.
// Durations are expressed in seconds.
type Config struct {
	// InfiniteAmmo makes reloads fill the clip without drawing on the reserve.
	InfiniteAmmo bool `yaml:"infinite_ammo"`
	// InfiniteClip means firing never consumes a round and no reload is needed.
	InfiniteClip bool `yaml:"infinite_clip"`
	// MaxAmmo caps the reserve.
	MaxAmmo int `yaml:"max_ammo"`
	// AmmoPerClip is the clip size.
	AmmoPerClip int `yaml:"ammo_per_clip"`
	// InitialClips is the number of clips the weapon spawns with.
	InitialClips int `yaml:"initial_clips"`
	// TimeBetweenShots is the refire interval. Zero means one shot per trigger press.
	TimeBetweenShots float64 `yaml:"time_between_shots"`
	// NoAnimReloadDuration is the reload time used when the host has no reload animation.
	NoAnimReloadDuration float64 `yaml:"no_anim_reload_duration"`
}

// DefaultConfig returns the stock rifle configuration.
func DefaultConfig() Config {
	return Config{
		MaxAmmo:              100,
		AmmoPerClip:          20,
		InitialClips:         4,
		TimeBetweenShots:     0.2,
		NoAnimReloadDuration: 1.0,
	}
}

// ShotInterval returns TimeBetweenShots as a duration.
func (c Config) ShotInterval() time.Duration {
	return seconds(c.TimeBetweenShots)
}

// ReloadDuration returns NoAnimReloadDuration as a duration.
func (c Config) ReloadDuration() time.Duration {
	return seconds(c.NoAnimReloadDuration)
}

// Validate checks the configuration invariants.
//
// Postcondition: returns nil iff AmmoPerClip > 0, MaxAmmo >= AmmoPerClip
// (unless InfiniteAmmo), and no count or duration is negative.
func (c Config) Validate() error {
	var errs []error
	if c.AmmoPerClip <= 0 {
		errs = append(errs, fmt.Errorf("ammo_per_clip must be > 0, got %d", c.AmmoPerClip))
	}
	if !c.InfiniteAmmo && c.MaxAmmo < c.AmmoPerClip {
		errs = append(errs, fmt.Errorf("max_ammo (%d) must be >= ammo_per_clip (%d) unless infinite_ammo", c.MaxAmmo, c.AmmoPerClip))
	}
	if c.InitialClips < 0 {
		errs = append(errs, fmt.Errorf("initial_clips must be >= 0, got %d", c.InitialClips))
	}
	if c.TimeBetweenShots < 0 {
		errs = append(errs, errors.New("time_between_shots must not be negative"))
	}
	if c.NoAnimReloadDuration < 0 {
		errs = append(errs, errors.New("no_anim_reload_duration must not be negative"))
	}
	return errors.Join(errs...)
}

// Def is a weapon type loaded from YAML: identity, fire resolution and Config.
type Def struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
	Kind Kind   `yaml:"kind"`
	// Range is the trace length for instant weapons.
	Range float64 `yaml:"range"`
	// ProjectileSpeed is the launch speed for projectile weapons.
	ProjectileSpeed float64 `yaml:"projectile_speed"`
	// Damage is the base damage applied per hit.
	Damage float64 `yaml:"damage"`
	// EquipDuration overrides DefaultEquipDuration when > 0 (seconds).
	EquipDuration float64 `yaml:"equip_duration"`
	Config        Config  `yaml:"config"`
}

// NewDef returns a Def with the default config and instant kind.
func NewDef(id, name string) *Def {
	return &Def{
		ID:     id,
		Name:   name,
		Kind:   KindInstant,
		Range:  10000,
		Damage: 10,
		Config: DefaultConfig(),
	}
}

// Validate checks that the Def satisfies its invariants.
// Precondition: d is non-nil.
// Postcondition: returns nil iff all fields are valid.
func (d *Def) Validate() error {
	var errs []error
	if d.ID == "" {
		errs = append(errs, errors.New("id must not be empty"))
	}
	if d.Name == "" {
		errs = append(errs, errors.New("name must not be empty"))
	}
	if !d.Kind.Valid() {
		errs = append(errs, fmt.Errorf("kind must be one of [instant, projectile], got %q", d.Kind))
	}
	if d.Kind == KindInstant && d.Range <= 0 {
		errs = append(errs, errors.New("instant weapon range must be > 0"))
	}
	if d.Kind == KindProjectile && d.ProjectileSpeed <= 0 {
		errs = append(errs, errors.New("projectile weapon projectile_speed must be > 0"))
	}
	if d.Damage < 0 {
		errs = append(errs, errors.New("damage must not be negative"))
	}
	if d.EquipDuration < 0 {
		errs = append(errs, errors.New("equip_duration must not be negative"))
	}
	if err := d.Config.Validate(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("weapon %q validation failed: %w", d.ID, errors.Join(errs...))
	}
	return nil
}

// EquipFallback returns the definition's equip duration, or DefaultEquipDuration.
func (d *Def) EquipFallback() time.Duration {
	if d.EquipDuration > 0 {
		return seconds(d.EquipDuration)
	}
	return DefaultEquipDuration
}

// ParseDef decodes one YAML document into a Def on top of the defaults and
// validates it.
func ParseDef(data []byte) (*Def, error) {
	d := NewDef("", "")
	if err := yaml.Unmarshal(data, d); err != nil {
		return nil, fmt.Errorf("parsing weapon definition: %w", err)
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return d, nil
}

// LoadDefinitions reads all *.yaml files from dir, parses each as a Def,
// validates it, and returns the collected slice.
// Precondition: dir is a readable directory path.
// Postcondition: returns all valid Defs or the first encountered error.
// Duplicate IDs are rejected.
func LoadDefinitions(dir string) ([]*Def, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("LoadDefinitions: cannot read directory %q: %w", dir, err)
	}

	var defs []*Def
	seen := make(map[string]string)
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".yaml" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("LoadDefinitions: cannot read file %q: %w", path, err)
		}
		d, err := ParseDef(data)
		if err != nil {
			return nil, fmt.Errorf("LoadDefinitions: invalid weapon in %q: %w", path, err)
		}
		if prev, ok := seen[d.ID]; ok {
			return nil, fmt.Errorf("LoadDefinitions: duplicate weapon id %q in %q and %q", d.ID, prev, path)
		}
		seen[d.ID] = path
		defs = append(defs, d)
	}
	return defs, nil
}

// Index maps definitions by ID.
func Index(defs []*Def) map[string]*Def {
	out := make(map[string]*Def, len(defs))
	for _, d := range defs {
		out[d.ID] = d
	}
	return out
}

func seconds(s float64) time.Duration {
	return time.Duration(math.Round(s * float64(time.Second)))
}
