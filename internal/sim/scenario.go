// Package sim runs scripted weapon scenarios on a virtual clock against the
// headless engine and records what happened.
package sim

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cory-johannsen/shooter/internal/game/weapon"
)

// Action names an inbound input event.
type Action string

const (
	ActionStartFire  Action = "start_fire"
	ActionStopFire   Action = "stop_fire"
	ActionReload     Action = "reload"
	ActionEquip      Action = "equip"
	ActionNextWeapon Action = "next_weapon"
	ActionPrevWeapon Action = "prev_weapon"
	ActionGiveAmmo   Action = "give_ammo"
	ActionAim        Action = "aim"
)

func (a Action) valid() bool {
	switch a {
	case ActionStartFire, ActionStopFire, ActionReload, ActionEquip,
		ActionNextWeapon, ActionPrevWeapon, ActionGiveAmmo, ActionAim:
		return true
	}
	return false
}

// Vec is a YAML-friendly vector.
type Vec struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
	Z float64 `yaml:"z"`
}

// Vec3 converts v.
func (v Vec) Vec3() weapon.Vec3 {
	return weapon.Vec3{X: v.X, Y: v.Y, Z: v.Z}
}

// PawnSpec configures the scenario's single pawn.
type PawnSpec struct {
	ID           string `yaml:"id"`
	Name         string `yaml:"name"`
	AttachPoint  string `yaml:"attach_point"`
	Mesh         uint64 `yaml:"mesh"`
	MuzzleOffset Vec    `yaml:"muzzle_offset"`
	Origin       Vec    `yaml:"origin"`
	Direction    Vec    `yaml:"direction"`
}

// TargetSpec places a damageable sphere.
type TargetSpec struct {
	Name   string  `yaml:"name"`
	Center Vec     `yaml:"center"`
	Radius float64 `yaml:"radius"`
	Health float64 `yaml:"health"`
}

// Event is one timed input.
type Event struct {
	At        time.Duration `yaml:"at"`
	Action    Action        `yaml:"action"`
	Weapon    string        `yaml:"weapon,omitempty"`
	Amount    int           `yaml:"amount,omitempty"`
	Origin    *Vec          `yaml:"origin,omitempty"`
	Direction *Vec          `yaml:"direction,omitempty"`
}

// Scenario is a scripted session: a pawn with an inventory, some targets
// and a timeline of inputs.
type Scenario struct {
	Name      string        `yaml:"name"`
	Duration  time.Duration `yaml:"duration"`
	Pawn      PawnSpec      `yaml:"pawn"`
	Inventory []string      `yaml:"inventory"`
	Targets   []TargetSpec  `yaml:"targets"`
	Events    []Event       `yaml:"events"`
}

// Validate checks the scenario is runnable. It does not resolve weapon IDs;
// Runner.Run does that against its definitions.
func (s *Scenario) Validate() error {
	return s.validate(true)
}

// validate checks the scenario; unbounded scenarios (live sessions) have no
// duration and events may happen at any time.
func (s *Scenario) validate(bounded bool) error {
	var errs []error
	if bounded && s.Duration <= 0 {
		errs = append(errs, errors.New("duration must be > 0"))
	}
	if len(s.Inventory) == 0 {
		errs = append(errs, errors.New("inventory must not be empty"))
	}
	for i, ev := range s.Events {
		switch {
		case !ev.Action.valid():
			errs = append(errs, fmt.Errorf("event %d: unknown action %q", i, ev.Action))
		case ev.At < 0 || (bounded && ev.At > s.Duration):
			errs = append(errs, fmt.Errorf("event %d: at %s outside [0, %s]", i, ev.At, s.Duration))
		case ev.Action == ActionEquip && ev.Weapon == "":
			errs = append(errs, fmt.Errorf("event %d: equip needs a weapon", i))
		case ev.Action == ActionGiveAmmo && ev.Amount <= 0:
			errs = append(errs, fmt.Errorf("event %d: give_ammo needs amount > 0", i))
		case ev.Action == ActionAim && ev.Direction == nil:
			errs = append(errs, fmt.Errorf("event %d: aim needs a direction", i))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("scenario %q: %w", s.Name, errors.Join(errs...))
	}
	return nil
}

// ParseScenario decodes and validates one YAML scenario.
func ParseScenario(data []byte) (*Scenario, error) {
	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parsing scenario: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// LoadScenario reads and parses the scenario file at path.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario %q: %w", path, err)
	}
	return ParseScenario(data)
}
