package sim

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/shooter/internal/game/schedule"
	"github.com/cory-johannsen/shooter/internal/game/weapon"
)

// Live is a realtime session: the scenario's pawn and targets driven by a
// wall-clock schedule.Driver, with input arriving as text commands.
//
// Every method except Driver marshals onto the driver loop, so the driver
// must be running (see server.DriverService) until Close.
type Live struct {
	runner *Runner
	s      *session
	driver *schedule.Driver
}

// NewLive sets up a realtime session from setup. The scenario's duration is
// ignored; its events are scheduled relative to the session start. Timers
// fire on driver ticks, so automatic weapons catch up on late refires.
// onEntry, if non-nil, is called on the driver loop for every log entry.
func (r *Runner) NewLive(ctx context.Context, setup *Scenario, interval time.Duration, onEntry func(Entry)) (*Live, error) {
	if err := setup.validate(false); err != nil {
		return nil, err
	}
	sched := schedule.NewFrame()
	s, err := r.start(ctx, setup, sched)
	if err != nil {
		return nil, err
	}
	s.rec.onEntry = onEntry
	driver := schedule.NewDriver(sched, interval, r.logger)
	driver.RegisterTick("world", s.world.Tick)
	return &Live{runner: r, s: s, driver: driver}, nil
}

// Driver returns the session's tick driver.
func (l *Live) Driver() *schedule.Driver {
	return l.driver
}

// Command parses line and applies it on the driver loop.
func (l *Live) Command(ctx context.Context, line string) error {
	ev, err := ParseCommand(line)
	if err != nil {
		return err
	}
	return l.driver.Call(ctx, func() { l.runner.apply(l.s, ev) })
}

// Snapshots returns the pawn's current ammo.
func (l *Live) Snapshots(ctx context.Context) ([]weapon.Snapshot, error) {
	var snaps []weapon.Snapshot
	err := l.driver.Call(ctx, func() { snaps = l.s.pawn.Snapshots() })
	return snaps, err
}

// Save writes the pawn's current ammo to the runner's AmmoStore. It is a
// no-op without one.
func (l *Live) Save(ctx context.Context) error {
	if l.runner.store == nil {
		return nil
	}
	snaps, err := l.Snapshots(ctx)
	if err != nil {
		return err
	}
	if err := l.runner.store.Save(ctx, l.s.pawn.ID(), snaps); err != nil {
		return fmt.Errorf("saving ammo: %w", err)
	}
	l.runner.logger.Debug("ammo saved", zap.String("pawn", string(l.s.pawn.ID())), zap.Int("weapons", len(snaps)))
	return nil
}

// Close destroys the inventory and stops the driver. The driver loop must
// already have exited, or Close runs the teardown on it.
func (l *Live) Close(ctx context.Context) {
	if err := l.driver.Call(ctx, l.s.teardown); err != nil {
		l.s.teardown()
	}
	l.driver.Stop()
}

// ParseCommand turns a text command into an Event at time zero.
//
//	fire | stop | reload | next | prev
//	equip <weapon>
//	give <amount> [weapon]
//	aim <x> <y> <z>
func ParseCommand(line string) (Event, error) {
	fields := strings.Fields(strings.ToLower(line))
	if len(fields) == 0 {
		return Event{}, fmt.Errorf("empty command")
	}
	args := fields[1:]
	switch fields[0] {
	case "fire", string(ActionStartFire):
		return Event{Action: ActionStartFire}, nil
	case "stop", string(ActionStopFire):
		return Event{Action: ActionStopFire}, nil
	case string(ActionReload):
		return Event{Action: ActionReload}, nil
	case "next", string(ActionNextWeapon):
		return Event{Action: ActionNextWeapon}, nil
	case "prev", string(ActionPrevWeapon):
		return Event{Action: ActionPrevWeapon}, nil
	case string(ActionEquip):
		if len(args) != 1 {
			return Event{}, fmt.Errorf("usage: equip <weapon>")
		}
		return Event{Action: ActionEquip, Weapon: args[0]}, nil
	case "give", string(ActionGiveAmmo):
		if len(args) < 1 || len(args) > 2 {
			return Event{}, fmt.Errorf("usage: give <amount> [weapon]")
		}
		n, err := strconv.Atoi(args[0])
		if err != nil || n <= 0 {
			return Event{}, fmt.Errorf("give: amount must be a positive integer, got %q", args[0])
		}
		ev := Event{Action: ActionGiveAmmo, Amount: n}
		if len(args) == 2 {
			ev.Weapon = args[1]
		}
		return ev, nil
	case string(ActionAim):
		if len(args) != 3 {
			return Event{}, fmt.Errorf("usage: aim <x> <y> <z>")
		}
		var v [3]float64
		for i, a := range args {
			f, err := strconv.ParseFloat(a, 64)
			if err != nil {
				return Event{}, fmt.Errorf("aim: %q is not a number", a)
			}
			v[i] = f
		}
		return Event{Action: ActionAim, Direction: &Vec{X: v[0], Y: v[1], Z: v[2]}}, nil
	}
	return Event{}, fmt.Errorf("unknown command %q", fields[0])
}
