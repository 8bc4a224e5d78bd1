// Package main runs the weapon simulator: either a scripted scenario on a
// virtual clock, or a live session driven from stdin with a websocket HUD.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/shooter/internal/config"
	"github.com/cory-johannsen/shooter/internal/game/weapon"
	"github.com/cory-johannsen/shooter/internal/hud"
	"github.com/cory-johannsen/shooter/internal/observability"
	"github.com/cory-johannsen/shooter/internal/scripting"
	"github.com/cory-johannsen/shooter/internal/server"
	"github.com/cory-johannsen/shooter/internal/sim"
	"github.com/cory-johannsen/shooter/internal/storage/postgres"
)

// healthInterval is how often a live session pings the database.
const healthInterval = 30 * time.Second

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	scenarioPath := flag.String("scenario", "", "run this scenario on a virtual clock and exit")
	setupPath := flag.String("setup", "", "scenario providing pawn, inventory and targets for a live session")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logging, "weaponsim")
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	defs, err := weapon.LoadDefinitions(cfg.Simulation.WeaponsDir)
	if err != nil {
		logger.Fatal("loading weapon definitions", zap.Error(err))
	}
	logger.Info("weapon definitions loaded",
		zap.String("dir", cfg.Simulation.WeaponsDir),
		zap.Int("count", len(defs)),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	opts := []sim.Option{
		sim.WithLogger(logger),
		sim.WithStep(cfg.Simulation.TickInterval),
		sim.WithCatchUp(cfg.Simulation.CatchUp),
		sim.WithEquipFallback(cfg.Simulation.EquipDuration),
	}

	if dir := cfg.Simulation.ScriptsDir; dir != "" {
		scripts := scripting.NewManager(logger)
		defer scripts.Close()
		if err := scripts.LoadDir(dir, cfg.Simulation.ScriptInstructionLimit); err != nil {
			logger.Fatal("loading scripts", zap.String("dir", dir), zap.Error(err))
		}
		opts = append(opts, sim.WithDamageSource(scripts))
	}

	var pool *postgres.Pool
	if cfg.Persistence.Enabled {
		dbStart := time.Now()
		pool, err = postgres.NewPool(ctx, cfg.Database)
		if err != nil {
			logger.Fatal("connecting to database", zap.Error(err))
		}
		defer pool.Close()
		logger.Info("database connected",
			zap.String("host", cfg.Database.Host),
			zap.Int("port", cfg.Database.Port),
			zap.String("database", cfg.Database.Name),
			zap.Duration("elapsed", time.Since(dbStart)),
		)
		opts = append(opts, sim.WithAmmoStore(postgres.NewAmmoRepository(pool.DB())))
	}

	if *scenarioPath != "" {
		runScenario(ctx, logger, sim.NewRunner(defs, opts...), *scenarioPath)
		return
	}

	var feed *hud.Feed
	if cfg.HUD.Enabled {
		feed = hud.NewFeed(logger, cfg.HUD.WriteTimeout)
		opts = append(opts, sim.WithListener(feed))
	}
	runner := sim.NewRunner(defs, opts...)

	setup := defaultSetup(cfg.Simulation, defs)
	if *setupPath != "" {
		if setup, err = sim.LoadScenario(*setupPath); err != nil {
			logger.Fatal("loading setup", zap.Error(err))
		}
	}
	live, err := runner.NewLive(ctx, setup, cfg.Simulation.TickInterval, func(e sim.Entry) {
		fmt.Fprintln(os.Stdout, e.String())
	})
	if err != nil {
		logger.Fatal("starting live session", zap.Error(err))
	}

	lifecycle := server.NewLifecycle(logger)
	lifecycle.Add("driver", server.DriverService(live.Driver()))
	if feed != nil {
		lifecycle.Add("hud", hud.NewServer(cfg.HUD.Addr(), feed, logger))
	}
	if pool != nil {
		lifecycle.Add("ammo-save", server.NewPeriodic("ammo-save", cfg.Persistence.SaveInterval, live.Save, logger))
		lifecycle.Add("db-health", server.NewPeriodic("db-health", healthInterval, func(ctx context.Context) error {
			return pool.Health(ctx, 5*time.Second)
		}, logger))
	}
	lifecycle.Add("input", &server.FuncService{
		StartFn: func() error {
			readCommands(ctx, live, logger)
			cancel()
			return nil
		},
		StopFn: func() {},
	})

	logger.Info("live session ready",
		zap.Duration("startup", time.Since(start)),
		zap.Bool("hud", feed != nil),
		zap.Bool("persistence", pool != nil),
	)

	runErr := lifecycle.Run(ctx)
	closeCtx, closeCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer closeCancel()
	live.Close(closeCtx)
	if runErr != nil {
		logger.Fatal("server error", zap.Error(runErr))
	}
}

func runScenario(ctx context.Context, logger *zap.Logger, runner *sim.Runner, path string) {
	sc, err := sim.LoadScenario(path)
	if err != nil {
		logger.Fatal("loading scenario", zap.Error(err))
	}
	res, err := runner.Run(ctx, sc)
	if err != nil {
		logger.Fatal("running scenario", zap.String("scenario", sc.Name), zap.Error(err))
	}
	fmt.Fprint(os.Stdout, res.String())
	fmt.Fprintf(os.Stdout, "\nshots=%d hits=%d\n", res.Shots, len(res.Hits))
	for _, t := range res.Targets {
		fmt.Fprintf(os.Stdout, "target %-12s health=%.1f\n", t.Name, t.Health)
	}
	for _, a := range res.Ammo {
		fmt.Fprintf(os.Stdout, "ammo   %-12s clip=%d reserve=%d\n", a.DefID, a.Clip, a.Reserve)
	}
}

// readCommands applies stdin lines until EOF, "quit" or ctx ends.
func readCommands(ctx context.Context, live *sim.Live, logger *zap.Logger) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		line := scanner.Text()
		if line == "quit" || line == "exit" {
			return
		}
		if line == "" {
			continue
		}
		if err := live.Command(ctx, line); err != nil {
			logger.Warn("command rejected", zap.String("command", line), zap.Error(err))
		}
	}
}

func defaultSetup(sc config.SimulationConfig, defs []*weapon.Def) *sim.Scenario {
	inventory := sc.DefaultInventory
	if len(inventory) == 0 {
		for _, d := range defs {
			inventory = append(inventory, d.ID)
		}
		sort.Strings(inventory)
	}
	return &sim.Scenario{
		Name:      "live",
		Pawn:      sim.PawnSpec{ID: "player", Name: "Player", Direction: sim.Vec{X: 1}},
		Inventory: inventory,
		Targets: []sim.TargetSpec{
			{Name: "dummy", Center: sim.Vec{X: 1000}, Radius: 50, Health: 500},
		},
	}
}
