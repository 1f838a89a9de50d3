package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"

	"github.com/pthm-cable/laop/config"
	"github.com/pthm-cable/laop/maps"
	"github.com/pthm-cable/laop/neural"
	"github.com/pthm-cable/laop/recording"
	"github.com/pthm-cable/laop/simulation"
	"github.com/pthm-cable/laop/telemetry"
)

func main() {
	// CLI flags
	configPath := flag.String("config", "", "Path to config.yaml (empty = use defaults)")
	outputDir := flag.String("output-dir", "", "Output directory for CSV logs, config snapshot and weights (overrides config)")
	seed := flag.Int64("seed", 0, "RNG seed (0 = config value, then time-based)")
	realTime := flag.Bool("real-time", false, "Run the physics loop at wall-clock speed")
	mapName := flag.String("map", "", "Map name or YAML file (empty = config)")
	sessions := flag.String("sessions", "", "Comma-separated session names to run (empty = all)")
	replays := flag.Bool("replays", false, "Save the last generation of every epoch as a replay")
	hallSize := flag.Int("hall-size", 10, "Hall of fame entries kept per session")

	flag.Parse()

	// Set up slog (JSON to stdout for structured logging)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := config.Init(*configPath); err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	cfg := config.Cfg()
	applyFlags(cfg, *outputDir, *seed, *realTime, *mapName, *replays)
	if *sessions != "" {
		if err := selectSessions(cfg, strings.Split(*sessions, ",")); err != nil {
			slog.Error("failed to select sessions", "error", err)
			os.Exit(1)
		}
	}

	m, err := maps.FromConfig(cfg.Map)
	if err != nil {
		slog.Error("failed to build map", "map", cfg.Map.Name, "file", cfg.Map.File, "error", err)
		os.Exit(1)
	}

	buffer := recording.NewBuffer()
	engine, err := simulation.NewEngine(cfg, neural.Algorithms(cfg), m, buffer)
	if err != nil {
		slog.Error("failed to configure run", "error", err)
		os.Exit(1)
	}

	var dir string
	if cfg.Telemetry.OutputDir != "" {
		dir = filepath.Join(cfg.Telemetry.OutputDir, engine.RunID())
	}
	out, err := telemetry.NewOutputManager(dir)
	if err != nil {
		slog.Error("failed to create output directory", "dir", dir, "error", err)
		os.Exit(1)
	}
	if err := out.WriteConfig(cfg); err != nil {
		slog.Error("failed to write config snapshot", "error", err)
	}

	wireOutput(engine, cfg, m, buffer, out, *hallSize)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("starting training",
		"run_id", engine.RunID(),
		"seed", engine.Seed(),
		"map", m.Name,
		"sessions", cfg.Derived.SessionNames,
		"output_dir", out.Dir(),
	)

	res, err := engine.Run(ctx)
	if err != nil {
		slog.Error("run failed", "error", err)
		os.Exit(1)
	}
	for _, s := range res.Sessions {
		if s.Err != nil {
			os.Exit(2)
		}
	}
}

// applyFlags overrides config values with the flags that were set.
func applyFlags(cfg *config.Config, outputDir string, seed int64, realTime bool, mapName string, replays bool) {
	if outputDir != "" {
		cfg.Telemetry.OutputDir = outputDir
	}
	if seed != 0 {
		cfg.Training.Seed = seed
	}
	if realTime {
		cfg.Physics.RealTime = true
	}
	if replays {
		cfg.Telemetry.Replays = true
	}
	switch ext := filepath.Ext(mapName); {
	case mapName == "":
	case ext == ".yaml" || ext == ".yml":
		cfg.Map.File = mapName
	default:
		cfg.Map.Name = mapName
		cfg.Map.File = ""
	}
}

// selectSessions keeps only the named sessions, in config order.
func selectSessions(cfg *config.Config, names []string) error {
	want := make(map[string]bool, len(names))
	for _, n := range names {
		if n = strings.TrimSpace(n); n != "" {
			want[n] = true
		}
	}
	var kept []config.SessionConfig
	for _, s := range cfg.Training.Sessions {
		if want[s.Name] {
			kept = append(kept, s)
			delete(want, s.Name)
		}
	}
	if len(want) > 0 {
		missing := make([]string, 0, len(want))
		for n := range want {
			missing = append(missing, n)
		}
		sort.Strings(missing)
		return fmt.Errorf("unknown sessions %v (have %v)", missing, cfg.Derived.SessionNames)
	}
	cfg.Training.Sessions = kept
	cfg.Refresh()
	return nil
}

// wireOutput connects engine events to the output directory.
func wireOutput(engine *simulation.Engine, cfg *config.Config, m *maps.Map, buffer *recording.Buffer, out *telemetry.OutputManager, hallSize int) {
	bookmarks := telemetry.NewBookmarkDetector(10)
	hof := telemetry.NewHallOfFame(hallSize, rand.New(rand.NewSource(engine.Seed())))

	engine.OnGenerationFinished(func(r simulation.GenerationResult) {
		if err := out.WriteGeneration(r.Stats); err != nil {
			slog.Error("write generation", "error", err)
		}
		if err := out.WritePerf(r.Perf, r.Session, r.Epoch, r.Generation); err != nil {
			slog.Error("write perf", "error", err)
		}
		for _, b := range bookmarks.Check(r.Stats) {
			b.LogBookmark()
			if err := out.WriteBookmark(b); err != nil {
				slog.Error("write bookmark", "error", err)
			}
		}
		if w, ok := neural.WeightsOf(r.Best); ok {
			hof.Consider(telemetry.HallEntry{
				Session:    r.Session,
				Epoch:      r.Epoch,
				Generation: r.Generation,
				Fitness:    r.Stats.FitnessMax,
				Steps:      r.Iterations,
				Weights:    w,
			})
		}

		if cfg.Telemetry.Replays && out != nil && r.Generation == cfg.Training.Generations {
			replay := recording.NewReplay(buffer)
			replay.RunID = engine.RunID()
			replay.Session, replay.Epoch, replay.Generation = r.Session, r.Epoch, r.Generation
			replay.Map = m.Name
			path, err := recording.SaveReplay(replay, filepath.Join(out.Dir(), "replays"))
			if err != nil {
				slog.Error("save replay", "error", err)
				return
			}
			slog.Info("replay_saved", "path", path, "snapshots", len(replay.Snapshots))
		}
	})

	engine.OnTestEpisode(func(r telemetry.TestResult) {
		if err := out.WriteTest(r); err != nil {
			slog.Error("write test result", "error", err)
		}
	})

	engine.OnEnd(func(res simulation.Result) {
		defer func() {
			if err := out.Close(); err != nil {
				slog.Error("close output", "error", err)
			}
		}()
		if err := out.WriteHallOfFame(hof); err != nil {
			slog.Error("write hall of fame", "error", err)
		}
		for _, s := range res.Sessions {
			w, ok := neural.WeightsOf(s.Best)
			if !ok {
				continue
			}
			if err := out.WriteJSON("best_"+s.Name+".json", w); err != nil {
				slog.Error("write best weights", "session", s.Name, "error", err)
			}
		}
	})
}
