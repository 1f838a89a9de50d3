// Package config provides configuration loading and access for the trainer.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Config holds all simulation and training parameters.
type Config struct {
	Physics   PhysicsConfig   `yaml:"physics"`
	Car       CarConfig       `yaml:"car"`
	Map       MapConfig       `yaml:"map"`
	Training  TrainingConfig  `yaml:"training"`
	Genetic   GeneticConfig   `yaml:"genetic"`
	Test      TestConfig      `yaml:"test"`
	Telemetry TelemetryConfig `yaml:"telemetry"`

	// Derived values computed after loading
	Derived DerivedConfig `yaml:"-"`
}

// PhysicsConfig holds physics loop parameters.
// The integration step itself is fixed (systems.DeltaT).
type PhysicsConfig struct {
	RealTime        bool `yaml:"real_time"`         // sleep DeltaT per iteration instead of yielding
	TimeLimit       int  `yaml:"time_limit"`        // iterations before a run is forced to finish
	KillOnCollision bool `yaml:"kill_on_collision"` // cars die when they touch a wall
	IdleLimit       int  `yaml:"idle_limit"`        // iterations without fitness progress before death (0 = off)
}

// CarConfig holds vehicle geometry, drive and sensor parameters.
type CarConfig struct {
	Width        float64 `yaml:"width"`
	Height       float64 `yaml:"height"`
	Mass         float64 `yaml:"mass"`          // chassis mass
	WheelMass    float64 `yaml:"wheel_mass"`    // per wheel
	EngineForce  float64 `yaml:"engine_force"`  // total force at full throttle
	BrakeForce   float64 `yaml:"brake_force"`   // total force at full brake
	Drag         float64 `yaml:"drag"`          // linear drag coefficient (force per unit speed)
	MaxSteer     float64 `yaml:"max_steer"`     // radians per second at full lock
	SensorLength float64 `yaml:"sensor_length"` // proximity line length
	SensorSpread float64 `yaml:"sensor_spread"` // total fan angle in radians
}

// MapConfig selects the static geometry.
type MapConfig struct {
	Name   string  `yaml:"name"`   // registry key: empty, box, track
	File   string  `yaml:"file"`   // optional YAML map file, overrides Name
	Width  float64 `yaml:"width"`  // box/track extent
	Height float64 `yaml:"height"` // box/track extent
}

// TrainingConfig holds generation/epoch orchestration parameters.
type TrainingConfig struct {
	PopulationSize int             `yaml:"population_size"`
	Generations    int             `yaml:"generations"` // generation limit per epoch
	Epochs         int             `yaml:"epochs"`      // epoch limit per session
	AutoRun        bool            `yaml:"auto_run"`
	Seed           int64           `yaml:"seed"` // 0 = time-based
	Environment    string          `yaml:"environment"`
	Sessions       []SessionConfig `yaml:"sessions"`
}

// SessionConfig describes one training session (one learning algorithm instance).
type SessionConfig struct {
	Name      string `yaml:"name"`
	Algorithm string `yaml:"algorithm"`
}

// GeneticConfig holds genetic learning parameters.
type GeneticConfig struct {
	EliteFraction  float64 `yaml:"elite_fraction"`
	TournamentSize int     `yaml:"tournament_size"`
	CrossoverRate  float64 `yaml:"crossover_rate"`
	MutationRate   float64 `yaml:"mutation_rate"`
	MutationSigma  float64 `yaml:"mutation_sigma"`
	BigRate        float64 `yaml:"big_rate"`
	BigSigma       float64 `yaml:"big_sigma"`
}

// TestConfig holds post-training evaluation parameters.
type TestConfig struct {
	Episodes int `yaml:"episodes"`
}

// TelemetryConfig holds metrics output parameters.
type TelemetryConfig struct {
	OutputDir string `yaml:"output_dir"`
	Replays   bool   `yaml:"replays"` // save the last generation of every epoch as a replay
}

// DerivedConfig holds computed values derived from the loaded config.
type DerivedConfig struct {
	EliteCount   int     // round(EliteFraction * PopulationSize), at least 1
	WheelInset   float64 // wheel offset from the chassis corners
	SessionNames []string
}

// global holds the loaded configuration.
var global *Config

// Init loads configuration from the given path, or uses embedded defaults if path is empty.
// Must be called before Cfg().
func Init(path string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	global = cfg
	return nil
}

// MustInit is like Init but panics on error.
func MustInit(path string) {
	if err := Init(path); err != nil {
		panic(fmt.Sprintf("config: failed to initialize: %v", err))
	}
}

// Cfg returns the global configuration. Panics if Init was not called.
func Cfg() *Config {
	if global == nil {
		panic("config: Cfg() called before Init()")
	}
	return global
}

// Default returns a fresh copy of the embedded defaults.
func Default() *Config {
	cfg, err := Load("")
	if err != nil {
		panic(fmt.Sprintf("config: embedded defaults are invalid: %v", err))
	}
	return cfg
}

// Load loads configuration from a YAML file, merging with embedded defaults.
// If path is empty, only embedded defaults are used.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Unmarshal into same struct - only overwrites fields present in file
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.computeDerived()

	return cfg, nil
}

// Validate performs simple bounds checks. It does not resolve registry keys;
// unknown algorithms and environments are reported when a run is configured.
func (c *Config) Validate() error {
	var errs []error
	if c.Training.PopulationSize <= 0 {
		errs = append(errs, fmt.Errorf("training.population_size must be > 0"))
	}
	if c.Training.Generations < 0 {
		errs = append(errs, fmt.Errorf("training.generations must be >= 0"))
	}
	if c.Training.Epochs < 0 {
		errs = append(errs, fmt.Errorf("training.epochs must be >= 0"))
	}
	if len(c.Training.Sessions) == 0 {
		errs = append(errs, fmt.Errorf("training.sessions must list at least one session"))
	}
	if c.Physics.TimeLimit <= 0 {
		errs = append(errs, fmt.Errorf("physics.time_limit must be > 0"))
	}
	if c.Car.Mass <= 0 || c.Car.WheelMass <= 0 {
		errs = append(errs, fmt.Errorf("car masses must be > 0"))
	}
	if c.Genetic.EliteFraction < 0 || c.Genetic.EliteFraction > 1 {
		errs = append(errs, fmt.Errorf("genetic.elite_fraction must be in [0, 1]"))
	}
	if c.Test.Episodes < 0 {
		errs = append(errs, fmt.Errorf("test.episodes must be >= 0"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// Refresh recomputes derived values after fields were changed in code.
func (c *Config) Refresh() {
	c.computeDerived()
}

// computeDerived calculates values derived from loaded config.
func (c *Config) computeDerived() {
	elite := int(c.Genetic.EliteFraction*float64(c.Training.PopulationSize) + 0.5)
	if elite < 1 {
		elite = 1
	}
	c.Derived.EliteCount = elite
	c.Derived.WheelInset = c.Car.Width * 0.15

	c.Derived.SessionNames = make([]string, len(c.Training.Sessions))
	for i := range c.Training.Sessions {
		s := &c.Training.Sessions[i]
		if s.Name == "" {
			s.Name = fmt.Sprintf("session-%d", i+1)
		}
		c.Derived.SessionNames[i] = s.Name
	}
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
