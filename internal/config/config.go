package config

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"mdvrp/internal/opt"
)

// Config stores all configuration of the CLI and the API server.
// Values come from defaults, an optional mdvrp.env file, then the
// environment.
type Config struct {
	Environment string `mapstructure:"ENVIRONMENT" yaml:"environment"`
	LogLevel    string `mapstructure:"LOG_LEVEL" yaml:"logLevel"`
	Verbose     bool   `mapstructure:"VERBOSE" yaml:"verbose"`

	// Files used by the CLI.
	ProblemPath         string `mapstructure:"PROBLEM_PATH" yaml:"problemPath"`
	OptimalSolutionPath string `mapstructure:"OPTIMAL_SOLUTION_PATH" yaml:"optimalSolutionPath,omitempty"`
	SolutionPath        string `mapstructure:"SOLUTION_PATH" yaml:"solutionPath"`

	// Run control.
	Generations int   `mapstructure:"GENERATIONS" yaml:"generations"`
	DrawRate    int   `mapstructure:"DRAW_RATE" yaml:"drawRate"`
	Seed        int64 `mapstructure:"SEED" yaml:"seed"`
	Workers     int   `mapstructure:"WORKERS" yaml:"workers"`

	// Genetic algorithm.
	PopulationSize       int     `mapstructure:"POPULATION_SIZE" yaml:"populationSize"`
	PopulationGenStep    int     `mapstructure:"POPULATION_GEN_STEP" yaml:"populationGenStep"`
	EliteCount           int     `mapstructure:"ELITE_COUNT" yaml:"eliteCount"`
	ParentSelectionK     int     `mapstructure:"PARENT_SELECTION_K" yaml:"parentSelectionK"`
	CrossoverRate        float64 `mapstructure:"CROSSOVER_RATE" yaml:"crossoverRate"`
	SingleSwapMutRate    float64 `mapstructure:"SINGLE_SWAP_MUT_RATE" yaml:"singleSwapMutRate"`
	SingleSwapMutMax     int     `mapstructure:"SINGLE_SWAP_MUT_MAX" yaml:"singleSwapMutMax"`
	VehicleRemoveMutRate float64 `mapstructure:"VEHICLE_REMOVE_MUT_RATE" yaml:"vehicleRemoveMutRate"`
	VehicleRemoveMutMax  int     `mapstructure:"VEHICLE_REMOVE_MUT_MAX" yaml:"vehicleRemoveMutMax"`
	InfeasibilityPenalty float64 `mapstructure:"INFEASIBILITY_PENALTY" yaml:"infeasibilityPenalty"`
	CWSBias              int     `mapstructure:"CWS_BIAS" yaml:"cwsBias"`

	// API server.
	Port               string  `mapstructure:"PORT" yaml:"port"`
	InstanceDir        string  `mapstructure:"INSTANCE_DIR" yaml:"instanceDir,omitempty"`
	DatabaseURL        string  `mapstructure:"DATABASE_URL" yaml:"-"`
	DBMigrate          bool    `mapstructure:"DB_MIGRATE" yaml:"dbMigrate"`
	RedisURL           string  `mapstructure:"REDIS_URL" yaml:"-"`
	RateRPS            float64 `mapstructure:"RATE_RPS" yaml:"rateRps"`
	RateBurst          int     `mapstructure:"RATE_BURST" yaml:"rateBurst"`
	WebhookURL         string  `mapstructure:"WEBHOOK_URL" yaml:"webhookUrl,omitempty"`
	WebhookSecret      string  `mapstructure:"WEBHOOK_SECRET" yaml:"-"`
	WebhookMaxAttempts int     `mapstructure:"WEBHOOK_MAX_ATTEMPTS" yaml:"webhookMaxAttempts"`

	// Ceilings on API run requests; 0 disables a check.
	MaxNodes       int `mapstructure:"MAX_NODES" yaml:"maxNodes"`
	MaxPopulation  int `mapstructure:"MAX_POPULATION" yaml:"maxPopulation"`
	MaxGenerations int `mapstructure:"MAX_GENERATIONS" yaml:"maxGenerations"`
	MaxMutations   int `mapstructure:"MAX_MUTATIONS" yaml:"maxMutations"`
}

func defaults() map[string]any {
	p := opt.DefaultParams()
	return map[string]any{
		"ENVIRONMENT":             "production",
		"LOG_LEVEL":               "info",
		"VERBOSE":                 false,
		"PROBLEM_PATH":            "",
		"OPTIMAL_SOLUTION_PATH":   "",
		"SOLUTION_PATH":           "solution.res",
		"GENERATIONS":             1000,
		"DRAW_RATE":               1,
		"SEED":                    0,
		"WORKERS":                 0,
		"POPULATION_SIZE":         p.PopulationSize,
		"POPULATION_GEN_STEP":     p.PopulationGenStep,
		"ELITE_COUNT":             p.EliteCount,
		"PARENT_SELECTION_K":      p.TournamentSize,
		"CROSSOVER_RATE":          p.CrossoverRate,
		"SINGLE_SWAP_MUT_RATE":    p.SingleSwapMutRate,
		"SINGLE_SWAP_MUT_MAX":     p.SingleSwapMutMax,
		"VEHICLE_REMOVE_MUT_RATE": p.VehicleRemoveMutRate,
		"VEHICLE_REMOVE_MUT_MAX":  p.VehicleRemoveMutMax,
		"INFEASIBILITY_PENALTY":   p.InfeasibilityPenalty,
		"CWS_BIAS":                p.CWSBias,
		"PORT":                    "8080",
		"INSTANCE_DIR":            "",
		"DATABASE_URL":            "",
		"DB_MIGRATE":              true,
		"REDIS_URL":               "",
		"RATE_RPS":                0.0,
		"RATE_BURST":              20,
		"WEBHOOK_URL":             "",
		"WEBHOOK_SECRET":          "",
		"WEBHOOK_MAX_ATTEMPTS":    10,
		"MAX_NODES":               5000,
		"MAX_POPULATION":          2000,
		"MAX_GENERATIONS":         1000000,
		"MAX_MUTATIONS":           1000,
	}
}

// Load reads mdvrp.env from path when present and overlays environment
// variables. A missing file is not an error.
func Load(path string) (Config, error) {
	v := viper.New()
	for k, val := range defaults() {
		v.SetDefault(k, val)
	}
	v.AddConfigPath(path)
	v.SetConfigName("mdvrp")
	v.SetConfigType("env")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg.WebhookSecret = trimOptionalQuotes(cfg.WebhookSecret)
	return cfg, nil
}

func trimOptionalQuotes(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && (s[0] == '"' || s[0] == '\'') && s[len(s)-1] == s[0] {
		return s[1 : len(s)-1]
	}
	return s
}

// Params maps the genetic algorithm settings onto opt.Params.
func (c Config) Params() opt.Params {
	return opt.Params{
		PopulationSize:       c.PopulationSize,
		PopulationGenStep:    c.PopulationGenStep,
		EliteCount:           c.EliteCount,
		TournamentSize:       c.ParentSelectionK,
		CrossoverRate:        c.CrossoverRate,
		SingleSwapMutRate:    c.SingleSwapMutRate,
		SingleSwapMutMax:     c.SingleSwapMutMax,
		VehicleRemoveMutRate: c.VehicleRemoveMutRate,
		VehicleRemoveMutMax:  c.VehicleRemoveMutMax,
		InfeasibilityPenalty: c.InfeasibilityPenalty,
		CWSBias:              c.CWSBias,
		Workers:              c.Workers,
	}
}

func (c Config) Validate() error {
	if err := c.Params().Validate(); err != nil {
		return err
	}
	if c.Generations < 0 {
		return fmt.Errorf("GENERATIONS must be >= 0")
	}
	if c.DrawRate < 1 {
		return fmt.Errorf("DRAW_RATE must be >= 1")
	}
	if c.RateRPS < 0 || c.RateBurst < 0 {
		return fmt.Errorf("RATE_RPS and RATE_BURST must be >= 0")
	}
	if c.MaxNodes < 0 || c.MaxPopulation < 0 || c.MaxGenerations < 0 || c.MaxMutations < 0 {
		return fmt.Errorf("MAX_NODES, MAX_POPULATION, MAX_GENERATIONS and MAX_MUTATIONS must be >= 0")
	}
	if c.WebhookMaxAttempts < 1 {
		return fmt.Errorf("WEBHOOK_MAX_ATTEMPTS must be >= 1")
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("LOG_LEVEL: %w", err)
	}
	return nil
}

// Dump writes the effective configuration as YAML. Credentials are left
// out.
func (c Config) Dump(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return err
	}
	return enc.Close()
}
