// Package session owns the single-threaded, single-session state the rest
// of the compiler runs inside (§5): the analysis context, the session
// configuration, the plan cache, and structured logging setup.
package session

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/lattice-ql/qcompiler/plangen"
	"github.com/lattice-ql/qcompiler/prune"
)

// Config holds every session knob named in §6's "Configuration recognized"
// table, loaded the way the rest of the pack loads layered config: defaults,
// then an optional file, then environment overrides.
type Config struct {
	// PartitionPruner is HIVEPARTITIONPRUNER: "strict" rejects queries on
	// partitioned tables without a partition predicate.
	PartitionPruner string `mapstructure:"partitionPruner"`
	// MapSideAggregate is HIVEMAPSIDEAGGREGATE: when set, a group-by uses
	// the 2-MR strategy (map-side HASH aggregation) instead of 1-MR. It does
	// not affect the 4-MR strategy, which a DISTINCT aggregate selects
	// whether or not this is set.
	MapSideAggregate bool `mapstructure:"mapSideAggregate"`
	// MapAggrHashMemory is HIVEMAPAGGRHASHMEMORY: the fraction of max heap
	// the HASH aggregator's capacity estimate is allowed to use.
	MapAggrHashMemory float64 `mapstructure:"mapAggrHashMemory"`
	// CompressResult is COMPRESSRESULT, propagated to FileSink descriptors.
	CompressResult bool `mapstructure:"compressResult"`

	// ScratchDir and SessionID feed the scratch-path allocator (§6).
	ScratchDir string `mapstructure:"scratchDir"`
	SessionID  string `mapstructure:"sessionId"`

	// PlanCacheDir configures the badger-backed PlanCache. PlanCacheSize is
	// loaded but not passed to the PlanCache, which has no size bound.
	PlanCacheSize int    `mapstructure:"planCacheSize"`
	PlanCacheDir  string `mapstructure:"planCacheDir"`
}

// DefaultConfig returns the configuration defaults documented in §6.
func DefaultConfig() *Config {
	return &Config{
		PartitionPruner:   "nonstrict",
		MapSideAggregate:  false,
		MapAggrHashMemory: 0.5,
		CompressResult:    false,
		ScratchDir:        "/tmp/qcompile-scratch",
		SessionID:         "qc",
		PlanCacheSize:      1000,
		PlanCacheDir:       "",
	}
}

// PruneMode translates the loaded PartitionPruner string into prune.Mode.
func (c *Config) PruneMode() prune.Mode {
	if c.PartitionPruner == "strict" {
		return prune.Strict
	}
	return prune.Nonstrict
}

// PlangenConfig translates the session config into the knobs plangen.Planner
// actually consumes (§6: HIVEMAPSIDEAGGREGATE, HIVEMAPAGGRHASHMEMORY, and
// the partition pruner's strictness mode). HashMemoryBytes is derived from
// MapAggrHashMemory against maxHeapBytes, the JVM-equivalent heap budget the
// running process was configured with.
func (c *Config) PlangenConfig(maxHeapBytes int64) plangen.Config {
	return plangen.Config{
		MapSideAggrEnabled: c.MapSideAggregate,
		HashMemoryBytes:    int64(c.MapAggrHashMemory * float64(maxHeapBytes)),
		PartitionPruneMode: c.PruneMode(),
	}
}

// LoadConfig loads configuration from an optional file plus environment
// variables prefixed QCOMPILE_, layered over DefaultConfig.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	d := DefaultConfig()
	v.SetDefault("partitionPruner", d.PartitionPruner)
	v.SetDefault("mapSideAggregate", d.MapSideAggregate)
	v.SetDefault("mapAggrHashMemory", d.MapAggrHashMemory)
	v.SetDefault("compressResult", d.CompressResult)
	v.SetDefault("scratchDir", d.ScratchDir)
	v.SetDefault("sessionId", d.SessionID)
	v.SetDefault("planCacheSize", d.PlanCacheSize)
	v.SetDefault("planCacheDir", d.PlanCacheDir)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(home, ".qcompile"))
		}
		v.AddConfigPath(".")
		v.SetConfigName("qcompile")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("QCOMPILE")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading qcompile config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing qcompile config: %w", err)
	}
	return &cfg, nil
}
