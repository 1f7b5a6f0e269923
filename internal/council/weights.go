package council

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"pantheon/internal/logger"
	"pantheon/internal/score"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Regime is the detected market condition that calibrates module weights.
type Regime string

const (
	RegimeTrend   Regime = "trend"
	RegimeRange   Regime = "range"
	RegimeRiskOff Regime = "riskoff"
)

// WeightProvider resolves the effective module weights for a regime. The
// resolution must be a pure function of (regime, module) for a given table
// version so aggregation rounds stay replayable.
type WeightProvider interface {
	WeightsFor(regime Regime) map[score.ModuleID]float64
}

// WeightTable holds base weights plus per-regime multipliers.
type WeightTable struct {
	Base        map[score.ModuleID]float64            `yaml:"base_weights"`
	Multipliers map[Regime]map[score.ModuleID]float64 `yaml:"regimes"`
}

// StaticWeights is a fixed WeightProvider, used in tests and as the fallback
// when no weight file is configured.
type StaticWeights struct {
	Table WeightTable
}

func (s StaticWeights) WeightsFor(regime Regime) map[score.ModuleID]float64 {
	return resolveWeights(s.Table, regime)
}

// DefaultWeightTable mirrors the shipped regime_weights.yaml.
func DefaultWeightTable() WeightTable {
	return WeightTable{
		Base: map[score.ModuleID]float64{
			score.ModuleTechnical:     1.0,
			score.ModuleFundamental:   1.0,
			score.ModuleMacro:         0.9,
			score.ModuleSentiment:     0.7,
			score.ModuleSector:        0.6,
			score.ModuleFactor:        0.6,
			score.ModuleMeanReversion: 0.5,
		},
		Multipliers: map[Regime]map[score.ModuleID]float64{
			RegimeTrend: {
				score.ModuleTechnical:     1.3,
				score.ModuleSentiment:     1.1,
				score.ModuleMeanReversion: 0.6,
			},
			RegimeRange: {
				score.ModuleMeanReversion: 1.4,
				score.ModuleTechnical:     0.8,
			},
			RegimeRiskOff: {
				score.ModuleMacro:       1.5,
				score.ModuleFundamental: 1.2,
				score.ModuleSentiment:   0.5,
				score.ModuleTechnical:   0.7,
			},
		},
	}
}

func resolveWeights(t WeightTable, regime Regime) map[score.ModuleID]float64 {
	out := make(map[score.ModuleID]float64, len(t.Base))
	mult := t.Multipliers[regime]
	for module, base := range t.Base {
		w := base
		if m, ok := mult[module]; ok {
			w *= m
		}
		if w < 0 {
			w = 0
		}
		out[module] = w
	}
	return out
}

// WeightSnapshot is the published view of a loaded table.
type WeightSnapshot struct {
	Version  int64
	LoadedAt time.Time
	Table    WeightTable
}

// WeightRegistry loads the regime weight table from a YAML file and reloads it
// on change. Aggregation reads a snapshot, so an in-flight round is never
// affected by a concurrent reload.
type WeightRegistry struct {
	path string
	v    *viper.Viper

	mu       sync.RWMutex
	snapshot WeightSnapshot
}

// NewWeightRegistry reads the table file and starts watching it for updates.
func NewWeightRegistry(path string) (*WeightRegistry, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("weight registry requires path")
	}
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read weight table failed: %w", err)
	}
	r := &WeightRegistry{path: path, v: v}
	if err := r.reload(); err != nil {
		return nil, err
	}
	v.OnConfigChange(func(evt fsnotify.Event) {
		if err := r.reload(); err != nil {
			logger.Errorf("weight table reload failed: %v", err)
		}
	})
	v.WatchConfig()
	return r, nil
}

// Snapshot returns the current table version.
func (r *WeightRegistry) Snapshot() WeightSnapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshot
}

// WeightsFor implements WeightProvider against the latest snapshot.
func (r *WeightRegistry) WeightsFor(regime Regime) map[score.ModuleID]float64 {
	return resolveWeights(r.Snapshot().Table, regime)
}

func (r *WeightRegistry) reload() error {
	table, err := readWeightFile(r.path)
	if err != nil {
		return err
	}
	if len(table.Base) == 0 {
		return fmt.Errorf("weight table %s defines no base_weights", r.path)
	}
	for module, w := range table.Base {
		if w < 0 {
			return fmt.Errorf("weight table: negative base weight for %s", module)
		}
	}
	r.mu.Lock()
	r.snapshot = WeightSnapshot{
		Version:  r.snapshot.Version + 1,
		LoadedAt: time.Now(),
		Table:    table,
	}
	r.mu.Unlock()
	logger.Infof("Weight registry loaded %d base weights from %s", len(table.Base), filepath.Base(r.path))
	return nil
}

func readWeightFile(path string) (WeightTable, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return WeightTable{}, fmt.Errorf("read weight table failed: %w", err)
	}
	var table WeightTable
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&table); err != nil {
		return WeightTable{}, fmt.Errorf("parse weight table failed: %w", err)
	}
	return table, nil
}
