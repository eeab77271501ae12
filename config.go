/*
 *  config.go
 *  rnaseqqc
 *
 *  Created by Haibao Tang on 10/16/26
 *  Copyright © 2026 Haibao Tang. All rights reserved.
 */

package rnaseqqc

import (
	"fmt"
	"math"
	"runtime"
	"sort"
	"strings"

	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// AggregateFunc reduces the values that fall into one bin
type AggregateFunc func([]float64) float64

// aggregations maps the recognized names to their reductions
var aggregations = map[string]func(stats.Float64Data) (float64, error){
	"mean":    stats.Mean,
	"median":  stats.Median,
	"trimean": stats.Trimean,
}

// Aggregations lists the names accepted by LookupAggregation
func Aggregations() []string {
	names := make([]string, 0, len(aggregations))
	for name := range aggregations {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LookupAggregation resolves a reduction by name
func LookupAggregation(name string) (AggregateFunc, error) {
	f, ok := aggregations[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("unknown aggregation `%s` (choose from %s)",
			name, strings.Join(Aggregations(), ", "))
	}
	return reduce(f), nil
}

// reduce turns a stats reduction into an AggregateFunc, failures give NaN
func reduce(f func(stats.Float64Data) (float64, error)) AggregateFunc {
	return func(a []float64) float64 {
		ans, err := f(a)
		if err != nil {
			return math.NaN()
		}
		return ans
	}
}

// Config enumerates every option of the bias summary
type Config struct {
	// BinCount is the number of quantile bins per bias factor
	BinCount int
	// Aggregation reduces the values within each bin
	Aggregation AggregateFunc
	// AggregationName is the name Aggregation was resolved from
	AggregationName string
	// MaxDropFraction fails the join if it discards more than this fraction of
	// either table, 0 only warns
	MaxDropFraction float64
	// Workers bounds how many factors are summarised at once
	Workers int
}

// DefaultConfig returns 10 bins, the arithmetic mean and one worker per CPU
func DefaultConfig() Config {
	return Config{
		BinCount:        DefaultBinCount,
		Aggregation:     reduce(stats.Mean),
		AggregationName: DefaultAggregation,
		Workers:         runtime.NumCPU(),
	}
}

// Validate checks the options and fills in the aggregation from its name
func (c *Config) Validate() error {
	if c.BinCount < 1 {
		return fmt.Errorf("bin count must be positive, got %d", c.BinCount)
	}
	if c.MaxDropFraction < 0 || c.MaxDropFraction > 1 {
		return fmt.Errorf("max drop fraction must be within [0, 1], got %g", c.MaxDropFraction)
	}
	if c.Aggregation == nil {
		name := c.AggregationName
		if name == "" {
			name = DefaultAggregation
		}
		agg, err := LookupAggregation(name)
		if err != nil {
			return err
		}
		c.Aggregation, c.AggregationName = agg, name
	}
	if c.Workers < 1 {
		c.Workers = 1
	}
	return nil
}

// LoadConfig reads the [bias] section of a pipeline configuration file. Any
// format understood by viper works (ini, yaml, toml, json).
//
// [bias]
// bin = 10
// aggregation = mean
// max_drop_fraction = 0.5
// workers = 4
func LoadConfig(filename string) (Config, error) {
	cfg := DefaultConfig()
	v := viper.New()
	v.SetDefault("bias.bin", cfg.BinCount)
	v.SetDefault("bias.aggregation", cfg.AggregationName)
	v.SetDefault("bias.max_drop_fraction", cfg.MaxDropFraction)
	v.SetDefault("bias.workers", cfg.Workers)
	v.SetConfigFile(filename)
	if err := v.ReadInConfig(); err != nil {
		return cfg, errors.Wrapf(err, "cannot read config `%s`", filename)
	}
	log.Noticef("Parse config file `%s`", filename)

	cfg.BinCount = v.GetInt("bias.bin")
	cfg.AggregationName = v.GetString("bias.aggregation")
	cfg.Aggregation = nil
	cfg.MaxDropFraction = v.GetFloat64("bias.max_drop_fraction")
	cfg.Workers = v.GetInt("bias.workers")
	if err := cfg.Validate(); err != nil {
		return cfg, errors.Wrapf(err, "config `%s`", filename)
	}
	return cfg, nil
}
