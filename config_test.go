/*
 *  config_test.go
 *  rnaseqqc
 *
 *  Created by Haibao Tang on 10/16/26
 *  Copyright © 2026 Haibao Tang. All rights reserved.
 */

package rnaseqqc_test

import (
	"io/ioutil"
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tanghaibao/rnaseqqc"
)

func writeConfig(t *testing.T, name, content string) string {
	filename := filepath.Join(t.TempDir(), name)
	require.NoError(t, ioutil.WriteFile(filename, []byte(content), 0644))
	return filename
}

func TestLoadConfig(t *testing.T) {
	filename := writeConfig(t, "pipeline.ini",
		"[general]\ngenome = hg38\n\n[bias]\nbin = 20\naggregation = median\nmax_drop_fraction = 0.5\nworkers = 3\n")
	cfg, err := rnaseqqc.LoadConfig(filename)
	require.NoError(t, err)
	assert.Equal(t, 20, cfg.BinCount)
	assert.Equal(t, "median", cfg.AggregationName)
	assert.Equal(t, 0.5, cfg.MaxDropFraction)
	assert.Equal(t, 3, cfg.Workers)
	require.NotNil(t, cfg.Aggregation)
	assert.Equal(t, 2.0, cfg.Aggregation([]float64{1, 2, 30}))
}

func TestLoadConfigDefaults(t *testing.T) {
	filename := writeConfig(t, "pipeline.yml", "bias:\n  bin: 5\n")
	cfg, err := rnaseqqc.LoadConfig(filename)
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.BinCount)
	assert.Equal(t, rnaseqqc.DefaultAggregation, cfg.AggregationName)
	assert.Equal(t, 0.0, cfg.MaxDropFraction)
	assert.Equal(t, 11.0, cfg.Aggregation([]float64{1, 2, 30}))
}

func TestInvalidConfig(t *testing.T) {
	_, err := rnaseqqc.LoadConfig(writeConfig(t, "pipeline.ini", "[bias]\naggregation = mode\n"))
	assert.Error(t, err)
	_, err = rnaseqqc.LoadConfig(writeConfig(t, "pipeline.ini", "[bias]\nbin = 0\n"))
	assert.Error(t, err)
	_, err = rnaseqqc.LoadConfig(filepath.Join(t.TempDir(), "missing.ini"))
	assert.Error(t, err)

	cfg := rnaseqqc.DefaultConfig()
	cfg.MaxDropFraction = 1.5
	_, err = rnaseqqc.NewBiasAggregator(cfg)
	assert.Error(t, err)
}

func TestDefaultConfig(t *testing.T) {
	cfg := rnaseqqc.DefaultConfig()
	assert.Equal(t, rnaseqqc.DefaultBinCount, cfg.BinCount)
	assert.Equal(t, rnaseqqc.DefaultAggregation, cfg.AggregationName)
	require.NotNil(t, cfg.Aggregation)
	assert.Equal(t, 2.5, cfg.Aggregation([]float64{1, 2, 3, 4}))
	assert.True(t, math.IsNaN(cfg.Aggregation(nil)))
	assert.True(t, cfg.Workers >= 1)
}
