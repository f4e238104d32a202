// Copyright 2024 The Chainlayer Authors
// This file is part of Chainlayer.
//
// Chainlayer is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Chainlayer is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Chainlayer. If not, see <http://www.gnu.org/licenses/>.

// Package config loads the layered TOML configuration: an optional
// system-wide file, an optional working-directory file, an optional
// explicit file passed on the command line, each overlaid in that order,
// finally overridden by CHAINLAYER_-prefixed environment variables.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/pelletier/go-toml/v2"
)

const envPrefix = "CHAINLAYER"

// defaultSearchPaths are tried in increasing priority, before the explicit
// --config path and the environment overlay.
var defaultSearchPaths = []string{
	"/etc/chainlayer/chainlayer.toml",
	"chainlayer.toml",
}

// TaggedConfig is the shape shared by source, reducer, and storage
// configuration blocks: a "type" discriminator plus type-specific
// parameters, decoded in a second pass once Type is known.
type TaggedConfig struct {
	Type   string         `mapstructure:"type"`
	Params map[string]any `mapstructure:",remain"`
}

// Decode re-decodes t.Params into dst, for use once the caller has
// switched on t.Type to the concrete parameter shape it expects.
func (t TaggedConfig) Decode(dst any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           dst,
		WeaklyTypedInput: true,
		TagName:          "mapstructure",
	})
	if err != nil {
		return fmt.Errorf("config: build decoder: %w", err)
	}
	if err := dec.Decode(t.Params); err != nil {
		return fmt.Errorf("config: decode %s params: %w", t.Type, err)
	}
	return nil
}

// IntersectConfig is tagged by type with its payload under "value", per
// the intersect policy's closed variants (Tip, Origin, Point, Breadcrumbs).
type IntersectConfig struct {
	Type  string `mapstructure:"type"`
	Value any    `mapstructure:"value"`
}

// FinalizeConfig optionally stops the pipeline after a given block.
type FinalizeConfig struct {
	UntilHash    string  `mapstructure:"until_hash"`
	MaxBlockSlot *uint64 `mapstructure:"max_block_slot"`
}

// RetriesConfig overrides the default retry policy applied to every stage.
type RetriesConfig struct {
	MaxRetries         *int     `mapstructure:"max_retries"`
	BackoffUnitSeconds *float64 `mapstructure:"backoff_unit_seconds"`
	BackoffFactor      *float64 `mapstructure:"backoff_factor"`
	MaxBackoffSeconds  *float64 `mapstructure:"max_backoff_seconds"`
	Dismissible        *bool    `mapstructure:"dismissible"`
}

// ChainConfig names a network preset, or "custom" with explicit genesis
// values under custom_params.
type ChainConfig struct {
	Type         string         `mapstructure:"type"`
	CustomParams map[string]any `mapstructure:"custom_params,omitempty"`
}

// Config is the fully-decoded top-level configuration document.
type Config struct {
	Source    TaggedConfig    `mapstructure:"source"`
	Reducer   TaggedConfig    `mapstructure:"reducer"`
	Storage   TaggedConfig    `mapstructure:"storage"`
	Intersect IntersectConfig `mapstructure:"intersect"`
	Finalize  *FinalizeConfig `mapstructure:"finalize,omitempty"`
	Chain     *ChainConfig    `mapstructure:"chain,omitempty"`
	Retries   *RetriesConfig  `mapstructure:"retries,omitempty"`
}

// Load builds Config from the layered TOML/environment merge. explicitPath
// is required to exist if non-empty; the two default search paths are
// silently skipped when absent.
func Load(explicitPath string) (*Config, error) {
	merged := map[string]any{}

	for _, path := range defaultSearchPaths {
		layer, found, err := readTOMLFile(path, false)
		if err != nil {
			return nil, err
		}
		if found {
			merged = deepMerge(merged, layer)
		}
	}

	if explicitPath != "" {
		layer, _, err := readTOMLFile(explicitPath, true)
		if err != nil {
			return nil, err
		}
		merged = deepMerge(merged, layer)
	}

	merged = deepMerge(merged, envOverlay(envPrefix))

	var cfg Config
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &cfg,
		WeaklyTypedInput: true,
		TagName:          "mapstructure",
	})
	if err != nil {
		return nil, fmt.Errorf("config: build decoder: %w", err)
	}
	if err := dec.Decode(merged); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	return &cfg, nil
}

func readTOMLFile(path string, required bool) (map[string]any, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !required {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("config: read %s: %w", path, err)
	}
	var m map[string]any
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, false, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return m, true, nil
}

// deepMerge overlays src onto dst, recursing into nested maps so a single
// overridden leaf key doesn't drop its siblings. src wins on conflict.
func deepMerge(dst, src map[string]any) map[string]any {
	if dst == nil {
		dst = map[string]any{}
	}
	for k, v := range src {
		if srcMap, ok := v.(map[string]any); ok {
			if dstMap, ok := dst[k].(map[string]any); ok {
				dst[k] = deepMerge(dstMap, srcMap)
				continue
			}
		}
		dst[k] = v
	}
	return dst
}

// envOverlay builds a nested map from every "<prefix>_..." environment
// variable, splitting the remainder of the name on every underscore into a
// nested path. This mirrors a flat key like FOO_STORAGE_REDIS_URL mapping
// to storage.redis.url — the same ambiguity a naive underscore-separated
// environment scheme always has with multi-word keys, traded for zero
// configuration.
func envOverlay(prefix string) map[string]any {
	out := map[string]any{}
	marker := prefix + "_"
	for _, kv := range os.Environ() {
		name, val, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(name, marker) {
			continue
		}
		rest := strings.ToLower(strings.TrimPrefix(name, marker))
		if rest == "" {
			continue
		}
		setNested(out, strings.Split(rest, "_"), val)
	}
	return out
}

func setNested(m map[string]any, path []string, val string) {
	if len(path) == 1 {
		m[path[0]] = val
		return
	}
	next, ok := m[path[0]].(map[string]any)
	if !ok {
		next = map[string]any{}
		m[path[0]] = next
	}
	setNested(next, path[1:], val)
}
