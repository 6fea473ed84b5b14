package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/tailscale/hujson"

	"github.com/calvinalkan/shmcache/pkg/shmcache"
	"github.com/calvinalkan/shmcache/pkg/shmcache/shmfs"
)

// config holds the resolved settings for one shmcachectl invocation:
// defaults, overridden by a JWCC config file, overridden by CLI flags.
type config struct {
	SegmentPath string `json:"segment_path"` //nolint:tagliatelle // snake_case for config file
	SegmentSize int64  `json:"segment_size"`  //nolint:tagliatelle // snake_case for config file
}

func defaultConfig() config {
	return config{
		SegmentPath: "/dev/shm/shmcache.segment",
		SegmentSize: shmcache.DefaultSegmentSize,
	}
}

// loadConfig applies, in increasing precedence: built-in defaults, the
// JWCC config file at configPath (if set), then explicit CLI overrides.
func loadConfig(configPath, segmentOverride string, sizeOverride int64) (config, error) {
	cfg := defaultConfig()

	if configPath != "" {
		fileCfg, err := readConfigFile(configPath)
		if err != nil {
			return config{}, err
		}

		if fileCfg.SegmentPath != "" {
			cfg.SegmentPath = fileCfg.SegmentPath
		}

		if fileCfg.SegmentSize != 0 {
			cfg.SegmentSize = fileCfg.SegmentSize
		}
	}

	if segmentOverride != "" {
		cfg.SegmentPath = segmentOverride
	}

	if sizeOverride != 0 {
		cfg.SegmentSize = sizeOverride
	}

	if err := shmcache.ValidateSegmentSize(cfg.SegmentSize); err != nil {
		return config{}, err
	}

	return cfg, nil
}

func readConfigFile(path string) (config, error) {
	raw, err := os.ReadFile(path) //nolint:gosec // path is intentionally user-controlled
	if err != nil {
		return config{}, fmt.Errorf("reading config %s: %w", path, err)
	}

	standardized, err := hujson.Standardize(raw)
	if err != nil {
		return config{}, fmt.Errorf("invalid JWCC in %s: %w", path, err)
	}

	var cfg config

	if err := json.Unmarshal(standardized, &cfg); err != nil {
		return config{}, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return cfg, nil
}

func attachEngine(cfg config) (*shmcache.Engine, bool, error) {
	handle, isNew, err := shmfs.Open(cfg.SegmentPath, cfg.SegmentSize)
	if err != nil {
		return nil, false, fmt.Errorf("opening segment: %w", err)
	}

	eng, err := shmcache.Attach(handle, isNew)
	if err != nil {
		_ = handle.Detach()

		return nil, false, fmt.Errorf("attaching segment: %w", err)
	}

	return eng, isNew, nil
}
