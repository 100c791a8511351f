package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
)

const noManifestMessage = "no wireplan.toml found\nplease run inside a project or pass the directory explicitly, e.g.:\n  wireplan synth path/to/project"

type projectManifest struct {
	Path   string
	Root   string
	Config projectConfig
}

type projectConfig struct {
	Package  packageConfig  `toml:"package"`
	Snapshot snapshotConfig `toml:"snapshot"`
	Output   outputConfig   `toml:"output"`
	Analysis analysisConfig `toml:"analysis"`
	Activate activateConfig `toml:"activate"`
}

type packageConfig struct {
	// Name is the origin module synthesis runs for.
	Name string `toml:"name"`
}

type snapshotConfig struct {
	// Paths are globs relative to the manifest root.
	Paths []string `toml:"paths"`
}

type outputConfig struct {
	Dir     string `toml:"dir"`
	Package string `toml:"package"`
}

type analysisConfig struct {
	ExcludeCapabilities []string `toml:"exclude-capabilities"`
}

type activateConfig struct {
	First []string `toml:"first"`
	Last  []string `toml:"last"`
}

func findWireplanToml(startDir string) (string, bool, error) {
	if startDir == "" {
		startDir = "."
	}
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", false, fmt.Errorf("failed to resolve start directory: %w", err)
	}
	for {
		candidate := filepath.Join(dir, "wireplan.toml")
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", false, fmt.Errorf("failed to stat %q: %w", candidate, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", false, nil
}

func loadProjectManifest(startDir string) (*projectManifest, error) {
	manifestPath, ok, err := findWireplanToml(startDir)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.New(noManifestMessage)
	}
	cfg, err := loadProjectConfig(manifestPath)
	if err != nil {
		return nil, err
	}
	return &projectManifest{
		Path:   manifestPath,
		Root:   filepath.Dir(manifestPath),
		Config: cfg,
	}, nil
}

func loadProjectConfig(path string) (projectConfig, error) {
	var cfg projectConfig
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return projectConfig{}, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if !meta.IsDefined("package") {
		return projectConfig{}, fmt.Errorf("%s: missing [package]", path)
	}
	if !meta.IsDefined("package", "name") || strings.TrimSpace(cfg.Package.Name) == "" {
		return projectConfig{}, fmt.Errorf("%s: missing [package].name", path)
	}
	if len(cfg.Snapshot.Paths) == 0 {
		cfg.Snapshot.Paths = []string{"snapshots/*.wp.toml"}
	}
	if cfg.Output.Dir == "" {
		cfg.Output.Dir = "gen"
	}
	if cfg.Output.Package == "" {
		cfg.Output.Package = "wiregen"
	}
	return cfg, nil
}

// snapshotPaths expands the manifest globs against the project root.
// The result is sorted and deduplicated so load order never depends on
// filesystem enumeration.
func snapshotPaths(manifest *projectManifest) ([]string, error) {
	seen := make(map[string]struct{})
	var paths []string
	for _, pattern := range manifest.Config.Snapshot.Paths {
		if !filepath.IsAbs(pattern) {
			pattern = filepath.Join(manifest.Root, pattern)
		}
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("%s: bad snapshot glob %q: %w", manifest.Path, pattern, err)
		}
		for _, m := range matches {
			if _, dup := seen[m]; !dup {
				seen[m] = struct{}{}
				paths = append(paths, m)
			}
		}
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("%s: no snapshot documents match %v", manifest.Path, manifest.Config.Snapshot.Paths)
	}
	sort.Strings(paths)
	return paths, nil
}
