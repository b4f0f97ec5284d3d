package config

import (
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// stepPrefix names per-stage files, e.g. step-2.yaml.
const stepPrefix = "step-"

// Stage is one configuration of a staged training schedule.
type Stage struct {
	// Path is the path to the configuration file.
	Path string
	// Step is the number after "step-" in the file name.
	Step int
	// Config is the parsed configuration.
	Config *Config
}

// LoadDirectory reads every step-N.{yaml,yml,json} file of a directory.
//
// Arguments:
//   - dir: Directory path containing stage files.
//
// Returns:
//   - []Stage: The stages ordered by step.
//   - error: Read or parse errors, or a duplicated step.
func LoadDirectory(dir string) ([]Stage, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config directory")
	}

	var stages []Stage
	seen := make(map[int]string)
	for _, file := range files {
		if file.IsDir() || !strings.HasPrefix(file.Name(), stepPrefix) {
			continue
		}

		ext := filepath.Ext(file.Name())
		switch strings.ToLower(ext) {
		case ".yaml", ".yml", ".json":
			step, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(file.Name(), stepPrefix), ext))
			if err != nil {
				return nil, errors.Wrapf(err, "bad stage file name %s", file.Name())
			}
			if prev, ok := seen[step]; ok {
				return nil, errors.Errorf("step %d defined by both %s and %s", step, prev, file.Name())
			}
			seen[step] = file.Name()

			path := filepath.Join(dir, file.Name())
			cfg, err := Load(path)
			if err != nil {
				return nil, err
			}
			stages = append(stages, Stage{
				Path:   path,
				Step:   step,
				Config: cfg,
			})
		}
	}

	sort.Slice(stages, func(i, j int) bool {
		return stages[i].Step < stages[j].Step
	})

	return stages, nil
}
