// Package config reads project files.
//
// A project file is YAML:
//
//	key: demo
//	label: Demo project
//	baseURL: https://example.org/demo/
//	pairwiseName: ./pairwise_tests/%A_vs_%B.txt
//	abundanceLimits: [[0, 16], [-8, 8]]
//	collisions: overwrite
//	treatments:
//	  - {key: ctrl, label: Control}
//	  - {key: heat, label: Heat shock}
//	aliases:
//	  TX1.2: TX1
//	abundance:
//	  driver: sqlite          # memory|sqlite|postgres
//	  path: abundance.db      # relative to the project file
//	  samples: []             # inline samples for the memory driver
//
// Abundance settings are overridden by DREDGE_ABUNDANCE_DRIVER,
// DREDGE_SQLITE_PATH and DREDGE_POSTGRES_DSN.
package config

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"dredge/internal/core"
	"dredge/internal/infra/abundance"
)

// Abundance selects the replicate abundance source.
type Abundance struct {
	Driver  string             `yaml:"driver"`
	Path    string             `yaml:"path"`
	DSN     string             `yaml:"dsn"`
	Samples []abundance.Sample `yaml:"samples"`
}

// Project is the decoded project file.
type Project struct {
	Key             string            `yaml:"key"`
	Label           string            `yaml:"label"`
	BaseURL         string            `yaml:"baseURL"`
	PairwiseName    string            `yaml:"pairwiseName"`
	AbundanceLimits [][]float64       `yaml:"abundanceLimits"`
	Collisions      string            `yaml:"collisions"`
	Treatments      []core.Treatment  `yaml:"treatments"`
	Aliases         map[string]string `yaml:"aliases"`
	Abundance       Abundance         `yaml:"abundance"`

	dir string
}

// Load reads and validates the project file at path.
func Load(path string) (*Project, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read project file: %w", err)
	}
	p, err := Decode(bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	p.dir = filepath.Dir(path)
	return p, nil
}

// Decode reads a project file from r. Unknown fields are rejected.
func Decode(r io.Reader) (*Project, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var p Project
	if err := dec.Decode(&p); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode project: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Validate checks the fields NewProject cannot.
func (p *Project) Validate() error {
	if p.Key == "" {
		return errors.New("project key required")
	}
	if n := len(p.AbundanceLimits); n != 0 {
		if n != 2 || len(p.AbundanceLimits[0]) != 2 || len(p.AbundanceLimits[1]) != 2 {
			return fmt.Errorf("abundanceLimits must be [[x0, x1], [y0, y1]]")
		}
	}
	if _, err := core.ParseCollisionPolicy(p.Collisions); err != nil {
		return err
	}
	return nil
}

// CollisionPolicy returns the configured collision policy.
func (p *Project) CollisionPolicy() core.CollisionPolicy {
	policy, _ := core.ParseCollisionPolicy(p.Collisions)
	return policy
}

// AbundanceConfig resolves the abundance source, applying the environment
// and making a relative sqlite path relative to the project file.
func (p *Project) AbundanceConfig() abundance.Config {
	cfg := abundance.FromEnv(abundance.Config{
		Driver: abundance.Driver(p.Abundance.Driver),
		Path:   p.Abundance.Path,
		DSN:    p.Abundance.DSN,
		Inline: p.Abundance.Samples,
	})
	if cfg.Driver == abundance.DriverSQLite && cfg.Path != "" && !filepath.IsAbs(cfg.Path) && os.Getenv("DREDGE_SQLITE_PATH") == "" {
		cfg.Path = filepath.Join(p.dir, cfg.Path)
	}
	return cfg
}

// Build opens the abundance source and constructs the core project.
func (p *Project) Build(ctx context.Context) (*core.Project, error) {
	table, err := abundance.Open(ctx, p.AbundanceConfig())
	if err != nil {
		return nil, fmt.Errorf("open abundance: %w", err)
	}
	cfg := core.ProjectConfig{
		Key:          p.Key,
		Label:        p.Label,
		Aliases:      p.Aliases,
		Abundance:    table,
		Treatments:   p.Treatments,
		PairwiseName: p.PairwiseName,
		BaseURL:      p.BaseURL,
	}
	if len(p.AbundanceLimits) == 2 {
		cfg.AbundanceLimits = [2][2]float64{
			{p.AbundanceLimits[0][0], p.AbundanceLimits[0][1]},
			{p.AbundanceLimits[1][0], p.AbundanceLimits[1][1]},
		}
	}
	return core.NewProject(cfg)
}
