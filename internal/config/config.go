// Package config handles configuration loading for batch conversions.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/woozymasta/shp2geojson/internal/processor"
	"github.com/woozymasta/shp2geojson/internal/shapefile"

	"gopkg.in/yaml.v3"
)

// Config represents the root configuration file structure.
type Config struct {
	// OutputDir is used for datasets without an explicit output path.
	OutputDir string `yaml:"output_dir,omitempty" json:"output_dir,omitempty"`
	Encoding  string `yaml:"encoding,omitempty" json:"encoding,omitempty"`
	Pairing   string `yaml:"pairing,omitempty" json:"pairing,omitempty"`
	Order     string `yaml:"order,omitempty" json:"order,omitempty"`
	Format    string `yaml:"format,omitempty" json:"format,omitempty"`

	Datasets    []Dataset `yaml:"datasets" json:"datasets"`
	Workers     int       `yaml:"workers,omitempty" json:"workers,omitempty"`
	PreviewSize int       `yaml:"preview_size,omitempty" json:"preview_size,omitempty"`
	Compact     bool      `yaml:"compact,omitempty" json:"compact,omitempty"`
}

// Dataset is a single shapefile to convert. Empty fields inherit the root values.
type Dataset struct {
	Name     string `yaml:"name" json:"name"`
	Input    string `yaml:"input" json:"input"`
	Output   string `yaml:"output,omitempty" json:"output,omitempty"`
	Preview  string `yaml:"preview,omitempty" json:"preview,omitempty"`
	Encoding string `yaml:"encoding,omitempty" json:"encoding,omitempty"`
	Pairing  string `yaml:"pairing,omitempty" json:"pairing,omitempty"`
}

// Load reads and parses the YAML configuration file from the specified path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate %s: %w", path, err)
	}

	return &cfg, nil
}

// Validate checks names and enumerated values.
func (c *Config) Validate() error {
	var errs []error

	if _, err := shapefile.ParsePairing(c.Pairing); err != nil {
		errs = append(errs, err)
	}
	if _, err := processor.ParseOrder(c.Order); err != nil {
		errs = append(errs, err)
	}
	if _, err := processor.ParseFormat(c.Format); err != nil {
		errs = append(errs, err)
	}
	if c.Workers < 0 {
		errs = append(errs, fmt.Errorf("workers must not be negative, got %d", c.Workers))
	}

	seen := make(map[string]bool, len(c.Datasets))
	for i, ds := range c.Datasets {
		if ds.Name == "" {
			errs = append(errs, fmt.Errorf("dataset #%d: name is required", i))
		} else if seen[ds.Name] {
			errs = append(errs, fmt.Errorf("dataset %q: duplicate name", ds.Name))
		}
		seen[ds.Name] = true

		if ds.Input == "" {
			errs = append(errs, fmt.Errorf("dataset %q: input is required", ds.Name))
		}
		if _, err := shapefile.ParsePairing(ds.Pairing); err != nil {
			errs = append(errs, fmt.Errorf("dataset %q: %w", ds.Name, err))
		}
	}

	return errors.Join(errs...)
}

// Find returns the dataset with the given name.
func (c *Config) Find(name string) (Dataset, bool) {
	for _, ds := range c.Datasets {
		if ds.Name == name {
			return ds, true
		}
	}
	return Dataset{}, false
}

// Job resolves a dataset against the root defaults.
func (c *Config) Job(ds Dataset) (processor.Job, error) {
	pairingName := ds.Pairing
	if pairingName == "" {
		pairingName = c.Pairing
	}
	pairing, err := shapefile.ParsePairing(pairingName)
	if err != nil {
		return processor.Job{}, err
	}
	order, err := processor.ParseOrder(c.Order)
	if err != nil {
		return processor.Job{}, err
	}
	format, err := processor.ParseFormat(c.Format)
	if err != nil {
		return processor.Job{}, err
	}

	encoding := ds.Encoding
	if encoding == "" {
		encoding = c.Encoding
	}

	output := ds.Output
	if output == "" {
		output = filepath.Join(c.OutputDir, ds.Name+format.Ext())
	}

	return processor.Job{
		Name:     ds.Name,
		Input:    ds.Input,
		Output:   output,
		Preview:  ds.Preview,
		Encoding: encoding,
		Workers:  c.Workers,
		Order:    order,
		Pairing:  pairing,
		Encode:   processor.EncodeOptions{Format: format, Compact: c.Compact},
		Sketch:   processor.PreviewOptions{Size: c.PreviewSize},
	}, nil
}

// Select returns the datasets named in limit, in the order given. Unknown
// names are returned separately. An empty limit selects everything.
func (c *Config) Select(limit []string) (selected []Dataset, unknown []string) {
	if len(limit) == 0 {
		return c.Datasets, nil
	}

	seen := make(map[string]bool)
	for _, name := range limit {
		name = strings.TrimSpace(name)
		if seen[name] {
			continue
		}
		seen[name] = true

		if ds, ok := c.Find(name); ok {
			selected = append(selected, ds)
		} else {
			unknown = append(unknown, name)
		}
	}
	return selected, unknown
}
