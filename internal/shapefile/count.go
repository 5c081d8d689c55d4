package shapefile

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
)

// Pairing decides how shapes and records are matched when their counts differ.
type Pairing int

const (
	// PairTruncate pairs up to the shorter of the two files.
	PairTruncate Pairing = iota
	// PairPad pairs every shape, filling missing records with empty values.
	PairPad
	// PairStrict refuses to pair files with differing counts.
	PairStrict
)

func (p Pairing) String() string {
	switch p {
	case PairPad:
		return "pad"
	case PairStrict:
		return "strict"
	default:
		return "truncate"
	}
}

// ParsePairing parses a policy name. Empty means truncate.
func ParsePairing(s string) (Pairing, error) {
	switch strings.ToLower(s) {
	case "", "truncate":
		return PairTruncate, nil
	case "pad":
		return PairPad, nil
	case "strict":
		return PairStrict, nil
	}
	return PairTruncate, fmt.Errorf("unknown pairing policy %q", s)
}

// Pair is one shape with its positional attribute record.
type Pair struct {
	Index  int
	Shape  Shape
	Record Record
}

// Counts holds the number of entries found in each file.
type Counts struct {
	Shapes  int `yaml:"shapes" json:"shapes"`
	Records int `yaml:"records" json:"records"`
}

// Mismatch reports whether the files disagree on the entry count.
func (c Counts) Mismatch() bool { return c.Shapes != c.Records }

// Warning returns a *CountMismatchError when the counts differ, nil otherwise.
func (c Counts) Warning() error {
	if !c.Mismatch() {
		return nil
	}
	return &CountMismatchError{Shapes: c.Shapes, Records: c.Records}
}

// Paired is the number of pairs the policy produces for these counts.
func (c Counts) Paired(policy Pairing) int {
	switch policy {
	case PairPad:
		return c.Shapes
	case PairStrict:
		if c.Mismatch() {
			return 0
		}
	}
	return min(c.Shapes, c.Records)
}

// Report logs the count comparison.
func (c Counts) Report(path string) {
	if c.Mismatch() {
		log.Warn().
			Str("path", path).
			Int("shp_records", c.Shapes).
			Int("dbf_records", c.Records).
			Msg("SHP and DBF data have different numbers of elements")
		return
	}
	log.Info().
		Str("path", path).
		Int("records", c.Shapes).
		Msg("SHP and DBF data have the same number of elements")
}

// Inventory is the result of an independent scan of a dataset.
type Inventory struct {
	Path      string         `yaml:"path" json:"path"`
	ShapeType string         `yaml:"shape_type" json:"shape_type"`
	Encoding  string         `yaml:"encoding" json:"encoding"`
	Counts    Counts         `yaml:"counts" json:"counts"`
	Mismatch  bool           `yaml:"mismatch" json:"mismatch"`
	Kinds     map[string]int `yaml:"kinds" json:"kinds"`
	Fields    []FieldInfo    `yaml:"fields" json:"fields"`
}

// FieldInfo is the printable form of a Field.
type FieldInfo struct {
	Name      string `yaml:"name" json:"name"`
	Type      string `yaml:"type" json:"type"`
	Kind      string `yaml:"kind" json:"kind"`
	Size      int    `yaml:"size" json:"size"`
	Precision int    `yaml:"precision,omitempty" json:"precision,omitempty"`
}

// CountFiles scans the whole dataset on its own, counting shapes and records
// and tallying shape types, without building any output.
func CountFiles(stem string, opts Options) (*Inventory, error) {
	src, err := Open(stem, opts)
	if err != nil {
		return nil, err
	}
	defer func() { _ = src.Close() }()

	inv := &Inventory{
		Path:      src.Stem,
		ShapeType: src.ShapeType,
		Encoding:  src.Encoding,
		Kinds:     make(map[string]int),
	}

	for _, f := range src.Fields() {
		inv.Fields = append(inv.Fields, FieldInfo{
			Name:      f.Name,
			Type:      string(f.Type),
			Kind:      f.Kind.String(),
			Size:      f.Size,
			Precision: f.Precision,
		})
	}

	for src.reader.Next() {
		_, raw := src.reader.Shape()
		inv.Kinds[typeName(raw)]++
		inv.Counts.Shapes++
	}
	if err := src.reader.Err(); err != nil {
		return nil, &InputError{Path: src.shpPath, Kind: ErrInputCorrupt, Err: err}
	}

	inv.Counts.Records = src.RecordCount()
	inv.Mismatch = inv.Counts.Mismatch()

	return inv, nil
}
