package shapefile

import (
	"errors"
	"fmt"
)

var (
	ErrInputNotFound = errors.New("input not found")
	ErrInputCorrupt  = errors.New("input corrupt")
)

// InputError reports a geometry or attribute file that is missing or unreadable.
type InputError struct {
	Path string
	Kind error // ErrInputNotFound or ErrInputCorrupt
	Err  error
}

func (e *InputError) Error() string {
	return fmt.Sprintf("%v: %s: %v", e.Kind, e.Path, e.Err)
}

func (e *InputError) Unwrap() []error { return []error{e.Kind, e.Err} }

// CountMismatchError reports differing shape and record counts.
// It is a warning unless the strict pairing policy is in effect.
type CountMismatchError struct {
	Shapes, Records int
}

func (e *CountMismatchError) Error() string {
	return fmt.Sprintf("shp data (%d records) and dbf data (%d records) have different numbers of elements",
		e.Shapes, e.Records)
}
