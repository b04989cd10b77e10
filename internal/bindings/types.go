package bindings

import (
	"errors"
	"fmt"
)

// ErrNotBuilt reports that the generated bindings are missing from the
// output package or were not linked into the current binary.
var ErrNotBuilt = errors.New("libva-go/internal/bindings: native bindings not built")

// DuplicateSymbolError reports two different declarations of one name, or two
// names that map to the same Go identifier.
type DuplicateSymbolError struct {
	Name   string
	First  string // header of the symbol already in the set
	Second string
	// Other and GoName are set when two native names map to one Go name.
	Other  string
	GoName string
}

func (e *DuplicateSymbolError) Error() string {
	if e.GoName != "" {
		return fmt.Sprintf("%s (%s) and %s (%s) both map to Go name %s", e.Other, e.First, e.Name, e.Second, e.GoName)
	}
	return fmt.Sprintf("duplicate symbol %s declared in %s and %s", e.Name, e.First, e.Second)
}
