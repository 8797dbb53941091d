package refactor

import (
	"fmt"
	"strings"
	"unicode"

	"codeintel/internal/core/errors"
	"codeintel/internal/engine/parser/registry"
	"codeintel/internal/engine/symbols"
)

// Location is where a conflicting binding sits.
type Location struct {
	Path   string `json:"path"`
	Line   int    `json:"line"`
	Column int    `json:"column"`
}

func (l Location) String() string {
	return fmt.Sprintf("%s:%d:%d", l.Path, l.Line, l.Column)
}

// Validate checks that a rename from oldName to newName is well formed for
// every language it touches.
func Validate(oldName, newName string, langs []registry.Descriptor) error {
	if !isIdentifier(oldName) {
		return errors.New(errors.CodeValidationError, fmt.Sprintf("old name %q is not an identifier", oldName))
	}
	if !isIdentifier(newName) {
		return errors.New(errors.CodeValidationError, fmt.Sprintf("new name %q is not an identifier", newName))
	}
	if oldName == newName {
		return errors.New(errors.CodeValidationError, "old and new names are identical")
	}
	for _, d := range langs {
		if d.IsKeyword(newName) {
			err := errors.New(errors.CodeValidationError, fmt.Sprintf("%q is a keyword in %s", newName, d.ID))
			return errors.AddContext(err, errors.CtxLanguage, string(d.ID))
		}
	}
	return nil
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_' || r == '$' || unicode.IsLetter(r):
		case i > 0 && unicode.IsDigit(r):
		default:
			return false
		}
	}
	return true
}

// Collect turns every identifier occurrence of oldName in idx into an edit.
// Strings and comments never produce occurrences, so neither do they here.
func Collect(idx *symbols.FileIndex, oldName, newName string) []Edit {
	occ := idx.Occurrences(oldName)
	edits := make([]Edit, 0, len(occ))
	for _, r := range occ {
		edits = append(edits, Edit{
			Line:      r.Line,
			Column:    r.Column,
			StartByte: r.StartByte,
			EndByte:   r.EndByte,
			OldText:   oldName,
			NewText:   newName,
		})
	}
	return edits
}

// Conflicts returns the bindings of newName that are already visible at some
// occurrence of oldName. Renaming across them would change what the code
// refers to.
func Conflicts(idx *symbols.FileIndex, oldName, newName string) []Location {
	seen := make(map[int]bool)
	var out []Location
	for _, r := range idx.Occurrences(oldName) {
		sym := idx.Lookup(r.Scope, newName)
		if sym == symbols.NoSymbol || seen[sym] {
			continue
		}
		seen[sym] = true
		s := idx.Symbols[sym]
		out = append(out, Location{Path: idx.Path, Line: s.Line, Column: s.Column})
	}
	return out
}

// AmbiguousError reports conflicting bindings with their locations.
func AmbiguousError(oldName, newName string, locs []Location) error {
	parts := make([]string, len(locs))
	for i, l := range locs {
		parts[i] = l.String()
	}
	err := errors.New(errors.CodeAmbiguousRename,
		fmt.Sprintf("renaming %q to %q collides with existing bindings", oldName, newName))
	err = errors.AddContext(err, errors.CtxSymbol, newName)
	return errors.AddContext(err, errors.CtxLocations, strings.Join(parts, ", "))
}
