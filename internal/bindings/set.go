package bindings

import (
	"reflect"
	"sort"

	"github.com/cros-libva/libva-go/internal/cdecl"
)

// Set maps native declaration names to generated symbols. Every name appears
// at most once.
type Set struct {
	syms    map[string]*Symbol
	goNames map[string]string
	tags    map[string]string
}

// NewSet returns an empty set.
func NewSet() *Set {
	return &Set{syms: map[string]*Symbol{}, goNames: map[string]string{}, tags: map[string]string{}}
}

// Add inserts sym. Re-adding an identical declaration, from any header, is a
// no-op that keeps the first header. A definition replaces an earlier opaque
// declaration of the same struct; any other clash is a *DuplicateSymbolError.
func (s *Set) Add(sym Symbol) error {
	if sym.GoName == "" {
		sym.GoName = GoName(sym.Name)
	}
	if cur, ok := s.syms[sym.Name]; ok {
		switch {
		case cur.Kind == KindOpaque && (sym.Kind == KindStruct || sym.Kind == KindUnion):
			s.put(sym)
			return nil
		case sym.Kind == KindOpaque && (cur.Kind == KindStruct || cur.Kind == KindUnion || cur.Kind == KindOpaque):
			return nil
		case sameDeclaration(*cur, sym):
			return nil
		}
		return &DuplicateSymbolError{Name: sym.Name, First: cur.Header, Second: sym.Header}
	}
	if other, ok := s.goNames[sym.GoName]; ok {
		return &DuplicateSymbolError{
			Name:   sym.Name,
			First:  s.syms[other].Header,
			Second: sym.Header,
			Other:  other,
			GoName: sym.GoName,
		}
	}
	s.put(sym)
	return nil
}

func (s *Set) put(sym Symbol) {
	s.syms[sym.Name] = &sym
	s.goNames[sym.GoName] = sym.Name
	if sym.Tag != "" {
		s.tags[sym.Tag] = sym.Name
	}
}

func sameDeclaration(a, b Symbol) bool {
	a.Target, b.Target = cdecl.Type{}, cdecl.Type{}
	a.Func, b.Func = nil, nil
	a.Record, b.Record = nil, nil
	a.Header, b.Header = "", ""
	a.Feature, b.Feature = "", ""
	return reflect.DeepEqual(a, b)
}

// Lookup returns the symbol named name.
func (s *Set) Lookup(name string) (Symbol, bool) {
	sym, ok := s.syms[name]
	if !ok {
		return Symbol{}, false
	}
	return *sym, true
}

// LookupGo returns the symbol whose Go name is goName.
func (s *Set) LookupGo(goName string) (Symbol, bool) {
	name, ok := s.goNames[goName]
	if !ok {
		return Symbol{}, false
	}
	return s.Lookup(name)
}

// Resolve returns the symbol declaring the base type of t: a typedef name or
// a tagged record or enum.
func (s *Set) Resolve(t cdecl.Type) (Symbol, bool) {
	if name, ok := s.tags[t.Name]; ok {
		return s.Lookup(name)
	}
	return s.Lookup(t.Name)
}

// Len returns the number of symbols.
func (s *Set) Len() int {
	return len(s.syms)
}

// Names returns every symbol name in sorted order.
func (s *Set) Names() []string {
	out := make([]string, 0, len(s.syms))
	for name := range s.syms {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Symbols returns every symbol sorted by name.
func (s *Set) Symbols() []Symbol {
	names := s.Names()
	out := make([]Symbol, 0, len(names))
	for _, name := range names {
		out = append(out, *s.syms[name])
	}
	return out
}

// Filter returns the symbols of the given kinds sorted by name.
func (s *Set) Filter(kinds ...Kind) []Symbol {
	want := map[Kind]bool{}
	for _, k := range kinds {
		want[k] = true
	}
	var out []Symbol
	for _, sym := range s.Symbols() {
		if want[sym.Kind] {
			out = append(out, sym)
		}
	}
	return out
}

// Diff returns the names present only in a and only in b, both sorted.
func Diff(a, b *Set) (onlyA, onlyB []string) {
	for _, name := range a.Names() {
		if _, ok := b.syms[name]; !ok {
			onlyA = append(onlyA, name)
		}
	}
	for _, name := range b.Names() {
		if _, ok := a.syms[name]; !ok {
			onlyB = append(onlyB, name)
		}
	}
	return onlyA, onlyB
}
