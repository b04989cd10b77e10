package bindings

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/cros-libva/libva-go/internal/cdecl"
)

// Kind classifies a generated symbol.
type Kind int

const (
	KindFunction Kind = iota + 1
	KindStruct
	KindUnion
	KindEnum
	KindTypedef
	KindConstant
	// KindOpaque is a struct that is declared but never defined; it is only
	// used through pointers.
	KindOpaque
)

var kindNames = map[Kind]string{
	KindFunction: "function",
	KindStruct:   "struct",
	KindUnion:    "union",
	KindEnum:     "enum",
	KindTypedef:  "typedef",
	KindConstant: "constant",
	KindOpaque:   "opaque",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// MarshalText encodes the kind by name.
func (k Kind) MarshalText() ([]byte, error) {
	s, ok := kindNames[k]
	if !ok {
		return nil, fmt.Errorf("invalid symbol kind %d", int(k))
	}
	return []byte(s), nil
}

// UnmarshalText decodes a kind name.
func (k *Kind) UnmarshalText(b []byte) error {
	for kind, name := range kindNames {
		if name == string(b) {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("unknown symbol kind %q", b)
}

// IsType reports whether the symbol declares a Go type.
func (k Kind) IsType() bool {
	switch k {
	case KindStruct, KindUnion, KindEnum, KindTypedef, KindOpaque:
		return true
	}
	return false
}

// Field is one struct or union member as written in C.
type Field struct {
	Name string `json:"name"`
	Type string `json:"type"`
	Bits string `json:"bits,omitempty"`
}

// Param is one function parameter as written in C.
type Param struct {
	Name string `json:"name,omitempty"`
	Type string `json:"type"`
}

// Symbol is one entry of the generated binding set.
type Symbol struct {
	// Name is the native declaration name.
	Name   string `json:"name"`
	GoName string `json:"go_name"`
	Kind   Kind   `json:"kind"`
	// Header is the include spelling of the declaring header, e.g. "va/va.h".
	Header string `json:"header"`
	// Feature names the feature owning Header; empty for unconditional headers.
	Feature string `json:"feature,omitempty"`
	// CName is the spelling cgo uses for the type, e.g. "struct__VAImage" for
	// an untypedef'd tag. Empty when it equals Name.
	CName string `json:"c_name,omitempty"`
	// Tag is the tagged C spelling of a record or enum, e.g. "struct _VAImage".
	Tag    string  `json:"tag,omitempty"`
	Type   string  `json:"type,omitempty"`
	Fields []Field `json:"fields,omitempty"`
	Params []Param `json:"params,omitempty"`
	Result string  `json:"result,omitempty"`
	Value  string  `json:"value,omitempty"`

	// Target is the aliased type of a typedef.
	Target cdecl.Type `json:"-"`
	// Func is the signature of a function.
	Func *cdecl.Signature `json:"-"`
	// Record is the definition of a struct or union.
	Record *cdecl.Record `json:"-"`
}

// CRef returns the cgo reference for the symbol without the "C." prefix.
func (s Symbol) CRef() string {
	if s.CName != "" {
		return s.CName
	}
	return s.Name
}

// GoName maps a native name to an exported Go identifier: a lower-case first
// letter is upper-cased and a leading underscore gets an X prefix, matching
// what cgo does for field names.
func GoName(name string) string {
	if name == "" {
		return ""
	}
	if name[0] == '_' {
		return "X" + name
	}
	r := []rune(name)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

func fieldsOf(r *cdecl.Record) []Field {
	out := make([]Field, 0, len(r.Fields))
	for _, f := range r.Fields {
		out = append(out, Field{Name: f.Name, Type: typeString(f.Type), Bits: f.Bits})
	}
	return out
}

func paramsOf(sig *cdecl.Signature) []Param {
	out := make([]Param, 0, len(sig.Params))
	for _, p := range sig.Params {
		out = append(out, Param{Name: p.Name, Type: typeString(p.Type)})
	}
	return out
}

// typeString renders a type, spelling inline records by their member list.
// Members are written as C declarators, with array dimensions after the name.
func typeString(t cdecl.Type) string {
	if t.Record != nil && t.Record.Tag == "" {
		var b strings.Builder
		b.WriteString(t.Record.Keyword())
		b.WriteString(" {")
		for _, f := range t.Record.Fields {
			base := f.Type
			base.Array = nil
			b.WriteString(" " + typeString(base))
			if f.Name != "" {
				b.WriteString(" " + f.Name)
			}
			for _, d := range f.Type.Array {
				b.WriteString("[" + d + "]")
			}
			if f.Bits != "" {
				b.WriteString(" : " + f.Bits)
			}
			b.WriteString(";")
		}
		b.WriteString(" }")
		inner := t
		inner.Name = b.String()
		inner.Record = nil
		return inner.String()
	}
	return t.String()
}
