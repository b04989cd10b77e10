package cdecl

import "strings"

// DeclKind classifies a file-scope declaration.
type DeclKind int

const (
	DeclTypedef DeclKind = iota + 1
	DeclRecord           // struct or union definition or forward declaration
	DeclEnum
	DeclFunc
	DeclVar
)

func (k DeclKind) String() string {
	switch k {
	case DeclTypedef:
		return "typedef"
	case DeclRecord:
		return "record"
	case DeclEnum:
		return "enum"
	case DeclFunc:
		return "function"
	case DeclVar:
		return "variable"
	default:
		return "invalid"
	}
}

// Type is a C type as written in a declaration.
type Type struct {
	// Name is the base type: a keyword sequence ("unsigned int"), a typedef
	// name, or "struct tag" / "union tag" / "enum tag".
	Name  string
	Const bool
	// Pointer is the pointer depth.
	Pointer int
	// Array holds array dimensions, outermost first, as source text.
	Array []string
	// Func is set for function pointer types; Pointer then counts pointers to
	// the function.
	Func *Signature
	// Record or Enum hold an inline definition.
	Record *Record
	Enum   *Enum
}

// IsVoid reports whether t is plain void.
func (t Type) IsVoid() bool {
	return t.Name == "void" && t.Pointer == 0 && t.Func == nil && len(t.Array) == 0
}

// String renders t as C.
func (t Type) String() string {
	var b strings.Builder
	if t.Const {
		b.WriteString("const ")
	}
	if t.Func != nil {
		b.WriteString(t.Func.Result.String())
		b.WriteString(" (")
		b.WriteString(strings.Repeat("*", t.Pointer))
		b.WriteString(")(")
		b.WriteString(t.Func.paramString())
		b.WriteString(")")
		return b.String()
	}
	b.WriteString(t.Name)
	if t.Pointer > 0 {
		b.WriteString(" ")
		b.WriteString(strings.Repeat("*", t.Pointer))
	}
	for _, d := range t.Array {
		b.WriteString("[" + d + "]")
	}
	return b.String()
}

// Field is a struct or union member.
type Field struct {
	Name string // empty for anonymous nested records
	Type Type
	Bits string // bitfield width, empty when not a bitfield
}

// Record is a struct or union body.
type Record struct {
	Union   bool
	Tag     string
	Fields  []Field
	Defined bool // false for forward declarations
}

// Keyword returns "struct" or "union".
func (r *Record) Keyword() string {
	if r.Union {
		return "union"
	}
	return "struct"
}

// Enumerator is one enum constant.
type Enumerator struct {
	Name  string
	Value string // initializer text, empty when implicit
	Line  int
}

// Enum is an enum body.
type Enum struct {
	Tag     string
	Consts  []Enumerator
	Defined bool
}

// Param is a function parameter.
type Param struct {
	Name string
	Type Type
}

// Signature is a function type.
type Signature struct {
	Result   Type
	Params   []Param
	Variadic bool
}

func (s *Signature) paramString() string {
	if len(s.Params) == 0 && !s.Variadic {
		return "void"
	}
	parts := make([]string, 0, len(s.Params)+1)
	for _, p := range s.Params {
		parts = append(parts, p.Type.String())
	}
	if s.Variadic {
		parts = append(parts, "...")
	}
	return strings.Join(parts, ", ")
}

// Decl is one file-scope declaration.
type Decl struct {
	Kind DeclKind
	Name string
	Type Type       // typedef target, variable type
	Func *Signature // DeclFunc
	// Record and Enum are set for DeclRecord/DeclEnum and for typedefs whose
	// target is defined inline.
	Record *Record
	Enum   *Enum
	// Static marks functions with internal linkage (static inline helpers).
	Static bool
	File   string
	Line   int
}
