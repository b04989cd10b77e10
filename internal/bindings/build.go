package bindings

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cros-libva/libva-go/internal/cdecl"
	"github.com/cros-libva/libva-go/internal/cpp"
)

// FeatureLookup attributes a header path to the feature owning it.
type FeatureLookup interface {
	FeatureForHeader(path string) string
}

// Build parses every scanned surface header of res and returns the binding
// set. Declarations that cannot be represented abort the build with a
// *cdecl.UnsupportedError; nothing is dropped silently.
func Build(res *cpp.Result, features FeatureLookup) (*Set, error) {
	b := &builder{
		res:       res,
		features:  features,
		set:       NewSet(),
		headers:   map[string]*cpp.Header{},
		tagOwner:  map[string]string{},
		records:   map[string]*cdecl.Record{},
		typedefs:  map[string]bool{},
		enumOwner: map[*cdecl.Enum]string{},
		consts:    map[string]int64{},
	}

	var decls []located
	for _, h := range res.Headers {
		if h.External {
			continue
		}
		b.headers[h.Path] = h
		ds, err := cdecl.Parse(h.Tokens)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", h.Name, err)
		}
		for _, d := range ds {
			decls = append(decls, located{Decl: d, header: h})
		}
	}

	b.index(decls)
	b.initTable()
	for _, d := range decls {
		if err := b.add(d); err != nil {
			return nil, err
		}
	}
	if err := b.addMacros(); err != nil {
		return nil, err
	}
	return b.set, nil
}

type located struct {
	cdecl.Decl
	header *cpp.Header
}

type builder struct {
	res      *cpp.Result
	features FeatureLookup
	set      *Set
	headers  map[string]*cpp.Header

	// tagOwner maps "struct tag" to the typedef that names it.
	tagOwner map[string]string
	// records maps "struct tag" to its definition.
	records  map[string]*cdecl.Record
	typedefs map[string]bool
	// enumOwner maps anonymous enums to the typedef naming them.
	enumOwner map[*cdecl.Enum]string
	// consts holds evaluated enum constants for later initializers and macros.
	consts map[string]int64
	// table is the macro table used for evaluation: the final preprocessor
	// table plus enum constants and typedef names usable as casts.
	table map[string]*cpp.Macro
}

func tagKey(t cdecl.Type) string {
	switch {
	case t.Record != nil && t.Record.Tag != "":
		return t.Record.Keyword() + " " + t.Record.Tag
	case t.Enum != nil && t.Enum.Tag != "":
		return "enum " + t.Enum.Tag
	case strings.HasPrefix(t.Name, "struct ") || strings.HasPrefix(t.Name, "union ") || strings.HasPrefix(t.Name, "enum "):
		return t.Name
	}
	return ""
}

// namesTag reports whether the typedef is a plain alias of a struct, union
// or enum (no pointer, array or function declarator).
func namesTag(d cdecl.Decl) bool {
	t := d.Type
	if t.Pointer != 0 || len(t.Array) != 0 || t.Func != nil {
		return false
	}
	return t.Record != nil || t.Enum != nil || tagKey(t) != ""
}

func (b *builder) index(decls []located) {
	for _, d := range decls {
		switch d.Kind {
		case cdecl.DeclTypedef:
			b.typedefs[d.Name] = true
			if e := d.Type.Enum; e != nil && e.Tag == "" && namesTag(d.Decl) {
				b.enumOwner[e] = d.Name
			}
			if key := tagKey(d.Type); key != "" && namesTag(d.Decl) {
				if _, ok := b.tagOwner[key]; !ok {
					b.tagOwner[key] = d.Name
				}
			}
		case cdecl.DeclRecord:
			if d.Record.Defined {
				b.records[d.Record.Keyword()+" "+d.Name] = d.Record
			}
		}
	}
}

func (b *builder) symbol(h *cpp.Header, name string, kind Kind) Symbol {
	sym := Symbol{Name: name, GoName: GoName(name), Kind: kind, Header: h.Name}
	if b.features != nil {
		sym.Feature = b.features.FeatureForHeader(h.Path)
	}
	return sym
}

func (b *builder) add(d located) error {
	switch d.Kind {
	case cdecl.DeclRecord:
		return b.addRecord(d)
	case cdecl.DeclEnum:
		return b.addEnum(d)
	case cdecl.DeclTypedef:
		return b.addTypedef(d)
	case cdecl.DeclFunc:
		return b.addFunc(d)
	case cdecl.DeclVar:
		if d.Static {
			return nil
		}
		return &cdecl.UnsupportedError{File: d.File, Line: d.Line, Decl: d.Name, Reason: "global variables cannot be bound"}
	}
	return nil
}

func (b *builder) addRecord(d located) error {
	key := d.Record.Keyword() + " " + d.Name
	if _, ok := b.tagOwner[key]; ok {
		return nil // added with its typedef
	}
	cname := d.Record.Keyword() + "_" + d.Name
	if !d.Record.Defined {
		if _, ok := b.records[key]; ok {
			return nil // defined elsewhere
		}
		sym := b.symbol(d.header, d.Name, KindOpaque)
		sym.CName, sym.Tag = cname, key
		return b.set.Add(sym)
	}
	sym := b.symbol(d.header, d.Name, recordKind(d.Record))
	sym.CName, sym.Tag = cname, key
	sym.Fields = fieldsOf(d.Record)
	sym.Record = d.Record
	return b.set.Add(sym)
}

func recordKind(r *cdecl.Record) Kind {
	if r.Union {
		return KindUnion
	}
	return KindStruct
}

func (b *builder) addEnum(d located) error {
	next := int64(0)
	for _, e := range d.Enum.Consts {
		sym := b.symbol(d.header, e.Name, KindConstant)
		sym.Type = "int"
		if owner, ok := b.enumOwner[d.Enum]; ok {
			sym.Type = owner
		} else if d.Enum.Tag != "" {
			sym.Type = "enum " + d.Enum.Tag
		}
		if e.Value != "" {
			v, err := b.evalEnumerator(e.Value)
			if err != nil {
				return &cdecl.UnsupportedError{File: d.File, Line: e.Line, Decl: e.Name, Reason: "enumerator value: " + err.Error()}
			}
			next = v
		}
		sym.Value = strconv.FormatInt(next, 10)
		b.defineConst(e.Name, next)
		next++
		if err := b.set.Add(sym); err != nil {
			return err
		}
	}

	if d.Name == "" {
		return nil
	}
	key := "enum " + d.Name
	if _, ok := b.tagOwner[key]; ok {
		return nil
	}
	sym := b.symbol(d.header, d.Name, KindEnum)
	sym.CName, sym.Tag = "enum_"+d.Name, key
	return b.set.Add(sym)
}

func (b *builder) addTypedef(d located) error {
	key := tagKey(d.Type)
	if key != "" && namesTag(d.Decl) && b.tagOwner[key] == d.Name {
		switch {
		case strings.HasPrefix(key, "enum") || d.Type.Enum != nil:
			sym := b.symbol(d.header, d.Name, KindEnum)
			sym.Tag = key
			return b.set.Add(sym)
		default:
			rec := d.Record
			if rec == nil || !rec.Defined {
				rec = b.records[key]
			}
			if rec == nil {
				sym := b.symbol(d.header, d.Name, KindOpaque)
				sym.Tag = key
				return b.set.Add(sym)
			}
			sym := b.symbol(d.header, d.Name, recordKind(rec))
			sym.Tag = key
			sym.Fields = fieldsOf(rec)
			sym.Record = rec
			return b.set.Add(sym)
		}
	}
	if d.Type.Record != nil && d.Type.Record.Tag == "" && namesTag(d.Decl) {
		// typedef struct { ... } Name;
		sym := b.symbol(d.header, d.Name, recordKind(d.Type.Record))
		sym.Fields = fieldsOf(d.Type.Record)
		sym.Record = d.Type.Record
		return b.set.Add(sym)
	}
	if d.Type.Enum != nil && d.Type.Enum.Tag == "" && namesTag(d.Decl) {
		return b.set.Add(b.symbol(d.header, d.Name, KindEnum))
	}

	if err := b.checkType(d.Decl, d.Type); err != nil {
		return err
	}
	sym := b.symbol(d.header, d.Name, KindTypedef)
	sym.Type = typeString(d.Type)
	sym.Target = d.Type
	sym.Target.Record, sym.Target.Enum = nil, nil
	return b.set.Add(sym)
}

func (b *builder) addFunc(d located) error {
	if d.Static {
		return nil
	}
	if err := b.checkType(d.Decl, d.Func.Result); err != nil {
		return err
	}
	for _, p := range d.Func.Params {
		if err := b.checkType(d.Decl, p.Type); err != nil {
			return err
		}
	}
	sym := b.symbol(d.header, d.Name, KindFunction)
	sym.Params = paramsOf(d.Func)
	sym.Result = typeString(d.Func.Result)
	sym.Func = d.Func
	return b.set.Add(sym)
}

var builtinTypes = map[string]bool{
	"void": true, "char": true, "signed char": true, "unsigned char": true,
	"short": true, "unsigned short": true, "int": true, "unsigned int": true,
	"long": true, "unsigned long": true, "long long": true, "unsigned long long": true,
	"float": true, "double": true, "_Bool": true,
	"int8_t": true, "int16_t": true, "int32_t": true, "int64_t": true,
	"uint8_t": true, "uint16_t": true, "uint32_t": true, "uint64_t": true,
	"intptr_t": true, "uintptr_t": true, "size_t": true, "ssize_t": true,
	"ptrdiff_t": true, "off_t": true, "wchar_t": true,
}

// checkType rejects types that have no Go mapping.
func (b *builder) checkType(d cdecl.Decl, t cdecl.Type) error {
	if t.Func != nil {
		if err := b.checkType(d, t.Func.Result); err != nil {
			return err
		}
		for _, p := range t.Func.Params {
			if err := b.checkType(d, p.Type); err != nil {
				return err
			}
		}
		return nil
	}
	if t.Record != nil || t.Enum != nil {
		return nil
	}
	switch {
	case t.Name == "long double":
		return &cdecl.UnsupportedError{File: d.File, Line: d.Line, Decl: d.Name, Reason: "long double has no Go equivalent"}
	case builtinTypes[t.Name], b.typedefs[t.Name], tagKey(t) != "":
		return nil
	}
	return &cdecl.UnsupportedError{File: d.File, Line: d.Line, Decl: d.Name, Reason: fmt.Sprintf("unknown type %q", t.Name)}
}
