package gen

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/cros-libva/libva-go/internal/bindings"
	"github.com/cros-libva/libva-go/internal/cdecl"
	"github.com/cros-libva/libva-go/internal/config"
)

const generatedHeader = "// Code generated by vabindgen; DO NOT EDIT.\n"

// group is the slice of the binding set that shares one build constraint:
// the unconditional symbols, or the symbols of one feature.
type group struct {
	feature *config.Feature
	symbols []bindings.Symbol
}

func groupsOf(set *bindings.Set, fs config.FeatureSet) []group {
	base := group{}
	byFeature := map[string]*group{}
	var features []*group
	for _, f := range fs.All() {
		f := f
		g := &group{feature: &f}
		byFeature[f.Name] = g
		features = append(features, g)
	}
	for _, sym := range set.Symbols() {
		if g, ok := byFeature[sym.Feature]; ok {
			g.symbols = append(g.symbols, sym)
			continue
		}
		base.symbols = append(base.symbols, sym)
	}
	out := []group{base}
	for _, g := range features {
		if len(g.symbols) > 0 {
			out = append(out, *g)
		}
	}
	return out
}

// prefix is the file name prefix of the group's files.
func (g group) prefix() string {
	if g.feature == nil {
		return "zva_"
	}
	return "zva_" + g.feature.Name + "_"
}

func (g group) constraint(tags ...string) string {
	if g.feature != nil {
		tags = append(tags, g.feature.BuildTag)
	}
	if len(tags) == 0 {
		return ""
	}
	return "//go:build " + strings.Join(tags, " && ") + "\n"
}

func (g group) typesFile(t config.Target) string {
	return g.prefix() + "types_" + t.String() + ".go"
}

func (g group) funcsFile() string {
	return g.prefix() + "funcs.go"
}

func (g group) kinds(kinds ...bindings.Kind) []bindings.Symbol {
	want := map[bindings.Kind]bool{}
	for _, k := range kinds {
		want[k] = true
	}
	var out []bindings.Symbol
	for _, sym := range g.symbols {
		if want[sym.Kind] {
			out = append(out, sym)
		}
	}
	return out
}

// nestedType names a struct defined inline in a record member. cgo has no
// name for such a struct; a typedef of the member's type gives it one, and
// the external generator then prints the body under GoName.
type nestedType struct {
	GoName string
	CName  string
	// Expr is a C expression of the member's element type.
	Expr string
}

// nestedTypes lists the inline structs of the group's records, outermost
// first.
func (g group) nestedTypes(set *bindings.Set) []nestedType {
	var out []nestedType
	for _, sym := range g.symbols {
		if sym.Record == nil {
			continue
		}
		ctype := sym.Name
		if sym.CName != "" {
			ctype = sym.Tag
		}
		out = appendNested(out, set, sym.GoName, "(("+ctype+" *)0)->", sym.Record)
	}
	return out
}

func appendNested(out []nestedType, set *bindings.Set, prefix, expr string, r *cdecl.Record) []nestedType {
	for _, f := range r.Fields {
		rec := f.Type.Record
		if rec == nil || f.Name == "" || f.Type.Pointer != 0 {
			continue
		}
		name := prefix + "_" + f.Name
		e := expr + f.Name + strings.Repeat("[0]", len(f.Type.Array))
		_, named := set.Resolve(cdecl.Type{Name: rec.Keyword() + " " + rec.Tag})
		// Unions come out of the generator as byte arrays and need no name.
		if !rec.Union && (rec.Tag == "" || !named) {
			out = append(out, nestedType{GoName: name, CName: "vabind_" + name, Expr: e})
		}
		out = appendNested(out, set, name, e+".", rec)
	}
	return out
}

// godefsInput is the input handed to the external generator: a Go file that
// names every type and constant of the group through cgo.
func godefsInput(pkg, wrapper string, g group, nested []nestedType) []byte {
	var b bytes.Buffer
	b.WriteString("//go:build ignore\n\n")
	b.WriteString(generatedHeader + "\n")
	fmt.Fprintf(&b, "package %s\n\n", pkg)
	fmt.Fprintf(&b, "/*\n#include %q\n", wrapper)
	if len(nested) > 0 {
		b.WriteString("\n")
	}
	for _, n := range nested {
		fmt.Fprintf(&b, "typedef __typeof__(%s) %s;\n", n.Expr, n.CName)
	}
	b.WriteString("*/\nimport \"C\"\n")

	types := g.kinds(bindings.KindStruct, bindings.KindUnion, bindings.KindEnum, bindings.KindTypedef, bindings.KindOpaque)
	if len(types)+len(nested) > 0 {
		b.WriteString("\n")
	}
	for _, sym := range types {
		fmt.Fprintf(&b, "type %s C.%s\n", sym.GoName, sym.CRef())
	}
	for _, n := range nested {
		fmt.Fprintf(&b, "type %s C.%s\n", n.GoName, n.CName)
	}

	consts := g.kinds(bindings.KindConstant)
	if len(consts) > 0 {
		b.WriteString("\nconst (\n")
		for _, sym := range consts {
			fmt.Fprintf(&b, "\t%s = C.%s\n", sym.GoName, sym.Name)
		}
		b.WriteString(")\n")
	}
	return b.Bytes()
}

// cgoPreamble is the C part of a cgo file including the wrapper header.
type cgoPreamble struct {
	// wrapperDir is the wrapper directory relative to the output directory.
	wrapperDir string
	wrapper    string
	pkgConfig  []string
	defines    []string
}

func (p cgoPreamble) write(b *bytes.Buffer, extra []string) {
	b.WriteString("/*\n")
	fmt.Fprintf(b, "#cgo CFLAGS: -I${SRCDIR}/%s\n", p.wrapperDir)
	if len(p.pkgConfig) > 0 {
		fmt.Fprintf(b, "#cgo pkg-config: %s\n", strings.Join(p.pkgConfig, " "))
	}
	for _, d := range append(append([]string(nil), p.defines...), extra...) {
		name, value, ok := strings.Cut(d, "=")
		if !ok {
			value = "1"
		}
		fmt.Fprintf(b, "#define %s %s\n", name, value)
	}
	fmt.Fprintf(b, "#include %q\n", p.wrapper)
	b.WriteString("*/\nimport \"C\"\n")
}

// funcsSource renders cgo wrappers for the group's functions. Arguments and
// results are reinterpreted through unsafe.Pointer; the Go types have the
// layout the external generator derived from the same headers.
func funcsSource(pkg string, pre cgoPreamble, g group, m typeMapper) ([]byte, error) {
	funcs := g.kinds(bindings.KindFunction)
	if len(funcs) == 0 {
		return nil, nil
	}

	var b bytes.Buffer
	b.WriteString(generatedHeader + "\n")
	b.WriteString(g.constraint("cgo") + "\n")
	fmt.Fprintf(&b, "package %s\n\n", pkg)
	var extra []string
	if g.feature != nil {
		extra = append(extra, g.feature.Define)
	}
	pre.write(&b, extra)
	b.WriteString("\nimport \"unsafe\"\n")

	for _, fn := range funcs {
		if err := writeWrapper(&b, fn, m); err != nil {
			return nil, fmt.Errorf("wrap %s: %w", fn.Name, err)
		}
	}
	return b.Bytes(), nil
}

func writeWrapper(b *bytes.Buffer, fn bindings.Symbol, m typeMapper) error {
	if fn.Func == nil {
		return fmt.Errorf("no signature recorded")
	}
	names := paramNames(fn.Func)
	params := make([]string, len(names))
	args := make([]string, len(names))
	for i, p := range fn.Func.Params {
		gt, err := m.goType(p.Type)
		if err != nil {
			return err
		}
		params[i] = names[i] + " " + gt
		args[i] = fmt.Sprintf("*(*%s)(unsafe.Pointer(&%s))", m.cgoType(p.Type), names[i])
	}
	result, err := m.goType(fn.Func.Result)
	if err != nil {
		return err
	}

	fmt.Fprintf(b, "\n// %s calls %s.\n", fn.GoName, fn.Name)
	fmt.Fprintf(b, "func %s(%s) %s {\n", fn.GoName, strings.Join(params, ", "), result)
	call := fmt.Sprintf("C.%s(%s)", fn.Name, strings.Join(args, ", "))
	if result == "" {
		fmt.Fprintf(b, "\t%s\n}\n", call)
		return nil
	}
	fmt.Fprintf(b, "\tres := %s\n", call)
	fmt.Fprintf(b, "\treturn *(*%s)(unsafe.Pointer(&res))\n}\n", result)
	return nil
}

// featuresSource records the feature set the bindings were generated with.
func featuresSource(pkg string, fs config.FeatureSet) []byte {
	var b bytes.Buffer
	b.WriteString(generatedHeader + "\n")
	fmt.Fprintf(&b, "package %s\n\n", pkg)
	b.WriteString("// FeatureKey identifies the feature set these bindings were generated with.\n")
	fmt.Fprintf(&b, "const FeatureKey = %q\n", fs.Key())

	all := fs.All()
	if len(all) == 0 {
		return b.Bytes()
	}
	b.WriteString("\nconst (\n")
	for _, f := range all {
		fmt.Fprintf(&b, "\tFeature%s = %t\n", camel(f.Name), f.Enabled)
	}
	b.WriteString(")\n")
	return b.Bytes()
}

// GeneratedNames lists the names the generated package declares besides
// binding symbols.
func GeneratedNames(fs config.FeatureSet) []string {
	out := []string{"FeatureKey"}
	for _, f := range fs.All() {
		out = append(out, "Feature"+camel(f.Name))
	}
	return out
}

func camel(name string) string {
	parts := strings.FieldsFunc(name, func(r rune) bool { return r == '_' || r == '-' })
	for i, p := range parts {
		parts[i] = strings.ToUpper(p[:1]) + p[1:]
	}
	return strings.Join(parts, "")
}

func featureMap(fs config.FeatureSet) map[string]bool {
	out := map[string]bool{}
	for _, f := range fs.All() {
		out[f.Name] = f.Enabled
	}
	return out
}

func targetNames(targets []config.Target) []string {
	out := make([]string, 0, len(targets))
	for _, t := range targets {
		out = append(out, t.String())
	}
	sort.Strings(out)
	return out
}
