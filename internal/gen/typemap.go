package gen

import (
	"fmt"
	"go/token"
	"strings"

	"github.com/cros-libva/libva-go/internal/bindings"
	"github.com/cros-libva/libva-go/internal/cdecl"
)

// goBasic maps C basic types to Go types of the same size and signedness on
// the LP64 and ILP32 Linux ABIs.
var goBasic = map[string]string{
	"char":               "int8",
	"signed char":        "int8",
	"unsigned char":      "uint8",
	"short":              "int16",
	"unsigned short":     "uint16",
	"int":                "int32",
	"unsigned int":       "uint32",
	"long":               "int",
	"unsigned long":      "uint",
	"long long":          "int64",
	"unsigned long long": "uint64",
	"float":              "float32",
	"double":             "float64",
	"_Bool":              "bool",
	"int8_t":             "int8",
	"int16_t":            "int16",
	"int32_t":            "int32",
	"int64_t":            "int64",
	"uint8_t":            "uint8",
	"uint16_t":           "uint16",
	"uint32_t":           "uint32",
	"uint64_t":           "uint64",
	"intptr_t":           "int",
	"uintptr_t":          "uintptr",
	"size_t":             "uint",
	"ssize_t":            "int",
	"ptrdiff_t":          "int",
	"off_t":              "int64",
	"wchar_t":            "int32",
}

// cgoBasic maps C basic types to their cgo names where cgo abbreviates them.
var cgoBasic = map[string]string{
	"signed char":        "schar",
	"unsigned char":      "uchar",
	"unsigned short":     "ushort",
	"unsigned int":       "uint",
	"unsigned long":      "ulong",
	"long long":          "longlong",
	"unsigned long long": "ulonglong",
}

// typeMapper renders C types as Go and cgo type expressions.
type typeMapper struct {
	set *bindings.Set
}

// goType returns the Go type used in a wrapper signature for t.
func (m typeMapper) goType(t cdecl.Type) (string, error) {
	if t.Func != nil {
		return stars(t.Pointer-1) + "unsafe.Pointer", nil
	}
	if t.Name == "void" {
		if t.Pointer == 0 {
			return "", nil
		}
		return stars(t.Pointer-1) + "unsafe.Pointer", nil
	}
	if g, ok := goBasic[t.Name]; ok {
		return stars(t.Pointer) + g, nil
	}
	sym, ok := m.set.Resolve(t)
	if !ok || !sym.Kind.IsType() {
		return "", fmt.Errorf("no Go type for %q", t.Name)
	}
	return stars(t.Pointer) + sym.GoName, nil
}

// cgoType returns the cgo spelling of t, e.g. *C.struct__VAImage.
func (m typeMapper) cgoType(t cdecl.Type) string {
	switch {
	case t.Func != nil:
		return stars(t.Pointer) + "[0]byte"
	case t.Name == "void":
		return stars(t.Pointer-1) + "unsafe.Pointer"
	}
	name := t.Name
	if short, ok := cgoBasic[name]; ok {
		name = short
	}
	for _, kw := range []string{"struct ", "union ", "enum "} {
		if strings.HasPrefix(name, kw) {
			name = strings.TrimSpace(kw) + "_" + strings.TrimPrefix(name, kw)
		}
	}
	return stars(t.Pointer) + "C." + name
}

func stars(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("*", n)
}

// paramNames returns Go parameter names for sig: C names where usable,
// p<i> otherwise.
func paramNames(sig *cdecl.Signature) []string {
	names := make([]string, len(sig.Params))
	used := map[string]bool{}
	for i, p := range sig.Params {
		name := p.Name
		switch {
		case name == "":
			name = fmt.Sprintf("p%d", i)
		case token.IsKeyword(name), reserved[name]:
			name += "_"
		}
		for used[name] {
			name += "_"
		}
		used[name] = true
		names[i] = name
	}
	return names
}

// reserved are identifiers the wrapper body uses.
var reserved = map[string]bool{"C": true, "unsafe": true, "res": true}
