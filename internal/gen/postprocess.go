package gen

import (
	"bytes"
	"fmt"
	"regexp"

	"golang.org/x/tools/imports"

	"github.com/cros-libva/libva-go/internal/bindings"
	"github.com/cros-libva/libva-go/internal/cdecl"
)

var (
	ctypeRef   = regexp.MustCompile(`_Ctype_(struct_|union_|enum_)?([A-Za-z_][A-Za-z0-9_]*)`)
	cgoImport  = regexp.MustCompile(`(?m)^import _cgopackage "runtime/cgo"\n`)
	unresolved = regexp.MustCompile(`\b(_Ctype_[A-Za-z0-9_]+|_cgopackage\.[A-Za-z0-9_]+)`)
)

// incomplete is the Go type of a struct that is declared but never defined.
// It has no size, so it is only usable behind a pointer.
const incomplete = "struct{ _ [0]byte }"

var formatOptions = &imports.Options{Comments: true, TabIndent: true, TabWidth: 8}

// cleanGodefs rewrites raw external generator output: the generator's own
// header, which embeds absolute paths, is replaced by ours, references to C
// types declared in another group or named through nested are renamed to
// their Go names, and incomplete structs become empty opaque structs. Any C
// name left after that would not compile and is an error.
func cleanGodefs(name string, raw []byte, constraint string, set *bindings.Set, nested []nestedType) ([]byte, error) {
	i := bytes.Index(raw, []byte("package "))
	if i < 0 || (i > 0 && raw[i-1] != '\n') {
		return nil, fmt.Errorf("%s: generator output has no package clause", name)
	}
	helpers := make(map[string]string, len(nested))
	for _, n := range nested {
		helpers[n.CName] = n.GoName
	}
	body := ctypeRef.ReplaceAllFunc(raw[i:], func(ref []byte) []byte {
		m := ctypeRef.FindSubmatch(ref)
		key := string(m[2])
		if len(m[1]) > 0 {
			key = string(m[1][:len(m[1])-1]) + " " + key
		} else if goName, ok := helpers[key]; ok {
			return []byte(goName)
		}
		if sym, ok := set.Resolve(cdecl.Type{Name: key}); ok && sym.Kind.IsType() {
			return []byte(sym.GoName)
		}
		return ref
	})
	body = cgoImport.ReplaceAll(body, nil)
	body = bytes.ReplaceAll(body, []byte("_cgopackage.Incomplete"), []byte(incomplete))
	if m := unresolved.Find(body); m != nil {
		return nil, fmt.Errorf("%s: generator output references unresolved C type %s", name, m)
	}

	var b bytes.Buffer
	b.WriteString(generatedHeader + "\n")
	if constraint != "" {
		b.WriteString(constraint + "\n")
	}
	b.Write(body)
	return format(name, b.Bytes())
}

// format runs goimports over generated source.
func format(name string, src []byte) ([]byte, error) {
	out, err := imports.Process(name, src, formatOptions)
	if err != nil {
		return nil, fmt.Errorf("format %s: %w", name, err)
	}
	return out, nil
}
