package cdecl

import (
	"fmt"
	"strings"

	"github.com/cros-libva/libva-go/internal/cpp"
)

// Parse reads the file-scope declarations in toks, which must already be
// preprocessed.
func Parse(toks []cpp.Token) ([]Decl, error) {
	p := &parser{toks: toks}
	if err := p.run(); err != nil {
		return nil, err
	}
	return p.decls, nil
}

type parser struct {
	toks    []cpp.Token
	pos     int
	decls   []Decl
	externC int

	// unsupported is set while parsing specifiers that name a type the
	// generator cannot express; the error is raised once the declarator
	// name is known.
	unsupported string
}

type specs struct {
	typedef bool
	static  bool
	extern  bool
	inline  bool
	base    Type
	at      cpp.Token
}

var storageWords = map[string]bool{
	"typedef": true, "extern": true, "static": true, "inline": true, "__inline": true,
	"__inline__": true, "register": true, "auto": true, "_Noreturn": true,
	"_Thread_local": true, "__thread": true,
}

var qualifierWords = map[string]bool{
	"const": true, "__const": true, "volatile": true, "__volatile__": true,
	"restrict": true, "__restrict": true, "__restrict__": true, "_Atomic": true,
}

var attributeWords = map[string]bool{
	"__attribute__": true, "__attribute": true, "__declspec": true, "__asm__": true,
	"__asm": true, "asm": true, "_Alignas": true, "alignas": true,
}

var basicWords = map[string]bool{
	"void": true, "char": true, "short": true, "int": true, "long": true, "float": true,
	"double": true, "signed": true, "unsigned": true, "_Bool": true, "bool": true,
	"__signed__": true,
}

var unsupportedWords = map[string]string{
	"_Complex":   "complex floating types",
	"_Imaginary": "imaginary floating types",
	"__int128":   "128-bit integers",
	"_BitInt":    "bit-precise integers",
}

func (p *parser) peek() cpp.Token {
	if p.pos < len(p.toks) {
		return p.toks[p.pos]
	}
	return cpp.Token{}
}

func (p *parser) peekAt(off int) cpp.Token {
	if p.pos+off < len(p.toks) {
		return p.toks[p.pos+off]
	}
	return cpp.Token{}
}

func (p *parser) peekIs(s string) bool {
	t := p.peek()
	return t.Kind == cpp.Punct && t.Text == s
}

func (p *parser) accept(s string) bool {
	if p.peekIs(s) {
		p.pos++
		return true
	}
	return false
}

func (p *parser) eof() bool {
	return p.pos >= len(p.toks)
}

func (p *parser) errorf(format string, args ...any) error {
	t := p.peek()
	if p.eof() && len(p.toks) > 0 {
		t = p.toks[len(p.toks)-1]
	}
	return &SyntaxError{File: t.File, Line: t.Line, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) run() error {
	for !p.eof() {
		t := p.peek()
		switch {
		case t.Is(";"):
			p.pos++
		case t.Is("extern") && p.peekAt(1).Kind == cpp.String:
			p.pos += 2
			if p.accept("{") {
				p.externC++
			}
		case t.Is("}") && p.externC > 0:
			p.pos++
			p.externC--
		case t.Is("_Static_assert") || t.Is("static_assert"):
			p.skipUntil(";")
		default:
			if err := p.declaration(); err != nil {
				return err
			}
		}
	}
	if p.externC > 0 {
		return p.errorf("unterminated extern block")
	}
	return nil
}

func (p *parser) declaration() error {
	p.unsupported = ""
	sp, err := p.specifiers(true)
	if err != nil {
		return err
	}
	p.emitTagged(sp)

	if p.accept(";") {
		return nil
	}

	for {
		name, typ, fn, err := p.declarator(sp.base, false)
		if err != nil {
			return err
		}
		if p.unsupported != "" {
			return &UnsupportedError{File: sp.at.File, Line: sp.at.Line, Decl: name, Reason: p.unsupported}
		}
		p.skipAttributes()

		d := Decl{Name: name, File: sp.at.File, Line: sp.at.Line, Static: sp.static}
		switch {
		case sp.typedef && fn != nil:
			d.Kind = DeclTypedef
			d.Type = Type{Func: fn}
		case sp.typedef:
			d.Kind = DeclTypedef
			d.Type = typ
			d.Record = typ.Record
			d.Enum = typ.Enum
		case fn != nil:
			d.Kind = DeclFunc
			d.Func = fn
			if fn.Variadic {
				return &UnsupportedError{File: d.File, Line: d.Line, Decl: name, Reason: "variadic function"}
			}
			if t := p.peek(); !p.eof() && !t.Is(";") && !t.Is(",") && !t.Is("{") {
				return &UnsupportedError{File: d.File, Line: d.Line, Decl: name, Reason: "K&R style parameter declarations"}
			}
			if p.peekIs("{") {
				// Inline definition in a header.
				p.skipBalanced("{", "}")
				if sp.inline && !sp.extern {
					d.Static = true
				}
				p.decls = append(p.decls, d)
				return nil
			}
		default:
			d.Kind = DeclVar
			d.Type = typ
		}
		p.decls = append(p.decls, d)

		if p.accept("=") {
			p.skipInitializer()
		}
		if p.accept(",") {
			continue
		}
		if !p.accept(";") {
			return p.errorf("expected ';' after declaration of %s, found %q", name, p.peek().Text)
		}
		return nil
	}
}

// emitTagged records struct/union/enum definitions made inside specifiers.
func (p *parser) emitTagged(sp specs) {
	if r := sp.base.Record; r != nil && r.Tag != "" {
		p.decls = append(p.decls, Decl{Kind: DeclRecord, Name: r.Tag, Record: r, File: sp.at.File, Line: sp.at.Line})
	}
	if e := sp.base.Enum; e != nil && e.Defined {
		p.decls = append(p.decls, Decl{Kind: DeclEnum, Name: e.Tag, Enum: e, File: sp.at.File, Line: sp.at.Line})
	}
}

func (p *parser) specifiers(allowStorage bool) (specs, error) {
	sp := specs{at: p.peek()}
	var (
		words    []string
		typeName string
	)
	hasType := func() bool {
		return len(words) > 0 || typeName != "" || sp.base.Record != nil || sp.base.Enum != nil
	}

loop:
	for !p.eof() {
		t := p.peek()
		if t.Kind != cpp.Ident {
			break
		}
		switch {
		case storageWords[t.Text]:
			if !allowStorage {
				return sp, p.errorf("storage class %q not allowed here", t.Text)
			}
			switch t.Text {
			case "typedef":
				sp.typedef = true
			case "static":
				sp.static = true
			case "extern":
				sp.extern = true
			case "inline", "__inline", "__inline__":
				sp.inline = true
			}
			p.pos++
		case qualifierWords[t.Text]:
			if t.Text == "const" || t.Text == "__const" {
				sp.base.Const = true
			}
			p.pos++
		case attributeWords[t.Text]:
			p.skipAttributes()
		case t.Text == "__extension__":
			p.pos++
		case unsupportedWords[t.Text] != "":
			p.unsupported = unsupportedWords[t.Text]
			words = append(words, t.Text)
			p.pos++
		case t.Text == "struct" || t.Text == "union":
			if hasType() {
				break loop
			}
			rec, err := p.record()
			if err != nil {
				return sp, err
			}
			sp.base.Record = rec
			sp.base.Name = strings.TrimSpace(rec.Keyword() + " " + rec.Tag)
		case t.Text == "enum":
			if hasType() {
				break loop
			}
			en, err := p.enum()
			if err != nil {
				return sp, err
			}
			sp.base.Enum = en
			sp.base.Name = strings.TrimSpace("enum " + en.Tag)
		case basicWords[t.Text]:
			if typeName != "" {
				break loop
			}
			words = append(words, t.Text)
			p.pos++
		default:
			if hasType() {
				break loop
			}
			typeName = t.Text
			p.pos++
		}
	}

	switch {
	case sp.base.Record != nil || sp.base.Enum != nil:
	case typeName != "":
		sp.base.Name = typeName
	case len(words) > 0:
		sp.base.Name = normalizeBasic(words)
	default:
		return sp, p.errorf("expected type specifier, found %q", p.peek().Text)
	}
	return sp, nil
}

// normalizeBasic canonicalises a keyword type such as "long unsigned int".
func normalizeBasic(words []string) string {
	var unsigned, signed, short, char, void, float, double, boolean bool
	longs := 0
	var other []string
	for _, w := range words {
		switch w {
		case "unsigned":
			unsigned = true
		case "signed", "__signed__":
			signed = true
		case "short":
			short = true
		case "long":
			longs++
		case "char":
			char = true
		case "int":
		case "void":
			void = true
		case "float":
			float = true
		case "double":
			double = true
		case "_Bool", "bool":
			boolean = true
		default:
			other = append(other, w)
		}
	}
	switch {
	case len(other) > 0:
		return strings.Join(words, " ")
	case void:
		return "void"
	case boolean:
		return "_Bool"
	case float:
		return "float"
	case double && longs > 0:
		return "long double"
	case double:
		return "double"
	}

	base := "int"
	switch {
	case char:
		base = "char"
		if signed {
			return "signed char"
		}
	case short:
		base = "short"
	case longs == 1:
		base = "long"
	case longs >= 2:
		base = "long long"
	}
	if unsigned {
		return "unsigned " + base
	}
	return base
}

func (p *parser) record() (*Record, error) {
	kw := p.peek().Text
	p.pos++
	p.skipAttributes()
	rec := &Record{Union: kw == "union"}
	if t := p.peek(); t.Kind == cpp.Ident && !attributeWords[t.Text] {
		rec.Tag = t.Text
		p.pos++
	}
	p.skipAttributes()
	if !p.accept("{") {
		if rec.Tag == "" {
			return nil, p.errorf("anonymous %s without body", kw)
		}
		return rec, nil
	}
	rec.Defined = true
	for !p.accept("}") {
		if p.eof() {
			return nil, p.errorf("unterminated %s %s", kw, rec.Tag)
		}
		if p.accept(";") {
			continue
		}
		fs, err := p.specifiers(false)
		if err != nil {
			return nil, err
		}
		if p.accept(";") {
			if fs.base.Record != nil || fs.base.Enum != nil {
				rec.Fields = append(rec.Fields, Field{Type: fs.base})
			}
			continue
		}
		for {
			var f Field
			if p.peekIs(":") {
				f.Type = fs.base
			} else {
				name, typ, fn, err := p.declarator(fs.base, false)
				if err != nil {
					return nil, err
				}
				if fn != nil {
					return nil, p.errorf("function member %s in %s %s", name, kw, rec.Tag)
				}
				f.Name, f.Type = name, typ
			}
			if p.accept(":") {
				f.Bits = p.collectUntil(",", ";")
			}
			p.skipAttributes()
			if p.unsupported != "" {
				return nil, &UnsupportedError{File: fs.at.File, Line: fs.at.Line, Decl: rec.Tag + "." + f.Name, Reason: p.unsupported}
			}
			rec.Fields = append(rec.Fields, f)
			if p.accept(",") {
				continue
			}
			if !p.accept(";") {
				return nil, p.errorf("expected ';' after member %s, found %q", f.Name, p.peek().Text)
			}
			break
		}
	}
	p.skipAttributes()
	return rec, nil
}

func (p *parser) enum() (*Enum, error) {
	p.pos++ // enum
	p.skipAttributes()
	en := &Enum{}
	if t := p.peek(); t.Kind == cpp.Ident && !attributeWords[t.Text] {
		en.Tag = t.Text
		p.pos++
	}
	if p.accept(":") {
		// Fixed underlying type.
		for !p.eof() && !p.peekIs("{") && !p.peekIs(";") {
			p.pos++
		}
	}
	if !p.accept("{") {
		return en, nil
	}
	en.Defined = true
	for !p.accept("}") {
		t := p.peek()
		if t.Kind != cpp.Ident {
			return nil, p.errorf("expected enumerator, found %q", t.Text)
		}
		p.pos++
		p.skipAttributes()
		e := Enumerator{Name: t.Text, Line: t.Line}
		if p.accept("=") {
			e.Value = p.collectUntil(",", "}")
		}
		en.Consts = append(en.Consts, e)
		if !p.accept(",") && !p.peekIs("}") {
			return nil, p.errorf("expected ',' or '}' after enumerator %s", e.Name)
		}
	}
	p.skipAttributes()
	return en, nil
}

// declarator parses pointers, the declared name and array/function suffixes.
// It returns a non-nil signature when the declarator declares a function.
func (p *parser) declarator(base Type, abstract bool) (string, Type, *Signature, error) {
	t := base
	t.Pointer += p.pointers()
	p.skipAttributes()

	if p.peekIs("(") && (p.peekAt(1).Is("*") || p.peekAt(1).Is("^")) {
		p.pos++
		n := p.pointers()
		p.skipAttributes()
		name := ""
		if id := p.peek(); id.Kind == cpp.Ident {
			name = id.Text
			p.pos++
		}
		var dims []string
		for p.peekIs("[") {
			dims = append(dims, p.arrayDim())
		}
		if !p.accept(")") {
			return "", Type{}, nil, p.errorf("expected ')' in declarator %s", name)
		}
		if !p.peekIs("(") {
			return "", Type{}, nil, &UnsupportedError{File: p.peek().File, Line: p.peek().Line, Decl: name, Reason: "parenthesised pointer declarator"}
		}
		sig, err := p.params()
		if err != nil {
			return "", Type{}, nil, err
		}
		sig.Result = t
		sig.Result.Record, sig.Result.Enum = nil, nil
		return name, Type{Func: sig, Pointer: n, Array: dims}, nil, nil
	}

	name := ""
	if id := p.peek(); id.Kind == cpp.Ident && !qualifierWords[id.Text] {
		name = id.Text
		p.pos++
	} else if !abstract {
		return "", Type{}, nil, p.errorf("expected identifier, found %q", id.Text)
	}
	p.skipAttributes()

	if p.peekIs("(") {
		sig, err := p.params()
		if err != nil {
			return "", Type{}, nil, err
		}
		t.Record, t.Enum = nil, nil
		sig.Result = t
		p.skipAttributes()
		return name, Type{}, sig, nil
	}
	for p.peekIs("[") {
		t.Array = append(t.Array, p.arrayDim())
	}
	return name, t, nil, nil
}

func (p *parser) params() (*Signature, error) {
	p.pos++ // (
	sig := &Signature{}
	if p.accept(")") {
		return sig, nil
	}
	if p.peek().Is("void") && p.peekAt(1).Is(")") {
		p.pos += 2
		return sig, nil
	}
	for {
		if p.accept("...") {
			sig.Variadic = true
		} else {
			ps, err := p.specifiers(true)
			if err != nil {
				return nil, err
			}
			name, typ, fn, err := p.declarator(ps.base, true)
			if err != nil {
				return nil, err
			}
			switch {
			case fn != nil:
				typ = Type{Func: fn, Pointer: 1}
			case len(typ.Array) > 0:
				typ.Pointer++
				typ.Array = typ.Array[1:]
			}
			typ.Record, typ.Enum = nil, nil
			sig.Params = append(sig.Params, Param{Name: name, Type: typ})
		}
		if p.accept(")") {
			return sig, nil
		}
		if !p.accept(",") {
			return nil, p.errorf("expected ',' or ')' in parameter list, found %q", p.peek().Text)
		}
	}
}

func (p *parser) pointers() int {
	n := 0
	for {
		switch t := p.peek(); {
		case t.Is("*"):
			n++
			p.pos++
		case t.Kind == cpp.Ident && qualifierWords[t.Text]:
			p.pos++
		case t.Kind == cpp.Ident && attributeWords[t.Text]:
			p.skipAttributes()
		default:
			return n
		}
	}
}

func (p *parser) arrayDim() string {
	p.pos++ // [
	var dim []cpp.Token
	depth := 0
	for !p.eof() {
		t := p.peek()
		p.pos++
		if t.Is("[") {
			depth++
		}
		if t.Is("]") {
			if depth == 0 {
				break
			}
			depth--
		}
		dim = append(dim, t)
	}
	return cpp.Join(dim)
}

// skipAttributes skips GNU/MS attribute syntax: __attribute__((...)),
// __declspec(...), __asm__("...").
func (p *parser) skipAttributes() {
	for {
		t := p.peek()
		if t.Kind != cpp.Ident || !attributeWords[t.Text] {
			return
		}
		p.pos++
		if p.peekIs("(") {
			p.skipBalanced("(", ")")
		}
	}
}

func (p *parser) skipBalanced(open, close string) {
	depth := 0
	for !p.eof() {
		t := p.peek()
		p.pos++
		switch {
		case t.Is(open):
			depth++
		case t.Is(close):
			depth--
			if depth == 0 {
				return
			}
		}
	}
}

func (p *parser) skipInitializer() {
	depth := 0
	for !p.eof() {
		t := p.peek()
		if depth == 0 && (t.Is(",") || t.Is(";")) {
			return
		}
		switch {
		case t.Is("(") || t.Is("{") || t.Is("["):
			depth++
		case t.Is(")") || t.Is("}") || t.Is("]"):
			depth--
		}
		p.pos++
	}
}

func (p *parser) skipUntil(s string) {
	for !p.eof() && !p.peekIs(s) {
		p.pos++
	}
	p.accept(s)
}

// collectUntil gathers tokens up to (not including) any stop punctuator at
// nesting depth zero and returns them as text.
func (p *parser) collectUntil(stops ...string) string {
	var out []cpp.Token
	depth := 0
	for !p.eof() {
		t := p.peek()
		if depth == 0 {
			for _, s := range stops {
				if t.Kind == cpp.Punct && t.Text == s {
					return cpp.Join(out)
				}
			}
		}
		switch {
		case t.Is("(") || t.Is("["):
			depth++
		case t.Is(")") || t.Is("]"):
			depth--
		}
		out = append(out, t)
		p.pos++
	}
	return cpp.Join(out)
}
