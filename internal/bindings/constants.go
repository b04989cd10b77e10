package bindings

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"

	"github.com/cros-libva/libva-go/internal/cpp"
)

// maxMacroDepth bounds the constant check through nested macro bodies.
const maxMacroDepth = 32

var floatLiteral = regexp.MustCompile(`^([0-9]+\.[0-9]*|\.[0-9]+|[0-9]+)([eE][-+]?[0-9]+)?[fFlL]?$`)

var constOperators = map[string]bool{
	"(": true, ")": true, "+": true, "-": true, "*": true, "/": true, "%": true,
	"<<": true, ">>": true, "&": true, "|": true, "^": true, "~": true, "!": true,
	"<": true, ">": true, "<=": true, ">=": true, "==": true, "!=": true,
	"&&": true, "||": true, "?": true, ":": true, ",": true,
}

var castKeywords = map[string]bool{
	"unsigned": true, "signed": true, "int": true, "long": true, "short": true, "char": true,
}

var errNotConstant = errors.New("not a constant expression")

func (b *builder) initTable() {
	b.table = make(map[string]*cpp.Macro, len(b.res.Table)+len(b.typedefs))
	for name, m := range b.res.Table {
		b.table[name] = m
	}
	for name := range b.typedefs {
		if _, ok := b.table[name]; !ok {
			b.table[name] = &cpp.Macro{Name: name, Body: []cpp.Token{{Kind: cpp.Ident, Text: "int"}}}
		}
	}
}

func (b *builder) defineConst(name string, v int64) {
	b.consts[name] = v
	text := strconv.FormatInt(v, 10)
	body := []cpp.Token{{Kind: cpp.Number, Text: text}}
	if v < 0 {
		body = []cpp.Token{
			{Kind: cpp.Punct, Text: "("},
			{Kind: cpp.Punct, Text: "-"},
			{Kind: cpp.Number, Text: text[1:]},
			{Kind: cpp.Punct, Text: ")"},
		}
	}
	b.table[name] = &cpp.Macro{Name: name, Body: body}
}

// evalEnumerator evaluates an enumerator initializer.
func (b *builder) evalEnumerator(text string) (int64, error) {
	toks, err := cpp.Tokenize("", []byte(text))
	if err != nil {
		return 0, err
	}
	if !b.isConstant(toks, nil, 0) {
		return 0, fmt.Errorf("%q: %w", text, errNotConstant)
	}
	return cpp.EvalInt(toks, b.table)
}

// isConstant reports whether toks form an integer constant expression built
// from literals, operators, casts, enum constants and macros that are
// themselves constant. params are the parameter names of an enclosing
// function-like macro.
func (b *builder) isConstant(toks []cpp.Token, params map[string]bool, depth int) bool {
	if depth > maxMacroDepth || len(toks) == 0 {
		return false
	}
	for i, t := range toks {
		switch t.Kind {
		case cpp.Number:
			if _, err := cpp.ParseInt(t.Text); err != nil {
				return false
			}
		case cpp.Char:
		case cpp.Punct:
			if !constOperators[t.Text] {
				return false
			}
		case cpp.Ident:
			if !b.constantIdent(toks, i, params, depth) {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func (b *builder) constantIdent(toks []cpp.Token, i int, params map[string]bool, depth int) bool {
	name := toks[i].Text
	if params[name] || castKeywords[name] {
		return true
	}
	if _, ok := b.consts[name]; ok {
		return true
	}
	if b.typedefs[name] {
		// Only as a cast: (VAEntrypoint)0x1000.
		return i > 0 && toks[i-1].Is("(") && i+1 < len(toks) && toks[i+1].Is(")")
	}
	m, ok := b.res.Table[name]
	if !ok {
		return false
	}
	if !m.FuncLike {
		return b.isConstant(m.Body, nil, depth+1)
	}
	inner := map[string]bool{}
	for _, p := range m.Params {
		inner[p] = true
	}
	return b.isConstant(m.Body, inner, depth+1)
}

// macroConstant classifies an object-like macro. Integer constant
// expressions are evaluated; a lone floating literal is kept verbatim.
func (b *builder) macroConstant(m *cpp.Macro) (value, typ string, ok bool) {
	body := m.Body
	if len(body) == 1 && body[0].Kind == cpp.Number {
		if _, err := cpp.ParseInt(body[0].Text); err != nil {
			if floatLiteral.MatchString(body[0].Text) {
				return body[0].Text, "float", true
			}
			return "", "", false
		}
	}
	if !b.isConstant(body, nil, 0) {
		return "", "", false
	}
	v, err := cpp.EvalInt(body, b.table)
	if err != nil {
		return "", "", false
	}
	return strconv.FormatInt(v, 10), "", true
}

func (b *builder) addMacros() error {
	for _, m := range b.res.ObjectMacros() {
		h, ok := b.headers[m.File]
		if !ok {
			continue
		}
		if _, exists := b.set.Lookup(m.Name); exists && len(m.Body) == 1 && m.Body[0].Text == m.Name {
			continue // #define X X after enum X
		}
		value, typ, ok := b.macroConstant(m)
		if !ok {
			continue
		}
		sym := b.symbol(h, m.Name, KindConstant)
		sym.Value, sym.Type = value, typ
		if err := b.set.Add(sym); err != nil {
			return err
		}
	}
	return nil
}
