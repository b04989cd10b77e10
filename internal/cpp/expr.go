package cpp

import (
	"fmt"
	"strconv"
	"strings"
)

// evalCondition evaluates the tokens of an #if/#elif line.
func (mt macroTable) evalCondition(toks []Token) (bool, error) {
	// defined must be resolved before expansion.
	var resolved []Token
	for i := 0; i < len(toks); i++ {
		t := toks[i]
		if !(t.Kind == Ident && t.Text == "defined") {
			resolved = append(resolved, t)
			continue
		}
		var name Token
		switch {
		case i+1 < len(toks) && toks[i+1].Is("("):
			if i+3 >= len(toks) || !toks[i+3].Is(")") {
				return false, fmt.Errorf("%s: malformed defined()", t.Pos())
			}
			name = toks[i+2]
			i += 3
		case i+1 < len(toks):
			name = toks[i+1]
			i++
		default:
			return false, fmt.Errorf("%s: defined without operand", t.Pos())
		}
		val := "0"
		if _, ok := mt[name.Text]; ok {
			val = "1"
		}
		resolved = append(resolved, Token{Kind: Number, Text: val, File: t.File, Line: t.Line})
	}

	expanded, err := mt.expand(resolved, nil, 0)
	if err != nil {
		return false, err
	}
	if len(expanded) == 0 {
		return false, fmt.Errorf("empty condition")
	}

	p := &exprParser{toks: expanded}
	v, err := p.ternary()
	if err != nil {
		return false, err
	}
	if p.pos != len(p.toks) {
		return false, fmt.Errorf("%s: unexpected %q in condition", p.toks[p.pos].Pos(), p.toks[p.pos].Text)
	}
	return v != 0, nil
}

// EvalInt evaluates a constant integer expression after macro expansion.
// Identifiers that are not macros evaluate to 0, as in #if.
func EvalInt(toks []Token, macros map[string]*Macro) (int64, error) {
	expanded, err := macroTable(macros).expand(toks, nil, 0)
	if err != nil {
		return 0, err
	}
	p := &exprParser{toks: expanded}
	v, err := p.ternary()
	if err != nil {
		return 0, err
	}
	if p.pos != len(p.toks) {
		return 0, fmt.Errorf("unexpected %q", p.toks[p.pos].Text)
	}
	return v, nil
}

type exprParser struct {
	toks []Token
	pos  int
}

func (p *exprParser) peek() (Token, bool) {
	if p.pos < len(p.toks) {
		return p.toks[p.pos], true
	}
	return Token{}, false
}

func (p *exprParser) accept(s string) bool {
	if t, ok := p.peek(); ok && t.Kind == Punct && t.Text == s {
		p.pos++
		return true
	}
	return false
}

func (p *exprParser) ternary() (int64, error) {
	cond, err := p.binary(0)
	if err != nil {
		return 0, err
	}
	if !p.accept("?") {
		return cond, nil
	}
	a, err := p.ternary()
	if err != nil {
		return 0, err
	}
	if !p.accept(":") {
		return 0, fmt.Errorf("missing ':' in conditional expression")
	}
	b, err := p.ternary()
	if err != nil {
		return 0, err
	}
	if cond != 0 {
		return a, nil
	}
	return b, nil
}

var precedence = map[string]int{
	"||": 1,
	"&&": 2,
	"|":  3,
	"^":  4,
	"&":  5,
	"==": 6, "!=": 6,
	"<": 7, ">": 7, "<=": 7, ">=": 7,
	"<<": 8, ">>": 8,
	"+": 9, "-": 9,
	"*": 10, "/": 10, "%": 10,
}

func (p *exprParser) binary(minPrec int) (int64, error) {
	lhs, err := p.unary()
	if err != nil {
		return 0, err
	}
	for {
		t, ok := p.peek()
		if !ok || t.Kind != Punct {
			return lhs, nil
		}
		prec, isOp := precedence[t.Text]
		if !isOp || prec <= minPrec {
			return lhs, nil
		}
		p.pos++
		rhs, err := p.binary(prec)
		if err != nil {
			return 0, err
		}
		lhs, err = apply(t.Text, lhs, rhs)
		if err != nil {
			return 0, fmt.Errorf("%s: %w", t.Pos(), err)
		}
	}
}

func apply(op string, a, b int64) (int64, error) {
	bool2int := func(v bool) int64 {
		if v {
			return 1
		}
		return 0
	}
	switch op {
	case "||":
		return bool2int(a != 0 || b != 0), nil
	case "&&":
		return bool2int(a != 0 && b != 0), nil
	case "|":
		return a | b, nil
	case "^":
		return a ^ b, nil
	case "&":
		return a & b, nil
	case "==":
		return bool2int(a == b), nil
	case "!=":
		return bool2int(a != b), nil
	case "<":
		return bool2int(a < b), nil
	case ">":
		return bool2int(a > b), nil
	case "<=":
		return bool2int(a <= b), nil
	case ">=":
		return bool2int(a >= b), nil
	case "<<":
		return a << uint64(b), nil
	case ">>":
		return a >> uint64(b), nil
	case "+":
		return a + b, nil
	case "-":
		return a - b, nil
	case "*":
		return a * b, nil
	case "/", "%":
		if b == 0 {
			return 0, fmt.Errorf("division by zero")
		}
		if op == "/" {
			return a / b, nil
		}
		return a % b, nil
	}
	return 0, fmt.Errorf("unknown operator %q", op)
}

func (p *exprParser) unary() (int64, error) {
	t, ok := p.peek()
	if !ok {
		return 0, fmt.Errorf("unexpected end of expression")
	}
	p.pos++
	switch {
	case t.Is("!"):
		v, err := p.unary()
		if v == 0 {
			return 1, err
		}
		return 0, err
	case t.Is("~"):
		v, err := p.unary()
		return ^v, err
	case t.Is("-"):
		v, err := p.unary()
		return -v, err
	case t.Is("+"):
		return p.unary()
	case t.Is("("):
		if n, ok := p.castPrefix(); ok {
			p.pos += n
			return p.unary()
		}
		v, err := p.ternary()
		if err != nil {
			return 0, err
		}
		if !p.accept(")") {
			return 0, fmt.Errorf("%s: missing ')'", t.Pos())
		}
		return v, nil
	case t.Kind == Number:
		return ParseInt(t.Text)
	case t.Kind == Char:
		return parseChar(t.Text)
	case t.Kind == Ident:
		return 0, nil
	}
	return 0, fmt.Errorf("%s: unexpected %q in expression", t.Pos(), t.Text)
}

var castWords = map[string]bool{
	"unsigned": true, "signed": true, "int": true, "long": true, "short": true,
	"char": true, "uint8_t": true, "uint16_t": true, "uint32_t": true, "uint64_t": true,
	"int8_t": true, "int16_t": true, "int32_t": true, "int64_t": true, "size_t": true,
}

// castPrefix recognises "(unsigned int)" style casts just after '(' and
// returns the number of tokens to skip including ')'.
func (p *exprParser) castPrefix() (int, bool) {
	n := 0
	for p.pos+n < len(p.toks) {
		t := p.toks[p.pos+n]
		if t.Is(")") {
			return n + 1, n > 0
		}
		if t.Kind != Ident || !castWords[t.Text] {
			return 0, false
		}
		n++
	}
	return 0, false
}

// ParseInt parses a C integer literal, ignoring u/l suffixes.
func ParseInt(text string) (int64, error) {
	s := strings.TrimRight(strings.ToLower(text), "ul")
	base := 10
	switch {
	case strings.HasPrefix(s, "0x"):
		base, s = 16, s[2:]
	case strings.HasPrefix(s, "0b"):
		base, s = 2, s[2:]
	case len(s) > 1 && s[0] == '0':
		base, s = 8, s[1:]
	}
	u, err := strconv.ParseUint(s, base, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid integer literal %q", text)
	}
	return int64(u), nil
}

func parseChar(text string) (int64, error) {
	i := strings.IndexByte(text, '\'')
	body := text[i+1 : len(text)-1]
	if body == `\0` {
		return 0, nil
	}
	v, _, tail, err := strconv.UnquoteChar(body, '\'')
	if err != nil || tail != "" {
		return 0, fmt.Errorf("invalid character literal %s", text)
	}
	return int64(v), nil
}
