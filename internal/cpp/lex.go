package cpp

import (
	"fmt"
	"strings"
)

// Kind classifies a preprocessing token.
type Kind int

const (
	Ident Kind = iota + 1
	Number
	Char
	String
	Punct
)

func (k Kind) String() string {
	switch k {
	case Ident:
		return "ident"
	case Number:
		return "number"
	case Char:
		return "char"
	case String:
		return "string"
	case Punct:
		return "punct"
	default:
		return "invalid"
	}
}

// Token is a preprocessing token with its source position.
type Token struct {
	Kind Kind
	Text string
	File string
	Line int

	// BOL is set when the token is the first on its logical line; directives
	// start with a BOL '#'.
	BOL bool
	// Space is set when whitespace precedes the token.
	Space bool
}

func (t Token) String() string {
	return t.Text
}

// Pos renders file:line.
func (t Token) Pos() string {
	return fmt.Sprintf("%s:%d", t.File, t.Line)
}

// Is reports whether t is the punctuator or identifier s.
func (t Token) Is(s string) bool {
	return (t.Kind == Punct || t.Kind == Ident) && t.Text == s
}

var puncts = []string{
	"...", "<<=", ">>=",
	"->", "++", "--", "<<", ">>", "<=", ">=", "==", "!=", "&&", "||",
	"*=", "/=", "%=", "+=", "-=", "&=", "^=", "|=", "##",
}

// Tokenize splits C source into preprocessing tokens. Comments are dropped and
// backslash-newline splices join lines.
func Tokenize(file string, src []byte) ([]Token, error) {
	lx := &lexer{file: file, src: src, line: 1, bol: true}
	var toks []Token
	for {
		tok, ok, err := lx.next()
		if err != nil {
			return nil, err
		}
		if !ok {
			return toks, nil
		}
		toks = append(toks, tok)
	}
}

type lexer struct {
	file  string
	src   []byte
	pos   int
	line  int
	bol   bool
	space bool
}

func (lx *lexer) peek(off int) byte {
	if lx.pos+off < len(lx.src) {
		return lx.src[lx.pos+off]
	}
	return 0
}

func (lx *lexer) errorf(format string, args ...any) error {
	return fmt.Errorf("%s:%d: %s", lx.file, lx.line, fmt.Sprintf(format, args...))
}

func (lx *lexer) skip() error {
	for lx.pos < len(lx.src) {
		c := lx.src[lx.pos]
		switch {
		case c == '\n':
			lx.pos++
			lx.line++
			lx.bol = true
			lx.space = true
		case c == ' ' || c == '\t' || c == '\r' || c == '\f' || c == '\v':
			lx.pos++
			lx.space = true
		case c == '\\' && (lx.peek(1) == '\n' || (lx.peek(1) == '\r' && lx.peek(2) == '\n')):
			if lx.peek(1) == '\r' {
				lx.pos++
			}
			lx.pos += 2
			lx.line++
		case c == '/' && lx.peek(1) == '/':
			for lx.pos < len(lx.src) && lx.src[lx.pos] != '\n' {
				lx.pos++
			}
			lx.space = true
		case c == '/' && lx.peek(1) == '*':
			start := lx.line
			lx.pos += 2
			for {
				if lx.pos >= len(lx.src) {
					return fmt.Errorf("%s:%d: unterminated comment", lx.file, start)
				}
				if lx.src[lx.pos] == '*' && lx.peek(1) == '/' {
					lx.pos += 2
					break
				}
				if lx.src[lx.pos] == '\n' {
					lx.line++
				}
				lx.pos++
			}
			lx.space = true
		default:
			return nil
		}
	}
	return nil
}

func (lx *lexer) next() (Token, bool, error) {
	if err := lx.skip(); err != nil {
		return Token{}, false, err
	}
	if lx.pos >= len(lx.src) {
		return Token{}, false, nil
	}

	tok := Token{File: lx.file, Line: lx.line, BOL: lx.bol, Space: lx.space}
	lx.bol = false
	lx.space = false

	start := lx.pos
	c := lx.src[lx.pos]
	switch {
	case isIdentStart(c):
		for lx.pos < len(lx.src) && isIdentChar(lx.src[lx.pos]) {
			lx.pos++
		}
		word := string(lx.src[start:lx.pos])
		if q := lx.peek(0); (q == '\'' || q == '"') && isLiteralPrefix(word) {
			return lx.quoted(tok, start, q)
		}
		tok.Kind = Ident
		tok.Text = word
	case isDigit(c) || (c == '.' && isDigit(lx.peek(1))):
		lx.pos++
		for lx.pos < len(lx.src) {
			d := lx.src[lx.pos]
			if (d == '+' || d == '-') && strings.ContainsRune("eEpP", rune(lx.src[lx.pos-1])) {
				lx.pos++
				continue
			}
			if !isIdentChar(d) && d != '.' {
				break
			}
			lx.pos++
		}
		tok.Kind = Number
		tok.Text = string(lx.src[start:lx.pos])
	case c == '\'' || c == '"':
		return lx.quoted(tok, start, c)
	default:
		tok.Kind = Punct
		tok.Text = string(c)
		for _, p := range puncts {
			if strings.HasPrefix(string(lx.src[lx.pos:min(lx.pos+3, len(lx.src))]), p) {
				tok.Text = p
				break
			}
		}
		lx.pos += len(tok.Text)
	}
	return tok, true, nil
}

func (lx *lexer) quoted(tok Token, start int, q byte) (Token, bool, error) {
	lx.pos++ // opening quote
	for {
		if lx.pos >= len(lx.src) || lx.src[lx.pos] == '\n' {
			return Token{}, false, lx.errorf("unterminated %c literal", q)
		}
		c := lx.src[lx.pos]
		if c == '\\' {
			lx.pos += 2
			continue
		}
		lx.pos++
		if c == q {
			break
		}
	}
	tok.Kind = String
	if q == '\'' {
		tok.Kind = Char
	}
	tok.Text = string(lx.src[start:lx.pos])
	return tok, true, nil
}

func isLiteralPrefix(s string) bool {
	return s == "L" || s == "u" || s == "U" || s == "u8"
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentChar(c byte) bool {
	return isIdentStart(c) || isDigit(c)
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

// Join renders tokens back to source text, keeping a single space where the
// original had whitespace.
func Join(toks []Token) string {
	var b strings.Builder
	for i, t := range toks {
		if i > 0 && t.Space {
			b.WriteByte(' ')
		}
		b.WriteString(t.Text)
	}
	return b.String()
}
