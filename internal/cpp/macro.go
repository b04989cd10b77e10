package cpp

import (
	"fmt"
	"strings"
)

// maxExpansionDepth bounds nested macro expansion.
const maxExpansionDepth = 200

// Macro is a #define'd name.
type Macro struct {
	Name     string
	FuncLike bool
	Params   []string
	Variadic bool
	Body     []Token
	File     string
	Line     int
	Builtin  bool
}

// parseDefine builds a Macro from the tokens following "#define".
func parseDefine(toks []Token) (*Macro, error) {
	if len(toks) == 0 || toks[0].Kind != Ident {
		return nil, fmt.Errorf("#define without macro name")
	}
	m := &Macro{Name: toks[0].Text, File: toks[0].File, Line: toks[0].Line}
	rest := toks[1:]

	// A '(' immediately after the name (no whitespace) starts a parameter list.
	if len(rest) > 0 && rest[0].Is("(") && !rest[0].Space {
		m.FuncLike = true
		i := 1
		for ; i < len(rest); i++ {
			t := rest[i]
			switch {
			case t.Is(")"):
				m.Body = trimSpace(rest[i+1:])
				return m, nil
			case t.Is(","):
			case t.Is("..."):
				m.Variadic = true
				m.Params = append(m.Params, "__VA_ARGS__")
			case t.Kind == Ident:
				m.Params = append(m.Params, t.Text)
			default:
				return nil, fmt.Errorf("%s: bad parameter %q in macro %s", t.Pos(), t.Text, m.Name)
			}
		}
		return nil, fmt.Errorf("%s: unterminated parameter list in macro %s", toks[0].Pos(), m.Name)
	}
	m.Body = trimSpace(rest)
	return m, nil
}

func trimSpace(toks []Token) []Token {
	out := make([]Token, len(toks))
	copy(out, toks)
	if len(out) > 0 {
		out[0].Space = false
	}
	return out
}

// macroTable holds the currently defined macros.
type macroTable map[string]*Macro

// expand macro-expands toks. active holds macros being expanded so that a
// macro never expands inside itself.
func (mt macroTable) expand(toks []Token, active map[string]bool, depth int) ([]Token, error) {
	if depth > maxExpansionDepth {
		return nil, fmt.Errorf("macro expansion too deep")
	}
	var out []Token
	for i := 0; i < len(toks); i++ {
		t := toks[i]
		m, ok := mt[t.Text]
		if t.Kind != Ident || !ok || active[t.Text] {
			out = append(out, t)
			continue
		}

		if !m.FuncLike {
			body, err := mt.expand(relocate(m.Body, t), with(active, m.Name), depth+1)
			if err != nil {
				return nil, err
			}
			out = append(out, body...)
			continue
		}

		// A function-like macro name not followed by '(' is left alone.
		if i+1 >= len(toks) || !toks[i+1].Is("(") {
			out = append(out, t)
			continue
		}
		args, end, err := collectArgs(toks, i+1)
		if err != nil {
			return nil, fmt.Errorf("%s: macro %s: %w", t.Pos(), m.Name, err)
		}
		body, err := mt.substitute(m, args, active, depth)
		if err != nil {
			return nil, fmt.Errorf("%s: macro %s: %w", t.Pos(), m.Name, err)
		}
		body, err = mt.expand(relocate(body, t), with(active, m.Name), depth+1)
		if err != nil {
			return nil, err
		}
		out = append(out, body...)
		i = end
	}
	return out, nil
}

// collectArgs reads a parenthesised argument list starting at toks[open] and
// returns the arguments and the index of the closing ')'.
func collectArgs(toks []Token, open int) ([][]Token, int, error) {
	var (
		args  [][]Token
		cur   []Token
		depth int
	)
	for i := open + 1; i < len(toks); i++ {
		t := toks[i]
		switch {
		case t.Is("("):
			depth++
		case t.Is(")"):
			if depth == 0 {
				args = append(args, cur)
				if len(args) == 1 && len(args[0]) == 0 {
					args = nil
				}
				return args, i, nil
			}
			depth--
		case t.Is(",") && depth == 0:
			args = append(args, cur)
			cur = nil
			continue
		}
		cur = append(cur, t)
	}
	return nil, 0, fmt.Errorf("unterminated argument list")
}

func (mt macroTable) substitute(m *Macro, args [][]Token, active map[string]bool, depth int) ([]Token, error) {
	nparams := len(m.Params)
	if nparams == 1 && len(args) == 0 {
		args = [][]Token{nil}
	}
	if m.Variadic {
		if len(args) < nparams-1 {
			return nil, fmt.Errorf("want at least %d arguments, got %d", nparams-1, len(args))
		}
		if len(args) >= nparams {
			// Fold the variadic tail back into one argument.
			var tail []Token
			for j, a := range args[nparams-1:] {
				if j > 0 {
					tail = append(tail, Token{Kind: Punct, Text: ","})
				}
				tail = append(tail, a...)
			}
			args = append(args[:nparams-1:nparams-1], tail)
		} else {
			args = append(args, nil)
		}
	} else if len(args) != nparams && !(nparams == 0 && len(args) == 0) {
		return nil, fmt.Errorf("want %d arguments, got %d", nparams, len(args))
	}

	index := map[string]int{}
	for i, p := range m.Params {
		index[p] = i
	}

	var out []Token
	body := m.Body
	for i := 0; i < len(body); i++ {
		t := body[i]
		if t.Is("#") && i+1 < len(body) {
			if n, ok := index[body[i+1].Text]; ok && body[i+1].Kind == Ident {
				out = append(out, stringize(args[n], t))
				i++
				continue
			}
		}
		if t.Is("##") && len(out) > 0 && i+1 < len(body) {
			rhs := []Token{body[i+1]}
			if n, ok := index[body[i+1].Text]; ok && body[i+1].Kind == Ident {
				rhs = args[n]
			}
			i++
			if len(rhs) == 0 {
				continue
			}
			lhs := out[len(out)-1]
			pasted, err := paste(lhs, rhs[0])
			if err != nil {
				return nil, err
			}
			out[len(out)-1] = pasted
			out = append(out, rhs[1:]...)
			continue
		}
		if n, ok := index[t.Text]; ok && t.Kind == Ident {
			// Operands of ## are substituted unexpanded.
			if i+1 < len(body) && body[i+1].Is("##") {
				out = append(out, args[n]...)
				continue
			}
			expanded, err := mt.expand(args[n], active, depth+1)
			if err != nil {
				return nil, err
			}
			if len(expanded) > 0 {
				expanded = append([]Token(nil), expanded...)
				expanded[0].Space = t.Space
			}
			out = append(out, expanded...)
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func stringize(arg []Token, at Token) Token {
	s := Join(arg)
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return Token{Kind: String, Text: `"` + s + `"`, File: at.File, Line: at.Line, Space: at.Space}
}

func paste(a, b Token) (Token, error) {
	text := a.Text + b.Text
	toks, err := Tokenize(a.File, []byte(text))
	if err != nil || len(toks) != 1 {
		return Token{}, fmt.Errorf("pasting %q and %q does not give a valid token", a.Text, b.Text)
	}
	out := toks[0]
	out.File, out.Line, out.Space, out.BOL = a.File, a.Line, a.Space, false
	return out, nil
}

// relocate stamps body tokens with the position of the invocation so that
// diagnostics point at the use site.
func relocate(body []Token, at Token) []Token {
	out := make([]Token, len(body))
	for i, t := range body {
		t.File, t.Line, t.BOL = at.File, at.Line, false
		if i == 0 {
			t.Space = at.Space
		}
		out[i] = t
	}
	return out
}

func with(active map[string]bool, name string) map[string]bool {
	next := make(map[string]bool, len(active)+1)
	for k := range active {
		next[k] = true
	}
	next[name] = true
	return next
}
