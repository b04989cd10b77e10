package cpp

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// maxIncludeDepth bounds #include nesting.
const maxIncludeDepth = 64

// Options configure a preprocessing run.
type Options struct {
	// IncludePaths are searched, in order, for both quoted and angle includes.
	IncludePaths []string
	// Defines holds predefined macros as NAME or NAME=VALUE.
	Defines []string
	// Surface decides which resolved headers are part of the binding surface.
	// Headers outside it are recorded but not scanned. Nil means every
	// resolved header is scanned. It also sees the spelled name of a nested
	// include that does not resolve.
	Surface func(path string) bool
}

// Header is one scanned file.
type Header struct {
	Path string
	// Name is the spelling used by the first #include that reached it.
	Name string
	// Tokens are the macro-expanded declaration tokens of this file, with
	// directives and inactive conditional blocks removed.
	Tokens []Token
	// External headers were resolved but are outside the binding surface.
	External bool
}

// Include records one #include edge.
type Include struct {
	From     string
	Name     string
	Path     string // empty when unresolved
	Angled   bool
	Resolved bool
}

// Result is the outcome of preprocessing a wrapper header.
type Result struct {
	Root     string
	Headers  []*Header
	Includes []Include
	// Macros lists the macros defined by scanned headers, in definition order.
	Macros []*Macro
	// Table is the final macro table, including predefined macros.
	Table map[string]*Macro
}

// Header returns the scanned header at path.
func (r *Result) Header(path string) (*Header, bool) {
	for _, h := range r.Headers {
		if h.Path == path {
			return h, true
		}
	}
	return nil, false
}

// Process preprocesses the wrapper header at root. Every #include written in
// the wrapper header must resolve. A nested include that does not resolve is
// an error when it is quoted or its name passes Surface; other unresolved
// angle includes are system headers and are skipped.
func Process(root string, opts Options) (*Result, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(abs); err != nil {
		return nil, &MissingIncludeError{Name: root, From: "", Searched: nil}
	}

	pp := &preprocessor{
		opts:    opts,
		macros:  macroTable{},
		visited: map[string]bool{},
		result:  &Result{Root: abs},
	}
	for _, d := range opts.Defines {
		m, err := predefine(d)
		if err != nil {
			return nil, err
		}
		pp.macros[m.Name] = m
	}

	if err := pp.file(abs, filepath.Base(abs), 0); err != nil {
		return nil, err
	}
	pp.result.Table = pp.macros
	return pp.result, nil
}

func predefine(def string) (*Macro, error) {
	name, value, found := strings.Cut(def, "=")
	if !found {
		value = "1"
	}
	toks, err := Tokenize("<command-line>", []byte(name+" "+value))
	if err != nil {
		return nil, err
	}
	m, err := parseDefine(toks)
	if err != nil {
		return nil, fmt.Errorf("define %q: %w", def, err)
	}
	m.Builtin = true
	return m, nil
}

type preprocessor struct {
	opts    Options
	macros  macroTable
	visited map[string]bool
	result  *Result
}

type condFrame struct {
	parentActive bool
	active       bool
	taken        bool // some branch of this group was taken
	seenElse     bool
	at           Token
}

func (pp *preprocessor) file(path, name string, depth int) error {
	if depth > maxIncludeDepth {
		return fmt.Errorf("%s: #include nested too deeply", path)
	}
	pp.visited[path] = true

	src, err := os.ReadFile(path) // #nosec G304 -- include resolution restricts paths to the search list
	if err != nil {
		return fmt.Errorf("read header: %w", err)
	}
	toks, err := Tokenize(path, src)
	if err != nil {
		return err
	}

	hdr := &Header{Path: path, Name: name}
	pp.result.Headers = append(pp.result.Headers, hdr)

	var (
		conds   []condFrame
		pending []Token
	)
	active := func() bool {
		return len(conds) == 0 || conds[len(conds)-1].active
	}
	flush := func() error {
		if len(pending) == 0 {
			return nil
		}
		expanded, err := pp.macros.expand(pending, nil, 0)
		if err != nil {
			return err
		}
		hdr.Tokens = append(hdr.Tokens, expanded...)
		pending = nil
		return nil
	}

	for i := 0; i < len(toks); {
		t := toks[i]
		if !(t.BOL && t.Is("#")) {
			if active() {
				pending = append(pending, t)
			}
			i++
			continue
		}

		// Directive: '#' up to the next line start.
		j := i + 1
		for j < len(toks) && !toks[j].BOL {
			j++
		}
		line := toks[i+1 : j]
		i = j
		if len(line) == 0 {
			continue // null directive
		}
		if err := flush(); err != nil {
			return err
		}

		dir := line[0].Text
		args := line[1:]
		switch dir {
		case "if", "ifdef", "ifndef":
			frame := condFrame{parentActive: active(), at: line[0]}
			if frame.parentActive {
				ok, err := pp.test(dir, args)
				if err != nil {
					return fmt.Errorf("%s: #%s: %w", line[0].Pos(), dir, err)
				}
				frame.active, frame.taken = ok, ok
			}
			conds = append(conds, frame)
		case "elif":
			if len(conds) == 0 {
				return fmt.Errorf("%s: #elif without #if", line[0].Pos())
			}
			f := &conds[len(conds)-1]
			if f.seenElse {
				return fmt.Errorf("%s: #elif after #else", line[0].Pos())
			}
			f.active = false
			if f.parentActive && !f.taken {
				ok, err := pp.test("if", args)
				if err != nil {
					return fmt.Errorf("%s: #elif: %w", line[0].Pos(), err)
				}
				f.active, f.taken = ok, ok
			}
		case "else":
			if len(conds) == 0 {
				return fmt.Errorf("%s: #else without #if", line[0].Pos())
			}
			f := &conds[len(conds)-1]
			if f.seenElse {
				return fmt.Errorf("%s: duplicate #else", line[0].Pos())
			}
			f.seenElse = true
			f.active = f.parentActive && !f.taken
			f.taken = true
		case "endif":
			if len(conds) == 0 {
				return fmt.Errorf("%s: #endif without #if", line[0].Pos())
			}
			conds = conds[:len(conds)-1]
		default:
			if !active() {
				continue
			}
			if err := pp.directive(hdr, dir, line, depth); err != nil {
				return err
			}
		}
	}
	if len(conds) > 0 {
		return fmt.Errorf("%s: unterminated #%s", conds[0].at.Pos(), conds[0].at.Text)
	}
	return flush()
}

func (pp *preprocessor) test(dir string, args []Token) (bool, error) {
	switch dir {
	case "ifdef", "ifndef":
		if len(args) == 0 || args[0].Kind != Ident {
			return false, fmt.Errorf("expected macro name")
		}
		_, defined := pp.macros[args[0].Text]
		return defined == (dir == "ifdef"), nil
	default:
		return pp.macros.evalCondition(args)
	}
}

func (pp *preprocessor) directive(hdr *Header, dir string, line []Token, depth int) error {
	args := line[1:]
	switch dir {
	case "define":
		m, err := parseDefine(args)
		if err != nil {
			return fmt.Errorf("%s: %w", line[0].Pos(), err)
		}
		pp.macros[m.Name] = m
		if !hdr.External {
			pp.result.Macros = append(pp.result.Macros, m)
		}
	case "undef":
		if len(args) > 0 {
			delete(pp.macros, args[0].Text)
		}
	case "include", "include_next":
		return pp.include(hdr, line, depth)
	case "error":
		return fmt.Errorf("%s: #error %s", line[0].Pos(), Join(args))
	case "pragma", "warning", "line", "ident":
	default:
		return fmt.Errorf("%s: unknown directive #%s", line[0].Pos(), dir)
	}
	return nil
}

func (pp *preprocessor) include(hdr *Header, line []Token, depth int) error {
	args := line[1:]
	if len(args) > 0 && args[0].Kind == Ident {
		expanded, err := pp.macros.expand(args, nil, 0)
		if err != nil {
			return err
		}
		args = expanded
	}
	name, angled, err := headerName(args)
	if err != nil {
		return fmt.Errorf("%s: %w", line[0].Pos(), err)
	}

	path, searched := pp.resolve(name, angled, filepath.Dir(hdr.Path))
	inc := Include{From: hdr.Path, Name: name, Path: path, Angled: angled, Resolved: path != ""}
	pp.result.Includes = append(pp.result.Includes, inc)

	if path == "" {
		// Unresolved angle includes outside the surface are system headers.
		if depth == 0 || !angled || (pp.opts.Surface != nil && pp.opts.Surface(name)) {
			return &MissingIncludeError{Name: name, From: hdr.Path, Line: line[0].Line, Searched: searched}
		}
		return nil
	}
	if pp.visited[path] {
		return nil
	}
	if pp.opts.Surface != nil && !pp.opts.Surface(path) {
		pp.visited[path] = true
		pp.result.Headers = append(pp.result.Headers, &Header{Path: path, Name: name, External: true})
		return nil
	}
	return pp.file(path, name, depth+1)
}

func headerName(args []Token) (string, bool, error) {
	if len(args) == 0 {
		return "", false, fmt.Errorf("#include expects a header name")
	}
	if args[0].Kind == String {
		return strings.Trim(args[0].Text, `"`), false, nil
	}
	if args[0].Is("<") {
		var b strings.Builder
		for _, t := range args[1:] {
			if t.Is(">") {
				return b.String(), true, nil
			}
			b.WriteString(t.Text)
		}
	}
	return "", false, fmt.Errorf("malformed #include %s", Join(args))
}

func (pp *preprocessor) resolve(name string, angled bool, curDir string) (string, []string) {
	var dirs []string
	if !angled {
		dirs = append(dirs, curDir)
	}
	dirs = append(dirs, pp.opts.IncludePaths...)
	for _, d := range dirs {
		p := filepath.Join(d, name)
		if st, err := os.Stat(p); err == nil && !st.IsDir() {
			if abs, err := filepath.Abs(p); err == nil {
				return filepath.Clean(abs), dirs
			}
		}
	}
	return "", dirs
}

// ObjectMacros returns the object-like macros defined by surface headers, in
// name order; redefinitions keep the last definition.
func (r *Result) ObjectMacros() []*Macro {
	last := map[string]*Macro{}
	for _, m := range r.Macros {
		if cur, ok := r.Table[m.Name]; !ok || cur != m {
			continue // #undef'd or redefined later
		}
		if !m.FuncLike {
			last[m.Name] = m
		}
	}
	out := make([]*Macro, 0, len(last))
	for _, m := range last {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
