// Package refcheck verifies that consuming code only references names the
// generated bindings provide, and that only permitted packages import them.
package refcheck

import (
	"context"
	"errors"
	"fmt"
	"go/ast"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/mod/modfile"
	"golang.org/x/tools/go/packages"

	"github.com/cros-libva/libva-go/internal/bindings"
	"github.com/cros-libva/libva-go/pkg/vabind/logging"
)

// Options configure a check.
type Options struct {
	// Dir is the module root packages are loaded from.
	Dir string
	// Patterns select consuming packages; empty means "./...".
	Patterns []string
	// Tags are the build tags consuming code is compiled with.
	Tags []string
	// Env is added to the environment of the go command.
	Env []string
	// Generated is the import path of the generated package.
	Generated string
	// Visibility lists import path patterns allowed to import Generated. A
	// pattern ending in "/..." also matches every package below it. Empty
	// means any package.
	Visibility []string
	// Extra are generated names that are not binding symbols, such as
	// FeatureKey.
	Extra  []string
	Logger logging.Logger
}

// Ref is one selector on the generated package.
type Ref struct {
	Name    string
	Pos     string
	Package string
}

// Report lists what a successful check saw.
type Report struct {
	// Importers are the packages importing the generated package.
	Importers []string
	Refs      []Ref
}

// MissingSymbolsError lists references to names the bindings do not provide.
type MissingSymbolsError struct {
	Refs []Ref
}

func (e *MissingSymbolsError) Error() string {
	lines := make([]string, 0, len(e.Refs))
	for _, r := range e.Refs {
		lines = append(lines, fmt.Sprintf("%s: %s not in generated bindings", r.Pos, r.Name))
	}
	return fmt.Sprintf("%d missing symbol reference(s):\n%s", len(e.Refs), strings.Join(lines, "\n"))
}

// Names returns the distinct missing names, sorted.
func (e *MissingSymbolsError) Names() []string {
	seen := map[string]bool{}
	var out []string
	for _, r := range e.Refs {
		if !seen[r.Name] {
			seen[r.Name] = true
			out = append(out, r.Name)
		}
	}
	sort.Strings(out)
	return out
}

// VisibilityError lists packages importing the generated package without
// being allowed to.
type VisibilityError struct {
	Generated string
	Packages  []string
}

func (e *VisibilityError) Error() string {
	return fmt.Sprintf("%s imported by packages outside its visibility: %s", e.Generated, strings.Join(e.Packages, ", "))
}

// Check loads the consuming packages and verifies every reference to the
// generated package against set.
func Check(ctx context.Context, set *bindings.Set, opts Options) (*Report, error) {
	if opts.Generated == "" {
		return nil, errors.New("refcheck: generated package path is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.New(nil)
	}
	patterns := opts.Patterns
	if len(patterns) == 0 {
		patterns = []string{"./..."}
	}

	cfg := &packages.Config{
		Context: ctx,
		Mode:    packages.NeedName | packages.NeedFiles | packages.NeedSyntax | packages.NeedImports,
		Dir:     opts.Dir,
		Tests:   true,
	}
	if len(opts.Env) > 0 {
		cfg.Env = append(os.Environ(), opts.Env...)
	}
	if len(opts.Tags) > 0 {
		cfg.BuildFlags = []string{"-tags=" + strings.Join(opts.Tags, ",")}
	}
	pkgs, err := packages.Load(cfg, patterns...)
	if err != nil {
		return nil, fmt.Errorf("load packages: %w", err)
	}

	known := map[string]bool{}
	for _, n := range opts.Extra {
		known[n] = true
	}

	var (
		report    Report
		missing   []Ref
		hidden    []string
		seenPkg   = map[string]bool{}
		seenRef   = map[string]bool{}
		parseErrs []string
	)
	for _, pkg := range pkgs {
		for _, e := range pkg.Errors {
			if e.Kind == packages.ParseError {
				parseErrs = append(parseErrs, e.Error())
				continue
			}
			logger.Debug(ctx, "package load error", "package", pkg.PkgPath, "error", e.Error())
		}
		if pkg.PkgPath == opts.Generated {
			continue
		}

		importer := false
		for _, file := range pkg.Syntax {
			local := localName(file, opts.Generated)
			if local == "" {
				continue
			}
			importer = true
			ast.Inspect(file, func(n ast.Node) bool {
				sel, ok := n.(*ast.SelectorExpr)
				if !ok {
					return true
				}
				id, ok := sel.X.(*ast.Ident)
				if !ok || id.Name != local {
					return true
				}
				pos := pkg.Fset.Position(sel.Sel.Pos()).String()
				if seenRef[pos] {
					return true
				}
				seenRef[pos] = true
				ref := Ref{Name: sel.Sel.Name, Pos: pos, Package: pkg.PkgPath}
				report.Refs = append(report.Refs, ref)
				if _, ok := set.LookupGo(ref.Name); !ok && !known[ref.Name] {
					missing = append(missing, ref)
				}
				return true
			})
		}
		if !importer || seenPkg[pkg.PkgPath] {
			continue
		}
		seenPkg[pkg.PkgPath] = true
		report.Importers = append(report.Importers, pkg.PkgPath)
		if !Visible(pkg.PkgPath, opts.Visibility) {
			hidden = append(hidden, pkg.PkgPath)
		}
	}

	if len(parseErrs) > 0 {
		return nil, fmt.Errorf("parse consuming packages:\n%s", strings.Join(parseErrs, "\n"))
	}
	sort.Strings(report.Importers)
	sort.Slice(report.Refs, func(i, j int) bool { return report.Refs[i].Pos < report.Refs[j].Pos })
	if len(hidden) > 0 {
		sort.Strings(hidden)
		return nil, &VisibilityError{Generated: opts.Generated, Packages: hidden}
	}
	if len(missing) > 0 {
		sort.Slice(missing, func(i, j int) bool { return missing[i].Pos < missing[j].Pos })
		return nil, &MissingSymbolsError{Refs: missing}
	}
	logger.Info(ctx, "consumer references verified",
		"importers", len(report.Importers),
		"refs", len(report.Refs),
	)
	return &report, nil
}

// localName returns the name file uses for the import of path, or "" when
// file does not import it.
func localName(file *ast.File, path string) string {
	for _, spec := range file.Imports {
		p, err := strconv.Unquote(spec.Path.Value)
		if err != nil || p != path {
			continue
		}
		if spec.Name != nil {
			if spec.Name.Name == "_" || spec.Name.Name == "." {
				return ""
			}
			return spec.Name.Name
		}
		return p[strings.LastIndex(p, "/")+1:]
	}
	return ""
}

// Visible reports whether pkgPath matches one of patterns.
func Visible(pkgPath string, patterns []string) bool {
	if len(patterns) == 0 {
		return true
	}
	for _, pat := range patterns {
		if prefix, ok := strings.CutSuffix(pat, "/..."); ok {
			if pkgPath == prefix || strings.HasPrefix(pkgPath, prefix+"/") {
				return true
			}
			continue
		}
		if pkgPath == pat {
			return true
		}
	}
	return false
}

// ImportPath returns the import path of dir inside the module rooted at
// moduleRoot.
func ImportPath(moduleRoot, dir string) (string, error) {
	data, err := os.ReadFile(filepath.Join(moduleRoot, "go.mod")) // #nosec G304 -- module root from the build descriptor
	if err != nil {
		return "", fmt.Errorf("read go.mod: %w", err)
	}
	mod := modfile.ModulePath(data)
	if mod == "" {
		return "", fmt.Errorf("%s/go.mod has no module directive", moduleRoot)
	}
	rel, err := filepath.Rel(moduleRoot, dir)
	if err != nil {
		return "", err
	}
	if rel == "." {
		return mod, nil
	}
	if strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("%s is outside module %s", dir, mod)
	}
	return mod + "/" + filepath.ToSlash(rel), nil
}
