package gen

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// stage collects generated files next to the output directory so they can be
// moved in with renames on the same filesystem.
type stage struct {
	dir string

	mu    sync.Mutex
	names []string
}

func newStage(outDir string) (*stage, error) {
	parent := filepath.Dir(outDir)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return nil, fmt.Errorf("create output parent: %w", err)
	}
	dir, err := os.MkdirTemp(parent, ".vabind-stage-")
	if err != nil {
		return nil, fmt.Errorf("create staging dir: %w", err)
	}
	return &stage{dir: dir}, nil
}

func (s *stage) write(name string, data []byte) error {
	if err := os.WriteFile(filepath.Join(s.dir, name), data, 0o644); err != nil { // #nosec G306 -- generated source
		return fmt.Errorf("stage %s: %w", name, err)
	}
	s.mu.Lock()
	s.names = append(s.names, name)
	s.mu.Unlock()
	return nil
}

func (s *stage) discard() {
	_ = os.RemoveAll(s.dir)
}

// commit replaces the generated files of outDir with the staged ones.
// Files about to be replaced are first moved aside into the staging
// directory; if moving a staged file in fails, the files already moved in are
// removed and the old ones restored. Generated files from an earlier run that
// this run did not produce, such as types of a target since disabled, are
// removed only once every new file is in place. Hand-written files are left
// alone.
func (s *stage) commit(outDir, manifest string) ([]string, error) {
	defer s.discard()
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	names := append([]string(nil), s.names...)
	sort.Strings(names)
	keep := map[string]bool{}
	for _, n := range names {
		keep[n] = true
	}

	backup := filepath.Join(s.dir, ".previous")
	if err := os.Mkdir(backup, 0o755); err != nil {
		return nil, fmt.Errorf("create backup dir: %w", err)
	}
	var saved []string
	restore := func(moved []string) {
		for _, n := range moved {
			_ = os.Remove(filepath.Join(outDir, n))
		}
		for _, n := range saved {
			_ = os.Rename(filepath.Join(backup, n), filepath.Join(outDir, n))
		}
	}

	for _, n := range names {
		dst := filepath.Join(outDir, n)
		st, err := os.Lstat(dst)
		if os.IsNotExist(err) {
			continue
		}
		if err == nil && st.IsDir() {
			err = fmt.Errorf("%s is a directory", dst)
		}
		if err == nil {
			err = os.Rename(dst, filepath.Join(backup, n))
		}
		if err != nil {
			restore(nil)
			return nil, fmt.Errorf("replace %s: %w", n, err)
		}
		saved = append(saved, n)
	}

	for i, n := range names {
		if err := os.Rename(filepath.Join(s.dir, n), filepath.Join(outDir, n)); err != nil {
			restore(names[:i])
			return nil, fmt.Errorf("move %s: %w", n, err)
		}
	}

	entries, err := os.ReadDir(outDir)
	if err != nil {
		return nil, fmt.Errorf("read output dir: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() || keep[e.Name()] || !isGenerated(e.Name(), manifest) {
			continue
		}
		if err := os.Remove(filepath.Join(outDir, e.Name())); err != nil {
			return nil, fmt.Errorf("remove stale %s: %w", e.Name(), err)
		}
	}
	return names, nil
}

func isGenerated(name, manifest string) bool {
	return name == manifest || (strings.HasPrefix(name, "zva_") && strings.HasSuffix(name, ".go"))
}
