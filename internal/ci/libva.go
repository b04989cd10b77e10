package ci

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/cros-libva/libva-go/pkg/vabind/logging"
)

// libvaCommands fetches the pinned release and installs it under prefix.
func (p *Pipeline) libvaCommands(src, prefix string) []Command {
	lib := p.Config.Library
	build := filepath.Join(src, "build")
	return []Command{
		{Path: "git", Args: []string{"clone", "--depth", "1", "--branch", lib.Version, lib.Repository, src}},
		{Path: "meson", Args: []string{"setup", build, src, "--prefix", prefix, "--libdir", "lib"}},
		{Path: "ninja", Args: []string{"-C", build, "install"}},
	}
}

func (p *Pipeline) buildLibva(ctx context.Context, logger logging.Logger) error {
	lib := p.Config.Library
	src := filepath.Join(p.WorkDir, "libva-src")
	prefix := filepath.Join(p.WorkDir, "libva-install")
	if err := os.RemoveAll(src); err != nil {
		return fmt.Errorf("clean libva checkout: %w", err)
	}

	for _, cmd := range p.libvaCommands(src, prefix) {
		cmd.Dir = p.WorkDir
		cmd.Env = p.env
		logger.Debug(ctx, "run command", "command", cmd.String())
		if err := p.Runner.Run(ctx, cmd, p.Output, p.Output); err != nil {
			return fmt.Errorf("%s %s: %s: %w", lib.Name, lib.Version, cmd.Path, err)
		}
	}

	includeDir := filepath.Join(prefix, "include")
	libDir := filepath.Join(prefix, "lib")
	if _, err := os.Stat(filepath.Join(includeDir, "va", "va.h")); err != nil {
		return fmt.Errorf("%s %s not installed under %s: %w", lib.Name, lib.Version, prefix, err)
	}
	p.exportLibrary(includeDir, libDir)
	logger.Info(ctx, "libva installed", "version", lib.Version, "prefix", prefix)
	return nil
}

// exportLibrary makes an installed library visible to later steps.
func (p *Pipeline) exportLibrary(includeDir, libDir string) {
	lib := p.Config.Library
	p.includeDir, p.libDir = includeDir, libDir
	p.env = setEnv(p.env, "PKG_CONFIG_PATH", prependPath(filepath.Join(libDir, "pkgconfig"), os.Getenv("PKG_CONFIG_PATH")))
	p.env = setEnv(p.env, "LD_LIBRARY_PATH", prependPath(libDir, os.Getenv("LD_LIBRARY_PATH")))
	p.env = setEnv(p.env, "CGO_CFLAGS", strings.TrimSpace("-I"+includeDir+" "+os.Getenv("CGO_CFLAGS")))
	p.env = setEnv(p.env, "CGO_LDFLAGS", strings.TrimSpace("-L"+libDir+" "+os.Getenv("CGO_LDFLAGS")))
	p.env = setEnv(p.env, lib.IncludeDirEnv, includeDir)
	p.env = setEnv(p.env, lib.LibDirEnv, libDir)
}

func prependPath(dir, list string) string {
	if list == "" {
		return dir
	}
	return dir + string(os.PathListSeparator) + list
}
