package cpp

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, body := range files {
		p := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	}
	return dir
}

func headerText(t *testing.T, res *Result, suffix string) string {
	t.Helper()
	for _, h := range res.Headers {
		if strings.HasSuffix(filepath.ToSlash(h.Path), suffix) {
			return Join(h.Tokens)
		}
	}
	t.Fatalf("header %s not scanned", suffix)
	return ""
}

func TestProcessConditionalsAndMacros(t *testing.T) {
	dir := writeTree(t, map[string]string{
		"wrapper.h": `#include <va/va.h>
#if defined(FEATURE_X)
#include <extra.h>
#endif
`,
		"include/va/va.h": `#ifndef _VA_H_
#define _VA_H_
#include <stdint.h>
#include "va_version.h"
#define VA_PADDING_LOW 4
#define va_deprecated __attribute__((deprecated))
#define CONCAT(a, b) a ## b
#if VA_MAJOR_VERSION >= 1 && !defined(NOT_SET)
typedef int CONCAT(VA, Status);
#elif 1
typedef int Wrong;
#else
typedef int AlsoWrong;
#endif
typedef struct { int reserved[VA_PADDING_LOW]; } VAThing;
va_deprecated int vaOld(void);
#endif
#include "va.h"
`,
		"include/va/va_version.h": "#define VA_MAJOR_VERSION 1\n#define VA_VERSION_S \"1.22.0\"\n",
		"include/extra.h":         "int extra;\n",
	})

	res, err := Process(filepath.Join(dir, "wrapper.h"), Options{
		IncludePaths: []string{filepath.Join(dir, "include")},
		Surface: func(p string) bool {
			return strings.HasPrefix(filepath.Base(p), "va")
		},
	})
	require.NoError(t, err)

	text := headerText(t, res, "va/va.h")
	assert.Contains(t, text, "typedef int VAStatus;")
	assert.NotContains(t, text, "Wrong")
	assert.Contains(t, text, "int reserved[4]")
	assert.Contains(t, text, "__attribute__((deprecated)) int vaOld(void);")

	// stdint.h is unresolved below the wrapper and so ignored; extra.h is
	// behind a disabled feature.
	for _, h := range res.Headers {
		assert.NotContains(t, h.Path, "extra.h")
	}
	var names []string
	for _, m := range res.ObjectMacros() {
		names = append(names, m.Name)
	}
	assert.Equal(t, []string{"VA_MAJOR_VERSION", "VA_PADDING_LOW", "VA_VERSION_S", "_VA_H_", "va_deprecated"}, names)
}

func TestProcessFeatureDefine(t *testing.T) {
	dir := writeTree(t, map[string]string{
		"wrapper.h":       "#if defined(FEATURE_X)\n#include <extra.h>\n#endif\n",
		"include/extra.h": "int extra;\n",
	})
	res, err := Process(filepath.Join(dir, "wrapper.h"), Options{
		IncludePaths: []string{filepath.Join(dir, "include")},
		Defines:      []string{"FEATURE_X"},
	})
	require.NoError(t, err)
	assert.Equal(t, "int extra;", headerText(t, res, "extra.h"))
}

func TestProcessExternalHeaders(t *testing.T) {
	dir := writeTree(t, map[string]string{
		"wrapper.h":         "#include <va/va.h>\n",
		"include/va/va.h":   "#include <drm/drm.h>\nint vaX(void);\n",
		"include/drm/drm.h": "#define DRM_THING 1\nstruct drm_x { int a; };\n",
	})
	res, err := Process(filepath.Join(dir, "wrapper.h"), Options{
		IncludePaths: []string{filepath.Join(dir, "include")},
		Surface:      func(p string) bool { return filepath.Base(p) == "va.h" },
	})
	require.NoError(t, err)

	var external []string
	for _, h := range res.Headers {
		if h.External {
			external = append(external, filepath.Base(h.Path))
			assert.Empty(t, h.Tokens)
		}
	}
	assert.Equal(t, []string{"drm.h"}, external)
	assert.Empty(t, res.ObjectMacros())
	assert.NotContains(t, res.Table, "DRM_THING")
}

func TestProcessMissingInclude(t *testing.T) {
	dir := writeTree(t, map[string]string{
		"wrapper.h":   "#include <va/va.h>\n#include <va/va_missing.h>\n",
		"inc/va/va.h": "int vaX(void);\n",
	})
	_, err := Process(filepath.Join(dir, "wrapper.h"), Options{IncludePaths: []string{filepath.Join(dir, "inc")}})

	var missing *MissingIncludeError
	require.True(t, errors.As(err, &missing), "got %v", err)
	assert.Equal(t, "va/va_missing.h", missing.Name)
	assert.Equal(t, 2, missing.Line)

	_, err = Process(filepath.Join(dir, "nope.h"), Options{})
	require.True(t, errors.As(err, &missing))
}

func TestProcessMissingNestedInclude(t *testing.T) {
	surface := func(p string) bool { return strings.HasPrefix(filepath.Base(p), "va") }
	tests := map[string]struct {
		header  string
		missing string
	}{
		"surface header": {"#include <stdint.h>\n#include <va/va_version.h>\n", "va/va_version.h"},
		"quoted header":  {"#include \"local.h\"\n", "local.h"},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			dir := writeTree(t, map[string]string{
				"wrapper.h":       "#include <va/va.h>\n",
				"include/va/va.h": tc.header + "int vaX(void);\n",
			})
			_, err := Process(filepath.Join(dir, "wrapper.h"), Options{
				IncludePaths: []string{filepath.Join(dir, "include")},
				Surface:      surface,
			})
			var missing *MissingIncludeError
			require.True(t, errors.As(err, &missing), "got %v", err)
			assert.Equal(t, tc.missing, missing.Name)
			assert.Equal(t, filepath.Join(dir, "include", "va", "va.h"), missing.From)
		})
	}
}

func TestProcessDirectiveErrors(t *testing.T) {
	tests := map[string]string{
		"error":      "#error unsupported platform\n",
		"unbalanced": "#if 1\nint a;\n",
		"stray else": "#else\n",
		"unknown":    "#frobnicate\n",
	}
	for name, src := range tests {
		t.Run(name, func(t *testing.T) {
			dir := writeTree(t, map[string]string{"w.h": src})
			_, err := Process(filepath.Join(dir, "w.h"), Options{})
			require.Error(t, err)
		})
	}
}

func TestVariadicMacro(t *testing.T) {
	dir := writeTree(t, map[string]string{
		"w.h": "#define CALL(f, ...) f(__VA_ARGS__)\n#define STR(x) #x\nint v = CALL(g, 1, 2);\nconst char *s = STR(a \"b\");\n",
	})
	res, err := Process(filepath.Join(dir, "w.h"), Options{})
	require.NoError(t, err)
	assert.Equal(t, `int v = g(1, 2); const char *s = "a \"b\"";`, headerText(t, res, "w.h"))
}
