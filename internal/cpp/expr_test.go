package cpp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvalInt(t *testing.T) {
	macros := map[string]*Macro{}
	for _, d := range []string{
		"VA_PADDING_LOW 4",
		"VA_FOURCC(ch0,ch1,ch2,ch3) ((unsigned long)(unsigned char)(ch0) | ((unsigned long)(unsigned char)(ch1) << 8) | ((unsigned long)(unsigned char)(ch2) << 16) | ((unsigned long)(unsigned char)(ch3) << 24))",
		"VA_STATUS_ERROR_UNKNOWN 0xFFFFFFFF",
	} {
		toks, err := Tokenize("t.h", []byte(d))
		require.NoError(t, err)
		m, err := parseDefine(toks)
		require.NoError(t, err)
		macros[m.Name] = m
	}

	tests := []struct {
		expr string
		want int64
	}{
		{"1 + 2 * 3", 7},
		{"(1 + 2) * 3", 9},
		{"VA_PADDING_LOW * 2", 8},
		{"VA_FOURCC('N','V','1','2')", 0x3231564e},
		{"VA_STATUS_ERROR_UNKNOWN", 0xFFFFFFFF},
		{"1 ? 2 : 3", 2},
		{"!0 && ~0", 1},
		{"-1 < 0", 1},
		{"UNDEFINED_NAME", 0},
		{"'\\0'", 0},
		{"1 << 4 | 1", 17},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			toks, err := Tokenize("t.h", []byte(tt.expr))
			require.NoError(t, err)
			got, err := EvalInt(toks, macros)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvalIntErrors(t *testing.T) {
	for _, expr := range []string{"1 /", "1 / 0", "(1", "1 2", "\"s\""} {
		toks, err := Tokenize("t.h", []byte(expr))
		require.NoError(t, err)
		_, err = EvalInt(toks, nil)
		assert.Error(t, err, expr)
	}
}
