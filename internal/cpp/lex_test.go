package cpp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func texts(toks []Token) []string {
	out := make([]string, len(toks))
	for i, t := range toks {
		out[i] = t.Text
	}
	return out
}

func TestTokenize(t *testing.T) {
	src := "#define A(x) ((x) << 2) /* c */\n" +
		"typedef unsigned int VAGenericID; // tail\n" +
		"int a = L'x' + 0x1Fu + 1.5e-3;\n" +
		"#define LONG \\\n  1\n"
	toks, err := Tokenize("t.h", []byte(src))
	require.NoError(t, err)

	assert.Equal(t, []string{
		"#", "define", "A", "(", "x", ")", "(", "(", "x", ")", "<<", "2", ")",
		"typedef", "unsigned", "int", "VAGenericID", ";",
		"int", "a", "=", "L'x'", "+", "0x1Fu", "+", "1.5e-3", ";",
		"#", "define", "LONG", "1",
	}, texts(toks))

	assert.True(t, toks[0].BOL)
	assert.False(t, toks[1].BOL)
	assert.Equal(t, 2, toks[13].Line)
	assert.Equal(t, Char, toks[21].Kind)
	assert.Equal(t, Number, toks[25].Kind)
	// The spliced body stays on the directive's logical line.
	assert.False(t, toks[len(toks)-1].BOL)
}

func TestTokenizeErrors(t *testing.T) {
	_, err := Tokenize("t.h", []byte("/* open"))
	require.Error(t, err)

	_, err = Tokenize("t.h", []byte("char *s = \"open\n"))
	require.Error(t, err)
}

func TestJoin(t *testing.T) {
	toks, err := Tokenize("t.h", []byte("unsigned  int *p[4]"))
	require.NoError(t, err)
	assert.Equal(t, "unsigned int *p[4]", Join(toks))
}

func TestParseInt(t *testing.T) {
	tests := map[string]int64{
		"0":          0,
		"42":         42,
		"0x10":       16,
		"0X10UL":     16,
		"010":        8,
		"0b101":      5,
		"0xffffffff": 0xffffffff,
		"7ull":       7,
	}
	for in, want := range tests {
		got, err := ParseInt(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseInt("1.5")
	require.Error(t, err)
}
