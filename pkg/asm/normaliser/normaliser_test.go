package normaliser

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/marekjm/viuavm-sub001/pkg/asm/lexer"
)

func TestNormaliseDefaultsRegisterSet(t *testing.T) {
	toks, err := lexer.Lex("copy %1 %2 local\n")
	require.NoError(t, err)

	out := Normalise(toks)

	var sets []string
	for _, tok := range out {
		if tok.Kind == lexer.RegisterSet {
			sets = append(sets, tok.Text)
		}
	}
	require.Equal(t, []string{"local", "local"}, sets)
}

func TestExtractAttributes(t *testing.T) {
	toks, err := lexer.Lex("[[no_tco, tail_call]]\n")
	require.NoError(t, err)

	attrs, next := ExtractAttributes(toks, 0)
	require.Equal(t, Attributes{"no_tco", "tail_call"}, attrs)
	require.Equal(t, lexer.Newline, toks[next].Kind)
}
