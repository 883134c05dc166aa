package lexer

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLexInstructionLine(t *testing.T) {
	toks, err := Lex("    add %3 local %1 local %2 local ; sum\n")
	require.NoError(t, err)

	var kinds []Kind
	for _, tok := range toks {
		kinds = append(kinds, tok.Kind)
	}
	require.Equal(t, []Kind{
		Ident, Sigil, Integer, RegisterSet,
		Sigil, Integer, RegisterSet,
		Sigil, Integer, RegisterSet,
		Newline, EOF,
	}, kinds)
}

func TestLexDirectiveAndAttributes(t *testing.T) {
	toks, err := Lex(".function: main/0 [[no_tco]]\n")
	require.NoError(t, err)
	require.Equal(t, Directive, toks[0].Kind)
	require.Equal(t, ".function:", toks[0].Text)
	require.Equal(t, Ident, toks[1].Kind)
	require.Equal(t, LBracket2, toks[2].Kind)
	require.Equal(t, Ident, toks[3].Kind)
	require.Equal(t, RBracket2, toks[4].Kind)
}

func TestLexQuotedTextWithEscape(t *testing.T) {
	toks, err := Lex(`text %1 local "hello\n"` + "\n")
	require.NoError(t, err)
	var got string
	for _, tok := range toks {
		if tok.Kind == Text {
			got = tok.Text
		}
	}
	require.Equal(t, "hello\n", got)
}

func TestLexUnterminatedQuoteErrors(t *testing.T) {
	_, err := Lex(`text %1 local "oops`)
	require.Error(t, err)
}
