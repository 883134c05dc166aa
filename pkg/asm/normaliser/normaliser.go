// Package normaliser canonicalises a lexer.Token stream before parsing:
// register operands that omit their register-set word default to "local"
// (spec.md §6 grammar note). ExtractAttributes reads one `[[...]]` attribute
// list into a string slice; Normalise itself leaves attribute-list tokens in
// the stream unchanged. There is no
// teacher analogue for this stage — the teacher's assembler (vm/compile.go)
// has no separate normalisation pass, folding defaulting directly into
// parseInputLine; splitting it out here follows SPEC_FULL.md §5.6's staged
// lexer/normaliser/parser pipeline.
package normaliser

import "github.com/marekjm/viuavm-sub001/pkg/asm/lexer"

// Attributes is the canonical form of a `[[a, b, c]]` list.
type Attributes []string

// Normalise copies toks, inserting a "local" RegisterSet token after every
// sigil+index operand that has no register-set word. All other tokens,
// attribute-list brackets included, pass through unchanged.
func Normalise(toks []lexer.Token) []lexer.Token {
	out := make([]lexer.Token, 0, len(toks))
	for i := 0; i < len(toks); i++ {
		t := toks[i]
		out = append(out, t)
		if t.Kind != lexer.Sigil {
			continue
		}
		// sigil must be followed by an index (Integer or Ident for named
		// registers); find it and check whether a register-set word follows.
		j := i + 1
		if j >= len(toks) || (toks[j].Kind != lexer.Integer && toks[j].Kind != lexer.Ident) {
			continue
		}
		out = append(out, toks[j])
		i = j
		if i+1 < len(toks) && toks[i+1].Kind == lexer.RegisterSet {
			continue
		}
		out = append(out, lexer.Token{Kind: lexer.RegisterSet, Text: "local", Line: t.Line, Col: t.Col})
	}
	return out
}

// ExtractAttributes reads one `[[ ident (, ident)* ]]` group starting at
// tokens[i] (which must be LBracket2) and returns the attribute words plus
// the index just past the closing RBracket2.
func ExtractAttributes(tokens []lexer.Token, i int) (Attributes, int) {
	if i >= len(tokens) || tokens[i].Kind != lexer.LBracket2 {
		return nil, i
	}
	var attrs Attributes
	i++
	for i < len(tokens) && tokens[i].Kind != lexer.RBracket2 {
		if tokens[i].Kind == lexer.Ident {
			attrs = append(attrs, tokens[i].Text)
		}
		i++
	}
	if i < len(tokens) && tokens[i].Kind == lexer.RBracket2 {
		i++
	}
	return attrs, i
}
