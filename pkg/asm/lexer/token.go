// Package lexer turns assembly source text into a flat token stream: comment
// stripping, escape-sequence handling and quoted-literal recognition are
// grounded on the teacher's preprocessLine/escapeSeqReplacements
// (vm/compile.go, vm/parse.go); the richer token kinds (directives, sigils,
// register sets, typed literals) are new, built to spec.md §6's grammar.
package lexer

import "fmt"

// Kind discriminates a Token.
type Kind byte

const (
	Directive Kind = iota // .function:, .end, ...
	Mnemonic              // not produced by Lex: mnemonics (add, copy, return, ...) lex as Ident
	Sigil                 // % @ *
	RegisterSet           // local, static, global, arguments, parameters, closure_local
	Ident                 // bare word: mnemonic, function name, label reference, attribute
	Integer
	Float
	Text   // "..."
	Atom   // '...'
	BitStr // 0b/0o/0x prefixed
	Void
	Bool
	Timeout   // infinity only; <N>s and <N>ms lex as an Integer followed by an Ident
	JumpDelta // +N / -N
	LBracket2 // [[
	RBracket2 // ]]
	Comma
	Label // ident immediately followed by ':'
	Bang  // ! greedy-instruction marker
	Newline
	EOF
)

func (k Kind) String() string {
	names := [...]string{
		"Directive", "Mnemonic", "Sigil", "RegisterSet", "Ident", "Integer",
		"Float", "Text", "Atom", "BitStr", "Void", "Bool", "Timeout",
		"JumpDelta", "LBracket2", "RBracket2", "Comma", "Label", "Bang", "Newline", "EOF",
	}
	if int(k) < len(names) {
		return names[k]
	}
	return fmt.Sprintf("?kind(%d)?", k)
}

// Token is one lexical unit with its source position for diagnostics.
type Token struct {
	Kind Kind
	Text string
	Line int
	Col  int
}

func (t Token) String() string {
	return fmt.Sprintf("%s(%q)@%d:%d", t.Kind, t.Text, t.Line, t.Col)
}
