package lexer

import (
	"fmt"
	"regexp"
	"strings"
)

// commentPattern strips a trailing `;` comment, mirroring the teacher's
// preprocessLine comment regex in vm/compile.go/vm/parse.go.
var commentPattern = regexp.MustCompile(`;.*$`)

// escapeSeqReplacements mirrors the teacher's insertEscapeSeqReplacements
// table (vm/parse.go): a fixed set of two-character escapes recognised
// inside quoted text and atom literals.
var escapeSeqReplacements = map[string]string{
	`\n`: "\n",
	`\t`: "\t",
	`\"`: "\"",
	`\'`: "'",
	`\\`: `\`,
	`\0`: "\x00",
}

func unescape(s string) string {
	for esc, lit := range escapeSeqReplacements {
		s = strings.ReplaceAll(s, esc, lit)
	}
	return s
}

// Error carries source position, the way static-analysis/syntax diagnostics
// throughout this assembler do (spec.md §7 SyntaxError).
type Error struct {
	Line, Col int
	Msg       string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%d:%d: %s", e.Line, e.Col, e.Msg)
}

// Lex tokenises an entire source buffer into a flat stream terminated by a
// single EOF token. It never fails on its own for unrecognised bare words —
// those come through as Ident and it is the parser's job to reject an
// unexpected one; Error is returned for an unterminated quoted literal and
// for a character that starts no token. Numeric literals are not validated
// here; the parser rejects a malformed one.
func Lex(src string) ([]Token, error) {
	var out []Token
	lines := strings.Split(src, "\n")
	if len(lines) > 1 && lines[len(lines)-1] == "" {
		// a trailing newline terminates the last line; it does not open another
		lines = lines[:len(lines)-1]
	}
	for lineNo, raw := range lines {
		line := commentPattern.ReplaceAllString(raw, "")
		toks, err := lexLine(line, lineNo+1)
		if err != nil {
			return nil, err
		}
		out = append(out, toks...)
		out = append(out, Token{Kind: Newline, Line: lineNo + 1})
	}
	out = append(out, Token{Kind: EOF, Line: len(lines) + 1})
	return out, nil
}

func lexLine(line string, lineNo int) ([]Token, error) {
	var toks []Token
	i := 0
	n := len(line)
	for i < n {
		c := line[i]
		col := i + 1
		switch {
		case c == ' ' || c == '\t' || c == '\r':
			i++
		case c == ',':
			toks = append(toks, Token{Kind: Comma, Text: ",", Line: lineNo, Col: col})
			i++
		case strings.HasPrefix(line[i:], "[["):
			toks = append(toks, Token{Kind: LBracket2, Text: "[[", Line: lineNo, Col: col})
			i += 2
		case strings.HasPrefix(line[i:], "]]"):
			toks = append(toks, Token{Kind: RBracket2, Text: "]]", Line: lineNo, Col: col})
			i += 2
		case c == '!':
			toks = append(toks, Token{Kind: Bang, Text: "!", Line: lineNo, Col: col})
			i++
		case c == '%' || c == '@' || c == '*':
			toks = append(toks, Token{Kind: Sigil, Text: string(c), Line: lineNo, Col: col})
			i++
		case c == '"':
			text, adv, err := lexQuoted(line[i:], '"', lineNo, col)
			if err != nil {
				return nil, err
			}
			toks = append(toks, Token{Kind: Text, Text: text, Line: lineNo, Col: col})
			i += adv
		case c == '\'':
			text, adv, err := lexQuoted(line[i:], '\'', lineNo, col)
			if err != nil {
				return nil, err
			}
			toks = append(toks, Token{Kind: Atom, Text: text, Line: lineNo, Col: col})
			i += adv
		case c == '.' && i+1 < n && isIdentStart(line[i+1]):
			j := i + 1
			for j < n && isIdentPart(line[j]) {
				j++
			}
			// directives always end in ':' per spec.md §6 grammar
			if j < n && line[j] == ':' {
				j++
			}
			toks = append(toks, Token{Kind: Directive, Text: line[i:j], Line: lineNo, Col: col})
			i = j
		case c == '+' || c == '-' || isDigit(c):
			tok, adv := lexNumberOrDelta(line[i:], lineNo, col)
			toks = append(toks, tok)
			i += adv
		case isIdentStart(c):
			j := i
			for j < n && isIdentPart(line[j]) {
				j++
			}
			// function/closure signatures are written name/arity, and module
			// paths like std/posix use the same separator (spec.md §6).
			for j < n && line[j] == '/' && j+1 < n && (isIdentStart(line[j+1]) || isDigit(line[j+1])) {
				j++
				for j < n && isIdentPart(line[j]) {
					j++
				}
			}
			word := line[i:j]
			if j < n && line[j] == ':' {
				toks = append(toks, Token{Kind: Label, Text: word, Line: lineNo, Col: col})
				j++
			} else {
				toks = append(toks, classifyWord(word, lineNo, col))
			}
			i = j
		default:
			return nil, &Error{Line: lineNo, Col: col, Msg: fmt.Sprintf("unexpected character %q", c)}
		}
	}
	return toks, nil
}

func lexQuoted(s string, quote byte, lineNo, col int) (string, int, error) {
	var b strings.Builder
	i := 1
	for i < len(s) {
		if s[i] == '\\' && i+1 < len(s) {
			b.WriteByte(s[i])
			b.WriteByte(s[i+1])
			i += 2
			continue
		}
		if s[i] == quote {
			return unescape(b.String()), i + 1, nil
		}
		b.WriteByte(s[i])
		i++
	}
	return "", 0, &Error{Line: lineNo, Col: col, Msg: "unterminated quoted literal"}
}

func lexNumberOrDelta(s string, lineNo, col int) (Token, int) {
	signed := s[0] == '+' || s[0] == '-'
	i := 0
	if signed {
		i++
	}
	start := i

	// radix-prefixed bit-string literal: 0x.../0o.../0b...
	if i+1 < len(s) && s[i] == '0' && (s[i+1] == 'x' || s[i+1] == 'o' || s[i+1] == 'b') {
		j := i + 2
		for j < len(s) && isHexDigit(s[j]) {
			j++
		}
		text := s[:j]
		if signed {
			return Token{Kind: JumpDelta, Text: text, Line: lineNo, Col: col}, j
		}
		return Token{Kind: BitStr, Text: text, Line: lineNo, Col: col}, j
	}

	isFloat := false
	for i < len(s) && (isDigit(s[i]) || s[i] == '.') {
		if s[i] == '.' {
			isFloat = true
		}
		i++
	}
	_ = start
	text := s[:i]
	if signed {
		return Token{Kind: JumpDelta, Text: text, Line: lineNo, Col: col}, i
	}
	if isFloat {
		return Token{Kind: Float, Text: text, Line: lineNo, Col: col}, i
	}
	return Token{Kind: Integer, Text: text, Line: lineNo, Col: col}, i
}

func isHexDigit(c byte) bool {
	return isDigit(c) || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func classifyWord(word string, lineNo, col int) Token {
	switch word {
	case "void":
		return Token{Kind: Void, Text: word, Line: lineNo, Col: col}
	case "true", "false":
		return Token{Kind: Bool, Text: word, Line: lineNo, Col: col}
	case "infinity":
		return Token{Kind: Timeout, Text: word, Line: lineNo, Col: col}
	case "local", "static", "global", "parameters", "arguments", "closure_local":
		return Token{Kind: RegisterSet, Text: word, Line: lineNo, Col: col}
	}
	return Token{Kind: Ident, Text: word, Line: lineNo, Col: col}
}

func isDigit(c byte) bool      { return c >= '0' && c <= '9' }
func isIdentStart(c byte) bool { return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') }
func isIdentPart(c byte) bool  { return isIdentStart(c) || isDigit(c) }
