package parser

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/marekjm/viuavm-sub001/pkg/asm/lexer"
	"github.com/marekjm/viuavm-sub001/pkg/asm/normaliser"
)

// Error is a syntax-level diagnostic (spec.md §7 SyntaxError), carrying
// source position the way lexer.Error does.
type Error struct {
	Line, Col int
	Msg       string
}

func (e *Error) Error() string { return fmt.Sprintf("%d:%d: %s", e.Line, e.Col, e.Msg) }

type parser struct {
	toks      []lexer.Token
	pos       int
	openStack []*openFragment
}

// Parse lexes+normalises src and builds a Program fragment tree.
func Parse(src string) (*Program, error) {
	raw, err := lexer.Lex(src)
	if err != nil {
		return nil, err
	}
	return ParseTokens(normaliser.Normalise(raw))
}

// ParseTokens builds a Program from an already-normalised token stream.
func ParseTokens(toks []lexer.Token) (*Program, error) {
	p := &parser{toks: toks}
	prog := &Program{Info: map[string]string{}, Marks: map[string]string{}}

	var pendingUnused []RegisterOperand
	var pendingLabel string

	for !p.atEOF() {
		line := p.takeLine()
		if len(line) == 0 {
			continue
		}
		switch {
		case line[0].Kind == lexer.Label:
			pendingLabel = line[0].Text
		case line[0].Kind == lexer.Directive:
			if err := p.directive(prog, line, &pendingUnused); err != nil {
				return nil, err
			}
		case line[0].Kind == lexer.Bang || line[0].Kind == lexer.Ident:
			instr, err := parseInstruction(line)
			if err != nil {
				return nil, err
			}
			instr.Label = pendingLabel
			instr.Unused = pendingUnused
			pendingLabel = ""
			pendingUnused = nil
			if err := p.appendInstruction(prog, instr); err != nil {
				return nil, err
			}
		default:
			return nil, &Error{Line: line[0].Line, Col: line[0].Col, Msg: fmt.Sprintf("unexpected token %s", line[0].Kind)}
		}
	}
	return prog, nil
}

// current parse target: the innermost open .function:/.closure:/.block:.
type openFragment struct {
	fn    *Function
	block *Block
}

func (p *parser) atEOF() bool {
	return p.pos >= len(p.toks) || p.toks[p.pos].Kind == lexer.EOF
}

// takeLine returns the tokens up to (excluding) the next Newline/EOF and
// advances past it.
func (p *parser) takeLine() []lexer.Token {
	start := p.pos
	for p.pos < len(p.toks) && p.toks[p.pos].Kind != lexer.Newline && p.toks[p.pos].Kind != lexer.EOF {
		p.pos++
	}
	line := p.toks[start:p.pos]
	if p.pos < len(p.toks) && p.toks[p.pos].Kind == lexer.Newline {
		p.pos++
	}
	return line
}

func (p *parser) directive(prog *Program, line []lexer.Token, pendingUnused *[]RegisterOperand) error {
	name := line[0].Text
	rest := line[1:]
	switch name {
	case ".function:", ".closure:":
		sig, attrs, err := parseSignature(rest)
		if err != nil {
			return err
		}
		fn := &Function{Name: sig.Name, Arity: sig.Arity, IsClosure: name == ".closure:", Attributes: attrs, Labels: map[string]int{}}
		p.openStack = append(p.openStack, &openFragment{fn: fn})
	case ".block:":
		if len(rest) == 0 {
			return &Error{Line: line[0].Line, Col: line[0].Col, Msg: ".block: requires a name"}
		}
		blk := &Block{Name: rest[0].Text, Labels: map[string]int{}}
		p.openStack = append(p.openStack, &openFragment{block: blk})
	case ".end":
		if len(p.openStack) == 0 {
			return &Error{Line: line[0].Line, Col: line[0].Col, Msg: ".end with no open fragment"}
		}
		top := p.openStack[len(p.openStack)-1]
		p.openStack = p.openStack[:len(p.openStack)-1]
		if top.fn != nil {
			prog.Functions = append(prog.Functions, top.fn)
		} else if top.block != nil {
			prog.Blocks = append(prog.Blocks, top.block)
		}
	case ".name:":
		// constant alias; recorded informationally only (spec.md §6 .name:).
		if len(rest) >= 1 {
			prog.Info["name:"+rest[0].Text] = tokensToText(rest[1:])
		}
	case ".mark:":
		if len(rest) >= 1 {
			prog.Marks[rest[0].Text] = tokensToText(rest[1:])
		}
	case ".info:":
		if len(rest) >= 2 {
			prog.Info[rest[0].Text] = tokensToText(rest[1:])
		}
	case ".import:":
		if len(rest) >= 1 {
			prog.Imports = append(prog.Imports, rest[0].Text)
		}
	case ".extern_function:":
		sig, _, err := parseSignature(rest)
		if err != nil {
			return err
		}
		prog.ExternFunctions = append(prog.ExternFunctions, Signature{Name: sig.Name, Arity: sig.Arity})
	case ".extern_block:":
		if len(rest) >= 1 {
			prog.ExternBlocks = append(prog.ExternBlocks, Signature{Name: rest[0].Text, IsBlock: true})
		}
	case ".unused:":
		reg, err := parseRegisterOperand(rest)
		if err != nil {
			return err
		}
		*pendingUnused = append(*pendingUnused, reg)
	default:
		return &Error{Line: line[0].Line, Col: line[0].Col, Msg: fmt.Sprintf("unknown directive %q", name)}
	}
	return nil
}

func (p *parser) appendInstruction(prog *Program, instr *Instruction) error {
	if len(p.openStack) == 0 {
		return &Error{Line: instr.Line, Col: 0, Msg: "instruction outside any .function:/.closure:/.block:"}
	}
	top := p.openStack[len(p.openStack)-1]
	switch {
	case top.fn != nil:
		idx := len(top.fn.Instructions)
		if instr.Label != "" {
			top.fn.Labels[instr.Label] = idx
		}
		top.fn.Instructions = append(top.fn.Instructions, instr)
	case top.block != nil:
		idx := len(top.block.Instructions)
		if instr.Label != "" {
			top.block.Labels[instr.Label] = idx
		}
		top.block.Instructions = append(top.block.Instructions, instr)
	}
	return nil
}

type parsedSignature struct {
	Name  string
	Arity int
}

func parseSignature(toks []lexer.Token) (parsedSignature, []string, error) {
	if len(toks) == 0 {
		return parsedSignature{}, nil, &Error{Msg: "expected name/arity"}
	}
	full := toks[0].Text
	name, arity := full, 0
	if idx := strings.IndexByte(full, '/'); idx >= 0 {
		name = full[:idx]
		n, err := strconv.Atoi(full[idx+1:])
		if err != nil {
			return parsedSignature{}, nil, &Error{Line: toks[0].Line, Col: toks[0].Col, Msg: "bad arity in " + full}
		}
		arity = n
	}
	var attrs []string
	for i := 1; i < len(toks); i++ {
		if toks[i].Kind == lexer.LBracket2 {
			a, _ := extractAttrs(toks, i)
			attrs = append(attrs, a...)
		}
	}
	return parsedSignature{Name: name, Arity: arity}, attrs, nil
}

func extractAttrs(toks []lexer.Token, i int) ([]string, int) {
	var attrs []string
	i++
	for i < len(toks) && toks[i].Kind != lexer.RBracket2 {
		if toks[i].Kind == lexer.Ident {
			attrs = append(attrs, toks[i].Text)
		}
		i++
	}
	if i < len(toks) {
		i++
	}
	return attrs, i
}

func parseInstruction(line []lexer.Token) (*Instruction, error) {
	greedy := false
	i := 0
	if line[i].Kind == lexer.Bang {
		greedy = true
		i++
	}
	if i >= len(line) || line[i].Kind != lexer.Ident {
		return nil, &Error{Line: line[0].Line, Col: line[0].Col, Msg: "expected instruction mnemonic"}
	}
	instr := &Instruction{Mnemonic: line[i].Text, Greedy: greedy, Line: line[i].Line}
	i++
	for i < len(line) {
		if line[i].Kind == lexer.Comma {
			i++
			continue
		}
		op, adv, err := parseOperand(line[i:])
		if err != nil {
			return nil, err
		}
		instr.Operands = append(instr.Operands, op)
		i += adv
	}
	return instr, nil
}

func parseOperand(toks []lexer.Token) (Operand, int, error) {
	t := toks[0]
	switch t.Kind {
	case lexer.Sigil:
		reg, adv, err := parseSigilOperand(toks)
		if err != nil {
			return Operand{}, 0, err
		}
		return Operand{Kind: OperandRegister, Register: reg}, adv, nil
	case lexer.Integer:
		n, err := strconv.ParseInt(t.Text, 0, 64)
		if err != nil {
			return Operand{}, 0, &Error{Line: t.Line, Col: t.Col, Msg: "bad integer literal " + t.Text}
		}
		return Operand{Kind: OperandInt, Int: n}, 1, nil
	case lexer.JumpDelta:
		n, err := strconv.ParseInt(t.Text, 0, 64)
		if err != nil {
			return Operand{}, 0, &Error{Line: t.Line, Col: t.Col, Msg: "bad jump delta " + t.Text}
		}
		return Operand{Kind: OperandInt, Int: n}, 1, nil
	case lexer.Float:
		f, err := strconv.ParseFloat(t.Text, 64)
		if err != nil {
			return Operand{}, 0, &Error{Line: t.Line, Col: t.Col, Msg: "bad float literal " + t.Text}
		}
		return Operand{Kind: OperandFloat, Float: f}, 1, nil
	case lexer.BitStr:
		return Operand{Kind: OperandBitString, Text: t.Text}, 1, nil
	case lexer.Text:
		return Operand{Kind: OperandText, Text: t.Text}, 1, nil
	case lexer.Atom:
		return Operand{Kind: OperandAtom, Text: t.Text}, 1, nil
	case lexer.Void:
		return Operand{Kind: OperandVoid}, 1, nil
	case lexer.Bool:
		return Operand{Kind: OperandBool, Bool: t.Text == "true"}, 1, nil
	case lexer.Timeout:
		if t.Text == "infinity" {
			return Operand{Kind: OperandTimeout, Infinite: true}, 1, nil
		}
		return Operand{Kind: OperandTimeout}, 1, nil
	case lexer.Ident:
		// bare word not preceded by a sigil: a jump-target label.
		return Operand{Kind: OperandLabel, Label: t.Text}, 1, nil
	default:
		return Operand{}, 0, &Error{Line: t.Line, Col: t.Col, Msg: fmt.Sprintf("unexpected operand token %s", t.Kind)}
	}
}

// parseSigilOperand consumes `<sigil> <index> <set>` (the normaliser has
// already inserted a default register-set token when the source omitted
// one, so this always has exactly three tokens to consume).
func parseSigilOperand(toks []lexer.Token) (RegisterOperand, int, error) {
	sigil := toks[0]
	access := AccessDirect
	switch sigil.Text {
	case "%":
		access = AccessDirect
	case "@":
		access = AccessRegisterIndirect
	case "*":
		access = AccessPointerDeref
	}
	if len(toks) < 3 {
		return RegisterOperand{}, 0, &Error{Line: sigil.Line, Col: sigil.Col, Msg: "incomplete register operand"}
	}
	idxTok := toks[1]
	setTok := toks[2]
	reg := RegisterOperand{Access: access, Set: setTok.Text}
	if idxTok.Kind == lexer.Integer {
		n, err := strconv.Atoi(idxTok.Text)
		if err != nil {
			return RegisterOperand{}, 0, &Error{Line: idxTok.Line, Col: idxTok.Col, Msg: "bad register index " + idxTok.Text}
		}
		reg.Index = n
	} else {
		reg.Name = idxTok.Text
	}
	return reg, 3, nil
}

func parseRegisterOperand(toks []lexer.Token) (RegisterOperand, error) {
	if len(toks) == 0 || toks[0].Kind != lexer.Sigil {
		return RegisterOperand{}, &Error{Msg: "expected register operand"}
	}
	reg, _, err := parseSigilOperand(toks)
	return reg, err
}

func tokensToText(toks []lexer.Token) string {
	var parts []string
	for _, t := range toks {
		parts = append(parts, t.Text)
	}
	return strings.Join(parts, " ")
}
